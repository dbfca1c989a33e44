// Command packshaders bundles compiled SPIR-V files into a shader pack.
//
//	packshaders -o shaders.spk triangle.vert.spv triangle.frag.spv
//
// Modules are named after their file with the .spv suffix removed.
package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vkngwrapper/gpucore/shaderpack"
)

func run(output string, inputs []string) error {
	if len(inputs) == 0 {
		return errors.New("no input files")
	}

	var builder shaderpack.Builder
	for _, input := range inputs {
		stage, err := shaderpack.StageFromName(input)
		if err != nil {
			return err
		}

		spirv, err := os.ReadFile(input)
		if err != nil {
			return errors.Wrapf(err, "reading %s", input)
		}

		name := strings.TrimSuffix(filepath.Base(input), ".spv")
		if err := builder.Add(name, stage, spirv); err != nil {
			return err
		}
		log.WithFields(log.Fields{"name": name, "size": len(spirv)}).Debug("added")
	}

	file, err := os.Create(output)
	if err != nil {
		return errors.Wrapf(err, "creating %s", output)
	}

	size, err := builder.WriteTo(file)
	if err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", output)
	}

	log.WithFields(log.Fields{"pack": output, "modules": len(inputs), "size": size}).Info("wrote shader pack")
	return nil
}

func main() {
	output := flag.String("o", "shaders.spk", "pack to write")
	verbose := flag.Bool("v", false, "log every module")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if err := run(*output, flag.Args()); err != nil {
		log.Fatalf("%+v", err)
	}
}
