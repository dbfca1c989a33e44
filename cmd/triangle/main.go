// Command triangle draws the classic vertex-colored triangle into a window
// until it is closed or Escape is pressed.
package main

import (
	"flag"
	"runtime"
	"time"

	"github.com/loov/hrtime"
	log "github.com/sirupsen/logrus"
	"github.com/vkngwrapper/gpucore"
	"github.com/vkngwrapper/gpucore/platform/sdl"
	"github.com/vkngwrapper/gpucore/shaderpack"
)

func init() {
	// SDL calls must come from the main thread.
	runtime.LockOSThread()
}

func run(packPath, envFile string) error {
	pack, err := shaderpack.OpenFile(packPath)
	if err != nil {
		return err
	}
	defer pack.Close()

	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	config, err := gpucore.ConfigFromEnv(files...)
	if err != nil {
		return err
	}
	log.SetLevel(config.LogLevel)

	platform, err := sdl.New(log.StandardLogger())
	if err != nil {
		return err
	}

	c, err := gpucore.New(config, gpucore.WithLogger(log.StandardLogger()), gpucore.WithPlatform(platform))
	if err != nil {
		return err
	}
	defer c.Close()

	window, err := c.CreateWindow(gpucore.WindowConfig{Title: "Triangle", Width: 800, Height: 600, Resizable: true})
	if err != nil {
		return err
	}

	vertex, err := pack.Load(c, "triangle.vert")
	if err != nil {
		return err
	}
	fragment, err := pack.Load(c, "triangle.frag")
	if err != nil {
		return err
	}

	pass, err := c.CreateRenderPass(gpucore.RenderPassConfig{
		Shaders:      []gpucore.Shader{vertex, fragment},
		Target:       gpucore.TargetWindow{Window: window},
		Cull:         gpucore.CullNone,
		DepthCompare: gpucore.CompareIgnore,
		Clear:        gpucore.ClearAll,
	})
	if err != nil {
		return err
	}

	var cb gpucore.CommandBuffer
	frames := 0
	lastReport := hrtime.Now()
	for !c.CloseRequested(window) && !c.KeyDown(gpucore.KeyEscape) {
		c.PollEvents()

		rec, err := c.Begin(cb)
		if err != nil {
			return err
		}
		rec.SetRenderPass(pass).Draw(3, 0)
		if cb, err = rec.End(); err != nil {
			return err
		}

		if err := c.Execute(cb); err != nil {
			return err
		}
		if err := c.Present(window); err != nil {
			return err
		}

		frames++
		if elapsed := hrtime.Since(lastReport); elapsed >= time.Second {
			log.WithField("fps", float64(frames)/elapsed.Seconds()).Debug("frame rate")
			frames = 0
			lastReport = hrtime.Now()
		}
	}

	return nil
}

func main() {
	packPath := flag.String("pack", "shaders.spk", "shader pack holding triangle.vert and triangle.frag")
	envFile := flag.String("env", "", "dotenv file with GPUCORE_* settings")
	flag.Parse()

	if err := run(*packPath, *envFile); err != nil {
		log.Fatalf("%+v", err)
	}
}
