// Command saxpy computes z = a*x + y on the GPU and checks the result on the
// CPU. It needs no display.
package main

import (
	"encoding/binary"
	"flag"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	log "github.com/sirupsen/logrus"
	"github.com/vkngwrapper/gpucore"
	"github.com/vkngwrapper/gpucore/shaderpack"
)

const groupSize = 256

type params struct {
	pack string
	env  string
	n    int
	a    float32
}

func floatBytes(values []float32) []byte {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return data
}

func openCore(envFile string) (*gpucore.Core, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	config, err := gpucore.ConfigFromEnv(files...)
	if err != nil {
		return nil, err
	}
	log.SetLevel(config.LogLevel)

	return gpucore.New(config, gpucore.WithLogger(log.StandardLogger()))
}

func run(p params) error {
	pack, err := shaderpack.OpenFile(p.pack)
	if err != nil {
		return err
	}
	defer pack.Close()

	c, err := openCore(p.env)
	if err != nil {
		return err
	}
	defer c.Close()

	shader, err := pack.Load(c, "saxpy.comp")
	if err != nil {
		return err
	}

	x := make([]float32, p.n)
	y := make([]float32, p.n)
	for i := range x {
		x[i] = float32(i % 1000)
		y[i] = float32(i%7) - 3
	}

	uniform := make([]byte, 16)
	binary.LittleEndian.PutUint32(uniform[0:], math.Float32bits(p.a))
	binary.LittleEndian.PutUint32(uniform[4:], uint32(p.n))

	paramBuffer, err := c.CreateBuffer(gpucore.BufferConfig{Size: len(uniform), Usage: gpucore.UsageUniform, Data: uniform})
	if err != nil {
		return err
	}
	xBuffer, err := c.CreateBuffer(gpucore.BufferConfig{Size: p.n * 4, Usage: gpucore.UsageStorage, Data: floatBytes(x)})
	if err != nil {
		return err
	}
	yBuffer, err := c.CreateBuffer(gpucore.BufferConfig{Size: p.n * 4, Usage: gpucore.UsageStorage, Data: floatBytes(y)})
	if err != nil {
		return err
	}
	zBuffer, err := c.CreateBuffer(gpucore.BufferConfig{Size: p.n * 4, Usage: gpucore.UsageStorage})
	if err != nil {
		return err
	}
	result, err := c.CreateStagingBuffer(p.n * 4)
	if err != nil {
		return err
	}

	pass, err := c.CreateComputePass(gpucore.ComputePassConfig{
		Shaders: []gpucore.Shader{shader},
		Inputs: gpucore.InputLayout{Sets: []gpucore.SetLayout{{Bindings: []gpucore.BindingLayout{
			{Slot: 0, Type: gpucore.BindingUniformBuffer},
			{Slot: 1, Type: gpucore.BindingStorageBuffer},
			{Slot: 2, Type: gpucore.BindingStorageBuffer},
			{Slot: 3, Type: gpucore.BindingStorageBuffer},
		}}}},
	})
	if err != nil {
		return err
	}

	set, err := c.CreateInputSet(gpucore.InputSetConfig{
		Pass: pass,
		Bindings: []gpucore.Binding{
			{Slot: 0, Buffer: paramBuffer},
			{Slot: 1, Buffer: xBuffer},
			{Slot: 2, Buffer: yBuffer},
			{Slot: 3, Buffer: zBuffer},
		},
	})
	if err != nil {
		return err
	}

	rec, err := c.Begin(gpucore.CommandBuffer{})
	if err != nil {
		return err
	}
	scope := rec.SetComputePass(pass)
	scope.BindInputSet(set)
	scope.Dispatch((p.n+groupSize-1)/groupSize, 1, 1)
	rec.Barrier(gpucore.StageComputeShader, gpucore.StageTransfer)
	rec.DownloadBuffer(zBuffer, 0, result, 0, p.n*4)
	cb, err := rec.End()
	if err != nil {
		return err
	}

	start := hrtime.Now()
	if err := c.Execute(cb); err != nil {
		return err
	}
	if err := c.Wait(cb, time.Minute); err != nil {
		return err
	}
	elapsed := hrtime.Since(start)

	z, err := c.Mapping(result)
	if err != nil {
		return err
	}
	for i := 0; i < p.n; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(z[i*4:]))
		if want := p.a*x[i] + y[i]; got != want {
			return errors.Newf("z[%d] = %v, want %v", i, got, want)
		}
	}

	log.WithFields(log.Fields{"n": p.n, "elapsed": elapsed}).Info("saxpy verified")
	return nil
}

func main() {
	var p params
	var a float64
	flag.StringVar(&p.pack, "pack", "shaders.spk", "shader pack holding saxpy.comp")
	flag.StringVar(&p.env, "env", "", "dotenv file with GPUCORE_* settings")
	flag.IntVar(&p.n, "n", 1<<22, "vector length")
	flag.Float64Var(&a, "a", 2.5, "scale factor")
	flag.Parse()
	p.a = float32(a)

	if err := run(p); err != nil {
		log.Fatalf("%+v", err)
	}
}
