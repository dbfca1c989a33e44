package gpucore_test

//go:generate glslc -o testdata/saxpy.comp.spv testdata/saxpy.comp
//go:generate glslc -o testdata/double.comp.spv testdata/double.comp
//go:generate glslc -o testdata/triangle.vert.spv testdata/triangle.vert
//go:generate glslc -o testdata/triangle.frag.spv testdata/triangle.frag

import (
	"encoding/binary"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/gpucore"
)

// openCore returns a headless core, skipping the test when no Vulkan device
// is available.
func openCore(t *testing.T) *gpucore.Core {
	t.Helper()

	config := gpucore.DefaultConfig()
	config.ApplicationName = t.Name()
	c, err := gpucore.New(config)
	if err != nil {
		t.Skipf("no usable Vulkan device: %v", err)
	}
	t.Cleanup(func() {
		require.NoError(t, c.Close())
	})
	return c
}

func loadShader(t *testing.T, c *gpucore.Core, stage gpucore.ShaderStage, name string) gpucore.Shader {
	t.Helper()

	spirv, err := os.ReadFile("testdata/" + name)
	if os.IsNotExist(err) {
		t.Skipf("%s not compiled, run go generate", name)
	}
	require.NoError(t, err)

	shader, err := c.CreateShader(stage, spirv)
	require.NoError(t, err)
	return shader
}

func floatBytes(values []float32) []byte {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return data
}

func bytesFloats(data []byte) []float32 {
	values := make([]float32, len(data)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return values
}

func download(t *testing.T, c *gpucore.Core, buffer gpucore.Buffer, size int) []byte {
	t.Helper()

	staging, err := c.CreateStagingBuffer(size)
	require.NoError(t, err)

	rec, err := c.Begin(gpucore.CommandBuffer{})
	require.NoError(t, err)
	rec.DownloadBuffer(buffer, 0, staging, 0, size)
	cb, err := rec.End()
	require.NoError(t, err)

	require.NoError(t, c.Execute(cb))
	require.NoError(t, c.Wait(cb, 10*time.Second))

	mapped, err := c.Mapping(staging)
	require.NoError(t, err)
	out := append([]byte(nil), mapped...)
	require.NoError(t, c.Free(cb, staging))
	return out
}

func TestBufferContentRoundTrip(t *testing.T) {
	c := openCore(t)

	content := make([]byte, 1<<20)
	for i := range content {
		content[i] = byte(i * 7)
	}

	staging, err := c.CreateStagingBuffer(len(content))
	require.NoError(t, err)
	mapped, err := c.Mapping(staging)
	require.NoError(t, err)
	copy(mapped, content)

	fromStaging, err := c.CreateBuffer(gpucore.BufferConfig{Size: len(content), Usage: gpucore.UsageStorage, Content: staging})
	require.NoError(t, err)
	assert.Equal(t, content, download(t, c, fromStaging, len(content)))

	inline, err := c.CreateBuffer(gpucore.BufferConfig{Size: 256, Usage: gpucore.UsageUniform, Data: content[:256]})
	require.NoError(t, err)
	assert.Equal(t, content[:256], download(t, c, inline, 256))

	staged, err := c.CreateBuffer(gpucore.BufferConfig{Size: len(content), Usage: gpucore.UsageVertex, Data: content})
	require.NoError(t, err)
	assert.Equal(t, content, download(t, c, staged, len(content)))

	require.NoError(t, c.Free(staging, fromStaging, inline, staged))
}

func TestTextureContentRoundTrip(t *testing.T) {
	c := openCore(t)

	const width, height = 32, 16
	content := make([]byte, width*height*4)
	for i := range content {
		content[i] = byte(i)
	}

	texture, err := c.CreateTexture(gpucore.TextureConfig{
		Width:  width,
		Height: height,
		Format: gpucore.FormatRGBA8,
		Usage:  gpucore.TextureSampled,
		Data:   content,
	})
	require.NoError(t, err)

	staging, err := c.CreateStagingBuffer(len(content))
	require.NoError(t, err)

	rec, err := c.Begin(gpucore.CommandBuffer{})
	require.NoError(t, err)
	rec.DownloadTexture(texture, staging)
	cb, err := rec.End()
	require.NoError(t, err)
	require.NoError(t, c.Execute(cb))
	require.NoError(t, c.Wait(cb, 10*time.Second))

	mapped, err := c.Mapping(staging)
	require.NoError(t, err)
	assert.Equal(t, content, mapped)

	require.NoError(t, c.Free(cb, staging, texture))
}

func TestTextureContentFromStaging(t *testing.T) {
	c := openCore(t)

	const width, height = 16, 8
	content := make([]byte, width*height*4)
	for i := range content {
		content[i] = byte(255 - i%256)
	}

	source, err := c.CreateStagingBuffer(len(content))
	require.NoError(t, err)
	mapped, err := c.Mapping(source)
	require.NoError(t, err)
	copy(mapped, content)

	texture, err := c.CreateTexture(gpucore.TextureConfig{
		Width:   width,
		Height:  height,
		Format:  gpucore.FormatRGBA8,
		Usage:   gpucore.TextureSampled,
		Content: source,
	})
	require.NoError(t, err)

	target, err := c.CreateStagingBuffer(len(content))
	require.NoError(t, err)

	rec, err := c.Begin(gpucore.CommandBuffer{})
	require.NoError(t, err)
	rec.DownloadTexture(texture, target)
	cb, err := rec.End()
	require.NoError(t, err)
	require.NoError(t, c.Execute(cb))
	require.NoError(t, c.Wait(cb, 10*time.Second))

	downloaded, err := c.Mapping(target)
	require.NoError(t, err)
	assert.Equal(t, content, downloaded)

	require.NoError(t, c.Free(cb, target, texture, source))
}

func TestInvalidStagesFailAtBuild(t *testing.T) {
	c := openCore(t)
	compute := loadShader(t, c, gpucore.StageCompute, "double.comp.spv")
	vertex := loadShader(t, c, gpucore.StageVertex, "triangle.vert.spv")

	_, err := c.CreateComputePass(gpucore.ComputePassConfig{Shaders: []gpucore.Shader{compute, vertex}})
	assert.ErrorIs(t, err, gpucore.ErrInvalidStages)

	_, err = c.CreateComputePass(gpucore.ComputePassConfig{Shaders: []gpucore.Shader{vertex}})
	assert.ErrorIs(t, err, gpucore.ErrInvalidStages)

	_, err = c.CreateRenderPass(gpucore.RenderPassConfig{Shaders: []gpucore.Shader{compute}})
	assert.ErrorIs(t, err, gpucore.ErrInvalidStages)
}

func TestUniformDoubling(t *testing.T) {
	c := openCore(t)
	shader := loadShader(t, c, gpucore.StageCompute, "double.comp.spv")

	values := make([]float32, 128)
	for i := range values {
		values[i] = float32(i) * 0.5
	}

	staging, err := c.CreateStagingBuffer(len(values) * 4)
	require.NoError(t, err)
	mapped, err := c.Mapping(staging)
	require.NoError(t, err)
	copy(mapped, floatBytes(values))

	input, err := c.CreateBuffer(gpucore.BufferConfig{Size: len(values) * 4, Usage: gpucore.UsageUniform, Content: staging})
	require.NoError(t, err)
	output, err := c.CreateBuffer(gpucore.BufferConfig{Size: len(values) * 4, Usage: gpucore.UsageStorage})
	require.NoError(t, err)

	pass, err := c.CreateComputePass(gpucore.ComputePassConfig{
		Shaders: []gpucore.Shader{shader},
		Inputs: gpucore.InputLayout{Sets: []gpucore.SetLayout{{Bindings: []gpucore.BindingLayout{
			{Slot: 0, Type: gpucore.BindingUniformBuffer},
			{Slot: 1, Type: gpucore.BindingStorageBuffer},
		}}}},
	})
	require.NoError(t, err)

	set, err := c.CreateInputSet(gpucore.InputSetConfig{
		Pass: pass,
		Set:  0,
		Bindings: []gpucore.Binding{
			{Slot: 0, Buffer: input},
			{Slot: 1, Buffer: output},
		},
	})
	require.NoError(t, err)

	rec, err := c.Begin(gpucore.CommandBuffer{})
	require.NoError(t, err)
	scope := rec.SetComputePass(pass)
	scope.BindInputSet(set)
	scope.Dispatch(2, 1, 1)
	rec.Barrier(gpucore.StageComputeShader, gpucore.StageTransfer)
	rec.DownloadBuffer(output, 0, staging, 0, len(values)*4)
	cb, err := rec.End()
	require.NoError(t, err)

	require.NoError(t, c.Execute(cb))
	require.NoError(t, c.Wait(cb, 10*time.Second))

	got := bytesFloats(mapped)
	for i, v := range values {
		require.Equal(t, v*2, got[i], "element %d", i)
	}
}

func TestSAXPY(t *testing.T) {
	c := openCore(t)
	shader := loadShader(t, c, gpucore.StageCompute, "saxpy.comp.spv")

	const n = 1 << 22
	const a = float32(2.5)
	x := make([]float32, n)
	y := make([]float32, n)
	for i := range x {
		x[i] = float32(i % 1000)
		y[i] = float32(i%7) - 3
	}

	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params[0:], math.Float32bits(a))
	binary.LittleEndian.PutUint32(params[4:], n)

	paramBuffer, err := c.CreateBuffer(gpucore.BufferConfig{Size: len(params), Usage: gpucore.UsageUniform, Data: params})
	require.NoError(t, err)
	xBuffer, err := c.CreateBuffer(gpucore.BufferConfig{Size: n * 4, Usage: gpucore.UsageStorage, Data: floatBytes(x)})
	require.NoError(t, err)
	yBuffer, err := c.CreateBuffer(gpucore.BufferConfig{Size: n * 4, Usage: gpucore.UsageStorage, Data: floatBytes(y)})
	require.NoError(t, err)
	zBuffer, err := c.CreateBuffer(gpucore.BufferConfig{Size: n * 4, Usage: gpucore.UsageStorage})
	require.NoError(t, err)

	pass, err := c.CreateComputePass(gpucore.ComputePassConfig{
		Shaders: []gpucore.Shader{shader},
		Inputs: gpucore.InputLayout{Sets: []gpucore.SetLayout{{Bindings: []gpucore.BindingLayout{
			{Slot: 0, Type: gpucore.BindingUniformBuffer},
			{Slot: 1, Type: gpucore.BindingStorageBuffer},
			{Slot: 2, Type: gpucore.BindingStorageBuffer},
			{Slot: 3, Type: gpucore.BindingStorageBuffer},
		}}}},
	})
	require.NoError(t, err)

	set, err := c.CreateInputSet(gpucore.InputSetConfig{
		Pass: pass,
		Bindings: []gpucore.Binding{
			{Slot: 0, Buffer: paramBuffer},
			{Slot: 1, Buffer: xBuffer},
			{Slot: 2, Buffer: yBuffer},
			{Slot: 3, Buffer: zBuffer},
		},
	})
	require.NoError(t, err)

	rec, err := c.Begin(gpucore.CommandBuffer{})
	require.NoError(t, err)
	scope := rec.SetComputePass(pass)
	scope.BindInputSet(set)
	scope.Dispatch((n+255)/256, 1, 1)
	cb, err := rec.End()
	require.NoError(t, err)

	require.NoError(t, c.Execute(cb))
	require.NoError(t, c.Wait(cb, 30*time.Second))

	z := bytesFloats(download(t, c, zBuffer, n*4))
	for i := range z {
		if z[i] != a*x[i]+y[i] {
			t.Fatalf("z[%d] = %v, want %v", i, z[i], a*x[i]+y[i])
		}
	}
}

func TestRerecordDoesNotGrowTable(t *testing.T) {
	c := openCore(t)

	buffer, err := c.CreateBuffer(gpucore.BufferConfig{Size: 64, Usage: gpucore.UsageStorage})
	require.NoError(t, err)

	var cb gpucore.CommandBuffer
	live := -1
	for frame := 0; frame < 100; frame++ {
		rec, err := c.Begin(cb)
		require.NoError(t, err)

		_, err = c.Begin(gpucore.CommandBuffer{})
		require.ErrorIs(t, err, gpucore.ErrRecordingActive)

		rec.UpdateBuffer(buffer, 0, floatBytes([]float32{float32(frame)}))
		cb, err = rec.End()
		require.NoError(t, err)
		require.NoError(t, c.Execute(cb))

		if live < 0 {
			live = c.Len()
		}
		require.Equal(t, live, c.Len())
	}
	require.NoError(t, c.Wait(cb, 10*time.Second))
}
