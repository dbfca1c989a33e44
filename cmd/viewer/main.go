// Command viewer spins a textured obj model in a window.
//
//	viewer -pack viewer.spk -model viking_room.obj -materials viking_room.mtl -texture viking_room.png
//
// The pack must hold viewer.vert and viewer.frag, built from the shaders
// directory with glslc and packshaders.
package main

//go:generate glslc -o shaders/viewer.vert.spv shaders/viewer.vert
//go:generate glslc -o shaders/viewer.frag.spv shaders/viewer.frag
//go:generate go run ../packshaders -o viewer.spk shaders/viewer.vert.spv shaders/viewer.frag.spv

import (
	"bytes"
	"encoding/binary"
	"flag"
	"image"
	"math"
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
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

type UniformBufferObject struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

func vertexLayout() gpucore.VertexLayout {
	v := Vertex{}
	return gpucore.VertexLayout{Bindings: []gpucore.VertexBinding{
		{
			Binding: 0,
			Stride:  int(unsafe.Sizeof(v)),
			Attributes: []gpucore.VertexAttribute{
				{Location: 0, Format: gpucore.VertexFloat3, Offset: int(unsafe.Offsetof(v.Position))},
				{Location: 1, Format: gpucore.VertexFloat3, Offset: int(unsafe.Offsetof(v.Color))},
				{Location: 2, Format: gpucore.VertexFloat2, Offset: int(unsafe.Offsetof(v.TexCoord))},
			},
		},
	}}
}

func transform(seconds float64, width, height int) UniformBufferObject {
	timePeriod := float32(math.Mod(seconds, 4.0))

	ubo := UniformBufferObject{}
	ubo.Model = mgl32.HomogRotate3D(timePeriod*mgl32.DegToRad(90.0), mgl32.Vec3{0, 0, 1})
	ubo.View = mgl32.LookAt(2, 2, 2, 0, 0, 0, 0, 0, 1)

	aspectRatio := float32(1)
	if height > 0 {
		aspectRatio = float32(width) / float32(height)
	}
	ubo.Proj = mgl32.Perspective(mgl32.DegToRad(45), aspectRatio, 0.1, 10)
	// Vulkan clip space points Y down.
	ubo.Proj[5] *= -1
	return ubo
}

func (ubo UniformBufferObject) bytes() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, ubo)
	return buf.Bytes()
}

type viewer struct {
	core   *gpucore.Core
	window gpucore.Window
	pass   gpucore.RenderPass
	set    gpucore.InputSet

	vertices gpucore.Buffer
	indices  gpucore.Buffer
	uniform  gpucore.Buffer
	count    int
}

func (v *viewer) load(pack *shaderpack.Pack, mesh *Mesh, img *image.RGBA) error {
	c := v.core

	vertexShader, err := pack.Load(c, "viewer.vert")
	if err != nil {
		return err
	}
	fragmentShader, err := pack.Load(c, "viewer.frag")
	if err != nil {
		return err
	}

	texture, err := c.CreateTexture(gpucore.TextureConfig{
		Width:  img.Rect.Dx(),
		Height: img.Rect.Dy(),
		Format: gpucore.FormatRGBA8SRGB,
		Usage:  gpucore.TextureSampled,
		Data:   img.Pix,
	})
	if err != nil {
		return err
	}

	vertexData := mesh.vertexBytes()
	v.vertices, err = c.CreateBuffer(gpucore.BufferConfig{Size: len(vertexData), Usage: gpucore.UsageVertex, Data: vertexData})
	if err != nil {
		return err
	}
	indexData := mesh.indexBytes()
	v.indices, err = c.CreateBuffer(gpucore.BufferConfig{Size: len(indexData), Usage: gpucore.UsageIndex, Data: indexData})
	if err != nil {
		return err
	}
	v.count = len(mesh.Indices)

	v.uniform, err = c.CreateBuffer(gpucore.BufferConfig{
		Size:  int(unsafe.Sizeof(UniformBufferObject{})),
		Usage: gpucore.UsageUniform,
	})
	if err != nil {
		return err
	}

	v.pass, err = c.CreateRenderPass(gpucore.RenderPassConfig{
		Shaders: []gpucore.Shader{vertexShader, fragmentShader},
		Target:  gpucore.TargetWindow{Window: v.window},
		Inputs: gpucore.InputLayout{Sets: []gpucore.SetLayout{{Bindings: []gpucore.BindingLayout{
			{Slot: 0, Type: gpucore.BindingUniformBuffer},
			{Slot: 1, Type: gpucore.BindingSampler},
		}}}},
		Vertex:       vertexLayout(),
		Cull:         gpucore.CullBack,
		Winding:      gpucore.WindingCounterClockwise,
		DepthCompare: gpucore.CompareLess,
		DepthWrite:   true,
		Clear:        gpucore.ClearAll,
	})
	if err != nil {
		return err
	}

	v.set, err = c.CreateInputSet(gpucore.InputSetConfig{
		Pass: v.pass,
		Bindings: []gpucore.Binding{
			{Slot: 0, Buffer: v.uniform},
			{Slot: 1, Texture: texture},
		},
	})
	return err
}

func (v *viewer) record(cb gpucore.CommandBuffer, seconds float64) (gpucore.CommandBuffer, error) {
	c := v.core

	width, height, err := c.WindowExtent(v.window)
	if err != nil {
		return cb, err
	}

	rec, err := c.Begin(cb)
	if err != nil {
		return cb, err
	}
	rec.UpdateBuffer(v.uniform, 0, transform(seconds, width, height).bytes())
	rec.Barrier(gpucore.StageTransfer, gpucore.StageVertexShader)
	rec.BindVertexBuffer(0, v.vertices, 0)
	rec.BindIndexBuffer(v.indices, 0, gpucore.IndexUint32)

	scope := rec.SetRenderPass(v.pass)
	scope.BindInputSet(v.set)
	scope.DrawIndexed(v.count, 0, 0)
	return rec.End()
}

type options struct {
	pack       string
	env        string
	model      string
	materials  string
	texture    string
	maxTexture int
}

func run(opts options) error {
	mesh, err := LoadMesh(opts.model, opts.materials)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"vertices": len(mesh.Vertices), "indices": len(mesh.Indices)}).Info("loaded mesh")

	img, err := LoadImage(opts.texture, opts.maxTexture)
	if err != nil {
		return err
	}

	pack, err := shaderpack.OpenFile(opts.pack)
	if err != nil {
		return err
	}
	defer pack.Close()

	var files []string
	if opts.env != "" {
		files = append(files, opts.env)
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

	v := &viewer{core: c}
	v.window, err = c.CreateWindow(gpucore.WindowConfig{Title: "Viewer", Width: 800, Height: 600, Resizable: true})
	if err != nil {
		return err
	}
	if err := v.load(pack, mesh, img); err != nil {
		return errors.Wrap(err, "loading scene")
	}

	var cb gpucore.CommandBuffer
	for !c.CloseRequested(v.window) && !c.KeyDown(gpucore.KeyEscape) {
		c.PollEvents()

		if cb, err = v.record(cb, hrtime.Now().Seconds()); err != nil {
			return err
		}
		if err := c.Execute(cb); err != nil {
			return err
		}
		if err := c.Present(v.window); err != nil {
			return err
		}
	}

	return nil
}

func main() {
	var opts options
	flag.StringVar(&opts.pack, "pack", "viewer.spk", "shader pack holding viewer.vert and viewer.frag")
	flag.StringVar(&opts.env, "env", "", "dotenv file with GPUCORE_* settings")
	flag.StringVar(&opts.model, "model", "viking_room.obj", "obj mesh")
	flag.StringVar(&opts.materials, "materials", "viking_room.mtl", "material library of the mesh")
	flag.StringVar(&opts.texture, "texture", "viking_room.png", "png texture")
	flag.IntVar(&opts.maxTexture, "max-texture", 2048, "longest texture side, larger images are scaled down")
	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatalf("%+v", err)
	}
}
