package main

import (
	"image"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadObj = `mtllib quad.mtl
o quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
usemtl white
f 1/1 2/2 3/3 4/4
`

const quadMtl = `newmtl white
Kd 1 1 1
`

func TestDecodeMeshFansFaces(t *testing.T) {
	mesh, err := DecodeMesh(strings.NewReader(quadObj), strings.NewReader(quadMtl))
	require.NoError(t, err)

	assert.Len(t, mesh.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, mesh.Indices)
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, mesh.Vertices[2].Position)
	// Texture rows run top down.
	assert.Equal(t, mgl32.Vec2{1, 0}, mesh.Vertices[2].TexCoord)
	assert.Len(t, mesh.vertexBytes(), 4*32)
	assert.Len(t, mesh.indexBytes(), 6*4)
}

func TestTransformFlipsY(t *testing.T) {
	ubo := transform(0, 800, 600)
	assert.Less(t, ubo.Proj[5], float32(0))
	assert.Len(t, ubo.bytes(), 3*16*4)

	// A zero-sized window must not divide by zero.
	ubo = transform(1, 0, 0)
	assert.False(t, mgl32.Mat4{}.ApproxEqual(ubo.Proj))
}

func TestToRGBAScalesLongSide(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 400, 100))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}

	rgba := toRGBA(src, 200)
	assert.Equal(t, image.Rect(0, 0, 200, 50), rgba.Rect)
	assert.Len(t, rgba.Pix, 200*50*4)
	assert.InDelta(t, 0xff, float64(rgba.Pix[len(rgba.Pix)/2]), 1)

	rgba = toRGBA(src, 0)
	assert.Equal(t, image.Rect(0, 0, 400, 100), rgba.Rect)
	assert.Equal(t, 400*4, rgba.Stride)
}
