package main

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
)

type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	TexCoord mgl32.Vec2
}

// Mesh is an indexed triangle list.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

func (m *Mesh) addVertex(decoder *obj.Decoder, uniqueVertices map[[2]int]uint32, face obj.Face, faceIndex int) {
	vertInd := face.Vertices[faceIndex]
	uvInd := -1
	if faceIndex < len(face.Uvs) {
		uvInd = face.Uvs[faceIndex]
	}

	key := [2]int{vertInd, uvInd}
	index, vertexExists := uniqueVertices[key]
	if !vertexExists {
		vert := Vertex{Position: mgl32.Vec3{
			decoder.Vertices[vertInd*3],
			decoder.Vertices[vertInd*3+1],
			decoder.Vertices[vertInd*3+2],
		}, Color: mgl32.Vec3{1, 1, 1}}

		if uvInd >= 0 {
			vert.TexCoord = mgl32.Vec2{
				decoder.Uvs[uvInd*2],
				1.0 - decoder.Uvs[uvInd*2+1],
			}
		}

		index = uint32(len(m.Vertices))
		m.Vertices = append(m.Vertices, vert)
		uniqueVertices[key] = index
	}

	m.Indices = append(m.Indices, index)
}

// DecodeMesh reads a Wavefront obj and its material library, fanning every
// face into triangles.
func DecodeMesh(objReader, mtlReader io.Reader) (*Mesh, error) {
	decoder, err := obj.DecodeReader(objReader, mtlReader)
	if err != nil {
		return nil, errors.Wrap(err, "decoding mesh")
	}

	mesh := &Mesh{}
	uniqueVertices := make(map[[2]int]uint32)
	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				mesh.addVertex(decoder, uniqueVertices, face, 0)
				mesh.addVertex(decoder, uniqueVertices, face, i-1)
				mesh.addVertex(decoder, uniqueVertices, face, i)
			}
		}
	}

	if len(mesh.Indices) == 0 {
		return nil, errors.New("mesh has no faces")
	}
	return mesh, nil
}

// LoadMesh reads an obj file and the material library next to it.
func LoadMesh(objPath, mtlPath string) (*Mesh, error) {
	meshFile, err := os.Open(objPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening mesh")
	}
	defer meshFile.Close()

	matFile, err := os.Open(mtlPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening materials")
	}
	defer matFile.Close()

	return DecodeMesh(meshFile, matFile)
}

func (m *Mesh) vertexBytes() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, m.Vertices)
	return buf.Bytes()
}

func (m *Mesh) indexBytes() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, m.Indices)
	return buf.Bytes()
}

// LoadImage decodes a png into tightly packed RGBA8 texels. Images with a
// side longer than maxSize are scaled down to fit; 0 disables scaling.
func LoadImage(path string, maxSize int) (*image.RGBA, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening texture")
	}
	defer file.Close()

	decodedImage, err := png.Decode(file)
	if err != nil {
		return nil, errors.Wrap(err, "decoding texture")
	}

	return toRGBA(decodedImage, maxSize), nil
}

func toRGBA(src image.Image, maxSize int) *image.RGBA {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		rgba := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)
		return rgba
	}

	if width >= height {
		width, height = maxSize, height*maxSize/width
	} else {
		width, height = width*maxSize/height, maxSize
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(rgba, rgba.Bounds(), src, bounds, draw.Src, nil)
	return rgba
}
