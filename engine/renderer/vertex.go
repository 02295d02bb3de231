package renderer

import (
	"encoding/binary"
	"math"
)

// Vertex is a 2D position with an RGB color, tightly packed (20 bytes).
type Vertex struct {
	Pos   [2]float32
	Color [3]float32
}

const (
	VertexSize = 20
	IndexSize  = 2
)

// VertexLayoutDesc is the fixed layout of Vertex: location 0 is the position,
// location 1 the color.
var VertexLayoutDesc = VertexLayout{
	Stride: VertexSize,
	Attributes: []VertexAttribute{
		{Location: 0, Format: VertexFormatFloat32x2, Offset: 0},
		{Location: 1, Format: VertexFormatFloat32x3, Offset: 8},
	},
}

// QuadVertices and QuadIndices describe the colored quad drawn every frame.
var QuadVertices = []Vertex{
	{Pos: [2]float32{-0.5, -0.5}, Color: [3]float32{1.0, 0.0, 0.0}},
	{Pos: [2]float32{0.5, -0.5}, Color: [3]float32{0.0, 1.0, 0.0}},
	{Pos: [2]float32{0.5, 0.5}, Color: [3]float32{0.0, 0.0, 1.0}},
	{Pos: [2]float32{-0.5, 0.5}, Color: [3]float32{1.0, 1.0, 1.0}},
}

var QuadIndices = []uint16{0, 1, 2, 2, 3, 0}

func VertexBytes(vertices []Vertex) []byte {
	out := make([]byte, 0, len(vertices)*VertexSize)
	for _, v := range vertices {
		for _, f := range v.Pos {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
		for _, f := range v.Color {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
	}
	return out
}

func IndexBytes(indices []uint16) []byte {
	out := make([]byte, 0, len(indices)*IndexSize)
	for _, i := range indices {
		out = binary.LittleEndian.AppendUint16(out, i)
	}
	return out
}
