package metadata

import (
	"unsafe"
)

/**
 * @brief Interleaved vertex consumed by the scene pipeline.
 * Locations: 0 position, 1 normal, 2 texcoord.
 */
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
}

const VertexSize = uint32(unsafe.Sizeof(Vertex{}))

/**
 * @brief The single shared vertex/index buffer pair of a loaded scene.
 * Indices are already offset to address the shared vertex array.
 */
type GeometryData struct {
	Vertices []Vertex
	Indices  []uint32
}

func (g *GeometryData) VertexBytes() []byte {
	if len(g.Vertices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&g.Vertices[0])), len(g.Vertices)*int(VertexSize))
}

func (g *GeometryData) IndexBytes() []byte {
	if len(g.Indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&g.Indices[0])), len(g.Indices)*4)
}
