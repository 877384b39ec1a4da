package metadata

import "unsafe"

/**
 * @brief Overlay vertex: screen position in pixels, atlas uv and color.
 */
type UIVertex struct {
	Position [2]float32
	UV       [2]float32
	Color    [4]float32
}

const UIVertexSize = uint32(unsafe.Sizeof(UIVertex{}))

/**
 * @brief A run of overlay indices sharing one scissor rectangle.
 */
type UIDrawCommand struct {
	IndexOffset uint32
	IndexCount  uint32
	/** @brief Scissor as x, y, width, height in pixels. */
	Clip [4]int32
}

/**
 * @brief Everything the overlay pass needs to draw one frame of UI.
 */
type UIDrawData struct {
	Vertices    []UIVertex
	Indices     []uint32
	Commands    []UIDrawCommand
	DisplaySize [2]float32
}

func (d *UIDrawData) Empty() bool {
	return d == nil || len(d.Indices) == 0
}

func (d *UIDrawData) VertexBytes() []byte {
	if len(d.Vertices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&d.Vertices[0])), len(d.Vertices)*int(UIVertexSize))
}

func (d *UIDrawData) IndexBytes() []byte {
	if len(d.Indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&d.Indices[0])), len(d.Indices)*4)
}
