package metadata

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only front faces are culled. */
	FaceCullModeFront FaceCullMode = 0x1
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
	/** @brief Both front and back faces are culled. */
	FaceCullModeFrontAndBack FaceCullMode = 0x3
)

// Extent is a drawable size in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent) Aspect() float32 {
	if e.Height == 0 {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// SurfaceStatus is the non-fatal outcome of an acquire or present.
type SurfaceStatus int

const (
	SurfaceOptimal SurfaceStatus = iota
	SurfaceSuboptimal
	SurfaceOutOfDate
)

func (s SurfaceStatus) String() string {
	switch s {
	case SurfaceOptimal:
		return "optimal"
	case SurfaceSuboptimal:
		return "suboptimal"
	case SurfaceOutOfDate:
		return "out_of_date"
	default:
		return "unknown"
	}
}

/**
 * @brief Camera data read by the scene vertex shader at set 0, binding 0.
 * Layout matches std140: two mat4 followed by a vec4.
 */
type CameraUniform struct {
	Projection mgl32.Mat4
	View       mgl32.Mat4
	LightPos   mgl32.Vec4
}

const CameraUniformSize = uint64(unsafe.Sizeof(CameraUniform{}))

func (u *CameraUniform) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(u)), CameraUniformSize)
}

/** @brief Size of the per-draw push constant block: one mat4. */
const PushConstantSize = uint32(unsafe.Sizeof(mgl32.Mat4{}))
