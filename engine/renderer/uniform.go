package renderer

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// UniformBufferObjectSize is the size in bytes of the serialized uniform block.
const UniformBufferObjectSize = 3 * 16 * 4

// UniformBufferObject is the per frame transform block consumed by the vertex
// shader. There is one per frame slot, never one per swapchain image.
type UniformBufferObject struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

// Bytes serializes the three matrices column-major, little endian.
func (u *UniformBufferObject) Bytes() []byte {
	out := make([]byte, 0, UniformBufferObjectSize)
	for _, m := range [3]*mgl32.Mat4{&u.Model, &u.View, &u.Proj} {
		for _, f := range m {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
	}
	return out
}

// ClipConvention selects the clip space the projection targets.
type ClipConvention uint8

const (
	// ClipVulkan has +Y pointing down in clip space, so the projection flips Y.
	ClipVulkan ClipConvention = iota
	// ClipWebGPU keeps +Y up; no flip.
	ClipWebGPU
)

func (c ClipConvention) String() string {
	switch c {
	case ClipVulkan:
		return "vulkan"
	case ClipWebGPU:
		return "webgpu"
	default:
		return fmt.Sprintf("clip(%d)", uint8(c))
	}
}

func ParseClipConvention(s string) (ClipConvention, error) {
	switch s {
	case "", "vulkan":
		return ClipVulkan, nil
	case "webgpu":
		return ClipWebGPU, nil
	default:
		return 0, fmt.Errorf("unknown clip convention %q", s)
	}
}

const (
	FieldOfView = 45.0
	NearPlane   = 0.1
	FarPlane    = 10.0
	// RotationRate is the model spin in degrees per second.
	RotationRate = 90.0
)

var (
	cameraEye    = mgl32.Vec3{2, 2, 2}
	cameraCenter = mgl32.Vec3{0, 0, 0}
	cameraUp     = mgl32.Vec3{0, 0, 1}
)

// Perspective is the right-handed perspective projection with a [0, 1] depth
// range. fovY is in radians.
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := float32(1.0 / math.Tan(float64(fovY)/2.0))
	r := far / (near - far)
	return mgl32.Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, r, -1,
		0, 0, r * near, 0,
	}
}

func preRotation(t SurfaceTransform) (float32, bool) {
	switch t {
	case SurfaceTransformRotate90:
		return mgl32.DegToRad(90), true
	case SurfaceTransformRotate180:
		return mgl32.DegToRad(180), true
	case SurfaceTransformRotate270:
		return mgl32.DegToRad(270), true
	default:
		return 0, false
	}
}

// ComputeUniforms builds the transform block for the given elapsed time and
// target size. The model spins about the vertical (Z) axis.
func ComputeUniforms(elapsed time.Duration, width, height uint32, clip ClipConvention, transform SurfaceTransform) UniformBufferObject {
	angle := mgl32.DegToRad(float32(elapsed.Seconds()) * RotationRate)
	model := mgl32.HomogRotate3DZ(angle)

	view := mgl32.LookAtV(cameraEye, cameraCenter, cameraUp)

	aspect := float32(1.0)
	if height != 0 {
		aspect = float32(width) / float32(height)
	}
	proj := Perspective(mgl32.DegToRad(FieldOfView), aspect, NearPlane, FarPlane)
	if clip == ClipVulkan {
		proj[5] *= -1
	}
	if rot, ok := preRotation(transform); ok {
		proj = mgl32.HomogRotate3DZ(rot).Mul4(proj)
	}

	return UniformBufferObject{
		Model: model,
		View:  view,
		Proj:  proj,
	}
}
