package renderer

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfDate means the swapchain no longer matches the surface and must be
	// rebuilt before any further acquire or present.
	ErrOutOfDate = errors.New("swapchain out of date")
	// ErrSuboptimal means the swapchain still works but should be rebuilt.
	ErrSuboptimal          = errors.New("swapchain suboptimal")
	ErrFenceTimeout        = errors.New("fence wait timed out")
	ErrDeviceLost          = errors.New("device lost")
	ErrMappedRangeOverflow = errors.New("write exceeds mapped range")
	ErrRegionUnmapped      = errors.New("mapped region already unmapped")
	ErrInvalidImageIndex   = errors.New("invalid swapchain image index")
	ErrInvalidFrameIndex   = errors.New("invalid frame index")
	ErrNoFrames            = errors.New("frame count must be at least 1")
	// ErrRecreateRequired is returned by a renderer whose last frame was
	// abandoned after its fence was reset; only a rebuild can recover it.
	ErrRecreateRequired = errors.New("renderer must be recreated")
)

// GPUError wraps the failure of a single Device or Swapchain call.
type GPUError struct {
	Op  string
	Err error
}

func (e *GPUError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *GPUError) Unwrap() error {
	return e.Err
}

func gpuError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &GPUError{Op: op, Err: err}
}

// InitError is a construction-time failure. It is never retried.
type InitError struct {
	Stage string
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to create %s: %v", e.Stage, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

type RenderOp uint8

const (
	OpWaitFence RenderOp = iota
	OpResetFence
	OpAcquireImage
	OpResetCommandBuffer
	OpBeginCommandBuffer
	OpRecordCommands
	OpEndCommandBuffer
	OpSubmit
	OpPresent
)

func (op RenderOp) String() string {
	switch op {
	case OpWaitFence:
		return "wait for fence"
	case OpResetFence:
		return "reset fence"
	case OpAcquireImage:
		return "acquire next image"
	case OpResetCommandBuffer:
		return "reset command buffer"
	case OpBeginCommandBuffer:
		return "begin command buffer"
	case OpRecordCommands:
		return "record commands"
	case OpEndCommandBuffer:
		return "end command buffer"
	case OpSubmit:
		return "submit graphics commands"
	case OpPresent:
		return "present"
	default:
		return fmt.Sprintf("render op %d", uint8(op))
	}
}

// RenderError is a per-frame failure of one step of Renderer.Render.
type RenderError struct {
	Op  RenderOp
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
