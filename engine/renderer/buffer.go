package renderer

import (
	"golang.org/x/exp/constraints"

	"github.com/spaghettifunk/inflight/engine/core"
)

// AlignUp rounds v up to the next multiple of align, which must be a power of two.
func AlignUp[T constraints.Unsigned](v, align T) T {
	return (v + align - 1) &^ (align - 1)
}

// PackCombined lays vertex and index data out in a single allocation. The
// index data starts at the first 4-byte boundary after the vertex data.
func PackCombined(vertexBytes, indexBytes uint64) (indexOffset, totalSize uint64) {
	indexOffset = AlignUp(vertexBytes, 4)
	return indexOffset, indexOffset + indexBytes
}

// CombinedBuffer holds vertex and index data in one device local buffer. It is
// immutable once uploaded and is shared read-only by every frame slot.
type CombinedBuffer struct {
	device Device

	Buffer       Buffer
	Memory       DeviceMemory
	VertexOffset uint64
	IndexOffset  uint64
	IndexCount   uint32
	VertexCount  uint32
	Size         uint64
}

// NewCombinedBuffer uploads vertices and indices through a staging buffer and
// a blocking copy. With no indices the buffer only holds vertex data.
func NewCombinedBuffer(device Device, pool CommandPool, vertices []Vertex, indices []uint16) (*CombinedBuffer, error) {
	vertexData := VertexBytes(vertices)
	indexData := IndexBytes(indices)
	indexOffset, totalSize := PackCombined(uint64(len(vertexData)), uint64(len(indexData)))

	staging, stagingMemory, err := device.CreateBufferWithMemory(
		totalSize,
		BufferUsageTransferSrc,
		MemoryPropertyHostVisible|MemoryPropertyHostCoherent,
	)
	if err != nil {
		return nil, gpuError("create staging buffer", err)
	}
	defer device.DestroyBufferWithMemory(staging, stagingMemory)

	region, err := MapRegion(device, stagingMemory, totalSize)
	if err != nil {
		return nil, err
	}
	if err := region.Write(0, vertexData); err != nil {
		region.Unmap()
		return nil, err
	}
	if err := region.Write(indexOffset, indexData); err != nil {
		region.Unmap()
		return nil, err
	}
	region.Unmap()

	buffer, memory, err := device.CreateBufferWithMemory(
		totalSize,
		BufferUsageTransferDst|BufferUsageVertex|BufferUsageIndex,
		MemoryPropertyDeviceLocal,
	)
	if err != nil {
		return nil, gpuError("create combined buffer", err)
	}

	if err := device.CopyBuffer(pool, staging, buffer, totalSize); err != nil {
		device.DestroyBufferWithMemory(buffer, memory)
		return nil, gpuError("copy staging buffer", err)
	}

	core.LogDebug("combined buffer uploaded: %d vertex bytes, %d index bytes at offset %d", len(vertexData), len(indexData), indexOffset)

	return &CombinedBuffer{
		device:       device,
		Buffer:       buffer,
		Memory:       memory,
		VertexOffset: 0,
		IndexOffset:  indexOffset,
		IndexCount:   uint32(len(indices)),
		VertexCount:  uint32(len(vertices)),
		Size:         totalSize,
	}, nil
}

func (cb *CombinedBuffer) Indexed() bool {
	return cb.IndexCount > 0
}

func (cb *CombinedBuffer) Destroy() {
	if cb.Buffer == 0 {
		return
	}
	cb.device.DestroyBufferWithMemory(cb.Buffer, cb.Memory)
	cb.Buffer = 0
	cb.Memory = 0
}
