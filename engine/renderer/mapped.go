package renderer

import "fmt"

// MappedRegion is host visible memory mapped through a Device. Writes are
// bounds checked against the mapped size; Unmap releases the mapping and any
// later write fails.
type MappedRegion struct {
	device Device
	memory DeviceMemory
	data   []byte
}

func MapRegion(device Device, memory DeviceMemory, size uint64) (*MappedRegion, error) {
	data, err := device.MapMemory(memory, size)
	if err != nil {
		return nil, gpuError("map memory", err)
	}
	if uint64(len(data)) < size {
		device.UnmapMemory(memory)
		return nil, fmt.Errorf("mapped %d bytes, requested %d: %w", len(data), size, ErrMappedRangeOverflow)
	}
	return &MappedRegion{
		device: device,
		memory: memory,
		data:   data[:size],
	}, nil
}

func (m *MappedRegion) Size() uint64 {
	return uint64(len(m.data))
}

func (m *MappedRegion) Write(offset uint64, src []byte) error {
	if m.data == nil {
		return ErrRegionUnmapped
	}
	end := offset + uint64(len(src))
	if end < offset || end > uint64(len(m.data)) {
		return fmt.Errorf("write [%d, %d) into %d bytes: %w", offset, end, len(m.data), ErrMappedRangeOverflow)
	}
	copy(m.data[offset:end], src)
	return nil
}

func (m *MappedRegion) Unmap() {
	if m.data == nil {
		return
	}
	m.device.UnmapMemory(m.memory)
	m.data = nil
}
