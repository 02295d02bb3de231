package renderer

import (
	"bytes"
	"errors"
	"testing"
)

func TestMappedRegionWrite(t *testing.T) {
	d := newMockDevice()
	buf, mem, _ := d.CreateBufferWithMemory(16, BufferUsageUniform, MemoryPropertyHostVisible)
	defer d.DestroyBufferWithMemory(buf, mem)

	region, err := MapRegion(d, mem, 16)
	if err != nil {
		t.Fatal(err)
	}
	if region.Size() != 16 {
		t.Fatalf("got size %d, want 16", region.Size())
	}

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := region.Write(8, payload); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(d.memory[mem][8:], payload) {
		t.Errorf("memory holds %v, want %v", d.memory[mem][8:], payload)
	}

	tests := []struct {
		name   string
		offset uint64
		data   []byte
	}{
		{"past end", 9, payload},
		{"offset beyond size", 17, nil},
		{"wrapping offset", ^uint64(0), []byte{1}},
	}
	for _, tt := range tests {
		if err := region.Write(tt.offset, tt.data); !errors.Is(err, ErrMappedRangeOverflow) {
			t.Errorf("%s: got %v, want ErrMappedRangeOverflow", tt.name, err)
		}
	}

	region.Unmap()
	if d.mapped[mem] {
		t.Error("memory still mapped after Unmap")
	}
	if err := region.Write(0, payload); !errors.Is(err, ErrRegionUnmapped) {
		t.Errorf("got %v, want ErrRegionUnmapped", err)
	}
	region.Unmap()
}

func TestMapRegionShortMapping(t *testing.T) {
	d := newMockDevice()
	buf, mem, _ := d.CreateBufferWithMemory(16, BufferUsageUniform, MemoryPropertyHostVisible)
	defer d.DestroyBufferWithMemory(buf, mem)

	if _, err := MapRegion(d, mem, 32); !errors.Is(err, ErrMappedRangeOverflow) {
		t.Fatalf("got %v, want ErrMappedRangeOverflow", err)
	}
	if d.mapped[mem] {
		t.Error("short mapping left memory mapped")
	}
}

func TestMapRegionFailure(t *testing.T) {
	d := newMockDevice()
	d.fail["MapMemory"] = errInjected
	_, err := MapRegion(d, 1, 16)
	var gpuErr *GPUError
	if !errors.As(err, &gpuErr) || !errors.Is(err, errInjected) {
		t.Fatalf("got %v, want *GPUError wrapping the injected failure", err)
	}
}
