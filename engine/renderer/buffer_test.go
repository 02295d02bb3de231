package renderer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestAlignUp(t *testing.T) {
	tests := []struct {
		v, align, want uint64
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{80, 4, 80},
		{81, 4, 84},
		{100, 64, 128},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.v, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.v, tt.align, got, tt.want)
		}
	}
	if got := AlignUp[uint32](6, 4); got != 8 {
		t.Errorf("AlignUp[uint32](6, 4) = %d, want 8", got)
	}
}

func TestPackCombined(t *testing.T) {
	offset, total := PackCombined(80, 12)
	if offset != 80 || total != 92 {
		t.Fatalf("quad packs to (%d, %d), want (80, 92)", offset, total)
	}

	for v := uint64(0); v < 64; v++ {
		for _, i := range []uint64{0, 2, 6, 12} {
			offset, total := PackCombined(v, i)
			if offset != (v+3)&^3 {
				t.Fatalf("PackCombined(%d, %d) offset %d, want %d", v, i, offset, (v+3)&^3)
			}
			if total != offset+i {
				t.Fatalf("PackCombined(%d, %d) total %d, want %d", v, i, total, offset+i)
			}
			again, againTotal := PackCombined(v, i)
			if again != offset || againTotal != total {
				t.Fatalf("PackCombined(%d, %d) is not stable", v, i)
			}
		}
	}
}

func TestVertexBytes(t *testing.T) {
	data := VertexBytes(QuadVertices)
	if len(data) != 4*VertexSize {
		t.Fatalf("got %d bytes, want %d", len(data), 4*VertexSize)
	}
	read := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
	}
	if got := read(0); got != -0.5 {
		t.Errorf("vertex 0 x = %v, want -0.5", got)
	}
	// vertex 1 is green
	if got := read(VertexSize + 12); got != 1.0 {
		t.Errorf("vertex 1 green = %v, want 1", got)
	}
	if got := IndexBytes(QuadIndices); !bytes.Equal(got, []byte{0, 0, 1, 0, 2, 0, 2, 0, 3, 0, 0, 0}) {
		t.Errorf("index bytes %v", got)
	}
}

func TestNewCombinedBufferQuad(t *testing.T) {
	d := newMockDevice()
	cb, err := NewCombinedBuffer(d, 1, QuadVertices, QuadIndices)
	if err != nil {
		t.Fatal(err)
	}

	if cb.Size != 92 || cb.IndexOffset != 80 || cb.VertexOffset != 0 {
		t.Errorf("got size %d, index offset %d, vertex offset %d", cb.Size, cb.IndexOffset, cb.VertexOffset)
	}
	if cb.IndexCount != 6 || cb.VertexCount != 4 || !cb.Indexed() {
		t.Errorf("got %d indices, %d vertices", cb.IndexCount, cb.VertexCount)
	}
	if d.copies != 1 {
		t.Errorf("got %d copies, want 1", d.copies)
	}
	if d.live["buffer"] != 1 {
		t.Errorf("got %d live buffers, want 1 (staging released)", d.live["buffer"])
	}

	contents := d.memory[cb.Memory]
	if !bytes.Equal(contents[:80], VertexBytes(QuadVertices)) {
		t.Error("vertex data not uploaded at offset 0")
	}
	if !bytes.Equal(contents[80:92], IndexBytes(QuadIndices)) {
		t.Error("index data not uploaded at offset 80")
	}

	cb.Destroy()
	cb.Destroy()
	d.assertNoLeaks(t)
}

func TestNewCombinedBufferWithoutIndices(t *testing.T) {
	d := newMockDevice()
	cb, err := NewCombinedBuffer(d, 1, QuadVertices, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cb.Destroy()
	if cb.Indexed() || cb.Size != 80 {
		t.Errorf("got indexed %v, size %d", cb.Indexed(), cb.Size)
	}
}

func TestNewCombinedBufferCopyFailure(t *testing.T) {
	d := newMockDevice()
	d.fail["CopyBuffer"] = errInjected
	if _, err := NewCombinedBuffer(d, 1, QuadVertices, QuadIndices); !errors.Is(err, errInjected) {
		t.Fatalf("got %v, want injected failure", err)
	}
	d.assertNoLeaks(t)
}
