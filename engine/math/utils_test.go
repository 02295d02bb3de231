package math

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(uint32(5000), 1, 4096); got != 4096 {
		t.Errorf("got %d", got)
	}
	if got := Clamp(uint32(0), 1, 4096); got != 1 {
		t.Errorf("got %d", got)
	}
	if got := Clamp(0.5, 0.0, 1.0); got != 0.5 {
		t.Errorf("got %v", got)
	}
}
