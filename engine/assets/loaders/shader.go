package loaders

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

var ErrInvalidSPIRV = errors.New("invalid SPIR-V module")

type ShaderLoader struct {
	BinaryLoader
}

// Load reads a SPIR-V binary and checks its header before it reaches the
// device.
func (sl *ShaderLoader) Load(path string) (*Resource, error) {
	res, err := sl.BinaryLoader.Load(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateSPIRV(res.Data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

func ValidateSPIRV(data []byte) error {
	if len(data) < 20 {
		return fmt.Errorf("%d bytes is shorter than the module header: %w", len(data), ErrInvalidSPIRV)
	}
	if len(data)%4 != 0 {
		return fmt.Errorf("size %d is not a multiple of 4: %w", len(data), ErrInvalidSPIRV)
	}
	if magic := binary.LittleEndian.Uint32(data); magic != SPIRVMagic {
		return fmt.Errorf("magic %#08x: %w", magic, ErrInvalidSPIRV)
	}
	return nil
}

func resourceName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}
