// Package spirv wraps WGSL-to-SPIR-V compilation for the shader cache.
package spirv

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
)

// ErrTruncated is returned when a SPIR-V blob is not a whole number of
// 32-bit words.
var ErrTruncated = errors.New("spirv: blob length is not word-aligned")

// Compile translates WGSL source to a SPIR-V byte blob.
func Compile(wgslSource string) ([]byte, error) {
	code, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("spirv: compile: %w", err)
	}
	return code, nil
}

// Words converts a SPIR-V byte blob to the little-endian 32-bit word slice
// expected by module creation.
func Words(blob []byte) ([]uint32, error) {
	if len(blob)%4 != 0 {
		return nil, ErrTruncated
	}
	words := make([]uint32, len(blob)/4)
	for i := range words {
		words[i] = uint32(blob[i*4]) |
			uint32(blob[i*4+1])<<8 |
			uint32(blob[i*4+2])<<16 |
			uint32(blob[i*4+3])<<24
	}
	return words, nil
}
