package shadercache

import (
	"fmt"

	"github.com/gogpu/shadercache/internal/spirv"
)

// NagaCompiler compiles WGSL shader source to SPIR-V through gogpu/naga.
// It is the default Compiler when Config.Compiler is nil.
type NagaCompiler struct{}

// Compile implements Compiler. The stage is implied by the source's entry
// point; naga needs no separate stage selector.
func (NagaCompiler) Compile(stage Stage, source string) ([]byte, error) {
	code, err := spirv.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("shadercache: compile %s shader: %w", stage, err)
	}
	return code, nil
}
