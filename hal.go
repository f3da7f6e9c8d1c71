package shadercache

import (
	"errors"
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/shadercache/internal/spirv"
)

// ErrNilDevice is returned by NewHALModules when the device is nil.
var ErrNilDevice = errors.New("shadercache: HAL device is nil")

// HALModules is a ModuleCreator backed by a wgpu HAL device. Binaries are
// SPIR-V byte blobs, as produced by [NagaCompiler].
type HALModules struct {
	device hal.Device
}

// NewHALModules creates a module creator on top of device.
func NewHALModules(device hal.Device) (*HALModules, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	return &HALModules{device: device}, nil
}

// CreateModule implements ModuleCreator.
func (h *HALModules) CreateModule(binary []byte) (hal.ShaderModule, error) {
	words, err := spirv.Words(binary)
	if err != nil {
		return nil, fmt.Errorf("shadercache: create module: %w", err)
	}
	module, err := h.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Source: hal.ShaderSource{
			SPIRV: words,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("shadercache: create module: %w", err)
	}
	return module, nil
}

// DestroyModule implements ModuleCreator.
func (h *HALModules) DestroyModule(module hal.ShaderModule) {
	if module != nil {
		h.device.DestroyShaderModule(module)
	}
}
