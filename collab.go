package shadercache

import (
	"github.com/gogpu/wgpu/hal"
	"github.com/google/uuid"
)

// The cache consumes the graphics backend through the narrow interfaces
// below. It never issues API calls itself; everything device-facing is a
// collaborator injected through Config.

// HostConfig carries the host rendering settings that shader source depends
// on. It is passed through to the source generator and into the utility
// shader header; the cache does not interpret it beyond that.
type HostConfig struct {
	// SampleCount is the MSAA sample count, 1 for no multisampling.
	SampleCount uint32

	// SSAA enables supersampling in generated shaders.
	SSAA bool

	// Layers is the render-target layer count (2 for stereoscopy).
	Layers uint32

	// GeometryShaders reports whether the device supports a geometry stage.
	// When false the geometry store is not opened and geometry lookups
	// resolve to nil.
	GeometryShaders bool
}

// DeviceIdentity is the exact device/driver identity that device-bound
// binary blobs are validated against.
type DeviceIdentity struct {
	VendorID uint32
	DeviceID uint32

	// CacheUUID is the driver-reported binary cache UUID; blobs from a
	// driver with a different UUID are unusable.
	CacheUUID uuid.UUID
}

// SourceGenerator produces shader source text for a variant key. It must be
// a pure function of its inputs: the same key and host configuration always
// yield the same source.
type SourceGenerator interface {
	Generate(key VariantKey, host HostConfig) (string, error)
}

// GeneratorFunc adapts a function to the SourceGenerator interface.
type GeneratorFunc func(key VariantKey, host HostConfig) (string, error)

// Generate implements SourceGenerator.
func (f GeneratorFunc) Generate(key VariantKey, host HostConfig) (string, error) {
	return f(key, host)
}

// Compiler turns shader source text into the binary payload that is both
// persisted to disk and handed to the module creator.
type Compiler interface {
	Compile(stage Stage, source string) ([]byte, error)
}

// ModuleCreator creates and destroys backend shader modules from compiled
// binaries. A replayed disk record goes through the same CreateModule path
// as a fresh compile.
type ModuleCreator interface {
	CreateModule(binary []byte) (hal.ShaderModule, error)
	DestroyModule(module hal.ShaderModule)
}

// PipelineHandle is an opaque linked pipeline object owned by the linker.
// A nil handle means "no pipeline available".
type PipelineHandle any

// PipelineLinker links pipelines from translated state and destroys them at
// cache teardown.
type PipelineLinker interface {
	CreatePipeline(desc *NativePipelineDescriptor) (PipelineHandle, error)
	CreateComputePipeline(desc *NativeComputePipelineDescriptor) (PipelineHandle, error)
	DestroyPipeline(handle PipelineHandle)
}

// BinaryCacher is the runtime's device-bound pipeline binary cache object.
// Initialize may be called with seed data recovered from disk; Data reads
// back the current contents for persisting.
type BinaryCacher interface {
	Initialize(seed []byte) error
	Data() ([]byte, error)
	Destroy()
}

// UberEnumerator lists every variant key of an uber stage's (small, closed)
// permutation space, for eager precompilation.
type UberEnumerator func(stage Stage) []VariantKey

// ProgressFunc receives bulk-precompilation progress. A terminal call with
// an empty label and current == total == -1 clears the display.
type ProgressFunc func(label string, current, total int)

// Module is one compiled shader module owned by the cache. Its identity is
// stable for the cache's lifetime and participates in pipeline keys.
type Module struct {
	id     ModuleID
	stage  Stage
	key    VariantKey
	handle hal.ShaderModule
}

// ID returns the module's cache-unique identity.
func (m *Module) ID() ModuleID { return m.id }

// Stage returns the shader stage the module was compiled for.
func (m *Module) Stage() Stage { return m.stage }

// Key returns the canonical variant key the module was compiled from.
func (m *Module) Key() VariantKey { return m.key }

// Handle returns the backend module handle.
func (m *Module) Handle() hal.ShaderModule { return m.handle }

// moduleID is a safe accessor for pipeline keys: a nil module contributes
// the zero "stage absent/failed" identity.
func moduleID(m *Module) ModuleID {
	if m == nil {
		return 0
	}
	return m.id
}

// moduleHandle is the nil-safe handle accessor.
func moduleHandle(m *Module) hal.ShaderModule {
	if m == nil {
		return nil
	}
	return m.handle
}
