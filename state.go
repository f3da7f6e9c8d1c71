package shadercache

import "github.com/gogpu/gputypes"

// The pipeline key carries fixed-function state as small closed enums owned
// by this package. They are translated to the backend's native enumerations
// through the fixed lookup tables in translate.go; keeping them compact makes
// PipelineKey a cheap comparable map key.

// Topology selects the primitive assembly mode.
type Topology uint8

// Primitive topologies.
const (
	TopologyPoints Topology = iota
	TopologyLines
	TopologyTriangles
	TopologyTriangleStrip

	numTopologies
)

// Cull selects which faces are discarded during rasterization.
type Cull uint8

// Cull modes.
const (
	CullNone Cull = iota
	CullBack
	CullFront

	numCullModes
)

// Compare is a depth comparison function.
type Compare uint8

// Comparison functions.
const (
	CompareNever Compare = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways

	numCompareFuncs
)

// Factor is a blend factor.
type Factor uint8

// Blend factors.
const (
	FactorZero Factor = iota
	FactorOne
	FactorSrc
	FactorOneMinusSrc
	FactorSrcAlpha
	FactorOneMinusSrcAlpha
	FactorDst
	FactorOneMinusDst
	FactorDstAlpha
	FactorOneMinusDstAlpha

	numFactors
)

// RasterState is the rasterization portion of a pipeline key.
type RasterState struct {
	Topology   Topology
	CullMode   Cull
	DepthClamp bool
}

// MultisampleState is the multisampling portion of a pipeline key.
type MultisampleState struct {
	// Samples is the per-pixel sample count; zero is normalized to one
	// during translation.
	Samples uint8

	PerSampleShading bool
}

// DepthState is the depth test portion of a pipeline key.
type DepthState struct {
	TestEnable  bool
	WriteEnable bool
	Compare     Compare
}

// BlendState is the blending portion of a pipeline key.
type BlendState struct {
	Enable bool

	// Subtract and SubtractAlpha flip the respective blend operation from
	// add to reverse-subtract.
	Subtract      bool
	SubtractAlpha bool

	SrcFactor      Factor
	DstFactor      Factor
	SrcFactorAlpha Factor
	DstFactorAlpha Factor

	ColorWrite bool
	AlphaWrite bool
}

// RenderTargetState describes render-target compatibility: the attachment
// formats a pipeline must be created against. Formats are already native
// enums and pass through translation unchanged.
type RenderTargetState struct {
	ColorFormat gputypes.TextureFormat
	DepthFormat gputypes.TextureFormat
}

// VertexLayoutID identifies a vertex-layout descriptor registered with the
// backend. The cache treats it as opaque identity.
type VertexLayoutID uint32

// LayoutID identifies a pipeline layout registered with the backend.
type LayoutID uint32

// ModuleID identifies a shader module created through this cache. IDs are
// unique per Cache for its lifetime; zero means "stage absent".
type ModuleID uint64

// PipelineKey is the full identity of a linked graphics pipeline: the shader
// stages by module identity plus every piece of fixed-function state that
// participates in pipeline creation. Two keys are equal iff every field
// compares equal.
type PipelineKey struct {
	VertexModule   ModuleID
	GeometryModule ModuleID // zero when the stage is absent
	PixelModule    ModuleID

	Raster       RasterState
	Multisample  MultisampleState
	Depth        DepthState
	Blend        BlendState
	VertexLayout VertexLayoutID
	RenderTarget RenderTargetState
	Layout       LayoutID
}

// stateValid reports whether every enum in the key is inside its defined
// range. Values outside come from renderer bugs; such keys resolve to a
// nil pipeline instead of indexing past a translation table.
func (k *PipelineKey) stateValid() bool {
	return k.Raster.Topology < numTopologies &&
		k.Raster.CullMode < numCullModes &&
		k.Depth.Compare < numCompareFuncs &&
		k.Blend.SrcFactor < numFactors &&
		k.Blend.DstFactor < numFactors &&
		k.Blend.SrcFactorAlpha < numFactors &&
		k.Blend.DstFactorAlpha < numFactors
}

// ComputePipelineKey is the identity of a linked compute pipeline.
type ComputePipelineKey struct {
	Module ModuleID
	Layout LayoutID
}
