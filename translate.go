package shadercache

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Fixed translation tables from the cache's compact state enums to the
// backend's native enumerations. These are lookup tables, not computed
// mappings; each table covers its enum's full closed set and is verified
// by tests.

var nativeTopologies = [numTopologies]gputypes.PrimitiveTopology{
	TopologyPoints:        gputypes.PrimitiveTopologyPointList,
	TopologyLines:         gputypes.PrimitiveTopologyLineList,
	TopologyTriangles:     gputypes.PrimitiveTopologyTriangleList,
	TopologyTriangleStrip: gputypes.PrimitiveTopologyTriangleStrip,
}

var nativeCullModes = [numCullModes]gputypes.CullMode{
	CullNone:  gputypes.CullModeNone,
	CullBack:  gputypes.CullModeBack,
	CullFront: gputypes.CullModeFront,
}

var nativeCompareFuncs = [numCompareFuncs]gputypes.CompareFunction{
	CompareNever:        gputypes.CompareFunctionNever,
	CompareLess:         gputypes.CompareFunctionLess,
	CompareEqual:        gputypes.CompareFunctionEqual,
	CompareLessEqual:    gputypes.CompareFunctionLessEqual,
	CompareGreater:      gputypes.CompareFunctionGreater,
	CompareNotEqual:     gputypes.CompareFunctionNotEqual,
	CompareGreaterEqual: gputypes.CompareFunctionGreaterEqual,
	CompareAlways:       gputypes.CompareFunctionAlways,
}

var nativeBlendFactors = [numFactors]gputypes.BlendFactor{
	FactorZero:             gputypes.BlendFactorZero,
	FactorOne:              gputypes.BlendFactorOne,
	FactorSrc:              gputypes.BlendFactorSrc,
	FactorOneMinusSrc:      gputypes.BlendFactorOneMinusSrc,
	FactorSrcAlpha:         gputypes.BlendFactorSrcAlpha,
	FactorOneMinusSrcAlpha: gputypes.BlendFactorOneMinusSrcAlpha,
	FactorDst:              gputypes.BlendFactorDst,
	FactorOneMinusDst:      gputypes.BlendFactorOneMinusDst,
	FactorDstAlpha:         gputypes.BlendFactorDstAlpha,
	FactorOneMinusDstAlpha: gputypes.BlendFactorOneMinusDstAlpha,
}

// NativeBlendComponent is one translated blend equation (color or alpha).
type NativeBlendComponent struct {
	SrcFactor gputypes.BlendFactor
	DstFactor gputypes.BlendFactor
	Operation gputypes.BlendOperation
}

// NativeBlendState is the translated blending configuration.
type NativeBlendState struct {
	Color NativeBlendComponent
	Alpha NativeBlendComponent

	ColorWriteMask gputypes.ColorWriteMask
}

// NativePipelineDescriptor is the backend-facing description handed to the
// pipeline linker: resolved shader module handles plus fully translated
// fixed-function state.
type NativePipelineDescriptor struct {
	Label string

	Vertex   hal.ShaderModule
	Geometry hal.ShaderModule // nil when the stage is absent
	Fragment hal.ShaderModule

	Topology  gputypes.PrimitiveTopology
	FrontFace gputypes.FrontFace
	CullMode  gputypes.CullMode

	ColorFormat gputypes.TextureFormat
	DepthFormat gputypes.TextureFormat

	DepthTestEnabled  bool
	DepthWriteEnabled bool
	DepthCompare      gputypes.CompareFunction

	// Blend is nil when blending is disabled.
	Blend *NativeBlendState

	SampleCount uint32

	VertexLayout VertexLayoutID
	Layout       LayoutID
}

// NativeComputePipelineDescriptor is the backend-facing description of a
// compute pipeline.
type NativeComputePipelineDescriptor struct {
	Label  string
	Module hal.ShaderModule
	Layout LayoutID
}

// translateBlend translates a BlendState sub-record. It returns nil when
// blending is disabled; write masking still applies through the descriptor.
func translateBlend(b BlendState) *NativeBlendState {
	if !b.Enable {
		return nil
	}

	colorOp := gputypes.BlendOperationAdd
	if b.Subtract {
		colorOp = gputypes.BlendOperationReverseSubtract
	}
	alphaOp := gputypes.BlendOperationAdd
	if b.SubtractAlpha {
		alphaOp = gputypes.BlendOperationReverseSubtract
	}

	return &NativeBlendState{
		Color: NativeBlendComponent{
			SrcFactor: nativeBlendFactors[b.SrcFactor],
			DstFactor: nativeBlendFactors[b.DstFactor],
			Operation: colorOp,
		},
		Alpha: NativeBlendComponent{
			SrcFactor: nativeBlendFactors[b.SrcFactorAlpha],
			DstFactor: nativeBlendFactors[b.DstFactorAlpha],
			Operation: alphaOp,
		},
		ColorWriteMask: translateWriteMask(b),
	}
}

// translateWriteMask builds the native color write mask from the key's
// per-channel write bits.
func translateWriteMask(b BlendState) gputypes.ColorWriteMask {
	var mask gputypes.ColorWriteMask
	if b.ColorWrite {
		mask |= gputypes.ColorWriteMaskRed | gputypes.ColorWriteMaskGreen | gputypes.ColorWriteMaskBlue
	}
	if b.AlphaWrite {
		mask |= gputypes.ColorWriteMaskAlpha
	}
	return mask
}

// translatePipeline expands a pipeline key and its resolved stage modules
// into the native descriptor consumed by the linker.
func translatePipeline(key PipelineKey, vs, gs, ps hal.ShaderModule) *NativePipelineDescriptor {
	samples := uint32(key.Multisample.Samples)
	if samples == 0 {
		samples = 1
	}

	return &NativePipelineDescriptor{
		Vertex:   vs,
		Geometry: gs,
		Fragment: ps,

		Topology: nativeTopologies[key.Raster.Topology],
		// Winding is fixed by the source generator's conventions.
		FrontFace: gputypes.FrontFaceCCW,
		CullMode:  nativeCullModes[key.Raster.CullMode],

		ColorFormat: key.RenderTarget.ColorFormat,
		DepthFormat: key.RenderTarget.DepthFormat,

		DepthTestEnabled:  key.Depth.TestEnable,
		DepthWriteEnabled: key.Depth.WriteEnable,
		DepthCompare:      nativeCompareFuncs[key.Depth.Compare],

		Blend: translateBlend(key.Blend),

		SampleCount: samples,

		VertexLayout: key.VertexLayout,
		Layout:       key.Layout,
	}
}
