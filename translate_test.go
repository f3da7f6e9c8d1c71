package shadercache

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func TestNativeTopologyTable(t *testing.T) {
	want := map[Topology]gputypes.PrimitiveTopology{
		TopologyPoints:        gputypes.PrimitiveTopologyPointList,
		TopologyLines:         gputypes.PrimitiveTopologyLineList,
		TopologyTriangles:     gputypes.PrimitiveTopologyTriangleList,
		TopologyTriangleStrip: gputypes.PrimitiveTopologyTriangleStrip,
	}
	for topo, native := range want {
		if got := nativeTopologies[topo]; got != native {
			t.Errorf("topology %d translates to %v, want %v", topo, got, native)
		}
	}
	if len(want) != int(numTopologies) {
		t.Errorf("table check covers %d of %d topologies", len(want), numTopologies)
	}
}

func TestNativeCompareTable(t *testing.T) {
	// Every compare function must map to a distinct native value; a
	// duplicate here would silently merge depth configurations.
	seen := make(map[gputypes.CompareFunction]Compare)
	for cf := CompareNever; cf < numCompareFuncs; cf++ {
		native := nativeCompareFuncs[cf]
		if prev, ok := seen[native]; ok {
			t.Errorf("compare funcs %d and %d both translate to %v", prev, cf, native)
		}
		seen[native] = cf
	}
}

func TestNativeBlendFactorTable(t *testing.T) {
	seen := make(map[gputypes.BlendFactor]Factor)
	for f := FactorZero; f < numFactors; f++ {
		native := nativeBlendFactors[f]
		if prev, ok := seen[native]; ok {
			t.Errorf("factors %d and %d both translate to %v", prev, f, native)
		}
		seen[native] = f
	}
}

func TestTranslateBlendDisabled(t *testing.T) {
	if got := translateBlend(BlendState{Enable: false, ColorWrite: true}); got != nil {
		t.Errorf("disabled blend produced state %+v", got)
	}
}

func TestTranslateBlendEnabled(t *testing.T) {
	b := BlendState{
		Enable:         true,
		Subtract:       true,
		SrcFactor:      FactorSrcAlpha,
		DstFactor:      FactorOneMinusSrcAlpha,
		SrcFactorAlpha: FactorOne,
		DstFactorAlpha: FactorZero,
		ColorWrite:     true,
		AlphaWrite:     true,
	}

	got := translateBlend(b)
	if got == nil {
		t.Fatal("enabled blend produced nil state")
	}
	if got.Color.Operation != gputypes.BlendOperationReverseSubtract {
		t.Errorf("color op = %v, want reverse subtract", got.Color.Operation)
	}
	if got.Alpha.Operation != gputypes.BlendOperationAdd {
		t.Errorf("alpha op = %v, want add", got.Alpha.Operation)
	}
	if got.Color.SrcFactor != gputypes.BlendFactorSrcAlpha || got.Color.DstFactor != gputypes.BlendFactorOneMinusSrcAlpha {
		t.Errorf("color factors = %v/%v", got.Color.SrcFactor, got.Color.DstFactor)
	}
	if got.ColorWriteMask != gputypes.ColorWriteMaskAll {
		t.Errorf("write mask = %v, want all", got.ColorWriteMask)
	}
}

func TestTranslateWriteMask(t *testing.T) {
	tests := []struct {
		color, alpha bool
		want         gputypes.ColorWriteMask
	}{
		{false, false, 0},
		{true, false, gputypes.ColorWriteMaskRed | gputypes.ColorWriteMaskGreen | gputypes.ColorWriteMaskBlue},
		{false, true, gputypes.ColorWriteMaskAlpha},
		{true, true, gputypes.ColorWriteMaskAll},
	}
	for _, tt := range tests {
		got := translateWriteMask(BlendState{ColorWrite: tt.color, AlphaWrite: tt.alpha})
		if got != tt.want {
			t.Errorf("writeMask(color=%v, alpha=%v) = %v, want %v", tt.color, tt.alpha, got, tt.want)
		}
	}
}

func TestTranslatePipelineDefaults(t *testing.T) {
	key := PipelineKey{
		Raster: RasterState{Topology: TopologyTriangles, CullMode: CullBack},
		Depth:  DepthState{TestEnable: true, WriteEnable: true, Compare: CompareLessEqual},
	}

	desc := translatePipeline(key, nil, nil, nil)
	if desc.SampleCount != 1 {
		t.Errorf("zero sample count not normalized: %d", desc.SampleCount)
	}
	if desc.FrontFace != gputypes.FrontFaceCCW {
		t.Errorf("front face = %v, want CCW", desc.FrontFace)
	}
	if desc.Topology != gputypes.PrimitiveTopologyTriangleList {
		t.Errorf("topology = %v", desc.Topology)
	}
	if desc.CullMode != gputypes.CullModeBack {
		t.Errorf("cull mode = %v", desc.CullMode)
	}
	if desc.DepthCompare != gputypes.CompareFunctionLessEqual {
		t.Errorf("depth compare = %v", desc.DepthCompare)
	}
	if desc.Blend != nil {
		t.Error("blend state present for disabled blending")
	}
}
