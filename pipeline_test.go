package shadercache

import (
	"testing"
	"time"
)

func basicSpec() PipelineSpec {
	return PipelineSpec{
		VertexKey: VariantKey{Stage: StageVertex},
		PixelKey:  VariantKey{Stage: StagePixel},
		Raster:    RasterState{Topology: TopologyTriangles, CullMode: CullBack},
		Depth:     DepthState{TestEnable: true, WriteEnable: true, Compare: CompareLessEqual},
	}
}

func TestPipelineLinkedOncePerSpec(t *testing.T) {
	h := newHarness()
	c := mustNew(t, h.config(t.TempDir()))
	defer c.Close()

	spec := basicSpec()
	first, hit := c.PipelineWithHit(spec)
	if first == nil {
		t.Fatal("pipeline link failed")
	}
	if hit {
		t.Error("first lookup reported a hit")
	}

	second, hit := c.PipelineWithHit(spec)
	if second != first {
		t.Error("same spec linked to different pipelines")
	}
	if !hit {
		t.Error("second lookup reported a miss")
	}
	if got := h.link.linkCount(); got != 1 {
		t.Errorf("linker called %d times for one spec, want 1", got)
	}

	stats := c.Stats()
	if stats.PipelineMisses != 1 || stats.PipelineHits != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", stats.PipelineHits, stats.PipelineMisses)
	}
	if got := c.HitRate(); got != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", got)
	}
}

func TestPipelineStateChangesForkEntries(t *testing.T) {
	h := newHarness()
	c := mustNew(t, h.config(t.TempDir()))
	defer c.Close()

	a := basicSpec()
	b := basicSpec()
	b.Blend = BlendState{Enable: true, SrcFactor: FactorSrcAlpha, DstFactor: FactorOneMinusSrcAlpha, ColorWrite: true, AlphaWrite: true}

	pa := c.Pipeline(a)
	pb := c.Pipeline(b)
	if pa == nil || pb == nil {
		t.Fatal("pipeline link failed")
	}
	if pa == pb {
		t.Error("distinct state produced the same pipeline")
	}
	if got := h.link.linkCount(); got != 2 {
		t.Errorf("linker called %d times, want 2", got)
	}
	// Shader modules are shared between the two configurations.
	if got := h.gen.callCount(); got != 2 {
		t.Errorf("generator called %d times, want 2 (one per stage)", got)
	}
}

func TestPipelineLinkFailureScopedToKey(t *testing.T) {
	h := newHarness()
	h.link.fail = func(desc *NativePipelineDescriptor) bool { return desc.Blend == nil }
	c := mustNew(t, h.config(t.TempDir()))
	defer c.Close()

	noBlend := basicSpec()
	if p := c.Pipeline(noBlend); p != nil {
		t.Fatal("expected link failure")
	}
	if p := c.Pipeline(noBlend); p != nil {
		t.Fatal("remembered failure linked on retry")
	}
	if got := c.Stats().PipelinesCreated; got != 0 {
		t.Errorf("PipelinesCreated = %d, want 0", got)
	}

	blended := basicSpec()
	blended.Blend.Enable = true
	if p := c.Pipeline(blended); p == nil {
		t.Error("unrelated configuration poisoned by link failure")
	}
}

func TestPipelineSkippedWhenStageModuleMissing(t *testing.T) {
	h := newHarness()
	h.gen.fail = func(k VariantKey) bool { return k.Stage == StagePixel }
	c := mustNew(t, h.config(t.TempDir()))
	defer c.Close()

	if p := c.Pipeline(basicSpec()); p != nil {
		t.Fatal("pipeline linked without a pixel module")
	}
	if got := h.link.linkCount(); got != 0 {
		t.Errorf("linker called %d times, want 0", got)
	}
}

func TestPipelineGeometryStage(t *testing.T) {
	h := newHarness()
	cfg := h.config(t.TempDir())
	cfg.Host.GeometryShaders = true
	c := mustNew(t, cfg)
	defer c.Close()

	gk := VariantKey{Stage: StageGeometry}
	spec := basicSpec()
	spec.GeometryKey = &gk

	if p := c.Pipeline(spec); p == nil {
		t.Fatal("pipeline with geometry stage failed to link")
	}

	// The same stages without geometry form a distinct pipeline key.
	spec.GeometryKey = nil
	if c.Pipeline(spec) == nil {
		t.Fatal("pipeline without geometry stage failed to link")
	}
	if got := h.link.linkCount(); got != 2 {
		t.Errorf("linker called %d times, want 2", got)
	}
}

func TestPipelineWaiterReportsMiss(t *testing.T) {
	h := newHarness()
	h.link.enter = make(chan struct{})
	h.link.release = make(chan struct{})
	c := mustNew(t, h.config(t.TempDir()))
	defer c.Close()

	type result struct {
		handle PipelineHandle
		hit    bool
	}
	spec := basicSpec()

	first := make(chan result, 1)
	go func() {
		p, hit := c.PipelineWithHit(spec)
		first <- result{p, hit}
	}()
	<-h.link.enter // the first lookup is now inside the linker

	second := make(chan result, 1)
	go func() {
		p, hit := c.PipelineWithHit(spec)
		second <- result{p, hit}
	}()

	// Give the second lookup time to block on the in-flight entry, then
	// let the link finish.
	time.Sleep(20 * time.Millisecond)
	close(h.link.release)

	r1 := <-first
	r2 := <-second
	if r1.handle == nil {
		t.Fatal("pipeline link failed")
	}
	if r1.hit {
		t.Error("linking lookup reported a hit")
	}
	if r2.hit {
		t.Error("lookup that waited on an in-flight link reported a hit")
	}
	if r2.handle != r1.handle {
		t.Error("waiter received a different pipeline")
	}

	// Once the entry is resolved, lookups are plain hits again.
	if _, hit := c.PipelineWithHit(spec); !hit {
		t.Error("post-resolution lookup reported a miss")
	}
	if got := c.Stats().PipelineMisses; got != 2 {
		t.Errorf("PipelineMisses = %d, want 2 (linker plus waiter)", got)
	}
}

func TestPipelineOutOfRangeStateSkipped(t *testing.T) {
	h := newHarness()
	c := mustNew(t, h.config(t.TempDir()))
	defer c.Close()

	spec := basicSpec()
	spec.Raster.Topology = Topology(200)
	if p := c.Pipeline(spec); p != nil {
		t.Errorf("Pipeline with topology 200 = %v, want nil", p)
	}

	spec = basicSpec()
	spec.Blend.DstFactorAlpha = Factor(99)
	if p := c.Pipeline(spec); p != nil {
		t.Errorf("Pipeline with blend factor 99 = %v, want nil", p)
	}
	if got := h.link.linkCount(); got != 0 {
		t.Errorf("linker called %d times for invalid state, want 0", got)
	}

	// Valid configurations keep linking.
	if c.Pipeline(basicSpec()) == nil {
		t.Error("valid configuration failed to link")
	}
}

func TestComputePipeline(t *testing.T) {
	h := newHarness()
	c := mustNew(t, h.config(t.TempDir()))
	defer c.Close()

	mod := c.Module(VariantKey{Stage: StageVertex, Flags: 0xC0})
	if mod == nil {
		t.Fatal("module compile failed")
	}

	first := c.ComputePipeline(mod, 3)
	if first == nil {
		t.Fatal("compute pipeline link failed")
	}
	if second := c.ComputePipeline(mod, 3); second != first {
		t.Error("same module/layout linked twice")
	}
	if other := c.ComputePipeline(mod, 4); other == first {
		t.Error("distinct layout shared a pipeline")
	}
	if p := c.ComputePipeline(nil, 3); p != nil {
		t.Error("nil module linked a compute pipeline")
	}

	h.link.mu.Lock()
	computes := len(h.link.computes)
	h.link.mu.Unlock()
	if computes != 2 {
		t.Errorf("compute linker called %d times, want 2", computes)
	}
}

func TestPipelineDescriptorTranslation(t *testing.T) {
	h := newHarness()
	c := mustNew(t, h.config(t.TempDir()))
	defer c.Close()

	spec := basicSpec()
	spec.Multisample.Samples = 4
	spec.Blend = BlendState{Enable: true, Subtract: true, SrcFactor: FactorOne, DstFactor: FactorOne, ColorWrite: true}
	if c.Pipeline(spec) == nil {
		t.Fatal("pipeline link failed")
	}

	h.link.mu.Lock()
	desc := h.link.descs[0]
	h.link.mu.Unlock()

	if desc.SampleCount != 4 {
		t.Errorf("SampleCount = %d, want 4", desc.SampleCount)
	}
	if desc.Blend == nil {
		t.Fatal("blend state missing from descriptor")
	}
	if desc.Label == "" {
		t.Error("descriptor has no label")
	}
	if !desc.DepthTestEnabled || !desc.DepthWriteEnabled {
		t.Error("depth state lost in translation")
	}
}
