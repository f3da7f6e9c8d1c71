package shadercache

import (
	"fmt"
	"sync/atomic"
)

// pipelineEntry mirrors shaderEntry for linked pipeline objects: one link
// attempt per exact key, nil handle remembered as a permanent per-key
// failure for the session.
type pipelineEntry struct {
	state  atomic.Int32
	ready  chan struct{}
	handle PipelineHandle
}

func newPipelineEntry() *pipelineEntry {
	return &pipelineEntry{ready: make(chan struct{})}
}

func (e *pipelineEntry) resolve(h PipelineHandle) {
	e.handle = h
	e.state.Store(stateResolved)
	close(e.ready)
}

// PipelineSpec describes a full pipeline configuration in renderer terms:
// variant keys per stage plus the fixed-function state. The cache resolves
// stage keys to modules through the shader path, so requesting a pipeline
// may trigger shader compiles.
type PipelineSpec struct {
	VertexKey VariantKey

	// GeometryKey is nil when the pipeline has no geometry stage.
	GeometryKey *VariantKey

	PixelKey VariantKey

	Raster       RasterState
	Multisample  MultisampleState
	Depth        DepthState
	Blend        BlendState
	VertexLayout VertexLayoutID
	RenderTarget RenderTargetState
	Layout       LayoutID
}

// Pipeline resolves spec to a linked pipeline object, creating it on first
// sight. It returns nil when linking failed for this exact configuration
// earlier in the session or a required stage module is unavailable; the
// renderer must treat nil as "skip this draw".
func (c *Cache) Pipeline(spec PipelineSpec) PipelineHandle {
	h, _ := c.PipelineWithHit(spec)
	return h
}

// PipelineWithHit is Pipeline plus whether the object was already cached.
// A false result tells the renderer the pipeline was linked during this
// call, or was still being linked by a concurrent lookup, so it may prefer
// an uber-shader fallback on the next frames while specialized variants
// warm up.
func (c *Cache) PipelineWithHit(spec PipelineSpec) (PipelineHandle, bool) {
	vs := c.Module(spec.VertexKey)
	var gs *Module
	if spec.GeometryKey != nil {
		gs = c.Module(*spec.GeometryKey)
	}
	ps := c.Module(spec.PixelKey)

	key := PipelineKey{
		VertexModule:   moduleID(vs),
		GeometryModule: moduleID(gs),
		PixelModule:    moduleID(ps),
		Raster:         spec.Raster,
		Multisample:    spec.Multisample,
		Depth:          spec.Depth,
		Blend:          spec.Blend,
		VertexLayout:   spec.VertexLayout,
		RenderTarget:   spec.RenderTarget,
		Layout:         spec.Layout,
	}

	// Fast path: read lock.
	c.pmu.RLock()
	e, ok := c.pipelines[key]
	c.pmu.RUnlock()

	if !ok {
		c.pmu.Lock()
		e, ok = c.pipelines[key]
		if !ok {
			e = newPipelineEntry()
			c.pipelines[key] = e
		}
		c.pmu.Unlock()
	}

	if e.state.CompareAndSwap(stateUnresolved, stateResolving) {
		c.linkPipeline(key, vs, gs, ps, e)
		c.stats.pipelineMisses.Add(1)
		return e.handle, false
	}
	if e.state.Load() != stateResolved {
		// Another lookup is linking this key right now. The object was not
		// available when this call began, so waiters count as misses too.
		<-e.ready
		c.stats.pipelineMisses.Add(1)
		return e.handle, false
	}
	c.stats.pipelineHits.Add(1)
	return e.handle, true
}

// linkPipeline runs the miss path for one claimed pipeline entry. A failure
// poisons only this exact key; configurations differing in any state field
// get their own attempt.
func (c *Cache) linkPipeline(key PipelineKey, vs, gs, ps *Module, e *pipelineEntry) {
	if vs == nil || ps == nil {
		Logger().Debug("pipeline skipped, stage module unavailable",
			"vertex", vs != nil, "pixel", ps != nil)
		e.resolve(nil)
		return
	}
	if !key.stateValid() {
		Logger().Warn("pipeline skipped, state value out of range")
		e.resolve(nil)
		return
	}

	desc := translatePipeline(key, vs.handle, moduleHandle(gs), ps.handle)
	desc.Label = fmt.Sprintf("pipeline-vs%d-ps%d", key.VertexModule, key.PixelModule)

	handle, err := c.cfg.Linker.CreatePipeline(desc)
	if err != nil {
		Logger().Warn("pipeline link failed", "label", desc.Label, "err", err)
		e.resolve(nil)
		return
	}
	c.stats.pipelinesCreated.Add(1)
	e.resolve(handle)
}

// ComputePipeline resolves a compute module and layout to a linked compute
// pipeline, creating it on first sight. Nil follows the same skip contract
// as Pipeline.
func (c *Cache) ComputePipeline(module *Module, layout LayoutID) PipelineHandle {
	key := ComputePipelineKey{Module: moduleID(module), Layout: layout}

	c.pmu.RLock()
	e, ok := c.computes[key]
	c.pmu.RUnlock()

	if !ok {
		c.pmu.Lock()
		e, ok = c.computes[key]
		if !ok {
			e = newPipelineEntry()
			c.computes[key] = e
		}
		c.pmu.Unlock()
	}

	if e.state.CompareAndSwap(stateUnresolved, stateResolving) {
		c.linkComputePipeline(key, module, e)
		c.stats.pipelineMisses.Add(1)
		return e.handle
	}
	if e.state.Load() != stateResolved {
		<-e.ready
		c.stats.pipelineMisses.Add(1)
		return e.handle
	}
	c.stats.pipelineHits.Add(1)
	return e.handle
}

func (c *Cache) linkComputePipeline(key ComputePipelineKey, module *Module, e *pipelineEntry) {
	if module == nil {
		e.resolve(nil)
		return
	}

	desc := &NativeComputePipelineDescriptor{
		Label:  fmt.Sprintf("compute-%d", key.Module),
		Module: module.handle,
		Layout: key.Layout,
	}
	handle, err := c.cfg.Linker.CreateComputePipeline(desc)
	if err != nil {
		Logger().Warn("compute pipeline link failed", "label", desc.Label, "err", err)
		e.resolve(nil)
		return
	}
	c.stats.pipelinesCreated.Add(1)
	e.resolve(handle)
}

// clearPipelines destroys every live pipeline handle and empties both
// pipeline maps.
func (c *Cache) clearPipelines() {
	c.pmu.Lock()
	defer c.pmu.Unlock()

	for _, e := range c.pipelines {
		if e.state.Load() == stateResolved && e.handle != nil {
			c.cfg.Linker.DestroyPipeline(e.handle)
		}
	}
	for _, e := range c.computes {
		if e.state.Load() == stateResolved && e.handle != nil {
			c.cfg.Linker.DestroyPipeline(e.handle)
		}
	}
	c.pipelines = make(map[PipelineKey]*pipelineEntry)
	c.computes = make(map[ComputePipelineKey]*pipelineEntry)
}

// PipelineCount returns the number of pipeline entries, including
// remembered failures.
func (c *Cache) PipelineCount() int {
	c.pmu.RLock()
	defer c.pmu.RUnlock()
	return len(c.pipelines) + len(c.computes)
}
