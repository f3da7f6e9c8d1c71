package shadercache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/shadercache/diskcache"
	"github.com/gogpu/shadercache/profiler"
)

// Entry resolution states. An entry moves unresolved -> resolving ->
// resolved exactly once; the resolving transition is claimed by
// compare-and-swap so concurrent lookups for a fresh key never race into
// double compilation.
const (
	stateUnresolved int32 = iota
	stateResolving
	stateResolved
)

// shaderEntry is the lifecycle record for one variant key: unresolved,
// being compiled, or resolved to a module (nil module = remembered
// permanent failure).
type shaderEntry struct {
	state  atomic.Int32
	ready  chan struct{}
	module *Module
}

func newShaderEntry() *shaderEntry {
	return &shaderEntry{ready: make(chan struct{})}
}

// resolve publishes the outcome and wakes waiters. Called exactly once.
func (e *shaderEntry) resolve(m *Module) {
	e.module = m
	e.state.Store(stateResolved)
	close(e.ready)
}

// attempted reports whether a compile has been claimed or finished.
func (e *shaderEntry) attempted() bool {
	return e.state.Load() != stateUnresolved
}

// variantCache is the in-memory shader map for one stage category, backed
// by its own persistent store.
type variantCache struct {
	stage    Stage
	category string

	mu      sync.Mutex
	entries map[VariantKey]*shaderEntry

	storeMu sync.Mutex
	store   *diskcache.Store
}

// getOrAdd returns the entry for key, creating an unresolved one on first
// sight.
func (vc *variantCache) getOrAdd(key VariantKey) *shaderEntry {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	e, ok := vc.entries[key]
	if !ok {
		e = newShaderEntry()
		vc.entries[key] = e
	}
	return e
}

// lookup returns the entry for key without creating one.
func (vc *variantCache) lookup(key VariantKey) *shaderEntry {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.entries[key]
}

// append persists one compiled binary. Safe against concurrent compiles of
// distinct keys in the same category.
func (vc *variantCache) append(key VariantKey, binary []byte) error {
	vc.storeMu.Lock()
	defer vc.storeMu.Unlock()
	return vc.store.Append(key.EncodeBinary(), binary)
}

// Cache is the compiled-program cache context: per-stage shader variant
// caches backed by persistent stores, the pipeline object cache, the usage
// profiler, and the device-bound binary cache. Create one per backend with
// New and tear it down with Close.
//
// Lookups (Module, Pipeline, ComputePipeline) are safe for concurrent use.
// Lifecycle operations (Clear, Reload, Close) must not run concurrently
// with lookups, and Clear/Close require that all in-flight GPU work
// referencing cached objects has completed.
type Cache struct {
	cfg      Config
	workload uint64

	stages [numStages]*variantCache

	pmu       sync.RWMutex
	pipelines map[PipelineKey]*pipelineEntry
	computes  map[ComputePipelineKey]*pipelineEntry

	usage  *profiler.Profiler[VariantKey]
	binary *binaryCache

	shared sharedShaders

	nextModuleID atomic.Uint64
	stats        cacheStats
	closed       atomic.Bool
}

// New creates a cache context: it opens and replays every shader store for
// the configured workload, restores usage rankings, validates and seeds the
// device-bound binary cache, and compiles the shared utility shaders.
// Every store opened is closed again if any later step fails.
func New(cfg Config) (*Cache, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("shadercache: create cache dir: %w", err)
	}

	c := &Cache{
		cfg:       cfg,
		workload:  xxhash.Sum64String(cfg.WorkloadID),
		pipelines: make(map[PipelineKey]*pipelineEntry),
		computes:  make(map[ComputePipelineKey]*pipelineEntry),
	}
	c.usage = profiler.New[VariantKey](cfg.UsageCountCap, func(k VariantKey) uint64 { return k.Hash })
	if cfg.BinaryCache != nil {
		c.binary = &binaryCache{
			cacher: cfg.BinaryCache,
			path:   c.binaryCachePath(),
			device: cfg.Device,
		}
	}

	if err := c.openStores(); err != nil {
		c.closeStores(true)
		return nil, err
	}
	c.loadUsage()

	if c.binary != nil {
		if err := c.binary.create(true); err != nil {
			c.closeStores(true)
			return nil, err
		}
	}

	if err := c.compileSharedShaders(); err != nil {
		if c.binary != nil {
			c.binary.cacher.Destroy()
		}
		c.closeStores(true)
		return nil, err
	}

	if cfg.PrecompileOnStartup {
		c.PrecompileUberShaders()
		c.PrecompileMostUsed(cfg.PrecompileLimit)
	}

	return c, nil
}

// stageCategories names the store file category per stage.
var stageCategories = [numStages]string{
	StageVertex:     "vs",
	StageGeometry:   "gs",
	StagePixel:      "ps",
	StageUberVertex: "uvs",
	StageUberPixel:  "ups",
}

// storePath names the backing file for one stage category. Specialized
// stages are scoped to the workload identity; uber stores are shared across
// workloads since their variant space does not depend on workload content.
func (c *Cache) storePath(stage Stage) string {
	cat := stageCategories[stage]
	if stage.uber() {
		return filepath.Join(c.cfg.Dir, fmt.Sprintf("%s-%s.bin", c.cfg.FilePrefix, cat))
	}
	return filepath.Join(c.cfg.Dir, fmt.Sprintf("%s-%s-%016x.bin", c.cfg.FilePrefix, cat, c.workload))
}

// usagePath names the persisted usage-ranking file.
func (c *Cache) usagePath() string {
	return filepath.Join(c.cfg.Dir, fmt.Sprintf("%s-usage-%016x.bin", c.cfg.FilePrefix, c.workload))
}

// binaryCachePath names the device-bound blob file. It is device-scoped,
// not workload-scoped.
func (c *Cache) binaryCachePath() string {
	return filepath.Join(c.cfg.Dir, fmt.Sprintf("pipeline-%08x-%08x.bin", c.cfg.Device.VendorID, c.cfg.Device.DeviceID))
}

// openStores opens and replays every stage store. Records whose payload
// cannot be turned back into a live module are dropped, never inserted: a
// creation that failed once may succeed in a later session, and a corrupt
// write must not resurrect as a success.
func (c *Cache) openStores() error {
	log := Logger()
	for stage := Stage(0); stage < numStages; stage++ {
		if stage == StageGeometry && !c.cfg.Host.GeometryShaders {
			continue
		}

		vc := &variantCache{
			stage:    stage,
			category: stageCategories[stage],
			entries:  make(map[VariantKey]*shaderEntry),
		}

		sink := func(keyBytes, payload []byte) bool {
			if len(payload) == 0 {
				return false
			}
			key, err := DecodeVariantKey(keyBytes)
			if err != nil || key.Stage != stage {
				return false
			}
			handle, err := c.cfg.Modules.CreateModule(payload)
			if err != nil {
				return false
			}
			e := newShaderEntry()
			e.resolve(c.newModule(key, handle))
			vc.entries[key] = e
			c.stats.modulesCreated.Add(1)
			c.stats.modulesAlive.Add(1)
			return true
		}

		store, res, err := diskcache.OpenAndReplay(c.storePath(stage), KeySchemaVersion, sink)
		if err != nil {
			return fmt.Errorf("shadercache: open %s store: %w", vc.category, err)
		}
		vc.store = store
		c.stages[stage] = vc

		if res.Truncated {
			log.Warn("shader store corrupt, recovered partial contents",
				"category", vc.category, "records", res.Records)
		}
		log.Info("shader store opened",
			"category", vc.category, "records", res.Records, "live", res.Inserted, "reset", res.Reset)
	}
	return nil
}

// closeStores syncs and closes every open store and, when destroyModules is
// set, destroys every live module and empties the maps.
func (c *Cache) closeStores(destroyModules bool) {
	for stage, vc := range c.stages {
		if vc == nil {
			continue
		}
		if err := vc.store.Close(); err != nil {
			Logger().Warn("closing shader store", "category", vc.category, "err", err)
		}
		if destroyModules {
			vc.mu.Lock()
			for _, e := range vc.entries {
				if e.state.Load() == stateResolved && e.module != nil {
					c.cfg.Modules.DestroyModule(e.module.handle)
					c.stats.modulesAlive.Add(^uint64(0))
				}
			}
			vc.entries = make(map[VariantKey]*shaderEntry)
			vc.mu.Unlock()
		}
		c.stages[stage] = nil
	}
}

// newModule wraps a backend handle with a cache-unique identity.
func (c *Cache) newModule(key VariantKey, handle hal.ShaderModule) *Module {
	return &Module{
		id:     ModuleID(c.nextModuleID.Add(1)),
		stage:  key.Stage,
		key:    key,
		handle: handle,
	}
}

// Module resolves a variant key to a compiled shader module, compiling on
// first sight. It returns nil when the stage is unavailable or the variant
// failed to compile earlier in the session; callers treat nil as "no shader
// to bind", never as a retryable condition.
//
// At most one compile attempt is ever made per distinct key: the first
// lookup claims the entry atomically, concurrent lookups for the same key
// wait for its outcome.
func (c *Cache) Module(key VariantKey) *Module {
	if key.Stage >= numStages {
		return nil
	}
	key.Canonicalize()
	vc := c.stages[key.Stage]
	if vc == nil {
		return nil
	}

	if !key.Stage.uber() {
		c.usage.Add(c.workload, key)
	}
	return c.resolveModule(vc, key)
}

// resolveModule is the internal lookup path shared by Module and the
// precompile passes; it does not record usage.
func (c *Cache) resolveModule(vc *variantCache, key VariantKey) *Module {
	e := vc.getOrAdd(key)
	if e.state.CompareAndSwap(stateUnresolved, stateResolving) {
		c.compileEntry(vc, key, e)
	} else if e.state.Load() != stateResolved {
		<-e.ready
	}
	return e.module
}

// compileEntry runs the full miss path for one claimed entry: generate
// source, compile, create the module, persist the binary. Any failure is
// terminal for the key this session and is not persisted.
func (c *Cache) compileEntry(vc *variantCache, key VariantKey, e *shaderEntry) {
	source, err := c.cfg.Generator.Generate(key, c.cfg.Host)

	var compiled []byte
	if err == nil {
		compiled, err = c.cfg.Compiler.Compile(key.Stage, source)
	}

	var handle hal.ShaderModule
	if err == nil {
		handle, err = c.cfg.Modules.CreateModule(compiled)
	}

	if err != nil {
		Logger().Warn("shader compile failed",
			"stage", key.Stage, "key", fmt.Sprintf("%016x", key.Hash), "err", err)
		c.stats.modulesFailed.Add(1)
		e.resolve(nil)
		return
	}

	if err := vc.append(key, compiled); err != nil {
		// Persistence failure costs a recompile next session, nothing more.
		Logger().Warn("appending shader binary", "category", vc.category, "err", err)
	}

	c.stats.modulesCreated.Add(1)
	c.stats.modulesAlive.Add(1)
	e.resolve(c.newModule(key, handle))
}

// attempted reports whether key already has a claimed or resolved entry.
func (c *Cache) attempted(key VariantKey) bool {
	vc := c.stages[key.Stage]
	if vc == nil {
		return true
	}
	e := vc.lookup(key)
	return e != nil && e.attempted()
}

// loadUsage restores persisted usage counts for the current workload.
func (c *Cache) loadUsage() {
	path := c.usagePath()
	var entries []profiler.Entry[VariantKey]
	res, err := diskcache.Read(path, KeySchemaVersion, func(keyBytes, payload []byte) bool {
		if len(payload) != 4 {
			return false
		}
		key, err := DecodeVariantKey(keyBytes)
		if err != nil {
			return false
		}
		entries = append(entries, profiler.Entry[VariantKey]{
			Key:   key,
			Count: binary.LittleEndian.Uint32(payload),
		})
		return true
	})
	if err != nil {
		// The file is only written on Close, so a first run has none.
		if !errors.Is(err, os.ErrNotExist) {
			Logger().Warn("reading usage store", "err", err)
		}
		return
	}

	c.usage.Restore(c.workload, entries)
	Logger().Info("usage rankings loaded", "keys", len(entries), "truncated", res.Truncated)
}

// persistUsage writes the current usage snapshot, replacing the previous
// file atomically (write to temp, rename over).
func (c *Cache) persistUsage() error {
	path := c.usagePath()
	tmp := path + ".tmp"
	os.Remove(tmp)

	store, _, err := diskcache.OpenAndReplay(tmp, KeySchemaVersion, nil)
	if err != nil {
		return fmt.Errorf("shadercache: persist usage: %w", err)
	}

	var count [4]byte
	for _, e := range c.usage.Snapshot(c.workload) {
		binary.LittleEndian.PutUint32(count[:], e.Count)
		if err := store.Append(e.Key.EncodeBinary(), count[:]); err != nil {
			store.Close()
			os.Remove(tmp)
			return fmt.Errorf("shadercache: persist usage: %w", err)
		}
	}
	if err := store.Sync(); err != nil {
		store.Close()
		os.Remove(tmp)
		return fmt.Errorf("shadercache: persist usage: %w", err)
	}
	if err := store.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("shadercache: persist usage: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("shadercache: persist usage: %w", err)
	}
	return nil
}

// Clear destroys every live pipeline and shader module handle and empties
// the in-memory maps. The persistent stores are untouched, so cleared
// variants still replay next session.
//
// The caller must have drained the device's submission queue first:
// destroying a handle the device is still executing against is undefined
// behavior.
func (c *Cache) Clear() {
	c.clearPipelines()
	for _, vc := range c.stages {
		if vc == nil {
			continue
		}
		vc.mu.Lock()
		for _, e := range vc.entries {
			if e.state.Load() == stateResolved && e.module != nil {
				c.cfg.Modules.DestroyModule(e.module.handle)
				c.stats.modulesAlive.Add(^uint64(0))
			}
		}
		vc.entries = make(map[VariantKey]*shaderEntry)
		vc.mu.Unlock()
	}
	c.destroySharedShaders()
}

// Reload rebuilds the cache at a session boundary: the device-bound blob is
// saved, live pipelines are cleared, every shader store is closed and
// reopened (replaying its records into fresh modules), ranked variants are
// recompiled eagerly, and the device-bound cache is recreated from the
// freshly saved blob.
//
// Like Clear, Reload requires an idle device queue.
func (c *Cache) Reload() error {
	if c.closed.Load() {
		return ErrClosed
	}

	if c.binary != nil {
		if err := c.binary.save(); err != nil {
			Logger().Warn("saving device-bound cache before reload", "err", err)
		}
	}

	c.clearPipelines()
	c.destroySharedShaders()
	c.closeStores(true)

	if err := c.openStores(); err != nil {
		return err
	}
	if err := c.compileSharedShaders(); err != nil {
		return err
	}

	c.PrecompileUberShaders()
	c.PrecompileMostUsed(c.cfg.PrecompileLimit)

	if c.binary != nil {
		c.binary.cacher.Destroy()
		if err := c.binary.create(true); err != nil {
			// The runtime object is gone and no replacement exists. Drop the
			// layer entirely so Close does not read from or destroy a dead
			// object; pipelines keep working, first links are just slower.
			c.binary = nil
			return err
		}
	}
	return nil
}

// Close tears the cache down: usage rankings are persisted, the
// device-bound blob is saved and its runtime object destroyed, every live
// handle is destroyed, and every store is flushed and closed. Close is
// idempotent.
func (c *Cache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	var errs []error
	if err := c.persistUsage(); err != nil {
		errs = append(errs, err)
	}
	if c.binary != nil {
		if err := c.binary.save(); err != nil {
			errs = append(errs, err)
		}
		c.binary.cacher.Destroy()
	}
	c.clearPipelines()
	c.destroySharedShaders()
	c.closeStores(true)

	return errors.Join(errs...)
}
