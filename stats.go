package shadercache

import "sync/atomic"

// cacheStats holds the live counters. All fields are atomic so lookups on
// any goroutine can bump them without taking cache locks.
type cacheStats struct {
	modulesCreated   atomic.Uint64
	modulesAlive     atomic.Uint64
	modulesFailed    atomic.Uint64
	pipelinesCreated atomic.Uint64
	pipelineHits     atomic.Uint64
	pipelineMisses   atomic.Uint64
}

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	// ModulesCreated counts every shader module built this session,
	// including modules recreated from disk replay.
	ModulesCreated uint64

	// ModulesAlive counts modules currently held by the cache.
	ModulesAlive uint64

	// ModulesFailed counts variant keys remembered as permanent compile
	// failures.
	ModulesFailed uint64

	// PipelinesCreated counts successful pipeline links.
	PipelinesCreated uint64

	// PipelineHits and PipelineMisses count pipeline lookups that found,
	// respectively did not find, an existing entry.
	PipelineHits   uint64
	PipelineMisses uint64

	// Pipelines is the number of pipeline entries currently cached,
	// including remembered failures.
	Pipelines int
}

// Stats returns a snapshot of cache activity. Counters are read atomically
// and may be mutually slightly out of date.
func (c *Cache) Stats() Stats {
	return Stats{
		ModulesCreated:   c.stats.modulesCreated.Load(),
		ModulesAlive:     c.stats.modulesAlive.Load(),
		ModulesFailed:    c.stats.modulesFailed.Load(),
		PipelinesCreated: c.stats.pipelinesCreated.Load(),
		PipelineHits:     c.stats.pipelineHits.Load(),
		PipelineMisses:   c.stats.pipelineMisses.Load(),
		Pipelines:        c.PipelineCount(),
	}
}

// HitRate returns the pipeline lookup hit rate in [0, 1], or 0 before any
// lookup.
func (c *Cache) HitRate() float64 {
	hits := c.stats.pipelineHits.Load()
	misses := c.stats.pipelineMisses.Load()
	total := hits + misses
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total)
}
