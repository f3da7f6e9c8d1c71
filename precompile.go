package shadercache

// Bulk precompilation. Both passes share the skip rule: an entry that has
// already been attempted (success or failure) is never re-entered, so
// repeated passes do no redundant work.

// PrecompileMostUsed compiles the known shader variants for the current
// workload in descending usage order, most used first, until limit
// successful-or-failed compiles were attempted (limit <= 0 means no bound).
// Already-attempted variants are filtered out before the traversal, so the
// reported total reflects only remaining work.
func (c *Cache) PrecompileMostUsed(limit int) {
	compiled := 0
	c.usage.ForEachMostUsed(c.workload,
		func(key VariantKey, index, total int) {
			if limit > 0 && compiled >= limit {
				return
			}
			compiled++
			c.report("Compiling shaders", index+1, total)
			if vc := c.stages[key.Stage]; vc != nil {
				c.resolveModule(vc, key)
			}
		},
		func(key VariantKey) bool {
			return c.attempted(key)
		},
		true)
	c.reportDone()
}

// PrecompileUberShaders enumerates the uber variant space and compiles
// every variant not yet attempted. It does nothing when no enumerator is
// configured.
func (c *Cache) PrecompileUberShaders() {
	if c.cfg.UberShaders == nil {
		return
	}

	for _, stage := range []Stage{StageUberVertex, StageUberPixel} {
		keys := c.cfg.UberShaders(stage)
		vc := c.stages[stage]
		if vc == nil {
			continue
		}
		for i, key := range keys {
			key.Canonicalize()
			c.report("Compiling uber shaders", i+1, len(keys))
			c.resolveModule(vc, key)
		}
	}
	c.reportDone()
}

// report forwards progress to the configured reporter, if any.
func (c *Cache) report(label string, current, total int) {
	if c.cfg.Progress != nil {
		c.cfg.Progress(label, current, total)
	}
}

// reportDone sends the terminal sentinel that clears the display.
func (c *Cache) reportDone() {
	c.report("", -1, -1)
}
