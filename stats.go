package strata

// Stats is a point-in-time snapshot of cache counters. Hits and misses
// accumulate across operations until ResetStats; tier numbers reflect
// current occupancy. DiskItems/DiskBytes read the in-memory index and
// are zero until the first operation initializes the file tier.
type Stats struct {
	Hits    int64
	Misses  int64
	HitRate float64 // Hits / (Hits + Misses); 0 when no reads happened

	MemoryItems int
	MemoryBytes int64
	DiskItems   int
	DiskBytes   int64
}

// Stats ignores the closed flag: the snapshot reads atomics and
// in-memory indexes only, so it stays valid after Close.
func (c *cache[V]) Stats() Stats {
	h := c.hits.Load()
	m := c.misses.Load()
	var rate float64
	if h+m > 0 {
		rate = float64(h) / float64(h+m)
	}
	memItems, memBytes := c.mem.Stats()
	diskItems, diskBytes := c.disk.Counts()
	return Stats{
		Hits:        h,
		Misses:      m,
		HitRate:     rate,
		MemoryItems: memItems,
		MemoryBytes: memBytes,
		DiskItems:   diskItems,
		DiskBytes:   diskBytes,
	}
}

func (c *cache[V]) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
}
