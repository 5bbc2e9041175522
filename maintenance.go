package strata

import (
	"context"
	"sort"
	"time"

	"github.com/unkn0wn-root/strata/internal/glob"
)

// Keys lists the live keys matching pattern across both tiers, with the
// namespace prefix stripped, deduplicated and sorted. An empty pattern
// means "*".
func (c *cache[V]) Keys(ctx context.Context, pattern string) ([]string, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if !c.enabled {
		return nil, nil
	}
	if pattern == "" {
		pattern = "*"
	}
	m := glob.Compile(c.key(pattern))

	diskKeys, err := c.disk.Keys(m)
	if err != nil {
		return nil, err
	}
	memKeys := c.mem.Keys(m)

	seen := make(map[string]struct{}, len(diskKeys)+len(memKeys))
	out := make([]string, 0, len(diskKeys))
	for _, k := range diskKeys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c.strip(k))
	}
	for _, k := range memKeys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c.strip(k))
	}
	sort.Strings(out)
	return out, nil
}

// Len is the number of entries on disk, the source of truth.
func (c *cache[V]) Len(ctx context.Context) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	if !c.enabled {
		return 0, nil
	}
	return c.disk.Len()
}

// Prune removes expired entries from both tiers and returns the disk
// tier's count.
func (c *cache[V]) Prune(ctx context.Context) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	if !c.enabled {
		return 0, nil
	}
	c.mem.Prune()
	return c.disk.Prune()
}

// Clear removes every entry from both tiers and cancels all pending
// disk touches.
func (c *cache[V]) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.enabled {
		return nil
	}
	c.cancelAllTouches()
	c.mem.Clear()
	return c.disk.Clear()
}

// Close stops the background pruner and all pending touches and marks
// the cache closed. Safe to call more than once; every operation after
// the first Close returns ErrClosed, except Stats and ResetStats, which
// keep serving the frozen counters.
func (c *cache[V]) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.stopCh)
		c.closeWg.Wait()
		c.cancelAllTouches()
	})
	return nil
}

func (c *cache[V]) pruneLoop(interval time.Duration) {
	defer c.closeWg.Done()
	c.log.Debug("prune loop started", Fields{"interval": interval})
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.mem.Prune()
			if _, err := c.disk.Prune(); err != nil {
				c.log.Warn("background prune failed", Fields{"err": err})
			}
		case <-c.stopCh:
			return
		}
	}
}
