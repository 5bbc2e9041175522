package strata

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// MGet runs concurrent Gets over keys. values holds the hits; missing
// preserves the input order of the keys that were not found.
func (c *cache[V]) MGet(ctx context.Context, keys []string) (map[string]V, []string, error) {
	if c.closed.Load() {
		return nil, nil, ErrClosed
	}
	values := make(map[string]V, len(keys))
	if !c.enabled {
		missing := make([]string, 0, len(keys))
		missing = append(missing, keys...)
		return values, missing, nil
	}
	if len(keys) == 0 {
		return values, nil, nil
	}

	type slot struct {
		v  V
		ok bool
	}
	slots := make([]slot, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	for i, k := range keys {
		g.Go(func() error {
			v, ok, err := c.Get(ctx, k)
			if err != nil {
				return err
			}
			slots[i] = slot{v: v, ok: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var missing []string
	for i, k := range keys {
		if slots[i].ok {
			values[k] = slots[i].v
		} else {
			missing = append(missing, k)
		}
	}
	return values, missing, nil
}

// MSet writes a batch. All values are encoded up front, so an
// unencodable value fails the whole call before anything is written.
// The per-item disk and memory writes then run concurrently.
func (c *cache[V]) MSet(ctx context.Context, items []Item[V]) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.enabled || len(items) == 0 {
		return nil
	}

	encoded := make([][]byte, len(items))
	for i, it := range items {
		b, err := c.codec.Encode(it.Value)
		if err != nil {
			return invalidValue(it.Key, err)
		}
		encoded[i] = b
	}

	g, _ := errgroup.WithContext(ctx)
	for i, it := range items {
		b := encoded[i]
		g.Go(func() error {
			k := c.key(it.Key)
			exp := c.resolveExpiry(it.TTL)
			mu := c.stripe(k)
			mu.Lock()
			defer mu.Unlock()
			return c.writeLocked(k, b, exp)
		})
	}
	return g.Wait()
}

// GetOrSet returns the cached value for key or computes it with fn,
// stores it, and returns it. Concurrent calls for the same key share a
// single fn invocation; a failed fn is shared by all waiters and
// nothing is cached, so the next call retries.
func (c *cache[V]) GetOrSet(ctx context.Context, key string, fn func(context.Context) (V, error), ttl time.Duration) (V, error) {
	var zero V
	if c.closed.Load() {
		return zero, ErrClosed
	}
	if !c.enabled {
		return fn(ctx)
	}

	v, ok, err := c.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	if ok {
		return v, nil
	}

	res, err, _ := c.sf.Do(c.key(key), func() (any, error) {
		if v, ok, err := c.Get(ctx, key); err != nil {
			return zero, err
		} else if ok {
			return v, nil
		}
		v, err := fn(ctx)
		if err != nil {
			return zero, err
		}
		if err := c.Set(ctx, key, v, ttl); err != nil {
			return zero, err
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return res.(V), nil
}
