package strata

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	cd "github.com/unkn0wn-root/strata/codec"
	"github.com/unkn0wn-root/strata/compress"
	"github.com/unkn0wn-root/strata/filestore"
	"github.com/unkn0wn-root/strata/memstore"
)

const lockStripes = 64

// cache coordinates the two tiers. Mutating operations and disk reads
// take a per-key stripe lock; memory-hit reads are lock-free beyond the
// tiers' own mutexes. Lock order is stripe -> tier, and the eviction
// upcall from the file tier takes no stripes, so writers re-check disk
// presence after mirroring into memory.
type cache[V any] struct {
	ns      string
	codec   cd.Codec[V]
	log     Logger
	hooks   Hooks
	enabled bool

	maxMemBytes int64
	defaultTTL  time.Duration
	touchDelay  time.Duration

	mem  *memstore.Store
	disk *filestore.Store

	locks [lockStripes]sync.Mutex
	sf    singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64

	touchMu sync.Mutex
	touches map[string]*time.Timer

	closed    atomic.Bool
	stopCh    chan struct{}
	closeOnce sync.Once
	closeWg   sync.WaitGroup
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Shards < 0 || opts.Shards > 256 {
		return nil, fmt.Errorf("strata: shards must be between 1 and 256")
	}
	if opts.MaxMemoryItems < 0 || opts.MaxMemoryBytes < 0 || opts.MaxDiskBytes < 0 {
		return nil, fmt.Errorf("strata: size bounds must be non-negative")
	}
	if opts.DefaultTTL < 0 {
		return nil, fmt.Errorf("strata: default ttl must be non-negative")
	}
	if opts.PruneInterval < 0 {
		return nil, fmt.Errorf("strata: prune interval must be non-negative")
	}

	c := &cache[V]{
		ns:         opts.Namespace,
		enabled:    !opts.Disabled,
		defaultTTL: opts.DefaultTTL,
		touchDelay: touchDebounce,
		touches:    make(map[string]*time.Timer),
		stopCh:     make(chan struct{}),
	}

	// defaults
	c.codec = coalesce[cd.Codec[V]](opts.Codec, cd.JSONCodec[V]{})
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.maxMemBytes = coalesce[int64](opts.MaxMemoryBytes, DefaultMaxMemoryBytes)

	comp := opts.Compressor
	if comp == nil {
		if opts.Gzip {
			comp = compress.Gzip{}
		} else {
			comp = compress.None{}
		}
	}

	c.mem = memstore.New(
		coalesce(opts.MaxMemoryItems, DefaultMaxMemoryItems),
		c.maxMemBytes,
	)
	c.disk = filestore.New(filestore.Config{
		Dir:        coalesce(opts.Dir, DefaultDir),
		Shards:     coalesce(opts.Shards, DefaultShards),
		MaxBytes:   coalesce[int64](opts.MaxDiskBytes, DefaultMaxDiskBytes),
		Compressor: comp,
		OnEvict:    c.onDiskEvict,
		OnHeal:     c.onDiskHeal,
	})

	if opts.PruneInterval > 0 && c.enabled {
		c.closeWg.Add(1)
		go c.pruneLoop(opts.PruneInterval)
	}
	return c, nil
}

func (c *cache[V]) Enabled() bool { return c.enabled }

// key applies the namespace prefix.
func (c *cache[V]) key(userKey string) string {
	if c.ns == "" {
		return userKey
	}
	return c.ns + ":" + userKey
}

func (c *cache[V]) strip(k string) string {
	if c.ns == "" {
		return k
	}
	return strings.TrimPrefix(k, c.ns+":")
}

func (c *cache[V]) stripe(k string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(k))
	return &c.locks[h.Sum32()%lockStripes]
}

// resolveExpiry maps a caller TTL to an absolute unix-ms expiry.
// Positive expires; 0 applies DefaultTTL; negative (NoExpiry) pins.
func (c *cache[V]) resolveExpiry(ttl time.Duration) int64 {
	switch {
	case ttl > 0:
		return time.Now().Add(ttl).UnixMilli()
	case ttl == 0 && c.defaultTTL > 0:
		return time.Now().Add(c.defaultTTL).UnixMilli()
	default:
		return 0
	}
}

func (c *cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if c.closed.Load() {
		return zero, false, ErrClosed
	}
	if !c.enabled {
		return zero, false, nil
	}
	k := c.key(key)

	if b, ok := c.mem.Get(k); ok {
		v, err := c.codec.Decode(b)
		if err == nil {
			c.hits.Add(1)
			c.scheduleTouch(k)
			return v, true, nil
		}
		c.mem.Delete(k) // undecodable memory copy; retry from disk
	}

	mu := c.stripe(k)
	mu.Lock()
	defer mu.Unlock()

	if b, ok := c.mem.Get(k); ok {
		if v, err := c.codec.Decode(b); err == nil {
			c.hits.Add(1)
			c.scheduleTouch(k)
			return v, true, nil
		}
		c.mem.Delete(k)
	}

	ent, ok, err := c.disk.Get(k)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		c.misses.Add(1)
		return zero, false, nil
	}
	v, err := c.codec.Decode(ent.Value)
	if err != nil {
		_, _ = c.disk.Delete(k) // self-heal undecodable value
		c.hooks.SelfHeal(key, "decode")
		c.log.Debug("self-healed entry", Fields{"key": key, "reason": "decode"})
		c.misses.Add(1)
		return zero, false, nil
	}
	if int64(len(ent.Value)) <= c.maxMemBytes {
		c.mem.Set(k, ent.Value, ent.ExpiresAt)
		c.ensureMirrored(k)
	}
	c.hits.Add(1)
	return v, true, nil
}

func (c *cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.enabled {
		return nil
	}
	b, err := c.codec.Encode(value)
	if err != nil {
		return invalidValue(key, err)
	}
	k := c.key(key)
	exp := c.resolveExpiry(ttl)

	mu := c.stripe(k)
	mu.Lock()
	defer mu.Unlock()
	return c.writeLocked(k, b, exp)
}

// writeLocked performs the disk-first write for one prefixed key.
// The caller holds the key's stripe.
func (c *cache[V]) writeLocked(k string, value []byte, expiresAt int64) error {
	if err := c.disk.Set(k, value, expiresAt); err != nil {
		// the disk entry is gone; the memory copy must go with it
		c.mem.Delete(k)
		c.cancelTouch(k)
		return err
	}
	if int64(len(value)) <= c.maxMemBytes {
		c.mem.Set(k, value, expiresAt)
		c.ensureMirrored(k)
	} else {
		// too large for the hot tier; a smaller stale copy may linger
		c.mem.Delete(k)
	}
	return nil
}

// ensureMirrored drops the memory copy when the disk entry vanished
// between the disk operation and the memory write. The eviction upcall
// runs without stripe locks, so this re-check closes the race.
func (c *cache[V]) ensureMirrored(k string) {
	has, err := c.disk.Has(k)
	if err != nil || !has {
		c.mem.Delete(k)
	}
}

func (c *cache[V]) Del(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	if !c.enabled {
		return false, nil
	}
	k := c.key(key)

	mu := c.stripe(k)
	mu.Lock()
	defer mu.Unlock()

	c.cancelTouch(k)
	memHad := c.mem.Delete(k)
	diskHad, err := c.disk.Delete(k)
	if err != nil {
		return false, err
	}
	return memHad || diskHad, nil
}

func (c *cache[V]) Exists(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	if !c.enabled {
		return false, nil
	}
	k := c.key(key)
	if c.mem.Has(k) {
		return true, nil
	}
	return c.disk.Has(k)
}

// Expire sets a new TTL. ttl <= 0 removes the expiry, same as Persist.
func (c *cache[V]) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var exp int64
	if ttl > 0 {
		exp = time.Now().Add(ttl).UnixMilli()
	}
	return c.setExpiry(key, exp)
}

// Persist removes the expiry of a live entry.
func (c *cache[V]) Persist(ctx context.Context, key string) (bool, error) {
	return c.setExpiry(key, 0)
}

func (c *cache[V]) setExpiry(key string, expiresAt int64) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	if !c.enabled {
		return false, nil
	}
	k := c.key(key)

	mu := c.stripe(k)
	mu.Lock()
	defer mu.Unlock()

	ok, err := c.disk.SetExpiry(k, expiresAt)
	if err != nil || !ok {
		return false, err
	}
	c.mem.SetExpiry(k, expiresAt) // best effort; memory may not hold the key
	return true, nil
}

// Touch refreshes the entry's LRU standing in both tiers without
// reading its value. The disk side persists via the file mtime.
func (c *cache[V]) Touch(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	if !c.enabled {
		return false, nil
	}
	k := c.key(key)

	mu := c.stripe(k)
	mu.Lock()
	defer mu.Unlock()

	ok, err := c.disk.Touch(k)
	if err != nil || !ok {
		return false, err
	}
	c.mem.Touch(k)
	return true, nil
}

// TTL reports the remaining lifetime of key: NoExpiry for entries
// without expiry, TTLMissing for absent keys. Memory is authoritative
// when it holds the key.
func (c *cache[V]) TTL(ctx context.Context, key string) (time.Duration, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	if !c.enabled {
		return TTLMissing, nil
	}
	k := c.key(key)

	if exp, ok := c.mem.ExpiresAt(k); ok {
		return remaining(exp), nil
	}
	exp, ok, err := c.disk.ExpiresAt(k)
	if err != nil {
		return 0, err
	}
	if !ok {
		return TTLMissing, nil
	}
	return remaining(exp), nil
}

func remaining(expiresAt int64) time.Duration {
	if expiresAt == 0 {
		return NoExpiry
	}
	d := time.Until(time.UnixMilli(expiresAt))
	if d < 0 {
		d = 0
	}
	return d
}

// onDiskEvict keeps memory a subset of disk when the file tier drops an
// entry for space or after a hash collision.
func (c *cache[V]) onDiskEvict(k string) {
	c.mem.Delete(k)
	c.cancelTouch(k)
	key := c.strip(k)
	c.hooks.Evicted(key)
	c.log.Debug("disk evicted entry", Fields{"key": key})
}

func (c *cache[V]) onDiskHeal(k, reason string) {
	c.mem.Delete(k)
	c.cancelTouch(k)
	key := c.strip(k)
	c.hooks.SelfHeal(key, reason)
	c.log.Debug("self-healed entry", Fields{"key": key, "reason": reason})
}
