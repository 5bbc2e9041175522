package strata

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/strata/codec"
	"github.com/unkn0wn-root/strata/compress"
)

// TTL sentinels. As arguments, NoExpiry pins an entry (overriding
// DefaultTTL); as a TTL result it means the entry never expires, and
// TTLMissing means the key does not exist.
const (
	NoExpiry   = time.Duration(-1)
	TTLMissing = time.Duration(-2)
)

// Item is one entry of a batch write. A zero TTL applies DefaultTTL,
// NoExpiry disables expiry for this item.
type Item[V any] struct {
	Key   string
	Value V
	TTL   time.Duration
}

// Cache is the two-tier cache API: a persistent sharded file store as
// the source of truth, fronted by a bounded in-memory LRU. V is the
// caller's value type; serialization is handled by a pluggable Codec[V].
//
// Get returns (zero, false, nil) both for a missing key and for a
// stored zero value; callers that need negative caching must store a
// sentinel of their own.
type Cache[V any] interface {
	Enabled() bool
	Close() error

	// Single
	Get(ctx context.Context, key string) (v V, ok bool, err error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	Del(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)

	// Expiry
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Persist(ctx context.Context, key string) (bool, error)
	Touch(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Bulk
	MGet(ctx context.Context, keys []string) (values map[string]V, missing []string, err error)
	MSet(ctx context.Context, items []Item[V]) error
	GetOrSet(ctx context.Context, key string, fn func(context.Context) (V, error), ttl time.Duration) (V, error)

	// Maintenance
	Keys(ctx context.Context, pattern string) ([]string, error)
	Len(ctx context.Context) (int, error)
	Prune(ctx context.Context) (int, error)
	Clear(ctx context.Context) error

	// Stats and ResetStats keep working after Close, so a registered
	// metrics collector can scrape through shutdown. Counters stop
	// advancing once the cache is closed.
	Stats() Stats
	ResetStats()
}

// Options tune the cache. Everything has a usable default; a zero
// Options value yields a JSON-encoded cache under ".cache".
type Options[V any] struct {
	// Dir is the root directory of the file tier. Default ".cache".
	Dir string
	// Namespace isolates keys of several caches sharing one directory;
	// every key is stored as "<namespace>:<key>".
	Namespace string

	MaxMemoryItems int   // memory cardinality bound; default 1000
	MaxMemoryBytes int64 // memory byte bound AND per-value admission bound; default 50 MiB
	MaxDiskBytes   int64 // disk byte bound that triggers eviction; default 500 MiB
	// Shards is the number of shard directories; must match across
	// restarts on the same directory. Default 16.
	Shards int

	DefaultTTL    time.Duration // applied when a write passes ttl 0; default none
	PruneInterval time.Duration // cadence of the background expiry sweep; 0 disables it

	// Gzip compresses new writes. Reads auto-detect, so flipping this
	// on an existing directory is safe in either direction.
	Gzip bool
	// Compressor overrides Gzip with an explicit transform.
	Compressor compress.Compressor

	Codec  c.Codec[V] // default codec.JSONCodec[V]
	Logger Logger     // if nil, NopLogger is used
	Hooks  Hooks      // if nil, NopHooks is used

	Disabled bool // default false (enabled); a disabled cache never stores anything
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
