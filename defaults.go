package strata

const (
	// DefaultDir is the cache root when Options.Dir is empty.
	DefaultDir = ".cache"

	DefaultMaxMemoryItems = 1000
	DefaultMaxMemoryBytes = 50 << 20  // 50 MiB
	DefaultMaxDiskBytes   = 500 << 20 // 500 MiB
	DefaultShards         = 16
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
