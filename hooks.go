package strata

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// An entry was removed from disk to make room or because a newer
	// key claimed its hash. Keys arrive with the namespace prefix
	// stripped.
	Evicted(key string)

	// An entry was dropped after a failed read.
	// reason ∈ {"corrupt", "stale_hash", "decode"}
	SelfHeal(key, reason string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Evicted(string)          {}
func (NopHooks) SelfHeal(string, string) {}
