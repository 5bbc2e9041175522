package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/strata"
)

type fakeSource struct{ s strata.Stats }

func (f fakeSource) Stats() strata.Stats { return f.s }

func TestCollectorOutput(t *testing.T) {
	src := fakeSource{s: strata.Stats{
		Hits:        6,
		Misses:      2,
		HitRate:     0.75,
		MemoryItems: 3,
		MemoryBytes: 1024,
		DiskItems:   9,
		DiskBytes:   4096,
	}}
	c := NewCollector("test", src)

	expected := `
# HELP strata_disk_bytes On-disk bytes indexed by the file tier.
# TYPE strata_disk_bytes gauge
strata_disk_bytes{cache="test"} 4096
# HELP strata_disk_items Entries indexed by the file tier.
# TYPE strata_disk_items gauge
strata_disk_items{cache="test"} 9
# HELP strata_hit_rate Hits divided by total reads.
# TYPE strata_hit_rate gauge
strata_hit_rate{cache="test"} 0.75
# HELP strata_hits_total Cache hits since start or the last reset.
# TYPE strata_hits_total counter
strata_hits_total{cache="test"} 6
# HELP strata_memory_bytes Bytes held by the memory tier.
# TYPE strata_memory_bytes gauge
strata_memory_bytes{cache="test"} 1024
# HELP strata_memory_items Entries held by the memory tier.
# TYPE strata_memory_items gauge
strata_memory_items{cache="test"} 3
# HELP strata_misses_total Cache misses since start or the last reset.
# TYPE strata_misses_total counter
strata_misses_total{cache="test"} 2
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestCollectorAgainstLiveCache(t *testing.T) {
	cache, err := strata.New[string](strata.Options[string]{Dir: t.TempDir()})
	require.NoError(t, err)
	defer cache.Close()

	c := NewCollector("live", cache)
	// 7 descriptors, one metric each.
	require.Equal(t, 7, testutil.CollectAndCount(c))
}
