package keyhash

import (
	"strings"
	"testing"
)

func TestSumShape(t *testing.T) {
	h := Sum("user:1")
	if len(h) != 32 {
		t.Fatalf("digest length = %d, want 32", len(h))
	}
	if h != strings.ToLower(h) {
		t.Fatalf("digest is not lowercase hex: %q", h)
	}
	for _, r := range h {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("digest contains non-hex char %q", r)
		}
	}
}

func TestSumDeterministic(t *testing.T) {
	if Sum("k") != Sum("k") {
		t.Fatalf("same key produced different digests")
	}
	if Sum("k1") == Sum("k2") {
		t.Fatalf("distinct keys produced identical digests")
	}
	// Keys with path-hostile characters still map to plain hex names.
	for _, k := range []string{"", "a/b/../c", "nul\x00byte", "ünïcödé"} {
		if len(Sum(k)) != 32 {
			t.Fatalf("digest length for %q = %d, want 32", k, len(Sum(k)))
		}
	}
}

func TestShardRange(t *testing.T) {
	keys := []string{"a", "b", "user:42", "", "πάθος", "x/y"}
	for _, n := range []int{1, 2, 16, 256} {
		for _, k := range keys {
			idx := Shard(Sum(k), n)
			if idx < 0 || idx >= n {
				t.Fatalf("Shard(%q, %d) = %d out of range", k, n, idx)
			}
		}
	}
}

func TestShardStable(t *testing.T) {
	h := Sum("stable")
	first := Shard(h, 16)
	for i := 0; i < 10; i++ {
		if Shard(h, 16) != first {
			t.Fatalf("shard index changed between calls")
		}
	}
}

func TestShardShortHash(t *testing.T) {
	if got := Shard("abc", 16); got != 0 {
		t.Fatalf("short hash should map to shard 0, got %d", got)
	}
}

func TestDir(t *testing.T) {
	cases := map[int]string{0: "00", 1: "01", 10: "0a", 15: "0f", 255: "ff"}
	for idx, want := range cases {
		if got := Dir(idx); got != want {
			t.Fatalf("Dir(%d) = %q, want %q", idx, got, want)
		}
	}
}
