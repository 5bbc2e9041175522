package strata

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// ==============================
// MGet / MSet
// ==============================

func TestMGetMixedHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil)

	va := user{ID: "a"}
	vb := user{ID: "b"}
	if err := cc.Set(ctx, "a", va, NoExpiry); err != nil {
		t.Fatalf("Set a: %v", err)
	}
	if err := cc.Set(ctx, "b", vb, NoExpiry); err != nil {
		t.Fatalf("Set b: %v", err)
	}

	values, missing, err := cc.MGet(ctx, []string{"c", "a", "d", "b"})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if len(values) != 2 || values["a"] != va || values["b"] != vb {
		t.Fatalf("values: %v", values)
	}
	// missing preserves the input order.
	if !eqStrings(missing, []string{"c", "d"}) {
		t.Fatalf("missing: %v", missing)
	}
}

func TestMGetEmptyInput(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil)

	values, missing, err := cc.MGet(ctx, nil)
	if err != nil || len(values) != 0 || len(missing) != 0 {
		t.Fatalf("MGet(nil): values=%v missing=%v err=%v", values, missing, err)
	}
}

func TestMSetWritesBatch(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil)

	va := user{ID: "a"}
	vb := user{ID: "b"}
	vc := user{ID: "c"}
	items := []Item[user]{
		{Key: "a", Value: va, TTL: NoExpiry},
		{Key: "b", Value: vb, TTL: 500 * time.Millisecond},
		{Key: "c", Value: vc}, // zero ttl, no DefaultTTL -> pinned
	}
	if err := cc.MSet(ctx, items); err != nil {
		t.Fatalf("MSet: %v", err)
	}

	for _, it := range items {
		got, ok, err := cc.Get(ctx, it.Key)
		if err != nil || !ok || got != it.Value {
			t.Fatalf("Get %s: ok=%v err=%v got=%+v", it.Key, ok, err, got)
		}
	}
	if d, _ := cc.TTL(ctx, "a"); d != NoExpiry {
		t.Fatalf("TTL a: %v", d)
	}
	if d, _ := cc.TTL(ctx, "b"); d <= 0 || d > 500*time.Millisecond {
		t.Fatalf("TTL b: %v", d)
	}
	if d, _ := cc.TTL(ctx, "c"); d != NoExpiry {
		t.Fatalf("TTL c: %v", d)
	}
	if n, _ := cc.Len(ctx); n != 3 {
		t.Fatalf("Len: %d", n)
	}
}

// One unencodable value fails the whole batch before anything is
// written.
func TestMSetRejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	cc, err := New[float64](Options[float64]{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })

	err = cc.MSet(ctx, []Item[float64]{
		{Key: "good", Value: 1.5},
		{Key: "bad", Value: math.Inf(1)},
	})
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("want ErrInvalidValue, got %v", err)
	}
	if _, ok, _ := cc.Get(ctx, "good"); ok {
		t.Fatalf("failed batch must not write any item")
	}
	if n, _ := cc.Len(ctx); n != 0 {
		t.Fatalf("Len after failed batch: %d", n)
	}
}

func TestMSetEmptyInput(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil)
	if err := cc.MSet(ctx, nil); err != nil {
		t.Fatalf("MSet(nil): %v", err)
	}
}

// ==============================
// GetOrSet
// ==============================

func TestGetOrSetComputesOnceThenCaches(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil)

	v := user{ID: "c", Name: "Computed"}
	var calls atomic.Int32
	fn := func(context.Context) (user, error) {
		calls.Add(1)
		return v, nil
	}

	got, err := cc.GetOrSet(ctx, "k", fn, NoExpiry)
	if err != nil || got != v {
		t.Fatalf("GetOrSet: got=%+v err=%v", got, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("fn calls: %d", calls.Load())
	}

	got, err = cc.GetOrSet(ctx, "k", fn, NoExpiry)
	if err != nil || got != v {
		t.Fatalf("GetOrSet cached: got=%+v err=%v", got, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("cached call re-ran fn, calls=%d", calls.Load())
	}

	if got, ok, _ := cc.Get(ctx, "k"); !ok || got != v {
		t.Fatalf("computed value not cached: ok=%v got=%+v", ok, got)
	}
}

func TestGetOrSetSkipsFnOnHit(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil)

	v := user{ID: "s"}
	if err := cc.Set(ctx, "k", v, NoExpiry); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var calls atomic.Int32
	got, err := cc.GetOrSet(ctx, "k", func(context.Context) (user, error) {
		calls.Add(1)
		return user{ID: "other"}, nil
	}, NoExpiry)
	if err != nil || got != v {
		t.Fatalf("GetOrSet: got=%+v err=%v", got, err)
	}
	if calls.Load() != 0 {
		t.Fatalf("fn ran on a hit, calls=%d", calls.Load())
	}
}

// TestGetOrSetStampede releases concurrent callers at once; fn must run
// exactly once and every caller gets its result.
func TestGetOrSetStampede(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil)

	v := user{ID: "hot"}
	var calls atomic.Int32
	fn := func(context.Context) (user, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return v, nil
	}

	const n = 5
	start := make(chan struct{})
	var wg sync.WaitGroup
	results := make([]user, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i], errs[i] = cc.GetOrSet(ctx, "hot", fn, NoExpiry)
		}()
	}
	close(start)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("fn ran %d times, want 1", calls.Load())
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil || results[i] != v {
			t.Fatalf("caller %d: got=%+v err=%v", i, results[i], errs[i])
		}
	}
}

func TestGetOrSetErrorNotCached(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil)

	sentinel := errors.New("backend down")
	if _, err := cc.GetOrSet(ctx, "k", func(context.Context) (user, error) {
		return user{}, sentinel
	}, NoExpiry); !errors.Is(err, sentinel) {
		t.Fatalf("want fn error, got %v", err)
	}
	if _, ok, _ := cc.Get(ctx, "k"); ok {
		t.Fatalf("failed compute must not cache")
	}

	// The next call retries.
	v := user{ID: "r"}
	var calls atomic.Int32
	got, err := cc.GetOrSet(ctx, "k", func(context.Context) (user, error) {
		calls.Add(1)
		return v, nil
	}, NoExpiry)
	if err != nil || got != v || calls.Load() != 1 {
		t.Fatalf("retry: got=%+v err=%v calls=%d", got, err, calls.Load())
	}
}

func TestGetOrSetRespectsTTL(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, nil)

	v := user{ID: "t"}
	var calls atomic.Int32
	fn := func(context.Context) (user, error) {
		calls.Add(1)
		return v, nil
	}

	if _, err := cc.GetOrSet(ctx, "k", fn, 50*time.Millisecond); err != nil {
		t.Fatalf("GetOrSet: %v", err)
	}
	time.Sleep(120 * time.Millisecond)
	if _, err := cc.GetOrSet(ctx, "k", fn, 50*time.Millisecond); err != nil {
		t.Fatalf("GetOrSet after expiry: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expired entry should recompute, calls=%d", calls.Load())
	}
}
