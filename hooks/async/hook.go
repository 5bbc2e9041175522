// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/strata"
//	"github.com/unkn0wn-root/strata/hooks/async"
//	"github.com/unkn0wn-root/strata/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    EvictedEvery:  10, // sample logs: ~every 10th eviction
//	    SelfHealEvery: 1,  // log every self-heal
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	cache, _ := strata.New[User](strata.Options[User]{
//	    Dir:       "/var/cache/app",
//	    Namespace: "user",
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/strata"
)

type Hooks struct {
	inner strata.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ strata.Hooks = (*Hooks)(nil)

func New(inner strata.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) Evicted(k string)     { h.try(func() { h.inner.Evicted(k) }) }
func (h *Hooks) SelfHeal(k, r string) { h.try(func() { h.inner.SelfHeal(k, r) }) }
