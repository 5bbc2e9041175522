package strata

import "time"

// touchDebounce is the window in which repeated memory hits for one key
// collapse into a single disk mtime refresh.
const touchDebounce = 5 * time.Second

// scheduleTouch arms one deferred disk touch per key. The first memory
// hit in a window schedules it; later hits ride along. Timers never
// keep the process alive and are cancelled on Del, eviction, Clear and
// Close.
func (c *cache[V]) scheduleTouch(k string) {
	c.touchMu.Lock()
	defer c.touchMu.Unlock()
	if c.closed.Load() {
		return
	}
	if _, armed := c.touches[k]; armed {
		return
	}
	c.touches[k] = time.AfterFunc(c.touchDelay, func() {
		c.touchMu.Lock()
		delete(c.touches, k)
		c.touchMu.Unlock()
		if c.closed.Load() {
			return
		}
		if _, err := c.disk.Touch(k); err != nil {
			c.log.Debug("deferred touch failed", Fields{"key": c.strip(k), "err": err})
		}
	})
}

func (c *cache[V]) cancelTouch(k string) {
	c.touchMu.Lock()
	defer c.touchMu.Unlock()
	if t, ok := c.touches[k]; ok {
		t.Stop()
		delete(c.touches, k)
	}
}

func (c *cache[V]) cancelAllTouches() {
	c.touchMu.Lock()
	defer c.touchMu.Unlock()
	for k, t := range c.touches {
		t.Stop()
		delete(c.touches, k)
	}
}
