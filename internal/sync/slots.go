package sync

import (
	"context"
	"sort"
)

// slot serializes mutations on one key. The holder owns the key until
// release; waiters queue in arrival order and ownership is handed to the
// first of them directly, so a newcomer can never overtake the queue.
type slot struct {
	waiters []chan struct{}
}

// acquire takes the slots of keys in sorted order and returns a function
// releasing all of them. Sorting gives multi-key holders a global lock
// order. Waiting stops when ctx is done.
func (c *Cache) acquire(ctx context.Context, keys ...Key) (func(), error) {
	keys = sortedUnique(keys)
	held := make([]Key, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			c.releaseSlot(held[i])
		}
	}
	for _, k := range keys {
		if err := c.acquireSlot(ctx, k); err != nil {
			release()
			return nil, err
		}
		held = append(held, k)
	}
	return release, nil
}

func (c *Cache) acquireSlot(ctx context.Context, k Key) error {
	c.mu.Lock()
	s, busy := c.slots[k]
	if !busy {
		c.slots[k] = &slot{}
		c.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	s.waiters = append(s.waiters, ready)
	c.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
	}

	c.mu.Lock()
	for i, w := range s.waiters {
		if w == ready {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			c.mu.Unlock()
			return ctx.Err()
		}
	}
	c.mu.Unlock()
	// Ownership was handed over while ctx expired; pass it on.
	c.releaseSlot(k)
	return ctx.Err()
}

func (c *Cache) releaseSlot(k Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[k]
	if !ok {
		return
	}
	if len(s.waiters) == 0 {
		delete(c.slots, k)
		return
	}
	next := s.waiters[0]
	s.waiters = s.waiters[1:]
	close(next)
}

func sortedUnique(keys []Key) []Key {
	out := make([]Key, 0, len(keys))
	seen := make(map[Key]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}
