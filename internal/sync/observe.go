package sync

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/workboard/internal/model"
)

// Reason says why a snapshot was published.
type Reason string

const (
	ReasonLoaded     Reason = "loaded"
	ReasonOptimistic Reason = "optimistic"
	ReasonConfirmed  Reason = "confirmed"
	ReasonRolledBack Reason = "rolled_back"
	ReasonRefreshed  Reason = "refreshed"
	ReasonMerged     Reason = "merged"
	ReasonEvicted    Reason = "evicted"
)

// Change is one published snapshot. Exactly one of Task or Project is set,
// except for ReasonEvicted where both are nil.
type Change struct {
	Key     Key
	Task    *model.Task
	Project *model.Project
	Pending bool
	Reason  Reason
}

// Observer is called synchronously for every change, outside the cache
// lock. It must not block.
type Observer func(Change)

// ChangeMsg is a tea.Msg carrying a cache change.
type ChangeMsg struct {
	Change
}

// subscriptionBuffer is how many changes a slow subscriber may lag behind
// before further changes are dropped for it.
const subscriptionBuffer = 64

// Subscription delivers changes on a buffered channel.
type Subscription struct {
	ch chan Change
}

// C returns the channel of changes. It is closed when the cache closes or
// the subscription is cancelled.
func (s *Subscription) C() <-chan Change { return s.ch }

func (s *Subscription) close() { close(s.ch) }

// Observe registers fn and returns a function that unregisters it.
func (c *Cache) Observe(fn Observer) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.observe(fn)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// observe registers fn; c.mu must be held or c not yet shared.
func (c *Cache) observe(fn Observer) int {
	c.nextObs++
	c.observers[c.nextObs] = fn
	return c.nextObs
}

// Subscribe returns a channel subscription. After Close it is already
// closed.
func (c *Cache) Subscribe() *Subscription {
	s := &Subscription{ch: make(chan Change, subscriptionBuffer)}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		s.close()
		return s
	}
	c.subs[s] = struct{}{}
	return s
}

// Unsubscribe cancels s and closes its channel.
func (c *Cache) Unsubscribe(s *Subscription) {
	c.mu.Lock()
	_, ok := c.subs[s]
	delete(c.subs, s)
	c.mu.Unlock()
	if ok {
		s.close()
	}
}

// WaitForChange returns a tea.Cmd that waits for the next change on sub.
// Call it again after handling each ChangeMsg to keep listening.
func WaitForChange(sub *Subscription) tea.Cmd {
	return func() tea.Msg {
		ch, ok := <-sub.ch
		if !ok {
			return nil
		}
		return ChangeMsg{Change: ch}
	}
}

func newChange(k Key, e *entry, reason Reason) Change {
	ch := Change{Key: k, Pending: e.pending, Reason: reason}
	if e.snapshot.task != nil {
		t := e.snapshot.task.Clone()
		ch.Task = &t
	}
	if e.snapshot.project != nil {
		p := e.snapshot.project.Clone()
		ch.Project = &p
	}
	return ch
}

// notify delivers changes to observers, then to subscriptions without
// blocking: a full subscription drops the change.
func (c *Cache) notify(changes []Change) {
	if len(changes) == 0 {
		return
	}
	c.mu.Lock()
	observers := make([]Observer, 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	subs := make([]*Subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, ch := range changes {
		for _, fn := range observers {
			fn(ch)
		}
		for _, s := range subs {
			c.send(s, ch)
		}
	}
}

func (c *Cache) send(s *Subscription, ch Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, live := c.subs[s]; !live {
		return
	}
	select {
	case s.ch <- ch:
	default:
		c.logger.Debug("subscription full, dropping change", "key", ch.Key.String())
	}
}
