// Package sync keeps a client-side cache of tasks and projects in step
// with a Remote. Mutations are applied locally first, published to
// observers, then confirmed or rolled back when the remote answers.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	gosync "sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nhle/workboard/internal/clock"
	"github.com/nhle/workboard/internal/lifecycle"
	"github.com/nhle/workboard/internal/model"
)

// DefaultRemoteTimeout bounds every remote call unless overridden.
const DefaultRemoteTimeout = 10 * time.Second

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("sync cache closed")

	// ErrRemoteTimeout is the cause of an UnavailableError for a remote
	// call that did not answer within the configured timeout.
	ErrRemoteTimeout = errors.New("remote call timed out")
)

// Key identifies a cache entry.
type Key struct {
	Kind string
	ID   string
}

// TaskKey returns the cache key of a task.
func TaskKey(id string) Key { return Key{Kind: model.KindTask, ID: id} }

// ProjectKey returns the cache key of a project.
func ProjectKey(id string) Key { return Key{Kind: model.KindProject, ID: id} }

func (k Key) String() string { return k.Kind + ":" + k.ID }

func (k Key) less(o Key) bool {
	if k.Kind != o.Kind {
		return k.Kind < o.Kind
	}
	return k.ID < o.ID
}

// snapshot holds exactly one of task or project.
type snapshot struct {
	task    *model.Task
	project *model.Project
}

func taskSnapshot(t model.Task) snapshot {
	c := t.Clone()
	return snapshot{task: &c}
}

func projectSnapshot(p model.Project) snapshot {
	c := p.Clone()
	return snapshot{project: &c}
}

func (s snapshot) version() int64 {
	switch {
	case s.task != nil:
		return s.task.Version
	case s.project != nil:
		return s.project.Version
	}
	return 0
}

type entry struct {
	snapshot  snapshot
	confirmed snapshot
	pending   bool
	// gen changes whenever a new mutation starts or the entry is
	// recreated; a remote answer for an older gen is discarded.
	gen uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithRemoteTimeout bounds the wait for each remote call.
func WithRemoteTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClock sets the clock used to stamp optimistic snapshots.
func WithClock(clk clock.Clock) Option {
	return func(c *Cache) { c.clock = clk }
}

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithObserver registers fn before the first load.
func WithObserver(fn Observer) Option {
	return func(c *Cache) { c.observe(fn) }
}

// Cache is the optimistic client-side view of tasks and projects. Create
// one per session with New and Close it at logout.
type Cache struct {
	remote  Remote
	clock   clock.Clock
	logger  *slog.Logger
	timeout time.Duration

	mu        gosync.Mutex
	entries   map[Key]*entry
	slots     map[Key]*slot
	observers map[int]Observer
	subs      map[*Subscription]struct{}
	nextObs   int
	gen       uint64
	closed    bool

	fetches singleflight.Group
}

// New creates a Cache backed by remote.
func New(remote Remote, opts ...Option) *Cache {
	c := &Cache{
		remote:    remote,
		clock:     clock.Real(),
		logger:    slog.New(slog.DiscardHandler),
		timeout:   DefaultRemoteTimeout,
		entries:   make(map[Key]*entry),
		slots:     make(map[Key]*slot),
		observers: make(map[int]Observer),
		subs:      make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close discards every entry and ends all subscriptions. In-flight remote
// answers arriving afterwards are dropped.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.entries = make(map[Key]*entry)
	subs := c.subs
	c.subs = make(map[*Subscription]struct{})
	c.observers = make(map[int]Observer)
	c.mu.Unlock()

	for s := range subs {
		s.close()
	}
	return nil
}

// Now returns the cache clock's time, for callers building mutations.
func (c *Cache) Now() time.Time { return c.clock.Now() }

// === Reads ===

// Task returns a copy of the cached task snapshot.
func (c *Cache) Task(id string) (model.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[TaskKey(id)]
	if !ok {
		return model.Task{}, false
	}
	return e.snapshot.task.Clone(), true
}

// Project returns a copy of the cached project snapshot.
func (c *Cache) Project(id string) (model.Project, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ProjectKey(id)]
	if !ok {
		return model.Project{}, false
	}
	return e.snapshot.project.Clone(), true
}

// Pending reports whether key has an unconfirmed mutation.
func (c *Cache) Pending(k Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	return ok && e.pending
}

// TasksOfProject returns the cached tasks of a project in creation order.
func (c *Cache) TasksOfProject(projectID string) []model.Task {
	c.mu.Lock()
	tasks := c.tasksOfProjectLocked(projectID)
	c.mu.Unlock()

	for i := range tasks {
		tasks[i] = tasks[i].Clone()
	}
	return tasks
}

func (c *Cache) tasksOfProjectLocked(projectID string) []model.Task {
	var tasks []model.Task
	for k, e := range c.entries {
		if k.Kind == model.KindTask && e.snapshot.task.ProjectID == projectID {
			tasks = append(tasks, *e.snapshot.task)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks
}

// === Loads ===

// LoadTask fetches a task and stores it. An entry that already exists is
// only advanced when the fetched version is newer.
func (c *Cache) LoadTask(ctx context.Context, id string) (model.Task, error) {
	if err := c.checkOpen(); err != nil {
		return model.Task{}, err
	}
	k := TaskKey(id)
	v, err, _ := c.fetches.Do(k.String(), func() (any, error) {
		return callRemote(ctx, c, "fetching "+k.String(), func(ctx context.Context) (*model.Task, error) {
			return c.remote.FetchTask(ctx, id)
		})
	})
	if err != nil {
		return model.Task{}, err
	}
	c.absorb(k, taskSnapshot(*v.(*model.Task)), ReasonLoaded)
	t, _ := c.Task(id)
	return t, nil
}

// LoadProject fetches a project without its tasks.
func (c *Cache) LoadProject(ctx context.Context, id string) (model.Project, error) {
	if err := c.checkOpen(); err != nil {
		return model.Project{}, err
	}
	k := ProjectKey(id)
	v, err, _ := c.fetches.Do(k.String(), func() (any, error) {
		return callRemote(ctx, c, "fetching "+k.String(), func(ctx context.Context) (*model.Project, error) {
			return c.remote.FetchProject(ctx, id)
		})
	})
	if err != nil {
		return model.Project{}, err
	}
	c.absorb(k, projectSnapshot(*v.(*model.Project)), ReasonLoaded)
	p, _ := c.Project(id)
	return p, nil
}

// LoadProjectTasks fetches a project together with all of its tasks.
func (c *Cache) LoadProjectTasks(ctx context.Context, projectID string) (model.Project, []model.Task, error) {
	if err := c.checkOpen(); err != nil {
		return model.Project{}, nil, err
	}
	if err := c.fetchProjectTasks(ctx, projectID, ReasonLoaded); err != nil {
		return model.Project{}, nil, err
	}
	p, _ := c.Project(projectID)
	return p, c.TasksOfProject(projectID), nil
}

type projectWithTasks struct {
	project *model.Project
	tasks   []model.Task
}

func (c *Cache) fetchProjectTasks(ctx context.Context, projectID string, reason Reason) error {
	k := ProjectKey(projectID)
	v, err, _ := c.fetches.Do(k.String()+"/tasks", func() (any, error) {
		return callRemote(ctx, c, "fetching tasks of "+k.String(), func(ctx context.Context) (projectWithTasks, error) {
			p, tasks, err := c.remote.FetchProjectTasks(ctx, projectID)
			return projectWithTasks{project: p, tasks: tasks}, err
		})
	})
	if err != nil {
		return err
	}
	res := v.(projectWithTasks)
	c.absorb(k, projectSnapshot(*res.project), reason)
	for _, t := range res.tasks {
		c.absorb(TaskKey(t.ID), taskSnapshot(t), reason)
	}
	return nil
}

// === External changes ===

// Merge applies an externally observed task. It is ignored unless the
// task is cached and its version is newer than the confirmed one. While
// a mutation is pending only the confirmed value advances.
func (c *Cache) Merge(task model.Task) bool {
	return c.merge(TaskKey(task.ID), taskSnapshot(task))
}

// MergeProject is Merge for projects.
func (c *Cache) MergeProject(project model.Project) bool {
	return c.merge(ProjectKey(project.ID), projectSnapshot(project))
}

func (c *Cache) merge(k Key, snap snapshot) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	e, ok := c.entries[k]
	if !ok || snap.version() <= e.confirmed.version() {
		c.mu.Unlock()
		return false
	}
	e.confirmed = snap
	var changes []Change
	if !e.pending {
		e.snapshot = snap
		changes = append(changes, newChange(k, e, ReasonMerged))
	}
	c.mu.Unlock()

	c.notify(changes)
	return true
}

// Evict drops an entry. A remote answer still in flight for it is discarded.
func (c *Cache) Evict(k Key) {
	c.mu.Lock()
	_, ok := c.entries[k]
	delete(c.entries, k)
	c.mu.Unlock()

	if ok {
		c.notify([]Change{{Key: k, Reason: ReasonEvicted}})
	}
}

// absorb stores an authoritative snapshot obtained without holding the
// key's slot: it creates the entry, or advances it like merge does.
func (c *Cache) absorb(k Key, snap snapshot, reason Reason) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	var changes []Change
	e, ok := c.entries[k]
	switch {
	case !ok:
		c.gen++
		e = &entry{snapshot: snap, confirmed: snap, gen: c.gen}
		c.entries[k] = e
		changes = append(changes, newChange(k, e, reason))
	case snap.version() <= e.confirmed.version():
	case e.pending:
		e.confirmed = snap
	default:
		e.snapshot = snap
		e.confirmed = snap
		changes = append(changes, newChange(k, e, reason))
	}
	c.mu.Unlock()

	c.notify(changes)
}

// === Mutations ===

// MutateTask applies fn to the cached task, publishes the result as
// pending and saves it remotely. On success the entry takes the stored
// value; on any failure it reverts to the last confirmed value and the
// error is returned. A conflict also refetches the task. Mutations of the
// same task run one at a time in call order. Nothing is retried.
func (c *Cache) MutateTask(
	ctx context.Context,
	id string,
	fn func(model.Task) (model.Task, error),
) (model.Task, error) {
	if err := c.checkOpen(); err != nil {
		return model.Task{}, err
	}
	k := TaskKey(id)
	release, err := c.acquire(ctx, k)
	if err != nil {
		return model.Task{}, err
	}
	defer release()

	if _, ok := c.Task(id); !ok {
		if _, err := c.LoadTask(ctx, id); err != nil {
			return model.Task{}, err
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return model.Task{}, ErrClosed
	}
	e, ok := c.entries[k]
	if !ok {
		c.mu.Unlock()
		return model.Task{}, &model.NotFoundError{Kind: model.KindTask, ID: id}
	}
	next, err := fn(e.snapshot.task.Clone())
	if err != nil {
		c.mu.Unlock()
		return model.Task{}, err
	}
	next.ID = id
	// Observers never see a snapshot the store would refuse.
	if err := next.Validate(); err != nil {
		c.mu.Unlock()
		return model.Task{}, err
	}
	if err := lifecycle.CheckInvariants(next); err != nil {
		c.mu.Unlock()
		return model.Task{}, err
	}
	c.gen++
	gen := c.gen
	e.gen = gen
	e.snapshot = taskSnapshot(next)
	e.pending = true
	optimistic := newChange(k, e, ReasonOptimistic)
	c.mu.Unlock()
	c.notify([]Change{optimistic})

	saved, err := callRemote(ctx, c, "saving "+k.String(), func(ctx context.Context) (*model.Task, error) {
		return c.remote.SaveTask(ctx, next)
	})
	if err != nil {
		c.rollback(map[Key]uint64{k: gen})
		c.logger.Warn("task mutation rolled back", "task_id", id, "error", err)
		if model.IsConflict(err) {
			c.refetch(ctx, k)
		}
		return model.Task{}, err
	}

	c.settle(map[Key]uint64{k: gen}, []snapshot{taskSnapshot(*saved)})
	return saved.Clone(), nil
}

// ChangeProjectStatus applies the project cascade to the cached project
// and its cached tasks, then asks the remote to apply it. The project and
// all its cached tasks are held for the whole call, so no task mutation
// interleaves with the cascade. On failure every entry it touched reverts.
func (c *Cache) ChangeProjectStatus(
	ctx context.Context,
	projectID string,
	status model.ProjectStatus,
) (model.Project, []model.Task, error) {
	if err := c.checkOpen(); err != nil {
		return model.Project{}, nil, err
	}
	if !status.Valid() {
		return model.Project{}, nil, &model.InvalidStatusError{Kind: model.KindProject, Value: string(status)}
	}

	pk := ProjectKey(projectID)
	if _, ok := c.Project(projectID); !ok {
		if _, err := c.LoadProject(ctx, projectID); err != nil {
			return model.Project{}, nil, err
		}
	}

	c.mu.Lock()
	keys := []Key{pk}
	for _, t := range c.tasksOfProjectLocked(projectID) {
		keys = append(keys, TaskKey(t.ID))
	}
	c.mu.Unlock()

	release, err := c.acquire(ctx, keys...)
	if err != nil {
		return model.Project{}, nil, err
	}
	defer release()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return model.Project{}, nil, ErrClosed
	}
	pe, ok := c.entries[pk]
	if !ok {
		c.mu.Unlock()
		return model.Project{}, nil, &model.NotFoundError{Kind: model.KindProject, ID: projectID}
	}
	var held []model.Task
	for _, k := range keys[1:] {
		if e, ok := c.entries[k]; ok {
			held = append(held, *e.snapshot.task)
		}
	}
	project, changed, err := lifecycle.OnProjectStatusChange(*pe.snapshot.project, status, held, c.clock.Now())
	if err != nil {
		c.mu.Unlock()
		return model.Project{}, nil, err
	}

	c.gen++
	gen := c.gen
	gens := map[Key]uint64{pk: gen}
	var changes []Change
	pe.gen = gen
	pe.snapshot = projectSnapshot(project)
	pe.pending = true
	changes = append(changes, newChange(pk, pe, ReasonOptimistic))
	for _, t := range changed {
		k := TaskKey(t.ID)
		e := c.entries[k]
		e.gen = gen
		e.snapshot = taskSnapshot(t)
		e.pending = true
		gens[k] = gen
		changes = append(changes, newChange(k, e, ReasonOptimistic))
	}
	c.mu.Unlock()
	c.notify(changes)

	res, err := callRemote(ctx, c, "changing status of "+pk.String(), func(ctx context.Context) (projectWithTasks, error) {
		p, tasks, err := c.remote.ChangeProjectStatus(ctx, projectID, status)
		return projectWithTasks{project: p, tasks: tasks}, err
	})
	if err != nil {
		c.rollback(gens)
		c.logger.Warn("project cascade rolled back",
			"project_id", projectID,
			"status", status,
			"tasks", len(changed),
			"error", err,
		)
		if model.IsConflict(err) {
			c.refetch(ctx, pk)
		}
		return model.Project{}, nil, err
	}

	// Every held key is settled, including tasks the local cascade left
	// alone, since the remote may have seen a different task set.
	for _, k := range keys {
		if _, ok := gens[k]; !ok {
			gens[k] = 0
		}
	}
	snaps := []snapshot{projectSnapshot(*res.project)}
	for _, t := range res.tasks {
		snaps = append(snaps, taskSnapshot(t))
	}
	c.settle(gens, snaps)

	c.logger.Info("project cascade confirmed",
		"project_id", projectID,
		"status", status,
		"tasks", len(res.tasks),
	)
	return res.project.Clone(), cloneTasks(res.tasks), nil
}

// settle installs authoritative snapshots after a successful remote call.
// Keys in gens are held by the caller: a gen of zero means the key was
// held but not mutated. Snapshots for keys outside gens are absorbed.
func (c *Cache) settle(gens map[Key]uint64, snaps []snapshot) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	var changes []Change
	var loose []snapshot
	seen := make(map[Key]bool, len(snaps))
	for _, snap := range snaps {
		k := keyOf(snap)
		seen[k] = true
		gen, held := gens[k]
		if !held {
			loose = append(loose, snap)
			continue
		}
		e, ok := c.entries[k]
		if !ok || (gen != 0 && e.gen != gen) {
			c.logger.Debug("discarded stale remote response", "key", k.String())
			continue
		}
		if gen == 0 && !e.pending && snap.version() <= e.confirmed.version() {
			continue
		}
		// A merge may have moved confirmed past the remote's answer.
		if snap.version() >= e.confirmed.version() {
			e.confirmed = snap
		}
		e.snapshot = e.confirmed
		e.pending = false
		changes = append(changes, newChange(k, e, ReasonConfirmed))
	}
	// Mutated keys the remote did not return keep their last confirmed value.
	for k, gen := range gens {
		if seen[k] || gen == 0 {
			continue
		}
		if e, ok := c.entries[k]; ok && e.gen == gen && e.pending {
			e.snapshot = e.confirmed
			e.pending = false
			changes = append(changes, newChange(k, e, ReasonRolledBack))
		}
	}
	c.mu.Unlock()
	c.notify(changes)

	for _, snap := range loose {
		c.absorb(keyOf(snap), snap, ReasonMerged)
	}
}

// rollback reverts every key in gens whose entry still carries that gen.
func (c *Cache) rollback(gens map[Key]uint64) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	var changes []Change
	for k, gen := range gens {
		e, ok := c.entries[k]
		if !ok || e.gen != gen || !e.pending {
			continue
		}
		e.snapshot = e.confirmed
		e.pending = false
		changes = append(changes, newChange(k, e, ReasonRolledBack))
	}
	c.mu.Unlock()
	c.notify(changes)
}

// refetch replaces a held entry with the remote's current value after a
// conflict. The caller holds the key's slot, so the entry is not pending.
func (c *Cache) refetch(ctx context.Context, k Key) {
	var err error
	switch k.Kind {
	case model.KindTask:
		_, err = c.refetchTask(ctx, k)
	case model.KindProject:
		err = c.fetchProjectTasks(ctx, k.ID, ReasonRefreshed)
	}
	if err != nil {
		c.logger.Warn("refetch after conflict failed", "key", k.String(), "error", err)
	}
}

func (c *Cache) refetchTask(ctx context.Context, k Key) (model.Task, error) {
	v, err, _ := c.fetches.Do(k.String(), func() (any, error) {
		return callRemote(ctx, c, "fetching "+k.String(), func(ctx context.Context) (*model.Task, error) {
			return c.remote.FetchTask(ctx, k.ID)
		})
	})
	if err != nil {
		return model.Task{}, err
	}
	c.absorb(k, taskSnapshot(*v.(*model.Task)), ReasonRefreshed)
	t, _ := c.Task(k.ID)
	return t, nil
}

func (c *Cache) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

type remoteResult[T any] struct {
	value T
	err   error
}

// callRemote runs fn under the cache timeout. The wait ends at the
// deadline even if fn ignores its context; the late answer is dropped.
func callRemote[T any](ctx context.Context, c *Cache, op string, fn func(context.Context) (T, error)) (T, error) {
	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan remoteResult[T], 1)
	go func() {
		v, err := fn(rctx)
		done <- remoteResult[T]{value: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil {
			return zero, r.err
		}
		return r.value, nil
	case <-rctx.Done():
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
		c.logger.Warn("remote call timed out", "op", op, "timeout", c.timeout)
		return zero, &model.UnavailableError{Op: op, Err: ErrRemoteTimeout}
	}
}

func keyOf(s snapshot) Key {
	if s.task != nil {
		return TaskKey(s.task.ID)
	}
	return ProjectKey(s.project.ID)
}

func cloneTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
