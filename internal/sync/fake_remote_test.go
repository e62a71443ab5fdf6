package sync

import (
	"context"
	"sort"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/workboard/internal/clock"
	"github.com/nhle/workboard/internal/lifecycle"
	"github.com/nhle/workboard/internal/model"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeRemote is an in-memory Remote with versioned writes. Writes can be
// held at a gate and made to fail.
type fakeRemote struct {
	mu       gosync.Mutex
	tasks    map[string]model.Task
	projects map[string]model.Project

	gate      chan struct{}
	ignoreCtx bool
	failWith  error
	received  []string
	fetches   int
	applied   chan string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		tasks:    make(map[string]model.Task),
		projects: make(map[string]model.Project),
		applied:  make(chan string, 16),
	}
}

func (f *fakeRemote) addProject(name string) model.Project {
	p := model.NewProject(name, epoch)
	p.Version = 1
	f.mu.Lock()
	f.projects[p.ID] = p
	f.mu.Unlock()
	return p
}

func (f *fakeRemote) addTask(projectID, title string, items ...string) model.Task {
	t := model.NewTask(projectID, title, epoch.Add(time.Duration(len(f.tasks))*time.Second))
	for _, text := range items {
		t, _, _ = lifecycle.AddChecklistItem(t, text, epoch)
	}
	t.Version = 1
	f.mu.Lock()
	f.tasks[t.ID] = t
	f.mu.Unlock()
	return t
}

// bump simulates a write by another client.
func (f *fakeRemote) bump(id string, edit func(*model.Task)) model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tasks[id].Clone()
	edit(&t)
	t.Version++
	f.tasks[id] = t
	return t
}

func (f *fakeRemote) stored(id string) model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[id].Clone()
}

func (f *fakeRemote) hold() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	return f.gate
}

func (f *fakeRemote) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

func (f *fakeRemote) receivedTitles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

func (f *fakeRemote) wait(ctx context.Context, label string) error {
	f.mu.Lock()
	f.received = append(f.received, label)
	gate, ignore := f.gate, f.ignoreCtx
	f.mu.Unlock()

	if gate == nil {
		return nil
	}
	if ignore {
		<-gate
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeRemote) FetchTask(ctx context.Context, id string) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	t, ok := f.tasks[id]
	if !ok {
		return nil, &model.NotFoundError{Kind: model.KindTask, ID: id}
	}
	c := t.Clone()
	return &c, nil
}

func (f *fakeRemote) FetchProject(ctx context.Context, id string) (*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, &model.NotFoundError{Kind: model.KindProject, ID: id}
	}
	c := p.Clone()
	return &c, nil
}

func (f *fakeRemote) FetchProjectTasks(ctx context.Context, projectID string) (*model.Project, []model.Task, error) {
	p, err := f.FetchProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return p, f.tasksOfLocked(projectID), nil
}

func (f *fakeRemote) tasksOfLocked(projectID string) []model.Task {
	var out []model.Task
	for _, t := range f.tasks {
		if t.ProjectID == projectID {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *fakeRemote) SaveTask(ctx context.Context, task model.Task) (*model.Task, error) {
	if err := f.wait(ctx, task.Title); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	defer func() { f.applied <- task.ID }()

	if f.failWith != nil {
		return nil, f.failWith
	}
	current, ok := f.tasks[task.ID]
	if !ok {
		return nil, &model.NotFoundError{Kind: model.KindTask, ID: task.ID}
	}
	if current.Version != task.Version {
		return nil, &model.ConflictError{Kind: model.KindTask, ID: task.ID, Version: task.Version}
	}
	saved := task.Clone()
	saved.Version++
	f.tasks[task.ID] = saved
	out := saved.Clone()
	return &out, nil
}

func (f *fakeRemote) ChangeProjectStatus(
	ctx context.Context,
	projectID string,
	status model.ProjectStatus,
) (*model.Project, []model.Task, error) {
	if err := f.wait(ctx, "project:"+string(status)); err != nil {
		return nil, nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return nil, nil, f.failWith
	}
	p := f.projects[projectID]
	updated, changed, err := lifecycle.OnProjectStatusChange(p, status, f.tasksOfLocked(projectID), epoch)
	if err != nil {
		return nil, nil, err
	}
	updated.Version++
	f.projects[projectID] = updated
	for _, t := range changed {
		t.Version++
		f.tasks[t.ID] = t
	}
	out := updated.Clone()
	return &out, f.tasksOfLocked(projectID), nil
}

// recorder collects every change the cache publishes.
type recorder struct {
	mu      gosync.Mutex
	changes []Change
	events  chan Change
}

func newRecorder() *recorder {
	return &recorder{events: make(chan Change, 256)}
}

func (r *recorder) observe(ch Change) {
	r.mu.Lock()
	r.changes = append(r.changes, ch)
	r.mu.Unlock()
	r.events <- ch
}

func (r *recorder) reasons(k Key) []Reason {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Reason
	for _, ch := range r.changes {
		if ch.Key == k {
			out = append(out, ch.Reason)
		}
	}
	return out
}

// next waits for the next change with the given reason on k.
func (r *recorder) next(t *testing.T, k Key, reason Reason) Change {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ch := <-r.events:
			if ch.Key == k && ch.Reason == reason {
				return ch
			}
		case <-timeout:
			t.Fatalf("no %s change for %s", reason, k)
		}
	}
}

func newTestCache(t *testing.T, remote Remote, opts ...Option) (*Cache, *recorder) {
	t.Helper()
	rec := newRecorder()
	opts = append([]Option{
		WithClock(clock.Fake(epoch)),
		WithRemoteTimeout(time.Second),
		WithObserver(rec.observe),
	}, opts...)
	c := New(remote, opts...)
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c, rec
}

func waiters(c *Cache, k Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[k]
	if !ok {
		return -1
	}
	return len(s.waiters)
}
