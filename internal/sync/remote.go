package sync

import (
	"context"

	"github.com/nhle/workboard/internal/lifecycle"
	"github.com/nhle/workboard/internal/model"
	"github.com/nhle/workboard/internal/store"
)

// Remote is the authoritative side of the cache. Every returned entity is
// the stored value after the call, carrying its new Version.
type Remote interface {
	FetchTask(ctx context.Context, id string) (*model.Task, error)
	FetchProject(ctx context.Context, id string) (*model.Project, error)
	FetchProjectTasks(ctx context.Context, projectID string) (*model.Project, []model.Task, error)
	SaveTask(ctx context.Context, task model.Task) (*model.Task, error)
	ChangeProjectStatus(ctx context.Context, projectID string, status model.ProjectStatus) (*model.Project, []model.Task, error)
}

// StoreRemote serves a Remote from a local store through the lifecycle
// coordinator.
type StoreRemote struct {
	store       store.Store
	coordinator *lifecycle.Coordinator
}

var _ Remote = (*StoreRemote)(nil)

// NewStoreRemote creates a StoreRemote.
func NewStoreRemote(s store.Store, coordinator *lifecycle.Coordinator) *StoreRemote {
	return &StoreRemote{store: s, coordinator: coordinator}
}

func (r *StoreRemote) FetchTask(ctx context.Context, id string) (*model.Task, error) {
	return r.store.GetTask(ctx, id)
}

func (r *StoreRemote) FetchProject(ctx context.Context, id string) (*model.Project, error) {
	return r.store.GetProject(ctx, id)
}

func (r *StoreRemote) FetchProjectTasks(ctx context.Context, projectID string) (*model.Project, []model.Task, error) {
	return r.store.GetProjectWithTasks(ctx, projectID)
}

func (r *StoreRemote) SaveTask(ctx context.Context, task model.Task) (*model.Task, error) {
	return r.coordinator.SaveTask(ctx, task)
}

func (r *StoreRemote) ChangeProjectStatus(
	ctx context.Context,
	projectID string,
	status model.ProjectStatus,
) (*model.Project, []model.Task, error) {
	return r.coordinator.ChangeProjectStatus(ctx, projectID, status)
}
