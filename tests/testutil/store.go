package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nhle/workboard/internal/clock"
	"github.com/nhle/workboard/internal/lifecycle"
	"github.com/nhle/workboard/internal/model"
	"github.com/nhle/workboard/internal/store"
)

// Epoch is the starting time of every FakeClock handed out here.
var Epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewClock returns a FakeClock set to Epoch.
func NewClock() *clock.FakeClock {
	return clock.Fake(Epoch)
}

// DiscardLogger returns a logger that writes nowhere.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewCoordinator wires a coordinator over s with a fake clock.
func NewCoordinator(s store.Store, clk clock.Clock) *lifecycle.Coordinator {
	return lifecycle.NewCoordinator(s, clk, DiscardLogger())
}

// SeedProject stores a planning project named name.
func SeedProject(t *testing.T, s store.Store, name string) model.Project {
	t.Helper()

	p, err := s.CreateProject(context.Background(), model.NewProject(name, Epoch))
	if err != nil {
		t.Fatalf("seeding project %q: %v", name, err)
	}
	return *p
}

// SeedTask stores a todo task in projectID with one open checklist item
// per entry of items.
func SeedTask(t *testing.T, s store.Store, projectID, title string, items ...string) model.Task {
	t.Helper()

	task := model.NewTask(projectID, title, Epoch)
	for _, text := range items {
		var err error
		task, _, err = lifecycle.AddChecklistItem(task, text, Epoch)
		if err != nil {
			t.Fatalf("seeding checklist item %q: %v", text, err)
		}
	}
	created, err := s.CreateTask(context.Background(), task)
	if err != nil {
		t.Fatalf("seeding task %q: %v", title, err)
	}
	return *created
}
