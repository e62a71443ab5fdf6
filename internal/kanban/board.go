package kanban

import (
	"context"
	"sort"
	"sync"

	"github.com/nhle/workboard/internal/clock"
	"github.com/nhle/workboard/internal/lifecycle"
	"github.com/nhle/workboard/internal/model"
)

// Mutator applies a task mutation optimistically. *sync.Cache implements it.
type Mutator interface {
	MutateTask(ctx context.Context, id string, fn func(model.Task) (model.Task, error)) (model.Task, error)
}

// Board holds the display order of cards per column. Order is local to
// the board and never persisted.
type Board struct {
	rec     *Reconciler
	mutator Mutator
	clock   clock.Clock

	mu     sync.Mutex
	order  map[string][]string
	cards  map[string]model.Task
	hidden []string
}

// NewBoard creates an empty board.
func NewBoard(rec *Reconciler, mutator Mutator, clk clock.Clock) *Board {
	if clk == nil {
		clk = clock.Real()
	}
	return &Board{
		rec:     rec,
		mutator: mutator,
		clock:   clk,
		order:   make(map[string][]string),
		cards:   make(map[string]model.Task),
	}
}

// Columns returns the board columns in order.
func (b *Board) Columns() []Column { return b.rec.Columns() }

// Rebuild replaces the cards with tasks. Cards that stay in their column
// keep their relative order; new cards are appended in creation order.
func (b *Board) Rebuild(tasks []model.Task) {
	sorted := append([]model.Task(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.order
	b.order = make(map[string][]string, len(prev))
	b.cards = make(map[string]model.Task, len(tasks))
	b.hidden = nil

	placed := make(map[string]string, len(tasks))
	for _, t := range sorted {
		b.cards[t.ID] = t.Clone()
	}
	for _, col := range b.rec.columns {
		for _, id := range prev[col.ID] {
			if t, ok := b.cards[id]; ok && t.Status == col.Status && placed[id] == "" {
				b.order[col.ID] = append(b.order[col.ID], id)
				placed[id] = col.ID
			}
		}
	}
	for _, t := range sorted {
		if placed[t.ID] != "" {
			continue
		}
		col, ok := b.rec.ColumnFor(t.Status)
		if !ok {
			b.hidden = append(b.hidden, t.ID)
			continue
		}
		b.order[col.ID] = append(b.order[col.ID], t.ID)
		placed[t.ID] = col.ID
	}
}

// Upsert places one task after a change notification. A card whose
// status still matches its column stays where it is.
func (b *Board) Upsert(task model.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cards[task.ID] = task.Clone()
	if colID, _, ok := b.locate(task.ID); ok {
		if col, _ := b.rec.Column(colID); col.Status == task.Status {
			return
		}
	}
	b.remove(task.ID)
	col, ok := b.rec.ColumnFor(task.Status)
	if !ok {
		b.hidden = append(b.hidden, task.ID)
		return
	}
	b.order[col.ID] = append(b.order[col.ID], task.ID)
}

// Remove takes a card off the board.
func (b *Board) Remove(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(taskID)
	delete(b.cards, taskID)
}

// Cards returns the cards of a column in display order.
func (b *Board) Cards(columnID string) []model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := b.order[columnID]
	out := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.cards[id].Clone())
	}
	return out
}

// Hidden returns tasks whose status has no column.
func (b *Board) Hidden() []model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Task, 0, len(b.hidden))
	for _, id := range b.hidden {
		out = append(out, b.cards[id].Clone())
	}
	return out
}

// Drop applies a drag gesture. Reorders change only the display order.
// A status edit moves the card at once and routes the edit through the
// mutator; if the mutator fails the card goes back to where it was and
// the error is returned. Rejected drops leave the board unchanged.
func (b *Board) Drop(ctx context.Context, taskID, source, target string, index int) (Intent, error) {
	intent := b.rec.OnDrop(taskID, source, target, index)
	if intent.Kind == IntentReject {
		return intent, nil
	}

	b.mu.Lock()
	colID, pos, ok := b.locate(taskID)
	if !ok || colID != source {
		b.mu.Unlock()
		return intent, &model.NotFoundError{Kind: model.KindTask, ID: taskID}
	}
	if intent.Kind == IntentReorder && source == target && clampIndex(intent.Index, len(b.order[target])-1) == pos {
		b.mu.Unlock()
		intent.Kind = IntentNone
		return intent, nil
	}
	b.remove(taskID)
	b.insert(target, taskID, intent.Index)
	b.mu.Unlock()

	if intent.Kind != IntentStatusEdit {
		return intent, nil
	}

	status := intent.Status
	updated, err := b.mutator.MutateTask(ctx, taskID, func(t model.Task) (model.Task, error) {
		return lifecycle.ApplyStatusEdit(t, status, b.clock.Now())
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.remove(taskID)
		b.insert(source, taskID, pos)
		return intent, err
	}
	b.cards[taskID] = updated.Clone()
	return intent, nil
}

// Move drops the card one column left (delta -1) or right (+1), keeping
// its row where possible. It is the keyboard form of Drop.
func (b *Board) Move(ctx context.Context, taskID string, delta int) (Intent, error) {
	b.mu.Lock()
	colID, pos, ok := b.locate(taskID)
	b.mu.Unlock()
	if !ok {
		return Intent{}, &model.NotFoundError{Kind: model.KindTask, ID: taskID}
	}

	cols := b.rec.columns
	idx := -1
	for i, c := range cols {
		if c.ID == colID {
			idx = i
		}
	}
	next := idx + delta
	if next < 0 || next >= len(cols) {
		return Intent{Kind: IntentNone, TaskID: taskID, Source: colID, Target: colID, Index: pos}, nil
	}
	return b.Drop(ctx, taskID, colID, cols[next].ID, pos)
}

// Shift moves a card up (delta -1) or down (+1) within its column.
func (b *Board) Shift(ctx context.Context, taskID string, delta int) (Intent, error) {
	b.mu.Lock()
	colID, pos, ok := b.locate(taskID)
	b.mu.Unlock()
	if !ok {
		return Intent{}, &model.NotFoundError{Kind: model.KindTask, ID: taskID}
	}
	return b.Drop(ctx, taskID, colID, colID, max(pos+delta, 0))
}

// locate returns the column and position of a card; b.mu must be held.
func (b *Board) locate(taskID string) (string, int, bool) {
	for colID, ids := range b.order {
		for i, id := range ids {
			if id == taskID {
				return colID, i, true
			}
		}
	}
	return "", 0, false
}

func (b *Board) remove(taskID string) {
	for colID, ids := range b.order {
		for i, id := range ids {
			if id == taskID {
				b.order[colID] = append(ids[:i:i], ids[i+1:]...)
				return
			}
		}
	}
	for i, id := range b.hidden {
		if id == taskID {
			b.hidden = append(b.hidden[:i:i], b.hidden[i+1:]...)
			return
		}
	}
}

func (b *Board) insert(colID, taskID string, index int) {
	ids := b.order[colID]
	index = clampIndex(index, len(ids))
	ids = append(ids, "")
	copy(ids[index+1:], ids[index:])
	ids[index] = taskID
	b.order[colID] = ids
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
