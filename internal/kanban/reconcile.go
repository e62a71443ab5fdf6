// Package kanban maps drag gestures on a status board onto task status
// edits.
package kanban

import (
	"fmt"

	"github.com/nhle/workboard/internal/model"
)

// Column is one board column. Cards in it have Status.
type Column struct {
	ID     string
	Title  string
	Status model.TaskStatus
}

// DefaultColumns returns one column per task status, in board order.
func DefaultColumns() []Column {
	cols := make([]Column, 0, len(model.TaskStatuses))
	for _, s := range model.TaskStatuses {
		cols = append(cols, Column{ID: string(s), Title: s.Label(), Status: s})
	}
	return cols
}

// ColumnsFromConfig builds columns from configuration, falling back to
// DefaultColumns when none are configured.
func ColumnsFromConfig(cfg []model.ColumnConfig) ([]Column, error) {
	if len(cfg) == 0 {
		return DefaultColumns(), nil
	}
	cols := make([]Column, 0, len(cfg))
	seen := make(map[string]bool, len(cfg))
	for _, c := range cfg {
		status, err := model.ParseTaskStatus(c.Status)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.ID, err)
		}
		if c.ID == "" || seen[c.ID] {
			return nil, &model.InvalidValueError{Field: "column id", Value: c.ID}
		}
		seen[c.ID] = true
		title := c.Title
		if title == "" {
			title = status.Label()
		}
		cols = append(cols, Column{ID: c.ID, Title: title, Status: status})
	}
	return cols, nil
}

// IntentKind classifies the outcome of a drop.
type IntentKind int

const (
	// IntentNone: the card was dropped where it already was.
	IntentNone IntentKind = iota
	// IntentReorder: same column, new position. Display only.
	IntentReorder
	// IntentStatusEdit: the card moves to a column with another status.
	IntentStatusEdit
	// IntentReject: the target is not a status column; the card returns
	// to its source.
	IntentReject
)

func (k IntentKind) String() string {
	switch k {
	case IntentNone:
		return "none"
	case IntentReorder:
		return "reorder"
	case IntentStatusEdit:
		return "status_edit"
	case IntentReject:
		return "reject"
	}
	return fmt.Sprintf("IntentKind(%d)", int(k))
}

// Intent is the mutation a drop asks for.
type Intent struct {
	Kind   IntentKind
	TaskID string
	// Source and Target are column ids.
	Source string
	Target string
	Index  int
	// Status is set for IntentStatusEdit.
	Status model.TaskStatus
	Reason string
}

// Reconciler resolves drops against a fixed set of columns.
type Reconciler struct {
	columns []Column
	byID    map[string]Column
}

// NewReconciler creates a Reconciler over columns.
func NewReconciler(columns []Column) *Reconciler {
	r := &Reconciler{
		columns: append([]Column(nil), columns...),
		byID:    make(map[string]Column, len(columns)),
	}
	for _, c := range columns {
		r.byID[c.ID] = c
	}
	return r
}

// Columns returns the board columns in order.
func (r *Reconciler) Columns() []Column {
	return append([]Column(nil), r.columns...)
}

// Column looks up a column by id.
func (r *Reconciler) Column(id string) (Column, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// ColumnFor returns the first column showing status.
func (r *Reconciler) ColumnFor(status model.TaskStatus) (Column, bool) {
	for _, c := range r.columns {
		if c.Status == status {
			return c, true
		}
	}
	return Column{}, false
}

// OnDrop resolves a drop of taskID from source onto target at index.
// Moving between two columns of the same status is a reorder: only a
// status difference produces an edit.
func (r *Reconciler) OnDrop(taskID, source, target string, index int) Intent {
	in := Intent{TaskID: taskID, Source: source, Target: target, Index: index}

	dst, ok := r.byID[target]
	if !ok || !dst.Status.Valid() {
		in.Kind = IntentReject
		in.Reason = fmt.Sprintf("column %q is not a status column", target)
		return in
	}
	if index < 0 {
		in.Index = 0
	}

	src, ok := r.byID[source]
	switch {
	case source == target:
		in.Kind = IntentReorder
	case ok && src.Status == dst.Status:
		in.Kind = IntentReorder
	default:
		in.Kind = IntentStatusEdit
		in.Status = dst.Status
	}
	return in
}
