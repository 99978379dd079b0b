// Package kanban turns drag-and-drop gestures on a three-column board into
// canonical status updates.
package kanban

import (
	"time"

	"taskflow/domain"
)

// Board partitions tasks into the three columns.
type Board struct {
	Todo       []domain.Task `json:"todo"`
	InProgress []domain.Task `json:"in_progress"`
	Completed  []domain.Task `json:"completed"`
}

// BuildBoard places each task in the column of its status. Tasks with an
// unknown status are left off the board.
func BuildBoard(tasks []domain.Task) Board {
	b := Board{Todo: []domain.Task{}, InProgress: []domain.Task{}, Completed: []domain.Task{}}
	for _, t := range tasks {
		col, ok := domain.ColumnForStatus(t.Status)
		if !ok {
			continue
		}
		p := b.column(col)
		*p = append(*p, t)
	}
	return b
}

func (b *Board) column(c domain.Column) *[]domain.Task {
	switch c {
	case domain.ColumnTodo:
		return &b.Todo
	case domain.ColumnInProgress:
		return &b.InProgress
	case domain.ColumnCompleted:
		return &b.Completed
	}
	return nil
}

// Tasks returns the tasks shown in column c.
func (b Board) Tasks(c domain.Column) []domain.Task {
	if p := b.column(c); p != nil {
		return *p
	}
	return nil
}

func (b Board) columnOf(taskID string) (domain.Column, bool) {
	if taskID == "" {
		return "", false
	}
	for _, c := range domain.Columns {
		for _, t := range b.Tasks(c) {
			if t.ID == taskID {
				return c, true
			}
		}
	}
	return "", false
}

// ResolveTarget finds the column a drop landed on. overID may name a column
// or a task already on the board.
func ResolveTarget(b Board, overID string) (domain.Column, bool) {
	if domain.IsColumn(overID) {
		return domain.Column(overID), true
	}
	return b.columnOf(overID)
}

// ResolveSource finds the column the dragged task came from.
func ResolveSource(b Board, activeID string) (domain.Column, bool) {
	return b.columnOf(activeID)
}

var columnTitles = map[domain.Column]string{
	domain.ColumnTodo:       "To Do",
	domain.ColumnInProgress: "In Progress",
	domain.ColumnCompleted:  "Completed",
}

// Card is a task as rendered on the board.
type Card struct {
	domain.Task
	Countdown domain.CountdownView `json:"countdown"`
}

// ColumnView is one rendered board column.
type ColumnView struct {
	ID    domain.Column `json:"id"`
	Title string        `json:"title"`
	Cards []Card        `json:"cards"`
}

// View renders the board in display order with countdowns as of now.
func View(b Board, now time.Time) []ColumnView {
	out := make([]ColumnView, 0, len(domain.Columns))
	for _, c := range domain.Columns {
		tasks := b.Tasks(c)
		cards := make([]Card, 0, len(tasks))
		for _, t := range tasks {
			cards = append(cards, Card{
				Task:      t,
				Countdown: domain.Countdown(t.DueDate, now, t.Status == domain.StatusCompleted),
			})
		}
		out = append(out, ColumnView{ID: c, Title: columnTitles[c], Cards: cards})
	}
	return out
}
