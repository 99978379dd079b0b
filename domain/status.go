package domain

// Column identifies a kanban board column. Columns are a presentation
// vocabulary and are never persisted.
type Column string

const (
	ColumnTodo       Column = "todo"
	ColumnInProgress Column = "in_progress"
	ColumnCompleted  Column = "completed"
)

// Columns lists the board columns in display order.
var Columns = [...]Column{ColumnTodo, ColumnInProgress, ColumnCompleted}

var columnStatus = map[Column]Status{
	ColumnTodo:       StatusPending,
	ColumnInProgress: StatusInProgress,
}

// MapStatus translates a UI status token to the canonical vocabulary.
// Unrecognised tokens, including canonical ones, are returned unchanged.
func MapStatus(token string) string {
	if s, ok := columnStatus[Column(token)]; ok {
		return string(s)
	}
	return token
}

// ColumnToStatus maps a column to its canonical status. The boolean is false
// when the token was passed through without being recognised as a column or
// a canonical status.
func ColumnToStatus(c Column) (Status, bool) {
	s := Status(MapStatus(string(c)))
	return s, s.Valid()
}

// ColumnForStatus returns the board column that displays tasks with status s.
func ColumnForStatus(s Status) (Column, bool) {
	switch s {
	case StatusPending:
		return ColumnTodo, true
	case StatusInProgress:
		return ColumnInProgress, true
	case StatusCompleted:
		return ColumnCompleted, true
	}
	return "", false
}

// IsColumn reports whether id names a board column.
func IsColumn(id string) bool {
	for _, c := range Columns {
		if string(c) == id {
			return true
		}
	}
	return false
}
