package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the canonical task status persisted by the server.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the canonical statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task represents a single dashboard item as returned by the remote API.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *Date      `json:"dueDate,omitempty"`
	ParentID    string     `json:"parentId,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

type taskWire Task

// UnmarshalJSON accepts both `_id` and `id` as the task identity. `_id` wins
// when the server sends both. `due_date` is read when `dueDate` is absent.
func (t *Task) UnmarshalJSON(data []byte) error {
	var raw struct {
		taskWire
		MongoID    string `json:"_id"`
		SnakeDueAt *Date  `json:"due_date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Task(raw.taskWire)
	if raw.MongoID != "" {
		t.ID = raw.MongoID
	}
	if t.DueDate == nil && raw.SnakeDueAt != nil {
		t.DueDate = raw.SnakeDueAt
	}
	return nil
}

// HasDueDate reports whether a deadline is set.
func (t Task) HasDueDate() bool {
	return t.DueDate != nil && !t.DueDate.IsZero()
}

// Draft carries the fields of a task to be created. The server assigns the
// identity and timestamps.
type Draft struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
	DueDate     *Date    `json:"dueDate,omitempty"`
	ParentID    string   `json:"parentId,omitempty"`
}

// Normalize trims the title and fills in the defaults used by the task form.
func (d Draft) Normalize() Draft {
	d.Title = strings.TrimSpace(d.Title)
	if d.Status == "" {
		d.Status = StatusPending
	}
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	return d
}

// Update carries a partial change to an existing task. Nil fields are left
// untouched by the server.
type Update struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	DueDate     *Date     `json:"dueDate,omitempty"`
}

// StatusUpdate builds an update that only changes the status.
func StatusUpdate(s Status) Update {
	return Update{Status: &s}
}

// Normalize trims the title when one is set.
func (u Update) Normalize() Update {
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		u.Title = &title
	}
	return u
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Category == nil &&
		u.Status == nil && u.Priority == nil && u.DueDate == nil
}

// Categories returns the distinct non-empty categories in first-seen order.
func Categories(tasks []Task) []string {
	seen := make(map[string]struct{}, len(tasks))
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.Category == "" {
			continue
		}
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		out = append(out, t.Category)
	}
	return out
}
