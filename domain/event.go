package domain

import "github.com/bytedance/sonic"

const (
	EntityTask = "task"

	TaskCreated = "task-created"
	TaskUpdated = "task-updated"
	TaskDeleted = "task-deleted"
)

// Event records a task mutation confirmed by the remote API.
type Event struct {
	EntityID   string                 `json:"EntityId"`
	EntityType string                 `json:"EntityType"`
	Type       string                 `json:"Type"`
	Data       sonic.NoCopyRawMessage `json:"Data,omitempty"`
	UserID     string                 `json:"UserId,omitempty"`
	Source     string                 `json:"Source,omitempty"`
	Timestamp  int64                  `json:"Timestamp"`
}
