package kanban

import (
	"context"

	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

// Updater persists a partial task update. *store.Store satisfies it.
type Updater interface {
	UpdateTask(ctx context.Context, id string, u domain.Update) (domain.Task, error)
}

// Move describes the outcome of a drop.
type Move struct {
	TaskID  string        `json:"taskId"`
	From    domain.Column `json:"from,omitempty"`
	To      domain.Column `json:"to,omitempty"`
	Status  domain.Status `json:"status,omitempty"`
	Applied bool          `json:"applied"`
}

// Engine applies drops on a Board through an Updater.
type Engine struct {
	updater Updater
	logger  *log.Logger
}

func NewEngine(updater Updater, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Engine{updater: updater, logger: logger}
}

// Drop handles a drag of activeID released over overID. A drop that changes
// column issues exactly one status update; anything else is a no-op. The
// board is not modified; callers re-derive it from the updated tasks.
func (e *Engine) Drop(ctx context.Context, b Board, activeID, overID string) (Move, error) {
	mv := Move{TaskID: activeID}
	if activeID == "" || overID == "" {
		return mv, nil
	}
	target, ok := ResolveTarget(b, overID)
	if !ok {
		return mv, nil
	}
	source, ok := ResolveSource(b, activeID)
	if !ok {
		return mv, nil
	}
	mv.From, mv.To = source, target
	if source == target {
		return mv, nil
	}

	// ResolveTarget only yields board columns, all of which map.
	status, _ := domain.ColumnToStatus(target)
	mv.Status = status
	if _, err := e.updater.UpdateTask(ctx, activeID, domain.StatusUpdate(status)); err != nil {
		return mv, err
	}
	mv.Applied = true
	e.logger.WithFields(log.Fields{"task_id": activeID, "from": source, "to": target}).Debug("task moved")
	return mv, nil
}
