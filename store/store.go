// Package store keeps the dashboard's view of the remote task collection.
// Every read and write of tasks goes through a Store.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"taskflow/domain"
	"taskflow/events"
)

const defaultTimeout = 15 * time.Second

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("store closed")

// Repository is the subset of the task API the Store drives.
type Repository interface {
	ListTasks(ctx context.Context, f domain.Filters) (domain.Page, error)
	Stats(ctx context.Context) (domain.Stats, error)
	CreateTask(ctx context.Context, d domain.Draft) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, u domain.Update) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Snapshot is a point-in-time copy of the store state.
type Snapshot struct {
	Tasks      []domain.Task `json:"tasks"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
	Stats      *domain.Stats `json:"stats"`
	Loading    bool          `json:"loading"`
	Err        string        `json:"error,omitempty"`
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Tasks = make([]domain.Task, len(s.Tasks))
	for i, t := range s.Tasks {
		out.Tasks[i] = cloneTask(t)
	}
	if s.Stats != nil {
		stats := *s.Stats
		out.Stats = &stats
	}
	return out
}

func cloneTask(t domain.Task) domain.Task {
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	if t.CreatedAt != nil {
		c := *t.CreatedAt
		t.CreatedAt = &c
	}
	if t.UpdatedAt != nil {
		u := *t.UpdatedAt
		t.UpdatedAt = &u
	}
	return t
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTimeout bounds every request the store issues.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithPublisher announces confirmed mutations as task events for userID.
func WithPublisher(p events.Publisher, userID string) Option {
	return func(s *Store) {
		s.publisher = p
		s.userID = userID
	}
}

// Store mediates every task read and mutation and holds the latest snapshot.
// It is safe for concurrent use.
type Store struct {
	repo      Repository
	logger    *log.Logger
	timeout   time.Duration
	publisher events.Publisher
	userID    string

	lifetime  context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	broker    *broker

	mu              sync.Mutex
	snap            Snapshot
	lastFilters     domain.Filters
	taskSeq         uint64
	appliedTaskSeq  uint64
	statsSeq        uint64
	appliedStatsSeq uint64
}

// New creates a Store backed by repo. The snapshot starts empty on page 1.
func New(repo Repository, opts ...Option) *Store {
	if repo == nil {
		panic("store.New: repository is nil")
	}
	s := &Store{
		repo:    repo,
		logger:  log.StandardLogger(),
		timeout: defaultTimeout,
		broker:  newBroker(),
		snap:    Snapshot{Tasks: []domain.Task{}, Page: 1},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lifetime, s.cancel = context.WithCancel(context.Background())
	return s
}

// Close cancels in-flight requests and ends every subscription.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.broker.close()
	})
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone()
}

// Categories returns the distinct categories of the loaded tasks.
func (s *Store) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Categories(s.snap.Tasks)
}

// Subscribe returns a channel signalled after every state change. Signals
// coalesce; receivers should read the Snapshot when woken. The channel is
// closed on unsubscribe or Close.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := s.broker.subscribe()
	return ch, func() { s.broker.unsubscribe(ch) }
}

// FetchTasks loads one page of tasks and replaces the collection and its
// pagination wholesale. Failures are recorded in the snapshot, not returned.
func (s *Store) FetchTasks(ctx context.Context, f domain.Filters) {
	m := newOpMetrics(s.logger, "fetch_tasks")

	s.mu.Lock()
	s.taskSeq++
	seq := s.taskSeq
	s.lastFilters = f
	s.snap.Loading = true
	s.snap.Err = ""
	s.mu.Unlock()
	s.broker.notify()
	m.seq = seq

	var page domain.Page
	err := s.call(ctx, func(ctx context.Context) (err error) {
		page, err = s.repo.ListTasks(ctx, f)
		return err
	})

	s.mu.Lock()
	if seq == s.taskSeq {
		s.snap.Loading = false
	}
	if seq <= s.appliedTaskSeq {
		m.stale = true
	} else {
		s.appliedTaskSeq = seq
		if err != nil {
			s.snap.Err = err.Error()
		} else {
			tasks := page.Tasks
			if tasks == nil {
				tasks = []domain.Task{}
			}
			s.snap.Tasks = tasks
			s.snap.Total = page.Total
			s.snap.Page = page.Page
			s.snap.TotalPages = page.TotalPages
		}
	}
	s.mu.Unlock()
	s.broker.notify()
	m.Log(err)
}

// Refresh repeats the most recent task fetch and reloads the stats.
func (s *Store) Refresh(ctx context.Context) {
	s.mu.Lock()
	f := s.lastFilters
	s.mu.Unlock()
	s.FetchTasks(ctx, f)
	s.FetchStats(ctx)
}

// FetchStats reloads the aggregate counts. Failures are recorded, not returned.
func (s *Store) FetchStats(ctx context.Context) {
	m := newOpMetrics(s.logger, "fetch_stats")

	s.mu.Lock()
	s.statsSeq++
	seq := s.statsSeq
	s.mu.Unlock()
	m.seq = seq

	var stats domain.Stats
	err := s.call(ctx, func(ctx context.Context) (err error) {
		stats, err = s.repo.Stats(ctx)
		return err
	})

	s.mu.Lock()
	if seq <= s.appliedStatsSeq {
		m.stale = true
	} else {
		s.appliedStatsSeq = seq
		if err != nil {
			s.snap.Err = err.Error()
		} else {
			s.snap.Stats = &stats
		}
	}
	s.mu.Unlock()
	s.broker.notify()
	m.Log(err)
}

// AddTask creates a task and appends the server's representation of it.
func (s *Store) AddTask(ctx context.Context, d domain.Draft) (domain.Task, error) {
	m := newOpMetrics(s.logger, "add_task")
	d = d.Normalize()
	if err := domain.ValidateDraft(d); err != nil {
		s.recordError(err)
		m.Log(err)
		return domain.Task{}, err
	}

	var task domain.Task
	err := s.mutate(ctx, func(ctx context.Context) (err error) {
		task, err = s.repo.CreateTask(ctx, d)
		return err
	}, func(snap *Snapshot) {
		snap.Tasks = append(snap.Tasks, task)
	})
	m.taskID = task.ID
	m.Log(err)
	if err != nil {
		return domain.Task{}, err
	}
	s.publish(ctx, domain.TaskCreated, task.ID, task)
	s.FetchStats(ctx)
	return cloneTask(task), nil
}

// UpdateTask applies a partial update and replaces the matching task with
// the server's representation.
func (s *Store) UpdateTask(ctx context.Context, id string, u domain.Update) (domain.Task, error) {
	m := newOpMetrics(s.logger, "update_task")
	m.taskID = id
	u = u.Normalize()
	if err := domain.ValidateUpdate(u); err != nil {
		s.recordError(err)
		m.Log(err)
		return domain.Task{}, err
	}

	var task domain.Task
	err := s.mutate(ctx, func(ctx context.Context) (err error) {
		task, err = s.repo.UpdateTask(ctx, id, u)
		if err == nil && task.ID == "" {
			task.ID = id
		}
		return err
	}, func(snap *Snapshot) {
		for i := range snap.Tasks {
			if snap.Tasks[i].ID == id {
				snap.Tasks[i] = task
			}
		}
	})
	m.Log(err)
	if err != nil {
		return domain.Task{}, err
	}
	s.publish(ctx, domain.TaskUpdated, id, task)
	s.FetchStats(ctx)
	return cloneTask(task), nil
}

// DeleteTask removes a task remotely and then locally.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	m := newOpMetrics(s.logger, "delete_task")
	m.taskID = id
	err := s.mutate(ctx, func(ctx context.Context) error {
		return s.repo.DeleteTask(ctx, id)
	}, func(snap *Snapshot) {
		kept := make([]domain.Task, 0, len(snap.Tasks))
		for _, t := range snap.Tasks {
			if t.ID != id {
				kept = append(kept, t)
			}
		}
		snap.Tasks = kept
	})
	m.Log(err)
	if err != nil {
		return err
	}
	s.publish(ctx, domain.TaskDeleted, id, nil)
	s.FetchStats(ctx)
	return nil
}

// mutate runs call and, only once the server confirmed it, applies the change.
func (s *Store) mutate(ctx context.Context, call func(context.Context) error, apply func(*Snapshot)) error {
	if err := s.call(ctx, call); err != nil {
		s.recordError(err)
		return err
	}
	s.mu.Lock()
	apply(&s.snap)
	s.mu.Unlock()
	s.broker.notify()
	return nil
}

// call runs fn under the request timeout, cancelled early by Close.
func (s *Store) call(ctx context.Context, fn func(context.Context) error) error {
	if s.lifetime.Err() != nil {
		return ErrClosed
	}
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	stop := context.AfterFunc(s.lifetime, cancel)
	err := fn(rctx)
	stop()
	cancel()
	if err != nil && s.lifetime.Err() != nil {
		return ErrClosed
	}
	return err
}

func (s *Store) recordError(err error) {
	s.mu.Lock()
	s.snap.Err = err.Error()
	s.mu.Unlock()
	s.broker.notify()
}

func (s *Store) publish(ctx context.Context, typ, taskID string, data any) {
	if s.publisher == nil {
		return
	}
	ev, err := events.NewEvent(typ, taskID, s.userID, data)
	if err != nil {
		s.logger.Errorf("Unable to encode %s event for task %s: %v", typ, taskID, err)
		return
	}
	if err := s.call(ctx, func(ctx context.Context) error {
		return s.publisher.Publish(ctx, ev)
	}); err != nil {
		s.logger.WithFields(log.Fields{"task_id": taskID, "type": typ}).Warnf("publish task event: %v", err)
	}
}
