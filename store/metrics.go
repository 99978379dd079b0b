package store

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type opMetrics struct {
	logger *log.Logger
	op     string
	start  time.Time
	seq    uint64
	stale  bool
	taskID string
}

func newOpMetrics(logger *log.Logger, op string) *opMetrics {
	return &opMetrics{logger: logger, op: op, start: time.Now()}
}

func (m *opMetrics) Log(err error) {
	if m == nil || m.logger == nil {
		return
	}
	fields := log.Fields{
		"op":       m.op,
		"total_ms": durationToMillis(time.Since(m.start)),
		"outcome":  "ok",
	}
	if m.seq > 0 {
		fields["seq"] = m.seq
		fields["stale"] = m.stale
	}
	if m.taskID != "" {
		fields["task_id"] = m.taskID
	}
	if err != nil {
		fields["outcome"] = "error"
		fields["error"] = err.Error()
	}
	m.logger.WithFields(fields).Info("store." + m.op + ".metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
