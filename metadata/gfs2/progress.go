package gfs2

import (
	"time"

	"github.com/sirupsen/logrus"
)

// ProgressMeter is a monotone counter of processed and archived blocks,
// rate-limited to at most one log line per wall-clock second plus one
// forced line at completion (spec.md §5). It carries no synchronization
// because the pipeline is single-threaded cooperative I/O (spec.md §5);
// a mutex here would be dead weight, not cheap insurance.
type ProgressMeter struct {
	Processed uint64
	Archived  uint64

	log      logrus.FieldLogger
	last     time.Time
	interval time.Duration
}

// NewProgressMeter builds a meter that logs through log at most once per
// second.
func NewProgressMeter(log logrus.FieldLogger) *ProgressMeter {
	return &ProgressMeter{log: log, interval: time.Second}
}

// Tick increments the processed counter by one and, if force is set or at
// least one second has passed since the last emitted line, logs current
// progress.
func (p *ProgressMeter) Tick(force bool) {
	p.Processed++
	now := time.Now()
	if !force && now.Sub(p.last) < p.interval {
		return
	}
	p.last = now
	if p.log != nil {
		p.log.WithFields(logrus.Fields{
			"processed": p.Processed,
			"archived":  p.Archived,
		}).Info("progress")
	}
}

// Archive records that one more block was archived.
func (p *ProgressMeter) Archive() {
	p.Archived++
}
