package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Queue counts preparation queue activity for the whole process.
type Queue struct {
	Enqueued         Counter
	Ready            Counter
	Delivered        Counter
	Recomputes       Counter
	EstimatesUpdated Counter
	Conflicts        Counter
	Failures         Counter
}

func (q *Queue) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"enqueued":          q.Enqueued.Load(),
		"ready":             q.Ready.Load(),
		"delivered":         q.Delivered.Load(),
		"recomputes":        q.Recomputes.Load(),
		"estimates_updated": q.EstimatesUpdated.Load(),
		"conflicts":         q.Conflicts.Load(),
		"failures":          q.Failures.Load(),
	}
}
