package deployment

import (
	"strconv"
	"sync/atomic"
	"time"
)

// JobIDGenerator produces job ids of the form "{millis}-{counter}".
// The counter is per instance, so ids are unique within one process only.
type JobIDGenerator struct {
	counter atomic.Int64
	now     func() time.Time
}

// NewJobIDGenerator creates a generator. A nil clock uses time.Now.
func NewJobIDGenerator(now func() time.Time) *JobIDGenerator {
	if now == nil {
		now = time.Now
	}
	return &JobIDGenerator{now: now}
}

// Next returns a fresh job id. Safe for concurrent use.
func (g *JobIDGenerator) Next() string {
	n := g.counter.Add(1)
	return strconv.FormatInt(g.now().UnixMilli(), 10) + "-" + strconv.FormatInt(n, 10)
}
