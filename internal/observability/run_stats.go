// Package observability tracks stage timings and counters for an analysis run.
package observability

import (
	"sort"
	"sync"
	"time"
)

// StageTiming is the accumulated wall time of one pipeline stage.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Calls    int64         `json:"calls"`
	Duration time.Duration `json:"duration_ns"`
	Started  time.Time     `json:"started"`
}

// Snapshot is a point-in-time copy of RunStats, safe to serialize.
type Snapshot struct {
	Stages   []StageTiming    `json:"stages"`
	Counters map[string]int64 `json:"counters"`
	Total    time.Duration    `json:"total_ns"`
}

// RunStats records per-stage durations and named counters. Safe for concurrent use.
type RunStats struct {
	mu       sync.RWMutex
	start    time.Time
	now      func() time.Time
	stages   map[string]*StageTiming
	counters map[string]int64
}

// NewRunStats creates a tracker whose total time starts now.
func NewRunStats() *RunStats {
	return newRunStats(time.Now)
}

func newRunStats(now func() time.Time) *RunStats {
	return &RunStats{
		start:    now(),
		now:      now,
		stages:   make(map[string]*StageTiming),
		counters: make(map[string]int64),
	}
}

// Track starts timing a stage and returns the function that stops it.
//
//	defer stats.Track("load")()
func (r *RunStats) Track(stage string) func() {
	begin := r.now()
	return func() {
		r.Record(stage, begin, r.now().Sub(begin))
	}
}

// Record adds an already measured duration to a stage.
func (r *RunStats) Record(stage string, started time.Time, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.stages[stage]
	if !ok {
		st = &StageTiming{Stage: stage, Started: started}
		r.stages[stage] = st
	}
	st.Calls++
	st.Duration += d
}

// Add increments a named counter.
func (r *RunStats) Add(counter string, delta int64) {
	r.mu.Lock()
	r.counters[counter] += delta
	r.mu.Unlock()
}

// Set overwrites a named counter.
func (r *RunStats) Set(counter string, value int64) {
	r.mu.Lock()
	r.counters[counter] = value
	r.mu.Unlock()
}

// Counter returns the current value of a counter, 0 if never set.
func (r *RunStats) Counter(counter string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[counter]
}

// Snapshot returns a copy of the stats. Stages are ordered by start time.
func (r *RunStats) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stages := make([]StageTiming, 0, len(r.stages))
	for _, st := range r.stages {
		stages = append(stages, *st)
	}
	sort.SliceStable(stages, func(i, j int) bool {
		if !stages[i].Started.Equal(stages[j].Started) {
			return stages[i].Started.Before(stages[j].Started)
		}
		return stages[i].Stage < stages[j].Stage
	})

	counters := make(map[string]int64, len(r.counters))
	for k, v := range r.counters {
		counters[k] = v
	}

	return Snapshot{
		Stages:   stages,
		Counters: counters,
		Total:    r.now().Sub(r.start),
	}
}

// Fields flattens the snapshot into logger key-value pairs.
func (s Snapshot) Fields() []interface{} {
	fields := make([]interface{}, 0, 2*(len(s.Stages)+len(s.Counters))+2)
	for _, st := range s.Stages {
		fields = append(fields, st.Stage+"_ms", st.Duration.Milliseconds())
	}
	keys := make([]string, 0, len(s.Counters))
	for k := range s.Counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, k, s.Counters[k])
	}
	return append(fields, "total_ms", s.Total.Milliseconds())
}
