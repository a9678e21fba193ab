package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go-image-pipeline/internal/model"
)

var (
	// ErrDuplicateOutcome is returned when an item is recorded twice
	ErrDuplicateOutcome = errors.New("duplicate outcome")
	// ErrUnknownItem is returned for an item the stage does not expect
	ErrUnknownItem = errors.New("unknown item")
)

// ProgressFunc receives a metrics snapshot every few recorded outcomes
type ProgressFunc func(model.BatchMetrics)

// Aggregator collects the outcomes of one stage. It is safe for concurrent use.
type Aggregator struct {
	mu        sync.Mutex
	stage     string
	expected  map[int]bool // id -> recorded
	growing   bool         // expected set extended through Expect
	succeeded int
	failures  map[int]string
	started   time.Time
	finished  time.Time

	every    int
	progress ProgressFunc
}

// NewAggregator creates an aggregator expecting exactly the given item IDs
func NewAggregator(stage string, ids []int) *Aggregator {
	a := &Aggregator{
		stage:    stage,
		expected: make(map[int]bool, len(ids)),
		failures: make(map[int]string),
	}
	for _, id := range ids {
		a.expected[id] = false
	}
	return a
}

// OnProgress registers fn to be called after every n recorded outcomes
func (a *Aggregator) OnProgress(n int, fn ProgressFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.every = n
	a.progress = fn
}

// Expect adds ids to the expected set. Used when the stage input is not
// known up front; progress then fires only every n outcomes.
func (a *Aggregator) Expect(ids ...int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.growing = true
	for _, id := range ids {
		if _, ok := a.expected[id]; !ok {
			a.expected[id] = false
		}
	}
}

// Start starts the stage clock. Only the first call has an effect.
func (a *Aggregator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started.IsZero() {
		a.started = time.Now()
	}
}

// Finish stops the stage clock and returns the final metrics
func (a *Aggregator) Finish() model.BatchMetrics {
	a.mu.Lock()
	now := time.Now()
	if a.started.IsZero() {
		a.started = now
	}
	if a.finished.IsZero() {
		a.finished = now
	}
	m := a.snapshotLocked()
	a.mu.Unlock()
	return m
}

// Record counts o exactly once
func (a *Aggregator) Record(o model.Outcome) error {
	a.mu.Lock()
	recorded, ok := a.expected[o.ItemID()]
	switch {
	case !ok:
		a.mu.Unlock()
		return fmt.Errorf("%s: item %d: %w", a.stage, o.ItemID(), ErrUnknownItem)
	case recorded:
		a.mu.Unlock()
		return fmt.Errorf("%s: item %d: %w", a.stage, o.ItemID(), ErrDuplicateOutcome)
	}

	a.expected[o.ItemID()] = true
	if o.Succeeded() {
		a.succeeded++
	} else {
		a.failures[o.ItemID()] = o.ErrorText()
	}

	var (
		snap   model.BatchMetrics
		report ProgressFunc
	)
	if a.progress != nil && a.every > 0 {
		n := a.succeeded + len(a.failures)
		if n%a.every == 0 || (!a.growing && n == len(a.expected)) {
			snap = a.snapshotLocked()
			report = a.progress
		}
	}
	a.mu.Unlock()

	if report != nil {
		report(snap)
	}
	return nil
}

// Snapshot returns the current metrics
func (a *Aggregator) Snapshot() model.BatchMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aggregator) snapshotLocked() model.BatchMetrics {
	m := model.BatchMetrics{
		Stage:      a.stage,
		TotalItems: len(a.expected),
		Succeeded:  a.succeeded,
		Failed:     len(a.failures),
		FailedIDs:  make([]int, 0, len(a.failures)),
		Failures:   make(map[int]string, len(a.failures)),
		StartedAt:  a.started,
	}
	for id, msg := range a.failures {
		m.FailedIDs = append(m.FailedIDs, id)
		m.Failures[id] = msg
	}
	slices.Sort(m.FailedIDs)

	if a.started.IsZero() {
		return m
	}
	end := a.finished
	if end.IsZero() {
		end = time.Now()
	} else {
		finished := a.finished
		m.FinishedAt = &finished
	}
	m.ElapsedSeconds = end.Sub(a.started).Seconds()
	if m.ElapsedSeconds > 0 {
		count := m.Recorded()
		if m.FinishedAt != nil {
			count = m.TotalItems
		}
		m.ThroughputItemsPerSec = float64(count) / m.ElapsedSeconds
	}
	return m
}
