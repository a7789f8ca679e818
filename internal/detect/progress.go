package detect

import (
	"math/rand"
	"sync"
	"time"
)

// Progress bounds. The estimate is synthetic: it rises while a submission is
// in flight but never reaches the terminal band until the outcome is known.
const (
	progressCeiling   = 90
	progressComplete  = 100
	progressIncrement = 10
)

// defaultProgressInterval paces the synthetic progress ticks.
const defaultProgressInterval = 300 * time.Millisecond

// Estimator produces a monotonically rising progress value in [0,100] for
// the submission currently in flight. One writer (the tick goroutine started
// by Begin), many readers.
type Estimator struct {
	interval time.Duration

	mu    sync.Mutex
	value float64
}

// NewEstimator creates an estimator ticking at the given interval.
// A non-positive interval falls back to the default.
func NewEstimator(interval time.Duration) *Estimator {
	if interval <= 0 {
		interval = defaultProgressInterval
	}
	return &Estimator{interval: interval}
}

// Begin resets the estimate to zero and starts the tick loop. The returned
// stop function halts the loop and waits for it to exit; callers must invoke
// it before publishing a terminal value so a late tick can never overwrite
// the outcome.
func (e *Estimator) Begin() (stop func()) {
	e.set(0)

	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				e.advance()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-stopped
		})
	}
}

// Complete marks the submission as successfully finished.
func (e *Estimator) Complete() {
	e.set(progressComplete)
}

// Fail resets the estimate after a terminal failure.
func (e *Estimator) Fail() {
	e.set(0)
}

// Value returns the current estimate.
func (e *Estimator) Value() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// advance adds a random increment, saturating at the in-flight ceiling.
func (e *Estimator) advance() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value += rand.Float64() * progressIncrement
	if e.value > progressCeiling {
		e.value = progressCeiling
	}
}

func (e *Estimator) set(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = v
}
