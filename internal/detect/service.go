// Package detect implements the image submission pipeline: validation,
// bounded retries against the recognition service, progress estimation and
// error classification.
package detect

import (
	"context"
	"log/slog"
	"time"

	"github.com/sabbirahammad/currency/internal/detect/metrics"
	dErrors "github.com/sabbirahammad/currency/pkg/domain-errors"
	"github.com/sabbirahammad/currency/pkg/requestcontext"
)

// Retry policy defaults. A submission makes at most maxAttempts sequential
// attempts, waiting backoffBase<<(i-1) before attempt i. The budget covers
// transient failures only; an error response from the service is definitive
// and ends the ladder at once. Each attempt runs under its own
// attemptTimeout and nothing else cancels it mid-flight.
const (
	defaultMaxAttempts    = 3
	defaultAttemptTimeout = 30 * time.Second
	defaultBackoffBase    = 1 * time.Second
)

// Service coordinates one submission at a time from validation to a
// classified outcome. Safe for concurrent use; each Submit call runs an
// independent attempt sequence with its own progress cycle.
type Service struct {
	detector Detector
	progress *Estimator
	logger   *slog.Logger
	metrics  *metrics.Metrics

	maxAttempts      int
	attemptTimeout   time.Duration
	backoffBase      time.Duration
	progressInterval time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithMaxAttempts overrides the attempt ceiling.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithAttemptTimeout overrides the per-attempt deadline.
func WithAttemptTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.attemptTimeout = d
		}
	}
}

// WithBackoffBase overrides the first retry delay. Subsequent delays double.
func WithBackoffBase(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.backoffBase = d
		}
	}
}

// WithProgressInterval overrides the progress tick interval.
func WithProgressInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.progressInterval = d
		}
	}
}

// NewService creates a submission service around a Detector.
func NewService(detector Detector, opts ...Option) *Service {
	s := &Service{
		detector:         detector,
		logger:           slog.Default(),
		maxAttempts:      defaultMaxAttempts,
		attemptTimeout:   defaultAttemptTimeout,
		backoffBase:      defaultBackoffBase,
		progressInterval: defaultProgressInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.progress = NewEstimator(s.progressInterval)
	return s
}

// Progress returns the current submission progress estimate in [0,100].
func (s *Service) Progress() float64 {
	return s.progress.Value()
}

// Submit validates the request and runs it through the retry loop. The
// returned error always carries exactly one classification, derived from the
// final attempt alone. The caller's context cancels waiting between attempts
// (teardown) but never an attempt already in flight.
func (s *Service) Submit(ctx context.Context, req Request) (*Result, error) {
	requestID := requestcontext.RequestID(ctx)

	if err := req.Validate(); err != nil {
		s.logger.WarnContext(ctx, "submission rejected",
			"request_id", requestID,
			"filename", req.Filename,
			"size_bytes", len(req.Body),
			"mime_type", req.MIMEType,
			"error", err.Error(),
		)
		s.metrics.IncrementSubmission(outcomeLabel(err))
		return nil, err
	}

	stopProgress := s.progress.Begin()

	result, attempts, lastErr := s.runAttempts(ctx, req, requestID)

	// The tick loop must be fully stopped before the terminal value is
	// published, otherwise a late tick could overwrite it.
	stopProgress()

	s.metrics.ObserveAttempts(attempts)

	if lastErr != nil {
		s.progress.Fail()
		classified := classifyAttempt(lastErr)
		s.logger.ErrorContext(ctx, "submission failed",
			"request_id", requestID,
			"attempts", attempts,
			"class", string(classified.Code),
			"error", lastErr.Error(),
		)
		s.metrics.IncrementSubmission(outcomeLabel(classified))
		return nil, classified
	}

	s.progress.Complete()
	s.logger.InfoContext(ctx, "submission succeeded",
		"request_id", requestID,
		"attempts", attempts,
		"currency_code", result.CurrencyCode,
		"confidence", string(result.Confidence),
	)
	s.metrics.IncrementSubmission("ok")
	return result, nil
}

// runAttempts drives the sequential attempt loop. Transient failures are
// retried with doubling backoff up to the attempt ceiling; an error response
// from the service ends the loop immediately. It returns the first
// successful result, the number of attempts consumed, and the raw error of
// the last attempt made.
func (s *Service) runAttempts(ctx context.Context, req Request, requestID string) (*Result, int, error) {
	var lastErr error

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := s.waitBackoff(ctx, attempt); err != nil {
				// Teardown during the wait: the sequence ends with the
				// error of the last attempt actually made.
				return nil, attempt, lastErr
			}
		}

		start := time.Now()
		result, err := s.attempt(ctx, req)
		elapsed := time.Since(start)

		if err == nil {
			s.metrics.ObserveAttempt("ok", elapsed)
			return result, attempt + 1, nil
		}

		lastErr = err
		s.metrics.ObserveAttempt(outcomeLabel(classifyAttempt(err)), elapsed)
		s.logger.WarnContext(ctx, "recognition attempt failed",
			"request_id", requestID,
			"attempt", attempt+1,
			"max_attempts", s.maxAttempts,
			"duration_ms", elapsed.Milliseconds(),
			"error", err.Error(),
		)

		if !retryable(err) {
			return nil, attempt + 1, lastErr
		}
	}

	return nil, s.maxAttempts, lastErr
}

// attempt runs one recognition call under its own deadline, detached from
// the caller's cancellation: only the per-attempt timeout ends it.
func (s *Service) attempt(ctx context.Context, req Request) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.attemptTimeout)
	defer cancel()
	return s.detector.Detect(attemptCtx, req)
}

// waitBackoff sleeps backoffBase<<(attempt-1) before the given attempt.
// Returns the context error if teardown interrupts the wait.
func (s *Service) waitBackoff(ctx context.Context, attempt int) error {
	delay := s.backoffBase << (attempt - 1)
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// outcomeLabel shortens an error class to its metrics label.
func outcomeLabel(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeValidation:
		return "validation"
	case dErrors.CodeTimeout:
		return "timeout"
	case dErrors.CodeNetwork:
		return "network"
	case dErrors.CodeServer:
		return "server"
	case dErrors.CodeConfiguration:
		return "config"
	default:
		return "other"
	}
}
