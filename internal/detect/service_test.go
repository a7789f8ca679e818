package detect

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "github.com/sabbirahammad/currency/pkg/domain-errors"
)

// =============================================================================
// Submission Service Test Suite
// =============================================================================
// Justification for unit tests: the retry loop, per-attempt deadlines and
// last-error classification are timing behaviors that cannot be exercised
// deterministically through the HTTP surface alone.

type attemptScript struct {
	result *Result
	err    error
}

// scriptedDetector plays back a fixed sequence of attempt outcomes and
// records what each attempt observed.
type scriptedDetector struct {
	mu          sync.Mutex
	script      []attemptScript
	calls       int
	callTimes   []time.Time
	sawDeadline []bool
	sawCanceled []bool
}

func (d *scriptedDetector) Detect(ctx context.Context, _ Request) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, hasDeadline := ctx.Deadline()
	d.sawDeadline = append(d.sawDeadline, hasDeadline)
	d.sawCanceled = append(d.sawCanceled, ctx.Err() != nil)
	d.callTimes = append(d.callTimes, time.Now())

	idx := d.calls
	d.calls++
	if idx >= len(d.script) {
		return nil, &ServerError{Status: 500, Message: "script exhausted"}
	}
	return d.script[idx].result, d.script[idx].err
}

func (d *scriptedDetector) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type SubmitServiceSuite struct {
	suite.Suite
	detector *scriptedDetector
}

func TestSubmitServiceSuite(t *testing.T) {
	suite.Run(t, new(SubmitServiceSuite))
}

func (s *SubmitServiceSuite) SetupTest() {
	s.detector = &scriptedDetector{}
}

// newService builds a service with timings short enough for tests.
func (s *SubmitServiceSuite) newService(opts ...Option) *Service {
	base := []Option{
		WithAttemptTimeout(250 * time.Millisecond),
		WithBackoffBase(10 * time.Millisecond),
		WithProgressInterval(5 * time.Millisecond),
	}
	return NewService(s.detector, append(base, opts...)...)
}

func validRequest() Request {
	return Request{Filename: "note.jpg", MIMEType: "image/jpeg", Body: []byte("jpeg-bytes")}
}

// =============================================================================
// Validation Tests
// =============================================================================

func (s *SubmitServiceSuite) TestSubmit_Validation() {
	ctx := context.Background()

	s.Run("empty body is rejected without a network call", func() {
		svc := s.newService()
		_, err := svc.Submit(ctx, Request{Filename: "x.png", MIMEType: "image/png"})

		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(0, s.detector.callCount())
	})

	s.Run("oversized image is rejected without a network call", func() {
		svc := s.newService()
		req := validRequest()
		req.Body = make([]byte, MaxImageBytes+1)

		_, err := svc.Submit(ctx, req)

		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(0, s.detector.callCount())
	})

	s.Run("image at exactly the limit is accepted", func() {
		s.detector.script = []attemptScript{{result: &Result{Success: true, CurrencyCode: "USD"}}}
		svc := s.newService()
		req := validRequest()
		req.Body = make([]byte, MaxImageBytes)

		_, err := svc.Submit(ctx, req)

		s.NoError(err)
		s.Equal(1, s.detector.callCount())
	})

	s.Run("non-image mime type is rejected", func() {
		svc := s.newService()
		req := validRequest()
		req.MIMEType = "application/pdf"

		_, err := svc.Submit(ctx, req)

		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(0, s.detector.callCount())
	})

	s.Run("validation failure resets progress to zero", func() {
		svc := s.newService()
		_, err := svc.Submit(ctx, Request{})

		s.Require().Error(err)
		s.Equal(float64(0), svc.Progress())
	})
}

// =============================================================================
// Retry Loop Tests
// =============================================================================

func (s *SubmitServiceSuite) TestSubmit_RetryLoop() {
	ctx := context.Background()

	s.Run("first success short-circuits", func() {
		s.detector = &scriptedDetector{script: []attemptScript{
			{result: &Result{Success: true, CurrencyCode: "EUR"}},
		}}
		svc := s.newService()

		result, err := svc.Submit(ctx, validRequest())

		s.Require().NoError(err)
		s.Equal("EUR", result.CurrencyCode)
		s.Equal(1, s.detector.callCount())
	})

	s.Run("transient failures are retried up to the ceiling", func() {
		s.detector = &scriptedDetector{script: []attemptScript{
			{err: context.DeadlineExceeded},
			{err: context.DeadlineExceeded},
			{result: &Result{Success: true, CurrencyCode: "BDT"}},
		}}
		svc := s.newService()

		result, err := svc.Submit(ctx, validRequest())

		s.Require().NoError(err)
		s.Equal("BDT", result.CurrencyCode)
		s.Equal(3, s.detector.callCount())
	})

	s.Run("retry delays double between attempts", func() {
		s.detector = &scriptedDetector{script: []attemptScript{
			{err: context.DeadlineExceeded},
			{err: context.DeadlineExceeded},
			{result: &Result{Success: true}},
		}}
		svc := s.newService(WithBackoffBase(30 * time.Millisecond))

		_, err := svc.Submit(ctx, validRequest())

		s.Require().NoError(err)
		s.Require().Len(s.detector.callTimes, 3)
		firstGap := s.detector.callTimes[1].Sub(s.detector.callTimes[0])
		secondGap := s.detector.callTimes[2].Sub(s.detector.callTimes[1])
		s.GreaterOrEqual(firstGap, 30*time.Millisecond)
		s.GreaterOrEqual(secondGap, 60*time.Millisecond)
	})

	s.Run("exhausted attempts surface the final error only", func() {
		refused := &url.Error{Op: "Post", URL: "http://detect", Err: errors.New("connection refused")}
		s.detector = &scriptedDetector{script: []attemptScript{
			{err: refused},
			{err: refused},
			{err: context.DeadlineExceeded},
		}}
		svc := s.newService()

		_, err := svc.Submit(ctx, validRequest())

		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout), "classification must reflect the last attempt")
		s.Equal(3, s.detector.callCount())
	})

	s.Run("an error response stops the ladder without retries", func() {
		s.detector = &scriptedDetector{script: []attemptScript{
			{err: &ServerError{Status: 422, Message: "unsupported image"}},
			{result: &Result{Success: true}},
		}}
		svc := s.newService()

		_, err := svc.Submit(ctx, validRequest())

		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeServer))
		s.Equal(422, dErrors.StatusOf(err))
		s.Equal(1, s.detector.callCount(), "a definitive response must not be retried")
	})

	s.Run("every attempt runs under its own deadline", func() {
		s.detector = &scriptedDetector{script: []attemptScript{
			{err: context.DeadlineExceeded},
			{result: &Result{Success: true}},
		}}
		svc := s.newService()

		_, err := svc.Submit(ctx, validRequest())

		s.Require().NoError(err)
		for i, saw := range s.detector.sawDeadline {
			s.True(saw, "attempt %d missing deadline", i+1)
		}
	})
}

// =============================================================================
// Teardown Interaction Tests
// =============================================================================

func (s *SubmitServiceSuite) TestSubmit_Teardown() {
	s.Run("canceled caller context does not cancel an attempt in flight", func() {
		s.detector = &scriptedDetector{script: []attemptScript{
			{result: &Result{Success: true, CurrencyCode: "USD"}},
		}}
		svc := s.newService()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := svc.Submit(ctx, validRequest())

		s.Require().NoError(err)
		s.Equal("USD", result.CurrencyCode)
		s.Require().Len(s.detector.sawCanceled, 1)
		s.False(s.detector.sawCanceled[0], "attempt context must be detached from caller cancellation")
	})

	s.Run("teardown during backoff abandons remaining attempts", func() {
		s.detector = &scriptedDetector{script: []attemptScript{
			{err: &url.Error{Op: "Post", URL: "http://detect", Err: errors.New("connection refused")}},
			{result: &Result{Success: true}},
		}}
		svc := s.newService(WithBackoffBase(5 * time.Second))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := svc.Submit(ctx, validRequest())
			done <- err
		}()

		// Let the first attempt fail, then tear down mid-backoff.
		s.Eventually(func() bool { return s.detector.callCount() == 1 }, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeNetwork))
			s.Equal(1, s.detector.callCount())
		case <-time.After(2 * time.Second):
			s.Fail("submit did not return after teardown")
		}
	})
}

// =============================================================================
// Progress Interaction Tests
// =============================================================================

func (s *SubmitServiceSuite) TestSubmit_Progress() {
	ctx := context.Background()

	s.Run("success pins progress at 100", func() {
		s.detector = &scriptedDetector{script: []attemptScript{
			{result: &Result{Success: true}},
		}}
		svc := s.newService()

		_, err := svc.Submit(ctx, validRequest())

		s.Require().NoError(err)
		s.Equal(float64(100), svc.Progress())

		// No stray tick may change the terminal value.
		time.Sleep(30 * time.Millisecond)
		s.Equal(float64(100), svc.Progress())
	})

	s.Run("terminal failure resets progress to zero", func() {
		s.detector = &scriptedDetector{script: []attemptScript{
			{err: &ServerError{Status: 500, Message: "boom"}},
		}}
		svc := s.newService()

		_, err := svc.Submit(ctx, validRequest())

		s.Require().Error(err)
		s.Equal(float64(0), svc.Progress())

		time.Sleep(30 * time.Millisecond)
		s.Equal(float64(0), svc.Progress())
	})
}
