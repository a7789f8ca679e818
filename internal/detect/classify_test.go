package detect

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/sabbirahammad/currency/pkg/domain-errors"
)

func TestClassifyAttempt(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode dErrors.Code
	}{
		{
			name:     "deadline exceeded maps to timeout",
			err:      context.DeadlineExceeded,
			wantCode: dErrors.CodeTimeout,
		},
		{
			name:     "deadline wrapped in url.Error still maps to timeout",
			err:      &url.Error{Op: "Post", URL: "http://detect", Err: context.DeadlineExceeded},
			wantCode: dErrors.CodeTimeout,
		},
		{
			name:     "refused connection maps to network",
			err:      &url.Error{Op: "Post", URL: "http://detect", Err: &net.OpError{Op: "dial", Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED}}},
			wantCode: dErrors.CodeNetwork,
		},
		{
			name:     "upstream status maps to server",
			err:      &ServerError{Status: 500, Message: "Detection failed"},
			wantCode: dErrors.CodeServer,
		},
		{
			name:     "missing key marker in details maps to configuration",
			err:      &ServerError{Status: 500, Message: "Detection failed", Details: "Gemini API key is not configured"},
			wantCode: dErrors.CodeConfiguration,
		},
		{
			name:     "missing key marker in message maps to configuration",
			err:      &ServerError{Status: 401, Message: "Invalid API_KEY supplied"},
			wantCode: dErrors.CodeConfiguration,
		},
		{
			name:     "marker match is case-insensitive",
			err:      &ServerError{Status: 500, Message: "fail", Details: "API KEY missing"},
			wantCode: dErrors.CodeConfiguration,
		},
		{
			name:     "anything else maps to unknown",
			err:      errors.New("surprise"),
			wantCode: dErrors.CodeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyAttempt(tt.err)
			require.NotNil(t, classified)
			assert.Equal(t, tt.wantCode, classified.Code)
			assert.ErrorIs(t, classified, tt.err, "original error must stay in the chain")
		})
	}

	t.Run("nil error classifies to nil", func(t *testing.T) {
		assert.Nil(t, classifyAttempt(nil))
	})

	t.Run("server classification carries the upstream status", func(t *testing.T) {
		classified := classifyAttempt(&ServerError{Status: 422, Message: "No currency detected"})
		require.NotNil(t, classified)
		assert.Equal(t, 422, classified.Status)
	})

	t.Run("wrapped server error is still recognized", func(t *testing.T) {
		err := fmt.Errorf("attempt: %w", &ServerError{Status: 503, Message: "busy"})
		classified := classifyAttempt(err)
		require.NotNil(t, classified)
		assert.Equal(t, dErrors.CodeServer, classified.Code)
	})
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(context.DeadlineExceeded))
	assert.True(t, retryable(&url.Error{Op: "Post", URL: "http://detect", Err: errors.New("connection refused")}))
	assert.True(t, retryable(errors.New("surprise")))

	assert.False(t, retryable(&ServerError{Status: 500, Message: "Detection failed"}))
	assert.False(t, retryable(fmt.Errorf("attempt: %w", &ServerError{Status: 503, Message: "busy"})))
}
