package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ModelsSuite struct {
	suite.Suite
}

func TestModelsSuite(t *testing.T) {
	suite.Run(t, new(ModelsSuite))
}

func (s *ModelsSuite) TestAction_Category() {
	s.Run("session bootstrap failures are security events", func() {
		s.Equal(CategorySecurity, ActionSessionBootstrapFailed.Category())
	})

	s.Run("sign-outs are security events", func() {
		s.Equal(CategorySecurity, ActionSessionSignedOut.Category())
	})

	s.Run("detection activity is operational", func() {
		s.Equal(CategoryOperations, ActionDetectionSubmitted.Category())
		s.Equal(CategoryOperations, ActionDetectionSucceeded.Category())
		s.Equal(CategoryOperations, ActionHistoryWriteFailed.Category())
	})

	s.Run("unknown actions default to operations", func() {
		s.Equal(CategoryOperations, Action("made_up_action").Category())
	})
}

func (s *ModelsSuite) TestNewEvent() {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	event := NewEvent(ActionSessionBootstrapFailed, at)

	s.Equal(ActionSessionBootstrapFailed, event.Action)
	s.Equal(CategorySecurity, event.Category)
	s.True(event.Timestamp.Equal(at))
}

func (s *ModelsSuite) TestImageDigest() {
	// sha256("hello"), pinned so digests stay comparable across versions.
	s.Equal(
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		ImageDigest([]byte("hello")),
	)
	s.Len(ImageDigest(nil), 64)
}

func (s *ModelsSuite) TestClientDescription() {
	s.Run("known browser condenses to name, version and os", func() {
		const chrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

		desc := ClientDescription(chrome)

		s.Contains(desc, "Chrome")
		s.Contains(desc, "Windows")
	})

	s.Run("empty agent stays empty", func() {
		s.Equal("", ClientDescription(""))
	})

	s.Run("unparsable agent passes through truncated", func() {
		long := ""
		for i := 0; i < 10; i++ {
			long += "0123456789"
		}

		desc := ClientDescription(long)

		s.LessOrEqual(len(desc), 64)
		s.NotEmpty(desc)
	})
}
