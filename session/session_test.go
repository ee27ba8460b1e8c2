package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tejasvajaitly/linkedin-scraper-api/config"
)

func TestRelease(t *testing.T) {
	t.Parallel()

	t.Run("decrements the active session counter", func(t *testing.T) {
		t.Parallel()

		m := NewManager(config.BrowserConfig{})
		s := &Session{}
		m.Adopt(s)
		assert.Equal(t, 1, m.ActiveSessions())

		s.Release()
		assert.Equal(t, 0, m.ActiveSessions())
	})

	t.Run("balances the counter on the cookie-injection failure path", func(t *testing.T) {
		t.Parallel()

		// Acquire adopts the session before injecting cookies; a rejected
		// cookie set releases the session straight away, which must leave
		// the counter where it started.
		m := NewManager(config.BrowserConfig{})
		s := &Session{}
		m.Adopt(s)
		s.Release()

		assert.Equal(t, 0, m.ActiveSessions())
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()

		m := NewManager(config.BrowserConfig{})
		s := &Session{}
		m.Adopt(s)

		s.Release()
		s.Release()
		s.Release()
		assert.Equal(t, 0, m.ActiveSessions())
	})

	t.Run("is safe on a partially constructed session", func(t *testing.T) {
		t.Parallel()

		s := &Session{}
		s.Release()
	})

	t.Run("is safe on nil", func(t *testing.T) {
		t.Parallel()

		var s *Session
		s.Release()
	})
}

func TestNewPage_WithoutContext(t *testing.T) {
	t.Parallel()

	s := &Session{}
	_, err := s.NewPage()
	assert.Error(t, err)
}
