package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionManagerEvictsIdleSessions(t *testing.T) {
	m := NewSessionManager()
	current := time.Now()
	m.now = func() time.Time { return current }

	m.Open("doc-1", "cached")
	current = current.Add(6 * time.Minute)

	result := m.Prepend("doc-1", "prompt")
	require.Equal(t, "prompt", result, "evicted session should not prepend cached context")
}

func TestSessionManagerPrependsCachedContext(t *testing.T) {
	m := NewSessionManager()
	m.Open("doc-1", "instructions")

	result := m.Prepend("doc-1", "window prompt")
	require.Equal(t, "instructions\n\nwindow prompt", result)

	hits, misses, ok := m.Stats("doc-1")
	require.True(t, ok)
	require.Equal(t, 1, hits)
	require.Equal(t, 0, misses)
}

func TestSessionManagerMissWhenUnopened(t *testing.T) {
	m := NewSessionManager()
	result := m.Prepend("missing", "prompt")
	require.Equal(t, "prompt", result)
}

func TestSessionManagerCloseRemovesSession(t *testing.T) {
	m := NewSessionManager()
	m.Open("doc-1", "instructions")
	m.Close("doc-1")

	_, _, ok := m.Stats("doc-1")
	require.False(t, ok)
}
