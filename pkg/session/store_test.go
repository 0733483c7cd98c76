package session

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestUpdateOrCreateInitializesSession(t *testing.T) {
	m := NewMemoryStore()
	err := m.UpdateOrCreate("s1", func(s *Session) error {
		require.Equal(t, "s1", s.ID)
		require.Equal(t, PhaseMain, s.Phase)
		require.Equal(t, 0, s.Stage)
		require.Empty(t, s.History)
		require.Empty(t, s.SubjectName)
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateRequiresExistingSession(t *testing.T) {
	m := NewMemoryStore()
	err := m.Update("ghost", func(s *Session) error { return nil })
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFailedTransitionLeavesSessionUntouched(t *testing.T) {
	m := NewMemoryStore()
	require.NoError(t, m.UpdateOrCreate("s1", func(s *Session) error {
		s.Append("q1", "a1")
		return nil
	}))

	boom := errors.New("boom")
	err := m.Update("s1", func(s *Session) error {
		s.Append("q2", "a2")
		s.Stage = 5
		return boom
	})
	require.ErrorIs(t, err, boom)

	snap, ok := m.Snapshot("s1")
	require.True(t, ok)
	require.Len(t, snap.History, 1)
	require.Equal(t, 0, snap.Stage)
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	m := NewMemoryStore()
	require.NoError(t, m.UpdateOrCreate("s1", func(s *Session) error { return nil }))

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Update("s1", func(s *Session) error {
				s.Stage++
				return nil
			})
		}()
	}
	wg.Wait()

	snap, ok := m.Snapshot("s1")
	require.True(t, ok)
	require.Equal(t, n, snap.Stage)
}

func TestDeleteIsIdempotent(t *testing.T) {
	m := NewMemoryStore()
	require.NoError(t, m.UpdateOrCreate("s1", func(s *Session) error { return nil }))
	m.Delete("s1")
	_, ok := m.Snapshot("s1")
	require.False(t, ok)
	m.Delete("s1")
	_, ok = m.Snapshot("s1")
	require.False(t, ok)
}

func TestSnapshotIsACopy(t *testing.T) {
	m := NewMemoryStore()
	require.NoError(t, m.UpdateOrCreate("s1", func(s *Session) error {
		s.Append("q", "a")
		return nil
	}))
	snap, _ := m.Snapshot("s1")
	snap.History[0].Answer = "mutated"
	again, _ := m.Snapshot("s1")
	require.Equal(t, "a", again.History[0].Answer)
}
