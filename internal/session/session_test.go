package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMissingBothKeys(t *testing.T) {
	s := New()
	err := s.Validate()
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"model provider API key", "sandbox API key"}, ce.Missing)
	assert.Empty(t, ce.Model)
	assert.Contains(t, err.Error(), "missing model provider API key and sandbox API key")
}

func TestValidateUnsupportedModel(t *testing.T) {
	s := New()
	s.ProviderKey, s.SandboxKey, s.Model = "k", "e", "gpt-99"
	var ce *ConfigError
	require.True(t, errors.As(s.Validate(), &ce))
	assert.Empty(t, ce.Missing)
	assert.Equal(t, "gpt-99", ce.Model)
}

func TestValidateOK(t *testing.T) {
	s := New()
	s.ProviderKey, s.SandboxKey = "k", "e"
	assert.NoError(t, s.Validate())
}

func TestTryBeginIsExclusive(t *testing.T) {
	s := New()
	require.True(t, s.TryBegin())
	assert.False(t, s.TryBegin())
	s.End()
	assert.True(t, s.TryBegin())
	s.End()
}

func TestStorePrune(t *testing.T) {
	st := NewStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	old := st.Create()
	now = now.Add(2 * time.Hour)
	fresh := st.Create()

	assert.Equal(t, 1, st.Prune(time.Hour))
	_, ok := st.Get(old.ID)
	assert.False(t, ok)
	got, ok := st.Get(fresh.ID)
	require.True(t, ok)
	assert.Same(t, fresh, got)
	assert.Equal(t, 1, st.Len())
}

func TestSnapshotIsDetached(t *testing.T) {
	s := New()
	s.Update(func(s *Session) { s.ProviderKey, s.SandboxKey = "k", "e" })
	snap := s.Snapshot()
	s.Update(func(s *Session) { s.ProviderKey = "" })

	assert.Equal(t, s.ID, snap.ID)
	assert.Equal(t, "k", snap.ProviderKey)
	assert.NoError(t, snap.Validate())
	assert.Error(t, s.Validate())
	require.True(t, snap.TryBegin())
	assert.True(t, s.TryBegin())
}
