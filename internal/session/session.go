// Package session holds the per-user analysis context: credentials, model
// choice and the uploaded dataset. Sessions live in memory only.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/KaramelBytes/dataviz-agent/internal/ai"
	"github.com/KaramelBytes/dataviz-agent/internal/dataset"
	"github.com/KaramelBytes/dataviz-agent/internal/render"
	"github.com/google/uuid"
)

// Session is one user's interactive context. Fields are mutated only from
// explicit user input.
type Session struct {
	ID          string
	ProviderKey string
	SandboxKey  string
	Model       string
	ShowFull    bool
	Question    string
	Dataset     *dataset.Dataset
	// Last is the most recent analysis shown to the user.
	Last *Analysis

	mu      sync.Mutex // guards the exported fields
	touched time.Time
	running sync.Mutex
}

// Analysis is a finished run as presented on the page.
type Analysis struct {
	Question string
	Text     string
	Code     string
	Report   render.Report
	Error    string
	Started  time.Time
	Duration time.Duration
}

// New returns a session with a fresh id and the default model.
func New() *Session {
	return &Session{
		ID:      uuid.NewString(),
		Model:   ai.DefaultModel,
		touched: time.Now(),
	}
}

// ConfigError reports settings that must be fixed before any remote call.
type ConfigError struct {
	Missing []string
	Model   string
}

func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, " and "))
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("unsupported model %q", e.Model))
	}
	return "configuration error: " + strings.Join(parts, "; ")
}

// Validate checks credentials and model. It never contacts a remote service.
func (s *Session) Validate() error {
	var missing []string
	if strings.TrimSpace(s.ProviderKey) == "" {
		missing = append(missing, "model provider API key")
	}
	if strings.TrimSpace(s.SandboxKey) == "" {
		missing = append(missing, "sandbox API key")
	}
	var badModel string
	if _, ok := ai.LookupModel(s.Model); !ok {
		badModel = s.Model
	}
	if len(missing) == 0 && badModel == "" {
		return nil
	}
	return &ConfigError{Missing: missing, Model: badModel}
}

// Update runs fn with the session fields locked.
func (s *Session) Update(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// Snapshot returns a detached copy of the session fields.
func (s *Session) Snapshot() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Session{
		ID:          s.ID,
		ProviderKey: s.ProviderKey,
		SandboxKey:  s.SandboxKey,
		Model:       s.Model,
		ShowFull:    s.ShowFull,
		Question:    s.Question,
		Dataset:     s.Dataset,
		Last:        s.Last,
	}
}

// TryBegin claims the session for one analysis. It returns false while
// another analysis of the same session is still running.
func (s *Session) TryBegin() bool { return s.running.TryLock() }

// End releases the claim taken by TryBegin.
func (s *Session) End() { s.running.Unlock() }

// Store keeps sessions by id.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{sessions: map[string]*Session{}, now: time.Now}
}

// Get returns the session for id and marks it as used.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if ok {
		s.touched = st.now()
	}
	return s, ok
}

// Create registers a new session.
func (st *Store) Create() *Session {
	s := New()
	st.mu.Lock()
	defer st.mu.Unlock()
	s.touched = st.now()
	st.sessions[s.ID] = s
	return s
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Prune drops sessions idle for longer than maxIdle and returns how many
// were removed.
func (st *Store) Prune(maxIdle time.Duration) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	cutoff := st.now().Add(-maxIdle)
	n := 0
	for id, s := range st.sessions {
		if s.touched.Before(cutoff) {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}
