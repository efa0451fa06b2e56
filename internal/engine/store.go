package engine

import (
	"strings"
	"sync"
)

// Store holds the sessions of one batch, keyed by artifact ID. At most one
// session exists per artifact. Writes go through Apply and are atomic;
// serializing concurrent submits for the same batch is the orchestrator's
// job.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create accepts an artifact for analysis and opens its session at the
// initial step.
func (st *Store) Create(artifact *Artifact) (*Session, error) {
	if artifact == nil || strings.TrimSpace(artifact.ID) == "" {
		return nil, newError(KindNotFound, "", "", "artifact id is required")
	}
	a := artifact.clone()
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[a.ID]; ok {
		return nil, newError(KindDuplicateSession, a.ID, "", "session already exists")
	}
	s := &Session{Artifact: a, Step: StepAwaitFieldConfirmation}
	st.sessions[a.ID] = s
	return s, nil
}

func (st *Store) Get(artifactID string) (*Session, error) {
	artifactID = strings.TrimSpace(artifactID)
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[artifactID]
	if !ok {
		return nil, newError(KindNotFound, artifactID, "", "session not found")
	}
	return s, nil
}

// Apply writes a transition to the session: step, answer, working and derived
// annotations in one critical section. Terminal sessions reject further
// transitions.
func (st *Store) Apply(artifactID string, tr *Transition) (*Session, error) {
	if tr == nil {
		return nil, newError(KindInvalidState, artifactID, "", "transition is required")
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[strings.TrimSpace(artifactID)]
	if !ok {
		return nil, newError(KindNotFound, artifactID, "", "session not found")
	}
	if s.Step.Terminal() {
		return nil, newError(KindInvalidState, s.Artifact.ID, s.Step, "session is terminal")
	}
	if tr.Answer != (Answer{}) {
		s.Answers = append(s.Answers, tr.Answer)
	}
	if tr.Working != nil {
		s.Working = tr.Working
	}
	if tr.Derived != nil {
		s.Derived = tr.Derived
	}
	if tr.Cause != nil {
		s.Cause = tr.Cause
	}
	s.Step = tr.Step
	return s, nil
}
