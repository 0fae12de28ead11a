package store

import (
	"sync"

	"caseforge-be/pkg/review"
)

// CaseState is the runtime state of one client session: the current document,
// its experience groups, and the per-target edit sessions. The document is
// only ever swapped wholesale under the lock, so readers always see a
// complete value.
type CaseState struct {
	mu sync.Mutex

	ID               string
	Document         *review.Document
	ExperienceGroups review.ExperienceGroups

	// Edit sessions keyed by TargetKey.String(). Created lazily; reset on
	// NewCase and on whole-document replacement.
	EditSessions map[string]*review.EditSession

	// WholeImproveInFlight guards the orchestrator-level improvement the same
	// way Requesting guards a section session.
	WholeImproveInFlight bool

	// GenerateInFlight marks a generation whose remote calls are running
	// outside the lock. Section improvements must not settle against the
	// document a generation is about to replace.
	GenerateInFlight bool
}

func NewCaseState(id string) *CaseState {
	return &CaseState{
		ID:           id,
		EditSessions: make(map[string]*review.EditSession),
	}
}

// Lock serializes state transitions for this session. Remote calls must not
// happen under this lock; sessions for distinct targets stay independently
// requestable.
func (s *CaseState) Lock() { s.mu.Lock() }

func (s *CaseState) Unlock() { s.mu.Unlock() }

// Session returns the edit session for target, creating an idle one on first
// use. Caller holds the lock.
func (s *CaseState) Session(target review.TargetKey) *review.EditSession {
	key := target.String()
	if existing, ok := s.EditSessions[key]; ok {
		return existing
	}
	created := review.NewEditSession(target)
	s.EditSessions[key] = created
	return created
}

// AnyRequesting reports whether any edit session, whole-document improvement
// or generation is outstanding. This is the page-level loading signal.
// Caller holds the lock.
func (s *CaseState) AnyRequesting() bool {
	if s.WholeImproveInFlight || s.GenerateInFlight {
		return true
	}
	for _, session := range s.EditSessions {
		if session.State == review.StateRequesting {
			return true
		}
	}
	return false
}

// Reset drops the document, groups and edit sessions. Caller holds the lock.
func (s *CaseState) Reset() {
	s.Document = nil
	s.ExperienceGroups = nil
	s.EditSessions = make(map[string]*review.EditSession)
	s.WholeImproveInFlight = false
	s.GenerateInFlight = false
}
