package review

import (
	"fmt"
	"strings"
)

// SessionState is the edit-session state for one improvement target.
type SessionState string

const (
	StateIdle       SessionState = "IDLE"
	StateComposing  SessionState = "COMPOSING"
	StateRequesting SessionState = "REQUESTING"
)

// TargetKey addresses either a text section or one capability entry.
// Capability is set only when Section is the capabilities key.
type TargetKey struct {
	Section    SectionKey
	Capability string
}

func (t TargetKey) String() string {
	if t.Capability != "" {
		return string(t.Section) + "." + t.Capability
	}
	return string(t.Section)
}

// Validate rejects targets that can never be improved: unknown section keys,
// a capabilities target without a capability name, or a capability name on a
// text section.
func (t TargetKey) Validate() error {
	if t.Section == SectionCapabilities {
		if strings.TrimSpace(t.Capability) == "" {
			return fmt.Errorf("%w: capability name is required", ErrUnknownCapability)
		}
		return nil
	}
	if !IsTextSectionKey(t.Section) {
		return fmt.Errorf("%w: %q", ErrInvalidSectionKey, t.Section)
	}
	if t.Capability != "" {
		return fmt.Errorf("%w: capability name only applies to the capabilities section", ErrInvalidSectionKey)
	}
	return nil
}

// EditSession is the per-target state machine for the "improve this section"
// interaction:
//
//	Idle --begin--> Composing --submit--> Requesting --success--> Idle
//	                    |                      |
//	                 cancel               failure --> Composing (error kept)
//
// The machine itself is a plain value; callers serialize access per target.
type EditSession struct {
	Target       TargetKey    `json:"target"`
	State        SessionState `json:"state"`
	Instructions string       `json:"instructions"`
	LastError    string       `json:"last_error,omitempty"`
}

// NewEditSession returns an idle session for the target.
func NewEditSession(target TargetKey) *EditSession {
	return &EditSession{Target: target, State: StateIdle}
}

// Begin opens the instruction composer. Invoking it while a request for the
// same target is outstanding is a no-op, which is the duplicate-submission
// guard for rapid repeated interaction. Returns whether the state changed.
func (s *EditSession) Begin() bool {
	if s.State == StateRequesting {
		return false
	}
	if s.State == StateIdle {
		s.Instructions = ""
		s.LastError = ""
	}
	s.State = StateComposing
	return true
}

// Cancel discards instructions without any network call.
func (s *EditSession) Cancel() {
	if s.State == StateRequesting {
		return
	}
	s.State = StateIdle
	s.Instructions = ""
	s.LastError = ""
}

// Submit freezes instructions for one attempt and moves to Requesting.
// Empty instructions are a local validation failure: the state stays put and
// nothing goes over the network. A submit while already Requesting is the
// duplicate-call case and is rejected.
func (s *EditSession) Submit(instructions string) error {
	if s.State == StateRequesting {
		return ErrImproveInFlight
	}
	if strings.TrimSpace(instructions) == "" {
		return ErrEmptyInstructions
	}
	s.Instructions = instructions
	s.LastError = ""
	s.State = StateRequesting
	return nil
}

// Complete records a successful improvement: instructions are spent.
func (s *EditSession) Complete() {
	s.State = StateIdle
	s.Instructions = ""
	s.LastError = ""
}

// Fail records a remote failure. Instructions are preserved so the user can
// retry without retyping.
func (s *EditSession) Fail(message string) {
	s.State = StateComposing
	s.LastError = message
}
