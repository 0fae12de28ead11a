package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the review workflow.
const (
	TypeCaseSubmitted        = "case_submitted"
	TypeReviewGenerated      = "review_generated"
	TypeImprovementRequested = "improvement_requested"
	TypeNewCaseStarted       = "new_case_started"
	TypeErrorOccurred        = "error_occurred"
	TypeFeedbackSubmitted    = "feedback_submitted"
)

// Event is the contract for analytics events flowing through the bus.
type Event interface {
	// EventType returns the unique code for this event (e.g. "review_generated").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the common implementation used by all workflow events.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

func newEvent(eventType string, sessionId uuid.UUID, extra map[string]interface{}) BaseEvent {
	data := map[string]interface{}{
		"session_id": sessionId.String(),
	}
	for k, v := range extra {
		data[k] = v
	}
	return BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
}

// NewCaseSubmitted records a case description reaching the generator.
func NewCaseSubmitted(sessionId uuid.UUID, descriptionLength int, autoSelect bool) Event {
	return newEvent(TypeCaseSubmitted, sessionId, map[string]interface{}{
		"description_length":       descriptionLength,
		"auto_select_capabilities": autoSelect,
	})
}

// NewReviewGenerated records a successful end-to-end generation.
func NewReviewGenerated(sessionId uuid.UUID, capabilities []string, durationMs int64) Event {
	return newEvent(TypeReviewGenerated, sessionId, map[string]interface{}{
		"capabilities": capabilities,
		"duration_ms":  durationMs,
	})
}

// NewImprovementRequested records an accepted improve call. Scope is either
// "whole" or the target key of a section-level edit.
func NewImprovementRequested(sessionId uuid.UUID, scope string, instructionLen int) Event {
	return newEvent(TypeImprovementRequested, sessionId, map[string]interface{}{
		"scope":              scope,
		"instruction_length": instructionLen,
	})
}

// NewNewCaseStarted records a session discarding its case to start over.
func NewNewCaseStarted(sessionId uuid.UUID) Event {
	return newEvent(TypeNewCaseStarted, sessionId, nil)
}

// NewErrorOccurred records a failed remote operation.
func NewErrorOccurred(sessionId uuid.UUID, operation string, message string) Event {
	return newEvent(TypeErrorOccurred, sessionId, map[string]interface{}{
		"operation": operation,
		"message":   message,
	})
}

// NewFeedbackSubmitted records a feedback form submission.
func NewFeedbackSubmitted(sessionId uuid.UUID, hasEmail bool) Event {
	return newEvent(TypeFeedbackSubmitted, sessionId, map[string]interface{}{
		"has_email": hasEmail,
	})
}
