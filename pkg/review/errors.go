package review

import "errors"

// Sentinel errors for the review domain. Services wrap these with context via
// fmt.Errorf("...: %w", err) and the HTTP layer maps them to statuses.
var (
	// ErrMalformedResponse marks a generation response missing required keys.
	// Treated as a remote-call failure: prior state stays intact.
	ErrMalformedResponse = errors.New("malformed review response")

	// ErrInvalidSectionKey marks a section key outside the fixed text keys.
	ErrInvalidSectionKey = errors.New("invalid section key")

	// ErrUnknownCapability marks a capability that was not part of the set
	// supplied at generation time.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrEmptyInstructions is the local pre-flight rejection of an improvement
	// submit without instructions. Never reaches the network.
	ErrEmptyInstructions = errors.New("improvement instructions are empty")

	// ErrImproveInFlight guards duplicate submission: one outstanding request
	// per target key at a time.
	ErrImproveInFlight = errors.New("improvement request already in flight for this target")
)
