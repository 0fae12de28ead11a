package review

import "context"

// Provider is the remote review-service boundary. Implementations do the
// actual language generation (see pkg/review/llmgen); the core only depends
// on this contract so tests can count and fail calls deterministically.
type Provider interface {
	// GenerateReview produces a full four-section document for a case.
	GenerateReview(ctx context.Context, caseDescription string, capabilities []string) (Document, error)

	// ImproveReview rewrites the whole document from its flattened raw content
	// plus instructions and returns a full replacement.
	ImproveReview(ctx context.Context, rawContent, instructions string, capabilities []string) (Document, error)

	// ImproveSection rewrites one section (or one capability entry) and
	// returns only that piece's replacement text.
	ImproveSection(ctx context.Context, target TargetKey, sectionText, instructions string) (string, error)

	// SelectCapabilities picks 1-3 capability names for a case description.
	SelectCapabilities(ctx context.Context, caseDescription string) ([]string, error)

	// SelectExperienceGroups classifies a case into ordered group labels.
	SelectExperienceGroups(ctx context.Context, caseDescription string) (ExperienceGroups, error)
}
