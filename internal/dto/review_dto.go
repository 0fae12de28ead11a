package dto

import (
	"caseforge-be/pkg/review"
)

// Wire field names follow the public API contract
// (case_description, selected_capabilities, improvement_prompt, ...).

type GenerateReviewRequest struct {
	CaseDescription string `json:"case_description" validate:"required"`

	// Either a manual selection of 1-3 capability names, or
	// auto_select_capabilities; the two are mutually exclusive.
	SelectedCapabilities   []string `json:"selected_capabilities" validate:"omitempty,max=3,dive,min=1"`
	AutoSelectCapabilities bool     `json:"auto_select_capabilities"`
}

type ReviewSectionsResponse struct {
	BriefDescription string                      `json:"brief_description"`
	Capabilities     review.CapabilityMapSection `json:"capabilities"`
	Reflection       string                      `json:"reflection"`
	LearningNeeds    string                      `json:"learning_needs"`
}

type CaseReviewResponse struct {
	CaseTitle        string                 `json:"case_title"`
	Sections         ReviewSectionsResponse `json:"sections"`
	ReviewContent    string                 `json:"review_content"`
	ExperienceGroups []string               `json:"experience_groups"`
}

type ImproveReviewRequest struct {
	ImprovementPrompt string `json:"improvement_prompt" validate:"required"`

	// Echoed by older clients; the server-held document is the source of
	// truth for raw content and capability set.
	OriginalCase         string   `json:"original_case"`
	SelectedCapabilities []string `json:"selected_capabilities"`
}

type SectionTargetRequest struct {
	SectionType    string `json:"section_type" validate:"required,oneof=brief_description reflection learning_needs capability"`
	CapabilityName string `json:"capability_name"`
}

type ImproveSectionRequest struct {
	SectionType       string `json:"section_type" validate:"required,oneof=brief_description reflection learning_needs capability"`
	CapabilityName    string `json:"capability_name"`
	ImprovementPrompt string `json:"improvement_prompt"`

	// Echoed by older clients; ignored in favour of the current document.
	SectionContent string `json:"section_content"`
}

type ImproveSectionResponse struct {
	ImprovedContent string              `json:"improved_content"`
	Review          *CaseReviewResponse `json:"review"`
}

type EditSessionResponse struct {
	Target       string `json:"target"`
	State        string `json:"state"`
	Instructions string `json:"instructions,omitempty"`
	LastError    string `json:"last_error,omitempty"`
}

// SessionStateResponse reports per-target edit states plus the aggregate
// any_requesting flag, which is the documented page-level loading signal.
type SessionStateResponse struct {
	AnyRequesting bool                  `json:"any_requesting"`
	Sessions      []EditSessionResponse `json:"sessions"`
}
