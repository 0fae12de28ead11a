package dto

type CapabilityResponse struct {
	Name   string   `json:"name"`
	Points []string `json:"points"`
}

type CapabilitiesResponse struct {
	Capabilities []CapabilityResponse `json:"capabilities"`
}

type SelectCapabilitiesRequest struct {
	CaseDescription string `json:"case_description" validate:"required"`
}

type SelectCapabilitiesResponse struct {
	Capabilities []string `json:"capabilities"`
}

type SelectExperienceGroupsRequest struct {
	CaseDescription string `json:"case_description" validate:"required"`
}

type SelectExperienceGroupsResponse struct {
	ExperienceGroups []string `json:"experience_groups"`
}
