package service

import (
	"context"

	"caseforge-be/internal/constant"
	"caseforge-be/internal/dto"
	"caseforge-be/internal/pkg/serverutils"
	"caseforge-be/pkg/review"
)

type ICapabilityService interface {
	// Catalog returns the full capability framework for pickers.
	Catalog(ctx context.Context) *dto.CapabilitiesResponse

	// SelectCapabilities suggests 1-3 capabilities for a case description.
	SelectCapabilities(ctx context.Context, req *dto.SelectCapabilitiesRequest) (*dto.SelectCapabilitiesResponse, error)

	// SelectExperienceGroups classifies a case into experience group labels.
	SelectExperienceGroups(ctx context.Context, req *dto.SelectExperienceGroupsRequest) (*dto.SelectExperienceGroupsResponse, error)
}

type capabilityService struct {
	provider review.Provider
}

func NewCapabilityService(provider review.Provider) ICapabilityService {
	return &capabilityService{provider: provider}
}

func (s *capabilityService) Catalog(ctx context.Context) *dto.CapabilitiesResponse {
	res := &dto.CapabilitiesResponse{
		Capabilities: make([]dto.CapabilityResponse, 0, len(constant.Capabilities)),
	}
	for _, capability := range constant.Capabilities {
		points := make([]string, len(capability.Points))
		copy(points, capability.Points)
		res.Capabilities = append(res.Capabilities, dto.CapabilityResponse{
			Name:   capability.Name,
			Points: points,
		})
	}
	return res
}

func (s *capabilityService) SelectCapabilities(ctx context.Context, req *dto.SelectCapabilitiesRequest) (*dto.SelectCapabilitiesResponse, error) {
	capabilities, err := s.provider.SelectCapabilities(ctx, req.CaseDescription)
	if err != nil {
		return nil, serverutils.NewRemoteCallError("SELECTION_FAILED", "failed to select capabilities", err)
	}
	return &dto.SelectCapabilitiesResponse{Capabilities: capabilities}, nil
}

func (s *capabilityService) SelectExperienceGroups(ctx context.Context, req *dto.SelectExperienceGroupsRequest) (*dto.SelectExperienceGroupsResponse, error) {
	groups, err := s.provider.SelectExperienceGroups(ctx, req.CaseDescription)
	if err != nil {
		return nil, serverutils.NewRemoteCallError("SELECTION_FAILED", "failed to select experience groups", err)
	}
	return &dto.SelectExperienceGroupsResponse{ExperienceGroups: groups}, nil
}
