package mapper

import (
	"caseforge-be/internal/dto"
	"caseforge-be/pkg/review"
)

// ToCaseReviewResponse flattens the domain document plus its experience
// groups into the API shape.
func ToCaseReviewResponse(doc review.Document, groups review.ExperienceGroups) *dto.CaseReviewResponse {
	res := &dto.CaseReviewResponse{
		CaseTitle:        doc.Title,
		ReviewContent:    doc.RawContent,
		ExperienceGroups: make([]string, len(groups)),
	}
	copy(res.ExperienceGroups, groups)
	res.Sections.BriefDescription, _ = doc.Text(review.SectionBriefDescription)
	res.Sections.Reflection, _ = doc.Text(review.SectionReflection)
	res.Sections.LearningNeeds, _ = doc.Text(review.SectionLearningNeeds)
	res.Sections.Capabilities = doc.Capabilities()
	return res
}

func ToEditSessionResponse(session *review.EditSession) dto.EditSessionResponse {
	return dto.EditSessionResponse{
		Target:       session.Target.String(),
		State:        string(session.State),
		Instructions: session.Instructions,
		LastError:    session.LastError,
	}
}
