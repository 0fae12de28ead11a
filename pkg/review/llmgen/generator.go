package llmgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"caseforge-be/internal/constant"
	"caseforge-be/pkg/llm"
	"caseforge-be/pkg/review"
)

// Generator implements review.Provider on top of a provider-agnostic LLM
// backend. It owns prompting and response parsing; the review core never sees
// raw model output.
type Generator struct {
	provider llm.LLMProvider
}

var _ review.Provider = (*Generator)(nil)

func NewGenerator(provider llm.LLMProvider) *Generator {
	return &Generator{provider: provider}
}

// reviewPayload is the JSON contract the generation prompts demand.
// Capabilities decode through review.CapabilityMapSection to keep key order.
type reviewPayload struct {
	CaseTitle string `json:"case_title"`
	Sections  struct {
		BriefDescription string                      `json:"brief_description"`
		Capabilities     review.CapabilityMapSection `json:"capabilities"`
		Reflection       string                      `json:"reflection"`
		LearningNeeds    string                      `json:"learning_needs"`
	} `json:"sections"`
}

func (g *Generator) GenerateReview(ctx context.Context, caseDescription string, capabilities []string) (review.Document, error) {
	prompt := fmt.Sprintf(constant.GenerateReviewPrompt, caseDescription, bulletList(capabilities))
	out, err := g.provider.Generate(ctx, prompt, llm.WithTemperature(0.4))
	if err != nil {
		return review.Document{}, fmt.Errorf("generate review: %w", err)
	}
	return g.parseReview(out, capabilities)
}

func (g *Generator) ImproveReview(ctx context.Context, rawContent, instructions string, capabilities []string) (review.Document, error) {
	prompt := fmt.Sprintf(constant.ImproveReviewPrompt, rawContent, bulletList(capabilities), instructions)
	out, err := g.provider.Generate(ctx, prompt, llm.WithTemperature(0.4))
	if err != nil {
		return review.Document{}, fmt.Errorf("improve review: %w", err)
	}
	return g.parseReview(out, capabilities)
}

func (g *Generator) ImproveSection(ctx context.Context, target review.TargetKey, sectionText, instructions string) (string, error) {
	label := string(target.Section)
	if target.Capability != "" {
		label = fmt.Sprintf("capability %q", target.Capability)
	}
	prompt := fmt.Sprintf(constant.ImproveSectionPrompt, label, sectionText, instructions)
	out, err := g.provider.Generate(ctx, prompt, llm.WithTemperature(0.4))
	if err != nil {
		return "", fmt.Errorf("improve section %s: %w", target, err)
	}

	payload, err := extractJSON(out)
	if err != nil {
		return "", err
	}
	var parsed struct {
		ImprovedContent string `json:"improved_content"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", review.ErrMalformedResponse, err)
	}
	if strings.TrimSpace(parsed.ImprovedContent) == "" {
		return "", fmt.Errorf("%w: empty improved_content", review.ErrMalformedResponse)
	}
	return parsed.ImprovedContent, nil
}

func (g *Generator) SelectCapabilities(ctx context.Context, caseDescription string) ([]string, error) {
	catalog := make([]string, len(constant.Capabilities))
	for i, c := range constant.Capabilities {
		catalog[i] = c.Name
	}
	prompt := fmt.Sprintf(constant.SelectCapabilitiesPrompt, caseDescription, bulletList(catalog))
	out, err := g.provider.Generate(ctx, prompt, llm.WithTemperature(0.1))
	if err != nil {
		return nil, fmt.Errorf("select capabilities: %w", err)
	}

	payload, err := extractJSON(out)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Capabilities []string `json:"capabilities"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", review.ErrMalformedResponse, err)
	}

	// Hallucinated names are dropped rather than failing the whole call.
	selected := make([]string, 0, constant.MaxSelectedCapabilities)
	for _, name := range parsed.Capabilities {
		if constant.IsKnownCapability(name) {
			selected = append(selected, name)
		}
		if len(selected) == constant.MaxSelectedCapabilities {
			break
		}
	}
	if len(selected) < constant.MinSelectedCapabilities {
		return nil, fmt.Errorf("%w: no known capability selected", review.ErrMalformedResponse)
	}
	return selected, nil
}

func (g *Generator) SelectExperienceGroups(ctx context.Context, caseDescription string) (review.ExperienceGroups, error) {
	prompt := fmt.Sprintf(constant.SelectExperienceGroupsPrompt, caseDescription, bulletList(constant.ExperienceGroups))
	out, err := g.provider.Generate(ctx, prompt, llm.WithTemperature(0.1))
	if err != nil {
		return nil, fmt.Errorf("select experience groups: %w", err)
	}

	payload, err := extractJSON(out)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		ExperienceGroups []string `json:"experience_groups"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", review.ErrMalformedResponse, err)
	}

	groups := make(review.ExperienceGroups, 0, len(parsed.ExperienceGroups))
	for _, label := range parsed.ExperienceGroups {
		if constant.IsKnownExperienceGroup(label) {
			groups = append(groups, label)
		}
	}
	return groups, nil
}

// parseReview validates a generation/improvement payload and builds the
// document. The flattened raw content is rendered here, once: the core treats
// it as opaque input for later whole-document improvement and never
// re-derives it from the sections.
func (g *Generator) parseReview(out string, capabilities []string) (review.Document, error) {
	payload, err := extractJSON(out)
	if err != nil {
		return review.Document{}, err
	}
	var parsed reviewPayload
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return review.Document{}, fmt.Errorf("%w: %v", review.ErrMalformedResponse, err)
	}

	// Capability keys must equal the requested set, in requested order. The
	// model deciding to add, drop or rename entries is a malformed response.
	entries := make([]review.CapabilityEntry, 0, len(capabilities))
	for _, name := range capabilities {
		body, ok := parsed.Sections.Capabilities.Entry(name)
		if !ok || strings.TrimSpace(body) == "" {
			return review.Document{}, fmt.Errorf("%w: missing capability entry %q", review.ErrMalformedResponse, name)
		}
		entries = append(entries, review.CapabilityEntry{Name: name, Body: body})
	}

	sections := map[review.SectionKey]review.SectionContent{
		review.SectionBriefDescription: review.TextSection{Body: parsed.Sections.BriefDescription},
		review.SectionCapabilities:     review.CapabilityMapSection{Entries: entries},
		review.SectionReflection:       review.TextSection{Body: parsed.Sections.Reflection},
		review.SectionLearningNeeds:    review.TextSection{Body: parsed.Sections.LearningNeeds},
	}

	title := strings.TrimSpace(parsed.CaseTitle)
	if title == "" {
		return review.Document{}, fmt.Errorf("%w: empty case_title", review.ErrMalformedResponse)
	}

	return review.NewDocument(title, sections, flatten(title, entries, parsed))
}

// flatten renders the whole review as plain text, the shape fed back into
// whole-document improvement.
func flatten(title string, entries []review.CapabilityEntry, parsed reviewPayload) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\nBrief description\n")
	b.WriteString(parsed.Sections.BriefDescription)
	b.WriteString("\n\nCapabilities\n")
	for _, e := range entries {
		b.WriteString(e.Name)
		b.WriteString("\n")
		b.WriteString(e.Body)
		b.WriteString("\n\n")
	}
	b.WriteString("Reflection\n")
	b.WriteString(parsed.Sections.Reflection)
	b.WriteString("\n\nLearning needs\n")
	b.WriteString(parsed.Sections.LearningNeeds)
	return b.String()
}
