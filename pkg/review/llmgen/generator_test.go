package llmgen

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"caseforge-be/pkg/llm"
	"caseforge-be/pkg/review"
)

// scriptedProvider returns canned outputs in order.
type scriptedProvider struct {
	outputs []string
	err     error
	calls   int
	prompts []string
}

func (s *scriptedProvider) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	s.prompts = append(s.prompts, prompt)
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	out := s.outputs[0]
	if len(s.outputs) > 1 {
		s.outputs = s.outputs[1:]
	}
	return out, nil
}

func (s *scriptedProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return s.Generate(ctx, history[len(history)-1].Content, opts...)
}

const validReviewJSON = `{
  "case_title": "Atrial fibrillation found on review",
  "sections": {
    "brief_description": "Patient presented with palpitations.",
    "capabilities": {
      "Communication and consultation skills": "I explored the patient's concerns about their heart."
    },
    "reflection": "I was slow to arrange the ECG.",
    "learning_needs": "Revise AF anticoagulation scoring."
  }
}`

func TestGenerateReviewParsesDocument(t *testing.T) {
	p := &scriptedProvider{outputs: []string{"```json\n" + validReviewJSON + "\n```"}}
	g := NewGenerator(p)

	doc, err := g.GenerateReview(context.Background(), "Patient presented with palpitations and was found to be in atrial fibrillation.",
		[]string{"Communication and consultation skills"})
	if err != nil {
		t.Fatalf("GenerateReview: %v", err)
	}

	if doc.Title == "" {
		t.Error("empty title")
	}
	if body, ok := doc.Capabilities().Entry("Communication and consultation skills"); !ok || body == "" {
		t.Error("capability entry missing or empty")
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("document invalid: %v", err)
	}
	if doc.RawContent == "" {
		t.Error("raw content not rendered")
	}
	if p.calls != 1 {
		t.Errorf("provider calls = %d, want 1", p.calls)
	}
}

func TestGenerateReviewRejectsMissingCapability(t *testing.T) {
	p := &scriptedProvider{outputs: []string{validReviewJSON}}
	g := NewGenerator(p)

	// Request a second capability the model did not return.
	_, err := g.GenerateReview(context.Background(), "case", []string{
		"Communication and consultation skills",
		"Making a diagnosis",
	})
	if !errors.Is(err, review.ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestGenerateReviewRejectsGarbage(t *testing.T) {
	for _, out := range []string{"not json at all", `{"case_title": ""}`, `{"sections": {}}`} {
		p := &scriptedProvider{outputs: []string{out}}
		g := NewGenerator(p)
		_, err := g.GenerateReview(context.Background(), "case", []string{"Making a diagnosis"})
		if !errors.Is(err, review.ErrMalformedResponse) {
			t.Errorf("output %q: error = %v, want ErrMalformedResponse", out, err)
		}
	}
}

func TestImproveSectionParsesContent(t *testing.T) {
	p := &scriptedProvider{outputs: []string{`{"improved_content": "Shorter reflection text."}`}}
	g := NewGenerator(p)

	got, err := g.ImproveSection(context.Background(),
		review.TargetKey{Section: review.SectionReflection}, "long reflection", "make this more concise")
	if err != nil {
		t.Fatalf("ImproveSection: %v", err)
	}
	if got != "Shorter reflection text." {
		t.Errorf("improved content = %q", got)
	}
}

func TestImproveSectionEmptyContentIsMalformed(t *testing.T) {
	p := &scriptedProvider{outputs: []string{`{"improved_content": "  "}`}}
	g := NewGenerator(p)
	_, err := g.ImproveSection(context.Background(), review.TargetKey{Section: review.SectionReflection}, "text", "x")
	if !errors.Is(err, review.ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestSelectCapabilitiesFiltersUnknownNames(t *testing.T) {
	p := &scriptedProvider{outputs: []string{`{"capabilities": ["Made-up capability", "Making a diagnosis", "Clinical management", "Communication and consultation skills", "Community orientation"]}`}}
	g := NewGenerator(p)

	got, err := g.SelectCapabilities(context.Background(), "case")
	if err != nil {
		t.Fatalf("SelectCapabilities: %v", err)
	}
	want := []string{"Making a diagnosis", "Clinical management", "Communication and consultation skills"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("selected = %v, want %v (unknown dropped, capped at three)", got, want)
	}
}

func TestSelectCapabilitiesAllUnknownFails(t *testing.T) {
	p := &scriptedProvider{outputs: []string{`{"capabilities": ["Nope", "Also nope"]}`}}
	g := NewGenerator(p)
	if _, err := g.SelectCapabilities(context.Background(), "case"); !errors.Is(err, review.ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestSelectExperienceGroupsKeepsOrder(t *testing.T) {
	p := &scriptedProvider{outputs: []string{`{"experience_groups": ["Urgent and unscheduled care", "Invented group", "Older adults including frailty and end of life care"]}`}}
	g := NewGenerator(p)

	got, err := g.SelectExperienceGroups(context.Background(), "case")
	if err != nil {
		t.Fatalf("SelectExperienceGroups: %v", err)
	}
	want := review.ExperienceGroups{
		"Urgent and unscheduled care",
		"Older adults including frailty and end of life care",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("groups = %v, want %v", got, want)
	}
}

func TestTransportErrorsPropagate(t *testing.T) {
	p := &scriptedProvider{err: errors.New("connection refused")}
	g := NewGenerator(p)
	if _, err := g.GenerateReview(context.Background(), "case", []string{"Making a diagnosis"}); err == nil {
		t.Fatal("want transport error")
	}
	if _, err := g.SelectExperienceGroups(context.Background(), "case"); err == nil {
		t.Fatal("want transport error")
	}
}
