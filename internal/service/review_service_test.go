package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"caseforge-be/internal/dto"
	"caseforge-be/internal/entity"
	"caseforge-be/internal/pkg/serverutils"
	"caseforge-be/internal/repository/memory"
	"caseforge-be/pkg/events"
	"caseforge-be/pkg/review"

	"github.com/google/uuid"
)

// fakeProvider counts remote calls and serves canned documents so tests can
// assert exactly how many network round trips an operation costs.
type fakeProvider struct {
	mu                  sync.Mutex
	generateCalls       int
	improveCalls        int
	improveSectionCalls int
	selectCapCalls      int
	classifyCalls       int

	err error

	// sectionGate, when set, blocks ImproveSection until closed;
	// sectionArrived receives one tick per in-flight call. generateGate and
	// generateArrived do the same for GenerateReview.
	sectionGate     chan struct{}
	sectionArrived  chan struct{}
	generateGate    chan struct{}
	generateArrived chan struct{}
}

func (f *fakeProvider) GenerateReview(ctx context.Context, caseDescription string, capabilities []string) (review.Document, error) {
	f.mu.Lock()
	f.generateCalls++
	arrived := f.generateArrived
	gate := f.generateGate
	f.mu.Unlock()
	if arrived != nil {
		arrived <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if f.err != nil {
		return review.Document{}, f.err
	}
	return makeDocument(capabilities...), nil
}

func (f *fakeProvider) ImproveReview(ctx context.Context, rawContent, instructions string, capabilities []string) (review.Document, error) {
	f.mu.Lock()
	f.improveCalls++
	f.mu.Unlock()
	if f.err != nil {
		return review.Document{}, f.err
	}
	doc := makeDocument(capabilities...)
	doc.Title = "Improved " + doc.Title
	doc.RawContent = instructions
	return doc, nil
}

func (f *fakeProvider) ImproveSection(ctx context.Context, target review.TargetKey, sectionText, instructions string) (string, error) {
	f.mu.Lock()
	f.improveSectionCalls++
	arrived := f.sectionArrived
	gate := f.sectionGate
	f.mu.Unlock()
	if arrived != nil {
		arrived <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if f.err != nil {
		return "", f.err
	}
	return "improved " + target.String(), nil
}

func (f *fakeProvider) SelectCapabilities(ctx context.Context, caseDescription string) ([]string, error) {
	f.mu.Lock()
	f.selectCapCalls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []string{"Making a diagnosis"}, nil
}

func (f *fakeProvider) SelectExperienceGroups(ctx context.Context, caseDescription string) (review.ExperienceGroups, error) {
	f.mu.Lock()
	f.classifyCalls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return review.ExperienceGroups{"Acute illness"}, nil
}

func (f *fakeProvider) calls() (generate, improve, improveSection, selectCap, classify int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generateCalls, f.improveCalls, f.improveSectionCalls, f.selectCapCalls, f.classifyCalls
}

// fakeSnapshots is an in-memory stand-in for the GORM snapshot repository.
// Saves are announced on saved so tests can wait out the async persist.
type fakeSnapshots struct {
	mu    sync.Mutex
	slots map[string][]byte
	saved chan string

	// holdSave, when set, blocks matching saves until release is closed.
	// Configure before concurrent use.
	holdSave func(slot string, payload []byte) bool
	release  chan struct{}
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{
		slots: make(map[string][]byte),
		saved: make(chan string, 32),
	}
}

func (f *fakeSnapshots) key(sessionId uuid.UUID, slot string) string {
	return sessionId.String() + "/" + slot
}

func (f *fakeSnapshots) Save(ctx context.Context, sessionId uuid.UUID, slot string, payload []byte) error {
	if f.holdSave != nil && f.holdSave(slot, payload) {
		<-f.release
	}
	f.mu.Lock()
	f.slots[f.key(sessionId, slot)] = append([]byte(nil), payload...)
	f.mu.Unlock()
	f.saved <- slot
	return nil
}

func (f *fakeSnapshots) Load(ctx context.Context, sessionId uuid.UUID, slot string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payload, ok := f.slots[f.key(sessionId, slot)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), payload...), true, nil
}

func (f *fakeSnapshots) Clear(ctx context.Context, sessionId uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.slots {
		if strings.HasPrefix(key, sessionId.String()+"/") {
			delete(f.slots, key)
		}
	}
	return nil
}

func (f *fakeSnapshots) waitSaves(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.saved:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for snapshot save %d of %d", i+1, n)
		}
	}
}

// waitQuiet drains save announcements until none arrive for the given window,
// so tests can assert on the store after every pending writer settled.
func (f *fakeSnapshots) waitQuiet(t *testing.T, window time.Duration) {
	t.Helper()
	for {
		select {
		case <-f.saved:
		case <-time.After(window):
			return
		}
	}
}

func (f *fakeSnapshots) payload(sessionId uuid.UUID, slot string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.slots[f.key(sessionId, slot)]...)
}

func (f *fakeSnapshots) seed(sessionId uuid.UUID, slot string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[f.key(sessionId, slot)] = append([]byte(nil), payload...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	byType map[string]int
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{byType: make(map[string]int)}
}

func (r *recordingPublisher) Publish(ctx context.Context, event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[event.EventType()]++
}

func (r *recordingPublisher) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byType[eventType]
}

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func makeDocument(capabilities ...string) review.Document {
	entries := make([]review.CapabilityEntry, 0, len(capabilities))
	for _, name := range capabilities {
		entries = append(entries, review.CapabilityEntry{Name: name, Body: "Evidence for " + name})
	}
	doc, err := review.NewDocument("Palpitations review", map[review.SectionKey]review.SectionContent{
		review.SectionBriefDescription: review.TextSection{Body: "A patient presented with palpitations."},
		review.SectionCapabilities:     review.CapabilityMapSection{Entries: entries},
		review.SectionReflection:       review.TextSection{Body: "I reflected on the consultation."},
		review.SectionLearningNeeds:    review.TextSection{Body: "Revise arrhythmia guidance."},
	}, "raw review content")
	if err != nil {
		panic(err)
	}
	return doc
}

const testCaseDescription = "A 45 year old presented with palpitations after starting a salbutamol inhaler."

func newTestReviewService(provider *fakeProvider, snaps *fakeSnapshots, pub *recordingPublisher) IReviewService {
	return NewReviewService(memory.NewCaseStateRepository(), provider, snaps, pub, nopLogger{})
}

func appStatus(t *testing.T, err error) int {
	t.Helper()
	var appErr *serverutils.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	return appErr.Status
}

func generateForTest(t *testing.T, svc IReviewService, sessionId uuid.UUID) *dto.CaseReviewResponse {
	t.Helper()
	res, err := svc.Generate(context.Background(), sessionId, &dto.GenerateReviewRequest{
		CaseDescription:      testCaseDescription,
		SelectedCapabilities: []string{"Data gathering and interpretation", "Making a diagnosis"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return res
}

func TestGenerateCostsOneGenerateAndOneClassifyCall(t *testing.T) {
	provider := &fakeProvider{}
	snaps := newFakeSnapshots()
	pub := newRecordingPublisher()
	svc := newTestReviewService(provider, snaps, pub)
	sessionId := uuid.New()

	res := generateForTest(t, svc, sessionId)

	generate, improve, improveSection, selectCap, classify := provider.calls()
	if generate != 1 || classify != 1 {
		t.Fatalf("expected 1 generate + 1 classify, got generate=%d classify=%d", generate, classify)
	}
	if improve != 0 || improveSection != 0 || selectCap != 0 {
		t.Fatalf("unexpected extra remote calls: improve=%d improveSection=%d selectCap=%d", improve, improveSection, selectCap)
	}
	if res.CaseTitle != "Palpitations review" {
		t.Errorf("CaseTitle = %q", res.CaseTitle)
	}
	if got := res.Sections.Capabilities.Names(); len(got) != 2 || got[0] != "Data gathering and interpretation" {
		t.Errorf("capabilities = %v", got)
	}
	if len(res.ExperienceGroups) != 1 || res.ExperienceGroups[0] != "Acute illness" {
		t.Errorf("experience groups = %v", res.ExperienceGroups)
	}
	if pub.count(events.TypeReviewGenerated) != 1 {
		t.Errorf("expected one review_generated event, got %d", pub.count(events.TypeReviewGenerated))
	}

	snaps.waitSaves(t, 2)
}

func TestGenerateShortDescriptionRejectedLocally(t *testing.T) {
	tests := []struct {
		name            string
		caseDescription string
	}{
		{name: "ascii below minimum", caseDescription: "too short"},
		{name: "padding does not count", caseDescription: "   too short   "},
		// Nine characters, eighteen bytes: the minimum is in characters.
		{name: "multibyte below minimum", caseDescription: "ééééééééé"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{}
			svc := newTestReviewService(provider, newFakeSnapshots(), newRecordingPublisher())

			_, err := svc.Generate(context.Background(), uuid.New(), &dto.GenerateReviewRequest{
				CaseDescription:      tt.caseDescription,
				SelectedCapabilities: []string{"Making a diagnosis"},
			})
			if status := appStatus(t, err); status != 422 {
				t.Fatalf("status = %d, want 422", status)
			}

			generate, improve, improveSection, selectCap, classify := provider.calls()
			if generate+improve+improveSection+selectCap+classify != 0 {
				t.Fatalf("short description must not reach the provider, got %d calls",
					generate+improve+improveSection+selectCap+classify)
			}
		})
	}
}

func TestGenerateCapabilitySelectionValidation(t *testing.T) {
	tests := []struct {
		name string
		req  dto.GenerateReviewRequest
	}{
		{
			name: "no capabilities and no auto select",
			req:  dto.GenerateReviewRequest{CaseDescription: testCaseDescription},
		},
		{
			name: "too many capabilities",
			req: dto.GenerateReviewRequest{
				CaseDescription: testCaseDescription,
				SelectedCapabilities: []string{
					"Fitness to practise", "Making a diagnosis",
					"Data gathering and interpretation", "Community orientation",
				},
			},
		},
		{
			name: "unknown capability",
			req: dto.GenerateReviewRequest{
				CaseDescription:      testCaseDescription,
				SelectedCapabilities: []string{"Time travel"},
			},
		},
		{
			name: "duplicate capability",
			req: dto.GenerateReviewRequest{
				CaseDescription:      testCaseDescription,
				SelectedCapabilities: []string{"Making a diagnosis", "Making a diagnosis"},
			},
		},
		{
			name: "manual and auto select together",
			req: dto.GenerateReviewRequest{
				CaseDescription:        testCaseDescription,
				SelectedCapabilities:   []string{"Making a diagnosis"},
				AutoSelectCapabilities: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{}
			svc := newTestReviewService(provider, newFakeSnapshots(), newRecordingPublisher())

			_, err := svc.Generate(context.Background(), uuid.New(), &tt.req)
			if status := appStatus(t, err); status != 422 {
				t.Fatalf("status = %d, want 422", status)
			}
			generate, _, _, _, classify := provider.calls()
			if generate != 0 || classify != 0 {
				t.Fatalf("validation failure must not reach the provider")
			}
		})
	}
}

func TestGenerateAutoSelectAsksProvider(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestReviewService(provider, newFakeSnapshots(), newRecordingPublisher())

	res, err := svc.Generate(context.Background(), uuid.New(), &dto.GenerateReviewRequest{
		CaseDescription:        testCaseDescription,
		AutoSelectCapabilities: true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	_, _, _, selectCap, _ := provider.calls()
	if selectCap != 1 {
		t.Fatalf("selectCap calls = %d, want 1", selectCap)
	}
	if got := res.Sections.Capabilities.Names(); len(got) != 1 || got[0] != "Making a diagnosis" {
		t.Errorf("capabilities = %v", got)
	}
}

func TestGenerateRemoteFailureLeavesNoDocument(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("model unavailable")}
	pub := newRecordingPublisher()
	svc := newTestReviewService(provider, newFakeSnapshots(), pub)
	sessionId := uuid.New()

	_, err := svc.Generate(context.Background(), sessionId, &dto.GenerateReviewRequest{
		CaseDescription:      testCaseDescription,
		SelectedCapabilities: []string{"Making a diagnosis"},
	})
	if status := appStatus(t, err); status != 502 {
		t.Fatalf("status = %d, want 502", status)
	}
	if pub.count(events.TypeErrorOccurred) != 1 {
		t.Errorf("expected one error_occurred event")
	}

	if _, err := svc.Current(context.Background(), sessionId); err == nil {
		t.Fatal("expected no document after failed generation")
	}
}

func TestSectionImproveRejectedWhileGenerating(t *testing.T) {
	provider := &fakeProvider{}
	snaps := newFakeSnapshots()
	svc := newTestReviewService(provider, snaps, newRecordingPublisher())
	sessionId := uuid.New()

	before := generateForTest(t, svc, sessionId)
	snaps.waitSaves(t, 2)

	provider.mu.Lock()
	provider.generateGate = make(chan struct{})
	provider.generateArrived = make(chan struct{}, 1)
	provider.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Generate(context.Background(), sessionId, &dto.GenerateReviewRequest{
			CaseDescription:      testCaseDescription,
			SelectedCapabilities: []string{"Community orientation"},
		})
		done <- err
	}()

	select {
	case <-provider.generateArrived:
	case <-time.After(2 * time.Second):
		t.Fatal("regeneration never reached the provider")
	}

	// A section edit accepted now would settle against the document the
	// regeneration is about to replace.
	_, err := svc.ImproveSection(context.Background(), sessionId, &dto.ImproveSectionRequest{
		SectionType:       "reflection",
		ImprovementPrompt: "Tighten the reflection.",
	})
	if status := appStatus(t, err); status != 409 {
		t.Fatalf("status = %d, want 409", status)
	}

	state, err := svc.State(context.Background(), sessionId)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if !state.AnyRequesting {
		t.Error("any_requesting should be true while a generation is in flight")
	}

	close(provider.generateGate)
	if err := <-done; err != nil {
		t.Fatalf("regeneration failed: %v", err)
	}

	final, err := svc.Current(context.Background(), sessionId)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if got := final.Sections.Capabilities.Names(); len(got) != 1 || got[0] != "Community orientation" {
		t.Errorf("capabilities = %v, want the regenerated selection", got)
	}
	if final.Sections.Reflection != before.Sections.Reflection {
		t.Errorf("reflection = %q, want the freshly generated text", final.Sections.Reflection)
	}
	_, _, improveSection, _, _ := provider.calls()
	if improveSection != 0 {
		t.Fatalf("improveSection calls = %d, want 0", improveSection)
	}
}

func TestCurrentTreatsHollowSnapshotAsAbsent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "truncated json", payload: `{"case_title": "Palpit`},
		{name: "valid json missing every section", payload: `{}`},
		{
			name:    "empty capability map",
			payload: `{"case_title":"X","sections":{"brief_description":"a","capabilities":{},"reflection":"b","learning_needs":"c"},"review_content":"raw"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snaps := newFakeSnapshots()
			svc := newTestReviewService(&fakeProvider{}, snaps, newRecordingPublisher())
			sessionId := uuid.New()
			snaps.seed(sessionId, entity.SnapshotSlotDocument, []byte(tt.payload))

			_, err := svc.Current(context.Background(), sessionId)
			if status := appStatus(t, err); status != 404 {
				t.Fatalf("status = %d, want 404", status)
			}
		})
	}
}

func TestBurstImprovementsPersistLatestSnapshot(t *testing.T) {
	provider := &fakeProvider{}
	snaps := newFakeSnapshots()
	svc := newTestReviewService(provider, snaps, newRecordingPublisher())
	sessionId := uuid.New()

	generateForTest(t, svc, sessionId)
	snaps.waitSaves(t, 2)

	// Delay the first improvement's document save so the second one could
	// overtake it; the store must still end up on the newest revision.
	snaps.release = make(chan struct{})
	snaps.holdSave = func(slot string, payload []byte) bool {
		return strings.Contains(string(payload), `"review_content":"First pass."`)
	}

	if _, err := svc.ImproveWhole(context.Background(), sessionId, &dto.ImproveReviewRequest{
		ImprovementPrompt: "First pass.",
	}); err != nil {
		t.Fatalf("first ImproveWhole: %v", err)
	}
	if _, err := svc.ImproveWhole(context.Background(), sessionId, &dto.ImproveReviewRequest{
		ImprovementPrompt: "Second pass.",
	}); err != nil {
		t.Fatalf("second ImproveWhole: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	close(snaps.release)
	snaps.waitQuiet(t, 300*time.Millisecond)

	stored := string(snaps.payload(sessionId, entity.SnapshotSlotDocument))
	if !strings.Contains(stored, `"review_content":"Second pass."`) {
		t.Fatalf("stored document is stale: %s", stored)
	}
}

func TestImproveSectionReplacesOnlyTarget(t *testing.T) {
	provider := &fakeProvider{}
	snaps := newFakeSnapshots()
	svc := newTestReviewService(provider, snaps, newRecordingPublisher())
	sessionId := uuid.New()

	before := generateForTest(t, svc, sessionId)
	snaps.waitSaves(t, 2)

	res, err := svc.ImproveSection(context.Background(), sessionId, &dto.ImproveSectionRequest{
		SectionType:       "reflection",
		ImprovementPrompt: "More detail on the medication change.",
	})
	if err != nil {
		t.Fatalf("ImproveSection: %v", err)
	}
	if res.ImprovedContent != "improved reflection" {
		t.Errorf("ImprovedContent = %q", res.ImprovedContent)
	}
	if res.Review.Sections.Reflection != "improved reflection" {
		t.Errorf("reflection not replaced: %q", res.Review.Sections.Reflection)
	}
	if res.Review.Sections.BriefDescription != before.Sections.BriefDescription {
		t.Errorf("brief description changed")
	}
	if res.Review.Sections.LearningNeeds != before.Sections.LearningNeeds {
		t.Errorf("learning needs changed")
	}
	if got, want := res.Review.Sections.Capabilities.Names(), before.Sections.Capabilities.Names(); len(got) != len(want) {
		t.Errorf("capability set changed: %v", got)
	}

	state, err := svc.State(context.Background(), sessionId)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.AnyRequesting {
		t.Error("any_requesting should be false after completion")
	}
	for _, session := range state.Sessions {
		if session.Target == "reflection" && session.State != string(review.StateIdle) {
			t.Errorf("reflection session state = %s, want idle", session.State)
		}
	}
}

func TestImproveSectionEmptyPromptIsLocalNoop(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestReviewService(provider, newFakeSnapshots(), newRecordingPublisher())
	sessionId := uuid.New()

	generateForTest(t, svc, sessionId)

	_, err := svc.ImproveSection(context.Background(), sessionId, &dto.ImproveSectionRequest{
		SectionType:       "reflection",
		ImprovementPrompt: "   ",
	})
	if status := appStatus(t, err); status != 422 {
		t.Fatalf("status = %d, want 422", status)
	}
	_, _, improveSection, _, _ := provider.calls()
	if improveSection != 0 {
		t.Fatalf("empty prompt must not reach the provider")
	}
}

func TestImproveSectionFailureKeepsInstructions(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("timeout")}
	svc := newTestReviewService(provider, newFakeSnapshots(), newRecordingPublisher())
	sessionId := uuid.New()

	provider.err = nil
	generateForTest(t, svc, sessionId)
	provider.err = fmt.Errorf("timeout")

	_, err := svc.ImproveSection(context.Background(), sessionId, &dto.ImproveSectionRequest{
		SectionType:       "learning_needs",
		ImprovementPrompt: "Add a concrete audit plan.",
	})
	if status := appStatus(t, err); status != 502 {
		t.Fatalf("status = %d, want 502", status)
	}

	state, err := svc.State(context.Background(), sessionId)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	var found bool
	for _, session := range state.Sessions {
		if session.Target == "learning_needs" {
			found = true
			if session.State != string(review.StateComposing) {
				t.Errorf("state = %s, want composing", session.State)
			}
			if session.Instructions != "Add a concrete audit plan." {
				t.Errorf("instructions lost: %q", session.Instructions)
			}
			if session.LastError == "" {
				t.Error("last_error should be set")
			}
		}
	}
	if !found {
		t.Fatal("learning_needs session missing from state")
	}
}

func TestConcurrentSectionImprovesBothLand(t *testing.T) {
	provider := &fakeProvider{
		sectionGate:    make(chan struct{}),
		sectionArrived: make(chan struct{}, 2),
	}
	svc := newTestReviewService(provider, newFakeSnapshots(), newRecordingPublisher())
	sessionId := uuid.New()

	generateForTest(t, svc, sessionId)

	var wg sync.WaitGroup
	results := make([]*dto.ImproveSectionResponse, 2)
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], errs[0] = svc.ImproveSection(context.Background(), sessionId, &dto.ImproveSectionRequest{
			SectionType:       "capability",
			CapabilityName:    "Making a diagnosis",
			ImprovementPrompt: "Sharpen the decision evidence.",
		})
	}()
	go func() {
		defer wg.Done()
		results[1], errs[1] = svc.ImproveSection(context.Background(), sessionId, &dto.ImproveSectionRequest{
			SectionType:       "learning_needs",
			ImprovementPrompt: "Name one course.",
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-provider.sectionArrived:
		case <-time.After(2 * time.Second):
			t.Fatal("both improvements should be in flight concurrently")
		}
	}

	state, err := svc.State(context.Background(), sessionId)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if !state.AnyRequesting {
		t.Error("any_requesting should be true while improvements are in flight")
	}

	close(provider.sectionGate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("improvement %d failed: %v", i, err)
		}
	}

	final, err := svc.Current(context.Background(), sessionId)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if body, _ := final.Sections.Capabilities.Entry("Making a diagnosis"); body != "improved capabilities.Making a diagnosis" {
		t.Errorf("capability entry = %q", body)
	}
	if final.Sections.LearningNeeds != "improved learning_needs" {
		t.Errorf("learning needs = %q", final.Sections.LearningNeeds)
	}
}

func TestDuplicateImproveWhileRequestingRejected(t *testing.T) {
	provider := &fakeProvider{
		sectionGate:    make(chan struct{}),
		sectionArrived: make(chan struct{}, 2),
	}
	svc := newTestReviewService(provider, newFakeSnapshots(), newRecordingPublisher())
	sessionId := uuid.New()

	generateForTest(t, svc, sessionId)

	done := make(chan error, 1)
	go func() {
		_, err := svc.ImproveSection(context.Background(), sessionId, &dto.ImproveSectionRequest{
			SectionType:       "reflection",
			ImprovementPrompt: "First attempt.",
		})
		done <- err
	}()

	select {
	case <-provider.sectionArrived:
	case <-time.After(2 * time.Second):
		t.Fatal("first improvement never reached the provider")
	}

	// Begin is a no-op while the request is outstanding.
	if _, err := svc.BeginSectionEdit(context.Background(), sessionId, &dto.SectionTargetRequest{SectionType: "reflection"}); err != nil {
		t.Fatalf("BeginSectionEdit: %v", err)
	}

	_, err := svc.ImproveSection(context.Background(), sessionId, &dto.ImproveSectionRequest{
		SectionType:       "reflection",
		ImprovementPrompt: "Second attempt.",
	})
	if status := appStatus(t, err); status != 409 {
		t.Fatalf("status = %d, want 409", status)
	}

	close(provider.sectionGate)
	if err := <-done; err != nil {
		t.Fatalf("first improvement failed: %v", err)
	}

	_, _, improveSection, _, _ := provider.calls()
	if improveSection != 1 {
		t.Fatalf("improveSection calls = %d, want 1", improveSection)
	}
}

func TestCancelDiscardsComposer(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestReviewService(provider, newFakeSnapshots(), newRecordingPublisher())
	sessionId := uuid.New()

	generateForTest(t, svc, sessionId)

	if _, err := svc.BeginSectionEdit(context.Background(), sessionId, &dto.SectionTargetRequest{SectionType: "brief_description"}); err != nil {
		t.Fatalf("BeginSectionEdit: %v", err)
	}
	state, err := svc.CancelSectionEdit(context.Background(), sessionId, &dto.SectionTargetRequest{SectionType: "brief_description"})
	if err != nil {
		t.Fatalf("CancelSectionEdit: %v", err)
	}
	for _, session := range state.Sessions {
		if session.Target == "brief_description" && session.State != string(review.StateIdle) {
			t.Errorf("state = %s, want idle", session.State)
		}
	}
	_, _, improveSection, _, _ := provider.calls()
	if improveSection != 0 {
		t.Fatalf("cancel must not reach the provider")
	}
}

func TestImproveWholeReplacesDocument(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestReviewService(provider, newFakeSnapshots(), newRecordingPublisher())
	sessionId := uuid.New()

	generateForTest(t, svc, sessionId)

	res, err := svc.ImproveWhole(context.Background(), sessionId, &dto.ImproveReviewRequest{
		ImprovementPrompt: "More reflective overall.",
	})
	if err != nil {
		t.Fatalf("ImproveWhole: %v", err)
	}
	if res.CaseTitle != "Improved Palpitations review" {
		t.Errorf("CaseTitle = %q", res.CaseTitle)
	}
	_, improve, _, _, _ := provider.calls()
	if improve != 1 {
		t.Fatalf("improve calls = %d, want 1", improve)
	}
}

func TestCurrentReloadsFromSnapshots(t *testing.T) {
	provider := &fakeProvider{}
	snaps := newFakeSnapshots()
	svc := newTestReviewService(provider, snaps, newRecordingPublisher())
	sessionId := uuid.New()

	before := generateForTest(t, svc, sessionId)
	snaps.waitSaves(t, 2)

	// A fresh service instance simulates in-memory state being evicted.
	revived := newTestReviewService(&fakeProvider{}, snaps, newRecordingPublisher())
	after, err := revived.Current(context.Background(), sessionId)
	if err != nil {
		t.Fatalf("Current after eviction: %v", err)
	}
	if after.CaseTitle != before.CaseTitle {
		t.Errorf("CaseTitle = %q, want %q", after.CaseTitle, before.CaseTitle)
	}
	if got, want := after.Sections.Capabilities.Names(), before.Sections.Capabilities.Names(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("capability order not preserved: %v vs %v", got, want)
	}
	if len(after.ExperienceGroups) != len(before.ExperienceGroups) {
		t.Errorf("experience groups lost: %v", after.ExperienceGroups)
	}
}

func TestNewCaseClearsStateAndSnapshots(t *testing.T) {
	provider := &fakeProvider{}
	snaps := newFakeSnapshots()
	pub := newRecordingPublisher()
	svc := newTestReviewService(provider, snaps, pub)
	sessionId := uuid.New()

	generateForTest(t, svc, sessionId)
	snaps.waitSaves(t, 2)

	if err := svc.NewCase(context.Background(), sessionId); err != nil {
		t.Fatalf("NewCase: %v", err)
	}
	if pub.count(events.TypeNewCaseStarted) != 1 {
		t.Errorf("expected one new_case_started event")
	}

	_, err := svc.Current(context.Background(), sessionId)
	if status := appStatus(t, err); status != 404 {
		t.Fatalf("status = %d, want 404", status)
	}
}

func TestTwoSessionsAreIsolated(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestReviewService(provider, newFakeSnapshots(), newRecordingPublisher())
	first := uuid.New()
	second := uuid.New()

	generateForTest(t, svc, first)

	if _, err := svc.Current(context.Background(), second); err == nil {
		t.Fatal("second session must not see the first session's document")
	}

	if _, err := svc.ImproveSection(context.Background(), first, &dto.ImproveSectionRequest{
		SectionType:       "reflection",
		ImprovementPrompt: "Only for the first session.",
	}); err != nil {
		t.Fatalf("ImproveSection: %v", err)
	}

	if _, err := svc.Current(context.Background(), second); err == nil {
		t.Fatal("second session still must not see a document")
	}
}
