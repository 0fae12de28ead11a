package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"caseforge-be/internal/constant"
	"caseforge-be/internal/dto"
	"caseforge-be/internal/entity"
	"caseforge-be/internal/mapper"
	"caseforge-be/internal/pkg/logger"
	"caseforge-be/internal/pkg/serverutils"
	"caseforge-be/internal/repository/contract"
	"caseforge-be/internal/repository/memory"
	"caseforge-be/pkg/events"
	"caseforge-be/pkg/review"
	"caseforge-be/pkg/store"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const persistTimeout = 10 * time.Second

type IReviewService interface {
	// Generate builds a fresh review for the session's case description and
	// replaces whatever document the session held before.
	Generate(ctx context.Context, sessionId uuid.UUID, req *dto.GenerateReviewRequest) (*dto.CaseReviewResponse, error)

	// Current returns the session's document, reloading it from the durable
	// snapshots when the in-memory state was evicted.
	Current(ctx context.Context, sessionId uuid.UUID) (*dto.CaseReviewResponse, error)

	// ImproveWhole rewrites the entire document from free-form instructions.
	ImproveWhole(ctx context.Context, sessionId uuid.UUID, req *dto.ImproveReviewRequest) (*dto.CaseReviewResponse, error)

	// BeginSectionEdit / CancelSectionEdit drive the per-target composer
	// without any remote call.
	BeginSectionEdit(ctx context.Context, sessionId uuid.UUID, req *dto.SectionTargetRequest) (*dto.SessionStateResponse, error)
	CancelSectionEdit(ctx context.Context, sessionId uuid.UUID, req *dto.SectionTargetRequest) (*dto.SessionStateResponse, error)

	// ImproveSection submits one target's instructions and applies the
	// returned replacement to the current document.
	ImproveSection(ctx context.Context, sessionId uuid.UUID, req *dto.ImproveSectionRequest) (*dto.ImproveSectionResponse, error)

	// State reports every edit session plus the aggregate any_requesting flag.
	State(ctx context.Context, sessionId uuid.UUID) (*dto.SessionStateResponse, error)

	// NewCase discards the session's document, edit sessions and snapshots.
	NewCase(ctx context.Context, sessionId uuid.UUID) error
}

type reviewService struct {
	states    *memory.CaseStateRepository
	provider  review.Provider
	snapshots contract.ISnapshotRepository
	publisher IPublisherService
	logger    logger.ILogger

	// One writer per session keeps the async snapshot saves in mutation
	// order; see persistAsync.
	writers sync.Map
}

func NewReviewService(
	states *memory.CaseStateRepository,
	provider review.Provider,
	snapshots contract.ISnapshotRepository,
	publisher IPublisherService,
	appLogger logger.ILogger,
) IReviewService {
	return &reviewService{
		states:    states,
		provider:  provider,
		snapshots: snapshots,
		publisher: publisher,
		logger:    appLogger,
	}
}

func (s *reviewService) Generate(ctx context.Context, sessionId uuid.UUID, req *dto.GenerateReviewRequest) (*dto.CaseReviewResponse, error) {
	caseDescription := strings.TrimSpace(req.CaseDescription)
	if utf8.RuneCountInString(caseDescription) < constant.MinCaseDescriptionLength {
		return nil, serverutils.NewValidationError(
			fmt.Sprintf("case description must be at least %d characters", constant.MinCaseDescriptionLength))
	}

	capabilities, err := s.resolveCapabilities(ctx, sessionId, caseDescription, req)
	if err != nil {
		return nil, err
	}

	state := s.states.GetOrCreate(sessionId.String())
	state.Lock()
	if state.AnyRequesting() {
		state.Unlock()
		return nil, serverutils.NewConflictError("an improvement is still in flight")
	}
	state.GenerateInFlight = true
	state.Unlock()

	s.publisher.Publish(ctx, events.NewCaseSubmitted(sessionId, utf8.RuneCountInString(caseDescription), req.AutoSelectCapabilities))

	started := time.Now()
	var (
		doc    review.Document
		groups review.ExperienceGroups
	)
	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var genErr error
		doc, genErr = s.provider.GenerateReview(groupCtx, caseDescription, capabilities)
		return genErr
	})
	g.Go(func() error {
		var classifyErr error
		groups, classifyErr = s.provider.SelectExperienceGroups(groupCtx, caseDescription)
		return classifyErr
	})
	if err := g.Wait(); err != nil {
		state.Lock()
		state.GenerateInFlight = false
		state.Unlock()
		s.publisher.Publish(ctx, events.NewErrorOccurred(sessionId, "generate_review", err.Error()))
		return nil, serverutils.NewRemoteCallError("GENERATION_FAILED", "failed to generate review", err)
	}

	state.Lock()
	state.GenerateInFlight = false
	state.Document = &doc
	state.ExperienceGroups = groups
	state.EditSessions = make(map[string]*review.EditSession)
	s.persistAsync(sessionId, doc, groups)
	state.Unlock()

	s.publisher.Publish(ctx, events.NewReviewGenerated(sessionId, doc.CapabilityNames(), time.Since(started).Milliseconds()))

	return mapper.ToCaseReviewResponse(doc, groups), nil
}

// resolveCapabilities turns the request into a concrete 1-3 capability set,
// either by validating a manual selection or by asking the provider.
func (s *reviewService) resolveCapabilities(ctx context.Context, sessionId uuid.UUID, caseDescription string, req *dto.GenerateReviewRequest) ([]string, error) {
	if req.AutoSelectCapabilities && len(req.SelectedCapabilities) > 0 {
		return nil, serverutils.NewValidationError("selected_capabilities and auto_select_capabilities are mutually exclusive")
	}

	if req.AutoSelectCapabilities {
		capabilities, err := s.provider.SelectCapabilities(ctx, caseDescription)
		if err != nil {
			s.publisher.Publish(ctx, events.NewErrorOccurred(sessionId, "select_capabilities", err.Error()))
			return nil, serverutils.NewRemoteCallError("GENERATION_FAILED", "failed to select capabilities", err)
		}
		return capabilities, nil
	}

	if len(req.SelectedCapabilities) < constant.MinSelectedCapabilities || len(req.SelectedCapabilities) > constant.MaxSelectedCapabilities {
		return nil, serverutils.NewValidationError(
			fmt.Sprintf("select between %d and %d capabilities", constant.MinSelectedCapabilities, constant.MaxSelectedCapabilities))
	}

	seen := make(map[string]bool, len(req.SelectedCapabilities))
	for _, name := range req.SelectedCapabilities {
		if !constant.IsKnownCapability(name) {
			return nil, serverutils.NewValidationError(fmt.Sprintf("unknown capability %q", name))
		}
		if seen[name] {
			return nil, serverutils.NewValidationError(fmt.Sprintf("capability %q selected twice", name))
		}
		seen[name] = true
	}
	return req.SelectedCapabilities, nil
}

func (s *reviewService) Current(ctx context.Context, sessionId uuid.UUID) (*dto.CaseReviewResponse, error) {
	state := s.states.GetOrCreate(sessionId.String())
	state.Lock()
	defer state.Unlock()

	if state.Document == nil {
		if err := s.loadSnapshots(ctx, sessionId, state); err != nil {
			return nil, err
		}
	}
	if state.Document == nil {
		return nil, serverutils.NewNotFoundError("no review exists for this session")
	}
	return mapper.ToCaseReviewResponse(*state.Document, state.ExperienceGroups), nil
}

func (s *reviewService) ImproveWhole(ctx context.Context, sessionId uuid.UUID, req *dto.ImproveReviewRequest) (*dto.CaseReviewResponse, error) {
	instructions := strings.TrimSpace(req.ImprovementPrompt)
	if instructions == "" {
		return nil, serverutils.NewValidationError("improvement_prompt must not be empty")
	}

	state := s.states.GetOrCreate(sessionId.String())
	state.Lock()
	if state.Document == nil {
		if err := s.loadSnapshots(ctx, sessionId, state); err != nil {
			state.Unlock()
			return nil, err
		}
	}
	if state.Document == nil {
		state.Unlock()
		return nil, serverutils.NewNotFoundError("no review exists for this session")
	}
	if state.AnyRequesting() {
		state.Unlock()
		return nil, serverutils.NewConflictError("an improvement is still in flight")
	}
	state.WholeImproveInFlight = true
	rawContent := state.Document.RawContent
	capabilities := state.Document.CapabilityNames()
	groups := state.ExperienceGroups
	state.Unlock()

	s.publisher.Publish(ctx, events.NewImprovementRequested(sessionId, "whole", len(instructions)))

	next, err := s.provider.ImproveReview(ctx, rawContent, instructions, capabilities)

	state.Lock()
	state.WholeImproveInFlight = false
	if err != nil {
		state.Unlock()
		s.publisher.Publish(ctx, events.NewErrorOccurred(sessionId, "improve_review", err.Error()))
		return nil, serverutils.NewRemoteCallError("IMPROVEMENT_FAILED", "failed to improve review", err)
	}
	replaced := review.ReplaceWhole(*state.Document, next)
	state.Document = &replaced
	state.EditSessions = make(map[string]*review.EditSession)
	s.persistAsync(sessionId, replaced, groups)
	state.Unlock()

	return mapper.ToCaseReviewResponse(replaced, groups), nil
}

func (s *reviewService) BeginSectionEdit(ctx context.Context, sessionId uuid.UUID, req *dto.SectionTargetRequest) (*dto.SessionStateResponse, error) {
	state, target, err := s.targetState(ctx, sessionId, req.SectionType, req.CapabilityName)
	if err != nil {
		return nil, err
	}
	defer state.Unlock()

	state.Session(target).Begin()
	return s.snapshotState(state), nil
}

func (s *reviewService) CancelSectionEdit(ctx context.Context, sessionId uuid.UUID, req *dto.SectionTargetRequest) (*dto.SessionStateResponse, error) {
	state, target, err := s.targetState(ctx, sessionId, req.SectionType, req.CapabilityName)
	if err != nil {
		return nil, err
	}
	defer state.Unlock()

	state.Session(target).Cancel()
	return s.snapshotState(state), nil
}

func (s *reviewService) ImproveSection(ctx context.Context, sessionId uuid.UUID, req *dto.ImproveSectionRequest) (*dto.ImproveSectionResponse, error) {
	state, target, err := s.targetState(ctx, sessionId, req.SectionType, req.CapabilityName)
	if err != nil {
		return nil, err
	}

	if state.GenerateInFlight {
		state.Unlock()
		return nil, serverutils.NewConflictError("a generation is still in flight")
	}
	if state.WholeImproveInFlight {
		state.Unlock()
		return nil, serverutils.NewConflictError("a whole-document improvement is still in flight")
	}

	session := state.Session(target)
	session.Begin()
	if err := session.Submit(req.ImprovementPrompt); err != nil {
		state.Unlock()
		switch {
		case errors.Is(err, review.ErrImproveInFlight):
			return nil, serverutils.NewConflictError("an improvement for this target is still in flight")
		case errors.Is(err, review.ErrEmptyInstructions):
			return nil, serverutils.NewValidationError("improvement_prompt must not be empty")
		default:
			return nil, err
		}
	}
	sectionText, err := currentTargetText(*state.Document, target)
	if err != nil {
		session.Fail(err.Error())
		state.Unlock()
		return nil, serverutils.NewBadRequestError(err.Error())
	}
	instructions := session.Instructions
	state.Unlock()

	s.publisher.Publish(ctx, events.NewImprovementRequested(sessionId, target.String(), len(instructions)))

	improved, err := s.provider.ImproveSection(ctx, target, sectionText, instructions)

	state.Lock()
	if err != nil {
		session.Fail(err.Error())
		state.Unlock()
		s.publisher.Publish(ctx, events.NewErrorOccurred(sessionId, "improve_section", err.Error()))
		return nil, serverutils.NewRemoteCallError("IMPROVEMENT_FAILED", "failed to improve section", err)
	}

	// Re-read the document: a sibling target may have landed its own
	// replacement while this request was in flight.
	var next review.Document
	if target.Capability != "" {
		next, err = state.Document.ReplaceCapabilityEntry(target.Capability, improved)
	} else {
		next, err = state.Document.ReplaceSection(target.Section, improved)
	}
	if err != nil {
		session.Fail(err.Error())
		state.Unlock()
		return nil, serverutils.NewBadRequestError(err.Error())
	}
	state.Document = &next
	session.Complete()
	groups := state.ExperienceGroups
	s.persistAsync(sessionId, next, groups)
	state.Unlock()

	return &dto.ImproveSectionResponse{
		ImprovedContent: improved,
		Review:          mapper.ToCaseReviewResponse(next, groups),
	}, nil
}

func (s *reviewService) State(ctx context.Context, sessionId uuid.UUID) (*dto.SessionStateResponse, error) {
	state := s.states.GetOrCreate(sessionId.String())
	state.Lock()
	defer state.Unlock()
	return s.snapshotState(state), nil
}

func (s *reviewService) NewCase(ctx context.Context, sessionId uuid.UUID) error {
	state := s.states.GetOrCreate(sessionId.String())
	state.Lock()
	if state.AnyRequesting() {
		state.Unlock()
		return serverutils.NewConflictError("an improvement is still in flight")
	}
	state.Reset()
	w := s.writerFor(sessionId)
	seq := atomic.AddUint64(&w.nextSeq, 1)
	state.Unlock()

	// The clear takes a revision too, so a straggling save from before the
	// reset cannot resurrect the cleared case.
	w.mu.Lock()
	if err := s.snapshots.Clear(ctx, sessionId); err != nil {
		s.logger.Warn("review-service", "persistence warning: failed to clear snapshots", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
	}
	if seq > w.written {
		w.written = seq
	}
	w.mu.Unlock()

	s.publisher.Publish(ctx, events.NewNewCaseStarted(sessionId))
	return nil
}

// targetState resolves the request's target and returns the session state
// LOCKED, with the document loaded. Callers must unlock.
func (s *reviewService) targetState(ctx context.Context, sessionId uuid.UUID, sectionType, capabilityName string) (*store.CaseState, review.TargetKey, error) {
	target, err := review.ParseTargetSection(sectionType, capabilityName)
	if err != nil {
		return nil, review.TargetKey{}, serverutils.NewValidationError(err.Error())
	}

	state := s.states.GetOrCreate(sessionId.String())
	state.Lock()
	if state.Document == nil {
		if err := s.loadSnapshots(ctx, sessionId, state); err != nil {
			state.Unlock()
			return nil, review.TargetKey{}, err
		}
	}
	if state.Document == nil {
		state.Unlock()
		return nil, review.TargetKey{}, serverutils.NewNotFoundError("no review exists for this session")
	}
	if target.Capability != "" {
		if _, ok := state.Document.Capabilities().Entry(target.Capability); !ok {
			state.Unlock()
			return nil, review.TargetKey{}, serverutils.NewValidationError(
				fmt.Sprintf("capability %q is not part of this review", target.Capability))
		}
	}
	return state, target, nil
}

// snapshotState builds the state response in presentation order: text
// sections first, then capability entries in document order. Caller holds
// the lock.
func (s *reviewService) snapshotState(state *store.CaseState) *dto.SessionStateResponse {
	res := &dto.SessionStateResponse{
		AnyRequesting: state.AnyRequesting(),
		Sessions:      []dto.EditSessionResponse{},
	}
	appendSession := func(target review.TargetKey) {
		if session, ok := state.EditSessions[target.String()]; ok {
			res.Sessions = append(res.Sessions, mapper.ToEditSessionResponse(session))
		}
	}
	for _, key := range review.SectionOrder() {
		if key == review.SectionCapabilities {
			continue
		}
		appendSession(review.TargetKey{Section: key})
	}
	if state.Document != nil {
		for _, name := range state.Document.CapabilityNames() {
			appendSession(review.TargetKey{Section: review.SectionCapabilities, Capability: name})
		}
	}
	return res
}

func currentTargetText(doc review.Document, target review.TargetKey) (string, error) {
	if target.Capability != "" {
		body, ok := doc.Capabilities().Entry(target.Capability)
		if !ok {
			return "", fmt.Errorf("capability %q is not part of this review", target.Capability)
		}
		return body, nil
	}
	body, ok := doc.Text(target.Section)
	if !ok {
		return "", fmt.Errorf("section %q is not a text section", target.Section)
	}
	return body, nil
}

// loadSnapshots rehydrates evicted state from the durable store. A missing
// slot is not an error; a corrupt payload is logged and treated as absent.
func (s *reviewService) loadSnapshots(ctx context.Context, sessionId uuid.UUID, state *store.CaseState) error {
	payload, found, err := s.snapshots.Load(ctx, sessionId, entity.SnapshotSlotDocument)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	var doc review.Document
	err = json.Unmarshal(payload, &doc)
	if err == nil {
		err = doc.Validate()
	}
	if err != nil {
		s.logger.Warn("review-service", "persistence warning: corrupt document snapshot", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
		return nil
	}
	state.Document = &doc

	groupsPayload, found, err := s.snapshots.Load(ctx, sessionId, entity.SnapshotSlotExperienceGroups)
	if err != nil {
		return err
	}
	if found {
		var groups review.ExperienceGroups
		if err := json.Unmarshal(groupsPayload, &groups); err != nil {
			s.logger.Warn("review-service", "persistence warning: corrupt experience groups snapshot", map[string]interface{}{
				"session_id": sessionId.String(),
				"error":      err.Error(),
			})
		} else {
			state.ExperienceGroups = groups
		}
	}
	return nil
}

// snapshotWriter orders the async saves of one session. Sequence numbers are
// handed out at the mutation site (under the case-state lock), so a snapshot
// that a newer revision has already overtaken is dropped instead of written.
type snapshotWriter struct {
	nextSeq uint64

	mu      sync.Mutex
	written uint64
}

func (s *reviewService) writerFor(sessionId uuid.UUID) *snapshotWriter {
	w, _ := s.writers.LoadOrStore(sessionId.String(), &snapshotWriter{})
	return w.(*snapshotWriter)
}

// persistAsync writes both snapshot slots without blocking the response.
// Callers invoke it while holding the case-state lock so revisions are
// sequenced in mutation order. Failures are logged, never surfaced: the
// in-memory state already holds the accepted document.
func (s *reviewService) persistAsync(sessionId uuid.UUID, doc review.Document, groups review.ExperienceGroups) {
	w := s.writerFor(sessionId)
	seq := atomic.AddUint64(&w.nextSeq, 1)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		w.mu.Lock()
		defer w.mu.Unlock()
		if seq <= w.written {
			// A newer revision already reached the store.
			return
		}

		docPayload, err := json.Marshal(doc)
		if err == nil {
			err = s.snapshots.Save(ctx, sessionId, entity.SnapshotSlotDocument, docPayload)
		}
		if err != nil {
			s.logger.Warn("review-service", "persistence warning: failed to save document snapshot", map[string]interface{}{
				"session_id": sessionId.String(),
				"error":      err.Error(),
			})
		}

		groupsPayload, err := json.Marshal(groups)
		if err == nil {
			err = s.snapshots.Save(ctx, sessionId, entity.SnapshotSlotExperienceGroups, groupsPayload)
		}
		if err != nil {
			s.logger.Warn("review-service", "persistence warning: failed to save experience groups snapshot", map[string]interface{}{
				"session_id": sessionId.String(),
				"error":      err.Error(),
			})
		}

		w.written = seq
	}()
}
