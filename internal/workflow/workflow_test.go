package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brandflow/brandflow/internal/api"
	"github.com/brandflow/brandflow/internal/config"
	"github.com/brandflow/brandflow/internal/content"
)

// fakeService is an in-memory test double for the recommendation service.
type fakeService struct {
	mu sync.Mutex

	latest    *api.Generation
	latestSeq []*api.Generation
	latestErr error

	stepData   map[int][]api.Recommendation
	stepErr    error
	stepErrFor map[int]error
	stepDelay  map[int]time.Duration
	stepCalls  []int

	updateErr map[string]error
	updates   []string

	contentFor map[string]string
	contentErr map[string]error

	bulkRes *api.BulkGenerateResult
	bulkErr error

	completeErr   map[string]error
	completeCalls []string

	regenRes *api.RegenerateResult
	regenErr error
}

func (f *fakeService) LatestGeneration(ctx context.Context, brandID string) (*api.Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.latestSeq) > 0 {
		gen := f.latestSeq[0]
		f.latestSeq = f.latestSeq[1:]
		return gen, nil
	}
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	if f.latest == nil {
		return &api.Generation{}, nil
	}
	return f.latest, nil
}

func (f *fakeService) RecommendationsByStep(ctx context.Context, generationID string, step int) (*api.StepResult, error) {
	f.mu.Lock()
	delay := f.stepDelay[step]
	f.stepCalls = append(f.stepCalls, step)
	err := f.stepErr
	if err == nil {
		err = f.stepErrFor[step]
	}
	recs := append([]api.Recommendation(nil), f.stepData[step]...)
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return &api.StepResult{Recommendations: recs}, nil
}

func (f *fakeService) UpdateStatus(ctx context.Context, id string, status api.ReviewStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, id+":"+string(status))
	return f.updateErr[id]
}

func (f *fakeService) GenerateContent(ctx context.Context, id string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.contentErr[id]; err != nil {
		return nil, err
	}
	return json.RawMessage(f.contentFor[id]), nil
}

func (f *fakeService) GenerateContentBulk(ctx context.Context, generationID string) (*api.BulkGenerateResult, error) {
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	return f.bulkRes, nil
}

func (f *fakeService) Complete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls = append(f.completeCalls, id)
	return f.completeErr[id]
}

func (f *fakeService) RegenerateContent(ctx context.Context, id, feedback string) (*api.RegenerateResult, error) {
	if f.regenErr != nil {
		return nil, f.regenErr
	}
	return f.regenRes, nil
}

func (f *fakeService) ContentLatest(ctx context.Context, id string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.contentErr[id]; err != nil {
		return nil, err
	}
	raw, ok := f.contentFor[id]
	if !ok {
		return nil, errors.New("content not found")
	}
	return json.RawMessage(raw), nil
}

func (f *fakeService) stepCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stepCalls)
}

func rec(id string, status api.ReviewStatus) api.Recommendation {
	r := api.Recommendation{ID: id, Action: "do " + id}
	r.SetReviewStatus(status)
	return r
}

func newTestSession(svc *fakeService) *Session {
	s := NewSession(svc, WithGuardGrace(20*time.Millisecond))
	s.generationID = "gen-000001"
	s.brandID = "brand-1"
	return s
}

func TestGoToStepLoadsWorkingSet(t *testing.T) {
	svc := &fakeService{
		stepData: map[int][]api.Recommendation{
			2: {rec("rec-000001", api.StatusApproved)},
		},
	}
	s := newTestSession(svc)

	if err := s.GoToStep(context.Background(), StepToDo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.CurrentStep() != StepToDo {
		t.Errorf("expected current step %v, got %v", StepToDo, s.CurrentStep())
	}
	working := s.Working()
	if len(working) != 1 || working[0].ID != "rec-000001" {
		t.Errorf("unexpected working set: %+v", working)
	}
}

func TestGoToStepDropsShortAndUnapprovedIDs(t *testing.T) {
	svc := &fakeService{
		stepData: map[int][]api.Recommendation{
			2: {
				rec("rec-000001", api.StatusApproved),
				rec("x", api.StatusApproved),                // malformed id
				rec("rec-000002", api.StatusPendingReview),  // not approved
			},
		},
	}
	s := newTestSession(svc)

	if err := s.GoToStep(context.Background(), StepToDo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	working := s.Working()
	if len(working) != 1 || working[0].ID != "rec-000001" {
		t.Errorf("expected only the valid approved item, got %+v", working)
	}
}

func TestGoToStepFailureStillNavigates(t *testing.T) {
	svc := &fakeService{stepErr: errors.New("boom")}
	s := newTestSession(svc)
	s.working = []api.Recommendation{rec("rec-000009", api.StatusApproved)}

	err := s.GoToStep(context.Background(), StepTrack)
	if err == nil {
		t.Fatal("expected error")
	}
	if s.CurrentStep() != StepTrack {
		t.Errorf("navigation must land despite the error, step = %v", s.CurrentStep())
	}
	if len(s.Working()) != 1 {
		t.Errorf("previous data must stay visible, got %+v", s.Working())
	}
}

func TestGoToStepEmptyResultIsNotAnError(t *testing.T) {
	svc := &fakeService{stepErr: errors.New("No recommendations found for step")}
	s := newTestSession(svc)

	if err := s.GoToStep(context.Background(), StepToDo); err != nil {
		t.Fatalf("empty result must not surface as error, got: %v", err)
	}
	if len(s.Working()) != 0 {
		t.Errorf("expected empty working set, got %+v", s.Working())
	}
}

func TestReactiveLoadSuppression(t *testing.T) {
	svc := &fakeService{
		stepData: map[int][]api.Recommendation{
			2: {rec("rec-000001", api.StatusApproved)},
		},
	}
	s := newTestSession(svc)

	if err := s.GoToStep(context.Background(), StepToDo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := svc.stepCallCount(); got != 1 {
		t.Fatalf("expected 1 fetch after manual navigation, got %d", got)
	}

	// Guard still held: reactive loader must no-op
	if err := s.ReactiveLoad(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := svc.stepCallCount(); got != 1 {
		t.Errorf("reactive load fired while manual guard held, fetches = %d", got)
	}

	// After the grace window the guard drops, but the remembered manual
	// step still suppresses exactly one redundant reload
	time.Sleep(60 * time.Millisecond)
	if err := s.ReactiveLoad(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := svc.stepCallCount(); got != 1 {
		t.Errorf("redundant reactive reload not suppressed, fetches = %d", got)
	}

	// A later reactive trigger is a genuine reload
	if err := s.ReactiveLoad(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := svc.stepCallCount(); got != 2 {
		t.Errorf("expected genuine reactive reload, fetches = %d", got)
	}
}

func TestStaleLoadDiscarded(t *testing.T) {
	svc := &fakeService{
		stepData: map[int][]api.Recommendation{
			2: {rec("rec-aaaaaa", api.StatusApproved)},
			4: {rec("rec-bbbbbb", api.StatusApproved)},
		},
		stepDelay: map[int]time.Duration{2: 80 * time.Millisecond},
	}
	s := newTestSession(svc)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.GoToStep(context.Background(), StepToDo) // slow
	}()
	time.Sleep(10 * time.Millisecond)
	if err := s.GoToStep(context.Background(), StepTrack); err != nil { // fast
		t.Fatalf("unexpected error: %v", err)
	}
	<-done

	if s.CurrentStep() != StepTrack {
		t.Errorf("expected newest navigation to win, step = %v", s.CurrentStep())
	}
	working := s.Working()
	if len(working) != 1 || working[0].ID != "rec-bbbbbb" {
		t.Errorf("stale fetch overwrote newer data: %+v", working)
	}
}

func TestStaleFailedLoadDiscarded(t *testing.T) {
	t.Setenv("BRANDFLOW_STEP_STORE", t.TempDir()+"/steps.json")
	store, err := config.LoadStepStore()
	if err != nil {
		t.Fatalf("loading step store: %v", err)
	}

	svc := &fakeService{
		stepData: map[int][]api.Recommendation{
			4: {rec("rec-bbbbbb", api.StatusApproved)},
		},
		stepErrFor: map[int]error{2: errors.New("backend unavailable")},
		stepDelay:  map[int]time.Duration{2: 80 * time.Millisecond},
	}
	s := newTestSession(svc)
	s.steps = store

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.GoToStep(context.Background(), StepToDo) // slow, will fail
	}()
	time.Sleep(10 * time.Millisecond)
	if err := s.GoToStep(context.Background(), StepTrack); err != nil { // fast
		t.Fatalf("unexpected error: %v", err)
	}
	<-done

	if s.CurrentStep() != StepTrack {
		t.Errorf("stale failed navigation moved the cursor back, step = %v", s.CurrentStep())
	}
	working := s.Working()
	if len(working) != 1 || working[0].ID != "rec-bbbbbb" {
		t.Errorf("working set no longer matches the newest navigation: %+v", working)
	}
	if got, ok := store.GetStep("brand-1"); !ok || got != int(StepTrack) {
		t.Errorf("persisted step = %d (ok=%v), want %d", got, ok, int(StepTrack))
	}
}

func TestSetStatusApproveThenNavigate(t *testing.T) {
	svc := &fakeService{
		stepData: map[int][]api.Recommendation{
			2: {rec("rec-000001", api.StatusApproved)},
		},
	}
	s := newTestSession(svc)
	s.all = []api.Recommendation{rec("rec-000001", api.StatusPendingReview)}
	s.working = append([]api.Recommendation(nil), s.all...)

	if err := s.SetStatus(context.Background(), "rec-000001", api.StatusApproved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	all := s.All()
	if all[0].ReviewStatus != api.StatusApproved || !all[0].IsApproved {
		t.Errorf("optimistic approval not applied: %+v", all[0])
	}

	if err := s.GoToStep(context.Background(), StepToDo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	working := s.Working()
	if s.CurrentStep() != StepToDo || len(working) != 1 || working[0].ID != "rec-000001" {
		t.Errorf("expected approved item on step 2, got step=%v working=%+v", s.CurrentStep(), working)
	}
}

func TestSetStatusRemovalDeletesFromBothCollections(t *testing.T) {
	for _, status := range []api.ReviewStatus{api.StatusRemoved, api.StatusRejected} {
		t.Run(string(status), func(t *testing.T) {
			svc := &fakeService{}
			s := newTestSession(svc)
			s.all = []api.Recommendation{
				rec("rec-000001", api.StatusApproved),
				rec("rec-000002", api.StatusPendingReview),
			}
			s.working = append([]api.Recommendation(nil), s.all...)

			if err := s.SetStatus(context.Background(), "rec-000001", status); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if indexByID(s.Working(), "rec-000001") != -1 {
				t.Error("item still present in working set")
			}
			if indexByID(s.All(), "rec-000001") != -1 {
				t.Error("item still present in canonical collection")
			}
		})
	}
}

func TestSetStatusRollback(t *testing.T) {
	t.Run("status edit reverts", func(t *testing.T) {
		svc := &fakeService{updateErr: map[string]error{"rec-000001": errors.New("rejected by server")}}
		s := newTestSession(svc)
		s.all = []api.Recommendation{rec("rec-000001", api.StatusPendingReview)}
		s.working = append([]api.Recommendation(nil), s.all...)

		if err := s.SetStatus(context.Background(), "rec-000001", api.StatusApproved); err == nil {
			t.Fatal("expected error")
		}
		if got := s.All()[0].ReviewStatus; got != api.StatusPendingReview {
			t.Errorf("status not rolled back, got %v", got)
		}
	})

	t.Run("removal reinserts", func(t *testing.T) {
		svc := &fakeService{updateErr: map[string]error{"rec-000002": errors.New("rejected by server")}}
		s := newTestSession(svc)
		s.all = []api.Recommendation{
			rec("rec-000001", api.StatusApproved),
			rec("rec-000002", api.StatusApproved),
			rec("rec-000003", api.StatusApproved),
		}
		s.working = append([]api.Recommendation(nil), s.all...)

		if err := s.SetStatus(context.Background(), "rec-000002", api.StatusRemoved); err == nil {
			t.Fatal("expected error")
		}
		all := s.All()
		if len(all) != 3 || all[1].ID != "rec-000002" {
			t.Errorf("removed item not reinserted at its position: %+v", all)
		}
	})
}

func TestVisibleFilterIsPureAndIdempotent(t *testing.T) {
	svc := &fakeService{}
	s := newTestSession(svc)
	s.all = []api.Recommendation{
		rec("rec-000001", api.StatusApproved),
		rec("rec-000002", api.StatusPendingReview),
		{ID: "rec-000003"}, // missing status counts as pending
		rec("rec-000004", api.StatusRejected),
	}

	s.SetFilter(FilterPending)
	first := s.Visible()
	second := s.Visible()

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 pending items, got %d then %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("filter not idempotent at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
	if got := svc.stepCallCount(); got != 0 {
		t.Errorf("filtering issued %d network calls, want 0", got)
	}
}

func TestRefineLoadPopulatesContentOnlyForGenerated(t *testing.T) {
	withContent := rec("rec-000001", api.StatusApproved)
	withContent.IsContentGenerated = true
	without := rec("rec-000002", api.StatusApproved)

	svc := &fakeService{
		stepData:   map[int][]api.Recommendation{3: {withContent, without}},
		contentFor: map[string]string{"rec-000001": `{"version":"2.0","publishableContent":{"content":"hi"}}`},
	}
	s := newTestSession(svc)

	if err := s.GoToStep(context.Background(), StepRefine); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c, ok := s.ContentFor("rec-000001"); !ok {
		t.Error("expected content for generated item")
	} else if v2, ok := c.(content.V2); !ok || v2.PublishableContent.Content != "hi" {
		t.Errorf("unexpected content: %#v", c)
	}
	if _, ok := s.ContentFor("rec-000002"); ok {
		t.Error("item without generated content must have no content-map entry")
	}
}

func TestRefineLoadToleratesContentFetchFailure(t *testing.T) {
	a := rec("rec-000001", api.StatusApproved)
	a.IsContentGenerated = true
	b := rec("rec-000002", api.StatusApproved)
	b.IsContentGenerated = true

	svc := &fakeService{
		stepData:   map[int][]api.Recommendation{3: {a, b}},
		contentFor: map[string]string{"rec-000001": `{"version":"3.0","publishableContent":{"content":"x"}}`},
		contentErr: map[string]error{"rec-000002": errors.New("fetch failed")},
	}
	s := newTestSession(svc)

	if err := s.GoToStep(context.Background(), StepRefine); err != nil {
		t.Fatalf("one content failure must not fail the load: %v", err)
	}
	if _, ok := s.ContentFor("rec-000001"); !ok {
		t.Error("surviving fetch should have populated the map")
	}
	if _, ok := s.ContentFor("rec-000002"); ok {
		t.Error("failed fetch must not populate the map")
	}
}

func TestBulkGenerateContent(t *testing.T) {
	svc := &fakeService{
		bulkRes: &api.BulkGenerateResult{
			Total: 2, Successful: 1, Failed: 1,
			Results: []api.BulkGenerateItem{
				{RecommendationID: "rec-r1r1r1", Success: true,
					Content: json.RawMessage(`"{\"version\":\"2.0\",\"publishableContent\":{\"content\":\"hi\"}}"`)},
				{RecommendationID: "rec-r2r2r2", Success: false, Error: "x"},
			},
		},
		stepData: map[int][]api.Recommendation{3: {rec("rec-r1r1r1", api.StatusApproved)}},
	}
	s := newTestSession(svc)

	result, err := s.BulkGenerateContent(context.Background())
	if err != nil {
		t.Fatalf("partial success must not error: %v", err)
	}
	if result.Successful != 1 || result.Failed != 1 {
		t.Errorf("unexpected counts: %+v", result)
	}

	c, ok := s.ContentFor("rec-r1r1r1")
	if !ok {
		t.Fatal("expected content for rec-r1r1r1")
	}
	v2, ok := c.(content.V2)
	if !ok || v2.PublishableContent.Content != "hi" {
		t.Errorf("unexpected decoded content: %#v", c)
	}
	if _, ok := s.ContentFor("rec-r2r2r2"); ok {
		t.Error("failed item must not get a content-map entry")
	}
	if s.CurrentStep() != StepRefine {
		t.Errorf("expected advance to refine, step = %v", s.CurrentStep())
	}
}

func TestBulkGenerateAllFailed(t *testing.T) {
	svc := &fakeService{
		bulkRes: &api.BulkGenerateResult{
			Total: 1, Successful: 0, Failed: 1,
			Results: []api.BulkGenerateItem{{RecommendationID: "rec-r1r1r1", Success: false, Error: "x"}},
		},
	}
	s := newTestSession(svc)
	s.currentStep = StepToDo

	if _, err := s.BulkGenerateContent(context.Background()); err == nil {
		t.Fatal("expected hard failure when nothing succeeded")
	}
	if s.CurrentStep() != StepToDo {
		t.Errorf("step must not advance on total failure, got %v", s.CurrentStep())
	}
}

func TestBulkGenerateTimeoutRecovery(t *testing.T) {
	generated := rec("rec-000001", api.StatusApproved)
	generated.IsContentGenerated = true

	svc := &fakeService{
		bulkErr:    context.DeadlineExceeded,
		stepData:   map[int][]api.Recommendation{3: {generated}},
		contentFor: map[string]string{"rec-000001": `{"version":"1.0","whatToPublishOrSend":{"readyToPaste":"p"}}`},
	}
	s := newTestSession(svc)

	result, err := s.BulkGenerateContent(context.Background())
	if err != nil {
		t.Fatalf("expected recovery after timeout, got: %v", err)
	}
	if result.Successful == 0 {
		t.Errorf("expected recovered items, got %+v", result)
	}
	if s.CurrentStep() != StepRefine {
		t.Errorf("expected landing on refine after recovery, step = %v", s.CurrentStep())
	}
}

func TestBulkCompletePartialFailure(t *testing.T) {
	svc := &fakeService{
		completeErr: map[string]error{"rec-bbbbbb": errors.New("b failed")},
		stepData:    map[int][]api.Recommendation{4: {}},
	}
	s := newTestSession(svc)
	a := rec("rec-aaaaaa", api.StatusApproved)
	a.IsContentGenerated = true
	b := rec("rec-bbbbbb", api.StatusApproved)
	b.IsContentGenerated = true
	s.working = []api.Recommendation{a, b}
	s.all = append([]api.Recommendation(nil), s.working...)

	result, err := s.BulkComplete(context.Background(), []string{"rec-aaaaaa", "rec-bbbbbb"})
	if err != nil {
		t.Fatalf("partial failure must not error: %v", err)
	}
	if result.Successful != 1 || result.Failed != 1 {
		t.Errorf("unexpected counts: %+v", result)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0].Error(), "rec-bbbbbb") {
		t.Errorf("expected exactly one failure mentioning rec-bbbbbb, got %v", result.Errors)
	}
	if i := indexByID(s.All(), "rec-aaaaaa"); i == -1 || !s.All()[i].IsCompleted {
		t.Error("successful completion not applied to canonical collection")
	}
}

func TestBulkCompleteAllFailedAbortsTransition(t *testing.T) {
	svc := &fakeService{
		completeErr: map[string]error{
			"rec-aaaaaa": errors.New("a failed"),
			"rec-bbbbbb": errors.New("b failed"),
		},
	}
	s := newTestSession(svc)
	s.currentStep = StepRefine

	_, err := s.BulkComplete(context.Background(), []string{"rec-aaaaaa", "rec-bbbbbb"})
	if err == nil {
		t.Fatal("expected error when every completion failed")
	}
	if s.CurrentStep() != StepRefine {
		t.Errorf("step must not advance, got %v", s.CurrentStep())
	}
}

func TestMarkCompletedNavigatesBeforeRemoteCall(t *testing.T) {
	svc := &fakeService{stepData: map[int][]api.Recommendation{4: {}}}
	s := newTestSession(svc)
	r := rec("rec-000001", api.StatusApproved)
	r.IsContentGenerated = true
	s.working = []api.Recommendation{r}
	s.all = append([]api.Recommendation(nil), s.working...)

	if err := s.MarkCompleted(context.Background(), "rec-000001"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.CurrentStep() != StepTrack {
		t.Errorf("expected immediate transition to track, step = %v", s.CurrentStep())
	}
	working := s.Working()
	if len(working) != 1 || !working[0].IsCompleted {
		t.Errorf("optimistic item missing from track working set: %+v", working)
	}

	s.bg.Wait()
	if len(s.Working()) != 1 {
		t.Error("successful background completion must keep the item")
	}
}

func TestMarkCompletedBackgroundFailureEvicts(t *testing.T) {
	var reported error
	svc := &fakeService{
		stepData:    map[int][]api.Recommendation{4: {}},
		completeErr: map[string]error{"rec-000001": errors.New("server said no")},
	}
	s := newTestSession(svc)
	s.onError = func(err error) { reported = err }
	r := rec("rec-000001", api.StatusApproved)
	r.IsContentGenerated = true
	s.working = []api.Recommendation{r}
	s.all = append([]api.Recommendation(nil), s.working...)

	if err := s.MarkCompleted(context.Background(), "rec-000001"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.bg.Wait()

	if len(s.Working()) != 0 {
		t.Errorf("optimistic item must be evicted on background failure: %+v", s.Working())
	}
	if reported == nil || !strings.Contains(reported.Error(), "rec-000001") {
		t.Errorf("expected reported error mentioning the item, got %v", reported)
	}
	if s.CurrentStep() != StepTrack {
		t.Errorf("background failure must not disturb navigation, step = %v", s.CurrentStep())
	}
}

func TestMarkCompletedPreconditions(t *testing.T) {
	svc := &fakeService{}
	s := newTestSession(svc)
	done := rec("rec-000001", api.StatusApproved)
	done.IsContentGenerated = true
	done.IsCompleted = true
	noContent := rec("rec-000002", api.StatusApproved)
	s.working = []api.Recommendation{done, noContent}
	s.all = append([]api.Recommendation(nil), s.working...)

	if err := s.MarkCompleted(context.Background(), "rec-000001"); err == nil {
		t.Error("expected error for already-completed item")
	}
	if err := s.MarkCompleted(context.Background(), "rec-000002"); err == nil {
		t.Error("expected error for item without generated content")
	}
	if err := s.MarkCompleted(context.Background(), "rec-999999"); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestInferFirstStep(t *testing.T) {
	mk := func(approved, generated, completed bool) api.Recommendation {
		r := rec("rec-000001", api.StatusPendingReview)
		if approved {
			r.SetReviewStatus(api.StatusApproved)
		}
		r.IsContentGenerated = generated
		r.IsCompleted = completed
		return r
	}

	tests := []struct {
		name string
		recs []api.Recommendation
		want Step
	}{
		{name: "empty", recs: nil, want: StepDiscover},
		{name: "all pending", recs: []api.Recommendation{mk(false, false, false)}, want: StepDiscover},
		{name: "all approved no content", recs: []api.Recommendation{mk(true, false, false), mk(true, false, false)}, want: StepToDo},
		{name: "mixed generated and approved without content", recs: []api.Recommendation{mk(true, true, false), mk(true, false, false)}, want: StepToDo},
		{name: "all generated", recs: []api.Recommendation{mk(true, true, false), mk(true, true, false)}, want: StepRefine},
		{name: "generated plus unapproved pending", recs: []api.Recommendation{mk(true, true, false), mk(false, false, false)}, want: StepRefine},
		{name: "some completed", recs: []api.Recommendation{mk(true, true, true), mk(true, true, false)}, want: StepRefine},
		{name: "all completed", recs: []api.Recommendation{mk(true, true, true)}, want: StepTrack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferFirstStep(tt.recs); got != tt.want {
				t.Errorf("InferFirstStep() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWaitForGeneration(t *testing.T) {
	svc := &fakeService{
		latestSeq: []*api.Generation{
			{},
			{},
			{GenerationID: "gen-000042"},
		},
	}
	s := NewSession(svc)
	s.pollDelay = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gen, err := s.WaitForGeneration(ctx, "brand-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.GenerationID != "gen-000042" {
		t.Errorf("unexpected generation: %+v", gen)
	}
}

func TestRegenerateContentCapsRetries(t *testing.T) {
	svc := &fakeService{
		regenRes: &api.RegenerateResult{
			Content:    json.RawMessage(`{"version":"3.0","publishableContent":{"content":"better"}}`),
			RegenRetry: 1,
		},
	}
	s := newTestSession(svc)
	r := rec("rec-000001", api.StatusApproved)
	r.IsContentGenerated = true
	s.working = []api.Recommendation{r}
	s.all = append([]api.Recommendation(nil), s.working...)

	if err := s.RegenerateContent(context.Background(), "rec-000001", "make it punchier"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Working()[0].RegenRetry; got != 1 {
		t.Errorf("regenRetry = %d, want 1", got)
	}

	if err := s.RegenerateContent(context.Background(), "rec-000001", "again"); err == nil {
		t.Error("expected retry cap error on second regeneration")
	}
}

func TestWorkingSetOnlyApprovedPastDiscover(t *testing.T) {
	for _, step := range []Step{StepToDo, StepRefine, StepTrack} {
		t.Run(fmt.Sprintf("step%d", int(step)), func(t *testing.T) {
			svc := &fakeService{
				stepData: map[int][]api.Recommendation{
					int(step): {
						rec("rec-000001", api.StatusApproved),
						rec("rec-000002", api.StatusPendingReview),
						rec("rec-000003", api.StatusRejected),
					},
				},
			}
			s := newTestSession(svc)

			if err := s.GoToStep(context.Background(), step); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, r := range s.Working() {
				if !r.Approved() {
					t.Errorf("non-approved item %s visible on step %d", r.ID, int(step))
				}
			}
		})
	}
}

func TestLoadBrandInfersStepOnce(t *testing.T) {
	approved := rec("rec-000001", api.StatusApproved)
	svc := &fakeService{
		latest: &api.Generation{
			GenerationID:    "gen-000001",
			Recommendations: []api.Recommendation{approved},
		},
		stepData: map[int][]api.Recommendation{
			1: {approved},
			2: {approved},
		},
	}
	s := NewSession(svc, WithGuardGrace(10*time.Millisecond))

	if err := s.LoadBrand(context.Background(), "brand-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.CurrentStep() != StepToDo {
		t.Errorf("expected inferred step 2 for approved-without-content, got %v", s.CurrentStep())
	}
	if !s.inferred {
		t.Error("inference one-shot flag not set")
	}
}
