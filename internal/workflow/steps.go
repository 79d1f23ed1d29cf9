package workflow

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brandflow/brandflow/internal/api"
	"github.com/brandflow/brandflow/internal/content"
)

// defaultGuardGrace is how long the manual-navigation guard stays up after a
// manual load lands. The reactive loader may already be queued when the
// guard is set; the grace window lets that queued invocation observe the
// guard and no-op instead of re-fetching the data the manual load just
// brought in.
const defaultGuardGrace = 300 * time.Millisecond

const (
	pollAttempts  = 6
	pollBaseDelay = 500 * time.Millisecond
)

// GoToStep performs an explicit step transition: guard up, fetch, apply,
// step cursor last, guard released after the grace window. On fetch failure
// the previous step's data stays visible but the cursor still moves, so the
// user lands on the target step in an error/empty state instead of the UI
// silently refusing to navigate.
func (s *Session) GoToStep(ctx context.Context, step Step) error {
	if !step.Valid() {
		return fmt.Errorf("invalid step %d", int(step))
	}

	s.mu.Lock()
	gen := s.generationID
	s.guard.manual = true
	s.guard.manualStep = step
	s.guard.lastManual = step
	s.guard.token++
	token := s.guard.token
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	defer s.releaseGuard(token)

	if gen == "" {
		s.mu.Lock()
		s.currentStep = step
		s.persistStepLocked(step)
		s.mu.Unlock()
		return nil
	}

	recs, err := s.fetchStep(ctx, gen, step)

	s.mu.Lock()
	if gen != s.generationID || epoch != s.epoch {
		// A newer load started while we were in flight; its result wins,
		// whether ours succeeded or failed
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.currentStep = step
		s.persistStepLocked(step)
		s.mu.Unlock()
		return fmt.Errorf("loading step %d: %w", int(step), err)
	}
	s.applyStepLocked(step, recs)
	s.currentStep = step
	s.persistStepLocked(step)
	s.mu.Unlock()

	if step == StepRefine {
		s.populateContentMap(ctx, gen, recs)
	}
	return nil
}

// ReactiveLoad re-fetches the current step's data. Callers invoke it
// whenever (generationID, currentStep) changes outside an explicit
// navigation: brand switch, initial mount. It is a no-op while the manual
// guard is held, and consumes lastManual to skip the one redundant reload
// the manual transition itself triggers.
func (s *Session) ReactiveLoad(ctx context.Context) error {
	s.mu.Lock()
	if s.guard.manual {
		s.mu.Unlock()
		return nil
	}
	step := s.currentStep
	if step != 0 && s.guard.lastManual == step {
		s.guard.lastManual = 0
		s.mu.Unlock()
		return nil
	}
	gen := s.generationID
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	if gen == "" || !step.Valid() {
		return nil
	}

	recs, err := s.fetchStep(ctx, gen, step)
	if err != nil {
		return fmt.Errorf("loading step %d: %w", int(step), err)
	}

	s.mu.Lock()
	if gen != s.generationID || epoch != s.epoch || step != s.currentStep {
		s.mu.Unlock()
		return nil
	}
	s.applyStepLocked(step, recs)
	s.mu.Unlock()

	if step == StepRefine {
		s.populateContentMap(ctx, gen, recs)
	}
	return nil
}

// fetchStep fetches one step's recommendations, mapping benign empty-state
// errors to an empty result.
func (s *Session) fetchStep(ctx context.Context, gen string, step Step) ([]api.Recommendation, error) {
	res, err := s.svc.RecommendationsByStep(ctx, gen, int(step))
	if err != nil {
		if api.IsEmptyResult(err) {
			return nil, nil
		}
		return nil, err
	}
	return api.ValidRecommendations(res.Recommendations), nil
}

// applyStepLocked installs fetched step data. Steps past discover carry
// only approved items; anything else in the response is dropped, not
// hidden. Loading the discover step is the only path that refreshes the
// canonical filter collection.
func (s *Session) applyStepLocked(step Step, recs []api.Recommendation) {
	if step == StepDiscover {
		s.all = recs
		s.working = append([]api.Recommendation(nil), recs...)
		return
	}

	approved := make([]api.Recommendation, 0, len(recs))
	for _, r := range recs {
		if r.Approved() {
			approved = append(approved, r)
		}
	}
	s.working = approved
}

func (s *Session) persistStepLocked(step Step) {
	if s.steps == nil || s.brandID == "" {
		return
	}
	s.steps.SetStep(s.brandID, int(step), s.generationID)
	if err := s.steps.Save(); err != nil {
		s.log.Warnw("persisting step failed", "brand", s.brandID, "error", err)
	}
}

func (s *Session) releaseGuard(token uint64) {
	time.AfterFunc(s.guardGrace, func() {
		s.mu.Lock()
		if s.guard.token == token {
			s.guard.manual = false
		}
		s.mu.Unlock()
	})
}

// populateContentMap fans out one content fetch per generated item and
// merges the parsed results. Fetches run concurrently with an all-complete
// join; individual failures are logged and skipped. Items whose content was
// already decoded locally (bulk generation) are not re-fetched, so local
// content survives the reconcile.
func (s *Session) populateContentMap(ctx context.Context, gen string, recs []api.Recommendation) {
	s.mu.Lock()
	var targets []api.Recommendation
	for _, r := range recs {
		if !r.IsContentGenerated {
			continue
		}
		if _, ok := s.contentMap[r.ID]; ok {
			continue
		}
		targets = append(targets, r)
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	parsed := make([]content.Content, len(targets))
	fetched := make([]bool, len(targets))

	var g errgroup.Group
	g.SetLimit(8)
	for i, r := range targets {
		g.Go(func() error {
			raw, err := s.svc.ContentLatest(ctx, r.ID)
			if err != nil {
				s.log.Warnw("content fetch failed", "id", r.ID, "error", err)
				return nil
			}
			parsed[i] = content.Parse(raw)
			fetched[i] = true
			return nil
		})
	}
	g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generationID {
		return
	}
	for i, r := range targets {
		if fetched[i] {
			s.contentMap[r.ID] = parsed[i]
		}
	}
}

// LoadBrand loads the brand's latest generation and lands on the persisted
// step for that brand, or on the inferred first step when nothing was
// persisted. The inference runs at most once per session.
func (s *Session) LoadBrand(ctx context.Context, brandID string) error {
	if brandID == "" {
		return fmt.Errorf("brand id is required")
	}

	gen, err := s.svc.LatestGeneration(ctx, brandID)
	if err != nil {
		if api.IsEmptyResult(err) {
			gen = &api.Generation{}
		} else {
			return fmt.Errorf("loading generation for %s: %w", brandID, err)
		}
	}

	recs := api.ValidRecommendations(gen.Recommendations)

	s.mu.Lock()
	s.brandID = brandID
	s.generationID = gen.GenerationID
	s.kpis = gen.KPIs
	s.dataMaturity = gen.DataMaturity
	s.all = recs
	s.working = append([]api.Recommendation(nil), recs...)
	s.contentMap = make(map[string]content.Content)

	step := StepDiscover
	if s.steps != nil {
		if persisted, ok := s.steps.GetStep(brandID); ok {
			step = Step(persisted)
			s.inferred = true
		}
	}
	if !s.inferred {
		step = InferFirstStep(recs)
		s.inferred = true
	}
	hasGeneration := gen.GenerationID != ""
	s.mu.Unlock()

	if !hasGeneration {
		s.mu.Lock()
		s.currentStep = StepDiscover
		s.mu.Unlock()
		return nil
	}

	return s.GoToStep(ctx, step)
}

// WaitForGeneration polls for a brand's live generation with bounded
// exponential backoff, for the just-submitted-generation case where the
// backend needs a moment before the generation shows up.
func (s *Session) WaitForGeneration(ctx context.Context, brandID string) (*api.Generation, error) {
	delay := s.pollDelay
	var lastErr error

	for attempt := 0; attempt < pollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		gen, err := s.svc.LatestGeneration(ctx, brandID)
		if err != nil {
			if !api.IsEmptyResult(err) {
				lastErr = err
			}
			continue
		}
		if gen.GenerationID != "" {
			return gen, nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("generation not ready after %d attempts: %w", pollAttempts, lastErr)
	}
	return nil, fmt.Errorf("generation not ready after %d attempts", pollAttempts)
}
