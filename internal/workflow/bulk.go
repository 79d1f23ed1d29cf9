package workflow

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brandflow/brandflow/internal/api"
	"github.com/brandflow/brandflow/internal/content"
)

// BulkResult aggregates a fan-out operation over many recommendations.
// Partial failure is not an error: the operation succeeds as long as at
// least one item went through, and the per-item failures ride along here.
type BulkResult struct {
	Total      int
	Successful int
	Failed     int
	Errors     []error
}

// BulkGenerateContent runs one remote bulk-generate call covering all
// eligible items, decodes each successful payload into the content map, and
// advances to the refine step when anything succeeded. The refine load then
// reconciles item fields with the service while the locally decoded content
// is kept.
func (s *Session) BulkGenerateContent(ctx context.Context) (*BulkResult, error) {
	s.mu.Lock()
	gen := s.generationID
	s.mu.Unlock()
	if gen == "" {
		return nil, fmt.Errorf("no generation loaded")
	}

	res, err := s.svc.GenerateContentBulk(ctx, gen)
	if err != nil {
		if api.IsTimeout(err) {
			// The backend may have finished the work despite our timeout;
			// one follow-up fetch of the destination step before giving up
			if recovered := s.recoverAfterTimeout(ctx, StepRefine); recovered != nil {
				return recovered, nil
			}
		}
		return nil, fmt.Errorf("bulk content generation: %w", err)
	}

	result := &BulkResult{Total: res.Total, Successful: res.Successful, Failed: res.Failed}

	s.mu.Lock()
	for _, item := range res.Results {
		if !item.Success {
			result.Errors = append(result.Errors, fmt.Errorf("%s: %s", item.RecommendationID, item.Error))
			continue
		}
		s.contentMap[item.RecommendationID] = content.Parse(item.Content)
		mark := func(r *api.Recommendation) { r.IsContentGenerated = true }
		updateByID(s.working, item.RecommendationID, mark)
		updateByID(s.all, item.RecommendationID, mark)
	}
	s.mu.Unlock()

	if res.Successful == 0 {
		return result, fmt.Errorf("content generation failed for all %d recommendations", res.Total)
	}

	if result.Failed > 0 {
		s.log.Warnw("bulk generation partially failed",
			"successful", result.Successful, "failed", result.Failed)
	}

	if err := s.GoToStep(ctx, StepRefine); err != nil {
		s.log.Warnw("refine load after bulk generation failed", "error", err)
	}
	return result, nil
}

// BulkComplete completes many recommendations concurrently with an
// all-complete join; a single id's failure never blocks the others. The
// step advances when at least one completion landed.
func (s *Session) BulkComplete(ctx context.Context, ids []string) (*BulkResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("no recommendations selected")
	}

	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(8)
	for i, id := range ids {
		g.Go(func() error {
			if err := s.svc.Complete(ctx, id); err != nil {
				errs[i] = fmt.Errorf("%s: %w", id, err)
			}
			return nil
		})
	}
	g.Wait()

	result := &BulkResult{Total: len(ids)}
	now := api.FlexibleTime{Time: time.Now()}

	s.mu.Lock()
	for i, id := range ids {
		if errs[i] != nil {
			result.Failed++
			result.Errors = append(result.Errors, errs[i])
			continue
		}
		result.Successful++
		complete := func(r *api.Recommendation) {
			r.IsCompleted = true
			r.CompletedAt = &now
			r.SetReviewStatus(api.StatusApproved)
		}
		updateByID(s.working, id, complete)
		updateByID(s.all, id, complete)
	}
	s.mu.Unlock()

	if result.Successful == 0 {
		allTimeouts := true
		for _, err := range result.Errors {
			if !api.IsTimeout(err) {
				allTimeouts = false
				break
			}
		}
		if allTimeouts {
			if recovered := s.recoverAfterTimeout(ctx, StepTrack); recovered != nil {
				return recovered, nil
			}
		}
		return result, fmt.Errorf("all %d completions failed", result.Total)
	}

	if result.Failed > 0 {
		s.log.Warnw("bulk completion partially failed",
			"successful", result.Successful, "failed", result.Failed)
	}

	if err := s.GoToStep(ctx, StepTrack); err != nil {
		s.log.Warnw("track load after bulk completion failed", "error", err)
	}
	return result, nil
}

// recoverAfterTimeout makes the one best-effort fetch of the destination
// step after a timed-out bulk operation. If the service shows the work
// landed anyway, the session navigates forward and the operation reports
// success; otherwise nil, the step cursor stays put, and the caller
// surfaces the original failure.
func (s *Session) recoverAfterTimeout(ctx context.Context, step Step) *BulkResult {
	s.mu.Lock()
	gen := s.generationID
	s.mu.Unlock()

	recs, err := s.fetchStep(ctx, gen, step)
	if err != nil {
		s.log.Warnw("timeout recovery fetch failed", "step", step, "error", err)
		return nil
	}

	done := 0
	for _, r := range recs {
		switch step {
		case StepRefine:
			if r.IsContentGenerated {
				done++
			}
		case StepTrack:
			if r.IsCompleted {
				done++
			}
		}
	}
	if done == 0 {
		return nil
	}

	s.log.Infow("bulk operation recovered after timeout", "step", step, "items", done)
	if err := s.GoToStep(ctx, step); err != nil {
		s.log.Warnw("navigation after timeout recovery failed", "step", step, "error", err)
	}
	return &BulkResult{Total: done, Successful: done}
}
