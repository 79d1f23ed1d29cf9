package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/brandflow/brandflow/internal/api"
	"github.com/brandflow/brandflow/internal/content"
)

// SetStatus applies a review-status change optimistically, then reconciles
// with the service. A change to rejected or removed deletes the item from
// both the working set and the canonical collection in the same tick. Every
// optimistic change, removals included, is rolled back if the remote update
// fails.
func (s *Session) SetStatus(ctx context.Context, id string, status api.ReviewStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid review status %q", status)
	}

	s.mu.Lock()
	wIdx := indexByID(s.working, id)
	aIdx := indexByID(s.all, id)
	if wIdx == -1 && aIdx == -1 {
		s.mu.Unlock()
		return fmt.Errorf("recommendation %s not in working set", id)
	}

	var undo func()
	if status == api.StatusRemoved || status == api.StatusRejected {
		var wRec, aRec api.Recommendation
		if wIdx != -1 {
			wRec = s.working[wIdx]
			s.working = deleteByID(s.working, id)
		}
		if aIdx != -1 {
			aRec = s.all[aIdx]
			s.all = deleteByID(s.all, id)
		}
		undo = func() {
			if wIdx != -1 {
				s.working = insertAt(s.working, wIdx, wRec)
			}
			if aIdx != -1 {
				s.all = insertAt(s.all, aIdx, aRec)
			}
		}
	} else {
		var prev api.ReviewStatus
		if aIdx != -1 {
			prev = s.all[aIdx].ReviewStatus
		} else {
			prev = s.working[wIdx].ReviewStatus
		}
		updateByID(s.working, id, func(r *api.Recommendation) { r.SetReviewStatus(status) })
		updateByID(s.all, id, func(r *api.Recommendation) { r.SetReviewStatus(status) })
		undo = func() {
			updateByID(s.working, id, func(r *api.Recommendation) { r.SetReviewStatus(prev) })
			updateByID(s.all, id, func(r *api.Recommendation) { r.SetReviewStatus(prev) })
		}
	}
	s.mu.Unlock()

	if err := s.svc.UpdateStatus(ctx, id, status); err != nil {
		s.mu.Lock()
		undo()
		s.mu.Unlock()
		return fmt.Errorf("status update for %s failed: %w", id, err)
	}
	return nil
}

// MarkCompleted finalizes a recommendation and transitions straight to the
// track step, merging the optimistically completed item into whatever the
// service returns there. The remote completion call runs in the background
// after the navigation; a hidden failure evicts the optimistic item and is
// reported through the session's error handler without disturbing
// navigation state.
func (s *Session) MarkCompleted(ctx context.Context, id string) error {
	s.mu.Lock()
	wIdx := indexByID(s.working, id)
	aIdx := indexByID(s.all, id)
	if wIdx == -1 && aIdx == -1 {
		s.mu.Unlock()
		return fmt.Errorf("recommendation %s not in working set", id)
	}

	var rec api.Recommendation
	if wIdx != -1 {
		rec = s.working[wIdx]
	} else {
		rec = s.all[aIdx]
	}
	if rec.IsCompleted {
		s.mu.Unlock()
		return fmt.Errorf("recommendation %s is already completed", id)
	}
	if !rec.IsContentGenerated {
		s.mu.Unlock()
		return fmt.Errorf("recommendation %s has no generated content", id)
	}

	now := api.FlexibleTime{Time: time.Now()}
	complete := func(r *api.Recommendation) {
		r.IsCompleted = true
		r.CompletedAt = &now
		r.SetReviewStatus(api.StatusApproved)
	}
	updateByID(s.working, id, complete)
	updateByID(s.all, id, complete)

	optimistic := rec
	complete(&optimistic)
	s.mu.Unlock()

	// Navigate first; the latency of the completion call hides behind it.
	if err := s.GoToStep(ctx, StepTrack); err != nil {
		s.log.Warnw("track load after completion failed", "id", id, "error", err)
	}

	s.mu.Lock()
	if s.currentStep == StepTrack && indexByID(s.working, id) == -1 {
		s.working = append(s.working, optimistic)
	}
	s.mu.Unlock()

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		// Detached from the caller's context: the user may navigate away
		// before this lands
		bgCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.svc.Complete(bgCtx, id); err != nil {
			s.mu.Lock()
			s.working = deleteByID(s.working, id)
			revert := func(r *api.Recommendation) {
				r.IsCompleted = false
				r.CompletedAt = nil
			}
			updateByID(s.all, id, revert)
			s.mu.Unlock()
			s.reportError(fmt.Errorf("completing %s failed: %w", id, err))
		}
	}()

	return nil
}

// RegenerateContent regenerates one recommendation's content with user
// feedback. Policy caps regeneration at one retry per recommendation; the
// session enforces it client-side and the backend enforces it again.
func (s *Session) RegenerateContent(ctx context.Context, id, feedback string) error {
	s.mu.Lock()
	idx := indexByID(s.working, id)
	if idx == -1 {
		s.mu.Unlock()
		return fmt.Errorf("recommendation %s not in working set", id)
	}
	if s.working[idx].RegenRetry >= 1 {
		s.mu.Unlock()
		return fmt.Errorf("recommendation %s already used its regeneration retry", id)
	}
	s.mu.Unlock()

	res, err := s.svc.RegenerateContent(ctx, id, feedback)
	if err != nil {
		return fmt.Errorf("regenerating content for %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.contentMap[id] = content.Parse(res.Content)
	bump := func(r *api.Recommendation) {
		r.RegenRetry = res.RegenRetry
		r.IsContentGenerated = true
	}
	updateByID(s.working, id, bump)
	updateByID(s.all, id, bump)
	return nil
}

// GenerateContent generates content for a single recommendation and records
// it in the content map.
func (s *Session) GenerateContent(ctx context.Context, id string) error {
	raw, err := s.svc.GenerateContent(ctx, id)
	if err != nil {
		return fmt.Errorf("generating content for %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.contentMap[id] = content.Parse(raw)
	mark := func(r *api.Recommendation) { r.IsContentGenerated = true }
	updateByID(s.working, id, mark)
	updateByID(s.all, id, mark)
	return nil
}
