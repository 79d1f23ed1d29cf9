// Package workflow drives the four-step recommendation pipeline: discover
// generated recommendations, approve them, refine generated content, and
// track outcomes. It owns the in-memory recommendation collections and the
// optimistic-update discipline; authoritative state lives in the remote
// service. The UI layer renders session state but holds no workflow logic.
package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brandflow/brandflow/internal/api"
	"github.com/brandflow/brandflow/internal/config"
	"github.com/brandflow/brandflow/internal/content"
	"github.com/brandflow/brandflow/internal/logging"
)

// Step is one of the four pipeline stages.
type Step int

const (
	StepDiscover Step = 1
	StepToDo     Step = 2
	StepRefine   Step = 3
	StepTrack    Step = 4
)

func (s Step) Valid() bool {
	return s >= StepDiscover && s <= StepTrack
}

func (s Step) String() string {
	switch s {
	case StepDiscover:
		return "Discover"
	case StepToDo:
		return "To-Do"
	case StepRefine:
		return "Refine"
	case StepTrack:
		return "Track"
	default:
		return "Unknown"
	}
}

// StatusFilter is the client-side review-status filter on the discover step.
type StatusFilter string

const (
	FilterAll      StatusFilter = "all"
	FilterPending  StatusFilter = "pending_review"
	FilterApproved StatusFilter = "approved"
	FilterRejected StatusFilter = "rejected"
)

// Service is the remote recommendation service the session consumes.
// *api.Client implements it; tests inject fakes.
type Service interface {
	LatestGeneration(ctx context.Context, brandID string) (*api.Generation, error)
	RecommendationsByStep(ctx context.Context, generationID string, step int) (*api.StepResult, error)
	UpdateStatus(ctx context.Context, id string, status api.ReviewStatus) error
	GenerateContent(ctx context.Context, id string) (json.RawMessage, error)
	GenerateContentBulk(ctx context.Context, generationID string) (*api.BulkGenerateResult, error)
	Complete(ctx context.Context, id string) error
	RegenerateContent(ctx context.Context, id, feedback string) (*api.RegenerateResult, error)
	ContentLatest(ctx context.Context, id string) (json.RawMessage, error)
}

// navGuard arbitrates between explicit navigation and the reactive
// auto-loader over the same per-step data. While a manual load is in
// progress the reactive loader is a no-op; lastManual additionally
// suppresses the one redundant reactive reload that fires when the watched
// (generation, step) pair changes as a result of the manual load itself.
type navGuard struct {
	manual     bool
	manualStep Step
	lastManual Step
	token      uint64
}

// Session owns the client-side workflow state for one brand: the working
// set for the current step, the canonical all-recommendations collection
// that backs the discover-step filter, and the parsed content map. All
// collection writes happen under one mutex, at apply time, against the
// latest collection values.
type Session struct {
	svc   Service
	steps *config.StepStore
	log   *zap.SugaredLogger

	onError    func(error)
	guardGrace time.Duration
	pollDelay  time.Duration

	mu           sync.Mutex
	brandID      string
	generationID string
	kpis         []api.KPI
	dataMaturity string
	currentStep  Step
	working      []api.Recommendation
	all          []api.Recommendation
	contentMap   map[string]content.Content
	filter       StatusFilter
	guard        navGuard
	epoch        uint64
	inferred     bool

	bg sync.WaitGroup // background completion calls, tests wait on it
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithStepStore attaches the per-brand persisted step store.
func WithStepStore(store *config.StepStore) Option {
	return func(s *Session) {
		s.steps = store
	}
}

// WithErrorHandler sets the sink for background failures (completion calls
// that fail after the UI has already navigated on).
func WithErrorHandler(fn func(error)) Option {
	return func(s *Session) {
		s.onError = fn
	}
}

// WithGuardGrace overrides the guard release delay.
func WithGuardGrace(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.guardGrace = d
		}
	}
}

// NewSession creates a workflow session over svc.
func NewSession(svc Service, opts ...Option) *Session {
	s := &Session{
		svc:        svc,
		log:        logging.Nop(),
		contentMap: make(map[string]content.Content),
		filter:     FilterAll,
		guardGrace: defaultGuardGrace,
		pollDelay:  pollBaseDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) reportError(err error) {
	s.log.Warnw("background operation failed", "error", err)
	if s.onError != nil {
		s.onError(err)
	}
}

// CurrentStep returns the active pipeline step.
func (s *Session) CurrentStep() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentStep
}

// GenerationID returns the live generation id, or "" before the first load.
func (s *Session) GenerationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generationID
}

// BrandID returns the brand this session is scoped to.
func (s *Session) BrandID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brandID
}

// KPIs returns the brand KPI snapshots from the latest generation.
// DataMaturity reports the brand's data maturity as of the loaded
// generation. Cold-start brands receive implementation guides instead of
// publishable content.
func (s *Session) DataMaturity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataMaturity
}

func (s *Session) KPIs() []api.KPI {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.KPI(nil), s.kpis...)
}

// Working returns a copy of the current step's working set.
func (s *Session) Working() []api.Recommendation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Recommendation(nil), s.working...)
}

// All returns a copy of the canonical all-recommendations collection.
func (s *Session) All() []api.Recommendation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Recommendation(nil), s.all...)
}

// ContentFor returns the parsed content for a recommendation, if any.
func (s *Session) ContentFor(id string) (content.Content, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contentMap[id]
	return c, ok
}

// SetFilter changes the discover-step status filter. Purely local.
func (s *Session) SetFilter(f StatusFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
}

// Filter returns the active status filter.
func (s *Session) Filter() StatusFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Visible returns the discover-step view: the canonical collection filtered
// by the active status filter. A pure recomputation, never a fetch.
func (s *Session) Visible() []api.Recommendation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FilterByStatus(s.all, s.filter)
}

// FilterByStatus returns the subset of recs matching the filter, treating a
// missing reviewStatus as pending_review.
func FilterByStatus(recs []api.Recommendation, filter StatusFilter) []api.Recommendation {
	if filter == "" || filter == FilterAll {
		return append([]api.Recommendation(nil), recs...)
	}
	out := make([]api.Recommendation, 0, len(recs))
	for _, r := range recs {
		if string(r.EffectiveStatus()) == string(filter) {
			out = append(out, r)
		}
	}
	return out
}

// InferFirstStep picks the step reflecting the least-finished work in a
// freshly loaded generation. Runs once per session; a persisted step for
// the brand supersedes it.
func InferFirstStep(recs []api.Recommendation) Step {
	n := len(recs)
	if n == 0 {
		return StepDiscover
	}

	var approved, generated, completed, approvedNoContent int
	for _, r := range recs {
		if r.Approved() {
			approved++
			if !r.IsContentGenerated {
				approvedNoContent++
			}
		}
		if r.IsContentGenerated {
			generated++
		}
		if r.IsCompleted {
			completed++
		}
	}

	switch {
	case completed > 0 && completed < n:
		return StepRefine
	case completed == n:
		return StepTrack
	case generated > 0 && approvedNoContent > 0:
		return StepToDo
	case generated > 0:
		return StepRefine
	case approved > 0:
		return StepToDo
	default:
		return StepDiscover
	}
}

// collection helpers; callers hold s.mu

func indexByID(recs []api.Recommendation, id string) int {
	for i := range recs {
		if recs[i].ID == id {
			return i
		}
	}
	return -1
}

func deleteByID(recs []api.Recommendation, id string) []api.Recommendation {
	i := indexByID(recs, id)
	if i == -1 {
		return recs
	}
	return append(recs[:i:i], recs[i+1:]...)
}

func insertAt(recs []api.Recommendation, i int, r api.Recommendation) []api.Recommendation {
	if i < 0 || i > len(recs) {
		return append(recs, r)
	}
	recs = append(recs, api.Recommendation{})
	copy(recs[i+1:], recs[i:])
	recs[i] = r
	return recs
}

func updateByID(recs []api.Recommendation, id string, fn func(*api.Recommendation)) {
	if i := indexByID(recs, id); i != -1 {
		fn(&recs[i])
	}
}
