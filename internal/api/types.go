package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReviewStatus is the review lifecycle state of a recommendation. It is the
// single source of truth for approval; the IsApproved flag is derived.
type ReviewStatus string

const (
	StatusPendingReview ReviewStatus = "pending_review"
	StatusApproved      ReviewStatus = "approved"
	StatusRejected      ReviewStatus = "rejected"
	StatusRemoved       ReviewStatus = "removed"
)

// Valid reports whether s is one of the known review statuses.
func (s ReviewStatus) Valid() bool {
	switch s {
	case StatusPendingReview, StatusApproved, StatusRejected, StatusRemoved:
		return true
	}
	return false
}

// MinIDLength is the shortest recommendation id the client will keep.
// The backend occasionally emits placeholder rows with empty or stub ids;
// those are dropped on decode rather than carried into the working set.
const MinIDLength = 6

// FlexibleTime is a time.Time that can parse multiple date formats
type FlexibleTime struct {
	time.Time
}

// UnmarshalJSON implements custom JSON unmarshaling for FlexibleTime
func (ft *FlexibleTime) UnmarshalJSON(data []byte) error {
	str := string(data)
	if str == "null" {
		return nil
	}
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, str); err == nil {
			ft.Time = t
			return nil
		}
	}

	return fmt.Errorf("unable to parse time: %s", str)
}

// MarshalJSON implements custom JSON marshaling
func (ft FlexibleTime) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", ft.Format(time.RFC3339))), nil
}

// Recommendation is one generated suggestion for improving a brand metric.
// Action and the descriptive metadata are immutable after creation; the
// review/content/completion flags carry the client-side lifecycle.
type Recommendation struct {
	ID                 string        `json:"id"`
	Action             string        `json:"action"`
	KPI                string        `json:"kpi"`
	CitationSource     string        `json:"citationSource"`
	Effort             string        `json:"effort"`
	Timeline           string        `json:"timeline"`
	ReviewStatus       ReviewStatus  `json:"reviewStatus"`
	IsApproved         bool          `json:"isApproved"`
	IsContentGenerated bool          `json:"isContentGenerated"`
	IsCompleted        bool          `json:"isCompleted"`
	CompletedAt        *FlexibleTime `json:"completedAt,omitempty"`
	KPIBeforeValue     float64       `json:"kpiBeforeValue"`
	KPIAfterValue      float64       `json:"kpiAfterValue"`
	VisibilityScore    float64       `json:"visibilityScore"`
	SOA                float64       `json:"soa"`
	Sentiment          string        `json:"sentiment"`
	RegenRetry         int           `json:"regenRetry"`
}

// EffectiveStatus returns the review status, defaulting an absent value to
// pending_review.
func (r *Recommendation) EffectiveStatus() ReviewStatus {
	if r.ReviewStatus == "" {
		return StatusPendingReview
	}
	return r.ReviewStatus
}

// SetReviewStatus updates the status and keeps the derived IsApproved flag
// in sync. All status writes must go through here so the two never diverge.
func (r *Recommendation) SetReviewStatus(s ReviewStatus) {
	r.ReviewStatus = s
	r.IsApproved = s == StatusApproved
}

// Approved reports whether the recommendation is approved.
func (r *Recommendation) Approved() bool {
	return r.EffectiveStatus() == StatusApproved
}

// ValidRecommendations drops entries with malformed or too-short ids and
// normalizes the derived approval flag against reviewStatus.
func ValidRecommendations(recs []Recommendation) []Recommendation {
	out := make([]Recommendation, 0, len(recs))
	for _, r := range recs {
		if len(r.ID) < MinIDLength {
			continue
		}
		r.IsApproved = r.EffectiveStatus() == StatusApproved
		out = append(out, r)
	}
	return out
}

// KPI is a brand-level metric snapshot returned with a generation.
type KPI struct {
	Name          string  `json:"name"`
	Value         float64 `json:"value"`
	PreviousValue float64 `json:"previousValue"`
	Unit          string  `json:"unit,omitempty"`
}

// Generation is one run of the recommendation-producing process for a brand.
type Generation struct {
	GenerationID    string           `json:"generationId"`
	Recommendations []Recommendation `json:"recommendations"`
	KPIs            []KPI            `json:"kpis"`
	DataMaturity    string           `json:"dataMaturity,omitempty"`
}

// StepResult is the per-step recommendation listing.
type StepResult struct {
	Recommendations []Recommendation `json:"recommendations"`
	DataMaturity    string           `json:"dataMaturity,omitempty"`
}

// BulkGenerateItem is one per-recommendation outcome of a bulk content
// generation call. Content may be a JSON object, a JSON string, or a
// double-encoded string; it is kept raw and handed to the content parser.
type BulkGenerateItem struct {
	RecommendationID string          `json:"recommendationId"`
	Success          bool            `json:"success"`
	Content          json.RawMessage `json:"content,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// BulkGenerateResult aggregates a bulk content generation run.
type BulkGenerateResult struct {
	Total      int                `json:"total"`
	Successful int                `json:"successful"`
	Failed     int                `json:"failed"`
	Results    []BulkGenerateItem `json:"results"`
}

// RegenerateResult is the response to a regenerate-with-feedback call.
type RegenerateResult struct {
	Content    json.RawMessage `json:"content"`
	RegenRetry int             `json:"regenRetry"`
}

// envelope is the uniform {success, data, error} wrapper every service
// response uses.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}
