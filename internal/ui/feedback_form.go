package ui

import (
	"github.com/charmbracelet/huh"
)

// FeedbackForm collects regeneration feedback for one recommendation
// using Huh
type FeedbackForm struct {
	form   *huh.Form
	recID  string
	result *FeedbackResult
}

// FeedbackResult contains the submitted feedback
type FeedbackResult struct {
	Tone     string
	Feedback string
}

// NewFeedbackForm creates a new feedback form for a recommendation
func NewFeedbackForm(recID string) *FeedbackForm {
	result := &FeedbackResult{}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("What should change?").
				Options(
					huh.NewOption("Tone and voice", "tone"),
					huh.NewOption("Too long, tighten it", "shorten"),
					huh.NewOption("Too short, expand it", "expand"),
					huh.NewOption("Factual corrections", "facts"),
					huh.NewOption("Something else", "other"),
				).
				Value(&result.Tone),

			huh.NewText().
				Title("Feedback").
				Placeholder("Tell the generator what to fix...").
				CharLimit(500).
				Value(&result.Feedback),
		),
	)

	return &FeedbackForm{
		form:   form,
		recID:  recID,
		result: result,
	}
}

// RecommendationID returns the recommendation this form edits
func (ff *FeedbackForm) RecommendationID() string {
	return ff.recID
}

// Result returns the submitted values
func (ff *FeedbackForm) Result() *FeedbackResult {
	return ff.result
}

// FeedbackText returns the combined feedback string sent to the backend
func (ff *FeedbackForm) FeedbackText() string {
	if ff.result.Tone != "" && ff.result.Tone != "other" {
		return "[" + ff.result.Tone + "] " + ff.result.Feedback
	}
	return ff.result.Feedback
}

// GetForm returns the underlying Huh form for Bubble Tea integration
func (ff *FeedbackForm) GetForm() *huh.Form {
	return ff.form
}
