// Package content decodes the versioned envelope wrapped around a
// recommendation's generated content. Payloads arrive from the backend in
// whatever shape the generator produced: a parsed object, a JSON string, a
// double-encoded JSON string, or a truncated fragment from a stream that was
// cut off mid-write.
package content

// Content is the decoded form of one generated-content payload. Exactly one
// variant exists per version tag; render sites dispatch with a type switch.
type Content interface {
	// Version returns the envelope version tag ("1.0" ... "4.0",
	// "guide_v1"), or "" for the raw fallback.
	Version() string
}

// Publishable is a piece of ready-to-use written content.
type Publishable struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// CollaborationEmail is outreach copy attached to a v2.0 envelope.
type CollaborationEmail struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

// V1 is the original envelope: a single block of paste-ready text.
type V1 struct {
	WhatToPublishOrSend struct {
		ReadyToPaste string `json:"readyToPaste"`
	} `json:"whatToPublishOrSend"`
}

func (V1) Version() string { return "1.0" }

// V2 adds an optional collaboration email and a target source.
type V2 struct {
	CollaborationEmail *CollaborationEmail `json:"collaborationEmail,omitempty"`
	PublishableContent Publishable         `json:"publishableContent"`
	TargetSource       string              `json:"targetSource,omitempty"`
}

func (V2) Version() string { return "2.0" }

// V3 replaces the email with a list of inputs the user must supply.
type V3 struct {
	PublishableContent Publishable `json:"publishableContent"`
	RequiredInputs     []string    `json:"requiredInputs,omitempty"`
}

func (V3) Version() string { return "3.0" }

// Section is one titled block of a v4.0 document.
type Section struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	SectionType string `json:"sectionType"`
}

// V4 is the sectioned document format.
type V4 struct {
	ContentTitle   string    `json:"contentTitle"`
	Sections       []Section `json:"sections"`
	CallToAction   string    `json:"callToAction,omitempty"`
	RequiredInputs []string  `json:"requiredInputs,omitempty"`
}

func (V4) Version() string { return "4.0" }

// GuidePhase is one phase of a guide's implementation plan.
type GuidePhase struct {
	Phase string   `json:"phase"`
	Steps []string `json:"steps"`
}

// Guide is the cold-start variant: an implementation guide instead of
// publishable content.
type Guide struct {
	Summary            string       `json:"summary"`
	Prerequisites      []string     `json:"prerequisites,omitempty"`
	ImplementationPlan []GuidePhase `json:"implementationPlan,omitempty"`
	SuccessCriteria    []string     `json:"successCriteria,omitempty"`
	IfAlreadyDone      string       `json:"ifAlreadyDone,omitempty"`
	CommonMistakes     []string     `json:"commonMistakes,omitempty"`
}

func (Guide) Version() string { return "guide_v1" }

// RawFallback carries a payload nothing else could decode. It renders as
// plain text; partial data beats total loss, and this is the floor.
type RawFallback struct {
	Text string
}

func (RawFallback) Version() string { return "" }
