package ui

import (
	"fmt"
	"strings"

	"github.com/brandflow/brandflow/internal/content"
)

// renderContent renders a decoded content payload for the detail pane.
// Each envelope version gets its own layout; anything undecodable falls
// back to plain text.
func renderContent(c content.Content, styles Styles, maxWidth int) string {
	if c == nil {
		return ""
	}
	if maxWidth < 20 {
		maxWidth = 20
	}

	var lines []string
	add := func(s string) {
		lines = append(lines, Truncate(s, maxWidth))
	}

	switch v := c.(type) {
	case content.V1:
		add(styles.Title.Render("Ready to paste"))
		for _, l := range strings.Split(v.WhatToPublishOrSend.ReadyToPaste, "\n") {
			add(styles.Normal.Render(l))
		}

	case content.V2:
		if v.PublishableContent.Title != "" {
			add(styles.Title.Render(v.PublishableContent.Title))
		}
		if v.TargetSource != "" {
			add(styles.Help.Render("target: " + v.TargetSource))
		}
		for _, l := range strings.Split(v.PublishableContent.Content, "\n") {
			add(styles.Normal.Render(l))
		}
		if v.CollaborationEmail != nil {
			add("")
			add(styles.Highlight.Render("Outreach email"))
			if v.CollaborationEmail.Subject != "" {
				add(styles.Normal.Render("Subject: " + v.CollaborationEmail.Subject))
			}
			for _, l := range strings.Split(v.CollaborationEmail.Body, "\n") {
				add(styles.Normal.Render(l))
			}
		}

	case content.V3:
		if v.PublishableContent.Title != "" {
			add(styles.Title.Render(v.PublishableContent.Title))
		}
		for _, l := range strings.Split(v.PublishableContent.Content, "\n") {
			add(styles.Normal.Render(l))
		}
		if len(v.RequiredInputs) > 0 {
			add("")
			add(styles.Warning.Render("Fill in before publishing:"))
			for _, input := range v.RequiredInputs {
				add(styles.Normal.Render("  • " + input))
			}
		}

	case content.V4:
		if v.ContentTitle != "" {
			add(styles.Title.Render(v.ContentTitle))
		}
		for _, sec := range v.Sections {
			add("")
			add(styles.Highlight.Render(sec.Title))
			for _, l := range strings.Split(sec.Content, "\n") {
				add(styles.Normal.Render(l))
			}
		}
		if v.CallToAction != "" {
			add("")
			add(styles.Success.Render(v.CallToAction))
		}
		if len(v.RequiredInputs) > 0 {
			add("")
			add(styles.Warning.Render("Fill in before publishing:"))
			for _, input := range v.RequiredInputs {
				add(styles.Normal.Render("  • " + input))
			}
		}

	case content.Guide:
		add(styles.Title.Render("Implementation guide"))
		for _, l := range strings.Split(v.Summary, "\n") {
			add(styles.Normal.Render(l))
		}
		if len(v.Prerequisites) > 0 {
			add("")
			add(styles.Highlight.Render("Prerequisites"))
			for _, p := range v.Prerequisites {
				add(styles.Normal.Render("  • " + p))
			}
		}
		for _, phase := range v.ImplementationPlan {
			add("")
			add(styles.Highlight.Render(phase.Phase))
			for i, step := range phase.Steps {
				add(styles.Normal.Render(fmt.Sprintf("  %d. %s", i+1, step)))
			}
		}
		if len(v.SuccessCriteria) > 0 {
			add("")
			add(styles.Highlight.Render("Success criteria"))
			for _, sc := range v.SuccessCriteria {
				add(styles.Normal.Render("  ✓ " + sc))
			}
		}
		if v.IfAlreadyDone != "" {
			add("")
			add(styles.Help.Render("Already done? " + v.IfAlreadyDone))
		}
		if len(v.CommonMistakes) > 0 {
			add("")
			add(styles.Warning.Render("Common mistakes"))
			for _, cm := range v.CommonMistakes {
				add(styles.Normal.Render("  ⚠ " + cm))
			}
		}

	case content.RawFallback:
		for _, l := range strings.Split(v.Text, "\n") {
			add(styles.Normal.Render(l))
		}

	default:
		add(styles.Help.Render("(no preview for this content format)"))
	}

	return strings.Join(lines, "\n")
}

// contentPlainText flattens a content payload to plain text for the
// clipboard.
func contentPlainText(c content.Content) string {
	switch v := c.(type) {
	case content.V1:
		return v.WhatToPublishOrSend.ReadyToPaste

	case content.V2:
		var b strings.Builder
		if v.PublishableContent.Title != "" {
			b.WriteString(v.PublishableContent.Title + "\n\n")
		}
		b.WriteString(v.PublishableContent.Content)
		if v.CollaborationEmail != nil {
			b.WriteString("\n\n---\n")
			if v.CollaborationEmail.Subject != "" {
				b.WriteString("Subject: " + v.CollaborationEmail.Subject + "\n\n")
			}
			b.WriteString(v.CollaborationEmail.Body)
		}
		return b.String()

	case content.V3:
		var b strings.Builder
		if v.PublishableContent.Title != "" {
			b.WriteString(v.PublishableContent.Title + "\n\n")
		}
		b.WriteString(v.PublishableContent.Content)
		return b.String()

	case content.V4:
		var b strings.Builder
		if v.ContentTitle != "" {
			b.WriteString(v.ContentTitle + "\n")
		}
		for _, sec := range v.Sections {
			b.WriteString("\n## " + sec.Title + "\n")
			b.WriteString(sec.Content + "\n")
		}
		if v.CallToAction != "" {
			b.WriteString("\n" + v.CallToAction + "\n")
		}
		return b.String()

	case content.Guide:
		var b strings.Builder
		b.WriteString(v.Summary + "\n")
		for _, phase := range v.ImplementationPlan {
			b.WriteString("\n" + phase.Phase + "\n")
			for i, step := range phase.Steps {
				b.WriteString(fmt.Sprintf("%d. %s\n", i+1, step))
			}
		}
		return b.String()

	case content.RawFallback:
		return v.Text
	}
	return ""
}
