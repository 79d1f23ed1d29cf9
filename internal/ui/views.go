package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/brandflow/brandflow/internal/workflow"
)

func (m *Model) configView() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(m.styles.theme.Primary)).
		Render("  BrandFlow")

	themeName := m.cfg.Theme
	if themeName == "" {
		themeName = "default"
	}
	themeLine := fmt.Sprintf("  🎨  %s", m.styles.Normal.Render("Theme: "+themeName))

	var brandLine string
	if m.editingBrand {
		brandLine = fmt.Sprintf("  🏷  %s", m.styles.Normal.Render("Brand: "+m.brandInput+"▌"))
	} else {
		brand := m.cfg.BrandID
		if brand == "" {
			brand = "(not set)"
		}
		brandLine = fmt.Sprintf("  🏷  %s", m.styles.Normal.Render("Brand: "+brand))
	}

	tokenState := "set"
	if m.cfg.APIToken == "" {
		tokenState = "missing"
	}
	tokenLine := fmt.Sprintf("  🔑  %s", m.styles.Normal.Render("API token: "+tokenState))

	paneState := "metadata"
	if m.contentPane {
		paneState = "content"
	}
	paneLine := fmt.Sprintf("  📄  %s", m.styles.Normal.Render("Refine pane: "+paneState))

	content := lipgloss.JoinVertical(lipgloss.Left,
		"",
		title,
		"",
		brandLine,
		tokenLine,
		themeLine,
		paneLine,
		"",
	)

	if m.statusMessage != "" {
		errLine := m.styles.Error.Render("  ⚠  " + m.statusMessage)
		content = lipgloss.JoinVertical(lipgloss.Left, content, errLine, "")
	}

	help := m.renderHelpLine([]helpEntry{
		{"enter", "load brand"},
		{"b", "edit brand"},
		{"t", "theme"},
		{"m", "refine pane"},
		{"q", "quit"},
	})

	card := m.styles.Card.Render(content)

	return lipgloss.JoinVertical(lipgloss.Center,
		"",
		card,
		"",
		help,
	)
}

func (m *Model) loadingView() string {
	spinnerView := m.spinner.View()
	status := fmt.Sprintf("%s %s", spinnerView, m.statusMessage)

	content := m.styles.Border.Render(
		lipgloss.JoinVertical(lipgloss.Center,
			m.styles.Title.Render("Loading Brand"),
			"",
			m.styles.Normal.Render(status),
		),
	)

	help := m.renderHelpLine([]helpEntry{{"q", "cancel"}})

	return lipgloss.JoinVertical(lipgloss.Center, "", content, "", help)
}

var stepLabels = map[workflow.Step]string{
	workflow.StepDiscover: "Discover",
	workflow.StepToDo:     "To-Do",
	workflow.StepRefine:   "Refine",
	workflow.StepTrack:    "Track",
}

// stepIndicator renders the four-step breadcrumb with the current step
// highlighted.
func (m *Model) stepIndicator() string {
	current := m.session.CurrentStep()
	parts := make([]string, 0, 4)
	for step := workflow.StepDiscover; step <= workflow.StepTrack; step++ {
		label := fmt.Sprintf("%d %s", int(step), stepLabels[step])
		if step == current {
			parts = append(parts, m.styles.Selected.Render(" "+label+" "))
		} else {
			parts = append(parts, m.styles.HelpDesc.Render(" "+label+" "))
		}
	}
	return strings.Join(parts, m.styles.HelpSep.Render("›"))
}

func (m *Model) kpiSummary(maxWidth int) string {
	kpis := m.session.KPIs()
	if len(kpis) == 0 {
		return ""
	}
	parts := make([]string, 0, len(kpis))
	for _, kpi := range kpis {
		delta := kpi.Value - kpi.PreviousValue
		arrow := "→"
		if delta > 0 {
			arrow = "↑"
		} else if delta < 0 {
			arrow = "↓"
		}
		parts = append(parts, fmt.Sprintf("%s %.1f%s %s%.1f", kpi.Name, kpi.Value, kpi.Unit, arrow, delta))
	}
	return Truncate(strings.Join(parts, "  ·  "), maxWidth)
}

func (m *Model) browsingView() string {
	recs := m.visibleRecs()
	step := m.session.CurrentStep()

	// Header bar
	headerLeft := m.styles.HelpKey.Render("BrandFlow "+m.session.BrandID()) + "  " + m.stepIndicator()
	countText := m.styles.HelpDesc.Render(fmt.Sprintf("%d/%d", m.listView.Cursor()+1, len(recs)))
	if step == workflow.StepDiscover && m.session.Filter() != "" && m.session.Filter() != workflow.FilterAll {
		countText = m.styles.Highlight.Render("["+string(m.session.Filter())+"] ") + countText
	}
	if selected := len(m.listView.GetSelected()); selected > 0 {
		countText += m.styles.Highlight.Render(fmt.Sprintf("  ● %d selected", selected))
	}
	headerGap := ""
	if m.width > 0 {
		gap := m.width - lipgloss.Width(headerLeft) - lipgloss.Width(countText) - 4
		if gap > 0 {
			headerGap = strings.Repeat(" ", gap)
		}
	}
	header := m.styles.HeaderBar.Width(m.width - 1).Render(headerLeft + headerGap + countText)

	// Table
	var list string
	if len(recs) == 0 {
		list = m.styles.Normal.Render("  " + m.emptyStateText(step))
	} else {
		list = m.listView.View()
	}

	// Detail pane
	detail := ""
	if len(recs) > 0 {
		detailContent := m.detailPane(step)
		if detailContent != "" {
			divW := m.width - 1
			if divW < 1 {
				divW = 1
			}
			divider := m.styles.HelpSep.Render(strings.Repeat("─", divW))
			detail = divider + "\n" + detailContent
		}
	}

	// Status message
	var statusLine string
	if m.statusMessage != "" {
		statusLine = m.styles.Help.Render("  " + m.statusMessage)
	}

	var footer string
	if m.showHelp {
		footer = m.renderFullHelp()
	} else {
		footer = m.renderBrowsingFooter(step)
	}

	parts := []string{header, list}
	if detail != "" {
		parts = append(parts, detail)
	}
	if statusLine != "" {
		parts = append(parts, statusLine)
	}
	if footer != "" {
		parts = append(parts, footer)
	}

	content := strings.Join(parts, "\n")

	// Pad output to exactly m.height lines so the alternate screen buffer
	// repaints cleanly and doesn't leave stale content from previous frames.
	if m.height > 0 {
		rendered := strings.Split(content, "\n")
		for len(rendered) < m.height {
			rendered = append(rendered, "")
		}
		return strings.Join(rendered[:m.height], "\n")
	}
	return content
}

func (m *Model) emptyStateText(step workflow.Step) string {
	switch step {
	case workflow.StepDiscover:
		if m.session.GenerationID() == "" {
			return "No generation yet for this brand"
		}
		return "No recommendations match the filter"
	case workflow.StepToDo:
		return "Nothing approved yet. Approve recommendations on the Discover step"
	case workflow.StepRefine:
		return "No content yet. Generate content on the To-Do step"
	case workflow.StepTrack:
		return "Nothing completed yet"
	}
	return "No recommendations"
}

// detailPane renders the per-step detail below the table: metadata on
// most steps, the decoded content (or KPI summary) where it matters.
func (m *Model) detailPane(step workflow.Step) string {
	switch step {
	case workflow.StepRefine:
		rec := m.listView.GetRecommendation(m.listView.Cursor())
		if rec == nil {
			return ""
		}
		if c, ok := m.session.ContentFor(rec.ID); ok && m.contentPane {
			rendered := renderContent(c, m.styles, m.width-4)
			maxLines := m.height - 16
			if maxLines < 6 {
				maxLines = 6
			}
			lines := strings.Split(rendered, "\n")
			if len(lines) > maxLines {
				lines = append(lines[:maxLines], m.styles.Help.Render("  … press m for metadata, y to copy the full text"))
			}
			return strings.Join(lines, "\n")
		}
		return m.listView.DetailView(m.width, m.styles)

	case workflow.StepTrack:
		detail := m.listView.DetailView(m.width, m.styles)
		if summary := m.kpiSummary(m.width - 4); summary != "" {
			return m.styles.Highlight.Render(summary) + "\n" + detail
		}
		return detail

	default:
		return m.listView.DetailView(m.width, m.styles)
	}
}

func (m *Model) confirmingView() string {
	var question string
	switch m.pendingOp {
	case "generate":
		question = fmt.Sprintf("Generate content for %d approved recommendations?", len(m.session.Working()))
	case "complete":
		question = fmt.Sprintf("Mark %d recommendations as done?", len(m.pendingIDs))
	default:
		question = "Proceed?"
	}

	content := m.styles.Border.Render(
		lipgloss.JoinVertical(lipgloss.Center,
			m.styles.Title.Render("Confirm"),
			"",
			m.styles.Normal.Render(question),
		),
	)

	help := m.renderHelpLine([]helpEntry{
		{"y", "confirm"},
		{"n", "cancel"},
	})

	return lipgloss.JoinVertical(lipgloss.Center, "", content, "", help)
}

func (m *Model) workingView() string {
	spinnerView := m.spinner.View()

	content := m.styles.Border.Render(
		lipgloss.JoinVertical(lipgloss.Center,
			m.styles.Title.Render("Working"),
			"",
			fmt.Sprintf("%s %s", spinnerView, m.styles.Normal.Render(m.workingLabel)),
		),
	)

	return lipgloss.JoinVertical(lipgloss.Center, "", content)
}

func (m *Model) feedbackView() string {
	if m.feedback == nil {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Center,
		"",
		m.styles.Card.Render(m.feedback.GetForm().View()),
		"",
		m.renderHelpLine([]helpEntry{{"esc", "cancel"}}),
	)
}

func (m *Model) messageView() string {
	var icon, title string
	var titleStyle lipgloss.Style

	switch m.messageType {
	case "error":
		icon = "✗"
		title = "Error"
		titleStyle = m.styles.Error
	case "warning":
		icon = "⚠"
		title = "Partial Success"
		titleStyle = m.styles.Warning
	default:
		icon = "✓"
		title = "Success"
		titleStyle = m.styles.Success
	}

	content := m.styles.Border.Render(
		lipgloss.JoinVertical(lipgloss.Center,
			titleStyle.Render(icon+" "+title),
			"",
			m.styles.Normal.Render(m.statusMessage),
		),
	)

	help := m.renderHelpLine([]helpEntry{{"any key", "continue"}})
	return lipgloss.JoinVertical(lipgloss.Center, "", content, "", help)
}

// Help rendering

type helpEntry struct {
	key  string
	desc string
}

func (m *Model) renderHelpLine(entries []helpEntry) string {
	var parts []string
	sep := m.styles.HelpSep.Render(" · ")
	for _, e := range entries {
		parts = append(parts, m.styles.HelpKey.Render(e.key)+" "+m.styles.HelpDesc.Render(e.desc))
	}
	return strings.Join(parts, sep)
}

func (m *Model) renderBrowsingFooter(step workflow.Step) string {
	var line1 []helpEntry
	switch step {
	case workflow.StepDiscover:
		line1 = []helpEntry{
			{"j/k", "navigate"},
			{"a", "approve"},
			{"r", "reject"},
			{"d", "remove"},
			{"f", "filter"},
		}
	case workflow.StepToDo:
		line1 = []helpEntry{
			{"j/k", "navigate"},
			{"g", "generate content"},
			{"d", "remove"},
		}
	case workflow.StepRefine:
		line1 = []helpEntry{
			{"j/k", "navigate"},
			{"e", "regenerate"},
			{"y", "copy"},
			{"c", "done"},
			{"x", "select"},
			{"m", "pane"},
		}
	case workflow.StepTrack:
		line1 = []helpEntry{
			{"j/k", "navigate"},
		}
	}

	line2 := []helpEntry{
		{"1-4 h/l", "step"},
		{"R", "refresh"},
		{"t", "theme"},
		{"?", "help"},
		{"q", "quit"},
	}

	footer := m.styles.FooterBar.Width(m.width - 1).Render(
		m.renderHelpLine(line1) + "\n" + m.renderHelpLine(line2),
	)
	return footer
}

func (m *Model) renderFullHelp() string {
	sections := []struct {
		title   string
		entries []helpEntry
	}{
		{"Navigation", []helpEntry{
			{"j / ↓", "move down"},
			{"k / ↑", "move up"},
			{"h / ←", "previous step"},
			{"l / →", "next step"},
			{"1-4", "jump to step"},
			{"x / space", "toggle select"},
		}},
		{"Discover", []helpEntry{
			{"a", "approve"},
			{"r", "reject"},
			{"d", "remove"},
			{"f", "cycle status filter"},
		}},
		{"To-Do", []helpEntry{
			{"g", "generate content for approved"},
		}},
		{"Refine", []helpEntry{
			{"e", "regenerate with feedback"},
			{"y", "copy content to clipboard"},
			{"c", "mark done (selection-aware)"},
			{"m", "toggle content/metadata pane"},
			{"g", "generate for this item"},
		}},
		{"General", []helpEntry{
			{"R", "refresh current step"},
			{"t", "cycle theme"},
			{"?", "toggle this help"},
			{"q / ctrl+c", "quit"},
		}},
	}

	var lines []string
	for _, sec := range sections {
		lines = append(lines, m.styles.HelpKey.Render("  "+sec.title))
		for _, e := range sec.entries {
			lines = append(lines, fmt.Sprintf("    %s  %s",
				m.styles.HelpKey.Render(fmt.Sprintf("%-12s", e.key)),
				m.styles.HelpDesc.Render(e.desc),
			))
		}
	}

	return m.styles.FooterBar.Width(m.width - 1).Render(strings.Join(lines, "\n"))
}
