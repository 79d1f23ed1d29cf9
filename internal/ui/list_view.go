package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/brandflow/brandflow/internal/api"
)

type ListView struct {
	table       table.Model
	recs        []api.Recommendation
	cursor      int
	selected    map[int]bool
	width       int
	height      int
	visibleRows int // number of data rows visible (excluding header)

	// Styles for custom rendering
	headerStyle   lipgloss.Style
	cellStyle     lipgloss.Style
	selectedStyle lipgloss.Style
	columns       []table.Column
}

func listColumns(width int) []table.Column {
	// Each cell has Padding(0,1) adding 2 chars per column (7 columns = 14 extra).
	// Subtract 2 more to avoid hitting exact terminal width (causes implicit wraps).
	fixedWidth := 2 + 12 + 14 + 8 + 10 + 9 // non-action columns
	padding := 7*2 + 2
	actionWidth := width - fixedWidth - padding
	if actionWidth < 20 {
		actionWidth = 20
	}
	return []table.Column{
		{Title: " ", Width: 2},
		{Title: "Status", Width: 12},
		{Title: "KPI", Width: 14},
		{Title: "Effort", Width: 8},
		{Title: "Timeline", Width: 10},
		{Title: "Content", Width: 9},
		{Title: "Action", Width: actionWidth},
	}
}

func NewListView(width, height int) ListView {
	columns := listColumns(width)

	headerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	selectedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	// Reserve space for: header(2) + divider(1) + detail pane(5) + status(1) + footer(4)
	visibleRows := height - 13
	// Subtract 2 for the table header (text + border)
	visibleRows -= 2
	if visibleRows < 3 {
		visibleRows = 3
	}

	// Still create the table for compatibility but we won't use its View()
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(visibleRows+2),
		table.WithFocused(true),
	)

	return ListView{
		table:         t,
		selected:      make(map[int]bool),
		width:         width,
		height:        height,
		visibleRows:   visibleRows,
		headerStyle:   headerStyle,
		cellStyle:     cellStyle,
		selectedStyle: selectedStyle,
		columns:       columns,
	}
}

// UpdateTableStyles updates the styles to match the current theme
func (lv *ListView) UpdateTableStyles(theme Theme) {
	lv.headerStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(theme.Subtle)).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color(theme.Primary))
	lv.selectedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(theme.Background)).
		Background(lipgloss.Color(theme.Primary)).
		Bold(false)

	// Keep the bubbles table in sync for any code that still uses it
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(theme.Subtle)).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color(theme.Primary))
	s.Selected = s.Selected.
		Foreground(lipgloss.Color(theme.Background)).
		Background(lipgloss.Color(theme.Primary)).
		Bold(false)
	lv.table.SetStyles(s)
}

func (lv *ListView) SetRecommendations(recs []api.Recommendation) {
	lv.recs = recs
	if lv.cursor >= len(recs) {
		lv.cursor = len(recs) - 1
	}
	if lv.cursor < 0 {
		lv.cursor = 0
	}
	lv.updateRows()
}

func (lv *ListView) updateRows() {
	rows := make([]table.Row, len(lv.recs))
	for i, rec := range lv.recs {
		sel := " "
		if lv.selected[i] {
			sel = "●"
		}

		statusText := runewidth.FillRight(getStatusText(&rec), 12)
		kpi := Truncate(rec.KPI, 14)
		effort := Truncate(rec.Effort, 8)
		timeline := Truncate(rec.Timeline, 10)
		contentText := getContentText(&rec)
		action := Truncate(rec.Action, lv.width-70)

		rows[i] = table.Row{sel, statusText, kpi, effort, timeline, contentText, action}
	}
	lv.table.SetRows(rows)
}

func Truncate(s string, maxLen int) string {
	if runewidth.StringWidth(s) > maxLen {
		return runewidth.Truncate(s, maxLen, "…")
	}
	return s
}

func getStatusText(rec *api.Recommendation) string {
	if rec.IsCompleted {
		return "✅ Done"
	}
	switch rec.EffectiveStatus() {
	case api.StatusApproved:
		return "👍 Approved"
	case api.StatusRejected:
		return "👎 Rejected"
	case api.StatusRemoved:
		return "🗑  Removed"
	default:
		return "· Pending"
	}
}

func getContentText(rec *api.Recommendation) string {
	if rec.IsContentGenerated {
		return "📝 Ready"
	}
	return "  —"
}

func getSentimentText(sentiment string) string {
	switch strings.ToLower(sentiment) {
	case "positive":
		return "🟢 positive"
	case "negative":
		return "🔴 negative"
	case "neutral":
		return "🟡 neutral"
	default:
		return sentiment
	}
}

// detailPaneHeight is the fixed number of lines the detail pane always occupies.
const detailPaneHeight = 5

// DetailView renders a detail pane for the recommendation under the cursor,
// padded to a fixed height.
func (lv *ListView) DetailView(width int, styles Styles) string {
	rec := lv.GetRecommendation(lv.cursor)
	if rec == nil {
		return ""
	}

	maxWidth := width - 4
	if maxWidth < 20 {
		maxWidth = 20
	}

	var lines []string

	lines = append(lines, styles.Highlight.Render(Truncate(rec.Action, maxWidth)))

	var meta []string
	if rec.KPI != "" {
		meta = append(meta, "kpi:"+rec.KPI)
	}
	if rec.Effort != "" {
		meta = append(meta, "effort:"+rec.Effort)
	}
	if rec.Timeline != "" {
		meta = append(meta, "timeline:"+rec.Timeline)
	}
	if rec.Sentiment != "" {
		meta = append(meta, getSentimentText(rec.Sentiment))
	}
	if len(meta) > 0 {
		lines = append(lines, styles.Normal.Render(Truncate(strings.Join(meta, " · "), maxWidth)))
	}

	if rec.CitationSource != "" {
		lines = append(lines, styles.Help.Render(Truncate("cited: "+rec.CitationSource, maxWidth)))
	}

	if rec.IsCompleted {
		impact := fmt.Sprintf("%.1f → %.1f", rec.KPIBeforeValue, rec.KPIAfterValue)
		if rec.CompletedAt != nil && !rec.CompletedAt.IsZero() {
			impact += "  completed " + rec.CompletedAt.Format("2006-01-02")
		}
		lines = append(lines, styles.Success.Render(Truncate(impact, maxWidth)))
	}

	for len(lines) < detailPaneHeight {
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

func (lv ListView) Cursor() int {
	return lv.cursor
}

func (lv *ListView) SetCursor(pos int) {
	if pos >= 0 && pos < len(lv.recs) {
		lv.cursor = pos
		lv.table.SetCursor(pos)
	}
}

func (lv *ListView) MoveCursor(delta int) {
	newPos := lv.cursor + delta
	if newPos >= 0 && newPos < len(lv.recs) {
		lv.cursor = newPos
		lv.table.SetCursor(newPos)
	}
}

func (lv *ListView) ToggleSelection() {
	if lv.cursor < len(lv.recs) {
		lv.selected[lv.cursor] = !lv.selected[lv.cursor]
		lv.updateRows()
	}
}

func (lv *ListView) ClearSelection() {
	lv.selected = make(map[int]bool)
	lv.updateRows()
}

func (lv ListView) IsSelected(index int) bool {
	return lv.selected[index]
}

func (lv ListView) GetSelected() []int {
	var indices []int
	for i, selected := range lv.selected {
		if selected {
			indices = append(indices, i)
		}
	}
	return indices
}

func (lv ListView) GetRecommendation(index int) *api.Recommendation {
	if index >= 0 && index < len(lv.recs) {
		return &lv.recs[index]
	}
	return nil
}

// renderCell renders a single cell value with the given column width.
func (lv *ListView) renderCell(value string, colWidth int) string {
	style := lipgloss.NewStyle().Width(colWidth).MaxWidth(colWidth).Inline(true)
	return lv.cellStyle.Render(style.Render(runewidth.Truncate(value, colWidth, "…")))
}

// View renders the table with our own scrolling logic, bypassing the
// bubbles table viewport which has broken YOffset calculations.
func (lv ListView) View() string {
	rows := lv.table.Rows()

	// Render header
	headerCells := make([]string, 0, len(lv.columns))
	for _, col := range lv.columns {
		if col.Width <= 0 {
			continue
		}
		style := lipgloss.NewStyle().Width(col.Width).MaxWidth(col.Width).Inline(true)
		cell := style.Render(runewidth.Truncate(col.Title, col.Width, "…"))
		headerCells = append(headerCells, lv.headerStyle.Render(lv.cellStyle.Render(cell)))
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, headerCells...)

	// Calculate visible window
	visibleRows := lv.visibleRows
	if visibleRows <= 0 {
		visibleRows = 10
	}

	start := 0
	if lv.cursor >= visibleRows {
		start = lv.cursor - visibleRows + 1
	}
	end := start + visibleRows
	if end > len(rows) {
		end = len(rows)
		start = end - visibleRows
		if start < 0 {
			start = 0
		}
	}

	// Render visible rows
	renderedRows := make([]string, 0, visibleRows)
	for i := start; i < end; i++ {
		cells := make([]string, 0, len(lv.columns))
		for ci, value := range rows[i] {
			if lv.columns[ci].Width <= 0 {
				continue
			}
			cells = append(cells, lv.renderCell(value, lv.columns[ci].Width))
		}
		row := lipgloss.JoinHorizontal(lipgloss.Top, cells...)
		if i == lv.cursor {
			row = lv.selectedStyle.Render(row)
		}
		renderedRows = append(renderedRows, row)
	}

	// Pad to fixed height
	for len(renderedRows) < visibleRows {
		renderedRows = append(renderedRows, "")
	}

	return header + "\n" + strings.Join(renderedRows, "\n")
}

func (lv *ListView) SetWidthHeight(width, height int) {
	lv.width = width
	lv.height = height
	lv.columns = listColumns(width)

	// Reserve space for: header(2) + divider(1) + detail pane(5) + status(1) + footer(4)
	visibleRows := height - 13
	// Subtract 2 for the table header (text + border)
	visibleRows -= 2
	if visibleRows < 3 {
		visibleRows = 3
	}
	lv.visibleRows = visibleRows

	lv.table.SetHeight(visibleRows + 2)
	lv.table.SetColumns(lv.columns)
}

func (lv ListView) Init() tea.Cmd {
	return nil
}

func (lv ListView) Update(msg tea.Msg) (ListView, tea.Cmd) {
	var cmd tea.Cmd
	lv.table, cmd = lv.table.Update(msg)
	return lv, cmd
}
