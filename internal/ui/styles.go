package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds all the UI styles
type Styles struct {
	theme Theme

	Title     lipgloss.Style
	Normal    lipgloss.Style
	Help      lipgloss.Style
	Highlight lipgloss.Style
	Selected  lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Success   lipgloss.Style
	Card      lipgloss.Style
	Border    lipgloss.Style
	HeaderBar lipgloss.Style
	FooterBar lipgloss.Style
	HelpKey   lipgloss.Style
	HelpDesc  lipgloss.Style
	HelpSep   lipgloss.Style
}

// NewStyles builds the style set for a theme
func NewStyles(theme Theme) Styles {
	return Styles{
		theme: theme,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(theme.Primary)),

		Normal: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Text)),

		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Subtle)).
			Italic(true),

		Highlight: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(theme.Secondary)),

		Selected: lipgloss.NewStyle().
			Background(lipgloss.Color(theme.Primary)).
			Foreground(lipgloss.Color(theme.Background)),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Error)),

		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Warning)),

		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Success)),

		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(theme.Primary)).
			Padding(1, 3),

		Border: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color(theme.Subtle)).
			Padding(1, 2),

		HeaderBar: lipgloss.NewStyle().
			Background(lipgloss.Color(theme.Background)).
			Padding(0, 1),

		FooterBar: lipgloss.NewStyle().
			Padding(0, 1),

		HelpKey: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(theme.Primary)),

		HelpDesc: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Subtle)),

		HelpSep: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Subtle)),
	}
}

// DefaultStyles returns the default style set
func DefaultStyles() Styles {
	return NewStyles(Themes["default"])
}
