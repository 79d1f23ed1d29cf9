package ui

// Theme is a named color palette.
type Theme struct {
	Primary    string
	Secondary  string
	Background string
	Text       string
	Subtle     string
	Success    string
	Warning    string
	Error      string
}

// Themes holds the available color palettes, keyed by name.
var Themes = map[string]Theme{
	"default": {
		Primary:    "#7D56F4",
		Secondary:  "#04B575",
		Background: "#1A1A2E",
		Text:       "#FAFAFA",
		Subtle:     "#737373",
		Success:    "#04B575",
		Warning:    "#FFB454",
		Error:      "#FF5555",
	},
	"catppuccin": {
		Primary:    "#CBA6F7",
		Secondary:  "#89B4FA",
		Background: "#1E1E2E",
		Text:       "#CDD6F4",
		Subtle:     "#6C7086",
		Success:    "#A6E3A1",
		Warning:    "#F9E2AF",
		Error:      "#F38BA8",
	},
	"dracula": {
		Primary:    "#BD93F9",
		Secondary:  "#8BE9FD",
		Background: "#282A36",
		Text:       "#F8F8F2",
		Subtle:     "#6272A4",
		Success:    "#50FA7B",
		Warning:    "#F1FA8C",
		Error:      "#FF5555",
	},
	"nord": {
		Primary:    "#88C0D0",
		Secondary:  "#81A1C1",
		Background: "#2E3440",
		Text:       "#ECEFF4",
		Subtle:     "#4C566A",
		Success:    "#A3BE8C",
		Warning:    "#EBCB8B",
		Error:      "#BF616A",
	},
	"gruvbox": {
		Primary:    "#FE8019",
		Secondary:  "#83A598",
		Background: "#282828",
		Text:       "#EBDBB2",
		Subtle:     "#928374",
		Success:    "#B8BB26",
		Warning:    "#FABD2F",
		Error:      "#FB4934",
	},
}

// GetThemeNames returns the theme names in a fixed cycling order.
func GetThemeNames() []string {
	return []string{"default", "catppuccin", "dracula", "nord", "gruvbox"}
}
