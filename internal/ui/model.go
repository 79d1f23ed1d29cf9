package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/brandflow/brandflow/internal/api"
	"github.com/brandflow/brandflow/internal/config"
	"github.com/brandflow/brandflow/internal/logging"
	"github.com/brandflow/brandflow/internal/workflow"
)

type State int

const (
	StateConfig State = iota
	StateLoading
	StateBrowsing
	StateConfirming
	StateWorking
	StateFeedback
	StateMessage
)

func (s State) String() string {
	switch s {
	case StateConfig:
		return "Config"
	case StateLoading:
		return "Loading"
	case StateBrowsing:
		return "Browsing"
	case StateConfirming:
		return "Confirming"
	case StateWorking:
		return "Working"
	case StateFeedback:
		return "Feedback"
	case StateMessage:
		return "Message"
	default:
		return "Unknown"
	}
}

type Model struct {
	state  State
	width  int
	height int
	styles Styles
	keys   KeyMap

	themeIndex  int
	showHelp    bool
	contentPane bool

	listView ListView
	spinner  spinner.Model
	progress progress.Model

	statusMessage string
	messageType   string
	workingLabel  string
	pendingOp     string
	pendingIDs    []string

	editingBrand bool
	brandInput   string

	cfg       *config.Config
	stepStore *config.StepStore
	session   *workflow.Session
	log       *zap.SugaredLogger

	feedback *FeedbackForm
}

func NewModel() *Model {
	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{}
	}

	stepStore, err := config.LoadStepStore()
	if err != nil {
		stepStore = nil // will be nil-checked by callers
	}

	logDir, _ := config.EnsureConfigDir()
	log := logging.New(logDir)

	themeNames := GetThemeNames()
	themeIndex := -1
	themeName := cfg.Theme

	for i, name := range themeNames {
		if name == themeName {
			themeIndex = i
			break
		}
	}

	if themeIndex == -1 {
		themeName = "default"
		themeIndex = 0
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(Themes[themeName].Primary))

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithoutPercentage(),
	)

	m := &Model{
		state:       StateConfig,
		styles:      NewStyles(Themes[themeName]),
		keys:        DefaultKeyMap(),
		themeIndex:  themeIndex,
		contentPane: cfg.GuideMode,
		spinner:     s,
		progress:    p,
		cfg:         cfg,
		stepStore:   stepStore,
		log:         log,
		brandInput:  cfg.BrandID,
	}

	m.listView = NewListView(80, 24)
	m.listView.UpdateTableStyles(Themes[themeName])
	return m
}

// ensureSession builds the API client and workflow session on first use.
func (m *Model) ensureSession() error {
	if m.session != nil {
		return nil
	}

	var opts []api.ClientOption
	if m.cfg.APIBaseURL != "" {
		opts = append(opts, api.WithBaseURL(m.cfg.APIBaseURL))
	}
	client, err := api.NewClient(m.cfg.APIToken, opts...)
	if err != nil {
		return err
	}

	sessOpts := []workflow.Option{
		workflow.WithLogger(m.log),
		workflow.WithErrorHandler(func(err error) {
			m.log.Warnw("background operation failed", "error", err)
		}),
	}
	if m.stepStore != nil {
		sessOpts = append(sessOpts, workflow.WithStepStore(m.stepStore))
	}

	m.session = workflow.NewSession(client, sessOpts...)
	return nil
}

func (m *Model) cycleTheme() {
	themeNames := GetThemeNames()
	m.themeIndex = (m.themeIndex + 1) % len(themeNames)
	newTheme := themeNames[m.themeIndex]
	m.styles = NewStyles(Themes[newTheme])
	m.listView.UpdateTableStyles(Themes[newTheme])
	m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(Themes[newTheme].Primary))

	if m.cfg != nil {
		m.cfg.Theme = newTheme
		_ = m.cfg.Save()
	}
}

func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Messages

type StateChangeMsg struct {
	State State
}

type BrandLoadedMsg struct {
	Err error
}

type StepLoadedMsg struct {
	Step workflow.Step
	Err  error
}

type StatusChangedMsg struct {
	ID  string
	Err error
}

type BulkFinishedMsg struct {
	Op     string
	Result *workflow.BulkResult
	Err    error
}

type RegenerateFinishedMsg struct {
	ID  string
	Err error
}

type MarkedDoneMsg struct {
	ID  string
	Err error
}

type CopiedMsg struct {
	Err error
}

type ErrorMsg struct {
	Error error
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The feedback form owns all input while open
	if m.state == StateFeedback {
		if cmd, done := m.updateFeedbackForm(msg); done || cmd != nil {
			return m, cmd
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.listView.SetWidthHeight(msg.Width, msg.Height)
		m.progress.Width = msg.Width - 8

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case StateChangeMsg:
		m.state = msg.State

	case BrandLoadedMsg:
		if msg.Err != nil {
			m.statusMessage = msg.Err.Error()
			m.state = StateConfig
			return m, nil
		}
		m.syncList()
		m.statusMessage = fmt.Sprintf("Loaded %d recommendations", len(m.session.All()))
		m.state = StateBrowsing

	case StepLoadedMsg:
		m.syncList()
		if msg.Err != nil {
			m.statusMessage = msg.Err.Error()
		} else {
			m.statusMessage = ""
		}
		m.state = StateBrowsing

	case StatusChangedMsg:
		// On failure the session already rolled the change back; the list
		// just needs re-reading either way
		m.syncList()
		if msg.Err != nil {
			m.statusMessage = fmt.Sprintf("Update failed, change reverted: %v", msg.Err)
		}

	case BulkFinishedMsg:
		m.syncList()
		if msg.Err != nil {
			m.statusMessage = msg.Err.Error()
			m.messageType = "error"
			m.state = StateMessage
			return m, nil
		}
		verb := "generated content for"
		if msg.Op == "complete" {
			verb = "completed"
		}
		m.statusMessage = fmt.Sprintf("Successfully %s %d of %d recommendations", verb, msg.Result.Successful, msg.Result.Total)
		if msg.Result.Failed > 0 {
			m.messageType = "warning"
		} else {
			m.messageType = "success"
		}
		m.state = StateMessage

	case RegenerateFinishedMsg:
		m.syncList()
		if msg.Err != nil {
			m.statusMessage = fmt.Sprintf("Regeneration failed: %v", msg.Err)
			m.messageType = "error"
		} else {
			m.statusMessage = "Content ready"
			m.messageType = "success"
		}
		m.state = StateMessage

	case MarkedDoneMsg:
		m.syncList()
		if msg.Err != nil {
			m.statusMessage = msg.Err.Error()
		} else {
			m.statusMessage = "Marked as done"
		}
		m.state = StateBrowsing

	case CopiedMsg:
		if msg.Err != nil {
			m.statusMessage = fmt.Sprintf("Copy failed: %v", msg.Err)
		} else {
			m.statusMessage = "Content copied to clipboard"
		}

	case ErrorMsg:
		m.statusMessage = msg.Error.Error()
		m.state = StateConfig
	}

	return m, nil
}

// syncList re-reads the session collections into the table.
func (m *Model) syncList() {
	if m.session == nil {
		return
	}
	m.listView.SetRecommendations(m.visibleRecs())
}

// visibleRecs returns what the current step shows: the filtered canonical
// collection on discover, the working set everywhere else.
func (m *Model) visibleRecs() []api.Recommendation {
	if m.session == nil {
		return nil
	}
	if m.session.CurrentStep() == workflow.StepDiscover {
		return m.session.Visible()
	}
	return m.session.Working()
}

func (m *Model) View() string {
	var content string
	centered := true

	switch m.state {
	case StateConfig:
		content = m.configView()
	case StateLoading:
		content = m.loadingView()
	case StateBrowsing:
		content = m.browsingView()
		centered = false
	case StateConfirming:
		content = m.confirmingView()
	case StateWorking:
		content = m.workingView()
	case StateFeedback:
		content = m.feedbackView()
	case StateMessage:
		content = m.messageView()
	default:
		return "Unknown state"
	}

	if centered && m.width > 0 && m.height > 0 {
		content = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}

	return content
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state == StateMessage {
		return m.handleMessageKeys(msg)
	}

	switch {
	case keyMatches(msg, m.keys.Quit):
		if !m.editingBrand {
			return m, tea.Quit
		}
	case keyMatches(msg, m.keys.Help):
		if !m.editingBrand {
			m.showHelp = !m.showHelp
			return m, nil
		}
	}

	switch m.state {
	case StateConfig:
		return m.handleConfigKeys(msg)
	case StateBrowsing:
		return m.handleBrowsingKeys(msg)
	case StateConfirming:
		return m.handleConfirmingKeys(msg)
	}

	return m, nil
}

func (m *Model) handleConfigKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Brand id editing mode
	if m.editingBrand {
		switch msg.Type {
		case tea.KeyEnter:
			m.cfg.BrandID = strings.TrimSpace(m.brandInput)
			_ = m.cfg.Save()
			m.editingBrand = false
		case tea.KeyEsc:
			m.brandInput = m.cfg.BrandID
			m.editingBrand = false
		case tea.KeyBackspace:
			if len(m.brandInput) > 0 {
				m.brandInput = m.brandInput[:len(m.brandInput)-1]
			}
		default:
			if s := msg.String(); len(s) == 1 && s[0] >= 32 {
				m.brandInput += s
			}
		}
		return m, nil
	}

	switch {
	case keyMatches(msg, m.keys.Enter):
		return m, m.startLoading()
	case keyMatches(msg, m.keys.CycleTheme):
		m.cycleTheme()
	case keyMatches(msg, m.keys.GuideMode):
		m.contentPane = !m.contentPane
		m.cfg.GuideMode = m.contentPane
		_ = m.cfg.Save()
	case msg.String() == "b":
		m.editingBrand = true
		m.statusMessage = ""
	}
	return m, nil
}

func (m *Model) startLoading() tea.Cmd {
	if m.cfg == nil || (m.cfg.APIToken == "" && m.session == nil) {
		return func() tea.Msg {
			return ErrorMsg{Error: fmt.Errorf("BRANDFLOW_TOKEN not configured. Set it via environment variable or config file")}
		}
	}
	if m.cfg.BrandID == "" {
		return func() tea.Msg {
			return ErrorMsg{Error: fmt.Errorf("no brand selected. Press b to set a brand id")}
		}
	}
	if err := m.ensureSession(); err != nil {
		return func() tea.Msg { return ErrorMsg{Error: err} }
	}

	m.state = StateLoading
	m.statusMessage = "Loading recommendations..."
	sess := m.session
	brand := m.cfg.BrandID

	return func() tea.Msg {
		if err := sess.LoadBrand(context.Background(), brand); err != nil {
			return BrandLoadedMsg{Err: err}
		}
		return BrandLoadedMsg{}
	}
}

func (m *Model) goToStepCmd(step workflow.Step) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		err := sess.GoToStep(context.Background(), step)
		return StepLoadedMsg{Step: step, Err: err}
	}
}

func (m *Model) setStatusCmd(id string, status api.ReviewStatus) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		err := sess.SetStatus(context.Background(), id, status)
		return StatusChangedMsg{ID: id, Err: err}
	}
}

func (m *Model) handleBrowsingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.session == nil {
		m.state = StateConfig
		return m, nil
	}
	step := m.session.CurrentStep()

	switch {
	case keyMatches(msg, m.keys.Up):
		m.listView.MoveCursor(-1)
		return m, nil
	case keyMatches(msg, m.keys.Down):
		m.listView.MoveCursor(1)
		return m, nil
	case keyMatches(msg, m.keys.Left):
		if step > workflow.StepDiscover {
			return m, m.goToStepCmd(step - 1)
		}
		return m, nil
	case keyMatches(msg, m.keys.Right):
		if step < workflow.StepTrack {
			return m, m.goToStepCmd(step + 1)
		}
		return m, nil
	case keyMatches(msg, m.keys.Select):
		m.listView.ToggleSelection()
		return m, nil
	case keyMatches(msg, m.keys.Refresh):
		sess := m.session
		return m, func() tea.Msg {
			err := sess.ReactiveLoad(context.Background())
			return StepLoadedMsg{Step: sess.CurrentStep(), Err: err}
		}
	case keyMatches(msg, m.keys.CycleTheme):
		m.cycleTheme()
		return m, nil
	case keyMatches(msg, m.keys.GuideMode):
		m.contentPane = !m.contentPane
		return m, nil
	case keyMatches(msg, m.keys.Back):
		m.state = StateConfig
		return m, nil
	}

	// Numeric step jumps work from any step
	switch msg.String() {
	case "1", "2", "3", "4":
		target := workflow.Step(int(msg.String()[0] - '0'))
		if target != step {
			return m, m.goToStepCmd(target)
		}
		return m, nil
	}

	switch step {
	case workflow.StepDiscover:
		return m.handleDiscoverKeys(msg)
	case workflow.StepToDo:
		return m.handleToDoKeys(msg)
	case workflow.StepRefine:
		return m.handleRefineKeys(msg)
	}

	return m, nil
}

func (m *Model) handleDiscoverKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case keyMatches(msg, m.keys.Filter):
		m.session.SetFilter(nextFilter(m.session.Filter()))
		m.syncList()
		return m, nil
	case keyMatches(msg, m.keys.Approve):
		if rec := m.listView.GetRecommendation(m.listView.Cursor()); rec != nil {
			return m, m.setStatusCmd(rec.ID, api.StatusApproved)
		}
	case keyMatches(msg, m.keys.Reject):
		if rec := m.listView.GetRecommendation(m.listView.Cursor()); rec != nil {
			return m, m.setStatusCmd(rec.ID, api.StatusRejected)
		}
	case keyMatches(msg, m.keys.Remove):
		if rec := m.listView.GetRecommendation(m.listView.Cursor()); rec != nil {
			return m, m.setStatusCmd(rec.ID, api.StatusRemoved)
		}
	}
	return m, nil
}

func (m *Model) handleToDoKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case keyMatches(msg, m.keys.Generate):
		if len(m.session.Working()) == 0 {
			m.statusMessage = "Nothing to generate: no approved recommendations"
			return m, nil
		}
		m.pendingOp = "generate"
		m.state = StateConfirming
		return m, nil
	case keyMatches(msg, m.keys.Remove):
		if rec := m.listView.GetRecommendation(m.listView.Cursor()); rec != nil {
			return m, m.setStatusCmd(rec.ID, api.StatusRemoved)
		}
	}
	return m, nil
}

func (m *Model) handleRefineKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rec := m.listView.GetRecommendation(m.listView.Cursor())

	switch {
	case keyMatches(msg, m.keys.Complete):
		selected := m.listView.GetSelected()
		if len(selected) > 1 {
			var ids []string
			for _, idx := range selected {
				if r := m.listView.GetRecommendation(idx); r != nil && r.IsContentGenerated && !r.IsCompleted {
					ids = append(ids, r.ID)
				}
			}
			if len(ids) == 0 {
				m.statusMessage = "Selected items have no completable content"
				return m, nil
			}
			m.pendingOp = "complete"
			m.pendingIDs = ids
			m.state = StateConfirming
			return m, nil
		}
		if rec != nil {
			sess := m.session
			id := rec.ID
			return m, func() tea.Msg {
				err := sess.MarkCompleted(context.Background(), id)
				return MarkedDoneMsg{ID: id, Err: err}
			}
		}

	case keyMatches(msg, m.keys.Regenerate):
		if rec == nil || !rec.IsContentGenerated {
			m.statusMessage = "No content to regenerate yet"
			return m, nil
		}
		if rec.RegenRetry >= 1 {
			m.statusMessage = "Regeneration already used for this recommendation"
			return m, nil
		}
		m.feedback = NewFeedbackForm(rec.ID)
		m.state = StateFeedback
		return m, m.feedback.GetForm().Init()

	case keyMatches(msg, m.keys.Copy):
		if rec == nil {
			return m, nil
		}
		c, ok := m.session.ContentFor(rec.ID)
		if !ok {
			m.statusMessage = "No content to copy"
			return m, nil
		}
		text := contentPlainText(c)
		return m, func() tea.Msg {
			return CopiedMsg{Err: clipboard.WriteAll(text)}
		}

	case keyMatches(msg, m.keys.Generate):
		if rec == nil || rec.IsContentGenerated {
			return m, nil
		}
		sess := m.session
		id := rec.ID
		m.state = StateWorking
		m.workingLabel = "Generating content..."
		return m, func() tea.Msg {
			err := sess.GenerateContent(context.Background(), id)
			return RegenerateFinishedMsg{ID: id, Err: err}
		}
	}
	return m, nil
}

func (m *Model) handleConfirmingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		return m, m.startPendingOp()
	case "n", "N", "esc":
		m.pendingOp = ""
		m.pendingIDs = nil
		m.state = StateBrowsing
	}
	return m, nil
}

func (m *Model) startPendingOp() tea.Cmd {
	op := m.pendingOp
	ids := m.pendingIDs
	m.pendingOp = ""
	m.pendingIDs = nil
	m.state = StateWorking
	sess := m.session

	switch op {
	case "generate":
		m.workingLabel = "Generating content for approved recommendations..."
		return func() tea.Msg {
			result, err := sess.BulkGenerateContent(context.Background())
			return BulkFinishedMsg{Op: op, Result: result, Err: err}
		}
	case "complete":
		m.workingLabel = fmt.Sprintf("Completing %d recommendations...", len(ids))
		return func() tea.Msg {
			result, err := sess.BulkComplete(context.Background(), ids)
			return BulkFinishedMsg{Op: op, Result: result, Err: err}
		}
	}
	m.state = StateBrowsing
	return nil
}

func (m *Model) handleMessageKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.session == nil {
		m.state = StateConfig
	} else {
		m.state = StateBrowsing
	}
	m.statusMessage = ""
	m.listView.ClearSelection()
	m.syncList()
	return m, nil
}

// updateFeedbackForm routes messages to the open huh form. Returns done
// when the form consumed the message.
func (m *Model) updateFeedbackForm(msg tea.Msg) (tea.Cmd, bool) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		m.feedback = nil
		m.state = StateBrowsing
		return nil, true
	}
	if _, ok := msg.(tea.WindowSizeMsg); ok {
		return nil, false
	}

	form, cmd := m.feedback.GetForm().Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.feedback.form = f
	}

	if m.feedback.form.State == huh.StateCompleted {
		id := m.feedback.RecommendationID()
		feedbackText := m.feedback.FeedbackText()
		m.feedback = nil
		m.state = StateWorking
		m.workingLabel = "Regenerating content..."
		sess := m.session
		return func() tea.Msg {
			err := sess.RegenerateContent(context.Background(), id, feedbackText)
			return RegenerateFinishedMsg{ID: id, Err: err}
		}, true
	}
	if m.feedback.form.State == huh.StateAborted {
		m.feedback = nil
		m.state = StateBrowsing
		return nil, true
	}

	return cmd, true
}

func nextFilter(f workflow.StatusFilter) workflow.StatusFilter {
	switch f {
	case workflow.FilterAll, "":
		return workflow.FilterPending
	case workflow.FilterPending:
		return workflow.FilterApproved
	case workflow.FilterApproved:
		return workflow.FilterRejected
	default:
		return workflow.FilterAll
	}
}

func keyMatches(msg tea.KeyMsg, target key.Binding) bool {
	for _, k := range target.Keys() {
		if msg.String() == k {
			return true
		}
	}
	return false
}
