package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/clipboard"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/l10n"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/log"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/report"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/speech"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/task"
)

// TUI message types
type introMsg struct{ Text string }
type contentMsg struct{ Text string }
type controlMsg struct {
	Control task.Control
	Visible bool
}
type feedbackMsg struct {
	Text            string
	Score, MaxScore int
	Clear           bool
}
type answeredMsg struct {
	Response string
	Correct  bool
}
type solutionMsg struct{ Accepted []string }
type restoreMsg struct{}
type unsupportedMsg struct{ Text string }
type viewStateMsg struct{ State task.ViewState }
type speechStateMsg struct{ State speech.State }
type statusMsg struct {
	Text  string
	Error bool
}
type readyMsg struct{}
type tickMsg time.Time

// tuiPort forwards host, view and tracker calls into the Bubble Tea loop.
type tuiPort struct {
	send func(tea.Msg)
}

func (p tuiPort) HideControl(c task.Control) { p.send(controlMsg{c, false}) }
func (p tuiPort) ShowControl(c task.Control) { p.send(controlMsg{c, true}) }
func (p tuiPort) SetFeedback(text string, score, maxScore int) {
	p.send(feedbackMsg{Text: text, Score: score, MaxScore: maxScore})
}
func (p tuiPort) RemoveFeedback()             { p.send(feedbackMsg{Clear: true}) }
func (p tuiPort) SetIntroduction(text string) { p.send(introMsg{text}) }
func (p tuiPort) SetContent(text string)      { p.send(contentMsg{text}) }
func (p tuiPort) MarkAnswered(response string, correct bool) {
	p.send(answeredMsg{response, correct})
}
func (p tuiPort) MarkShowingSolution(accepted []string) { p.send(solutionMsg{accepted}) }
func (p tuiPort) Restore()                              { p.send(restoreMsg{}) }
func (p tuiPort) ShowUnsupported(msg string)            { p.send(unsupportedMsg{msg}) }
func (p tuiPort) StateChanged(s task.ViewState)         { p.send(viewStateMsg{s}) }
func (p tuiPort) Outcome(*report.Statement)             {}

// tuiApp is what key handlers act on. It is filled in before readyMsg is
// sent and read-only afterwards.
type tuiApp struct {
	title    string
	strings  *l10n.Table
	accepted []string
	session  *session
}

type tuiModel struct {
	app   *tuiApp
	ready bool

	frame         int
	width, height int

	intro       string
	content     string
	unsupported string
	controls    map[task.Control]bool
	viewState   task.ViewState
	speech      speech.State

	response  string
	answered  bool
	correct   bool
	solutions []string

	feedback     string
	score, total int
	hasFeedback  bool

	status      string
	statusError bool
	captureLine string
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
	tuiReady   = make(chan struct{})
	tuiOnce    sync.Once
)

// tuiSend delivers msg once the program loop is running.
func tuiSend(msg tea.Msg) {
	<-tuiReady
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func newTUIModel(app *tuiApp) tuiModel {
	return tuiModel{
		app:       app,
		controls:  map[task.Control]bool{},
		viewState: task.StateTask,
	}
}

func NewTUIProgram(app *tuiApp) *tea.Program {
	return tea.NewProgram(newTUIModel(app), tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(tuiTick(), func() tea.Msg {
		tuiOnce.Do(func() { close(tuiReady) })
		return nil
	})
}

// act runs f off the Update goroutine; f's port calls come back as messages.
func act(f func()) tea.Cmd {
	return func() tea.Msg {
		f()
		return nil
	}
}

func (m tuiModel) handleKey(key string) (tuiModel, tea.Cmd) {
	if key == "ctrl+c" || key == "q" {
		return m, tea.Quit
	}
	if !m.ready || m.unsupported != "" {
		return m, nil
	}
	ctl := m.app.session.ctl
	t := m.app.strings

	switch key {
	case " ", "space":
		if m.viewState != task.StateTask {
			return m, nil
		}
		switch m.speech {
		case speech.StateIdle:
			return m, act(ctl.Listen)
		case speech.StateListening:
			return m, act(ctl.StopListening)
		}
	case "r":
		if m.controls[task.ControlTryAgain] {
			return m, act(ctl.ResetTask)
		}
	case "s":
		if m.controls[task.ControlShowSolution] {
			return m, act(ctl.ShowSolutions)
		}
	case "c":
		if len(m.solutions) == 0 {
			return m, nil
		}
		accepted := m.solutions
		return m, func() tea.Msg {
			if _, err := clipboard.CopySolution(accepted); err != nil {
				log.Warnf("copy solution: %v", err)
				return statusMsg{Text: err.Error(), Error: true}
			}
			return statusMsg{Text: t.T(l10n.Copied)}
		}
	}
	return m, nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case readyMsg:
		m.ready = true
		if !m.app.session.CaptureEnabled() {
			m.captureLine = m.app.strings.T(l10n.CaptureUnavailable)
		}

	case introMsg:
		m.intro = msg.Text
	case contentMsg:
		m.content = msg.Text
	case unsupportedMsg:
		m.unsupported = msg.Text
	case controlMsg:
		m.controls[msg.Control] = msg.Visible

	case feedbackMsg:
		m.hasFeedback = !msg.Clear
		m.feedback, m.score, m.total = msg.Text, msg.Score, msg.MaxScore

	case answeredMsg:
		m.answered = true
		m.response = msg.Response
		m.correct = msg.Correct
		m.status = ""

	case solutionMsg:
		m.solutions = msg.Accepted

	case restoreMsg:
		m.answered = false
		m.response = ""
		m.solutions = nil
		m.status = ""
		m.viewState = task.StateTask

	case viewStateMsg:
		m.viewState = msg.State

	case speechStateMsg:
		m.speech = msg.State
		if msg.State == speech.StateListening {
			m.status = ""
		}

	case statusMsg:
		m.status = msg.Text
		m.statusError = msg.Error
	}
	return m, nil
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	recStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	busyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	correctStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	wrongStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
	solutionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
)

var pulse = []string{"●", "◉", "○", "◉"}

func (m tuiModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	t := m.app.strings
	wrap := max(m.width-6, 20)

	var lines []string
	if m.app.title != "" {
		lines = append(lines, titleStyle.Render(m.app.title), "")
	}

	if m.unsupported != "" {
		lines = append(lines, wrongStyle.Render(m.unsupported), "", keyStyle.Render("q")+helpStyle.Render(" "+t.T(l10n.QuitLabel)))
		return boxStyle.Width(m.width - 2).Render(strings.Join(lines, "\n"))
	}

	for _, l := range wrapText(m.intro, wrap) {
		lines = append(lines, questionStyle.Render(l))
	}
	lines = append(lines, "")

	switch {
	case m.speech == speech.StateListening:
		lines = append(lines, recStyle.Render(pulse[m.frame%len(pulse)]+" "+t.T(l10n.ListeningLabel))+
			helpStyle.Render("  (space: "+t.T(l10n.StopInputLabel)+")"))
	case m.speech == speech.StateRecognizing:
		lines = append(lines, busyStyle.Render("… "+t.T(l10n.ListeningLabel)))
	case m.viewState == task.StateTask && !m.answered:
		lines = append(lines, dimStyle.Render("○ "+m.content)+helpStyle.Render("  (space)"))
	}

	if m.answered {
		mark, style := "✗", wrongStyle
		if m.correct {
			mark, style = "✓", correctStyle
		}
		lines = append(lines, dimStyle.Render(t.T(l10n.AnswerLabel))+" "+style.Render(m.response+" "+mark))
	}
	if len(m.solutions) > 0 {
		lines = append(lines, dimStyle.Render(t.T(l10n.CorrectAnswersLabel))+" "+solutionStyle.Render(strings.Join(m.solutions, ", ")))
	}
	if m.hasFeedback {
		lines = append(lines, "")
		if m.feedback != "" {
			for _, l := range wrapText(m.feedback, wrap) {
				lines = append(lines, questionStyle.Render(l))
			}
		}
		lines = append(lines, dimStyle.Render(t.Format(l10n.ScoreLabel, map[string]string{
			"score": fmt.Sprint(m.score),
			"total": fmt.Sprint(m.total),
		})))
	}

	if m.status != "" {
		style := correctStyle
		if m.statusError {
			style = warnStyle
		}
		lines = append(lines, "", style.Render(m.status))
	}
	if m.captureLine != "" {
		lines = append(lines, "", warnStyle.Render("⚠ "+m.captureLine))
	}

	lines = append(lines, "", m.helpLine())
	lines = append(lines, helpStyle.Render("speak-the-words "+version))
	return boxStyle.Width(m.width - 2).Render(strings.Join(lines, "\n"))
}

func (m tuiModel) helpLine() string {
	t := m.app.strings
	var parts []string
	add := func(key, label string) {
		parts = append(parts, keyStyle.Render(key)+helpStyle.Render(" "+label))
	}
	if m.controls[task.ControlTryAgain] {
		add("r", t.T(l10n.TryAgainButtonLabel))
	}
	if m.controls[task.ControlShowSolution] {
		add("s", t.T(l10n.ShowSolutionButtonLabel))
	}
	if len(m.solutions) > 0 {
		add("c", t.T(l10n.CopySolutionLabel))
	}
	add("q", t.T(l10n.QuitLabel))
	return strings.Join(parts, helpStyle.Render("  "))
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return nil
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		var cur strings.Builder
		curWidth := 0
		for _, w := range strings.Fields(para) {
			ww := runewidth.StringWidth(w)
			if curWidth > 0 && curWidth+1+ww > width {
				lines = append(lines, cur.String())
				cur.Reset()
				curWidth = 0
			}
			if ww > width {
				// hard-break words that cannot fit on any line
				parts := strings.Split(runewidth.Wrap(w, width), "\n")
				lines = append(lines, parts[:len(parts)-1]...)
				w = parts[len(parts)-1]
				ww = runewidth.StringWidth(w)
			}
			if curWidth > 0 {
				cur.WriteByte(' ')
				curWidth++
			}
			cur.WriteString(w)
			curWidth += ww
		}
		lines = append(lines, cur.String())
	}
	return lines
}
