// Package tui provides the terminal view of a hearing test.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/RMahshie/hearcheck/internal/audiometry"
	"github.com/RMahshie/hearcheck/pkg/models"
)

const refreshInterval = 100 * time.Millisecond

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).MarginBottom(1)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle   = lipgloss.NewStyle().Bold(true)
	playingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true).MarginTop(1)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2)
)

type toneStartedMsg struct{ err error }

type answeredMsg struct {
	view models.SessionView
	err  error
}

type tickMsg time.Time

// Model holds the test view state.
type Model struct {
	sess    *audiometry.Session
	view    models.SessionView
	playing bool
	err     error
	result  *audiometry.Result
	busy    bool
	width   int
}

// New creates a view over sess.
func New(sess *audiometry.Session) Model {
	return Model{sess: sess, view: sess.View()}
}

// Init starts the playback indicator refresh.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		m.playing = m.sess.Playing()
		return m, tick()

	case toneStartedMsg:
		m.busy = false
		m.err = msg.err
		m.playing = m.sess.Playing()

	case answeredMsg:
		m.busy = false
		m.view = msg.view
		m.playing = msg.view.Playing
		m.err = msg.err
		if msg.view.Complete {
			if res, err := m.sess.Result(); err == nil {
				m.result = &res
			}
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}

	if m.result != nil {
		if msg.String() == "s" && !m.result.Saved {
			m.busy = true
			return m, m.save()
		}
		return m, nil
	}

	switch msg.String() {
	case " ", "p":
		m.busy = true
		return m, m.requestTone()
	case "y", "h":
		m.busy = true
		return m, m.answer(m.sess.MarkHeard)
	case "n":
		m.busy = true
		return m, m.answer(m.sess.MarkNotHeard)
	}
	return m, nil
}

func (m Model) requestTone() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		return toneStartedMsg{err: sess.RequestTone(context.Background())}
	}
}

func (m Model) answer(cmd func(context.Context) (models.SessionView, error)) tea.Cmd {
	return func() tea.Msg {
		view, err := cmd(context.Background())
		return answeredMsg{view: view, err: err}
	}
}

func (m Model) save() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		err := sess.Save(context.Background())
		return answeredMsg{view: sess.View(), err: err}
	}
}

// Result returns the finalized outcome, if the test finished
func (m Model) Result() (audiometry.Result, bool) {
	if m.result == nil {
		return audiometry.Result{}, false
	}
	return *m.result, true
}

// View renders the current screen.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Hearing check"))
	b.WriteString("\n")

	if m.result != nil {
		b.WriteString(renderSummary(*m.result))
	} else {
		b.WriteString(m.renderTesting())
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.err.Error()))
	}
	b.WriteString("\n")
	b.WriteString(hintStyle.Render(m.hint()))
	if m.width > 0 {
		return lipgloss.NewStyle().MaxWidth(m.width).Render(b.String())
	}
	return b.String()
}

func (m Model) renderTesting() string {
	v := m.view
	lines := []string{
		field("Ear", strings.ToUpper(string(v.Ear))),
		field("Frequency", fmt.Sprintf("%d Hz", v.FrequencyHz)),
		field("Level", fmt.Sprintf("%d dB HL", v.IntensityDB)),
		field("Progress", progressBar(v.Tested, v.Total)),
	}
	body := strings.Join(lines, "\n")
	if m.playing {
		body += "\n\n" + playingStyle.Render("♪ tone playing")
	} else {
		body += "\n\n" + labelStyle.Render("Ready")
	}
	return boxStyle.Render(body)
}

func (m Model) hint() string {
	if m.result != nil {
		if !m.result.Saved {
			return "s: retry saving  q: quit"
		}
		return "q: quit"
	}
	return "space: play tone  y: heard  n: not heard  q: quit"
}

func field(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-10s", label)) + " " + valueStyle.Render(value)
}

func progressBar(done, total int) string {
	if total <= 0 {
		return ""
	}
	return strings.Repeat("▮", done) + strings.Repeat("▯", total-done) + fmt.Sprintf(" %d/%d", done, total)
}

func renderSummary(res audiometry.Result) string {
	var b strings.Builder
	for _, ear := range []models.EarSummary{res.Summary.Left, res.Summary.Right} {
		b.WriteString(valueStyle.Render(fmt.Sprintf("%s ear", strings.ToUpper(string(ear.Ear)))))
		b.WriteString("\n")
		b.WriteString(field("Average", fmt.Sprintf("%.1f dB HL", ear.Average)) + "\n")
		b.WriteString(field("Score", fmt.Sprintf("%d/10", ear.Score)) + "\n")
		b.WriteString(field("Condition", ear.Condition) + "\n")
		b.WriteString(labelStyle.Render(ear.Advice) + "\n\n")
	}
	if res.Summary.Asymmetry {
		b.WriteString(warnStyle.Render(res.Summary.AsymmetryWarning))
		b.WriteString("\n\n")
	}
	b.WriteString(RenderAudiogram(res.Summary.Audiogram))
	if !res.Saved {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Result not saved."))
	}
	return boxStyle.Render(b.String())
}

// RenderAudiogram prints the audiogram as a frequency table
func RenderAudiogram(points []models.AudiogramPoint) string {
	var header, left, right strings.Builder
	header.WriteString(fmt.Sprintf("%-6s", "Hz"))
	left.WriteString(fmt.Sprintf("%-6s", "Left"))
	right.WriteString(fmt.Sprintf("%-6s", "Right"))
	for _, p := range points {
		header.WriteString(fmt.Sprintf("%6d", p.FrequencyHz))
		left.WriteString(fmt.Sprintf("%6s", dbCell(p.Left)))
		right.WriteString(fmt.Sprintf("%6s", dbCell(p.Right)))
	}
	return labelStyle.Render(header.String()) + "\n" + left.String() + "\n" + right.String()
}

func dbCell(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *v)
}
