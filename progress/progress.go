// Package progress shows how far a render run has come.
//
// The display is a small bubbletea program fed by the render loop. It only
// consumes messages, so the loop never waits on the terminal.
package progress

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Reporter receives progress from the render loop.
type Reporter interface {
	// Start announces the total amount of work.
	Start(ctx context.Context, total int)
	// Advance records n more units of finished work.
	Advance(n int)
	// Finish ends the display and returns any display failure.
	Finish() error
}

// Nop discards progress.
type Nop struct{}

func (Nop) Start(context.Context, int) {}
func (Nop) Advance(int)                {}
func (Nop) Finish() error              { return nil }

// StepMsg advances the bar by N units.
type StepMsg struct{ N int }

// DoneMsg ends the program.
type DoneMsg struct{}

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	fullStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49"))
	emptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

const defaultBarWidth = 40

// Model is the bubbletea model behind the bar.
type Model struct {
	Label    string
	Total    int
	Done     int
	BarWidth int
	Finished bool

	started time.Time
	now     func() time.Time
}

// NewModel creates a bar for total units of work.
func NewModel(label string, total int) Model {
	return Model{
		Label:    label,
		Total:    total,
		BarWidth: defaultBarWidth,
		started:  time.Now(),
		now:      time.Now,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StepMsg:
		m.Done += msg.N
		if m.Total > 0 && m.Done > m.Total {
			m.Done = m.Total
		}
	case DoneMsg:
		m.Finished = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		if w := msg.Width - 40; w > 10 && w < defaultBarWidth {
			m.BarWidth = w
		}
	}
	return m, nil
}

// Fraction returns the completed share in [0, 1].
func (m Model) Fraction() float64 {
	if m.Total <= 0 {
		if m.Finished {
			return 1
		}
		return 0
	}
	return float64(m.Done) / float64(m.Total)
}

// View implements tea.Model.
func (m Model) View() string {
	filled := int(m.Fraction() * float64(m.BarWidth))
	bar := fullStyle.Render(strings.Repeat("█", filled)) +
		emptyStyle.Render(strings.Repeat("░", m.BarWidth-filled))

	elapsed := time.Duration(0)
	if m.now != nil {
		elapsed = m.now().Sub(m.started).Round(time.Millisecond)
	}
	stats := statsStyle.Render(fmt.Sprintf("%d/%d (%3.0f%%) %s", m.Done, m.Total, m.Fraction()*100, elapsed))

	view := labelStyle.Render(m.Label) + " " + bar + " " + stats
	if m.Finished {
		view += "\n"
	}
	return view
}

// TeaReporter drives a Model in a background bubbletea program.
type TeaReporter struct {
	label   string
	out     io.Writer
	program *tea.Program
	done    chan struct{}
	err     error
}

// NewTeaReporter creates a reporter that draws to out.
func NewTeaReporter(label string, out io.Writer) *TeaReporter {
	return &TeaReporter{label: label, out: out}
}

// Start launches the program. Keyboard input is not read.
func (r *TeaReporter) Start(ctx context.Context, total int) {
	r.program = tea.NewProgram(
		NewModel(r.label, total),
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithOutput(r.out),
		tea.WithoutSignalHandler(),
	)
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		if _, err := r.program.Run(); err != nil {
			r.err = err
		}
	}()
}

// Advance sends a step to the program.
func (r *TeaReporter) Advance(n int) {
	if r.program != nil {
		r.program.Send(StepMsg{N: n})
	}
}

// Finish stops the program and waits for it to exit.
func (r *TeaReporter) Finish() error {
	if r.program == nil {
		return nil
	}
	r.program.Send(DoneMsg{})
	<-r.done
	return r.err
}
