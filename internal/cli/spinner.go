package cli

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/ppiankov/callgen/internal/generator"
)

var (
	spinnerLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	spinnerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// generateFunc performs one blocking generation.
type generateFunc func(ctx context.Context) (*generator.Result, error)

// doneMsg carries the outcome of the background generation.
type doneMsg struct {
	res *generator.Result
	err error
}

// waitModel shows a spinner until the generation finishes. Ctrl+C cancels
// the in-flight request and waits for it to return.
type waitModel struct {
	spinner  spinner.Model
	label    string
	work     tea.Cmd
	cancel   context.CancelFunc
	canceled bool
	done     bool
	res      *generator.Result
	err      error
}

func newWaitModel(label string, work tea.Cmd, cancel context.CancelFunc) waitModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return waitModel{spinner: s, label: label, work: work, cancel: cancel}
}

func (m waitModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.work)
}

func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.canceled && m.cancel != nil {
				m.cancel()
			}
			m.canceled = true
		}
		return m, nil

	case doneMsg:
		m.done = true
		m.res = msg.res
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m waitModel) View() string {
	if m.done {
		return ""
	}
	label := m.label
	if m.canceled {
		label = "Canceling..."
	}
	return m.spinner.View() + " " + spinnerLabelStyle.Render(label) + "\n"
}

// isInteractive reports whether w is a terminal.
func isInteractive(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// runWithSpinner runs fn, rendering a spinner on out while it is in flight.
func runWithSpinner(ctx context.Context, out io.Writer, label string, fn generateFunc) (*generator.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := func() tea.Msg {
		res, err := fn(ctx)
		return doneMsg{res: res, err: err}
	}

	final, err := tea.NewProgram(newWaitModel(label, work, cancel), tea.WithOutput(out)).Run()
	if err != nil {
		return nil, err
	}
	m := final.(waitModel)
	return m.res, m.err
}
