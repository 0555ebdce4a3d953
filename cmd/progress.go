package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/bnema/kmlx/internal/domain"
	"github.com/bnema/kmlx/internal/ports"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

type workDoneMsg struct {
	err error
}

type progressMsg domain.Progress

type progressSpinnerModel struct {
	spinner spinner.Model
	label   string
	work    tea.Cmd
	err     error
	done    bool
}

func newProgressSpinnerModel(label string, work tea.Cmd) progressSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return progressSpinnerModel{
		spinner: s,
		label:   label,
		work:    work,
	}
}

func (m progressSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.work)
}

func (m progressSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progressMsg:
		m.label = domain.Progress(msg).String()
		return m, nil
	case workDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m progressSpinnerModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

// programProgress forwards reports to a running spinner program.
type programProgress struct {
	program *tea.Program
}

func (p programProgress) Report(progress domain.Progress) {
	p.program.Send(progressMsg(progress))
}

// logProgress reports progress as log lines when no terminal is attached.
type logProgress struct {
	logger zerolog.Logger
}

func (p logProgress) Report(progress domain.Progress) {
	p.logger.Info().
		Str("stage", progress.Stage).
		Int("done", progress.Done).
		Int("total", progress.Total).
		Str("remaining", domain.FormatClock(progress.Remaining)).
		Msg("progress")
}

// runWithProgress runs work behind a spinner on output when it is a
// terminal, and with log-line progress otherwise.
func runWithProgress(ctx context.Context, output io.Writer, label string, disabled bool, logger zerolog.Logger, work func(context.Context, ports.ProgressReporter) error) error {
	if disabled || !isTerminal(output) {
		return work(ctx, logProgress{logger: logger})
	}

	var program *tea.Program
	workCmd := func() tea.Msg {
		return workDoneMsg{err: work(ctx, programProgress{program: program})}
	}

	program = tea.NewProgram(
		newProgressSpinnerModel(label, workCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		// Interrupts cancel ctx; the work then winds down and quits the program.
		tea.WithoutSignalHandler(),
	)

	finalModel, err := program.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(progressSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}

func isTerminal(output io.Writer) bool {
	file, ok := output.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
