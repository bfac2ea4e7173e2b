package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kass/go-fissura/pkg/pipeline"
)

type progressMsg pipeline.Progress

type runDoneMsg struct {
	result *pipeline.Result
	err    error
}

type progressModel struct {
	input    string
	stage    pipeline.Stage
	done     int
	total    int
	spinner  spinner.Model
	progress progress.Model
	cancel   context.CancelFunc
	stopping bool

	result *pipeline.Result
	err    error
}

func newProgressModel(input string, cancel context.CancelFunc) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return progressModel{
		input:    input,
		stage:    pipeline.StageScan,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
		cancel:   cancel,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = max(msg.Width-10, 10)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// the run notices the cancellation and reports back with runDoneMsg
			m.stopping = true
			m.cancel()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		m.stage = msg.Stage
		if msg.Total > 0 {
			m.done = max(m.done, msg.Done)
			m.total = msg.Total
		}
		return m, nil

	case runDoneMsg:
		m.result = msg.result
		m.err = msg.err
		m.stage = pipeline.StageDone
		return m, tea.Quit
	}

	return m, nil
}

func (m progressModel) View() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Processing " + m.input))
	b.WriteString("\n\n")

	switch m.stage {
	case pipeline.StageScan:
		b.WriteString(m.spinner.View() + " Scanning for images...\n")
	case pipeline.StageExtract:
		b.WriteString(m.spinner.View() + fmt.Sprintf(" Reading metadata %d/%d\n\n", m.done, m.total))
		percent := 0.0
		if m.total > 0 {
			percent = float64(m.done) / float64(m.total)
		}
		b.WriteString(m.progress.ViewAs(percent))
		b.WriteString("\n")
	case pipeline.StageCluster:
		b.WriteString(m.spinner.View() + fmt.Sprintf(" Grouping %d images into buildings...\n", m.total))
	case pipeline.StageMaterialize:
		b.WriteString(m.spinner.View() + " Moving files into the project...\n")
	case pipeline.StageDone:
		b.WriteString(successStyle.Render("✓ Done") + "\n")
	}

	b.WriteString("\n")
	if m.stopping {
		b.WriteString(errorStyle.Render("Cancelling..."))
	} else {
		b.WriteString(dimStyle.Render("Press 'q' to cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

// runWithProgress drives run behind a bubbletea progress view. Quitting the
// view cancels the context handed to run. It returns only after run has
// returned, so a cancelled run still hands back its partial result.
func runWithProgress(ctx context.Context, input string, run func(context.Context, func(pipeline.Progress)) (*pipeline.Result, error), opts ...tea.ProgramOption) (*pipeline.Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	program := tea.NewProgram(newProgressModel(input, cancel), opts...)
	done := make(chan runDoneMsg, 1)
	go func() {
		result, err := run(runCtx, func(p pipeline.Progress) {
			program.Send(progressMsg(p))
		})
		done <- runDoneMsg{result: result, err: err}
		program.Send(runDoneMsg{result: result, err: err})
	}()

	final, err := program.Run()
	cancel()
	outcome := <-done

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if outcome.err != nil {
				return outcome.result, outcome.err
			}
			return outcome.result, ctxErr
		}
		return outcome.result, fmt.Errorf("progress view failed: %w", err)
	}
	if _, ok := final.(progressModel); !ok {
		return nil, fmt.Errorf("unexpected progress model %T", final)
	}
	return outcome.result, outcome.err
}
