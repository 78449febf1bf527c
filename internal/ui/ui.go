package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plsync/internal/tasks"
)

const (
	progressBuffer = 64
	historyLimit   = 8
)

// RunFunc performs one synchronization, reporting to progress.
type RunFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) tasks.SyncOutcome

type progressUpdateMsg tasks.ProgressUpdate

type syncCompleteMsg tasks.SyncOutcome

// SyncModel follows a single synchronization run.
type SyncModel struct {
	ctx         context.Context
	cancel      context.CancelFunc
	title       string
	run         RunFunc
	progress    chan tasks.ProgressUpdate
	done        chan struct{}
	result      tasks.SyncOutcome // written once before done is closed
	current     tasks.ProgressUpdate
	history     []string
	showHistory bool
	outcome     *tasks.SyncOutcome
	spinner     spinner.Model
	help        help.Model
	keys        keyMap
}

// NewSyncModel creates a model that runs fn when started.
func NewSyncModel(ctx context.Context, title string, fn RunFunc) *SyncModel {
	ctx, cancel := context.WithCancel(ctx)
	return &SyncModel{
		ctx:         ctx,
		cancel:      cancel,
		title:       title,
		run:         fn,
		showHistory: true,
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Init starts the run and the spinner.
func (m *SyncModel) Init() tea.Cmd {
	return tea.Batch(m.start(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *SyncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			m.cancel()
			return m, tea.Quit
		case key.Matches(msg, m.keys.history):
			m.showHistory = !m.showHistory
		}
		return m, nil

	case progressUpdateMsg:
		update := tasks.ProgressUpdate(msg)
		if m.current.Message != "" {
			m.record(m.current.Message)
		}
		m.current = update
		return m, m.waitForProgress()

	case syncCompleteMsg:
		outcome := tasks.SyncOutcome(msg)
		m.outcome = &outcome
		m.cancel()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current phase, the step history and the outcome once known.
func (m *SyncModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title(m.title))
	b.WriteString("\n")

	if m.showHistory {
		for _, line := range m.history {
			b.WriteString(styles.Help("  " + line))
			b.WriteString("\n")
		}
	}

	if m.outcome != nil {
		b.WriteString(styles.Outcome(*m.outcome))
		b.WriteString("\n")
		return b.String()
	}

	if m.current.Message != "" {
		fmt.Fprintf(&b, "%s %s", m.spinner.View(), m.current.Message)
		if m.current.Total > 1 {
			fmt.Fprintf(&b, " (%d/%d)", m.current.Step, m.current.Total)
		}
	} else {
		b.WriteString(m.spinner.View() + " Starting...")
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

// Outcome returns the result of the run, or false if it has not finished.
func (m *SyncModel) Outcome() (tasks.SyncOutcome, bool) {
	if m.outcome == nil {
		return tasks.SyncOutcome{}, false
	}
	return *m.outcome, true
}

func (m *SyncModel) record(line string) {
	m.history = append(m.history, line)
	if len(m.history) > historyLimit {
		m.history = m.history[len(m.history)-historyLimit:]
	}
}

func (m *SyncModel) start() tea.Cmd {
	m.progress = make(chan tasks.ProgressUpdate, progressBuffer)
	m.done = make(chan struct{})

	go func() {
		m.result = m.run(m.ctx, m.progress)
		close(m.done)
		close(m.progress)
	}()

	return m.waitForProgress()
}

func (m *SyncModel) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.progress
		if !ok {
			return syncCompleteMsg(m.result)
		}
		return progressUpdateMsg(update)
	}
}

// wait blocks until the background run returns.
func (m *SyncModel) wait() tasks.SyncOutcome {
	<-m.done
	m.outcome = &m.result
	return m.result
}

// RunSync runs fn under an interactive progress view written to out.
//
// Quitting early cancels the run; the returned outcome is whatever the run reported after cancellation.
func RunSync(ctx context.Context, out io.Writer, in io.Reader, title string, fn RunFunc) (tasks.SyncOutcome, error) {
	m := NewSyncModel(ctx, title, fn)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithOutput(out), tea.WithInput(in))

	_, err := p.Run()
	if m.done == nil {
		if err == nil {
			err = errors.New("view exited before the run started")
		}
		return tasks.SyncOutcome{}, fmt.Errorf("failed to start progress view: %w", err)
	}

	if outcome, ok := m.Outcome(); ok {
		return outcome, nil
	}
	return m.wait(), nil
}
