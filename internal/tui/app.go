package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/mindcanvas/internal/orchestrator"
)

// DefaultRefreshRate is how often resource usage is re-read without events.
const DefaultRefreshRate = 500 * time.Millisecond

// maxLogEntries bounds the activity log.
const maxLogEntries = 6

// Options configures an App.
type Options struct {
	// RefreshRate is the periodic refresh interval.
	RefreshRate time.Duration
	// RateLimit is the requests-per-minute ceiling shown by the monitor.
	RateLimit int
}

// promptKind says what the next submitted input line is for.
type promptKind int

const (
	promptTaskContext promptKind = iota + 1
	promptIntentionContext
	promptCollatedOutput
)

// prompt redirects the next submitted input line to an existing intention
// or task instead of creating a new intention.
type prompt struct {
	kind  promptKind
	id    string
	title string
}

// App is the main bubbletea model for the mindcanvas dashboard.
type App struct {
	backend Backend
	ctx     context.Context
	opts    Options

	header  *Header
	canvas  *Canvas
	monitor *ResourceMonitor
	input   *InputField
	logs    []LogEntry
	// pending is set while the input line answers a prompt.
	pending *prompt

	width    int
	height   int
	quitting bool
}

// New creates an App driving backend. ctx bounds every action the
// dashboard starts.
func New(ctx context.Context, backend Backend, opts Options) *App {
	if opts.RefreshRate <= 0 {
		opts.RefreshRate = DefaultRefreshRate
	}
	monitor := NewResourceMonitor()
	monitor.SetLimit(opts.RateLimit)

	return &App{
		backend: backend,
		ctx:     ctx,
		opts:    opts,
		header:  NewHeader(backend.Provider()),
		canvas:  NewCanvas(),
		monitor: monitor,
		input:   NewInputField(),
	}
}

// NewProgram creates a full-screen program for the App.
func NewProgram(ctx context.Context, backend Backend, opts Options) (*tea.Program, *App) {
	app := New(ctx, backend, opts)
	return tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx)), app
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.input.Focus(),
		a.header.Tick(),
		a.refresh(),
		a.waitForEvent(),
		a.tick(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a, a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updateSizes()
		return a, nil

	case IntentionSubmittedMsg:
		if a.pending != nil {
			p := *a.pending
			a.endPrompt()
			return a, a.answer(p, msg.Text)
		}
		a.log(fmt.Sprintf("Listening: %q", msg.Text), false)
		return a, a.action("submit", func(ctx context.Context) error {
			_, err := a.backend.Submit(ctx, msg.Text, nil)
			return err
		})

	case EventMsg:
		if line, isErr := describe(msg.Event); line != "" {
			a.log(line, isErr)
		}
		return a, tea.Batch(a.refresh(), a.waitForEvent())

	case eventsClosedMsg:
		return a, nil

	case SnapshotMsg:
		if msg.Err != nil {
			a.log("refresh failed: "+msg.Err.Error(), true)
			return a, nil
		}
		a.canvas.SetIntentions(msg.Intentions)
		a.monitor.SetUsage(msg.Usage)
		a.header.SetState(msg.State)
		return a, nil

	case ActionDoneMsg:
		if msg.Err != nil {
			a.log(fmt.Sprintf("%s: %v", msg.Action, msg.Err), true)
		}
		return a, a.refresh()

	case NoticeMsg:
		a.log(msg.Message, msg.Error)
		return a, nil

	case tickMsg:
		return a, tea.Batch(a.refresh(), a.tick())

	default:
		return a, a.header.Update(msg)
	}
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		a.quitting = true
		return tea.Quit
	case "tab", "shift+tab":
		return a.toggleFocus()
	case "esc":
		if a.pending != nil {
			a.endPrompt()
			a.log("cancelled", false)
			return nil
		}
		if !a.input.Focused() {
			return a.toggleFocus()
		}
		return nil
	}

	if a.input.Focused() {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return cmd
	}

	switch msg.String() {
	case "q":
		a.quitting = true
		return tea.Quit
	case "up", "k":
		a.canvas.Up()
	case "down", "j":
		a.canvas.Down()
	case "x":
		if t := a.canvas.SelectedTask(); t != nil {
			id := t.ID
			return a.action("execute "+t.Title, func(ctx context.Context) error {
				_, err := a.backend.ExecuteTask(ctx, id, nil)
				return err
			})
		}
	case "a":
		if in := a.canvas.SelectedIntention(); in != nil {
			id := in.ID
			return a.action("execute all", func(ctx context.Context) error {
				return a.backend.ExecuteAll(ctx, id)
			})
		}
	case "f":
		if t := a.canvas.SelectedTask(); t != nil {
			id := t.ID
			return a.action("force-complete "+t.Title, func(context.Context) error {
				_, err := a.backend.ForceComplete(id)
				return err
			})
		}
	case "m":
		if in := a.canvas.SelectedIntention(); in != nil {
			id := in.ID
			return a.action("more tasks", func(ctx context.Context) error {
				_, err := a.backend.GenerateMoreTasks(ctx, id)
				return err
			})
		}
	case "c":
		if in := a.canvas.SelectedIntention(); in != nil {
			id := in.ID
			return a.action("collate", func(context.Context) error {
				_, err := a.backend.Collate(id)
				return err
			})
		}
	case "u":
		if t := a.canvas.SelectedTask(); t != nil {
			return a.startPrompt(prompt{kind: promptTaskContext, id: t.ID, title: t.Title},
				fmt.Sprintf("New context for %q...", t.Title))
		}
		if in := a.canvas.SelectedIntention(); in != nil {
			return a.startPrompt(prompt{kind: promptIntentionContext, id: in.ID, title: in.Title},
				fmt.Sprintf("Context to remember for %q...", in.Title))
		}
	case "e":
		if in := a.canvas.SelectedIntention(); in != nil {
			return a.startPrompt(prompt{kind: promptCollatedOutput, id: in.ID, title: in.Title},
				fmt.Sprintf("Collated output for %q...", in.Title))
		}
	case "d":
		if in := a.canvas.SelectedIntention(); in != nil {
			id := in.ID
			return a.action("fulfill", func(context.Context) error {
				_, err := a.backend.Fulfill(id)
				return err
			})
		}
	case "r":
		return a.action("retry", a.backend.Retry)
	}
	return nil
}

// startPrompt focuses the input line for p.
func (a *App) startPrompt(p prompt, placeholder string) tea.Cmd {
	a.pending = &p
	a.input.SetPlaceholder(placeholder + " (esc cancels)")
	a.canvas.SetFocused(false)
	return a.input.Focus()
}

func (a *App) endPrompt() {
	a.pending = nil
	a.input.SetPlaceholder("")
}

// answer applies text to the prompt target.
func (a *App) answer(p prompt, text string) tea.Cmd {
	switch p.kind {
	case promptTaskContext:
		a.log(fmt.Sprintf("Updating %q", p.title), false)
		return a.action("update "+p.title, func(ctx context.Context) error {
			_, err := a.backend.UpdateTaskWithContext(ctx, p.id, text)
			return err
		})
	case promptIntentionContext:
		return a.action("add context", func(context.Context) error {
			_, err := a.backend.AddUserContext(p.id, text)
			return err
		})
	case promptCollatedOutput:
		return a.action("edit output", func(context.Context) error {
			_, err := a.backend.SetCollatedOutput(p.id, text)
			return err
		})
	}
	return nil
}

func (a *App) toggleFocus() tea.Cmd {
	if a.input.Focused() {
		a.input.Blur()
		a.canvas.SetFocused(true)
		return nil
	}
	a.canvas.SetFocused(false)
	return a.input.Focus()
}

// action runs fn off the update loop and reports the outcome.
func (a *App) action(name string, fn func(context.Context) error) tea.Cmd {
	ctx := a.ctx
	return func() tea.Msg {
		return ActionDoneMsg{Action: name, Err: fn(ctx)}
	}
}

func (a *App) refresh() tea.Cmd {
	b := a.backend
	return func() tea.Msg {
		intentions, err := b.Intentions()
		return SnapshotMsg{
			Intentions: intentions,
			Usage:      b.ResourceUsage(),
			State:      b.ProcessingState(),
			Err:        err,
		}
	}
}

func (a *App) waitForEvent() tea.Cmd {
	events := a.backend.Events()
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return EventMsg{Event: e}
	}
}

func (a *App) tick() tea.Cmd {
	return tea.Tick(a.opts.RefreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) log(message string, isErr bool) {
	a.logs = append(a.logs, LogEntry{Timestamp: time.Now(), Message: message, Error: isErr})
	if len(a.logs) > maxLogEntries {
		a.logs = a.logs[len(a.logs)-maxLogEntries:]
	}
}

// describe turns an event into an activity log line. Progress, usage and
// state events are shown by the panels instead.
func describe(e orchestrator.OrchestratorEvent) (string, bool) {
	switch e.Type {
	case orchestrator.EventTaskCreated:
		return "New task: " + e.TaskTitle, false
	case orchestrator.EventTaskCompleted:
		return "Completed: " + e.TaskTitle, false
	case orchestrator.EventTaskFailed:
		return fmt.Sprintf("Failed: %s (%s)", e.TaskTitle, e.Message), true
	case orchestrator.EventTaskUpdated:
		return fmt.Sprintf("Updated: %s -> %s", e.TaskTitle, e.Message), false
	case orchestrator.EventIntentionFulfilled:
		return "Intention fulfilled", false
	default:
		return "", false
	}
}

func (a *App) updateSizes() {
	monitorWidth := 36
	a.header.SetWidth(a.width)
	a.input.SetWidth(a.width)
	a.monitor.SetWidth(monitorWidth)
	canvasHeight := a.height - a.header.Height() - 3 - maxLogEntries - 2
	a.canvas.SetSize(a.width-monitorWidth-4, max(canvasHeight, 3))
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	canvas := lipgloss.NewStyle().
		Width(max(a.width-40, 40)).
		PaddingRight(2).
		Render(a.canvas.View())
	monitor := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("238")).
		Padding(0, 1).
		Render(a.monitor.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, canvas, monitor)

	return lipgloss.JoinVertical(lipgloss.Left,
		a.header.View(),
		body,
		a.logView(),
		a.input.View(),
		a.helpView(),
	)
}

func (a *App) logView() string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	var lines []string
	for _, e := range a.logs {
		line := dim.Render(e.Timestamp.Format("15:04:05")) + " "
		if e.Error {
			line += errStyle.Render(e.Message)
		} else {
			line += e.Message
		}
		lines = append(lines, line)
	}
	return lipgloss.NewStyle().MarginTop(1).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (a *App) helpView() string {
	help := "tab canvas · enter submit · ctrl+c quit"
	if a.pending != nil {
		help = "enter save · esc cancel"
	}
	if !a.input.Focused() {
		help = "↑/↓ select · x execute · a all · f force · m more · u context · c collate · e edit · d done · r retry · q quit"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(help)
}
