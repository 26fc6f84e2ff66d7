// Package tui provides the BubbleTea-based terminal renderer for the layout
// registry and the toast stack.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jmylchreest/overlay/internal/clock"
	"github.com/jmylchreest/overlay/internal/config"
	"github.com/jmylchreest/overlay/internal/display"
	"github.com/jmylchreest/overlay/internal/layout"
	"github.com/jmylchreest/overlay/internal/model"
	"github.com/jmylchreest/overlay/internal/queue"
)

const (
	// helpElementID is the layout element that also renders the key map.
	helpElementID = "help"

	tickInterval = 100 * time.Millisecond
	promiseDelay = 2 * time.Second
	statusTTL    = 3 * time.Second
)

var errDemoFailure = errors.New("simulated failure")

// termSize is the viewport read by layout conditionals. Predicates run on
// whichever goroutine calls EvaluateConditionals, so it is shared by pointer.
type termSize struct {
	width  atomic.Int64
	height atomic.Int64
}

func (s *termSize) Size() (int, int) {
	return int(s.width.Load()), int(s.height.Load())
}

func (s *termSize) set(width, height int) {
	s.width.Store(int64(width))
	s.height.Store(int64(height))
}

// Model is the main TUI model.
type Model struct {
	ctx      context.Context
	cfg      *config.Config
	registry *layout.Registry
	queue    *queue.Queue
	display  *display.Manager
	clock    clock.Clock
	logger   *slog.Logger

	keys KeyMap
	help help.Model

	size     *termSize
	width    int
	height   int
	ready    bool
	selected int    // index into registry.Elements()
	focused  string // toast id with keyboard focus
	demos    int
	promises int

	statusMsg string
	statusErr bool

	layoutCh <-chan []layout.Change
	queueCh  <-chan queue.Event
}

// Options wires a Model to its collaborators. A nil Queue or Registry is
// taken from Context when one is attached there, and created otherwise. A
// nil Display is created.
type Options struct {
	Context  context.Context
	Config   *config.Config
	Registry *layout.Registry
	Queue    *queue.Queue
	Display  *display.Manager
	Layout   *layout.Definitions
	Clock    clock.Clock
	Logger   *slog.Logger
}

// New creates a new TUI model and applies opts.Layout to the registry.
func New(opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		if r, ok := layout.FromContext(opts.Context); ok {
			opts.Registry = r
		} else {
			opts.Registry = layout.NewRegistry(opts.Logger)
		}
	}
	if opts.Queue == nil {
		if q, ok := queue.FromContext(opts.Context); ok {
			opts.Queue = q
		}
	}
	if opts.Queue == nil {
		opts.Queue = queue.New(
			queue.WithMax(opts.Config.Queue.MaxNotifications),
			queue.WithDurations(opts.Config.Durations()),
			queue.WithClock(opts.Clock),
			queue.WithLogger(opts.Logger),
		)
	}
	if opts.Display == nil {
		opts.Display = display.NewManager(opts.Queue, opts.Config, opts.Logger, display.WithClock(opts.Clock))
	}

	ctx := layout.NewContext(queue.NewContext(opts.Context, opts.Queue), opts.Registry)

	m := Model{
		ctx:      ctx,
		cfg:      opts.Config,
		registry: opts.Registry,
		queue:    opts.Queue,
		display:  opts.Display,
		clock:    opts.Clock,
		logger:   opts.Logger,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		size:     &termSize{},
	}

	if opts.Layout != nil {
		opts.Layout.Apply(m.registry, m.size)
	}

	m.layoutCh = m.registry.Subscribe()
	if ch, err := m.queue.Subscribe(); err == nil {
		m.queueCh = ch
	}
	return m
}

// Init initializes the TUI.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.watchLayout,
		m.watchQueue,
		tick(),
	)
}

type layoutMsg struct{}

type queueMsg struct{}

type tickMsg time.Time

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

type promiseDoneMsg struct {
	id     string
	result queue.Result[int]
}

// watchLayout waits for the next registry change.
func (m Model) watchLayout() tea.Msg {
	if m.layoutCh == nil {
		return nil
	}
	if _, ok := <-m.layoutCh; !ok {
		return nil
	}
	return layoutMsg{}
}

// watchQueue waits for the next queue event.
func (m Model) watchQueue() tea.Msg {
	if m.queueCh == nil {
		return nil
	}
	if _, ok := <-m.queueCh; !ok {
		return nil
	}
	return queueMsg{}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func status(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isErr: isErr}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.size.set(msg.Width, msg.Height)
		m.registry.EvaluateConditionals()
		return m, nil

	case layoutMsg:
		return m, m.watchLayout

	case queueMsg:
		m.refocus()
		return m, m.watchQueue

	case tickMsg:
		m.refocus()
		return m, tick()

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(statusTTL, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil

	case promiseDoneMsg:
		if msg.result.Err != nil {
			return m, status("Promise failed: "+msg.result.Err.Error(), true)
		}
		return m, status(fmt.Sprintf("Promise %s resolved", shortID(msg.id)), false)
	}

	return m, nil
}

// handleKey handles key presses. Element toggle keys declared by the layout
// are checked after the fixed bindings.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.display.Hover(m.focused, false)
		return m, tea.Quit

	case key.Matches(msg, m.keys.Next):
		m.selectElement(1)
		return m, nil

	case key.Matches(msg, m.keys.Prev):
		m.selectElement(-1)
		return m, nil

	case key.Matches(msg, m.keys.Show):
		if id, ok := m.selectedID(); ok {
			m.registry.Show(id)
		}
		return m, nil

	case key.Matches(msg, m.keys.Hide):
		if id, ok := m.selectedID(); ok {
			m.registry.Hide(id)
		}
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		if id, ok := m.selectedID(); ok {
			m.registry.Toggle(id)
		}
		return m, nil

	case key.Matches(msg, m.keys.Back):
		m.closeModals()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.moveFocus(-1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.moveFocus(1)
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		return m, m.dismissFocused()

	case key.Matches(msg, m.keys.DismissAll):
		m.display.CloseAll()
		return m, status("All notifications dismissed", false)

	case key.Matches(msg, m.keys.Demo):
		m.addDemo()
		return m, nil

	case key.Matches(msg, m.keys.Promise):
		return m, m.startPromise()
	}

	for _, e := range m.registry.Elements() {
		if c, ok := e.Content.(layout.Content); ok && c.Key != "" && c.Key == msg.String() {
			m.registry.Toggle(e.ID)
			return m, nil
		}
	}
	return m, nil
}

// selectElement moves the element selection by delta, wrapping around.
func (m *Model) selectElement(delta int) {
	n := m.registry.Len()
	if n == 0 {
		m.selected = 0
		return
	}
	m.selected = ((m.selected+delta)%n + n) % n
}

func (m Model) selectedID() (string, bool) {
	elements := m.registry.Elements()
	if len(elements) == 0 {
		return "", false
	}
	idx := min(m.selected, len(elements)-1)
	return elements[idx].ID, true
}

// closeModals hides every visible member of an exclusive group.
func (m Model) closeModals() {
	for _, g := range m.registry.Groups() {
		if !g.Exclusive {
			continue
		}
		for _, id := range g.Elements {
			m.registry.Hide(id)
		}
	}
}

// toastIDs returns the ids of mounted toasts that are not leaving.
func (m Model) toastIDs() []string {
	states := m.display.States()
	ids := make([]string, 0, len(states))
	for _, s := range states {
		if !s.Leaving {
			ids = append(ids, s.Notification.ID)
		}
	}
	return ids
}

// moveFocus moves keyboard focus between toasts. Focus counts as hover, so
// the focused toast's countdown is paused.
func (m *Model) moveFocus(delta int) {
	ids := m.toastIDs()
	if len(ids) == 0 {
		m.setFocus("")
		return
	}

	idx := -1
	for i, id := range ids {
		if id == m.focused {
			idx = i
			break
		}
	}
	switch {
	case idx < 0 && delta < 0:
		idx = len(ids) - 1
	case idx < 0:
		idx = 0
	default:
		idx = max(0, min(len(ids)-1, idx+delta))
	}
	m.setFocus(ids[idx])
}

func (m *Model) setFocus(id string) {
	if id == m.focused {
		return
	}
	if m.focused != "" {
		m.display.Hover(m.focused, false)
	}
	m.focused = id
	if id != "" {
		m.display.Hover(id, true)
	}
}

// refocus drops focus from a toast that has started leaving or is gone.
func (m *Model) refocus() {
	if m.focused == "" {
		return
	}
	if s, ok := m.display.State(m.focused); ok && !s.Leaving {
		return
	}
	m.focused = ""
}

func (m *Model) dismissFocused() tea.Cmd {
	if m.focused == "" {
		return status("No toast focused", true)
	}
	s, ok := m.display.State(m.focused)
	if !ok {
		m.focused = ""
		return nil
	}
	if !s.Notification.Dismissible {
		return status("Notification is not dismissible", true)
	}
	m.display.Dismiss(m.focused)
	m.focused = ""
	return nil
}

// addDemo queues a toast, cycling through the notification types.
func (m *Model) addDemo() {
	types := model.Types()
	t := types[m.demos%len(types)]
	m.demos++
	m.queue.Add(model.Notification{
		Source:      "overlay",
		Title:       fmt.Sprintf("Demo %d", m.demos),
		Message:     fmt.Sprintf("A %s notification.", t),
		Type:        t,
		Dismissible: true,
	})
}

// startPromise queues a loading toast that settles after promiseDelay.
// Every second promise fails.
func (m *Model) startPromise() tea.Cmd {
	m.promises++
	n := m.promises
	c := m.clock

	id, done := queue.Promise(m.ctx, m.queue, queue.Messages[int]{
		Loading: fmt.Sprintf("Running task %d...", n),
		Success: func(v int) string { return fmt.Sprintf("Task %d finished", v) },
		Error:   func(err error) string { return fmt.Sprintf("Task %d failed: %v", n, err) },
	}, func(ctx context.Context) (int, error) {
		fired := make(chan struct{})
		t := c.AfterFunc(promiseDelay, func() { close(fired) })
		defer t.Stop()

		select {
		case <-fired:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		if n%2 == 0 {
			return 0, errDemoFailure
		}
		return n, nil
	})

	return func() tea.Msg {
		return promiseDoneMsg{id: id, result: <-done}
	}
}

// RunOptions configures the TUI.
type RunOptions struct {
	Options
	// OnStart runs once the display manager is running, before the program
	// starts. It is used to attach notification sources. Its context carries
	// the queue and the registry.
	OnStart func(ctx context.Context) error
}

// Run starts the display manager and the TUI and blocks until the user quits.
func Run(opts RunOptions) error {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	ctx, cancel := context.WithCancel(opts.Context)
	defer cancel()
	opts.Context = ctx

	m := New(opts.Options)
	defer m.registry.Close()
	defer m.queue.Unsubscribe(m.queueCh)
	ctx = m.ctx

	go func() {
		if err := m.display.Run(ctx); err != nil {
			m.logger.Error("display manager stopped", "error", err)
		}
	}()

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx); err != nil {
			return err
		}
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
