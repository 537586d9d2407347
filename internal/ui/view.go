package ui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/meshview/internal/event"
	"github.com/dshills/meshview/internal/event/events"
	"github.com/dshills/meshview/internal/event/topic"
	"github.com/dshills/meshview/internal/log"
)

// DefaultTreeWidth is the width of the part tree panel in columns.
const DefaultTreeWidth = 36

// View owns the terminal screen. It repaints on selection and load
// events and turns key presses into select.requested intents.
type View struct {
	screen tcell.Screen
	bus    *event.Bus
	logger *log.Logger

	mu     sync.Mutex
	tree   *Tree
	status string
	quit   bool

	treeWidth int
	subs      []event.Subscription
}

// Option configures a View.
type Option func(*View)

// WithScreen injects a screen, used by tests with tcell's
// SimulationScreen.
func WithScreen(s tcell.Screen) Option {
	return func(v *View) { v.screen = s }
}

// WithTreeWidth sets the tree panel width.
func WithTreeWidth(n int) Option {
	return func(v *View) { v.treeWidth = n }
}

// NewView creates the terminal view and subscribes it to the bus.
func NewView(bus *event.Bus, logger *log.Logger, opts ...Option) (*View, error) {
	if logger == nil {
		logger = log.Discard()
	}
	v := &View{
		bus:       bus,
		logger:    logger.WithComponent("ui"),
		tree:      NewTree(),
		status:    "no model loaded",
		treeWidth: DefaultTreeWidth,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return nil, fmt.Errorf("create screen: %w", err)
		}
		v.screen = screen
	}

	if err := v.subscribe(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *View) subscribe() error {
	wiring := []struct {
		pattern topic.Topic
		fn      event.HandlerFunc
	}{
		{events.TopicLoadCompleted, v.onLoadCompleted},
		{events.TopicLoadFailed, v.onLoadFailed},
		{events.TopicLoadUnloaded, v.onLoadUnloaded},
		{events.TopicSelectionChanged, v.onSelectionChanged},
	}
	for _, w := range wiring {
		sub, err := v.bus.SubscribeFunc(w.pattern, w.fn)
		if err != nil {
			return err
		}
		v.subs = append(v.subs, sub)
	}
	return nil
}

func (v *View) onLoadCompleted(ctx context.Context, env event.Envelope) error {
	done := env.Payload.(events.LoadCompleted)
	v.mu.Lock()
	v.tree.SetGraph(done.Graph)
	v.status = fmt.Sprintf("%s  (%d parts, %s)", done.Resource, done.Graph.Len(), done.Duration.Round(time.Millisecond))
	v.mu.Unlock()
	v.repaint()
	return nil
}

func (v *View) onLoadFailed(ctx context.Context, env event.Envelope) error {
	failed := env.Payload.(events.LoadFailed)
	v.mu.Lock()
	v.status = fmt.Sprintf("load failed: %s: %v", failed.Resource, failed.Err)
	v.mu.Unlock()
	v.repaint()
	return nil
}

func (v *View) onLoadUnloaded(ctx context.Context, env event.Envelope) error {
	v.mu.Lock()
	v.tree.SetGraph(nil)
	v.status = "no model loaded"
	v.mu.Unlock()
	v.repaint()
	return nil
}

func (v *View) onSelectionChanged(ctx context.Context, env event.Envelope) error {
	changed := env.Payload.(events.SelectionChanged)
	v.mu.Lock()
	v.tree.ApplySelection(changed.SelectedIDs, changed.FocusedID, changed.Expanded)
	v.mu.Unlock()
	v.repaint()
	return nil
}

// repaint wakes the event loop so it redraws outside bus dispatch.
func (v *View) repaint() {
	_ = v.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

// Run initializes the screen and blocks in the input loop until Stop is
// called or the user quits.
func (v *View) Run(ctx context.Context) error {
	if err := v.screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer v.screen.Fini()

	v.render()
	for {
		ev := v.screen.PollEvent()
		if ev == nil {
			return nil
		}
		switch ev := ev.(type) {
		case *tcell.EventResize:
			v.screen.Sync()
		case *tcell.EventInterrupt:
			v.mu.Lock()
			quit := v.quit
			v.mu.Unlock()
			if quit {
				return nil
			}
		case *tcell.EventKey:
			if v.handleKey(ctx, ev) {
				return nil
			}
		}
		v.render()
	}
}

// handleKey reports true when the view should exit.
func (v *View) handleKey(ctx context.Context, ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		v.mu.Lock()
		v.tree.MoveUp()
		v.mu.Unlock()
	case tcell.KeyDown:
		v.mu.Lock()
		v.tree.MoveDown()
		v.mu.Unlock()
	case tcell.KeyEnter:
		v.selectCursor(ctx)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true
		case 'k':
			v.mu.Lock()
			v.tree.MoveUp()
			v.mu.Unlock()
		case 'j':
			v.mu.Lock()
			v.tree.MoveDown()
			v.mu.Unlock()
		case ' ':
			v.mu.Lock()
			v.tree.ToggleExpand()
			v.mu.Unlock()
		case 'c':
			v.clearSelection(ctx)
		}
	}
	return false
}

// selectCursor publishes a tree selection intent for the cursor row.
func (v *View) selectCursor(ctx context.Context) {
	v.mu.Lock()
	id := v.tree.CursorID()
	v.mu.Unlock()
	if id == "" {
		return
	}
	env := event.New(events.TopicSelectRequested, events.SelectRequested{
		Source: events.SourceTree,
		ItemID: id,
	}, "ui")
	if err := v.bus.Publish(ctx, env); err != nil {
		v.logger.Warn("publish select: %v", err)
	}
}

func (v *View) clearSelection(ctx context.Context) {
	env := event.New(events.TopicSelectRequested, events.SelectRequested{
		Source: events.SourceTree,
	}, "ui")
	if err := v.bus.Publish(ctx, env); err != nil {
		v.logger.Warn("publish clear: %v", err)
	}
}

// Stop asks the input loop to exit.
func (v *View) Stop() {
	v.mu.Lock()
	v.quit = true
	v.mu.Unlock()
	_ = v.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

// Close cancels the bus subscriptions.
func (v *View) Close() {
	for _, sub := range v.subs {
		sub.Cancel()
	}
}

func (v *View) render() {
	v.mu.Lock()
	rows := append([]Row(nil), v.tree.Rows()...)
	cursor := v.tree.Cursor()
	status := v.status
	v.mu.Unlock()

	v.screen.Clear()
	width, height := v.screen.Size()
	treeWidth := v.treeWidth
	if treeWidth > width {
		treeWidth = width
	}

	base := tcell.StyleDefault
	cursorStyle := base.Reverse(true)
	selectedStyle := base.Bold(true).Foreground(tcell.ColorYellow)

	for i, row := range rows {
		if i >= height-1 {
			break
		}
		style := base
		if row.Selected {
			style = selectedStyle
		}
		if i == cursor {
			style = cursorStyle
		}
		drawText(v.screen, 0, i, treeWidth, rowLabel(row), style)
	}

	drawText(v.screen, 0, height-1, width, status, base.Reverse(true))
	v.screen.Show()
}

// rowLabel formats one tree line: indent, expansion marker, name.
func rowLabel(row Row) string {
	marker := "  "
	if row.HasKids {
		if row.Expanded {
			marker = "▾ "
		} else {
			marker = "▸ "
		}
	}
	indent := ""
	for i := 0; i < row.Depth; i++ {
		indent += "  "
	}
	name := row.Name
	if name == "" {
		name = row.ID
	}
	return indent + marker + name
}

func drawText(s tcell.Screen, x, y, maxWidth int, text string, style tcell.Style) {
	col := x
	for _, r := range text {
		if col-x >= maxWidth {
			break
		}
		s.SetContent(col, y, r, nil, style)
		col++
	}
	// Pad the remainder so reverse-video bars extend full width.
	for col-x < maxWidth {
		s.SetContent(col, y, ' ', nil, style)
		col++
	}
}
