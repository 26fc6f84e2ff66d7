package tui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jmylchreest/overlay/internal/config"
	"github.com/jmylchreest/overlay/internal/display"
	"github.com/jmylchreest/overlay/internal/layout"
	"github.com/jmylchreest/overlay/internal/model"
)

const (
	panelWidth        = 30
	defaultToastWidth = 40
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	modalStyle  = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).Padding(1, 2)
	toastStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	selectStyle = lipgloss.NewStyle().Reverse(true)
)

// typeColors maps notification types to ANSI colors.
var typeColors = map[model.Type]lipgloss.Color{
	model.TypeDefault: lipgloss.Color("7"),
	model.TypeSuccess: lipgloss.Color("10"),
	model.TypeError:   lipgloss.Color("9"),
	model.TypeInfo:    lipgloss.Color("12"),
	model.TypeWarning: lipgloss.Color("11"),
	model.TypeLoading: lipgloss.Color("13"),
}

// typeIcons maps notification types to a one-cell glyph.
var typeIcons = map[model.Type]string{
	model.TypeDefault: "•",
	model.TypeSuccess: "✓",
	model.TypeError:   "✗",
	model.TypeInfo:    "i",
	model.TypeWarning: "!",
	model.TypeLoading: "…",
}

// View renders visible elements by z-index. Sticky elements form the bottom
// bar and the top-most member of an exclusive group is drawn as a modal over
// the toast area. Everything else stacks in a side column.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var bars, panels, modals []layout.Element
	for _, e := range m.registry.Visible() {
		switch {
		case e.Position == layout.PositionSticky:
			bars = append(bars, e)
		case m.exclusive(e.Group):
			modals = append(modals, e)
		default:
			panels = append(panels, e)
		}
	}

	var modal *layout.Element
	if n := len(modals); n > 0 {
		modal = &modals[n-1]
		panels = append(panels, modals[:n-1]...)
		slices.SortStableFunc(panels, func(a, b layout.Element) int { return a.ZIndex - b.ZIndex })
	}

	bottom := m.viewBar(bars)
	bodyHeight := max(0, m.height-lipgloss.Height(bottom))

	side := m.viewPanels(panels)
	mainWidth := max(0, m.width-lipgloss.Width(side))

	var main string
	if modal != nil {
		main = lipgloss.Place(mainWidth, bodyHeight, lipgloss.Center, lipgloss.Center, m.viewModal(*modal))
	} else {
		h, v := alignment(config.Position(m.cfg.Display.Position))
		main = lipgloss.Place(mainWidth, bodyHeight, h, v, m.viewToasts())
	}

	body := main
	if side != "" {
		body = lipgloss.JoinHorizontal(lipgloss.Top, side, main)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, bottom)
}

func (m Model) exclusive(group string) bool {
	if group == "" {
		return false
	}
	g, ok := m.registry.Group(group)
	return ok && g.Exclusive
}

// viewBar renders sticky elements, the element selector and the status line.
func (m Model) viewBar(bars []layout.Element) string {
	lines := make([]string, 0, len(bars)+2)
	for _, e := range bars {
		lines = append(lines, dimStyle.Render(contentText(e)))
	}
	lines = append(lines, m.viewSelector())
	if m.statusMsg != "" {
		style := keyStyle
		if m.statusErr {
			style = errorStyle
		}
		lines = append(lines, style.Render(m.statusMsg))
	}
	return strings.Join(lines, "\n")
}

// viewSelector lists element ids with the selected one highlighted.
func (m Model) viewSelector() string {
	elements := m.registry.Elements()
	if len(elements) == 0 {
		return m.help.ShortHelpView(m.keys.ShortHelp())
	}
	selected := min(m.selected, len(elements)-1)
	parts := make([]string, 0, len(elements))
	for i, e := range elements {
		label := e.ID
		if e.Visible {
			label += "*"
		}
		if i == selected {
			label = selectStyle.Render(label)
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, " ")
}

func (m Model) viewPanels(panels []layout.Element) string {
	if len(panels) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(panels))
	for _, e := range panels {
		rendered = append(rendered, panelStyle.Width(panelWidth).Render(elementBody(e)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rendered...)
}

func (m Model) viewModal(e layout.Element) string {
	body := elementBody(e)
	if e.ID == helpElementID {
		body += "\n" + m.help.FullHelpView(m.keys.FullHelp())
	}
	return modalStyle.Render(body)
}

// viewToasts renders the mounted notifications. Bottom-anchored stacks put
// the newest toast nearest the edge.
func (m Model) viewToasts() string {
	states := m.display.States()
	if len(states) == 0 {
		return ""
	}

	width := m.cfg.Display.Width
	if width <= 0 {
		width = defaultToastWidth
	}
	gap := strings.Repeat("\n", max(0, m.cfg.Display.Gap))

	rendered := make([]string, 0, len(states))
	for _, s := range states {
		rendered = append(rendered, renderToast(s, width, s.Notification.ID == m.focused))
	}
	if strings.HasPrefix(m.cfg.Display.Position, "bottom") {
		slices.Reverse(rendered)
	}
	return strings.Join(rendered, "\n"+gap)
}

func renderToast(s display.State, width int, focused bool) string {
	n := s.Notification
	color, ok := typeColors[n.Type]
	if !ok {
		color = typeColors[model.TypeDefault]
	}

	style := toastStyle.Width(width).BorderForeground(color)
	if focused {
		style = style.BorderStyle(lipgloss.ThickBorder())
	}
	if s.Leaving {
		style = style.Faint(true)
	}

	title := n.Title
	if title == "" {
		title = n.Source
	}
	header := lipgloss.NewStyle().Foreground(color).Render(typeIcons[n.Type])
	if title != "" {
		header += " " + lipgloss.NewStyle().Bold(true).Render(title)
	}

	lines := []string{header}
	if n.Message != "" {
		lines = append(lines, n.Message)
	}
	lines = append(lines, dimStyle.Render(countdown(s)))
	return style.Render(strings.Join(lines, "\n"))
}

// countdown describes the remaining lifetime of a toast.
func countdown(s display.State) string {
	switch {
	case s.Leaving:
		return "closing"
	case s.Remaining < 0:
		return "∞"
	case s.Paused:
		return fmt.Sprintf("paused %s", s.Remaining.Round(100*time.Millisecond))
	default:
		return s.Remaining.Round(100 * time.Millisecond).String()
	}
}

// alignment maps a stack position to lipgloss placement.
func alignment(p config.Position) (lipgloss.Position, lipgloss.Position) {
	h, v := lipgloss.Right, lipgloss.Top
	switch p {
	case config.PositionTopLeft:
		h = lipgloss.Left
	case config.PositionTopCenter:
		h = lipgloss.Center
	case config.PositionBottomLeft:
		h, v = lipgloss.Left, lipgloss.Bottom
	case config.PositionBottomRight:
		v = lipgloss.Bottom
	case config.PositionBottomCenter:
		h, v = lipgloss.Center, lipgloss.Bottom
	}
	return h, v
}

// elementBody renders an element's title and content.
func elementBody(e layout.Element) string {
	if c, ok := e.Content.(layout.Content); ok && c.Title != "" {
		return titleStyle.Render(c.Title) + "\n" + strings.TrimRight(c.Body, "\n")
	}
	return strings.TrimRight(contentText(e), "\n")
}

func contentText(e layout.Element) string {
	switch c := e.Content.(type) {
	case layout.Content:
		return c.Body
	case string:
		return c
	case nil:
		return e.ID
	default:
		return fmt.Sprint(c)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}
