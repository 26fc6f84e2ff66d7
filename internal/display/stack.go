package display

import (
	"strings"

	"github.com/jmylchreest/overlay/internal/config"
)

// Edge is a set of screen edges a popup is anchored to.
type Edge uint8

// Screen edges.
const (
	EdgeTop Edge = 1 << iota
	EdgeBottom
	EdgeLeft
	EdgeRight
)

// Has reports whether e includes edge.
func (e Edge) Has(edge Edge) bool {
	return e&edge != 0
}

// Placement is where a popup sits: the edges it is anchored to and its
// margins from them.
type Placement struct {
	Anchor  Edge
	MarginX int // from the anchored left or right edge
	MarginY int // from the anchored top or bottom edge
}

// Place returns the placement of the popup in stack slot slot. Slot 0 is
// nearest the anchored edge.
func Place(pos config.Position, popup config.PopupConfig, slot int) Placement {
	p := Placement{
		MarginX: popup.OffsetX,
		MarginY: popup.OffsetY + slot*(popup.Height+popup.Gap),
	}
	switch pos {
	case config.PositionTopLeft:
		p.Anchor = EdgeTop | EdgeLeft
	case config.PositionTopCenter:
		p.Anchor = EdgeTop
		p.MarginX = 0
	case config.PositionBottomLeft:
		p.Anchor = EdgeBottom | EdgeLeft
	case config.PositionBottomRight:
		p.Anchor = EdgeBottom | EdgeRight
	case config.PositionBottomCenter:
		p.Anchor = EdgeBottom
		p.MarginX = 0
	default:
		p.Anchor = EdgeTop | EdgeRight
	}
	return p
}

// StackPlan lists what a popup renderer changes to match the mounted
// notifications.
type StackPlan struct {
	Create []State          // mounted but not on screen, in queue order
	Update []State          // on screen with changed content or state
	Remove []string         // on screen but no longer mounted
	Slots  map[string]int   // stack slot of every mounted id
	Shown  map[string]State // what is on screen once the plan is applied
}

// PlanStack diffs the popups on screen, keyed by notification id with the
// state they last rendered, against the mounted states. The stack reads
// oldest first from the top of the screen whichever edge it is anchored to.
func PlanStack(shown map[string]State, states []State, pos config.Position) StackPlan {
	plan := StackPlan{
		Slots: make(map[string]int, len(states)),
		Shown: make(map[string]State, len(states)),
	}

	bottom := strings.HasPrefix(string(pos), "bottom")
	for i, s := range states {
		id := s.Notification.ID
		slot := i
		if bottom {
			slot = len(states) - 1 - i
		}
		plan.Slots[id] = slot
		plan.Shown[id] = s

		prev, ok := shown[id]
		switch {
		case !ok:
			plan.Create = append(plan.Create, s)
		case changed(prev, s):
			plan.Update = append(plan.Update, s)
		}
	}

	for id := range shown {
		if _, ok := plan.Shown[id]; !ok {
			plan.Remove = append(plan.Remove, id)
		}
	}
	return plan
}

func changed(a, b State) bool {
	an, bn := a.Notification, b.Notification
	return a.Paused != b.Paused ||
		a.Leaving != b.Leaving ||
		an.Title != bn.Title ||
		an.Message != bn.Message ||
		an.Source != bn.Source ||
		an.Type != bn.Type ||
		an.Dismissible != bn.Dismissible
}

// StyleClasses returns the CSS classes of a popup showing s.
func StyleClasses(s State) []string {
	classes := []string{"notification-popup", "type-" + string(s.Notification.Type)}
	if s.Notification.Title != "" {
		classes = append(classes, "has-title")
	}
	if s.Notification.Dismissible {
		classes = append(classes, "dismissible")
	}
	if s.Remaining < 0 {
		classes = append(classes, "persistent")
	}
	if s.Paused {
		classes = append(classes, "paused")
	}
	if s.Leaving {
		classes = append(classes, "leaving")
	}
	return classes
}
