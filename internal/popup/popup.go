package popup

import (
	"slices"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	layershell "github.com/diamondburned/gotk4-layer-shell/pkg/gtk4layershell"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/jmylchreest/overlay/internal/config"
	"github.com/jmylchreest/overlay/internal/display"
	"github.com/jmylchreest/overlay/internal/model"
)

// typeIcons maps notification types to themed icon names.
var typeIcons = map[model.Type]string{
	model.TypeDefault: "dialog-information-symbolic",
	model.TypeSuccess: "emblem-ok-symbolic",
	model.TypeError:   "dialog-error-symbolic",
	model.TypeInfo:    "dialog-information-symbolic",
	model.TypeWarning: "dialog-warning-symbolic",
	model.TypeLoading: "content-loading-symbolic",
}

// Popup is the layer-shell window of one mounted notification.
// Its methods must be called on the GTK main loop.
type Popup struct {
	window *gtk.Window

	box      *gtk.Box
	icon     *gtk.Image
	source   *gtk.Label
	title    *gtk.Label
	message  *gtk.Label
	status   *gtk.Label
	closeBtn *gtk.Button

	scheme      string
	classes     []string
	dismissible bool

	placement display.Placement
	placed    bool
	closed    bool

	onHover   func(hovering bool)
	onDismiss func()
}

func newPopup(app *gtk.Application, s display.State, cfg config.PopupConfig) *Popup {
	p := &Popup{scheme: colorSchemeClass(cfg.ColorScheme)}

	p.window = gtk.NewWindow()
	p.window.SetApplication(app)
	p.window.SetDecorated(false)
	p.window.SetResizable(false)
	p.window.SetDefaultSize(cfg.Width, -1)
	p.window.SetSizeRequest(cfg.Width, -1)

	layershell.InitForWindow(p.window)
	layershell.SetLayer(p.window, layershell.LayerShellLayerTop)
	layershell.SetExclusiveZone(p.window, 0)
	layershell.SetKeyboardMode(p.window, layershell.LayerShellKeyboardModeNone)
	layershell.SetNamespace(p.window, "overlay-notification")

	p.buildUI()
	p.connectSignals()
	p.Update(s)
	return p
}

func (p *Popup) buildUI() {
	p.box = gtk.NewBox(gtk.OrientationVertical, 4)
	p.box.SetMarginTop(8)
	p.box.SetMarginBottom(8)
	p.box.SetMarginStart(12)
	p.box.SetMarginEnd(12)

	header := gtk.NewBox(gtk.OrientationHorizontal, 8)
	header.AddCSSClass("notification-header")

	p.icon = gtk.NewImage()
	p.icon.AddCSSClass("notification-icon")
	p.icon.SetPixelSize(16)
	header.Append(p.icon)

	p.source = gtk.NewLabel("")
	p.source.AddCSSClass("notification-source")
	p.source.SetXAlign(0)
	p.source.SetHExpand(true)
	header.Append(p.source)

	p.status = gtk.NewLabel("paused")
	p.status.AddCSSClass("notification-status")
	p.status.SetVisible(false)
	header.Append(p.status)

	p.closeBtn = gtk.NewButtonFromIconName("window-close-symbolic")
	p.closeBtn.AddCSSClass("notification-close")
	p.closeBtn.SetVisible(false)
	header.Append(p.closeBtn)

	p.box.Append(header)

	p.title = gtk.NewLabel("")
	p.title.AddCSSClass("notification-title")
	p.title.SetXAlign(0)
	p.title.SetEllipsize(3) // PANGO_ELLIPSIZE_END
	p.box.Append(p.title)

	p.message = gtk.NewLabel("")
	p.message.AddCSSClass("notification-message")
	p.message.SetXAlign(0)
	p.message.SetWrap(true)
	p.message.SetWrapMode(2) // PANGO_WRAP_WORD_CHAR
	p.message.SetMaxWidthChars(50)
	p.box.Append(p.message)

	p.window.SetChild(p.box)
}

func (p *Popup) connectSignals() {
	p.closeBtn.ConnectClicked(p.dismiss)

	motion := gtk.NewEventControllerMotion()
	motion.ConnectEnter(func(x, y float64) {
		p.closeBtn.SetVisible(p.dismissible)
		if p.onHover != nil {
			p.onHover(true)
		}
	})
	motion.ConnectLeave(func() {
		p.closeBtn.SetVisible(false)
		if p.onHover != nil {
			p.onHover(false)
		}
	})
	p.window.AddController(motion)

	click := gtk.NewGestureClick()
	click.SetButton(1)
	click.ConnectReleased(func(nPress int, x, y float64) {
		p.dismiss()
	})
	p.window.AddController(click)
}

func (p *Popup) dismiss() {
	if p.dismissible && p.onDismiss != nil {
		p.onDismiss()
	}
}

// Update redraws the popup for s.
func (p *Popup) Update(s display.State) {
	n := s.Notification
	p.dismissible = n.Dismissible

	icon, ok := typeIcons[n.Type]
	if !ok {
		icon = typeIcons[model.TypeDefault]
	}
	p.icon.SetFromIconName(icon)

	source := n.Source
	if source == "" {
		source = string(n.Type)
	}
	p.source.SetText(source)
	p.title.SetText(n.Title)
	p.title.SetVisible(n.Title != "")
	p.message.SetText(n.Message)

	switch {
	case s.Leaving:
		p.status.SetText("closing")
		p.status.SetVisible(true)
	case s.Paused:
		p.status.SetText("paused")
		p.status.SetVisible(true)
	default:
		p.status.SetVisible(false)
	}
	if !p.dismissible {
		p.closeBtn.SetVisible(false)
	}

	classes := append(display.StyleClasses(s), p.scheme)
	for _, c := range p.classes {
		if !slices.Contains(classes, c) {
			p.box.RemoveCSSClass(c)
		}
	}
	for _, c := range classes {
		if !slices.Contains(p.classes, c) {
			p.box.AddCSSClass(c)
		}
	}
	p.classes = classes
}

// Place anchors the popup and presents it the first time it is placed.
func (p *Popup) Place(pl display.Placement, monitor *gdk.Monitor) {
	if p.closed || (p.placed && pl == p.placement) {
		return
	}

	layershell.SetAnchor(p.window, layershell.LayerShellEdgeTop, pl.Anchor.Has(display.EdgeTop))
	layershell.SetAnchor(p.window, layershell.LayerShellEdgeBottom, pl.Anchor.Has(display.EdgeBottom))
	layershell.SetAnchor(p.window, layershell.LayerShellEdgeLeft, pl.Anchor.Has(display.EdgeLeft))
	layershell.SetAnchor(p.window, layershell.LayerShellEdgeRight, pl.Anchor.Has(display.EdgeRight))

	if pl.Anchor.Has(display.EdgeTop) {
		layershell.SetMargin(p.window, layershell.LayerShellEdgeTop, pl.MarginY)
	}
	if pl.Anchor.Has(display.EdgeBottom) {
		layershell.SetMargin(p.window, layershell.LayerShellEdgeBottom, pl.MarginY)
	}
	if pl.Anchor.Has(display.EdgeLeft) {
		layershell.SetMargin(p.window, layershell.LayerShellEdgeLeft, pl.MarginX)
	}
	if pl.Anchor.Has(display.EdgeRight) {
		layershell.SetMargin(p.window, layershell.LayerShellEdgeRight, pl.MarginX)
	}

	if !p.placed && monitor != nil {
		layershell.SetMonitor(p.window, monitor)
	}
	if !p.placed {
		p.window.Present()
	}
	p.placement = pl
	p.placed = true
}

// Close destroys the window.
func (p *Popup) Close() {
	if p.closed {
		return
	}
	p.closed = true
	p.window.Close()
}

// colorSchemeClass returns "light" or "dark" from the configured scheme,
// asking libadwaita for the system preference.
func colorSchemeClass(scheme string) string {
	switch config.ColorScheme(scheme) {
	case config.ColorSchemeLight:
		return "light"
	case config.ColorSchemeDark:
		return "dark"
	}
	if adw.StyleManagerGetDefault().Dark() {
		return "dark"
	}
	return "light"
}
