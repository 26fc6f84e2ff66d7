package layout

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Definitions is a declarative layout loaded from YAML.
type Definitions struct {
	Groups   []GroupDef   `yaml:"groups"`
	Elements []ElementDef `yaml:"elements"`
}

// GroupDef declares a group.
type GroupDef struct {
	ID        string `yaml:"id"`
	Exclusive bool   `yaml:"exclusive"`
}

// ElementDef declares an element.
type ElementDef struct {
	ID        string        `yaml:"id"`
	Title     string        `yaml:"title,omitempty"`
	Content   string        `yaml:"content"`
	ZIndex    int           `yaml:"z_index"`
	Position  Position      `yaml:"position"`
	Group     string        `yaml:"group,omitempty"`
	Priority  int           `yaml:"priority,omitempty"`
	Visible   bool          `yaml:"visible"`
	Key       string        `yaml:"key,omitempty"` // toggle shortcut for the renderer
	Animation *AnimationDef `yaml:"animation,omitempty"`
	When      *When         `yaml:"when,omitempty"`
}

// AnimationDef declares an Animation.
type AnimationDef struct {
	Enter    string        `yaml:"enter"`
	Exit     string        `yaml:"exit"`
	Duration time.Duration `yaml:"duration"`
}

// When is a viewport-size rule. Zero bounds are ignored.
type When struct {
	MinWidth  int `yaml:"min_width,omitempty"`
	MaxWidth  int `yaml:"max_width,omitempty"`
	MinHeight int `yaml:"min_height,omitempty"`
	MaxHeight int `yaml:"max_height,omitempty"`
}

// Matches reports whether a viewport of the given size satisfies the rule.
func (w When) Matches(width, height int) bool {
	if w.MinWidth > 0 && width < w.MinWidth {
		return false
	}
	if w.MaxWidth > 0 && width > w.MaxWidth {
		return false
	}
	if w.MinHeight > 0 && height < w.MinHeight {
		return false
	}
	if w.MaxHeight > 0 && height > w.MaxHeight {
		return false
	}
	return true
}

// Viewport reports the current render area size.
type Viewport interface {
	Size() (width, height int)
}

// Content is the payload registered for elements built from definitions.
type Content struct {
	Title string
	Body  string
	Key   string
}

// Definition errors.
var (
	ErrEmptyElementID  = errors.New("element id cannot be empty")
	ErrEmptyGroupID    = errors.New("group id cannot be empty")
	ErrDuplicateID     = errors.New("duplicate id")
	ErrInvalidPosition = errors.New("invalid position")
)

// LoadDefinitions reads and parses a layout file.
func LoadDefinitions(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout file: %w", err)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions parses and validates layout YAML.
func ParseDefinitions(data []byte) (*Definitions, error) {
	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	if err := defs.Validate(); err != nil {
		return nil, err
	}
	return &defs, nil
}

// Validate checks ids and positions.
func (d *Definitions) Validate() error {
	groups := make(map[string]bool)
	for _, g := range d.Groups {
		if g.ID == "" {
			return ErrEmptyGroupID
		}
		if groups[g.ID] {
			return fmt.Errorf("%w: group %q", ErrDuplicateID, g.ID)
		}
		groups[g.ID] = true
	}

	elements := make(map[string]bool)
	for _, e := range d.Elements {
		if e.ID == "" {
			return ErrEmptyElementID
		}
		if elements[e.ID] {
			return fmt.Errorf("%w: element %q", ErrDuplicateID, e.ID)
		}
		elements[e.ID] = true
		if !e.Position.Valid() {
			return fmt.Errorf("%w %q for element %q", ErrInvalidPosition, e.Position, e.ID)
		}
		if e.Group != "" && !groups[e.Group] {
			return fmt.Errorf("element %q references unknown group %q", e.ID, e.Group)
		}
	}
	return nil
}

// Apply creates the declared groups and elements in r. Elements marked
// visible are shown; elements with a When rule get a viewport predicate and
// are resolved by a final EvaluateConditionals.
func (d *Definitions) Apply(r *Registry, vp Viewport) []Change {
	var changes []Change

	for _, g := range d.Groups {
		changes = append(changes, r.CreateGroup(Group{ID: g.ID, Exclusive: g.Exclusive})...)
	}

	for _, def := range d.Elements {
		e := Element{
			ID:       def.ID,
			Content:  Content{Title: def.Title, Body: def.Content, Key: def.Key},
			ZIndex:   def.ZIndex,
			Position: def.Position,
			Group:    def.Group,
			Priority: def.Priority,
		}
		if e.Position == "" {
			e.Position = PositionStatic
		}
		if def.Animation != nil {
			e.Animation = &Animation{
				Enter:    def.Animation.Enter,
				Exit:     def.Animation.Exit,
				Duration: def.Animation.Duration,
			}
		}
		if def.When != nil && vp != nil {
			rule := *def.When
			e.Conditional = &Conditional{
				Predicate: func() bool {
					w, h := vp.Size()
					return rule.Matches(w, h)
				},
			}
		}
		changes = append(changes, r.Register(e)...)
		if def.Visible && e.Conditional == nil {
			changes = append(changes, r.Show(def.ID)...)
		}
	}

	return append(changes, r.EvaluateConditionals()...)
}
