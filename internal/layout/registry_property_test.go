package layout

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// op is a randomly generated registry mutation.
type op struct {
	Kind    int
	Element int
}

func genOp() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 7),
		gen.IntRange(0, 5),
	).Map(func(v []any) op {
		return op{Kind: v[0].(int), Element: v[1].(int)}
	})
}

// fixture is a registry whose elements all carry a conditional reading
// inputs[i].
type fixture struct {
	r      *Registry
	inputs []bool
}

func (o op) apply(f *fixture) {
	r := f.r
	id := fmt.Sprintf("e%d", o.Element)
	switch o.Kind {
	case 0:
		r.Show(id)
	case 1:
		r.Hide(id)
	case 2:
		r.Toggle(id)
	case 3:
		r.AddToGroup(id, "exclusive")
	case 4:
		r.RemoveFromGroup(id, "exclusive")
	case 5:
		r.Update(id, func(e *Element) { e.Visible = !e.Visible })
	case 6:
		f.inputs[o.Element] = !f.inputs[o.Element]
		r.EvaluateConditionals()
	case 7:
		r.CreateGroup(Group{ID: "exclusive", Exclusive: true})
	}
}

// TestRegistryProperties checks structural invariants under random operation sequences.
func TestRegistryProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	setup := func() *fixture {
		f := &fixture{r: NewRegistry(nil), inputs: make([]bool, 6)}
		f.r.CreateGroup(Group{ID: "exclusive", Exclusive: true})
		f.r.CreateGroup(Group{ID: "shared"})
		for i := 0; i < 6; i++ {
			group := "shared"
			if i%2 == 0 {
				group = "exclusive"
			}
			f.r.Register(Element{
				ID:          fmt.Sprintf("e%d", i),
				Group:       group,
				Conditional: &Conditional{Predicate: func() bool { return f.inputs[i] }},
			})
		}
		return f
	}

	properties.Property("exclusive group has at most one visible member", prop.ForAll(
		func(ops []op) bool {
			f := setup()
			r := f.r
			for _, o := range ops {
				o.apply(f)
				g, _ := r.Group("exclusive")
				visible := 0
				for _, id := range g.Elements {
					if e, ok := r.Get(id); ok && e.Visible {
						visible++
					}
				}
				if visible > 1 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genOp()),
	))

	properties.Property("group membership and element references agree", prop.ForAll(
		func(ops []op) bool {
			f := setup()
			r := f.r
			for _, o := range ops {
				o.apply(f)
			}
			members := make(map[string]string)
			for _, g := range r.Groups() {
				for _, id := range g.Elements {
					if _, dup := members[id]; dup {
						return false
					}
					members[id] = g.ID
				}
			}
			for _, e := range r.Elements() {
				if members[e.ID] != e.Group {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genOp()),
	))

	properties.Property("conditional evaluation settles", prop.ForAll(
		func(ops []op) bool {
			f := setup()
			for _, o := range ops {
				o.apply(f)
			}
			f.r.EvaluateConditionals()
			return len(f.r.EvaluateConditionals()) == 0
		},
		gen.SliceOf(genOp()),
	))

	properties.Property("visible is sorted by z-index", prop.ForAll(
		func(zs []int) bool {
			r := NewRegistry(nil)
			for i, z := range zs {
				id := fmt.Sprintf("e%d", i)
				r.Register(Element{ID: id, ZIndex: z})
				r.Show(id)
			}
			visible := r.Visible()
			for i := 1; i < len(visible); i++ {
				if visible[i-1].ZIndex > visible[i].ZIndex {
					return false
				}
			}
			return len(visible) == len(zs)
		},
		gen.SliceOf(gen.IntRange(-5, 5)),
	))

	properties.TestingRun(t)
}
