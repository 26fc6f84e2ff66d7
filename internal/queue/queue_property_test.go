package queue

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/jmylchreest/overlay/internal/clock"
	"github.com/jmylchreest/overlay/internal/model"
)

// TestQueueProperties validates the bounded FIFO behaviour.
func TestQueueProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("queue keeps exactly the most recent max entries in order", prop.ForAll(
		func(max int, adds int) bool {
			q := New(WithMax(max), WithClock(clock.NewFake(time.Unix(0, 0))))

			ids := make([]string, 0, adds)
			for i := 0; i < adds; i++ {
				ids = append(ids, q.Add(model.Notification{Message: fmt.Sprintf("n%d", i)}))
			}

			want := ids
			if len(want) > max {
				want = want[len(want)-max:]
			}

			list := q.List()
			if len(list) != len(want) {
				return false
			}
			for i := range list {
				if list[i].ID != want[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 10),
		gen.IntRange(0, 40),
	))

	properties.Property("dismiss never grows the queue", prop.ForAll(
		func(adds int, dismissIdx int) bool {
			q := New(WithMax(5))

			ids := make([]string, 0, adds)
			for i := 0; i < adds; i++ {
				ids = append(ids, q.Add(model.Notification{Message: "m"}))
			}
			before := q.Len()
			if len(ids) > 0 {
				q.Dismiss(ids[dismissIdx%len(ids)])
			}
			return q.Len() <= before
		},
		gen.IntRange(0, 12),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
