package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDMap(t *testing.T) {
	m := NewIDMap()
	m.Register(1, "a")
	m.Register(2, "b")

	id, ok := m.NotificationID(1)
	assert.True(t, ok)
	assert.Equal(t, "a", id)

	dbusID, ok := m.DBusID("b")
	assert.True(t, ok)
	assert.Equal(t, uint32(2), dbusID)
	assert.Equal(t, 2, m.Len())

	t.Run("re-register replaces both sides", func(t *testing.T) {
		m.Register(1, "c")
		_, ok := m.DBusID("a")
		assert.False(t, ok)
		id, _ := m.NotificationID(1)
		assert.Equal(t, "c", id)
		assert.Equal(t, 2, m.Len())
	})

	t.Run("remove", func(t *testing.T) {
		dbusID, ok := m.Remove("c")
		assert.True(t, ok)
		assert.Equal(t, uint32(1), dbusID)
		_, ok = m.Remove("c")
		assert.False(t, ok)

		m.RemoveByDBusID(2)
		m.RemoveByDBusID(99)
		assert.Equal(t, 0, m.Len())
	})
}
