package daemon

import "sync"

// IDMap maps D-Bus notification ids to queue notification ids and back.
type IDMap struct {
	mu sync.RWMutex

	byDBusID map[uint32]string
	byID     map[string]uint32
}

// NewIDMap creates an empty IDMap.
func NewIDMap() *IDMap {
	return &IDMap{
		byDBusID: make(map[uint32]string),
		byID:     make(map[string]uint32),
	}
}

// Register associates a D-Bus id with a queue id, replacing any previous
// association held by either side.
func (m *IDMap) Register(dbusID uint32, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.byDBusID[dbusID]; ok {
		delete(m.byID, old)
	}
	if old, ok := m.byID[id]; ok {
		delete(m.byDBusID, old)
	}
	m.byDBusID[dbusID] = id
	m.byID[id] = dbusID
}

// NotificationID returns the queue id for a D-Bus id.
func (m *IDMap) NotificationID(dbusID uint32) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byDBusID[dbusID]
	return id, ok
}

// DBusID returns the D-Bus id for a queue id.
func (m *IDMap) DBusID(id string) (uint32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dbusID, ok := m.byID[id]
	return dbusID, ok
}

// Remove drops the entry for a queue id and returns its D-Bus id.
func (m *IDMap) Remove(id string) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dbusID, ok := m.byID[id]
	if !ok {
		return 0, false
	}
	delete(m.byID, id)
	delete(m.byDBusID, dbusID)
	return dbusID, true
}

// RemoveByDBusID drops the entry for a D-Bus id.
func (m *IDMap) RemoveByDBusID(dbusID uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byDBusID[dbusID]
	if !ok {
		return
	}
	delete(m.byDBusID, dbusID)
	delete(m.byID, id)
}

// Len returns the number of mapped notifications.
func (m *IDMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
