// room/manager.go
package room

import (
	"sync"

	"github.com/wfunc/matchserver/broadcast"
)

// Manager 管理所有房间
type Manager struct {
	rooms    map[string]*Room
	mutex    sync.RWMutex
	opts     Options
	notifier broadcast.Notifier

	onFinish      func(*Result)
	onCountChange func(int)
}

// NewManager creates a room manager. Rooms are created lazily per room code
// and are fully independent of one another.
func NewManager(opts Options, notifier broadcast.Notifier) *Manager {
	return &Manager{
		rooms:    make(map[string]*Room),
		opts:     opts,
		notifier: notifier,
	}
}

// SetFinishHook registers a callback receiving every finished game result.
func (m *Manager) SetFinishHook(fn func(*Result)) {
	m.onFinish = fn
}

// SetCountHook registers a callback fired whenever the active room count
// changes, for metrics.
func (m *Manager) SetCountHook(fn func(int)) {
	m.onCountChange = fn
}

// GetOrCreate returns the room for a code, opening it on first use.
func (m *Manager) GetOrCreate(code string) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if r, exists := m.rooms[code]; exists {
		return r
	}

	r := NewRoom(code, m.opts, m.notifier, m.onFinish, m.remove)
	m.rooms[code] = r
	m.notifyCount(len(m.rooms))
	return r
}

// Get returns an existing room.
func (m *Manager) Get(code string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	r, exists := m.rooms[code]
	return r, exists
}

// Codes lists the codes of all open rooms.
func (m *Manager) Codes() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	codes := make([]string, 0, len(m.rooms))
	for code := range m.rooms {
		codes = append(codes, code)
	}
	return codes
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// CloseAll shuts every room down, for server shutdown.
func (m *Manager) CloseAll() {
	m.mutex.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mutex.Unlock()

	for _, r := range rooms {
		r.Close()
	}
}

// remove is the room's onClose hook.
func (m *Manager) remove(code string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.rooms[code]; exists {
		delete(m.rooms, code)
		m.notifyCount(len(m.rooms))
	}
}

func (m *Manager) notifyCount(n int) {
	if m.onCountChange != nil {
		m.onCountChange(n)
	}
}
