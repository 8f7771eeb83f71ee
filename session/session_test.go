package session

import (
	"net"
	"testing"
	"time"

	"github.com/wfunc/matchserver/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(v interface{}) error        { return nil }
func (m *MockConnection) ReadMessage() ([]byte, error)    { return nil, nil }
func (m *MockConnection) Close() error                    { return nil }
func (m *MockConnection) RemoteAddr() net.Addr            { return &net.TCPAddr{} }
func (m *MockConnection) SetReadDeadline(d time.Duration) {}
func (m *MockConnection) Ping() error                     { return nil }
func (m *MockConnection) OnPong(fn func())                {}

var _ network.Connection = (*MockConnection)(nil)

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, &MockConnection{})

	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	retrievedSess, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	manager.Remove(sessionID)
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}

	_, exists = manager.Get(sessionID)
	if exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_RemoveSession_KeepsReplacement(t *testing.T) {
	manager := NewManager()

	old := NewSession("conn-1", &MockConnection{})
	manager.Add(old)

	// Same identity reconnects; its session replaces the old one.
	replacement := NewSession("conn-1", &MockConnection{})
	manager.Add(replacement)

	// The old socket's cleanup runs late.
	manager.RemoveSession(old)

	got, exists := manager.Get("conn-1")
	if !exists {
		t.Fatal("Stale removal must not evict the replacement session")
	}
	if got != replacement {
		t.Fatal("Expected the replacement session to stay registered")
	}

	manager.RemoveSession(replacement)
	if _, exists := manager.Get("conn-1"); exists {
		t.Fatal("RemoveSession should drop the current session")
	}
}

func TestManager_GetByRoom(t *testing.T) {
	manager := NewManager()

	sess1 := NewSession("session1", &MockConnection{})
	sess1.RoomCode = "ABCDEF"

	sess2 := NewSession("session2", &MockConnection{})
	sess2.RoomCode = "GHJKLM"

	sess3 := NewSession("session3", &MockConnection{})
	sess3.RoomCode = "ABCDEF"

	manager.Add(sess1)
	manager.Add(sess2)
	manager.Add(sess3)

	if got := manager.GetByRoom("ABCDEF"); len(got) != 2 {
		t.Errorf("Expected 2 sessions in room ABCDEF, got %d", len(got))
	}
	if got := manager.GetByRoom("GHJKLM"); len(got) != 1 {
		t.Errorf("Expected 1 session in room GHJKLM, got %d", len(got))
	}
	if got := manager.GetByRoom("NPQRST"); len(got) != 0 {
		t.Errorf("Expected 0 sessions in an unknown room, got %d", len(got))
	}
}
