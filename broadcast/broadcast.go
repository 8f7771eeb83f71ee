// broadcast/broadcast.go
package broadcast

import (
	"time"

	"github.com/wfunc/matchserver/game"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/network"
)

// Target is one deliverable connection. Satisfied by *session.Session.
type Target interface {
	GetID() string
	Send(v interface{}) error
}

// Notifier pushes room events out to connections. State-carrying messages are
// projected per target, never shared: each connection gets its own redaction.
type Notifier interface {
	SyncState(targets []Target, st *game.State)
	GameStart(targets []Target, st *game.State)
	GameOver(targets []Target, st *game.State, winner *game.Player, reason game.EndReason)
	PlayerJoined(targets []Target, p game.Player)
	PlayerLeft(targets []Target, playerID string, deadline time.Time)
	Reconnected(targets []Target, playerID string)
	Error(target Target, message string)
}

// RoomNotifier 基于房间连接的广播器
type RoomNotifier struct{}

func NewRoomNotifier() *RoomNotifier {
	return &RoomNotifier{}
}

func (n *RoomNotifier) SyncState(targets []Target, st *game.State) {
	for _, t := range targets {
		n.send(t, network.NewStateSync(game.Project(st, t.GetID())))
	}
}

func (n *RoomNotifier) GameStart(targets []Target, st *game.State) {
	for _, t := range targets {
		n.send(t, network.NewGameStart(game.Project(st, t.GetID())))
	}
}

func (n *RoomNotifier) GameOver(targets []Target, st *game.State, winner *game.Player, reason game.EndReason) {
	for _, t := range targets {
		n.send(t, network.NewGameOver(winner, reason, game.Project(st, t.GetID())))
	}
}

func (n *RoomNotifier) PlayerJoined(targets []Target, p game.Player) {
	msg := network.NewPlayerJoined(p)
	for _, t := range targets {
		n.send(t, msg)
	}
}

func (n *RoomNotifier) PlayerLeft(targets []Target, playerID string, deadline time.Time) {
	msg := network.NewPlayerLeft(playerID, deadline)
	for _, t := range targets {
		n.send(t, msg)
	}
}

func (n *RoomNotifier) Reconnected(targets []Target, playerID string) {
	msg := network.NewReconnected(playerID)
	for _, t := range targets {
		n.send(t, msg)
	}
}

func (n *RoomNotifier) Error(target Target, message string) {
	n.send(target, network.NewError(message))
}

// A failed send only affects the one connection; its own read loop will
// notice the broken socket and detach it.
func (n *RoomNotifier) send(t Target, v interface{}) {
	if err := t.Send(v); err != nil {
		logger.Log.Debugf("send to %s failed: %v", t.GetID(), err)
	}
}
