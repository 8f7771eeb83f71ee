// network/protocol.go
package network

import (
	"encoding/json"
	"time"

	"github.com/wfunc/matchserver/game"
)

// Message type discriminators. Every frame on the wire is a JSON object
// carrying one of these in its "type" field.
const (
	// client -> server
	MsgTypeJoin     = "JOIN"
	MsgTypeFlipCard = "FLIP_CARD"
	MsgTypeReady    = "READY"

	// server -> client
	MsgTypeStateSync    = "STATE_SYNC"
	MsgTypeGameStart    = "GAME_START"
	MsgTypePlayerJoined = "PLAYER_JOINED"
	MsgTypePlayerLeft   = "PLAYER_LEFT"
	MsgTypeReconnected  = "RECONNECTED"
	MsgTypeGameOver     = "GAME_OVER"
	MsgTypeError        = "ERROR"
)

// ClientMessage 客户端发来的消息
type ClientMessage struct {
	Type       string `json:"type"`
	PlayerName string `json:"playerName,omitempty"`
	CardID     string `json:"cardId,omitempty"`
}

// DecodeClientMessage parses an inbound frame. Callers drop frames that fail
// to parse; a malformed payload never reaches the room.
func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

type StateSyncMessage struct {
	Type  string          `json:"type"`
	State game.ClientView `json:"state"`
}

func NewStateSync(view game.ClientView) StateSyncMessage {
	return StateSyncMessage{Type: MsgTypeStateSync, State: view}
}

type GameStartMessage struct {
	Type  string          `json:"type"`
	State game.ClientView `json:"state"`
}

func NewGameStart(view game.ClientView) GameStartMessage {
	return GameStartMessage{Type: MsgTypeGameStart, State: view}
}

type PlayerJoinedMessage struct {
	Type   string      `json:"type"`
	Player game.Player `json:"player"`
}

func NewPlayerJoined(p game.Player) PlayerJoinedMessage {
	return PlayerJoinedMessage{Type: MsgTypePlayerJoined, Player: p}
}

// PlayerLeftMessage carries the absolute reconnect deadline in Unix
// milliseconds.
type PlayerLeftMessage struct {
	Type              string `json:"type"`
	PlayerID          string `json:"playerId"`
	ReconnectDeadline int64  `json:"reconnectDeadline"`
}

func NewPlayerLeft(playerID string, deadline time.Time) PlayerLeftMessage {
	return PlayerLeftMessage{
		Type:              MsgTypePlayerLeft,
		PlayerID:          playerID,
		ReconnectDeadline: deadline.UnixMilli(),
	}
}

type ReconnectedMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

func NewReconnected(playerID string) ReconnectedMessage {
	return ReconnectedMessage{Type: MsgTypeReconnected, PlayerID: playerID}
}

type GameOverMessage struct {
	Type   string          `json:"type"`
	Winner *game.Player    `json:"winner"`
	Reason game.EndReason  `json:"reason"`
	State  game.ClientView `json:"state"`
}

func NewGameOver(winner *game.Player, reason game.EndReason, view game.ClientView) GameOverMessage {
	return GameOverMessage{Type: MsgTypeGameOver, Winner: winner, Reason: reason, State: view}
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) ErrorMessage {
	return ErrorMessage{Type: MsgTypeError, Message: message}
}
