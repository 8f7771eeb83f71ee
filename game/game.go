// game/game.go
package game

import (
	"errors"
	"fmt"
	"sort"
)

// Status 表示房间的业务状态
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusPlaying   Status = "playing"
	StatusFinished  Status = "finished"
	StatusAbandoned Status = "abandoned"
)

// EndReason explains why a game ended.
type EndReason string

const (
	ReasonComplete   EndReason = "complete"
	ReasonForfeit    EndReason = "forfeit"
	ReasonDisconnect EndReason = "disconnect"
)

const MaxPlayers = 2

var (
	ErrRoomFull       = errors.New("room is full")
	ErrGameInProgress = errors.New("game already in progress")

	// ErrTransitionNotAllowed is returned when a status transition is not allowed.
	ErrTransitionNotAllowed = errors.New("status transition not allowed")
)

// allowed status transitions: waiting -> playing -> finished, waiting -> abandoned
var transitions = map[Status][]Status{
	StatusWaiting: {StatusPlaying, StatusAbandoned},
	StatusPlaying: {StatusFinished},
}

// Card 卡牌
type Card struct {
	ID      string `json:"id"`
	Face    string `json:"face"`
	Flipped bool   `json:"isFlipped"`
	Matched bool   `json:"isMatched"`
}

// Player 玩家
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	Score     int    `json:"score"`
}

// State holds the full authoritative state of one room. All mutation goes
// through its methods; none of them perform I/O or scheduling, so a single
// State is safe to drive from one goroutine.
type State struct {
	RoomCode           string
	Status             Status
	Players            []*Player
	Cards              []*Card
	CurrentPlayerIndex int
	Timer              int
	TurnLength         int
	FlippedCardIDs     []string
	Winner             *Player
}

// NewState creates the state for a freshly opened room.
func NewState(roomCode string, turnLength int) *State {
	return &State{
		RoomCode:   roomCode,
		Status:     StatusWaiting,
		Players:    make([]*Player, 0, MaxPlayers),
		Timer:      turnLength,
		TurnLength: turnLength,
	}
}

func (s *State) transition(to Status) error {
	for _, t := range transitions[s.Status] {
		if t == to {
			s.Status = to
			return nil
		}
	}
	return ErrTransitionNotAllowed
}

// PlayerIndex returns the roster slot of the given player id, or -1.
func (s *State) PlayerIndex(playerID string) int {
	for i, p := range s.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// AddPlayer appends a new player to the roster. Roster order is insertion
// order and establishes the turn sequence.
func (s *State) AddPlayer(playerID, name string) (*Player, error) {
	if len(s.Players) >= MaxPlayers {
		return nil, ErrRoomFull
	}
	if s.Status == StatusPlaying {
		return nil, ErrGameInProgress
	}

	if name == "" {
		name = fmt.Sprintf("Player %d", len(s.Players)+1)
	}
	p := &Player{
		ID:        playerID,
		Name:      name,
		Connected: true,
	}
	s.Players = append(s.Players, p)
	return p, nil
}

// RemovePlayer drops a player from the roster. No-op for unknown ids.
func (s *State) RemovePlayer(playerID string) {
	for i, p := range s.Players {
		if p.ID == playerID {
			s.Players = append(s.Players[:i], s.Players[i+1:]...)
			return
		}
	}
}

// Start deals the given deck and moves the room into the playing status.
func (s *State) Start(cards []*Card) error {
	if err := s.transition(StatusPlaying); err != nil {
		return err
	}
	s.Cards = cards
	s.CurrentPlayerIndex = 0
	s.Timer = s.TurnLength
	s.FlippedCardIDs = nil
	s.Winner = nil
	return nil
}

// FlipOutcome reports what a FlipCard call did.
type FlipOutcome struct {
	Applied     bool
	PairPending bool // the second unresolved card was just flipped
	ActorIndex  int
}

// FlipCard applies a flip request. Out-of-turn flips, flips of resolved or
// already face-up cards and flips while two cards are pending are expected
// races against a stale client view and come back as silent no-ops.
func (s *State) FlipCard(playerID, cardID string) FlipOutcome {
	if s.Status != StatusPlaying {
		return FlipOutcome{}
	}

	idx := s.PlayerIndex(playerID)
	if idx != s.CurrentPlayerIndex {
		return FlipOutcome{}
	}

	if len(s.FlippedCardIDs) >= 2 {
		return FlipOutcome{}
	}

	card := s.findCard(cardID)
	if card == nil || card.Flipped || card.Matched {
		return FlipOutcome{}
	}

	card.Flipped = true
	s.FlippedCardIDs = append(s.FlippedCardIDs, cardID)

	return FlipOutcome{
		Applied:     true,
		PairPending: len(s.FlippedCardIDs) == 2,
		ActorIndex:  idx,
	}
}

// ResolveOutcome reports what a ResolveFlipped call did.
type ResolveOutcome struct {
	Applied      bool
	Matched      bool
	BoardCleared bool
}

// ResolveFlipped resolves the two pending cards after the flip delay. Equal
// faces lock both cards, score the acting player and keep the turn; unequal
// faces flip both back and pass the turn. Either way the pending set is
// cleared and the turn timer refilled.
func (s *State) ResolveFlipped(actorIndex int) ResolveOutcome {
	if s.Status != StatusPlaying || len(s.FlippedCardIDs) != 2 {
		return ResolveOutcome{}
	}
	if actorIndex < 0 || actorIndex >= len(s.Players) {
		return ResolveOutcome{}
	}

	first := s.findCard(s.FlippedCardIDs[0])
	second := s.findCard(s.FlippedCardIDs[1])
	if first == nil || second == nil {
		s.FlippedCardIDs = nil
		return ResolveOutcome{}
	}

	out := ResolveOutcome{Applied: true}

	if first.Face == second.Face {
		first.Matched = true
		second.Matched = true
		s.Players[actorIndex].Score++
		s.Timer = s.TurnLength
		out.Matched = true
		out.BoardCleared = s.AllMatched()
	} else {
		first.Flipped = false
		second.Flipped = false
		s.advanceTurn()
	}

	s.FlippedCardIDs = nil
	return out
}

// TimeUp handles the turn timer reaching zero: any pending cards flip back
// and the turn passes, exactly once, with a fresh timer.
func (s *State) TimeUp() {
	for _, id := range s.FlippedCardIDs {
		if card := s.findCard(id); card != nil {
			card.Flipped = false
		}
	}
	s.FlippedCardIDs = nil
	s.advanceTurn()
}

// AllMatched reports whether every card on the board is resolved.
func (s *State) AllMatched() bool {
	for _, c := range s.Cards {
		if !c.Matched {
			return false
		}
	}
	return len(s.Cards) > 0
}

// ComputeWinner returns the strict score leader, or nil on a tie. Ties are
// possible even on a disconnect finish; the remaining player is not handed
// the win automatically.
func (s *State) ComputeWinner() *Player {
	if len(s.Players) < 2 {
		return nil
	}
	sorted := make([]*Player, len(s.Players))
	copy(sorted, s.Players)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if sorted[0].Score > sorted[1].Score {
		return sorted[0]
	}
	return nil
}

// Finish moves the room into the finished status and records the winner.
func (s *State) Finish() error {
	if err := s.transition(StatusFinished); err != nil {
		return err
	}
	s.Winner = s.ComputeWinner()
	return nil
}

// Abandon marks a never-started room as abandoned.
func (s *State) Abandon() error {
	return s.transition(StatusAbandoned)
}

func (s *State) advanceTurn() {
	if len(s.Players) > 0 {
		s.CurrentPlayerIndex = (s.CurrentPlayerIndex + 1) % len(s.Players)
	}
	s.Timer = s.TurnLength
}

func (s *State) findCard(cardID string) *Card {
	for _, c := range s.Cards {
		if c.ID == cardID {
			return c
		}
	}
	return nil
}
