// game/view.go
package game

// ClientCard is a card as a viewer is allowed to see it. Face is nil until
// the card is face-up or resolved.
type ClientCard struct {
	ID      string  `json:"id"`
	Face    *string `json:"face"`
	Flipped bool    `json:"isFlipped"`
	Matched bool    `json:"isMatched"`
}

// ClientView 客户端可见的房间状态快照
type ClientView struct {
	RoomCode           string       `json:"roomCode"`
	Status             Status       `json:"status"`
	Players            []Player     `json:"players"`
	Cards              []ClientCard `json:"cards"`
	CurrentPlayerIndex int          `json:"currentPlayerIndex"`
	Timer              int          `json:"timer"`
	MyPlayerIndex      int          `json:"myPlayerIndex"`
	Winner             *Player      `json:"winner"`
}

// Project maps the full server state to the redacted view for one viewer.
// MyPlayerIndex is -1 when the viewer is not a roster member.
func Project(s *State, viewerID string) ClientView {
	players := make([]Player, len(s.Players))
	for i, p := range s.Players {
		players[i] = *p
	}

	cards := make([]ClientCard, len(s.Cards))
	for i, c := range s.Cards {
		cc := ClientCard{
			ID:      c.ID,
			Flipped: c.Flipped,
			Matched: c.Matched,
		}
		if c.Flipped || c.Matched {
			face := c.Face
			cc.Face = &face
		}
		cards[i] = cc
	}

	var winner *Player
	if s.Winner != nil {
		w := *s.Winner
		winner = &w
	}

	return ClientView{
		RoomCode:           s.RoomCode,
		Status:             s.Status,
		Players:            players,
		Cards:              cards,
		CurrentPlayerIndex: s.CurrentPlayerIndex,
		Timer:              s.Timer,
		MyPlayerIndex:      s.PlayerIndex(viewerID),
		Winner:             winner,
	}
}
