package game

import (
	"testing"
)

func TestProject_RedactsFaceDownCards(t *testing.T) {
	s := newPlayingState(t, "NBA_BOS", "NBA_LAL", "NBA_MIA")

	s.FlipCard("conn-a", "card-0-a")
	s.Cards[4].Matched = true // card-2-a

	view := Project(s, "conn-a")

	for _, c := range view.Cards {
		if !c.Flipped && !c.Matched && c.Face != nil {
			t.Errorf("Card %s is face-down and unmatched but exposes face %q", c.ID, *c.Face)
		}
	}

	if view.Cards[0].Face == nil || *view.Cards[0].Face != "NBA_BOS" {
		t.Error("Flipped card should expose its face")
	}
	if view.Cards[4].Face == nil || *view.Cards[4].Face != "NBA_MIA" {
		t.Error("Matched card should expose its face")
	}
}

func TestProject_MyPlayerIndex(t *testing.T) {
	s := newPlayingState(t, "NBA_BOS")

	if got := Project(s, "conn-a").MyPlayerIndex; got != 0 {
		t.Errorf("Expected index 0 for conn-a, got %d", got)
	}
	if got := Project(s, "conn-b").MyPlayerIndex; got != 1 {
		t.Errorf("Expected index 1 for conn-b, got %d", got)
	}
	if got := Project(s, "stranger").MyPlayerIndex; got != -1 {
		t.Errorf("Expected -1 for a non-participant, got %d", got)
	}
}

func TestProject_CopiesDoNotAliasState(t *testing.T) {
	s := newPlayingState(t, "NBA_BOS")
	view := Project(s, "conn-a")

	view.Players[0].Score = 99
	if s.Players[0].Score != 0 {
		t.Error("Mutating a projected player must not touch server state")
	}

	s.Players[0].Score = 5
	wAfter := Project(s, "conn-a")
	if wAfter.Players[0].Score != 5 {
		t.Error("Projection should reflect current server state")
	}
}
