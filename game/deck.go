// game/deck.go
package game

import (
	"errors"
	"fmt"
	"math/rand"
)

// NBATeams is the default theme catalog of face identifiers.
var NBATeams = []string{
	"NBA_ATL", "NBA_BKN", "NBA_BOS", "NBA_CHA", "NBA_CHI", "NBA_CLE",
	"NBA_DAL", "NBA_DEN", "NBA_DET", "NBA_GSW", "NBA_HOU", "NBA_IND",
	"NBA_LAC", "NBA_LAL", "NBA_MEM", "NBA_MIA", "NBA_MIL", "NBA_MIN",
	"NBA_NOP", "NBA_NYK", "NBA_OKC", "NBA_ORL", "NBA_PHI", "NBA_PHX",
	"NBA_POR", "NBA_SAC", "NBA_SAS", "NBA_TOR", "NBA_UTA", "NBA_WAS",
}

var ErrCatalogTooSmall = errors.New("theme catalog smaller than requested pair count")

// NewDeck samples pairs distinct faces from the catalog and returns a
// uniformly shuffled deck of 2*pairs cards, two per face with distinct stable
// ids. Every call produces an independent random deck.
func NewDeck(catalog []string, pairs int) ([]*Card, error) {
	if pairs <= 0 || pairs > len(catalog) {
		return nil, ErrCatalogTooSmall
	}

	faces := make([]string, len(catalog))
	copy(faces, catalog)
	rand.Shuffle(len(faces), func(i, j int) {
		faces[i], faces[j] = faces[j], faces[i]
	})
	faces = faces[:pairs]

	cards := make([]*Card, 0, pairs*2)
	for i, face := range faces {
		cards = append(cards,
			&Card{ID: fmt.Sprintf("card-%d-a", i), Face: face},
			&Card{ID: fmt.Sprintf("card-%d-b", i), Face: face},
		)
	}
	rand.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	return cards, nil
}
