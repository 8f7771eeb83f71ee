// services/record_service.go
package services

import (
	"time"

	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/models"
	"github.com/wfunc/matchserver/persistence"
	"github.com/wfunc/matchserver/room"
)

// RecordService persists finished game results. Live room state is never
// stored, so a process restart loses open rooms.
type RecordService struct {
	db persistence.Database
}

func NewRecordService(db persistence.Database) *RecordService {
	return &RecordService{db: db}
}

// SaveResult converts a room result into a match record. Used as the room
// manager's finish hook.
func (s *RecordService) SaveResult(res *room.Result) {
	if s.db == nil {
		return
	}

	rec := &models.MatchRecord{
		RoomCode: res.RoomCode,
		Reason:   string(res.Reason),
		Duration: int(res.Duration / time.Second),
	}
	if res.Winner != nil {
		rec.Winner = res.Winner.Name
	}
	for _, p := range res.Players {
		outcome := "draw"
		if res.Winner != nil {
			if p.ID == res.Winner.ID {
				outcome = "win"
			} else {
				outcome = "lose"
			}
		}
		rec.Players = append(rec.Players, models.PlayerResult{
			Name:    p.Name,
			Score:   p.Score,
			Outcome: outcome,
		})
	}

	if err := s.db.SaveMatchRecord(rec); err != nil {
		logger.Log.Errorf("failed to save match record for room %s: %v", res.RoomCode, err)
	}
}

// RoomRecords returns all finished games played under a room code.
func (s *RecordService) RoomRecords(roomCode string) ([]models.MatchRecord, error) {
	if s.db == nil {
		return nil, persistence.ErrRecordNotFound
	}
	return s.db.LoadMatchRecords(roomCode)
}

// PlayerHistory aggregates a player's results by display name.
func (s *RecordService) PlayerHistory(name string) (*models.PlayerHistory, error) {
	if s.db == nil {
		return nil, persistence.ErrRecordNotFound
	}
	return s.db.PlayerHistory(name)
}
