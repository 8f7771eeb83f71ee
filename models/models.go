// models/models.go
package models

import (
	"time"
)

// MatchRecord 一局游戏的结算记录
type MatchRecord struct {
	RoomCode  string         `json:"room_code"`
	Reason    string         `json:"reason"` // complete/forfeit/disconnect
	Winner    string         `json:"winner"` // winner name, empty on a tie
	Players   []PlayerResult `json:"players"`
	Duration  int            `json:"duration"` // seconds
	CreatedAt time.Time      `json:"created_at"`
}

// PlayerResult 玩家在一局中的结果
type PlayerResult struct {
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Outcome string `json:"outcome"` // win/lose/draw
}

// PlayerHistory aggregates a player's finished games by name.
type PlayerHistory struct {
	Name       string `json:"name"`
	TotalGames int    `json:"total_games"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
	Draws      int    `json:"draws"`
	TotalScore int    `json:"total_score"`
}
