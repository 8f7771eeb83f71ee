// persistence/interface.go
package persistence

import (
	"errors"

	"github.com/wfunc/matchserver/models"
)

// Database 数据库接口
type Database interface {
	SaveMatchRecord(record *models.MatchRecord) error
	LoadMatchRecords(roomCode string) ([]models.MatchRecord, error)
	PlayerHistory(name string) (*models.PlayerHistory, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
)
