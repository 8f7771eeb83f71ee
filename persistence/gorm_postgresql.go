// persistence/gorm_postgresql.go
package persistence

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/matchserver/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormMatchRecord{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// SaveMatchRecord 保存一局游戏记录
func (p *GormPostgreSQL) SaveMatchRecord(record *models.MatchRecord) error {
	row := models.GormMatchRecord{
		RoomCode: record.RoomCode,
		Reason:   record.Reason,
		Winner:   record.Winner,
		Players:  record.Players,
		Duration: record.Duration,
	}
	return p.db.Create(&row).Error
}

// LoadMatchRecords 加载一个房间的全部游戏记录
func (p *GormPostgreSQL) LoadMatchRecords(roomCode string) ([]models.MatchRecord, error) {
	var rows []models.GormMatchRecord
	if err := p.db.Where("room_code = ?", roomCode).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]models.MatchRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.MatchRecord{
			RoomCode:  row.RoomCode,
			Reason:    row.Reason,
			Winner:    row.Winner,
			Players:   row.Players,
			Duration:  row.Duration,
			CreatedAt: row.CreatedAt,
		})
	}
	return records, nil
}

// PlayerHistory 按玩家名聚合战绩
func (p *GormPostgreSQL) PlayerHistory(name string) (*models.PlayerHistory, error) {
	var rows []models.GormMatchRecord
	if err := p.db.Where("players::text LIKE ?", "%"+name+"%").Find(&rows).Error; err != nil {
		return nil, err
	}

	history := &models.PlayerHistory{Name: name}
	for _, row := range rows {
		for _, pr := range row.Players {
			if pr.Name != name {
				continue
			}
			history.TotalGames++
			history.TotalScore += pr.Score
			switch pr.Outcome {
			case "win":
				history.Wins++
			case "lose":
				history.Losses++
			default:
				history.Draws++
			}
		}
	}
	if history.TotalGames == 0 {
		return nil, ErrRecordNotFound
	}
	return history, nil
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
