// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/matchserver/models"
)

// PostgreSQL 数据库实现 (database/sql)
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS match_records (
            id SERIAL PRIMARY KEY,
            room_code VARCHAR(16) NOT NULL,
            reason VARCHAR(32) NOT NULL,
            winner VARCHAR(255) NOT NULL DEFAULT '',
            players JSONB NOT NULL,
            duration INT NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_match_records_room_code ON match_records (room_code)
    `)
	return err
}

// SaveMatchRecord 保存一局游戏记录
func (p *PostgreSQL) SaveMatchRecord(record *models.MatchRecord) error {
	players, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(`
        INSERT INTO match_records (room_code, reason, winner, players, duration)
        VALUES ($1, $2, $3, $4, $5)
    `, record.RoomCode, record.Reason, record.Winner, players, record.Duration)
	return err
}

// LoadMatchRecords 加载一个房间的全部游戏记录
func (p *PostgreSQL) LoadMatchRecords(roomCode string) ([]models.MatchRecord, error) {
	rows, err := p.db.Query(`
        SELECT room_code, reason, winner, players, duration, created_at
        FROM match_records WHERE room_code = $1 ORDER BY created_at
    `, roomCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.MatchRecord
	for rows.Next() {
		var rec models.MatchRecord
		var players []byte
		if err := rows.Scan(&rec.RoomCode, &rec.Reason, &rec.Winner, &players, &rec.Duration, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(players, &rec.Players); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PlayerHistory 按玩家名聚合战绩
func (p *PostgreSQL) PlayerHistory(name string) (*models.PlayerHistory, error) {
	rows, err := p.db.Query(`
        SELECT players FROM match_records
        WHERE players @> $1::jsonb
    `, fmt.Sprintf(`[{"name": %q}]`, name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := &models.PlayerHistory{Name: name}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var players []models.PlayerResult
		if err := json.Unmarshal(raw, &players); err != nil {
			return nil, err
		}
		for _, pr := range players {
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if history.TotalGames == 0 {
		return nil, ErrRecordNotFound
	}
	return history, nil
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
