package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LogEntry is one persisted turn log line.
type LogEntry struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

// LogReader returns the persisted logs of a session.
type LogReader interface {
	SessionLogs(ctx context.Context, sessionID uuid.UUID) ([]LogEntry, error)
}

// Querier is the read side of a pgx pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LogService reads turn logs written by DBLogHandler, oldest first.
type LogService struct {
	DB    Querier
	Limit int
}

func NewLogService(db Querier) *LogService {
	return &LogService{DB: db, Limit: 500}
}

func (s *LogService) SessionLogs(ctx context.Context, sessionID uuid.UUID) ([]LogEntry, error) {
	limit := s.Limit
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.DB.Query(ctx, `
		SELECT id, timestamp, level, message, metadata
		FROM turn_logs
		WHERE session_id = $1
		ORDER BY id ASC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	logs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[LogEntry])
	if err != nil {
		return nil, fmt.Errorf("failed to scan logs: %w", err)
	}
	return logs, nil
}
