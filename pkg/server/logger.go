package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of a pgx pool the log handler writes through.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DBLogHandler is a slog.Handler that writes records carrying a session_id
// attribute to the turn_logs table. Other records are ignored.
type DBLogHandler struct {
	DB    Execer
	Level slog.Level

	attrs []slog.Attr
}

func NewDBLogHandler(db Execer, level slog.Level) *DBLogHandler {
	return &DBLogHandler{
		DB:    db,
		Level: level,
	}
}

func (h *DBLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.Level
}

func (h *DBLogHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any)
	var sessionID uuid.UUID
	collect := func(a slog.Attr) bool {
		if a.Key == "session_id" {
			if id, ok := sessionFromValue(a.Value); ok {
				sessionID = id
			}
			return true
		}
		attrs[a.Key] = attrValue(a.Value)
		return true
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(collect)

	if sessionID == uuid.Nil {
		return nil
	}

	metaJSON, err := json.Marshal(attrs)
	if err != nil {
		metaJSON = []byte("{}")
	}

	query := `
		INSERT INTO turn_logs (session_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`

	// Logs must persist even when the request that produced them is cancelled.
	_, err = h.DB.Exec(context.Background(), query, sessionID, r.Time, r.Level.String(), r.Message, metaJSON)
	return err
}

func (h *DBLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup is a no-op: turn logs are stored flat.
func (h *DBLogHandler) WithGroup(name string) slog.Handler {
	return h
}

func sessionFromValue(v slog.Value) (uuid.UUID, bool) {
	switch x := v.Resolve().Any().(type) {
	case uuid.UUID:
		return x, x != uuid.Nil
	case string:
		id, err := uuid.Parse(x)
		return id, err == nil
	case fmt.Stringer:
		id, err := uuid.Parse(x.String())
		return id, err == nil
	}
	return uuid.Nil, false
}

func attrValue(v slog.Value) any {
	v = v.Resolve()
	if err, ok := v.Any().(error); ok {
		return err.Error()
	}
	if v.Kind() == slog.KindDuration {
		return v.Duration().String()
	}
	return v.Any()
}
