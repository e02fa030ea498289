package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"pingpong-ladder/internal/domain"
)

// EventLogRepository appends lifecycle transitions for audit display. Failures
// here are logged and swallowed by callers; the ledger itself never depends on
// this table.
type EventLogRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewEventLogRepository(sqlDB *sql.DB, logger zerolog.Logger) *EventLogRepository {
	return &EventLogRepository{db: sqlDB, logger: logger}
}

func (r *EventLogRepository) Append(ctx context.Context, actorID, action, subjectID, detail string) error {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate nanoid: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (id, actor_id, action, subject_id, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, actorID, action, subjectID, detail, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *EventLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.EventLogEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, actor_id, action, subject_id, detail, created_at
		 FROM event_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []domain.EventLogEntry
	for rows.Next() {
		var e domain.EventLogEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.SubjectID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
