package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pingpong-ladder/internal/domain"
)

type SeasonRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSeasonRepository(sqlDB *sql.DB, logger zerolog.Logger) *SeasonRepository {
	return &SeasonRepository{db: sqlDB, logger: logger}
}

func (r *SeasonRepository) Create(ctx context.Context, season *domain.Season) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO seasons (id, name, starts_at, ends_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		season.ID, season.Name, season.StartsAt.UTC(), nullTime(season.EndsAt), season.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert season: %w", err)
	}
	return nil
}

func (r *SeasonRepository) GetByID(ctx context.Context, id string) (*domain.Season, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, starts_at, ends_at, created_at FROM seasons WHERE id = ?`, id)
	return scanSeason(row)
}

func (r *SeasonRepository) List(ctx context.Context) ([]domain.Season, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, starts_at, ends_at, created_at FROM seasons ORDER BY starts_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seasons: %w", err)
	}
	defer rows.Close()

	var seasons []domain.Season
	for rows.Next() {
		s, err := scanSeasonRow(rows)
		if err != nil {
			return nil, err
		}
		seasons = append(seasons, *s)
	}
	return seasons, rows.Err()
}

// ActiveAt returns the season whose [starts_at, ends_at) window contains t,
// or nil when no season covers it.
func (r *SeasonRepository) ActiveAt(ctx context.Context, t time.Time) (*domain.Season, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, starts_at, ends_at, created_at FROM seasons
		 WHERE starts_at <= ? AND (ends_at IS NULL OR ends_at > ?)
		 ORDER BY starts_at DESC LIMIT 1`,
		t.UTC(), t.UTC(),
	)
	season, err := scanSeason(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return season, err
}

func (r *SeasonRepository) SetEnd(ctx context.Context, id string, end time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE seasons SET ends_at = ? WHERE id = ?`, end.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to close season: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type seasonScanner interface {
	Scan(dest ...any) error
}

func scanSeason(row *sql.Row) (*domain.Season, error) {
	return scanSeasonRow(row)
}

func scanSeasonRow(row seasonScanner) (*domain.Season, error) {
	var s domain.Season
	var endsAt sql.NullTime
	if err := row.Scan(&s.ID, &s.Name, &s.StartsAt, &endsAt, &s.CreatedAt); err != nil {
		return nil, err
	}
	if endsAt.Valid {
		t := endsAt.Time
		s.EndsAt = &t
	}
	return &s, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
