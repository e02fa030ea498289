package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pingpong-ladder/internal/domain"
)

type MatchRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{db: sqlDB, logger: logger}
}

// MatchWithDelta enriches a match row with the viewing player's rating delta,
// when one has been applied.
type MatchWithDelta struct {
	Match        domain.Match
	OpponentName string
	Delta        *int
}

const matchColumns = `id, season_id, player_a, player_b, score_a, score_b,
	played_at, created_at, created_by, status, dispute_reason, supersedes`

func (r *MatchRepository) Create(ctx context.Context, match *domain.Match) error {
	return insertMatch(ctx, r.db, match)
}

func insertMatch(ctx context.Context, q dbtx, match *domain.Match) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO matches (`+matchColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		match.ID, match.SeasonID, match.PlayerAID, match.PlayerBID,
		match.ScoreA, match.ScoreB,
		match.PlayedAt.UTC(), match.CreatedAt.UTC(), match.CreatedBy,
		string(match.Status), nullString(match.DisputeReason), nullString(match.SupersedesID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

func (r *MatchRepository) GetByID(ctx context.Context, id string) (*domain.Match, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = ?`, id)
	return scanMatch(row)
}

// TransitionStatus moves a match from exactly `from` to `to` in one statement.
// It returns sql.ErrNoRows when the match is no longer in `from`, which is how
// concurrent transitions lose the race. The dispute reason is only written
// when non-nil.
func (r *MatchRepository) TransitionStatus(ctx context.Context, id string, from, to domain.MatchStatus, disputeReason *string) error {
	err := transitionStatus(ctx, r.db, StatusChange{MatchID: id, From: from, To: to, DisputeReason: disputeReason})
	if err != nil {
		return err
	}
	r.logger.Debug().
		Str("match_id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("match status transitioned")
	return nil
}

func transitionStatus(ctx context.Context, q dbtx, change StatusChange) error {
	res, err := q.ExecContext(ctx,
		`UPDATE matches SET status = ?, dispute_reason = COALESCE(?, dispute_reason)
		 WHERE id = ? AND status = ?`,
		string(change.To), nullString(change.DisputeReason), change.MatchID, string(change.From),
	)
	if err != nil {
		return fmt.Errorf("failed to transition match status: %w", err)
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

// ListConfirmedFrom returns the season's confirmed matches with
// played_at >= from, in replay order (played_at, created_at, id). This
// ordering is the single source of truth for recalculation.
func (r *MatchRepository) ListConfirmedFrom(ctx context.Context, seasonID string, from time.Time) ([]domain.Match, error) {
	return listConfirmedFrom(ctx, r.db, seasonID, from)
}

func listConfirmedFrom(ctx context.Context, q dbtx, seasonID string, from time.Time) ([]domain.Match, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches
		 WHERE season_id = ? AND status = ? AND played_at >= ?
		 ORDER BY played_at, created_at, id`,
		seasonID, string(domain.MatchConfirmed), from.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmed matches: %w", err)
	}
	return collectMatches(rows)
}

// CountAtOrAfter counts the season's non-voided matches with played_at at or
// beyond the given instant. Season close uses it to refuse an end that would
// strand recorded matches outside the season window.
func (r *MatchRepository) CountAtOrAfter(ctx context.Context, seasonID string, t time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches
		 WHERE season_id = ? AND status <> ? AND played_at >= ?`,
		seasonID, string(domain.MatchVoided), t.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count matches past instant: %w", err)
	}
	return n, nil
}

// ListPendingFor returns pending matches awaiting the given player's
// confirmation, i.e. ones they participate in but did not create.
func (r *MatchRepository) ListPendingFor(ctx context.Context, playerID string) ([]domain.Match, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches
		 WHERE status = ? AND (player_a = ? OR player_b = ?) AND created_by <> ?
		 ORDER BY created_at DESC`,
		string(domain.MatchPending), playerID, playerID, playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending matches: %w", err)
	}
	return collectMatches(rows)
}

func (r *MatchRepository) ListDisputed(ctx context.Context, seasonID string) ([]domain.Match, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches
		 WHERE season_id = ? AND status = ?
		 ORDER BY played_at DESC, created_at DESC`,
		seasonID, string(domain.MatchDisputed),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list disputed matches: %w", err)
	}
	return collectMatches(rows)
}

// ListRecentFor returns a player's most recent matches in a season, newest
// first, with the player's applied rating delta where one exists.
func (r *MatchRepository) ListRecentFor(ctx context.Context, seasonID, playerID string, limit int) ([]MatchWithDelta, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.season_id, m.player_a, m.player_b, m.score_a, m.score_b,
		        m.played_at, m.created_at, m.created_by, m.status, m.dispute_reason, m.supersedes,
		        p.display_name, h.delta
		 FROM matches m
		 JOIN players p ON p.id = CASE WHEN m.player_a = ? THEN m.player_b ELSE m.player_a END
		 LEFT JOIN rating_history h ON h.match_id = m.id AND h.player_id = ?
		 WHERE m.season_id = ? AND (m.player_a = ? OR m.player_b = ?) AND m.status <> ?
		 ORDER BY m.played_at DESC, m.created_at DESC, m.id DESC
		 LIMIT ?`,
		playerID, playerID, seasonID, playerID, playerID, string(domain.MatchVoided), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent matches: %w", err)
	}
	defer rows.Close()

	var result []MatchWithDelta
	for rows.Next() {
		var m domain.Match
		var status string
		var disputeReason, supersedes sql.NullString
		var opponentName string
		var delta sql.NullInt64
		if err := rows.Scan(
			&m.ID, &m.SeasonID, &m.PlayerAID, &m.PlayerBID, &m.ScoreA, &m.ScoreB,
			&m.PlayedAt, &m.CreatedAt, &m.CreatedBy, &status, &disputeReason, &supersedes,
			&opponentName, &delta,
		); err != nil {
			return nil, err
		}
		m.Status = domain.MatchStatus(status)
		if disputeReason.Valid {
			v := disputeReason.String
			m.DisputeReason = &v
		}
		if supersedes.Valid {
			v := supersedes.String
			m.SupersedesID = &v
		}
		row := MatchWithDelta{Match: m, OpponentName: opponentName}
		if delta.Valid {
			d := int(delta.Int64)
			row.Delta = &d
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

type matchScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row matchScanner) (*domain.Match, error) {
	var m domain.Match
	var status string
	var disputeReason, supersedes sql.NullString
	if err := row.Scan(
		&m.ID, &m.SeasonID, &m.PlayerAID, &m.PlayerBID, &m.ScoreA, &m.ScoreB,
		&m.PlayedAt, &m.CreatedAt, &m.CreatedBy, &status, &disputeReason, &supersedes,
	); err != nil {
		return nil, err
	}
	m.Status = domain.MatchStatus(status)
	if disputeReason.Valid {
		v := disputeReason.String
		m.DisputeReason = &v
	}
	if supersedes.Valid {
		v := supersedes.String
		m.SupersedesID = &v
	}
	return &m, nil
}

func collectMatches(rows *sql.Rows) ([]domain.Match, error) {
	defer rows.Close()
	var matches []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}
