package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pingpong-ladder/internal/domain"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so query helpers can run
// standalone or inside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RatingRepository owns rating_history and its player_ratings projection, and
// the combined write paths that pair them with a match status change. The
// tables are only ever written together, inside one transaction, so readers
// never observe the projection ahead of or behind the ledger — and a failed
// rating write never leaves a status change behind.
type RatingRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRatingRepository(sqlDB *sql.DB, logger zerolog.Logger) *RatingRepository {
	return &RatingRepository{db: sqlDB, logger: logger}
}

type LeaderboardRow struct {
	Rank        int
	PlayerID    string
	DisplayName string
	Rating      int
}

// StatusChange is a compare-and-swap over a match's status column, executed
// inside a combined write transaction. A stale From surfaces as sql.ErrNoRows
// and rolls the whole transaction back.
type StatusChange struct {
	MatchID       string
	From, To      domain.MatchStatus
	DisputeReason *string
}

// FoldFunc recomputes a season tail: given the ratings in force just before
// the cutoff and the confirmed matches from it, it returns the regenerated
// history entries and the final rating per player.
type FoldFunc func(ratings map[string]int, matches []domain.Match) ([]domain.RatingHistoryEntry, map[string]int)

// RatingsAsOf returns each player's rating from their last history entry with
// applied_at strictly before the cutoff. Players with no surviving entry are
// absent from the map. The scan follows replay order so ties at the same
// instant resolve identically to a full rebuild.
func (r *RatingRepository) RatingsAsOf(ctx context.Context, seasonID string, before time.Time) (map[string]int, error) {
	return ratingsAsOf(ctx, r.db, seasonID, before)
}

func ratingsAsOf(ctx context.Context, q dbtx, seasonID string, before time.Time) (map[string]int, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT h.player_id, h.rating_after
		 FROM rating_history h
		 JOIN matches m ON m.id = h.match_id
		 WHERE h.season_id = ? AND h.applied_at < ?
		 ORDER BY m.played_at, m.created_at, m.id`,
		seasonID, before.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load ratings as of cutoff: %w", err)
	}
	defer rows.Close()

	ratings := make(map[string]int)
	for rows.Next() {
		var playerID string
		var after int
		if err := rows.Scan(&playerID, &after); err != nil {
			return nil, err
		}
		ratings[playerID] = after // last entry in replay order wins
	}
	return ratings, rows.Err()
}

func (r *RatingRepository) Rating(ctx context.Context, seasonID, playerID string) (int, error) {
	var rating int
	err := r.db.QueryRowContext(ctx,
		`SELECT rating FROM player_ratings WHERE season_id = ? AND player_id = ?`,
		seasonID, playerID).Scan(&rating)
	return rating, err
}

func (r *RatingRepository) Leaderboard(ctx context.Context, seasonID string) ([]LeaderboardRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT pr.player_id, p.display_name, pr.rating
		 FROM player_ratings pr
		 JOIN players p ON p.id = pr.player_id
		 WHERE pr.season_id = ?
		 ORDER BY pr.rating DESC, p.display_name`,
		seasonID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	defer rows.Close()

	var board []LeaderboardRow
	for rows.Next() {
		var row LeaderboardRow
		if err := rows.Scan(&row.PlayerID, &row.DisplayName, &row.Rating); err != nil {
			return nil, err
		}
		row.Rank = len(board) + 1
		board = append(board, row)
	}
	return board, rows.Err()
}

// Series returns a player's rating history in a season, oldest first.
func (r *RatingRepository) Series(ctx context.Context, seasonID, playerID string) ([]domain.RatingHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT h.id, h.season_id, h.player_id, h.match_id,
		        h.rating_before, h.rating_after, h.delta, h.applied_at
		 FROM rating_history h
		 JOIN matches m ON m.id = h.match_id
		 WHERE h.season_id = ? AND h.player_id = ?
		 ORDER BY m.played_at, m.created_at, m.id`,
		seasonID, playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load rating series: %w", err)
	}
	return collectEntries(rows)
}

// EntriesFrom returns every history entry in the season with
// applied_at >= from, in replay order. Used by tests and audit tooling.
func (r *RatingRepository) EntriesFrom(ctx context.Context, seasonID string, from time.Time) ([]domain.RatingHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT h.id, h.season_id, h.player_id, h.match_id,
		        h.rating_before, h.rating_after, h.delta, h.applied_at
		 FROM rating_history h
		 JOIN matches m ON m.id = h.match_id
		 WHERE h.season_id = ? AND h.applied_at >= ?
		 ORDER BY m.played_at, m.created_at, m.id, h.player_id`,
		seasonID, from.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load history entries: %w", err)
	}
	return collectEntries(rows)
}

// ApplyConfirm commits one freshly confirmed match in a single transaction:
// the status compare-and-swap, its pair of history entries, and both
// projection rows. If the swap loses (the match is no longer in change.From)
// nothing is written and sql.ErrNoRows comes back.
func (r *RatingRepository) ApplyConfirm(ctx context.Context, change StatusChange, entries []domain.RatingHistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := transitionStatus(ctx, tx, change); err != nil {
		return err
	}
	for _, e := range entries {
		if err := insertEntry(ctx, tx, e); err != nil {
			return err
		}
		if err := upsertRating(ctx, tx, e.SeasonID, e.PlayerID, e.RatingAfter); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RebuildFrom replays a season tail in one transaction: it applies the given
// status swaps, optionally inserts a replacement match, re-reads the as-of
// ratings and the confirmed tail with those changes visible, folds them
// through fold, and swaps the discarded history range and the whole projection
// for the result. Nothing is committed on failure, so readers only ever see
// the pre- or post-replay state.
func (r *RatingRepository) RebuildFrom(
	ctx context.Context,
	seasonID string,
	from time.Time,
	changes []StatusChange,
	replacement *domain.Match,
	fold FoldFunc,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, change := range changes {
		if err := transitionStatus(ctx, tx, change); err != nil {
			return err
		}
	}
	if replacement != nil {
		if err := insertMatch(ctx, tx, replacement); err != nil {
			return err
		}
	}

	ratings, err := ratingsAsOf(ctx, tx, seasonID, from)
	if err != nil {
		return err
	}
	matches, err := listConfirmedFrom(ctx, tx, seasonID, from)
	if err != nil {
		return err
	}
	entries, finals := fold(ratings, matches)

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM rating_history WHERE season_id = ? AND applied_at >= ?`,
		seasonID, from.UTC(),
	); err != nil {
		return fmt.Errorf("failed to discard history tail: %w", err)
	}
	for _, e := range entries {
		if err := insertEntry(ctx, tx, e); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM player_ratings WHERE season_id = ?`, seasonID,
	); err != nil {
		return fmt.Errorf("failed to clear rating projection: %w", err)
	}
	for playerID, rating := range finals {
		if err := upsertRating(ctx, tx, seasonID, playerID, rating); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertEntry(ctx context.Context, q dbtx, e domain.RatingHistoryEntry) error {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO rating_history
		 (id, season_id, player_id, match_id, rating_before, rating_after, delta, applied_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SeasonID, e.PlayerID, e.MatchID,
		e.RatingBefore, e.RatingAfter, e.Delta, e.AppliedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert rating history entry: %w", err)
	}
	return nil
}

func upsertRating(ctx context.Context, q dbtx, seasonID, playerID string, rating int) error {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO player_ratings (season_id, player_id, rating) VALUES (?, ?, ?)
		 ON CONFLICT (season_id, player_id) DO UPDATE SET rating = excluded.rating`,
		seasonID, playerID, rating,
	); err != nil {
		return fmt.Errorf("failed to update player rating: %w", err)
	}
	return nil
}

func collectEntries(rows *sql.Rows) ([]domain.RatingHistoryEntry, error) {
	defer rows.Close()
	var entries []domain.RatingHistoryEntry
	for rows.Next() {
		var e domain.RatingHistoryEntry
		if err := rows.Scan(
			&e.ID, &e.SeasonID, &e.PlayerID, &e.MatchID,
			&e.RatingBefore, &e.RatingAfter, &e.Delta, &e.AppliedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
