package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pingpong-ladder/internal/database"
	"pingpong-ladder/internal/domain"
)

type repos struct {
	seasons *SeasonRepository
	players *PlayerRepository
	matches *MatchRepository
	ratings *RatingRepository
}

func newRepos(t *testing.T) (*repos, *sql.DB) {
	t.Helper()
	logger := zerolog.Nop()
	sqlDB, err := database.Open(filepath.Join(t.TempDir(), "ladder.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return &repos{
		seasons: NewSeasonRepository(sqlDB, logger),
		players: NewPlayerRepository(sqlDB, logger),
		matches: NewMatchRepository(sqlDB, logger),
		ratings: NewRatingRepository(sqlDB, logger),
	}, sqlDB
}

func seedSeason(t *testing.T, r *repos, start time.Time) *domain.Season {
	t.Helper()
	season := &domain.Season{ID: "s1", Name: "Season 1", StartsAt: start, CreatedAt: start}
	require.NoError(t, r.seasons.Create(context.Background(), season))
	return season
}

func seedPlayers(t *testing.T, r *repos, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, r.players.Create(context.Background(), &domain.Player{
			ID:          id,
			DisplayName: id,
			CreatedAt:   time.Now().UTC(),
		}))
	}
}

func confirmedMatch(id, seasonID string, playedAt, createdAt time.Time) *domain.Match {
	return &domain.Match{
		ID:        id,
		SeasonID:  seasonID,
		PlayerAID: "alice",
		PlayerBID: "bob",
		ScoreA:    11,
		ScoreB:    7,
		PlayedAt:  playedAt,
		CreatedAt: createdAt,
		CreatedBy: "alice",
		Status:    domain.MatchConfirmed,
	}
}

func TestListConfirmedFromOrder(t *testing.T) {
	r, _ := newRepos(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	season := seedSeason(t, r, base.Add(-time.Hour))
	seedPlayers(t, r, "alice", "bob")

	// insertion order deliberately scrambled relative to replay order:
	// played_at first, created_at breaks the tie, id breaks a full tie
	fixtures := []struct {
		id       string
		playedAt time.Time
		created  time.Time
	}{
		{"m-z", base, base.Add(10 * time.Minute)},
		{"m-a", base, base.Add(10 * time.Minute)}, // full tie with m-z, id decides
		{"m-late", base.Add(time.Minute), base},
		{"m-early-created", base, base.Add(5 * time.Minute)},
	}
	for _, f := range fixtures {
		require.NoError(t, r.matches.Create(ctx, confirmedMatch(f.id, season.ID, f.playedAt, f.created)))
	}

	matches, err := r.matches.ListConfirmedFrom(ctx, season.ID, base)
	require.NoError(t, err)

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m-early-created", "m-a", "m-z", "m-late"}, ids)
}

func TestListConfirmedFromSkipsOtherStatuses(t *testing.T) {
	r, _ := newRepos(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	season := seedSeason(t, r, base.Add(-time.Hour))
	seedPlayers(t, r, "alice", "bob")

	for i, status := range []domain.MatchStatus{
		domain.MatchConfirmed, domain.MatchPending, domain.MatchDisputed, domain.MatchVoided,
	} {
		m := confirmedMatch(fmt.Sprintf("m-%d", i), season.ID, base.Add(time.Duration(i)*time.Minute), base)
		m.Status = status
		require.NoError(t, r.matches.Create(ctx, m))
	}

	matches, err := r.matches.ListConfirmedFrom(ctx, season.ID, base)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "m-0", matches[0].ID)
}

// confirmMatch seeds a pending match and commits it through ApplyConfirm with
// the given per-player entries, the way the service layer does.
func confirmMatch(t *testing.T, r *repos, m *domain.Match, entries []domain.RatingHistoryEntry) {
	t.Helper()
	pending := *m
	pending.Status = domain.MatchPending
	require.NoError(t, r.matches.Create(context.Background(), &pending))
	require.NoError(t, r.ratings.ApplyConfirm(context.Background(), StatusChange{
		MatchID: m.ID, From: domain.MatchPending, To: domain.MatchConfirmed,
	}, entries))
}

func historyPair(seasonID, matchID string, aBefore, aAfter, bBefore, bAfter int, at time.Time) []domain.RatingHistoryEntry {
	return []domain.RatingHistoryEntry{
		{ID: matchID + "-a", SeasonID: seasonID, PlayerID: "alice", MatchID: matchID,
			RatingBefore: aBefore, RatingAfter: aAfter, Delta: aAfter - aBefore, AppliedAt: at},
		{ID: matchID + "-b", SeasonID: seasonID, PlayerID: "bob", MatchID: matchID,
			RatingBefore: bBefore, RatingAfter: bAfter, Delta: bAfter - bBefore, AppliedAt: at},
	}
}

func TestRatingsAsOfCutoff(t *testing.T) {
	r, _ := newRepos(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	season := seedSeason(t, r, base.Add(-time.Hour))
	seedPlayers(t, r, "alice", "bob")

	m1 := confirmedMatch("m1", season.ID, base, base)
	m2 := confirmedMatch("m2", season.ID, base.Add(time.Minute), base)
	confirmMatch(t, r, m1, historyPair(season.ID, "m1", 1000, 1016, 1000, 984, m1.PlayedAt))
	confirmMatch(t, r, m2, historyPair(season.ID, "m2", 1016, 1031, 984, 969, m2.PlayedAt))

	// the cutoff is exclusive: entries applied exactly at it are tail
	ratings, err := r.ratings.RatingsAsOf(ctx, season.ID, m1.PlayedAt)
	require.NoError(t, err)
	assert.Empty(t, ratings)

	ratings, err = r.ratings.RatingsAsOf(ctx, season.ID, m2.PlayedAt)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"alice": 1016, "bob": 984}, ratings)

	// past everything: the last entry per player wins
	ratings, err = r.ratings.RatingsAsOf(ctx, season.ID, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"alice": 1031, "bob": 969}, ratings)
}

func TestApplyConfirmStaleStatusWritesNothing(t *testing.T) {
	r, _ := newRepos(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	season := seedSeason(t, r, base.Add(-time.Hour))
	seedPlayers(t, r, "alice", "bob")

	m := confirmedMatch("m1", season.ID, base, base)
	m.Status = domain.MatchVoided
	require.NoError(t, r.matches.Create(ctx, m))

	// the swap expects pending but the match is voided: the whole
	// transaction must roll back, entries included
	err := r.ratings.ApplyConfirm(ctx, StatusChange{
		MatchID: m.ID, From: domain.MatchPending, To: domain.MatchConfirmed,
	}, historyPair(season.ID, "m1", 1000, 1016, 1000, 984, m.PlayedAt))
	require.ErrorIs(t, err, sql.ErrNoRows)

	got, err := r.matches.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchVoided, got.Status)

	entries, err := r.ratings.EntriesFrom(ctx, season.ID, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = r.ratings.Rating(ctx, season.ID, "alice")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRebuildFromSwapsTail(t *testing.T) {
	r, _ := newRepos(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	season := seedSeason(t, r, base.Add(-time.Hour))
	seedPlayers(t, r, "alice", "bob")

	m1 := confirmedMatch("m1", season.ID, base, base)
	m2 := confirmedMatch("m2", season.ID, base.Add(time.Minute), base)
	confirmMatch(t, r, m1, historyPair(season.ID, "m1", 1000, 1016, 1000, 984, m1.PlayedAt))
	confirmMatch(t, r, m2, historyPair(season.ID, "m2", 1016, 1031, 984, 969, m2.PlayedAt))

	// rebuild from m2: the fold sees the as-of ratings and the surviving
	// tail, and rewrites it with different numbers
	err := r.ratings.RebuildFrom(ctx, season.ID, m2.PlayedAt, nil, nil,
		func(ratings map[string]int, matches []domain.Match) ([]domain.RatingHistoryEntry, map[string]int) {
			assert.Equal(t, map[string]int{"alice": 1016, "bob": 984}, ratings)
			require.Len(t, matches, 1)
			assert.Equal(t, "m2", matches[0].ID)
			return []domain.RatingHistoryEntry{
				{ID: "r1", SeasonID: season.ID, PlayerID: "alice", MatchID: "m2", RatingBefore: 1016, RatingAfter: 1000, Delta: -16, AppliedAt: m2.PlayedAt},
				{ID: "r2", SeasonID: season.ID, PlayerID: "bob", MatchID: "m2", RatingBefore: 984, RatingAfter: 1000, Delta: 16, AppliedAt: m2.PlayedAt},
			}, map[string]int{"alice": 1000, "bob": 1000}
		})
	require.NoError(t, err)

	entries, err := r.ratings.EntriesFrom(ctx, season.ID, base)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "m1-a", entries[0].ID, "head before the cutoff survives")
	assert.Equal(t, "m1-b", entries[1].ID)
	assert.Equal(t, "r1", entries[2].ID)
	assert.Equal(t, "r2", entries[3].ID)

	rating, err := r.ratings.Rating(ctx, season.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1000, rating)

	board, err := r.ratings.Leaderboard(ctx, season.ID)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "alice", board[0].PlayerID, "ties rank by display name")
}

func TestRebuildFromStaleSwapLeavesStateIntact(t *testing.T) {
	r, _ := newRepos(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	season := seedSeason(t, r, base.Add(-time.Hour))
	seedPlayers(t, r, "alice", "bob")

	m1 := confirmedMatch("m1", season.ID, base, base)
	confirmMatch(t, r, m1, historyPair(season.ID, "m1", 1000, 1016, 1000, 984, m1.PlayedAt))

	// the swap expects pending but m1 is confirmed: status, history and
	// projection must all come through untouched
	err := r.ratings.RebuildFrom(ctx, season.ID, m1.PlayedAt,
		[]StatusChange{{MatchID: "m1", From: domain.MatchPending, To: domain.MatchVoided}},
		nil,
		func(ratings map[string]int, matches []domain.Match) ([]domain.RatingHistoryEntry, map[string]int) {
			return nil, nil
		})
	require.ErrorIs(t, err, sql.ErrNoRows)

	got, err := r.matches.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.MatchConfirmed, got.Status)

	entries, err := r.ratings.EntriesFrom(ctx, season.ID, base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "m1-a", entries[0].ID)

	rating, err := r.ratings.Rating(ctx, season.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1016, rating)
}
