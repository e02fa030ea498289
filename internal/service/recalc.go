package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pingpong-ladder/internal/config"
	"pingpong-ladder/internal/constants"
	"pingpong-ladder/internal/domain"
	"pingpong-ladder/internal/elo"
	"pingpong-ladder/internal/repository"
)

// RecalcService rebuilds a season's rating history from a cutoff instant
// forward. The replay is a pure fold over the season's confirmed matches in
// (played_at, created_at, id) order: starting ratings come from the last
// surviving history entry per player (base rating otherwise), and the result
// replaces the discarded tail in the same transaction as the status change
// that triggered it. Running it twice with no intervening writes produces
// identical rows: entry ids are derived from (match, player) and no wall-clock
// of the run is persisted.
type RecalcService struct {
	ratingRepo *repository.RatingRepository
	seasonRepo *repository.SeasonRepository
	locks      *seasonLocks
	kFactor    int
	logger     zerolog.Logger
}

func NewRecalcService(
	ratingRepo *repository.RatingRepository,
	seasonRepo *repository.SeasonRepository,
	cfg *config.Config,
	logger zerolog.Logger,
) *RecalcService {
	return &RecalcService{
		ratingRepo: ratingRepo,
		seasonRepo: seasonRepo,
		locks:      newSeasonLocks(),
		kFactor:    cfg.EloKFactor,
		logger:     logger,
	}
}

// RecalcFrom replays the season's confirmed matches with played_at >= from.
// A concurrent run over the same season is rejected with
// domain.ErrRecalcInProgress; callers are expected to retry.
func (s *RecalcService) RecalcFrom(ctx context.Context, seasonID string, from time.Time) error {
	if _, err := s.seasonRepo.GetByID(ctx, seasonID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: season %s", domain.ErrNotFound, seasonID)
		}
		return err
	}
	return s.WithSeasonLock(seasonID, func() error {
		return s.ReplayLocked(ctx, seasonID, from, nil, nil)
	})
}

// WithSeasonLock runs fn while holding the season's gate exclusively. A
// second exclusive caller is rejected rather than queued; shared holders
// (in-flight single applies) are drained first.
func (s *RecalcService) WithSeasonLock(seasonID string, fn func() error) error {
	gate := s.locks.get(seasonID)
	if !gate.TryLock() {
		return fmt.Errorf("%w: %s", domain.ErrRecalcInProgress, seasonID)
	}
	defer gate.Unlock()
	return fn()
}

// WithSeasonShared runs fn while holding the season's gate shared. Single
// applies run under it so a replay can never interleave with them; applies
// for disjoint pairs still proceed concurrently.
func (s *RecalcService) WithSeasonShared(seasonID string, fn func() error) error {
	gate := s.locks.get(seasonID)
	gate.RLock()
	defer gate.RUnlock()
	return fn()
}

// ReplayLocked replays the season tail for callers that hold the season gate
// via WithSeasonLock. Status changes and an optional replacement match commit
// inside the same transaction as the rebuilt tail, so a failed replay leaves
// match status untouched. A stale status change surfaces as sql.ErrNoRows.
func (s *RecalcService) ReplayLocked(
	ctx context.Context,
	seasonID string,
	from time.Time,
	changes []repository.StatusChange,
	replacement *domain.Match,
) error {
	started := time.Now()

	var replayed int
	err := s.ratingRepo.RebuildFrom(ctx, seasonID, from, changes, replacement,
		func(ratings map[string]int, matches []domain.Match) ([]domain.RatingHistoryEntry, map[string]int) {
			replayed = len(matches)
			return s.fold(ratings, matches)
		})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("season_id", seasonID).
		Time("from", from).
		Int("matches_replayed", replayed).
		Dur("took", time.Since(started)).
		Msg("season recalculated")
	return nil
}

// fold applies the Elo update match by match at the in-memory ratings,
// mutating the map as it goes. It is the pure core of every replay.
func (s *RecalcService) fold(ratings map[string]int, matches []domain.Match) ([]domain.RatingHistoryEntry, map[string]int) {
	entries := make([]domain.RatingHistoryEntry, 0, 2*len(matches))
	for _, m := range matches {
		ra := ratingOrBase(ratings, m.PlayerAID)
		rb := ratingOrBase(ratings, m.PlayerBID)
		newA, newB, deltaA, deltaB := elo.Update(ra, rb, m.ScoreA > m.ScoreB, s.kFactor)

		entries = append(entries,
			historyEntry(m, m.PlayerAID, ra, newA, deltaA),
			historyEntry(m, m.PlayerBID, rb, newB, deltaB),
		)
		ratings[m.PlayerAID] = newA
		ratings[m.PlayerBID] = newB
	}
	return entries, ratings
}

// ApplyConfirmed commits a single freshly confirmed match at the season's
// current ratings: the status swap and the rating effect land in one
// transaction. Only valid under the shared season gate and the pair lock,
// with no rating effect at or after the match's played_at; the caller falls
// back to a replay otherwise.
func (s *RecalcService) ApplyConfirmed(ctx context.Context, m *domain.Match, from domain.MatchStatus) error {
	ra, err := s.currentRating(ctx, m.SeasonID, m.PlayerAID)
	if err != nil {
		return err
	}
	rb, err := s.currentRating(ctx, m.SeasonID, m.PlayerBID)
	if err != nil {
		return err
	}

	newA, newB, deltaA, deltaB := elo.Update(ra, rb, m.ScoreA > m.ScoreB, s.kFactor)
	change := repository.StatusChange{MatchID: m.ID, From: from, To: domain.MatchConfirmed}
	return s.ratingRepo.ApplyConfirm(ctx, change, []domain.RatingHistoryEntry{
		historyEntry(*m, m.PlayerAID, ra, newA, deltaA),
		historyEntry(*m, m.PlayerBID, rb, newB, deltaB),
	})
}

// HasEffectAtOrAfter reports whether any rating history in the season was
// applied at or after t. Callers must hold the season gate (shared or
// exclusive) for the answer to stay true while they act on it.
func (s *RecalcService) HasEffectAtOrAfter(ctx context.Context, seasonID string, t time.Time) (bool, error) {
	entries, err := s.ratingRepo.EntriesFrom(ctx, seasonID, t)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

func (s *RecalcService) currentRating(ctx context.Context, seasonID, playerID string) (int, error) {
	rating, err := s.ratingRepo.Rating(ctx, seasonID, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return constants.BaseRating, nil
	}
	return rating, err
}

func ratingOrBase(ratings map[string]int, playerID string) int {
	if r, ok := ratings[playerID]; ok {
		return r
	}
	return constants.BaseRating
}

func historyEntry(m domain.Match, playerID string, before, after, delta int) domain.RatingHistoryEntry {
	return domain.RatingHistoryEntry{
		ID:           historyEntryID(m.ID, playerID),
		SeasonID:     m.SeasonID,
		PlayerID:     playerID,
		MatchID:      m.ID,
		RatingBefore: before,
		RatingAfter:  after,
		Delta:        delta,
		AppliedAt:    m.PlayedAt,
	}
}

// historyEntryID is deterministic per (match, player) so replays regenerate
// byte-identical rows.
func historyEntryID(matchID, playerID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("rating-history/"+matchID+"/"+playerID)).String()
}
