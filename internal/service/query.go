package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pingpong-ladder/internal/constants"
	"pingpong-ladder/internal/domain"
	"pingpong-ladder/internal/repository"
)

// QueryService is the read-only, season-scoped surface. Everything it returns
// is committed recalculation output; an in-progress replay is never visible
// because the engine persists in one transaction.
type QueryService struct {
	ratingRepo *repository.RatingRepository
	matchRepo  *repository.MatchRepository
	eventRepo  *repository.EventLogRepository
	seasons    *SeasonService
	logger     zerolog.Logger
}

func NewQueryService(
	ratingRepo *repository.RatingRepository,
	matchRepo *repository.MatchRepository,
	eventRepo *repository.EventLogRepository,
	seasons *SeasonService,
	logger zerolog.Logger,
) *QueryService {
	return &QueryService{
		ratingRepo: ratingRepo,
		matchRepo:  matchRepo,
		eventRepo:  eventRepo,
		seasons:    seasons,
		logger:     logger,
	}
}

func (s *QueryService) Leaderboard(ctx context.Context, seasonID string) ([]repository.LeaderboardRow, error) {
	if _, err := s.seasons.Get(ctx, seasonID); err != nil {
		return nil, err
	}
	return s.ratingRepo.Leaderboard(ctx, seasonID)
}

func (s *QueryService) RatingSeries(ctx context.Context, seasonID, playerID string) ([]domain.RatingHistoryEntry, error) {
	if _, err := s.seasons.Get(ctx, seasonID); err != nil {
		return nil, err
	}
	return s.ratingRepo.Series(ctx, seasonID, playerID)
}

func (s *QueryService) RecentMatches(ctx context.Context, seasonID, playerID string, limit int) ([]repository.MatchWithDelta, error) {
	if limit <= 0 || limit > constants.RecentMatchesLimit {
		limit = constants.RecentMatchesLimit
	}
	return s.matchRepo.ListRecentFor(ctx, seasonID, playerID, limit)
}

func (s *QueryService) PendingFor(ctx context.Context, playerID string) ([]domain.Match, error) {
	return s.matchRepo.ListPendingFor(ctx, playerID)
}

func (s *QueryService) OpenDisputes(ctx context.Context, seasonID string) ([]domain.Match, error) {
	return s.matchRepo.ListDisputed(ctx, seasonID)
}

func (s *QueryService) RecentEvents(ctx context.Context, limit int) ([]domain.EventLogEntry, error) {
	if limit <= 0 || limit > constants.EventFeedLimit {
		limit = constants.EventFeedLimit
	}
	return s.eventRepo.ListRecent(ctx, limit)
}

// PlayerSummary aggregates one player's season standing: current rating and
// rank, the rating series, and recent matches with deltas.
type PlayerSummary struct {
	SeasonID string
	PlayerID string
	Rating   int
	Rank     int // 0 when unranked (no confirmed matches yet)
	Series   []domain.RatingHistoryEntry
	Recent   []repository.MatchWithDelta
}

func (s *QueryService) PlayerSummary(ctx context.Context, seasonID, playerID string) (*PlayerSummary, error) {
	if _, err := s.seasons.Get(ctx, seasonID); err != nil {
		return nil, err
	}

	summary := &PlayerSummary{
		SeasonID: seasonID,
		PlayerID: playerID,
		Rating:   constants.BaseRating,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		board, err := s.ratingRepo.Leaderboard(gCtx, seasonID)
		if err != nil {
			return err
		}
		for _, row := range board {
			if row.PlayerID == playerID {
				summary.Rating = row.Rating
				summary.Rank = row.Rank
				break
			}
		}
		return nil
	})

	g.Go(func() error {
		series, err := s.ratingRepo.Series(gCtx, seasonID, playerID)
		if err != nil {
			return err
		}
		summary.Series = series
		return nil
	})

	g.Go(func() error {
		recent, err := s.matchRepo.ListRecentFor(gCtx, seasonID, playerID, constants.RecentMatchesLimit)
		if err != nil {
			return err
		}
		summary.Recent = recent
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}

// Rating returns the committed season rating for a player, defaulting to the
// base rating when they have no history yet.
func (s *QueryService) Rating(ctx context.Context, seasonID, playerID string) (int, error) {
	rating, err := s.ratingRepo.Rating(ctx, seasonID, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return constants.BaseRating, nil
	}
	return rating, err
}
