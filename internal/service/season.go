package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pingpong-ladder/internal/domain"
	"pingpong-ladder/internal/repository"
)

// SeasonService is the season registry: it owns the non-overlap invariant and
// resolves the active season for an instant. Create/close are serialized on a
// single mutex; they are rare admin actions and the check-then-insert must not
// race itself.
type SeasonService struct {
	seasonRepo *repository.SeasonRepository
	matchRepo  *repository.MatchRepository
	eventRepo  *repository.EventLogRepository
	logger     zerolog.Logger

	mu sync.Mutex
}

func NewSeasonService(seasonRepo *repository.SeasonRepository, matchRepo *repository.MatchRepository, eventRepo *repository.EventLogRepository, logger zerolog.Logger) *SeasonService {
	return &SeasonService{seasonRepo: seasonRepo, matchRepo: matchRepo, eventRepo: eventRepo, logger: logger}
}

func (s *SeasonService) Create(ctx context.Context, actor domain.Actor, name string, startsAt time.Time, endsAt *time.Time) (*domain.Season, error) {
	if !actor.IsAdmin {
		return nil, fmt.Errorf("%w: only admins create seasons", domain.ErrForbidden)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: season name is required", domain.ErrValidation)
	}
	if endsAt != nil && !startsAt.Before(*endsAt) {
		return nil, fmt.Errorf("%w: season must end after it starts", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOverlap(ctx, startsAt, endsAt, ""); err != nil {
		return nil, err
	}

	season := &domain.Season{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		StartsAt:  startsAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	if endsAt != nil {
		t := endsAt.UTC()
		season.EndsAt = &t
	}

	if err := s.seasonRepo.Create(ctx, season); err != nil {
		return nil, err
	}

	s.logEvent(ctx, actor, "season_created", season.ID, season.Name)
	s.logger.Info().Str("season_id", season.ID).Str("name", season.Name).Msg("season created")
	return season, nil
}

// Close sets an open season's end instant. The new window must still not
// overlap any other season.
func (s *SeasonService) Close(ctx context.Context, actor domain.Actor, seasonID string, endsAt time.Time) error {
	if !actor.IsAdmin {
		return fmt.Errorf("%w: only admins close seasons", domain.ErrForbidden)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	season, err := s.getSeason(ctx, seasonID)
	if err != nil {
		return err
	}
	if !season.StartsAt.Before(endsAt) {
		return fmt.Errorf("%w: season must end after it starts", domain.ErrValidation)
	}
	if err := s.checkOverlap(ctx, season.StartsAt, &endsAt, season.ID); err != nil {
		return err
	}

	// every recorded match must keep played_at inside [starts_at, ends_at)
	stranded, err := s.matchRepo.CountAtOrAfter(ctx, seasonID, endsAt)
	if err != nil {
		return err
	}
	if stranded > 0 {
		return fmt.Errorf("%w: %d recorded matches have played_at at or after the new end", domain.ErrValidation, stranded)
	}

	if err := s.seasonRepo.SetEnd(ctx, seasonID, endsAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: season %s", domain.ErrNotFound, seasonID)
		}
		return err
	}

	s.logEvent(ctx, actor, "season_closed", seasonID, endsAt.UTC().Format(time.RFC3339))
	s.logger.Info().Str("season_id", seasonID).Time("ends_at", endsAt).Msg("season closed")
	return nil
}

// ActiveAt resolves the season whose [starts_at, ends_at) window contains t.
func (s *SeasonService) ActiveAt(ctx context.Context, t time.Time) (*domain.Season, error) {
	season, err := s.seasonRepo.ActiveAt(ctx, t)
	if err != nil {
		return nil, err
	}
	if season == nil {
		return nil, fmt.Errorf("%w: no season covers %s", domain.ErrSeasonBoundary, t.UTC().Format(time.RFC3339))
	}
	return season, nil
}

func (s *SeasonService) Get(ctx context.Context, seasonID string) (*domain.Season, error) {
	return s.getSeason(ctx, seasonID)
}

func (s *SeasonService) List(ctx context.Context) ([]domain.Season, error) {
	return s.seasonRepo.List(ctx)
}

func (s *SeasonService) getSeason(ctx context.Context, seasonID string) (*domain.Season, error) {
	season, err := s.seasonRepo.GetByID(ctx, seasonID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: season %s", domain.ErrNotFound, seasonID)
	}
	return season, err
}

func (s *SeasonService) checkOverlap(ctx context.Context, startsAt time.Time, endsAt *time.Time, excludeID string) error {
	seasons, err := s.seasonRepo.List(ctx)
	if err != nil {
		return err
	}
	for _, other := range seasons {
		if other.ID == excludeID {
			continue
		}
		if other.Overlaps(startsAt, endsAt) {
			return fmt.Errorf("%w: conflicts with season %q", domain.ErrOverlap, other.Name)
		}
	}
	return nil
}

func (s *SeasonService) logEvent(ctx context.Context, actor domain.Actor, action, subjectID, detail string) {
	if err := s.eventRepo.Append(ctx, actor.PlayerID, action, subjectID, detail); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to append event")
	}
}
