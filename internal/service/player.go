package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pingpong-ladder/internal/domain"
	"pingpong-ladder/internal/repository"
)

type PlayerService struct {
	playerRepo *repository.PlayerRepository
	eventRepo  *repository.EventLogRepository
	logger     zerolog.Logger
}

func NewPlayerService(playerRepo *repository.PlayerRepository, eventRepo *repository.EventLogRepository, logger zerolog.Logger) *PlayerService {
	return &PlayerService{playerRepo: playerRepo, eventRepo: eventRepo, logger: logger}
}

func (s *PlayerService) Register(ctx context.Context, actor domain.Actor, displayName string) (*domain.Player, error) {
	if !actor.IsAdmin {
		return nil, fmt.Errorf("%w: only admins register players", domain.ErrForbidden)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name is required", domain.ErrValidation)
	}

	player := &domain.Player{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.playerRepo.Create(ctx, player); err != nil {
		return nil, err
	}

	s.logger.Info().Str("player_id", player.ID).Str("display_name", displayName).Msg("player registered")
	return player, nil
}

// Rename changes a player's display name. The name is owned by the player;
// only they (or an admin) may change it.
func (s *PlayerService) Rename(ctx context.Context, actor domain.Actor, playerID, displayName string) error {
	if actor.PlayerID != playerID && !actor.IsAdmin {
		return fmt.Errorf("%w: display name is owned by the player", domain.ErrForbidden)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return fmt.Errorf("%w: display name is required", domain.ErrValidation)
	}

	err := s.playerRepo.UpdateDisplayName(ctx, playerID, displayName)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: player %s", domain.ErrNotFound, playerID)
	}
	if err != nil {
		return err
	}

	if err := s.eventRepo.Append(ctx, actor.PlayerID, "player_renamed", playerID, displayName); err != nil {
		s.logger.Warn().Err(err).Msg("failed to append event")
	}
	return nil
}

func (s *PlayerService) Get(ctx context.Context, playerID string) (*domain.Player, error) {
	player, err := s.playerRepo.GetByID(ctx, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: player %s", domain.ErrNotFound, playerID)
	}
	return player, err
}

func (s *PlayerService) List(ctx context.Context) ([]domain.Player, error) {
	return s.playerRepo.List(ctx)
}
