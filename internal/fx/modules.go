package fx

import (
	"pingpong-ladder/internal/config"
	"pingpong-ladder/internal/database"
	"pingpong-ladder/internal/logger"
	"pingpong-ladder/internal/repository"
	"pingpong-ladder/internal/server"
	"pingpong-ladder/internal/service"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewSeasonRepository),
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewMatchRepository),
	fx.Provide(repository.NewRatingRepository),
	fx.Provide(repository.NewEventLogRepository),
	// svc
	fx.Provide(service.NewSeasonService),
	fx.Provide(service.NewPlayerService),
	fx.Provide(service.NewRecalcService),
	fx.Provide(service.NewMatchService),
	fx.Provide(service.NewQueryService),
	// server
	fx.Provide(server.NewLadderServer),
)
