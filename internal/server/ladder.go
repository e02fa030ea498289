package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pingpong-ladder/internal/domain"
	"pingpong-ladder/internal/middleware"
	"pingpong-ladder/internal/service"
)

// LadderServer exposes the match ledger over JSON. It carries no business
// logic: every handler parses, delegates to a service, and maps the error
// category onto a status code. Caller identity arrives from the auth layer
// (out of scope here) in the X-Player-ID and X-Admin headers.
type LadderServer struct {
	matchSvc  *service.MatchService
	seasonSvc *service.SeasonService
	playerSvc *service.PlayerService
	recalcSvc *service.RecalcService
	querySvc  *service.QueryService
	logger    zerolog.Logger
}

func NewLadderServer(
	matchSvc *service.MatchService,
	seasonSvc *service.SeasonService,
	playerSvc *service.PlayerService,
	recalcSvc *service.RecalcService,
	querySvc *service.QueryService,
	logger zerolog.Logger,
) *LadderServer {
	return &LadderServer{
		matchSvc:  matchSvc,
		seasonSvc: seasonSvc,
		playerSvc: playerSvc,
		recalcSvc: recalcSvc,
		querySvc:  querySvc,
		logger:    logger,
	}
}

func (s *LadderServer) Register(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.POST("/matches", s.createMatch)
		api.POST("/matches/:id/confirm", s.confirmMatch)
		api.POST("/matches/:id/dispute", s.disputeMatch)

		api.POST("/players", s.registerPlayer)
		api.PATCH("/players/:id/name", s.renamePlayer)
		api.GET("/players", s.listPlayers)
		api.GET("/players/:id/pending", s.pendingForPlayer)

		api.GET("/events", s.recentEvents)

		api.GET("/seasons", s.listSeasons)
		api.GET("/seasons/active", s.activeSeason)
		api.GET("/seasons/:id/leaderboard", s.leaderboard)
		api.GET("/seasons/:id/disputes", s.openDisputes)
		api.GET("/seasons/:id/players/:playerID/series", s.ratingSeries)
		api.GET("/seasons/:id/players/:playerID/matches", s.recentMatches)
		api.GET("/seasons/:id/players/:playerID/summary", s.playerSummary)

		admin := api.Group("/admin")
		{
			admin.POST("/matches/:id/force-confirm", s.forceConfirmMatch)
			admin.POST("/matches/:id/void", s.voidMatch)
			admin.POST("/matches/:id/correct", s.correctMatch)
			admin.POST("/recalc", s.recalcFromTime)
			admin.POST("/seasons", s.createSeason)
			admin.POST("/seasons/:id/close", s.closeSeason)
		}
	}
}

func actorFrom(c *gin.Context) domain.Actor {
	return domain.Actor{
		PlayerID: c.GetHeader("X-Player-ID"),
		IsAdmin:  c.GetHeader("X-Admin") == "true",
	}
}

func (s *LadderServer) respondErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyDecided), errors.Is(err, domain.ErrOverlap):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrSeasonBoundary):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRecalcInProgress):
		// advisory: callers retry the whole recalculation
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retryable": true})
		return
	default:
		s.logger.Error().
			Err(err).
			Str("path", c.FullPath()).
			Str("request_id", middleware.GetRequestID(c.Request.Context())).
			Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// --- match lifecycle ---

type createMatchReq struct {
	OpponentID    string     `json:"opponent_id"`
	ScoreMine     int        `json:"score_me"`
	ScoreOpponent int        `json:"score_opp"`
	PlayedAt      *time.Time `json:"played_at"`
}

func (s *LadderServer) createMatch(c *gin.Context) {
	var req createMatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	match, err := s.matchSvc.Create(c.Request.Context(), actorFrom(c), req.OpponentID, req.ScoreMine, req.ScoreOpponent, req.PlayedAt)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMatchResp(*match))
}

func (s *LadderServer) confirmMatch(c *gin.Context) {
	if err := s.matchSvc.Confirm(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

type reasonReq struct {
	Reason string `json:"reason"`
}

func (s *LadderServer) disputeMatch(c *gin.Context) {
	var req reasonReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.matchSvc.Dispute(c.Request.Context(), actorFrom(c), c.Param("id"), req.Reason); err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disputed"})
}

func (s *LadderServer) forceConfirmMatch(c *gin.Context) {
	var req reasonReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.matchSvc.ForceConfirm(c.Request.Context(), actorFrom(c), c.Param("id"), req.Reason); err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

func (s *LadderServer) voidMatch(c *gin.Context) {
	var req reasonReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.matchSvc.Void(c.Request.Context(), actorFrom(c), c.Param("id"), req.Reason); err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "voided"})
}

type correctMatchReq struct {
	ScoreA   int        `json:"score_a"`
	ScoreB   int        `json:"score_b"`
	PlayedAt *time.Time `json:"played_at"`
	Reason   string     `json:"reason"`
}

func (s *LadderServer) correctMatch(c *gin.Context) {
	var req correctMatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	replacement, err := s.matchSvc.Correct(c.Request.Context(), actorFrom(c), c.Param("id"), req.ScoreA, req.ScoreB, req.PlayedAt, req.Reason)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMatchResp(*replacement))
}

// --- recalculation ---

type recalcReq struct {
	SeasonID string    `json:"season_id"`
	From     time.Time `json:"from"`
}

func (s *LadderServer) recalcFromTime(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.IsAdmin {
		s.respondErr(c, domain.ErrForbidden)
		return
	}
	var req recalcReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.recalcSvc.RecalcFrom(c.Request.Context(), req.SeasonID, req.From); err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recalculated"})
}

// --- seasons ---

type createSeasonReq struct {
	Name     string     `json:"name"`
	StartsAt time.Time  `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

func (s *LadderServer) createSeason(c *gin.Context) {
	var req createSeasonReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	season, err := s.seasonSvc.Create(c.Request.Context(), actorFrom(c), req.Name, req.StartsAt, req.EndsAt)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSeasonResp(*season))
}

type closeSeasonReq struct {
	EndsAt time.Time `json:"ends_at"`
}

func (s *LadderServer) closeSeason(c *gin.Context) {
	var req closeSeasonReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.seasonSvc.Close(c.Request.Context(), actorFrom(c), c.Param("id"), req.EndsAt); err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

func (s *LadderServer) listSeasons(c *gin.Context) {
	seasons, err := s.seasonSvc.List(c.Request.Context())
	if err != nil {
		s.respondErr(c, err)
		return
	}
	out := make([]seasonResp, 0, len(seasons))
	for _, season := range seasons {
		out = append(out, toSeasonResp(season))
	}
	c.JSON(http.StatusOK, gin.H{"seasons": out})
}

func (s *LadderServer) activeSeason(c *gin.Context) {
	season, err := s.seasonSvc.ActiveAt(c.Request.Context(), time.Now())
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toSeasonResp(*season))
}

// --- players ---

type registerPlayerReq struct {
	DisplayName string `json:"display_name"`
}

func (s *LadderServer) registerPlayer(c *gin.Context) {
	var req registerPlayerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	player, err := s.playerSvc.Register(c.Request.Context(), actorFrom(c), req.DisplayName)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, playerResp{ID: player.ID, DisplayName: player.DisplayName})
}

func (s *LadderServer) renamePlayer(c *gin.Context) {
	var req registerPlayerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.playerSvc.Rename(c.Request.Context(), actorFrom(c), c.Param("id"), req.DisplayName); err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "renamed"})
}

func (s *LadderServer) listPlayers(c *gin.Context) {
	players, err := s.playerSvc.List(c.Request.Context())
	if err != nil {
		s.respondErr(c, err)
		return
	}
	out := make([]playerResp, 0, len(players))
	for _, p := range players {
		out = append(out, playerResp{ID: p.ID, DisplayName: p.DisplayName})
	}
	c.JSON(http.StatusOK, gin.H{"players": out})
}

// --- queries ---

func (s *LadderServer) leaderboard(c *gin.Context) {
	rows, err := s.querySvc.Leaderboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": toLeaderboardResp(rows)})
}

func (s *LadderServer) ratingSeries(c *gin.Context) {
	entries, err := s.querySvc.RatingSeries(c.Request.Context(), c.Param("id"), c.Param("playerID"))
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": toSeriesResp(entries)})
}

func (s *LadderServer) recentMatches(c *gin.Context) {
	rows, err := s.querySvc.RecentMatches(c.Request.Context(), c.Param("id"), c.Param("playerID"), 0)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": toRecentResp(rows)})
}

func (s *LadderServer) playerSummary(c *gin.Context) {
	summary, err := s.querySvc.PlayerSummary(c.Request.Context(), c.Param("id"), c.Param("playerID"))
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toSummaryResp(summary))
}

func (s *LadderServer) pendingForPlayer(c *gin.Context) {
	matches, err := s.querySvc.PendingFor(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": toMatchRespList(matches)})
}

func (s *LadderServer) openDisputes(c *gin.Context) {
	matches, err := s.querySvc.OpenDisputes(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": toMatchRespList(matches)})
}

func (s *LadderServer) recentEvents(c *gin.Context) {
	events, err := s.querySvc.RecentEvents(c.Request.Context(), 0)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": toEventResp(events)})
}
