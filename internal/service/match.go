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

	"pingpong-ladder/internal/config"
	"pingpong-ladder/internal/domain"
	"pingpong-ladder/internal/repository"
)

// MatchService drives the match lifecycle state machine. A first confirmation
// at the head of the season applies a single Elo update under a pair lock;
// every other rating-affecting transition runs inside the season's exclusive
// recalculation lock and replays the tail.
type MatchService struct {
	matchRepo  *repository.MatchRepository
	playerRepo *repository.PlayerRepository
	eventRepo  *repository.EventLogRepository
	seasons    *SeasonService
	recalc     *RecalcService

	backdateWindow time.Duration
	pairs          *pairLocks
	logger         zerolog.Logger
}

func NewMatchService(
	matchRepo *repository.MatchRepository,
	playerRepo *repository.PlayerRepository,
	eventRepo *repository.EventLogRepository,
	seasons *SeasonService,
	recalc *RecalcService,
	cfg *config.Config,
	logger zerolog.Logger,
) *MatchService {
	return &MatchService{
		matchRepo:      matchRepo,
		playerRepo:     playerRepo,
		eventRepo:      eventRepo,
		seasons:        seasons,
		recalc:         recalc,
		backdateWindow: cfg.BackdateWindow,
		pairs:          newPairLocks(),
		logger:         logger,
	}
}

// Create reports a match on behalf of the acting player against opponentID.
// The result enters the ledger as pending and has no rating effect until the
// opponent confirms it.
func (s *MatchService) Create(ctx context.Context, actor domain.Actor, opponentID string, scoreMine, scoreOpponent int, playedAt *time.Time) (*domain.Match, error) {
	if actor.PlayerID == "" {
		return nil, fmt.Errorf("%w: a player identity is required to report a match", domain.ErrForbidden)
	}
	if opponentID == actor.PlayerID {
		return nil, fmt.Errorf("%w: cannot report a match against yourself", domain.ErrValidation)
	}
	if scoreMine < 0 || scoreOpponent < 0 {
		return nil, fmt.Errorf("%w: scores must be non-negative", domain.ErrValidation)
	}
	if scoreMine == scoreOpponent {
		return nil, fmt.Errorf("%w: a match must have a winner", domain.ErrValidation)
	}
	if _, err := s.playerRepo.GetByID(ctx, actor.PlayerID); err != nil {
		return nil, playerErr(err, actor.PlayerID)
	}
	if _, err := s.playerRepo.GetByID(ctx, opponentID); err != nil {
		return nil, playerErr(err, opponentID)
	}

	now := time.Now().UTC()
	at := now
	if playedAt != nil {
		at = playedAt.UTC()
	}
	if !actor.IsAdmin {
		if at.After(now) {
			return nil, fmt.Errorf("%w: played_at cannot be in the future", domain.ErrValidation)
		}
		if at.Before(now.Add(-s.backdateWindow)) {
			return nil, fmt.Errorf("%w: played_at is more than %s in the past", domain.ErrValidation, s.backdateWindow)
		}
	}

	season, err := s.seasons.ActiveAt(ctx, at)
	if err != nil {
		return nil, err
	}

	match := &domain.Match{
		ID:        uuid.NewString(),
		SeasonID:  season.ID,
		PlayerAID: actor.PlayerID,
		PlayerBID: opponentID,
		ScoreA:    scoreMine,
		ScoreB:    scoreOpponent,
		PlayedAt:  at,
		CreatedAt: now,
		CreatedBy: actor.PlayerID,
		Status:    domain.MatchPending,
	}
	if err := s.matchRepo.Create(ctx, match); err != nil {
		return nil, err
	}

	s.logEvent(ctx, actor, "match_created", match.ID, fmt.Sprintf("%d-%d vs %s", scoreMine, scoreOpponent, opponentID))
	s.logger.Info().
		Str("match_id", match.ID).
		Str("season_id", season.ID).
		Str("created_by", actor.PlayerID).
		Msg("match reported")
	return match, nil
}

// Confirm is the counterpart's acknowledgement. The creator can never confirm
// their own report.
func (s *MatchService) Confirm(ctx context.Context, actor domain.Actor, matchID string) error {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if !match.HasParticipant(actor.PlayerID) {
		return fmt.Errorf("%w: only a participant may confirm", domain.ErrForbidden)
	}
	if match.CreatedBy == actor.PlayerID {
		return fmt.Errorf("%w: the reporter cannot confirm their own match", domain.ErrForbidden)
	}
	if match.Status != domain.MatchPending {
		return fmt.Errorf("%w: match is %s", domain.ErrAlreadyDecided, match.Status)
	}
	return s.confirmAndApply(ctx, actor, match, "match_confirmed", "")
}

// ForceConfirm is the admin path: it bypasses the non-creator restriction and
// also resolves disputes back to confirmed.
func (s *MatchService) ForceConfirm(ctx context.Context, actor domain.Actor, matchID, reason string) error {
	if !actor.IsAdmin {
		return fmt.Errorf("%w: only admins force-confirm", domain.ErrForbidden)
	}
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if !domain.CanTransition(match.Status, domain.MatchConfirmed) {
		return fmt.Errorf("%w: match is %s", domain.ErrAlreadyDecided, match.Status)
	}
	return s.confirmAndApply(ctx, actor, match, "match_force_confirmed", reason)
}

// Dispute flags a result. Either participant (or an admin) may dispute a
// pending or confirmed match; disputing a confirmed one rolls its rating
// effect back via replay.
func (s *MatchService) Dispute(ctx context.Context, actor domain.Actor, matchID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: a dispute reason is required", domain.ErrValidation)
	}
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}

	switch match.Status {
	case domain.MatchPending:
		if !match.HasParticipant(actor.PlayerID) && !actor.IsAdmin {
			return fmt.Errorf("%w: only a participant may dispute", domain.ErrForbidden)
		}
		if err := s.transition(ctx, match, domain.MatchDisputed, &reason); err != nil {
			return err
		}
	case domain.MatchConfirmed:
		if !match.HasParticipant(actor.PlayerID) && !actor.IsAdmin {
			return fmt.Errorf("%w: only a participant may dispute", domain.ErrForbidden)
		}
		err := s.recalc.WithSeasonLock(match.SeasonID, func() error {
			return s.replayTransition(ctx, match, domain.MatchDisputed, &reason, nil, match.PlayedAt)
		})
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: match is %s", domain.ErrAlreadyDecided, match.Status)
	}

	s.logEvent(ctx, actor, "match_disputed", match.ID, reason)
	return nil
}

// Void retires a match entirely. A previously confirmed match's rating effect
// is removed by replaying the season from its played_at.
func (s *MatchService) Void(ctx context.Context, actor domain.Actor, matchID, reason string) error {
	if !actor.IsAdmin {
		return fmt.Errorf("%w: only admins void matches", domain.ErrForbidden)
	}
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if match.Status == domain.MatchVoided {
		return fmt.Errorf("%w: match is already voided", domain.ErrAlreadyDecided)
	}

	if match.Status == domain.MatchConfirmed {
		err = s.recalc.WithSeasonLock(match.SeasonID, func() error {
			return s.replayTransition(ctx, match, domain.MatchVoided, nil, nil, match.PlayedAt)
		})
	} else {
		err = s.transition(ctx, match, domain.MatchVoided, nil)
	}
	if err != nil {
		return err
	}

	s.logEvent(ctx, actor, "match_voided", match.ID, reason)
	s.logger.Info().Str("match_id", match.ID).Str("reason", reason).Msg("match voided")
	return nil
}

// Correct voids the original and inserts a replacement with adjusted score
// and/or played_at, already confirmed. History is preserved: the replacement
// row links back to the voided original. Returns the replacement.
func (s *MatchService) Correct(ctx context.Context, actor domain.Actor, matchID string, newScoreA, newScoreB int, newPlayedAt *time.Time, reason string) (*domain.Match, error) {
	if !actor.IsAdmin {
		return nil, fmt.Errorf("%w: only admins correct matches", domain.ErrForbidden)
	}
	if newScoreA < 0 || newScoreB < 0 {
		return nil, fmt.Errorf("%w: scores must be non-negative", domain.ErrValidation)
	}
	if newScoreA == newScoreB {
		return nil, fmt.Errorf("%w: a match must have a winner", domain.ErrValidation)
	}

	original, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if original.Status == domain.MatchVoided {
		return nil, fmt.Errorf("%w: match is already voided", domain.ErrAlreadyDecided)
	}

	at := original.PlayedAt
	if newPlayedAt != nil {
		at = newPlayedAt.UTC()
	}
	season, err := s.seasons.Get(ctx, original.SeasonID)
	if err != nil {
		return nil, err
	}
	if !season.Contains(at) {
		return nil, fmt.Errorf("%w: corrected played_at leaves season %q", domain.ErrSeasonBoundary, season.Name)
	}

	replacement := &domain.Match{
		ID:           uuid.NewString(),
		SeasonID:     original.SeasonID,
		PlayerAID:    original.PlayerAID,
		PlayerBID:    original.PlayerBID,
		ScoreA:       newScoreA,
		ScoreB:       newScoreB,
		PlayedAt:     at,
		CreatedAt:    time.Now().UTC(),
		CreatedBy:    original.CreatedBy,
		Status:       domain.MatchConfirmed,
		SupersedesID: &original.ID,
	}

	from := original.PlayedAt
	if at.Before(from) {
		from = at
	}

	err = s.recalc.WithSeasonLock(original.SeasonID, func() error {
		return s.replayTransition(ctx, original, domain.MatchVoided, nil, replacement, from)
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, actor, "match_corrected", original.ID,
		fmt.Sprintf("replaced by %s (%d-%d): %s", replacement.ID, newScoreA, newScoreB, reason))
	s.logger.Info().
		Str("match_id", original.ID).
		Str("replacement_id", replacement.ID).
		Msg("match corrected")
	return replacement, nil
}

func (s *MatchService) Get(ctx context.Context, matchID string) (*domain.Match, error) {
	return s.getMatch(ctx, matchID)
}

// confirmAndApply performs the status swap and the rating effect, both inside
// one transaction. When the season already has applied history at or after
// this match's played_at the single-update shortcut would break replay order,
// so the confirmation falls inside a full replay instead. That decision is
// made under the shared season gate and the pair lock, so a racing apply or
// replay cannot invalidate it between check and act.
func (s *MatchService) confirmAndApply(ctx context.Context, actor domain.Actor, match *domain.Match, action, detail string) error {
	if !domain.CanTransition(match.Status, domain.MatchConfirmed) {
		return fmt.Errorf("%w: cannot go from %s to %s", domain.ErrAlreadyDecided, match.Status, domain.MatchConfirmed)
	}

	var replayed bool
	err := s.recalc.WithSeasonShared(match.SeasonID, func() error {
		unlock := s.pairs.lockPair(
			match.SeasonID+"/"+match.PlayerAID,
			match.SeasonID+"/"+match.PlayerBID,
		)
		defer unlock()

		affected, err := s.recalc.HasEffectAtOrAfter(ctx, match.SeasonID, match.PlayedAt)
		if err != nil {
			return err
		}
		if affected {
			// the shared gate cannot be upgraded in place; the replay
			// re-evaluates everything under the exclusive gate instead
			replayed = true
			return nil
		}
		confirmed := *match
		confirmed.Status = domain.MatchConfirmed
		err = s.recalc.ApplyConfirmed(ctx, &confirmed, match.Status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: match is no longer %s", domain.ErrAlreadyDecided, match.Status)
		}
		return err
	})
	if err != nil {
		return err
	}

	if replayed {
		err = s.recalc.WithSeasonLock(match.SeasonID, func() error {
			return s.replayTransition(ctx, match, domain.MatchConfirmed, nil, nil, match.PlayedAt)
		})
		if err != nil {
			return err
		}
	}

	s.logEvent(ctx, actor, action, match.ID, detail)
	s.logger.Info().
		Str("match_id", match.ID).
		Str("actor", actor.PlayerID).
		Bool("replayed", replayed).
		Msg("match confirmed")
	return nil
}

// replayTransition bundles a status swap with the season-tail replay it
// triggers, plus an optional replacement match insert, all in one
// transaction. The caller must hold the season gate exclusively.
func (s *MatchService) replayTransition(ctx context.Context, match *domain.Match, to domain.MatchStatus, disputeReason *string, replacement *domain.Match, from time.Time) error {
	if !domain.CanTransition(match.Status, to) {
		return fmt.Errorf("%w: cannot go from %s to %s", domain.ErrAlreadyDecided, match.Status, to)
	}
	changes := []repository.StatusChange{{
		MatchID:       match.ID,
		From:          match.Status,
		To:            to,
		DisputeReason: disputeReason,
	}}
	err := s.recalc.ReplayLocked(ctx, match.SeasonID, from, changes, replacement)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: match is no longer %s", domain.ErrAlreadyDecided, match.Status)
	}
	return err
}

// transition is the compare-and-swap over the status column. Losing the race
// surfaces as AlreadyDecided, never as a partial write.
func (s *MatchService) transition(ctx context.Context, match *domain.Match, to domain.MatchStatus, disputeReason *string) error {
	if !domain.CanTransition(match.Status, to) {
		return fmt.Errorf("%w: cannot go from %s to %s", domain.ErrAlreadyDecided, match.Status, to)
	}
	err := s.matchRepo.TransitionStatus(ctx, match.ID, match.Status, to, disputeReason)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: match is no longer %s", domain.ErrAlreadyDecided, match.Status)
	}
	return err
}

func (s *MatchService) getMatch(ctx context.Context, matchID string) (*domain.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: match %s", domain.ErrNotFound, matchID)
	}
	return match, err
}

func (s *MatchService) logEvent(ctx context.Context, actor domain.Actor, action, subjectID, detail string) {
	if err := s.eventRepo.Append(ctx, actor.PlayerID, action, subjectID, detail); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to append event")
	}
}

func playerErr(err error, playerID string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: player %s", domain.ErrNotFound, playerID)
	}
	return err
}
