package server

import (
	"time"

	"pingpong-ladder/internal/domain"
	"pingpong-ladder/internal/repository"
	"pingpong-ladder/internal/service"
)

type seasonResp struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	StartsAt time.Time  `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
}

func toSeasonResp(s domain.Season) seasonResp {
	return seasonResp{ID: s.ID, Name: s.Name, StartsAt: s.StartsAt, EndsAt: s.EndsAt}
}

type playerResp struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type matchResp struct {
	ID            string    `json:"id"`
	SeasonID      string    `json:"season_id"`
	PlayerAID     string    `json:"player_a"`
	PlayerBID     string    `json:"player_b"`
	ScoreA        int       `json:"score_a"`
	ScoreB        int       `json:"score_b"`
	PlayedAt      time.Time `json:"played_at"`
	CreatedBy     string    `json:"created_by"`
	Status        string    `json:"status"`
	WinnerID      string    `json:"winner_id"`
	DisputeReason *string   `json:"dispute_reason,omitempty"`
	SupersedesID  *string   `json:"supersedes,omitempty"`
}

func toMatchResp(m domain.Match) matchResp {
	return matchResp{
		ID:            m.ID,
		SeasonID:      m.SeasonID,
		PlayerAID:     m.PlayerAID,
		PlayerBID:     m.PlayerBID,
		ScoreA:        m.ScoreA,
		ScoreB:        m.ScoreB,
		PlayedAt:      m.PlayedAt,
		CreatedBy:     m.CreatedBy,
		Status:        string(m.Status),
		WinnerID:      m.WinnerID(),
		DisputeReason: m.DisputeReason,
		SupersedesID:  m.SupersedesID,
	}
}

func toMatchRespList(matches []domain.Match) []matchResp {
	out := make([]matchResp, 0, len(matches))
	for _, m := range matches {
		out = append(out, toMatchResp(m))
	}
	return out
}

type leaderboardRowResp struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Rating      int    `json:"rating"`
}

func toLeaderboardResp(rows []repository.LeaderboardRow) []leaderboardRowResp {
	out := make([]leaderboardRowResp, 0, len(rows))
	for _, r := range rows {
		out = append(out, leaderboardRowResp{
			Rank:        r.Rank,
			PlayerID:    r.PlayerID,
			DisplayName: r.DisplayName,
			Rating:      r.Rating,
		})
	}
	return out
}

type seriesPointResp struct {
	MatchID      string    `json:"match_id"`
	AppliedAt    time.Time `json:"applied_at"`
	RatingBefore int       `json:"rating_before"`
	RatingAfter  int       `json:"rating_after"`
	Delta        int       `json:"delta"`
}

func toSeriesResp(entries []domain.RatingHistoryEntry) []seriesPointResp {
	out := make([]seriesPointResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, seriesPointResp{
			MatchID:      e.MatchID,
			AppliedAt:    e.AppliedAt,
			RatingBefore: e.RatingBefore,
			RatingAfter:  e.RatingAfter,
			Delta:        e.Delta,
		})
	}
	return out
}

type recentMatchResp struct {
	matchResp
	OpponentName string `json:"opponent_name"`
	Delta        *int   `json:"delta,omitempty"`
}

func toRecentResp(rows []repository.MatchWithDelta) []recentMatchResp {
	out := make([]recentMatchResp, 0, len(rows))
	for _, r := range rows {
		out = append(out, recentMatchResp{
			matchResp:    toMatchResp(r.Match),
			OpponentName: r.OpponentName,
			Delta:        r.Delta,
		})
	}
	return out
}

type summaryResp struct {
	SeasonID string            `json:"season_id"`
	PlayerID string            `json:"player_id"`
	Rating   int               `json:"rating"`
	Rank     int               `json:"rank"`
	Series   []seriesPointResp `json:"series"`
	Recent   []recentMatchResp `json:"recent"`
}

func toSummaryResp(s *service.PlayerSummary) summaryResp {
	return summaryResp{
		SeasonID: s.SeasonID,
		PlayerID: s.PlayerID,
		Rating:   s.Rating,
		Rank:     s.Rank,
		Series:   toSeriesResp(s.Series),
		Recent:   toRecentResp(s.Recent),
	}
}

type eventResp struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	SubjectID string    `json:"subject_id"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

func toEventResp(events []domain.EventLogEntry) []eventResp {
	out := make([]eventResp, 0, len(events))
	for _, e := range events {
		out = append(out, eventResp{
			ID:        e.ID,
			ActorID:   e.ActorID,
			Action:    e.Action,
			SubjectID: e.SubjectID,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
