package domain

import (
	"time"
)

type Season struct {
	ID        string
	Name      string
	StartsAt  time.Time
	EndsAt    *time.Time // nil = open-ended
	CreatedAt time.Time
}

// Contains reports whether t falls inside the season's [StartsAt, EndsAt) window.
func (s Season) Contains(t time.Time) bool {
	if t.Before(s.StartsAt) {
		return false
	}
	return s.EndsAt == nil || t.Before(*s.EndsAt)
}

// Overlaps reports whether the season's window intersects [start, end).
// A nil end is treated as unbounded.
func (s Season) Overlaps(start time.Time, end *time.Time) bool {
	if end != nil && !s.StartsAt.Before(*end) {
		return false
	}
	if s.EndsAt != nil && !start.Before(*s.EndsAt) {
		return false
	}
	return true
}

type Player struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
}

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchConfirmed MatchStatus = "confirmed"
	MatchDisputed  MatchStatus = "disputed"
	MatchVoided    MatchStatus = "voided"
)

// transitions is the lifecycle table. Anything not listed is rejected;
// voided is terminal.
var transitions = map[MatchStatus][]MatchStatus{
	MatchPending:   {MatchConfirmed, MatchDisputed, MatchVoided},
	MatchConfirmed: {MatchDisputed, MatchVoided},
	MatchDisputed:  {MatchConfirmed, MatchVoided},
	MatchVoided:    {},
}

// CanTransition reports whether the lifecycle table permits from -> to.
func CanTransition(from, to MatchStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Match struct {
	ID            string
	SeasonID      string
	PlayerAID     string // reporter's side
	PlayerBID     string
	ScoreA        int
	ScoreB        int
	PlayedAt      time.Time
	CreatedAt     time.Time
	CreatedBy     string
	Status        MatchStatus
	DisputeReason *string
	SupersedesID  *string // set on correction replacements, points at the voided original
}

// WinnerID derives the winner from the scores; it is never stored.
func (m Match) WinnerID() string {
	if m.ScoreA > m.ScoreB {
		return m.PlayerAID
	}
	return m.PlayerBID
}

// HasParticipant reports whether playerID is one of the two sides.
func (m Match) HasParticipant(playerID string) bool {
	return m.PlayerAID == playerID || m.PlayerBID == playerID
}

// OpponentOf returns the other participant, or "" if playerID is not in the match.
func (m Match) OpponentOf(playerID string) string {
	switch playerID {
	case m.PlayerAID:
		return m.PlayerBID
	case m.PlayerBID:
		return m.PlayerAID
	}
	return ""
}

// RatingHistoryEntry is one participant's rating movement for one confirmed
// match. Entries downstream of a correction are deleted and regenerated by the
// recalculation engine; no other mutation is permitted. AppliedAt always equals
// the match's played_at so replay output never carries the wall-clock of the
// run that produced it.
type RatingHistoryEntry struct {
	ID           string
	SeasonID     string
	PlayerID     string
	MatchID      string
	RatingBefore int
	RatingAfter  int
	Delta        int
	AppliedAt    time.Time
}

// PlayerRating is the cached projection of the last history entry per
// (season, player). Written only by match application and the recalculation
// engine, never by user action.
type PlayerRating struct {
	SeasonID string
	PlayerID string
	Rating   int
}

// EventLogEntry records a lifecycle transition for audit display. The
// recalculation engine never reads it.
type EventLogEntry struct {
	ID        string
	ActorID   string
	Action    string
	SubjectID string
	Detail    string
	CreatedAt time.Time
}

// Actor is the caller identity handed over by the auth layer.
type Actor struct {
	PlayerID string
	IsAdmin  bool
}
