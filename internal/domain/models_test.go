package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to MatchStatus }{
		{MatchPending, MatchConfirmed},
		{MatchPending, MatchDisputed},
		{MatchPending, MatchVoided},
		{MatchConfirmed, MatchDisputed},
		{MatchConfirmed, MatchVoided},
		{MatchDisputed, MatchConfirmed},
		{MatchDisputed, MatchVoided},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr.from, tr.to), "%s -> %s", tr.from, tr.to)
	}

	denied := []struct{ from, to MatchStatus }{
		{MatchConfirmed, MatchPending},
		{MatchDisputed, MatchPending},
		{MatchVoided, MatchPending},
		{MatchVoided, MatchConfirmed},
		{MatchVoided, MatchDisputed},
		{MatchVoided, MatchVoided},
		{MatchPending, MatchPending},
		{MatchConfirmed, MatchConfirmed},
	}
	for _, tr := range denied {
		assert.False(t, CanTransition(tr.from, tr.to), "%s -> %s", tr.from, tr.to)
	}
}

func TestMatchWinner(t *testing.T) {
	m := Match{PlayerAID: "a", PlayerBID: "b", ScoreA: 11, ScoreB: 7}
	assert.Equal(t, "a", m.WinnerID())

	m.ScoreA, m.ScoreB = 9, 11
	assert.Equal(t, "b", m.WinnerID())
}

func TestMatchParticipants(t *testing.T) {
	m := Match{PlayerAID: "a", PlayerBID: "b"}
	assert.True(t, m.HasParticipant("a"))
	assert.True(t, m.HasParticipant("b"))
	assert.False(t, m.HasParticipant("c"))

	assert.Equal(t, "b", m.OpponentOf("a"))
	assert.Equal(t, "a", m.OpponentOf("b"))
	assert.Equal(t, "", m.OpponentOf("c"))
}

func TestSeasonContains(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	closed := Season{StartsAt: start, EndsAt: &end}
	assert.True(t, closed.Contains(start), "start is inclusive")
	assert.False(t, closed.Contains(end), "end is exclusive")
	assert.True(t, closed.Contains(start.Add(24*time.Hour)))
	assert.False(t, closed.Contains(start.Add(-time.Second)))

	open := Season{StartsAt: start}
	assert.True(t, open.Contains(end.AddDate(10, 0, 0)))
	assert.False(t, open.Contains(start.Add(-time.Second)))
}

func TestSeasonOverlaps(t *testing.T) {
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	apr := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	jul := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	q1 := Season{StartsAt: jan, EndsAt: &apr}

	// adjacent windows share only the boundary instant: no overlap
	assert.False(t, q1.Overlaps(apr, &jul))
	assert.False(t, q1.Overlaps(apr, nil))

	assert.True(t, q1.Overlaps(jan, &apr))
	assert.True(t, q1.Overlaps(apr.Add(-time.Second), &jul))
	assert.True(t, q1.Overlaps(jan.Add(-time.Hour), nil))

	open := Season{StartsAt: apr}
	aug := jul.AddDate(0, 1, 0)
	assert.True(t, open.Overlaps(jul, &aug))
	assert.False(t, open.Overlaps(jan, &apr))
}
