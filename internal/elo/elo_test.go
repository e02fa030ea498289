package elo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdate(t *testing.T) {
	tests := []struct {
		name           string
		ratingA        int
		ratingB        int
		aWon           bool
		k              int
		wantA, wantB   int
		wantDA, wantDB int
	}{
		{
			name:    "even ratings, A wins",
			ratingA: 1000, ratingB: 1000, aWon: true, k: 32,
			wantA: 1016, wantB: 984, wantDA: 16, wantDB: -16,
		},
		{
			name:    "even ratings, B wins",
			ratingA: 1000, ratingB: 1000, aWon: false, k: 32,
			wantA: 984, wantB: 1016, wantDA: -16, wantDB: 16,
		},
		{
			name:    "favourite wins again, half rounds away from zero",
			ratingA: 1016, ratingB: 984, aWon: true, k: 32,
			wantA: 1031, wantB: 969, wantDA: 15, wantDB: -15,
		},
		{
			name:    "underdog wins big gap",
			ratingA: 1200, ratingB: 1000, aWon: false, k: 32,
			wantA: 1176, wantB: 1024, wantDA: -24, wantDB: 24,
		},
		{
			name:    "k factor scales the update",
			ratingA: 1000, ratingB: 1000, aWon: true, k: 16,
			wantA: 1008, wantB: 992, wantDA: 8, wantDB: -8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newA, newB, deltaA, deltaB := Update(tt.ratingA, tt.ratingB, tt.aWon, tt.k)
			assert.Equal(t, tt.wantA, newA)
			assert.Equal(t, tt.wantB, newB)
			assert.Equal(t, tt.wantDA, deltaA)
			assert.Equal(t, tt.wantDB, deltaB)
		})
	}
}

func TestUpdateNearZeroSum(t *testing.T) {
	// independent per-side rounding may miss exact zero-sum by 1
	for ra := 900; ra <= 1100; ra += 7 {
		for rb := 900; rb <= 1100; rb += 13 {
			_, _, deltaA, deltaB := Update(ra, rb, true, 32)
			sum := deltaA + deltaB
			assert.LessOrEqual(t, sum, 1, "ra=%d rb=%d", ra, rb)
			assert.GreaterOrEqual(t, sum, -1, "ra=%d rb=%d", ra, rb)
		}
	}
}

func TestUpdateWinnerGains(t *testing.T) {
	_, _, deltaA, deltaB := Update(800, 1400, true, 32)
	assert.Positive(t, deltaA)
	assert.Negative(t, deltaB)

	// heavy favourite beats a much weaker player: gain approaches zero but
	// never goes negative
	_, _, deltaA, _ = Update(1400, 800, true, 32)
	assert.GreaterOrEqual(t, deltaA, 0)
}

func TestExpected(t *testing.T) {
	assert.InDelta(t, 0.5, Expected(1000, 1000), 1e-9)
	assert.InDelta(t, 1.0, Expected(1000, 1000)+Expected(1000, 1000), 1e-9)

	// 400 points of advantage is 10:1 odds
	assert.InDelta(t, 10.0/11.0, Expected(1400, 1000), 1e-9)

	// symmetric: Ea(a,b) + Ea(b,a) == 1
	assert.InDelta(t, 1.0, Expected(1234, 987)+Expected(987, 1234), 1e-9)
}
