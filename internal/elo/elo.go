// Package elo implements the two-outcome Elo update used for ladder ratings.
// The update is a pure function of the two current ratings and the outcome;
// no I/O, no clock.
package elo

import "math"

// Update computes both players' new ratings for a finished match. aWon is true
// when A took the match. k is the K-factor; it is injected from configuration
// rather than baked in so it can be tuned without touching the algorithm.
//
// Ratings are integers. Each side is rounded independently, half away from
// zero, so deltaA+deltaB may be off zero by 1. That matches the historical
// ledger and is left as is.
func Update(ratingA, ratingB int, aWon bool, k int) (newA, newB, deltaA, deltaB int) {
	ea := Expected(ratingA, ratingB)
	eb := 1 - ea

	sa, sb := 0.0, 1.0
	if aWon {
		sa, sb = 1.0, 0.0
	}

	newA = int(math.Round(float64(ratingA) + float64(k)*(sa-ea)))
	newB = int(math.Round(float64(ratingB) + float64(k)*(sb-eb)))
	return newA, newB, newA - ratingA, newB - ratingB
}

// Expected returns A's expected score against B on the standard 400-point
// logistic curve.
func Expected(ratingA, ratingB int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(ratingB-ratingA)/400.0))
}
