// Package score converts guess distances into round scores.
package score

import (
	"math"

	constants "campusguesser/internal/constants"
	geo "campusguesser/internal/geo"
	models "campusguesser/internal/models"
)

// Round scores a guess against the true location using the default cutoff
// distance and decay factor.
func Round(guess, truth models.Point) int {
	return RoundCustom(guess, truth, constants.DefaultMaxDistance, constants.DefaultDecayFactor)
}

// RoundCustom scores a guess with explicit tuning. Guesses at or beyond
// maxDistance earn nothing regardless of the decay curve. Inside the cutoff
// the score decays exponentially from 5000 at zero distance and is truncated
// toward zero, so only an exact match earns the full 5000.
func RoundCustom(guess, truth models.Point, maxDistance, decayFactor float64) int {
	d := geo.Distance(guess, truth)

	if d >= maxDistance {
		return 0
	}

	return int(float64(constants.MaxScore) * math.Exp(-decayFactor*d))
}
