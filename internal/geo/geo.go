// Package geo provides pixel-grid geometry for the reference map.
package geo

import (
	"math"

	models "campusguesser/internal/models"
)

// Distance returns the Euclidean distance between two map points.
func Distance(p1, p2 models.Point) float64 {
	dx := float64(p1.X - p2.X)
	dy := float64(p1.Y - p2.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
