package models

// Point is a position on the reference map's pixel grid.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Difficulty partitions the location catalog.
type Difficulty string

const (
	DifficultyEasy Difficulty = "easy"
	DifficultyHard Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyHard
}

// LocationItem is one registered photo/location pair. The x/y fields are the
// ground-truth point on the reference map, clamped into the map bounds at
// registration time. Items are never mutated after creation except for the
// spot/direction backfill immediately afterwards.
type LocationItem struct {
	ID         string     `json:"id"`
	ImagePath  string     `json:"image_path"`
	X          int        `json:"x"`
	Y          int        `json:"y"`
	Hint       string     `json:"hint"`
	Spot       string     `json:"spot"`
	Direction  string     `json:"direction"`
	Difficulty Difficulty `json:"difficulty"`
}

// TruePoint returns the item's ground-truth map position.
func (l LocationItem) TruePoint() Point {
	return Point{X: l.X, Y: l.Y}
}

// LeaderboardEntry is one completed-session score. The ledger is
// append-only; entries are never mutated or deleted.
type LeaderboardEntry struct {
	Player     string     `json:"player"`
	Score      int        `json:"score"`
	Difficulty Difficulty `json:"difficulty"`
}
