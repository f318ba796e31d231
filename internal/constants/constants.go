package constants

type ContextKey string

const (
	MaxRounds           = 10
	DefaultRoundSeconds = 30
	TopRankings         = 5
)

const (
	MaxScore           = 5000
	DefaultMaxDistance = 1000.0
	DefaultDecayFactor = 0.01
)

const (
	DefaultPlayerName = "Player"
)

const (
	SessionCookieName = "session_id"
)

const (
	RouteGame           = "/api/game"
	RouteGuess          = "/api/game/guess"
	RouteSummary        = "/api/game/summary"
	RouteLeaderboard    = "/api/leaderboard"
	RouteAdminLocations = "/api/admin/locations"
	RouteHealthz        = "/healthz"
)

const (
	RequestIDKey ContextKey = "request_id"
)
