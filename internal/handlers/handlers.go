// Package handlers is the JSON API surface for the display and input
// collaborators plus the admin registration flow.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	catalog "campusguesser/internal/catalog"
	constants "campusguesser/internal/constants"
	game "campusguesser/internal/game"
	leaderboard "campusguesser/internal/leaderboard"
	models "campusguesser/internal/models"
	session "campusguesser/internal/session"
	util "campusguesser/internal/util"
)

type API struct {
	Catalog       *catalog.Store
	Board         *leaderboard.Store
	Sessions      *session.Registry
	RoundDuration time.Duration
	CookieMaxAge  time.Duration
	Secure        bool
	StartTime     time.Time
}

type newGameRequest struct {
	Difficulty string `json:"difficulty"`
	Player     string `json:"player"`
}

// NewGame starts a play-through for the chosen difficulty, replacing any
// game the session already had.
func (a *API) NewGame(c *gin.Context) {
	var req newGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	difficulty := models.Difficulty(strings.ToLower(strings.TrimSpace(req.Difficulty)))
	if !difficulty.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown difficulty"})
		return
	}

	sessionID := a.Sessions.EnsureID(c, a.CookieMaxAge, a.Secure)
	s, err := game.New(a.Catalog, a.Board, difficulty, strings.TrimSpace(req.Player), a.RoundDuration)
	if err != nil {
		if errors.Is(err, game.ErrNoLocations) {
			c.JSON(http.StatusConflict, gin.H{"error": "no locations registered"})
			return
		}
		util.LogWarn("Failed to start game: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	a.Sessions.Put(sessionID, s)

	c.JSON(http.StatusCreated, s.State())
}

// GameState reports the current round for the session.
func (a *API) GameState(c *gin.Context) {
	s, ok := a.currentSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.State())
}

type guessRequest struct {
	Round int `json:"round"`
	X     int `json:"x"`
	Y     int `json:"y"`
}

type guessResponse struct {
	game.Outcome
	Next     *game.RoundState          `json:"next,omitempty"`
	Rankings []models.LeaderboardEntry `json:"rankings,omitempty"`
}

// Guess scores a map click against the current round. The round field names
// the round being answered so a click that raced a timeout cannot score the
// wrong round.
func (a *API) Guess(c *gin.Context) {
	s, ok := a.currentSession(c)
	if !ok {
		return
	}

	var req guessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	outcome, err := s.Guess(req.Round, models.Point{X: req.X, Y: req.Y})
	switch {
	case errors.Is(err, game.ErrGameComplete):
		c.JSON(http.StatusConflict, gin.H{"error": "game already complete"})
		return
	case errors.Is(err, game.ErrStaleRound):
		c.JSON(http.StatusConflict, gin.H{"error": "round already resolved"})
		return
	case err != nil:
		// The guess scored but the final score could not be persisted.
		util.LogWarn("Guess completed game but persistence failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record final score"})
		return
	}

	resp := guessResponse{Outcome: outcome}
	if outcome.Complete {
		resp.Rankings = a.Board.Top(s.Difficulty(), constants.TopRankings)
	} else {
		next := s.State()
		resp.Next = &next
	}
	c.JSON(http.StatusOK, resp)
}

type summaryResponse struct {
	FinalScore int                       `json:"finalScore"`
	Difficulty models.Difficulty         `json:"difficulty"`
	Rankings   []models.LeaderboardEntry `json:"rankings"`
}

// Summary returns the end-of-game screen data: final score plus the top
// rankings for the difficulty that was played.
func (a *API) Summary(c *gin.Context) {
	s, ok := a.currentSession(c)
	if !ok {
		return
	}

	finalScore, err := s.Summary()
	if errors.Is(err, game.ErrNotComplete) {
		c.JSON(http.StatusConflict, gin.H{"error": "game not complete"})
		return
	}
	if err != nil {
		util.LogWarn("Final score was not persisted: %v", err)
	}

	c.JSON(http.StatusOK, summaryResponse{
		FinalScore: finalScore,
		Difficulty: s.Difficulty(),
		Rankings:   a.Board.Top(s.Difficulty(), constants.TopRankings),
	})
}

// Leaderboard returns the full rankings for a difficulty.
func (a *API) Leaderboard(c *gin.Context) {
	difficulty := models.Difficulty(strings.ToLower(strings.TrimSpace(c.Query("difficulty"))))
	if !difficulty.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown difficulty"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rankings": a.Board.Rankings(difficulty)})
}

// RegisterLocation handles the admin upload: a multipart photo plus its map
// coordinates and metadata.
func (a *API) RegisterLocation(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image supplied"})
		return
	}

	x, errX := strconv.Atoi(c.PostForm("x"))
	y, errY := strconv.Atoi(c.PostForm("y"))
	if errX != nil || errY != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "x and y must be integers"})
		return
	}

	difficulty := models.Difficulty(strings.ToLower(strings.TrimSpace(c.PostForm("difficulty"))))
	if !difficulty.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown difficulty"})
		return
	}

	src, err := file.Open()
	if err != nil {
		util.LogWarn("Failed to open uploaded image: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	defer src.Close()
	img, err := io.ReadAll(src)
	if err != nil {
		util.LogWarn("Failed to read uploaded image: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	item, err := a.Catalog.Register(img, filepath.Ext(file.Filename), x, y, c.PostForm("hint"), difficulty)
	if err != nil {
		if errors.Is(err, catalog.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		util.LogWarn("Failed to register location: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, item)
}

type backfillRequest struct {
	Spot      string `json:"spot"`
	Direction string `json:"direction"`
}

// BackfillLocation fills in the optional spot/direction metadata on a
// just-registered location.
func (a *API) BackfillLocation(c *gin.Context) {
	var req backfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	item, err := a.Catalog.Backfill(c.Param("id"), req.Spot, req.Direction)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "location not found"})
			return
		}
		util.LogWarn("Failed to backfill location: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, item)
}

// ListLocations returns the full catalog for the admin screen.
func (a *API) ListLocations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": a.Catalog.Items()})
}

func (a *API) Healthz(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"locations":       a.Catalog.Len(),
		"active_sessions": a.Sessions.Len(),
		"memory_alloc_mb": m.Alloc / 1024 / 1024,
		"uptime":          util.FormatUptime(time.Since(a.StartTime)),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// currentSession resolves the request's live game, answering 404 when the
// session has none. The state machine itself can never be asked about a
// round that does not exist; a missing session is the only not-found case.
func (a *API) currentSession(c *gin.Context) (*game.Session, bool) {
	sessionID, err := c.Cookie(constants.SessionCookieName)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active game"})
		return nil, false
	}
	s, ok := a.Sessions.Get(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active game"})
		return nil, false
	}
	return s, true
}
