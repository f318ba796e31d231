// Package game drives one play-through: round sequencing, per-round
// countdowns, score accumulation, and final-score persistence.
package game

import (
	"errors"
	"fmt"
	"sync"
	"time"

	catalog "campusguesser/internal/catalog"
	constants "campusguesser/internal/constants"
	models "campusguesser/internal/models"
	score "campusguesser/internal/score"
	util "campusguesser/internal/util"
)

var (
	ErrNoLocations  = errors.New("no locations registered")
	ErrGameComplete = errors.New("game already complete")
	ErrStaleRound   = errors.New("guess does not match the current round")
	ErrNotComplete  = errors.New("game not complete")
)

// Recorder persists a completed session's final score.
type Recorder interface {
	Append(entry models.LeaderboardEntry) error
}

// Session is the live state of one play-through. All state transitions
// happen under s.mu; the only asynchronous wake-up is the round countdown
// firing, and a generation counter turns any firing that lost the race
// against a guess into a no-op. That gives at most one scored outcome per
// round.
type Session struct {
	mu sync.Mutex

	difficulty models.Difficulty
	player     string
	rounds     []models.LocationItem

	currentIndex     int
	accumulatedScore int
	guessMade        bool
	complete         bool

	roundDuration time.Duration
	deadline      time.Time
	timer         *time.Timer
	generation    int

	board      Recorder
	persistErr error
	lastAccess time.Time
}

// New builds the round sequence for difficulty and arms the first round.
// The catalog is filtered by difficulty first; an empty partition falls
// back to the full catalog so a sparse difficulty is still playable. The
// only failure is an entirely empty catalog.
func New(cat *catalog.Store, board Recorder, difficulty models.Difficulty, player string, roundDuration time.Duration) (*Session, error) {
	items := cat.Items()
	if len(items) == 0 {
		return nil, ErrNoLocations
	}

	pool := catalog.FilterByDifficulty(items, difficulty)
	if len(pool) == 0 {
		util.LogInfo("No %s locations registered, falling back to full catalog", difficulty)
		pool = items
	}
	rounds := catalog.SampleSession(pool, constants.MaxRounds)

	if player == "" {
		player = constants.DefaultPlayerName
	}

	s := &Session{
		difficulty:    difficulty,
		player:        player,
		rounds:        rounds,
		roundDuration: roundDuration,
		board:         board,
		lastAccess:    time.Now(),
	}
	s.mu.Lock()
	s.armRoundLocked()
	s.mu.Unlock()

	util.LogInfo("Session started: difficulty=%s rounds=%d player=%s", difficulty, len(rounds), player)
	return s, nil
}

// Outcome reports one scored (or timed-out) round back to the display
// collaborator.
type Outcome struct {
	Round      int          `json:"round"`
	RoundScore int          `json:"roundScore"`
	TruePoint  models.Point `json:"truePoint"`
	TotalScore int          `json:"totalScore"`
	Complete   bool         `json:"complete"`
}

// Guess scores the guessed point against the current round and advances.
// round is the 1-based round number the guess answers; anything other than
// the current round is stale (a click that arrived after its round timed
// out or was already scored) and is rejected without touching state.
func (s *Session) Guess(round int, p models.Point) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()

	if s.complete {
		return Outcome{}, ErrGameComplete
	}
	if round != s.currentIndex+1 || s.guessMade {
		return Outcome{}, fmt.Errorf("%w: got round %d, current is %d", ErrStaleRound, round, s.currentIndex+1)
	}

	// Stop before scoring so the countdown cannot produce a second
	// outcome for this round.
	s.stopTimerLocked()

	item := s.rounds[s.currentIndex]
	roundScore := score.Round(p, item.TruePoint())
	s.accumulatedScore += roundScore
	s.guessMade = true

	out := Outcome{
		Round:      round,
		RoundScore: roundScore,
		TruePoint:  item.TruePoint(),
	}
	s.advanceLocked()
	out.TotalScore = s.accumulatedScore
	out.Complete = s.complete

	if s.complete && s.persistErr != nil {
		return out, s.persistErr
	}
	return out, nil
}

// expire is the countdown callback. A firing whose generation no longer
// matches lost the race against a guess (or a newer round) and does nothing.
func (s *Session) expire(generation int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || s.complete || s.guessMade {
		return
	}
	util.LogInfo("Round %d timed out with no guess", s.currentIndex+1)
	s.advanceLocked()
}

// advanceLocked moves to the next round or completes the session. On
// completion the final score is persisted; a persistence failure is kept on
// the session so the guess path and summary can surface it.
func (s *Session) advanceLocked() {
	s.currentIndex++
	if s.currentIndex < len(s.rounds) {
		s.armRoundLocked()
		return
	}

	s.complete = true
	s.stopTimerLocked()
	entry := models.LeaderboardEntry{
		Player:     s.player,
		Score:      s.accumulatedScore,
		Difficulty: s.difficulty,
	}
	if err := s.board.Append(entry); err != nil {
		s.persistErr = fmt.Errorf("recording final score: %w", err)
		util.LogWarn("Failed to record final score: %v", err)
		return
	}
	util.LogInfo("Session complete: score=%d difficulty=%s", s.accumulatedScore, s.difficulty)
}

func (s *Session) armRoundLocked() {
	s.generation++
	generation := s.generation
	s.guessMade = false
	s.deadline = time.Now().Add(s.roundDuration)
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.roundDuration, func() {
		s.expire(generation)
	})
}

// stopTimerLocked cancels the current countdown. Idempotent: bumping the
// generation invalidates a callback that already fired but has not taken
// the lock yet.
func (s *Session) stopTimerLocked() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Stop cancels the countdown for a session being discarded.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
}

// RoundState is what the display collaborator needs to render the current
// round.
type RoundState struct {
	Difficulty    models.Difficulty `json:"difficulty"`
	Round         int               `json:"round"`
	TotalRounds   int               `json:"totalRounds"`
	ImagePath     string            `json:"imagePath"`
	Hint          string            `json:"hint,omitempty"`
	TimeRemaining int               `json:"timeRemaining"`
	TotalScore    int               `json:"totalScore"`
	FinalRound    bool              `json:"finalRound"`
	Complete      bool              `json:"complete"`
}

// State reports the current round. After completion only the totals remain.
func (s *Session) State() RoundState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()

	st := RoundState{
		Difficulty:  s.difficulty,
		TotalRounds: len(s.rounds),
		TotalScore:  s.accumulatedScore,
		Complete:    s.complete,
	}
	if s.complete {
		st.Round = len(s.rounds)
		return st
	}

	item := s.rounds[s.currentIndex]
	st.Round = s.currentIndex + 1
	st.ImagePath = item.ImagePath
	st.Hint = item.Hint
	st.TimeRemaining = s.timeRemainingLocked()
	st.FinalRound = st.Round == st.TotalRounds
	return st
}

func (s *Session) timeRemainingLocked() int {
	rem := time.Until(s.deadline)
	if rem <= 0 {
		return 0
	}
	return int((rem + time.Second - 1) / time.Second)
}

// Summary returns the final score once the session is complete. A retained
// persistence failure surfaces here as well.
func (s *Session) Summary() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.complete {
		return 0, ErrNotComplete
	}
	return s.accumulatedScore, s.persistErr
}

func (s *Session) Difficulty() models.Difficulty {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.difficulty
}

// LastAccess reports when the session was last touched, for TTL cleanup.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}
