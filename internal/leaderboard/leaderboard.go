// Package leaderboard is the append-only ledger of completed-session scores.
//
// The ledger persists as a JSON array of entries. A legacy document holding
// a single object instead of an array is read as a one-element ledger.
package leaderboard

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/samber/lo"

	models "campusguesser/internal/models"
	util "campusguesser/internal/util"
)

// Store is the file-backed ledger. Appends are serialized by a mutex and
// always surface storage errors; ranked reads degrade to an empty result
// instead, because rankings are display-only.
type Store struct {
	mu   sync.Mutex
	path string
}

func Open(path string) *Store {
	return &Store{path: path}
}

// Append durably records one entry. Storage failures propagate to the
// caller; a failed append must never look like a recorded score.
func (s *Store) Append(entry models.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return fmt.Errorf("reading leaderboard: %w", err)
	}
	entries = append(entries, entry)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding leaderboard: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing leaderboard: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing leaderboard: %w", err)
	}
	return nil
}

// Rankings returns the entries for difficulty sorted by score descending,
// ties keeping insertion order. No matches yields an empty slice. An
// unreadable ledger also yields an empty slice: rankings are cosmetic, so a
// read failure downgrades the display rather than aborting the game.
func (s *Store) Rankings(difficulty models.Difficulty) []models.LeaderboardEntry {
	s.mu.Lock()
	entries, err := s.readLocked()
	s.mu.Unlock()
	if err != nil {
		util.LogWarn("Leaderboard read failed, serving empty rankings: %v", err)
		return []models.LeaderboardEntry{}
	}

	filtered := lo.Filter(entries, func(e models.LeaderboardEntry, _ int) bool {
		return e.Difficulty == difficulty
	})
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})
	if filtered == nil {
		filtered = []models.LeaderboardEntry{}
	}
	return filtered
}

// Top returns the first n rankings for difficulty.
func (s *Store) Top(difficulty models.Difficulty, n int) []models.LeaderboardEntry {
	ranked := s.Rankings(difficulty)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func (s *Store) readLocked() ([]models.LeaderboardEntry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}

	// Legacy layout: a single entry object instead of an array.
	var single models.LeaderboardEntry
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("parsing leaderboard: %w", err)
	}
	return []models.LeaderboardEntry{single}, nil
}
