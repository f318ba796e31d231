// Package catalog owns the durable set of registered photo/location pairs.
//
// The catalog persists as a JSON document {"items": [...]} next to the
// uploaded photo assets. The in-memory copy is the source of truth between
// mutations; every mutation rewrites the document atomically.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	models "campusguesser/internal/models"
	util "campusguesser/internal/util"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("location not found")
)

// acceptedSuffixes is the fixed upload whitelist. Not configurable.
var acceptedSuffixes = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

type document struct {
	Items []models.LocationItem `json:"items"`
}

// Store is the catalog backed by <dataDir>/locations.json and
// <dataDir>/images/. Safe for concurrent registration.
type Store struct {
	mu        sync.Mutex
	metaPath  string
	imagesDir string
	mapWidth  int
	mapHeight int
	items     []models.LocationItem
}

// Open loads (or initializes) the catalog under dataDir. mapWidth and
// mapHeight are the reference image dimensions used to clamp registered
// coordinates.
func Open(dataDir string, mapWidth, mapHeight int) (*Store, error) {
	s := &Store{
		metaPath:  filepath.Join(dataDir, "locations.json"),
		imagesDir: filepath.Join(dataDir, "images"),
		mapWidth:  mapWidth,
		mapHeight: mapHeight,
	}

	if err := os.MkdirAll(s.imagesDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating images dir: %w", err)
	}

	data, err := os.ReadFile(s.metaPath)
	if os.IsNotExist(err) {
		if err := s.saveLocked(); err != nil {
			return nil, err
		}
		util.LogInfo("Initialized empty catalog at %s", s.metaPath)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	s.items = doc.Items
	util.LogInfo("Loaded %d locations from %s", len(s.items), s.metaPath)
	return s, nil
}

// Items returns all registered items in insertion order.
func (s *Store) Items() []models.LocationItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LocationItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Get returns the item with the given id.
func (s *Store) Get(id string) (models.LocationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ID == id {
			return item, nil
		}
	}
	return models.LocationItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// FilterByDifficulty keeps the items matching difficulty. An empty result is
// not an error: the session initializer falls back to the full catalog so
// the game stays playable with a sparse partition.
func FilterByDifficulty(items []models.LocationItem, difficulty models.Difficulty) []models.LocationItem {
	return lo.Filter(items, func(item models.LocationItem, _ int) bool {
		return item.Difficulty == difficulty
	})
}

// SampleSession returns a uniformly shuffled copy of items truncated to at
// most count. A catalog smaller than count yields a shorter session.
func SampleSession(items []models.LocationItem, count int) []models.LocationItem {
	out := make([]models.LocationItem, len(items))
	copy(out, items)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	if len(out) > count {
		out = out[:count]
	}
	return out
}

// Register validates and appends a new catalog entry: the image bytes are
// written under a freshly generated id, the coordinates are clamped into the
// reference map bounds, and the catalog document is rewritten.
func (s *Store) Register(img []byte, suffix string, x, y int, hint string, difficulty models.Difficulty) (models.LocationItem, error) {
	if len(img) == 0 {
		return models.LocationItem{}, fmt.Errorf("%w: no image supplied", ErrValidation)
	}
	suffix = strings.ToLower(suffix)
	if _, ok := acceptedSuffixes[suffix]; !ok {
		return models.LocationItem{}, fmt.Errorf("%w: unsupported image type %q", ErrValidation, suffix)
	}

	id := uuid.NewString()
	imagePath := filepath.Join(s.imagesDir, id+suffix)
	if err := os.WriteFile(imagePath, img, 0o644); err != nil {
		return models.LocationItem{}, fmt.Errorf("writing image: %w", err)
	}

	item := models.LocationItem{
		ID:         id,
		ImagePath:  imagePath,
		X:          util.Clamp(x, 0, s.mapWidth-1),
		Y:          util.Clamp(y, 0, s.mapHeight-1),
		Hint:       hint,
		Difficulty: difficulty,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	if err := s.saveLocked(); err != nil {
		s.items = s.items[:len(s.items)-1]
		os.Remove(imagePath)
		return models.LocationItem{}, err
	}

	util.LogInfo("Registered location %s at (%d, %d) difficulty=%s", id, item.X, item.Y, difficulty)
	return item, nil
}

// Backfill sets the optional spot/direction metadata on a just-created item.
// The read-modify-write happens under the store lock so concurrent
// registrations cannot interleave with it.
func (s *Store) Backfill(id, spot, direction string) (models.LocationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, item := range s.items {
		if item.ID != id {
			continue
		}
		updated := item
		updated.Spot = spot
		updated.Direction = direction
		s.items[i] = updated
		if err := s.saveLocked(); err != nil {
			s.items[i] = item
			return models.LocationItem{}, err
		}
		return updated, nil
	}
	return models.LocationItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// saveLocked rewrites the catalog document. Callers must hold s.mu (or have
// exclusive access during Open).
func (s *Store) saveLocked() error {
	doc := document{Items: s.items}
	if doc.Items == nil {
		doc.Items = []models.LocationItem{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}

	tmp := s.metaPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}
	if err := os.Rename(tmp, s.metaPath); err != nil {
		return fmt.Errorf("replacing catalog: %w", err)
	}
	return nil
}
