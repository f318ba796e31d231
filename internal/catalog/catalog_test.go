package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	catalog "campusguesser/internal/catalog"
	models "campusguesser/internal/models"
)

func openTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.Open(t.TempDir(), 1920, 1080)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func TestRegisterAndList(t *testing.T) {
	s := openTestStore(t)

	item, err := s.Register([]byte("fake png bytes"), ".png", 100, 200, "near the library", models.DifficultyEasy)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if item.ID == "" {
		t.Error("Expected a generated id")
	}
	if item.X != 100 || item.Y != 200 {
		t.Errorf("Coordinates stored as (%d, %d), want (100, 200)", item.X, item.Y)
	}
	if item.Difficulty != models.DifficultyEasy {
		t.Errorf("Difficulty = %q, want easy", item.Difficulty)
	}
	if _, err := os.Stat(item.ImagePath); err != nil {
		t.Errorf("Image file not written: %v", err)
	}

	items := s.Items()
	if len(items) != 1 || items[0].ID != item.ID {
		t.Errorf("Items() = %v, want the registered item", items)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Register(nil, ".png", 0, 0, "", models.DifficultyEasy); !errors.Is(err, catalog.ErrValidation) {
		t.Errorf("Expected ErrValidation for missing image, got %v", err)
	}
	if _, err := s.Register([]byte("x"), ".gif", 0, 0, "", models.DifficultyEasy); !errors.Is(err, catalog.ErrValidation) {
		t.Errorf("Expected ErrValidation for .gif, got %v", err)
	}
	if _, err := s.Register([]byte("x"), ".JPG", 0, 0, "", models.DifficultyEasy); err != nil {
		t.Errorf("Expected uppercase suffix to be accepted, got %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Rejected uploads must not mutate the catalog, have %d items", s.Len())
	}
}

func TestRegisterClampsIntoMapBounds(t *testing.T) {
	s := openTestStore(t)

	item, err := s.Register([]byte("x"), ".jpg", -50, 99999, "", models.DifficultyHard)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if item.X != 0 || item.Y != 1079 {
		t.Errorf("Clamped to (%d, %d), want (0, 1079)", item.X, item.Y)
	}
}

func TestBackfill(t *testing.T) {
	s := openTestStore(t)
	item, err := s.Register([]byte("x"), ".png", 1, 2, "", models.DifficultyEasy)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	updated, err := s.Backfill(item.ID, "chapel", "north")
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if updated.Spot != "chapel" || updated.Direction != "north" {
		t.Errorf("Backfill stored %q/%q, want chapel/north", updated.Spot, updated.Direction)
	}

	if _, err := s.Backfill("no-such-id", "a", "b"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCatalogPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := catalog.Open(dir, 1920, 1080)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	item, err := s.Register([]byte("x"), ".png", 10, 20, "hint", models.DifficultyEasy)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	reopened, err := catalog.Open(dir, 1920, 1080)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	got, err := reopened.Get(item.ID)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got != item {
		t.Errorf("Reloaded item %+v, want %+v", got, item)
	}
}

func TestOpenReadsExistingDocument(t *testing.T) {
	dir := t.TempDir()
	doc := `{"items": [{"id": "abc", "image_path": "data/images/abc.png", "x": 5, "y": 6, "hint": null, "spot": null, "direction": null, "difficulty": "hard"}]}`
	if err := os.WriteFile(filepath.Join(dir, "locations.json"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := catalog.Open(dir, 1920, 1080)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	item, err := s.Get("abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if item.X != 5 || item.Y != 6 || item.Difficulty != models.DifficultyHard {
		t.Errorf("Unexpected item from legacy document: %+v", item)
	}
}

func TestFilterByDifficulty(t *testing.T) {
	items := []models.LocationItem{
		{ID: "1", Difficulty: models.DifficultyEasy},
		{ID: "2", Difficulty: models.DifficultyHard},
		{ID: "3", Difficulty: models.DifficultyEasy},
	}

	easy := catalog.FilterByDifficulty(items, models.DifficultyEasy)
	if len(easy) != 2 || easy[0].ID != "1" || easy[1].ID != "3" {
		t.Errorf("FilterByDifficulty(easy) = %v", easy)
	}
	if got := catalog.FilterByDifficulty(items, "extreme"); len(got) != 0 {
		t.Errorf("Expected no matches for unknown difficulty, got %v", got)
	}
}

func TestSampleSession(t *testing.T) {
	var items []models.LocationItem
	for i := 0; i < 25; i++ {
		items = append(items, models.LocationItem{ID: string(rune('a' + i))})
	}

	sampled := catalog.SampleSession(items, 10)
	if len(sampled) != 10 {
		t.Errorf("Sampled %d items, want 10", len(sampled))
	}
	seen := make(map[string]int)
	for _, it := range sampled {
		seen[it.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("Item %s sampled %d times, sampling must be without replacement", id, n)
		}
	}

	if got := catalog.SampleSession(items[:3], 10); len(got) != 3 {
		t.Errorf("Small catalog should yield %d rounds, got %d", 3, len(got))
	}
	if len(items) != 25 {
		t.Error("SampleSession must not mutate its input")
	}
}
