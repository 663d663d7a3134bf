package recommendations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rubberart7/GameDex-sub001/internal/catalog"
	"github.com/rubberart7/GameDex-sub001/internal/games"
)

type memoryGameStore struct {
	mu          sync.Mutex
	games       []games.Game
	collections map[string][]games.CollectionEntry
	nextID      int
	renames     int
	creates     int
}

func newMemoryGameStore() *memoryGameStore {
	return &memoryGameStore{collections: make(map[string][]games.CollectionEntry)}
}

func (s *memoryGameStore) seedGame(externalID int64, name string, rating *float64) games.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	game := games.Game{ID: fmt.Sprintf("game-%d", s.nextID), ExternalID: externalID, Name: name, Rating: rating}
	s.games = append(s.games, game)
	return game
}

func (s *memoryGameStore) collect(userID string, game games.Game, kind games.CollectionKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[userID] = append(s.collections[userID], games.CollectionEntry{Game: game, Kind: kind})
}

func (s *memoryGameStore) FindByName(_ context.Context, name string) (games.Game, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, game := range s.games {
		if game.Name == name {
			return game, true, nil
		}
	}
	return games.Game{}, false, nil
}

func (s *memoryGameStore) FindByExternalID(_ context.Context, externalID int64) (games.Game, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, game := range s.games {
		if game.ExternalID == externalID {
			return game, true, nil
		}
	}
	return games.Game{}, false, nil
}

func (s *memoryGameStore) CreateFromCatalog(_ context.Context, attributes games.NewGame) (games.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, game := range s.games {
		if game.ExternalID == attributes.ExternalID {
			return game, nil
		}
	}
	s.nextID++
	s.creates++
	game := games.Game{
		ID:          fmt.Sprintf("game-%d", s.nextID),
		ExternalID:  attributes.ExternalID,
		Name:        attributes.Name,
		ImageURL:    attributes.ImageURL,
		Rating:      attributes.Rating,
		ReleaseDate: attributes.ReleaseDate,
	}
	s.games = append(s.games, game)
	return game, nil
}

func (s *memoryGameStore) Rename(_ context.Context, gameID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for index := range s.games {
		if s.games[index].ID == gameID {
			s.games[index].Name = name
			s.renames++
		}
	}
	return nil
}

func (s *memoryGameStore) ListCollection(_ context.Context, userID string) ([]games.CollectionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]games.CollectionEntry(nil), s.collections[userID]...), nil
}

type scriptedCatalog struct {
	mu       sync.Mutex
	hits     map[string][]catalog.Hit
	failures map[string]error
	queries  []string
}

func newScriptedCatalog() *scriptedCatalog {
	return &scriptedCatalog{hits: make(map[string][]catalog.Hit), failures: make(map[string]error)}
}

func (c *scriptedCatalog) SearchByName(_ context.Context, name string) ([]catalog.Hit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, name)
	if err, ok := c.failures[name]; ok {
		return nil, err
	}
	return c.hits[name], nil
}

func (c *scriptedCatalog) queryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queries)
}

type scriptedSuggester struct {
	mu         sync.Mutex
	configured bool
	candidates []Candidate
	err        error
	release    chan struct{}
	profiles   []TasteProfile
	counts     []int
}

func (s *scriptedSuggester) Configured() bool {
	return s.configured
}

func (s *scriptedSuggester) Suggest(ctx context.Context, profile TasteProfile, count int) ([]Candidate, error) {
	s.mu.Lock()
	s.profiles = append(s.profiles, profile)
	s.counts = append(s.counts, count)
	s.mu.Unlock()
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.candidates, s.err
}

func (s *scriptedSuggester) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]CachedRecommendations
	writes  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]CachedRecommendations)}
}

func (c *memoryCache) Read(_ context.Context, userID string) (CachedRecommendations, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	return entry, ok, nil
}

func (c *memoryCache) Write(_ context.Context, userID, fingerprint string, recommendations []Recommendation, generatedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	c.entries[userID] = CachedRecommendations{
		Fingerprint:     fingerprint,
		Recommendations: append([]Recommendation(nil), recommendations...),
		GeneratedAt:     generatedAt,
	}
	return nil
}

func (c *memoryCache) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

func ratingOf(value float64) *float64 {
	return &value
}
