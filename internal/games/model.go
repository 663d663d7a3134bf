package games

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rubberart7/GameDex-sub001/internal/catalog"
)

// CollectionKind tags how a game belongs to a user's collection.
type CollectionKind string

const (
	// CollectionKindOwned marks a game in the user's library.
	CollectionKindOwned CollectionKind = "owned"
	// CollectionKindWishlisted marks a game on the user's wishlist.
	CollectionKindWishlisted CollectionKind = "wishlisted"
)

// ErrInvalidCollectionKind indicates an unknown collection kind.
var ErrInvalidCollectionKind = errors.New("games: invalid collection kind")

// ParseCollectionKind validates raw input and returns a CollectionKind.
func ParseCollectionKind(rawInput string) (CollectionKind, error) {
	switch CollectionKind(strings.ToLower(strings.TrimSpace(rawInput))) {
	case CollectionKindOwned, "library":
		return CollectionKindOwned, nil
	case CollectionKindWishlisted, "wishlist":
		return CollectionKindWishlisted, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCollectionKind, rawInput)
	}
}

// Game is the canonical local record of a catalog title.
type Game struct {
	ID          string    `gorm:"column:game_id;primaryKey;size:36;not null"`
	ExternalID  int64     `gorm:"column:external_id;not null;uniqueIndex:idx_games_external_id"`
	Name        string    `gorm:"column:name;size:320;not null;index:idx_games_name"`
	ImageURL    *string   `gorm:"column:image_url;size:1024"`
	Rating      *float64  `gorm:"column:rating"`
	ReleaseDate *string   `gorm:"column:release_date;size:10"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Game) TableName() string {
	return "games"
}

// CollectionItem links a user to a game as owned or wishlisted.
type CollectionItem struct {
	UserID  string         `gorm:"column:user_id;primaryKey;size:190;not null;index:idx_collection_user_added,priority:1"`
	GameID  string         `gorm:"column:game_id;primaryKey;size:36;not null"`
	Kind    CollectionKind `gorm:"column:kind;primaryKey;size:16;not null"`
	AddedAt time.Time      `gorm:"column:added_at;not null;index:idx_collection_user_added,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (CollectionItem) TableName() string {
	return "collection_items"
}

// CollectionEntry is a collection membership joined with its game.
type CollectionEntry struct {
	Game    Game
	Kind    CollectionKind
	AddedAt time.Time
}

// NewGame carries the attributes needed to create a canonical game.
type NewGame struct {
	ExternalID  int64
	Name        string
	ImageURL    *string
	Rating      *float64
	ReleaseDate *string
}

// NewGameFromHit copies catalog fields, keeping absent fields absent.
func NewGameFromHit(hit catalog.Hit) NewGame {
	return NewGame{
		ExternalID:  hit.ExternalID,
		Name:        hit.Name,
		ImageURL:    hit.ImageURL,
		Rating:      hit.Rating,
		ReleaseDate: hit.ReleaseDate,
	}
}

// UniqueGames returns the distinct games of a collection, first occurrence wins.
func UniqueGames(entries []CollectionEntry) []Game {
	seen := make(map[string]struct{}, len(entries))
	result := make([]Game, 0, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.Game.ID]; ok {
			continue
		}
		seen[entry.Game.ID] = struct{}{}
		result = append(result, entry.Game)
	}
	return result
}
