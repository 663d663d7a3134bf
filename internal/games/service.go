package games

import (
	"context"
	"errors"
	"fmt"

	"github.com/rubberart7/GameDex-sub001/internal/catalog"
	"go.uber.org/zap"
)

const (
	opServiceNew       = "games.service.new"
	opAddToCollection  = "games.add_to_collection"
	reasonCatalogFetch = "catalog_fetch_failed"
)

var (
	errMissingStore   = errors.New("game store is required")
	errMissingCatalog = errors.New("catalog lookup is required")
)

// CatalogLookup fetches a single catalog record.
type CatalogLookup interface {
	GetByID(ctx context.Context, externalID int64) (catalog.Hit, error)
}

// ServiceConfig describes the dependencies of the collection service.
type ServiceConfig struct {
	Store   *Store
	Catalog CatalogLookup
	Logger  *zap.Logger
}

// Service adds catalog games to user collections, creating canonical records on first use.
type Service struct {
	store   *Store
	catalog CatalogLookup
	logger  *zap.Logger
}

// AddResult reports the outcome of AddToCollection.
type AddResult struct {
	Game        Game
	Kind        CollectionKind
	GameCreated bool
	ItemCreated bool
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newStoreError(opServiceNew, "missing_store", errMissingStore)
	}
	if cfg.Catalog == nil {
		return nil, newStoreError(opServiceNew, "missing_catalog", errMissingCatalog)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{store: cfg.Store, catalog: cfg.Catalog, logger: logger}, nil
}

// AddToCollection resolves the external identifier to a canonical game and
// records it as owned or wishlisted for the user.
func (s *Service) AddToCollection(ctx context.Context, userID string, externalID int64, kind CollectionKind) (AddResult, error) {
	kind, err := ParseCollectionKind(string(kind))
	if err != nil {
		return AddResult{}, newStoreError(opAddToCollection, reasonInvalidInput, err)
	}

	game, found, err := s.store.FindByExternalID(ctx, externalID)
	if err != nil {
		return AddResult{}, err
	}

	gameCreated := false
	if !found {
		hit, err := s.catalog.GetByID(ctx, externalID)
		if err != nil {
			s.logger.Warn("catalog lookup failed",
				zap.String("operation", opAddToCollection),
				zap.Int64(fieldExternalID, externalID),
				zap.Error(err))
			return AddResult{}, fmt.Errorf("%s.%s: %w", opAddToCollection, reasonCatalogFetch, err)
		}
		game, err = s.store.CreateFromCatalog(ctx, NewGameFromHit(hit))
		if err != nil {
			return AddResult{}, err
		}
		gameCreated = true
	}

	itemCreated, err := s.store.AddCollectionItem(ctx, userID, game.ID, kind)
	if err != nil {
		return AddResult{}, err
	}

	s.logger.Info("collection updated",
		zap.String(fieldUserID, userID),
		zap.String(fieldGameID, game.ID),
		zap.Int64(fieldExternalID, game.ExternalID),
		zap.String("kind", string(kind)),
		zap.Bool("game_created", gameCreated),
		zap.Bool("item_created", itemCreated))

	return AddResult{Game: game, Kind: kind, GameCreated: gameCreated, ItemCreated: itemCreated}, nil
}
