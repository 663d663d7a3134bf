package games

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opStoreNew           = "games.store.new"
	opFindByName         = "games.find_by_name"
	opFindByExternalID   = "games.find_by_external_id"
	opCreateFromCatalog  = "games.create_from_catalog"
	opRename             = "games.rename"
	opListCollection     = "games.list_collection"
	opAddCollectionItem  = "games.add_collection_item"
	fieldUserID          = "user_id"
	fieldGameID          = "game_id"
	fieldExternalID      = "external_id"
	columnExternalID     = "external_id"
	queryName            = "name = ?"
	queryExternalID      = columnExternalID + " = ?"
	queryGameID          = fieldGameID + " = ?"
	queryGameIDIn        = fieldGameID + " IN ?"
	queryUserID          = fieldUserID + " = ?"
	orderCreatedAsc      = "created_at ASC, game_id ASC"
	orderAddedAsc        = "added_at ASC, game_id ASC"
	reasonMissingDB      = "missing_database"
	reasonQueryFailed    = "query_failed"
	reasonInvalidInput   = "invalid_input"
	reasonIDFailed       = "id_generation_failed"
	reasonInsertFailed   = "insert_failed"
	reasonUpdateFailed   = "update_failed"
	reasonReloadFailed   = "reload_failed"
	reasonDanglingGameID = "dangling_game_id"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUserID     = errors.New("user identifier is required")
	errInvalidExternalID = errors.New("external identifier must be positive")
	errMissingName       = errors.New("game name is required")
	noOpLogger           = zap.NewNop()
)

// StoreError carries a stable "<operation>.<reason>" code alongside the cause.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

// Code returns the stable error code.
func (e *StoreError) Code() string {
	return e.code
}

func newStoreError(operation, reason string, cause error) error {
	return &StoreError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// StoreConfig describes the dependencies of the game store.
type StoreConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Store persists canonical games and reads collection membership.
type Store struct {
	db         *gorm.DB
	idProvider IDProvider
	clock      func() time.Time
	logger     *zap.Logger
}

// NewStore constructs a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newStoreError(opStoreNew, reasonMissingDB, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newStoreError(opStoreNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{
		db:         cfg.Database,
		idProvider: cfg.IDProvider,
		clock:      clock,
		logger:     logger,
	}, nil
}

// FindByName looks up a game by its exact, case-sensitive name.
func (s *Store) FindByName(ctx context.Context, name string) (Game, bool, error) {
	var game Game
	err := s.db.WithContext(ctx).
		Where(queryName, name).
		Order(orderCreatedAsc).
		Take(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Game{}, false, nil
	}
	if err != nil {
		s.logError(opFindByName, reasonQueryFailed, err, zap.String("name", name))
		return Game{}, false, newStoreError(opFindByName, reasonQueryFailed, err)
	}
	return game, true, nil
}

// FindByExternalID looks up a game by its catalog identifier.
func (s *Store) FindByExternalID(ctx context.Context, externalID int64) (Game, bool, error) {
	var game Game
	err := s.db.WithContext(ctx).
		Where(queryExternalID, externalID).
		Take(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Game{}, false, nil
	}
	if err != nil {
		s.logError(opFindByExternalID, reasonQueryFailed, err, zap.Int64(fieldExternalID, externalID))
		return Game{}, false, newStoreError(opFindByExternalID, reasonQueryFailed, err)
	}
	return game, true, nil
}

// CreateFromCatalog inserts a game unless one already exists for the external
// identifier, in which case the stored record is returned unchanged.
func (s *Store) CreateFromCatalog(ctx context.Context, attributes NewGame) (Game, error) {
	name := strings.TrimSpace(attributes.Name)
	if attributes.ExternalID <= 0 {
		return Game{}, newStoreError(opCreateFromCatalog, reasonInvalidInput, errInvalidExternalID)
	}
	if name == "" {
		return Game{}, newStoreError(opCreateFromCatalog, reasonInvalidInput, errMissingName)
	}

	gameID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateFromCatalog, reasonIDFailed, err, zap.Int64(fieldExternalID, attributes.ExternalID))
		return Game{}, newStoreError(opCreateFromCatalog, reasonIDFailed, err)
	}

	game := Game{
		ID:          gameID,
		ExternalID:  attributes.ExternalID,
		Name:        name,
		ImageURL:    attributes.ImageURL,
		Rating:      attributes.Rating,
		ReleaseDate: attributes.ReleaseDate,
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: columnExternalID}}, DoNothing: true}).
		Create(&game)
	if result.Error != nil {
		s.logError(opCreateFromCatalog, reasonInsertFailed, result.Error, zap.Int64(fieldExternalID, attributes.ExternalID))
		return Game{}, newStoreError(opCreateFromCatalog, reasonInsertFailed, result.Error)
	}
	if result.RowsAffected > 0 {
		return game, nil
	}

	existing, found, err := s.FindByExternalID(ctx, attributes.ExternalID)
	if err != nil {
		return Game{}, err
	}
	if !found {
		return Game{}, newStoreError(opCreateFromCatalog, reasonReloadFailed, gorm.ErrRecordNotFound)
	}
	return existing, nil
}

// Rename overwrites the stored display name of a game.
func (s *Store) Rename(ctx context.Context, gameID, name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return newStoreError(opRename, reasonInvalidInput, errMissingName)
	}
	err := s.db.WithContext(ctx).
		Model(&Game{}).
		Where(queryGameID, gameID).
		Update("name", trimmed).Error
	if err != nil {
		s.logError(opRename, reasonUpdateFailed, err, zap.String(fieldGameID, gameID))
		return newStoreError(opRename, reasonUpdateFailed, err)
	}
	return nil
}

// ListCollection returns the user's owned and wishlisted games in the order they were added.
func (s *Store) ListCollection(ctx context.Context, userID string) ([]CollectionEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, newStoreError(opListCollection, reasonInvalidInput, errMissingUserID)
	}

	var items []CollectionItem
	if err := s.db.WithContext(ctx).
		Where(queryUserID, userID).
		Order(orderAddedAsc).
		Find(&items).Error; err != nil {
		s.logError(opListCollection, reasonQueryFailed, err, zap.String(fieldUserID, userID))
		return nil, newStoreError(opListCollection, reasonQueryFailed, err)
	}
	if len(items) == 0 {
		return []CollectionEntry{}, nil
	}

	gameIDs := make([]string, 0, len(items))
	for _, item := range items {
		gameIDs = append(gameIDs, item.GameID)
	}
	sort.Strings(gameIDs)

	var rows []Game
	if err := s.db.WithContext(ctx).
		Where(queryGameIDIn, gameIDs).
		Find(&rows).Error; err != nil {
		s.logError(opListCollection, reasonQueryFailed, err, zap.String(fieldUserID, userID))
		return nil, newStoreError(opListCollection, reasonQueryFailed, err)
	}
	gamesByID := make(map[string]Game, len(rows))
	for _, row := range rows {
		gamesByID[row.ID] = row
	}

	entries := make([]CollectionEntry, 0, len(items))
	for _, item := range items {
		game, ok := gamesByID[item.GameID]
		if !ok {
			s.logger.Warn("collection item references missing game",
				zap.String("operation", opListCollection),
				zap.String("reason", reasonDanglingGameID),
				zap.String(fieldUserID, userID),
				zap.String(fieldGameID, item.GameID))
			continue
		}
		entries = append(entries, CollectionEntry{Game: game, Kind: item.Kind, AddedAt: item.AddedAt})
	}
	return entries, nil
}

// AddCollectionItem records collection membership; it reports false when the
// membership already existed.
func (s *Store) AddCollectionItem(ctx context.Context, userID, gameID string, kind CollectionKind) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, newStoreError(opAddCollectionItem, reasonInvalidInput, errMissingUserID)
	}
	kind, err := ParseCollectionKind(string(kind))
	if err != nil {
		return false, newStoreError(opAddCollectionItem, reasonInvalidInput, err)
	}

	item := CollectionItem{
		UserID:  userID,
		GameID:  gameID,
		Kind:    kind,
		AddedAt: s.clock().UTC(),
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&item)
	if result.Error != nil {
		s.logError(opAddCollectionItem, reasonInsertFailed, result.Error,
			zap.String(fieldUserID, userID),
			zap.String(fieldGameID, gameID))
		return false, newStoreError(opAddCollectionItem, reasonInsertFailed, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("games store error", attrs...)
}
