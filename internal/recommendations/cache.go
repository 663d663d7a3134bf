package recommendations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opCacheRead         = "recommendations.cache.read"
	opCacheWrite        = "recommendations.cache.write"
	opCacheNew          = "recommendations.cache.new"
	fieldUserID         = "user_id"
	fieldFingerprint    = "fingerprint"
	columnUserID        = "user_id"
	columnFingerprint   = "fingerprint"
	columnPayload       = "payload"
	columnGeneratedAt   = "generated_at_s"
	queryCacheUserID    = columnUserID + " = ?"
	reasonMissingDB     = "missing_database"
	reasonInvalidInput  = "invalid_input"
	reasonQueryFailed   = "query_failed"
	reasonEncodeFailed  = "encode_failed"
	reasonUpsertFailed  = "upsert_failed"
	reasonPayloadBroken = "payload_malformed"

	// PayloadVersion tags the current cache payload schema.
	PayloadVersion = 1
)

var (
	errMissingDatabase     = errors.New("database handle is required")
	errMissingUserID       = errors.New("user identifier is required")
	errUnsupportedVersion  = errors.New("unsupported payload version")
	errRecommendationsList = errors.New("recommendations is not a list")
)

// CacheEntry is the single stored recommendation set of a user.
type CacheEntry struct {
	UserID             string         `gorm:"column:user_id;primaryKey;size:190;not null"`
	Fingerprint        string         `gorm:"column:fingerprint;size:64;not null"`
	Payload            datatypes.JSON `gorm:"column:payload;not null"`
	GeneratedAtSeconds int64          `gorm:"column:generated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (CacheEntry) TableName() string {
	return "recommendation_cache_entries"
}

// Recommendation is a resolved game with the provider's reason attached.
type Recommendation struct {
	GameID      string   `json:"id"`
	ExternalID  int64    `json:"external_id"`
	Name        string   `json:"name"`
	ImageURL    *string  `json:"image_url"`
	Rating      *float64 `json:"rating"`
	ReleaseDate *string  `json:"release_date"`
	Reason      string   `json:"reason"`
}

// CachedRecommendations is a decoded cache entry.
type CachedRecommendations struct {
	Fingerprint     string
	Recommendations []Recommendation
	GeneratedAt     time.Time
}

type cachePayload struct {
	Version         int             `json:"version"`
	Recommendations json.RawMessage `json:"recommendations"`
}

// CacheStore reads and replaces per-user recommendation cache entries.
type CacheStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCacheStore constructs a CacheStore.
func NewCacheStore(db *gorm.DB, logger *zap.Logger) (*CacheStore, error) {
	if db == nil {
		return nil, newServiceError(opCacheNew, reasonMissingDB, ErrUnexpectedInternal, errMissingDatabase)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheStore{db: db, logger: logger}, nil
}

// Read returns the user's cache entry. A missing row or a payload that does not
// decode into a recommendation list is reported as absent.
func (s *CacheStore) Read(ctx context.Context, userID string) (CachedRecommendations, bool, error) {
	var entry CacheEntry
	err := s.db.WithContext(ctx).Where(queryCacheUserID, userID).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CachedRecommendations{}, false, nil
	}
	if err != nil {
		s.logError(opCacheRead, reasonQueryFailed, err, zap.String(fieldUserID, userID))
		return CachedRecommendations{}, false, newServiceError(opCacheRead, reasonQueryFailed, ErrUnexpectedInternal, err)
	}

	recommendations, err := decodePayload(entry.Payload)
	if err != nil {
		s.logger.Warn("discarding malformed recommendation cache entry",
			zap.String("operation", opCacheRead),
			zap.String("reason", reasonPayloadBroken),
			zap.String(fieldUserID, userID),
			zap.Error(err))
		return CachedRecommendations{}, false, nil
	}
	return CachedRecommendations{
		Fingerprint:     entry.Fingerprint,
		Recommendations: recommendations,
		GeneratedAt:     time.Unix(entry.GeneratedAtSeconds, 0).UTC(),
	}, true, nil
}

// Write replaces the user's cache entry in a single upsert.
func (s *CacheStore) Write(ctx context.Context, userID, fingerprint string, recommendations []Recommendation, generatedAt time.Time) error {
	if strings.TrimSpace(userID) == "" {
		return newServiceError(opCacheWrite, reasonInvalidInput, ErrUnexpectedInternal, errMissingUserID)
	}
	payload, err := encodePayload(recommendations)
	if err != nil {
		s.logError(opCacheWrite, reasonEncodeFailed, err, zap.String(fieldUserID, userID))
		return newServiceError(opCacheWrite, reasonEncodeFailed, ErrUnexpectedInternal, err)
	}

	entry := CacheEntry{
		UserID:             userID,
		Fingerprint:        fingerprint,
		Payload:            datatypes.JSON(payload),
		GeneratedAtSeconds: generatedAt.UTC().Unix(),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: columnUserID}},
			DoUpdates: clause.AssignmentColumns([]string{columnFingerprint, columnPayload, columnGeneratedAt}),
		}).
		Create(&entry).Error
	if err != nil {
		s.logError(opCacheWrite, reasonUpsertFailed, err,
			zap.String(fieldUserID, userID),
			zap.String(fieldFingerprint, fingerprint))
		return newServiceError(opCacheWrite, reasonUpsertFailed, ErrUnexpectedInternal, err)
	}
	return nil
}

func encodePayload(recommendations []Recommendation) ([]byte, error) {
	if recommendations == nil {
		recommendations = []Recommendation{}
	}
	list, err := json.Marshal(recommendations)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cachePayload{Version: PayloadVersion, Recommendations: list})
}

func decodePayload(raw []byte) ([]Recommendation, error) {
	var payload cachePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if payload.Version != PayloadVersion {
		return nil, fmt.Errorf("%w: %d", errUnsupportedVersion, payload.Version)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(payload.Recommendations), []byte("[")) {
		return nil, errRecommendationsList
	}
	var recommendations []Recommendation
	if err := json.Unmarshal(payload.Recommendations, &recommendations); err != nil {
		return nil, err
	}
	return recommendations, nil
}

func (s *CacheStore) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("recommendation cache error", attrs...)
}
