package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rubberart7/GameDex-sub001/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultTouchInterval = 5 * time.Minute
	columnUserID         = "user_id"
)

// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

// ServiceConfig describes the dependencies required for user resolution.
type ServiceConfig struct {
	Database      *gorm.DB
	Clock         func() time.Time
	TouchInterval time.Duration
	Logger        *zap.Logger
}

// Service records authenticated users and returns their canonical identifier.
type Service struct {
	db            *gorm.DB
	now           func() time.Time
	touchInterval time.Duration
	logger        *zap.Logger
	lastTouched   sync.Map
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	touchInterval := cfg.TouchInterval
	if touchInterval <= 0 {
		touchInterval = defaultTouchInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:            cfg.Database,
		now:           clock,
		touchInterval: touchInterval,
		logger:        logger,
	}, nil
}

// ResolveUserID upserts the user described by claims and returns its identifier.
// Repeated calls within the touch interval skip the write.
func (s *Service) ResolveUserID(ctx context.Context, claims auth.SessionClaims) (string, error) {
	userID := canonicalUserID(claims)
	if userID == "" {
		return "", ErrInvalidIdentity
	}

	now := s.now().UTC()
	if touched, ok := s.lastTouched.Load(userID); ok {
		if at, ok := touched.(time.Time); ok && now.Sub(at) < s.touchInterval {
			return userID, nil
		}
	}

	user := User{
		ID:          userID,
		Email:       normalize(claims.UserEmail),
		DisplayName: normalize(claims.UserDisplayName),
		LastSeenAt:  now,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: columnUserID}},
			DoUpdates: clause.AssignmentColumns([]string{"user_email", "user_display_name", "last_seen_at", "updated_at"}),
		}).
		Create(&user).Error
	if err != nil {
		s.logger.Error("user upsert failed",
			zap.String("operation", "users.resolve_user_id"),
			zap.String(columnUserID, userID),
			zap.Error(err))
		return "", fmt.Errorf("users: upsert %s: %w", userID, err)
	}

	s.lastTouched.Store(userID, now)
	return userID, nil
}

// canonicalUserID strips a "<provider>:" prefix from the session's player id.
func canonicalUserID(claims auth.SessionClaims) string {
	raw := normalize(claims.PlayerID())
	if provider, subject, found := strings.Cut(raw, ":"); found && normalize(provider) != "" && normalize(subject) != "" {
		return normalize(subject)
	}
	return raw
}
