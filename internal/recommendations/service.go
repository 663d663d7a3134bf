package recommendations

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rubberart7/GameDex-sub001/internal/games"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	opServiceNew          = "recommendations.service.new"
	opGetOrGenerate       = "recommendations.get_or_generate"
	reasonMissingUser     = "missing_user"
	reasonMissingDep      = "missing_dependency"
	reasonCollectionRead  = "collection_read_failed"
	reasonUnexpectedValue = "unexpected_flight_value"
	emptyResultMessage    = "No new recommendations could be generated from your collection right now. Try again later or add more games."
)

var errMissingDependency = errors.New("recommendation service dependency is required")

// Source tells where a Result came from.
type Source string

const (
	SourceCache     Source = "cache"
	SourceGenerated Source = "generated"
	// SourceEmpty is an informational result; it is never cached.
	SourceEmpty Source = "empty"
)

// Result is the outcome of GetOrGenerate.
type Result struct {
	Source          Source
	Recommendations []Recommendation
	GeneratedAt     time.Time
	Message         string
	Fingerprint     string
}

// CollectionReader lists a user's owned and wishlisted games.
type CollectionReader interface {
	ListCollection(ctx context.Context, userID string) ([]games.CollectionEntry, error)
}

// RecommendationCache stores one recommendation set per user.
type RecommendationCache interface {
	Read(ctx context.Context, userID string) (CachedRecommendations, bool, error)
	Write(ctx context.Context, userID, fingerprint string, recommendations []Recommendation, generatedAt time.Time) error
}

// Suggester produces candidates from a taste profile.
type Suggester interface {
	Configured() bool
	Suggest(ctx context.Context, profile TasteProfile, count int) ([]Candidate, error)
}

// ServiceConfig describes the collaborators of the recommendation service.
type ServiceConfig struct {
	Collections CollectionReader
	Games       GameStore
	Catalog     CatalogSearcher
	Cache       RecommendationCache
	Suggester   Suggester
	Policy      Policy
	Clock       func() time.Time
	Logger      *zap.Logger
}

// Service returns cached recommendations while the collection is unchanged and
// regenerates them otherwise.
type Service struct {
	collections CollectionReader
	cache       RecommendationCache
	suggester   Suggester
	resolver    *Resolver
	policy      Policy
	clock       func() time.Time
	logger      *zap.Logger
	flights     singleflight.Group
}

// NewService constructs a Service. A nil Suggester is treated as unconfigured.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Collections == nil || cfg.Games == nil || cfg.Catalog == nil || cfg.Cache == nil {
		return nil, newServiceError(opServiceNew, reasonMissingDep, ErrUnexpectedInternal, errMissingDependency)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		collections: cfg.Collections,
		cache:       cfg.Cache,
		suggester:   cfg.Suggester,
		resolver:    NewResolver(cfg.Games, cfg.Catalog, logger),
		policy:      cfg.Policy.withDefaults(),
		clock:       clock,
		logger:      logger,
	}, nil
}

type collectionSnapshot struct {
	games       []games.Game
	externalIDs []int64
	fingerprint string
}

// GetOrGenerate returns the user's recommendations. Concurrent misses for the
// same user and collection share one generation.
func (s *Service) GetOrGenerate(ctx context.Context, userID string) (Result, error) {
	if strings.TrimSpace(userID) == "" {
		return Result{}, newServiceError(opGetOrGenerate, reasonMissingUser, ErrAuthenticationRequired, nil)
	}

	snapshot, err := s.loadCollection(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	cached, found, err := s.cache.Read(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if found && cached.Fingerprint == snapshot.fingerprint {
		s.logger.Debug("recommendation cache hit",
			zap.String(fieldUserID, userID),
			zap.String(fieldFingerprint, snapshot.fingerprint))
		return Result{
			Source:          SourceCache,
			Recommendations: cached.Recommendations,
			GeneratedAt:     cached.GeneratedAt,
			Fingerprint:     cached.Fingerprint,
		}, nil
	}

	// The flight outlives any single caller; the provider timeout bounds it.
	flightCtx := context.WithoutCancel(ctx)
	value, err, shared := s.flights.Do(userID+":"+snapshot.fingerprint, func() (any, error) {
		return s.generate(flightCtx, userID, snapshot)
	})
	if err != nil {
		return Result{}, err
	}
	result, ok := value.(Result)
	if !ok {
		return Result{}, newServiceError(opGetOrGenerate, reasonUnexpectedValue, ErrUnexpectedInternal, nil)
	}
	if shared {
		s.logger.Debug("recommendation generation shared",
			zap.String(fieldUserID, userID),
			zap.String(fieldFingerprint, snapshot.fingerprint))
	}
	return result, nil
}

func (s *Service) loadCollection(ctx context.Context, userID string) (collectionSnapshot, error) {
	entries, err := s.collections.ListCollection(ctx, userID)
	if err != nil {
		s.logger.Error("collection read failed",
			zap.String("operation", opGetOrGenerate),
			zap.String("reason", reasonCollectionRead),
			zap.String(fieldUserID, userID),
			zap.Error(err))
		return collectionSnapshot{}, newServiceError(opGetOrGenerate, reasonCollectionRead, ErrUnexpectedInternal, err)
	}
	collection := games.UniqueGames(entries)
	externalIDs := make([]int64, 0, len(collection))
	for _, game := range collection {
		externalIDs = append(externalIDs, game.ExternalID)
	}
	return collectionSnapshot{
		games:       collection,
		externalIDs: externalIDs,
		fingerprint: Fingerprint(externalIDs),
	}, nil
}

func (s *Service) generate(ctx context.Context, userID string, snapshot collectionSnapshot) (Result, error) {
	profile := summarizeTaste(snapshot.games, s.policy)
	if s.suggester == nil || !s.suggester.Configured() {
		return Result{}, newServiceError(opGetOrGenerate, reasonNotConfigured, ErrConfigurationMissing, nil)
	}

	candidates, err := s.suggester.Suggest(ctx, profile, s.policy.SuggestionCount)
	if err != nil {
		var serviceErr *ServiceError
		if errors.As(err, &serviceErr) {
			return Result{}, err
		}
		return Result{}, newServiceError(opGetOrGenerate, reasonProviderFailed, ErrUpstreamUnavailable, err)
	}

	recommendations, err := s.resolver.ResolveAll(ctx, candidates, profile.ExcludedNames, snapshot.externalIDs)
	if err != nil {
		return Result{}, err
	}

	if len(recommendations) == 0 {
		s.logger.Info("recommendation generation produced no results",
			zap.String(fieldUserID, userID),
			zap.Int("candidate_count", len(candidates)))
		return Result{
			Source:          SourceEmpty,
			Recommendations: []Recommendation{},
			Message:         emptyResultMessage,
			Fingerprint:     snapshot.fingerprint,
		}, nil
	}

	generatedAt := s.clock().UTC().Truncate(time.Second)
	if err := s.cache.Write(ctx, userID, snapshot.fingerprint, recommendations, generatedAt); err != nil {
		return Result{}, err
	}
	s.logger.Info("recommendations generated",
		zap.String(fieldUserID, userID),
		zap.String(fieldFingerprint, snapshot.fingerprint),
		zap.Int("candidate_count", len(candidates)),
		zap.Int(fieldAcceptedCount, len(recommendations)))
	return Result{
		Source:          SourceGenerated,
		Recommendations: recommendations,
		GeneratedAt:     generatedAt,
		Fingerprint:     snapshot.fingerprint,
	}, nil
}
