package recommendations

import (
	"context"

	"github.com/rubberart7/GameDex-sub001/internal/catalog"
	"github.com/rubberart7/GameDex-sub001/internal/games"
	"go.uber.org/zap"
)

const (
	opResolve          = "recommendations.resolve"
	reasonStoreFailed  = "store_failed"
	fieldCandidate     = "candidate"
	fieldExternalID    = "external_id"
	fieldOutcome       = "outcome"
	fieldAcceptedCount = "accepted_count"
)

// GameStore is the canonical game repository used during resolution.
type GameStore interface {
	FindByName(ctx context.Context, name string) (games.Game, bool, error)
	FindByExternalID(ctx context.Context, externalID int64) (games.Game, bool, error)
	CreateFromCatalog(ctx context.Context, attributes games.NewGame) (games.Game, error)
	Rename(ctx context.Context, gameID, name string) error
}

// CatalogSearcher runs free-text catalog searches.
type CatalogSearcher interface {
	SearchByName(ctx context.Context, name string) ([]catalog.Hit, error)
}

type resolutionOutcome int

const (
	outcomeAccepted resolutionOutcome = iota
	outcomeExcludedName
	outcomeDuplicateName
	outcomeNoMatch
	outcomeSearchFailed
	outcomeDuplicateGame
	outcomeAlreadyCollected
)

func (o resolutionOutcome) String() string {
	switch o {
	case outcomeAccepted:
		return "accepted"
	case outcomeExcludedName:
		return "excluded_name"
	case outcomeDuplicateName:
		return "duplicate_name"
	case outcomeNoMatch:
		return "no_match"
	case outcomeSearchFailed:
		return "search_failed"
	case outcomeDuplicateGame:
		return "duplicate_game"
	case outcomeAlreadyCollected:
		return "already_collected"
	default:
		return "unknown"
	}
}

// resolutionBatch accumulates what one batch has already seen. Resolution
// reads and mutates it candidate by candidate, so it must not be shared.
type resolutionBatch struct {
	excludedNames   map[string]struct{}
	collectedIDs    map[int64]struct{}
	seenNames       map[string]struct{}
	seenExternalIDs map[int64]struct{}
	accepted        []Recommendation
}

func newResolutionBatch(excludedNames []string, collectedIDs []int64) *resolutionBatch {
	batch := &resolutionBatch{
		excludedNames:   make(map[string]struct{}, len(excludedNames)),
		collectedIDs:    make(map[int64]struct{}, len(collectedIDs)),
		seenNames:       make(map[string]struct{}),
		seenExternalIDs: make(map[int64]struct{}),
	}
	for _, name := range excludedNames {
		batch.excludedNames[name] = struct{}{}
	}
	for _, externalID := range collectedIDs {
		batch.collectedIDs[externalID] = struct{}{}
	}
	return batch
}

func (b *resolutionBatch) accept(candidate Candidate, game games.Game) {
	b.seenNames[candidate.Name] = struct{}{}
	b.seenNames[game.Name] = struct{}{}
	b.seenExternalIDs[game.ExternalID] = struct{}{}
	b.accepted = append(b.accepted, Recommendation{
		GameID:      game.ID,
		ExternalID:  game.ExternalID,
		Name:        game.Name,
		ImageURL:    game.ImageURL,
		Rating:      game.Rating,
		ReleaseDate: game.ReleaseDate,
		Reason:      candidate.Reason,
	})
}

// Resolver maps provider candidates onto canonical games.
type Resolver struct {
	store   GameStore
	catalog CatalogSearcher
	logger  *zap.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(store GameStore, searcher CatalogSearcher, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, catalog: searcher, logger: logger}
}

// ResolveAll resolves candidates in order and returns the accepted recommendations.
// Unresolvable candidates are skipped; only store failures abort the batch.
func (r *Resolver) ResolveAll(ctx context.Context, candidates []Candidate, excludedNames []string, collectedIDs []int64) ([]Recommendation, error) {
	batch := newResolutionBatch(excludedNames, collectedIDs)
	for _, candidate := range candidates {
		outcome, err := r.resolve(ctx, batch, candidate)
		if err != nil {
			return nil, err
		}
		if outcome != outcomeAccepted {
			r.logger.Debug("recommendation candidate skipped",
				zap.String("operation", opResolve),
				zap.String(fieldCandidate, candidate.Name),
				zap.Stringer(fieldOutcome, outcome))
		}
	}
	r.logger.Debug("recommendation candidates resolved",
		zap.String("operation", opResolve),
		zap.Int("candidate_count", len(candidates)),
		zap.Int(fieldAcceptedCount, len(batch.accepted)))
	return batch.accepted, nil
}

func (r *Resolver) resolve(ctx context.Context, batch *resolutionBatch, candidate Candidate) (resolutionOutcome, error) {
	if _, excluded := batch.excludedNames[candidate.Name]; excluded {
		return outcomeExcludedName, nil
	}
	if _, seen := batch.seenNames[candidate.Name]; seen {
		return outcomeDuplicateName, nil
	}

	game, found, err := r.store.FindByName(ctx, candidate.Name)
	if err != nil {
		return 0, newServiceError(opResolve, reasonStoreFailed, ErrUnexpectedInternal, err)
	}
	if found {
		if _, seen := batch.seenExternalIDs[game.ExternalID]; seen {
			return outcomeDuplicateGame, nil
		}
	} else {
		var outcome resolutionOutcome
		game, outcome, err = r.resolveThroughCatalog(ctx, batch, candidate)
		if err != nil || outcome != outcomeAccepted {
			return outcome, err
		}
	}

	if _, collected := batch.collectedIDs[game.ExternalID]; collected {
		return outcomeAlreadyCollected, nil
	}
	batch.accept(candidate, game)
	return outcomeAccepted, nil
}

func (r *Resolver) resolveThroughCatalog(ctx context.Context, batch *resolutionBatch, candidate Candidate) (games.Game, resolutionOutcome, error) {
	hits, err := r.catalog.SearchByName(ctx, candidate.Name)
	if err != nil {
		r.logger.Warn("catalog search failed for candidate",
			zap.String("operation", opResolve),
			zap.String(fieldCandidate, candidate.Name),
			zap.Error(err))
		return games.Game{}, outcomeSearchFailed, nil
	}
	if len(hits) == 0 {
		return games.Game{}, outcomeNoMatch, nil
	}
	hit := hits[0]
	if _, seen := batch.seenExternalIDs[hit.ExternalID]; seen {
		return games.Game{}, outcomeDuplicateGame, nil
	}

	game, found, err := r.store.FindByExternalID(ctx, hit.ExternalID)
	if err != nil {
		return games.Game{}, 0, newServiceError(opResolve, reasonStoreFailed, ErrUnexpectedInternal, err)
	}
	if !found {
		game, err = r.store.CreateFromCatalog(ctx, games.NewGameFromHit(hit))
		if err != nil {
			return games.Game{}, 0, newServiceError(opResolve, reasonStoreFailed, ErrUnexpectedInternal, err)
		}
		return game, outcomeAccepted, nil
	}

	if game.Name != hit.Name {
		if err := r.store.Rename(ctx, game.ID, hit.Name); err != nil {
			return games.Game{}, 0, newServiceError(opResolve, reasonStoreFailed, ErrUnexpectedInternal, err)
		}
		r.logger.Info("catalog name drift reconciled",
			zap.String("operation", opResolve),
			zap.Int64(fieldExternalID, game.ExternalID),
			zap.String("previous_name", game.Name),
			zap.String("name", hit.Name))
		game.Name = hit.Name
	}
	return game, outcomeAccepted, nil
}
