package recommendations

import (
	"github.com/rubberart7/GameDex-sub001/internal/games"
)

const (
	defaultRatingThreshold = 4.0
	defaultTopRatedLimit   = 3
	defaultFallbackLimit   = 5
	defaultSuggestionCount = 12
)

// Policy tunes taste summarization and the requested suggestion count.
type Policy struct {
	RatingThreshold float64
	TopRatedLimit   int
	FallbackLimit   int
	SuggestionCount int
}

// DefaultPolicy returns rating >= 4.0, top 3 favorites, first 5 as fallback, 12 suggestions.
func DefaultPolicy() Policy {
	return Policy{
		RatingThreshold: defaultRatingThreshold,
		TopRatedLimit:   defaultTopRatedLimit,
		FallbackLimit:   defaultFallbackLimit,
		SuggestionCount: defaultSuggestionCount,
	}
}

func (p Policy) withDefaults() Policy {
	defaults := DefaultPolicy()
	if p.RatingThreshold <= 0 {
		p.RatingThreshold = defaults.RatingThreshold
	}
	if p.TopRatedLimit <= 0 {
		p.TopRatedLimit = defaults.TopRatedLimit
	}
	if p.FallbackLimit <= 0 {
		p.FallbackLimit = defaults.FallbackLimit
	}
	if p.SuggestionCount <= 0 {
		p.SuggestionCount = defaults.SuggestionCount
	}
	return p
}

// TasteProfile is the prompt input derived from a collection.
type TasteProfile struct {
	Favorites     []string
	ExcludedNames []string
}

// summarizeTaste picks highly rated names, falling back to the first names of the
// collection when nothing qualifies. Every collection name is excluded.
func summarizeTaste(collection []games.Game, policy Policy) TasteProfile {
	favorites := make([]string, 0, policy.TopRatedLimit)
	for _, game := range collection {
		if len(favorites) == policy.TopRatedLimit {
			break
		}
		if game.Rating != nil && *game.Rating >= policy.RatingThreshold {
			favorites = append(favorites, game.Name)
		}
	}
	if len(favorites) == 0 {
		for _, game := range collection {
			if len(favorites) == policy.FallbackLimit {
				break
			}
			favorites = append(favorites, game.Name)
		}
	}

	excluded := make([]string, 0, len(collection))
	for _, game := range collection {
		excluded = append(excluded, game.Name)
	}
	return TasteProfile{Favorites: favorites, ExcludedNames: excluded}
}
