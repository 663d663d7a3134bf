package recommendations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	opSuggest              = "recommendations.suggest"
	reasonProviderFailed   = "provider_failed"
	reasonProviderTimeout  = "provider_timeout"
	reasonNotConfigured    = "provider_not_configured"
	reasonUnparseable      = "unparseable_response"
	reasonCandidateInvalid = "candidate_invalid"
	codeFence              = "```"
	defaultProviderTimeout = 30 * time.Second
)

var errNotJSONArray = errors.New("response is not a JSON array")

// Completer turns a prompt into raw provider text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Candidate is a provider suggestion not yet verified against the catalog.
type Candidate struct {
	Name   string `json:"name" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

// SuggestionProviderConfig describes the dependencies of a SuggestionProvider.
type SuggestionProviderConfig struct {
	Completer Completer
	Timeout   time.Duration
	Logger    *zap.Logger
}

// SuggestionProvider prompts the generative provider and enforces its output contract.
type SuggestionProvider struct {
	completer Completer
	timeout   time.Duration
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewSuggestionProvider builds a SuggestionProvider. A nil Completer yields an
// unconfigured provider whose Suggest reports ErrConfigurationMissing.
func NewSuggestionProvider(cfg SuggestionProviderConfig) *SuggestionProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SuggestionProvider{
		completer: cfg.Completer,
		timeout:   timeout,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

// Configured reports whether a completer is available.
func (p *SuggestionProvider) Configured() bool {
	return p != nil && p.completer != nil
}

// Suggest requests count candidates for the taste profile. The whole batch is
// rejected when any element breaks the output contract.
func (p *SuggestionProvider) Suggest(ctx context.Context, profile TasteProfile, count int) ([]Candidate, error) {
	if !p.Configured() {
		return nil, newServiceError(opSuggest, reasonNotConfigured, ErrConfigurationMissing, nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.completer.Complete(callCtx, BuildPrompt(profile, count))
	if err != nil {
		reason := reasonProviderFailed
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = reasonProviderTimeout
		}
		p.logger.Warn("suggestion provider call failed",
			zap.String("operation", opSuggest),
			zap.String("reason", reason),
			zap.Error(err))
		return nil, newServiceError(opSuggest, reason, ErrUpstreamUnavailable, err)
	}

	candidates, err := p.parseCandidates(raw)
	if err != nil {
		p.logger.Warn("suggestion provider returned malformed output",
			zap.String("operation", opSuggest),
			zap.Int("response_length", len(raw)),
			zap.Error(err))
		return nil, err
	}
	return candidates, nil
}

func (p *SuggestionProvider) parseCandidates(raw string) ([]Candidate, error) {
	body := stripCodeFence(raw)
	if !strings.HasPrefix(body, "[") {
		return nil, newServiceError(opSuggest, reasonUnparseable, ErrResponseFormatInvalid, errNotJSONArray)
	}

	var candidates []Candidate
	if err := json.Unmarshal([]byte(body), &candidates); err != nil {
		return nil, newServiceError(opSuggest, reasonUnparseable, ErrResponseFormatInvalid, err)
	}
	for index := range candidates {
		candidates[index].Name = strings.TrimSpace(candidates[index].Name)
		candidates[index].Reason = strings.TrimSpace(candidates[index].Reason)
		if err := p.validate.Struct(candidates[index]); err != nil {
			return nil, newServiceError(opSuggest, reasonCandidateInvalid, ErrResponseFormatInvalid,
				fmt.Errorf("candidate %d: %w", index, err))
		}
	}
	return candidates, nil
}

func stripCodeFence(raw string) string {
	body := strings.TrimSpace(raw)
	if !strings.HasPrefix(body, codeFence) {
		return body
	}
	body = strings.TrimPrefix(body, codeFence)
	if newline := strings.IndexByte(body, '\n'); newline >= 0 {
		body = body[newline+1:]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), codeFence)
	return strings.TrimSpace(body)
}

// BuildPrompt renders the single instruction sent to the generative provider.
func BuildPrompt(profile TasteProfile, count int) string {
	favorites, _ := json.Marshal(nonNil(profile.Favorites))
	excluded, _ := json.Marshal(nonNil(profile.ExcludedNames))

	var builder strings.Builder
	fmt.Fprintf(&builder, "Recommend exactly %d video games for a player who enjoys these games: %s.\n", count, favorites)
	fmt.Fprintf(&builder, "Never recommend any of these games: %s.\n", excluded)
	builder.WriteString("Respond with only a JSON array and nothing else. ")
	builder.WriteString(`Each element must be an object of the form {"name": "<exact game title>", "reason": "<one short sentence>"}.`)
	return builder.String()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
