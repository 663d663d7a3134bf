package recommendations

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type stubCompleter struct {
	response string
	err      error
	prompts  []string
	block    bool
}

func (c *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	if c.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return c.response, c.err
}

func TestSuggestParsesCandidates(t *testing.T) {
	testCases := map[string]string{
		"bare":   `[{"name":"Hades","reason":"Tight combat"},{"name":" Celeste ","reason":" Precise platforming "}]`,
		"fenced": "```json\n[{\"name\":\"Hades\",\"reason\":\"Tight combat\"},{\"name\":\"Celeste\",\"reason\":\"Precise platforming\"}]\n```",
	}
	for name, response := range testCases {
		t.Run(name, func(t *testing.T) {
			provider := NewSuggestionProvider(SuggestionProviderConfig{Completer: &stubCompleter{response: response}})
			candidates, err := provider.Suggest(context.Background(), TasteProfile{}, 12)
			if err != nil {
				t.Fatalf("suggest failed: %v", err)
			}
			if len(candidates) != 2 {
				t.Fatalf("expected two candidates, got %d", len(candidates))
			}
			if candidates[1].Name != "Celeste" || candidates[1].Reason != "Precise platforming" {
				t.Fatalf("unexpected candidate %+v", candidates[1])
			}
		})
	}
}

func TestSuggestRejectsNonConformingOutput(t *testing.T) {
	testCases := map[string]string{
		"prose":          "Sure! Here are some games you might like: Hades, Celeste.",
		"object":         `{"name":"Hades","reason":"combat"}`,
		"truncated":      `[{"name":"Hades","reason":"combat"}`,
		"missing reason": `[{"name":"Hades","reason":"combat"},{"name":"Celeste"}]`,
		"blank name":     `[{"name":"   ","reason":"combat"}]`,
		"null element":   `[{"name":"Hades","reason":"combat"},null]`,
		"wrong type":     `[{"name":42,"reason":"combat"}]`,
		"empty":          "",
	}
	for name, response := range testCases {
		t.Run(name, func(t *testing.T) {
			provider := NewSuggestionProvider(SuggestionProviderConfig{Completer: &stubCompleter{response: response}})
			candidates, err := provider.Suggest(context.Background(), TasteProfile{}, 12)
			if !errors.Is(err, ErrResponseFormatInvalid) {
				t.Fatalf("expected response format error, got %v", err)
			}
			if candidates != nil {
				t.Fatalf("expected no partial acceptance, got %+v", candidates)
			}
		})
	}
}

func TestSuggestMapsProviderFailures(t *testing.T) {
	provider := NewSuggestionProvider(SuggestionProviderConfig{Completer: &stubCompleter{err: errors.New("connection refused")}})
	if _, err := provider.Suggest(context.Background(), TasteProfile{}, 12); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}

	blocking := NewSuggestionProvider(SuggestionProviderConfig{Completer: &stubCompleter{block: true}, Timeout: 10 * time.Millisecond})
	_, err := blocking.Suggest(context.Background(), TasteProfile{}, 12)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected timeout to map to upstream unavailable, got %v", err)
	}
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "recommendations.suggest.provider_timeout" {
		t.Fatalf("expected timeout code, got %v", err)
	}
}

func TestSuggestWithoutCompleterIsUnconfigured(t *testing.T) {
	provider := NewSuggestionProvider(SuggestionProviderConfig{})
	if provider.Configured() {
		t.Fatalf("expected provider without completer to be unconfigured")
	}
	if _, err := provider.Suggest(context.Background(), TasteProfile{}, 12); !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected configuration missing, got %v", err)
	}
}

func TestBuildPromptCarriesCountFavoritesAndExclusions(t *testing.T) {
	prompt := BuildPrompt(TasteProfile{
		Favorites:     []string{"Hades", "Celeste"},
		ExcludedNames: []string{"Hades", "Celeste", `Baldur's Gate "3"`},
	}, 12)

	for _, fragment := range []string{
		"exactly 12",
		`["Hades","Celeste"]`,
		`Baldur's Gate \"3\"`,
		"JSON array",
		`"reason"`,
	} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("expected prompt to contain %q, got:\n%s", fragment, prompt)
		}
	}

	empty := BuildPrompt(TasteProfile{}, 12)
	if !strings.Contains(empty, "Never recommend any of these games: [].") {
		t.Fatalf("expected empty exclusion list in prompt, got:\n%s", empty)
	}
}
