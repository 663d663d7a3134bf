package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rubberart7/GameDex-sub001/internal/ai"
	"github.com/rubberart7/GameDex-sub001/internal/auth"
	"github.com/rubberart7/GameDex-sub001/internal/catalog"
	"github.com/rubberart7/GameDex-sub001/internal/database"
	"github.com/rubberart7/GameDex-sub001/internal/games"
	"github.com/rubberart7/GameDex-sub001/internal/recommendations"
	"github.com/rubberart7/GameDex-sub001/internal/users"
	"go.uber.org/zap"
)

const (
	integrationSigningSecret = "integration-secret"
	integrationCookieName    = "app_session"
	integrationUserID        = "google:player-1"
)

func TestRecommendationsFlowGeneratesThenServesFromCache(testContext *testing.T) {
	gin.SetMode(gin.TestMode)

	catalogServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/games/10":
			_, _ = w.Write([]byte(`{"id":10,"name":"Hades","rating":4.4,"released":"2020-09-17","background_image":"https://media.example.com/hades.jpg"}`))
		case r.URL.Path == "/games" && r.URL.Query().Get("search") == "Celeste":
			_, _ = w.Write([]byte(`{"results":[{"id":20,"name":"Celeste","rating":4.3,"released":"2018-01-25"}]}`))
		case r.URL.Path == "/games" && r.URL.Query().Get("search") == "Celeste Classic":
			_, _ = w.Write([]byte(`{"results":[{"id":20,"name":"Celeste","rating":4.3,"released":"2018-01-25"}]}`))
		case r.URL.Path == "/games":
			_, _ = w.Write([]byte(`{"results":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	testContext.Cleanup(catalogServer.Close)

	var completions atomic.Int32
	aiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		completions.Add(1)
		suggestions := `[{"name":"Hades","reason":"Already loved"},{"name":"Celeste","reason":"Tight platforming"},{"name":"Celeste Classic","reason":"Same game"},{"name":"Unknown Indie","reason":"Hidden gem"}]`
		content, _ := json.Marshal(suggestions)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1700000000,"model":"gpt-4o-mini","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":%s}}]}`, content)
	}))
	testContext.Cleanup(aiServer.Close)

	db, err := database.OpenSQLite(filepath.Join(testContext.TempDir(), "gamedex.db"), zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	catalogClient, err := catalog.NewClient(catalog.ClientConfig{BaseURL: catalogServer.URL})
	if err != nil {
		testContext.Fatalf("failed to build catalog client: %v", err)
	}
	gameStore, err := games.NewStore(games.StoreConfig{Database: db, IDProvider: games.NewUUIDProvider()})
	if err != nil {
		testContext.Fatalf("failed to build game store: %v", err)
	}
	collectionService, err := games.NewService(games.ServiceConfig{Store: gameStore, Catalog: catalogClient})
	if err != nil {
		testContext.Fatalf("failed to build collection service: %v", err)
	}
	completer, err := ai.NewCompleter(ai.CompleterConfig{APIKey: "test-key", BaseURL: aiServer.URL + "/v1"})
	if err != nil {
		testContext.Fatalf("failed to build completer: %v", err)
	}
	cacheStore, err := recommendations.NewCacheStore(db, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to build cache store: %v", err)
	}
	recommendationService, err := recommendations.NewService(recommendations.ServiceConfig{
		Collections: gameStore,
		Games:       gameStore,
		Catalog:     catalogClient,
		Cache:       cacheStore,
		Suggester:   recommendations.NewSuggestionProvider(recommendations.SuggestionProviderConfig{Completer: completer, Timeout: 5 * time.Second}),
	})
	if err != nil {
		testContext.Fatalf("failed to build recommendation service: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		testContext.Fatalf("failed to build user service: %v", err)
	}
	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(integrationSigningSecret),
		CookieName:    integrationCookieName,
	})
	if err != nil {
		testContext.Fatalf("failed to build session validator: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		SessionValidator: sessionValidator,
		Users:            userService,
		Recommendations:  recommendationService,
		Logger:           zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build http handler: %v", err)
	}
	apiServer := httptest.NewServer(handler)
	testContext.Cleanup(apiServer.Close)

	if _, err := collectionService.AddToCollection(context.Background(), "player-1", 10, games.CollectionKindOwned); err != nil {
		testContext.Fatalf("failed to seed collection: %v", err)
	}

	unauthenticated, err := http.Get(apiServer.URL + "/recommendations")
	if err != nil {
		testContext.Fatalf("anonymous request failed: %v", err)
	}
	_ = unauthenticated.Body.Close()
	if unauthenticated.StatusCode != http.StatusUnauthorized {
		testContext.Fatalf("expected 401 without a session, got %d", unauthenticated.StatusCode)
	}

	session := signIntegrationSession(testContext)
	first := fetchRecommendations(testContext, apiServer.URL, session)
	if first.Source != "generated" {
		testContext.Fatalf("expected generated recommendations, got %q", first.Source)
	}
	if len(first.Recommendations) != 1 {
		testContext.Fatalf("expected a single deduplicated recommendation, got %+v", first.Recommendations)
	}
	if first.Recommendations[0].ExternalID != 20 || first.Recommendations[0].Reason != "Tight platforming" {
		testContext.Fatalf("unexpected recommendation %+v", first.Recommendations[0])
	}

	second := fetchRecommendations(testContext, apiServer.URL, session)
	if second.Source != "cache" {
		testContext.Fatalf("expected cached recommendations, got %q", second.Source)
	}
	if len(second.Recommendations) != 1 || second.Recommendations[0].Reason != "Tight platforming" {
		testContext.Fatalf("expected cached list verbatim, got %+v", second.Recommendations)
	}
	if completions.Load() != 1 {
		testContext.Fatalf("expected one completion call, got %d", completions.Load())
	}

	if _, err := collectionService.AddToCollection(context.Background(), "player-1", 20, games.CollectionKindWishlisted); err != nil {
		testContext.Fatalf("failed to extend collection: %v", err)
	}
	third := fetchRecommendations(testContext, apiServer.URL, session)
	if third.Source != "empty" || len(third.Recommendations) != 0 {
		testContext.Fatalf("expected informational empty result after wishlisting the only suggestion, got %+v", third)
	}
	if completions.Load() != 2 {
		testContext.Fatalf("expected collection change to trigger regeneration, got %d calls", completions.Load())
	}
}

func fetchRecommendations(testContext *testing.T, baseURL, session string) recommendationsResponsePayload {
	testContext.Helper()
	request, err := http.NewRequest(http.MethodGet, baseURL+"/recommendations", http.NoBody)
	if err != nil {
		testContext.Fatalf("failed to build request: %v", err)
	}
	request.AddCookie(&http.Cookie{Name: integrationCookieName, Value: session})
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		testContext.Fatalf("request failed: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected status %d", response.StatusCode)
	}
	var payload recommendationsResponsePayload
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		testContext.Fatalf("failed to decode response: %v", err)
	}
	return payload
}

func signIntegrationSession(testContext *testing.T) string {
	testContext.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.SessionClaims{
		UserID:    integrationUserID,
		UserEmail: "player@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tauth",
			Subject:   integrationUserID,
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(integrationSigningSecret))
	if err != nil {
		testContext.Fatalf("failed to sign session: %v", err)
	}
	return signed
}
