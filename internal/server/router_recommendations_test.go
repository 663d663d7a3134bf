package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rubberart7/GameDex-sub001/internal/recommendations"
	"go.uber.org/zap"
)

type stubRecommendationService struct {
	result recommendations.Result
	err    error
	userID string
}

func (s *stubRecommendationService) GetOrGenerate(_ context.Context, userID string) (recommendations.Result, error) {
	s.userID = userID
	return s.result, s.err
}

func TestHandleRecommendationsRendersResult(testContext *testing.T) {
	rating := 4.4
	generatedAt := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	service := &stubRecommendationService{result: recommendations.Result{
		Source:      recommendations.SourceGenerated,
		GeneratedAt: generatedAt,
		Recommendations: []recommendations.Recommendation{
			{GameID: "g-1", ExternalID: 3328, Name: "The Witcher 3: Wild Hunt", Rating: &rating, Reason: "Story-driven open world"},
		},
	}}

	recorder := serveRecommendations(testContext, service)

	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected ok status, got %d", recorder.Code)
	}
	if service.userID != "user-1" {
		testContext.Fatalf("expected user id from context, got %q", service.userID)
	}
	var payload recommendationsResponsePayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		testContext.Fatalf("failed to decode response: %v", err)
	}
	if payload.Source != "generated" || payload.GeneratedAt == nil || !payload.GeneratedAt.Equal(generatedAt) {
		testContext.Fatalf("unexpected response metadata %+v", payload)
	}
	if len(payload.Recommendations) != 1 || payload.Recommendations[0].Reason != "Story-driven open world" || payload.Recommendations[0].ExternalID != 3328 {
		testContext.Fatalf("unexpected recommendations %+v", payload.Recommendations)
	}
	if payload.Recommendations[0].ImageURL != nil {
		testContext.Fatalf("expected absent image to stay null")
	}
}

func TestHandleRecommendationsRendersInformationalEmptyResult(testContext *testing.T) {
	service := &stubRecommendationService{result: recommendations.Result{
		Source:          recommendations.SourceEmpty,
		Message:         "nothing new",
		Recommendations: []recommendations.Recommendation{},
	}}

	recorder := serveRecommendations(testContext, service)

	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected ok status for empty result, got %d", recorder.Code)
	}
	expected := `{"source":"empty","generated_at":null,"message":"nothing new","recommendations":[]}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleRecommendationsMapsErrorKinds(testContext *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{name: "authentication", err: recommendations.ErrAuthenticationRequired, wantStatus: http.StatusUnauthorized, wantKind: "authentication_required"},
		{name: "configuration", err: recommendations.ErrConfigurationMissing, wantStatus: http.StatusServiceUnavailable, wantKind: "configuration_missing"},
		{name: "upstream", err: recommendations.ErrUpstreamUnavailable, wantStatus: http.StatusBadGateway, wantKind: "upstream_unavailable"},
		{name: "format", err: recommendations.ErrResponseFormatInvalid, wantStatus: http.StatusBadGateway, wantKind: "response_format_invalid"},
		{name: "not found", err: recommendations.ErrNotFoundUpstream, wantStatus: http.StatusNotFound, wantKind: "not_found_upstream"},
		{name: "internal", err: errors.New("disk full"), wantStatus: http.StatusInternalServerError, wantKind: "unexpected_internal_error"},
	}
	for _, testCase := range testCases {
		testContext.Run(testCase.name, func(testContext *testing.T) {
			recorder := serveRecommendations(testContext, &stubRecommendationService{err: testCase.err})
			if recorder.Code != testCase.wantStatus {
				testContext.Fatalf("expected status %d, got %d", testCase.wantStatus, recorder.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
				testContext.Fatalf("failed to decode error body: %v", err)
			}
			if body["error"] != testCase.wantKind || body["code"] == "" {
				testContext.Fatalf("unexpected error body %v", body)
			}
		})
	}
}

func TestNewHTTPHandlerRequiresDependencies(testContext *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); !errors.Is(err, errMissingSessionValidator) {
		testContext.Fatalf("expected missing session validator, got %v", err)
	}
	if _, err := NewHTTPHandler(Dependencies{SessionValidator: stubSessionValidator{}}); !errors.Is(err, errMissingUserResolver) {
		testContext.Fatalf("expected missing user resolver, got %v", err)
	}
	if _, err := NewHTTPHandler(Dependencies{SessionValidator: stubSessionValidator{}, Users: stubUserResolver{}}); !errors.Is(err, errMissingRecommendations) {
		testContext.Fatalf("expected missing recommendation service, got %v", err)
	}
}

func serveRecommendations(testContext *testing.T, service RecommendationService) *httptest.ResponseRecorder {
	testContext.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	context.Set(userIDContextKey, "user-1")
	context.Request = httptest.NewRequest(http.MethodGet, "/recommendations", http.NoBody)

	handler := &httpHandler{
		recommendations: service,
		logger:          zap.NewNop(),
	}
	handler.handleRecommendations(context)
	return recorder
}
