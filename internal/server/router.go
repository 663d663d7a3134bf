package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rubberart7/GameDex-sub001/internal/auth"
	"github.com/rubberart7/GameDex-sub001/internal/recommendations"
	"github.com/rubberart7/GameDex-sub001/internal/users"
	"go.uber.org/zap"
)

const (
	userIDContextKey          = "gamedex_user_id"
	codeSessionInvalid        = "server.authorize.session_invalid"
	codeIdentityInvalid       = "server.authorize.identity_invalid"
	codeIdentityFailed        = "server.authorize.identity_failed"
	kindUnexpectedInternal    = "unexpected_internal_error"
	kindAuthenticationMissing = "authentication_required"
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingUserResolver     = errors.New("user resolver dependency required")
	errMissingRecommendations  = errors.New("recommendation service dependency required")
)

// SessionValidator authenticates incoming requests.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// UserResolver maps session claims onto a local user identifier.
type UserResolver interface {
	ResolveUserID(ctx context.Context, claims auth.SessionClaims) (string, error)
}

// RecommendationService serves cached or freshly generated recommendations.
type RecommendationService interface {
	GetOrGenerate(ctx context.Context, userID string) (recommendations.Result, error)
}

// Dependencies wires the HTTP handler.
type Dependencies struct {
	SessionValidator SessionValidator
	Users            UserResolver
	Recommendations  RecommendationService
	// AllowedOrigins lists the browser origins that may send credentialed
	// cross-origin requests. Empty means same-origin only.
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin engine serving the GameDex API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Users == nil {
		return nil, errMissingUserResolver
	}
	if deps.Recommendations == nil {
		return nil, errMissingRecommendations
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if len(deps.AllowedOrigins) > 0 {
		router.Use(corsMiddleware(deps.AllowedOrigins))
	}

	handler := &httpHandler{
		sessions:        deps.SessionValidator,
		users:           deps.Users,
		recommendations: deps.Recommendations,
		logger:          logger,
	}

	router.GET("/healthz", handler.handleHealth)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/recommendations", handler.handleRecommendations)

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     append([]string(nil), allowedOrigins...),
		AllowMethods:     []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

type httpHandler struct {
	sessions        SessionValidator
	users           UserResolver
	recommendations RecommendationService
	logger          *zap.Logger
}

type recommendationPayload struct {
	ID          string   `json:"id"`
	ExternalID  int64    `json:"external_id"`
	Name        string   `json:"name"`
	ImageURL    *string  `json:"image_url"`
	Rating      *float64 `json:"rating"`
	ReleaseDate *string  `json:"release_date"`
	Reason      string   `json:"reason"`
}

type recommendationsResponsePayload struct {
	Source          string                  `json:"source"`
	GeneratedAt     *time.Time              `json:"generated_at"`
	Message         string                  `json:"message,omitempty"`
	Recommendations []recommendationPayload `json:"recommendations"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleRecommendations(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	result, err := h.recommendations.GetOrGenerate(c.Request.Context(), userID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response := recommendationsResponsePayload{
		Source:          string(result.Source),
		Message:         result.Message,
		Recommendations: make([]recommendationPayload, 0, len(result.Recommendations)),
	}
	if !result.GeneratedAt.IsZero() {
		generatedAt := result.GeneratedAt.UTC()
		response.GeneratedAt = &generatedAt
	}
	for _, recommendation := range result.Recommendations {
		response.Recommendations = append(response.Recommendations, recommendationPayload{
			ID:          recommendation.GameID,
			ExternalID:  recommendation.ExternalID,
			Name:        recommendation.Name,
			ImageURL:    recommendation.ImageURL,
			Rating:      recommendation.Rating,
			ReleaseDate: recommendation.ReleaseDate,
			Reason:      recommendation.Reason,
		})
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) writeServiceError(c *gin.Context, err error) {
	kind := recommendations.KindOf(err)
	status := statusForKind(kind)
	code := kind.Error()
	var serviceErr *recommendations.ServiceError
	if errors.As(err, &serviceErr) {
		code = serviceErr.Code()
	}

	fields := []zap.Field{
		zap.String("code", code),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("recommendation request failed", fields...)
	} else {
		h.logger.Info("recommendation request rejected", fields...)
	}
	c.JSON(status, gin.H{"error": kind.Error(), "code": code})
}

func statusForKind(kind error) int {
	switch {
	case errors.Is(kind, recommendations.ErrAuthenticationRequired):
		return http.StatusUnauthorized
	case errors.Is(kind, recommendations.ErrConfigurationMissing):
		return http.StatusServiceUnavailable
	case errors.Is(kind, recommendations.ErrUpstreamUnavailable),
		errors.Is(kind, recommendations.ErrResponseFormatInvalid):
		return http.StatusBadGateway
	case errors.Is(kind, recommendations.ErrNotFoundUpstream):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("session validation failed", zap.Error(err))
		} else {
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": kindAuthenticationMissing, "code": codeSessionInvalid})
		return
	}

	userID, err := h.users.ResolveUserID(c.Request.Context(), claims)
	if err != nil {
		if errors.Is(err, users.ErrInvalidIdentity) {
			h.logger.Warn("session carried no usable identity", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": kindAuthenticationMissing, "code": codeIdentityInvalid})
			return
		}
		h.logger.Error("user resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": kindUnexpectedInternal, "code": codeIdentityFailed})
		return
	}
	c.Set(userIDContextKey, userID)
	c.Next()
}
