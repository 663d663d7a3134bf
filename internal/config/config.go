package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rubberart7/GameDex-sub001/internal/logging"
	"github.com/spf13/viper"
)

const (
	envPrefix                 = "GAMEDEX"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabasePath       = "gamedex.db"
	defaultLogLevel           = "info"
	defaultCookieName         = "app_session"
	defaultSessionIssuer      = "tauth"
	defaultCatalogBaseURL     = "https://api.rawg.io/api"
	defaultCatalogRPS         = 5.0
	defaultAIBaseURL          = "https://api.openai.com/v1"
	defaultAIModel            = "gpt-4o-mini"
	defaultAITimeoutSeconds   = 30
	defaultRatingThreshold    = 4.0
	defaultTopRatedLimit      = 3
	defaultFallbackLimit      = 5
	defaultSuggestionCount    = 12
	maxRecommendationRating   = 5.0
	maxSuggestionCountAllowed = 50
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	AllowedOrigins  []string
	DatabasePath    string
	LogLevel        string
	TAuthSigningKey string
	TAuthCookieName string
	TAuthIssuer     string
	CatalogBaseURL  string
	CatalogAPIKey   string
	CatalogRPS      float64
	AIAPIKey        string
	AIBaseURL       string
	AIModel         string
	AITimeout       time.Duration
	RatingThreshold float64
	TopRatedLimit   int
	FallbackLimit   int
	SuggestionCount int
}

// AIConfigured reports whether a generative provider credential is present.
func (c AppConfig) AIConfigured() bool {
	return strings.TrimSpace(c.AIAPIKey) != ""
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{})
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("tauth.cookie_name", defaultCookieName)
	configViper.SetDefault("tauth.issuer", defaultSessionIssuer)
	configViper.SetDefault("catalog.base_url", defaultCatalogBaseURL)
	configViper.SetDefault("catalog.requests_per_second", defaultCatalogRPS)
	configViper.SetDefault("ai.base_url", defaultAIBaseURL)
	configViper.SetDefault("ai.model", defaultAIModel)
	configViper.SetDefault("ai.timeout_seconds", defaultAITimeoutSeconds)
	configViper.SetDefault("recommendations.rating_threshold", defaultRatingThreshold)
	configViper.SetDefault("recommendations.top_rated_limit", defaultTopRatedLimit)
	configViper.SetDefault("recommendations.fallback_limit", defaultFallbackLimit)
	configViper.SetDefault("recommendations.suggestion_count", defaultSuggestionCount)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		AllowedOrigins:  normalizeOrigins(configViper.GetStringSlice("http.allowed_origins")),
		DatabasePath:    configViper.GetString("database.path"),
		LogLevel:        configViper.GetString("log.level"),
		TAuthSigningKey: configViper.GetString("tauth.signing_secret"),
		TAuthCookieName: configViper.GetString("tauth.cookie_name"),
		TAuthIssuer:     configViper.GetString("tauth.issuer"),
		CatalogBaseURL:  configViper.GetString("catalog.base_url"),
		CatalogAPIKey:   configViper.GetString("catalog.api_key"),
		CatalogRPS:      configViper.GetFloat64("catalog.requests_per_second"),
		AIAPIKey:        configViper.GetString("ai.api_key"),
		AIBaseURL:       configViper.GetString("ai.base_url"),
		AIModel:         configViper.GetString("ai.model"),
		AITimeout:       time.Duration(configViper.GetInt("ai.timeout_seconds")) * time.Second,
		RatingThreshold: configViper.GetFloat64("recommendations.rating_threshold"),
		TopRatedLimit:   configViper.GetInt("recommendations.top_rated_limit"),
		FallbackLimit:   configViper.GetInt("recommendations.fallback_limit"),
		SuggestionCount: configViper.GetInt("recommendations.suggestion_count"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// ValidateServer checks the settings only the HTTP server needs: session
// validation and the browser origins allowed to send credentialed requests.
func (c AppConfig) ValidateServer() error {
	if strings.TrimSpace(c.TAuthSigningKey) == "" {
		return fmt.Errorf("tauth.signing_secret is required")
	}
	if strings.TrimSpace(c.TAuthCookieName) == "" {
		return fmt.Errorf("tauth.cookie_name is required")
	}
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			return fmt.Errorf("http.allowed_origins must list explicit origins; \"*\" cannot carry session cookies")
		}
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("http.allowed_origins entry %q must start with http:// or https://", origin)
		}
	}
	return nil
}

func normalizeOrigins(raw []string) []string {
	origins := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, origin := range strings.Split(entry, ",") {
			origin = strings.TrimRight(strings.TrimSpace(origin), "/")
			if origin != "" {
				origins = append(origins, origin)
			}
		}
	}
	return origins
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if strings.TrimSpace(c.CatalogBaseURL) == "" {
		return fmt.Errorf("catalog.base_url is required")
	}
	if c.CatalogRPS <= 0 {
		return fmt.Errorf("catalog.requests_per_second must be positive, got %v", c.CatalogRPS)
	}
	if strings.TrimSpace(c.AIModel) == "" {
		return fmt.Errorf("ai.model is required")
	}
	if c.AITimeout <= 0 {
		return fmt.Errorf("ai.timeout_seconds must be positive")
	}
	if c.RatingThreshold <= 0 || c.RatingThreshold > maxRecommendationRating {
		return fmt.Errorf("recommendations.rating_threshold must be within (0, %v], got %v", maxRecommendationRating, c.RatingThreshold)
	}
	if c.TopRatedLimit <= 0 || c.FallbackLimit <= 0 {
		return fmt.Errorf("recommendations taste limits must be positive")
	}
	if c.SuggestionCount <= 0 || c.SuggestionCount > maxSuggestionCountAllowed {
		return fmt.Errorf("recommendations.suggestion_count must be within 1-%d, got %d", maxSuggestionCountAllowed, c.SuggestionCount)
	}
	return nil
}
