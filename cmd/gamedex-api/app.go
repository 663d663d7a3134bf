package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/rubberart7/GameDex-sub001/internal/ai"
	"github.com/rubberart7/GameDex-sub001/internal/catalog"
	"github.com/rubberart7/GameDex-sub001/internal/config"
	"github.com/rubberart7/GameDex-sub001/internal/database"
	"github.com/rubberart7/GameDex-sub001/internal/games"
	"github.com/rubberart7/GameDex-sub001/internal/logging"
	"github.com/rubberart7/GameDex-sub001/internal/recommendations"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const catalogRequestTimeout = 15 * time.Second

// application holds the shared wiring of the server and CLI commands.
type application struct {
	config    config.AppConfig
	logger    *zap.Logger
	db        *gorm.DB
	sqlDB     *sql.DB
	catalog   *catalog.Client
	gameStore *games.Store
}

func newApplication() (*application, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	catalogClient, err := catalog.NewClient(catalog.ClientConfig{
		BaseURL:           appConfig.CatalogBaseURL,
		APIKey:            appConfig.CatalogAPIKey,
		HTTPClient:        &http.Client{Timeout: catalogRequestTimeout},
		RequestsPerSecond: appConfig.CatalogRPS,
		Logger:            logger,
	})
	if err != nil {
		_ = sqlDB.Close()
		_ = logger.Sync()
		return nil, err
	}

	gameStore, err := games.NewStore(games.StoreConfig{
		Database:   db,
		IDProvider: games.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		_ = sqlDB.Close()
		_ = logger.Sync()
		return nil, err
	}

	return &application{
		config:    appConfig,
		logger:    logger,
		db:        db,
		sqlDB:     sqlDB,
		catalog:   catalogClient,
		gameStore: gameStore,
	}, nil
}

func (a *application) recommendationService() (*recommendations.Service, error) {
	var completer recommendations.Completer
	if a.config.AIConfigured() {
		aiCompleter, err := ai.NewCompleter(ai.CompleterConfig{
			APIKey:  a.config.AIAPIKey,
			BaseURL: a.config.AIBaseURL,
			Model:   a.config.AIModel,
		})
		if err != nil {
			return nil, err
		}
		completer = aiCompleter
	} else {
		a.logger.Warn("generative provider is not configured; recommendation requests will fail with configuration_missing")
	}

	cacheStore, err := recommendations.NewCacheStore(a.db, a.logger)
	if err != nil {
		return nil, err
	}

	return recommendations.NewService(recommendations.ServiceConfig{
		Collections: a.gameStore,
		Games:       a.gameStore,
		Catalog:     a.catalog,
		Cache:       cacheStore,
		Suggester: recommendations.NewSuggestionProvider(recommendations.SuggestionProviderConfig{
			Completer: completer,
			Timeout:   a.config.AITimeout,
			Logger:    a.logger,
		}),
		Policy: recommendations.Policy{
			RatingThreshold: a.config.RatingThreshold,
			TopRatedLimit:   a.config.TopRatedLimit,
			FallbackLimit:   a.config.FallbackLimit,
			SuggestionCount: a.config.SuggestionCount,
		},
		Logger: a.logger,
	})
}

func (a *application) Close() {
	_ = a.sqlDB.Close()
	_ = a.logger.Sync()
}
