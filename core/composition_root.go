package core

import (
	"github.com/tokenlens/tokenlens/aggregator"
	"github.com/tokenlens/tokenlens/analysis"
	"github.com/tokenlens/tokenlens/api"
	"github.com/tokenlens/tokenlens/bubblemaps"
	"github.com/tokenlens/tokenlens/capture"
	"github.com/tokenlens/tokenlens/coingecko"
	"github.com/tokenlens/tokenlens/config"
	"github.com/tokenlens/tokenlens/storage"
	"github.com/tokenlens/tokenlens/telegram"
	"github.com/tokenlens/tokenlens/token"
)

// Setup creates and registers all services
func Setup(cfg *config.Config) (*Registry, error) {
	registry := NewRegistry()

	validator := token.NewValidator(cfg.Chains)

	// Metrics aggregation over the two independent providers
	marketClient := coingecko.NewClient(cfg)
	holderClient := bubblemaps.NewClient(cfg)
	aggregatorService := aggregator.New(marketClient, holderClient)

	// Capture engine over a pool of headless Chrome sessions
	captureEngine := capture.NewEngine(cfg, capture.NewChromeLauncher(cfg))
	registry.Register(captureEngine)

	// Request coordinator
	analysisService := analysis.NewService(cfg, validator, aggregatorService, captureEngine)
	registry.Register(analysisService)

	// Ephemeral screenshot storage with its sweep loop
	store := storage.NewStore(cfg.Storage)
	registry.Register(store)

	// Adapters: HTTP API and the Telegram bot
	server := api.New(cfg.Port, analysisService, cfg.Chains)
	registry.Register(server)

	bot := telegram.NewBot(cfg, analysisService, store)
	registry.Register(bot)

	return registry, nil
}
