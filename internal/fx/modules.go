package fx

import (
	"rankboard/internal/config"
	"rankboard/internal/database"
	"rankboard/internal/discord"
	"rankboard/internal/logger"
	"rankboard/internal/parser"
	"rankboard/internal/state"
	syncer "rankboard/internal/sync"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// ProvideBlobStore selects the state persistence backend.
func ProvideBlobStore(cfg *config.Config, client *discord.Client, log zerolog.Logger) (state.BlobStore, error) {
	if cfg.StateBackend == "sqlite" {
		db, err := database.Open(cfg.DBPath, log)
		if err != nil {
			return nil, err
		}
		return state.NewSQLiteStore(db, log), nil
	}
	return discord.NewPinStore(client, cfg.ListenChannelID, log), nil
}

func ProvideOrchestrator(
	cfg *config.Config,
	p *parser.Parser,
	store state.BlobStore,
	client *discord.Client,
	log zerolog.Logger,
) *syncer.Orchestrator {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = logger.SetLevel(lvl)
	}
	return syncer.NewOrchestrator(cfg, p, store, client, client, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(parser.New),
	fx.Provide(discord.NewClient),
	fx.Provide(ProvideBlobStore),
	fx.Provide(ProvideOrchestrator),
)
