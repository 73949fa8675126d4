package main

import (
	"context"

	"rankboard/internal/constants"
	fxmodules "rankboard/internal/fx"
	syncer "rankboard/internal/sync"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runSync),
	).Run()
}

// runSync executes one batch pass and shuts the app down. A failed
// run exits non-zero so the scheduler surfaces it; the next scheduled
// invocation is always safe to retry.
func runSync(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	orch *syncer.Orchestrator,
	logger zerolog.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				runCtx, cancel := context.WithTimeout(context.Background(), constants.RunTimeout)
				defer cancel()

				if err := orch.Run(runCtx); err != nil {
					logger.Error().Err(err).Msg("sync run failed")
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
	})
}
