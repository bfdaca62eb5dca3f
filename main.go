package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/anisync-go/internal/api"
	"github.com/vrsandeep/anisync-go/internal/core"
	"github.com/vrsandeep/anisync-go/internal/jobs"
	"github.com/vrsandeep/anisync-go/internal/statussync"
	"github.com/vrsandeep/anisync-go/internal/util"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	app, err := core.New(version)
	if err != nil {
		log.Fatal().Err(err).Msg("Fatal error during application setup")
	}
	defer app.Close()

	cfg := app.Config()
	if err := util.EnsureWritableDir(cfg.Download.Path); err != nil {
		log.Fatal().Err(err).Str("path", cfg.Download.Path).Msg("Download directory is not usable")
	}

	checkCtx, checkCancel := context.WithTimeout(context.Background(), cfg.ExecutorTimeout())
	remote, same, err := app.CheckSavePath(checkCtx)
	checkCancel()
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("Could not read the executor save path")
	case !same:
		log.Warn().Str("executor_save_path", remote).Str("download_path", cfg.Download.Path).
			Msg("Executor save path differs from download.path, downloaded files will not be found locally")
	}

	go app.WsHub().Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Picks up tasks that finished or lost their rename between passes.
	sweeps, err := jobs.StartSweeps(ctx, cfg.Sync.IntervalSeconds, func(ctx context.Context) error {
		_, err := app.Sweep(ctx)
		if errors.Is(err, jobs.ErrPassInFlight) {
			log.Debug().Msg("Pass in flight, skipping status sync")
			return nil
		}
		return err
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Could not schedule status sync")
	}
	defer sweeps.Stop()

	if cfg.Sync.WatchDownloads {
		watcher := statussync.NewWatcher(app.Sync())
		if err := watcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Download directory watcher disabled")
		} else {
			defer watcher.Stop()
		}
	}

	if cfg.Loop.Autostart {
		if err := app.Loop().Start(); err != nil {
			log.Error().Err(err).Msg("Could not start the reconciliation loop")
		}
	}

	server := api.NewServer(app)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: server.Router(),
	}
	go func() {
		log.Info().Str("addr", httpServer.Addr).Str("version", version).Msg("Starting web server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Could not start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exiting")
}
