package core

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/anisync-go/internal/config"
	"github.com/vrsandeep/anisync-go/internal/db"
	"github.com/vrsandeep/anisync-go/internal/discovery"
	"github.com/vrsandeep/anisync-go/internal/discovery/mikan"
	"github.com/vrsandeep/anisync-go/internal/executor"
	"github.com/vrsandeep/anisync-go/internal/executor/qbittorrent"
	"github.com/vrsandeep/anisync-go/internal/jobs"
	"github.com/vrsandeep/anisync-go/internal/logger"
	"github.com/vrsandeep/anisync-go/internal/models"
	"github.com/vrsandeep/anisync-go/internal/pipeline"
	"github.com/vrsandeep/anisync-go/internal/statussync"
	"github.com/vrsandeep/anisync-go/internal/store"
	"github.com/vrsandeep/anisync-go/internal/websocket"
	"github.com/vrsandeep/anisync-go/migrations"
)

// App holds the core components of the application that are shared
// between the server and the CLI.
type App struct {
	config   *config.Config
	db       *sql.DB
	store    *store.Store
	wsHub    *websocket.Hub
	source   discovery.Source
	executor executor.Executor
	pipeline *pipeline.Pipeline
	sync     *statussync.Synchronizer
	loop     *jobs.Loop
	version  string
}

// New sets up and returns a new App instance. It handles loading the
// configuration, initializing the database connection, running migrations
// and connecting to the discovery source and the download client.
func New(version string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Pretty); err != nil {
		return nil, err
	}

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.RunMigrations(database, migrations.FS); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	source := mikan.New(cfg.Discovery.BaseURL, cfg.DiscoveryTimeout())
	exec, err := qbittorrent.New(cfg.Executor.URL, cfg.Executor.Username, cfg.Executor.Password,
		cfg.ExecutorTimeout(), cfg.Executor.RequestsPerSecond)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create executor client: %w", err)
	}

	app := Assemble(cfg, database, source, exec)
	app.version = version
	log.Info().Str("database", cfg.Database.Path).Str("executor", cfg.Executor.URL).Msg("Core application setup complete")
	return app, nil
}

// Assemble wires the components around an open, migrated database. The
// loop is created stopped.
func Assemble(cfg *config.Config, database *sql.DB, source discovery.Source, exec executor.Executor) *App {
	st := store.New(database)
	p := pipeline.New(st, source, exec, pipeline.Options{
		DownloadRoot:      cfg.Download.Path,
		Workers:           cfg.Discovery.Workers,
		RequestsPerSecond: cfg.Discovery.RequestsPerSecond,
		SubgroupPriority:  cfg.Discovery.SubgroupPriority,
	})
	app := &App{
		config:   cfg,
		db:       database,
		store:    st,
		wsHub:    websocket.NewHub(),
		source:   source,
		executor: exec,
		pipeline: p,
		sync:     statussync.New(st, exec, p, cfg.Download.Path),
		version:  "dev",
	}
	app.loop = jobs.NewLoop(app.RunPass, cfg.Loop.IntervalSeconds, app.wsHub)
	return app
}

// RunPass is one full reconciliation pass: create tasks for every active
// subscription, then reconcile executor state.
func (a *App) RunPass(ctx context.Context, keepGoing func() bool, report *models.PassReport) error {
	if err := a.pipeline.RunForAllSubscriptions(ctx, keepGoing, report); err != nil {
		return err
	}
	if report.Cancelled || !keepGoing() {
		report.Cancelled = true
		return nil
	}
	synced, err := a.sync.Sweep(ctx)
	report.Synced = synced.Synced
	return err
}

// RunForOne runs the single-episode entry point under the loop's pass
// guard.
func (a *App) RunForOne(sourceID int64, episode int) error {
	return a.loop.RunExclusive("episode", func(ctx context.Context, keepGoing func() bool, report *models.PassReport) error {
		return a.pipeline.RunForOne(ctx, sourceID, episode, keepGoing, report)
	})
}

// Sweep reconciles executor status outside a pass. It fails with
// jobs.ErrPassInFlight while a pass runs, since the pass sweeps at its end
// and a task it just created must not be resubmitted before its add lands.
func (a *App) Sweep(ctx context.Context) (statussync.SyncReport, error) {
	var report statussync.SyncReport
	err := a.loop.Exclusive(func() error {
		var err error
		report, err = a.sync.Sweep(ctx)
		return err
	})
	return report, err
}

func (a *App) Config() *config.Config         { return a.config }
func (a *App) DB() *sql.DB                    { return a.db }
func (a *App) Store() *store.Store            { return a.store }
func (a *App) WsHub() *websocket.Hub          { return a.wsHub }
func (a *App) Source() discovery.Source       { return a.source }
func (a *App) Executor() executor.Executor    { return a.executor }
func (a *App) Pipeline() *pipeline.Pipeline   { return a.pipeline }
func (a *App) Sync() *statussync.Synchronizer { return a.sync }
func (a *App) Loop() *jobs.Loop               { return a.loop }
func (a *App) Version() string                { return a.version }

// CheckSavePath compares the executor's default save path, which relative
// target directories resolve against, with the local download root. It
// returns the executor's path and whether the two agree. Executors that
// cannot report a save path are taken to agree.
func (a *App) CheckSavePath(ctx context.Context) (string, bool, error) {
	pather, ok := a.executor.(executor.SavePather)
	if !ok {
		return "", true, nil
	}
	remote, err := pather.DefaultSavePath(ctx)
	if err != nil {
		return "", false, err
	}
	return remote, samePath(remote, a.config.Download.Path), nil
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

// Close stops the loop and closes the database.
func (a *App) Close() {
	if a.loop != nil {
		a.loop.Shutdown()
	}
	if a.db != nil {
		a.db.Close()
	}
}
