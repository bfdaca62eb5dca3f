// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vrsandeep/anisync-go/internal/core"
	"github.com/vrsandeep/anisync-go/internal/store"
	"github.com/vrsandeep/anisync-go/internal/websocket"
)

// Server holds the dependencies for our API.
type Server struct {
	app   *core.App
	store *store.Store
}

// NewServer creates a new Server instance.
func NewServer(app *core.App) *Server {
	return &Server{
		app:   app,
		store: app.Store(),
	}
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleGetVersion)
		r.Get("/executor/version", s.handleExecutorVersion)

		// Reconciliation loop control
		r.Route("/loop", func(r chi.Router) {
			r.Post("/start", s.handleLoopStart)
			r.Post("/stop", s.handleLoopStop)
			r.Put("/interval", s.handleLoopInterval)
			r.Get("/status", s.handleLoopStatus)
			r.Post("/run", s.handleLoopRun)
		})

		// Subscription Routes
		r.Get("/subscriptions", s.handleListSubscriptions)
		r.Post("/subscriptions", s.handleAddSubscription)
		r.Put("/subscriptions/{sourceID}", s.handleSetSubscribed)
		r.Post("/subscriptions/{sourceID}/toggle", s.handleToggleSubscription)
		r.Delete("/subscriptions/{sourceID}", s.handleDeleteSubscription)
		r.Get("/subscriptions/search", s.handleSearchSubscriptions)
		r.Get("/subscriptions/{sourceID}/seeds", s.handleListSeeds)
		r.Post("/subscriptions/{sourceID}/seeds/update", s.handleUpdateSeeds)
		r.Post("/subscriptions/{sourceID}/episodes/{episode}/run", s.handleRunEpisode)
		r.Get("/subgroups", s.handleListSubgroups)

		// Seasonal catalogue
		r.Get("/broadcasts/{year}/{season}", s.handleListBroadcast)
		r.Post("/broadcasts/update", s.handleUpdateBroadcast)

		// Filter Routes
		r.Get("/filters", s.handleListFilters)
		r.Post("/filters", s.handleAddFilter)
		r.Delete("/filters/{filterID}", s.handleDeleteFilter)

		// Task Routes
		r.Get("/tasks", s.handleListTasks)
		r.Post("/tasks/sync", s.handleSyncTasks)
		r.Post("/tasks/reconcile-files", s.handleReconcileFiles)
		r.Get("/tasks/{torrent}/info", s.handleTaskInfo)
		r.Post("/tasks/{torrent}/pause", s.handlePauseTask)
		r.Post("/tasks/{torrent}/resume", s.handleResumeTask)
		r.Delete("/tasks/{torrent}", s.handleDeleteTask)
	})

	// WebSocket routes
	r.Get("/ws/events", func(w http.ResponseWriter, r *http.Request) {
		s.app.WsHub().ServeWs(w, r)
	})
	r.Get("/ws/progress", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeProgress(w, r, s.app.Sync(), s.app.Config().SnapshotTick())
	})

	return r
}
