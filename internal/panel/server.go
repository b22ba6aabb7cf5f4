// Package panel serves a read-only JSON preview of saved flow drafts: their
// documents, validation errors, laid-out diagrams and revision history.
package panel

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/rendis/flowedit/internal/catalog"
	"github.com/rendis/flowedit/internal/layout"
	"github.com/rendis/flowedit/internal/store"
	"github.com/rendis/flowedit/internal/validation"
)

// PanelDeps holds the dependencies for the panel server.
type PanelDeps struct {
	Store     store.Store
	Catalog   *catalog.Catalog     // nil = empty catalog
	Validator validation.Validator // nil = stored errors are served as saved
	Engine    *layout.Engine       // nil = layout.New()
	Logger    *slog.Logger
}

// PanelServer serves the preview API.
type PanelServer struct {
	deps PanelDeps
}

// NewPanelServer creates a new PanelServer.
func NewPanelServer(deps PanelDeps) *PanelServer {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.New(nil)
	}
	if deps.Engine == nil {
		deps.Engine = layout.New()
	}
	return &PanelServer{deps: deps}
}

// Handler returns the HTTP handler for the panel routes.
func (s *PanelServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	mux.HandleFunc("GET /api/flows", s.handleFlows)
	mux.HandleFunc("GET /api/flows/{id}", s.handleFlow)
	mux.HandleFunc("GET /api/flows/{id}/diagram", s.handleDiagram)
	mux.HandleFunc("GET /api/flows/{id}/diagram/{format}", s.handleDiagram)
	mux.HandleFunc("GET /api/flows/{id}/revisions", s.handleRevisions)
	mux.HandleFunc("GET /api/flows/{id}/revisions/{seq}", s.handleRevision)

	// Restoring appends a revision; nothing else writes.
	mux.HandleFunc("POST /api/flows/{id}/revisions/{seq}/restore", s.handleRestore)

	return s.logRequests(mux)
}

// logRequests logs every request at debug level.
func (s *PanelServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.deps.Logger.DebugContext(r.Context(), "panel request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
