package panel

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rendis/flowedit/internal/diagram"
	"github.com/rendis/flowedit/internal/store"
	"github.com/rendis/flowedit/internal/tasktree"
	"github.com/rendis/flowedit/pkg/schema"
)

// --- Response types ---

type flowSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Version     string    `json:"version,omitempty"`
	Tags        []string  `json:"tags"`
	Tasks       int       `json:"tasks"`
	Revision    int64     `json:"revision"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type revisionSummary struct {
	Sequence int64     `json:"sequence"`
	Name     string    `json:"name"`
	Tasks    int       `json:"tasks"`
	SavedAt  time.Time `json:"saved_at"`
}

// --- Handlers ---

// handleCatalog lists the catalog tasks.
func (s *PanelServer) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Catalog.List())
}

// handleFlows lists saved drafts, filtered by name and tag.
func (s *PanelServer) handleFlows(w http.ResponseWriter, r *http.Request) {
	filter := store.FlowFilter{
		Name:   r.URL.Query().Get("name"),
		Tag:    r.URL.Query().Get("tag"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	recs, err := s.deps.Store.ListFlows(r.Context(), filter)
	if err != nil {
		s.deps.Logger.Error("list flows", "error", err)
		writeStoreError(w, err)
		return
	}

	out := make([]flowSummary, 0, len(recs))
	for _, rec := range recs {
		tags := rec.Document.Tags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, flowSummary{
			ID:          rec.ID,
			Name:        rec.Document.Name,
			Description: rec.Document.Description,
			Version:     rec.Document.Version,
			Tags:        tags,
			Tasks:       countTasks(rec.Document.Tasks),
			Revision:    rec.Revision,
			UpdatedAt:   rec.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleFlow returns one draft with its errors recomputed against the catalog.
func (s *PanelServer) handleFlow(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Store.GetFlow(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	rec.Document = s.revalidate(rec.Document)
	writeJSON(w, http.StatusOK, rec)
}

// handleDiagram lays out a draft and renders it as JSON, Mermaid, ASCII or PNG.
func (s *PanelServer) handleDiagram(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Store.GetFlow(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	tree, err := tasktree.FromAPI(rec.Document.Tasks)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("load tasks: %v", err))
		return
	}
	d := s.deps.Engine.Layout(tree)

	switch format := r.PathValue("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, d)
	case "mermaid":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, diagram.RenderMermaid(d))
	case "ascii":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, diagram.RenderASCII(d))
	case "png":
		png, err := diagram.RenderImage(r.Context(), d)
		if err != nil {
			s.deps.Logger.Error("render diagram", "flow_id", rec.ID, "error", err)
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("render image: %v", err))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown diagram format %q", format))
	}
}

// handleRevisions lists the saved revisions of a draft, oldest first.
func (s *PanelServer) handleRevisions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.deps.Store.GetFlow(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	revs, err := s.deps.Store.ListRevisions(r.Context(), id)
	if err != nil {
		s.deps.Logger.Error("list revisions", "flow_id", id, "error", err)
		writeStoreError(w, err)
		return
	}

	out := make([]revisionSummary, 0, len(revs))
	for _, rev := range revs {
		out = append(out, revisionSummary{
			Sequence: rev.Sequence,
			Name:     rev.Document.Name,
			Tasks:    countTasks(rev.Document.Tasks),
			SavedAt:  rev.SavedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRevision returns one revision document.
func (s *PanelServer) handleRevision(w http.ResponseWriter, r *http.Request) {
	seq, ok := pathSequence(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "revision must be a positive integer")
		return
	}
	rev, err := s.deps.Store.GetRevision(r.Context(), r.PathValue("id"), seq)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

// handleRestore saves an old revision as the current document.
func (s *PanelServer) handleRestore(w http.ResponseWriter, r *http.Request) {
	seq, ok := pathSequence(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "revision must be a positive integer")
		return
	}
	id := r.PathValue("id")
	rec, err := s.deps.Store.RestoreRevision(r.Context(), id, seq)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.deps.Logger.Info("revision restored", "flow_id", id, "sequence", seq, "revision", rec.Revision)
	writeJSON(w, http.StatusOK, map[string]any{"id": rec.ID, "revision": rec.Revision})
}

// revalidate replaces the stored errors with a fresh validation pass.
func (s *PanelServer) revalidate(doc schema.FlowAPI) schema.FlowAPI {
	if s.deps.Validator == nil {
		return doc
	}
	if doc.Variables == nil {
		doc.Variables = map[string]schema.Variable{}
	}
	if doc.Tasks == nil {
		doc.Tasks = []schema.FlowTaskAPI{}
	}
	doc.Errors = s.deps.Validator.Validate(doc).Errors
	if doc.Errors == nil {
		doc.Errors = []schema.FlowError{}
	}
	return doc
}

// countTasks counts tasks at every depth.
func countTasks(tasks []schema.FlowTaskAPI) int {
	n := len(tasks)
	for _, t := range tasks {
		for _, sub := range t.Subtasks {
			n += countTasks(sub)
		}
	}
	return n
}
