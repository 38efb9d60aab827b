package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"git.home.luguber.info/inful/navindex/internal/build"
	derrors "git.home.luguber.info/inful/navindex/internal/docs/errors"
	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
	"git.home.luguber.info/inful/navindex/internal/index"
	"git.home.luguber.info/inful/navindex/internal/logfields"
	"git.home.luguber.info/inful/navindex/internal/output"
	"git.home.luguber.info/inful/navindex/internal/store"
)

const defaultBuildsLimit = 20

var (
	errNotReady          = ferrors.RuntimeError("no index has been published yet").Build()
	errHistoryDisabled   = ferrors.RuntimeError("build history is not enabled").Build()
	errRebuildDisabled   = ferrors.RuntimeError("rebuilds are not enabled").Build()
	errMissingDocumentID = ferrors.ValidationError("document id is required").Build()
)

// CategorySummary describes a top-level category.
type CategorySummary struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Documents   int    `json:"documents"`
	Collapsible bool   `json:"collapsible"`
	Collapsed   bool   `json:"collapsed"`
}

// BuildResponse reports a build triggered through the API.
type BuildResponse struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	Trigger     string  `json:"trigger"`
	Commit      string  `json:"commit,omitempty"`
	Fingerprint string  `json:"fingerprint,omitempty"`
	Documents   int     `json:"documents"`
	Drafts      int     `json:"drafts"`
	DurationMS  float64 `json:"durationMs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	idx := s.current.Load()
	if idx == nil {
		s.errors.WriteErrorResponse(w, r, errNotReady)
		return
	}
	writeJSON(w, map[string]any{"status": "ready", "buildId": idx.BuildID(), "documents": idx.Len()})
}

func (s *Server) handleSidebar(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, "sidebar", func(idx *index.Index) (any, error) {
		return output.NewSidebarFile(idx), nil
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, "index", func(idx *index.Index) (any, error) {
		return output.NewIndexFile(idx), nil
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, "categories", func(idx *index.Index) (any, error) {
		summaries := []CategorySummary{}
		for c := range idx.Categories() {
			n := 0
			for range c.Docs() {
				n++
			}
			summaries = append(summaries, CategorySummary{
				Name:        c.Name,
				Label:       c.Label,
				Documents:   n,
				Collapsible: c.Collapsible,
				Collapsed:   c.Collapsed,
			})
		}
		return summaries, nil
	})
}

func (s *Server) handleDoc(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(chi.URLParam(r, "*"), "/")
	if id == "" {
		s.errors.WriteErrorResponse(w, r, errMissingDocumentID)
		return
	}
	s.serveCached(w, r, "doc\x00"+id, func(idx *index.Index) (any, error) {
		e, err := idx.Lookup(id)
		s.recorder.IncLookup(err == nil)
		if errors.Is(err, derrors.ErrNotFound) {
			return nil, ferrors.WrapError(err, ferrors.CategoryNotFound, "document not found").
				WithContext("id", id).
				Build()
		}
		if err != nil {
			return nil, err
		}
		return output.DocFile{BuildID: idx.BuildID(), Entry: e}, nil
	})
}

// serveCached writes the encoded result of render for the current index,
// reusing the encoding until the index changes.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, resource string, render func(*index.Index) (any, error)) {
	idx := s.current.Load()
	if idx == nil {
		s.errors.WriteErrorResponse(w, r, errNotReady)
		return
	}
	key := idx.BuildID() + "\x00" + resource
	if body, ok := s.cache.Get(key); ok {
		if strings.HasPrefix(resource, "doc\x00") {
			s.recorder.IncLookup(true)
		}
		writeBody(w, idx, body)
		return
	}
	v, err := render(idx)
	if err != nil {
		s.errors.WriteErrorResponse(w, r, err)
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		s.errors.WriteErrorResponse(w, r, ferrors.WrapError(err, ferrors.CategoryInternal, "encode response").Build())
		return
	}
	s.cache.Add(key, body)
	writeBody(w, idx, body)
}

func (s *Server) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.errors.WriteErrorResponse(w, r, errHistoryDisabled)
		return
	}
	limit := defaultBuildsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.errors.WriteErrorResponse(w, r, ferrors.ValidationError("limit must be a non-negative integer").
				WithContext("limit", raw).
				Build())
			return
		}
		limit = n
	}
	builds, err := s.history.ListBuilds(r.Context(), limit)
	if err != nil {
		s.errors.WriteErrorResponse(w, r, err)
		return
	}
	if builds == nil {
		builds = []store.Build{}
	}
	writeJSON(w, builds)
}

func (s *Server) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.errors.WriteErrorResponse(w, r, errHistoryDisabled)
		return
	}
	id := chi.URLParam(r, "id")
	b, err := s.history.GetBuild(r.Context(), id)
	if err != nil {
		if c, ok := ferrors.AsClassified(err); ok {
			err = c.WithContext("build_id", id)
		}
		s.errors.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, b)
}

func (s *Server) handleCreateBuild(w http.ResponseWriter, r *http.Request) {
	if s.rebuilder == nil {
		s.errors.WriteErrorResponse(w, r, errRebuildDisabled)
		return
	}
	result, err := s.rebuilder.Run(r.Context(), build.TriggerAPI)
	if err != nil {
		if c, ok := ferrors.AsClassified(err); ok && result != nil {
			err = c.WithContext("build_id", result.BuildID).WithContext("stage", result.FailedStage)
		}
		s.errors.WriteErrorResponse(w, r, err)
		return
	}
	if result.Index != nil {
		s.SetIndex(result.Index)
	}
	s.logger.Info("Build triggered via API", logfields.BuildID(result.BuildID), slog.String("status", string(result.Status)))
	writeJSON(w, newBuildResponse(result))
}

func newBuildResponse(r *build.Result) BuildResponse {
	resp := BuildResponse{
		ID:         r.BuildID,
		Status:     string(r.Status),
		Trigger:    string(r.Trigger),
		Commit:     r.Commit,
		Documents:  r.Documents,
		Drafts:     r.Drafts,
		DurationMS: float64(r.Duration) / float64(time.Millisecond),
	}
	if r.Index != nil {
		resp.Fingerprint = r.Index.Fingerprint()
	}
	return resp
}

func writeJSON(w http.ResponseWriter, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeBody(w http.ResponseWriter, idx *index.Index, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Index-Build", idx.BuildID())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
