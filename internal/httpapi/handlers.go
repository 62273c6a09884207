package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"packready.org/internal/audit"
	"packready.org/internal/links"
	"packready.org/internal/obs"
	"packready.org/internal/pack"
	"packready.org/internal/project"
	"packready.org/internal/stream"
)

// ReadyProbe reports whether the service can reach its dependencies.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer. It owns no business logic: every handler
// validates input, calls a service, maps errors, and writes JSON.
type API struct {
	mux         *http.ServeMux
	readyProbe  ReadyProbe
	version     string
	packs       pack.Service
	projects    project.Service
	lessonLinks links.Store
	activity    *stream.Stream

	rateBurst  int
	ratePerSec int
	maxBody    int64
}

func New(rp ReadyProbe, version string, packs pack.Service, projects project.Service, lessonLinks links.Store, activity *stream.Stream) *API {
	a := &API{
		mux:         http.NewServeMux(),
		readyProbe:  rp,
		version:     version,
		packs:       packs,
		projects:    projects,
		lessonLinks: lessonLinks,
		activity:    activity,
		rateBurst:   50,
		ratePerSec:  25,
		maxBody:     1 << 20,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	a.mux.HandleFunc("/v1/packs", a.handlePacksCollection)
	a.mux.HandleFunc("/v1/packs/", a.handlePackResource)
	a.mux.HandleFunc("/v1/sections/", a.handleSectionResource)
	a.mux.HandleFunc("/v1/evidence/", a.handleEvidenceResource)

	a.mux.HandleFunc("/v1/projects", a.handleProjectsCollection)
	a.mux.HandleFunc("/v1/projects/", a.handleProjectResource)
	a.mux.HandleFunc("/v1/ecosystems", a.handleEcosystems)
	a.mux.HandleFunc("/v1/checklist", a.handleChecklist)

	a.mux.HandleFunc("/api/training/modules", a.handleTrainingModules)
	a.mux.HandleFunc("/api/training/modules/", a.handleTrainingModule)
	a.mux.HandleFunc("/api/training/lessons/", a.handleLessonResource)

	a.mux.HandleFunc("/v1/activity/stream", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler applies the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RequestID(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, a.maxBody)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	return obs.Instrument(h)
}

// --- infra handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "packready-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "packready-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	_ = audit.LogEvent(ctx, event, fields)
}

func (a *API) publish(evt stream.ActivityEvent) {
	if a.activity != nil {
		a.activity.Publish(evt)
	}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleDomainError maps service errors onto HTTP statuses. The version
// conflict carries its detail into the body so clients can offer a merge.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *pack.VersionConflictError
	switch {
	case errors.As(err, &conflict):
		payload := map[string]any{
			"error":           "version conflict",
			"current_version": conflict.CurrentVersion,
			"last_edited_by":  conflict.LastEditedBy,
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusConflict, payload)
	case errors.Is(err, pack.ErrInvalidInput),
		errors.Is(err, project.ErrInvalidInput),
		errors.Is(err, links.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, pack.ErrNotFound),
		errors.Is(err, pack.ErrTemplateNotFound),
		errors.Is(err, pack.ErrSectionNotFound),
		errors.Is(err, pack.ErrEvidenceNotFound),
		errors.Is(err, project.ErrNotFound),
		errors.Is(err, project.ErrEcosystemNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
