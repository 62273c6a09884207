package httpapi

import (
	"net/http"
	"strings"

	"packready.org/internal/checklist"
	"packready.org/internal/content"
	"packready.org/internal/links"
)

type addLinkRequest struct {
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	URL       string `json:"url,omitempty"`
	SectionID string `json:"section_id,omitempty"`
}

// handleTrainingModules lists the module catalog. At most one filter
// applies; category wins over difficulty, difficulty over persona.
func (a *API) handleTrainingModules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	q := r.URL.Query()
	var out []content.Module
	switch {
	case q.Get("category") != "":
		out = content.ByCategory(content.Category(q.Get("category")))
	case q.Get("difficulty") != "":
		out = content.ByDifficulty(content.Difficulty(q.Get("difficulty")))
	case q.Get("persona") != "":
		out = content.ByPersona(content.Persona(q.Get("persona")))
	case q.Get("featured") == "true":
		out = content.Featured()
	default:
		out = content.Modules()
	}
	if out == nil {
		out = []content.Module{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":    out,
		"pathways": content.Pathways(),
	})
}

func (a *API) handleTrainingModule(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/training/modules/")
	parts := strings.Split(path, "/")
	if parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	switch {
	case len(parts) == 1:
		mod, ok := content.ByID(parts[0])
		if !ok {
			writeError(w, r, http.StatusNotFound, "module not found")
			return
		}
		writeJSON(w, http.StatusOK, mod)
	case len(parts) == 2 && parts[1] == "prerequisites":
		if _, ok := content.ByID(parts[0]); !ok {
			writeError(w, r, http.StatusNotFound, "module not found")
			return
		}
		prereqs := content.Prerequisites(parts[0])
		if prereqs == nil {
			prereqs = []content.Module{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": prereqs})
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// handleLessonResource serves /api/training/lessons/{id}/links: curated
// cross-references from a lesson into guidance documents or pack sections.
func (a *API) handleLessonResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/training/lessons/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "links" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	lessonID := parts[0]
	if !content.HasLesson(lessonID) {
		writeError(w, r, http.StatusNotFound, "lesson not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.listLessonLinks(w, r, lessonID)
	case http.MethodPost:
		a.addLessonLink(w, r, lessonID)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listLessonLinks(w http.ResponseWriter, r *http.Request, lessonID string) {
	out, err := a.lessonLinks.ListByLesson(r.Context(), lessonID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if out == nil {
		out = []links.Link{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (a *API) addLessonLink(w http.ResponseWriter, r *http.Request, lessonID string) {
	var req addLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	link, err := a.lessonLinks.Add(r.Context(), links.Link{
		LessonID:  lessonID,
		Kind:      links.Kind(strings.TrimSpace(req.Kind)),
		Title:     strings.TrimSpace(req.Title),
		URL:       strings.TrimSpace(req.URL),
		SectionID: strings.TrimSpace(req.SectionID),
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "content.link.added", map[string]any{
		"lesson_id": lessonID,
		"link_id":   link.ID,
		"kind":      string(link.Kind),
	})
	writeJSON(w, http.StatusCreated, link)
}

func (a *API) handleChecklist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	catalog := checklist.Catalog()
	if phase := r.URL.Query().Get("phase"); phase != "" {
		items := checklist.ItemsForPhase(checklist.Phase(phase))
		if items == nil {
			items = []checklist.Item{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": catalog})
}
