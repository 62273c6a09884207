package httpapi

import (
	"net/http"
	"strings"
	"time"

	"packready.org/internal/project"
	"packready.org/internal/stream"
)

type createProjectRequest struct {
	PermissionCode string `json:"permission_code"`
	PackID         string `json:"pack_id"`
	Name           string `json:"name"`
}

type generatePlanRequest struct {
	StartDate string `json:"start_date,omitempty"`
}

func (a *API) handleProjectsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createProject(w, r)
	case http.MethodGet:
		a.listProjects(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleProjectResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/projects/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			a.getProject(w, r, parts[0])
		case http.MethodDelete:
			a.deleteProject(w, r, parts[0])
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
		}
	case len(parts) == 2 && parts[1] == "assessment":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.saveAssessment(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "plan":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.generatePlan(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// orgProject loads a project and hides it from callers outside its
// organization.
func (a *API) orgProject(r *http.Request, id string) (project.Project, error) {
	pr, err := a.projects.GetProject(r.Context(), id)
	if err != nil {
		return project.Project{}, err
	}
	if org := orgFromRequest(r); org != "" && pr.OrganizationID != org {
		return project.Project{}, project.ErrNotFound
	}
	return pr, nil
}

func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	if strings.TrimSpace(req.PackID) == "" {
		writeError(w, r, http.StatusBadRequest, "pack_id is required")
		return
	}

	// The pack must exist in the caller's organization before a project
	// can bind to it.
	if _, err := a.orgPack(r, req.PackID); err != nil {
		handleDomainError(w, r, err)
		return
	}

	pr, err := a.projects.CreateProject(r.Context(), project.CreateProjectParams{
		OrganizationID: orgFromRequest(r),
		PermissionCode: strings.TrimSpace(req.PermissionCode),
		PackID:         strings.TrimSpace(req.PackID),
		Name:           strings.TrimSpace(req.Name),
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "project.created", map[string]any{
		"project_id":      pr.ID,
		"permission_code": pr.PermissionCode,
		"pack_id":         pr.PackID,
	})

	w.Header().Set("Location", "/v1/projects/"+pr.ID)
	writeJSON(w, http.StatusCreated, pr)
}

func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	out, err := a.projects.ListProjects(r.Context(), orgFromRequest(r))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if out == nil {
		out = []project.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (a *API) getProject(w http.ResponseWriter, r *http.Request, id string) {
	pr, err := a.orgProject(r, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}

func (a *API) deleteProject(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := a.orgProject(r, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := a.projects.SoftDeleteProject(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "project.deleted", map[string]any{"project_id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) saveAssessment(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := a.orgProject(r, id); err != nil {
		handleDomainError(w, r, err)
		return
	}

	var snapshot project.Assessment
	if err := decodeJSON(w, r, &snapshot); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pr, err := a.projects.SaveAssessment(r.Context(), id, snapshot)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "project.assessment.saved", map[string]any{
		"project_id":         id,
		"completion_percent": pr.Assessment.CompletionPercent,
	})
	writeJSON(w, http.StatusOK, pr)
}

// generatePlan assembles the plan inputs from the project's assessment and
// the live state of its bound pack, then stores the generated schedule.
func (a *API) generatePlan(w http.ResponseWriter, r *http.Request, id string) {
	pr, err := a.orgProject(r, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	var req generatePlanRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	var startDate time.Time
	if req.StartDate != "" {
		startDate, err = time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
			return
		}
	}

	eco, err := a.projects.GetEcosystem(r.Context(), pr.PermissionCode)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	sections, err := a.packs.SectionCompletions(r.Context(), pr.PackID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	evidence, err := a.packs.Evidence(r.Context(), pr.PackID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	missing := 0
	for _, item := range evidence {
		if !item.Status.Delivered() {
			missing++
		}
	}

	plan := project.GeneratePlan(project.PlanInput{
		Assessment:      pr.Assessment,
		Sections:        sections,
		MissingEvidence: missing,
		Ecosystem:       eco,
		StartDate:       startDate,
	})

	updated, err := a.projects.SavePlan(r.Context(), id, plan)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "project.plan.generated", map[string]any{
		"project_id":  id,
		"total_weeks": plan.TotalWeeks,
		"milestones":  len(plan.Milestones),
	})
	a.publish(stream.ActivityEvent{
		Kind:      stream.KindPlanGenerated,
		OrgID:     pr.OrganizationID,
		PackID:    pr.PackID,
		ProjectID: id,
		Actor:     userFromRequest(r),
	})
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleEcosystems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	out, err := a.projects.ListEcosystems(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if out == nil {
		out = []project.Ecosystem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}
