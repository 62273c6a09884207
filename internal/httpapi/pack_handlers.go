package httpapi

import (
	"net/http"
	"strings"
	"time"

	"packready.org/internal/pack"
	"packready.org/internal/project"
	"packready.org/internal/stream"
)

type createPackRequest struct {
	TemplateID string `json:"template_id"`
	Name       string `json:"name"`
	TargetDate string `json:"target_date,omitempty"`
}

type packDetailResponse struct {
	Pack     pack.Pack              `json:"pack"`
	Sections []pack.SectionInstance `json:"sections"`
	Evidence []pack.EvidenceItem    `json:"evidence"`
	Tasks    []pack.Task            `json:"tasks"`
}

type readinessResponse struct {
	Readiness pack.Readiness           `json:"readiness"`
	Sections  []pack.SectionCompletion `json:"sections"`
}

type saveResponseRequest struct {
	Value           string `json:"value"`
	ExpectedVersion int    `json:"expected_version"`
}

type setGateRequest struct {
	State string `json:"state"`
}

type addVersionRequest struct {
	FileName   string `json:"file_name"`
	StorageKey string `json:"storage_key"`
}

type setEvidenceStatusRequest struct {
	Status string `json:"status"`
}

func (a *API) handlePacksCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createPack(w, r)
	case http.MethodGet:
		a.listPacks(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handlePackResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/packs/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			a.getPack(w, r, parts[0])
		case http.MethodDelete:
			a.deletePack(w, r, parts[0])
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
		}
	case len(parts) == 2 && parts[1] == "sync":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.syncPack(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "readiness":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.packReadiness(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// orgPack loads a pack and hides it from callers outside its organization.
func (a *API) orgPack(r *http.Request, id string) (pack.Pack, error) {
	pk, err := a.packs.GetPack(r.Context(), id)
	if err != nil {
		return pack.Pack{}, err
	}
	if org := orgFromRequest(r); org != "" && pk.OrganizationID != org {
		return pack.Pack{}, pack.ErrNotFound
	}
	return pk, nil
}

func (a *API) createPack(w http.ResponseWriter, r *http.Request) {
	var req createPackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	params := pack.CreatePackParams{
		TemplateID:     strings.TrimSpace(req.TemplateID),
		OrganizationID: orgFromRequest(r),
		Name:           strings.TrimSpace(req.Name),
	}
	if req.TargetDate != "" {
		targetDate, err := time.Parse(time.RFC3339, req.TargetDate)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "target_date must be RFC3339")
			return
		}
		params.TargetDate = &targetDate
	}

	pk, err := a.packs.CreatePack(r.Context(), params)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "pack.created", map[string]any{
		"pack_id":     pk.ID,
		"template_id": pk.TemplateID,
	})
	a.publish(stream.ActivityEvent{
		Kind:   stream.KindPackCreated,
		OrgID:  pk.OrganizationID,
		PackID: pk.ID,
		Actor:  userFromRequest(r),
	})

	w.Header().Set("Location", "/v1/packs/"+pk.ID)
	writeJSON(w, http.StatusCreated, pk)
}

func (a *API) listPacks(w http.ResponseWriter, r *http.Request) {
	out, err := a.packs.ListPacks(r.Context(), orgFromRequest(r))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if out == nil {
		out = []pack.Pack{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (a *API) getPack(w http.ResponseWriter, r *http.Request, id string) {
	pk, err := a.orgPack(r, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	sections, err := a.packs.Sections(r.Context(), pk.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	evidence, err := a.packs.Evidence(r.Context(), pk.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	tasks, err := a.packs.Tasks(r.Context(), pk.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, packDetailResponse{
		Pack:     pk,
		Sections: sections,
		Evidence: evidence,
		Tasks:    tasks,
	})
}

func (a *API) deletePack(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := a.orgPack(r, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := a.packs.SoftDeletePack(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "pack.deleted", map[string]any{"pack_id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) syncPack(w http.ResponseWriter, r *http.Request, id string) {
	pk, err := a.orgPack(r, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	res, err := a.packs.SyncPack(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.audit(r.Context(), "pack.synced", map[string]any{
		"pack_id":        id,
		"sections_added": res.SectionsAdded,
		"evidence_added": res.EvidenceAdded,
	})
	a.publish(stream.ActivityEvent{
		Kind:   stream.KindPackSynced,
		OrgID:  pk.OrganizationID,
		PackID: id,
		Actor:  userFromRequest(r),
	})
	writeJSON(w, http.StatusOK, res)
}

// packReadiness aggregates section completions and applies the profile and
// opinion-pack overrides sourced from the pack's bound project.
func (a *API) packReadiness(w http.ResponseWriter, r *http.Request, id string) {
	pk, err := a.orgPack(r, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	completions, err := a.packs.SectionCompletions(r.Context(), pk.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	opinion, err := a.packs.HasOpinionPack(r.Context(), pk.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	ov := pack.Overrides{OpinionPack: opinion}
	if pr, ok := a.projectForPack(r, pk.ID); ok {
		ov.ProfilePercent, ov.ProfileAnswered = project.ProfileCompletion(pr.Assessment.BusinessPlanProfile)
	}

	writeJSON(w, http.StatusOK, readinessResponse{
		Readiness: pack.ComputeReadiness(completions, ov),
		Sections:  completions,
	})
}

func (a *API) projectForPack(r *http.Request, packID string) (project.Project, bool) {
	projects, err := a.projects.ListProjects(r.Context(), orgFromRequest(r))
	if err != nil {
		return project.Project{}, false
	}
	for _, pr := range projects {
		if pr.PackID == packID {
			return pr, true
		}
	}
	return project.Project{}, false
}

func (a *API) handleSectionResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/sections/")
	parts := strings.Split(path, "/")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	sectionID := parts[0]

	switch parts[1] {
	case "responses":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.savePromptResponse(w, r, sectionID, parts[2])
	case "gates":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.setReviewGate(w, r, sectionID, pack.GateKind(parts[2]))
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) savePromptResponse(w http.ResponseWriter, r *http.Request, sectionID, promptID string) {
	var req saveResponseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.ExpectedVersion < 0 {
		writeError(w, r, http.StatusBadRequest, "expected_version must be >= 0")
		return
	}

	resp, err := a.packs.SavePromptResponse(r.Context(), pack.SaveResponseParams{
		SectionID:       sectionID,
		PromptID:        promptID,
		Value:           req.Value,
		EditorID:        userFromRequest(r),
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "pack.response.saved", map[string]any{
		"section_id": sectionID,
		"prompt_id":  promptID,
		"version":    resp.Version,
	})
	a.publish(stream.ActivityEvent{
		Kind:      stream.KindResponseSaved,
		OrgID:     orgFromRequest(r),
		SectionID: sectionID,
		Actor:     userFromRequest(r),
	})
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) setReviewGate(w http.ResponseWriter, r *http.Request, sectionID string, kind pack.GateKind) {
	var req setGateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	state := pack.GateState(strings.TrimSpace(req.State))
	if !state.Valid() {
		writeError(w, r, http.StatusBadRequest, "state must be pending, approved or changes_requested")
		return
	}

	inst, err := a.packs.SetReviewGate(r.Context(), sectionID, kind, state, userFromRequest(r))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "pack.gate.set", map[string]any{
		"section_id":   sectionID,
		"kind":         string(kind),
		"state":        string(state),
		"review_state": string(inst.ReviewState),
	})
	a.publish(stream.ActivityEvent{
		Kind:      stream.KindGateChanged,
		OrgID:     orgFromRequest(r),
		PackID:    inst.PackID,
		SectionID: sectionID,
		Actor:     userFromRequest(r),
	})
	writeJSON(w, http.StatusOK, inst)
}

func (a *API) handleEvidenceResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/evidence/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	switch parts[1] {
	case "versions":
		a.addEvidenceVersion(w, r, parts[0])
	case "status":
		a.setEvidenceStatus(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) addEvidenceVersion(w http.ResponseWriter, r *http.Request, evidenceID string) {
	var req addVersionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.FileName) == "" || strings.TrimSpace(req.StorageKey) == "" {
		writeError(w, r, http.StatusBadRequest, "file_name and storage_key are required")
		return
	}

	item, err := a.packs.AddEvidenceVersion(r.Context(), evidenceID, pack.EvidenceVersion{
		FileName:   req.FileName,
		StorageKey: req.StorageKey,
		UploadedBy: userFromRequest(r),
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "pack.evidence.uploaded", map[string]any{
		"evidence_id": evidenceID,
		"status":      string(item.Status),
	})
	a.publish(stream.ActivityEvent{
		Kind:   stream.KindEvidenceUpdated,
		OrgID:  orgFromRequest(r),
		PackID: item.PackID,
		Actor:  userFromRequest(r),
	})
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) setEvidenceStatus(w http.ResponseWriter, r *http.Request, evidenceID string) {
	var req setEvidenceStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	status := pack.EvidenceStatus(strings.TrimSpace(req.Status))
	if !status.Valid() {
		writeError(w, r, http.StatusBadRequest, "status must be required, uploaded, approved or rejected")
		return
	}

	item, err := a.packs.SetEvidenceStatus(r.Context(), evidenceID, status)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.audit(r.Context(), "pack.evidence.status", map[string]any{
		"evidence_id": evidenceID,
		"status":      string(status),
	})
	a.publish(stream.ActivityEvent{
		Kind:   stream.KindEvidenceUpdated,
		OrgID:  orgFromRequest(r),
		PackID: item.PackID,
		Actor:  userFromRequest(r),
	})
	writeJSON(w, http.StatusOK, item)
}
