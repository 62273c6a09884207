package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"packready.org/internal/auth"
	"packready.org/internal/links"
	"packready.org/internal/pack"
	"packready.org/internal/project"
	"packready.org/internal/stream"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T

	packs    pack.Service
	projects project.Service
}

func testTemplate() pack.PackTemplate {
	return pack.PackTemplate{
		ID:   "tpl-test",
		Type: "payment_institution",
		Name: "Test Authorization Pack",
		Sections: []pack.SectionTemplate{
			{
				ID: "st-bm", Code: "business_model", Title: "Business Model", Position: 1,
				Prompts: []pack.Prompt{
					{ID: "p-bm-1", Text: "Describe your business model.", Required: true},
					{ID: "p-bm-2", Text: "List your target markets.", Required: true},
				},
				Evidence: []pack.RequiredEvidence{
					{ID: "ev-bm-plan", Title: "Business plan"},
				},
			},
			{
				ID: "st-sg", Code: "safeguarding", Title: "Safeguarding", Position: 2,
				Prompts: []pack.Prompt{
					{ID: "p-sg-1", Text: "Describe your safeguarding arrangements.", Required: true},
				},
				Evidence: []pack.RequiredEvidence{
					{ID: "ev-sg-letter", Title: "Safeguarding account letter"},
				},
			},
		},
	}
}

func testEcosystem() project.Ecosystem {
	return project.Ecosystem{
		PermissionCode:       "payment_institution",
		Name:                 "Payment Institution",
		PackTemplateType:     "payment_institution",
		Policies:             []string{"aml_policy", "safeguarding_policy"},
		Training:             []string{"aml-essentials"},
		SMCRRoles:            []string{"smf1", "smf16"},
		TypicalTimelineWeeks: 16,
	}
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("PACKREADY_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	packs := pack.NewInMemory()
	if err := packs.PutTemplate(context.Background(), testTemplate()); err != nil {
		t.Fatalf("seed template: %v", err)
	}
	projects := project.NewInMemory(project.NewStaticQuestionBank())
	if err := projects.PutEcosystem(context.Background(), testEcosystem()); err != nil {
		t.Fatalf("seed ecosystem: %v", err)
	}
	seq := 0
	lessonLinks := links.NewInMemory(func() string {
		seq++
		return fmt.Sprintf("link-%03d", seq)
	})

	api := New(ReadyProbe{}, "test", packs, projects, lessonLinks, stream.New())
	api.rateBurst = 100
	api.ratePerSec = 100

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL:  srv.URL,
		client:   srv.Client(),
		t:        t,
		packs:    packs,
		projects: projects,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) put(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPut, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) obtainToken(user, org string, roles []string) string {
	c.t.Helper()
	resp := c.post("/v1/auth/token", map[string]any{
		"user":            user,
		"organization_id": org,
		"roles":           roles,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func (c *apiClient) authHeader(user, org string) map[string]string {
	token := c.obtainToken(user, org, []string{auth.RoleMember})
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAPIPackFlow(t *testing.T) {
	api := newTestAPI(t)
	headers := api.authHeader("alice", "org-1")

	// Create a pack from the seeded template.
	resp := api.post("/v1/packs", map[string]any{
		"template_id": "tpl-test",
		"name":        "Acme Payments Application",
	}, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	created := decode[pack.Pack](t, resp)
	if created.ID == "" || created.OrganizationID != "org-1" {
		t.Fatalf("unexpected pack: %+v", created)
	}

	// Detail view: two sections, two evidence items, annex numbers 1 and 2.
	resp = api.get("/v1/packs/"+created.ID, nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	detail := decode[packDetailResponse](t, resp)
	if len(detail.Sections) != 2 || len(detail.Evidence) != 2 {
		t.Fatalf("unexpected detail counts: %d sections, %d evidence", len(detail.Sections), len(detail.Evidence))
	}
	if detail.Evidence[0].AnnexNumber != 1 || detail.Evidence[1].AnnexNumber != 2 {
		t.Fatalf("unexpected annex numbers: %d, %d", detail.Evidence[0].AnnexNumber, detail.Evidence[1].AnnexNumber)
	}

	sectionID := detail.Sections[0].ID

	// First save creates the response at version 1.
	resp = api.put("/v1/sections/"+sectionID+"/responses/p-bm-1", map[string]any{
		"value":            "We move money.",
		"expected_version": 0,
	}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	saved := decode[pack.PromptResponse](t, resp)
	if saved.Version != 1 {
		t.Fatalf("expected version 1, got %d", saved.Version)
	}

	// A matching expected version advances to 2.
	resp = api.put("/v1/sections/"+sectionID+"/responses/p-bm-1", map[string]any{
		"value":            "We move money carefully.",
		"expected_version": 1,
	}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	saved = decode[pack.PromptResponse](t, resp)
	if saved.Version != 2 {
		t.Fatalf("expected version 2, got %d", saved.Version)
	}

	// A stale expected version conflicts and reports the current state.
	resp = api.put("/v1/sections/"+sectionID+"/responses/p-bm-1", map[string]any{
		"value":            "A stale edit.",
		"expected_version": 1,
	}, headers)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	conflict := decode[map[string]any](t, resp)
	if conflict["current_version"].(float64) != 2 {
		t.Fatalf("unexpected current_version: %v", conflict["current_version"])
	}
	if conflict["last_edited_by"] != "alice" {
		t.Fatalf("unexpected last_edited_by: %v", conflict["last_edited_by"])
	}

	// An approved gate moves the section out of draft.
	resp = api.post("/v1/sections/"+sectionID+"/gates/client_review", map[string]any{
		"state": "approved",
	}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	inst := decode[pack.SectionInstance](t, resp)
	if inst.ReviewState != pack.ReviewInReview {
		t.Fatalf("unexpected review state: %s", inst.ReviewState)
	}

	// Uploading evidence flips it to uploaded.
	evidenceID := detail.Evidence[0].ID
	resp = api.post("/v1/evidence/"+evidenceID+"/versions", map[string]any{
		"file_name":   "business-plan.pdf",
		"storage_key": "org-1/business-plan-v1.pdf",
	}, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	item := decode[pack.EvidenceItem](t, resp)
	if item.Status != pack.EvidenceUploaded {
		t.Fatalf("unexpected evidence status: %s", item.Status)
	}

	// Readiness reflects partial narrative and evidence progress.
	resp = api.get("/v1/packs/"+created.ID+"/readiness", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	readiness := decode[readinessResponse](t, resp)
	if len(readiness.Sections) != 2 {
		t.Fatalf("unexpected section count: %d", len(readiness.Sections))
	}
	if readiness.Readiness.Overall <= 0 || readiness.Readiness.Overall >= 100 {
		t.Fatalf("expected partial overall readiness, got %d", readiness.Readiness.Overall)
	}

	// Sync against an unchanged template adds nothing.
	resp = api.post("/v1/packs/"+created.ID+"/sync", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	sync := decode[pack.SyncResult](t, resp)
	if sync.SectionsAdded != 0 || sync.EvidenceAdded != 0 {
		t.Fatalf("unexpected sync result: %+v", sync)
	}
}

func TestAPIPackSoftDelete(t *testing.T) {
	api := newTestAPI(t)
	headers := api.authHeader("alice", "org-1")

	resp := api.post("/v1/packs", map[string]any{
		"template_id": "tpl-test",
		"name":        "Short-lived",
	}, headers)
	created := decode[pack.Pack](t, resp)

	resp = api.do(http.MethodDelete, "/v1/packs/"+created.ID, nil, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	resp = api.get("/v1/packs/"+created.ID, nil, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}

	resp = api.get("/v1/packs", nil, headers)
	list := decode[map[string][]pack.Pack](t, resp)
	if len(list["items"]) != 0 {
		t.Fatalf("deleted pack still listed: %+v", list["items"])
	}
}

func TestAPIOrgScoping(t *testing.T) {
	api := newTestAPI(t)
	orgA := api.authHeader("alice", "org-a")
	orgB := api.authHeader("bob", "org-b")

	resp := api.post("/v1/packs", map[string]any{
		"template_id": "tpl-test",
		"name":        "Org A Pack",
	}, orgA)
	created := decode[pack.Pack](t, resp)

	// Another organization cannot see or delete the pack.
	resp = api.get("/v1/packs/"+created.ID, nil, orgB)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 across orgs, got %d", resp.StatusCode)
	}
	resp = api.do(http.MethodDelete, "/v1/packs/"+created.ID, nil, orgB)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 across orgs, got %d", resp.StatusCode)
	}

	resp = api.get("/v1/packs", nil, orgB)
	list := decode[map[string][]pack.Pack](t, resp)
	if len(list["items"]) != 0 {
		t.Fatalf("cross-org listing leaked packs: %+v", list["items"])
	}
}

func TestAPIProjectPlanFlow(t *testing.T) {
	api := newTestAPI(t)
	headers := api.authHeader("alice", "org-1")

	resp := api.post("/v1/packs", map[string]any{
		"template_id": "tpl-test",
		"name":        "Acme Pack",
	}, headers)
	pk := decode[pack.Pack](t, resp)

	resp = api.post("/v1/projects", map[string]any{
		"permission_code": "payment_institution",
		"pack_id":         pk.ID,
		"name":            "Acme Authorization",
	}, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	pr := decode[project.Project](t, resp)
	if pr.Status != project.StatusAssessment {
		t.Fatalf("unexpected status: %s", pr.Status)
	}
	if len(pr.Assessment.Readiness) != len(project.ReadinessItems) {
		t.Fatalf("assessment not normalized: %d readiness items", len(pr.Assessment.Readiness))
	}

	// Save a partially answered assessment; completion recomputes eagerly.
	snapshot := pr.Assessment
	snapshot.FirmBasics.LegalName = "Acme Payments Ltd"
	snapshot.FirmBasics.FirmType = "limited_company"
	snapshot.Readiness[project.ReadinessBusinessPlan] = project.ItemComplete
	resp = api.put("/v1/projects/"+pr.ID+"/assessment", snapshot, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	updated := decode[project.Project](t, resp)
	if updated.Assessment.CompletionPercent <= 0 {
		t.Fatalf("completion not recomputed: %d", updated.Assessment.CompletionPercent)
	}

	// Generate a plan: milestones form a strict linear dependency chain.
	resp = api.post("/v1/projects/"+pr.ID+"/plan", map[string]any{
		"start_date": "2026-09-07",
	}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	planned := decode[project.Project](t, resp)
	if planned.Status != project.StatusPlanning {
		t.Fatalf("unexpected status after plan: %s", planned.Status)
	}
	if planned.Plan == nil || len(planned.Plan.Milestones) == 0 {
		t.Fatalf("plan missing")
	}
	milestones := planned.Plan.Milestones
	if len(milestones[0].Dependencies) != 0 {
		t.Fatalf("first milestone must have no dependencies")
	}
	for i := 1; i < len(milestones); i++ {
		deps := milestones[i].Dependencies
		if len(deps) != 1 || deps[0] != milestones[i-1].ID {
			t.Fatalf("milestone %d breaks the chain: %v", i, deps)
		}
		if milestones[i].StartWeek != milestones[i-1].EndWeek+1 {
			t.Fatalf("milestone %d does not start after its predecessor", i)
		}
	}
	if planned.Plan.TotalWeeks < testEcosystem().TypicalTimelineWeeks {
		t.Fatalf("total weeks %d below ecosystem floor %d", planned.Plan.TotalWeeks, testEcosystem().TypicalTimelineWeeks)
	}
}

func TestAPIEcosystems(t *testing.T) {
	api := newTestAPI(t)
	headers := api.authHeader("alice", "org-1")

	resp := api.get("/v1/ecosystems", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	list := decode[map[string][]project.Ecosystem](t, resp)
	if len(list["items"]) != 1 || list["items"][0].PermissionCode != "payment_institution" {
		t.Fatalf("unexpected ecosystems: %+v", list["items"])
	}
}

func TestAPITrainingContent(t *testing.T) {
	api := newTestAPI(t)
	headers := api.authHeader("alice", "org-1")

	resp := api.get("/api/training/modules", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	catalog := decode[map[string]json.RawMessage](t, resp)
	if _, ok := catalog["items"]; !ok {
		t.Fatalf("missing items in catalog response")
	}

	resp = api.get("/api/training/modules/nope", nil, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown module, got %d", resp.StatusCode)
	}
}

func TestAPILessonLinks(t *testing.T) {
	api := newTestAPI(t)
	headers := api.authHeader("alice", "org-1")

	resp := api.get("/api/training/lessons/aml-103/links", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	empty := decode[map[string][]links.Link](t, resp)
	if len(empty["items"]) != 0 {
		t.Fatalf("expected no links, got %+v", empty["items"])
	}

	resp = api.post("/api/training/lessons/aml-103/links", map[string]any{
		"kind":  "guidance",
		"title": "FCA AML guidance",
		"url":   "https://www.fca.org.uk/firms/financial-crime",
	}, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	link := decode[links.Link](t, resp)
	if link.LessonID != "aml-103" || link.Kind != links.KindGuidance {
		t.Fatalf("unexpected link: %+v", link)
	}

	resp = api.get("/api/training/lessons/not-a-lesson/links", nil, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown lesson, got %d", resp.StatusCode)
	}
}

func TestAPIChecklist(t *testing.T) {
	api := newTestAPI(t)
	headers := api.authHeader("alice", "org-1")

	resp := api.get("/v1/checklist", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	payload := decode[map[string]json.RawMessage](t, resp)
	if _, ok := payload["categories"]; !ok {
		t.Fatalf("missing categories in checklist response")
	}
}

func TestAPIEnforcesAuth(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/packs", map[string]any{
		"template_id": "tpl-test",
		"name":        "No Auth",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var errBody map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody["error"] == "" {
		t.Fatalf("expected error message")
	}
}

func TestAPIRequiresMemberRole(t *testing.T) {
	api := newTestAPI(t)
	token := api.obtainToken("eve", "org-1", []string{"viewer"})
	headers := map[string]string{"Authorization": "Bearer " + token}

	resp := api.get("/v1/packs", nil, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestTokenEndpointValidation(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/token", map[string]any{
		"user":  "alice",
		"roles": []string{"member"},
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
