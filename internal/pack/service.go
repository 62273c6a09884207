package pack

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"packready.org/internal/ids"
)

// CreatePackParams instantiates a pack from a template.
type CreatePackParams struct {
	TemplateID     string
	OrganizationID string
	Name           string
	TargetDate     *time.Time
}

// SaveResponseParams carries a prompt-response write. ExpectedVersion 0
// creates the response; any other value must match the stored version.
type SaveResponseParams struct {
	SectionID       string
	PromptID        string
	Value           string
	EditorID        string
	ExpectedVersion int
}

// SyncResult reports what a template backfill added.
type SyncResult struct {
	SectionsAdded int `json:"sections_added"`
	EvidenceAdded int `json:"evidence_added"`
}

// Service defines pack operations.
type Service interface {
	PutTemplate(ctx context.Context, t PackTemplate) error
	GetTemplate(ctx context.Context, id string) (PackTemplate, error)

	CreatePack(ctx context.Context, p CreatePackParams) (Pack, error)
	GetPack(ctx context.Context, id string) (Pack, error)
	ListPacks(ctx context.Context, orgID string) ([]Pack, error)
	SyncPack(ctx context.Context, id string) (SyncResult, error)
	SoftDeletePack(ctx context.Context, id string) error

	Sections(ctx context.Context, packID string) ([]SectionInstance, error)
	SectionCompletions(ctx context.Context, packID string) ([]SectionCompletion, error)
	SavePromptResponse(ctx context.Context, p SaveResponseParams) (PromptResponse, error)
	SetReviewGate(ctx context.Context, sectionID string, kind GateKind, state GateState, actor string) (SectionInstance, error)

	Evidence(ctx context.Context, packID string) ([]EvidenceItem, error)
	AddEvidenceVersion(ctx context.Context, evidenceID string, v EvidenceVersion) (EvidenceItem, error)
	SetEvidenceStatus(ctx context.Context, evidenceID string, status EvidenceStatus) (EvidenceItem, error)

	Tasks(ctx context.Context, packID string) ([]Task, error)

	PutDocument(ctx context.Context, d Document) (Document, error)
	HasOpinionPack(ctx context.Context, packID string) (bool, error)
}

// InMemory implements Service with in-process concurrency safety.
// The Postgres store mirrors the same semantics for production use.
type InMemory struct {
	mu        sync.RWMutex
	templates map[string]PackTemplate
	packs     map[string]*Pack
	sections  map[string]*SectionInstance      // section id -> instance
	responses map[string]map[string]*PromptResponse // section id -> prompt id -> response
	evidence  map[string]*EvidenceItem
	tasks     map[string][]Task // pack id -> tasks
	documents map[string][]Document
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an empty pack service.
func NewInMemory() *InMemory {
	return &InMemory{
		templates: make(map[string]PackTemplate),
		packs:     make(map[string]*Pack),
		sections:  make(map[string]*SectionInstance),
		responses: make(map[string]map[string]*PromptResponse),
		evidence:  make(map[string]*EvidenceItem),
		tasks:     make(map[string][]Task),
		documents: make(map[string][]Document),
	}
}

func (s *InMemory) PutTemplate(ctx context.Context, t PackTemplate) error {
	if t.ID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
	return nil
}

func (s *InMemory) GetTemplate(ctx context.Context, id string) (PackTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return PackTemplate{}, ErrTemplateNotFound
	}
	return t, nil
}

func (s *InMemory) CreatePack(ctx context.Context, p CreatePackParams) (Pack, error) {
	if strings.TrimSpace(p.Name) == "" || p.OrganizationID == "" {
		return Pack{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tmpl, ok := s.templates[p.TemplateID]
	if !ok {
		return Pack{}, ErrTemplateNotFound
	}

	now := time.Now().UTC()
	pk := &Pack{
		ID:             ids.New(),
		TemplateID:     tmpl.ID,
		OrganizationID: p.OrganizationID,
		Name:           p.Name,
		Status:         StatusDraft,
		TargetDate:     p.TargetDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.packs[pk.ID] = pk

	for _, st := range tmpl.Sections {
		s.instantiateSection(pk, st, now)
	}
	return *pk, nil
}

// instantiateSection creates the section instance, its two review gates,
// evidence items with sequential annex numbers, and the backing tasks.
// Caller holds the write lock.
func (s *InMemory) instantiateSection(pk *Pack, st SectionTemplate, now time.Time) {
	inst := &SectionInstance{
		ID:          ids.New(),
		PackID:      pk.ID,
		TemplateID:  st.ID,
		Code:        st.Code,
		Title:       st.Title,
		Position:    st.Position,
		ReviewState: ReviewDraft,
		Gates: []ReviewGate{
			{Kind: GateClientReview, State: GatePending, UpdatedAt: now},
			{Kind: GateConsultantReview, State: GatePending, UpdatedAt: now},
		},
	}
	for i := range inst.Gates {
		inst.Gates[i].SectionID = inst.ID
	}
	s.sections[inst.ID] = inst

	s.tasks[pk.ID] = append(s.tasks[pk.ID], Task{
		ID:        ids.New(),
		PackID:    pk.ID,
		SectionID: inst.ID,
		Title:     "Draft narrative: " + st.Title,
		Status:    TaskOpen,
		Priority:  PriorityMedium,
		CreatedAt: now,
	})

	for _, re := range st.Evidence {
		s.instantiateEvidence(pk, inst, re, now)
	}
}

func (s *InMemory) instantiateEvidence(pk *Pack, inst *SectionInstance, re RequiredEvidence, now time.Time) {
	item := &EvidenceItem{
		ID:          ids.New(),
		PackID:      pk.ID,
		SectionID:   inst.ID,
		RequiredID:  re.ID,
		Title:       re.Title,
		Status:      EvidenceRequired,
		AnnexNumber: s.nextAnnexLocked(pk.ID),
	}
	s.evidence[item.ID] = item

	s.tasks[pk.ID] = append(s.tasks[pk.ID], Task{
		ID:        ids.New(),
		PackID:    pk.ID,
		SectionID: inst.ID,
		Title:     "Upload evidence: " + re.Title,
		Status:    TaskOpen,
		Priority:  PriorityMedium,
		CreatedAt: now,
	})
}

// livePackLocked reports whether the pack exists and is not soft-deleted.
// Writes addressed through a child (section, evidence) refuse to touch a
// deleted pack the same way reads hide it. Caller holds a lock.
func (s *InMemory) livePackLocked(packID string) bool {
	pk, ok := s.packs[packID]
	return ok && pk.DeletedAt == nil
}

// nextAnnexLocked scans the current maximum annex number for the pack and
// increments it, mirroring the transactional max+1 the Postgres store uses.
func (s *InMemory) nextAnnexLocked(packID string) int {
	maxAnnex := 0
	for _, e := range s.evidence {
		if e.PackID == packID && e.AnnexNumber > maxAnnex {
			maxAnnex = e.AnnexNumber
		}
	}
	return maxAnnex + 1
}

func (s *InMemory) GetPack(ctx context.Context, id string) (Pack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pk, ok := s.packs[id]
	if !ok || pk.DeletedAt != nil {
		return Pack{}, ErrNotFound
	}
	return *pk, nil
}

func (s *InMemory) ListPacks(ctx context.Context, orgID string) ([]Pack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Pack
	for _, pk := range s.packs {
		if pk.DeletedAt != nil {
			continue
		}
		if orgID != "" && pk.OrganizationID != orgID {
			continue
		}
		out = append(out, *pk)
	}
	return out, nil
}

// SyncPack backfills sections and evidence added to the template since the
// pack was created. Existing instances are never disturbed.
func (s *InMemory) SyncPack(ctx context.Context, id string) (SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pk, ok := s.packs[id]
	if !ok || pk.DeletedAt != nil {
		return SyncResult{}, ErrNotFound
	}
	tmpl, ok := s.templates[pk.TemplateID]
	if !ok {
		return SyncResult{}, ErrTemplateNotFound
	}

	now := time.Now().UTC()
	var res SyncResult
	for _, st := range tmpl.Sections {
		inst := s.sectionByTemplateLocked(pk.ID, st.ID)
		if inst == nil {
			s.instantiateSection(pk, st, now)
			res.SectionsAdded++
			res.EvidenceAdded += len(st.Evidence)
			continue
		}
		for _, re := range st.Evidence {
			if s.evidenceByRequiredLocked(pk.ID, re.ID) == nil {
				s.instantiateEvidence(pk, inst, re, now)
				res.EvidenceAdded++
			}
		}
	}
	pk.UpdatedAt = now
	return res, nil
}

func (s *InMemory) sectionByTemplateLocked(packID, templateID string) *SectionInstance {
	for _, inst := range s.sections {
		if inst.PackID == packID && inst.TemplateID == templateID {
			return inst
		}
	}
	return nil
}

func (s *InMemory) evidenceByRequiredLocked(packID, requiredID string) *EvidenceItem {
	for _, e := range s.evidence {
		if e.PackID == packID && e.RequiredID == requiredID {
			return e
		}
	}
	return nil
}

func (s *InMemory) SoftDeletePack(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pk, ok := s.packs[id]
	if !ok || pk.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	pk.DeletedAt = &now
	pk.UpdatedAt = now
	return nil
}

func (s *InMemory) Sections(ctx context.Context, packID string) ([]SectionInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pk, ok := s.packs[packID]
	if !ok || pk.DeletedAt != nil {
		return nil, ErrNotFound
	}
	return s.sectionsLocked(packID), nil
}

func sortSections(list []SectionInstance) {
	sort.Slice(list, func(i, j int) bool { return list[i].Position < list[j].Position })
}

func (s *InMemory) SectionCompletions(ctx context.Context, packID string) ([]SectionCompletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pk, ok := s.packs[packID]
	if !ok || pk.DeletedAt != nil {
		return nil, ErrNotFound
	}
	tmpl := s.templates[pk.TemplateID]

	sections := s.sectionsLocked(packID)
	out := make([]SectionCompletion, 0, len(sections))
	for _, inst := range sections {
		counts := SectionCounts{GatesTotal: len(inst.Gates)}
		for _, g := range inst.Gates {
			if g.State == GateApproved {
				counts.GatesApproved++
			}
		}
		for _, st := range tmpl.Sections {
			if st.ID != inst.TemplateID {
				continue
			}
			for _, p := range st.Prompts {
				if !p.Required {
					continue
				}
				counts.RequiredPrompts++
				if r, ok := s.responses[inst.ID][p.ID]; ok && strings.TrimSpace(r.Value) != "" {
					counts.AnsweredPrompts++
				}
			}
		}
		for _, e := range s.evidence {
			if e.SectionID != inst.ID {
				continue
			}
			counts.EvidenceTotal++
			if e.Status.Delivered() {
				counts.EvidenceDone++
			}
		}
		sc := counts.Completion()
		sc.SectionID = inst.ID
		sc.Code = inst.Code
		sc.Title = inst.Title
		out = append(out, sc)
	}
	return out, nil
}

func (s *InMemory) sectionsLocked(packID string) []SectionInstance {
	var out []SectionInstance
	for _, inst := range s.sections {
		if inst.PackID == packID {
			out = append(out, *inst)
		}
	}
	sortSections(out)
	return out
}

// SavePromptResponse performs a compare-and-swap write. A stale expected
// version leaves the stored value untouched and returns a
// *VersionConflictError carrying the current version and last editor.
func (s *InMemory) SavePromptResponse(ctx context.Context, p SaveResponseParams) (PromptResponse, error) {
	if p.SectionID == "" || p.PromptID == "" {
		return PromptResponse{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, ok := s.sections[p.SectionID]
	if !ok || !s.livePackLocked(sec.PackID) {
		return PromptResponse{}, ErrSectionNotFound
	}

	byPrompt := s.responses[p.SectionID]
	if byPrompt == nil {
		byPrompt = make(map[string]*PromptResponse)
		s.responses[p.SectionID] = byPrompt
	}

	now := time.Now().UTC()
	existing, ok := byPrompt[p.PromptID]
	if !ok {
		if p.ExpectedVersion != 0 {
			return PromptResponse{}, &VersionConflictError{CurrentVersion: 0}
		}
		resp := &PromptResponse{
			SectionID:    p.SectionID,
			PromptID:     p.PromptID,
			Value:        p.Value,
			Version:      1,
			LastEditedBy: p.EditorID,
			UpdatedAt:    now,
		}
		byPrompt[p.PromptID] = resp
		return *resp, nil
	}

	if existing.Version != p.ExpectedVersion {
		return PromptResponse{}, &VersionConflictError{
			CurrentVersion: existing.Version,
			LastEditedBy:   existing.LastEditedBy,
		}
	}
	existing.Value = p.Value
	existing.Version++
	existing.LastEditedBy = p.EditorID
	existing.UpdatedAt = now
	return *existing, nil
}

// SetReviewGate updates one gate and re-derives the section review state.
// A changes-requested gate raises an escalation task.
func (s *InMemory) SetReviewGate(ctx context.Context, sectionID string, kind GateKind, state GateState, actor string) (SectionInstance, error) {
	if !kind.Valid() || !state.Valid() {
		return SectionInstance{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.sections[sectionID]
	if !ok || !s.livePackLocked(inst.PackID) {
		return SectionInstance{}, ErrSectionNotFound
	}

	now := time.Now().UTC()
	found := false
	for i := range inst.Gates {
		if inst.Gates[i].Kind == kind {
			inst.Gates[i].State = state
			inst.Gates[i].Actor = actor
			inst.Gates[i].UpdatedAt = now
			found = true
		}
	}
	if !found {
		return SectionInstance{}, ErrInvalidInput
	}

	inst.ReviewState = DeriveReviewState(inst.ReviewState, inst.Gates)
	if state == GateChangesRequested {
		s.tasks[inst.PackID] = append(s.tasks[inst.PackID], Task{
			ID:        ids.New(),
			PackID:    inst.PackID,
			SectionID: inst.ID,
			Title:     "Address review changes: " + inst.Title,
			Status:    TaskOpen,
			Priority:  PriorityHigh,
			CreatedAt: now,
		})
	}
	return *inst, nil
}

func (s *InMemory) Evidence(ctx context.Context, packID string) ([]EvidenceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pk, ok := s.packs[packID]
	if !ok || pk.DeletedAt != nil {
		return nil, ErrNotFound
	}
	var out []EvidenceItem
	for _, e := range s.evidence {
		if e.PackID == packID {
			out = append(out, *e)
		}
	}
	sortEvidence(out)
	return out, nil
}

func sortEvidence(list []EvidenceItem) {
	sort.Slice(list, func(i, j int) bool { return list[i].AnnexNumber < list[j].AnnexNumber })
}

// AddEvidenceVersion records an upload and moves a still-required item to
// uploaded. Approved items keep their status.
func (s *InMemory) AddEvidenceVersion(ctx context.Context, evidenceID string, v EvidenceVersion) (EvidenceItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.evidence[evidenceID]
	if !ok || !s.livePackLocked(item.PackID) {
		return EvidenceItem{}, ErrEvidenceNotFound
	}
	if v.UploadedAt.IsZero() {
		v.UploadedAt = time.Now().UTC()
	}
	item.Versions = append(item.Versions, v)
	if item.Status == EvidenceRequired || item.Status == EvidenceRejected {
		item.Status = EvidenceUploaded
	}
	return *item, nil
}

func (s *InMemory) SetEvidenceStatus(ctx context.Context, evidenceID string, status EvidenceStatus) (EvidenceItem, error) {
	if !status.Valid() {
		return EvidenceItem{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.evidence[evidenceID]
	if !ok || !s.livePackLocked(item.PackID) {
		return EvidenceItem{}, ErrEvidenceNotFound
	}
	item.Status = status
	return *item, nil
}

func (s *InMemory) Tasks(ctx context.Context, packID string) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pk, ok := s.packs[packID]
	if !ok || pk.DeletedAt != nil {
		return nil, ErrNotFound
	}
	out := make([]Task, len(s.tasks[packID]))
	copy(out, s.tasks[packID])
	return out, nil
}

func (s *InMemory) PutDocument(ctx context.Context, d Document) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.packs[d.PackID]; !ok {
		return Document{}, ErrNotFound
	}
	if d.ID == "" {
		d.ID = ids.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	s.documents[d.PackID] = append(s.documents[d.PackID], d)
	return d, nil
}

func (s *InMemory) HasOpinionPack(ctx context.Context, packID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if pk, ok := s.packs[packID]; !ok || pk.DeletedAt != nil {
		return false, ErrNotFound
	}
	for _, d := range s.documents[packID] {
		if d.DeletedAt != nil {
			continue
		}
		if d.SectionCode == OpinionPackSectionCode && strings.TrimSpace(d.StorageKey) != "" {
			return true, nil
		}
	}
	return false, nil
}
