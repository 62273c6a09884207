package project

import (
	"context"
	"strings"
	"sync"
	"time"

	"packready.org/internal/ids"
)

// CreateProjectParams binds an organization and permission to a freshly
// created pack.
type CreateProjectParams struct {
	OrganizationID string
	PermissionCode string
	PackID         string
	Name           string
}

// Service defines authorization-project operations.
type Service interface {
	PutEcosystem(ctx context.Context, eco Ecosystem) error
	GetEcosystem(ctx context.Context, permissionCode string) (Ecosystem, error)
	ListEcosystems(ctx context.Context) ([]Ecosystem, error)

	CreateProject(ctx context.Context, p CreateProjectParams) (Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	ListProjects(ctx context.Context, orgID string) ([]Project, error)
	SaveAssessment(ctx context.Context, id string, a Assessment) (Project, error)
	SavePlan(ctx context.Context, id string, plan Plan) (Project, error)
	SoftDeleteProject(ctx context.Context, id string) error
}

// InMemory implements Service with in-process concurrency safety. The
// Postgres store mirrors the same semantics.
type InMemory struct {
	mu         sync.RWMutex
	ecosystems map[string]Ecosystem
	projects   map[string]*Project
	bank       QuestionBank
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an empty project service. The question bank feeds
// the assessment-completion denominator.
func NewInMemory(bank QuestionBank) *InMemory {
	return &InMemory{
		ecosystems: make(map[string]Ecosystem),
		projects:   make(map[string]*Project),
		bank:       bank,
	}
}

func (s *InMemory) PutEcosystem(ctx context.Context, eco Ecosystem) error {
	if eco.PermissionCode == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ecosystems[eco.PermissionCode] = eco
	return nil
}

func (s *InMemory) GetEcosystem(ctx context.Context, permissionCode string) (Ecosystem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	eco, ok := s.ecosystems[permissionCode]
	if !ok {
		return Ecosystem{}, ErrEcosystemNotFound
	}
	return eco, nil
}

func (s *InMemory) ListEcosystems(ctx context.Context) ([]Ecosystem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Ecosystem, 0, len(s.ecosystems))
	for _, code := range sortedKeys(s.ecosystems) {
		out = append(out, s.ecosystems[code])
	}
	return out, nil
}

// CreateProject normalizes a fresh assessment against the permission's
// ecosystem so the completion denominator is stable from the first save.
func (s *InMemory) CreateProject(ctx context.Context, p CreateProjectParams) (Project, error) {
	if strings.TrimSpace(p.Name) == "" || p.OrganizationID == "" || p.PackID == "" {
		return Project{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	eco, ok := s.ecosystems[p.PermissionCode]
	if !ok {
		return Project{}, ErrEcosystemNotFound
	}

	now := time.Now().UTC()
	pr := &Project{
		ID:             ids.New(),
		OrganizationID: p.OrganizationID,
		PermissionCode: p.PermissionCode,
		PackID:         p.PackID,
		Name:           p.Name,
		Status:         StatusAssessment,
		Assessment:     NewAssessment(eco),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.projects[pr.ID] = pr
	return *pr, nil
}

func (s *InMemory) GetProject(ctx context.Context, id string) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pr, ok := s.projects[id]
	if !ok || pr.DeletedAt != nil {
		return Project{}, ErrNotFound
	}
	return *pr, nil
}

func (s *InMemory) ListProjects(ctx context.Context, orgID string) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Project
	for _, pr := range s.projects {
		if pr.DeletedAt != nil {
			continue
		}
		if orgID != "" && pr.OrganizationID != orgID {
			continue
		}
		out = append(out, *pr)
	}
	return out, nil
}

// SaveAssessment stores the snapshot with its completion recomputed
// eagerly, so readers never see a stale cached percentage.
func (s *InMemory) SaveAssessment(ctx context.Context, id string, a Assessment) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pr, ok := s.projects[id]
	if !ok || pr.DeletedAt != nil {
		return Project{}, ErrNotFound
	}

	now := time.Now().UTC()
	if a.SchemaVersion == 0 {
		a.SchemaVersion = AssessmentSchemaVersion
	}
	a.RefreshCompletion(pr.PermissionCode, s.bank, now)
	pr.Assessment = a
	pr.UpdatedAt = now
	return *pr, nil
}

// SavePlan overwrites any prior plan wholesale and advances the project
// into planning.
func (s *InMemory) SavePlan(ctx context.Context, id string, plan Plan) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pr, ok := s.projects[id]
	if !ok || pr.DeletedAt != nil {
		return Project{}, ErrNotFound
	}
	now := time.Now().UTC()
	pr.Plan = &plan
	pr.Status = StatusPlanning
	pr.UpdatedAt = now
	return *pr, nil
}

func (s *InMemory) SoftDeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr, ok := s.projects[id]
	if !ok || pr.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	pr.DeletedAt = &now
	pr.UpdatedAt = now
	return nil
}
