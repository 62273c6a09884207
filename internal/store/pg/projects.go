package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"packready.org/internal/ids"
	"packready.org/internal/project"
)

func (s *Store) PutEcosystem(ctx context.Context, eco project.Ecosystem) error {
	if eco.PermissionCode == "" {
		return project.ErrInvalidInput
	}
	definition, err := json.Marshal(eco)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into ecosystems(permission_code, definition, updated_at)
		values ($1,$2,now())
		on conflict (permission_code) do update
		set definition = excluded.definition, updated_at = now()
	`, eco.PermissionCode, definition)
	return err
}

func (s *Store) GetEcosystem(ctx context.Context, permissionCode string) (project.Ecosystem, error) {
	var definition []byte
	err := s.db.QueryRowContext(ctx, `
		select definition from ecosystems where permission_code=$1
	`, permissionCode).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		return project.Ecosystem{}, project.ErrEcosystemNotFound
	}
	if err != nil {
		return project.Ecosystem{}, err
	}
	var eco project.Ecosystem
	if err := json.Unmarshal(definition, &eco); err != nil {
		return project.Ecosystem{}, err
	}
	return eco, nil
}

func (s *Store) ListEcosystems(ctx context.Context) ([]project.Ecosystem, error) {
	rows, err := s.db.QueryContext(ctx, `
		select definition from ecosystems order by permission_code asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []project.Ecosystem
	for rows.Next() {
		var definition []byte
		if err := rows.Scan(&definition); err != nil {
			return nil, err
		}
		var eco project.Ecosystem
		if err := json.Unmarshal(definition, &eco); err != nil {
			return nil, err
		}
		out = append(out, eco)
	}
	return out, rows.Err()
}

func (s *Store) CreateProject(ctx context.Context, p project.CreateProjectParams) (project.Project, error) {
	if strings.TrimSpace(p.Name) == "" || p.OrganizationID == "" || p.PackID == "" {
		return project.Project{}, project.ErrInvalidInput
	}
	eco, err := s.GetEcosystem(ctx, p.PermissionCode)
	if err != nil {
		return project.Project{}, err
	}

	now := time.Now().UTC()
	pr := project.Project{
		ID:             ids.New(),
		OrganizationID: p.OrganizationID,
		PermissionCode: p.PermissionCode,
		PackID:         p.PackID,
		Name:           p.Name,
		Status:         project.StatusAssessment,
		Assessment:     project.NewAssessment(eco),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	assessment, err := json.Marshal(pr.Assessment)
	if err != nil {
		return project.Project{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		insert into projects(id, organization_id, permission_code, pack_id, name, status, assessment, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$8)
	`, pr.ID, pr.OrganizationID, pr.PermissionCode, pr.PackID, pr.Name, pr.Status, assessment, now); err != nil {
		return project.Project{}, err
	}
	return pr, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (project.Project, error) {
	return s.scanProject(s.db.QueryRowContext(ctx, `
		select id, organization_id, permission_code, pack_id, name, status, assessment, plan, created_at, updated_at
		from projects where id=$1 and deleted_at is null
	`, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanProject(row rowScanner) (project.Project, error) {
	var pr project.Project
	var assessment []byte
	var plan []byte
	err := row.Scan(&pr.ID, &pr.OrganizationID, &pr.PermissionCode, &pr.PackID, &pr.Name, &pr.Status, &assessment, &plan, &pr.CreatedAt, &pr.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return project.Project{}, project.ErrNotFound
	}
	if err != nil {
		return project.Project{}, err
	}
	if err := json.Unmarshal(assessment, &pr.Assessment); err != nil {
		return project.Project{}, err
	}
	if len(plan) > 0 {
		var p project.Plan
		if err := json.Unmarshal(plan, &p); err != nil {
			return project.Project{}, err
		}
		pr.Plan = &p
	}
	return pr, nil
}

func (s *Store) ListProjects(ctx context.Context, orgID string) ([]project.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, permission_code, pack_id, name, status, assessment, plan, created_at, updated_at
		from projects
		where deleted_at is null and ($1 = '' or organization_id = $1)
		order by created_at asc
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []project.Project
	for rows.Next() {
		pr, err := s.scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

// SaveAssessment recomputes completion eagerly before the write so readers
// never see a stale cached percentage.
func (s *Store) SaveAssessment(ctx context.Context, id string, a project.Assessment) (project.Project, error) {
	pr, err := s.GetProject(ctx, id)
	if err != nil {
		return project.Project{}, err
	}

	now := time.Now().UTC()
	if a.SchemaVersion == 0 {
		a.SchemaVersion = project.AssessmentSchemaVersion
	}
	a.RefreshCompletion(pr.PermissionCode, s.bank, now)

	assessment, err := json.Marshal(a)
	if err != nil {
		return project.Project{}, err
	}
	res, err := s.db.ExecContext(ctx, `
		update projects set assessment=$2, updated_at=$3
		where id=$1 and deleted_at is null
	`, id, assessment, now)
	if err != nil {
		return project.Project{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return project.Project{}, err
	}
	if n == 0 {
		return project.Project{}, project.ErrNotFound
	}
	pr.Assessment = a
	pr.UpdatedAt = now
	return pr, nil
}

// SavePlan overwrites any prior plan wholesale and advances the project
// into planning.
func (s *Store) SavePlan(ctx context.Context, id string, plan project.Plan) (project.Project, error) {
	pr, err := s.GetProject(ctx, id)
	if err != nil {
		return project.Project{}, err
	}

	now := time.Now().UTC()
	encoded, err := json.Marshal(plan)
	if err != nil {
		return project.Project{}, err
	}
	res, err := s.db.ExecContext(ctx, `
		update projects set plan=$2, status=$3, updated_at=$4
		where id=$1 and deleted_at is null
	`, id, encoded, project.StatusPlanning, now)
	if err != nil {
		return project.Project{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return project.Project{}, err
	}
	if n == 0 {
		return project.Project{}, project.ErrNotFound
	}
	pr.Plan = &plan
	pr.Status = project.StatusPlanning
	pr.UpdatedAt = now
	return pr, nil
}

func (s *Store) SoftDeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update projects set deleted_at=now(), updated_at=now()
		where id=$1 and deleted_at is null
	`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return project.ErrNotFound
	}
	return nil
}
