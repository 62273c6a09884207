package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"packready.org/internal/pack"
	"packready.org/internal/project"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, project.NewStaticQuestionBank()), mock
}

func TestSavePromptResponseUpdates(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select 1 from section_instances").WithArgs("sec-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("update prompt_responses").
		WithArgs("sec-1", "p1", "updated text", "bob", sqlmock.AnyArg(), 2).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(3))
	mock.ExpectCommit()

	resp, err := s.SavePromptResponse(context.Background(), pack.SaveResponseParams{
		SectionID:       "sec-1",
		PromptID:        "p1",
		Value:           "updated text",
		EditorID:        "bob",
		ExpectedVersion: 2,
	})
	if err != nil {
		t.Fatalf("SavePromptResponse: %v", err)
	}
	if resp.Version != 3 {
		t.Fatalf("expected version 3, got %d", resp.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSavePromptResponseConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select 1 from section_instances").WithArgs("sec-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("update prompt_responses").
		WithArgs("sec-1", "p1", "stale write", "bob", sqlmock.AnyArg(), 1).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("select version, last_edited_by from prompt_responses").
		WithArgs("sec-1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"version", "last_edited_by"}).AddRow(4, "alice"))
	mock.ExpectRollback()

	_, err := s.SavePromptResponse(context.Background(), pack.SaveResponseParams{
		SectionID:       "sec-1",
		PromptID:        "p1",
		Value:           "stale write",
		EditorID:        "bob",
		ExpectedVersion: 1,
	})
	var conflict *pack.VersionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected VersionConflictError, got %v", err)
	}
	if conflict.CurrentVersion != 4 || conflict.LastEditedBy != "alice" {
		t.Fatalf("conflict detail wrong: %+v", conflict)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSavePromptResponseCreateLosesRace(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select 1 from section_instances").WithArgs("sec-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec("insert into prompt_responses").
		WithArgs("sec-1", "p1", "first draft", "bob", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select version, last_edited_by from prompt_responses").
		WithArgs("sec-1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"version", "last_edited_by"}).AddRow(1, "alice"))
	mock.ExpectRollback()

	_, err := s.SavePromptResponse(context.Background(), pack.SaveResponseParams{
		SectionID: "sec-1",
		PromptID:  "p1",
		Value:     "first draft",
		EditorID:  "bob",
	})
	var conflict *pack.VersionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected VersionConflictError, got %v", err)
	}
	if conflict.CurrentVersion != 1 || conflict.LastEditedBy != "alice" {
		t.Fatalf("conflict detail wrong: %+v", conflict)
	}
}

func TestSavePromptResponseDeletedPackHidden(t *testing.T) {
	s, mock := newMockStore(t)

	// The section lookup joins the owning pack's not-deleted predicate, so
	// a soft-deleted pack makes its sections unwritable.
	mock.ExpectBegin()
	mock.ExpectQuery("(?s)select 1 from section_instances si.*join packs p.*deleted_at is null").
		WithArgs("sec-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.SavePromptResponse(context.Background(), pack.SaveResponseParams{
		SectionID: "sec-1",
		PromptID:  "p1",
		Value:     "late edit",
		EditorID:  "alice",
	})
	if !errors.Is(err, pack.ErrSectionNotFound) {
		t.Fatalf("expected ErrSectionNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAddEvidenceVersionDeletedPackHidden(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("(?s)from evidence_items e.*join packs p.*deleted_at is null").
		WithArgs("ev-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.AddEvidenceVersion(context.Background(), "ev-1", pack.EvidenceVersion{
		FileName: "late.pdf", StorageKey: "k1", UploadedBy: "alice",
	})
	if !errors.Is(err, pack.ErrEvidenceNotFound) {
		t.Fatalf("expected ErrEvidenceNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetEvidenceStatusDeletedPackHidden(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("(?s)update evidence_items e set status.*from packs p.*deleted_at is null").
		WithArgs("ev-1", string(pack.EvidenceApproved)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.SetEvidenceStatus(context.Background(), "ev-1", pack.EvidenceApproved)
	if !errors.Is(err, pack.ErrEvidenceNotFound) {
		t.Fatalf("expected ErrEvidenceNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSoftDeletePackNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("update packs set deleted_at").WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.SoftDeletePack(context.Background(), "missing"); err != pack.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSyncPackAssignsAnnexFromCurrentMax(t *testing.T) {
	s, mock := newMockStore(t)

	tmpl := `{"id":"tpl-1","type":"payment_institution","name":"PI pack","sections":[` +
		`{"id":"st-1","code":"governance","title":"Governance","position":1,` +
		`"evidence":[{"id":"re-1","title":"Org chart"},{"id":"re-2","title":"Board terms"}]}]}`

	mock.ExpectBegin()
	mock.ExpectQuery("select template_id from packs").WithArgs("pack-1").
		WillReturnRows(sqlmock.NewRows([]string{"template_id"}).AddRow("tpl-1"))
	mock.ExpectQuery("select definition from pack_templates").WithArgs("tpl-1").
		WillReturnRows(sqlmock.NewRows([]string{"definition"}).AddRow([]byte(tmpl)))
	mock.ExpectQuery("select template_id from section_instances").WithArgs("pack-1").
		WillReturnRows(sqlmock.NewRows([]string{"template_id"}).AddRow("st-1"))
	mock.ExpectQuery("select required_id from evidence_items").WithArgs("pack-1").
		WillReturnRows(sqlmock.NewRows([]string{"required_id"}).AddRow("re-1"))
	mock.ExpectQuery("select template_id, id from section_instances").WithArgs("pack-1").
		WillReturnRows(sqlmock.NewRows([]string{"template_id", "id"}).AddRow("st-1", "sec-1"))
	mock.ExpectQuery("select coalesce\\(max\\(annex_number\\), 0\\)").WithArgs("pack-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(5))
	// Only re-2 is missing: one evidence insert at annex 6 plus its task.
	mock.ExpectExec("insert into evidence_items").
		WithArgs(sqlmock.AnyArg(), "pack-1", "sec-1", "re-2", "Board terms", string(pack.EvidenceRequired), 6, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into tasks").
		WithArgs(sqlmock.AnyArg(), "pack-1", "sec-1", "Upload evidence: Board terms", string(pack.TaskOpen), string(pack.PriorityMedium), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("update packs set updated_at").WithArgs("pack-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := s.SyncPack(context.Background(), "pack-1")
	if err != nil {
		t.Fatalf("SyncPack: %v", err)
	}
	if res.SectionsAdded != 0 || res.EvidenceAdded != 1 {
		t.Fatalf("unexpected sync result: %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetTemplateNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("select definition from pack_templates").WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := s.GetTemplate(context.Background(), "missing"); err != pack.ErrTemplateNotFound {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestHasOpinionPack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("select 1 from packs").WithArgs("pack-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("select exists").WithArgs("pack-1", pack.OpinionPackSectionCode).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	found, err := s.HasOpinionPack(context.Background(), "pack-1")
	if err != nil {
		t.Fatalf("HasOpinionPack: %v", err)
	}
	if !found {
		t.Fatal("expected opinion pack to be reported")
	}
}

func TestSaveAssessmentRecomputesCompletion(t *testing.T) {
	s, mock := newMockStore(t)

	stored := `{"schema_version":1,"firm_basics":{},"readiness":{},"policies":{},"training":{},"smcr_roles":{},"completion_percent":0,"completion_updated_at":"0001-01-01T00:00:00Z"}`
	mock.ExpectQuery("select id, organization_id, permission_code").WithArgs("proj-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "permission_code", "pack_id", "name", "status", "assessment", "plan", "created_at", "updated_at",
		}).AddRow("proj-1", "org-1", "payment_institution", "pack-1", "Acme PI", "assessment", []byte(stored), nil, time.Now(), time.Now()))
	mock.ExpectExec("update projects set assessment").
		WithArgs("proj-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	a := project.Assessment{
		FirmBasics: project.FirmBasics{LegalName: "Acme Ltd"},
		Readiness:  map[project.ReadinessItem]project.ItemStatus{project.ReadinessBusinessPlan: project.ItemComplete},
	}
	pr, err := s.SaveAssessment(context.Background(), "proj-1", a)
	if err != nil {
		t.Fatalf("SaveAssessment: %v", err)
	}
	if pr.Assessment.CompletionPercent == 0 {
		t.Fatal("expected completion to be recomputed on save")
	}
	if pr.Assessment.CompletionUpdatedAt.IsZero() {
		t.Fatal("expected completion timestamp to be stamped")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
