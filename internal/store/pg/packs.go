package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"packready.org/internal/ids"
	"packready.org/internal/pack"
)

func (s *Store) PutTemplate(ctx context.Context, t pack.PackTemplate) error {
	if t.ID == "" {
		return pack.ErrInvalidInput
	}
	definition, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into pack_templates(id, template_type, name, definition, updated_at)
		values ($1,$2,$3,$4,now())
		on conflict (id) do update
		set template_type = excluded.template_type,
		    name = excluded.name,
		    definition = excluded.definition,
		    updated_at = now()
	`, t.ID, t.Type, t.Name, definition)
	return err
}

func (s *Store) GetTemplate(ctx context.Context, id string) (pack.PackTemplate, error) {
	var definition []byte
	err := s.db.QueryRowContext(ctx, `select definition from pack_templates where id=$1`, id).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		return pack.PackTemplate{}, pack.ErrTemplateNotFound
	}
	if err != nil {
		return pack.PackTemplate{}, err
	}
	var t pack.PackTemplate
	if err := json.Unmarshal(definition, &t); err != nil {
		return pack.PackTemplate{}, err
	}
	return t, nil
}

func (s *Store) CreatePack(ctx context.Context, p pack.CreatePackParams) (pack.Pack, error) {
	if strings.TrimSpace(p.Name) == "" || p.OrganizationID == "" {
		return pack.Pack{}, pack.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pack.Pack{}, err
	}
	defer func() { _ = tx.Rollback() }()

	tmpl, err := templateTx(ctx, tx, p.TemplateID)
	if err != nil {
		return pack.Pack{}, err
	}

	now := time.Now().UTC()
	pk := pack.Pack{
		ID:             ids.New(),
		TemplateID:     tmpl.ID,
		OrganizationID: p.OrganizationID,
		Name:           p.Name,
		Status:         pack.StatusDraft,
		TargetDate:     p.TargetDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := tx.ExecContext(ctx, `
		insert into packs(id, template_id, organization_id, name, status, target_date, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$7)
	`, pk.ID, pk.TemplateID, pk.OrganizationID, pk.Name, pk.Status, pk.TargetDate, now); err != nil {
		return pack.Pack{}, err
	}

	annex := 0
	for _, st := range tmpl.Sections {
		if err := insertSectionTx(ctx, tx, pk.ID, st, now, &annex); err != nil {
			return pack.Pack{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return pack.Pack{}, err
	}
	return pk, nil
}

func templateTx(ctx context.Context, tx *sql.Tx, id string) (pack.PackTemplate, error) {
	var definition []byte
	err := tx.QueryRowContext(ctx, `select definition from pack_templates where id=$1`, id).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		return pack.PackTemplate{}, pack.ErrTemplateNotFound
	}
	if err != nil {
		return pack.PackTemplate{}, err
	}
	var t pack.PackTemplate
	if err := json.Unmarshal(definition, &t); err != nil {
		return pack.PackTemplate{}, err
	}
	return t, nil
}

// insertSectionTx creates the section instance, its two review gates, its
// narrative task, and the evidence items with sequential annex numbers.
// annex carries the pack's current maximum across calls.
func insertSectionTx(ctx context.Context, tx *sql.Tx, packID string, st pack.SectionTemplate, now time.Time, annex *int) error {
	sectionID := ids.New()
	if _, err := tx.ExecContext(ctx, `
		insert into section_instances(id, pack_id, template_id, code, title, position, review_state, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, sectionID, packID, st.ID, st.Code, st.Title, st.Position, pack.ReviewDraft, now); err != nil {
		return err
	}
	for _, kind := range []pack.GateKind{pack.GateClientReview, pack.GateConsultantReview} {
		if _, err := tx.ExecContext(ctx, `
			insert into review_gates(section_id, kind, state, updated_at)
			values ($1,$2,$3,$4)
		`, sectionID, kind, pack.GatePending, now); err != nil {
			return err
		}
	}
	if err := insertTaskTx(ctx, tx, packID, sectionID, "Draft narrative: "+st.Title, pack.PriorityMedium, now); err != nil {
		return err
	}
	for _, re := range st.Evidence {
		*annex++
		if err := insertEvidenceTx(ctx, tx, packID, sectionID, re, *annex, now); err != nil {
			return err
		}
	}
	return nil
}

func insertEvidenceTx(ctx context.Context, tx *sql.Tx, packID, sectionID string, re pack.RequiredEvidence, annex int, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `
		insert into evidence_items(id, pack_id, section_id, required_id, title, status, annex_number, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, ids.New(), packID, sectionID, re.ID, re.Title, pack.EvidenceRequired, annex, now); err != nil {
		return err
	}
	return insertTaskTx(ctx, tx, packID, sectionID, "Upload evidence: "+re.Title, pack.PriorityMedium, now)
}

func insertTaskTx(ctx context.Context, tx *sql.Tx, packID, sectionID, title string, priority pack.TaskPriority, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		insert into tasks(id, pack_id, section_id, title, status, priority, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, ids.New(), packID, sectionID, title, pack.TaskOpen, priority, now)
	return err
}

func (s *Store) GetPack(ctx context.Context, id string) (pack.Pack, error) {
	var pk pack.Pack
	err := s.db.QueryRowContext(ctx, `
		select id, template_id, organization_id, name, status, target_date, created_at, updated_at
		from packs where id=$1 and deleted_at is null
	`, id).Scan(&pk.ID, &pk.TemplateID, &pk.OrganizationID, &pk.Name, &pk.Status, &pk.TargetDate, &pk.CreatedAt, &pk.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pack.Pack{}, pack.ErrNotFound
	}
	if err != nil {
		return pack.Pack{}, err
	}
	return pk, nil
}

func (s *Store) ListPacks(ctx context.Context, orgID string) ([]pack.Pack, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, template_id, organization_id, name, status, target_date, created_at, updated_at
		from packs
		where deleted_at is null and ($1 = '' or organization_id = $1)
		order by created_at asc
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pack.Pack
	for rows.Next() {
		var pk pack.Pack
		if err := rows.Scan(&pk.ID, &pk.TemplateID, &pk.OrganizationID, &pk.Name, &pk.Status, &pk.TargetDate, &pk.CreatedAt, &pk.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, pk)
	}
	return out, rows.Err()
}

// SyncPack backfills sections and evidence added to the template since the
// pack was created. The pack row is locked so concurrent syncs cannot hand
// out duplicate annex numbers.
func (s *Store) SyncPack(ctx context.Context, id string) (pack.SyncResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pack.SyncResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var templateID string
	err = tx.QueryRowContext(ctx, `
		select template_id from packs where id=$1 and deleted_at is null for update
	`, id).Scan(&templateID)
	if errors.Is(err, sql.ErrNoRows) {
		return pack.SyncResult{}, pack.ErrNotFound
	}
	if err != nil {
		return pack.SyncResult{}, err
	}

	tmpl, err := templateTx(ctx, tx, templateID)
	if err != nil {
		return pack.SyncResult{}, err
	}

	existingSections, err := stringSet(ctx, tx, `select template_id from section_instances where pack_id=$1`, id)
	if err != nil {
		return pack.SyncResult{}, err
	}
	existingEvidence, err := stringSet(ctx, tx, `select required_id from evidence_items where pack_id=$1`, id)
	if err != nil {
		return pack.SyncResult{}, err
	}
	sectionIDs := make(map[string]string)
	rows, err := tx.QueryContext(ctx, `select template_id, id from section_instances where pack_id=$1`, id)
	if err != nil {
		return pack.SyncResult{}, err
	}
	for rows.Next() {
		var tid, sid string
		if err := rows.Scan(&tid, &sid); err != nil {
			rows.Close()
			return pack.SyncResult{}, err
		}
		sectionIDs[tid] = sid
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return pack.SyncResult{}, err
	}

	annex := 0
	if err := tx.QueryRowContext(ctx, `
		select coalesce(max(annex_number), 0) from evidence_items where pack_id=$1
	`, id).Scan(&annex); err != nil {
		return pack.SyncResult{}, err
	}

	now := time.Now().UTC()
	var res pack.SyncResult
	for _, st := range tmpl.Sections {
		if !existingSections[st.ID] {
			if err := insertSectionTx(ctx, tx, id, st, now, &annex); err != nil {
				return pack.SyncResult{}, err
			}
			res.SectionsAdded++
			res.EvidenceAdded += len(st.Evidence)
			continue
		}
		for _, re := range st.Evidence {
			if existingEvidence[re.ID] {
				continue
			}
			annex++
			if err := insertEvidenceTx(ctx, tx, id, sectionIDs[st.ID], re, annex, now); err != nil {
				return pack.SyncResult{}, err
			}
			res.EvidenceAdded++
		}
	}

	if _, err := tx.ExecContext(ctx, `update packs set updated_at=$2 where id=$1`, id, now); err != nil {
		return pack.SyncResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return pack.SyncResult{}, err
	}
	return res, nil
}

func stringSet(ctx context.Context, tx *sql.Tx, query string, args ...any) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func (s *Store) SoftDeletePack(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update packs set deleted_at=now(), updated_at=now()
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
		return pack.ErrNotFound
	}
	return nil
}

func (s *Store) packExists(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `select 1 from packs where id=$1 and deleted_at is null`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return pack.ErrNotFound
	}
	return err
}

func (s *Store) Sections(ctx context.Context, packID string) ([]pack.SectionInstance, error) {
	if err := s.packExists(ctx, packID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, pack_id, template_id, code, title, position, review_state
		from section_instances where pack_id=$1 order by position asc
	`, packID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pack.SectionInstance
	index := make(map[string]int)
	for rows.Next() {
		var inst pack.SectionInstance
		if err := rows.Scan(&inst.ID, &inst.PackID, &inst.TemplateID, &inst.Code, &inst.Title, &inst.Position, &inst.ReviewState); err != nil {
			return nil, err
		}
		index[inst.ID] = len(out)
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	gateRows, err := s.db.QueryContext(ctx, `
		select g.section_id, g.kind, g.state, coalesce(g.actor,''), g.updated_at
		from review_gates g
		join section_instances si on si.id = g.section_id
		where si.pack_id=$1
		order by g.section_id, g.kind
	`, packID)
	if err != nil {
		return nil, err
	}
	defer gateRows.Close()

	for gateRows.Next() {
		var g pack.ReviewGate
		if err := gateRows.Scan(&g.SectionID, &g.Kind, &g.State, &g.Actor, &g.UpdatedAt); err != nil {
			return nil, err
		}
		if i, ok := index[g.SectionID]; ok {
			out[i].Gates = append(out[i].Gates, g)
		}
	}
	return out, gateRows.Err()
}

// SectionCompletions aggregates per-section counts and feeds them through
// the pure completion math. Required-prompt counts come from the template
// definition, answered counts from non-blank stored responses.
func (s *Store) SectionCompletions(ctx context.Context, packID string) ([]pack.SectionCompletion, error) {
	pk, err := s.GetPack(ctx, packID)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.GetTemplate(ctx, pk.TemplateID)
	if err != nil {
		return nil, err
	}
	sections, err := s.Sections(ctx, packID)
	if err != nil {
		return nil, err
	}

	answered := make(map[string]map[string]bool) // section id -> prompt id -> answered
	rows, err := s.db.QueryContext(ctx, `
		select r.section_id, r.prompt_id, r.value
		from prompt_responses r
		join section_instances si on si.id = r.section_id
		where si.pack_id=$1
	`, packID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var sectionID, promptID, value string
		if err := rows.Scan(&sectionID, &promptID, &value); err != nil {
			rows.Close()
			return nil, err
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		if answered[sectionID] == nil {
			answered[sectionID] = make(map[string]bool)
		}
		answered[sectionID][promptID] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	type evCount struct{ total, done int }
	evidence := make(map[string]evCount)
	evRows, err := s.db.QueryContext(ctx, `
		select section_id,
		       count(*),
		       count(*) filter (where status in ('uploaded','approved'))
		from evidence_items
		where pack_id=$1
		group by section_id
	`, packID)
	if err != nil {
		return nil, err
	}
	for evRows.Next() {
		var sectionID string
		var c evCount
		if err := evRows.Scan(&sectionID, &c.total, &c.done); err != nil {
			evRows.Close()
			return nil, err
		}
		evidence[sectionID] = c
	}
	evRows.Close()
	if err := evRows.Err(); err != nil {
		return nil, err
	}

	prompts := make(map[string][]pack.Prompt) // template section id -> prompts
	for _, st := range tmpl.Sections {
		prompts[st.ID] = st.Prompts
	}

	out := make([]pack.SectionCompletion, 0, len(sections))
	for _, inst := range sections {
		counts := pack.SectionCounts{GatesTotal: len(inst.Gates)}
		for _, g := range inst.Gates {
			if g.State == pack.GateApproved {
				counts.GatesApproved++
			}
		}
		for _, p := range prompts[inst.TemplateID] {
			if !p.Required {
				continue
			}
			counts.RequiredPrompts++
			if answered[inst.ID][p.ID] {
				counts.AnsweredPrompts++
			}
		}
		ev := evidence[inst.ID]
		counts.EvidenceTotal = ev.total
		counts.EvidenceDone = ev.done

		sc := counts.Completion()
		sc.SectionID = inst.ID
		sc.Code = inst.Code
		sc.Title = inst.Title
		out = append(out, sc)
	}
	return out, nil
}

// SavePromptResponse is a compare-and-swap write. Creation requires
// expected version 0; updates run a single conditional UPDATE and a zero
// row count means the caller lost the race.
func (s *Store) SavePromptResponse(ctx context.Context, p pack.SaveResponseParams) (pack.PromptResponse, error) {
	if p.SectionID == "" || p.PromptID == "" {
		return pack.PromptResponse{}, pack.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pack.PromptResponse{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `
		select 1 from section_instances si
		join packs p on p.id = si.pack_id
		where si.id=$1 and p.deleted_at is null
	`, p.SectionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return pack.PromptResponse{}, pack.ErrSectionNotFound
	}
	if err != nil {
		return pack.PromptResponse{}, err
	}

	now := time.Now().UTC()
	resp := pack.PromptResponse{
		SectionID:    p.SectionID,
		PromptID:     p.PromptID,
		Value:        p.Value,
		LastEditedBy: p.EditorID,
		UpdatedAt:    now,
	}

	if p.ExpectedVersion == 0 {
		res, err := tx.ExecContext(ctx, `
			insert into prompt_responses(section_id, prompt_id, value, version, last_edited_by, updated_at)
			values ($1,$2,$3,1,$4,$5)
			on conflict (section_id, prompt_id) do nothing
		`, p.SectionID, p.PromptID, p.Value, p.EditorID, now)
		if err != nil {
			return pack.PromptResponse{}, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return pack.PromptResponse{}, err
		}
		if n == 0 {
			return pack.PromptResponse{}, conflictTx(ctx, tx, p.SectionID, p.PromptID)
		}
		resp.Version = 1
		if err := tx.Commit(); err != nil {
			return pack.PromptResponse{}, err
		}
		return resp, nil
	}

	err = tx.QueryRowContext(ctx, `
		update prompt_responses
		set value=$3, version=version+1, last_edited_by=$4, updated_at=$5
		where section_id=$1 and prompt_id=$2 and version=$6
		returning version
	`, p.SectionID, p.PromptID, p.Value, p.EditorID, now, p.ExpectedVersion).Scan(&resp.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return pack.PromptResponse{}, conflictTx(ctx, tx, p.SectionID, p.PromptID)
	}
	if err != nil {
		return pack.PromptResponse{}, err
	}
	if err := tx.Commit(); err != nil {
		return pack.PromptResponse{}, err
	}
	return resp, nil
}

// conflictTx reads the current row so the conflict error can report who won.
func conflictTx(ctx context.Context, tx *sql.Tx, sectionID, promptID string) error {
	conflict := &pack.VersionConflictError{}
	err := tx.QueryRowContext(ctx, `
		select version, last_edited_by from prompt_responses
		where section_id=$1 and prompt_id=$2
	`, sectionID, promptID).Scan(&conflict.CurrentVersion, &conflict.LastEditedBy)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return conflict
}

// SetReviewGate updates one gate, re-derives the section review state from
// all gates, and raises an escalation task on changes_requested.
func (s *Store) SetReviewGate(ctx context.Context, sectionID string, kind pack.GateKind, state pack.GateState, actor string) (pack.SectionInstance, error) {
	if !kind.Valid() || !state.Valid() {
		return pack.SectionInstance{}, pack.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pack.SectionInstance{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var inst pack.SectionInstance
	err = tx.QueryRowContext(ctx, `
		select si.id, si.pack_id, si.template_id, si.code, si.title, si.position, si.review_state
		from section_instances si
		join packs p on p.id = si.pack_id
		where si.id=$1 and p.deleted_at is null
		for update of si
	`, sectionID).Scan(&inst.ID, &inst.PackID, &inst.TemplateID, &inst.Code, &inst.Title, &inst.Position, &inst.ReviewState)
	if errors.Is(err, sql.ErrNoRows) {
		return pack.SectionInstance{}, pack.ErrSectionNotFound
	}
	if err != nil {
		return pack.SectionInstance{}, err
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		update review_gates set state=$3, actor=$4, updated_at=$5
		where section_id=$1 and kind=$2
	`, sectionID, kind, state, actor, now)
	if err != nil {
		return pack.SectionInstance{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return pack.SectionInstance{}, err
	}
	if n == 0 {
		return pack.SectionInstance{}, pack.ErrInvalidInput
	}

	gateRows, err := tx.QueryContext(ctx, `
		select section_id, kind, state, coalesce(actor,''), updated_at
		from review_gates where section_id=$1 order by kind
	`, sectionID)
	if err != nil {
		return pack.SectionInstance{}, err
	}
	for gateRows.Next() {
		var g pack.ReviewGate
		if err := gateRows.Scan(&g.SectionID, &g.Kind, &g.State, &g.Actor, &g.UpdatedAt); err != nil {
			gateRows.Close()
			return pack.SectionInstance{}, err
		}
		inst.Gates = append(inst.Gates, g)
	}
	gateRows.Close()
	if err := gateRows.Err(); err != nil {
		return pack.SectionInstance{}, err
	}

	inst.ReviewState = pack.DeriveReviewState(inst.ReviewState, inst.Gates)
	if _, err := tx.ExecContext(ctx, `
		update section_instances set review_state=$2 where id=$1
	`, sectionID, inst.ReviewState); err != nil {
		return pack.SectionInstance{}, err
	}

	if state == pack.GateChangesRequested {
		if _, err := tx.ExecContext(ctx, `
			insert into tasks(id, pack_id, section_id, title, status, priority, created_at)
			values ($1,$2,$3,$4,$5,$6,$7)
		`, ids.New(), inst.PackID, inst.ID, "Address review changes: "+inst.Title, pack.TaskOpen, pack.PriorityHigh, now); err != nil {
			return pack.SectionInstance{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return pack.SectionInstance{}, err
	}
	return inst, nil
}

func (s *Store) Evidence(ctx context.Context, packID string) ([]pack.EvidenceItem, error) {
	if err := s.packExists(ctx, packID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, pack_id, section_id, required_id, title, status, annex_number
		from evidence_items where pack_id=$1 order by annex_number asc
	`, packID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pack.EvidenceItem
	index := make(map[string]int)
	for rows.Next() {
		var item pack.EvidenceItem
		if err := rows.Scan(&item.ID, &item.PackID, &item.SectionID, &item.RequiredID, &item.Title, &item.Status, &item.AnnexNumber); err != nil {
			return nil, err
		}
		index[item.ID] = len(out)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	verRows, err := s.db.QueryContext(ctx, `
		select v.evidence_id, v.id, v.file_name, v.storage_key, v.uploaded_by, v.uploaded_at
		from evidence_versions v
		join evidence_items e on e.id = v.evidence_id
		where e.pack_id=$1
		order by v.uploaded_at asc
	`, packID)
	if err != nil {
		return nil, err
	}
	defer verRows.Close()

	for verRows.Next() {
		var evidenceID string
		var v pack.EvidenceVersion
		if err := verRows.Scan(&evidenceID, &v.ID, &v.FileName, &v.StorageKey, &v.UploadedBy, &v.UploadedAt); err != nil {
			return nil, err
		}
		if i, ok := index[evidenceID]; ok {
			out[i].Versions = append(out[i].Versions, v)
		}
	}
	return out, verRows.Err()
}

// AddEvidenceVersion records an upload and promotes required/rejected items
// to uploaded. Approved items keep their status.
func (s *Store) AddEvidenceVersion(ctx context.Context, evidenceID string, v pack.EvidenceVersion) (pack.EvidenceItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pack.EvidenceItem{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var item pack.EvidenceItem
	err = tx.QueryRowContext(ctx, `
		select e.id, e.pack_id, e.section_id, e.required_id, e.title, e.status, e.annex_number
		from evidence_items e
		join packs p on p.id = e.pack_id
		where e.id=$1 and p.deleted_at is null
		for update of e
	`, evidenceID).Scan(&item.ID, &item.PackID, &item.SectionID, &item.RequiredID, &item.Title, &item.Status, &item.AnnexNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return pack.EvidenceItem{}, pack.ErrEvidenceNotFound
	}
	if err != nil {
		return pack.EvidenceItem{}, err
	}

	if v.ID == "" {
		v.ID = ids.New()
	}
	if v.UploadedAt.IsZero() {
		v.UploadedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, `
		insert into evidence_versions(id, evidence_id, file_name, storage_key, uploaded_by, uploaded_at)
		values ($1,$2,$3,$4,$5,$6)
	`, v.ID, evidenceID, v.FileName, v.StorageKey, v.UploadedBy, v.UploadedAt); err != nil {
		return pack.EvidenceItem{}, err
	}

	if item.Status == pack.EvidenceRequired || item.Status == pack.EvidenceRejected {
		item.Status = pack.EvidenceUploaded
		if _, err := tx.ExecContext(ctx, `
			update evidence_items set status=$2 where id=$1
		`, evidenceID, item.Status); err != nil {
			return pack.EvidenceItem{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return pack.EvidenceItem{}, err
	}
	item.Versions = append(item.Versions, v)
	return item, nil
}

func (s *Store) SetEvidenceStatus(ctx context.Context, evidenceID string, status pack.EvidenceStatus) (pack.EvidenceItem, error) {
	if !status.Valid() {
		return pack.EvidenceItem{}, pack.ErrInvalidInput
	}
	var item pack.EvidenceItem
	err := s.db.QueryRowContext(ctx, `
		update evidence_items e set status=$2
		from packs p
		where e.id=$1 and p.id = e.pack_id and p.deleted_at is null
		returning e.id, e.pack_id, e.section_id, e.required_id, e.title, e.status, e.annex_number
	`, evidenceID, status).Scan(&item.ID, &item.PackID, &item.SectionID, &item.RequiredID, &item.Title, &item.Status, &item.AnnexNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return pack.EvidenceItem{}, pack.ErrEvidenceNotFound
	}
	if err != nil {
		return pack.EvidenceItem{}, err
	}
	return item, nil
}

func (s *Store) Tasks(ctx context.Context, packID string) ([]pack.Task, error) {
	if err := s.packExists(ctx, packID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, pack_id, coalesce(section_id,''), title, status, priority, created_at
		from tasks where pack_id=$1 order by created_at asc, id asc
	`, packID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pack.Task
	for rows.Next() {
		var t pack.Task
		if err := rows.Scan(&t.ID, &t.PackID, &t.SectionID, &t.Title, &t.Status, &t.Priority, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) PutDocument(ctx context.Context, d pack.Document) (pack.Document, error) {
	if err := s.packExists(ctx, d.PackID); err != nil {
		return pack.Document{}, err
	}
	if d.ID == "" {
		d.ID = ids.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into documents(id, pack_id, section_code, storage_key, created_at)
		values ($1,$2,$3,$4,$5)
	`, d.ID, d.PackID, d.SectionCode, d.StorageKey, d.CreatedAt)
	if err != nil {
		return pack.Document{}, err
	}
	return d, nil
}

func (s *Store) HasOpinionPack(ctx context.Context, packID string) (bool, error) {
	if err := s.packExists(ctx, packID); err != nil {
		return false, err
	}
	var found bool
	err := s.db.QueryRowContext(ctx, `
		select exists(
			select 1 from documents
			where pack_id=$1 and section_code=$2 and deleted_at is null
			  and btrim(storage_key) <> ''
		)
	`, packID, pack.OpinionPackSectionCode).Scan(&found)
	if err != nil {
		return false, err
	}
	return found, nil
}
