package pack

import (
	"errors"
	"fmt"
	"time"
)

// Status tracks a pack through the submission lifecycle.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusApproved   Status = "approved"
	StatusArchived   Status = "archived"
)

// Valid reports whether s is one of the known pack statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusInProgress, StatusSubmitted, StatusApproved, StatusArchived:
		return true
	}
	return false
}

// ReviewState is the derived review position of a section instance.
type ReviewState string

const (
	ReviewDraft            ReviewState = "draft"
	ReviewInReview         ReviewState = "in_review"
	ReviewChangesRequested ReviewState = "changes_requested"
	ReviewApproved         ReviewState = "approved"
)

// EvidenceStatus tracks an evidence item from requirement to sign-off.
type EvidenceStatus string

const (
	EvidenceRequired EvidenceStatus = "required"
	EvidenceUploaded EvidenceStatus = "uploaded"
	EvidenceApproved EvidenceStatus = "approved"
	EvidenceRejected EvidenceStatus = "rejected"
)

// Valid reports whether s is one of the known evidence statuses.
func (s EvidenceStatus) Valid() bool {
	switch s {
	case EvidenceRequired, EvidenceUploaded, EvidenceApproved, EvidenceRejected:
		return true
	}
	return false
}

// Delivered reports whether the item counts toward evidence completion.
func (s EvidenceStatus) Delivered() bool {
	return s == EvidenceUploaded || s == EvidenceApproved
}

// GateKind identifies one of the two sign-offs every section carries.
type GateKind string

const (
	GateClientReview     GateKind = "client_review"
	GateConsultantReview GateKind = "consultant_review"
)

// Valid reports whether k is one of the two known gate kinds.
func (k GateKind) Valid() bool {
	return k == GateClientReview || k == GateConsultantReview
}

// GateState is the position of a single review gate.
type GateState string

const (
	GatePending          GateState = "pending"
	GateApproved         GateState = "approved"
	GateChangesRequested GateState = "changes_requested"
)

// Valid reports whether s is one of the known gate states.
func (s GateState) Valid() bool {
	switch s {
	case GatePending, GateApproved, GateChangesRequested:
		return true
	}
	return false
}

// TaskStatus tracks auto-generated work items.
type TaskStatus string

const (
	TaskOpen       TaskStatus = "open"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskBlocked    TaskStatus = "blocked"
)

// TaskPriority orders tasks for triage.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// OpinionPackSectionCode marks the generated opinion-pack document. A
// document stored under this code with a non-empty storage key counts as
// 100% narrative and review completion.
const OpinionPackSectionCode = "opinion_pack"

// PackTemplate defines the sections, prompts and evidence a pack is
// instantiated from.
type PackTemplate struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Sections []SectionTemplate `json:"sections"`
}

// SectionTemplate is a named, ordered section definition.
type SectionTemplate struct {
	ID       string             `json:"id"`
	Code     string             `json:"code"`
	Title    string             `json:"title"`
	Position int                `json:"position"`
	Prompts  []Prompt           `json:"prompts"`
	Evidence []RequiredEvidence `json:"evidence"`
}

// Prompt is a narrative question attached to a section template.
type Prompt struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Required bool   `json:"required"`
	Weight   int    `json:"weight"`
}

// RequiredEvidence is an evidence definition on a section template.
type RequiredEvidence struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Pack is an authorization submission workspace.
type Pack struct {
	ID             string     `json:"id"`
	TemplateID     string     `json:"template_id"`
	OrganizationID string     `json:"organization_id"`
	Name           string     `json:"name"`
	Status         Status     `json:"status"`
	TargetDate     *time.Time `json:"target_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// SectionInstance is the per-pack realization of a section template.
// Exactly one instance exists per (pack, template) pair.
type SectionInstance struct {
	ID          string       `json:"id"`
	PackID      string       `json:"pack_id"`
	TemplateID  string       `json:"template_id"`
	Code        string       `json:"code"`
	Title       string       `json:"title"`
	Position    int          `json:"position"`
	Owner       string       `json:"owner,omitempty"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	ReviewState ReviewState  `json:"review_state"`
	Gates       []ReviewGate `json:"gates,omitempty"`
}

// PromptResponse is the per-section answer to a prompt. Version increments
// on every successful update and is checked against the caller's expected
// version (compare-and-swap).
type PromptResponse struct {
	SectionID    string    `json:"section_id"`
	PromptID     string    `json:"prompt_id"`
	Value        string    `json:"value"`
	Version      int       `json:"version"`
	LastEditedBy string    `json:"last_edited_by"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EvidenceItem is the per-pack instance of a required-evidence definition.
// AnnexNumber is unique per pack and strictly increasing in assignment order.
type EvidenceItem struct {
	ID          string            `json:"id"`
	PackID      string            `json:"pack_id"`
	SectionID   string            `json:"section_id"`
	RequiredID  string            `json:"required_id"`
	Title       string            `json:"title"`
	Status      EvidenceStatus    `json:"status"`
	AnnexNumber int               `json:"annex_number"`
	Versions    []EvidenceVersion `json:"versions,omitempty"`
}

// EvidenceVersion records one uploaded file for an evidence item.
type EvidenceVersion struct {
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	StorageKey string    `json:"storage_key"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ReviewGate is one of the two sign-offs on a section instance.
type ReviewGate struct {
	SectionID string    `json:"section_id"`
	Kind      GateKind  `json:"kind"`
	State     GateState `json:"state"`
	Actor     string    `json:"actor,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task is a unit of work generated alongside sections, evidence, and
// changes-requested gates.
type Task struct {
	ID        string       `json:"id"`
	PackID    string       `json:"pack_id"`
	SectionID string       `json:"section_id,omitempty"`
	Title     string       `json:"title"`
	Status    TaskStatus   `json:"status"`
	Priority  TaskPriority `json:"priority"`
	Owner     string       `json:"owner,omitempty"`
	DueDate   *time.Time   `json:"due_date,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Document is a generated or uploaded pack-level document (e.g. the
// opinion pack).
type Document struct {
	ID          string     `json:"id"`
	PackID      string     `json:"pack_id"`
	SectionCode string     `json:"section_code"`
	StorageKey  string     `json:"storage_key"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

var (
	ErrNotFound         = errors.New("pack: not found")
	ErrTemplateNotFound = errors.New("pack: template not found")
	ErrSectionNotFound  = errors.New("pack: section not found")
	ErrEvidenceNotFound = errors.New("pack: evidence not found")
	ErrInvalidInput     = errors.New("pack: invalid input")
)

// VersionConflictError is returned when a prompt-response update carries a
// stale expected version. It exposes the current version and the last
// editor so the caller can offer a merge/overwrite decision.
type VersionConflictError struct {
	CurrentVersion int
	LastEditedBy   string
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("pack: version conflict (current=%d, last edited by %s)", e.CurrentVersion, e.LastEditedBy)
}
