package project

import (
	"errors"
	"time"
)

// Status tracks an authorization project through its lifecycle.
type Status string

const (
	StatusAssessment Status = "assessment"
	StatusPlanning   Status = "planning"
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusComplete   Status = "complete"
)

// ItemStatus is the position of one readiness/policy/training checklist item.
type ItemStatus string

const (
	ItemMissing  ItemStatus = "missing"
	ItemPartial  ItemStatus = "partial"
	ItemComplete ItemStatus = "complete"
)

// Valid reports whether s is one of the known item statuses.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemMissing, ItemPartial, ItemComplete:
		return true
	}
	return false
}

// RoleStatus is the position of one SMCR role.
type RoleStatus string

const (
	RoleUnassigned RoleStatus = "unassigned"
	RoleIdentified RoleStatus = "identified"
	RoleAssigned   RoleStatus = "assigned"
)

// Valid reports whether s is one of the known role statuses.
func (s RoleStatus) Valid() bool {
	switch s {
	case RoleUnassigned, RoleIdentified, RoleAssigned:
		return true
	}
	return false
}

// ReadinessItem identifies one entry of the fixed readiness checklist.
type ReadinessItem string

const (
	ReadinessBusinessPlan    ReadinessItem = "business_plan_draft"
	ReadinessFinancialModel  ReadinessItem = "financial_model"
	ReadinessTechnologyStack ReadinessItem = "technology_stack"
	ReadinessSafeguarding    ReadinessItem = "safeguarding_setup"
	ReadinessAMLFramework    ReadinessItem = "aml_framework"
	ReadinessRiskFramework   ReadinessItem = "risk_framework"
	ReadinessGovernancePack  ReadinessItem = "governance_pack"
)

// ReadinessItems is the checklist in its canonical order. Both assessment
// normalization and plan generation iterate it so output is deterministic.
var ReadinessItems = []ReadinessItem{
	ReadinessBusinessPlan,
	ReadinessFinancialModel,
	ReadinessTechnologyStack,
	ReadinessSafeguarding,
	ReadinessAMLFramework,
	ReadinessRiskFramework,
	ReadinessGovernancePack,
}

// FirmBasics holds the firm-identity answers of the assessment. The yes/no
// fields unlock extra required fields, which changes the completion
// denominator.
type FirmBasics struct {
	LegalName               string `json:"legal_name,omitempty"`
	TradingName             string `json:"trading_name,omitempty"`
	FirmType                string `json:"firm_type,omitempty"`
	RegisteredNumberExists  string `json:"registered_number_exists,omitempty"`
	CompanyNumber           string `json:"company_number,omitempty"`
	UsedProfessionalAdviser string `json:"used_professional_adviser,omitempty"`
	AdviserName             string `json:"adviser_name,omitempty"`
	AdviserEmail            string `json:"adviser_email,omitempty"`
	AdviserPhone            string `json:"adviser_phone,omitempty"`
	HasHeadOfficeAddress    string `json:"has_head_office_address,omitempty"`
	HeadOfficeAddress       string `json:"head_office_address,omitempty"`
	PaymentServicesPlanned  string `json:"payment_services_planned,omitempty"`
	PaymentServicesStart    string `json:"payment_services_start,omitempty"`
	ContactEmail            string `json:"contact_email,omitempty"`
}

// Assessment is the versioned, typed snapshot attached to a project.
// CompletionPercent is a cached derived field, recomputed eagerly on every
// save rather than lazily on read.
type Assessment struct {
	SchemaVersion         int                          `json:"schema_version"`
	FirmBasics            FirmBasics                   `json:"firm_basics"`
	Readiness             map[ReadinessItem]ItemStatus `json:"readiness"`
	Policies              map[string]ItemStatus        `json:"policies"`
	Training              map[string]ItemStatus        `json:"training"`
	SMCRRoles             map[string]RoleStatus        `json:"smcr_roles"`
	BusinessPlanProfile   map[string]string            `json:"business_plan_profile,omitempty"`
	QuestionBankResponses map[string]string            `json:"question_bank_responses,omitempty"`
	CompletionPercent     int                          `json:"completion_percent"`
	CompletionUpdatedAt   time.Time                    `json:"completion_updated_at"`
}

// AssessmentSchemaVersion is bumped whenever the snapshot layout changes.
const AssessmentSchemaVersion = 1

// Milestone is one time-boxed step of a generated project plan.
type Milestone struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Phase         string    `json:"phase"`
	StartWeek     int       `json:"start_week"`
	EndWeek       int       `json:"end_week"`
	DurationWeeks int       `json:"duration_weeks"`
	DueDate       time.Time `json:"due_date"`
	Dependencies  []string  `json:"dependencies"`
}

// Plan is the generated project schedule. Milestones form a single linear
// dependency chain.
type Plan struct {
	StartDate   time.Time   `json:"start_date"`
	TotalWeeks  int         `json:"total_weeks"`
	Milestones  []Milestone `json:"milestones"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Project binds an organization, a chosen permission and exactly one pack.
type Project struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	PermissionCode string     `json:"permission_code"`
	PackID         string     `json:"pack_id"`
	Name           string     `json:"name"`
	Status         Status     `json:"status"`
	Assessment     Assessment `json:"assessment"`
	Plan           *Plan      `json:"plan,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// Ecosystem is the reference record for one regulatory permission: the pack
// template it maps to, the checklists a new assessment is normalized with,
// and the typical end-to-end timeline.
type Ecosystem struct {
	PermissionCode       string   `json:"permission_code" yaml:"permission_code"`
	Name                 string   `json:"name" yaml:"name"`
	PackTemplateType     string   `json:"pack_template_type" yaml:"pack_template_type"`
	Policies             []string `json:"policies" yaml:"policies"`
	Training             []string `json:"training" yaml:"training"`
	SMCRRoles            []string `json:"smcr_roles" yaml:"smcr_roles"`
	TypicalTimelineWeeks int      `json:"typical_timeline_weeks" yaml:"typical_timeline_weeks"`
}

var (
	ErrNotFound          = errors.New("project: not found")
	ErrEcosystemNotFound = errors.New("project: permission ecosystem not found")
	ErrInvalidInput      = errors.New("project: invalid input")
)
