package project

import (
	"sort"
	"strings"
	"time"

	"packready.org/internal/pack"
)

const answerYes = "yes"

// QuestionBank supplies the dynamic question set for a permission code.
// Counts returns how many questions the bank requires and how many of them
// the supplied responses answer.
type QuestionBank interface {
	Counts(permissionCode string, responses map[string]string) (required, answered int)
}

// NewAssessment returns an empty snapshot normalized against the ecosystem:
// every checklist item present with a zero status, so the completion
// denominator is stable from the first save.
func NewAssessment(eco Ecosystem) Assessment {
	a := Assessment{
		SchemaVersion: AssessmentSchemaVersion,
		Readiness:     make(map[ReadinessItem]ItemStatus, len(ReadinessItems)),
		Policies:      make(map[string]ItemStatus, len(eco.Policies)),
		Training:      make(map[string]ItemStatus, len(eco.Training)),
		SMCRRoles:     make(map[string]RoleStatus, len(eco.SMCRRoles)),
	}
	for _, item := range ReadinessItems {
		a.Readiness[item] = ItemMissing
	}
	for _, p := range eco.Policies {
		a.Policies[p] = ItemMissing
	}
	for _, tr := range eco.Training {
		a.Training[tr] = ItemMissing
	}
	for _, role := range eco.SMCRRoles {
		a.SMCRRoles[role] = RoleUnassigned
	}
	return a
}

// basicsFields returns the required firm-basics values in a fixed order.
// The base fields are always required; a yes answer on a branching field
// unlocks the fields of that branch and grows the denominator.
func (b FirmBasics) basicsFields() []string {
	fields := []string{
		b.LegalName,
		b.FirmType,
		b.RegisteredNumberExists,
		b.UsedProfessionalAdviser,
		b.HasHeadOfficeAddress,
		b.PaymentServicesPlanned,
		b.ContactEmail,
	}
	if strings.EqualFold(b.RegisteredNumberExists, answerYes) {
		fields = append(fields, b.CompanyNumber)
	}
	if strings.EqualFold(b.UsedProfessionalAdviser, answerYes) {
		fields = append(fields, b.AdviserName, b.AdviserEmail, b.AdviserPhone)
	}
	if strings.EqualFold(b.HasHeadOfficeAddress, answerYes) {
		fields = append(fields, b.HeadOfficeAddress)
	}
	if strings.EqualFold(b.PaymentServicesPlanned, answerYes) {
		fields = append(fields, b.PaymentServicesStart)
	}
	return fields
}

// ComputeCompletion derives the flat assessment-completion percentage:
// basics fields (with conditional branches), one unit per checklist item,
// plus the question bank's required/answered counts. A zero denominator
// yields 0.
func (a Assessment) ComputeCompletion(permissionCode string, bank QuestionBank) int {
	var required, completed int

	for _, v := range a.FirmBasics.basicsFields() {
		required++
		if strings.TrimSpace(v) != "" {
			completed++
		}
	}

	for _, status := range a.Readiness {
		required++
		if status == ItemComplete {
			completed++
		}
	}
	for _, status := range a.Policies {
		required++
		if status == ItemComplete {
			completed++
		}
	}
	for _, status := range a.Training {
		required++
		if status == ItemComplete {
			completed++
		}
	}
	for _, status := range a.SMCRRoles {
		required++
		if status == RoleAssigned {
			completed++
		}
	}

	if bank != nil {
		req, ans := bank.Counts(permissionCode, a.QuestionBankResponses)
		required += req
		completed += ans
	}

	return pack.Ratio(completed, required)
}

// RefreshCompletion recomputes and stamps the cached completion fields.
// Called on every assessment save.
func (a *Assessment) RefreshCompletion(permissionCode string, bank QuestionBank, now time.Time) {
	a.CompletionPercent = a.ComputeCompletion(permissionCode, bank)
	a.CompletionUpdatedAt = now.UTC()
}

// profileQuestions is the fixed business-plan-profile questionnaire. Its
// completion can raise a pack's narrative readiness but never lower it.
var profileQuestions = []string{
	"proposition_summary",
	"target_market",
	"distribution_channels",
	"revenue_model",
	"competitor_landscape",
	"three_year_forecast",
	"funding_position",
	"key_dependencies",
	"wind_down_triggers",
	"growth_assumptions",
}

// ProfileCompletion reports the business-plan-profile completion percentage
// and whether any question has been answered at all. An untouched profile
// must not override pack readiness.
func ProfileCompletion(responses map[string]string) (percent int, answered bool) {
	if len(responses) == 0 {
		return 0, false
	}
	done := 0
	for _, q := range profileQuestions {
		if strings.TrimSpace(responses[q]) != "" {
			done++
		}
	}
	return pack.Ratio(done, len(profileQuestions)), done > 0
}

// ReadinessOverrides assembles the two special-case completion sources for
// the pack readiness calculator.
func (a Assessment) ReadinessOverrides(opinionPack bool) pack.Overrides {
	percent, answered := ProfileCompletion(a.BusinessPlanProfile)
	return pack.Overrides{
		ProfilePercent:  percent,
		ProfileAnswered: answered,
		OpinionPack:     opinionPack,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
