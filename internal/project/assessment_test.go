package project

import (
	"context"
	"testing"
	"time"
)

func testEcosystem() Ecosystem {
	return Ecosystem{
		PermissionCode:       "payment_institution",
		Name:                 "Authorised Payment Institution",
		PackTemplateType:     "fca_authorisation",
		Policies:             []string{"aml_policy", "safeguarding_policy"},
		Training:             []string{"aml_fundamentals"},
		SMCRRoles:            []string{"smf1_chief_executive", "mlro"},
		TypicalTimelineWeeks: 26,
	}
}

func TestNewAssessmentNormalizesChecklists(t *testing.T) {
	a := NewAssessment(testEcosystem())
	if len(a.Readiness) != len(ReadinessItems) {
		t.Fatalf("expected %d readiness items, got %d", len(ReadinessItems), len(a.Readiness))
	}
	for item, status := range a.Readiness {
		if status != ItemMissing {
			t.Fatalf("readiness %s not normalized to missing: %s", item, status)
		}
	}
	if len(a.Policies) != 2 || len(a.Training) != 1 || len(a.SMCRRoles) != 2 {
		t.Fatalf("checklists not seeded from ecosystem: %+v", a)
	}
	if a.SMCRRoles["mlro"] != RoleUnassigned {
		t.Fatalf("roles not normalized: %v", a.SMCRRoles["mlro"])
	}
}

func TestConditionalBasicsDenominator(t *testing.T) {
	base := FirmBasics{}
	baseCount := len(base.basicsFields())

	// A yes on registered-number unlocks exactly one extra field.
	withNumber := FirmBasics{RegisteredNumberExists: "yes", UsedProfessionalAdviser: "no"}
	if got := len(withNumber.basicsFields()); got != baseCount+1 {
		t.Fatalf("expected base+1 fields, got base+%d", got-baseCount)
	}

	// The adviser branch unlocks three more.
	withAdviser := FirmBasics{RegisteredNumberExists: "yes", UsedProfessionalAdviser: "yes"}
	if got := len(withAdviser.basicsFields()); got != baseCount+4 {
		t.Fatalf("expected base+4 fields, got base+%d", got-baseCount)
	}

	// Head-office and payment-services branches add one each.
	all := FirmBasics{
		RegisteredNumberExists:  "yes",
		UsedProfessionalAdviser: "yes",
		HasHeadOfficeAddress:    "yes",
		PaymentServicesPlanned:  "yes",
	}
	if got := len(all.basicsFields()); got != baseCount+6 {
		t.Fatalf("expected base+6 fields, got base+%d", got-baseCount)
	}
}

func TestComputeCompletionCountsChecklists(t *testing.T) {
	a := NewAssessment(testEcosystem())
	bank := NewStaticQuestionBank()

	empty := a.ComputeCompletion("payment_institution", bank)
	if empty != 0 {
		t.Fatalf("empty assessment should score 0, got %d", empty)
	}

	a.Readiness[ReadinessBusinessPlan] = ItemComplete
	a.Policies["aml_policy"] = ItemComplete
	a.SMCRRoles["mlro"] = RoleAssigned
	a.FirmBasics.LegalName = "Acme Payments Ltd"

	got := a.ComputeCompletion("payment_institution", bank)
	if got <= empty {
		t.Fatalf("completion did not grow with progress: %d", got)
	}

	// Partial statuses do not count.
	a.Policies["safeguarding_policy"] = ItemPartial
	a.SMCRRoles["smf1_chief_executive"] = RoleIdentified
	if again := a.ComputeCompletion("payment_institution", bank); again != got {
		t.Fatalf("partial/identified statuses changed the score: %d != %d", again, got)
	}
}

func TestComputeCompletionDeterministic(t *testing.T) {
	a := NewAssessment(testEcosystem())
	a.FirmBasics.LegalName = "Acme Payments Ltd"
	a.Readiness[ReadinessAMLFramework] = ItemComplete
	a.QuestionBankResponses = map[string]string{"pi_services": "money remittance"}

	bank := NewStaticQuestionBank()
	first := a.ComputeCompletion("payment_institution", bank)
	second := a.ComputeCompletion("payment_institution", bank)
	if first != second {
		t.Fatalf("completion not deterministic: %d != %d", first, second)
	}
}

func TestQuestionBankCounts(t *testing.T) {
	bank := NewStaticQuestionBank()

	required, answered := bank.Counts("payment_institution", nil)
	if required != 4 || answered != 0 {
		t.Fatalf("unexpected counts: required=%d answered=%d", required, answered)
	}

	required, answered = bank.Counts("payment_institution", map[string]string{
		"pi_services":    "money remittance",
		"pi_fx_exposure": "none", // optional, must not count
		"pi_volumes":     "  ",   // blank, must not count
	})
	if required != 4 || answered != 1 {
		t.Fatalf("unexpected counts: required=%d answered=%d", required, answered)
	}

	// Unknown permissions contribute nothing.
	required, answered = bank.Counts("unknown_code", map[string]string{"x": "y"})
	if required != 0 || answered != 0 {
		t.Fatalf("unknown code contributed: required=%d answered=%d", required, answered)
	}
}

func TestProfileCompletion(t *testing.T) {
	if pct, answered := ProfileCompletion(nil); pct != 0 || answered {
		t.Fatalf("empty profile should be 0/false, got %d/%v", pct, answered)
	}
	pct, answered := ProfileCompletion(map[string]string{
		"proposition_summary": "Payments for SMEs",
		"target_market":       "UK small businesses",
		"revenue_model":       "per-transaction fees",
		"unknown_question":    "ignored",
	})
	if !answered {
		t.Fatal("expected answered=true")
	}
	// 3 of 10 profile questions answered.
	if pct != 30 {
		t.Fatalf("expected 30%%, got %d", pct)
	}
}

func TestSaveAssessmentRecomputesEagerly(t *testing.T) {
	s := NewInMemory(NewStaticQuestionBank())
	ctx := context.Background()
	if err := s.PutEcosystem(ctx, testEcosystem()); err != nil {
		t.Fatal(err)
	}
	pr, err := s.CreateProject(ctx, CreateProjectParams{
		OrganizationID: "org-1",
		PermissionCode: "payment_institution",
		PackID:         "pack-1",
		Name:           "Acme authorisation",
	})
	if err != nil {
		t.Fatal(err)
	}

	a := pr.Assessment
	a.FirmBasics.LegalName = "Acme Payments Ltd"
	a.Readiness[ReadinessBusinessPlan] = ItemComplete

	before := time.Now().UTC()
	saved, err := s.SaveAssessment(ctx, pr.ID, a)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Assessment.CompletionPercent == 0 {
		t.Fatal("completion not recomputed on save")
	}
	if saved.Assessment.CompletionUpdatedAt.Before(before) {
		t.Fatalf("completion timestamp not refreshed: %v", saved.Assessment.CompletionUpdatedAt)
	}

	// Saving the identical snapshot yields the identical percentage.
	again, err := s.SaveAssessment(ctx, pr.ID, saved.Assessment)
	if err != nil {
		t.Fatal(err)
	}
	if again.Assessment.CompletionPercent != saved.Assessment.CompletionPercent {
		t.Fatalf("idempotence violated: %d != %d",
			again.Assessment.CompletionPercent, saved.Assessment.CompletionPercent)
	}
}

func TestDefaultEcosystemsParse(t *testing.T) {
	list, err := DefaultEcosystems()
	if err != nil {
		t.Fatalf("DefaultEcosystems: %v", err)
	}
	if len(list) == 0 {
		t.Fatal("expected shipped ecosystems")
	}
	for _, eco := range list {
		if eco.PermissionCode == "" || eco.PackTemplateType == "" {
			t.Fatalf("incomplete ecosystem: %+v", eco)
		}
		if eco.TypicalTimelineWeeks <= 0 {
			t.Fatalf("ecosystem %s missing timeline", eco.PermissionCode)
		}
		if len(eco.Policies) == 0 || len(eco.SMCRRoles) == 0 {
			t.Fatalf("ecosystem %s missing checklists", eco.PermissionCode)
		}
	}
}
