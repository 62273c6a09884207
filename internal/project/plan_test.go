package project

import (
	"testing"
	"time"

	"packready.org/internal/pack"
)

func planFixtureInput() PlanInput {
	eco := testEcosystem()
	return PlanInput{
		Assessment: NewAssessment(eco),
		Sections: []pack.SectionCompletion{
			{SectionID: "s-1", Narrative: 40, Evidence: 50},
			{SectionID: "s-2", Narrative: 100, Evidence: 100},
		},
		MissingEvidence: 5,
		Ecosystem:       eco,
		StartDate:       time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestPlanLinearDependencyChain(t *testing.T) {
	plan := GeneratePlan(planFixtureInput())
	if len(plan.Milestones) == 0 {
		t.Fatal("expected milestones")
	}
	if len(plan.Milestones[0].Dependencies) != 0 {
		t.Fatalf("first milestone must have no dependencies: %v", plan.Milestones[0].Dependencies)
	}
	for i := 1; i < len(plan.Milestones); i++ {
		deps := plan.Milestones[i].Dependencies
		if len(deps) != 1 || deps[0] != plan.Milestones[i-1].ID {
			t.Fatalf("milestone %d breaks the chain: deps=%v prev=%s",
				i, deps, plan.Milestones[i-1].ID)
		}
	}
}

func TestPlanCursorAndDueDates(t *testing.T) {
	in := planFixtureInput()
	plan := GeneratePlan(in)

	cursor := 1
	for i, m := range plan.Milestones {
		if m.StartWeek != cursor {
			t.Fatalf("milestone %d starts at week %d, cursor was %d", i, m.StartWeek, cursor)
		}
		if m.EndWeek != m.StartWeek+m.DurationWeeks-1 {
			t.Fatalf("milestone %d end week inconsistent: %+v", i, m)
		}
		wantDue := in.StartDate.AddDate(0, 0, m.EndWeek*7)
		if !m.DueDate.Equal(wantDue) {
			t.Fatalf("milestone %d due date %v, want %v", i, m.DueDate, wantDue)
		}
		cursor = m.EndWeek + 1
	}
}

func TestPlanOpeningAndClosingMilestones(t *testing.T) {
	plan := GeneratePlan(planFixtureInput())
	ms := plan.Milestones

	if ms[0].Title != "Complete firm assessment" || ms[0].DurationWeeks != 1 {
		t.Fatalf("unexpected first milestone: %+v", ms[0])
	}
	if ms[1].Title != "Confirm FCA permission scope" || ms[1].DurationWeeks != 1 {
		t.Fatalf("unexpected second milestone: %+v", ms[1])
	}
	if ms[2].Title != "Draft business plan narrative" || ms[2].DurationWeeks != 3 {
		t.Fatalf("unexpected third milestone: %+v", ms[2])
	}

	last := ms[len(ms)-1]
	if last.Title != "Final pack sign-off" || last.DurationWeeks != 1 {
		t.Fatalf("unexpected closing milestone: %+v", last)
	}
	qa := ms[len(ms)-2]
	if qa.Title != "Internal QA review" || qa.DurationWeeks != 2 {
		t.Fatalf("unexpected QA milestone: %+v", qa)
	}
}

func TestPlanReadinessGapDurations(t *testing.T) {
	in := planFixtureInput()
	// Everything complete except business plan and financial model.
	for _, item := range ReadinessItems {
		in.Assessment.Readiness[item] = ItemComplete
	}
	in.Assessment.Readiness[ReadinessBusinessPlan] = ItemMissing
	in.Assessment.Readiness[ReadinessFinancialModel] = ItemPartial

	plan := GeneratePlan(in)
	byTitle := map[string]Milestone{}
	for _, m := range plan.Milestones {
		byTitle[m.Title] = m
	}

	bp, ok := byTitle["Finalise business plan draft"]
	if !ok || bp.DurationWeeks != 3 || bp.Phase != PhaseNarrative {
		t.Fatalf("business plan milestone wrong: %+v (ok=%v)", bp, ok)
	}
	fm, ok := byTitle["Build financial model"]
	if !ok || fm.DurationWeeks != 2 {
		t.Fatalf("financial model milestone wrong: %+v (ok=%v)", fm, ok)
	}
	if _, present := byTitle["Governance pack"]; present {
		t.Fatal("complete readiness item still produced a milestone")
	}
}

func TestPlanConditionalGapMilestones(t *testing.T) {
	in := planFixtureInput()

	// All sections complete: no narrative/evidence catch-up milestones.
	in.Sections = []pack.SectionCompletion{{Narrative: 100, Evidence: 100}}
	in.MissingEvidence = 0
	plan := GeneratePlan(in)
	for _, m := range plan.Milestones {
		if m.Title == "Complete outstanding section narratives" || m.Title == "Collect outstanding evidence" {
			t.Fatalf("unexpected catch-up milestone: %s", m.Title)
		}
	}

	// The annex-mapping milestone is always present.
	found := false
	for _, m := range plan.Milestones {
		if m.Title == "Evidence checklist & annex mapping" {
			found = true
			if m.DurationWeeks != 2 {
				t.Fatalf("annex milestone duration %d, want 2", m.DurationWeeks)
			}
		}
	}
	if !found {
		t.Fatal("annex-mapping milestone missing")
	}
}

func TestPlanNarrativeCatchupSizing(t *testing.T) {
	in := planFixtureInput()
	in.Sections = nil
	for i := 0; i < 13; i++ {
		in.Sections = append(in.Sections, pack.SectionCompletion{Narrative: 0, Evidence: 100})
	}
	in.MissingEvidence = 0

	plan := GeneratePlan(in)
	for _, m := range plan.Milestones {
		if m.Title == "Complete outstanding section narratives" {
			// ceil(13/6) = 3
			if m.DurationWeeks != 3 {
				t.Fatalf("expected 3 weeks for 13 incomplete sections, got %d", m.DurationWeeks)
			}
			return
		}
	}
	t.Fatal("narrative catch-up milestone missing")
}

func TestPlanCatchupCaps(t *testing.T) {
	in := planFixtureInput()
	in.Sections = nil
	for i := 0; i < 40; i++ {
		in.Sections = append(in.Sections, pack.SectionCompletion{Narrative: 0, Evidence: 0})
	}
	in.MissingEvidence = 100

	plan := GeneratePlan(in)
	for _, m := range plan.Milestones {
		switch m.Title {
		case "Complete outstanding section narratives":
			if m.DurationWeeks != 4 {
				t.Fatalf("narrative catch-up not capped at 4: %d", m.DurationWeeks)
			}
		case "Collect outstanding evidence":
			if m.DurationWeeks != 3 {
				t.Fatalf("evidence catch-up not capped at 3: %d", m.DurationWeeks)
			}
		}
	}
}

func TestPlanPerItemMilestones(t *testing.T) {
	in := planFixtureInput()
	in.Assessment.Policies["aml_policy"] = ItemComplete
	in.Assessment.SMCRRoles["mlro"] = RoleAssigned

	plan := GeneratePlan(in)
	var policies, training, roles int
	for _, m := range plan.Milestones {
		switch m.Phase {
		case PhasePolicies:
			policies++
			if m.DurationWeeks != 1 {
				t.Fatalf("policy milestone not 1 week: %+v", m)
			}
		case PhaseTraining:
			training++
		case PhaseSMCR:
			roles++
		}
	}
	// Ecosystem has 2 policies (1 complete), 1 training, 2 roles (1 assigned).
	if policies != 1 || training != 1 || roles != 1 {
		t.Fatalf("unexpected gap milestones: policies=%d training=%d roles=%d",
			policies, training, roles)
	}
}

func TestPlanTotalWeeksFloorsAtTypicalTimeline(t *testing.T) {
	in := planFixtureInput()
	// A nearly complete firm: tiny computed plan, large typical timeline.
	for _, item := range ReadinessItems {
		in.Assessment.Readiness[item] = ItemComplete
	}
	for k := range in.Assessment.Policies {
		in.Assessment.Policies[k] = ItemComplete
	}
	for k := range in.Assessment.Training {
		in.Assessment.Training[k] = ItemComplete
	}
	for k := range in.Assessment.SMCRRoles {
		in.Assessment.SMCRRoles[k] = RoleAssigned
	}
	in.Sections = []pack.SectionCompletion{{Narrative: 100, Evidence: 100}}
	in.MissingEvidence = 0

	plan := GeneratePlan(in)
	if plan.TotalWeeks < in.Ecosystem.TypicalTimelineWeeks {
		t.Fatalf("plan shorter than typical timeline: %d < %d",
			plan.TotalWeeks, in.Ecosystem.TypicalTimelineWeeks)
	}

	// With a short typical timeline the computed length wins.
	in.Ecosystem.TypicalTimelineWeeks = 1
	plan = GeneratePlan(in)
	last := plan.Milestones[len(plan.Milestones)-1]
	if plan.TotalWeeks != last.EndWeek {
		t.Fatalf("total %d != last end week %d", plan.TotalWeeks, last.EndWeek)
	}
}

func TestPlanDeterministicOrdering(t *testing.T) {
	in := planFixtureInput()
	a := GeneratePlan(in)
	b := GeneratePlan(in)
	if len(a.Milestones) != len(b.Milestones) {
		t.Fatalf("milestone counts differ: %d != %d", len(a.Milestones), len(b.Milestones))
	}
	for i := range a.Milestones {
		if a.Milestones[i].Title != b.Milestones[i].Title ||
			a.Milestones[i].StartWeek != b.Milestones[i].StartWeek {
			t.Fatalf("plan not deterministic at %d: %+v vs %+v",
				i, a.Milestones[i], b.Milestones[i])
		}
	}
}
