package project

import (
	"fmt"
	"time"

	"packready.org/internal/pack"
)

// Plan phases, in rough chronological order.
const (
	PhaseAssessment = "assessment"
	PhaseScoping    = "scoping"
	PhaseNarrative  = "narrative"
	PhaseReadiness  = "readiness"
	PhasePolicies   = "policies"
	PhaseEvidence   = "evidence"
	PhaseTraining   = "training"
	PhaseSMCR       = "smcr"
	PhaseQA         = "qa"
	PhaseSignoff    = "signoff"
)

// Gap-milestone sizing. Product-tuned constants; preserved as named values
// rather than re-derived.
const (
	narrativeSectionsPerWeek = 6
	narrativeCatchupCapWeeks = 4
	evidenceItemsPerWeek     = 8
	evidenceCatchupCapWeeks  = 3
)

// readinessMilestoneSpec maps one readiness-checklist gap to its milestone.
type readinessMilestoneSpec struct {
	item  ReadinessItem
	title string
	phase string
	weeks int
}

// readinessMilestones is the fixed duration table for readiness gaps. The
// two narrative-phase items run 3/2 weeks; the rest default to 2.
var readinessMilestones = []readinessMilestoneSpec{
	{ReadinessBusinessPlan, "Finalise business plan draft", PhaseNarrative, 3},
	{ReadinessFinancialModel, "Build financial model", PhaseNarrative, 2},
	{ReadinessTechnologyStack, "Document technology stack", PhaseReadiness, 2},
	{ReadinessSafeguarding, "Safeguarding setup", PhaseReadiness, 2},
	{ReadinessAMLFramework, "AML framework", PhaseReadiness, 2},
	{ReadinessRiskFramework, "Risk management framework", PhaseReadiness, 2},
	{ReadinessGovernancePack, "Governance pack", PhaseReadiness, 2},
}

// PlanInput is everything the generator needs: the assessment snapshot,
// the pack's section-completion summary, the count of evidence items not
// yet uploaded or approved, and the ecosystem supplying the timeline floor.
type PlanInput struct {
	Assessment      Assessment
	Sections        []pack.SectionCompletion
	MissingEvidence int
	Ecosystem       Ecosystem
	StartDate       time.Time
}

// planBuilder walks a week cursor and chains each milestone onto the
// previous one, producing a strict linear dependency chain.
type planBuilder struct {
	start      time.Time
	cursor     int
	prevID     string
	seq        int
	milestones []Milestone
}

func (b *planBuilder) add(title, phase string, weeks int) {
	if weeks < 1 {
		weeks = 1
	}
	b.seq++
	m := Milestone{
		ID:            fmt.Sprintf("milestone-%03d", b.seq),
		Title:         title,
		Phase:         phase,
		StartWeek:     b.cursor,
		EndWeek:       b.cursor + weeks - 1,
		DurationWeeks: weeks,
		Dependencies:  []string{},
	}
	m.DueDate = b.start.AddDate(0, 0, m.EndWeek*7)
	if b.prevID != "" {
		m.Dependencies = []string{b.prevID}
	}
	b.milestones = append(b.milestones, m)
	b.prevID = m.ID
	b.cursor = m.EndWeek + 1
}

func divideRoundUp(n, per int) int {
	return (n + per - 1) / per
}

// GeneratePlan deterministically expands an assessment snapshot and section
// summary into an ordered, time-boxed milestone plan. The reported total
// never undercuts the ecosystem's typical timeline even when the firm's
// current gaps would finish sooner.
func GeneratePlan(in PlanInput) Plan {
	start := in.StartDate
	if start.IsZero() {
		start = time.Now().UTC().Truncate(24 * time.Hour)
	}
	b := &planBuilder{start: start, cursor: 1}

	b.add("Complete firm assessment", PhaseAssessment, 1)
	b.add("Confirm FCA permission scope", PhaseScoping, 1)
	b.add("Draft business plan narrative", PhaseNarrative, 3)

	if incomplete := incompleteNarrativeSections(in.Sections); incomplete > 0 {
		weeks := divideRoundUp(incomplete, narrativeSectionsPerWeek)
		if weeks > narrativeCatchupCapWeeks {
			weeks = narrativeCatchupCapWeeks
		}
		b.add("Complete outstanding section narratives", PhaseNarrative, weeks)
	}

	for _, spec := range readinessMilestones {
		if in.Assessment.Readiness[spec.item] != ItemComplete {
			b.add(spec.title, spec.phase, spec.weeks)
		}
	}

	for _, policy := range sortedKeys(in.Assessment.Policies) {
		if in.Assessment.Policies[policy] != ItemComplete {
			b.add("Draft policy: "+policy, PhasePolicies, 1)
		}
	}

	b.add("Evidence checklist & annex mapping", PhaseEvidence, 2)

	if anyEvidenceIncomplete(in.Sections) && in.MissingEvidence > 0 {
		weeks := divideRoundUp(in.MissingEvidence, evidenceItemsPerWeek)
		if weeks > evidenceCatchupCapWeeks {
			weeks = evidenceCatchupCapWeeks
		}
		b.add("Collect outstanding evidence", PhaseEvidence, weeks)
	}

	for _, tr := range sortedKeys(in.Assessment.Training) {
		if in.Assessment.Training[tr] != ItemComplete {
			b.add("Complete training: "+tr, PhaseTraining, 1)
		}
	}

	for _, role := range sortedKeys(in.Assessment.SMCRRoles) {
		if in.Assessment.SMCRRoles[role] != RoleAssigned {
			b.add("Assign SMCR role: "+role, PhaseSMCR, 1)
		}
	}

	b.add("Internal QA review", PhaseQA, 2)
	b.add("Final pack sign-off", PhaseSignoff, 1)

	total := b.cursor - 1
	if in.Ecosystem.TypicalTimelineWeeks > total {
		total = in.Ecosystem.TypicalTimelineWeeks
	}

	return Plan{
		StartDate:   start,
		TotalWeeks:  total,
		Milestones:  b.milestones,
		GeneratedAt: time.Now().UTC(),
	}
}

func incompleteNarrativeSections(sections []pack.SectionCompletion) int {
	n := 0
	for _, s := range sections {
		if s.Narrative < 100 {
			n++
		}
	}
	return n
}

func anyEvidenceIncomplete(sections []pack.SectionCompletion) bool {
	for _, s := range sections {
		if s.Evidence < 100 {
			return true
		}
	}
	return false
}
