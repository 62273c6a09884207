package pack

import "math"

// Readiness weights. Narrative quality and evidence completeness matter
// equally and twice as much as review sign-off: review gates already-done
// work rather than measuring independent effort. Product-tuned constants.
const (
	WeightNarrative = 0.4
	WeightEvidence  = 0.4
	WeightReview    = 0.2
)

// SectionCompletion holds the three independent per-section ratios,
// each an integer percentage in [0,100].
type SectionCompletion struct {
	SectionID string `json:"section_id"`
	Code      string `json:"code"`
	Title     string `json:"title"`
	Narrative int    `json:"narrative"`
	Evidence  int    `json:"evidence"`
	Review    int    `json:"review"`
}

// SectionCounts are the raw per-section tallies the completion ratios are
// derived from.
type SectionCounts struct {
	RequiredPrompts int
	AnsweredPrompts int
	EvidenceTotal   int
	EvidenceDone    int
	GatesTotal      int
	GatesApproved   int
}

// Readiness is the derived pack-level score. All fields are integer
// percentages in [0,100].
type Readiness struct {
	Overall   int `json:"overall"`
	Narrative int `json:"narrative"`
	Evidence  int `json:"evidence"`
	Review    int `json:"review"`
}

// Overrides are the two special-case completion sources that can raise
// (never lower) the base averages: a business-plan-profile questionnaire
// and a generated opinion-pack document.
type Overrides struct {
	// ProfilePercent is the business-plan-profile completion, valid only
	// when ProfileAnswered is true (the questionnaire has any answers).
	ProfilePercent  int
	ProfileAnswered bool
	// OpinionPack reports that an opinion-pack document with a non-empty
	// storage key exists for the pack.
	OpinionPack bool
}

// Ratio converts done/total into an integer percentage. A zero total is
// reported as 0, not 100: nothing required reads as nothing delivered.
func Ratio(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

// Completion computes the narrative/evidence/review ratios for one section.
func (c SectionCounts) Completion() SectionCompletion {
	return SectionCompletion{
		Narrative: Ratio(c.AnsweredPrompts, c.RequiredPrompts),
		Evidence:  Ratio(c.EvidenceDone, c.EvidenceTotal),
		Review:    Ratio(c.GatesApproved, c.GatesTotal),
	}
}

// ComputeReadiness combines per-section completions into a single pack
// readiness score. Both the project listing and the project detail paths
// go through here so the two stay consistent.
func ComputeReadiness(sections []SectionCompletion, ov Overrides) Readiness {
	if len(sections) == 0 {
		// No sections yet: fall back to the override completions instead
		// of a divide-by-zero mean.
		best := 0
		if ov.ProfileAnswered && ov.ProfilePercent > best {
			best = ov.ProfilePercent
		}
		if ov.OpinionPack {
			best = 100
		}
		return Readiness{Overall: best, Narrative: best, Review: reviewFallback(ov)}
	}

	var n, e, r int
	for _, s := range sections {
		n += s.Narrative
		e += s.Evidence
		r += s.Review
	}
	narrative := Ratio(n, 100*len(sections))
	evidence := Ratio(e, 100*len(sections))
	review := Ratio(r, 100*len(sections))

	if ov.ProfileAnswered && ov.ProfilePercent > narrative {
		narrative = ov.ProfilePercent
	}
	if ov.OpinionPack {
		// A generated opinion pack counts as fully drafted and reviewed.
		narrative = max(narrative, 100)
		review = max(review, 100)
	}

	overall := int(math.Round(float64(narrative)*WeightNarrative +
		float64(evidence)*WeightEvidence +
		float64(review)*WeightReview))

	return Readiness{
		Overall:   overall,
		Narrative: narrative,
		Evidence:  evidence,
		Review:    review,
	}
}

func reviewFallback(ov Overrides) int {
	if ov.OpinionPack {
		return 100
	}
	return 0
}

// DeriveReviewState computes a section's review state from its gates:
// any changes requested wins, all approved means approved, a partial
// approval moves the section into review, and otherwise the current
// state stands.
func DeriveReviewState(current ReviewState, gates []ReviewGate) ReviewState {
	if len(gates) == 0 {
		return current
	}
	approved := 0
	for _, g := range gates {
		switch g.State {
		case GateChangesRequested:
			return ReviewChangesRequested
		case GateApproved:
			approved++
		}
	}
	switch {
	case approved == len(gates):
		return ReviewApproved
	case approved > 0:
		return ReviewInReview
	default:
		return current
	}
}
