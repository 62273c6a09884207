// Package checklist is the static FCA authorization checklist: categories
// and items mapped to timeline phases, plus pure helpers computing
// completion from a caller-supplied status map.
package checklist

import "packready.org/internal/pack"

// Phase places an item on the authorization timeline.
type Phase string

const (
	PhasePreparation Phase = "preparation"
	PhaseApplication Phase = "application"
	PhaseAssessment  Phase = "assessment"
	PhaseDecision    Phase = "decision"
)

// ItemState is the caller-supplied status of one checklist item.
type ItemState string

const (
	StateNotStarted ItemState = "not_started"
	StateInProgress ItemState = "in_progress"
	StateDone       ItemState = "done"
)

// Item is one checklist entry.
type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Phase Phase  `json:"phase"`
}

// Category groups checklist items.
type Category struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Catalog returns the full checklist. The slice is shared reference data;
// callers must not mutate it.
func Catalog() []Category {
	return categories
}

// ItemsForPhase lists the items landing in a timeline phase.
func ItemsForPhase(p Phase) []Item {
	var out []Item
	for _, c := range categories {
		for _, item := range c.Items {
			if item.Phase == p {
				out = append(out, item)
			}
		}
	}
	return out
}

// CategoryCompletion computes one category's completion percentage from a
// status map. Unknown items in the map are ignored; missing items count as
// not started.
func CategoryCompletion(c Category, statuses map[string]ItemState) int {
	done := 0
	for _, item := range c.Items {
		if statuses[item.ID] == StateDone {
			done++
		}
	}
	return pack.Ratio(done, len(c.Items))
}

// OverallCompletion computes the completion percentage across the whole
// catalog from a status map.
func OverallCompletion(statuses map[string]ItemState) int {
	var done, total int
	for _, c := range categories {
		for _, item := range c.Items {
			total++
			if statuses[item.ID] == StateDone {
				done++
			}
		}
	}
	return pack.Ratio(done, total)
}

var categories = []Category{
	{
		ID:    "firm-setup",
		Title: "Firm Setup",
		Items: []Item{
			{ID: "incorporate", Title: "Incorporate the legal entity", Phase: PhasePreparation},
			{ID: "open-bank-account", Title: "Open an operating bank account", Phase: PhasePreparation},
			{ID: "appoint-directors", Title: "Appoint the board of directors", Phase: PhasePreparation},
		},
	},
	{
		ID:    "application-pack",
		Title: "Application Pack",
		Items: []Item{
			{ID: "business-plan", Title: "Finalise the regulatory business plan", Phase: PhaseApplication},
			{ID: "financial-projections", Title: "Prepare three-year financial projections", Phase: PhaseApplication},
			{ID: "policy-suite", Title: "Complete the policy suite", Phase: PhaseApplication},
			{ID: "submit-application", Title: "Submit the Connect application", Phase: PhaseApplication},
		},
	},
	{
		ID:    "fca-assessment",
		Title: "FCA Assessment",
		Items: []Item{
			{ID: "respond-rfis", Title: "Respond to FCA information requests", Phase: PhaseAssessment},
			{ID: "interview-prep", Title: "Prepare senior managers for interview", Phase: PhaseAssessment},
		},
	},
	{
		ID:    "decision",
		Title: "Decision & Mobilisation",
		Items: []Item{
			{ID: "minded-to-authorise", Title: "Clear minded-to-authorise conditions", Phase: PhaseDecision},
			{ID: "mobilisation", Title: "Complete mobilisation plan", Phase: PhaseDecision},
		},
	},
}
