// Package content is the static training-content registry: compliance
// modules, their lessons and assessment questions, and curated groupings.
// Reference data only; nothing here mutates at runtime.
package content

// Category buckets modules by compliance topic.
type Category string

const (
	CategoryAML          Category = "aml"
	CategorySafeguarding Category = "safeguarding"
	CategoryConduct      Category = "conduct"
	CategoryGovernance   Category = "governance"
)

// Difficulty grades a module.
type Difficulty string

const (
	DifficultyIntro        Difficulty = "intro"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Persona is a target audience for a module.
type Persona string

const (
	PersonaFounder    Persona = "founder"
	PersonaCompliance Persona = "compliance_officer"
	PersonaOperations Persona = "operations"
	PersonaBoard      Persona = "board_member"
)

// Lesson is one unit of a module.
type Lesson struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Minutes int    `json:"minutes"`
}

// AssessmentQuestion is a quiz question closing a module.
type AssessmentQuestion struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Answer  int      `json:"answer"`
}

// VisualAsset describes a diagram or illustration referenced by a module.
type VisualAsset struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// Module is one training module record.
type Module struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	Category      Category             `json:"category"`
	Difficulty    Difficulty           `json:"difficulty"`
	Minutes       int                  `json:"minutes"`
	Personas      []Persona            `json:"personas"`
	Prerequisites []string             `json:"prerequisites,omitempty"`
	Lessons       []Lesson             `json:"lessons"`
	Questions     []AssessmentQuestion `json:"questions"`
	Summary       string               `json:"summary"`
	Visuals       []VisualAsset        `json:"visuals,omitempty"`
	Featured      bool                 `json:"featured"`
}

// Pathway is a curated ordered sequence of modules.
type Pathway struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Modules []string `json:"modules"`
}

// Modules returns every registered module in catalog order.
func Modules() []Module {
	out := make([]Module, len(modules))
	copy(out, modules)
	return out
}

// ByID returns a module by id, or false when unknown.
func ByID(id string) (Module, bool) {
	for _, m := range modules {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}

// ByCategory lists modules in a category.
func ByCategory(c Category) []Module {
	var out []Module
	for _, m := range modules {
		if m.Category == c {
			out = append(out, m)
		}
	}
	return out
}

// ByDifficulty lists modules at a difficulty grade.
func ByDifficulty(d Difficulty) []Module {
	var out []Module
	for _, m := range modules {
		if m.Difficulty == d {
			out = append(out, m)
		}
	}
	return out
}

// ByPersona lists modules targeting a persona.
func ByPersona(p Persona) []Module {
	var out []Module
	for _, m := range modules {
		for _, mp := range m.Personas {
			if mp == p {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// Prerequisites resolves a module's prerequisite chain (direct only).
func Prerequisites(id string) []Module {
	m, ok := ByID(id)
	if !ok {
		return nil
	}
	var out []Module
	for _, pre := range m.Prerequisites {
		if pm, ok := ByID(pre); ok {
			out = append(out, pm)
		}
	}
	return out
}

// Featured lists the curated featured modules.
func Featured() []Module {
	var out []Module
	for _, m := range modules {
		if m.Featured {
			out = append(out, m)
		}
	}
	return out
}

// Pathways returns the curated learning pathways.
func Pathways() []Pathway {
	out := make([]Pathway, len(pathways))
	copy(out, pathways)
	return out
}

// RecommendedFor returns the curated module list for a persona.
func RecommendedFor(p Persona) []Module {
	ids, ok := personaRecommendations[p]
	if !ok {
		return nil
	}
	var out []Module
	for _, id := range ids {
		if m, found := ByID(id); found {
			out = append(out, m)
		}
	}
	return out
}

// HasLesson reports whether a lesson id exists in any module. The training
// backlinks endpoint uses it to validate its target.
func HasLesson(lessonID string) bool {
	for _, m := range modules {
		for _, l := range m.Lessons {
			if l.ID == lessonID {
				return true
			}
		}
	}
	return false
}
