package content

// The module catalog. Hand-authored reference data; ordering here is the
// display ordering.
var modules = []Module{
	{
		ID:          "aml-foundations",
		Title:       "AML Foundations",
		Description: "Money-laundering risk, the UK regime, and what the MLRs require of a payments firm.",
		Category:    CategoryAML,
		Difficulty:  DifficultyIntro,
		Minutes:     45,
		Personas:    []Persona{PersonaFounder, PersonaCompliance, PersonaOperations},
		Lessons: []Lesson{
			{ID: "aml-101", Title: "What money laundering looks like", Summary: "Placement, layering, integration and the typologies relevant to payments.", Minutes: 15},
			{ID: "aml-102", Title: "The UK regulatory regime", Summary: "MLRs 2017, POCA, and the FCA's supervisory expectations.", Minutes: 15},
			{ID: "aml-103", Title: "Your firm's obligations", Summary: "Risk assessment, CDD, ongoing monitoring, and SAR reporting.", Minutes: 15},
		},
		Questions: []AssessmentQuestion{
			{ID: "aml-q1", Text: "Which stage hides the origin of criminal funds by moving them through transactions?", Options: []string{"Placement", "Layering", "Integration", "Structuring"}, Answer: 1},
			{ID: "aml-q2", Text: "Who must approve a firm's business-wide AML risk assessment?", Options: []string{"The MLRO alone", "Senior management", "The FCA", "External audit"}, Answer: 1},
		},
		Summary: "You can now describe the money-laundering lifecycle and the obligations the MLRs place on your firm.",
		Visuals: []VisualAsset{
			{ID: "aml-v1", Kind: "diagram", Description: "Three-stage laundering lifecycle with payments-specific examples."},
		},
		Featured: true,
	},
	{
		ID:            "aml-monitoring",
		Title:         "Transaction Monitoring in Practice",
		Description:   "Designing and tuning monitoring rules, handling alerts, and escalating to SARs.",
		Category:      CategoryAML,
		Difficulty:    DifficultyIntermediate,
		Minutes:       60,
		Personas:      []Persona{PersonaCompliance, PersonaOperations},
		Prerequisites: []string{"aml-foundations"},
		Lessons: []Lesson{
			{ID: "aml-201", Title: "Rule design and calibration", Summary: "Thresholds, velocity rules, and reducing false positives.", Minutes: 20},
			{ID: "aml-202", Title: "Alert investigation", Summary: "Evidence gathering, documentation, and four-eyes review.", Minutes: 20},
			{ID: "aml-203", Title: "SAR decisions", Summary: "When suspicion crystallises and what the NCA expects.", Minutes: 20},
		},
		Questions: []AssessmentQuestion{
			{ID: "aml-q3", Text: "What is the main cost of an over-sensitive monitoring rule?", Options: []string{"Missed suspicious activity", "Alert fatigue and backlog", "Regulatory fines", "Higher licence fees"}, Answer: 1},
		},
		Summary: "You can design proportionate monitoring rules and run a defensible alert-to-SAR process.",
	},
	{
		ID:          "safeguarding-essentials",
		Title:       "Safeguarding Customer Funds",
		Description: "Segregation and designated accounts, reconciliation, and the safeguarding audit.",
		Category:    CategorySafeguarding,
		Difficulty:  DifficultyIntro,
		Minutes:     50,
		Personas:    []Persona{PersonaFounder, PersonaCompliance, PersonaOperations},
		Lessons: []Lesson{
			{ID: "sg-101", Title: "Why safeguarding exists", Summary: "Relevant funds, insolvency protection, and the customer's claim.", Minutes: 15},
			{ID: "sg-102", Title: "The segregation method", Summary: "Designated safeguarding accounts and the D+1 rule.", Minutes: 20},
			{ID: "sg-103", Title: "Reconciliation discipline", Summary: "Internal and external reconciliations and breach handling.", Minutes: 15},
		},
		Questions: []AssessmentQuestion{
			{ID: "sg-q1", Text: "By when must relevant funds reach a safeguarding account?", Options: []string{"Immediately", "End of the business day following receipt", "Within one week", "Month end"}, Answer: 1},
		},
		Summary: "You can explain the segregation method and run the daily reconciliations the FCA expects.",
		Visuals: []VisualAsset{
			{ID: "sg-v1", Kind: "flowchart", Description: "Flow of relevant funds from customer receipt to the designated account."},
		},
		Featured: true,
	},
	{
		ID:          "consumer-duty",
		Title:       "Consumer Duty for Payments Firms",
		Description: "The four outcomes, fair value assessments, and evidencing good customer outcomes.",
		Category:    CategoryConduct,
		Difficulty:  DifficultyIntermediate,
		Minutes:     40,
		Personas:    []Persona{PersonaFounder, PersonaCompliance, PersonaBoard},
		Lessons: []Lesson{
			{ID: "cd-101", Title: "The four outcomes", Summary: "Products and services, price and value, understanding, support.", Minutes: 20},
			{ID: "cd-102", Title: "Evidencing outcomes", Summary: "Management information, fair value assessments, and board reporting.", Minutes: 20},
		},
		Questions: []AssessmentQuestion{
			{ID: "cd-q1", Text: "Which outcome covers whether fees are proportionate to benefits?", Options: []string{"Products and services", "Price and value", "Consumer understanding", "Consumer support"}, Answer: 1},
		},
		Summary: "You can map your product to the four outcomes and assemble the evidence pack the board signs off.",
	},
	{
		ID:            "smcr-accountability",
		Title:         "SMCR and Senior Manager Accountability",
		Description:   "Senior management functions, statements of responsibility, and the certification regime.",
		Category:      CategoryGovernance,
		Difficulty:    DifficultyAdvanced,
		Minutes:       55,
		Personas:      []Persona{PersonaFounder, PersonaBoard},
		Prerequisites: []string{"consumer-duty"},
		Lessons: []Lesson{
			{ID: "smcr-101", Title: "The SMF map", Summary: "Which functions your firm needs and who holds them.", Minutes: 20},
			{ID: "smcr-102", Title: "Statements of responsibility", Summary: "Writing SoRs that survive regulatory scrutiny.", Minutes: 20},
			{ID: "smcr-103", Title: "Certification and conduct rules", Summary: "Annual certification and the individual conduct rules.", Minutes: 15},
		},
		Questions: []AssessmentQuestion{
			{ID: "smcr-q1", Text: "What document sets out what a senior manager is personally accountable for?", Options: []string{"The responsibilities map", "A statement of responsibilities", "The staff handbook", "The SMCR policy"}, Answer: 1},
		},
		Summary: "You can allocate SMFs, draft statements of responsibility, and run the certification cycle.",
	},
}

var pathways = []Pathway{
	{
		ID:      "authorisation-ready",
		Title:   "Authorisation Ready",
		Modules: []string{"aml-foundations", "safeguarding-essentials", "consumer-duty", "smcr-accountability"},
	},
	{
		ID:      "financial-crime",
		Title:   "Financial Crime Deep Dive",
		Modules: []string{"aml-foundations", "aml-monitoring"},
	},
}

var personaRecommendations = map[Persona][]string{
	PersonaFounder:    {"aml-foundations", "safeguarding-essentials", "smcr-accountability"},
	PersonaCompliance: {"aml-foundations", "aml-monitoring", "consumer-duty"},
	PersonaOperations: {"aml-foundations", "safeguarding-essentials"},
	PersonaBoard:      {"consumer-duty", "smcr-accountability"},
}
