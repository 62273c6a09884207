package project

import "strings"

// BankQuestion is one entry of the per-permission question bank.
type BankQuestion struct {
	ID       string
	Text     string
	Required bool
}

// StaticQuestionBank is the built-in question bank keyed by permission
// code. Unknown codes contribute nothing to assessment completion.
type StaticQuestionBank struct {
	questions map[string][]BankQuestion
}

var _ QuestionBank = (*StaticQuestionBank)(nil)

// NewStaticQuestionBank returns the default bank.
func NewStaticQuestionBank() *StaticQuestionBank {
	return &StaticQuestionBank{questions: defaultBankQuestions}
}

// Questions returns the bank entries for a permission code.
func (b *StaticQuestionBank) Questions(permissionCode string) []BankQuestion {
	return b.questions[permissionCode]
}

// Counts implements QuestionBank: the number of required questions for the
// permission, and how many of those the responses answer.
func (b *StaticQuestionBank) Counts(permissionCode string, responses map[string]string) (required, answered int) {
	for _, q := range b.questions[permissionCode] {
		if !q.Required {
			continue
		}
		required++
		if strings.TrimSpace(responses[q.ID]) != "" {
			answered++
		}
	}
	return required, answered
}

var defaultBankQuestions = map[string][]BankQuestion{
	"payment_institution": {
		{ID: "pi_services", Text: "Which payment services will the firm provide?", Required: true},
		{ID: "pi_volumes", Text: "What monthly payment volumes are projected for year one?", Required: true},
		{ID: "pi_safeguarding_method", Text: "How will customer funds be safeguarded?", Required: true},
		{ID: "pi_agents", Text: "Will the firm use agents or distributors?", Required: true},
		{ID: "pi_fx_exposure", Text: "Describe any foreign-exchange exposure.", Required: false},
	},
	"electronic_money_institution": {
		{ID: "emi_issuance", Text: "Describe the e-money issuance model.", Required: true},
		{ID: "emi_float", Text: "What average outstanding e-money float is projected?", Required: true},
		{ID: "emi_safeguarding_method", Text: "How will the e-money float be safeguarded?", Required: true},
		{ID: "emi_redemption", Text: "Describe the redemption process and timelines.", Required: true},
		{ID: "emi_distribution", Text: "Which distribution channels will issue e-money?", Required: true},
		{ID: "emi_card_programme", Text: "Is a card programme planned?", Required: false},
	},
	"consumer_credit": {
		{ID: "cc_products", Text: "Which credit products will the firm offer?", Required: true},
		{ID: "cc_affordability", Text: "Describe the affordability assessment approach.", Required: true},
		{ID: "cc_collections", Text: "Describe collections and arrears handling.", Required: true},
	},
}
