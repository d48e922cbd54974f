package review

import "github.com/c360studio/clausereview/model"

// clauseSkillInput is the payload passed to every skill named in a
// checklist item's RequiredSkill list. Skills read earlier clauses'
// findings from Scratchpad, matching "skills may read earlier clauses'
// findings from the scratchpad".
type clauseSkillInput struct {
	TaskID       string                  `json:"task_id"`
	ClauseID     string                  `json:"clause_id"`
	DocumentID   string                  `json:"document_id"`
	ClauseText   string                  `json:"clause_text"`
	BaselineText string                  `json:"baseline_text,omitempty"`
	Supplements  []clauseSupplementInput `json:"supplements,omitempty"`
	Scratchpad   map[string][]string     `json:"scratchpad"`
}

type clauseSupplementInput struct {
	DocumentID string `json:"document_id"`
	Role       string `json:"role"`
	Text       string `json:"text"`
}

// clauseSkillOutput is what a clause-analysis skill is expected to return.
// A skill may populate any subset of these fields; unset fields add
// nothing to the clause's findings.
type clauseSkillOutput struct {
	Risks              []string                  `json:"risks,omitempty"`
	FinancialTerms     []model.FinancialTerm     `json:"financial_terms,omitempty"`
	BaselineDeviations []model.BaselineDeviation `json:"baseline_deviations,omitempty"`
	CrossRefIssues     []model.CrossRefIssue     `json:"cross_ref_issues,omitempty"`
	Note               string                    `json:"note,omitempty"`
}

// validateStrategyInput is passed to the configured ValidateStrategySkillID.
type validateStrategyInput struct {
	TaskID   string                `json:"task_id"`
	ClauseID string                `json:"clause_id"`
	Findings *model.ClauseFindings `json:"findings"`
}

// validateStrategyOutcome is one of "pass" | "retry" | "skip_clause".
type validateStrategyOutcome struct {
	Outcome string `json:"outcome"`
}

const (
	outcomePass       = "pass"
	outcomeRetry      = "retry"
	outcomeSkipClause = "skip_clause"
)

// generateDiffsInput is passed to the configured GenerateDiffsSkillID.
// RejectFeedback is populated on a regeneration round triggered by
// save_clause.
type generateDiffsInput struct {
	TaskID         string                `json:"task_id"`
	ClauseID       string                `json:"clause_id"`
	DocumentID     string                `json:"document_id"`
	ClauseSpan     model.TextSpan        `json:"clause_span"`
	Findings       *model.ClauseFindings `json:"findings"`
	RejectFeedback string                `json:"reject_feedback,omitempty"`
}

// proposedDiff is one entry of generateDiffsOutput — the skill's view of a
// diff, before the machine assigns it an id and persists it.
type proposedDiff struct {
	Action       model.DiffAction `json:"action"`
	OriginalText string           `json:"original_text"`
	ProposedText string           `json:"proposed_text"`
	Risk         model.RiskLevel  `json:"risk"`
	Rationale    string           `json:"rationale"`
	ParagraphID  string           `json:"paragraph_id,omitempty"`
	Span         *model.TextSpan  `json:"span,omitempty"`
}

type generateDiffsOutput struct {
	Diffs []proposedDiff `json:"diffs"`
}
