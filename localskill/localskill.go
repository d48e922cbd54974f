// Package localskill provides in-process implementations of the generic
// skills every domain can fall back to when no domain plugin contributes
// its own. Handlers talk to a LanguageModel and decode structured
// output out of free-form completions via llm.DecodeSkillJSON.
package localskill

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/c360studio/clausereview/llm"
	"github.com/c360studio/clausereview/model"
	"github.com/c360studio/clausereview/skill"
	"github.com/c360studio/clausereview/store"
)

// Skill id constants mirrored from review.Config's defaults — kept here
// too since this package has no dependency on pkg/review (the dispatcher
// is the only thing that couples skill ids to callers).
const (
	SkillGetClauseContext = "get_clause_context"
	SkillSemanticSearch   = "semantic_search"
	SkillValidateStrategy = "validate_strategy"
	SkillGenerateDiffs    = "generate_diffs"
)

// Deps bundles the collaborators these handlers need.
type Deps struct {
	LLM        model.LanguageModel
	Embeddings model.EmbeddingModel
	Chunks     *store.ChunkStore
	Logger     *slog.Logger
}

// clauseSkillInput/Output mirror pkg/review's private wire contract
// (review/skills.go) by JSON shape, not Go type identity — the dispatcher
// only ever sees json.RawMessage, so the two packages agree on a shape,
// not a type.
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

type clauseSkillOutput struct {
	Risks              []string                  `json:"risks,omitempty"`
	FinancialTerms     []model.FinancialTerm     `json:"financial_terms,omitempty"`
	BaselineDeviations []model.BaselineDeviation `json:"baseline_deviations,omitempty"`
	CrossRefIssues     []model.CrossRefIssue     `json:"cross_ref_issues,omitempty"`
	Note               string                    `json:"note,omitempty"`
}

type validateStrategyInput struct {
	TaskID   string                `json:"task_id"`
	ClauseID string                `json:"clause_id"`
	Findings *model.ClauseFindings `json:"findings"`
}

type validateStrategyOutcome struct {
	Outcome string `json:"outcome"`
}

type generateDiffsInput struct {
	TaskID         string                `json:"task_id"`
	ClauseID       string                `json:"clause_id"`
	DocumentID     string                `json:"document_id"`
	ClauseSpan     model.TextSpan        `json:"clause_span"`
	Findings       *model.ClauseFindings `json:"findings"`
	RejectFeedback string                `json:"reject_feedback,omitempty"`
}

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

// Register binds all four handlers into dispatcher and registers their
// SkillRegistration metadata, so callers need only this one function to
// wire the generic skill set.
func Register(d *skill.Dispatcher, deps Deps) error {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &handlers{deps: deps}

	bindings := []struct {
		id   string
		name string
		fn   skill.LocalHandler
	}{
		{SkillGetClauseContext, "Get Clause Context", h.getClauseContext},
		{SkillSemanticSearch, "Semantic Search", h.semanticSearch},
		{SkillValidateStrategy, "Validate Strategy", h.validateStrategy},
		{SkillGenerateDiffs, "Generate Diffs", h.generateDiffs},
	}
	for _, b := range bindings {
		d.BindLocal(b.id, b.fn)
		if err := d.Register(model.SkillRegistration{
			ID:             b.id,
			Name:           b.name,
			Backend:        model.BackendLocal,
			LocalHandlerID: b.id,
		}); err != nil {
			return fmt.Errorf("localskill: register %s: %w", b.id, err)
		}
	}
	return nil
}

type handlers struct {
	deps Deps
}

const clauseAnalysisSystemPrompt = `You are a contract review assistant. Given a clause and any baseline or
supplement text, identify risks, financial terms, baseline deviations, and
cross-reference problems. Respond with a single JSON object matching:
{"risks": [string], "financial_terms": [{"label":string,"value":string}],
"baseline_deviations": [{"baseline_excerpt":string,"clause_excerpt":string,
"description":string,"risk":"critical"|"high"|"medium"|"low"}],
"cross_ref_issues": [{"source_clause_id":string,"target_clause_id":string,
"description":string}], "note": string}. Omit fields you found nothing for.`

// getClauseContext asks the language model for a first-pass reading of the
// clause against its baseline, the plain-text counterpart of what a human
// reviewer does on first read.
func (h *handlers) getClauseContext(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var in clauseSkillInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", skill.ErrInputInvalid, err)
	}

	prompt := buildClausePrompt(in)
	completion, err := h.deps.LLM.Complete(ctx, clauseAnalysisSystemPrompt, prompt)
	if err != nil {
		return nil, llm.Transient(fmt.Errorf("get_clause_context: %w", err))
	}

	out, err := decodeClauseOutput(completion)
	if err != nil {
		return nil, llm.Fatal(fmt.Errorf("get_clause_context: %w", err))
	}
	return json.Marshal(out)
}

// semanticSearch retrieves the most relevant chunks of the clause's own
// document via embedding similarity, then asks the model to interpret
// them alongside the clause. A nil Embeddings or Chunks collaborator, or
// an input without a document id, degrades to a text-only pass with the
// same prompt shape as getClauseContext.
func (h *handlers) semanticSearch(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var in clauseSkillInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", skill.ErrInputInvalid, err)
	}

	var relevant []string
	if h.deps.Embeddings != nil && h.deps.Chunks != nil && in.DocumentID != "" {
		vec, err := h.deps.Embeddings.Embed(ctx, in.ClauseText)
		if err != nil {
			return nil, llm.Transient(fmt.Errorf("semantic_search: embed: %w", err))
		}
		chunks, err := h.deps.Chunks.ListChunks(ctx, in.DocumentID)
		if err != nil {
			h.deps.Logger.Warn("semantic_search: list chunks failed, continuing without", "error", err)
		}
		relevant = topMatches(vec, chunks, 5)
	}

	prompt := buildClausePrompt(in)
	if len(relevant) > 0 {
		prompt += "\n\nRelated passages elsewhere in the document:\n"
		for _, r := range relevant {
			prompt += "- " + r + "\n"
		}
	}

	completion, err := h.deps.LLM.Complete(ctx, clauseAnalysisSystemPrompt, prompt)
	if err != nil {
		return nil, llm.Transient(fmt.Errorf("semantic_search: %w", err))
	}
	out, err := decodeClauseOutput(completion)
	if err != nil {
		return nil, llm.Fatal(fmt.Errorf("semantic_search: %w", err))
	}
	return json.Marshal(out)
}

const validateStrategySystemPrompt = `You decide whether a clause's accumulated findings are ready to turn into
proposed edits. Respond with a single JSON object: {"outcome":"pass"} when
findings are sufficient, {"outcome":"retry"} when another analysis pass
would likely sharpen them, or {"outcome":"skip_clause"} when the clause
needs no edits at all.`

// validateStrategy asks the model to judge whether the clause's findings
// are ready to generate diffs from.
func (h *handlers) validateStrategy(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var in validateStrategyInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", skill.ErrInputInvalid, err)
	}

	findingsJSON, err := json.Marshal(in.Findings)
	if err != nil {
		return nil, fmt.Errorf("validate_strategy: marshal findings: %w", err)
	}
	prompt := fmt.Sprintf("Clause %s findings:\n%s", in.ClauseID, findingsJSON)

	completion, err := h.deps.LLM.Complete(ctx, validateStrategySystemPrompt, prompt)
	if err != nil {
		return nil, llm.Transient(fmt.Errorf("validate_strategy: %w", err))
	}

	var out validateStrategyOutcome
	if err := llm.DecodeSkillJSON(completion, &out); err != nil {
		return nil, llm.Fatal(fmt.Errorf("validate_strategy: %w", err))
	}
	switch out.Outcome {
	case "pass", "retry", "skip_clause":
	default:
		out.Outcome = "pass"
	}
	return json.Marshal(out)
}

const generateDiffsSystemPrompt = `You draft concrete contract edits from a clause's findings. Respond with a
single JSON object: {"diffs":[{"action":"replace"|"delete"|"insert",
"original_text":string,"proposed_text":string,"risk":"critical"|"high"|
"medium"|"low","rationale":string}]}. Propose the minimal edit that
addresses each finding; omit diffs for findings too minor to act on.`

// generateDiffs turns a clause's findings into proposed edits, folding in
// feedback from a previously rejected diff on regeneration rounds.
func (h *handlers) generateDiffs(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var in generateDiffsInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", skill.ErrInputInvalid, err)
	}

	findingsJSON, err := json.Marshal(in.Findings)
	if err != nil {
		return nil, fmt.Errorf("generate_diffs: marshal findings: %w", err)
	}
	prompt := fmt.Sprintf("Clause %s findings:\n%s", in.ClauseID, findingsJSON)
	if in.RejectFeedback != "" {
		prompt += "\n\nThe reviewer rejected a previous proposal with this feedback, incorporate it: " + in.RejectFeedback
	}

	completion, err := h.deps.LLM.Complete(ctx, generateDiffsSystemPrompt, prompt)
	if err != nil {
		return nil, llm.Transient(fmt.Errorf("generate_diffs: %w", err))
	}

	var out generateDiffsOutput
	if err := llm.DecodeSkillJSON(completion, &out); err != nil {
		return nil, llm.Fatal(fmt.Errorf("generate_diffs: %w", err))
	}
	return json.Marshal(out)
}

func buildClausePrompt(in clauseSkillInput) string {
	prompt := fmt.Sprintf("Clause %s:\n%s", in.ClauseID, in.ClauseText)
	if in.BaselineText != "" {
		prompt += "\n\nBaseline reference text for this clause:\n" + in.BaselineText
	}
	for _, sup := range in.Supplements {
		prompt += fmt.Sprintf("\n\n%s document (%s) text for this clause:\n%s", sup.Role, sup.DocumentID, sup.Text)
	}
	if len(in.Scratchpad) > 0 {
		prompt += "\n\nNotes from earlier clauses in this review:\n"
		for clauseID, notes := range in.Scratchpad {
			for _, n := range notes {
				prompt += fmt.Sprintf("- [%s] %s\n", clauseID, n)
			}
		}
	}
	return prompt
}

func decodeClauseOutput(completion string) (clauseSkillOutput, error) {
	var out clauseSkillOutput
	if err := llm.DecodeSkillJSON(completion, &out); err != nil {
		return clauseSkillOutput{}, err
	}
	return out, nil
}

// topMatches ranks chunks by cosine similarity to vec and returns the text
// of the top n. Embeddings are small enough (typically a few thousand
// floats) that a linear scan per clause is cheap compared to the LLM call
// that follows it.
func topMatches(vec []float32, chunks []*model.DocumentChunk, n int) []string {
	type scored struct {
		text  string
		score float32
	}
	ranked := make([]scored, 0, len(chunks))
	for _, c := range chunks {
		ranked = append(ranked, scored{text: c.Text, score: cosineSimilarity(vec, c.Embedding)})
	}
	// simple selection sort for the top n; chunk counts per document are
	// small enough that this outperforms pulling in a sort import for one
	// call site.
	for i := 0; i < len(ranked) && i < n; i++ {
		best := i
		for j := i + 1; j < len(ranked); j++ {
			if ranked[j].score > ranked[best].score {
				best = j
			}
		}
		ranked[i], ranked[best] = ranked[best], ranked[i]
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.text
	}
	return out
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
