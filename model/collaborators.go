package model

import "context"

// LanguageModel is the out-of-scope LLM collaborator the core consumes.
// Local skill handlers call through this interface rather than any
// concrete provider SDK, so the review core never depends on which model
// or vendor actually answers.
type LanguageModel interface {
	// Complete sends a single-turn prompt and returns the model's raw text
	// response. Callers that need structured output extract it themselves
	// (see llm.DecodeSkillJSON) since providers vary in how reliably they honor
	// a JSON-only instruction.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// EmbeddingModel is the out-of-scope embedding collaborator.
// Skills that need semantic retrieval over long contracts (e.g.
// semantic_search) embed query and clause text through this interface; the
// resulting vectors are cached by pkg/store's ChunkStore.
type EmbeddingModel interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BlobStore is the out-of-scope object-store collaborator.
// DocumentStructure only carries character spans, never raw text, so any
// node that needs actual clause text reads it from the owning document's
// blob through this interface.
type BlobStore interface {
	ReadSpan(ctx context.Context, blobHandle string, span TextSpan) (string, error)
}
