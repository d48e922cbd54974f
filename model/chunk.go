package model

// DocumentChunk is one embedded passage of a document, used by skills that
// need semantic retrieval over long contracts rather than the whole text.
type DocumentChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	ClauseID   string    `json:"clause_id,omitempty"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding"`
	Source     TextSpan  `json:"source"`
}
