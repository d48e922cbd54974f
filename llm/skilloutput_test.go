package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type outcomeDoc struct {
	Outcome string `json:"outcome"`
	Note    string `json:"note"`
}

func TestDecodeSkillJSON_MarkdownFence(t *testing.T) {
	completion := "Here is the outcome:\n```json\n{\"outcome\": \"retry\"}\n```\nLet me know if you need more."

	var doc outcomeDoc
	require.NoError(t, DecodeSkillJSON(completion, &doc))
	require.Equal(t, "retry", doc.Outcome)
}

func TestDecodeSkillJSON_BareObjectWithNesting(t *testing.T) {
	completion := `{"diffs":[{"action":"replace","original_text":"a","proposed_text":"b"}]}`

	var doc struct {
		Diffs []struct {
			Action string `json:"action"`
		} `json:"diffs"`
	}
	require.NoError(t, DecodeSkillJSON(completion, &doc))
	require.Len(t, doc.Diffs, 1)
	require.Equal(t, "replace", doc.Diffs[0].Action)
}

func TestDecodeSkillJSON_TrailingCommaAndComment(t *testing.T) {
	completion := "{\n  \"outcome\": \"pass\", // looks good\n}\n"

	var doc outcomeDoc
	require.NoError(t, DecodeSkillJSON(completion, &doc))
	require.Equal(t, "pass", doc.Outcome)
}

func TestDecodeSkillJSON_CommentLikeURLUntouched(t *testing.T) {
	completion := `{"note": "see http://example.com/docs for context"}`

	var doc outcomeDoc
	require.NoError(t, DecodeSkillJSON(completion, &doc))
	require.Equal(t, "see http://example.com/docs for context", doc.Note)
}

func TestDecodeSkillJSON_EscapedQuoteInString(t *testing.T) {
	completion := `{"note": "the clause says \"net 30\", which is short"}`

	var doc outcomeDoc
	require.NoError(t, DecodeSkillJSON(completion, &doc))
	require.Equal(t, `the clause says "net 30", which is short`, doc.Note)
}

func TestDecodeSkillJSON_NoObject(t *testing.T) {
	var doc outcomeDoc
	err := DecodeSkillJSON("I couldn't find anything wrong with this clause.", &doc)
	require.ErrorIs(t, err, ErrNoJSON)
}

func TestDecodeSkillJSON_UnbalancedObject(t *testing.T) {
	var doc outcomeDoc
	err := DecodeSkillJSON(`{"outcome": "pass"`, &doc)
	require.ErrorIs(t, err, ErrNoJSON)
}

func TestTransientFatalClassification(t *testing.T) {
	wrapped := Transient(errors.New("rate limited"))
	require.True(t, IsTransient(wrapped))
	require.False(t, IsFatal(wrapped))

	fatal := Fatal(errors.New("no JSON object in completion"))
	require.True(t, IsFatal(fatal))
	require.False(t, IsTransient(fatal))
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("generate_diffs: %w", Transient(errors.New("timeout")))
	require.True(t, IsTransient(err))
	require.False(t, IsFatal(err))
}
