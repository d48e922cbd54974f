package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/c360studio/clausereview/llm/openai"
	"github.com/c360studio/clausereview/localskill"
	"github.com/c360studio/clausereview/skill"
	"github.com/stretchr/testify/require"
)

// newMockLLMTestServer wires the same handler set main() registers, over
// an httptest.Server instead of a real listener, loading fixtures from
// testdata/clausereview the same way main() loads them from -fixtures on
// disk — so localskill's validate_strategy/generate_diffs handlers can
// round-trip a real HTTP chat-completions call against scripted,
// clause-review-shaped fixtures.
func newMockLLMTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	fixtures, err := loadFixtures("testdata/clausereview")
	require.NoError(t, err)

	s := newServer(fixtures)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/v1/models", s.handleModels)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// TestValidateStrategy_AgainstMockLLM exercises pkg localskill's
// validate_strategy handler over a real HTTP round trip to this binary's
// fixture server, fixtures shaped as validate_strategy actually expects
// them.
func TestValidateStrategy_AgainstMockLLM(t *testing.T) {
	srv := newMockLLMTestServer(t)

	client := openai.New(openai.Config{BaseURL: srv.URL + "/v1", Model: "clause-review-validate-strategy"})

	d := skill.NewDispatcher(skill.NewRegistry(), nil, skill.DefaultRemotePollConfig())
	require.NoError(t, localskill.Register(d, localskill.Deps{LLM: client}))

	input := map[string]any{
		"task_id":   "t1",
		"clause_id": "1.1",
		"findings":  map[string]any{},
	}
	raw, err := json.Marshal(input)
	require.NoError(t, err)

	out, err := d.Call(context.Background(), localskill.SkillValidateStrategy, raw, nil)
	require.NoError(t, err)

	var result struct {
		Outcome string `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(out, &result))
	require.Equal(t, "retry", result.Outcome)
}

// TestGenerateDiffs_AgainstMockLLM exercises generate_diffs the same way,
// verifying the fixture-served completion survives DecodeSkillJSON and
// decodes into the proposed-diff shape the review machine persists.
func TestGenerateDiffs_AgainstMockLLM(t *testing.T) {
	srv := newMockLLMTestServer(t)

	client := openai.New(openai.Config{BaseURL: srv.URL + "/v1", Model: "clause-review-generate-diffs"})

	d := skill.NewDispatcher(skill.NewRegistry(), nil, skill.DefaultRemotePollConfig())
	require.NoError(t, localskill.Register(d, localskill.Deps{LLM: client}))

	input := map[string]any{
		"task_id":     "t1",
		"clause_id":   "1.1",
		"document_id": "doc1",
		"findings":    map[string]any{},
	}
	raw, err := json.Marshal(input)
	require.NoError(t, err)

	out, err := d.Call(context.Background(), localskill.SkillGenerateDiffs, raw, nil)
	require.NoError(t, err)

	var result struct {
		Diffs []struct {
			Action       string `json:"action"`
			OriginalText string `json:"original_text"`
			ProposedText string `json:"proposed_text"`
		} `json:"diffs"`
	}
	require.NoError(t, json.Unmarshal(out, &result))
	require.Len(t, result.Diffs, 1)
	require.Equal(t, "replace", result.Diffs[0].Action)
	require.Equal(t, "60 days", result.Diffs[0].ProposedText)
}
