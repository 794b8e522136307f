package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yousif-AlEshari/Simulated-Patient/internal/transcript"
)

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := map[string]any{
		"model":              "test-judge",
		"system_fingerprint": "fp_test",
		"choices":            []any{map[string]any{"message": map[string]any{"content": content}}},
		"usage":              map[string]any{"prompt_tokens": 100, "completion_tokens": 50},
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestClientJudgeStrictSchema(t *testing.T) {
	r := twoItemRubric()
	grade := `{
		"rubric_id": "psychiatry_intake", "rubric_version": "v1", "rubric_fingerprint": "ignored",
		"item_results": {
			"intro_agenda": {"achieved": true, "confidence": 0.9, "evidence_turns": [1], "rationale": "greeted"},
			"risk_screen": {"achieved": false, "confidence": 0.7, "evidence_turns": [], "rationale": "not asked"}
		},
		"flags": [], "summary_feedback": []
	}`

	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, json.NewDecoder(req.Body).Decode(&gotBody))
		assert.Equal(t, "/chat/completions", req.URL.Path)
		assert.Equal(t, "Bearer test-key", req.Header.Get("Authorization"))
		chatReply(t, w, grade)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "test-judge", StrictSchema: true})
	turns := []transcript.Turn{{Turn: 1, Role: transcript.RoleTrainee, Content: "Hello, I'm Dr. Mike."}}

	out, meta, err := c.Judge(context.Background(), r, turns, "English", "depression")
	require.NoError(t, err)

	assert.True(t, out.ItemResults["intro_agenda"].Achieved)
	assert.False(t, out.ItemResults["risk_screen"].Achieved)
	// Reconciliation stamps the real fingerprint over the judge's claim.
	assert.Equal(t, r.Fingerprint(), out.RubricFingerprint)

	assert.Equal(t, "test-judge", meta.Model)
	assert.True(t, meta.StrictSchema)
	assert.Equal(t, 0.0, meta.Temperature)

	// The strict call carries the json_schema response_format.
	rf, err := json.Marshal(gotBody.ResponseFormat)
	require.NoError(t, err)
	assert.Contains(t, string(rf), "json_schema")
}

func TestClientJudgeFallsBackToJSONObject(t *testing.T) {
	r := twoItemRubric()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		if calls == 1 {
			// Model without strict structured-output support.
			http.Error(w, `{"error": "response_format json_schema not supported"}`, http.StatusBadRequest)
			return
		}
		chatReply(t, w, `{"item_results": {"intro_agenda": {"achieved": true, "confidence": 1, "evidence_turns": [1], "rationale": "ok"}}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "old-judge", StrictSchema: true})

	out, meta, err := c.Judge(context.Background(), r, nil, "English", "")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.False(t, meta.StrictSchema)
	// The half-delivered grade still reconciles to the full item set.
	assert.Len(t, out.ItemResults, 2)
	assert.Equal(t, MissingItemRationale, out.ItemResults["risk_screen"].Rationale)
}

func TestClientJudgeNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "test", StrictSchema: false})
	_, _, err := c.Judge(context.Background(), twoItemRubric(), nil, "English", "")
	assert.Error(t, err)
}
