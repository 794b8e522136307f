package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutputValidJSON(t *testing.T) {
	out, err := ParseOutput([]byte(`{
		"rubric_id": "x",
		"item_results": {"a": {"achieved": true, "confidence": 0.9, "evidence_turns": [1, 3], "rationale": "stated name"}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "x", out.RubricID)
	assert.True(t, out.ItemResults["a"].Achieved)
	assert.Equal(t, []int{1, 3}, out.ItemResults["a"].EvidenceTurns)
}

func TestParseOutputRepairsAlmostJSON(t *testing.T) {
	// Trailing comma, the classic LLM emission.
	out, err := ParseOutput([]byte(`{"rubric_id": "x", "flags": [],}`))
	require.NoError(t, err)
	assert.Equal(t, "x", out.RubricID)
}

func TestParseOutputGarbage(t *testing.T) {
	_, err := ParseOutput([]byte("I could not grade this conversation."))
	assert.Error(t, err)
}

func TestReconcileFillsMissingItems(t *testing.T) {
	r := twoItemRubric()
	out := &Output{
		ItemResults: map[string]ItemResult{
			"intro_agenda": {Achieved: true, Confidence: 0.8, EvidenceTurns: []int{1}, Rationale: "greeted"},
		},
	}

	rec := Reconcile(out, r)

	require.Len(t, rec.ItemResults, 2)
	assert.True(t, rec.ItemResults["intro_agenda"].Achieved)
	missing := rec.ItemResults["risk_screen"]
	assert.False(t, missing.Achieved)
	assert.Equal(t, 0.0, missing.Confidence)
	assert.Empty(t, missing.EvidenceTurns)
	assert.Equal(t, MissingItemRationale, missing.Rationale)
	assert.NotNil(t, rec.Flags)
	assert.NotNil(t, rec.SummaryFeedback)
}

func TestReconcileDropsInventedItems(t *testing.T) {
	r := twoItemRubric()
	out := &Output{
		ItemResults: map[string]ItemResult{
			"intro_agenda":    {Achieved: true},
			"risk_screen":     {Achieved: true},
			"made_up_item_42": {Achieved: true},
		},
	}

	rec := Reconcile(out, r)

	assert.Len(t, rec.ItemResults, 2)
	assert.NotContains(t, rec.ItemResults, "made_up_item_42")
}

func TestReconcileStampsAuthoritativeIdentifiers(t *testing.T) {
	r := twoItemRubric()
	out := &Output{
		RubricID:          "someone-elses-rubric",
		RubricVersion:     "v99",
		RubricFingerprint: "deadbeef",
	}

	rec := Reconcile(out, r)

	assert.Equal(t, r.RubricID, rec.RubricID)
	assert.Equal(t, r.Version, rec.RubricVersion)
	assert.Equal(t, r.Fingerprint(), rec.RubricFingerprint)
}

func TestReconcileNilAndEmptyOutput(t *testing.T) {
	r := twoItemRubric()

	for _, out := range []*Output{nil, {}} {
		rec := Reconcile(out, r)
		require.Len(t, rec.ItemResults, 2)
		for _, id := range r.ItemIDs() {
			assert.Contains(t, rec.ItemResults, id)
		}
		assert.Empty(t, rec.Flags)
		assert.Empty(t, rec.SummaryFeedback)
	}
}

func TestReconcileDoesNotMutateInput(t *testing.T) {
	r := twoItemRubric()
	out := &Output{
		RubricID:    "original",
		ItemResults: map[string]ItemResult{"intro_agenda": {Achieved: true}},
	}

	_ = Reconcile(out, r)

	assert.Equal(t, "original", out.RubricID)
	assert.Len(t, out.ItemResults, 1)
}
