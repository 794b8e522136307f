package judge

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yousif-AlEshari/Simulated-Patient/internal/rubric"
)

func twoItemRubric() *rubric.Rubric {
	return &rubric.Rubric{
		RubricID: "psychiatry_intake",
		Version:  "v1",
		Items: []rubric.Item{
			{ID: "intro_agenda", Desc: "Introduces self", Weight: 1},
			{ID: "risk_screen", Desc: "Screens for risk", Weight: 2, SafetyCritical: true},
		},
	}
}

func TestBuildOutputSchemaShape(t *testing.T) {
	schema, err := BuildOutputSchema(twoItemRubric())
	require.NoError(t, err)

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, false, schema["additionalProperties"])
	assert.ElementsMatch(t, []string{
		"rubric_id", "rubric_version", "rubric_fingerprint",
		"item_results", "flags", "summary_feedback",
	}, schema["required"])

	props := schema["properties"].(map[string]any)
	itemResults := props["item_results"].(map[string]any)
	assert.Equal(t, []string{"intro_agenda", "risk_screen"}, itemResults["required"])
	assert.Equal(t, false, itemResults["additionalProperties"])

	itemProps := itemResults["properties"].(map[string]any)
	require.Len(t, itemProps, 2)
	perItem := itemProps["intro_agenda"].(map[string]any)
	assert.Equal(t, []string{"achieved", "confidence", "evidence_turns", "rationale"}, perItem["required"])
	assert.Equal(t, false, perItem["additionalProperties"])
}

func TestSchemaJSONDeterministic(t *testing.T) {
	r := twoItemRubric()
	a, err := SchemaJSON(r)
	require.NoError(t, err)
	b, err := SchemaJSON(r)
	require.NoError(t, err)

	// Hosted judges may reject retries whose schema bytes differ from the
	// first attempt, so repeated builds must be identical.
	assert.Equal(t, a, b)
	assert.True(t, json.Valid(a))
}

func TestBuildOutputSchemaErrors(t *testing.T) {
	var serr *SchemaBuildError

	_, err := BuildOutputSchema(&rubric.Rubric{})
	require.Error(t, err)
	assert.True(t, errors.As(err, &serr))

	_, err = BuildOutputSchema(&rubric.Rubric{Items: []rubric.Item{{ID: " "}}})
	require.Error(t, err)
	assert.True(t, errors.As(err, &serr))

	_, err = BuildOutputSchema(&rubric.Rubric{Items: []rubric.Item{{ID: "a"}, {ID: "a"}}})
	require.Error(t, err)
	assert.True(t, errors.As(err, &serr))
}

func TestBuildResponseFormat(t *testing.T) {
	rf, err := BuildResponseFormat(twoItemRubric(), "trainee_rubric_grade", true)
	require.NoError(t, err)

	assert.Equal(t, "json_schema", rf["type"])
	inner := rf["json_schema"].(map[string]any)
	assert.Equal(t, "trainee_rubric_grade", inner["name"])
	assert.Equal(t, true, inner["strict"])
	assert.NotNil(t, inner["schema"])
}

func TestBuildRequestPayloadMinimizesRubric(t *testing.T) {
	r := twoItemRubric()
	r.Items[0].PatternsEN = []string{`\bdr\b`}

	payload := BuildRequestPayload(r, nil, "English", "depression")

	assert.Equal(t, "English", payload.Language)
	assert.Equal(t, "depression", payload.Condition)
	assert.Equal(t, r.Fingerprint(), payload.Rubric.RubricFingerprint)
	require.Len(t, payload.Rubric.Items, 2)
	// Patterns never reach the judge; they belong to the deterministic paths.
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "patterns_en")
	assert.NotEmpty(t, payload.GradingInstructions.Evidence)
}
