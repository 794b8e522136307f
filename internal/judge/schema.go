package judge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Yousif-AlEshari/Simulated-Patient/internal/rubric"
)

// SchemaBuildError reports a rubric that cannot produce a judge contract
// (no items, or an empty/duplicate item id).
type SchemaBuildError struct {
	Msg string
}

func (e *SchemaBuildError) Error() string { return "judge schema: " + e.Msg }

// itemIDs extracts and checks the rubric's item ids in rubric order.
func itemIDs(r *rubric.Rubric) ([]string, error) {
	if r == nil || len(r.Items) == 0 {
		return nil, &SchemaBuildError{Msg: "rubric must contain a non-empty items list"}
	}
	ids := make([]string, 0, len(r.Items))
	seen := make(map[string]bool, len(r.Items))
	for i, it := range r.Items {
		id := strings.TrimSpace(it.ID)
		if id == "" {
			return nil, &SchemaBuildError{Msg: fmt.Sprintf("rubric item #%d has an empty id", i)}
		}
		if seen[id] {
			return nil, &SchemaBuildError{Msg: fmt.Sprintf("duplicate rubric item id %q", id)}
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func turnArraySchema() map[string]any {
	return map[string]any{
		"type":     "array",
		"items":    map[string]any{"type": "integer", "minimum": 1},
		"minItems": 0,
	}
}

// BuildOutputSchema derives the closed-shape JSON Schema (Draft 2020-12) for
// the judge's output from the rubric's item set: one result slot per item id,
// exactly four fields per result, no additional properties anywhere. The
// schema is rendered from maps, which encoding/json marshals with sorted
// keys, so repeated calls over the same rubric are byte-identical. Some
// hosted judges reject retries whose schema differs from the first attempt.
func BuildOutputSchema(r *rubric.Rubric) (map[string]any, error) {
	ids, err := itemIDs(r)
	if err != nil {
		return nil, err
	}

	perItem := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"achieved":       map[string]any{"type": "boolean"},
			"confidence":     map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"evidence_turns": turnArraySchema(),
			"rationale":      map[string]any{"type": "string"},
		},
		"required":             []string{"achieved", "confidence", "evidence_turns", "rationale"},
		"additionalProperties": false,
	}

	itemProps := make(map[string]any, len(ids))
	for _, id := range ids {
		itemProps[id] = perItem
	}

	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"properties": map[string]any{
			"rubric_id":          map[string]any{"type": "string"},
			"rubric_version":     map[string]any{"type": "string"},
			"rubric_fingerprint": map[string]any{"type": "string"},
			"item_results": map[string]any{
				"type":                 "object",
				"properties":           itemProps,
				"required":             ids,
				"additionalProperties": false,
			},
			"flags": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type":           map[string]any{"type": "string"},
						"item_id":        map[string]any{"type": "string"},
						"message":        map[string]any{"type": "string"},
						"evidence_turns": turnArraySchema(),
					},
					"required":             []string{"type", "item_id", "message", "evidence_turns"},
					"additionalProperties": false,
				},
				"minItems": 0,
			},
			"summary_feedback": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 0,
			},
		},
		"required": []string{
			"rubric_id", "rubric_version", "rubric_fingerprint",
			"item_results", "flags", "summary_feedback",
		},
		"additionalProperties": false,
	}, nil
}

// BuildResponseFormat wraps the output schema in the response_format payload
// hosted structured-output APIs expect.
func BuildResponseFormat(r *rubric.Rubric, name string, strict bool) (map[string]any, error) {
	schema, err := BuildOutputSchema(r)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   name,
			"strict": strict,
			"schema": schema,
		},
	}, nil
}

// SchemaJSON renders the output schema to its canonical bytes.
func SchemaJSON(r *rubric.Rubric) ([]byte, error) {
	schema, err := BuildOutputSchema(r)
	if err != nil {
		return nil, err
	}
	return json.Marshal(schema)
}
