package judge

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"

	"github.com/Yousif-AlEshari/Simulated-Patient/internal/rubric"
)

// MissingItemRationale marks item results synthesized for ids the judge
// failed to return.
const MissingItemRationale = "Missing from judge output; defaulted to achieved=false."

// ParseOutput decodes a raw judge response body. Hosted models occasionally
// emit almost-JSON (trailing commas, unquoted keys, truncated tails); those
// are run through jsonrepair before giving up.
func ParseOutput(raw []byte) (*Output, error) {
	var out Output
	if err := json.Unmarshal(raw, &out); err == nil {
		return &out, nil
	}
	repaired, err := jsonrepair.JSONRepair(string(raw))
	if err != nil {
		return nil, fmt.Errorf("judge response is not JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, fmt.Errorf("judge response unusable after repair: %w", err)
	}
	return &out, nil
}

// Reconcile returns a copy of the judge output normalized against the
// authoritative rubric:
//
//   - every rubric item id gets a result; missing ones are filled with a
//     not-achieved default rather than failing the run, because structured
//     output from an external model is best-effort
//   - absent flags/summary_feedback become empty slices
//   - rubric_id, rubric_version and rubric_fingerprint are overwritten with
//     the ground truth for this run; the judge's self-reported identifiers
//     are never trusted for audit logging
//
// The input is not mutated.
func Reconcile(out *Output, r *rubric.Rubric) *Output {
	rec := Output{
		RubricID:          r.RubricID,
		RubricVersion:     r.Version,
		RubricFingerprint: r.Fingerprint(),
		ItemResults:       make(map[string]ItemResult, len(r.Items)),
		Flags:             []Flag{},
		SummaryFeedback:   []string{},
	}
	ids := r.ItemIDs()
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	if out != nil {
		// Ids the judge invented are dropped; item_results must contain
		// exactly the rubric's item set.
		for id, res := range out.ItemResults {
			if known[id] {
				rec.ItemResults[id] = res
			}
		}
		if len(out.Flags) > 0 {
			rec.Flags = append(rec.Flags, out.Flags...)
		}
		if len(out.SummaryFeedback) > 0 {
			rec.SummaryFeedback = append(rec.SummaryFeedback, out.SummaryFeedback...)
		}
	}
	for _, id := range ids {
		if _, ok := rec.ItemResults[id]; !ok {
			rec.ItemResults[id] = ItemResult{
				Achieved:      false,
				Confidence:    0.0,
				EvidenceTurns: []int{},
				Rationale:     MissingItemRationale,
			}
		}
	}
	return &rec
}
