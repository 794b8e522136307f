// Package score turns rubric weights, gate results and judge verdicts into a
// reproducible numeric grade. Everything here is pure arithmetic over its
// inputs: same transcript, rubric and judge output always yields the same
// report.
package score

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Yousif-AlEshari/Simulated-Patient/internal/gate"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/judge"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/rubric"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/transcript"
)

// Item is one rubric item's scored result. Gated-out items still appear with
// Included=false for transparency; they just contribute nothing to the
// arithmetic.
type Item struct {
	ID            string  `json:"id"`
	Desc          string  `json:"desc"`
	Weight        float64 `json:"weight"`
	Included      bool    `json:"included"`
	Gate          string  `json:"gate,omitempty"`
	Achieved      bool    `json:"achieved"`
	PointsAwarded float64 `json:"points_awarded"`
	Confidence    float64 `json:"confidence"`
	EvidenceTurns []int   `json:"evidence_turns"`
	Rationale     string  `json:"rationale,omitempty"`

	// Evidence is the matching original trainee message; only the pattern
	// scorer fills it.
	Evidence string `json:"evidence,omitempty"`
}

// GlobalRatings are the legacy scorer's holistic communication/judgment
// heuristics. The judge path does not produce them.
type GlobalRatings struct {
	Communication int `json:"communication"`
	Judgment      int `json:"judgment"`
}

// Report is the final scored output for one evaluation run.
type Report struct {
	RubricID        string         `json:"rubric_id"`
	RubricVersion   string         `json:"rubric_version"`
	Condition       string         `json:"condition,omitempty"`
	Language        string         `json:"language,omitempty"`
	TotalScore      float64        `json:"total_score"`
	TotalPossible   float64        `json:"total_possible"`
	Percent         float64        `json:"percent"`
	Pass            bool           `json:"pass"`
	MinPercent      float64        `json:"min_percent"`
	FailOnFlags     []string       `json:"fail_on_flags"`
	Flags           []judge.Flag   `json:"flags"`
	Items           []Item         `json:"items"`
	SummaryFeedback []string       `json:"summary_feedback"`
	Globals         *GlobalRatings `json:"globals,omitempty"`
}

// Error reports a scoring-contract violation (empty or duplicate-id rubric).
// Rubric validation should have rejected these long before scoring; hitting
// one here is a programming error, not user input.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return "score: " + e.Msg }

// Round3 rounds to 3 decimal places for stable report comparisons.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func checkItems(r *rubric.Rubric) error {
	if r == nil || len(r.Items) == 0 {
		return &Error{Msg: "rubric must contain a non-empty items list"}
	}
	seen := make(map[string]bool, len(r.Items))
	for _, it := range r.Items {
		id := strings.TrimSpace(it.ID)
		if id == "" {
			return &Error{Msg: "rubric item with empty id"}
		}
		if seen[id] {
			return &Error{Msg: fmt.Sprintf("duplicate rubric item id %q", id)}
		}
		seen[id] = true
	}
	return nil
}

func sortedFailOnFlags(r *rubric.Rubric) []string {
	out := append([]string(nil), r.FailOnFlags()...)
	sort.Strings(out)
	return out
}

func hasFailFlag(flags []judge.Flag, failOn []string) bool {
	set := make(map[string]bool, len(failOn))
	for _, f := range failOn {
		set[f] = true
	}
	for _, f := range flags {
		if set[f.Type] {
			return true
		}
	}
	return false
}

// FromJudgeOutput deterministically scores a reconciled judge grade.
//
// Per item, in rubric order: resolve the gate, exclude gated-out items from
// both numerator and denominator, award weight when the judge marked the item
// achieved, and derive a SAFETY_CRITICAL flag whenever an included
// safety-critical item was not achieved, regardless of whatever flags the
// judge itself reported.
func FromJudgeOutput(turns []transcript.Turn, r *rubric.Rubric, language string, grade *judge.Output) (*Report, error) {
	if err := checkItems(r); err != nil {
		return nil, err
	}
	// Defense in depth: reconciliation should already have run, but a grade
	// with holes must never crash the scorer.
	grade = judge.Reconcile(grade, r)

	minPercent := r.MinPercent()
	failOn := sortedFailOnFlags(r)

	flags := append([]judge.Flag{}, grade.Flags...)

	var totalScore, totalPossible float64
	items := make([]Item, 0, len(r.Items))

	for _, it := range r.Items {
		included := gate.IsActive(it.Gate, turns, r, language)
		jr := grade.ItemResults[strings.TrimSpace(it.ID)]

		var points float64
		if included {
			totalPossible += it.Weight
			if jr.Achieved {
				points = it.Weight
				totalScore += points
			}
		}

		if included && it.SafetyCritical && !jr.Achieved {
			flags = append(flags, judge.Flag{
				Type:          rubric.FlagSafetyCritical,
				ItemID:        it.ID,
				Message:       fmt.Sprintf("Safety-critical item '%s' not achieved while applicable.", it.ID),
				EvidenceTurns: jr.EvidenceTurns,
			})
		}

		items = append(items, Item{
			ID:            strings.TrimSpace(it.ID),
			Desc:          it.Desc,
			Weight:        it.Weight,
			Included:      included,
			Gate:          it.Gate,
			Achieved:      jr.Achieved,
			PointsAwarded: points,
			Confidence:    Round3(jr.Confidence),
			EvidenceTurns: jr.EvidenceTurns,
			Rationale:     jr.Rationale,
		})
	}

	percent := 0.0
	if totalPossible > 0 {
		percent = totalScore / totalPossible
	}
	pass := percent >= minPercent && !hasFailFlag(flags, failOn)

	feedback := append([]string{}, grade.SummaryFeedback...)
	if len(feedback) == 0 {
		feedback = fallbackFeedback(items)
	}

	return &Report{
		RubricID:        r.RubricID,
		RubricVersion:   r.Version,
		TotalScore:      Round3(totalScore),
		TotalPossible:   Round3(totalPossible),
		Percent:         Round3(percent),
		Pass:            pass,
		MinPercent:      minPercent,
		FailOnFlags:     failOn,
		Flags:           flags,
		Items:           items,
		SummaryFeedback: feedback,
	}, nil
}

// fallbackFeedback synthesizes up to 3 lines from included-but-missed items,
// in rubric order, when the judge provided none.
func fallbackFeedback(items []Item) []string {
	out := []string{}
	for _, it := range items {
		if len(out) == 3 {
			break
		}
		if it.Included && !it.Achieved {
			out = append(out, strings.TrimSpace(fmt.Sprintf("Consider addressing: %s — %s", it.ID, it.Desc)))
		}
	}
	return out
}
