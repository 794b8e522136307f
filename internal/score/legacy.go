package score

import (
	"math"

	"github.com/Yousif-AlEshari/Simulated-Patient/internal/gate"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/judge"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/rubric"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/transcript"
)

// Conventional item ids the holistic communication rating keys on. Rubrics
// without them simply contribute 0.
const (
	itemEmpathy = "empathy_validation"
	itemSummary = "summary_next_steps"
)

// findEvidence returns the first original message whose normalized form
// matches any pattern, or "" when none does.
func findEvidence(patterns []string, messages []string) string {
	for _, m := range messages {
		if gate.AnyMatch(patterns, transcript.Normalize(m)) {
			return m
		}
	}
	return ""
}

func clampRound(v float64, min, max int) int {
	n := int(math.Round(v))
	if n < min {
		n = min
	}
	if n > max {
		n = max
	}
	return n
}

// FromPatterns is the legacy baseline evaluator: it grades by regex evidence
// matching over trainee turns alone, with no judge involved. Gating,
// weighting and pass criteria behave exactly as in FromJudgeOutput; on top it
// derives the two holistic globals the original grading engine reported. The
// heuristic constants are preserved for parity and are not design intent.
func FromPatterns(turns []transcript.Turn, r *rubric.Rubric, language, condition string) (*Report, error) {
	if err := checkItems(r); err != nil {
		return nil, err
	}
	if err := r.ValidatePatterns(); err != nil {
		return nil, err
	}

	traineeMsgs := transcript.ByRole(turns, transcript.RoleTrainee)

	minPercent := r.MinPercent()
	failOn := sortedFailOnFlags(r)

	var flags []judge.Flag
	var totalScore, totalPossible float64
	items := make([]Item, 0, len(r.Items))
	credited := make(map[string]bool, len(r.Items))

	for _, it := range r.Items {
		included := gate.IsActive(it.Gate, turns, r, language)

		var evidence string
		var achieved bool
		var points float64
		if included {
			totalPossible += it.Weight
			patterns := gate.PatternsForLanguage(it.PatternsEN, it.PatternsAR, language)
			evidence = findEvidence(patterns, traineeMsgs)
			achieved = evidence != ""
			if achieved {
				points = it.Weight
				totalScore += points
			}
		}
		// Only items that actually earned points count toward the holistic
		// communication rating; a zero-weight match earns nothing.
		credited[it.ID] = included && achieved && it.Weight > 0

		if included && it.SafetyCritical && !achieved {
			flags = append(flags, judge.Flag{
				Type:          rubric.FlagSafetyCritical,
				ItemID:        it.ID,
				Message:       "Patient risk cue present, but trainee did not assess plan/intent/means/access.",
				EvidenceTurns: []int{},
			})
		}

		items = append(items, Item{
			ID:            it.ID,
			Desc:          it.Desc,
			Weight:        it.Weight,
			Included:      included,
			Gate:          it.Gate,
			Achieved:      achieved,
			PointsAwarded: points,
			EvidenceTurns: []int{},
			Evidence:      evidence,
		})
	}

	percent := 0.0
	if totalPossible > 0 {
		percent = totalScore / totalPossible
	}
	pass := percent >= minPercent && !hasFailFlag(flags, failOn)
	if flags == nil {
		flags = []judge.Flag{}
	}

	commMax := r.CommunicationMax()
	judgMax := r.JudgmentMax()

	commRaw := 0
	if credited[itemEmpathy] {
		commRaw++
	}
	if credited[itemSummary] {
		commRaw++
	}
	communication := clampRound(2+1.5*float64(commRaw), 1, commMax)

	judgment := 1 + float64(judgMax-1)*percent
	if hasFailFlag(flags, []string{rubric.FlagSafetyCritical}) {
		judgment = math.Min(judgment, 2)
	}
	judgmentRating := clampRound(judgment, 1, judgMax)

	return &Report{
		RubricID:        r.RubricID,
		RubricVersion:   r.Version,
		Condition:       condition,
		Language:        language,
		TotalScore:      Round3(totalScore),
		TotalPossible:   Round3(totalPossible),
		Percent:         Round3(percent),
		Pass:            pass,
		MinPercent:      minPercent,
		FailOnFlags:     failOn,
		Flags:           flags,
		Items:           items,
		SummaryFeedback: legacyFeedback(items, turns, r, language),
		Globals:         &GlobalRatings{Communication: communication, Judgment: judgmentRating},
	}, nil
}

// legacyFeedback reproduces the original engine's targeted coaching lines.
func legacyFeedback(items []Item, turns []transcript.Turn, r *rubric.Rubric, language string) []string {
	byID := make(map[string]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	feedback := []string{}
	if it, ok := byID[itemEmpathy]; ok && it.Included && !it.Achieved {
		feedback = append(feedback, "Add a brief validation/empathy statement when the patient shares distress.")
	}
	riskDepth, hasRiskDepth := byID["risk_depth"]
	if gate.PatientRiskPositive(turns, r, language) && (!hasRiskDepth || !riskDepth.Achieved) {
		feedback = append(feedback, "When suicidality/self-harm is mentioned, assess plan/intent/means/access and escalate safety planning.")
	}
	if it, ok := byID[itemSummary]; ok && it.Included && !it.Achieved {
		feedback = append(feedback, "End with a short summary and clear next steps.")
	}
	if len(feedback) == 0 {
		feedback = fallbackFeedback(items)
	}
	return feedback
}
