package judge

import (
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/rubric"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/transcript"
)

// SystemPrompt frames the judge as a strict OSCE examiner bound to the
// transcript and schema.
const SystemPrompt = "You are a strict psychiatry OSCE examiner grading a trainee.\n" +
	"Use ONLY the provided conversation turns as evidence. Do NOT assume unstated facts.\n" +
	"Grade each rubric item independently.\n" +
	"If an item is partially met or unclear, set achieved=false and explain why.\n" +
	"When achieved=true, include evidence_turns that support it.\n" +
	"Return only the JSON that matches the provided schema."

// MinimizedItem is the rubric-item slice sent to the judge: grading context
// only, no evidence patterns (those belong to the deterministic paths).
type MinimizedItem struct {
	ID             string   `json:"id"`
	Desc           string   `json:"desc"`
	Weight         float64  `json:"weight"`
	Gate           string   `json:"gate,omitempty"`
	SafetyCritical bool     `json:"safety_critical"`
	Anchors        []string `json:"anchors,omitempty"`
}

// MinimizedRubric is the rubric payload the judge sees, stamped with the
// fingerprint of the full document it was minimized from.
type MinimizedRubric struct {
	RubricID          string               `json:"rubric_id"`
	RubricVersion     string               `json:"rubric_version"`
	RubricFingerprint string               `json:"rubric_fingerprint"`
	Items             []MinimizedItem      `json:"items"`
	PassCriteria      *rubric.PassCriteria `json:"pass_criteria,omitempty"`
}

// GradingInstructions is free-text guidance embedded in the request payload.
type GradingInstructions struct {
	Evidence           string `json:"evidence"`
	AchievedDefinition string `json:"achieved_definition"`
}

// RequestPayload is the structured user message for the judge call.
type RequestPayload struct {
	Language            string              `json:"language"`
	Condition           string              `json:"condition,omitempty"`
	Rubric              MinimizedRubric     `json:"rubric"`
	ConversationTurns   []transcript.Turn   `json:"conversation_turns"`
	GradingInstructions GradingInstructions `json:"grading_instructions"`
}

// MinimizeRubric strips the rubric down to what the judge needs.
func MinimizeRubric(r *rubric.Rubric) MinimizedRubric {
	items := make([]MinimizedItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, MinimizedItem{
			ID:             it.ID,
			Desc:           it.Desc,
			Weight:         it.Weight,
			Gate:           it.Gate,
			SafetyCritical: it.SafetyCritical,
			Anchors:        it.Anchors,
		})
	}
	return MinimizedRubric{
		RubricID:          r.RubricID,
		RubricVersion:     r.Version,
		RubricFingerprint: r.Fingerprint(),
		Items:             items,
		PassCriteria:      r.PassCriteria,
	}
}

// BuildRequestPayload assembles the judge request for one conversation.
func BuildRequestPayload(r *rubric.Rubric, turns []transcript.Turn, language, condition string) RequestPayload {
	return RequestPayload{
		Language:          language,
		Condition:         condition,
		Rubric:            MinimizeRubric(r),
		ConversationTurns: turns,
		GradingInstructions: GradingInstructions{
			Evidence:           "Use turn numbers. Prefer trainee turns, but you may cite patient turns for context (e.g., risk cue).",
			AchievedDefinition: "Achieved if the trainee clearly demonstrates the behavior at least once in the conversation.",
		},
	}
}
