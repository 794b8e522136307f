// Package judge defines the structured-output contract an external examiner
// model must satisfy, builds its request payload, and repairs/normalizes its
// responses. The judge's verdicts are trusted input; everything here is
// validation and plumbing, never semantic grading.
package judge

// ItemResult is the judge's verdict for a single rubric item.
type ItemResult struct {
	Achieved      bool    `json:"achieved"`
	Confidence    float64 `json:"confidence"`
	EvidenceTurns []int   `json:"evidence_turns"`
	Rationale     string  `json:"rationale"`
}

// Flag is a qualitative alert attached to the grade, either reported by the
// judge or derived deterministically by the scorer.
type Flag struct {
	Type          string `json:"type"`
	ItemID        string `json:"item_id"`
	Message       string `json:"message"`
	EvidenceTurns []int  `json:"evidence_turns"`
}

// Output is the judge's full structured grade for one conversation.
type Output struct {
	RubricID          string                `json:"rubric_id"`
	RubricVersion     string                `json:"rubric_version"`
	RubricFingerprint string                `json:"rubric_fingerprint"`
	ItemResults       map[string]ItemResult `json:"item_results"`
	Flags             []Flag                `json:"flags"`
	SummaryFeedback   []string              `json:"summary_feedback"`
}

// Meta carries response metadata from the judge call for audit logs.
type Meta struct {
	Model             string  `json:"model,omitempty"`
	SystemFingerprint string  `json:"system_fingerprint,omitempty"`
	PromptTokens      int     `json:"prompt_tokens,omitempty"`
	CompletionTokens  int     `json:"completion_tokens,omitempty"`
	Seed              *int    `json:"seed,omitempty"`
	Temperature       float64 `json:"temperature"`
	StrictSchema      bool    `json:"strict_schema"`
}
