// Package rubric models the examiner-editable grading contract: a versioned
// list of weighted checklist items with optional gates, safety-critical
// markers and per-language evidence patterns.
package rubric

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const (
	DefaultMinPercent       = 0.7
	DefaultCommunicationMax = 5
	DefaultJudgmentMax      = 5
)

// FlagSafetyCritical is the flag type that fails an evaluation outright
// under the default pass criteria.
const FlagSafetyCritical = "SAFETY_CRITICAL"

type Item struct {
	ID             string   `json:"id"`
	Desc           string   `json:"desc"`
	Weight         float64  `json:"weight"`
	Gate           string   `json:"gate,omitempty"`
	SafetyCritical bool     `json:"safety_critical,omitempty"`
	PatternsEN     []string `json:"patterns_en,omitempty"`
	PatternsAR     []string `json:"patterns_ar,omitempty"`
	Anchors        []string `json:"anchors,omitempty"`
}

// CueSet is a bilingual set of regex cues.
type CueSet struct {
	PatternsEN []string `json:"patterns_en,omitempty"`
	PatternsAR []string `json:"patterns_ar,omitempty"`
}

type PatientCues struct {
	RiskPositive *CueSet `json:"risk_positive,omitempty"`
}

// PassCriteria configures the pass decision. MinPercent is a pointer so an
// examiner's explicit 0 (everything passes unless flagged) is distinguishable
// from an absent key, which falls back to the default threshold.
type PassCriteria struct {
	MinPercent  *float64 `json:"min_percent,omitempty"`
	FailOnFlags []string `json:"fail_on_flags,omitempty"`
}

type Globals struct {
	CommunicationMax int `json:"communication_max"`
	JudgmentMax      int `json:"judgment_max"`
}

type Rubric struct {
	RubricID     string        `json:"rubric_id"`
	Version      string        `json:"version"`
	Items        []Item        `json:"items"`
	PatientCues  *PatientCues  `json:"patient_cues,omitempty"`
	PassCriteria *PassCriteria `json:"pass_criteria,omitempty"`
	Globals      *Globals      `json:"globals,omitempty"`

	// doc is the raw decoded document when the rubric came from Load/Parse.
	// Fingerprinting uses it so unknown keys still contribute to the hash.
	doc map[string]any
}

// FormatError reports a malformed rubric document. Field names the offending
// item or key so the examiner can fix the document.
type FormatError struct {
	Field string
	Msg   string
	Err   error
}

func (e *FormatError) Error() string {
	s := "rubric: " + e.Msg
	if e.Field != "" {
		s = fmt.Sprintf("rubric: %s: %s", e.Field, e.Msg)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *FormatError) Unwrap() error { return e.Err }

// Load reads and validates a rubric JSON document from disk.
func Load(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rubric not found: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a rubric JSON document.
func Parse(data []byte) (*Rubric, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &FormatError{Msg: "must be a JSON object", Err: err}
	}
	if err := validateDoc(doc); err != nil {
		return nil, err
	}
	var r Rubric
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, &FormatError{Msg: "invalid field type", Err: err}
	}
	r.doc = doc
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// validateDoc checks key presence on the raw document, which the typed
// unmarshal cannot do (a missing weight and weight:0 decode identically).
func validateDoc(doc map[string]any) error {
	itemsAny, ok := doc["items"]
	if !ok {
		return &FormatError{Field: "items", Msg: "missing non-empty items list"}
	}
	items, ok := itemsAny.([]any)
	if !ok || len(items) == 0 {
		return &FormatError{Field: "items", Msg: "must be a non-empty list"}
	}
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			return &FormatError{Field: fmt.Sprintf("items[%d]", i), Msg: "must be an object"}
		}
		for _, k := range []string{"id", "desc", "weight"} {
			if _, ok := obj[k]; !ok {
				return &FormatError{Field: fmt.Sprintf("items[%d]", i), Msg: "missing required field " + k}
			}
		}
		w, ok := obj["weight"].(float64)
		if !ok || w < 0 {
			return &FormatError{Field: fmt.Sprintf("items[%d].weight", i), Msg: "must be a number >= 0"}
		}
	}
	return nil
}

// Validate checks the structural invariants every rubric must satisfy,
// regardless of which scoring path consumes it.
func (r *Rubric) Validate() error {
	if len(r.Items) == 0 {
		return &FormatError{Field: "items", Msg: "must be a non-empty list"}
	}
	seen := make(map[string]bool, len(r.Items))
	for i, it := range r.Items {
		id := strings.TrimSpace(it.ID)
		if id == "" {
			return &FormatError{Field: fmt.Sprintf("items[%d].id", i), Msg: "must be non-empty"}
		}
		if seen[id] {
			return &FormatError{Field: fmt.Sprintf("items[%d].id", i), Msg: fmt.Sprintf("duplicate item id %q", id)}
		}
		seen[id] = true
		if it.Weight < 0 {
			return &FormatError{Field: fmt.Sprintf("items[%d].weight", i), Msg: "must be >= 0"}
		}
	}
	return nil
}

// ValidatePatterns enforces the extra requirement of the pattern-matching
// scorer: every item needs evidence patterns in at least one language.
// Judge-path rubrics may omit patterns entirely.
func (r *Rubric) ValidatePatterns() error {
	for i, it := range r.Items {
		if len(it.PatternsEN) == 0 && len(it.PatternsAR) == 0 {
			return &FormatError{
				Field: fmt.Sprintf("items[%d]", i),
				Msg:   fmt.Sprintf("item %q must include patterns_en and/or patterns_ar", it.ID),
			}
		}
	}
	return nil
}

// ItemIDs returns the item ids in rubric order.
func (r *Rubric) ItemIDs() []string {
	ids := make([]string, len(r.Items))
	for i, it := range r.Items {
		ids[i] = strings.TrimSpace(it.ID)
	}
	return ids
}

// MinPercent returns the configured pass threshold, defaulting to 0.7 only
// when the document does not set one.
func (r *Rubric) MinPercent() float64 {
	if r.PassCriteria == nil || r.PassCriteria.MinPercent == nil {
		return DefaultMinPercent
	}
	return *r.PassCriteria.MinPercent
}

// FailOnFlags returns the flag types that force a fail, defaulting to
// {SAFETY_CRITICAL}.
func (r *Rubric) FailOnFlags() []string {
	if r.PassCriteria == nil || r.PassCriteria.FailOnFlags == nil {
		return []string{FlagSafetyCritical}
	}
	return r.PassCriteria.FailOnFlags
}

func (r *Rubric) CommunicationMax() int {
	if r.Globals == nil || r.Globals.CommunicationMax == 0 {
		return DefaultCommunicationMax
	}
	return r.Globals.CommunicationMax
}

func (r *Rubric) JudgmentMax() int {
	if r.Globals == nil || r.Globals.JudgmentMax == 0 {
		return DefaultJudgmentMax
	}
	return r.Globals.JudgmentMax
}

// RiskCues returns the configured patient risk cue set, or nil when the
// document does not override the built-in defaults.
func (r *Rubric) RiskCues() *CueSet {
	if r.PatientCues == nil {
		return nil
	}
	return r.PatientCues.RiskPositive
}
