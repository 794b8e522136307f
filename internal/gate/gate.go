// Package gate decides whether a rubric item is in scope for a particular
// conversation. Gates are deterministic predicates over the transcript; they
// never call a model.
package gate

import (
	"regexp"

	"github.com/Yousif-AlEshari/Simulated-Patient/internal/rubric"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/transcript"
)

// LanguageArabic selects the Arabic pattern set; anything else selects
// English. Both fall back to the other language when their set is empty.
const LanguageArabic = "Arabic"

// GatePatientRiskPositive is the only gate defined today: the item applies
// iff the simulated patient exhibited a suicidality/self-harm cue.
const GatePatientRiskPositive = "patient_risk_positive"

// DefaultRiskCues is used when the rubric does not configure
// patient_cues.risk_positive.
var DefaultRiskCues = &rubric.CueSet{
	PatternsEN: []string{`\b(suicid|kill myself|end my life|self[- ]harm|hurt myself)\b`},
	PatternsAR: []string{"(انتحار|اقتل نفسي|انهي حياتي|ايذاء النفس|اؤذي نفسي)"},
}

// Predicate reports whether a gated item should be scored for this
// transcript.
type Predicate func(turns []transcript.Turn, r *rubric.Rubric, language string) bool

// registry maps gate names to predicates. New gates get an entry here; the
// scorer's control flow never changes.
var registry = map[string]Predicate{
	GatePatientRiskPositive: PatientRiskPositive,
}

// IsActive reports whether the named gate admits this conversation. An empty
// gate always admits. Unknown gate names also admit (fail-open): a typo in a
// gate name must never silently zero out rubric coverage.
func IsActive(gateName string, turns []transcript.Turn, r *rubric.Rubric, language string) bool {
	if gateName == "" {
		return true
	}
	pred, ok := registry[gateName]
	if !ok {
		return true
	}
	return pred(turns, r, language)
}

// PatientRiskPositive scans the normalized, space-joined patient turns for
// any configured risk cue. Cues come from the rubric when present, else the
// built-in defaults.
func PatientRiskPositive(turns []transcript.Turn, r *rubric.Rubric, language string) bool {
	cues := DefaultRiskCues
	if r != nil {
		if c := r.RiskCues(); c != nil {
			cues = c
		}
	}
	patterns := PatternsForLanguage(cues.PatternsEN, cues.PatternsAR, language)
	patientText := transcript.JoinedNormalized(turns, transcript.RolePatient)
	return AnyMatch(patterns, patientText)
}

// PatternsForLanguage picks the pattern set for the active language, falling
// back to the other language when the preferred set is empty.
func PatternsForLanguage(en, ar []string, language string) []string {
	if language == LanguageArabic {
		if len(ar) > 0 {
			return ar
		}
		return en
	}
	if len(en) > 0 {
		return en
	}
	return ar
}

// AnyMatch reports whether any pattern matches the text, case-insensitively.
// Patterns that fail to compile are skipped rather than aborting the scan.
func AnyMatch(patterns []string, text string) bool {
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			continue
		}
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
