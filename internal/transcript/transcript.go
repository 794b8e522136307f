// Package transcript converts raw chat conversations into the normalized,
// role-tagged, turn-numbered form the graders consume.
package transcript

import (
	"regexp"
	"strings"
)

// Roles as seen by the graders. Raw conversations use the chat convention
// ("user" is the trainee clinician, "assistant" is the simulated patient).
const (
	RoleTrainee = "trainee"
	RolePatient = "patient"
)

// Message is one raw conversation entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is a numbered, role-tagged transcript entry. Turn numbers are 1-based
// over the filtered trainee/patient sequence.
type Turn struct {
	Turn    int    `json:"turn"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

var (
	arDiacritics = regexp.MustCompile("[\u064b-\u0652\u0670]")
	arAlef       = regexp.MustCompile("[إأآا]")
	arYaa        = regexp.MustCompile("[ىي]")
	whitespace   = regexp.MustCompile(`\s+`)
)

// Normalize lowercases, trims, collapses whitespace and folds Arabic
// diacritics and letter-shape variants (alef and yaa families) so regex
// matching is robust to dialectal spelling.
func Normalize(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = arDiacritics.ReplaceAllString(t, "")
	t = arAlef.ReplaceAllString(t, "ا")
	t = arYaa.ReplaceAllString(t, "ي")
	t = whitespace.ReplaceAllString(t, " ")
	return t
}

// NumberedTurns maps user/assistant messages to trainee/patient turns.
// System (and any other) roles are skipped and do not consume a turn number.
func NumberedTurns(conversation []Message) []Turn {
	turns := make([]Turn, 0, len(conversation))
	t := 1
	for _, m := range conversation {
		var role string
		switch m.Role {
		case "user":
			role = RoleTrainee
		case "assistant":
			role = RolePatient
		default:
			continue
		}
		turns = append(turns, Turn{Turn: t, Role: role, Content: m.Content})
		t++
	}
	return turns
}

// ByRole returns the contents of all turns with the given role, in order.
func ByRole(turns []Turn, role string) []string {
	var out []string
	for _, t := range turns {
		if t.Role == role {
			out = append(out, t.Content)
		}
	}
	return out
}

// JoinedNormalized returns the normalized contents of all turns with the
// given role joined by single spaces, the form gate predicates scan.
func JoinedNormalized(turns []Turn, role string) string {
	parts := ByRole(turns, role)
	for i, p := range parts {
		parts[i] = Normalize(p)
	}
	return strings.Join(parts, " ")
}
