package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEnglish(t *testing.T) {
	assert.Equal(t, "hello world", Normalize("  Hello    WORLD \n"))
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "a b c", Normalize("a\tb\n c"))
}

func TestNormalizeArabicFolding(t *testing.T) {
	// All alef variants fold to the bare alef.
	assert.Equal(t, "احمد", Normalize("أحمد"))
	assert.Equal(t, "امل", Normalize("آمل"))
	assert.Equal(t, "اسلام", Normalize("إسلام"))
	// Final yaa variants fold to the bare yaa.
	assert.Equal(t, "علي", Normalize("على"))
	// Diacritics are stripped.
	assert.Equal(t, "كتب", Normalize("كَتَبَ"))
}

func TestNumberedTurnsSkipsSystemMessages(t *testing.T) {
	conv := []Message{
		{Role: "system", Content: "You are a simulated patient."},
		{Role: "user", Content: "Hello, what brings you here?"},
		{Role: "assistant", Content: "I feel low."},
		{Role: "system", Content: "reminder"},
		{Role: "user", Content: "How long has this been going on?"},
		{Role: "user", Content: "Take your time."},
	}
	turns := NumberedTurns(conv)

	assert.Equal(t, []Turn{
		{Turn: 1, Role: RoleTrainee, Content: "Hello, what brings you here?"},
		{Turn: 2, Role: RolePatient, Content: "I feel low."},
		{Turn: 3, Role: RoleTrainee, Content: "How long has this been going on?"},
		{Turn: 4, Role: RoleTrainee, Content: "Take your time."},
	}, turns)
}

func TestNumberedTurnsEmpty(t *testing.T) {
	assert.Empty(t, NumberedTurns(nil))
	assert.Empty(t, NumberedTurns([]Message{{Role: "system", Content: "x"}}))
}

func TestByRoleAndJoinedNormalized(t *testing.T) {
	turns := []Turn{
		{Turn: 1, Role: RoleTrainee, Content: "Hello THERE"},
		{Turn: 2, Role: RolePatient, Content: "  I feel   LOW "},
		{Turn: 3, Role: RolePatient, Content: "Can't sleep"},
	}
	assert.Equal(t, []string{"  I feel   LOW ", "Can't sleep"}, ByRole(turns, RolePatient))
	assert.Equal(t, "i feel low can't sleep", JoinedNormalized(turns, RolePatient))
	assert.Equal(t, "hello there", JoinedNormalized(turns, RoleTrainee))
}
