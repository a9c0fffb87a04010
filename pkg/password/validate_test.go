package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func codes(violations []PolicyViolation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Code)
	}
	return out
}

func TestValidateAcceptsStrongPassword(t *testing.T) {
	assert.Empty(t, Validate("Tr!ckyRiver84_", "alice", "alice@example.org", nil))
}

func TestValidateLength(t *testing.T) {
	assert.Contains(t, codes(Validate("Sh0rt!", "", "", nil)), CodeTooShort)

	long := strings.Repeat("Ab1!", 40)
	assert.Contains(t, codes(Validate(long, "", "", nil)), CodeTooLong)
}

func TestValidateCharacterClasses(t *testing.T) {
	got := codes(Validate("onlylowercaseletters", "", "", nil))
	assert.Contains(t, got, CodeMissingUpper)
	assert.Contains(t, got, CodeMissingDigit)
	assert.Contains(t, got, CodeMissingSpecial)
	assert.NotContains(t, got, CodeMissingLower)
}

func TestValidateCommonPassword(t *testing.T) {
	assert.Contains(t, codes(Validate("Password123", "", "", nil)), CodeCommonPassword)
}

func TestValidateSequences(t *testing.T) {
	assert.Contains(t, codes(Validate("Wet_rain_1234!", "", "", nil)), CodeSequence)
	assert.Contains(t, codes(Validate("Wet_rain_Qwer!9", "", "", nil)), CodeSequence)
}

func TestValidateContainsIdentity(t *testing.T) {
	got := codes(Validate("My_Alice_Pw98!", "alice", "", nil))
	assert.Contains(t, got, CodeContainsIdentity)

	got = codes(Validate("My_bob.w_Pw98!", "carol", "bob.w@example.org", nil))
	assert.Contains(t, got, CodeContainsIdentity)

	// Two-character identities never match.
	got = codes(Validate("Xyz_absent_9!w", "ab", "", nil))
	assert.NotContains(t, got, CodeContainsIdentity)
}

func TestValidateLowVariety(t *testing.T) {
	assert.Contains(t, codes(Validate("ababababababab", "", "", nil)), CodeLowVariety)
}

func TestValidateForbiddenWords(t *testing.T) {
	got := codes(Validate("Campus_Rocks_9!", "", "", []string{"campus"}))
	assert.Contains(t, got, CodeForbiddenWord)
}

func TestValidateReturnsAllViolations(t *testing.T) {
	got := codes(Validate("ab", "", "", nil))
	assert.GreaterOrEqual(t, len(got), 3)
}
