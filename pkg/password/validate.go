package password

import (
	"strings"
	"unicode"
)

// Validation error codes returned to clients.
const (
	CodeTooShort          = "PWD_TOO_SHORT"
	CodeTooLong           = "PWD_TOO_LONG"
	CodeMissingUpper      = "PWD_MISSING_UPPERCASE"
	CodeMissingLower      = "PWD_MISSING_LOWERCASE"
	CodeMissingDigit      = "PWD_MISSING_DIGIT"
	CodeMissingSpecial    = "PWD_MISSING_SPECIAL"
	CodeCommonPassword    = "PWD_COMMON"
	CodeSequence          = "PWD_SEQUENCE"
	CodeContainsIdentity  = "PWD_CONTAINS_IDENTITY"
	CodeLowVariety        = "PWD_LOW_VARIETY"
	CodeForbiddenWord     = "PWD_FORBIDDEN_WORD"
)

const (
	MinLength = 12
	MaxLength = 128
)

// PolicyViolation is a single failed rule with its machine-readable code.
type PolicyViolation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// commonPasswords holds frequently seen passwords checked case-insensitively.
var commonPasswords = map[string]struct{}{
	"password":         {},
	"password1":        {},
	"passwort":         {},
	"letmein":          {},
	"welcome":          {},
	"iloveyou":         {},
	"admin":            {},
	"administrator":    {},
	"changeme":         {},
	"secret":           {},
	"qwertyuiop":       {},
	"monkey":           {},
	"dragon":           {},
	"sunshine":         {},
	"princess":         {},
	"football":         {},
	"baseball":         {},
	"trustno1":         {},
	"superman":         {},
	"password123":      {},
	"adminadmin":       {},
	"root":             {},
	"passw0rd":         {},
	"p@ssword":         {},
	"1q2w3e4r":         {},
	"zaq12wsx":         {},
}

// prohibitedSequences are keyboard walks and runs that must not appear.
var prohibitedSequences = []string{
	"0123", "1234", "2345", "3456", "4567", "5678", "6789", "7890",
	"9876", "8765", "7654", "6543", "5432", "4321", "3210",
	"abcd", "bcde", "cdef", "defg", "efgh",
	"qwer", "wert", "erty", "rtyu", "tyui", "yuio", "uiop",
	"asdf", "sdfg", "dfgh", "fghj", "ghjk", "hjkl",
	"yxcv", "zxcv", "xcvb", "cvbn", "vbnm",
	"aaaa", "0000", "1111", "9999",
}

// Validate applies the full set-time strength policy. username and email are
// the owner's identity values; forbidden are caller-supplied additional words.
// It returns every violated rule, not just the first.
func Validate(password, username, email string, forbidden []string) []PolicyViolation {
	var out []PolicyViolation
	add := func(code, message string) {
		out = append(out, PolicyViolation{Code: code, Message: message})
	}

	if len(password) < MinLength {
		add(CodeTooShort, "password must be at least 12 characters long")
	}
	if len(password) > MaxLength {
		add(CodeTooLong, "password must be at most 128 characters long")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	distinct := map[rune]struct{}{}
	for _, r := range password {
		distinct[r] = struct{}{}
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if !hasUpper {
		add(CodeMissingUpper, "password must contain an uppercase letter")
	}
	if !hasLower {
		add(CodeMissingLower, "password must contain a lowercase letter")
	}
	if !hasDigit {
		add(CodeMissingDigit, "password must contain a digit")
	}
	if !hasSpecial {
		add(CodeMissingSpecial, "password must contain a special character")
	}

	lower := strings.ToLower(password)
	if _, ok := commonPasswords[lower]; ok {
		add(CodeCommonPassword, "password is too common")
	}

	for _, seq := range prohibitedSequences {
		if strings.Contains(lower, seq) {
			add(CodeSequence, "password contains a prohibited sequence")
			break
		}
	}

	if containsIdentity(lower, username) || containsIdentity(lower, emailLocalPart(email)) {
		add(CodeContainsIdentity, "password must not contain the username or email")
	}

	if len(password) > 0 && len(distinct) <= 2 {
		add(CodeLowVariety, "password uses too few distinct characters")
	}

	for _, word := range forbidden {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" && strings.Contains(lower, word) {
			add(CodeForbiddenWord, "password contains a forbidden word")
			break
		}
	}

	return out
}

func containsIdentity(lowerPassword, identity string) bool {
	identity = strings.ToLower(strings.TrimSpace(identity))
	// Short identity fragments would flag almost anything.
	if len(identity) < 3 {
		return false
	}
	return strings.Contains(lowerPassword, identity)
}

func emailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
