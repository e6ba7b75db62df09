package match

import (
	"sort"
	"strings"
	"unicode"
)

// longDigitRun is the length at which a pure-digit token is considered noise
// (store numbers, card fragments, confirmation codes).
const longDigitRun = 4

// Tokens splits a normalized name into its whitespace-separated tokens.
func Tokens(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}

// isNoiseToken reports whether a token carries no merchant identity: tokens
// mixing letters and digits ("us2k3", "x7281") and long pure-digit runs.
func isNoiseToken(token string) bool {
	var hasLetter, hasDigit bool
	for _, r := range token {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if hasLetter && hasDigit {
		return true
	}
	if hasDigit && !hasLetter && len(token) >= longDigitRun {
		return true
	}
	return false
}

// FilterNoise drops noise tokens, unless doing so would leave nothing, in
// which case the original tokens are kept (a payee that is all noise still
// needs to match itself).
func FilterNoise(tokens []string) []string {
	filtered := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !isNoiseToken(tok) {
			filtered = append(filtered, tok)
		}
	}
	if len(filtered) == 0 {
		return tokens
	}
	return filtered
}

// TokenSet returns the deduplicated, sorted, noise-filtered tokens of a name.
func TokenSet(name string) []string {
	tokens := FilterNoise(Tokens(Normalize(name)))

	seen := make(map[string]bool, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !seen[tok] {
			seen[tok] = true
			unique = append(unique, tok)
		}
	}
	sort.Strings(unique)
	return unique
}

// TokenSetString returns the token set joined into a single comparable key.
func TokenSetString(name string) string {
	return strings.Join(TokenSet(name), " ")
}
