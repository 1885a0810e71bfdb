// Package normalize canonicalizes product identifiers so the matcher can
// compare them without fuzzy logic. All functions are pure.
package normalize

import (
	"strings"
	"unicode"
)

// Code lowercases value and strips everything that is not a letter or digit.
// "ABC-100 " and "abc100" normalize to the same string.
func Code(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CodesEqual reports whether two normalized codes identify the same thing.
// Purely numeric codes compare as integers, which absorbs leading-zero and
// formatting drift between upstream payload shapes.
func CodesEqual(left, right string) bool {
	if left == "" || right == "" {
		return false
	}
	if left == right {
		return true
	}
	if isDigits(left) && isDigits(right) {
		return strings.TrimLeft(left, "0") == strings.TrimLeft(right, "0")
	}
	return false
}

// IsDigits reports whether s is non-empty and consists only of ASCII digits.
func IsDigits(s string) bool { return isDigits(s) }

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// topicStop lists connective and unit tokens that carry no topic signal in
// product names.
var topicStop = map[string]struct{}{
	"для": {}, "под": {}, "над": {}, "или": {},
	"товар": {}, "метр": {}, "метров": {}, "комплект": {},
	"with": {}, "from": {}, "pack": {}, "item": {},
}

// TopicTokens extracts the significant tokens of a product name: lowercase,
// alphanumeric only, at least 4 characters, stop-list filtered, order
// preserving, deduplicated.
func TopicTokens(text string) []string {
	replacer := strings.NewReplacer("/", " ", "-", " ")
	seen := make(map[string]struct{})
	var out []string
	for _, raw := range strings.Fields(replacer.Replace(strings.ToLower(text))) {
		token := Code(raw)
		if len([]rune(token)) < 4 {
			continue
		}
		if _, stop := topicStop[token]; stop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}
