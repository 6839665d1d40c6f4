// Package moderation screens outgoing chat messages before they are
// persisted or relayed. A message is checked against a keyword blocklist
// and a set of spam patterns; the first failing check blocks the message.
package moderation

import (
	"strings"
	"unicode"
)

// Result describes the outcome of screening one message.
type Result struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"` // "blocked_keyword" | "spam_pattern"
	Term    string `json:"term,omitempty"`   // matched keyword or pattern name
}

// defaultTerms is the built-in blocklist. Operators extend it via
// NewScreenWithTerms; the default covers only scam bait that shows up in
// every unmoderated chat deployment.
var defaultTerms = []string{
	"free crypto",
	"send me money",
	"password reset link",
	"click here to claim",
}

// Screen checks message text against a keyword blocklist and spam patterns.
// It is immutable after construction and safe for concurrent use.
type Screen struct {
	words   map[string]struct{} // single-token terms, matched per word
	phrases []string            // multi-token terms, matched as substrings
}

// NewScreen creates a Screen with the built-in blocklist.
func NewScreen() *Screen {
	return NewScreenWithTerms(defaultTerms)
}

// NewScreenWithTerms creates a Screen with a custom blocklist. Single-word
// terms match whole words only; terms containing spaces match as normalized
// substrings.
func NewScreenWithTerms(terms []string) *Screen {
	s := &Screen{words: make(map[string]struct{})}
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if strings.ContainsRune(term, ' ') {
			s.phrases = append(s.phrases, term)
		} else {
			s.words[term] = struct{}{}
		}
	}
	return s
}

// Check screens one message. Keyword checks run before spam patterns; the
// first match wins.
func (s *Screen) Check(text string) Result {
	normalized := normalize(text)

	for _, word := range strings.Fields(normalized) {
		if _, blocked := s.words[word]; blocked {
			return Result{Blocked: true, Reason: "blocked_keyword", Term: word}
		}
	}
	for _, phrase := range s.phrases {
		if strings.Contains(normalized, phrase) {
			return Result{Blocked: true, Reason: "blocked_keyword", Term: phrase}
		}
	}

	return checkSpamPatterns(text)
}

// normalize lowercases text and strips punctuation so "BadWord!" matches the
// blocklist entry "badword". Punctuation becomes spaces to keep word
// boundaries intact.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
