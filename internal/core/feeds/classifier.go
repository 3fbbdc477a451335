package feeds

import (
	"regexp"
	"strings"
)

// The classifier is pure: post text in, label map out. It never fails and
// never touches I/O, so the commit processors can call it without any
// coordination.

var urlPattern = regexp.MustCompile(`https?://\S+`)

// punctuation is replaced by spaces during normalization. '#' is deliberately
// absent so hashtags survive as single tokens.
const punctuation = "!\"$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Classify maps post text to a label per feed. Absent feeds are false; the
// writer treats the map as the full picture. If any topical feed matches,
// the general astronomy feed is forced on.
func Classify(text string) map[string]bool {
	tokens := tokenize(text)

	labels := make(map[string]bool, len(All))
	topical := false
	for _, f := range All {
		match := f.matches(text, tokens)
		labels[f.Name] = match
		if match && f.Topical() {
			topical = true
		}
	}

	if topical {
		labels["astro"] = true
	}
	return labels
}

func (f Feed) matches(raw string, tokens map[string]struct{}) bool {
	if f.MatchAll {
		return true
	}
	for _, e := range f.Emoji {
		if strings.Contains(raw, e) {
			return true
		}
	}
	for _, w := range f.Words {
		if _, ok := tokens[w]; ok {
			return true
		}
	}
	return false
}

// tokenize produces the whole-word token set: URLs stripped, lowercased,
// punctuation and newlines flattened to spaces, then split on whitespace.
func tokenize(text string) map[string]struct{} {
	text = urlPattern.ReplaceAllString(text, "")
	text = strings.ToLower(text)
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || strings.ContainsRune(punctuation, r) {
			return ' '
		}
		return r
	}, text)

	fields := strings.Fields(text)
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tokens[f] = struct{}{}
	}
	return tokens
}
