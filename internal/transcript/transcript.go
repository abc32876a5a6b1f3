// Package transcript post-processes raw STT output before it reaches the
// reasoning layer.
//
// Two stages are applied in order:
//
//  1. Normalize — trims, lowercases, and collapses internal whitespace so
//     downstream matching is deterministic.
//  2. Filter — discards known Whisper hallucinations: short filler phrases
//     the model emits for silence or music ("thank you", "thanks for
//     watching!", ...). These show up when an utterance contains breathing
//     or background noise but no actual speech.
//
// The filter matches the whole normalized utterance exactly. A real
// sentence that happens to contain "thank you" is never dropped.
package transcript

import "strings"

// hallucinations is the exact-match blocklist of phrases Whisper emits for
// silent or noisy audio. Matching happens on normalized text.
var hallucinations = map[string]struct{}{
	"you":                  {},
	"thank you.":           {},
	"thank you":            {},
	"bye":                  {},
	"watching":             {},
	"thanks for watching!": {},
	"thanks.":              {},
	"thanks":               {},
}

// Normalize trims leading and trailing whitespace, lowercases, and collapses
// runs of internal whitespace to single spaces.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// IsHallucination reports whether the normalized text is a known Whisper
// hallucination or empty.
func IsHallucination(normalized string) bool {
	if normalized == "" {
		return true
	}
	_, ok := hallucinations[normalized]
	return ok
}

// Clean normalizes raw and applies the hallucination filter. The second
// return value is false when the utterance should be discarded.
func Clean(raw string) (string, bool) {
	n := Normalize(raw)
	if IsHallucination(n) {
		return "", false
	}
	return n, true
}

// Filter extends the built-in blocklist with deployment-specific phrases,
// e.g. fillers a particular STT model keeps emitting for a given microphone.
type Filter struct {
	extra map[string]struct{}
}

// NewFilter builds a Filter that drops the built-in hallucinations plus the
// given phrases. Phrases are normalized before matching, so case and
// spacing in the config do not matter.
func NewFilter(phrases ...string) *Filter {
	f := &Filter{extra: make(map[string]struct{}, len(phrases))}
	for _, p := range phrases {
		if n := Normalize(p); n != "" {
			f.extra[n] = struct{}{}
		}
	}
	return f
}

// Clean behaves like the package-level [Clean] with the extra phrases
// included in the blocklist.
func (f *Filter) Clean(raw string) (string, bool) {
	n := Normalize(raw)
	if IsHallucination(n) {
		return "", false
	}
	if _, ok := f.extra[n]; ok {
		return "", false
	}
	return n, true
}
