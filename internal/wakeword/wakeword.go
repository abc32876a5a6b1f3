// Package wakeword gates the pipeline on a spoken activation phrase.
//
// STT output for short names is unreliable ("vox kit", "box kit", "foxkit"
// for "voxkit"), so exact substring matching misses real activations. The
// gate therefore accepts a word when any of the following hold:
//
//  1. The normalized utterance contains the wake word verbatim.
//  2. A word in the utterance shares a Double Metaphone code with the wake
//     word and scores above the phonetic threshold on Jaro-Winkler.
//  3. A word scores above the stricter fuzzy threshold on Jaro-Winkler
//     alone, catching misspellings that diverge phonetically.
//
// Adjacent word pairs are also tested joined, so "vox kit" matches
// "voxkit". The Gate is read-only after construction and safe for
// concurrent use.
package wakeword

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Gate].
type Option func(*Gate)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched word to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(g *Gate) { g.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(g *Gate) { g.fuzzyThreshold = threshold }
}

// WithAliases registers extra spellings that are accepted verbatim
// (e.g. "vox kit" for "voxkit").
func WithAliases(aliases ...string) Option {
	return func(g *Gate) {
		for _, a := range aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a != "" {
				g.aliases = append(g.aliases, a)
			}
		}
	}
}

// Gate detects a wake word in normalized transcripts.
type Gate struct {
	word              string
	primaryCode       string
	secondaryCode     string
	aliases           []string
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New builds a Gate for word. The word is lowercased; an empty word yields
// a Gate whose Match always reports true, which disables gating.
func New(word string, opts ...Option) *Gate {
	g := &Gate{
		word:              strings.ToLower(strings.TrimSpace(word)),
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(g)
	}
	if g.word != "" {
		g.primaryCode, g.secondaryCode = matchr.DoubleMetaphone(g.word)
	}
	return g
}

// Word returns the configured wake word.
func (g *Gate) Word() string { return g.word }

// Enabled reports whether a wake word is configured.
func (g *Gate) Enabled() bool { return g.word != "" }

// Match reports whether text (already normalized to lowercase) contains the
// wake word, an alias, or a close phonetic variant. It also returns the
// remainder of the utterance with the first matched token removed, so the
// command after the wake word can be processed on its own.
func (g *Gate) Match(text string) (rest string, ok bool) {
	if g.word == "" {
		return text, true
	}

	for _, alias := range g.aliases {
		if idx := strings.Index(text, alias); idx >= 0 {
			return strings.TrimSpace(text[:idx] + text[idx+len(alias):]), true
		}
	}

	words := strings.Fields(text)

	// Single words first, then adjacent pairs joined ("vox kit" → "voxkit").
	for i, w := range words {
		if g.matchToken(w) {
			return joinExcept(words, i, i), true
		}
	}
	for i := 0; i+1 < len(words); i++ {
		if g.matchToken(words[i] + words[i+1]) {
			return joinExcept(words, i, i+1), true
		}
	}
	return text, false
}

// matchToken applies the verbatim, phonetic, and fuzzy checks to one token.
func (g *Gate) matchToken(token string) bool {
	if token == g.word {
		return true
	}
	score := matchr.JaroWinkler(token, g.word, false)
	p, s := matchr.DoubleMetaphone(token)
	if codesOverlap(p, s, g.primaryCode, g.secondaryCode) {
		return score >= g.phoneticThreshold
	}
	return score >= g.fuzzyThreshold
}

func codesOverlap(p1, s1, p2, s2 string) bool {
	for _, a := range []string{p1, s1} {
		if a == "" {
			continue
		}
		if a == p2 || (s2 != "" && a == s2) {
			return true
		}
	}
	return false
}

// joinExcept reassembles words, skipping indexes from through to inclusive.
func joinExcept(words []string, from, to int) string {
	out := make([]string, 0, len(words))
	for i, w := range words {
		if i >= from && i <= to {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}
