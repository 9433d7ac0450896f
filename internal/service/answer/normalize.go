// Package answer turns recognized speech into one of a question's four
// choices.
package answer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/width"
)

const (
	katakanaFirst  = 'ァ'
	katakanaLast   = 'ン'
	katakanaOffset = 0x60
)

const strippedRunes = "。．、，・!！?？~ー－—_（）()[]{}\"'「」『』.,/\\:;<>※•…-"

// Longest first so that ですか is removed before です can match inside it.
var sentenceEndings = []string{
	"だとおもいます",
	"だと思います",
	"でしょうか",
	"でしょう",
	"でした",
	"ですか",
	"です",
	"だよ",
	"かな",
	"かも",
	"だ",
}

var kanjiDigits = map[rune]rune{'一': '1', '二': '2', '三': '3', '四': '4'}

// A chain keeps per-use buffers, so every call builds its own.
func newNormalizer() transform.Transformer {
	return transform.Chain(
		width.Fold,
		runes.Map(unicode.ToLower),
		runes.Map(func(r rune) rune {
			if d, ok := kanjiDigits[r]; ok {
				return d
			}
			return r
		}),
		runes.Remove(runes.Predicate(func(r rune) bool {
			return unicode.IsSpace(r) || strings.ContainsRune(strippedRunes, r)
		})),
		runes.Map(func(r rune) rune {
			if r >= katakanaFirst && r <= katakanaLast {
				return r - katakanaOffset
			}
			return r
		}),
	)
}

// Normalize canonicalizes a recognized utterance or a choice for comparison:
// full-width folding, kanji numerals to digits, punctuation and whitespace
// removal, katakana to hiragana, and sentence-final politeness trimmed. The
// result is a fixed point: Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s, _, err := transform.String(newNormalizer(), raw)
	if err != nil {
		return ""
	}
	return trimEndings(s)
}

func trimEndings(s string) string {
	for {
		trimmed := false
		for _, suffix := range sentenceEndings {
			if strings.HasSuffix(s, suffix) {
				s = strings.TrimSuffix(s, suffix)
				trimmed = true
				break
			}
		}
		if !trimmed {
			return s
		}
	}
}
