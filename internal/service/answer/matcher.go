package answer

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/ports"
)

// MinUtteranceRunes is the shortest normalized utterance the matcher trusts.
const MinUtteranceRunes = 2

type Matcher struct {
	readings ports.ReadingProvider
	log      *zap.Logger
}

type Option func(*Matcher)

// WithReadings enables a last-resort pass that compares kana readings, so a
// kanji utterance can still hit a kana choice and the other way round.
func WithReadings(p ports.ReadingProvider) Option {
	return func(m *Matcher) { m.readings = p }
}

func NewMatcher(log *zap.Logger, opts ...Option) *Matcher {
	m := &Matcher{log: log}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match resolves an utterance against the four choices. Ties go to the
// lowest matching choice number.
func (m *Matcher) Match(utterance string, choices domain.ChoiceSet) domain.MatchResult {
	u := Normalize(utterance)
	res := domain.MatchResult{Status: domain.MatchNoResult, Normalized: u}
	if utf8.RuneCountInString(u) < MinUtteranceRunes {
		return res
	}

	if n, ok := ResolveNumeral(u); ok {
		return resolved(res, n, domain.RuleNumeral)
	}

	tokens := make([][]string, domain.ChoiceCount)
	for i, c := range choices {
		tokens[i] = ChoiceTokens(c)
	}
	if n := firstHit(u, tokens); n > 0 {
		return resolved(res, n, domain.RuleToken)
	}

	if m.readings != nil {
		if n := m.matchReadings(u, utterance, choices); n > 0 {
			return resolved(res, n, domain.RuleReading)
		}
	}

	res.Status = domain.MatchNoMatch
	m.log.Debug("utterance matched no choice",
		zap.String("utterance", utterance),
		zap.String("normalized", u),
	)
	return res
}

func (m *Matcher) matchReadings(u, raw string, choices domain.ChoiceSet) int {
	candidates := []string{u}
	if r := Normalize(m.readings.Reading(raw)); r != "" && r != u {
		candidates = append(candidates, r)
	}

	tokens := make([][]string, domain.ChoiceCount)
	for i, c := range choices {
		var forms []string
		for _, t := range ChoiceTokens(c) {
			forms = append(forms, t, m.readings.Reading(t))
		}
		tokens[i] = uniqueNormalized(forms)
	}

	for _, cand := range candidates {
		if utf8.RuneCountInString(cand) < MinUtteranceRunes {
			continue
		}
		if n := firstHit(cand, tokens); n > 0 {
			return n
		}
	}
	return 0
}

func firstHit(u string, tokens [][]string) int {
	for i, ts := range tokens {
		for _, t := range ts {
			if t == "" {
				continue
			}
			if t == u || strings.Contains(u, t) || strings.Contains(t, u) {
				return i + 1
			}
		}
	}
	return 0
}

func resolved(res domain.MatchResult, idx int, rule domain.MatchRule) domain.MatchResult {
	res.Status = domain.MatchResolved
	res.Index = idx
	res.Rule = rule
	return res
}
