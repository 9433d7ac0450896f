package domain

type MatchStatus string

const (
	// MatchResolved means the utterance picked one of the choices.
	MatchResolved MatchStatus = "resolved"
	// MatchNoResult means the normalized utterance was too short to trust.
	MatchNoResult MatchStatus = "no_result"
	// MatchNoMatch means nothing in the utterance pointed at a choice.
	MatchNoMatch MatchStatus = "no_match"
)

type MatchRule string

const (
	RuleNone    MatchRule = ""
	RuleNumeral MatchRule = "numeral"
	RuleToken   MatchRule = "token"
	RuleReading MatchRule = "reading"
)

type MatchResult struct {
	Status     MatchStatus `json:"status"`
	Index      int         `json:"index,omitempty"`
	Rule       MatchRule   `json:"rule,omitempty"`
	Normalized string      `json:"normalized"`
}

func (r MatchResult) Resolved() bool {
	return r.Status == MatchResolved && r.Index >= 1 && r.Index <= ChoiceCount
}
