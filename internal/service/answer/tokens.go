package answer

import (
	"regexp"
	"strings"
)

var parenthetical = regexp.MustCompile(`[（(]([^）)]+)[)）]`)

// ChoiceTokens returns the normalized forms a choice can be recognized by:
// the whole text, the text outside the first parenthetical and the
// parenthetical content itself ("まずしい（貧しい）" gives まずしい貧しい, まずしい
// and 貧しい). Empty forms are dropped; order is stable.
func ChoiceTokens(choice string) []string {
	base := strings.TrimSpace(choice)
	if base == "" {
		return nil
	}

	forms := []string{base}
	if loc := parenthetical.FindStringSubmatchIndex(base); loc != nil {
		forms = append(forms, base[:loc[0]]+base[loc[1]:], base[loc[2]:loc[3]])
	}
	return uniqueNormalized(forms)
}

func uniqueNormalized(forms []string) []string {
	seen := make(map[string]struct{}, len(forms))
	out := make([]string, 0, len(forms))
	for _, f := range forms {
		n := Normalize(f)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
