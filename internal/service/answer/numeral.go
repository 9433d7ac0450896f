package answer

import "regexp"

var numberWords = map[string]int{
	"1": 1, "いち": 1, "ひとつ": 1, "いちばん": 1, "だいいち": 1,
	"2": 2, "に": 2, "ふたつ": 2, "にばん": 2, "だいに": 2,
	"3": 3, "さん": 3, "みっつ": 3, "さんばん": 3, "だいさん": 3,
	"4": 4, "よん": 4, "し": 4, "よっつ": 4, "よんばん": 4, "だいよん": 4,
}

var trailingNumber = regexp.MustCompile(`([1-4])(?:番|ば?ん?)$`)

// ResolveNumeral maps a normalized token such as "にばん", "2番" or "だいさん"
// to a choice number.
func ResolveNumeral(token string) (int, bool) {
	if n, ok := numberWords[token]; ok {
		return n, true
	}
	if m := trailingNumber.FindStringSubmatch(token); m != nil {
		return int(m[1][0] - '0'), true
	}
	return 0, false
}
