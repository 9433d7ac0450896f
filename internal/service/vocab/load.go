// Package vocab loads the vocabulary list and serves lookups over it.
package vocab

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kogoto-lab/kogoto/internal/domain"
)

var ErrMissingHeader = errors.New("vocab: header row lacks required columns")

var required = []string{"word", "choice1", "choice2", "choice3", "choice4", "correct"}

// Issue describes a row that was skipped.
type Issue struct {
	Line int
	Word string
	Err  error
}

func (i Issue) Error() string {
	return fmt.Sprintf("line %d (%s): %v", i.Line, i.Word, i.Err)
}

// ItemID is the identifier used by progress stocks and statistics.
func ItemID(word, reading string) string {
	return word + "#" + reading
}

// Parse reads a CSV with a header row. Rows lacking a word, any of the four
// choices or the correct index are skipped silently; rows that have them but
// fail validation are skipped and reported as issues.
func Parse(r io.Reader) ([]domain.VocabItem, []Issue, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrMissingHeader
	}
	if err != nil {
		return nil, nil, fmt.Errorf("vocab: read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingHeader, name)
		}
	}

	var (
		items  []domain.VocabItem
		issues []Issue
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("vocab: read row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		cell := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		if !hasRequired(cell) {
			continue
		}

		item, err := buildItem(cell)
		if err == nil {
			err = item.Validate()
		}
		if err != nil {
			issues = append(issues, Issue{Line: line, Word: cell("word"), Err: err})
			continue
		}
		items = append(items, item)
	}
	return items, issues, nil
}

func hasRequired(cell func(string) string) bool {
	for _, name := range required {
		if cell(name) == "" {
			return false
		}
	}
	return true
}

func buildItem(cell func(string) string) (domain.VocabItem, error) {
	correct, err := strconv.Atoi(cell("correct"))
	if err != nil {
		return domain.VocabItem{}, fmt.Errorf("%w: correct %q is not a number", domain.ErrInvalidChoiceSet, cell("correct"))
	}

	item := domain.VocabItem{
		ID:       cell("id"),
		Word:     cell("word"),
		Reading:  cell("reading"),
		PosLabel: cell("pos_label"),
		NegLabel: cell("neg_label"),
		Choices: domain.ChoiceSet{
			cell("choice1"), cell("choice2"), cell("choice3"), cell("choice4"),
		},
		Correct: correct,
		Hint:    cell("hint"),
	}

	switch p := domain.Polarity(cell("polarity")); p {
	case domain.PolarityPositive, domain.PolarityNegative:
		item.Polarity = p
	}

	for _, a := range strings.Split(cell("aliases"), ";") {
		if a = strings.TrimSpace(a); a != "" {
			item.Aliases = append(item.Aliases, a)
		}
	}
	return item, nil
}
