package domain

import (
	"errors"
	"fmt"
	"strings"
)

type Polarity string

const (
	PolarityPositive Polarity = "pos"
	PolarityNegative Polarity = "neg"
	PolarityNone     Polarity = ""
)

// ChoiceCount is the number of answer choices every question carries.
const ChoiceCount = 4

var ErrInvalidChoiceSet = errors.New("invalid choice set")

// ChoiceSet holds the four answer strings of a question. Indexes exposed to
// callers are 1-based.
type ChoiceSet [ChoiceCount]string

// At returns the choice for a 1-based index, or "" when out of range.
func (c ChoiceSet) At(idx int) string {
	if idx < 1 || idx > ChoiceCount {
		return ""
	}
	return c[idx-1]
}

type VocabItem struct {
	ID       string    `json:"id"`
	Word     string    `json:"word"`
	Reading  string    `json:"reading"`
	Polarity Polarity  `json:"polarity"`
	PosLabel string    `json:"pos_label,omitempty"`
	NegLabel string    `json:"neg_label,omitempty"`
	Choices  ChoiceSet `json:"choices"`
	Correct  int       `json:"correct"`
	Aliases  []string  `json:"aliases,omitempty"`
	Hint     string    `json:"hint,omitempty"`
}

// Key identifies an item in progress stocks and statistics.
func (v VocabItem) Key() string {
	return v.Word + "#" + v.Reading
}

// Validate checks the preconditions the answer matcher relies on.
func (v VocabItem) Validate() error {
	for i, c := range v.Choices {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("%w: choice %d of %q is blank", ErrInvalidChoiceSet, i+1, v.Word)
		}
	}
	if v.Correct < 1 || v.Correct > ChoiceCount {
		return fmt.Errorf("%w: correct index %d of %q out of range", ErrInvalidChoiceSet, v.Correct, v.Word)
	}
	return nil
}
