package reading

import (
	"fmt"
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/ports"
)

// KagomeReadings produces katakana readings with the IPA dictionary.
type KagomeReadings struct {
	tok *tokenizer.Tokenizer
	log *zap.Logger
}

func NewKagomeReadings(log *zap.Logger) (ports.ReadingProvider, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("failed to build kagome tokenizer: %w", err)
	}
	log.Info("Kana reading provider initialized", zap.String("dict", "ipa"))
	return &KagomeReadings{tok: t, log: log}, nil
}

// Reading concatenates the reading of every morpheme. Morphemes the
// dictionary does not know keep their surface form.
func (k *KagomeReadings) Reading(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	var b strings.Builder
	for _, t := range k.tok.Tokenize(text) {
		if r, ok := t.Reading(); ok && r != "" && r != "*" {
			b.WriteString(r)
			continue
		}
		b.WriteString(t.Surface)
	}
	return b.String()
}
