package reading

import (
	"testing"

	"go.uber.org/zap"
)

func TestKagomeReadings(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the IPA dictionary")
	}
	p, err := NewKagomeReadings(zap.NewNop())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	tests := map[string]string{
		"":    "",
		"貧しい": "マズシイ",
		"美しい": "ウツクシイ",
	}
	for in, want := range tests {
		if got := p.Reading(in); got != want {
			t.Errorf("Reading(%q) = %q, want %q", in, got, want)
		}
	}
}
