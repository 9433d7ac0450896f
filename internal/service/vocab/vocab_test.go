package vocab

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/domain"
)

const sampleCSV = `id,word,reading,polarity,pos_label,neg_label,choice1,choice2,choice3,choice4,correct,aliases,hint
1,あはれ,あわれ,pos,しみじみ,,しみじみとした趣,腹立たしい,恐ろしい,退屈だ,1,あわれ; あはれ ,もののあはれ
2,まづし,まずし,neg,裕福,貧しい,幸せ,まずしい（貧しい）,美しい,悲しい,2,,
3,ゆかし,ゆかし,,,,見たい,ゆっくりだ,床しい,,1,,
4,あやし,あやし,maybe,,,身分が低い,怪しい,安い,明るい,7,,
5,,,,,,a,b,c,d,1,,
`

func TestParse(t *testing.T) {
	items, issues, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "あはれ", items[0].Word)
	assert.Equal(t, domain.PolarityPositive, items[0].Polarity)
	assert.Equal(t, []string{"あわれ", "あはれ"}, items[0].Aliases)
	assert.Equal(t, "もののあはれ", items[0].Hint)
	assert.Equal(t, 1, items[0].Correct)

	assert.Equal(t, "まずしい（貧しい）", items[1].Choices.At(2))
	assert.Equal(t, "裕福", items[1].PosLabel)
	assert.Equal(t, domain.PolarityNegative, items[1].Polarity)

	require.Len(t, issues, 1)
	assert.Equal(t, "あやし", issues[0].Word)
	assert.ErrorIs(t, issues[0].Err, domain.ErrInvalidChoiceSet)
	assert.Equal(t, 5, issues[0].Line)
}

func TestParse_MissingHeader(t *testing.T) {
	_, _, err := Parse(strings.NewReader("word,reading\nあはれ,あわれ\n"))
	assert.ErrorIs(t, err, ErrMissingHeader)

	_, _, err = Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMissingHeader)
}

func TestParse_ByteOrderMark(t *testing.T) {
	items, _, err := Parse(strings.NewReader("\ufeff" + sampleCSV))
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestItemID(t *testing.T) {
	assert.Equal(t, "あはれ#あわれ", ItemID("あはれ", "あわれ"))
	assert.Equal(t, "あはれ#", ItemID("あはれ", ""))
	assert.Equal(t, ItemID("あはれ", "あわれ"), domain.VocabItem{Word: "あはれ", Reading: "あわれ"}.Key())
}

func TestSample(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	src := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	got := Sample(src, 5, rng)
	require.Len(t, got, 5)
	seen := map[int]bool{}
	for _, v := range got {
		assert.False(t, seen[v], "duplicate %d", v)
		seen[v] = true
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, src)

	assert.Len(t, Sample(src, 20, rng), 10)
	assert.Nil(t, Sample(src, 0, rng))
	assert.Nil(t, Sample([]int(nil), 3, rng))
}

func TestRepository(t *testing.T) {
	items, _, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	repo := NewRepository(items, zap.NewNop())

	assert.Equal(t, 2, repo.Len())
	it, ok := repo.Lookup("まづし#まずし")
	require.True(t, ok)
	assert.Equal(t, 2, it.Correct)

	_, ok = repo.Lookup("nope#")
	assert.False(t, ok)

	assert.Len(t, repo.MoodPool(), 2)
	assert.Len(t, repo.Pick(5, rand.New(rand.NewSource(3))), 2)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	repo, err := LoadFile(path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.Len())

	_, err = LoadFile(filepath.Join(dir, "missing.csv"), zap.NewNop())
	assert.Error(t, err)
}

func TestLoadFile_BundledList(t *testing.T) {
	repo, err := LoadFile(filepath.Join("..", "..", "..", "data", "vocab.csv"), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 15, repo.Len())
	for _, it := range repo.All() {
		assert.NoError(t, it.Validate())
	}
}
