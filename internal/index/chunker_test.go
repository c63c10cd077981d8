package index

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbered(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(byte('a' + i%26))
	}
	return sb.String()
}

func TestSplitText2500(t *testing.T) {
	text := numbered(2500)
	chunks := SplitText(text, 1000, 200)

	require.Len(t, chunks, 4)
	for i, c := range chunks {
		start := i * 800
		end := start + 1000
		if end > len(text) {
			end = len(text)
		}
		assert.Equal(t, text[start:end], c, "chunk %d", i)
	}
	assert.Len(t, chunks[3], 100)
}

func TestSplitTextShortText(t *testing.T) {
	assert.Equal(t, []string{"short"}, SplitText("short", 1000, 200))
	assert.Equal(t, []string{numbered(1000)}, SplitText(numbered(1000), 1000, 200))
	assert.Nil(t, SplitText("", 1000, 200))
}

func TestSplitTextCountsRunes(t *testing.T) {
	text := strings.Repeat("保险", 600) // 1200 runes
	chunks := SplitText(text, 1000, 200)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1000, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, 400, utf8.RuneCountInString(chunks[1]))
	assert.True(t, utf8.ValidString(chunks[1]))
}

func TestSplitTextOverlapNotSmallerThanSize(t *testing.T) {
	chunks := SplitText(numbered(25), 10, 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, numbered(25)[20:], chunks[2])
}
