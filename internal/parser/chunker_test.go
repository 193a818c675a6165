package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkWords(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want []string
	}{
		{"empty", "", 3, nil},
		{"whitespace only", " \n\t ", 3, nil},
		{"partial last window", "alpha beta gamma delta epsilon", 2, []string{"alpha beta", "gamma delta", "epsilon"}},
		{"exact windows", "a b c d", 2, []string{"a b", "c d"}},
		{"fewer words than size", "one two", 10, []string{"one two"}},
		{"collapses whitespace", "one\n\ntwo\tthree   four", 3, []string{"one two three", "four"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChunkWords(tt.text, tt.size))
		})
	}
}

func TestChunkWords_DefaultSize(t *testing.T) {
	words := make([]string, 301)
	for i := range words {
		words[i] = "w"
	}

	chunks := ChunkWords(strings.Join(words, " "), 0)
	if assert.Len(t, chunks, 2) {
		assert.Len(t, strings.Fields(chunks[0]), 300)
		assert.Equal(t, "w", chunks[1])
	}
}

func TestChunkWords_RoundTrip(t *testing.T) {
	texts := []string{
		"The quick brown fox\njumps over   the lazy dog.",
		"  leading and trailing   ",
		strings.Repeat("lorem ipsum dolor sit amet ", 57),
	}

	for _, text := range texts {
		for _, size := range []int{1, 2, 3, 7, 300} {
			chunks := ChunkWords(text, size)

			assert.Equal(t, strings.Join(strings.Fields(text), " "), strings.Join(chunks, " "))
			for i, c := range chunks {
				n := len(strings.Fields(c))
				assert.NotZero(t, n)
				if i < len(chunks)-1 {
					assert.Equal(t, size, n)
				} else {
					assert.LessOrEqual(t, n, size)
				}
			}
		}
	}
}
