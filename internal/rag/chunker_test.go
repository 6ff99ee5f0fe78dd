package rag

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []int // chunk lengths in runes
	}{
		{name: "empty", text: "", size: 1000, overlap: 100, want: nil},
		{name: "whitespace only", text: "   \n\t", size: 1000, overlap: 100, want: nil},
		{name: "fits in one chunk", text: "short statement text", size: 1000, overlap: 100, want: []int{20}},
		{name: "hard cuts", text: strings.Repeat("a", 2500), size: 1000, overlap: 100, want: []int{1000, 1000, 700}},
		{
			name:    "sentence boundary",
			text:    strings.Repeat("a", 600) + "." + strings.Repeat("b", 600),
			size:    1000,
			overlap: 100,
			want:    []int{601, 700},
		},
		{
			name:    "word boundary",
			text:    strings.Repeat("x", 700) + " " + strings.Repeat("y", 700),
			size:    1000,
			overlap: 100,
			want:    []int{700, 801},
		},
		{
			name:    "boundary before midpoint is ignored",
			text:    strings.Repeat("a", 100) + ". " + strings.Repeat("b", 1400),
			size:    1000,
			overlap: 100,
			want:    []int{1000, 602},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ChunkText(tt.text, tt.size, tt.overlap)
			require.Len(t, chunks, len(tt.want))
			for i, c := range chunks {
				assert.Equal(t, tt.want[i], utf8.RuneCountInString(c), "chunk %d", i)
			}
		})
	}
}

func TestChunkText_SentenceChunkEndsWithPeriod(t *testing.T) {
	text := strings.Repeat("a", 600) + "." + strings.Repeat("b", 600)
	chunks := ChunkText(text, 1000, 100)
	require.Len(t, chunks, 2)
	assert.True(t, strings.HasSuffix(chunks[0], "."))
	assert.True(t, strings.HasSuffix(chunks[1], "b"))
}

func TestChunkText_RuneSafe(t *testing.T) {
	text := strings.Repeat("é€", 1300)
	chunks := ChunkText(text, 1000, 100)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 1000)
	}
}

func TestChunkText_OverlapClamped(t *testing.T) {
	text := strings.Repeat("a", 100)
	chunks := ChunkText(text, 10, 50)
	// Overlap is clamped to 4, so windows start every 6 runes.
	assert.Len(t, chunks, 16)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 10)
	}
}

func TestChunkText_Defaults(t *testing.T) {
	chunks := ChunkText(strings.Repeat("a", DefaultChunkSize+1), 0, -1)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], DefaultChunkSize)
	assert.Len(t, chunks[1], 1)
}

func TestEstimateTokens_CountsCharacters(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"ascii", "abcdefgh", 2},
		{"multibyte", "€€€€€€€€", 2},
		{"accented", "Café Crème", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, estimateTokens(tt.in))
		})
	}
}
