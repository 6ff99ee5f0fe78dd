// Package rag indexes document text for retrieval: chunking, embeddings,
// a SQLite-backed vector index and prompt context assembly.
package rag

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// ChunkText splits text into overlapping windows of at most size runes.
// Windows prefer to end after a sentence and then at a word boundary, as
// long as that boundary lies in the second half of the window.
func ChunkText(text string, size, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	// Keep the cursor moving: every window ends past its midpoint.
	if max := (size - 1) / 2; overlap > max {
		overlap = max
	}

	runes := []rune(text)
	n := len(runes)
	if n <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < n {
		end := start + size
		last := end >= n
		if last {
			end = n
		} else {
			mid := start + size/2
			if dot := lastIndex(runes, '.', start, end); dot > mid {
				end = dot + 1
			} else if space := lastIndex(runes, ' ', start, end); space > mid {
				end = space
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if last {
			break
		}
		start = end - overlap
	}
	return chunks
}

// lastIndex returns the index of the last r in runes[from:to], or -1.
func lastIndex(runes []rune, r rune, from, to int) int {
	for i := to - 1; i >= from; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

// estimateTokens approximates a token count at four characters per token.
func estimateTokens(s string) int {
	return utf8.RuneCountInString(s) / 4
}
