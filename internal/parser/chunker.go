package parser

import (
	"strings"

	"pdf-rag/internal/models"
)

// ChunkWords splits text on whitespace and groups the words into consecutive,
// non-overlapping windows of size words. The last window may be shorter.
// A non-positive size falls back to models.DefaultChunkSize.
func ChunkWords(content string, size int) []string {
	if size <= 0 {
		size = models.DefaultChunkSize
	}
	words := strings.Fields(content)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(words)+size-1)/size)
	for start := 0; start < len(words); start += size {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
