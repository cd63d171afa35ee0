package retrieval

import (
	"strconv"
	"strings"
)

// #region chunk-text
// ChunkText splits text into windows of size words starting every stride
// words. Trailing windows shorter than size are kept. stride < 1 yields nil.
func ChunkText(text string, size, stride int) []string {
	if size < 1 || stride < 1 {
		return nil
	}
	words := strings.Fields(text)
	var chunks []string
	for i := 0; i < len(words); i += stride {
		end := i + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}

// #endregion chunk-text

// #region metadata
// documentMetadata returns the metadata for document idx: the supplied map
// when one exists for that position, else {"doc_id": idx}.
func documentMetadata(idx int, metadata []map[string]string) map[string]string {
	if idx < len(metadata) && metadata[idx] != nil {
		out := make(map[string]string, len(metadata[idx]))
		for k, v := range metadata[idx] {
			out[k] = v
		}
		return out
	}
	return map[string]string{"doc_id": strconv.Itoa(idx)}
}

// #endregion metadata
