package retrieval

import "strings"

// sentenceSearchWindow bounds how far back from a window edge a sentence end is searched for.
const sentenceSearchWindow = 100

// ChunkConfig controls how document text is segmented.
type ChunkConfig struct {
	Size    int
	Overlap int
}

// DefaultChunkConfig returns the 1000/200 segmentation used for study materials.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    1000,
		Overlap: 200,
	}
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// Chunk splits text into overlapping, sentence-aware segments in document order.
// Sizes are counted in runes. Segments are trimmed and empty ones are dropped.
// The scan always terminates, even when Overlap >= Size.
func Chunk(text string, cfg ChunkConfig) []string {
	if cfg.Size <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}

	runes := []rune(text)
	n := len(runes)
	chunks := make([]string, 0, n/cfg.Size+1)

	start := 0
	for start < n {
		end := start + cfg.Size
		if end < n {
			// The character right at the window edge is a candidate too.
			floor := max(end-sentenceSearchWindow, start)
			for i := end; i > floor; i-- {
				if isSentenceEnd(runes[i]) {
					end = i + 1
					break
				}
			}
		} else {
			end = n
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= n {
			break
		}

		next := end - cfg.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}
