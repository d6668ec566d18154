package vector

// SplitChunks splits text into chunks of at most size runes with no overlap.
// Splitting by runes keeps multi-byte characters intact. Empty input yields
// no chunks; size <= 0 yields the whole text as one chunk.
func SplitChunks(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// splitAll chunks every text in order, concatenating the results.
func splitAll(texts []string, size int) []string {
	var out []string
	for _, t := range texts {
		out = append(out, SplitChunks(t, size)...)
	}
	return out
}
