package textutil

// Chunk splits text into consecutive segments of size bytes; the last segment
// may be shorter. Empty text yields no segments and a non-positive size yields
// the whole text as one segment. Joining the segments reproduces text.
func Chunk(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 || len(text) <= size {
		return []string{text}
	}
	chunks := make([]string, 0, (len(text)+size-1)/size)
	for start := 0; start < len(text); start += size {
		end := min(start+size, len(text))
		chunks = append(chunks, text[start:end])
	}
	return chunks
}
