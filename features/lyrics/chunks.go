package lyrics

// ChunkSize is the largest rune count sent in one message.
const ChunkSize = 4000

// Chunks splits s into consecutive pieces of at most size runes. The
// concatenation of the pieces reproduces s exactly. An empty string yields a
// single empty chunk.
func Chunks(s string, size int) []string {
	if size <= 0 {
		size = ChunkSize
	}
	runes := []rune(s)
	if len(runes) <= size {
		return []string{s}
	}
	out := make([]string, 0, (len(runes)+size-1)/size)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}
