package caption

// Compact merges consecutive utterances by the same speaker into chunks.
// It makes a single pass over utts: a run's texts are joined with "\n", its
// start is the first utterance's start and its end the last one's end.
func Compact(utts []Utterance) []Chunk {
	chunks := make([]Chunk, 0, len(utts))
	for _, u := range utts {
		chunks = appendMerged(chunks, Chunk(u))
	}
	return chunks
}

// CompactChunks applies the same merge as [Compact] to a chunk sequence.
// Compacting an already compacted sequence returns an equal sequence.
func CompactChunks(in []Chunk) []Chunk {
	chunks := make([]Chunk, 0, len(in))
	for _, c := range in {
		chunks = appendMerged(chunks, c)
	}
	return chunks
}

func appendMerged(chunks []Chunk, c Chunk) []Chunk {
	if n := len(chunks); n > 0 && chunks[n-1].Speaker == c.Speaker {
		last := &chunks[n-1]
		last.Text += "\n" + c.Text
		last.End = c.End
		return chunks
	}
	return append(chunks, c)
}
