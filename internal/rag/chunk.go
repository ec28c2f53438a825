package rag

import "strings"

// Chunk is a slice of a source document small enough to embed.
type Chunk struct {
	Text       string `json:"text"`
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
}

// ChunkText splits text into overlapping chunks, preferring paragraph
// boundaries so a chunk rarely cuts a sentence in half.
func ChunkText(text string, chunkSize, chunkOverlap int, source string) []Chunk {
	if len(text) == 0 {
		return nil
	}

	paragraphs := strings.Split(text, "\n\n")
	var chunks []Chunk
	var current strings.Builder
	idx := 0

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if current.Len()+len(para) > chunkSize && current.Len() > 0 {
			chunks = append(chunks, Chunk{
				Text:       current.String(),
				Source:     source,
				ChunkIndex: idx,
			})
			idx++

			// Carry the tail of the previous chunk as overlap.
			tail := current.String()
			current.Reset()
			if len(tail) > chunkOverlap {
				current.WriteString(tail[len(tail)-chunkOverlap:])
			}
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}

	if current.Len() > 0 {
		chunks = append(chunks, Chunk{
			Text:       current.String(),
			Source:     source,
			ChunkIndex: idx,
		})
	}

	return chunks
}
