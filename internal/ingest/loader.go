// Package ingest loads the chunk lists produced by the external document
// parser and validates them before they enter the pipeline.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"specdiff/internal/domain"
)

// MissingFieldError reports a chunk record missing a required field. The
// run is not continued past malformed input.
type MissingFieldError struct {
	ChunkID string
	Field   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("chunk %q: missing required field %q", e.ChunkID, e.Field)
}

// rawChunk mirrors the parser's JSON output with pointer fields so absent
// keys can be told apart from empty values.
type rawChunk struct {
	SectionID *string `json:"section_id"`
	ChunkID   *string `json:"chunk_id"`
	Title     *string `json:"title"`
	Content   *string `json:"content"`
	ChunkType *string `json:"chunk_type"`
	Position  *int    `json:"position"`
}

// LoadChunks reads a chunk JSON file and returns the validated chunk list
// in file order.
func LoadChunks(path string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	return ParseChunks(data)
}

// ParseChunks decodes and validates a chunk JSON document.
func ParseChunks(data []byte) ([]domain.Chunk, error) {
	var raws []rawChunk
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode chunks: %w", err)
	}
	chunks := make([]domain.Chunk, 0, len(raws))
	for i, r := range raws {
		id := fmt.Sprintf("#%d", i)
		if r.ChunkID != nil {
			id = *r.ChunkID
		}
		if r.SectionID == nil {
			return nil, &MissingFieldError{ChunkID: id, Field: "section_id"}
		}
		if r.Content == nil {
			return nil, &MissingFieldError{ChunkID: id, Field: "content"}
		}
		if r.ChunkID == nil {
			return nil, &MissingFieldError{ChunkID: id, Field: "chunk_id"}
		}
		c := domain.Chunk{
			SectionID: *r.SectionID,
			ChunkID:   *r.ChunkID,
			Content:   *r.Content,
			ChunkType: domain.ChunkParagraph,
		}
		if r.Title != nil {
			c.Title = *r.Title
		}
		if r.ChunkType != nil {
			c.ChunkType = domain.ChunkType(*r.ChunkType)
		}
		if r.Position != nil {
			c.Position = *r.Position
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}
