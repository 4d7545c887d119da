package domain

// ChangeMeta is the payload stored alongside each change-level vector.
type ChangeMeta struct {
	SectionID       string  `json:"section_id"`
	ChunkID         string  `json:"chunk_id"`
	ChangeType      string  `json:"change_type"`
	SimilarityScore float64 `json:"similarity_score"`
	Text            string  `json:"text"`
}

// ChangeHit is one ranked result from the change-level index. Score is the
// distance under the index metric; lower is closer.
type ChangeHit struct {
	Score float64
	Meta  ChangeMeta
}

// EventHit is one ranked result from the event-level index.
type EventHit struct {
	Score float64
	Event Event
}

// Embedder converts free text into a fixed-dimension vector. Local
// implementations may require a preparation phase over the corpus before
// either dimension or vectors are available.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(text string) ([]float64, error)
	EmbedBatch(texts []string) ([][]float64, error)
}

// Labeler produces a short human-readable theme title for a cluster of
// change snippets. Implementations are not assumed deterministic.
type Labeler interface {
	LabelCluster(exemplars []string) (string, error)
}
