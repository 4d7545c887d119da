// Package vectorstore defines the two retrieval surfaces built from a
// detection run: a change-level nearest-neighbor index and an event-level
// index of cluster centroids. Both are rebuilt in full from their input
// sets; there is no incremental upsert.
package vectorstore

import (
	"errors"

	"specdiff/internal/domain"
)

// ErrCorruptIndex reports a persisted index whose vectors and metadata do
// not form a matched pair. Loading such an index fails rather than
// silently returning wrong neighbors.
var ErrCorruptIndex = errors.New("vector index and metadata out of sync")

// Index is the dual nearest-neighbor store. Scores returned by the query
// methods are distances under the configured metric: lower is closer.
type Index interface {
	BuildChanges(changes []domain.Change, vectors [][]float64) error
	BuildEvents(events []domain.Event, centroids [][]float64) error
	QueryChanges(vector []float64, topK int) ([]domain.ChangeHit, error)
	QueryEvents(vector []float64, topK int) ([]domain.EventHit, error)
}

// ChangeMeta derives the stored payload for a change record.
func ChangeMeta(c domain.Change) domain.ChangeMeta {
	return domain.ChangeMeta{
		SectionID:       c.SectionID,
		ChunkID:         c.ChunkID,
		ChangeType:      string(c.ChangeType),
		SimilarityScore: c.SimilarityScore,
		Text:            c.Text(),
	}
}
