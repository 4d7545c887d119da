// Package mapping builds the best-effort alignment from old-revision
// chunks to new-revision chunks. Candidates are restricted to chunks
// sharing the same section id: the mapper realigns within a section, it
// does not detect cross-section moves.
package mapping

import (
	"specdiff/internal/domain"
	"specdiff/internal/textdiff"
)

// Default weights and threshold for the weighted similarity score.
const (
	DefaultTitleWeight   = 0.7
	DefaultContentWeight = 0.3
	DefaultThreshold     = 0.6
)

// Options configures the weighted similarity score. A zero Options value
// is replaced by the defaults.
type Options struct {
	TitleWeight   float64
	ContentWeight float64
	Threshold     float64
}

func (o Options) withDefaults() Options {
	if o.TitleWeight == 0 && o.ContentWeight == 0 {
		o.TitleWeight = DefaultTitleWeight
		o.ContentWeight = DefaultContentWeight
	}
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	return o
}

// Map aligns every old chunk to its best-scoring new chunk within the same
// section. Old chunks whose best score falls below the threshold map to
// nothing; a score exactly equal to the threshold maps. Pure function of
// its inputs.
//
// Ties resolve to the first new chunk reaching the maximum score in input
// order, which makes the result deterministic but order-dependent.
func Map(oldChunks, newChunks []domain.Chunk, opts Options) domain.VersionMap {
	opts = opts.withDefaults()

	newBySection := make(map[string][]domain.Chunk)
	for _, c := range newChunks {
		newBySection[c.SectionID] = append(newBySection[c.SectionID], c)
	}

	vm := make(domain.VersionMap, len(oldChunks))
	for _, o := range oldChunks {
		best := 0.0
		bestID := ""
		for _, n := range newBySection[o.SectionID] {
			if s := score(o, n, opts); s > best {
				best = s
				bestID = n.ChunkID
			}
		}
		if best >= opts.Threshold && bestID != "" {
			vm[o.ChunkID] = bestID
		} else {
			vm[o.ChunkID] = ""
		}
	}
	return vm
}

// score is the weighted blend of title and content similarity. Title
// similarity contributes zero when either chunk has no title.
func score(o, n domain.Chunk, opts Options) float64 {
	titleSim := 0.0
	if o.Title != "" && n.Title != "" {
		titleSim = textdiff.Ratio(o.Title, n.Title)
	}
	contentSim := textdiff.Ratio(o.Content, n.Content)
	return opts.TitleWeight*titleSim + opts.ContentWeight*contentSim
}
