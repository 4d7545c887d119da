// Package cluster groups change records into thematic events by density
// clustering in embedding space, and labels each event via an external
// summarization capability.
package cluster

import (
	"fmt"
	"log"

	"specdiff/internal/domain"
)

// Defaults for the density clustering parameters.
const (
	DefaultMinClusterSize = 5
	DefaultEpsilon        = 0.5
	maxExemplars          = 3
)

// fallbackLabel is used when labeling one cluster fails; a failed label
// never aborts the clustering of other clusters.
const fallbackLabel = "unlabeled"

// Clusterer embeds changes, clusters them, and labels the clusters.
type Clusterer struct {
	embedder       domain.Embedder
	labeler        domain.Labeler
	minClusterSize int
	epsilon        float64
}

// New creates a Clusterer. Non-positive parameters fall back to the
// defaults.
func New(embedder domain.Embedder, labeler domain.Labeler, minClusterSize int, epsilon float64) *Clusterer {
	if minClusterSize <= 0 {
		minClusterSize = DefaultMinClusterSize
	}
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return &Clusterer{
		embedder:       embedder,
		labeler:        labeler,
		minClusterSize: minClusterSize,
		epsilon:        epsilon,
	}
}

// Cluster embeds every change, groups the vectors into density clusters,
// and returns the labeled events together with the per-change embeddings
// so the caller can persist them for index building. Noise points (label
// -1) are never materialized as events. An empty change list yields no
// events and no error.
func (c *Clusterer) Cluster(changes []domain.Change) ([]domain.Event, [][]float64, error) {
	if len(changes) == 0 {
		return nil, nil, nil
	}

	texts := make([]string, len(changes))
	for i, ch := range changes {
		texts[i] = ch.Text()
	}
	if err := c.embedder.Prepare(texts); err != nil {
		return nil, nil, fmt.Errorf("prepare embedder: %w", err)
	}
	vectors, err := c.embedder.EmbedBatch(texts)
	if err != nil {
		return nil, nil, fmt.Errorf("embed changes: %w", err)
	}

	labels := dbscan(vectors, c.epsilon, c.minClusterSize)
	clusterCount := 0
	for _, l := range labels {
		if l+1 > clusterCount {
			clusterCount = l + 1
		}
	}

	events := make([]domain.Event, 0, clusterCount)
	for id := 0; id < clusterCount; id++ {
		var members []string
		var exemplars []string
		for i, l := range labels {
			if l != id {
				continue
			}
			members = append(members, changes[i].Key())
			if len(exemplars) < maxExemplars {
				exemplars = append(exemplars, texts[i])
			}
		}
		if len(members) == 0 {
			continue
		}
		events = append(events, domain.Event{
			EventID: id,
			Label:   c.label(id, exemplars),
			Members: members,
		})
	}
	return events, vectors, nil
}

// label asks the labeler for a theme title, falling back to a placeholder
// if the call fails.
func (c *Clusterer) label(id int, exemplars []string) string {
	title, err := c.labeler.LabelCluster(exemplars)
	if err != nil {
		log.Printf("labeling cluster %d failed: %v", id, err)
		return fallbackLabel
	}
	if title == "" {
		return fallbackLabel
	}
	return title
}
