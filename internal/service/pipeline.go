// Package service orchestrates the batch pipeline: detect writes the
// version map and change list, cluster groups changes into labeled
// events, index rebuilds the retrieval stores, and the query methods
// expose the two retrieval surfaces. Every stage recomputes its output in
// full from the persisted artifacts of the previous stage.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"specdiff/internal/cluster"
	"specdiff/internal/config"
	"specdiff/internal/detect"
	"specdiff/internal/domain"
	"specdiff/internal/ingest"
	"specdiff/internal/mapping"
	"specdiff/internal/textdiff"
	"specdiff/internal/vectorstore"
)

// Artifact file names under the data directory.
const (
	VersionMapFile = "version_map.json"
	ChangesFile    = "changes.json"
	EventsFile     = "change_events.json"
	EmbeddingsFile = "embeddings.json"
	VersionsFile   = "versions.json"
	DiffsDir       = "diffs"
)

// Pipeline wires the core stages to the configured embedder, labeler and
// vector index.
type Pipeline struct {
	dataDir  string
	mapping  mapping.Options
	strict   bool
	clusters config.ClusterConfig
	embedder domain.Embedder
	labeler  domain.Labeler
	index    vectorstore.Index

	prepared bool
}

// New assembles a pipeline from configuration and capabilities.
func New(cfg *config.AppConfig, embedder domain.Embedder, labeler domain.Labeler, index vectorstore.Index) *Pipeline {
	return &Pipeline{
		dataDir: cfg.DataDir,
		mapping: mapping.Options{
			TitleWeight:   cfg.Mapping.TitleWeight,
			ContentWeight: cfg.Mapping.ContentWeight,
			Threshold:     cfg.Mapping.Threshold,
		},
		strict:   cfg.Detector.Strict,
		clusters: cfg.Cluster,
		embedder: embedder,
		labeler:  labeler,
		index:    index,
	}
}

// DetectSummary reports what a detection run produced.
type DetectSummary struct {
	MapEntries int
	Changes    int
}

// Detect builds the version map between the two chunk files, classifies
// the changes, and persists version_map.json, changes.json and
// versions.json. Mapping and detection errors are fatal to the run; no
// artifact is written before both results are computed.
func (p *Pipeline) Detect(oldPath, newPath string) (DetectSummary, error) {
	oldChunks, err := ingest.LoadChunks(oldPath)
	if err != nil {
		return DetectSummary{}, fmt.Errorf("old chunks: %w", err)
	}
	newChunks, err := ingest.LoadChunks(newPath)
	if err != nil {
		return DetectSummary{}, fmt.Errorf("new chunks: %w", err)
	}

	vm := mapping.Map(oldChunks, newChunks, p.mapping)
	var opts []detect.Option
	if p.strict {
		opts = append(opts, detect.WithStrictPairing())
	}
	changes := detect.New(vm, opts...).Detect(oldChunks, newChunks)

	if err := os.MkdirAll(p.dataDir, 0o755); err != nil {
		return DetectSummary{}, err
	}
	if err := p.saveJSON(VersionMapFile, vm); err != nil {
		return DetectSummary{}, err
	}
	if err := p.saveJSON(ChangesFile, changes); err != nil {
		return DetectSummary{}, err
	}
	versions := map[string]string{
		"old": trimExt(filepath.Base(oldPath)),
		"new": trimExt(filepath.Base(newPath)),
	}
	if err := p.saveJSON(VersionsFile, versions); err != nil {
		return DetectSummary{}, err
	}
	return DetectSummary{MapEntries: len(vm), Changes: len(changes)}, nil
}

// Cluster loads the persisted change list, groups it into labeled events,
// and persists change_events.json plus the per-change embedding cache the
// index stage reuses. An empty change list clusters into zero events.
func (p *Pipeline) Cluster() (int, error) {
	changes, err := p.loadChanges()
	if err != nil {
		return 0, err
	}
	c := cluster.New(p.embedder, p.labeler, p.clusters.MinClusterSize, p.clusters.Epsilon)
	events, vectors, err := c.Cluster(changes)
	if err != nil {
		return 0, err
	}
	if events == nil {
		events = []domain.Event{}
	}
	if err := p.saveJSON(EventsFile, events); err != nil {
		return 0, err
	}
	if err := p.saveEmbeddings(changes, vectors); err != nil {
		return 0, err
	}
	p.prepared = true
	return len(events), nil
}

// BuildIndexes rebuilds both retrieval indexes from the persisted
// artifacts. Change vectors come from the embedding cache when it still
// matches the change list, and are recomputed otherwise; event centroids
// are the mean of their members' change vectors.
func (p *Pipeline) BuildIndexes() error {
	changes, err := p.loadChanges()
	if err != nil {
		return err
	}
	events, err := p.loadEvents()
	if err != nil {
		return err
	}

	vectors, err := p.changeVectors(changes)
	if err != nil {
		return err
	}
	if err := p.index.BuildChanges(changes, vectors); err != nil {
		return fmt.Errorf("build change index: %w", err)
	}

	byKey := make(map[string][]float64, len(changes))
	for i, c := range changes {
		byKey[c.Key()] = vectors[i]
	}
	kept := make([]domain.Event, 0, len(events))
	centroids := make([][]float64, 0, len(events))
	for _, ev := range events {
		if len(ev.Members) == 0 {
			continue
		}
		centroid, err := meanVector(ev, byKey)
		if err != nil {
			return err
		}
		kept = append(kept, ev)
		centroids = append(centroids, centroid)
	}
	if err := p.index.BuildEvents(kept, centroids); err != nil {
		return fmt.Errorf("build event index: %w", err)
	}
	return nil
}

// QueryChanges embeds the query text and searches the change-level index.
func (p *Pipeline) QueryChanges(query string, topK int) ([]domain.ChangeHit, error) {
	vec, err := p.embedQuery(query)
	if err != nil {
		return nil, err
	}
	return p.index.QueryChanges(vec, topK)
}

// QueryEvents embeds the query text and searches the event-level index.
func (p *Pipeline) QueryEvents(query string, topK int) ([]domain.EventHit, error) {
	vec, err := p.embedQuery(query)
	if err != nil {
		return nil, err
	}
	return p.index.QueryEvents(vec, topK)
}

// WriteSectionDiff renders the side-by-side HTML diff of one section
// across the two chunk files, for human audit. Returns the written path.
func (p *Pipeline) WriteSectionDiff(oldPath, newPath, sectionID string) (string, error) {
	oldChunks, err := ingest.LoadChunks(oldPath)
	if err != nil {
		return "", fmt.Errorf("old chunks: %w", err)
	}
	newChunks, err := ingest.LoadChunks(newPath)
	if err != nil {
		return "", fmt.Errorf("new chunks: %w", err)
	}
	oldText := sectionText(oldChunks, sectionID)
	newText := sectionText(newChunks, sectionID)
	return textdiff.WriteHTMLDiff(oldText, newText, sectionID, filepath.Join(p.dataDir, DiffsDir))
}

// Versions returns the revision metadata recorded by the last detection
// run, or an empty map when none exists.
func (p *Pipeline) Versions() map[string]string {
	versions := map[string]string{}
	_ = p.loadJSON(VersionsFile, &versions)
	return versions
}

// changeVectors returns one embedding per change, in change order,
// reusing the persisted cache when its keys still match.
func (p *Pipeline) changeVectors(changes []domain.Change) ([][]float64, error) {
	var records []embeddingRecord
	if err := p.loadJSON(EmbeddingsFile, &records); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cached := make(map[string][]float64, len(records))
	for _, r := range records {
		cached[r.Key] = r.Vector
	}

	vectors := make([][]float64, len(changes))
	complete := true
	for i, c := range changes {
		v, ok := cached[c.Key()]
		if !ok {
			complete = false
			break
		}
		vectors[i] = v
	}
	if complete && len(changes) > 0 {
		return vectors, nil
	}

	// Cache stale or absent: recompute and rewrite it.
	texts := make([]string, len(changes))
	for i, c := range changes {
		texts[i] = c.Text()
	}
	if len(changes) > 0 {
		if err := p.embedder.Prepare(texts); err != nil {
			return nil, fmt.Errorf("prepare embedder: %w", err)
		}
		p.prepared = true
		vectors, err := p.embedder.EmbedBatch(texts)
		if err != nil {
			return nil, fmt.Errorf("embed changes: %w", err)
		}
		if err := p.saveEmbeddings(changes, vectors); err != nil {
			return nil, err
		}
		return vectors, nil
	}
	return nil, nil
}

// embedQuery prepares the embedder over the persisted change texts once
// (local embedders derive their vector space from the corpus) and embeds
// the query.
func (p *Pipeline) embedQuery(query string) ([]float64, error) {
	if !p.prepared {
		changes, err := p.loadChanges()
		if err != nil {
			return nil, err
		}
		texts := make([]string, len(changes))
		for i, c := range changes {
			texts[i] = c.Text()
		}
		if len(texts) > 0 {
			if err := p.embedder.Prepare(texts); err != nil {
				return nil, fmt.Errorf("prepare embedder: %w", err)
			}
		}
		p.prepared = true
	}
	return p.embedder.Embed(query)
}

func (p *Pipeline) loadChanges() ([]domain.Change, error) {
	var changes []domain.Change
	if err := p.loadJSON(ChangesFile, &changes); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no %s; run detect first", ChangesFile)
		}
		return nil, err
	}
	return changes, nil
}

func (p *Pipeline) loadEvents() ([]domain.Event, error) {
	var events []domain.Event
	if err := p.loadJSON(EventsFile, &events); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return events, nil
}

type embeddingRecord struct {
	Key    string    `json:"key"`
	Vector []float64 `json:"vector"`
}

func (p *Pipeline) saveEmbeddings(changes []domain.Change, vectors [][]float64) error {
	records := make([]embeddingRecord, len(changes))
	for i, c := range changes {
		records[i] = embeddingRecord{Key: c.Key(), Vector: vectors[i]}
	}
	return p.saveJSON(EmbeddingsFile, records)
}

func meanVector(ev domain.Event, byKey map[string][]float64) ([]float64, error) {
	var sum []float64
	for _, key := range ev.Members {
		v, ok := byKey[key]
		if !ok {
			return nil, fmt.Errorf("event %d references unknown change %q; re-run cluster", ev.EventID, key)
		}
		if sum == nil {
			sum = make([]float64, len(v))
		}
		for i := range v {
			sum[i] += v[i]
		}
	}
	n := float64(len(ev.Members))
	for i := range sum {
		sum[i] /= n
	}
	return sum, nil
}

// sectionText reconstructs a section's body by concatenating its chunks
// in position order.
func sectionText(chunks []domain.Chunk, sectionID string) string {
	var inSection []domain.Chunk
	for _, c := range chunks {
		if c.SectionID == sectionID {
			inSection = append(inSection, c)
		}
	}
	sort.SliceStable(inSection, func(i, j int) bool { return inSection[i].Position < inSection[j].Position })
	parts := make([]string, len(inSection))
	for i, c := range inSection {
		parts[i] = c.Content
	}
	return strings.Join(parts, "\n")
}

func (p *Pipeline) saveJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(p.dataDir, name), data, 0o644)
}

func (p *Pipeline) loadJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(p.dataDir, name))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
