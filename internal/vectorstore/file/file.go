// Package file is a flat, file-persisted vector index with brute-force
// Euclidean search. Each index level is stored as a matched pair of a
// vector file and a metadata file; a pair that is incomplete or whose
// counts disagree is a corruption condition, not silently tolerated.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"specdiff/internal/domain"
	"specdiff/internal/vectorstore"
)

// Persisted file names under the store directory.
const (
	changeVectorsFile = "changes.index.json"
	changeMetaFile    = "changes.meta.json"
	eventVectorsFile  = "events.index.json"
	eventMetaFile     = "events.meta.json"
)

// Store holds both index levels in memory and mirrors them to disk on
// every build. Single writer at a time; no locking beyond that.
type Store struct {
	dir string

	changeVectors [][]float64
	changeMeta    []domain.ChangeMeta
	eventVectors  [][]float64
	events        []domain.Event
}

// Open loads any persisted indexes from dir, creating the directory if
// needed. A half-written or mismatched pair fails with ErrCorruptIndex.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &Store{dir: dir}
	if err := loadPair(
		filepath.Join(dir, changeVectorsFile),
		filepath.Join(dir, changeMetaFile),
		&s.changeVectors, &s.changeMeta,
	); err != nil {
		return nil, fmt.Errorf("change index: %w", err)
	}
	if err := loadPair(
		filepath.Join(dir, eventVectorsFile),
		filepath.Join(dir, eventMetaFile),
		&s.eventVectors, &s.events,
	); err != nil {
		return nil, fmt.Errorf("event index: %w", err)
	}
	return s, nil
}

// BuildChanges replaces the change-level index with one vector per change.
func (s *Store) BuildChanges(changes []domain.Change, vectors [][]float64) error {
	if len(changes) != len(vectors) {
		return fmt.Errorf("%d changes but %d vectors", len(changes), len(vectors))
	}
	meta := make([]domain.ChangeMeta, len(changes))
	for i, c := range changes {
		meta[i] = vectorstore.ChangeMeta(c)
	}
	if err := savePair(
		filepath.Join(s.dir, changeVectorsFile),
		filepath.Join(s.dir, changeMetaFile),
		vectors, meta,
	); err != nil {
		return err
	}
	s.changeVectors = vectors
	s.changeMeta = meta
	return nil
}

// BuildEvents replaces the event-level index with one centroid per event.
func (s *Store) BuildEvents(events []domain.Event, centroids [][]float64) error {
	if len(events) != len(centroids) {
		return fmt.Errorf("%d events but %d centroids", len(events), len(centroids))
	}
	if err := savePair(
		filepath.Join(s.dir, eventVectorsFile),
		filepath.Join(s.dir, eventMetaFile),
		centroids, events,
	); err != nil {
		return err
	}
	s.eventVectors = centroids
	s.events = events
	return nil
}

// QueryChanges returns up to topK changes ranked by ascending Euclidean
// distance from the query vector.
func (s *Store) QueryChanges(vector []float64, topK int) ([]domain.ChangeHit, error) {
	idxs, dists := nearest(s.changeVectors, vector, topK)
	hits := make([]domain.ChangeHit, len(idxs))
	for i, idx := range idxs {
		hits[i] = domain.ChangeHit{Score: dists[i], Meta: s.changeMeta[idx]}
	}
	return hits, nil
}

// QueryEvents returns up to topK events ranked by ascending Euclidean
// distance from the query vector to their centroids.
func (s *Store) QueryEvents(vector []float64, topK int) ([]domain.EventHit, error) {
	idxs, dists := nearest(s.eventVectors, vector, topK)
	hits := make([]domain.EventHit, len(idxs))
	for i, idx := range idxs {
		hits[i] = domain.EventHit{Score: dists[i], Event: s.events[idx]}
	}
	return hits, nil
}

// ChangeCount reports how many changes the loaded index holds.
func (s *Store) ChangeCount() int { return len(s.changeMeta) }

// EventCount reports how many events the loaded index holds.
func (s *Store) EventCount() int { return len(s.events) }

// nearest ranks stored vectors by distance to the query, ties broken by
// insertion order.
func nearest(vectors [][]float64, query []float64, topK int) ([]int, []float64) {
	if topK <= 0 {
		topK = 5
	}
	idxs := make([]int, len(vectors))
	dists := make([]float64, len(vectors))
	for i, v := range vectors {
		idxs[i] = i
		dists[i] = euclidean(v, query)
	}
	sort.SliceStable(idxs, func(a, b int) bool { return dists[idxs[a]] < dists[idxs[b]] })
	if topK > len(idxs) {
		topK = len(idxs)
	}
	outIdx := make([]int, topK)
	outDist := make([]float64, topK)
	for i := 0; i < topK; i++ {
		outIdx[i] = idxs[i]
		outDist[i] = dists[idxs[i]]
	}
	return outIdx, outDist
}

func euclidean(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// loadPair reads a vector/meta pair. Both files absent means an empty
// index; exactly one present, or lengths disagreeing, is corruption.
func loadPair[M any](vecPath, metaPath string, vectors *[][]float64, meta *[]M) error {
	vecData, vecErr := os.ReadFile(vecPath)
	metaData, metaErr := os.ReadFile(metaPath)
	vecMissing := errors.Is(vecErr, os.ErrNotExist)
	metaMissing := errors.Is(metaErr, os.ErrNotExist)
	switch {
	case vecMissing && metaMissing:
		return nil
	case vecMissing != metaMissing:
		return vectorstore.ErrCorruptIndex
	case vecErr != nil:
		return vecErr
	case metaErr != nil:
		return metaErr
	}
	var vs [][]float64
	if err := json.Unmarshal(vecData, &vs); err != nil {
		return fmt.Errorf("%w: %v", vectorstore.ErrCorruptIndex, err)
	}
	var ms []M
	if err := json.Unmarshal(metaData, &ms); err != nil {
		return fmt.Errorf("%w: %v", vectorstore.ErrCorruptIndex, err)
	}
	if len(vs) != len(ms) {
		return vectorstore.ErrCorruptIndex
	}
	*vectors = vs
	*meta = ms
	return nil
}

func savePair[M any](vecPath, metaPath string, vectors [][]float64, meta []M) error {
	vecData, err := json.Marshal(vectors)
	if err != nil {
		return err
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := os.WriteFile(vecPath, vecData, 0o644); err != nil {
		return err
	}
	return os.WriteFile(metaPath, metaData, 0o644)
}
