package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specdiff/internal/domain"
	"specdiff/internal/vectorstore"
)

func sampleChanges() ([]domain.Change, [][]float64) {
	changes := []domain.Change{
		{SectionID: "1", ChunkID: "1_0", ChangeType: domain.Added, NewContent: "near"},
		{SectionID: "2", ChunkID: "2_0", ChangeType: domain.Removed, OldContent: "mid"},
		{SectionID: "3", ChunkID: "3_0", ChangeType: domain.Added, NewContent: "far"},
	}
	vectors := [][]float64{{0.0, 0.0}, {1.0, 0.0}, {5.0, 0.0}}
	return changes, vectors
}

func TestQueryChangesOrdering(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	changes, vectors := sampleChanges()
	require.NoError(t, s.BuildChanges(changes, vectors))

	hits, err := s.QueryChanges([]float64{0.1, 0.0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "1_0", hits[0].Meta.ChunkID)
	assert.Equal(t, "2_0", hits[1].Meta.ChunkID)
	assert.Equal(t, "3_0", hits[2].Meta.ChunkID)
	assert.Less(t, hits[0].Score, hits[1].Score)
	assert.Less(t, hits[1].Score, hits[2].Score)
}

func TestQueryTopK(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	changes, vectors := sampleChanges()
	require.NoError(t, s.BuildChanges(changes, vectors))

	hits, err := s.QueryChanges([]float64{0, 0}, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = s.QueryChanges([]float64{0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3, "topK is clamped to the index size")
}

func TestQueryEvents(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	events := []domain.Event{
		{EventID: 0, Label: "auth changes", Members: []string{"added:1_0"}},
		{EventID: 1, Label: "timer changes", Members: []string{"removed:2_0"}},
	}
	centroids := [][]float64{{0.0}, {3.0}}
	require.NoError(t, s.BuildEvents(events, centroids))

	hits, err := s.QueryEvents([]float64{2.9}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "timer changes", hits[0].Event.Label)
	assert.Equal(t, 1, hits[0].Event.EventID)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	changes, vectors := sampleChanges()
	require.NoError(t, s.BuildChanges(changes, vectors))
	require.NoError(t, s.BuildEvents(
		[]domain.Event{{EventID: 0, Label: "l", Members: []string{"added:1_0"}}},
		[][]float64{{0.5, 0.0}},
	))

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.ChangeCount())
	assert.Equal(t, 1, reopened.EventCount())

	hits, err := reopened.QueryChanges([]float64{4.9, 0.0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "3_0", hits[0].Meta.ChunkID)
}

func TestBuildCountMismatch(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	changes, _ := sampleChanges()
	err = s.BuildChanges(changes, [][]float64{{0.0}})
	assert.Error(t, err)
}

func TestOpenCorruption(t *testing.T) {
	t.Run("missing metadata half", func(t *testing.T) {
		dir := t.TempDir()
		s, err := Open(dir)
		require.NoError(t, err)
		changes, vectors := sampleChanges()
		require.NoError(t, s.BuildChanges(changes, vectors))
		require.NoError(t, os.Remove(filepath.Join(dir, "changes.meta.json")))

		_, err = Open(dir)
		assert.ErrorIs(t, err, vectorstore.ErrCorruptIndex)
	})

	t.Run("count mismatch between halves", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "changes.index.json"), []byte(`[[0.1],[0.2]]`), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "changes.meta.json"), []byte(`[{"chunk_id":"1_0"}]`), 0o644))

		_, err := Open(dir)
		assert.ErrorIs(t, err, vectorstore.ErrCorruptIndex)
	})

	t.Run("undecodable vectors", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "events.index.json"), []byte("junk"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "events.meta.json"), []byte("[]"), 0o644))

		_, err := Open(dir)
		assert.ErrorIs(t, err, vectorstore.ErrCorruptIndex)
	})
}

func TestOpenEmptyDir(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, s.ChangeCount())

	hits, err := s.QueryChanges([]float64{0.0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
