package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specdiff/internal/domain"
)

func chunk(section, id, content string) domain.Chunk {
	return domain.Chunk{
		SectionID: section,
		ChunkID:   id,
		Content:   content,
		ChunkType: domain.ChunkParagraph,
	}
}

func TestDetectIdenticalInputsAreEmpty(t *testing.T) {
	chunks := []domain.Chunk{
		chunk("1", "1_0", "alpha"),
		chunk("2", "2_0", "beta"),
	}
	changes := New(nil).Detect(chunks, chunks)
	assert.Empty(t, changes)
}

func TestDetectAdded(t *testing.T) {
	old := []domain.Chunk{chunk("1", "1_0", "alpha")}
	niu := []domain.Chunk{
		chunk("1", "1_0", "alpha"),
		chunk("8", "8_0", "brand new requirement"),
	}

	changes := New(nil).Detect(old, niu)

	require.Len(t, changes, 1)
	assert.Equal(t, domain.Added, changes[0].ChangeType)
	assert.Equal(t, "8_0", changes[0].ChunkID)
	assert.Equal(t, "8", changes[0].SectionID)
	assert.Equal(t, "brand new requirement", changes[0].NewContent)
	assert.Equal(t, 1.0, changes[0].SimilarityScore)
}

func TestDetectRemoved(t *testing.T) {
	old := []domain.Chunk{
		chunk("1", "1_0", "alpha"),
		chunk("6", "6_0", "deprecated procedure"),
	}
	niu := []domain.Chunk{chunk("1", "1_0", "alpha")}

	changes := New(nil).Detect(old, niu)

	require.Len(t, changes, 1)
	assert.Equal(t, domain.Removed, changes[0].ChangeType)
	assert.Equal(t, "6_0", changes[0].ChunkID)
	assert.Equal(t, "deprecated procedure", changes[0].OldContent)
	assert.Equal(t, 0.0, changes[0].SimilarityScore)
	assert.Empty(t, changes[0].MovedTo)
}

func TestDetectModified(t *testing.T) {
	old := []domain.Chunk{chunk("5", "5_0", "The UE shall authenticate")}
	niu := []domain.Chunk{chunk("5", "5_1", "The UE shall mutually authenticate")}

	changes := New(nil).Detect(old, niu)

	require.Len(t, changes, 1)
	ch := changes[0]
	assert.Equal(t, domain.Modified, ch.ChangeType)
	assert.Equal(t, "5_0→5_1", ch.ChunkID)
	assert.Equal(t, "The UE shall authenticate", ch.OldContent)
	assert.Equal(t, "The UE shall mutually authenticate", ch.NewContent)
	assert.InDelta(t, 0.85, ch.SimilarityScore, 0.01)
}

func TestDetectMovedSuppressesInsert(t *testing.T) {
	// beta changes position within the section; the version map pairs the
	// deleted occurrence with the surviving one.
	old := []domain.Chunk{
		chunk("4", "4_0", "alpha"),
		chunk("4", "4_1", "beta"),
	}
	niu := []domain.Chunk{
		chunk("4", "4_0", "beta"),
		chunk("4", "4_1", "alpha"),
	}
	vm := domain.VersionMap{"4_0": "4_1", "4_1": "4_0"}

	changes := New(vm).Detect(old, niu)

	require.Len(t, changes, 1)
	ch := changes[0]
	assert.Equal(t, domain.Moved, ch.ChangeType)
	assert.Equal(t, "4_1", ch.ChunkID)
	assert.Equal(t, "4_0", ch.MovedTo)
	assert.Equal(t, 1.0, ch.SimilarityScore)
}

func TestDetectUnmappedReorderIsRemovePlusAdd(t *testing.T) {
	old := []domain.Chunk{
		chunk("4", "4_0", "alpha"),
		chunk("4", "4_1", "beta"),
	}
	niu := []domain.Chunk{
		chunk("4", "4_2", "beta"),
		chunk("4", "4_3", "alpha"),
	}

	changes := New(domain.VersionMap{"4_0": "", "4_1": ""}).Detect(old, niu)

	require.Len(t, changes, 2)
	types := []domain.ChangeType{changes[0].ChangeType, changes[1].ChangeType}
	assert.Contains(t, types, domain.Added)
	assert.Contains(t, types, domain.Removed)
}

func TestDetectUnevenReplaceTruncates(t *testing.T) {
	old := []domain.Chunk{
		chunk("3", "3_0", "first body"),
		chunk("3", "3_1", "second body"),
		chunk("3", "3_2", "third body"),
	}
	niu := []domain.Chunk{chunk("3", "3_9", "wholly rewritten section")}

	t.Run("default drops the unpaired excess", func(t *testing.T) {
		changes := New(nil).Detect(old, niu)
		require.Len(t, changes, 1)
		assert.Equal(t, domain.Modified, changes[0].ChangeType)
		assert.Equal(t, "3_0→3_9", changes[0].ChunkID)
	})

	t.Run("strict pairing emits the excess as removals", func(t *testing.T) {
		changes := New(nil, WithStrictPairing()).Detect(old, niu)
		require.Len(t, changes, 3)
		assert.Equal(t, domain.Modified, changes[0].ChangeType)
		assert.Equal(t, domain.Removed, changes[1].ChangeType)
		assert.Equal(t, "3_1", changes[1].ChunkID)
		assert.Equal(t, domain.Removed, changes[2].ChangeType)
		assert.Equal(t, "3_2", changes[2].ChunkID)
	})
}

func TestDetectSectionOrderIsLexicographic(t *testing.T) {
	old := []domain.Chunk{
		chunk("2", "2_0", "to be removed"),
		chunk("10", "10_0", "also removed"),
	}

	changes := New(nil).Detect(old, nil)

	require.Len(t, changes, 2)
	assert.Equal(t, "10", changes[0].SectionID)
	assert.Equal(t, "2", changes[1].SectionID)
}

func TestDetectDeterministic(t *testing.T) {
	old := []domain.Chunk{
		chunk("1", "1_0", "alpha"),
		chunk("2", "2_0", "beta"),
		chunk("3", "3_0", "gamma"),
	}
	niu := []domain.Chunk{
		chunk("1", "1_0", "alpha"),
		chunk("2", "2_1", "beta prime"),
		chunk("4", "4_0", "delta"),
	}

	d := New(domain.VersionMap{"3_0": ""})
	first := d.Detect(old, niu)
	second := d.Detect(old, niu)
	assert.Equal(t, first, second)
}

func TestDetectNilVersionMap(t *testing.T) {
	old := []domain.Chunk{chunk("1", "1_0", "alpha")}
	changes := New(nil).Detect(old, nil)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.Removed, changes[0].ChangeType)
}
