package service

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specdiff/internal/config"
	"specdiff/internal/domain"
	"specdiff/internal/labeler"
	"specdiff/internal/vectorstore/file"
)

// stubEmbedder maps texts to canned vectors so clustering and retrieval
// behave predictably.
type stubEmbedder struct {
	vectors map[string][]float64
}

func (s *stubEmbedder) Name() string                 { return "stub" }
func (s *stubEmbedder) Prepare(texts []string) error { return nil }
func (s *stubEmbedder) Dimension() int               { return 2 }
func (s *stubEmbedder) Embed(text string) ([]float64, error) {
	v, ok := s.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}
func (s *stubEmbedder) EmbedBatch(texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := s.Embed(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func testEmbedder() *stubEmbedder {
	return &stubEmbedder{vectors: map[string][]float64{
		"legacy procedure": {0.0, 0.0},
		"brand new rule":   {3.0, 3.0},
		"legacy":           {0.1, 0.0},
		"new rule":         {3.0, 2.9},
	}}
}

func writeChunks(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testFixture(t *testing.T) (*config.AppConfig, string, string) {
	t.Helper()
	dir := t.TempDir()
	oldPath := writeChunks(t, dir, "old.json", `[
		{"section_id":"1","chunk_id":"1_0","content":"intro text","position":0},
		{"section_id":"2","chunk_id":"2_0","content":"legacy procedure","position":1}
	]`)
	newPath := writeChunks(t, dir, "new.json", `[
		{"section_id":"1","chunk_id":"1_0","content":"intro text","position":0},
		{"section_id":"3","chunk_id":"3_0","content":"brand new rule","position":1}
	]`)
	cfg := &config.AppConfig{
		DataDir: filepath.Join(dir, "data"),
		Mapping: config.MappingConfig{TitleWeight: 0, ContentWeight: 1, Threshold: 0.6},
		Cluster: config.ClusterConfig{MinClusterSize: 1, Epsilon: 0.5},
	}
	return cfg, oldPath, newPath
}

func newTestPipeline(t *testing.T, cfg *config.AppConfig) *Pipeline {
	t.Helper()
	index, err := file.Open(filepath.Join(cfg.DataDir, "index"))
	require.NoError(t, err)
	return New(cfg, testEmbedder(), labeler.NewKeyword(), index)
}

func TestPipelineEndToEnd(t *testing.T) {
	cfg, oldPath, newPath := testFixture(t)
	p := newTestPipeline(t, cfg)

	summary, err := p.Detect(oldPath, newPath)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.MapEntries)
	assert.Equal(t, 2, summary.Changes)

	for _, name := range []string{VersionMapFile, ChangesFile, VersionsFile} {
		_, err := os.Stat(filepath.Join(cfg.DataDir, name))
		assert.NoError(t, err, name)
	}

	n, err := p.Cluster()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, name := range []string{EventsFile, EmbeddingsFile} {
		_, err := os.Stat(filepath.Join(cfg.DataDir, name))
		assert.NoError(t, err, name)
	}

	require.NoError(t, p.BuildIndexes())

	hits, err := p.QueryChanges("legacy", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "2_0", hits[0].Meta.ChunkID)
	assert.Equal(t, string(domain.Removed), hits[0].Meta.ChangeType)

	events, err := p.QueryEvents("new rule", 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "brand new rule", events[0].Event.Label)
	assert.Equal(t, []string{"added:3_0"}, events[0].Event.Members)

	assert.Equal(t, map[string]string{"old": "old", "new": "new"}, p.Versions())
}

func TestPipelineQueryAfterRestart(t *testing.T) {
	cfg, oldPath, newPath := testFixture(t)
	p := newTestPipeline(t, cfg)

	_, err := p.Detect(oldPath, newPath)
	require.NoError(t, err)
	_, err = p.Cluster()
	require.NoError(t, err)
	require.NoError(t, p.BuildIndexes())

	// a fresh pipeline must serve queries from the persisted artifacts
	restarted := newTestPipeline(t, cfg)
	hits, err := restarted.QueryChanges("legacy", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "2_0", hits[0].Meta.ChunkID)
}

func TestPipelineBuildIndexesRejectsUnknownMembers(t *testing.T) {
	cfg, oldPath, newPath := testFixture(t)
	p := newTestPipeline(t, cfg)

	_, err := p.Detect(oldPath, newPath)
	require.NoError(t, err)
	_, err = p.Cluster()
	require.NoError(t, err)

	// a member key pointing at no change in changes.json means the event
	// list is stale relative to the change list
	events := `[{"event_id":0,"label":"stale","members":["added:zzz"]}]`
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, EventsFile), []byte(events), 0o644))

	assert.Error(t, p.BuildIndexes())
}

func TestPipelineEmptyChangeList(t *testing.T) {
	cfg, oldPath, _ := testFixture(t)
	p := newTestPipeline(t, cfg)

	summary, err := p.Detect(oldPath, oldPath)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Changes)

	n, err := p.Cluster()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, p.BuildIndexes())
}

func TestPipelineWriteSectionDiff(t *testing.T) {
	cfg, oldPath, newPath := testFixture(t)
	p := newTestPipeline(t, cfg)

	path, err := p.WriteSectionDiff(oldPath, newPath, "2")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.DataDir, DiffsDir, "diff_2.html"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "legacy procedure")
}
