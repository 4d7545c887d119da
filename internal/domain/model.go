package domain

import "encoding/json"

// ChunkType distinguishes heading chunks from body paragraphs.
type ChunkType string

const (
	ChunkHeading   ChunkType = "heading"
	ChunkParagraph ChunkType = "paragraph"
)

// Chunk is the smallest addressable unit of document content, produced by
// the external parser. ChunkID is unique within one document revision;
// SectionID is the dotted hierarchical path shared by every chunk of a
// section.
type Chunk struct {
	SectionID string    `json:"section_id"`
	ChunkID   string    `json:"chunk_id"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	ChunkType ChunkType `json:"chunk_type"`
	Position  int       `json:"position"`
}

// ChangeType classifies one detected difference between revisions.
type ChangeType string

const (
	Added    ChangeType = "added"
	Removed  ChangeType = "removed"
	Modified ChangeType = "modified"
	Moved    ChangeType = "moved"
)

// Change is one classified difference between an old-revision chunk and a
// new-revision chunk (or its absence). For modifications ChunkID is the
// composite "old→new" id. MovedTo is set only for moved chunks.
type Change struct {
	SectionID       string     `json:"section_id"`
	ChunkID         string     `json:"chunk_id"`
	ChangeType      ChangeType `json:"change_type"`
	OldContent      string     `json:"old_content"`
	NewContent      string     `json:"new_content"`
	SimilarityScore float64    `json:"similarity_score"`
	MovedTo         string     `json:"moved_to,omitempty"`
}

// Key returns a stable identifier for the change, unique within one
// detection run. Event membership is keyed on it rather than on positional
// indices so a regenerated change list cannot silently corrupt events.
func (c Change) Key() string {
	return string(c.ChangeType) + ":" + c.ChunkID
}

// Text returns the content used for embedding and retrieval: the new
// content when present, otherwise the old.
func (c Change) Text() string {
	if c.NewContent != "" {
		return c.NewContent
	}
	return c.OldContent
}

// VersionMap is the best-effort alignment from old chunk ids to new chunk
// ids. An entry with an empty target means the old chunk matched nothing.
type VersionMap map[string]string

// Target reports the mapped new chunk id for an old chunk id, if any.
func (m VersionMap) Target(oldID string) (string, bool) {
	t, ok := m[oldID]
	if !ok || t == "" {
		return "", false
	}
	return t, true
}

// MappedTargets returns the set of new chunk ids that some old chunk maps
// to.
func (m VersionMap) MappedTargets() map[string]struct{} {
	targets := make(map[string]struct{}, len(m))
	for _, t := range m {
		if t != "" {
			targets[t] = struct{}{}
		}
	}
	return targets
}

// MarshalJSON serializes unmatched entries as null, matching the
// version_map.json artifact format.
func (m VersionMap) MarshalJSON() ([]byte, error) {
	out := make(map[string]*string, len(m))
	for k, v := range m {
		if v == "" {
			out[k] = nil
		} else {
			t := v
			out[k] = &t
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts null targets as unmatched entries.
func (m *VersionMap) UnmarshalJSON(data []byte) error {
	var raw map[string]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	vm := make(VersionMap, len(raw))
	for k, v := range raw {
		if v == nil {
			vm[k] = ""
		} else {
			vm[k] = *v
		}
	}
	*m = vm
	return nil
}

// Event is a thematic cluster of changes. EventID is dense (0..N-1) and
// only valid for the change list the clustering run consumed; Members
// holds the stable change keys of the cluster, in original change order.
type Event struct {
	EventID int      `json:"event_id"`
	Label   string   `json:"label"`
	Members []string `json:"members"`
}
