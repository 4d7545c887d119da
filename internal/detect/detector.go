// Package detect classifies the differences between two chunk lists into
// added/removed/modified/moved change records.
package detect

import (
	"sort"

	"specdiff/internal/domain"
	"specdiff/internal/textdiff"
)

// Detector turns two chunk lists plus a version map into an ordered change
// list. The version map distinguishes moved chunks from plain removals.
type Detector struct {
	versionMap domain.VersionMap
	strict     bool
}

// Option configures a Detector.
type Option func(*Detector)

// WithStrictPairing also emits REMOVED/ADDED records for the unpaired
// excess of uneven replace runs. The default preserves the positional
// truncation of the original design: the excess produces no records.
func WithStrictPairing() Option {
	return func(d *Detector) { d.strict = true }
}

// New creates a Detector over the given version map.
func New(vm domain.VersionMap, opts ...Option) *Detector {
	d := &Detector{versionMap: vm}
	if d.versionMap == nil {
		d.versionMap = domain.VersionMap{}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect produces the classified change list. Sections are visited in
// lexicographic order over the union of both revisions' section ids, and
// records within a section follow the edit-script order; both orderings
// are part of the contract. Identical inputs always yield identical
// output.
func (d *Detector) Detect(oldChunks, newChunks []domain.Chunk) []domain.Change {
	oldBySection := groupBySection(oldChunks)
	newBySection := groupBySection(newChunks)
	sections := sortedSectionUnion(oldBySection, newBySection)
	mappedTargets := d.versionMap.MappedTargets()

	var changes []domain.Change
	for _, sec := range sections {
		olds := oldBySection[sec]
		news := newBySection[sec]

		oldContents := make([]string, len(olds))
		for i, c := range olds {
			oldContents[i] = c.Content
		}
		newContents := make([]string, len(news))
		for j, c := range news {
			newContents[j] = c.Content
		}

		for _, op := range textdiff.Opcodes(oldContents, newContents) {
			switch op.Tag {
			case 'e':
				// unchanged
			case 'd':
				for i := op.I1; i < op.I2; i++ {
					changes = append(changes, d.classifyDeleted(sec, olds[i]))
				}
			case 'i':
				for j := op.J1; j < op.J2; j++ {
					if ch, ok := d.classifyInserted(sec, news[j], mappedTargets); ok {
						changes = append(changes, ch)
					}
				}
			case 'r':
				span := op.I2 - op.I1
				if op.J2-op.J1 < span {
					span = op.J2 - op.J1
				}
				for k := 0; k < span; k++ {
					oldC := olds[op.I1+k]
					newC := news[op.J1+k]
					changes = append(changes, domain.Change{
						SectionID:       sec,
						ChunkID:         oldC.ChunkID + "→" + newC.ChunkID,
						ChangeType:      domain.Modified,
						OldContent:      oldC.Content,
						NewContent:      newC.Content,
						SimilarityScore: textdiff.Ratio(oldC.Content, newC.Content),
					})
				}
				if d.strict {
					for i := op.I1 + span; i < op.I2; i++ {
						changes = append(changes, d.classifyDeleted(sec, olds[i]))
					}
					for j := op.J1 + span; j < op.J2; j++ {
						if ch, ok := d.classifyInserted(sec, news[j], mappedTargets); ok {
							changes = append(changes, ch)
						}
					}
				}
			}
		}
	}
	return changes
}

// classifyDeleted emits MOVED for old chunks the version map aligned to a
// surviving new chunk, REMOVED otherwise.
func (d *Detector) classifyDeleted(sec string, c domain.Chunk) domain.Change {
	if target, ok := d.versionMap.Target(c.ChunkID); ok {
		return domain.Change{
			SectionID:       sec,
			ChunkID:         c.ChunkID,
			ChangeType:      domain.Moved,
			OldContent:      c.Content,
			SimilarityScore: 1.0,
			MovedTo:         target,
		}
	}
	return domain.Change{
		SectionID:  sec,
		ChunkID:    c.ChunkID,
		ChangeType: domain.Removed,
		OldContent: c.Content,
	}
}

// classifyInserted emits ADDED unless the new chunk is already accounted
// for as the target of a MOVED record, in which case it is skipped.
func (d *Detector) classifyInserted(sec string, c domain.Chunk, mappedTargets map[string]struct{}) (domain.Change, bool) {
	if _, ok := mappedTargets[c.ChunkID]; ok {
		return domain.Change{}, false
	}
	return domain.Change{
		SectionID:       sec,
		ChunkID:         c.ChunkID,
		ChangeType:      domain.Added,
		NewContent:      c.Content,
		SimilarityScore: 1.0,
	}, true
}

func groupBySection(chunks []domain.Chunk) map[string][]domain.Chunk {
	bySection := make(map[string][]domain.Chunk)
	for _, c := range chunks {
		bySection[c.SectionID] = append(bySection[c.SectionID], c)
	}
	return bySection
}

func sortedSectionUnion(a, b map[string][]domain.Chunk) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var sections []string
	for sec := range a {
		if _, ok := seen[sec]; !ok {
			seen[sec] = struct{}{}
			sections = append(sections, sec)
		}
	}
	for sec := range b {
		if _, ok := seen[sec]; !ok {
			seen[sec] = struct{}{}
			sections = append(sections, sec)
		}
	}
	sort.Strings(sections)
	return sections
}
