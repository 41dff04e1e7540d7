// Package review holds the canonical change collection for a book and the cursor used to walk
// its pending changes.
//
// Neither type is safe for concurrent use; the owning session serializes access.
package review

import (
	"fmt"
	"slices"

	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/shared"
)

// Counts aggregates changes by status.
type Counts struct {
	Total    int
	Pending  int
	Accepted int
	Rejected int
}

func (c Counts) Reviewed() int {
	return c.Accepted + c.Rejected
}

// Tally counts a slice of changes by status.
func Tally(changes []models.Change) Counts {
	var c Counts
	for _, ch := range changes {
		c.add(ch.Status)
	}
	return c
}

func (c *Counts) add(s models.ChangeStatus) {
	c.Total++
	switch s {
	case models.StatusAccepted:
		c.Accepted++
	case models.StatusRejected:
		c.Rejected++
	default:
		c.Pending++
	}
}

// ChangeSet owns every change of a document in chapter-major, sequence-minor order.
//
// Chapter metadata is kept separately; per-chapter groupings are derived by filtering.
type ChangeSet struct {
	changes  []*models.Change
	chapters map[int]models.Chapter
	warnings []error
	sorted   bool
}

// New returns an empty change set.
func New() *ChangeSet {
	return &ChangeSet{chapters: make(map[int]models.Chapter), sorted: true}
}

// Load builds a change set from chapters.
//
// Each change's chapter is taken from its owning chapter. Malformed ids keep their extracted
// sequence when it is free and otherwise take the next free sequence in the chapter, as does a
// well-formed id whose key is already taken by a different backend id. Only a repeated backend id
// is dropped. Malformed ids and drops are reported through [ChangeSet.Warnings], never as failures.
func Load(chapters []models.Chapter) *ChangeSet {
	cs := New()
	for _, ch := range chapters {
		meta := ch
		meta.Changes = nil
		cs.chapters[ch.Index] = meta

		var malformed []models.Change
		for _, c := range ch.Changes {
			c.ChapterIndex = ch.Index
			c.ID.Chapter = ch.Index
			if c.ChapterTitle == "" {
				c.ChapterTitle = ch.Title
			}
			if err := c.ID.Validate(); err != nil {
				cs.warnings = append(cs.warnings, err)
				malformed = append(malformed, c)
				continue
			}
			cs.place(c)
		}
		// Well-formed ids claim their keys before any fallback is numbered.
		for _, c := range malformed {
			if c.ID.Sequence == 0 {
				c.ID.Sequence = cs.nextSequence(ch.Index)
			}
			cs.place(c)
		}
	}
	return cs
}

func (cs *ChangeSet) place(c models.Change) {
	for _, existing := range cs.changes {
		if existing.ID.Chapter == c.ID.Chapter && existing.ID.Raw() == c.ID.Raw() {
			cs.warnings = append(cs.warnings, fmt.Errorf("%w: duplicate change %s dropped", shared.ErrInvalidInput, c.ID.Raw()))
			return
		}
	}
	if cs.find(c.ID) != nil {
		c.ID.Sequence = cs.nextSequence(c.ID.Chapter)
	}
	if err := cs.Add(c); err != nil {
		cs.warnings = append(cs.warnings, err)
	}
}

func (cs *ChangeSet) nextSequence(chapter int) int {
	next := 1
	for _, c := range cs.changes {
		if c.ID.Chapter == chapter && c.ID.Sequence >= next {
			next = c.ID.Sequence + 1
		}
	}
	return next
}

// FromSession groups the session's chapters and flat changes and loads them.
func FromSession(s models.Session) *ChangeSet {
	return Load(models.GroupChapters(s.Chapters, s.Changes))
}

// Add inserts a change, rejecting a duplicate (chapter, sequence) key.
//
// A change without a chapter index takes it from a composite id.
func (cs *ChangeSet) Add(c models.Change) error {
	if c.ChapterIndex == 0 && !c.ID.Legacy() {
		c.ChapterIndex = c.ID.Chapter
	}
	c.ID.Chapter = c.ChapterIndex
	for _, existing := range cs.changes {
		if existing.ID.Same(c.ID) {
			return fmt.Errorf("%w: duplicate change %s dropped", shared.ErrInvalidInput, c.ID)
		}
	}
	if c.Suggested == "" {
		c.Suggested = c.Proposed
	}
	if _, ok := cs.chapters[c.ChapterIndex]; !ok {
		cs.chapters[c.ChapterIndex] = models.Chapter{Index: c.ChapterIndex, Title: c.ChapterTitle}
	}

	cs.changes = append(cs.changes, &c)
	cs.sorted = false
	return nil
}

// Warnings lists recoverable problems found while loading.
func (cs *ChangeSet) Warnings() []error {
	return cs.warnings
}

func (cs *ChangeSet) ensureSorted() {
	if cs.sorted {
		return
	}
	slices.SortStableFunc(cs.changes, func(a, b *models.Change) int {
		return a.ID.Compare(b.ID)
	})
	cs.sorted = true
}

// Len is the total number of changes.
func (cs *ChangeSet) Len() int {
	return len(cs.changes)
}

// All returns copies of every change in canonical order.
func (cs *ChangeSet) All() []models.Change {
	cs.ensureSorted()
	out := make([]models.Change, len(cs.changes))
	for i, c := range cs.changes {
		out[i] = *c
	}
	return out
}

// Pending returns the pending changes in canonical order, reflecting every mutation so far.
func (cs *ChangeSet) Pending() []models.Change {
	cs.ensureSorted()
	var out []models.Change
	for _, c := range cs.changes {
		if c.Status == models.StatusPending {
			out = append(out, *c)
		}
	}
	return out
}

// Counts aggregates every change by status.
func (cs *ChangeSet) Counts() Counts {
	var counts Counts
	for _, c := range cs.changes {
		counts.add(c.Status)
	}
	return counts
}

func (cs *ChangeSet) find(id models.ChangeID) *models.Change {
	for _, c := range cs.changes {
		if c.ID.Same(id) {
			return c
		}
	}
	return nil
}

// Lookup resolves a user-supplied reference: the backend's raw id first, then the parsed key.
func (cs *ChangeSet) Lookup(ref string) (models.Change, bool) {
	cs.ensureSorted()
	for _, c := range cs.changes {
		if c.ID.Raw() == ref {
			return *c, true
		}
	}

	id, err := models.ParseChangeID(ref)
	if err != nil {
		return models.Change{}, false
	}
	if c := cs.find(id); c != nil {
		return *c, true
	}
	return models.Change{}, false
}

// SetStatus updates a change in place. Setting the status it already has is a no-op.
func (cs *ChangeSet) SetStatus(id models.ChangeID, status models.ChangeStatus) error {
	c := cs.find(id)
	if c == nil {
		return fmt.Errorf("%w: %s", shared.ErrChangeNotFound, id)
	}
	c.Status = status
	return nil
}

// SetProposed replaces the editable proposed text of a change.
func (cs *ChangeSet) SetProposed(id models.ChangeID, text string) error {
	c := cs.find(id)
	if c == nil {
		return fmt.Errorf("%w: %s", shared.ErrChangeNotFound, id)
	}
	c.Proposed = text
	return nil
}

// AcceptAll accepts every pending change and returns the ids it touched.
func (cs *ChangeSet) AcceptAll() []models.ChangeID {
	cs.ensureSorted()
	var touched []models.ChangeID
	for _, c := range cs.changes {
		if c.Status == models.StatusPending {
			c.Status = models.StatusAccepted
			touched = append(touched, c.ID)
		}
	}
	return touched
}

// Chapters returns chapter metadata in index order, each with its changes attached.
func (cs *ChangeSet) Chapters() []models.Chapter {
	indexes := cs.ChapterIndexes()
	out := make([]models.Chapter, 0, len(indexes))
	for _, idx := range indexes {
		ch := cs.chapters[idx]
		ch.Changes = cs.ChapterChanges(idx)
		out = append(out, ch)
	}
	return out
}

// ChapterIndexes lists known chapter indexes in ascending order.
func (cs *ChangeSet) ChapterIndexes() []int {
	indexes := make([]int, 0, len(cs.chapters))
	for idx := range cs.chapters {
		indexes = append(indexes, idx)
	}
	slices.Sort(indexes)
	return indexes
}

// Chapter returns the metadata for one chapter.
func (cs *ChangeSet) Chapter(index int) (models.Chapter, bool) {
	ch, ok := cs.chapters[index]
	return ch, ok
}

// ChapterChanges filters the canonical order to one chapter.
func (cs *ChangeSet) ChapterChanges(index int) []models.Change {
	cs.ensureSorted()
	var out []models.Change
	for _, c := range cs.changes {
		if c.ChapterIndex == index {
			out = append(out, *c)
		}
	}
	return out
}

// ChapterCounts aggregates one chapter's changes by status.
func (cs *ChangeSet) ChapterCounts(index int) Counts {
	var counts Counts
	for _, c := range cs.changes {
		if c.ChapterIndex == index {
			counts.add(c.Status)
		}
	}
	return counts
}
