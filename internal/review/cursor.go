package review

import (
	"fmt"

	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/shared"
)

// Cursor walks the pending view of a [ChangeSet].
//
// The index always addresses a valid pending change unless nothing is pending, in which case every
// mutating operation leaves the set untouched and returns [shared.ErrChangeNotFound]. Landing on a change selects its chapter.
type Cursor struct {
	set          *ChangeSet
	index        int
	chapter      int
	emptyChapter bool
}

// NewCursor positions a cursor on the first pending change.
func NewCursor(set *ChangeSet) *Cursor {
	c := &Cursor{set: set}
	c.Resync()
	return c
}

// Set returns the change set the cursor walks.
func (c *Cursor) Set() *ChangeSet {
	return c.set
}

func (c *Cursor) Index() int { return c.index }
func (c *Cursor) SelectedChapter() int { return c.chapter }
func (c *Cursor) ViewingEmptyChapter() bool { return c.emptyChapter }

// Len is the current size of the pending view.
func (c *Cursor) Len() int {
	return len(c.set.Pending())
}

// errNoCurrent is returned by the mutating operations when [Cursor.Current] has nothing.
var errNoCurrent = fmt.Errorf("%w: no pending change under the cursor", shared.ErrChangeNotFound)

// Current returns the pending change under the cursor.
//
// It reports false when nothing is pending or an empty chapter is being viewed.
func (c *Cursor) Current() (models.Change, bool) {
	if c.emptyChapter {
		return models.Change{}, false
	}
	pending := c.set.Pending()
	if len(pending) == 0 {
		return models.Change{}, false
	}
	return pending[c.index], true
}

// AcceptCurrent stores editedText as the proposed text, accepts the change and returns it.
func (c *Cursor) AcceptCurrent(editedText string) (models.Change, error) {
	cur, ok := c.Current()
	if !ok {
		return models.Change{}, errNoCurrent
	}

	if err := c.set.SetProposed(cur.ID, editedText); err != nil {
		return models.Change{}, err
	}
	if err := c.set.SetStatus(cur.ID, models.StatusAccepted); err != nil {
		return models.Change{}, err
	}
	c.Resync()

	cur.Proposed = editedText
	cur.Status = models.StatusAccepted
	return cur, nil
}

// RejectCurrent rejects the change under the cursor and returns it.
func (c *Cursor) RejectCurrent() (models.Change, error) {
	cur, ok := c.Current()
	if !ok {
		return models.Change{}, errNoCurrent
	}

	if err := c.set.SetStatus(cur.ID, models.StatusRejected); err != nil {
		return models.Change{}, err
	}
	c.Resync()

	cur.Status = models.StatusRejected
	return cur, nil
}

// Skip moves to the next pending change, wrapping to the first.
func (c *Cursor) Skip() {
	n := c.Len()
	if n == 0 {
		return
	}
	if c.emptyChapter {
		c.emptyChapter = false
	} else {
		c.index = (c.index + 1) % n
	}
	c.sync()
}

// Previous moves to the previous pending change, wrapping to the last.
func (c *Cursor) Previous() {
	n := c.Len()
	if n == 0 {
		return
	}
	if c.emptyChapter {
		c.emptyChapter = false
	} else {
		c.index = (c.index - 1 + n) % n
	}
	c.sync()
}

// SelectChapter jumps to the first pending change in the chapter.
//
// A chapter with nothing pending is shown as an empty chapter instead, with the index untouched.
func (c *Cursor) SelectChapter(index int) {
	for i, p := range c.set.Pending() {
		if p.ChapterIndex == index {
			c.index = i
			c.emptyChapter = false
			c.sync()
			return
		}
	}
	c.chapter = index
	c.emptyChapter = true
}

// ResetCurrent restores the backend's suggestion as the proposed text and returns it.
func (c *Cursor) ResetCurrent() (string, error) {
	cur, ok := c.Current()
	if !ok {
		return "", errNoCurrent
	}
	if err := c.set.SetProposed(cur.ID, cur.Suggested); err != nil {
		return "", err
	}
	return cur.Suggested, nil
}

// Resync clamps the index into the pending view and reselects the current chapter.
func (c *Cursor) Resync() {
	n := c.Len()
	if c.index >= n {
		c.index = n - 1
	}
	if c.index < 0 {
		c.index = 0
	}
	if n > 0 && !c.emptyChapter {
		c.sync()
	}
}

func (c *Cursor) sync() {
	if cur, ok := c.Current(); ok {
		c.chapter = cur.ChapterIndex
	}
}
