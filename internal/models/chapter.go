package models

import (
	"fmt"
	"slices"
)

// Rating holds a chapter's content levels; nil fields mean the level is not known yet.
type Rating struct {
	Language *int `json:"language,omitempty"`
	Sexual   *int `json:"sexual,omitempty"`
	Violence *int `json:"violence,omitempty"`
}

// Rated reports whether any level is known.
func (r Rating) Rated() bool {
	return r.Language != nil || r.Sexual != nil || r.Violence != nil
}

func (r Rating) String() string {
	if !r.Rated() {
		return "unrated"
	}
	return fmt.Sprintf("language %s · sexual %s · violence %s", level(r.Language), level(r.Sexual), level(r.Violence))
}

func level(v *int) string {
	if v == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *v)
}

// Chapter is an ordered container of changes. A chapter with no changes is valid.
type Chapter struct {
	Index   int      `json:"index"`
	Title   string   `json:"title,omitempty"`
	Rating  Rating   `json:"rating"`
	Changes []Change `json:"changes"`
}

// Name returns the chapter title, or a numbered label when the title is empty.
func (c Chapter) Name() string {
	if c.Title != "" {
		return c.Title
	}
	return fmt.Sprintf("Chapter %d", c.Index+1)
}

// GroupChapters merges chapter metadata with a flat change list into chapters sorted by index.
//
// Changes are bucketed by ChapterIndex, or by the id's chapter when ChapterIndex is zero.
// Chapters referenced only by changes are created without a rating.
func GroupChapters(chapters []Chapter, flat []Change) []Chapter {
	byIndex := make(map[int]*Chapter, len(chapters))
	order := make([]int, 0, len(chapters))

	get := func(idx int) *Chapter {
		if ch, ok := byIndex[idx]; ok {
			return ch
		}
		ch := &Chapter{Index: idx}
		byIndex[idx] = ch
		order = append(order, idx)
		return ch
	}

	for _, ch := range chapters {
		dst := get(ch.Index)
		if ch.Title != "" {
			dst.Title = ch.Title
		}
		if ch.Rating.Rated() {
			dst.Rating = ch.Rating
		}
		dst.Changes = append(dst.Changes, ch.Changes...)
	}

	for _, c := range flat {
		idx := c.ChapterIndex
		if idx == 0 && !c.ID.Legacy() && c.ID.Chapter > 0 {
			idx = c.ID.Chapter
		}
		dst := get(idx)
		if dst.Title == "" && c.ChapterTitle != "" {
			dst.Title = c.ChapterTitle
		}
		dst.Changes = append(dst.Changes, c)
	}

	slices.Sort(order)
	out := make([]Chapter, 0, len(order))
	for _, idx := range order {
		out = append(out, *byIndex[idx])
	}
	return out
}
