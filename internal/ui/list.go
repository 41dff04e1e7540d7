package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/review"
)

var _ list.Item = chapterItem{}

// chapterItem wraps [models.Chapter] and its tally to implement [list.Item].
type chapterItem struct {
	chapter models.Chapter
	counts  review.Counts
}

func (i chapterItem) FilterValue() string { return i.chapter.Name() }
func (i chapterItem) Title() string { return i.chapter.Name() }
func (i chapterItem) Description() string {
	desc := fmt.Sprintf("%d pending of %d", i.counts.Pending, i.counts.Total)
	if i.chapter.Rating.Rated() {
		desc = fmt.Sprintf("%s • %s", desc, i.chapter.Rating)
	}
	return desc
}

func chapterItems(chapters []models.Chapter) []list.Item {
	items := make([]list.Item, len(chapters))
	for i, ch := range chapters {
		items[i] = chapterItem{chapter: ch, counts: review.Tally(ch.Changes)}
	}
	return items
}
