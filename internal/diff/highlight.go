package diff

import (
	"github.com/desertthunder/bookclean/internal/markup"
)

// Mark is the diff classification of a span.
type Mark int

const (
	Unchanged Mark = iota
	Removed
	Added
)

func (m Mark) String() string {
	switch m {
	case Removed:
		return "removed"
	case Added:
		return "added"
	default:
		return "unchanged"
	}
}

// Span is a styled run with its diff mark, ready for rendering.
type Span struct {
	Text  string
	Style markup.Style
	Mark  Mark
}

// Result holds the rendered spans for both sides of a change.
type Result struct {
	Original []Span
	Proposed []Span
}

// Changed reports whether any span on either side is marked.
func (r Result) Changed() bool {
	for _, side := range [][]Span{r.Original, r.Proposed} {
		for _, s := range side {
			if s.Mark != Unchanged {
				return true
			}
		}
	}
	return false
}

type byteRange struct{ start, end int }

// Highlight renders original and proposed text with sentences missing from the other side marked.
//
// Identical inputs produce only tag styling. Sentences whose stripped text is empty are never marked.
func Highlight(original, proposed string) Result {
	if original == proposed {
		return Result{
			Original: decorate(original, nil, Unchanged),
			Proposed: decorate(proposed, nil, Unchanged),
		}
	}

	origSegs, propSegs := Split(original), Split(proposed)
	origKeys, propKeys := keySet(origSegs), keySet(propSegs)

	return Result{
		Original: decorate(original, missing(origSegs, propKeys), Removed),
		Proposed: decorate(proposed, missing(propSegs, origKeys), Added),
	}
}

func keySet(segments []Segment) map[string]struct{} {
	keys := make(map[string]struct{}, len(segments))
	for _, s := range segments {
		if k := s.Key(); k != "" {
			keys[k] = struct{}{}
		}
	}
	return keys
}

// missing returns the core ranges of segments whose key is absent from other.
func missing(segments []Segment, other map[string]struct{}) []byteRange {
	var ranges []byteRange
	for _, s := range segments {
		k := s.Key()
		if k == "" {
			continue
		}
		if _, ok := other[k]; ok {
			continue
		}
		start, end := s.core()
		if start < end {
			ranges = append(ranges, byteRange{start, end})
		}
	}
	return ranges
}

// decorate tokenizes text and splits runs at range boundaries, marking the runs inside a range.
func decorate(text string, ranges []byteRange, mark Mark) []Span {
	runs := markup.Tokenize(text)
	spans := make([]Span, 0, len(runs)+2*len(ranges))

	ri := 0
	for _, run := range runs {
		pos := run.Start
		for pos < run.End {
			for ri < len(ranges) && ranges[ri].end <= pos {
				ri++
			}

			cut, m := run.End, Unchanged
			if ri < len(ranges) {
				rg := ranges[ri]
				if rg.start <= pos {
					cut, m = min(run.End, rg.end), mark
				} else {
					cut = min(run.End, rg.start)
				}
			}

			spans = append(spans, Span{
				Text:  run.Text[pos-run.Start : cut-run.Start],
				Style: run.Style,
				Mark:  m,
			})
			pos = cut
		}
	}

	if len(spans) == 0 {
		return []Span{{Text: ""}}
	}
	return spans
}
