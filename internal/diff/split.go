// Package diff compares original and proposed book text at sentence granularity.
//
// The comparison is a set-membership test rather than an alignment: a sentence is marked
// changed when no sentence on the other side has the same tag-stripped text. Moved sentences
// therefore read as unchanged, while a split or merged sentence reads as removed plus added.
package diff

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/desertthunder/bookclean/internal/markup"
)

// Segment is one sentence-level slice of a text block, addressed by byte offsets.
type Segment struct {
	Text  string
	Start int
	End   int
}

// Key is the comparison form of the segment: tags removed and surrounding space trimmed.
func (s Segment) Key() string {
	return strings.TrimSpace(markup.Strip(s.Text))
}

// Split cuts text into consecutive segments that each end at a sentence boundary.
//
// A boundary follows '.', '!' or '?' (plus any closing quotes, brackets or closing tags)
// when the next character is whitespace. Leading whitespace belongs to the following segment,
// so the segments concatenate back to the input exactly.
func Split(text string) []Segment {
	var segments []Segment

	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		end := skipClosers(text, i)
		if end >= len(text) {
			break
		}
		next, _ := utf8.DecodeRuneInString(text[end:])
		if !unicode.IsSpace(next) {
			continue
		}

		segments = append(segments, Segment{Text: text[start:end], Start: start, End: end})
		start = end
		i = end
	}

	if start < len(text) {
		segments = append(segments, Segment{Text: text[start:], Start: start, End: len(text)})
	}
	return segments
}

// skipClosers advances past terminal punctuation, closing quotes, brackets and closing tags.
func skipClosers(text string, i int) int {
	for i < len(text) {
		rest := text[i:]
		r, size := utf8.DecodeRuneInString(rest)
		switch {
		case r == '.' || r == '!' || r == '?':
			i += size
		case r == '"' || r == '\'' || r == ')' || r == '”' || r == '’' || r == '»':
			i += size
		case r == '[' && strings.HasPrefix(rest, "[/"):
			end := strings.IndexByte(rest, ']')
			if end < 0 || markup.Strip(rest[:end+1]) != "" {
				return i
			}
			i += end + 1
		default:
			return i
		}
	}
	return i
}

// core returns the byte range of the segment without its surrounding whitespace.
func (s Segment) core() (int, int) {
	lead := len(s.Text) - len(strings.TrimLeftFunc(s.Text, unicode.IsSpace))
	trail := len(s.Text) - len(strings.TrimRightFunc(s.Text, unicode.IsSpace))
	if lead == len(s.Text) {
		return s.End, s.End
	}
	return s.Start + lead, s.End - trail
}
