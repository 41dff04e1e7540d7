// Package markup parses the inline formatting tags used in book text into styled runs.
//
// Supported tags are [b], [i], [h1] and [h2] with matching closers, case-insensitive.
// Each tag type tracks its own on/off state; tags are never treated as nested.
// Malformed input is tolerated: a stray closer turns its style off and never fails.
package markup

import (
	"strings"
)

// Style is the tag-derived presentation of a run.
type Style struct {
	Bold    bool
	Italic  bool
	Heading int // 0, 1 or 2
}

// Strong reports whether the run renders bold, which headings imply.
func (s Style) Strong() bool {
	return s.Bold || s.Heading > 0
}

// Run is a contiguous substring of the input sharing one style.
//
// Start and End are byte offsets into the original tagged text, so callers can map
// runs back onto ranges computed over the source.
type Run struct {
	Text  string
	Style Style
	Start int
	End   int
}

type tag struct {
	name    string
	closing bool
}

var known = map[string]bool{"b": true, "i": true, "h1": true, "h2": true}

// parseTag recognizes a tag at the start of s and returns it with its byte length.
func parseTag(s string) (tag, int, bool) {
	if len(s) < 3 || s[0] != '[' {
		return tag{}, 0, false
	}
	end := strings.IndexByte(s, ']')
	if end < 0 || end > 4 {
		return tag{}, 0, false
	}

	body := strings.ToLower(s[1:end])
	t := tag{}
	if strings.HasPrefix(body, "/") {
		t.closing = true
		body = body[1:]
	}
	if !known[body] {
		return tag{}, 0, false
	}
	t.name = body
	return t, end + 1, true
}

// state tracks each tag type independently; the run style is derived from it.
type state struct {
	bold, italic bool
	h1, h2       bool
	lastHeading  int
}

func (st *state) apply(t tag) {
	open := !t.closing
	switch t.name {
	case "b":
		st.bold = open
	case "i":
		st.italic = open
	case "h1":
		st.h1 = open
		if open {
			st.lastHeading = 1
		}
	case "h2":
		st.h2 = open
		if open {
			st.lastHeading = 2
		}
	}
}

// style picks the most recently opened heading that is still open.
func (st state) style() Style {
	s := Style{Bold: st.bold, Italic: st.italic}
	switch {
	case st.h1 && st.h2:
		s.Heading = st.lastHeading
	case st.h1:
		s.Heading = 1
	case st.h2:
		s.Heading = 2
	}
	return s
}

// Tokenize splits text into styled runs with every recognized tag removed.
//
// The runs, concatenated, equal [Strip] of the input. Text without tags yields exactly
// one default-styled run, including for empty input.
func Tokenize(text string) []Run {
	var (
		runs  []Run
		st    state
		buf   strings.Builder
		start int
	)

	flush := func(end int) {
		if buf.Len() > 0 {
			runs = append(runs, Run{Text: buf.String(), Style: st.style(), Start: start, End: end})
			buf.Reset()
		}
	}

	sawTag := false
	for i := 0; i < len(text); {
		if text[i] == '[' {
			if t, n, ok := parseTag(text[i:]); ok {
				sawTag = true
				flush(i)
				st.apply(t)
				i += n
				start = i
				continue
			}
		}
		if buf.Len() == 0 {
			start = i
		}
		buf.WriteByte(text[i])
		i++
	}
	flush(len(text))

	if !sawTag && len(runs) == 0 {
		return []Run{{Text: text, End: len(text)}}
	}
	return runs
}

// Strip removes recognized tags, keeping everything else byte for byte.
func Strip(text string) string {
	var b strings.Builder
	for _, r := range Tokenize(text) {
		b.WriteString(r.Text)
	}
	return b.String()
}
