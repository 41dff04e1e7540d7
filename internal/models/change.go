package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/desertthunder/bookclean/internal/shared"
)

// ChangeStatus is the review state of a [Change].
type ChangeStatus int

const (
	StatusPending ChangeStatus = iota
	StatusAccepted
	StatusRejected
)

func (s ChangeStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	default:
		return ""
	}
}

// ParseChangeStatus converts a wire status into a [ChangeStatus].
func ParseChangeStatus(s string) (ChangeStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pending":
		return StatusPending, nil
	case "accepted", "accept":
		return StatusAccepted, nil
	case "rejected", "reject":
		return StatusRejected, nil
	default:
		return StatusPending, fmt.Errorf("%w: unknown change status %q", shared.ErrInvalidArgument, s)
	}
}

func (s ChangeStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON treats unknown statuses as pending so a newer backend cannot break review.
func (s *ChangeStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status, err := ParseChangeStatus(raw)
	if err != nil {
		status = StatusPending
	}
	*s = status
	return nil
}

// ChangeID orders a change within its book as (chapter, sequence).
//
// The wire form is "chapter.sequence"; a bare integer is the legacy form and carries only the sequence.
type ChangeID struct {
	Chapter   int
	Sequence  int
	raw       string
	malformed bool
}

// NewChangeID builds a composite id.
func NewChangeID(chapter, sequence int) ChangeID {
	return ChangeID{Chapter: chapter, Sequence: sequence}
}

// ParseChangeID parses the composite or legacy id form.
//
// Anything else still yields a usable key: (0, digits found in the input) or (0, 0), together with
// [shared.ErrMalformedChangeID] so callers can report it.
func ParseChangeID(raw string) (ChangeID, error) {
	s := strings.TrimSpace(raw)
	id := ChangeID{raw: s}

	if n, err := strconv.Atoi(s); err == nil {
		id.Sequence = n
		return id, nil
	}

	if left, right, ok := strings.Cut(s, "."); ok {
		c, errC := strconv.Atoi(left)
		n, errN := strconv.Atoi(right)
		if errC == nil && errN == nil {
			id.Chapter, id.Sequence = c, n
			return id, nil
		}
	}

	var digits strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	if n, err := strconv.Atoi(digits.String()); err == nil {
		id.Sequence = n
	}

	id.malformed = true
	return id, fmt.Errorf("%w: %q", shared.ErrMalformedChangeID, raw)
}

// Malformed reports whether the id was missing or only parsed through the digit fallback.
func (id ChangeID) Malformed() bool {
	return id.malformed
}

// Validate returns [shared.ErrMalformedChangeID] for a malformed id.
func (id ChangeID) Validate() error {
	if !id.malformed {
		return nil
	}
	if id.raw == "" {
		return fmt.Errorf("%w: missing", shared.ErrMalformedChangeID)
	}
	return fmt.Errorf("%w: %q", shared.ErrMalformedChangeID, id.raw)
}

// Legacy reports whether the id was given without a chapter component.
func (id ChangeID) Legacy() bool {
	return id.raw != "" && !strings.Contains(id.raw, ".")
}

// Raw returns the id exactly as the backend sent it, falling back to the composite form.
func (id ChangeID) Raw() string {
	if id.raw != "" {
		return id.raw
	}
	return id.String()
}

// String returns the composite "chapter.sequence" form.
func (id ChangeID) String() string {
	return fmt.Sprintf("%d.%d", id.Chapter, id.Sequence)
}

// Same reports whether two ids address the same (chapter, sequence) slot.
func (id ChangeID) Same(o ChangeID) bool {
	return id.Chapter == o.Chapter && id.Sequence == o.Sequence
}

// Compare orders ids chapter-major, sequence-minor.
func (id ChangeID) Compare(o ChangeID) int {
	switch {
	case id.Chapter != o.Chapter:
		if id.Chapter < o.Chapter {
			return -1
		}
		return 1
	case id.Sequence < o.Sequence:
		return -1
	case id.Sequence > o.Sequence:
		return 1
	default:
		return 0
	}
}

func (id ChangeID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Raw())
}

// UnmarshalJSON accepts a JSON number or string and never fails on an unparseable value.
func (id *ChangeID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ChangeID{malformed: true}
		return nil
	}

	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}

	parsed, _ := ParseChangeID(raw)
	*id = parsed
	return nil
}

// Change is one proposed edit to a span of a chapter's text.
//
// Original is never modified. Proposed is the user-editable text; Suggested keeps the backend's
// suggestion as first received so an edit can be reset.
type Change struct {
	ID           ChangeID     `json:"id"`
	ChapterIndex int          `json:"chapter_index"`
	ChapterTitle string       `json:"chapter_title,omitempty"`
	Original     string       `json:"original_text"`
	Proposed     string       `json:"proposed_text"`
	Suggested    string       `json:"-"`
	Reason       string       `json:"reason,omitempty"`
	Status       ChangeStatus `json:"status"`
}

// Edited reports whether the proposed text differs from the backend's suggestion.
func (c Change) Edited() bool {
	return c.Suggested != "" && c.Proposed != c.Suggested
}
