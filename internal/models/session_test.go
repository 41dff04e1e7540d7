package models

import (
	"encoding/json"
	"testing"
)

func TestSessionStatus(t *testing.T) {
	t.Run("Parse Aliases", func(t *testing.T) {
		cases := map[string]SessionStatus{
			"processing": SessionProcessing,
			"REVIEW":     SessionReview,
			"completed":  SessionComplete,
			"failed":     SessionError,
			"canceled":   SessionCancelled,
			"uploading":  SessionUploading,
		}
		for raw, want := range cases {
			got, err := ParseSessionStatus(raw)
			if err != nil {
				t.Fatalf("ParseSessionStatus(%q) failed: %v", raw, err)
			}
			if got != want {
				t.Errorf("ParseSessionStatus(%q) = %s, want %s", raw, got, want)
			}
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if _, err := ParseSessionStatus("exploded"); err == nil {
			t.Error("expected error for unknown status")
		}
	})

	t.Run("Terminal", func(t *testing.T) {
		if SessionProcessing.Terminal() || SessionUploading.Terminal() {
			t.Error("in-flight statuses must not be terminal")
		}
		for _, s := range []SessionStatus{SessionReview, SessionComplete, SessionError, SessionCancelled} {
			if !s.Terminal() {
				t.Errorf("%s should be terminal", s)
			}
		}
	})

	t.Run("Reviewable", func(t *testing.T) {
		if !SessionReview.Reviewable() || !SessionComplete.Reviewable() {
			t.Error("review and complete carry a change set")
		}
		if SessionCancelled.Reviewable() || SessionError.Reviewable() {
			t.Error("cancelled and error sessions expose no change set")
		}
	})
}

func TestSessionJSON(t *testing.T) {
	payload := `{
		"session_id": "abc",
		"filename": "book.epub",
		"status": "review",
		"progress": 100,
		"chapters": [{"index": 0, "title": "One", "rating": {"language": 1}, "changes": [{"id": "0.1", "original_text": "a", "proposed_text": "b"}]}]
	}`

	var s Session
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if s.ID != "abc" || s.Status != SessionReview {
		t.Errorf("unexpected session %+v", s)
	}
	if len(s.Chapters) != 1 || len(s.Chapters[0].Changes) != 1 {
		t.Fatalf("expected one chapter with one change, got %+v", s.Chapters)
	}
	if *s.Chapters[0].Rating.Language != 1 {
		t.Errorf("expected language rating 1")
	}
}

func TestSessionRecord(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		r := NewSessionRecord(0, Session{ID: "s1", Status: SessionProcessing}, "")
		if err := r.Validate(); err != nil {
			t.Errorf("expected valid record, got %v", err)
		}

		r = NewSessionRecord(0, Session{Status: SessionProcessing}, "")
		if err := r.Validate(); err == nil {
			t.Error("expected error for missing session id")
		}
	})

	t.Run("Apply", func(t *testing.T) {
		r := NewSessionRecord(0, Session{ID: "s1", Filename: "a.epub", Status: SessionProcessing, Phase: "rating"}, "")
		r.Apply(Session{ID: "s1", Status: SessionReview, Progress: 140})

		if r.Status() != SessionReview {
			t.Errorf("expected review, got %s", r.Status())
		}
		if r.Filename() != "a.epub" {
			t.Error("empty filename should not overwrite")
		}
		if r.Progress() != 100 {
			t.Errorf("expected clamped progress 100, got %d", r.Progress())
		}
	})
}

func TestDecisionValidate(t *testing.T) {
	d := NewDecision(0, "s1", Change{ID: NewChangeID(1, 2), Status: StatusPending})
	if err := d.Validate(); err == nil {
		t.Error("pending decision should be invalid")
	}

	d = NewDecision(0, "s1", Change{ID: NewChangeID(1, 2), Status: StatusAccepted, Proposed: "x"})
	if err := d.Validate(); err != nil {
		t.Errorf("expected valid decision, got %v", err)
	}
	if d.ChangeID() != "1.2" {
		t.Errorf("expected change id 1.2, got %s", d.ChangeID())
	}
}
