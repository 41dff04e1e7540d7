package review

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/shared"
)

func change(chapter, seq int, status models.ChangeStatus) models.Change {
	return models.Change{
		ID:           models.NewChangeID(chapter, seq),
		ChapterIndex: chapter,
		Original:     "original",
		Proposed:     "proposed",
		Status:       status,
	}
}

func ids(changes []models.Change) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.ID.String()
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestChangeSetOrdering(t *testing.T) {
	t.Run("Insertion Order Ignored", func(t *testing.T) {
		cs := New()
		for _, c := range []models.Change{
			change(2, 1, models.StatusPending),
			change(1, 2, models.StatusPending),
			change(1, 1, models.StatusPending),
		} {
			if err := cs.Add(c); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
		}

		got := ids(cs.All())
		if want := []string{"1.1", "1.2", "2.1"}; !equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("Resorts After Add", func(t *testing.T) {
		cs := New()
		_ = cs.Add(change(3, 1, models.StatusPending))
		_ = cs.All()
		_ = cs.Add(change(0, 4, models.StatusPending))

		if got := ids(cs.All()); !equal(got, []string{"0.4", "3.1"}) {
			t.Errorf("expected resort after add, got %v", got)
		}
	})

	t.Run("Load Normalizes Chapter", func(t *testing.T) {
		legacy, _ := models.ParseChangeID("2")
		cs := Load([]models.Chapter{
			{Index: 4, Title: "Four", Changes: []models.Change{{ID: legacy, Proposed: "x"}}},
			{Index: 1, Changes: []models.Change{{ID: models.NewChangeID(9, 1)}}},
		})

		all := cs.All()
		if len(all) != 2 {
			t.Fatalf("expected 2 changes, got %d", len(all))
		}
		if all[0].ChapterIndex != 1 || all[1].ChapterIndex != 4 {
			t.Errorf("expected chapter indexes 1 then 4, got %d and %d", all[0].ChapterIndex, all[1].ChapterIndex)
		}
		if all[1].ID.Raw() != "2" {
			t.Errorf("raw id should be preserved for the backend, got %q", all[1].ID.Raw())
		}
		if all[1].ChapterTitle != "Four" {
			t.Errorf("expected chapter title carried onto change, got %q", all[1].ChapterTitle)
		}
		if all[1].Suggested != "x" {
			t.Errorf("expected pristine suggestion captured, got %q", all[1].Suggested)
		}
	})

	t.Run("Malformed And Duplicate Are Warnings", func(t *testing.T) {
		bad, _ := models.ParseChangeID("zz")
		cs := Load([]models.Chapter{{Index: 0, Changes: []models.Change{
			{ID: bad},
			{ID: models.NewChangeID(0, 1)},
			{ID: models.NewChangeID(0, 1), Proposed: "dup"},
		}}})

		if cs.Len() != 2 {
			t.Errorf("expected duplicate dropped, got %d changes", cs.Len())
		}
		var malformed bool
		for _, w := range cs.Warnings() {
			if errors.Is(w, shared.ErrMalformedChangeID) {
				malformed = true
			}
		}
		if !malformed || len(cs.Warnings()) != 2 {
			t.Errorf("expected malformed and duplicate warnings, got %v", cs.Warnings())
		}
	})

	t.Run("Distinct Malformed Ids Are All Kept", func(t *testing.T) {
		abc, _ := models.ParseChangeID("abc")
		def, _ := models.ParseChangeID("def")
		var missing models.ChangeID
		if err := json.Unmarshal([]byte("null"), &missing); err != nil {
			t.Fatalf("unmarshal null id: %v", err)
		}
		cs := Load([]models.Chapter{{Index: 1, Changes: []models.Change{
			{ID: abc, Proposed: "a"},
			{ID: def, Proposed: "d"},
			{ID: missing, Proposed: "m"},
			{ID: models.NewChangeID(1, 1), Proposed: "one"},
		}}})

		if len(cs.Pending()) != 4 {
			t.Fatalf("expected 4 reviewable changes, got %d (warnings %v)", len(cs.Pending()), cs.Warnings())
		}
		if got := ids(cs.All()); !equal(got, []string{"1.1", "1.2", "1.3", "1.4"}) {
			t.Errorf("expected fallback ids after the well-formed one, got %v", got)
		}
		for _, w := range cs.Warnings() {
			if !errors.Is(w, shared.ErrMalformedChangeID) {
				t.Errorf("expected only malformed warnings, got %v", w)
			}
		}
		if c, ok := cs.Lookup("def"); !ok || c.Proposed != "d" {
			t.Errorf("expected backend id to resolve, got %+v %v", c, ok)
		}
		if err := cs.SetStatus(models.NewChangeID(1, 3), models.StatusRejected); err != nil {
			t.Errorf("expected fallback change to be reviewable: %v", err)
		}
	})

	t.Run("Repeated Backend Id Is Dropped", func(t *testing.T) {
		first, _ := models.ParseChangeID("x")
		again, _ := models.ParseChangeID("x")
		legacy, _ := models.ParseChangeID("1")
		cs := Load([]models.Chapter{{Index: 2, Changes: []models.Change{
			{ID: first}, {ID: again}, {ID: legacy}, {ID: models.NewChangeID(2, 1)},
		}}})

		if cs.Len() != 3 {
			t.Errorf("expected only the repeated raw id dropped, got %v", ids(cs.All()))
		}
	})
}

func TestChangeSetStatus(t *testing.T) {
	newSet := func() *ChangeSet {
		cs := New()
		_ = cs.Add(change(0, 1, models.StatusPending))
		_ = cs.Add(change(0, 2, models.StatusPending))
		_ = cs.Add(change(1, 1, models.StatusRejected))
		return cs
	}

	t.Run("Pending View Is Live", func(t *testing.T) {
		cs := newSet()
		id := models.NewChangeID(0, 1)
		if err := cs.SetStatus(id, models.StatusAccepted); err != nil {
			t.Fatalf("SetStatus failed: %v", err)
		}

		for _, p := range cs.Pending() {
			if p.ID.Same(id) {
				t.Error("accepted change still pending")
			}
		}
		c, ok := cs.Lookup("0.1")
		if !ok || c.Status != models.StatusAccepted {
			t.Errorf("expected accepted change in all view, got %+v", c)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		cs := newSet()
		id := models.NewChangeID(1, 1)
		if err := cs.SetStatus(id, models.StatusRejected); err != nil {
			t.Errorf("setting same status should succeed, got %v", err)
		}
		if cs.Counts().Rejected != 1 {
			t.Errorf("expected 1 rejected, got %d", cs.Counts().Rejected)
		}
	})

	t.Run("Unknown Change", func(t *testing.T) {
		cs := newSet()
		err := cs.SetStatus(models.NewChangeID(7, 7), models.StatusAccepted)
		if !errors.Is(err, shared.ErrChangeNotFound) {
			t.Errorf("expected ErrChangeNotFound, got %v", err)
		}
	})

	t.Run("Accept All Leaves Decided Alone", func(t *testing.T) {
		cs := newSet()
		touched := cs.AcceptAll()
		if len(touched) != 2 {
			t.Errorf("expected 2 changes accepted, got %d", len(touched))
		}

		counts := cs.Counts()
		if counts.Accepted != 2 || counts.Rejected != 1 || counts.Pending != 0 {
			t.Errorf("unexpected counts %+v", counts)
		}
	})

	t.Run("Chapter Views", func(t *testing.T) {
		cs := newSet()
		if len(cs.ChapterChanges(0)) != 2 {
			t.Errorf("expected 2 changes in chapter 0")
		}
		counts := cs.ChapterCounts(1)
		if counts.Total != 1 || counts.Rejected != 1 {
			t.Errorf("unexpected chapter 1 counts %+v", counts)
		}
		chapters := cs.Chapters()
		if len(chapters) != 2 || len(chapters[1].Changes) != 1 {
			t.Errorf("unexpected chapters %+v", chapters)
		}
	})

	t.Run("Lookup Raw Legacy Id", func(t *testing.T) {
		legacy, _ := models.ParseChangeID("42")
		cs := Load([]models.Chapter{{Index: 3, Changes: []models.Change{{ID: legacy}}}})
		if _, ok := cs.Lookup("42"); !ok {
			t.Error("expected raw legacy id to resolve")
		}
		if _, ok := cs.Lookup("3.42"); !ok {
			t.Error("expected normalized composite id to resolve")
		}
	})
}

func TestFromSession(t *testing.T) {
	sess := models.Session{
		Chapters: []models.Chapter{{Index: 0, Title: "Empty"}},
		Changes:  []models.Change{change(1, 1, models.StatusPending)},
	}

	cs := FromSession(sess)
	got := cs.ChapterIndexes()
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("expected chapters 0 and 1, got %v", got)
	}
	if cs.ChapterCounts(0).Total != 0 {
		t.Error("empty chapter should have no changes")
	}
}
