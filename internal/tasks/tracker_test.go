package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/shared"
)

func TestTracker(t *testing.T) {
	t.Run("Status Updates Merge", func(t *testing.T) {
		tr := newTracker(models.Session{ID: "abc", Status: models.SessionProcessing}, "")

		s := tr.applyStatus(models.StatusUpdate{Phase: "cleaning", Progress: 140})
		if s.Status != models.SessionProcessing {
			t.Errorf("expected unknown status to keep processing, got %s", s.Status)
		}
		if s.Progress != 100 {
			t.Errorf("expected progress clamped to 100, got %d", s.Progress)
		}

		s = tr.applyStatus(models.StatusUpdate{Status: models.SessionError, Error: "model overloaded"})
		if s.Status != models.SessionError || s.Error != "model overloaded" {
			t.Errorf("unexpected session %+v", s)
		}
	})

	t.Run("Strips Changes Until Terminal Fetch", func(t *testing.T) {
		tr := newTracker(*reviewSession("abc"), "")
		if tr.Reviewable() {
			t.Error("expected no change set before finish")
		}

		tr.finish(reviewSession("abc"), nil)
		if !tr.Reviewable() {
			t.Error("expected change set after finish")
		}
		select {
		case <-tr.Done():
		default:
			t.Error("expected Done to be closed")
		}
	})

	t.Run("Non Reviewable Fetch Clears Set", func(t *testing.T) {
		tr := newTracker(models.Session{ID: "abc"}, "")
		tr.finish(reviewSession("abc"), nil)

		failed := &models.Session{ID: "abc", Status: models.SessionError, Error: "boom"}
		tr.load(*failed)
		if tr.Reviewable() {
			t.Error("expected change set to be cleared")
		}
	})

	t.Run("Fetch Error Keeps Last Status", func(t *testing.T) {
		tr := newTracker(models.Session{ID: "abc", Status: models.SessionProcessing, Progress: 80}, "")
		tr.finish(nil, shared.ErrServiceUnavailable)

		if !errors.Is(tr.Err(), shared.ErrServiceUnavailable) {
			t.Errorf("expected fetch error, got %v", tr.Err())
		}
		if tr.Snapshot().Progress != 80 {
			t.Errorf("expected last progress kept, got %d", tr.Snapshot().Progress)
		}
		if err := tr.Wait(context.Background()); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected Wait to return the fetch error, got %v", err)
		}
	})

	t.Run("Cancel Wins Over Late Fetch", func(t *testing.T) {
		tr := newTracker(models.Session{ID: "abc", Status: models.SessionProcessing}, "")
		cancelled := false
		tr.startWatching(func() { cancelled = true })

		tr.markCancelled()
		if !cancelled {
			t.Error("expected watch context to be cancelled")
		}
		select {
		case <-tr.Done():
			t.Fatal("expected Done to stay open while watching")
		default:
		}

		tr.applyStatus(models.StatusUpdate{Status: models.SessionReview, Progress: 100})
		tr.finish(reviewSession("abc"), nil)

		snap := tr.Snapshot()
		if snap.Status != models.SessionCancelled || tr.Reviewable() {
			t.Errorf("expected cancelled without changes, got %+v", snap)
		}
	})

	t.Run("Logs Are Copied", func(t *testing.T) {
		tr := newTracker(models.Session{ID: "abc"}, "")
		tr.appendLog("one")
		logs := tr.Logs()
		logs[0] = "changed"

		if tr.Logs()[0] != "one" || tr.Snapshot().LogCount != 1 {
			t.Error("expected logs to be returned by copy")
		}
	})

	t.Run("Wait Honors Context", func(t *testing.T) {
		tr := newTracker(models.Session{ID: "abc"}, "")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		if err := tr.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}

func TestRegistry(t *testing.T) {
	t.Run("Create And Get", func(t *testing.T) {
		r := NewRegistry()
		tr := newTracker(models.Session{ID: "b"}, "")
		if err := r.Create(tr); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, ok := r.Get("b")
		if !ok || got != tr {
			t.Error("expected to get the registered tracker")
		}
	})

	t.Run("Rejects Duplicates And Empty IDs", func(t *testing.T) {
		r := NewRegistry()
		_ = r.Create(newTracker(models.Session{ID: "a"}, ""))

		if err := r.Create(newTracker(models.Session{ID: "a"}, "")); err == nil {
			t.Error("expected duplicate error")
		}
		if err := r.Create(newTracker(models.Session{}, "")); err == nil {
			t.Error("expected empty id error")
		}
	})

	t.Run("List Is Sorted", func(t *testing.T) {
		r := NewRegistry()
		for _, id := range []string{"c", "a", "b"} {
			_ = r.Create(newTracker(models.Session{ID: id}, ""))
		}

		list := r.List()
		if len(list) != 3 || list[0].ID() != "a" || list[2].ID() != "c" {
			t.Errorf("unexpected order")
		}
	})

	t.Run("Remove", func(t *testing.T) {
		r := NewRegistry()
		_ = r.Create(newTracker(models.Session{ID: "a"}, ""))

		if !r.Remove("a") {
			t.Error("expected removal")
		}
		if r.Remove("a") {
			t.Error("expected second removal to report false")
		}
	})
}
