package repositories

import (
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(shared.MemoryDatabase)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestNextSequence(t *testing.T) {
	t.Run("Increments", func(t *testing.T) {
		db := setupTestDB(t)

		for want := 1; want <= 3; want++ {
			got, err := NextSequence(db, "sessions")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != want {
				t.Errorf("expected %d, got %d", want, got)
			}
		}
	})

	t.Run("Unknown Table", func(t *testing.T) {
		db := setupTestDB(t)
		if _, err := NextSequence(db, "nope"); err == nil {
			t.Error("expected error for missing sequence table")
		}
	})
}

func TestSessionRepository(t *testing.T) {
	session := models.Session{ID: "abc", Filename: "book.epub", Status: models.SessionProcessing, Phase: "cleaning", Progress: 20}

	t.Run("Create", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		rec := models.NewSessionRecord(0, session, "https://app.example.com/?session=abc")

		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if rec.ID() == "" {
			t.Error("record ID should be set after creation")
		}
		if rec.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", rec.Sequence())
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		rec := models.NewSessionRecord(0, session, "")
		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		got, err := repo.Get(rec.ID())
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if got.SessionID() != "abc" || got.Status() != models.SessionProcessing || got.Phase() != "cleaning" {
			t.Errorf("unexpected record %+v", got)
		}
		if got.ShareURL() != "" {
			t.Errorf("expected empty share url, got %q", got.ShareURL())
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))

		if _, err := repo.GetBySessionID("missing"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
		if _, err := repo.Latest(); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound from empty history, got %v", err)
		}
	})

	t.Run("Validation Error", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		rec := models.NewSessionRecord(0, models.Session{Status: models.SessionReview}, "")

		if err := repo.Create(rec); err == nil {
			t.Fatal("expected validation error for missing session id")
		}
	})

	t.Run("Duplicate Session", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		if err := repo.Create(models.NewSessionRecord(0, session, "")); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if err := repo.Create(models.NewSessionRecord(0, session, "")); err == nil {
			t.Fatal("expected unique constraint error")
		}
	})

	t.Run("Upsert", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))

		first, err := repo.Upsert(session, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		done := session
		done.Status, done.Progress, done.Phase = models.SessionReview, 100, ""
		second, err := repo.Upsert(done, "https://app.example.com/?session=abc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if second.ID() != first.ID() {
			t.Error("expected upsert to update the existing record")
		}

		got, _ := repo.GetBySessionID("abc")
		if got.Status() != models.SessionReview || got.Progress() != 100 || got.ShareURL() == "" {
			t.Errorf("unexpected record after upsert: status=%s progress=%d", got.Status(), got.Progress())
		}
	})

	t.Run("Latest And List", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		for _, id := range []string{"a", "b", "c"} {
			s := session
			s.ID = id
			if id == "b" {
				s.Status = models.SessionComplete
			}
			if _, err := repo.Upsert(s, ""); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		latest, err := repo.Latest()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if latest.SessionID() != "c" {
			t.Errorf("expected latest c, got %s", latest.SessionID())
		}

		all, _ := repo.List(nil)
		if len(all) != 3 || all[0].SessionID() != "c" {
			t.Errorf("expected newest first, got %d records", len(all))
		}

		complete, _ := repo.List(map[string]any{"status": "complete"})
		if len(complete) != 1 || complete[0].SessionID() != "b" {
			t.Errorf("expected only b, got %d records", len(complete))
		}

		limited, _ := repo.List(map[string]any{"limit": 2})
		if len(limited) != 2 {
			t.Errorf("expected 2 records, got %d", len(limited))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		rec, _ := repo.Upsert(session, "")

		if err := repo.Delete(rec.ID()); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := repo.Get(rec.ID()); err == nil {
			t.Error("expected deleted record to be hidden")
		}
		if err := repo.Delete(rec.ID()); err == nil {
			t.Error("expected error deleting twice")
		}
	})
}

func TestDecisionRepository(t *testing.T) {
	accepted := models.Change{
		ID:           models.NewChangeID(2, 4),
		ChapterIndex: 2,
		Proposed:     "Darn it.",
		Status:       models.StatusAccepted,
	}

	t.Run("Create And List", func(t *testing.T) {
		repo := NewDecisionRepository(setupTestDB(t))

		if err := repo.Create(models.NewDecision(0, "abc", accepted)); err != nil {
			t.Fatalf("failed to create decision: %v", err)
		}
		rejected := accepted
		rejected.ID = models.NewChangeID(2, 5)
		rejected.Status = models.StatusRejected
		if err := repo.Create(models.NewDecision(0, "abc", rejected)); err != nil {
			t.Fatalf("failed to create decision: %v", err)
		}
		if err := repo.Create(models.NewDecision(0, "other", accepted)); err != nil {
			t.Fatalf("failed to create decision: %v", err)
		}

		list, err := repo.ListBySession("abc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 decisions, got %d", len(list))
		}
		if list[0].ChangeID() != "2.4" || list[0].ProposedText() != "Darn it." || list[0].ChapterIndex() != 2 {
			t.Errorf("unexpected first decision %+v", list[0])
		}
		if list[1].Status() != models.StatusRejected {
			t.Errorf("expected rejected, got %s", list[1].Status())
		}

		onlyRejected, _ := repo.List(map[string]any{"status": "rejected"})
		if len(onlyRejected) != 1 {
			t.Errorf("expected 1 rejected decision, got %d", len(onlyRejected))
		}
	})

	t.Run("Pending Is Invalid", func(t *testing.T) {
		repo := NewDecisionRepository(setupTestDB(t))
		pending := accepted
		pending.Status = models.StatusPending

		if err := repo.Create(models.NewDecision(0, "abc", pending)); err == nil {
			t.Fatal("expected validation error for pending decision")
		}
	})

	t.Run("Get Update Delete", func(t *testing.T) {
		repo := NewDecisionRepository(setupTestDB(t))
		d := models.NewDecision(0, "abc", accepted)
		if err := repo.Create(d); err != nil {
			t.Fatalf("failed to create decision: %v", err)
		}

		d.SetStatus(models.StatusRejected)
		d.SetProposedText("")
		if err := repo.Update(d); err != nil {
			t.Fatalf("failed to update: %v", err)
		}
		got, err := repo.Get(d.ID())
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got.Status() != models.StatusRejected {
			t.Errorf("expected rejected, got %s", got.Status())
		}

		if err := repo.Delete(d.ID()); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := repo.Get(d.ID()); err == nil {
			t.Error("expected deleted decision to be hidden")
		}
	})
}

func TestRecorder(t *testing.T) {
	t.Run("Records Sessions And Decisions", func(t *testing.T) {
		db := setupTestDB(t)
		rec := NewRecorder(NewSessionRepository(db), NewDecisionRepository(db))

		s := models.Session{ID: "abc", Status: models.SessionProcessing}
		if err := rec.RecordSession(s, ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s.Status = models.SessionReview
		if err := rec.RecordSession(s, ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		c := models.Change{ID: models.NewChangeID(0, 1), Status: models.StatusAccepted, Proposed: "x"}
		if err := rec.RecordDecision("abc", c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c.Status = models.StatusPending
		if err := rec.RecordDecision("abc", c); err != nil {
			t.Errorf("expected pending change to be ignored, got %v", err)
		}

		all, _ := rec.Sessions.List(nil)
		if len(all) != 1 || all[0].Status() != models.SessionReview {
			t.Errorf("expected one refreshed record, got %d", len(all))
		}
		decisions, _ := rec.Decisions.ListBySession("abc")
		if len(decisions) != 1 {
			t.Errorf("expected 1 decision, got %d", len(decisions))
		}
	})

	t.Run("Concurrent Decisions Get Distinct Sequences", func(t *testing.T) {
		db := setupTestDB(t)
		rec := NewRecorder(NewSessionRepository(db), NewDecisionRepository(db))

		var wg sync.WaitGroup
		for i := 1; i <= 5; i++ {
			wg.Add(1)
			go func(seq int) {
				defer wg.Done()
				c := models.Change{ID: models.NewChangeID(0, seq), Status: models.StatusAccepted}
				if err := rec.RecordDecision("abc", c); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		decisions, _ := rec.Decisions.ListBySession("abc")
		seen := map[int]bool{}
		for _, d := range decisions {
			seen[d.Sequence()] = true
		}
		if len(decisions) != 5 || len(seen) != 5 {
			t.Errorf("expected 5 distinct sequences, got %d decisions", len(decisions))
		}
	})

	t.Run("Missing Session ID", func(t *testing.T) {
		db := setupTestDB(t)
		rec := NewRecorder(NewSessionRepository(db), NewDecisionRepository(db))
		if err := rec.RecordSession(models.Session{}, ""); err == nil {
			t.Error("expected error for empty session id")
		}
	})
}
