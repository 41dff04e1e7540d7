package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/shared"
)

const decisionColumns = `id, sequence, session_id, change_id, chapter_index, status, proposed_text, created_at, updated_at, deleted_at`

// DecisionRepository implements models.Repository[*models.Decision].
//
// Decisions are appended as they are confirmed by the backend, so a change that was edited and
// re-accepted appears more than once; the highest sequence is the latest.
type DecisionRepository struct {
	db *sql.DB
}

// NewDecisionRepository creates a new DecisionRepository with the given database connection
func NewDecisionRepository(db *sql.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// Create appends a decision with generated ID and sequence
func (r *DecisionRepository) Create(d *models.Decision) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "decisions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	d.SetID(id)
	d.SetSequence(sequence)

	query := `
		INSERT INTO decisions (id, sequence, session_id, change_id, chapter_index, status, proposed_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		d.SessionID(),
		d.ChangeID(),
		d.ChapterIndex(),
		d.Status().String(),
		d.ProposedText(),
		d.CreatedAt(),
		d.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}

	return nil
}

// Get retrieves a decision by ID, excluding soft-deleted decisions
func (r *DecisionRepository) Get(id string) (*models.Decision, error) {
	query := `SELECT ` + decisionColumns + ` FROM decisions WHERE id = ? AND deleted_at IS NULL`

	d, err := scanDecision(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("decision not found: %s", id)
	}
	return d, err
}

// Update modifies the status and proposed text of a decision
func (r *DecisionRepository) Update(d *models.Decision) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	d.SetUpdatedAt(now)

	query := `
		UPDATE decisions
		SET status = ?, proposed_text = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, d.Status().String(), d.ProposedText(), now, d.ID())
	if err != nil {
		return fmt.Errorf("failed to update decision: %w", err)
	}

	return requireRow(result, "decision", d.ID())
}

// Delete soft-deletes a decision by ID
func (r *DecisionRepository) Delete(id string) error {
	query := `
		UPDATE decisions
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete decision: %w", err)
	}

	return requireRow(result, "decision", id)
}

// List retrieves decisions in the order they were made, filtered by "session_id" and "status"
func (r *DecisionRepository) List(criteria map[string]any) ([]*models.Decision, error) {
	query := `SELECT ` + decisionColumns + ` FROM decisions WHERE deleted_at IS NULL`
	args := []any{}

	if sessionID, ok := criteria["session_id"].(string); ok && sessionID != "" {
		query += " AND session_id = ?"
		args = append(args, sessionID)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*models.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return decisions, nil
}

// ListBySession returns every decision recorded for a backend session.
func (r *DecisionRepository) ListBySession(sessionID string) ([]*models.Decision, error) {
	return r.List(map[string]any{"session_id": sessionID})
}

func scanDecision(row scanner) (*models.Decision, error) {
	var (
		id           string
		sequence     int
		sessionID    string
		changeID     string
		chapterIndex int
		status       string
		proposedText string
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(&id, &sequence, &sessionID, &changeID, &chapterIndex, &status, &proposedText, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan decision: %w", err)
	}

	cid, _ := models.ParseChangeID(changeID)
	st, _ := models.ParseChangeStatus(status)
	d := models.NewDecision(sequence, sessionID, models.Change{
		ID:           cid,
		ChapterIndex: chapterIndex,
		Proposed:     proposedText,
		Status:       st,
	})
	d.SetID(id)
	d.SetCreatedAt(createdAt)
	d.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		d.SetDeletedAt(&deletedAt.Time)
	}

	return d, nil
}
