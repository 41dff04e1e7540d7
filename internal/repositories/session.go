package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/shared"
)

const sessionColumns = `id, sequence, session_id, filename, status, phase, progress, error_message, share_url, created_at, updated_at, deleted_at`

// SessionRepository implements models.Repository[*models.SessionRecord] for the local session history.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session record with generated ID and sequence
func (r *SessionRepository) Create(rec *models.SessionRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "sessions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	rec.SetID(id)
	rec.SetSequence(sequence)

	query := `
		INSERT INTO sessions (id, sequence, session_id, filename, status, phase, progress, error_message, share_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		rec.SessionID(),
		rec.Filename(),
		rec.Status().String(),
		rec.Phase(),
		rec.Progress(),
		nullString(rec.ErrorMessage()),
		nullString(rec.ShareURL()),
		rec.CreatedAt(),
		rec.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// Get retrieves a session record by ID, excluding soft-deleted records
func (r *SessionRepository) Get(id string) (*models.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, id), id)
}

// GetBySessionID retrieves the record for a backend session id
func (r *SessionRepository) GetBySessionID(sessionID string) (*models.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE session_id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, sessionID), sessionID)
}

// Latest returns the most recently created session record.
func (r *SessionRepository) Latest() (*models.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE deleted_at IS NULL ORDER BY sequence DESC LIMIT 1`
	return r.scan(r.db.QueryRow(query), "latest")
}

// Update modifies an existing session record
func (r *SessionRepository) Update(rec *models.SessionRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	rec.SetUpdatedAt(now)

	query := `
		UPDATE sessions
		SET filename = ?, status = ?, phase = ?, progress = ?, error_message = ?, share_url = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		rec.Filename(),
		rec.Status().String(),
		rec.Phase(),
		rec.Progress(),
		nullString(rec.ErrorMessage()),
		nullString(rec.ShareURL()),
		now,
		rec.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return requireRow(result, "session", rec.ID())
}

// Upsert creates the record for s or applies s to the existing one.
func (r *SessionRepository) Upsert(s models.Session, shareURL string) (*models.SessionRecord, error) {
	rec, err := r.GetBySessionID(s.ID)
	switch {
	case errors.Is(err, shared.ErrSessionNotFound):
		rec = models.NewSessionRecord(0, s, shareURL)
		if rec.Status() == models.SessionUnknown {
			rec.SetStatus(models.SessionProcessing)
		}
		return rec, r.Create(rec)
	case err != nil:
		return nil, err
	}

	rec.Apply(s)
	if shareURL != "" {
		rec.SetShareURL(shareURL)
	}
	return rec, r.Update(rec)
}

// Delete soft-deletes a session record by ID
func (r *SessionRepository) Delete(id string) error {
	query := `
		UPDATE sessions
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return requireRow(result, "session", id)
}

// List retrieves session records newest first, optionally filtered by "status", excluding soft-deleted records
//
// A positive "limit" caps the number of rows.
func (r *SessionRepository) List(criteria map[string]any) ([]*models.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE deleted_at IS NULL`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var records []*models.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

func (r *SessionRepository) scan(row *sql.Row, key string) (*models.SessionRecord, error) {
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no local record for %s", shared.ErrSessionNotFound, key)
	}
	return rec, err
}

// scanSession scans a single row into a [models.SessionRecord]
func scanSession(row scanner) (*models.SessionRecord, error) {
	var (
		id           string
		sequence     int
		sessionID    string
		filename     string
		status       string
		phase        string
		progress     int
		errorMessage sql.NullString
		shareURL     sql.NullString
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(&id, &sequence, &sessionID, &filename, &status, &phase, &progress, &errorMessage, &shareURL, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	st, _ := models.ParseSessionStatus(status)
	rec := models.NewSessionRecord(sequence, models.Session{
		ID:       sessionID,
		Filename: filename,
		Status:   st,
		Phase:    phase,
		Progress: progress,
		Error:    errorMessage.String,
	}, shareURL.String)
	rec.SetID(id)
	rec.SetCreatedAt(createdAt)
	rec.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		rec.SetDeletedAt(&deletedAt.Time)
	}

	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s not found or already deleted: %s", entity, id)
	}
	return nil
}
