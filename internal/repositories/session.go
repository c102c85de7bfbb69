package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
)

// SessionRepository persists sessions and their append-only blacklists.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session into the database with generated ID and sequence
func (r *SessionRepository) Create(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "sessions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	session.ID = shared.GenerateID()
	session.Sequence = sequence

	intentJSON, err := json.Marshal(session.Intent)
	if err != nil {
		return fmt.Errorf("failed to encode intent: %w", err)
	}
	planJSON, err := json.Marshal(session.Plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}

	query := `
		INSERT INTO sessions (id, sequence, prompt, intent, plan, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		session.ID,
		session.Sequence,
		session.Prompt,
		string(intentJSON),
		string(planJSON),
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// Get retrieves a session by ID, excluding soft-deleted sessions
func (r *SessionRepository) Get(id string) (*models.Session, error) {
	query := `
		SELECT id, sequence, prompt, intent, plan, created_at, updated_at
		FROM sessions
		WHERE id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// Latest retrieves the most recently created session
func (r *SessionRepository) Latest() (*models.Session, error) {
	query := `
		SELECT id, sequence, prompt, intent, plan, created_at, updated_at
		FROM sessions
		WHERE deleted_at IS NULL
		ORDER BY sequence DESC
		LIMIT 1
	`

	return r.scanOne(r.db.QueryRow(query))
}

// Update rewrites a session's intent and plan, e.g. after a refinement
// narrowed the intent.
func (r *SessionRepository) Update(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	intentJSON, err := json.Marshal(session.Intent)
	if err != nil {
		return fmt.Errorf("failed to encode intent: %w", err)
	}
	planJSON, err := json.Marshal(session.Plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}

	now := time.Now()
	session.UpdatedAt = now

	query := `
		UPDATE sessions
		SET intent = ?, plan = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, string(intentJSON), string(planJSON), now, session.ID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, session.ID)
	}

	return nil
}

// Delete soft-deletes a session by ID
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

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}

	return nil
}

// List retrieves all sessions ordered by creation, excluding soft-deleted sessions
func (r *SessionRepository) List() ([]*models.Session, error) {
	query := `
		SELECT id, sequence, prompt, intent, plan, created_at, updated_at
		FROM sessions
		WHERE deleted_at IS NULL
		ORDER BY sequence ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sessions, nil
}

// Blacklist loads the session's blacklist. A session with no removals
// yields an empty, usable blacklist.
func (r *SessionRepository) Blacklist(sessionID string) (models.Blacklist, error) {
	rows, err := r.db.Query("SELECT track_id FROM session_blacklist WHERE session_id = ?", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query blacklist: %w", err)
	}
	defer rows.Close()

	bl := models.NewBlacklist()
	for rows.Next() {
		var trackID string
		if err := rows.Scan(&trackID); err != nil {
			return nil, fmt.Errorf("failed to scan blacklist entry: %w", err)
		}
		bl.Add(trackID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return bl, nil
}

// AppendBlacklist records track removals for the session. Re-appending an
// already blacklisted ID is a no-op.
func (r *SessionRepository) AppendBlacklist(sessionID string, trackIDs ...string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, trackID := range trackIDs {
		_, err := tx.Exec(
			"INSERT OR IGNORE INTO session_blacklist (session_id, track_id, created_at) VALUES (?, ?, ?)",
			sessionID, trackID, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert blacklist entry: %w", err)
		}
	}

	return tx.Commit()
}

// scanOne scans a single row into a [models.Session]
func (r *SessionRepository) scanOne(row *sql.Row) (*models.Session, error) {
	session, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return nil, shared.ErrSessionNotFound
	}
	return session, err
}

// scanSession decodes a session row via the given scan function.
func scanSession(scan func(...any) error) (*models.Session, error) {
	var (
		id         string
		sequence   int
		prompt     string
		intentJSON string
		planJSON   string
		createdAt  time.Time
		updatedAt  time.Time
	)

	if err := scan(&id, &sequence, &prompt, &intentJSON, &planJSON, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	var in models.Intent
	if err := json.Unmarshal([]byte(intentJSON), &in); err != nil {
		return nil, fmt.Errorf("failed to decode intent: %w", err)
	}
	var plan models.ExecutionPlan
	if err := json.Unmarshal([]byte(planJSON), &plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}

	return &models.Session{
		ID:        id,
		Sequence:  sequence,
		Prompt:    prompt,
		Intent:    in,
		Plan:      plan,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}
