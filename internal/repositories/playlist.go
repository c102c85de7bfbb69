package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
)

// PlaylistRepository persists assembled playlist snapshots.
//
// Snapshots are immutable once written; each mutation stores a new snapshot
// under the same session, so Latest always reflects the current state.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create stores a snapshot under the given session. The playlist keeps its
// assembler-assigned ID; only the sequence is generated here.
func (r *PlaylistRepository) Create(sessionID string, playlist *models.AssembledPlaylist) error {
	if playlist.ID == "" {
		return fmt.Errorf("%w: playlist has no id", shared.ErrInvalidInput)
	}

	sequence, err := NextSequence(r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO playlists (id, sequence, session_id, name, target, shortfall, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		playlist.ID,
		sequence,
		sessionID,
		playlist.Name,
		playlist.Target,
		playlist.Shortfall,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	for i, track := range playlist.Tracks {
		artists, err := json.Marshal(track.Artists)
		if err != nil {
			return fmt.Errorf("failed to encode artists: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO playlist_tracks (playlist_id, position, track_id, title, artists, album, duration, year, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			playlist.ID, i, track.ID, track.Title, string(artists),
			track.Album, track.Duration, track.Year, string(track.Source),
		)
		if err != nil {
			return fmt.Errorf("failed to insert playlist track: %w", err)
		}
	}

	for i, step := range playlist.Relaxations {
		_, err = tx.Exec(`
			INSERT INTO playlist_relaxations (playlist_id, position, constraint_name, old_value, new_value, yield_before, yield_after)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			playlist.ID, i, step.Constraint, step.OldValue, step.NewValue,
			step.YieldBefore, step.YieldAfter,
		)
		if err != nil {
			return fmt.Errorf("failed to insert relaxation step: %w", err)
		}
	}

	return tx.Commit()
}

// Get retrieves a snapshot by ID, excluding soft-deleted snapshots
func (r *PlaylistRepository) Get(id string) (*models.AssembledPlaylist, error) {
	query := `
		SELECT id, name, target, shortfall
		FROM playlists
		WHERE id = ? AND deleted_at IS NULL
	`

	return r.scanPlaylist(r.db.QueryRow(query, id))
}

// Latest retrieves the session's most recent snapshot
func (r *PlaylistRepository) Latest(sessionID string) (*models.AssembledPlaylist, error) {
	query := `
		SELECT id, name, target, shortfall
		FROM playlists
		WHERE session_id = ? AND deleted_at IS NULL
		ORDER BY sequence DESC
		LIMIT 1
	`

	return r.scanPlaylist(r.db.QueryRow(query, sessionID))
}

// ListBySession retrieves the session's snapshot history, oldest first.
// Only the playlist rows are loaded; tracks are fetched via Get.
func (r *PlaylistRepository) ListBySession(sessionID string) ([]*models.AssembledPlaylist, error) {
	query := `
		SELECT id, name, target, shortfall
		FROM playlists
		WHERE session_id = ? AND deleted_at IS NULL
		ORDER BY sequence ASC
	`

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.AssembledPlaylist
	for rows.Next() {
		var p models.AssembledPlaylist
		if err := rows.Scan(&p.ID, &p.Name, &p.Target, &p.Shortfall); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

// Delete soft-deletes a snapshot by ID
func (r *PlaylistRepository) Delete(id string) error {
	query := `
		UPDATE playlists
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}

	return nil
}

// scanPlaylist loads the playlist row and hydrates its tracks, relaxation
// log and artist distribution.
func (r *PlaylistRepository) scanPlaylist(row *sql.Row) (*models.AssembledPlaylist, error) {
	var p models.AssembledPlaylist

	err := row.Scan(&p.ID, &p.Name, &p.Target, &p.Shortfall)
	if err == sql.ErrNoRows {
		return nil, shared.ErrPlaylistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	if p.Tracks, err = r.loadTracks(p.ID); err != nil {
		return nil, err
	}
	if p.Relaxations, err = r.loadRelaxations(p.ID); err != nil {
		return nil, err
	}

	p.ArtistDistribution = map[string]int{}
	for _, t := range p.Tracks {
		p.ArtistDistribution[t.LeadArtist()]++
	}

	return &p, nil
}

func (r *PlaylistRepository) loadTracks(playlistID string) ([]models.CandidateTrack, error) {
	query := `
		SELECT track_id, title, artists, album, duration, year, source
		FROM playlist_tracks
		WHERE playlist_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	tracks := []models.CandidateTrack{}
	for rows.Next() {
		var (
			t       models.CandidateTrack
			artists string
			source  string
		)
		if err := rows.Scan(&t.ID, &t.Title, &artists, &t.Album, &t.Duration, &t.Year, &source); err != nil {
			return nil, fmt.Errorf("failed to scan playlist track: %w", err)
		}
		if err := json.Unmarshal([]byte(artists), &t.Artists); err != nil {
			return nil, fmt.Errorf("failed to decode artists: %w", err)
		}
		t.Source = models.Tool(source)
		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

func (r *PlaylistRepository) loadRelaxations(playlistID string) ([]models.RelaxationStep, error) {
	query := `
		SELECT constraint_name, old_value, new_value, yield_before, yield_after
		FROM playlist_relaxations
		WHERE playlist_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relaxation steps: %w", err)
	}
	defer rows.Close()

	steps := []models.RelaxationStep{}
	for rows.Next() {
		var s models.RelaxationStep
		if err := rows.Scan(&s.Constraint, &s.OldValue, &s.NewValue, &s.YieldBefore, &s.YieldAfter); err != nil {
			return nil, fmt.Errorf("failed to scan relaxation step: %w", err)
		}
		steps = append(steps, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return steps, nil
}
