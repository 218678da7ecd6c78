package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrLaunchNotFound is returned when no launch row matches the query.
var ErrLaunchNotFound = errors.New("launch not found")

// LaunchRepository stores and retrieves launch records.
type LaunchRepository interface {
	// RecordLaunch upserts the launch keyed by session id. A zero ID is
	// assigned a fresh UUID; zero timestamps default to now.
	RecordLaunch(launch *Launch) error
	// Touch bumps last_used_at on an existing launch.
	Touch(sessionID string) error
	// MostRecent returns the most recently used launch for a project.
	MostRecent(project string) (*Launch, error)
	// List returns launches for a project, most recently used first.
	List(project string, limit int) ([]*Launch, error)
	// Delete removes the launch for a session.
	Delete(sessionID string) error
}

const launchColumns = `id, session_id, project, first_prompt, model, created_at, last_used_at`

type launchRepository struct {
	db *sql.DB
}

var _ LaunchRepository = (*launchRepository)(nil)

func newLaunchRepository(db *sql.DB) *launchRepository {
	return &launchRepository{db: db}
}

func scanLaunch(scanner interface{ Scan(...any) error }) (*launchModel, error) {
	var model launchModel
	err := scanner.Scan(
		&model.ID, &model.SessionID, &model.Project,
		&model.FirstPrompt, &model.Model,
		&model.CreatedAt, &model.LastUsedAt,
	)
	return &model, err
}

func (r *launchRepository) RecordLaunch(launch *Launch) error {
	if launch.SessionID == "" {
		return errors.New("launch requires a session id")
	}
	if launch.ID == "" {
		launch.ID = uuid.NewString()
	}
	now := time.Now()
	if launch.CreatedAt.IsZero() {
		launch.CreatedAt = now
	}
	if launch.LastUsedAt.IsZero() {
		launch.LastUsedAt = now
	}

	model := toLaunchModel(launch)
	_, err := r.db.Exec(
		`INSERT INTO launches (id, session_id, project, first_prompt, model, created_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			model = excluded.model,
			last_used_at = excluded.last_used_at`,
		model.ID, model.SessionID, model.Project,
		model.FirstPrompt, model.Model,
		model.CreatedAt, model.LastUsedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record launch: %w", err)
	}
	return nil
}

func (r *launchRepository) Touch(sessionID string) error {
	result, err := r.db.Exec(
		`UPDATE launches SET last_used_at = ? WHERE session_id = ?`,
		time.Now().Unix(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch launch: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrLaunchNotFound
	}
	return nil
}

func (r *launchRepository) MostRecent(project string) (*Launch, error) {
	row := r.db.QueryRow(
		`SELECT `+launchColumns+` FROM launches
		 WHERE project = ? ORDER BY last_used_at DESC, created_at DESC LIMIT 1`,
		project,
	)
	model, err := scanLaunch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLaunchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find most recent launch: %w", err)
	}
	return model.toLaunch(), nil
}

func (r *launchRepository) List(project string, limit int) ([]*Launch, error) {
	query := `SELECT ` + launchColumns + ` FROM launches
		 WHERE project = ? ORDER BY last_used_at DESC, created_at DESC`
	args := []any{project}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list launches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var launches []*Launch
	for rows.Next() {
		model, err := scanLaunch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan launch row: %w", err)
		}
		launches = append(launches, model.toLaunch())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating launch rows: %w", err)
	}
	return launches, nil
}

func (r *launchRepository) Delete(sessionID string) error {
	result, err := r.db.Exec(`DELETE FROM launches WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete launch: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrLaunchNotFound
	}
	return nil
}
