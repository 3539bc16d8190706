package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Assistant is a ledger row
type Assistant struct {
	AssistantID   string
	SourceURL     string
	RequestedID   string // the id the user asked for; the backend may confirm another
	DetectedType  string
	DocumentCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RecordAssistant upserts an assistant after a successful ingestion.
// Re-ingesting an existing id keeps its created_at and bumps updated_at.
func (db *DB) RecordAssistant(a Assistant, at time.Time) error {
	at = at.UTC()
	_, err := db.conn.Exec(`
		INSERT INTO assistants
			(assistant_id, source_url, requested_id, detected_type, document_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(assistant_id) DO UPDATE SET
			source_url = excluded.source_url,
			requested_id = excluded.requested_id,
			detected_type = excluded.detected_type,
			document_count = excluded.document_count,
			updated_at = excluded.updated_at
	`, a.AssistantID, a.SourceURL, a.RequestedID, a.DetectedType, a.DocumentCount, at, at)
	if err != nil {
		return fmt.Errorf("record assistant %s: %w", a.AssistantID, err)
	}
	return nil
}

// LogProvisionAttempt appends to the provisioning history
func (db *DB) LogProvisionAttempt(assistantID, sourceURL string, at time.Time, failure error) error {
	status, message := "success", ""
	if failure != nil {
		status, message = "failed", failure.Error()
	}
	_, err := db.conn.Exec(`
		INSERT INTO provision_log (assistant_id, source_url, attempted_at, status, error_message)
		VALUES (?, ?, ?, ?, ?)
	`, assistantID, sourceURL, at.UTC(), status, message)
	if err != nil {
		return fmt.Errorf("log provision attempt: %w", err)
	}
	return nil
}

// GetAssistant returns one ledger row, or nil when the id is unknown
func (db *DB) GetAssistant(id string) (*Assistant, error) {
	row := db.conn.QueryRow(`
		SELECT assistant_id, source_url, COALESCE(requested_id, ''), COALESCE(detected_type, ''),
		       document_count, created_at, updated_at
		FROM assistants
		WHERE assistant_id = ?
	`, id)

	a, err := scanAssistant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assistant %s: %w", id, err)
	}
	return a, nil
}

// ListAssistants returns ledger rows, most recently updated first
func (db *DB) ListAssistants() ([]Assistant, error) {
	rows, err := db.conn.Query(`
		SELECT assistant_id, source_url, COALESCE(requested_id, ''), COALESCE(detected_type, ''),
		       document_count, created_at, updated_at
		FROM assistants
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assistant
	for rows.Next() {
		a, err := scanAssistant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// DeleteAssistant forgets an assistant. Deleting an unknown id is not an error.
func (db *DB) DeleteAssistant(id string) error {
	if _, err := db.conn.Exec(`DELETE FROM assistants WHERE assistant_id = ?`, id); err != nil {
		return fmt.Errorf("delete assistant %s: %w", id, err)
	}
	return nil
}

// ProvisionAttempts returns how many attempts were logged for an id, by status
func (db *DB) ProvisionAttempts(id string) (succeeded, failed int, err error) {
	err = db.conn.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM provision_log
		WHERE assistant_id = ?
	`, id).Scan(&succeeded, &failed)
	return succeeded, failed, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAssistant(s scanner) (*Assistant, error) {
	var a Assistant
	err := s.Scan(
		&a.AssistantID,
		&a.SourceURL,
		&a.RequestedID,
		&a.DetectedType,
		&a.DocumentCount,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
