package db

import (
	"fmt"
)

// runMigrations applies database migrations for existing databases
func (db *DB) runMigrations() error {
	// Migration 1: Add detected_type to assistants
	if err := db.migration001AddDetectedType(); err != nil {
		return fmt.Errorf("migration 001: %w", err)
	}

	return nil
}

// migration001AddDetectedType records which connector the backend picked for a source
func (db *DB) migration001AddDetectedType() error {
	var hasColumn bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info('assistants')
		WHERE name='detected_type'
	`).Scan(&hasColumn)
	if err != nil {
		return err
	}

	if !hasColumn {
		if _, err := db.conn.Exec(`ALTER TABLE assistants ADD COLUMN detected_type TEXT;`); err != nil {
			return fmt.Errorf("add detected_type column: %w", err)
		}
	}

	return nil
}
