package db

func (db *DB) initSchema() error {
	schema := `
	-- Assistants created from this machine
	CREATE TABLE IF NOT EXISTS assistants (
		assistant_id TEXT PRIMARY KEY,
		source_url TEXT NOT NULL,
		requested_id TEXT,
		document_count INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assistants_updated_at ON assistants(updated_at);

	-- Every provisioning attempt, successful or not
	CREATE TABLE IF NOT EXISTS provision_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		assistant_id TEXT NOT NULL,
		source_url TEXT NOT NULL,
		attempted_at DATETIME NOT NULL,
		status TEXT CHECK(status IN ('success', 'failed')),
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_provision_log_assistant ON provision_log(assistant_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}
