package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestNew(t *testing.T) {
	database := newTestDB(t)

	var count int
	err := database.conn.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name IN ('assistants', 'provision_log')
	`).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query schema: %v", err)
	}

	if count != 2 {
		t.Errorf("Expected 2 tables, got %d", count)
	}
}

func TestNew_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "ledger.db")
	database, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_ = database.Close()
}

func TestNew_WALMode(t *testing.T) {
	database := newTestDB(t)

	var journalMode string
	if err := database.conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal mode: %v", err)
	}

	if journalMode != "wal" {
		t.Errorf("Expected WAL mode, got %s", journalMode)
	}
}

func TestMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	for i := 0; i < 2; i++ {
		database, err := New(path)
		if err != nil {
			t.Fatalf("New() run %d error = %v", i, err)
		}

		var hasColumn int
		err = database.conn.QueryRow(`
			SELECT COUNT(*) FROM pragma_table_info('assistants') WHERE name='detected_type'
		`).Scan(&hasColumn)
		if err != nil {
			t.Fatalf("Failed to inspect columns: %v", err)
		}
		if hasColumn != 1 {
			t.Errorf("run %d: expected detected_type column", i)
		}
		_ = database.Close()
	}
}

func TestRecordAssistant(t *testing.T) {
	database := newTestDB(t)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	err := database.RecordAssistant(Assistant{
		AssistantID:   "petstore",
		SourceURL:     "https://petstore.example/openapi.json",
		RequestedID:   "petstore",
		DetectedType:  "openapi",
		DocumentCount: 12,
	}, created)
	if err != nil {
		t.Fatalf("RecordAssistant() error = %v", err)
	}

	got, err := database.GetAssistant("petstore")
	if err != nil {
		t.Fatalf("GetAssistant() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetAssistant() returned nil")
	}
	if got.SourceURL != "https://petstore.example/openapi.json" || got.DocumentCount != 12 || got.DetectedType != "openapi" {
		t.Errorf("unexpected row: %+v", got)
	}
	if !got.CreatedAt.Equal(created) || !got.UpdatedAt.Equal(created) {
		t.Errorf("timestamps = %v / %v, want %v", got.CreatedAt, got.UpdatedAt, created)
	}
}

func TestRecordAssistant_ReingestKeepsCreatedAt(t *testing.T) {
	database := newTestDB(t)
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)

	_ = database.RecordAssistant(Assistant{AssistantID: "petstore", SourceURL: "https://v1"}, first)
	if err := database.RecordAssistant(Assistant{AssistantID: "petstore", SourceURL: "https://v2"}, second); err != nil {
		t.Fatalf("RecordAssistant() error = %v", err)
	}

	got, _ := database.GetAssistant("petstore")
	if got.SourceURL != "https://v2" {
		t.Errorf("SourceURL = %s, want https://v2", got.SourceURL)
	}
	if !got.CreatedAt.Equal(first) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, first)
	}
	if !got.UpdatedAt.Equal(second) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, second)
	}
}

func TestGetAssistant_Unknown(t *testing.T) {
	database := newTestDB(t)

	got, err := database.GetAssistant("nope")
	if err != nil {
		t.Fatalf("GetAssistant() error = %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestListAssistants_Order(t *testing.T) {
	database := newTestDB(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		id  string
		age time.Duration
	}{
		{"old", 0},
		{"newest", 2 * time.Hour},
		{"middle", time.Hour},
	}
	for _, tt := range tests {
		if err := database.RecordAssistant(Assistant{AssistantID: tt.id, SourceURL: "u"}, base.Add(tt.age)); err != nil {
			t.Fatal(err)
		}
	}

	list, err := database.ListAssistants()
	if err != nil {
		t.Fatalf("ListAssistants() error = %v", err)
	}

	want := []string{"newest", "middle", "old"}
	if len(list) != len(want) {
		t.Fatalf("got %d rows, want %d", len(list), len(want))
	}
	for i, id := range want {
		if list[i].AssistantID != id {
			t.Errorf("list[%d] = %s, want %s", i, list[i].AssistantID, id)
		}
	}
}

func TestDeleteAssistant(t *testing.T) {
	database := newTestDB(t)
	_ = database.RecordAssistant(Assistant{AssistantID: "petstore", SourceURL: "u"}, time.Now())

	if err := database.DeleteAssistant("petstore"); err != nil {
		t.Fatalf("DeleteAssistant() error = %v", err)
	}
	if err := database.DeleteAssistant("petstore"); err != nil {
		t.Fatalf("second DeleteAssistant() error = %v", err)
	}

	got, _ := database.GetAssistant("petstore")
	if got != nil {
		t.Errorf("expected assistant to be gone, got %+v", got)
	}
}

func TestProvisionLog(t *testing.T) {
	database := newTestDB(t)
	now := time.Now()

	_ = database.LogProvisionAttempt("petstore", "u", now, errors.New("unsupported"))
	_ = database.LogProvisionAttempt("petstore", "u", now, nil)
	_ = database.LogProvisionAttempt("other", "u", now, nil)

	ok, failed, err := database.ProvisionAttempts("petstore")
	if err != nil {
		t.Fatalf("ProvisionAttempts() error = %v", err)
	}
	if ok != 1 || failed != 1 {
		t.Errorf("got %d succeeded / %d failed, want 1 / 1", ok, failed)
	}
}
