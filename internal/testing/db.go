// Package testing provides testing utilities and helpers for the
// arclear project.
package testing

import (
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/receivia/arclear/internal/database"
	_ "modernc.org/sqlite"
)

// NewTestDB creates a file-backed SQLite database for testing.
// Returns the database instance and a cleanup function that closes the
// connection and removes the file. The cleanup function is idempotent.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	tmpPath, cleanupFile := CreateTempDBFile(t, name)

	db, err := database.New(database.Config{
		Path: tmpPath,
		Name: name,
	})
	if err != nil {
		cleanupFile()
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		cleanupFile()
	}
}

// NewTestDBWithSchema creates a test database and applies a custom
// schema to it.
func NewTestDBWithSchema(t *testing.T, name string, schema string) (*database.DB, func()) {
	t.Helper()

	db, cleanup := NewTestDB(t, name)

	if schema != "" {
		if _, err := db.Conn().Exec(schema); err != nil {
			cleanup()
			t.Fatalf("Failed to execute custom schema for test database %s: %v", name, err)
		}
	}

	return db, cleanup
}

// CreateTempDBFile creates a temporary database file for testing.
// Returns the file path and a cleanup function that removes the file.
func CreateTempDBFile(t *testing.T, name string) (string, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	return tmpPath, func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			t.Logf("Warning: Failed to remove temporary database file %s: %v", tmpPath, err)
		}
	}
}

// GetRawConnection returns the raw *sql.DB connection from a
// database.DB instance.
func GetRawConnection(db *database.DB) *sql.DB {
	return db.Conn()
}
