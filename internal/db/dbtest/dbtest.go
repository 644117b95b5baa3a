// Package dbtest opens throwaway SQLite databases for package tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/d9705996/huddle/internal/db"
	"gorm.io/gorm"
)

// New returns a migrated database stored in the test's temp dir. It is
// closed when the test finishes.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "huddle.db")
	gdb, err := db.OpenSQLite("file:" + path + "?_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}
