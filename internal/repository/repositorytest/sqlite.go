// Package repositorytest opens throwaway sqlite-backed repositories for tests.
package repositorytest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/unclebandit/campaign-launch-api/internal/db"
	"github.com/unclebandit/campaign-launch-api/internal/repository"
)

// NewSQLite returns a repository over a fresh database file in t.TempDir().
func NewSQLite(t testing.TB) *repository.CampaignRepository {
	t.Helper()

	path := filepath.Join(t.TempDir(), "campaigns.db")
	conn, dialect, err := db.Open(context.Background(), db.Config{Driver: "sqlite", URL: "file:" + path})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return repository.NewCampaignRepository(conn, dialect)
}
