package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bencan1a/calendarbot/internal/store"
)

func TestCacheInit_CreatesDatabaseFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "calendarbot.db")

	var stdout, stderr bytes.Buffer
	root := NewRootCommand(&stdout, &stderr)
	root.SetArgs([]string{"--db", dbPath, "cache", "init"})
	require.NoError(t, root.Execute())

	_, err := os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestCacheImport_IngestsRecordsAndUpdatesMetadata(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "calendarbot.db")
	importPath := writeImportFile(t, dir, `[
		{"source_id": "s1", "subject": "Standup", "start_instant": "2025-07-14T09:00:00Z", "end_instant": "2025-07-14T09:15:00Z"},
		{"source_id": "s2", "subject": "Review", "start_instant": "2025-07-14T10:00:00Z", "end_instant": "2025-07-14T11:00:00Z"}
	]`)

	var stdout, stderr bytes.Buffer
	root := NewRootCommand(&stdout, &stderr)
	root.SetArgs([]string{"--db", dbPath, "cache", "import", importPath})
	require.NoError(t, root.Execute())
	assert.Contains(t, stdout.String(), "imported 2 events")

	s, err := store.Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	md, err := s.GetMetadata(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, md.LastSuccessfulFetch)
}

func TestCacheCleanup_ReportsZeroRemovedOnFreshDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "calendarbot.db")

	var stdout, stderr bytes.Buffer
	root := NewRootCommand(&stdout, &stderr)
	root.SetArgs([]string{"--db", dbPath, "--format", "json", "cache", "cleanup"})
	require.NoError(t, root.Execute())

	assert.Contains(t, stdout.String(), "\"events_removed\":0")
}
