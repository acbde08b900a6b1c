package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bencan1a/calendarbot/internal/viewmodel"
)

func writeImportFile(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "import.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestSelect_ReturnsUpcomingEventAsFeatured(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "calendarbot.db")

	importPath := writeImportFile(t, dir, `[{
		"source_id": "s1",
		"subject": "Planning",
		"start_instant": "2025-07-14T13:00:00Z",
		"end_instant": "2025-07-14T14:00:00Z"
	}]`)

	var stdout, stderr bytes.Buffer
	root := NewRootCommand(&stdout, &stderr)
	root.SetArgs([]string{"--db", dbPath, "cache", "import", importPath})
	require.NoError(t, root.Execute())

	stdout.Reset()
	root = NewRootCommand(&stdout, &stderr)
	root.SetArgs([]string{"--db", dbPath, "--format", "json", "select", "--now", "2025-07-14T12:00:00Z"})
	require.NoError(t, root.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var vm viewmodel.ViewModel
	require.NoError(t, json.Unmarshal(raw, &vm))

	require.Len(t, vm.NextEvents, 1)
	assert.Equal(t, "Planning", vm.NextEvents[0].Subject)
}

func TestSelect_FeaturedFlagReturnsSamePriorityReadAsRenderer(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "calendarbot.db")

	importPath := writeImportFile(t, dir, `[{
		"source_id": "s1",
		"subject": "Standup",
		"start_instant": "2025-07-14T11:30:00Z",
		"end_instant": "2025-07-14T12:30:00Z"
	}]`)

	var stdout, stderr bytes.Buffer
	root := NewRootCommand(&stdout, &stderr)
	root.SetArgs([]string{"--db", dbPath, "cache", "import", importPath})
	require.NoError(t, root.Execute())

	stdout.Reset()
	root = NewRootCommand(&stdout, &stderr)
	root.SetArgs([]string{"--db", dbPath, "--format", "json", "select", "--now", "2025-07-14T12:00:00Z", "--featured"})
	require.NoError(t, root.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var payload struct {
		Featured *viewmodel.EventData `json:"featured"`
	}
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.NotNil(t, payload.Featured)
	assert.Equal(t, "Standup", payload.Featured.Subject)
}

func TestSelect_RejectsUnparsableNow(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "calendarbot.db")

	var stdout, stderr bytes.Buffer
	root := NewRootCommand(&stdout, &stderr)
	root.SetArgs([]string{"--db", dbPath, "select", "--now", "not-a-time"})

	err := root.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
