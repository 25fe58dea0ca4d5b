package incident

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportStore_SaveAndLoad(t *testing.T) {
	t.Parallel()

	store := NewReportStore(filepath.Join(t.TempDir(), "incidents"))

	resolvedAt := time.Date(2026, 8, 26, 13, 0, 0, 0, time.UTC)
	incident := &Incident{
		ID:                "INC-brute_force-1",
		RuleID:            "brute_force",
		Title:             "Possible brute-force attack",
		Severity:          SeverityHigh,
		Status:            StatusResolved,
		DetectedAt:        time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC),
		Source:            "alice",
		Indicators:        []string{"2026-08-26T11:59:00Z auth_failure: authentication failed"},
		AffectedResources: []string{"vault"},
		ResponseActions:   []ResponseAction{ActionAlert},
		Details:           map[string]string{"rule_id": "brute_force"},
		ResolvedAt:        &resolvedAt,
		ResolutionNotes:   "password rotated",
	}

	require.NoError(t, store.Save(incident))

	loaded, err := store.Load(incident.ID)
	require.NoError(t, err)
	assert.Equal(t, incident.ID, loaded.ID)
	assert.Equal(t, incident.RuleID, loaded.RuleID)
	assert.Equal(t, incident.Severity, loaded.Severity)
	assert.Equal(t, incident.Status, loaded.Status)
	assert.True(t, incident.DetectedAt.Equal(loaded.DetectedAt))
	assert.Equal(t, incident.Indicators, loaded.Indicators)
	assert.Equal(t, incident.AffectedResources, loaded.AffectedResources)
	assert.Equal(t, incident.ResponseActions, loaded.ResponseActions)
	assert.Equal(t, incident.Details, loaded.Details)
	require.NotNil(t, loaded.ResolvedAt)
	assert.True(t, resolvedAt.Equal(*loaded.ResolvedAt))
	assert.Equal(t, incident.ResolutionNotes, loaded.ResolutionNotes)
}

func TestReportStore_FilePermissions(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}

	dir := filepath.Join(t.TempDir(), "incidents")
	store := NewReportStore(dir)
	require.NoError(t, store.Save(&Incident{ID: "INC-1", Status: StatusNew}))

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())

	info, err := os.Stat(filepath.Join(dir, "INC-1.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestReportStore_LoadNotFound(t *testing.T) {
	t.Parallel()

	store := NewReportStore(t.TempDir())
	_, err := store.Load("INC-missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incident not found")
}

func TestReportStore_List(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewReportStore(dir)
	require.NoError(t, store.Save(&Incident{ID: "INC-1", Status: StatusNew}))
	require.NoError(t, store.Save(&Incident{ID: "INC-2", Status: StatusResolved}))

	// Garbage in the directory is skipped, not fatal
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("not json"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("notes"), 0o600))

	incidents, err := store.List()
	require.NoError(t, err)
	assert.Len(t, incidents, 2)
}

func TestReportStore_ListMissingDir(t *testing.T) {
	t.Parallel()

	store := NewReportStore(filepath.Join(t.TempDir(), "never-created"))
	incidents, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, incidents)
}
