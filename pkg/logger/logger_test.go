package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditWritesSeparateFile(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit", "audit.log")
	appPath := filepath.Join(dir, "app.log")

	require.NoError(t, Init(Config{
		Level:       "debug",
		OutputPaths: []string{appPath},
		Audit:       AuditConfig{Enabled: true, Path: auditPath},
	}))
	t.Cleanup(func() { _ = Init(Config{}) })

	Named("dispatch").Info("hello")
	Audit().Info("signed", "wallet", "abc")
	require.NoError(t, Sync())

	raw, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, "signed", entry["msg"])
	assert.Equal(t, "abc", entry["wallet"])

	app, err := os.ReadFile(appPath)
	require.NoError(t, err)
	assert.Contains(t, string(app), `"component":"dispatch"`)
	assert.NotContains(t, string(app), "signed")
}

func TestAuditRequiresPath(t *testing.T) {
	err := Init(Config{Audit: AuditConfig{Enabled: true}})
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "WARN", parseLevel("warning").String())
	assert.Equal(t, "INFO", parseLevel("bogus").String())
}
