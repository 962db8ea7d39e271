package onboarding

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifruncillo/timetrack-agent/internal/config"
)

func TestWizardDefaults(t *testing.T) {
	in := strings.NewReader("https://collector.example.com\nkey-1\nuser-1\n\n\n\n")
	var out bytes.Buffer

	cfg, err := NewWizard(in, &out).Run()
	require.NoError(t, err)

	assert.Equal(t, "https://collector.example.com", cfg.APIURL)
	assert.Equal(t, "key-1", cfg.APIKey)
	assert.Equal(t, "user-1", cfg.UserID)
	assert.Equal(t, 300, cfg.ScreenshotIntervalSeconds)
	assert.Equal(t, 600, cfg.IdleThresholdSeconds)
	assert.True(t, cfg.Tray)
	assert.Contains(t, out.String(), "Setup complete.")
}

func TestWizardRepromptsAndParses(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		"", "YOUR_SUPABASE_URL", "http://localhost:8787",
		"k",
		"u",
		"zero", "2",
		"15",
		"n",
	}, "\n") + "\n")
	var out bytes.Buffer

	cfg, err := NewWizard(in, &out).Run()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8787", cfg.APIURL)
	assert.Equal(t, 120, cfg.ScreenshotIntervalSeconds)
	assert.Equal(t, 900, cfg.IdleThresholdSeconds)
	assert.False(t, cfg.Tray)
	assert.Equal(t, 2, strings.Count(out.String(), "Collector URL is required."))
	assert.Contains(t, out.String(), "positive whole number")
}

func TestWizardRejectsPlaceholders(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		"https://collector.example.com",
		"your_api_key", "key-1",
		"YOUR_USER_ID", "user-1",
		"", "", "",
	}, "\n") + "\n")
	var out bytes.Buffer

	cfg, err := NewWizard(in, &out).Run()
	require.NoError(t, err)
	assert.Equal(t, "key-1", cfg.APIKey)
	assert.Equal(t, "user-1", cfg.UserID)
	require.NoError(t, cfg.Validate())
}

func TestWizardAbortsOnEOF(t *testing.T) {
	_, err := NewWizard(strings.NewReader("http://x\n"), &bytes.Buffer{}).Run()
	assert.ErrorIs(t, err, ErrAborted)
}

func TestIsFirstRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	assert.True(t, IsFirstRun(path))

	cfg := config.Default()
	cfg.APIURL, cfg.APIKey, cfg.UserID = "http://x", "k", "u"
	require.NoError(t, config.Save(path, &cfg))
	assert.False(t, IsFirstRun(path))

	require.NoError(t, os.WriteFile(path, []byte(`{"api_url":"YOUR_URL","api_key":"k","user_id":"u"}`), 0o600))
	assert.True(t, IsFirstRun(path))
}
