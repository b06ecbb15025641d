package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5001, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:5001", cfg.Server.Addr())
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.GoogleModel)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.OpenAIModel)
	assert.Equal(t, "ebook.pdf", cfg.Output.Filename)
	assert.Equal(t, int64(64), cfg.Server.MaxUploadMB)
}

func TestLoadLegacyEnv(t *testing.T) {
	t.Setenv("PORT", "6002")
	t.Setenv("GOOGLE_GENERATIVE_MODEL", "gemini-2.5-flash")
	t.Setenv("EBOOK_OUTPUT_FILENAME", "book.pdf")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 6002, cfg.Server.Port)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.GoogleModel)
	assert.Equal(t, "book.pdf", cfg.Output.Filename)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "server:\n  port: 7000\noutput:\n  dir: /data/out\nlog:\n  format: json\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "/data/out", cfg.Output.Dir)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "ebook.pdf", cfg.Output.Filename)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5001, cfg.Server.Port)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "70000")
	_, err := Load("")
	assert.Error(t, err)
}
