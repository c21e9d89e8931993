package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad_ReadsProjectFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "polyscan.yml", `
languages: [go, python]
excludes:
  - "**/node_modules/**"
timeoutSeconds: 45
jobs: 4
maxSources: 3
databasePath: graph.db
delegateCommands:
  ruby:
    command: ruby-parser
    args: ["--stdio"]
    extensions: [".rb"]
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"go", "python"}, cfg.Languages)
	assert.Equal(t, []string{"**/node_modules/**"}, cfg.Excludes)
	assert.Equal(t, 45*time.Second, cfg.Timeout())
	assert.Equal(t, 4, cfg.Jobs)
	assert.Equal(t, 3, cfg.MaxSources)
	assert.Equal(t, "graph.db", cfg.DatabasePath)

	ruby, ok := cfg.DelegateCommands["ruby"]
	require.True(t, ok)
	assert.Equal(t, "ruby-parser", ruby.Command)
	assert.Equal(t, []string{"--stdio"}, ruby.Args)
	assert.Equal(t, []string{".rb"}, ruby.Extensions)
}

func TestLoad_MissingFileYieldsZeroValue(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.Languages)
	assert.Equal(t, time.Duration(0), cfg.Timeout())
}

func TestLoad_BadYAMLIsAnError(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "polyscan.yaml", "languages: [unclosed")

	_, err := Load(dir)
	require.Error(t, err)
}

func TestLanguageEnabled(t *testing.T) {
	all := &ProjectConfig{}
	assert.True(t, all.LanguageEnabled("go"), "empty set enables everything")

	some := &ProjectConfig{Languages: []string{"go", "rust"}}
	assert.True(t, some.LanguageEnabled("rust"))
	assert.False(t, some.LanguageEnabled("python"))
}
