package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the config dir
// inside it.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "quotelearn")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `server:
  http_port: 9191
  shutdown_timeout: 30s
observability:
  enable_telemetry: true
  service_name: quotelearn-test
rules:
  path: /etc/quotelearn/rules.toml
  watch: true
`, 0600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 8, cfg.Server.MaxConcurrent, "unset keys keep defaults")
	assert.True(t, cfg.Observability.EnableTelemetry)
	assert.Equal(t, "quotelearn-test", cfg.Observability.ServiceName)
	assert.Equal(t, "/etc/quotelearn/rules.toml", cfg.Rules.Path)
	assert.True(t, cfg.Rules.Watch)
	assert.Equal(t, 250*time.Millisecond, cfg.Rules.Debounce)
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `server:
  http_port: 9090
observability:
  service_name: yaml-service
`, 0600)

	t.Setenv("QUOTELEARN_SERVER_HTTP_PORT", "7777")
	t.Setenv("QUOTELEARN_OBSERVABILITY_SERVICE_NAME", "env-service")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "env-service", cfg.Observability.ServiceName)
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	dir := setupTestHome(t)

	cfg, err := LoadWithFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
	assert.Equal(t, "quotelearn", cfg.Observability.ServiceName)
}

func TestLoadWithFile_DefaultPath(t *testing.T) {
	dir := setupTestHome(t)
	writeConfig(t, dir, "server:\n  http_port: 9300\n", 0600)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, 9300, cfg.Server.Port)
}

func TestLoadWithFile_InvalidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 1\n  invalid syntax here\n", 0600)

	_, err := LoadWithFile(path)
	assert.Error(t, err)
}

func TestLoadWithFile_Validation(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 70000\n", 0600)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
}

func TestLoadWithFile_PathOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9000\n"), 0600))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path validation failed")
}

func TestLoadWithFile_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	dir := setupTestHome(t)

	path := writeConfig(t, dir, "server:\n  http_port: 9000\n", 0644)
	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")

	require.NoError(t, os.Chmod(path, 0400))
	_, err = LoadWithFile(path)
	assert.NoError(t, err)
}

func TestLoadWithFile_FileTooLarge(t *testing.T) {
	dir := setupTestHome(t)
	big := "# " + strings.Repeat("x", maxConfigFileSize) + "\n"
	path := writeConfig(t, dir, big, 0600)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestEnsureConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, EnsureConfigDir())
	info, err := os.Stat(filepath.Join(home, ".config", "quotelearn"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"QUOTELEARN_SERVER_HTTP_PORT":                      "server.http_port",
		"QUOTELEARN_STORE_BACKEND":                         "store.backend",
		"QUOTELEARN_STORE__REDIS__ADDR":                    "store.redis.addr",
		"QUOTELEARN_LEARNING__DEDUP__SIMILARITY_THRESHOLD": "learning.dedup.similarity_threshold",
		"QUOTELEARN_LEARNING__EXTRACTION_TIMEOUT":          "learning.extraction_timeout",
		"QUOTELEARN_DEBUG":                                 "debug",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestValidateConfigPath(t *testing.T) {
	dir := setupTestHome(t)

	for _, p := range []string{
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, "prod", "config.yaml"),
		"/etc/quotelearn/config.yaml",
	} {
		assert.NoError(t, validateConfigPath(p), p)
	}

	for _, p := range []string{
		"/etc/passwd",
		"/etc/quotelearn../etc/passwd",
		"/etc/quotelearn/../passwd",
		filepath.Join(dir, "..", "..", "evil.yaml"),
		"/tmp/config.yaml",
	} {
		assert.Error(t, validateConfigPath(p), p)
	}
}
