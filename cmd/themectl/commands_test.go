package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

func setupThemesDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "ocean")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "theme.json"),
		[]byte(`{"name":"ocean","displayName":"Ocean","schemaVersion":1,"inherits":"dark","tags":["blue"],"colors":{"primary":"teal"}}`), 0644))
	return root
}

func runThemectl(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	root := setupThemesDir(t)
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: bad\nschemaVersion: 1\n"), 0644))

	out, err := runThemectl(t, "", "validate", filepath.Join(root, "ocean"))
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "(ocean)")

	out, err = runThemectl(t, "", "validate", filepath.Join(root, "ocean", "theme.json"), bad)
	assert.EqualError(t, err, "1 of 2 theme documents are invalid")
	assert.Contains(t, out, "displayName is required")
}

func TestResolveCommand(t *testing.T) {
	root := setupThemesDir(t)

	t.Run("json", func(t *testing.T) {
		out, err := runThemectl(t, "", "--themes-dir", root, "resolve", "ocean")

		require.NoError(t, err)
		var theme map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &theme))
		assert.Equal(t, "dark", theme["mostLike"])
		assert.Equal(t, "teal", theme["colors"].(map[string]any)["primary"])
		assert.Equal(t, []any{"blue"}, theme["tags"])
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := runThemectl(t, "", "--themes-dir", root, "resolve", "ocean", "-o", "yaml")

		require.NoError(t, err)
		var theme map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &theme))
		assert.Equal(t, "ocean", theme["name"])
	})

	t.Run("unknown theme", func(t *testing.T) {
		_, err := runThemectl(t, "", "--themes-dir", root, "resolve", "missing")
		assert.ErrorContains(t, err, "theme not found")

		out, err := runThemectl(t, "", "--themes-dir", root, "resolve", "missing", "--fallback")
		require.NoError(t, err)
		assert.Contains(t, out, `"name": "light"`)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := runThemectl(t, "", "--themes-dir", root, "resolve", "ocean", "-o", "xml")
		assert.ErrorContains(t, err, "unknown output format")
	})
}

func TestCSSAndListCommands(t *testing.T) {
	root := setupThemesDir(t)

	out, err := runThemectl(t, "", "--themes-dir", root, "css", "ocean")
	require.NoError(t, err)
	assert.Contains(t, out, "/* Theme: ocean */")
	assert.Contains(t, out, "--primary: teal;")

	out, err = runThemectl(t, "", "--themes-dir", root, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.True(t, strings.HasPrefix(lines[4], "ocean"))
	assert.Contains(t, lines[4], "dark")
}

func TestHashKeyCommand(t *testing.T) {
	key := strings.Repeat("k", 32)

	out, err := runThemectl(t, key+"\n", "hash-key")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte(key)))

	_, err = runThemectl(t, "", "hash-key", "short")
	assert.Error(t, err)
}
