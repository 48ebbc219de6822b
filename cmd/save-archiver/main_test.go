package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) (saves, backups, path string) {
	t.Helper()
	root := t.TempDir()
	saves = filepath.Join(root, "saves")
	backups = filepath.Join(root, "backups")
	require.NoError(t, os.Mkdir(saves, 0o755))

	path = filepath.Join(root, "config.yaml")
	doc := "source:\n  path: " + saves + "\ndestination:\n  path: " + backups + "\n  compress: true\n  retention:\n    maxKeep: 1\nlogging:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return saves, backups, path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestBackupListRestore(t *testing.T) {
	saves, backups, cfgPath := writeConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(saves, "Slot_1.save"), []byte("first"), 0o644))

	out := execute(t, "--config", cfgPath, "backup")
	assert.Contains(t, out, "1 saves checked, 0 failed")

	des, err := os.ReadDir(backups)
	require.NoError(t, err)
	require.Len(t, des, 1)
	name := des[0].Name()
	assert.True(t, strings.HasPrefix(name, "Slot_1.save_"))
	assert.True(t, strings.HasSuffix(name, ".zip"))

	out = execute(t, "--config", cfgPath, "list", "Slot_1.save")
	assert.Contains(t, out, name)
	assert.Contains(t, out, "zip")

	dest := filepath.Join(t.TempDir(), "copy.save")
	out = execute(t, "--config", cfgPath, "restore", name, "--to", dest)
	assert.Contains(t, out, "restored "+name)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
}

func TestVersionNeedsNoConfig(t *testing.T) {
	out := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "version")
	assert.Equal(t, version+"\n", out)
}
