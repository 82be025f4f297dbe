package hook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piaoger/fisher/internal/provider"
)

func writeScript(t *testing.T, dir, name string, mode os.FileMode, lines ...string) string {
	t.Helper()

	content := ""
	for _, line := range lines {
		content += line + "\n"
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	return path
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()

	writeScript(t, dir, "deploy.sh", 0o755,
		"#!/bin/bash",
		`## Fisher-Standalone: {"secret": "hi"}`,
		`echo "hi"`,
	)
	writeScript(t, dir, "another.sh", 0o755,
		"#!/bin/bash",
		`## Fisher-GitLab: {"secret": "token"}`,
		`echo "bye"`,
	)
	// Wrong permissions: not a hook
	writeScript(t, dir, "non-executable.sh", 0o644,
		"#!/bin/bash",
		`## Fisher-Standalone: {"secret": "hi"}`,
	)
	// Hidden files are skipped even when executable
	writeScript(t, dir, ".hidden.sh", 0o755,
		"#!/bin/bash",
		`## Fisher-Standalone: {}`,
	)
	// Subdirectory hook, only collected recursively
	writeScript(t, dir, "ci/build.sh", 0o755,
		"#!/bin/bash",
		`## Fisher-Standalone: {}`,
	)

	hooks, err := Collect(dir, false)
	require.NoError(t, err)
	require.Len(t, hooks, 2)

	names := []string{hooks[0].Name, hooks[1].Name}
	assert.ElementsMatch(t, []string{"deploy.sh", "another.sh"}, names)

	hooks, err = Collect(dir, true)
	require.NoError(t, err)
	require.Len(t, hooks, 3)

	var nested *Hook
	for _, h := range hooks {
		if h.Name == filepath.Join("ci", "build.sh") {
			nested = h
		}
	}
	require.NotNil(t, nested, "recursive collection must keep the relative path")
	assert.True(t, filepath.IsAbs(nested.Exec))
}

func TestCollectParsesSettings(t *testing.T) {
	dir := t.TempDir()

	writeScript(t, dir, "deploy.sh", 0o755,
		"#!/bin/bash",
		`## Fisher-Standalone: {"secret": "hi"}`,
		`## Fisher-Hook: {"priority": 10, "parallel": false}`,
		`echo "deploying"`,
	)

	hooks, err := Collect(dir, false)
	require.NoError(t, err)
	require.Len(t, hooks, 1)

	h := hooks[0]
	assert.Equal(t, 10, h.Priority)
	assert.False(t, h.Parallel)
	require.Len(t, h.Providers, 1)
	assert.Equal(t, provider.KindStandalone, h.Providers[0].Kind)
}

func TestCollectDefaults(t *testing.T) {
	dir := t.TempDir()

	writeScript(t, dir, "plain.sh", 0o755,
		"#!/bin/bash",
		`## Fisher-Standalone: {}`,
	)

	hooks, err := Collect(dir, false)
	require.NoError(t, err)
	require.Len(t, hooks, 1)

	assert.Equal(t, 0, hooks[0].Priority)
	assert.True(t, hooks[0].Parallel)
}

func TestCollectHeadersStopAtCode(t *testing.T) {
	dir := t.TempDir()

	// A header after the first code line is plain script text.
	writeScript(t, dir, "late.sh", 0o755,
		"#!/bin/bash",
		`## Fisher-Standalone: {}`,
		`echo "hi"`,
		`## Fisher-GitLab: {"secret": "x"}`,
	)

	hooks, err := Collect(dir, false)
	require.NoError(t, err)
	require.Len(t, hooks, 1)
	assert.Len(t, hooks[0].Providers, 1)
}

func TestCollectUnknownProvider(t *testing.T) {
	dir := t.TempDir()

	writeScript(t, dir, "invalid.sh", 0o755,
		"#!/bin/bash",
		`## Fisher-InvalidHookDoNotUseThisNamePlease: {}`,
	)

	_, err := Collect(dir, false)
	assert.ErrorIs(t, err, provider.ErrUnknownProvider)
}

func TestCollectNoProvider(t *testing.T) {
	dir := t.TempDir()

	writeScript(t, dir, "bare.sh", 0o755,
		"#!/bin/bash",
		`echo "hi"`,
	)

	_, err := Collect(dir, false)
	assert.Error(t, err)
}

func TestCollectMissingDirectory(t *testing.T) {
	_, err := Collect(filepath.Join(t.TempDir(), "nope"), false)
	assert.Error(t, err)
}
