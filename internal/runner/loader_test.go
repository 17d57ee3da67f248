package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSuite = `
description: basic tool listing
tests:
  - it: lists available tools
    request:
      jsonrpc: "2.0"
      id: 1
      method: tools/list
    expect:
      response:
        tools: match:type:array
`

const duplicateKeySuite = `
description: duplicate keys
description: duplicate keys again
tests:
  - it: one test
    request:
      jsonrpc: "2.0"
      id: 1
      method: tools/list
`

func writeTempSuite(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSuite_Valid(t *testing.T) {
	path := writeTempSuite(t, "basic.test.mcp.yml", validSuite)
	suite, err := LoadSuite(path)
	require.NoError(t, err)
	assert.Equal(t, "basic tool listing", suite.Description)
	require.Len(t, suite.Tests, 1)
	assert.Equal(t, "lists available tools", suite.Tests[0].It)
}

func TestLoadSuite_RejectsDuplicateKeys(t *testing.T) {
	path := writeTempSuite(t, "dup.test.mcp.yml", duplicateKeySuite)
	_, err := LoadSuite(path)
	require.Error(t, err)
}

func TestLoadSuite_RejectsEmptyTests(t *testing.T) {
	path := writeTempSuite(t, "empty.test.mcp.yml", "description: nothing\ntests: []\n")
	_, err := LoadSuite(path)
	require.Error(t, err)
}

func TestDiscoverSuites_FindsFilesRecursively(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.test.mcp.yml"), []byte(validSuite), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not a suite"), 0o644))
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.test.mcp.yml"), []byte(validSuite), 0o644))

	found, err := DiscoverSuites(dir)
	require.NoError(t, err)
	require.Len(t, found, 2)
}

func TestDiscoverSuites_SingleFileReturnsAsIs(t *testing.T) {
	path := writeTempSuite(t, "solo.test.mcp.yml", validSuite)
	found, err := DiscoverSuites(path)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, found)
}
