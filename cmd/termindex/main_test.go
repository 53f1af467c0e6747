package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	return out.String(), err
}

func TestNormalizeCmd_Args(t *testing.T) {
	out, err := run(t, "", "normalize", "Bódy héight", "Crème Brûlée")
	require.NoError(t, err)
	assert.Equal(t, "BODY HEIGHT\nCREME BRULEE\n", out)
}

func TestNormalizeCmd_Stdin(t *testing.T) {
	out, err := run(t, "\ufeffcafé\r\nÉté\n", "normalize")
	require.NoError(t, err)
	assert.Equal(t, "CAFE\nETE\n", out)
}

func TestNormalizeCmd_Modes(t *testing.T) {
	out, err := run(t, "", "normalize", "--mode", "lowercase_ascii", "Bódy")
	require.NoError(t, err)
	assert.Equal(t, "body\n", out)

	_, err = run(t, "", "normalize", "--mode", "soundex", "x")
	assert.ErrorContains(t, err, "unknown mode")
}

func TestImportCmd_ListsSources(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TERMINDEX_INDEX_DIR", dir)
	t.Setenv("TERMINDEX_CONFIG", "")

	out, err := run(t, "", "import")
	require.NoError(t, err)
	assert.Contains(t, out, "cdc-icd10cm")
	assert.Contains(t, out, "(-> icd10cm)")
	assert.Contains(t, out, "hl7-condition-clinical")
	assert.FileExists(t, filepath.Join(dir, "sources.db"))
}

func TestImportCmd_SetURL(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TERMINDEX_INDEX_DIR", dir)
	t.Setenv("TERMINDEX_CONFIG", "")

	_, err := run(t, "", "import", "--set-url", "https://mirror.example/x.zip")
	assert.ErrorContains(t, err, "requires --source")

	out, err := run(t, "", "import", "--source", "cdc-icd10cm", "--set-url", "https://mirror.example/x.zip")
	require.NoError(t, err)
	assert.Contains(t, out, "https://mirror.example/x.zip")

	_, err = run(t, "", "import", "--source", "nope", "--set-url", "https://mirror.example/x.zip")
	assert.Error(t, err)
}

func TestImportCmd_UnknownSource(t *testing.T) {
	t.Setenv("TERMINDEX_INDEX_DIR", t.TempDir())
	t.Setenv("TERMINDEX_CONFIG", "")

	_, err := run(t, "", "import", "--source", "does-not-exist")
	assert.Error(t, err)
}

func TestParseToolArgs(t *testing.T) {
	args, err := parseToolArgs(
		[]string{"code_system=icd10cm", "filter=a=b"},
		[]string{"offset=10", "count=2.5"},
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"code_system": "icd10cm",
		"filter":      "a=b",
		"offset":      float64(10),
		"count":       2.5,
	}, args)

	_, err = parseToolArgs([]string{"novalue"}, nil)
	assert.Error(t, err)
	_, err = parseToolArgs(nil, []string{"=1"})
	assert.Error(t, err)
	_, err = parseToolArgs(nil, []string{"count=ten"})
	assert.Error(t, err)
}

func TestPrettyJSON(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", prettyJSON(`{"a":1}`))
	assert.Equal(t, "not json", prettyJSON("not json"))
}
