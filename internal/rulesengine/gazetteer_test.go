package rulesengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGazetteerFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadGazetteersPlainText(t *testing.T) {
	dir := t.TempDir()
	writeGazetteerFile(t, dir, "deity.txt", "# comment\nGod\nYahweh\n\nAlmighty\n")

	report := &LoadReport{}
	entries := loadGazetteers([]string{filepath.Join(dir, "deity.txt")}, report)

	assert.ElementsMatch(t, []string{"God", "Yahweh", "Almighty"}, entries)
	assert.Equal(t, 1, report.FilesLoaded)
	assert.Equal(t, 3, report.EntriesLoaded)
	assert.Empty(t, report.Warnings)
}

func TestLoadGazetteersCSVAndJSON(t *testing.T) {
	dir := t.TempDir()
	writeGazetteerFile(t, dir, "terms.csv", "God,other\nYahweh,other\n")
	writeGazetteerFile(t, dir, "terms.json", `["Messiah", "Christ"]`)
	writeGazetteerFile(t, dir, "objects.json", `[{"name":"Redeemer"},{"name":""}]`)

	report := &LoadReport{}
	entries := loadGazetteers([]string{
		filepath.Join(dir, "terms.csv"),
		filepath.Join(dir, "terms.json"),
		filepath.Join(dir, "objects.json"),
	}, report)

	assert.ElementsMatch(t, []string{"God", "Yahweh", "Messiah", "Christ", "Redeemer"}, entries)
	assert.Equal(t, 1, report.MalformedLines, "the empty-name object entry is malformed")
}

func TestLoadGazetteersGlobExpansion(t *testing.T) {
	dir := t.TempDir()
	writeGazetteerFile(t, dir, "a.txt", "Alpha\n")
	writeGazetteerFile(t, dir, "b.txt", "Beta\n")

	report := &LoadReport{}
	entries := loadGazetteers([]string{filepath.Join(dir, "*.txt")}, report)

	assert.ElementsMatch(t, []string{"Alpha", "Beta"}, entries)
	assert.Equal(t, 2, report.FilesLoaded)
}

func TestLoadGazetteersMissingFileWarns(t *testing.T) {
	report := &LoadReport{}
	entries := loadGazetteers([]string{"/nonexistent/path/gone.txt"}, report)

	assert.Nil(t, entries)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "gazetteer file not found", report.Warnings[0].Message)
}

func TestLoadGazetteersGlobWithNoMatchesWarns(t *testing.T) {
	dir := t.TempDir()

	report := &LoadReport{}
	entries := loadGazetteers([]string{filepath.Join(dir, "*.nope")}, report)

	assert.Nil(t, entries)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "gazetteer glob matched no files", report.Warnings[0].Message)
}

func TestLoadReportLogWarningsDoesNotPanic(t *testing.T) {
	report := &LoadReport{Warnings: []GazetteerWarning{{File: "x.txt", Message: "boom"}}}
	report.logWarnings(zerolog.Nop())
}
