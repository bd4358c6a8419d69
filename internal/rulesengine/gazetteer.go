package rulesengine

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog"
)

// GazetteerWarning records a non-fatal problem encountered while loading a
// gazetteer: a missing file, an unreadable file, or a malformed line.
// These never abort a run; they accumulate into the load report.
type GazetteerWarning struct {
	File    string
	Message string
}

// LoadReport aggregates the non-fatal outcomes of loading every gazetteer
// referenced by the rules file, across all labels.
type LoadReport struct {
	Warnings       []GazetteerWarning
	MalformedLines int
	FilesLoaded    int
	EntriesLoaded  int
}

func (r *LoadReport) warn(file, msg string) {
	r.Warnings = append(r.Warnings, GazetteerWarning{File: file, Message: msg})
}

// jsonObjectEntry is the shape accepted for "JSON list of objects with a
// name key" gazetteer files.
type jsonObjectEntry struct {
	Name string `json:"name"`
}

// expandGazetteerPaths resolves a configured gazetteer_files entry, which
// may be a literal path or a glob pattern, to the literal files it matches.
// A pattern matching zero files is itself a GazetteerWarning, not an error.
func expandGazetteerPaths(pattern string, report *LoadReport) []string {
	if !strings.ContainsAny(pattern, "*?[{") {
		if _, err := os.Stat(pattern); err != nil {
			report.warn(pattern, "gazetteer file not found")
			return nil
		}
		return []string{pattern}
	}

	g, err := glob.Compile(pattern, filepath.Separator)
	if err != nil {
		report.warn(pattern, fmt.Sprintf("invalid gazetteer glob: %v", err))
		return nil
	}

	dir := filepath.Dir(pattern)
	entries, err := os.ReadDir(dir)
	if err != nil {
		report.warn(pattern, fmt.Sprintf("cannot list gazetteer glob directory: %v", err))
		return nil
	}

	var matched []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		full := filepath.Join(dir, e.Name())
		if g.Match(full) {
			matched = append(matched, full)
		}
	}
	if len(matched) == 0 {
		report.warn(pattern, "gazetteer glob matched no files")
	}
	return matched
}

// loadGazetteerFile loads one gazetteer file, sniffing its format from
// content/extension: plain text (one entry per line, '#' comments), CSV/TSV
// (first column), or JSON (list of strings or list of {"name": ...} objects).
func loadGazetteerFile(path string, report *LoadReport) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		report.warn(path, fmt.Sprintf("cannot read gazetteer file: %v", err))
		return nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	var entries []string

	switch ext {
	case ".json":
		entries = parseJSONGazetteer(data, path, report)
	case ".csv":
		entries = parseDelimitedGazetteer(data, ',', path, report)
	case ".tsv":
		entries = parseDelimitedGazetteer(data, '\t', path, report)
	default:
		entries = parsePlainGazetteer(data)
	}

	report.FilesLoaded++
	report.EntriesLoaded += len(entries)
	return entries
}

func parsePlainGazetteer(data []byte) []string {
	var entries []string
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	return entries
}

func parseDelimitedGazetteer(data []byte, delim rune, path string, report *LoadReport) []string {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.Comma = delim
	r.FieldsPerRecord = -1

	var entries []string
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		if len(record) == 0 {
			continue
		}
		first := strings.TrimSpace(record[0])
		if first == "" || strings.HasPrefix(first, "#") {
			report.MalformedLines++
			continue
		}
		entries = append(entries, first)
	}
	return entries
}

func parseJSONGazetteer(data []byte, path string, report *LoadReport) []string {
	var asStrings []string
	if err := json.Unmarshal(data, &asStrings); err == nil {
		return asStrings
	}

	var asObjects []jsonObjectEntry
	if err := json.Unmarshal(data, &asObjects); err == nil {
		entries := make([]string, 0, len(asObjects))
		for _, o := range asObjects {
			if o.Name == "" {
				report.MalformedLines++
				continue
			}
			entries = append(entries, o.Name)
		}
		return entries
	}

	report.warn(path, "gazetteer JSON is neither a list of strings nor a list of {name} objects")
	return nil
}

// loadGazetteers resolves and loads every gazetteer_files entry for one
// label, expanding glob patterns first. Warnings accumulate into report;
// the caller logs report.Warnings once after every label has loaded.
func loadGazetteers(files []string, report *LoadReport) []string {
	var all []string
	for _, pattern := range files {
		paths := expandGazetteerPaths(pattern, report)
		for _, p := range paths {
			entries := loadGazetteerFile(p, report)
			all = append(all, entries...)
		}
	}
	return all
}

// logWarnings emits every accumulated gazetteer warning through log.
func (r *LoadReport) logWarnings(log zerolog.Logger) {
	for _, w := range r.Warnings {
		log.Warn().Str("file", w.File).Str("reason", w.Message).Msg("gazetteer warning")
	}
}
