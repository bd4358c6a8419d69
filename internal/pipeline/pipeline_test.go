package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCodeMatchesTaggedErrors(t *testing.T) {
	err := ConfigError("boom", "key", "value")
	assert.True(t, IsCode(err, CodeConfigError))
	assert.False(t, IsCode(err, CodeSchemaError))
	assert.False(t, IsCode(nil, CodeConfigError))
	assert.False(t, IsCode(os.ErrNotExist, CodeConfigError))
}

func writePipelineYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPipelineConfigAppliesDefaults(t *testing.T) {
	path := writePipelineYAML(t, "rules_file: rules.yaml\n")

	cfg, err := LoadPipelineConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "auto", cfg.TextPrefer)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, []float64{0.8, 0.1, 0.1}, cfg.Ratios)
	assert.Equal(t, "holdout", cfg.HoldoutName)
	assert.Equal(t, 32, cfg.Embedding.BatchSize)
	assert.True(t, cfg.Embedding.IncludeContext)
}

func TestLoadPipelineConfigRejectsBadRatios(t *testing.T) {
	path := writePipelineYAML(t, "rules_file: rules.yaml\nratios: [0.5, 0.1, 0.1]\n")

	_, err := LoadPipelineConfig(path)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeConfigError))
}

func TestLoadPipelineConfigRequiresRulesFile(t *testing.T) {
	path := writePipelineYAML(t, "seed: 7\n")

	_, err := LoadPipelineConfig(path)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeConfigError))
}

func TestLoadPipelineConfigReadsEmbeddingSection(t *testing.T) {
	path := writePipelineYAML(t, `rules_file: rules.yaml
seed: 13
holdout_books: [Jude, Philemon]
embedding:
  model: all-MiniLM-L6-v2
  include_context: false
  batch_size: 64
  provider: vertex
  dimension: 384
`)

	cfg, err := LoadPipelineConfig(path)
	require.NoError(t, err)

	assert.Equal(t, int64(13), cfg.Seed)
	assert.Equal(t, []string{"Jude", "Philemon"}, cfg.HoldoutBooks)
	assert.Equal(t, "all-MiniLM-L6-v2", cfg.Embedding.Model)
	assert.False(t, cfg.Embedding.IncludeContext)
	assert.Equal(t, 64, cfg.Embedding.BatchSize)
	assert.Equal(t, "vertex", cfg.Embedding.Provider)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
}

func TestNewSummaryComputesAlignmentRate(t *testing.T) {
	s := NewSummary("run1", 10, 200, 4)
	assert.InDelta(t, 0.98, s.AlignmentRate, 1e-9)

	empty := NewSummary("run2", 0, 0, 0)
	assert.Equal(t, 1.0, empty.AlignmentRate, "an empty corpus aligns trivially")
}

func TestSummaryWriteTerminalIncludesCounts(t *testing.T) {
	s := NewSummary("run1", 31102, 900000, 100)
	s.SpansByLabel["DEITY"] = 12345
	s.PartitionSizes["train"] = 24881

	var buf bytes.Buffer
	s.WriteTerminal(&buf)

	out := buf.String()
	assert.Contains(t, out, "31102")
	assert.Contains(t, out, "DEITY")
	assert.Contains(t, out, "train")
}

func TestWriteTextfileMetricsEmitsGauges(t *testing.T) {
	s := NewSummary("run1", 5, 50, 1)
	s.SpansByLabel["DEITY"] = 3
	s.PartitionSizes["train"] = 4

	path := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, WriteTextfileMetrics(s, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, "silverbible_alignment_rate")
	assert.Contains(t, out, "silverbible_verses_total 5")
	assert.Contains(t, out, `silverbible_spans_total{label="DEITY"} 3`)
	assert.Contains(t, out, `silverbible_partition_size{partition="train"} 4`)
}

func TestNewRunIDsAreSortableAndUnique(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	assert.NotEqual(t, a.String(), b.String())
	assert.Less(t, a.String(), b.String())
	assert.Len(t, a.String(), 26)
}
