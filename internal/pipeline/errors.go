// Package pipeline carries the ambient concerns shared by every batch
// command: typed error kinds, run configuration, the run summary, and
// terminal/metrics reporting.
package pipeline

import (
	"github.com/samber/oops"
)

// Error kind tags, surfaced via oops.Code(err) so callers can branch on
// failure class without string matching.
const (
	CodeConfigError        = "config_error"
	CodeSchemaError        = "schema_error"
	CodeAlignmentMiss      = "alignment_miss"
	CodeGazetteerWarning   = "gazetteer_warning"
	CodeIndexError         = "index_error"
	CodeQueryError         = "query_error"
)

// ConfigError wraps a fatal configuration problem detected at construction
// time of a component (missing rules file, empty enabled set, malformed
// priority list, ratios not summing to 1.0).
func ConfigError(msg string, kv ...any) error {
	return oops.Code(CodeConfigError).With(kv...).Errorf("%s", msg)
}

// SchemaError wraps a fatal store-schema mismatch (a required text column
// absent under strict mode, an expected table missing).
func SchemaError(msg string, kv ...any) error {
	return oops.Code(CodeSchemaError).With(kv...).Errorf("%s", msg)
}

// IndexError wraps a fatal embedding-index problem detected at Retriever
// construction (missing artifacts, shape mismatch).
func IndexError(msg string, kv ...any) error {
	return oops.Code(CodeIndexError).With(kv...).Errorf("%s", msg)
}

// QueryError wraps a recoverable query problem (empty query, unknown
// reference). Callers return an empty result, not a fatal failure, but the
// error is still available for logging.
func QueryError(msg string, kv ...any) error {
	return oops.Code(CodeQueryError).With(kv...).Errorf("%s", msg)
}

// IsCode reports whether err (or a wrapped cause) carries the given oops code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	oerr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return oerr.Code() == code
}
