package pipeline

import (
	"github.com/oklog/ulid/v2"
)

// NewRunID stamps a pipeline run with a lexicographically sortable ID,
// used in the run summary and the Prometheus textfile metrics.
func NewRunID() ulid.ULID {
	return ulid.Make()
}
