package pipeline

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// WriteTextfileMetrics renders s as Prometheus metrics and writes them to
// path, for consumption by a node-exporter textfile collector. The
// pipeline runs no metrics HTTP server; a completed batch run is exactly
// what the textfile collector pattern is for.
func WriteTextfileMetrics(s Summary, path string) error {
	reg := prometheus.NewRegistry()

	alignmentRate := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "silverbible_alignment_rate",
		Help: "Fraction of tokens successfully aligned in the most recent run.",
	})
	alignmentRate.Set(s.AlignmentRate)

	versesTotal := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "silverbible_verses_total",
		Help: "Verses processed in the most recent run.",
	})
	versesTotal.Set(float64(s.TotalVerses))

	spansTotal := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "silverbible_spans_total",
		Help: "Spans emitted per label in the most recent run.",
	}, []string{"label"})
	for label, count := range s.SpansByLabel {
		spansTotal.WithLabelValues(label).Set(float64(count))
	}

	partitionSize := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "silverbible_partition_size",
		Help: "Example count per output partition in the most recent run.",
	}, []string{"partition"})
	for name, count := range s.PartitionSizes {
		partitionSize.WithLabelValues(name).Set(float64(count))
	}

	reg.MustRegister(alignmentRate, versesTotal, spansTotal, partitionSize)

	families, err := reg.Gather()
	if err != nil {
		return IndexError("gather metrics: " + err.Error())
	}

	f, err := os.Create(path)
	if err != nil {
		return IndexError("create metrics textfile: " + err.Error())
	}
	defer f.Close()

	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return IndexError("encode metrics textfile: " + err.Error())
		}
	}

	return nil
}
