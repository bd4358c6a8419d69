package pipeline

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Summary is the end-of-run report: aggregate corpus size, alignment
// success, span counts per label, and per-partition sizes from the
// splitter.
type Summary struct {
	RunID string

	TotalVerses int
	TotalTokens int

	AlignmentMisses int
	AlignmentRate   float64 // fraction of tokens successfully aligned

	SpansByLabel map[string]int

	PartitionSizes map[string]int // "train", "dev", "test", holdout name
}

// NewSummary computes AlignmentRate from totalTokens and misses and
// returns a ready Summary shell for the caller to fill in.
func NewSummary(runID string, totalVerses, totalTokens, alignmentMisses int) Summary {
	rate := 1.0
	if totalTokens > 0 {
		rate = 1.0 - float64(alignmentMisses)/float64(totalTokens)
	}
	return Summary{
		RunID:           runID,
		TotalVerses:     totalVerses,
		TotalTokens:     totalTokens,
		AlignmentMisses: alignmentMisses,
		AlignmentRate:   rate,
		SpansByLabel:    make(map[string]int),
		PartitionSizes:  make(map[string]int),
	}
}

// WriteTerminal renders s to w: bold headers, green for clean numbers,
// yellow when the alignment rate misses the target.
func (s Summary) WriteTerminal(w io.Writer) {
	title := color.New(color.FgCyan, color.Bold)
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow, color.Bold)

	title.Fprintln(w, "Pipeline run", s.RunID)
	fmt.Fprintf(w, "  verses:  %d\n", s.TotalVerses)
	fmt.Fprintf(w, "  tokens:  %d\n", s.TotalTokens)

	rateColor := ok
	if s.AlignmentRate < 0.98 {
		rateColor = warn
	}
	fmt.Fprint(w, "  alignment rate: ")
	rateColor.Fprintf(w, "%.2f%%\n", s.AlignmentRate*100)

	if len(s.SpansByLabel) > 0 {
		fmt.Fprintln(w, "  spans by label:")
		for label, count := range s.SpansByLabel {
			fmt.Fprintf(w, "    %-20s %d\n", label, count)
		}
	}

	if len(s.PartitionSizes) > 0 {
		fmt.Fprintln(w, "  partitions:")
		for name, count := range s.PartitionSizes {
			fmt.Fprintf(w, "    %-20s %d\n", name, count)
		}
	}
}
