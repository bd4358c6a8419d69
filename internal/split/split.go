// Package split implements deterministic stratified train/dev/test
// partitioning by book, named holdout groups, and line-delimited JSON
// emission.
package split

import (
	"math/rand"
	"sort"

	"github.com/sola-scriptura-search-api/internal/model"
	"github.com/sola-scriptura-search-api/internal/pipeline"
)

// Ratios is the (train, dev, test) split configuration; the three values
// must be non-negative and sum to 1.0.
type Ratios struct {
	Train float64
	Dev   float64
	Test  float64
}

// Config controls one split run.
type Config struct {
	Seed         int64
	Ratios       Ratios
	HoldoutBooks []string
	HoldoutName  string
}

// Result holds the four possible output partitions. Holdout is nil unless
// HoldoutBooks was non-empty.
type Result struct {
	Train   []model.Example
	Dev     []model.Example
	Test    []model.Example
	Holdout []model.Example
}

const epsilon = 1e-9

// Split partitions examples by book stratification under cfg. It is a pure
// function of its inputs: identical examples, ratios, and seed always
// produce byte-identical partition ordering.
func Split(examples []model.Example, cfg Config) (Result, error) {
	if err := validateRatios(cfg.Ratios); err != nil {
		return Result{}, err
	}

	holdoutSet := make(map[string]bool, len(cfg.HoldoutBooks))
	for _, b := range cfg.HoldoutBooks {
		holdoutSet[b] = true
	}

	var result Result
	groups := make(map[string][]model.Example)
	var bookOrder []string

	for _, ex := range examples {
		book, _ := ex.Meta["book"].(string)
		if holdoutSet[book] {
			result.Holdout = append(result.Holdout, ex)
			continue
		}
		if _, seen := groups[book]; !seen {
			bookOrder = append(bookOrder, book)
		}
		groups[book] = append(groups[book], ex)
	}
	sort.Strings(bookOrder)

	for _, book := range bookOrder {
		group := groups[book]
		rng := rand.New(rand.NewSource(cfg.Seed ^ stableHash(book)))
		shuffled := make([]model.Example, len(group))
		copy(shuffled, group)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		train, dev, test := partitionStratum(shuffled, cfg.Ratios)
		result.Train = append(result.Train, train...)
		result.Dev = append(result.Dev, dev...)
		result.Test = append(result.Test, test...)
	}

	return result, nil
}

func validateRatios(r Ratios) error {
	if r.Train < 0 || r.Dev < 0 || r.Test < 0 {
		return pipeline.ConfigError("split ratios must be non-negative")
	}
	sum := r.Train + r.Dev + r.Test
	if sum < 1.0-epsilon || sum > 1.0+epsilon {
		return pipeline.ConfigError("split ratios must sum to 1.0")
	}
	return nil
}

// partitionStratum splits one shuffled stratum by cumulative ratio,
// guaranteeing at least one example per non-zero-ratio partition when the
// stratum is large enough to afford it. When it isn't, the partition with
// the smallest ratio claims the first element and each further element goes
// to the next-smallest non-zero ratio.
func partitionStratum(items []model.Example, r Ratios) (train, dev, test []model.Example) {
	n := len(items)
	if n == 0 {
		return nil, nil, nil
	}

	type part struct {
		ratio float64
		out   *[]model.Example
	}
	parts := []part{
		{r.Train, &train},
		{r.Dev, &dev},
		{r.Test, &test},
	}

	nonZero := 0
	for _, p := range parts {
		if p.ratio > 0 {
			nonZero++
		}
	}

	if n < nonZero {
		sort.SliceStable(parts, func(i, j int) bool {
			if parts[i].ratio == 0 {
				return false
			}
			if parts[j].ratio == 0 {
				return true
			}
			return parts[i].ratio < parts[j].ratio
		})
		for i, item := range items {
			*parts[i].out = append(*parts[i].out, item)
		}
		return train, dev, test
	}

	counts := allocateCounts(n, r)
	idx := 0
	*parts[0].out = append(*parts[0].out, items[idx:idx+counts[0]]...)
	idx += counts[0]
	*parts[1].out = append(*parts[1].out, items[idx:idx+counts[1]]...)
	idx += counts[1]
	*parts[2].out = append(*parts[2].out, items[idx:idx+counts[2]]...)

	return train, dev, test
}

// allocateCounts computes per-partition item counts summing to n, giving
// each non-zero ratio at least one item when n permits, using largest-
// remainder rounding for the rest.
func allocateCounts(n int, r Ratios) [3]int {
	ratios := [3]float64{r.Train, r.Dev, r.Test}
	var counts [3]int
	var remainders [3]float64

	remaining := n
	for i, ratio := range ratios {
		if ratio == 0 {
			continue
		}
		raw := ratio * float64(n)
		counts[i] = int(raw)
		if counts[i] == 0 {
			counts[i] = 1
		}
		remainders[i] = raw - float64(counts[i])
		remaining -= counts[i]
	}

	for remaining > 0 {
		best := -1
		for i, ratio := range ratios {
			if ratio == 0 {
				continue
			}
			if best == -1 || remainders[i] > remainders[best] {
				best = i
			}
		}
		if best == -1 {
			break
		}
		counts[best]++
		remainders[best] = -1
		remaining--
	}
	for remaining < 0 {
		worst := -1
		for i, c := range counts {
			if c <= 1 {
				continue
			}
			if worst == -1 || c > counts[worst] {
				worst = i
			}
		}
		if worst == -1 {
			break
		}
		counts[worst]--
		remaining++
	}

	return counts
}

// stableHash is a small FNV-1a style hash used to derive a per-book seed
// offset so that shuffles across books are independent but still fully
// determined by cfg.Seed and the book name.
func stableHash(s string) int64 {
	var h uint64 = 14695981039346656037
	for _, b := range []byte(s) {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return int64(h)
}
