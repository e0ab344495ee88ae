package patterns

import (
	"math"
	"sort"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/utils"
)

const maxBuckets = 24 * 60

// Burst is a time bucket holding an unusual number of log records.
type Burst struct {
	Start time.Time
	Count int
	Score float64
}

// DetectBursts buckets records by timestamp and flags buckets whose count
// deviates from the median by at least three mean absolute deviations.
// Empty buckets between the first and last record count as zero. Results are
// in time order.
func DetectBursts(records []map[string]string, width time.Duration) []Burst {
	if width <= 0 {
		width = time.Minute
	}
	var stamps []time.Time
	for _, rec := range records {
		ts := firstField(rec, timestampFields)
		if ts == "" {
			continue
		}
		if at, err := utils.ParseTimestamp(ts, time.Time{}); err == nil {
			stamps = append(stamps, at)
		}
	}
	if len(stamps) < 2 {
		return nil
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	first := stamps[0].Truncate(width)
	n := int(stamps[len(stamps)-1].Sub(first)/width) + 1
	if n > maxBuckets {
		first = stamps[len(stamps)-1].Truncate(width).Add(-time.Duration(maxBuckets-1) * width)
		n = maxBuckets
	}
	counts := make([]float64, n)
	for _, at := range stamps {
		idx := int(at.Sub(first) / width)
		if idx < 0 {
			continue
		}
		counts[idx]++
	}

	median := percentile(counts, 0.5)
	mad := meanAbsoluteDeviation(counts, median)
	if mad == 0 {
		mad = 1
	}

	var bursts []Burst
	for i, c := range counts {
		score := (c - median) / mad
		if score >= 3 {
			bursts = append(bursts, Burst{Start: first.Add(time.Duration(i) * width), Count: int(c), Score: score})
		}
	}
	return bursts
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(math.Round(p * float64(len(sorted)-1)))
	return sorted[max(0, min(idx, len(sorted)-1))]
}

func meanAbsoluteDeviation(values []float64, center float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Abs(v - center)
	}
	return sum / float64(len(values))
}
