package stats

import (
	"fmt"
	"math"
)

// WeightSummary describes the distribution of final synaptic weights.
type WeightSummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   int32   `json:"min"`
	Max   int32   `json:"max"`
}

type HistogramBin struct {
	Low   int32 `json:"low"`
	High  int32 `json:"high"`
	Count int   `json:"count"`
}

func SummarizeWeights(weights []int32) WeightSummary {
	if len(weights) == 0 {
		return WeightSummary{}
	}
	summary := WeightSummary{Count: len(weights), Min: weights[0], Max: weights[0]}
	var sum float64
	for _, w := range weights {
		sum += float64(w)
		summary.Min = min(summary.Min, w)
		summary.Max = max(summary.Max, w)
	}
	summary.Mean = sum / float64(len(weights))
	var variance float64
	for _, w := range weights {
		d := float64(w) - summary.Mean
		variance += d * d
	}
	summary.Std = math.Sqrt(variance / float64(len(weights)))
	return summary
}

// WeightHistogram splits [low, high] into bins equal-width buckets. Weights
// outside the range are clamped into the first or last bucket.
func WeightHistogram(weights []int32, low, high int32, bins int) ([]HistogramBin, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("bins must be > 0, got %d", bins)
	}
	if high < low {
		return nil, fmt.Errorf("invalid histogram range [%d, %d]", low, high)
	}
	span := int64(high) - int64(low) + 1
	out := make([]HistogramBin, bins)
	for i := range out {
		out[i].Low = int32(int64(low) + span*int64(i)/int64(bins))
		out[i].High = int32(int64(low) + span*int64(i+1)/int64(bins) - 1)
	}
	for _, w := range weights {
		idx := int((int64(w) - int64(low)) * int64(bins) / span)
		idx = max(0, min(idx, bins-1))
		out[idx].Count++
	}
	return out, nil
}
