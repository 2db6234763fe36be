package utils

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// HistogramStatus is safe for concurrent use.
type HistogramStatus struct {
	sync.Mutex
	histogram *hdrhistogram.Histogram
}

func NewLantencyStatus(start int64, end int64) *HistogramStatus {
	return &HistogramStatus{
		histogram: hdrhistogram.New(start, end, 3),
	}
}

func (ls *HistogramStatus) Record(n int64) error {
	ls.Lock()
	defer ls.Unlock()
	return ls.histogram.RecordValue(n)
}

func (ls *HistogramStatus) Count() int64 {
	ls.Lock()
	defer ls.Unlock()
	return ls.histogram.TotalCount()
}

type Result struct {
	Percetage float64
	Lantency  float64
}

// Histgram returns the values at the given percentiles (0-100). If w is not
// nil the cumulative distribution is written to it as JSON.
func (ls *HistogramStatus) Histgram(percentiles []float64, w io.Writer) []int64 {
	ls.Lock()
	defer ls.Unlock()
	ret := make([]int64, len(percentiles))
	for i := range percentiles {
		ret[i] = ls.histogram.ValueAtQuantile(percentiles[i])
	}
	if w != nil {
		brackets := ls.histogram.CumulativeDistribution()
		results := make([]Result, len(brackets))
		for i := range brackets {
			results[i] = Result{
				Percetage: brackets[i].Quantile,
				Lantency:  float64(brackets[i].ValueAt),
			}
		}
		data, _ := json.Marshal(results)
		w.Write(data)
	}
	return ret
}
