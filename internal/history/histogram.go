package history

import "math"

// LinearHistogram counts values into fixed-width buckets. Counts[0] holds
// values below Floor and the last entry holds values at or above the top of
// the highest bucket.
type LinearHistogram struct {
	Floor  float64  `json:"floor"`
	Step   float64  `json:"step"`
	Counts []uint64 `json:"counts"`
}

func NewLinearHistogram(floor, step float64, buckets int) *LinearHistogram {
	return &LinearHistogram{
		Floor:  floor,
		Step:   step,
		Counts: make([]uint64, buckets+2),
	}
}

func (h *LinearHistogram) Insert(v float64) {
	h.Counts[h.index(v)]++
}

func (h *LinearHistogram) Total() uint64 {
	var n uint64
	for _, c := range h.Counts {
		n += c
	}
	return n
}

func (h *LinearHistogram) index(v float64) int {
	if v < h.Floor || math.IsNaN(v) {
		return 0
	}
	i := int((v-h.Floor)/h.Step) + 1
	if i >= len(h.Counts)-1 {
		return len(h.Counts) - 1
	}
	return i
}

func (h *LinearHistogram) clone() *LinearHistogram {
	c := *h
	c.Counts = append([]uint64(nil), h.Counts...)
	return &c
}
