package service

import "math"

// Progress is the fulfillment position of one request
type Progress struct {
	Requested int `json:"requested"`
	Processed int `json:"processed"`
	Remaining int `json:"remaining"`
	Percent   int `json:"percent"`
}

// ComputeProgress derives progress from requested and processed totals.
// A request for zero or negative quantity reports complete; percent is
// rounded to the nearest integer and clamped to [0, 100]; remaining never
// goes below zero.
func ComputeProgress(requested, processed int) Progress {
	if requested <= 0 {
		return Progress{Requested: requested, Processed: processed, Remaining: 0, Percent: 100}
	}

	remaining := requested - processed
	if remaining < 0 {
		remaining = 0
	}

	percent := int(math.Round(float64(processed) / float64(requested) * 100))
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	return Progress{
		Requested: requested,
		Processed: processed,
		Remaining: remaining,
		Percent:   percent,
	}
}

// Complete reports whether the processed total covers the request
func (p Progress) Complete() bool {
	return p.Remaining == 0
}
