// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package smoothing turns noisy scalar sensor streams into stable values.
//
// The same outlier-filtered average is used for distance, light level,
// pitch and roll histories.
package smoothing

import (
	"math"
	"sort"
)

// OutlierTolerance is the fraction of the median a sample may deviate by
// before it is rejected from the filtered average.
const OutlierTolerance = 0.3

// minFilterSamples is the history length from which outlier rejection applies.
const minFilterSamples = 3

// FilteredMean returns an outlier-resistant average of values.
//
//   - no values: latest is returned as-is
//   - fewer than 3 values: plain arithmetic mean
//   - otherwise: samples farther than 30% from the median are dropped and
//     the rest averaged; if every sample is dropped the plain mean is used
func FilteredMean(values []float64, latest float64) float64 {
	if len(values) == 0 {
		return latest
	}
	if len(values) < minFilterSamples {
		return Mean(values)
	}

	median := Median(values)
	limit := math.Abs(median) * OutlierTolerance

	var sum float64
	var kept int
	for _, v := range values {
		if math.Abs(v-median) < limit {
			sum += v
			kept++
		}
	}
	if kept == 0 {
		return Mean(values)
	}
	return sum / float64(kept)
}

// Median returns the upper median (sorted[n/2]) of values, or 0 when empty.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}

// Mean returns the arithmetic mean of values, or 0 when empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance returns the population variance of values, or 0 when empty.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var acc float64
	for _, v := range values {
		d := v - mean
		acc += d * d
	}
	return acc / float64(len(values))
}
