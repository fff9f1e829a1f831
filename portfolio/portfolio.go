// Copyright 2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package portfolio models target-weight portfolios and their summary
// statistics.
package portfolio

import (
	"errors"
	"math"
	"sort"

	"github.com/penny-vault/pv-rebalance/dataframe"
)

const weightTolerance = 1e-6

var (
	ErrWeightsDoNotSum  = errors.New("weights do not sum to 1")
	ErrNegativeWeight   = errors.New("negative weight")
	ErrTooManyPositions = errors.New("support exceeds position limit")
	ErrUnknownTicker    = errors.New("weight references ticker outside return matrix")
)

// Allocation is one holding of a target portfolio
type Allocation struct {
	Ticker string  `json:"ticker"`
	Weight float64 `json:"weight"`
}

// WeightVector is a long-only target portfolio. Allocations are kept
// sorted by weight descending, ties broken by ticker, and restricted to
// the nonzero support.
type WeightVector struct {
	Allocations []Allocation `json:"allocations"`
}

// NewWeightVector builds a weight vector from parallel ticker and weight
// slices, dropping entries at or below the numerical tolerance
func NewWeightVector(tickers []string, weights []float64) *WeightVector {
	wv := &WeightVector{}
	for idx, ticker := range tickers {
		if weights[idx] > weightTolerance {
			wv.Allocations = append(wv.Allocations, Allocation{
				Ticker: ticker,
				Weight: weights[idx],
			})
		}
	}

	sort.Slice(wv.Allocations, func(i, j int) bool {
		if wv.Allocations[i].Weight != wv.Allocations[j].Weight {
			return wv.Allocations[i].Weight > wv.Allocations[j].Weight
		}
		return wv.Allocations[i].Ticker < wv.Allocations[j].Ticker
	})

	return wv
}

// Normalize rescales the allocations to sum to exactly 1, used after
// dropping sub-tolerance weights from the solver output
func (wv *WeightVector) Normalize() {
	total := 0.0
	for _, alloc := range wv.Allocations {
		total += alloc.Weight
	}
	if total <= 0 {
		return
	}
	for idx := range wv.Allocations {
		wv.Allocations[idx].Weight /= total
	}
}

// Validate checks the long-only portfolio invariants: non-negative
// weights summing to 1 within tolerance with support of at most
// maxPositions holdings
func (wv *WeightVector) Validate(maxPositions int) error {
	if len(wv.Allocations) > maxPositions {
		return ErrTooManyPositions
	}

	total := 0.0
	for _, alloc := range wv.Allocations {
		if alloc.Weight < 0 {
			return ErrNegativeWeight
		}
		total += alloc.Weight
	}

	if math.Abs(total-1.0) > weightTolerance {
		return ErrWeightsDoNotSum
	}

	return nil
}

// Tickers returns the support in allocation order
func (wv *WeightVector) Tickers() []string {
	tickers := make([]string, 0, len(wv.Allocations))
	for _, alloc := range wv.Allocations {
		tickers = append(tickers, alloc.Ticker)
	}
	return tickers
}

// ReturnSeries computes the portfolio's periodic return series as the
// weighted sum of the asset return columns
func (wv *WeightVector) ReturnSeries(returns *dataframe.DataFrame) ([]float64, error) {
	series := make([]float64, returns.Len())
	for _, alloc := range wv.Allocations {
		colIdx := returns.ColIndex(alloc.Ticker)
		if colIdx == -1 {
			return nil, ErrUnknownTicker
		}
		for row := range series {
			series[row] += alloc.Weight * returns.Vals[colIdx][row]
		}
	}
	return series, nil
}
