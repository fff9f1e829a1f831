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

package dataframe

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// PercentChange computes the per-column percent change between consecutive
// rows and returns a new dataframe; the first input row is dropped. For a
// dataframe of month-end prices this yields monthly returns.
func (df *DataFrame) PercentChange() *DataFrame {
	if df.Len() < 2 {
		return &DataFrame{ColNames: df.ColNames, Vals: make([][]float64, len(df.Vals))}
	}

	res := &DataFrame{
		Dates:    df.Dates[1:],
		ColNames: df.ColNames,
		Vals:     make([][]float64, len(df.Vals)),
	}

	for colIdx, col := range df.Vals {
		vals := make([]float64, len(col)-1)
		for rowIdx := 1; rowIdx < len(col); rowIdx++ {
			vals[rowIdx-1] = col[rowIdx]/col[rowIdx-1] - 1.0
		}
		res.Vals[colIdx] = vals
	}

	return res
}

// SubVec subtracts the vector from every column in the dataframe and returns
// a new dataframe; the vector must have one entry per row.
func (df *DataFrame) SubVec(vec []float64) *DataFrame {
	df = df.Copy()
	for colIdx := range df.ColNames {
		for rowIdx := range df.Vals[colIdx] {
			df.Vals[colIdx][rowIdx] -= vec[rowIdx]
		}
	}
	return df
}

// Mean computes the arithmetic mean of each column
func (df *DataFrame) Mean() []float64 {
	means := make([]float64, len(df.Vals))
	for colIdx, col := range df.Vals {
		means[colIdx] = stat.Mean(col, nil)
	}
	return means
}

// CompoundReturn computes the total compounded return of each column, where
// column values are periodic returns
func (df *DataFrame) CompoundReturn() []float64 {
	res := make([]float64, len(df.Vals))
	for colIdx, col := range df.Vals {
		growth := 1.0
		for _, val := range col {
			if !math.IsNaN(val) {
				growth *= 1.0 + val
			}
		}
		res[colIdx] = growth - 1.0
	}
	return res
}
