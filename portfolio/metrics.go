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

package portfolio

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const periodsPerYear = 12

// Metrics summarizes a monthly return series
type Metrics struct {
	MeanMonthly      float64 `json:"meanMonthly"`
	MeanAnnualized   float64 `json:"meanAnnualized"`
	VolMonthly       float64 `json:"volMonthly"`
	VolAnnualized    float64 `json:"volAnnualized"`
	SharpeAnnualized float64 `json:"sharpeAnnualized"`
}

// ComputeMetrics calculates monthly and annualized summary statistics
// for a monthly return series. Sharpe uses the mean of the aligned
// risk-free series.
func ComputeMetrics(series []float64, riskFree []float64) *Metrics {
	m := &Metrics{
		MeanMonthly: stat.Mean(series, nil),
		VolMonthly:  math.Sqrt(stat.Variance(series, nil)),
	}

	m.MeanAnnualized = math.Pow(1.0+m.MeanMonthly, periodsPerYear) - 1.0
	m.VolAnnualized = m.VolMonthly * math.Sqrt(periodsPerYear)

	if m.VolAnnualized > 0 {
		rfMonthly := stat.Mean(riskFree, nil)
		rfAnnualized := math.Pow(1.0+rfMonthly, periodsPerYear) - 1.0
		m.SharpeAnnualized = (m.MeanAnnualized - rfAnnualized) / m.VolAnnualized
	} else {
		m.SharpeAnnualized = math.NaN()
	}

	return m
}
