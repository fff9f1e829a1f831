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

package portfolio_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-rebalance/common"
	"github.com/penny-vault/pv-rebalance/dataframe"
	"github.com/penny-vault/pv-rebalance/portfolio"
)

var _ = Describe("WeightVector", func() {
	It("sorts allocations by weight descending", func() {
		wv := portfolio.NewWeightVector([]string{"AGG", "QQQ", "SPY"}, []float64{0.2, 0.5, 0.3})
		Expect(wv.Tickers()).To(Equal([]string{"QQQ", "SPY", "AGG"}))
	})

	It("breaks equal weights by ticker order", func() {
		wv := portfolio.NewWeightVector([]string{"SPY", "AGG"}, []float64{0.5, 0.5})
		Expect(wv.Tickers()).To(Equal([]string{"AGG", "SPY"}))
	})

	It("drops zero weights from the support", func() {
		wv := portfolio.NewWeightVector([]string{"AGG", "QQQ", "SPY"}, []float64{0.0, 0.4, 0.6})
		Expect(wv.Tickers()).To(Equal([]string{"SPY", "QQQ"}))
	})

	It("normalizes to an exact unit sum", func() {
		wv := portfolio.NewWeightVector([]string{"AGG", "QQQ", "SPY"}, []float64{0.2, 0.3, 0.49})
		wv.Normalize()

		total := 0.0
		for _, alloc := range wv.Allocations {
			total += alloc.Weight
		}
		Expect(total).To(BeNumerically("~", 1.0, 1e-12))
		Expect(wv.Validate(10)).To(BeNil())
	})

	Describe("Validate", func() {
		It("accepts a valid portfolio", func() {
			wv := portfolio.NewWeightVector([]string{"AGG", "SPY"}, []float64{0.4, 0.6})
			Expect(wv.Validate(10)).To(BeNil())
		})

		It("rejects weights that do not sum to 1", func() {
			wv := portfolio.NewWeightVector([]string{"AGG", "SPY"}, []float64{0.4, 0.5})
			Expect(wv.Validate(10)).To(Equal(portfolio.ErrWeightsDoNotSum))
		})

		It("rejects oversized support", func() {
			wv := portfolio.NewWeightVector([]string{"AGG", "QQQ", "SPY"}, []float64{0.3, 0.3, 0.4})
			Expect(wv.Validate(2)).To(Equal(portfolio.ErrTooManyPositions))
		})
	})

	Describe("ReturnSeries", func() {
		It("computes the weighted sum of asset returns", func() {
			tz := common.GetTimezone()
			returns := &dataframe.DataFrame{
				Dates: []time.Time{
					time.Date(2022, 1, 31, 0, 0, 0, 0, tz),
					time.Date(2022, 2, 28, 0, 0, 0, 0, tz),
				},
				ColNames: []string{"AGG", "SPY"},
				Vals: [][]float64{
					{0.01, -0.01},
					{0.04, 0.02},
				},
			}

			wv := portfolio.NewWeightVector([]string{"AGG", "SPY"}, []float64{0.25, 0.75})
			series, err := wv.ReturnSeries(returns)
			Expect(err).To(BeNil())
			Expect(series[0]).To(BeNumerically("~", 0.25*0.01+0.75*0.04, 1e-12))
			Expect(series[1]).To(BeNumerically("~", 0.25*-0.01+0.75*0.02, 1e-12))
		})

		It("errors for tickers missing from the return matrix", func() {
			returns := &dataframe.DataFrame{
				ColNames: []string{"AGG"},
				Vals:     [][]float64{{0.01}},
				Dates:    []time.Time{time.Date(2022, 1, 31, 0, 0, 0, 0, common.GetTimezone())},
			}

			wv := portfolio.NewWeightVector([]string{"SPY"}, []float64{1.0})
			_, err := wv.ReturnSeries(returns)
			Expect(err).To(Equal(portfolio.ErrUnknownTicker))
		})
	})
})

var _ = Describe("Metrics", func() {
	It("annualizes monthly statistics", func() {
		series := []float64{0.01, 0.01, 0.01, 0.01}
		riskFree := []float64{0.0, 0.0, 0.0, 0.0}

		m := portfolio.ComputeMetrics(series, riskFree)
		Expect(m.MeanMonthly).To(BeNumerically("~", 0.01, 1e-12))
		Expect(m.MeanAnnualized).To(BeNumerically("~", math.Pow(1.01, 12)-1, 1e-12))
		Expect(m.VolMonthly).To(BeNumerically("~", 0.0, 1e-12))
		Expect(math.IsNaN(m.SharpeAnnualized)).To(BeTrue())
	})

	It("computes an excess-return sharpe ratio", func() {
		series := []float64{0.02, 0.00, 0.02, 0.00}
		riskFree := []float64{0.001, 0.001, 0.001, 0.001}

		m := portfolio.ComputeMetrics(series, riskFree)
		Expect(m.MeanMonthly).To(BeNumerically("~", 0.01, 1e-12))
		Expect(m.VolMonthly).To(BeNumerically(">", 0))

		rfAnnual := math.Pow(1.001, 12) - 1
		expected := (m.MeanAnnualized - rfAnnual) / m.VolAnnualized
		Expect(m.SharpeAnnualized).To(BeNumerically("~", expected, 1e-12))
	})
})
