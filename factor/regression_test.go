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

package factor_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-rebalance/common"
	"github.com/penny-vault/pv-rebalance/dataframe"
	"github.com/penny-vault/pv-rebalance/factor"
)

const nObs = 36

func syntheticFactors() *dataframe.DataFrame {
	tz := common.GetTimezone()
	df := &dataframe.DataFrame{
		ColNames: []string{"Mkt-RF", "SMB", "HML", "RMW", "CMA"},
		Vals:     make([][]float64, 5),
	}

	for ii := 0; ii < nObs; ii++ {
		df.Dates = append(df.Dates, time.Date(2018, 1, 31, 0, 0, 0, 0, tz).AddDate(0, ii, 0))
	}

	for colIdx := 0; colIdx < 5; colIdx++ {
		vals := make([]float64, nObs)
		for ii := 0; ii < nObs; ii++ {
			vals[ii] = 0.01*math.Sin(float64(ii)*(1.1+0.41*float64(colIdx))) + 0.001*float64(colIdx)
		}
		df.Vals[colIdx] = vals
	}

	return df
}

var _ = Describe("Regress", func() {
	var factors *dataframe.DataFrame

	BeforeEach(func() {
		factors = syntheticFactors()
	})

	It("recovers known coefficients from a noiseless series", func() {
		alpha := 0.0015
		betas := []float64{1.2, -0.3, 0.5, 0.0, 0.8}

		excess := make([]float64, nObs)
		for ii := 0; ii < nObs; ii++ {
			excess[ii] = alpha
			for colIdx, b := range betas {
				excess[ii] += b * factors.Vals[colIdx][ii]
			}
		}

		exposure, err := factor.Regress(excess, factors)
		Expect(err).To(BeNil())
		Expect(exposure.Alpha).To(BeNumerically("~", alpha, 1e-10))
		for ii, b := range betas {
			Expect(exposure.Betas[ii]).To(BeNumerically("~", b, 1e-8))
		}
		Expect(exposure.RSquared).To(BeNumerically("~", 1.0, 1e-8))
		Expect(exposure.ResidualVariance).To(BeNumerically("~", 0.0, 1e-12))
		Expect(exposure.NObs).To(Equal(nObs))
		Expect(exposure.FactorNames).To(Equal([]string{"Mkt-RF", "SMB", "HML", "RMW", "CMA"}))
	})

	It("annualizes the monthly alpha", func() {
		excess := make([]float64, nObs)
		for ii := 0; ii < nObs; ii++ {
			excess[ii] = 0.001 + factors.Vals[0][ii]
		}

		exposure, err := factor.Regress(excess, factors)
		Expect(err).To(BeNil())
		Expect(exposure.AlphaAnnualized).To(BeNumerically("~", math.Pow(1.001, 12)-1, 1e-8))
	})

	It("rejects a misaligned series", func() {
		excess := make([]float64, nObs-1)
		_, err := factor.Regress(excess, factors)
		Expect(err).To(Equal(factor.ErrMisalignedSeries))
	})

	It("rejects rank-deficient factors", func() {
		copy(factors.Vals[1], factors.Vals[0])

		excess := make([]float64, nObs)
		for ii := range excess {
			excess[ii] = factors.Vals[0][ii]
		}

		_, err := factor.Regress(excess, factors)
		Expect(err).To(Equal(factor.ErrRankDeficientFactors))
	})

	It("rejects a series shorter than the coefficient count", func() {
		short := factors.Trim(factors.Dates[0], factors.Dates[6])
		excess := make([]float64, short.Len())
		_, err := factor.Regress(excess, short)
		Expect(err).To(Equal(factor.ErrTooFewObservations))
	})
})

var _ = Describe("AdjustedMeans", func() {
	var (
		factors  *dataframe.DataFrame
		riskFree []float64
	)

	BeforeEach(func() {
		factors = syntheticFactors()
		riskFree = make([]float64, nObs)
		for ii := range riskFree {
			riskFree[ii] = 0.0002
		}
	})

	It("reproduces the raw mean for a noiseless model series", func() {
		returns := &dataframe.DataFrame{
			Dates:    factors.Dates,
			ColNames: []string{"SPY"},
			Vals:     [][]float64{make([]float64, nObs)},
		}
		for ii := 0; ii < nObs; ii++ {
			returns.Vals[0][ii] = riskFree[ii] + 0.001 + 1.1*factors.Vals[0][ii]
		}

		// with zero residual the model-implied mean equals the sample
		// mean, so the blend weight cannot matter
		full := factor.AdjustedMeans(returns, factors, riskFree, 1.0)
		raw := factor.AdjustedMeans(returns, factors, riskFree, 0.0)
		Expect(full[0]).To(BeNumerically("~", raw[0], 1e-10))
	})

	It("falls back to the raw mean when regression fails", func() {
		copy(factors.Vals[1], factors.Vals[0])

		returns := &dataframe.DataFrame{
			Dates:    factors.Dates,
			ColNames: []string{"SPY"},
			Vals:     [][]float64{make([]float64, nObs)},
		}
		expected := 0.0
		for ii := 0; ii < nObs; ii++ {
			returns.Vals[0][ii] = 0.004 + 0.01*math.Cos(float64(ii))
			expected += returns.Vals[0][ii]
		}
		expected /= float64(nObs)

		means := factor.AdjustedMeans(returns, factors, riskFree, 0.5)
		Expect(means[0]).To(BeNumerically("~", expected, 1e-12))
	})
})
