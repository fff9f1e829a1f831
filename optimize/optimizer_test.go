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

package optimize_test

import (
	"context"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-rebalance/common"
	"github.com/penny-vault/pv-rebalance/dataframe"
	"github.com/penny-vault/pv-rebalance/optimize"
)

// syntheticReturns builds a deterministic monthly return matrix. Each
// column follows a distinct sinusoid with a small drift so no two
// columns are collinear.
func syntheticReturns(tickers []string, nPeriods int) *dataframe.DataFrame {
	tz := common.GetTimezone()
	df := &dataframe.DataFrame{
		ColNames: tickers,
		Vals:     make([][]float64, len(tickers)),
	}

	for ii := 0; ii < nPeriods; ii++ {
		df.Dates = append(df.Dates, time.Date(2015, 1, 31, 0, 0, 0, 0, tz).AddDate(0, ii, 0))
	}

	for colIdx := range tickers {
		vals := make([]float64, nPeriods)
		for ii := 0; ii < nPeriods; ii++ {
			drift := 0.002 * float64(colIdx+1)
			vals[ii] = drift + 0.02*math.Sin(float64(ii)*(1.0+0.37*float64(colIdx)))
		}
		df.Vals[colIdx] = vals
	}

	return df
}

var _ = Describe("Optimizer", func() {
	var (
		ctx context.Context
		cfg optimize.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = optimize.DefaultConfig()
	})

	Context("when optimizing a well-behaved universe", func() {
		It("produces a long-only weight vector summing to 1", func() {
			returns := syntheticReturns([]string{"AGG", "EFA", "GLD", "IWM", "QQQ", "SPY", "TLT", "VNQ"}, 60)
			opt := optimize.New(cfg)

			res, err := opt.Optimize(ctx, returns, nil)
			Expect(err).To(BeNil())
			Expect(len(res.Candidates)).To(BeNumerically("<=", cfg.MaxPositions))

			total := 0.0
			for _, w := range res.Weights {
				Expect(w).To(BeNumerically(">=", 0.0))
				Expect(w).To(BeNumerically("<=", cfg.MaxWeight+1e-6))
				total += w
			}
			Expect(total).To(BeNumerically("~", 1.0, 1e-6))
		})

		It("is deterministic over repeated runs", func() {
			returns := syntheticReturns([]string{"AGG", "EFA", "GLD", "IWM", "QQQ", "SPY", "TLT", "VNQ"}, 60)
			opt := optimize.New(cfg)

			res1, err := opt.Optimize(ctx, returns, nil)
			Expect(err).To(BeNil())
			res2, err := opt.Optimize(ctx, returns, nil)
			Expect(err).To(BeNil())

			Expect(res2.Candidates).To(Equal(res1.Candidates))
			Expect(res2.Weights).To(Equal(res1.Weights))
		})

		It("selects the whole universe when it is no larger than the position limit", func() {
			returns := syntheticReturns([]string{"AGG", "GLD", "QQQ", "SPY", "TLT"}, 60)
			opt := optimize.New(cfg)

			res, err := opt.Optimize(ctx, returns, nil)
			Expect(err).To(BeNil())
			Expect(res.Candidates).To(Equal([]string{"AGG", "GLD", "QQQ", "SPY", "TLT"}))

			// five assets with a 20% cap admit exactly one feasible
			// point: equal weights
			for _, w := range res.Weights {
				Expect(w).To(BeNumerically("~", 0.2, 1e-6))
			}
		})

		It("rejects a mean vector with the wrong length", func() {
			returns := syntheticReturns([]string{"QQQ", "SPY", "TLT", "GLD", "AGG", "IWM"}, 60)
			opt := optimize.New(cfg)

			_, err := opt.Optimize(ctx, returns, []float64{0.01, 0.02})
			Expect(err).To(Equal(optimize.ErrDimensionMismatch))
		})
	})

	Context("when the covariance matrix is near singular", func() {
		It("still returns a valid weight vector", func() {
			returns := syntheticReturns([]string{"AGG", "EFA", "GLD", "IWM", "QQQ", "SPY"}, 60)
			// make GLD an exact multiple of AGG so the sample
			// covariance is rank deficient
			aggIdx := returns.ColIndex("AGG")
			gldIdx := returns.ColIndex("GLD")
			for ii := range returns.Vals[gldIdx] {
				returns.Vals[gldIdx][ii] = 0.5 * returns.Vals[aggIdx][ii]
			}

			opt := optimize.New(cfg)
			res, err := opt.Optimize(ctx, returns, nil)
			Expect(err).To(BeNil())

			total := 0.0
			for _, w := range res.Weights {
				Expect(w).To(BeNumerically(">=", 0.0))
				total += w
			}
			Expect(total).To(BeNumerically("~", 1.0, 1e-6))
		})
	})

	Context("when the constraints cannot be satisfied", func() {
		It("reports infeasibility for a universe too small for the weight cap", func() {
			returns := syntheticReturns([]string{"QQQ", "SPY", "TLT"}, 60)
			opt := optimize.New(cfg)

			_, err := opt.Optimize(ctx, returns, nil)
			Expect(err).To(Equal(optimize.ErrInfeasibleOptimization))
		})

		It("errors on an empty return matrix", func() {
			opt := optimize.New(cfg)
			_, err := opt.Optimize(ctx, &dataframe.DataFrame{}, nil)
			Expect(err).To(Equal(optimize.ErrTooFewAssets))
		})
	})

	Context("when the universe exceeds the pre-filter size", func() {
		It("only considers the top assets by compound return", func() {
			tickers := []string{"AGG", "EFA", "GLD", "IWM", "QQQ", "SPY", "TLT", "VNQ"}
			returns := syntheticReturns(tickers, 60)

			cfg.TopN = 5
			cfg.MaxWeight = 0.25
			opt := optimize.New(cfg)

			res, err := opt.Optimize(ctx, returns, nil)
			Expect(err).To(BeNil())

			// drift rises with column index so the top five by
			// compound return are the last five tickers
			for _, ticker := range res.Candidates {
				Expect([]string{"IWM", "QQQ", "SPY", "TLT", "VNQ"}).To(ContainElement(ticker))
			}
		})
	})
})

var _ = Describe("TopWeightSelector", func() {
	newMoments := func(tickers []string, means []float64) *optimize.Moments {
		return &optimize.Moments{
			Tickers: tickers,
			Mean:    means,
		}
	}

	It("ranks by weight descending", func() {
		sel := &optimize.TopWeightSelector{Floor: 2}
		moments := newMoments([]string{"AGG", "QQQ", "SPY"}, []float64{0.001, 0.01, 0.008})
		candidates := sel.Select([]float64{0.1, 0.6, 0.3}, moments, 2)
		Expect(candidates).To(Equal([]string{"QQQ", "SPY"}))
	})

	It("breaks weight ties by ticker lexical order", func() {
		sel := &optimize.TopWeightSelector{Floor: 1}
		moments := newMoments([]string{"ZZZ", "AAA", "MMM"}, []float64{0.01, 0.01, 0.01})
		candidates := sel.Select([]float64{0.25, 0.25, 0.5}, moments, 2)
		Expect(candidates).To(Equal([]string{"AAA", "MMM"}))
	})

	It("fills to the diversification floor by mean return", func() {
		sel := &optimize.TopWeightSelector{Floor: 3}
		moments := newMoments([]string{"AGG", "GLD", "QQQ", "SPY"}, []float64{0.001, 0.005, 0.012, 0.009})
		// only QQQ receives weight from stage 1; GLD and SPY have the
		// next highest means
		candidates := sel.Select([]float64{0, 0, 1.0, 0}, moments, 10)
		Expect(candidates).To(Equal([]string{"GLD", "QQQ", "SPY"}))
	})
})

var _ = Describe("Moments", func() {
	It("computes sample means and covariance", func() {
		tz := common.GetTimezone()
		df := &dataframe.DataFrame{
			Dates: []time.Time{
				time.Date(2020, 1, 31, 0, 0, 0, 0, tz),
				time.Date(2020, 2, 29, 0, 0, 0, 0, tz),
			},
			ColNames: []string{"AGG", "SPY"},
			Vals: [][]float64{
				{0.01, 0.03},
				{0.02, 0.00},
			},
		}

		m := optimize.EstimateMoments(df)
		Expect(m.Mean[0]).To(BeNumerically("~", 0.02, 1e-12))
		Expect(m.Mean[1]).To(BeNumerically("~", 0.01, 1e-12))
		Expect(m.Cov.At(0, 0)).To(BeNumerically("~", 2e-4, 1e-12))
		Expect(m.Cov.At(1, 1)).To(BeNumerically("~", 2e-4, 1e-12))
		Expect(m.Cov.At(0, 1)).To(BeNumerically("~", -2e-4, 1e-12))
	})

	It("restores conditioning through shrinkage", func() {
		returns := syntheticReturns([]string{"AGG", "GLD", "QQQ", "SPY"}, 60)
		// duplicate a column to force singularity
		copy(returns.Vals[1], returns.Vals[0])

		m := optimize.EstimateMoments(returns)
		Expect(math.IsInf(m.ConditionNumber(), 1)).To(BeTrue())

		intensity := m.Shrink(1e8)
		Expect(intensity).To(BeNumerically(">", 0))
		Expect(m.ConditionNumber()).To(BeNumerically("<=", 1e8))
	})

	It("leaves a well conditioned matrix untouched", func() {
		returns := syntheticReturns([]string{"AGG", "GLD", "QQQ", "SPY"}, 60)
		m := optimize.EstimateMoments(returns)
		Expect(m.Shrink(1e8)).To(Equal(0.0))
	})
})
