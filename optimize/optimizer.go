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

// Package optimize implements a two-stage cardinality-constrained
// mean-variance optimizer. Stage 1 solves a convex long-only
// mean-variance program over the full universe and ranks assets by the
// resulting weight; stage 2 re-estimates moments on the surviving
// candidates and solves the same program over that subset. The two-stage
// split is a tractable approximation of the combinatorial best-subset
// problem, not a guarantee of the global cardinality-constrained optimum.
package optimize

import (
	"context"
	"math"
	"sort"

	"github.com/penny-vault/pv-rebalance/dataframe"
	"github.com/penny-vault/pv-rebalance/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const weightEps = 1e-8

// Config holds the optimizer tunables. Higher RiskAversion biases toward
// the minimum-variance portfolio, lower values toward maximum return.
type Config struct {
	RiskAversion         float64
	MaxWeight            float64
	MaxPositions         int
	TopN                 int
	DiversificationFloor int
	ConditionThreshold   float64
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		RiskAversion:         5.0,
		MaxWeight:            0.2,
		MaxPositions:         10,
		TopN:                 50,
		DiversificationFloor: 5,
		ConditionThreshold:   1e8,
	}
}

// Selector chooses the candidate subset from stage 1 weights. Pluggable
// so alternative selection heuristics can replace the default ranking
// without touching stage 2.
type Selector interface {
	Select(weights []float64, moments *Moments, k int) []string
}

// TopWeightSelector ranks assets by stage 1 weight descending with ties
// broken by ticker lexical order. If fewer than Floor assets receive
// positive weight the remaining slots are filled by highest mean return.
type TopWeightSelector struct {
	Floor int
}

func (s *TopWeightSelector) Select(weights []float64, moments *Moments, k int) []string {
	type ranked struct {
		ticker string
		weight float64
		mean   float64
	}

	pool := make([]ranked, len(weights))
	for idx, w := range weights {
		pool[idx] = ranked{
			ticker: moments.Tickers[idx],
			weight: w,
			mean:   moments.Mean[idx],
		}
	}

	sort.Slice(pool, func(i, j int) bool {
		if pool[i].weight != pool[j].weight {
			return pool[i].weight > pool[j].weight
		}
		return pool[i].ticker < pool[j].ticker
	})

	candidates := make([]string, 0, k)
	rest := make([]ranked, 0, len(pool))
	for _, r := range pool {
		if r.weight > weightEps && len(candidates) < k {
			candidates = append(candidates, r.ticker)
		} else {
			rest = append(rest, r)
		}
	}

	// fill to the diversification floor from the remaining assets by
	// raw mean return
	floor := s.Floor
	if floor > len(pool) {
		floor = len(pool)
	}
	if floor > k {
		floor = k
	}
	if len(candidates) < floor {
		sort.Slice(rest, func(i, j int) bool {
			if rest[i].mean != rest[j].mean {
				return rest[i].mean > rest[j].mean
			}
			return rest[i].ticker < rest[j].ticker
		})
		for _, r := range rest {
			if len(candidates) >= floor {
				break
			}
			candidates = append(candidates, r.ticker)
		}
	}

	sort.Strings(candidates)
	return candidates
}

// Result is the output of one optimization run
type Result struct {
	Candidates      []string
	Weights         []float64
	ShrinkIntensity float64
	Condition       float64
}

// Optimizer maps a return matrix to a sparse long-only weight vector
type Optimizer struct {
	cfg      Config
	selector Selector
}

// New create an optimizer with the default selection policy
func New(cfg Config) *Optimizer {
	return &Optimizer{
		cfg: cfg,
		selector: &TopWeightSelector{
			Floor: cfg.DiversificationFloor,
		},
	}
}

// WithSelector replaces the stage 1 selection policy
func (opt *Optimizer) WithSelector(s Selector) *Optimizer {
	opt.selector = s
	return opt
}

// Optimize runs both stages over the return matrix. The mean vector, when
// non-nil, replaces the sample means in both stages; it must align with
// the return columns. Identical inputs always produce identical output.
func (opt *Optimizer) Optimize(ctx context.Context, returns *dataframe.DataFrame, mean []float64) (*Result, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "optimize.Optimize")
	defer span.End()

	subLog := log.With().Int("NumAssets", returns.ColCount()).Int("NumPeriods", returns.Len()).Logger()

	if mean != nil && len(mean) != returns.ColCount() {
		return nil, ErrDimensionMismatch
	}
	if returns.ColCount() == 0 {
		return nil, ErrTooFewAssets
	}

	// cheap pre-filter keeps the stage 1 problem small on large
	// universes
	returns, mean = opt.prefilter(returns, mean)

	// stage 1: rank assets by their weight in the unconstrained
	// cardinality solution
	moments := EstimateMoments(returns)
	if mean != nil {
		moments.Mean = mean
	}
	condition := moments.ConditionNumber()
	if intensity := moments.Shrink(opt.cfg.ConditionThreshold); intensity > 0 {
		subLog.Info().Float64("Intensity", intensity).Float64("Condition", condition).Msg("applied covariance shrinkage")
	}

	stage1, err := solveQP(moments.Mean, moments.Cov, opt.cfg.RiskAversion, opt.cfg.MaxWeight)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stage 1 solve failed")
		return nil, err
	}

	candidates := opt.selector.Select(stage1, moments, opt.cfg.MaxPositions)
	span.SetAttributes(attribute.KeyValue{
		Key:   "NumCandidates",
		Value: attribute.IntValue(len(candidates)),
	})

	// stage 2: re-estimate moments on the candidate subset rather than
	// slicing the stage 1 covariance; the subset estimate can differ
	// from a submatrix view after shrinkage
	sub := returns.Select(candidates...)
	subMoments := EstimateMoments(sub)
	if mean != nil {
		meanByTicker := make(map[string]float64, len(mean))
		for idx, ticker := range returns.ColNames {
			meanByTicker[ticker] = mean[idx]
		}
		for idx, ticker := range subMoments.Tickers {
			subMoments.Mean[idx] = meanByTicker[ticker]
		}
	}

	subCondition := subMoments.ConditionNumber()
	intensity := subMoments.Shrink(opt.cfg.ConditionThreshold)
	if intensity > 0 {
		subLog.Info().Float64("Intensity", intensity).Float64("Condition", subCondition).Msg("applied covariance shrinkage to candidate subset")
	}

	weights, err := solveQP(subMoments.Mean, subMoments.Cov, opt.cfg.RiskAversion, opt.cfg.MaxWeight)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stage 2 solve failed")
		return nil, err
	}

	// validate the solution; infeasibility here indicates a solver
	// defect rather than a bad input
	total := 0.0
	for idx := range weights {
		if weights[idx] < 0 {
			if weights[idx] < -1e-9 {
				return nil, ErrInfeasibleOptimization
			}
			weights[idx] = 0
		}
		total += weights[idx]
	}
	if math.Abs(total-1.0) > 1e-6 {
		return nil, ErrInfeasibleOptimization
	}

	return &Result{
		Candidates:      candidates,
		Weights:         weights,
		ShrinkIntensity: intensity,
		Condition:       subCondition,
	}, nil
}

// prefilter keeps the TopN assets by compound return over the estimation
// window, ties broken by ticker lexical order
func (opt *Optimizer) prefilter(returns *dataframe.DataFrame, mean []float64) (*dataframe.DataFrame, []float64) {
	if opt.cfg.TopN <= 0 || returns.ColCount() <= opt.cfg.TopN {
		return returns, mean
	}

	type ranked struct {
		ticker string
		total  float64
		idx    int
	}

	totals := returns.CompoundReturn()
	pool := make([]ranked, returns.ColCount())
	for idx, ticker := range returns.ColNames {
		pool[idx] = ranked{
			ticker: ticker,
			total:  totals[idx],
			idx:    idx,
		}
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].total != pool[j].total {
			return pool[i].total > pool[j].total
		}
		return pool[i].ticker < pool[j].ticker
	})

	kept := make([]string, 0, opt.cfg.TopN)
	meanByIdx := make(map[string]int, opt.cfg.TopN)
	for _, r := range pool[:opt.cfg.TopN] {
		kept = append(kept, r.ticker)
		meanByIdx[r.ticker] = r.idx
	}

	// keep columns lexically ordered so downstream ranking is stable
	sort.Strings(kept)

	var keptMean []float64
	if mean != nil {
		keptMean = make([]float64, 0, len(kept))
		for _, ticker := range kept {
			keptMean = append(keptMean, mean[meanByIdx[ticker]])
		}
	}

	return returns.Select(kept...), keptMean
}
