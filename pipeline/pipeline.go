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

// Package pipeline runs one rebalance end to end: resolve the quarter,
// build the aligned return matrix, compute alpha-adjusted expected
// returns, optimize, and assemble the quarterly report. Each run owns
// its intermediate state; runs are idempotent for identical inputs.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/pv-rebalance/data"
	"github.com/penny-vault/pv-rebalance/factor"
	"github.com/penny-vault/pv-rebalance/observability/opentelemetry"
	"github.com/penny-vault/pv-rebalance/optimize"
	"github.com/penny-vault/pv-rebalance/portfolio"
	"github.com/penny-vault/pv-rebalance/report"
	"github.com/penny-vault/pv-rebalance/tradecal"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Config gathers the run parameters around the optimizer tunables
type Config struct {
	Optimizer       optimize.Config
	LookbackYears   int
	MinObservations int
	AlphaBlend      float64
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Optimizer:       optimize.DefaultConfig(),
		LookbackYears:   5,
		MinObservations: 48,
		AlphaBlend:      0.5,
	}
}

// Pipeline wires the collaborators for a rebalance run. All of them are
// injectable so tests can supply synthetic data.
type Pipeline struct {
	Calendar tradecal.Calendar
	Prices   data.Provider
	Factors  data.FactorProvider
	Config   Config
}

// New create a pipeline with the given collaborators
func New(cal tradecal.Calendar, prices data.Provider, factors data.FactorProvider, cfg Config) *Pipeline {
	return &Pipeline{
		Calendar: cal,
		Prices:   prices,
		Factors:  factors,
		Config:   cfg,
	}
}

// Run computes target weights for the quarter containing asOf. On any
// fatal error no rebalance is returned and nothing should be persisted.
func (p *Pipeline) Run(ctx context.Context, asOf time.Time, universe *data.Universe) (*report.Rebalance, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pipeline.Run")
	defer span.End()

	subLog := log.With().Time("AsOf", asOf).Int("UniverseSize", len(universe.Tickers)).Logger()

	rebalanceDate, err := tradecal.FirstTradingDayOfQuarter(ctx, asOf, p.Calendar)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "calendar resolution failed")
		return nil, err
	}

	quarter := tradecal.QuarterLabel(rebalanceDate)
	window := tradecal.EstimationWindow(rebalanceDate, p.Config.LookbackYears)
	subLog = subLog.With().Str("Quarter", quarter).Time("RebalanceDate", rebalanceDate).Logger()
	span.SetAttributes(attribute.KeyValue{
		Key:   "Quarter",
		Value: attribute.StringValue(quarter),
	})

	builder := data.NewBuilder(p.Prices, p.Factors, p.Config.MinObservations)
	rs, err := builder.BuildReturnMatrix(ctx, universe, window.Begin, window.End)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "return matrix construction failed")
		return nil, err
	}

	eligible := rs.Returns.ColCount()
	if len(rs.Excluded) > 0 && len(universe.Tickers) >= p.Config.Optimizer.MaxPositions && eligible < p.Config.Optimizer.MaxPositions {
		subLog.Error().Int("Eligible", eligible).Int("Excluded", len(rs.Excluded)).Msg("history exclusions shrank the universe below the position limit")
		return nil, fmt.Errorf("%w: %d eligible of %d", data.ErrInsufficientHistory, eligible, len(universe.Tickers))
	}

	mean := factor.AdjustedMeans(rs.Returns, rs.Factors, rs.RiskFree, p.Config.AlphaBlend)

	opt := optimize.New(p.Config.Optimizer)
	res, err := opt.Optimize(ctx, rs.Returns, mean)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "optimization failed")
		return nil, err
	}

	weights := portfolio.NewWeightVector(res.Candidates, res.Weights)
	weights.Normalize()
	if err := weights.Validate(p.Config.Optimizer.MaxPositions); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %s", optimize.ErrInfeasibleOptimization, err.Error())
	}

	series, err := weights.ReturnSeries(rs.Returns)
	if err != nil {
		return nil, err
	}
	metrics := portfolio.ComputeMetrics(series, rs.RiskFree)

	reb := &report.Rebalance{
		RunID:           uuid.NewString(),
		Quarter:         quarter,
		AsOf:            asOf,
		RebalanceDate:   rebalanceDate,
		WindowBegin:     window.Begin,
		WindowEnd:       window.End,
		UniverseSize:    len(universe.Tickers),
		UniverseDigest:  universe.Digest(),
		EligibleSize:    eligible,
		Excluded:        rs.Excluded,
		Candidates:      res.Candidates,
		Weights:         weights,
		Metrics:         metrics,
		ShrinkIntensity: res.ShrinkIntensity,
		CreatedAt:       time.Now(),
	}

	// the portfolio-level regression is a diagnostic; a failure here
	// degrades the report rather than aborting the run
	excess := make([]float64, len(series))
	for idx := range series {
		excess[idx] = series[idx] - rs.RiskFree[idx]
	}
	exposure, err := factor.Regress(excess, rs.Factors)
	if err != nil {
		subLog.Warn().Err(err).Msg("portfolio factor regression failed")
		reb.ExposureWarning = err.Error()
	} else {
		reb.Exposure = exposure
	}

	subLog.Info().Int("NumPositions", len(weights.Allocations)).Msg("rebalance computed")
	return reb, nil
}
