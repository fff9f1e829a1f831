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

package data

import (
	"context"
	"time"

	"github.com/penny-vault/pv-rebalance/common"
	"github.com/penny-vault/pv-rebalance/dataframe"
	"github.com/penny-vault/pv-rebalance/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// Exclusion records a ticker dropped from the return matrix and why
type Exclusion struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
	Count  int    `json:"observations"`
}

// ReturnSet is the aligned monthly data the optimizer and factor model
// consume. Returns and Factors share the same date index.
type ReturnSet struct {
	Returns  *dataframe.DataFrame
	Factors  *dataframe.DataFrame
	RiskFree []float64
	Excluded []Exclusion
}

// Builder assembles aligned monthly return matrices from a price provider
// and a factor provider
type Builder struct {
	Prices          Provider
	Factors         FactorProvider
	MinObservations int
}

// NewBuilder create a return matrix builder
func NewBuilder(prices Provider, factors FactorProvider, minObservations int) *Builder {
	return &Builder{
		Prices:          prices,
		Factors:         factors,
		MinObservations: minObservations,
	}
}

// BuildReturnMatrix downloads monthly adjusted closes for every universe
// ticker over [begin, end], converts them to simple returns, drops tickers
// with fewer than MinObservations observations, and aligns the survivors
// with the factor series on common month ends.
func (b *Builder) BuildReturnMatrix(ctx context.Context, universe *Universe, begin time.Time, end time.Time) (*ReturnSet, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "data.BuildReturnMatrix")
	defer span.End()

	subLog := log.With().Time("Begin", begin).Time("End", end).Int("UniverseSize", len(universe.Tickers)).Logger()

	if universe == nil || len(universe.Tickers) == 0 {
		return nil, ErrEmptyUniverse
	}

	prices, err := b.Prices.GetDataForPeriod(ctx, universe.Tickers, MetricAdjustedClose, FrequencyMonthly, begin, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "price download failed")
		return nil, err
	}

	factors, err := b.Factors.GetFactorsForPeriod(ctx, begin, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "factor download failed")
		return nil, err
	}

	// a month whose calendar end falls after the window end is only
	// partially covered and must not contribute a return
	cutoff := end.AddDate(0, 0, 1)
	returns := normalizeMonthEnd(prices.PercentChange()).Trim(time.Time{}, cutoff)
	factors = normalizeMonthEnd(factors).Trim(time.Time{}, cutoff)

	// eligibility filter before alignment so one short-history ticker
	// cannot shrink the shared date index
	kept := make([]string, 0, len(returns.ColNames))
	excluded := make([]Exclusion, 0)
	counts := returns.NonNACount()
	for colIdx, ticker := range returns.ColNames {
		count := counts[colIdx]
		if count < b.MinObservations {
			subLog.Info().Str("Ticker", ticker).Int("Observations", count).Int("Required", b.MinObservations).Msg("excluding ticker with insufficient history")
			excluded = append(excluded, Exclusion{
				Ticker: ticker,
				Reason: "insufficient history",
				Count:  count,
			})
			continue
		}
		kept = append(kept, ticker)
	}

	if len(kept) == 0 {
		span.SetStatus(codes.Error, "no tickers with sufficient history")
		return nil, ErrInsufficientHistory
	}

	returns = returns.Select(kept...).DropNA()

	joined := dataframe.InnerJoin(returns, factors)
	if joined.Len() < b.MinObservations {
		subLog.Error().Int("AlignedRows", joined.Len()).Msg("alignment left too few shared observations")
		span.SetStatus(codes.Error, "too few aligned observations")
		return nil, ErrInsufficientHistory
	}

	factorCols := append([]string{}, FactorColumns...)
	factorCols = append(factorCols, FactorRF)
	alignedFactors := joined.Select(factorCols...)
	alignedReturns := joined.Select(kept...)

	return &ReturnSet{
		Returns:  alignedReturns,
		Factors:  alignedFactors.Select(FactorColumns...),
		RiskFree: alignedFactors.Col(FactorRF),
		Excluded: excluded,
	}, nil
}

// normalizeMonthEnd rewrites each date to the last calendar day of its
// month so series resampled on trading days join with series indexed on
// calendar month ends
func normalizeMonthEnd(df *dataframe.DataFrame) *dataframe.DataFrame {
	tz := common.GetTimezone()
	res := df.Copy()
	for idx, dt := range res.Dates {
		res.Dates[idx] = time.Date(dt.Year(), dt.Month(), 1, 0, 0, 0, 0, tz).AddDate(0, 1, -1)
	}
	return res
}
