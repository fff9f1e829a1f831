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

package cmd

import (
	"context"
	"time"

	"github.com/penny-vault/pv-rebalance/data"
	"github.com/penny-vault/pv-rebalance/database"
	"github.com/penny-vault/pv-rebalance/observability/opentelemetry"
	"github.com/penny-vault/pv-rebalance/optimize"
	"github.com/penny-vault/pv-rebalance/pipeline"
	"github.com/penny-vault/pv-rebalance/tradecal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// buildPipeline wires the production collaborators from configuration.
// With a database URL configured the trading calendar comes from the
// market_holidays table; otherwise the built-in NYSE rules are used.
func buildPipeline(ctx context.Context) *pipeline.Pipeline {
	var cal tradecal.Calendar
	if viper.GetString("database.url") != "" {
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}
		cal = tradecal.NewDatabaseCalendar()
	} else {
		cal = tradecal.NewNYSE()
	}

	cfg := pipeline.Config{
		Optimizer: optimize.Config{
			RiskAversion:         viper.GetFloat64("optimizer.risk_aversion"),
			MaxWeight:            viper.GetFloat64("optimizer.max_weight"),
			MaxPositions:         viper.GetInt("optimizer.max_positions"),
			TopN:                 viper.GetInt("optimizer.top_n"),
			DiversificationFloor: viper.GetInt("optimizer.diversification_floor"),
			ConditionThreshold:   viper.GetFloat64("optimizer.condition_threshold"),
		},
		LookbackYears:   viper.GetInt("rebalance.lookback_years"),
		MinObservations: viper.GetInt("rebalance.min_observations"),
		AlphaBlend:      viper.GetFloat64("rebalance.alpha_blend"),
	}

	prices := data.NewTiingo(viper.GetString("tiingo.token"))
	factors := data.NewFamaFrench()
	return pipeline.New(cal, prices, factors, cfg)
}

// loadUniverse reads the investable universe from the CSV named by fn,
// or from the securities table when fn is empty.
func loadUniverse(ctx context.Context, fn string) (*data.Universe, error) {
	if fn != "" {
		return data.LoadUniverse(fn)
	}
	if viper.GetString("database.url") == "" {
		return nil, data.ErrEmptyUniverse
	}
	if err := database.Connect(ctx); err != nil {
		return nil, err
	}
	return data.LoadUniverseFromDB(ctx, viper.GetInt("universe.limit"))
}

// setupTracing initializes the OTLP trace exporter when an endpoint is
// configured and returns a shutdown func to flush remaining spans.
func setupTracing() func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if viper.GetString("otlp.endpoint") == "" {
		return noop
	}
	shutdown, err := opentelemetry.Setup()
	if err != nil {
		log.Error().Err(err).Msg("could not initialize tracing")
		return noop
	}
	return shutdown
}

// parseAsOf interprets an optional YYYY-MM-dd as-of date in the New
// York timezone, defaulting to now.
func parseAsOf(asof string) (time.Time, error) {
	nyc, _ := time.LoadLocation("America/New_York")
	if asof == "" {
		return time.Now().In(nyc), nil
	}
	dt, err := time.Parse("2006-01-02", asof)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(dt.Year(), dt.Month(), dt.Day(), 0, 0, 0, 0, nyc), nil
}
