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

	"github.com/penny-vault/pv-rebalance/common"
	"github.com/penny-vault/pv-rebalance/report"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	asOfDate     string
	universeFile string
	forceRun     bool
)

func init() {
	rebalanceCmd.Flags().StringVar(&asOfDate, "asof", "", "Date specified as YYYY-MM-dd to rebalance as of; defaults to today")
	rebalanceCmd.Flags().StringVarP(&universeFile, "universe", "u", "", "CSV file listing the investable tickers; defaults to the securities table")
	rebalanceCmd.Flags().BoolVar(&forceRun, "force", false, "Recompute even when artifacts for the quarter already exist")
	rootCmd.AddCommand(rebalanceCmd)
}

var rebalanceCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "Compute target weights for the quarter containing the as-of date",
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		common.SetupCache()
		log.Info().Msg("initialized logging")

		ctx := context.Background()
		shutdownTracing := setupTracing()
		defer shutdownTracing(ctx)

		asOf, err := parseAsOf(asOfDate)
		if err != nil {
			log.Fatal().Err(err).Str("InputStr", asOfDate).Msg("could not parse as-of date - expected format 2006-01-02")
		}

		universe, err := loadUniverse(ctx, universeFile)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load investable universe")
		}

		p := buildPipeline(ctx)
		writer := report.NewWriter(viper.GetString("output.dir"))

		rebalance, err := p.Run(ctx, asOf, universe)
		if err != nil {
			log.Fatal().Err(err).Time("AsOf", asOf).Msg("rebalance failed")
		}

		if !forceRun && writer.Exists(rebalance.Quarter) {
			log.Warn().Str("Quarter", rebalance.Quarter).Msg("artifacts already exist; use --force to overwrite")
			return
		}

		artifacts, err := writer.Write(rebalance)
		if err != nil {
			log.Fatal().Err(err).Str("Quarter", rebalance.Quarter).Msg("could not write rebalance artifacts")
		}

		log.Info().Str("Quarter", rebalance.Quarter).Strs("Artifacts", artifacts).Msg("rebalance complete")
	},
}
