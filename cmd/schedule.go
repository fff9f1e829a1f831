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

	"github.com/penny-vault/pv-rebalance/common"
	"github.com/penny-vault/pv-rebalance/pipeline"
	"github.com/penny-vault/pv-rebalance/report"
	"github.com/penny-vault/pv-rebalance/tradecal"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	scheduleCmd.Flags().StringVarP(&universeFile, "universe", "u", "", "CSV file listing the investable tickers; defaults to the securities table")
	scheduleCmd.Flags().String("at", "21:30", "Time of day to check for a pending rebalance")
	viper.BindPFlag("schedule.at", scheduleCmd.Flags().Lookup("at"))
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run as a daemon that rebalances on the first trading day of each quarter",
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		common.SetupCache()
		log.Info().Msg("initialized logging")

		ctx := context.Background()
		shutdownTracing := setupTracing()
		defer shutdownTracing(ctx)

		p := buildPipeline(ctx)
		writer := report.NewWriter(viper.GetString("output.dir"))

		tz := common.GetTimezone()
		scheduler := gocron.NewScheduler(tz)
		scheduler.Every(1).Day().At(viper.GetString("schedule.at")).Do(func() {
			if err := runScheduled(ctx, p, writer); err != nil {
				log.Error().Err(err).Msg("scheduled rebalance failed")
			}
		})

		log.Info().Str("At", viper.GetString("schedule.at")).Msg("scheduler started")
		scheduler.StartBlocking()
	},
}

// runScheduled computes the current quarter's rebalance unless its
// artifacts already exist. Skipping on existing artifacts makes the
// daemon safe to restart mid-quarter.
func runScheduled(ctx context.Context, p *pipeline.Pipeline, writer *report.Writer) error {
	now := time.Now().In(common.GetTimezone())

	rebalanceDate, err := tradecal.MostRecentRebalanceDate(ctx, now, p.Calendar)
	if err != nil {
		return err
	}
	quarter := tradecal.QuarterLabel(rebalanceDate)
	if writer.Exists(quarter) {
		log.Debug().Str("Quarter", quarter).Msg("artifacts already exist; nothing to do")
		return nil
	}

	universe, err := loadUniverse(ctx, universeFile)
	if err != nil {
		return err
	}

	// run for the resolved rebalance date, not the wall clock; between a
	// quarter's calendar start and its first trading day the two belong
	// to different quarters
	rebalance, err := p.Run(ctx, rebalanceDate, universe)
	if err != nil {
		return err
	}

	artifacts, err := writer.Write(rebalance)
	if err != nil {
		return err
	}

	log.Info().Str("Quarter", rebalance.Quarter).Strs("Artifacts", artifacts).Msg("scheduled rebalance complete")
	return nil
}
