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
	"fmt"
	"os"

	"github.com/penny-vault/pv-rebalance/common"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Tiingo
	viper.BindEnv("tiingo.token", "TIINGO_TOKEN")
	rootCmd.PersistentFlags().String("tiingo-token", "", "Tiingo API token")
	viper.BindPFlag("tiingo.token", rootCmd.PersistentFlags().Lookup("tiingo-token"))

	// Factor data
	viper.BindEnv("factors.url", "FACTORS_URL")
	rootCmd.PersistentFlags().String("factors-url", "", "Override URL for the five-factor research data file")
	viper.BindPFlag("factors.url", rootCmd.PersistentFlags().Lookup("factors-url"))

	// Database
	viper.BindEnv("database.url", "DATABASE_URL")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))

	// Output
	viper.BindEnv("output.dir", "PV_OUTPUT_DIR")
	rootCmd.PersistentFlags().StringP("output-dir", "o", "output", "Directory to write rebalance artifacts to")
	viper.BindPFlag("output.dir", rootCmd.PersistentFlags().Lookup("output-dir"))

	// Optimizer tunables
	viper.SetDefault("optimizer.risk_aversion", 5.0)
	rootCmd.PersistentFlags().Float64("risk-aversion", 5.0, "Risk aversion coefficient used by the mean-variance objective")
	viper.BindPFlag("optimizer.risk_aversion", rootCmd.PersistentFlags().Lookup("risk-aversion"))

	viper.SetDefault("optimizer.max_weight", 0.2)
	rootCmd.PersistentFlags().Float64("max-weight", 0.2, "Maximum weight any single holding may receive")
	viper.BindPFlag("optimizer.max_weight", rootCmd.PersistentFlags().Lookup("max-weight"))

	viper.SetDefault("optimizer.max_positions", 10)
	rootCmd.PersistentFlags().Int("max-positions", 10, "Maximum number of holdings in the final portfolio")
	viper.BindPFlag("optimizer.max_positions", rootCmd.PersistentFlags().Lookup("max-positions"))

	viper.SetDefault("optimizer.top_n", 50)
	rootCmd.PersistentFlags().Int("top-n", 50, "Number of assets kept by the compound-return pre-filter")
	viper.BindPFlag("optimizer.top_n", rootCmd.PersistentFlags().Lookup("top-n"))

	viper.SetDefault("optimizer.diversification_floor", 5)
	viper.SetDefault("optimizer.condition_threshold", 1e8)

	viper.SetDefault("rebalance.lookback_years", 5)
	rootCmd.PersistentFlags().Int("lookback-years", 5, "Length of the estimation window in years")
	viper.BindPFlag("rebalance.lookback_years", rootCmd.PersistentFlags().Lookup("lookback-years"))

	viper.SetDefault("rebalance.min_observations", 48)
	viper.SetDefault("rebalance.alpha_blend", 0.5)

	viper.SetDefault("universe.limit", 100)

	// Cache
	viper.SetDefault("cache.local_size", 4096)
	viper.BindEnv("cache.redis_url", "REDIS_URL")
	rootCmd.PersistentFlags().String("redis-url", "", "Redis server to use as a shared quote cache")
	viper.BindPFlag("cache.redis_url", rootCmd.PersistentFlags().Lookup("redis-url"))

	// Logging configuration
	viper.BindEnv("log.level", "PV_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "PV_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "PV_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stdout", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	viper.BindEnv("log.pretty", "PV_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "Print logs in human readable format")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))
}

var rootCmd = &cobra.Command{
	Use:     "pvrebalance",
	Version: common.CurrentVersion.String(),
	Short:   "Quarterly ETF portfolio rebalancer",
	Long:    `Compute long-only quarterly ETF allocations with a cardinality-constrained mean-variance optimizer and five-factor diagnostics.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
