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

package report

import (
	"fmt"
	"strings"
)

func renderMarkdown(r *Rebalance) ([]byte, error) {
	s := &strings.Builder{}

	fmt.Fprintf(s, "# Rebalance %s\n\n", r.Quarter)
	fmt.Fprintf(s, "- As of: %s\n", r.AsOf.Format("2006-01-02"))
	fmt.Fprintf(s, "- Rebalance date: %s\n", r.RebalanceDate.Format("2006-01-02"))
	fmt.Fprintf(s, "- Estimation window: %s to %s\n", r.WindowBegin.Format("2006-01-02"), r.WindowEnd.Format("2006-01-02"))
	fmt.Fprintf(s, "- Universe: %d tickers (%d eligible)\n", r.UniverseSize, r.EligibleSize)
	if r.ShrinkIntensity > 0 {
		fmt.Fprintf(s, "- Covariance shrinkage applied at intensity %.2f\n", r.ShrinkIntensity)
	}
	s.WriteString("\n")

	if len(r.Excluded) > 0 {
		s.WriteString("## Excluded tickers\n\n")
		s.WriteString("| Ticker | Reason | Observations |\n")
		s.WriteString("| --- | --- | --- |\n")
		for _, excl := range r.Excluded {
			fmt.Fprintf(s, "| %s | %s | %d |\n", excl.Ticker, excl.Reason, excl.Count)
		}
		s.WriteString("\n")
	}

	s.WriteString("## Candidates\n\n")
	fmt.Fprintf(s, "%s\n\n", strings.Join(r.Candidates, ", "))

	s.WriteString("## Target weights\n\n")
	s.WriteString("| Ticker | Weight |\n")
	s.WriteString("| --- | --- |\n")
	for _, alloc := range r.Weights.Allocations {
		fmt.Fprintf(s, "| %s | %.2f%% |\n", alloc.Ticker, alloc.Weight*100)
	}
	s.WriteString("\n")

	if r.Metrics != nil {
		s.WriteString("## Expected performance\n\n")
		s.WriteString("| Statistic | Monthly | Annualized |\n")
		s.WriteString("| --- | --- | --- |\n")
		fmt.Fprintf(s, "| Mean return | %.4f | %.4f |\n", r.Metrics.MeanMonthly, r.Metrics.MeanAnnualized)
		fmt.Fprintf(s, "| Volatility | %.4f | %.4f |\n", r.Metrics.VolMonthly, r.Metrics.VolAnnualized)
		fmt.Fprintf(s, "| Sharpe ratio | | %.2f |\n", r.Metrics.SharpeAnnualized)
		s.WriteString("\n")
	}

	s.WriteString("## Factor exposure\n\n")
	switch {
	case r.Exposure != nil:
		fmt.Fprintf(s, "- Alpha: %.4f monthly (%.2f%% annualized, t-stat %.2f)\n", r.Exposure.Alpha, r.Exposure.AlphaAnnualized*100, r.Exposure.AlphaTStat)
		fmt.Fprintf(s, "- R-squared: %.3f over %d observations\n\n", r.Exposure.RSquared, r.Exposure.NObs)
		s.WriteString("| Factor | Beta |\n")
		s.WriteString("| --- | --- |\n")
		for idx, name := range r.Exposure.FactorNames {
			fmt.Fprintf(s, "| %s | %.4f |\n", name, r.Exposure.Betas[idx])
		}
		s.WriteString("\n")
	case r.ExposureWarning != "":
		fmt.Fprintf(s, "Factor regression unavailable: %s\n\n", r.ExposureWarning)
	default:
		s.WriteString("Factor regression unavailable.\n\n")
	}

	return []byte(s.String()), nil
}
