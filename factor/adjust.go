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

package factor

import (
	"github.com/penny-vault/pv-rebalance/dataframe"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// AdjustedMeans produces the expected-return vector fed to the optimizer.
// For each return column the excess series is regressed on the factors
// and the model-implied mean
//
//	rf + sum(beta_i * mean(factor_i)) + alpha
//
// is blended with the raw historical mean at the given weight (1 = model
// only, 0 = raw only). Columns whose regression fails keep their raw
// mean; trailing-mean noise is the reason for the adjustment, so the
// fallback only costs the noise reduction for that column.
func AdjustedMeans(returns *dataframe.DataFrame, factors *dataframe.DataFrame, riskFree []float64, blend float64) []float64 {
	rfMean := stat.Mean(riskFree, nil)
	factorMeans := factors.Mean()
	excess := returns.SubVec(riskFree)

	means := make([]float64, returns.ColCount())
	for colIdx, ticker := range returns.ColNames {
		raw := stat.Mean(returns.Vals[colIdx], nil)

		exposure, err := Regress(excess.Vals[colIdx], factors)
		if err != nil {
			log.Warn().Err(err).Str("Ticker", ticker).Msg("alpha adjustment failed; using raw historical mean")
			means[colIdx] = raw
			continue
		}

		model := rfMean + exposure.Alpha
		for ii, beta := range exposure.Betas {
			model += beta * factorMeans[ii]
		}

		means[colIdx] = blend*model + (1.0-blend)*raw
	}

	return means
}
