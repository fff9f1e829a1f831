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

package optimize

import (
	"math"

	"github.com/penny-vault/pv-rebalance/dataframe"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Moments holds the sample mean vector and covariance matrix of a return
// matrix. Tickers records the column order of both.
type Moments struct {
	Tickers []string
	Mean    []float64
	Cov     *mat.SymDense
}

// EstimateMoments computes sample means and the sample covariance matrix
// of the return columns
func EstimateMoments(returns *dataframe.DataFrame) *Moments {
	nAssets := returns.ColCount()
	nPeriods := returns.Len()

	sample := mat.NewDense(nPeriods, nAssets, nil)
	for colIdx := 0; colIdx < nAssets; colIdx++ {
		sample.SetCol(colIdx, returns.Vals[colIdx])
	}

	cov := mat.NewSymDense(nAssets, nil)
	stat.CovarianceMatrix(cov, sample, nil)

	return &Moments{
		Tickers: append([]string{}, returns.ColNames...),
		Mean:    returns.Mean(),
		Cov:     cov,
	}
}

// ConditionNumber is the ratio of the largest to smallest eigenvalue of
// the covariance matrix. Returns +Inf for singular or indefinite matrices.
func (m *Moments) ConditionNumber() float64 {
	var eig mat.EigenSym
	if ok := eig.Factorize(m.Cov, false); !ok {
		return math.Inf(1)
	}

	values := eig.Values(nil)
	smallest := values[0]
	largest := values[len(values)-1]
	if smallest <= 0 {
		return math.Inf(1)
	}

	return largest / smallest
}

// Shrink blends the covariance matrix toward its diagonal until the
// condition number falls below threshold, leaving the matrix untouched
// when it is already well conditioned. Returns the applied intensity
// in [0, 1].
func (m *Moments) Shrink(threshold float64) float64 {
	if m.ConditionNumber() <= threshold {
		return 0
	}

	n := m.Cov.SymmetricDim()
	sample := mat.NewSymDense(n, nil)
	sample.CopySym(m.Cov)

	// walk intensity up until conditioning is restored; the diagonal
	// target at intensity 1 always has a finite condition number when
	// variances are positive
	for intensity := 0.01; intensity <= 1.0; intensity += 0.01 {
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				v := (1 - intensity) * sample.At(i, j)
				if i == j {
					v += intensity * sample.At(i, i)
				}
				m.Cov.SetSym(i, j, v)
			}
		}
		if m.ConditionNumber() <= threshold {
			return intensity
		}
	}

	return 1.0
}
