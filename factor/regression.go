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

// Package factor regresses excess return series against the five-factor
// model to estimate alpha, factor loadings, and fit quality.
package factor

import (
	"math"

	"github.com/penny-vault/pv-rebalance/dataframe"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// minimum excess observations over the number of coefficients
const minDegreesOfFreedom = 2

// rank test threshold on the ratio of smallest to largest singular value
const rankTolerance = 1e-12

// Exposure is the result of regressing one excess return series on the
// five factors. Betas follows the factor column order of the matrix the
// regression ran against.
type Exposure struct {
	Alpha            float64   `json:"alpha"`
	AlphaAnnualized  float64   `json:"alphaAnnualized"`
	AlphaTStat       float64   `json:"alphaTStat"`
	Betas            []float64 `json:"betas"`
	FactorNames      []string  `json:"factorNames"`
	RSquared         float64   `json:"rSquared"`
	ResidualVariance float64   `json:"residualVariance"`
	NObs             int       `json:"nObs"`
}

// Regress fits excess = alpha + B*factors + resid by ordinary least
// squares. The excess series must have one observation per factor row.
func Regress(excess []float64, factors *dataframe.DataFrame) (*Exposure, error) {
	nObs := len(excess)
	nFactors := factors.ColCount()
	nCoef := nFactors + 1

	if nObs != factors.Len() {
		return nil, ErrMisalignedSeries
	}
	if nObs < nCoef+minDegreesOfFreedom {
		return nil, ErrTooFewObservations
	}

	// design matrix with intercept column
	design := mat.NewDense(nObs, nCoef, nil)
	for row := 0; row < nObs; row++ {
		design.Set(row, 0, 1.0)
		for col := 0; col < nFactors; col++ {
			design.Set(row, col+1, factors.Vals[col][row])
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(design, mat.SVDThin); !ok {
		return nil, ErrRankDeficientFactors
	}
	singular := svd.Values(nil)
	if singular[len(singular)-1] < rankTolerance*singular[0] {
		return nil, ErrRankDeficientFactors
	}

	y := mat.NewVecDense(nObs, excess)
	var coef mat.VecDense
	if err := coef.SolveVec(design, y); err != nil {
		return nil, ErrRankDeficientFactors
	}

	// residual variance with n - p degrees of freedom
	var fitted mat.VecDense
	fitted.MulVec(design, &coef)
	rss := 0.0
	for row := 0; row < nObs; row++ {
		resid := excess[row] - fitted.AtVec(row)
		rss += resid * resid
	}
	sigma2 := rss / float64(nObs-nCoef)

	meanY := stat.Mean(excess, nil)
	tss := 0.0
	for _, v := range excess {
		tss += (v - meanY) * (v - meanY)
	}
	rSquared := 1.0
	if tss > 0 {
		rSquared = 1.0 - rss/tss
	}

	// standard error of alpha from the (X'X)^-1 diagonal
	var xtx mat.Dense
	xtx.Mul(design.T(), design)
	var xtxInv mat.Dense
	alphaTStat := math.NaN()
	if err := xtxInv.Inverse(&xtx); err == nil {
		se := math.Sqrt(sigma2 * xtxInv.At(0, 0))
		if se > 0 {
			alphaTStat = coef.AtVec(0) / se
		}
	}

	betas := make([]float64, nFactors)
	for col := 0; col < nFactors; col++ {
		betas[col] = coef.AtVec(col + 1)
	}

	alpha := coef.AtVec(0)
	return &Exposure{
		Alpha:            alpha,
		AlphaAnnualized:  math.Pow(1.0+alpha, 12) - 1.0,
		AlphaTStat:       alphaTStat,
		Betas:            betas,
		FactorNames:      append([]string{}, factors.ColNames...),
		RSquared:         rSquared,
		ResidualVariance: sigma2,
		NObs:             nObs,
	}, nil
}
