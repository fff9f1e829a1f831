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

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	qpMaxIterations = 20000
	qpTolerance     = 1e-10
	projIterations  = 100
)

// solveQP minimizes lambda*w'Cw - mu'w over the capped simplex
// {w : sum(w) = 1, 0 <= w_i <= cap} by projected gradient descent with a
// fixed step derived from the gradient's Lipschitz constant. The
// objective is convex so the fixed point is the constrained minimum.
func solveQP(mu []float64, cov *mat.SymDense, lambda float64, cap float64) ([]float64, error) {
	n := len(mu)
	if float64(n)*cap < 1.0 {
		return nil, ErrInfeasibleOptimization
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(cov, false); !ok {
		return nil, ErrSolverDidNotConverge
	}
	values := eig.Values(nil)
	lipschitz := 2 * lambda * values[len(values)-1]
	if lipschitz <= 0 || math.IsNaN(lipschitz) {
		return nil, ErrSolverDidNotConverge
	}
	step := 1.0 / lipschitz

	// start from the uniform feasible point
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	w = projectCappedSimplex(w, cap)

	grad := make([]float64, n)
	next := make([]float64, n)
	covW := mat.NewVecDense(n, nil)
	for iter := 0; iter < qpMaxIterations; iter++ {
		covW.MulVec(cov, mat.NewVecDense(n, w))
		for i := 0; i < n; i++ {
			grad[i] = 2*lambda*covW.AtVec(i) - mu[i]
		}

		for i := 0; i < n; i++ {
			next[i] = w[i] - step*grad[i]
		}
		next = projectCappedSimplex(next, cap)

		delta := 0.0
		for i := 0; i < n; i++ {
			delta = math.Max(delta, math.Abs(next[i]-w[i]))
		}
		copy(w, next)

		if delta < qpTolerance {
			if math.Abs(floats.Sum(w)-1.0) > 1e-6 {
				return nil, ErrInfeasibleOptimization
			}
			return w, nil
		}
	}

	return nil, ErrSolverDidNotConverge
}

// projectCappedSimplex returns the Euclidean projection of v onto
// {w : sum(w) = 1, 0 <= w_i <= cap}. The projection is
// w_i = clamp(v_i - tau, 0, cap) where tau solves sum(w) = 1; the sum is
// monotone decreasing in tau so tau is found by bisection.
func projectCappedSimplex(v []float64, cap float64) []float64 {
	n := len(v)

	capSum := func(tau float64) float64 {
		total := 0.0
		for i := 0; i < n; i++ {
			total += math.Min(cap, math.Max(0, v[i]-tau))
		}
		return total
	}

	lo := floats.Min(v) - 1.0
	hi := floats.Max(v)
	for iter := 0; iter < projIterations; iter++ {
		mid := 0.5 * (lo + hi)
		if capSum(mid) > 1.0 {
			lo = mid
		} else {
			hi = mid
		}
	}

	tau := 0.5 * (lo + hi)
	res := make([]float64, n)
	for i := 0; i < n; i++ {
		res[i] = math.Min(cap, math.Max(0, v[i]-tau))
	}
	return res
}
