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

import "errors"

var (
	ErrSolverDidNotConverge   = errors.New("solver did not converge")
	ErrInfeasibleOptimization = errors.New("no feasible point satisfies the constraints")
	ErrTooFewAssets           = errors.New("universe smaller than diversification floor")
	ErrDimensionMismatch      = errors.New("mean vector length does not match return columns")
)
