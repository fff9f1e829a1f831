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

// Package report persists the artifacts of a rebalance run: a weights
// table (csv and json), a human-readable markdown report, and a toml
// manifest recording run provenance. Artifacts are staged to temporary
// files and renamed into place so a failed run leaves nothing behind.
package report

import (
	"time"

	"github.com/penny-vault/pv-rebalance/data"
	"github.com/penny-vault/pv-rebalance/factor"
	"github.com/penny-vault/pv-rebalance/portfolio"
)

// Rebalance collects everything a run produced for one quarter
type Rebalance struct {
	RunID           string
	Quarter         string
	AsOf            time.Time
	RebalanceDate   time.Time
	WindowBegin     time.Time
	WindowEnd       time.Time
	UniverseSize    int
	UniverseDigest  string
	EligibleSize    int
	Excluded        []data.Exclusion
	Candidates      []string
	Weights         *portfolio.WeightVector
	Metrics         *portfolio.Metrics
	Exposure        *factor.Exposure
	ExposureWarning string
	ShrinkIntensity float64
	CreatedAt       time.Time
}
