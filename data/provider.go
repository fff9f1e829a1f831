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

// Package data retrieves monthly adjusted close prices and factor return
// series from external providers and assembles the aligned return matrix
// the optimizer runs on.
package data

import (
	"context"
	"time"

	"github.com/penny-vault/pv-rebalance/dataframe"
)

const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyAnnual  = "annually"
)

const (
	MetricClose         = "Close"
	MetricAdjustedClose = "AdjustedClose"
)

// Factor column names; RF is the risk-free rate, the remainder are the
// five Fama-French factors
const (
	FactorMktRF = "Mkt-RF"
	FactorSMB   = "SMB"
	FactorHML   = "HML"
	FactorRMW   = "RMW"
	FactorCMA   = "CMA"
	FactorRF    = "RF"
)

// FactorColumns lists the regressor columns in model order. RF is carried
// separately and is not a regressor.
var FactorColumns = []string{FactorMktRF, FactorSMB, FactorHML, FactorRMW, FactorCMA}

// Provider retrieves a price series for one or more securities. The
// returned frame has one column per ticker indexed by period end date.
type Provider interface {
	DataType() string
	GetDataForPeriod(ctx context.Context, symbols []string, metric string, frequency string, begin time.Time, end time.Time) (*dataframe.DataFrame, error)
}

// FactorProvider retrieves the monthly factor return series. The returned
// frame has one column per factor plus RF, values expressed as decimal
// returns (.05 = 5%).
type FactorProvider interface {
	GetFactorsForPeriod(ctx context.Context, begin time.Time, end time.Time) (*dataframe.DataFrame, error)
}

type quoteResult struct {
	Ticker string
	Data   *dataframe.DataFrame
	Err    error
}

func partitionArray(arr []string, chunkSize int) [][]string {
	if chunkSize <= 0 {
		chunkSize = len(arr)
	}
	chunks := make([][]string, 0, len(arr)/chunkSize+1)
	for ii := 0; ii < len(arr); ii += chunkSize {
		end := ii + chunkSize
		if end > len(arr) {
			end = len(arr)
		}
		chunks = append(chunks, arr[ii:end])
	}
	return chunks
}
