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

// Package pgxmockhelper registers pgxmock expectations for the queries
// this application runs, so individual tests don't repeat row-building
// boilerplate.
package pgxmockhelper

import (
	"time"

	"github.com/pashagolub/pgxmock"
)

// MockMarketHolidays expects the holiday scan query and returns the
// given dates as the closures recorded in the market_holidays table.
func MockMarketHolidays(db pgxmock.PgxConnIface, holidays []time.Time) {
	rows := pgxmock.NewRows([]string{"event_date"})
	for _, dt := range holidays {
		rows.AddRow(dt)
	}
	db.ExpectQuery("SELECT event_date FROM market_holidays").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(rows)
}

// MockActiveSecurities expects the universe query and returns the given
// tickers, preserving their order as the dollar-volume ranking.
func MockActiveSecurities(db pgxmock.PgxConnIface, tickers []string) {
	rows := pgxmock.NewRows([]string{"ticker"})
	for _, ticker := range tickers {
		rows.AddRow(ticker)
	}
	db.ExpectQuery("SELECT ticker FROM securities").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(rows)
}
