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

package tradecal

import (
	"context"
	"time"

	"github.com/penny-vault/pv-rebalance/database"
	"github.com/rs/zerolog/log"
)

// DatabaseCalendar resolves trading days against a market_holidays table.
// Unlike the rule-based NYSE calendar it also reflects one-off closures
// recorded in the database.
type DatabaseCalendar struct{}

func NewDatabaseCalendar() *DatabaseCalendar {
	return &DatabaseCalendar{}
}

// FirstTradingDayOnOrAfter scans forward from t and returns the first
// weekday that is not present in the market_holidays table
func (c *DatabaseCalendar) FirstTradingDayOnOrAfter(ctx context.Context, t time.Time) (time.Time, error) {
	begin := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	end := begin.AddDate(0, 0, maxScanDays)

	rows, err := database.Query(ctx, "SELECT event_date FROM market_holidays WHERE event_date >= $1 AND event_date < $2 ORDER BY event_date ASC", begin, end)
	if err != nil {
		log.Error().Err(err).Time("Begin", begin).Msg("could not load market holidays")
		return time.Time{}, ErrCalendarUnavailable
	}
	defer rows.Close()

	holidays := make(map[string]bool, maxScanDays)
	for rows.Next() {
		var dt time.Time
		if err := rows.Scan(&dt); err != nil {
			log.Error().Err(err).Msg("could not scan holiday row")
			return time.Time{}, ErrCalendarUnavailable
		}
		holidays[dt.Format("2006-01-02")] = true
	}

	day := begin
	for ii := 0; ii < maxScanDays; ii++ {
		weekday := day.Weekday()
		if weekday != time.Saturday && weekday != time.Sunday && !holidays[day.Format("2006-01-02")] {
			return day, nil
		}
		day = day.AddDate(0, 0, 1)
	}

	return time.Time{}, ErrCalendarUnavailable
}
