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

// Package tradecal resolves quarterly rebalance dates against a trading
// calendar. Calendar quarters start on months 1, 4, 7 and 10; the rebalance
// date is the first trading day of the quarter.
package tradecal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

var (
	ErrCalendarUnavailable = errors.New("trading calendar unavailable")
)

// maxScanDays bounds the forward search for a trading day; no market
// closure has ever exceeded two weeks from a quarter boundary
const maxScanDays = 14

// quarterSchedule fires at midnight on the first calendar day of each
// quarter
const quarterSchedule = "0 0 1 1,4,7,10 *"

// Calendar looks up trading days; implementations may be rule based or
// backed by an external holiday source
type Calendar interface {
	FirstTradingDayOnOrAfter(ctx context.Context, t time.Time) (time.Time, error)
}

// Window is a half-open date range [Begin, End)
type Window struct {
	Begin time.Time
	End   time.Time
}

// QuarterStart returns the first calendar day of the quarter containing t.
// Resolved dates are canonicalized to midnight UTC regardless of the
// timezone of t; callers compare and format them in that form.
func QuarterStart(t time.Time) time.Time {
	qMonth := (int(t.Month())-1)/3*3 + 1
	return time.Date(t.Year(), time.Month(qMonth), 1, 0, 0, 0, 0, time.UTC)
}

// QuarterLabel formats the quarter containing t as YYYYQn
func QuarterLabel(t time.Time) string {
	q := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("%dQ%d", t.Year(), q)
}

// NextQuarterStart returns the first calendar day of the quarter strictly
// after t
func NextQuarterStart(t time.Time) time.Time {
	specParser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := specParser.Parse(quarterSchedule)
	if err != nil {
		log.Panic().Err(err).Str("Schedule", quarterSchedule).Msg("could not parse quarter schedule")
	}
	return schedule.Next(t)
}

// FirstTradingDayOfQuarter resolves the rebalance date for the quarter
// containing asof
func FirstTradingDayOfQuarter(ctx context.Context, asof time.Time, cal Calendar) (time.Time, error) {
	start := QuarterStart(asof)
	day, err := cal.FirstTradingDayOnOrAfter(ctx, start)
	if err != nil {
		return time.Time{}, err
	}
	return day, nil
}

// MostRecentRebalanceDate finds the latest quarterly rebalance date on or
// before today, walking back up to 8 quarters
func MostRecentRebalanceDate(ctx context.Context, today time.Time, cal Calendar) (time.Time, error) {
	candidate := today
	for ii := 0; ii < 8; ii++ {
		reb, err := FirstTradingDayOfQuarter(ctx, candidate, cal)
		if err != nil {
			return time.Time{}, err
		}
		if !reb.After(today) {
			return reb, nil
		}
		candidate = QuarterStart(candidate).AddDate(0, -3, 0)
	}
	return time.Time{}, ErrCalendarUnavailable
}

// EstimationWindow computes the trailing estimation window for a rebalance
// date. The window excludes the rebalance date itself so that no information
// from the rebalance day leaks into the estimates.
func EstimationWindow(rebalanceDate time.Time, lookbackYears int) Window {
	return Window{
		Begin: rebalanceDate.AddDate(-lookbackYears, 0, 0),
		End:   rebalanceDate,
	}
}
