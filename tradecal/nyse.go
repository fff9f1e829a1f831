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
)

// NYSE is a rule-based trading calendar for the New York Stock Exchange.
// It covers the regular holiday schedule; one-off closures (e.g. days of
// mourning) are not modeled - use DatabaseCalendar when those matter.
type NYSE struct{}

func NewNYSE() *NYSE {
	return &NYSE{}
}

// FirstTradingDayOnOrAfter scans forward from t and returns the first day
// the market is open
func (c *NYSE) FirstTradingDayOnOrAfter(_ context.Context, t time.Time) (time.Time, error) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	for ii := 0; ii < maxScanDays; ii++ {
		if c.IsTradingDay(day) {
			return day, nil
		}
		day = day.AddDate(0, 0, 1)
	}
	return time.Time{}, ErrCalendarUnavailable
}

// IsTradingDay returns true when the market is open on the given date
func (c *NYSE) IsTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	for _, holiday := range Holidays(t.Year()) {
		if holiday.Month() == t.Month() && holiday.Day() == t.Day() {
			return false
		}
	}

	return true
}

// Holidays returns the observed NYSE holiday dates for the given year
func Holidays(year int) []time.Time {
	holidays := make([]time.Time, 0, 10)

	// New Year's Day; when Jan 1 falls on Saturday the exchange does not
	// observe it in the prior year either
	newYears := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if newYears.Weekday() == time.Sunday {
		newYears = newYears.AddDate(0, 0, 1)
	}
	if newYears.Weekday() != time.Saturday {
		holidays = append(holidays, newYears)
	}

	// Martin Luther King Jr. Day - 3rd Monday of January
	holidays = append(holidays, nthWeekday(year, time.January, time.Monday, 3))

	// Washington's Birthday - 3rd Monday of February
	holidays = append(holidays, nthWeekday(year, time.February, time.Monday, 3))

	// Good Friday - 2 days before Easter Sunday
	holidays = append(holidays, easter(year).AddDate(0, 0, -2))

	// Memorial Day - last Monday of May
	holidays = append(holidays, lastWeekday(year, time.May, time.Monday))

	// Juneteenth - observed by NYSE starting 2022
	if year >= 2022 {
		holidays = append(holidays, observed(time.Date(year, time.June, 19, 0, 0, 0, 0, time.UTC)))
	}

	// Independence Day
	holidays = append(holidays, observed(time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC)))

	// Labor Day - 1st Monday of September
	holidays = append(holidays, nthWeekday(year, time.September, time.Monday, 1))

	// Thanksgiving - 4th Thursday of November
	holidays = append(holidays, nthWeekday(year, time.November, time.Thursday, 4))

	// Christmas
	holidays = append(holidays, observed(time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC)))

	return holidays
}

// observed shifts weekend holidays to the adjacent weekday (Saturday to
// Friday, Sunday to Monday)
func observed(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, -1)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	}
	return t
}

func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	day := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for day.Weekday() != weekday {
		day = day.AddDate(0, 0, 1)
	}
	return day.AddDate(0, 0, 7*(n-1))
}

func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	day := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for day.Weekday() != weekday {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// easter computes the date of Easter Sunday using the anonymous Gregorian
// algorithm
func easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
