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

package tradecal_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"
	"github.com/penny-vault/pv-rebalance/database"
	"github.com/penny-vault/pv-rebalance/pgxmockhelper"
	"github.com/penny-vault/pv-rebalance/tradecal"
)

var _ = Describe("DatabaseCalendar", func() {
	var (
		ctx    context.Context
		cal    *tradecal.DatabaseCalendar
		dbPool pgxmock.PgxConnIface
	)

	BeforeEach(func() {
		ctx = context.Background()
		cal = tradecal.NewDatabaseCalendar()

		var err error
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)
	})

	It("skips holidays recorded in the database", func() {
		pgxmockhelper.MockMarketHolidays(dbPool, []time.Time{
			time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC),
		})

		// Jan 1, 2022 is a Saturday; with Monday Jan 3 marked as a holiday
		// the first trading day is Tuesday Jan 4
		day, err := cal.FirstTradingDayOnOrAfter(ctx, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
		Expect(err).To(BeNil())
		Expect(day).To(Equal(time.Date(2022, 1, 4, 0, 0, 0, 0, time.UTC)))
	})

	It("returns the requested day when the market is open", func() {
		pgxmockhelper.MockMarketHolidays(dbPool, nil)

		day, err := cal.FirstTradingDayOnOrAfter(ctx, time.Date(2022, 3, 7, 0, 0, 0, 0, time.UTC))
		Expect(err).To(BeNil())
		Expect(day).To(Equal(time.Date(2022, 3, 7, 0, 0, 0, 0, time.UTC)))
	})

	It("surfaces a calendar error when the database is unreachable", func() {
		database.SetPool(nil)
		_, err := cal.FirstTradingDayOnOrAfter(ctx, time.Date(2022, 3, 7, 0, 0, 0, 0, time.UTC))
		Expect(err).To(Equal(tradecal.ErrCalendarUnavailable))
	})
})
