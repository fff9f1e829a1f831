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
	"github.com/penny-vault/pv-rebalance/tradecal"
)

var _ = Describe("Quarter resolution", func() {
	var (
		ctx context.Context
		cal *tradecal.NYSE
	)

	BeforeEach(func() {
		ctx = context.Background()
		cal = tradecal.NewNYSE()
	})

	DescribeTable("quarter start", func(asof, expected time.Time) {
		Expect(tradecal.QuarterStart(asof)).To(Equal(expected))
	},
		Entry("mid Q2", time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)),
		Entry("first day of Q1", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)),
		Entry("last day of Q4", time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC), time.Date(2022, 10, 1, 0, 0, 0, 0, time.UTC)),
		Entry("mid Q3", time.Date(2021, 8, 15, 0, 0, 0, 0, time.UTC), time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC)),
	)

	DescribeTable("quarter label", func(date time.Time, expected string) {
		Expect(tradecal.QuarterLabel(date)).To(Equal(expected))
	},
		Entry("Q1", time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), "2024Q1"),
		Entry("Q4", time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC), "2023Q4"),
	)

	It("computes the next quarter start", func() {
		next := tradecal.NextQuarterStart(time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC))
		Expect(next.Month()).To(Equal(time.April))
		Expect(next.Day()).To(Equal(1))
		Expect(next.Year()).To(Equal(2024))
	})

	Context("first trading day of quarter", func() {
		It("resolves 2022Q1 to Jan 3 (Jan 1 was a Saturday)", func() {
			day, err := tradecal.FirstTradingDayOfQuarter(ctx, time.Date(2022, 1, 15, 0, 0, 0, 0, time.UTC), cal)
			Expect(err).To(BeNil())
			Expect(day).To(Equal(time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)))
		})

		It("resolves 2023Q1 to Jan 3 (Jan 2 was the observed holiday)", func() {
			day, err := tradecal.FirstTradingDayOfQuarter(ctx, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), cal)
			Expect(err).To(BeNil())
			Expect(day).To(Equal(time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)))
		})

		It("returns the same rebalance date for every day within the quarter", func() {
			expected, err := tradecal.FirstTradingDayOfQuarter(ctx, time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), cal)
			Expect(err).To(BeNil())

			asof := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
			for asof.Month() <= time.June {
				day, err := tradecal.FirstTradingDayOfQuarter(ctx, asof, cal)
				Expect(err).To(BeNil())
				Expect(day).To(Equal(expected))
				asof = asof.AddDate(0, 0, 7)
			}
		})

		It("uses the same quarter when asof is in the second month", func() {
			day, err := tradecal.FirstTradingDayOfQuarter(ctx, time.Date(2023, 5, 15, 0, 0, 0, 0, time.UTC), cal)
			Expect(err).To(BeNil())
			Expect(day).To(Equal(time.Date(2023, 4, 3, 0, 0, 0, 0, time.UTC)))
		})
	})

	Context("most recent rebalance date", func() {
		It("walks back to the current quarter's first trading day", func() {
			reb, err := tradecal.MostRecentRebalanceDate(ctx, time.Date(2022, 2, 15, 0, 0, 0, 0, time.UTC), cal)
			Expect(err).To(BeNil())
			Expect(reb).To(Equal(time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)))
		})

		It("returns the rebalance date itself on the rebalance date", func() {
			reb, err := tradecal.MostRecentRebalanceDate(ctx, time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC), cal)
			Expect(err).To(BeNil())
			Expect(reb).To(Equal(time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)))
		})

		It("falls back to the prior quarter before the first trading day", func() {
			// Jan 1, 2023 precedes the Q1 rebalance on Jan 3, so the most
			// recent rebalance belongs to 2022Q4; resolving the quarter of
			// that date must agree with it
			reb, err := tradecal.MostRecentRebalanceDate(ctx, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), cal)
			Expect(err).To(BeNil())
			Expect(reb).To(Equal(time.Date(2022, 10, 3, 0, 0, 0, 0, time.UTC)))
			Expect(tradecal.QuarterLabel(reb)).To(Equal("2022Q4"))

			same, err := tradecal.FirstTradingDayOfQuarter(ctx, reb, cal)
			Expect(err).To(BeNil())
			Expect(same).To(Equal(reb))
		})
	})

	Context("estimation window", func() {
		It("spans 5 years and excludes the rebalance date", func() {
			reb := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
			window := tradecal.EstimationWindow(reb, 5)
			Expect(window.Begin).To(Equal(time.Date(2017, 1, 3, 0, 0, 0, 0, time.UTC)))
			Expect(window.End).To(Equal(reb))
		})
	})
})

var _ = Describe("NYSE holidays", func() {
	cal := tradecal.NewNYSE()

	DescribeTable("known closed days", func(date time.Time) {
		Expect(cal.IsTradingDay(date)).To(BeFalse())
	},
		Entry("New Year's 2021 (Friday)", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)),
		Entry("New Year's 2023 observed Monday", time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)),
		Entry("MLK day 2022", time.Date(2022, 1, 17, 0, 0, 0, 0, time.UTC)),
		Entry("Good Friday 2022", time.Date(2022, 4, 15, 0, 0, 0, 0, time.UTC)),
		Entry("Memorial day 2022", time.Date(2022, 5, 30, 0, 0, 0, 0, time.UTC)),
		Entry("Juneteenth 2022 observed Monday", time.Date(2022, 6, 20, 0, 0, 0, 0, time.UTC)),
		Entry("Independence day 2022", time.Date(2022, 7, 4, 0, 0, 0, 0, time.UTC)),
		Entry("Labor day 2022", time.Date(2022, 9, 5, 0, 0, 0, 0, time.UTC)),
		Entry("Thanksgiving 2022", time.Date(2022, 11, 24, 0, 0, 0, 0, time.UTC)),
		Entry("Christmas 2022 observed Monday", time.Date(2022, 12, 26, 0, 0, 0, 0, time.UTC)),
		Entry("a Saturday", time.Date(2022, 3, 5, 0, 0, 0, 0, time.UTC)),
	)

	DescribeTable("known open days", func(date time.Time) {
		Expect(cal.IsTradingDay(date)).To(BeTrue())
	},
		Entry("regular Monday", time.Date(2022, 3, 7, 0, 0, 0, 0, time.UTC)),
		Entry("Juneteenth before observance", time.Date(2020, 6, 19, 0, 0, 0, 0, time.UTC)),
		Entry("day after Thanksgiving", time.Date(2022, 11, 25, 0, 0, 0, 0, time.UTC)),
	)
})
