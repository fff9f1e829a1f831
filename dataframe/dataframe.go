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

package dataframe

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Len returns the number of rows in the dataframe
func (df *DataFrame) Len() int {
	return len(df.Dates)
}

// ColCount returns the number of columns in the dataframe
func (df *DataFrame) ColCount() int {
	return len(df.ColNames)
}

// ColIndex returns the index of the specified column; -1 if the column
// doesn't exist
func (df *DataFrame) ColIndex(colName string) int {
	for idx, val := range df.ColNames {
		if colName == val {
			return idx
		}
	}

	return -1
}

// Col returns the values of the named column or nil when the column does
// not exist
func (df *DataFrame) Col(colName string) []float64 {
	colIdx := df.ColIndex(colName)
	if colIdx == -1 {
		return nil
	}
	return df.Vals[colIdx]
}

// Copy creates a deep copy of the dataframe
func (df *DataFrame) Copy() *DataFrame {
	df2 := &DataFrame{
		ColNames: make([]string, len(df.ColNames)),
		Dates:    make([]time.Time, len(df.Dates)),
		Vals:     make([][]float64, len(df.Vals)),
	}

	copy(df2.ColNames, df.ColNames)
	copy(df2.Dates, df.Dates)

	for idx := range df2.Vals {
		df2.Vals[idx] = make([]float64, len(df.Vals[idx]))
		copy(df2.Vals[idx], df.Vals[idx])
	}

	return df2
}

// Select returns a new dataframe with only the requested columns; column
// order follows colNames. Columns that do not exist are skipped.
func (df *DataFrame) Select(colNames ...string) *DataFrame {
	df2 := &DataFrame{
		Dates:    df.Dates,
		ColNames: make([]string, 0, len(colNames)),
		Vals:     make([][]float64, 0, len(colNames)),
	}

	for _, colName := range colNames {
		colIdx := df.ColIndex(colName)
		if colIdx == -1 {
			continue
		}
		df2.ColNames = append(df2.ColNames, colName)
		df2.Vals = append(df2.Vals, df.Vals[colIdx])
	}

	return df2
}

// Split the dataframe into 2 dataframes, one containing `colNames` and the
// other containing all remaining columns. Both share the date index.
func (df *DataFrame) Split(colNames ...string) (*DataFrame, *DataFrame) {
	selected := make(map[string]bool, len(colNames))
	for _, colName := range colNames {
		selected[colName] = true
	}

	remaining := make([]string, 0, len(df.ColNames))
	for _, colName := range df.ColNames {
		if !selected[colName] {
			remaining = append(remaining, colName)
		}
	}

	return df.Select(colNames...), df.Select(remaining...)
}

// DropNA removes all rows that contain a NaN value in any column
func (df *DataFrame) DropNA() *DataFrame {
	newVals := make([][]float64, len(df.Vals))
	newDates := make([]time.Time, 0, len(df.Dates))

	for rowIdx, date := range df.Dates {
		keep := true
		for _, col := range df.Vals {
			if math.IsNaN(col[rowIdx]) {
				keep = false
				break
			}
		}

		if keep {
			newDates = append(newDates, date)
			for colIdx, col := range df.Vals {
				newVals[colIdx] = append(newVals[colIdx], col[rowIdx])
			}
		}
	}

	df.Vals = newVals
	df.Dates = newDates
	return df
}

// Trim the dataframe to the date range [begin, end) and return a copy
func (df *DataFrame) Trim(begin time.Time, end time.Time) *DataFrame {
	startIdx := sort.Search(len(df.Dates), func(ii int) bool {
		return !df.Dates[ii].Before(begin)
	})
	endIdx := sort.Search(len(df.Dates), func(ii int) bool {
		return !df.Dates[ii].Before(end)
	})

	df2 := &DataFrame{
		Dates:    df.Dates[startIdx:endIdx],
		ColNames: df.ColNames,
		Vals:     make([][]float64, len(df.Vals)),
	}

	for colIdx := range df.Vals {
		df2.Vals[colIdx] = df.Vals[colIdx][startIdx:endIdx]
	}

	return df2
}

// NonNACount returns the number of non-NaN values in each column
func (df *DataFrame) NonNACount() []int {
	counts := make([]int, len(df.Vals))
	for colIdx, col := range df.Vals {
		for _, val := range col {
			if !math.IsNaN(val) {
				counts[colIdx]++
			}
		}
	}
	return counts
}

// SameIndex returns true when other has an identical date index
func (df *DataFrame) SameIndex(other *DataFrame) bool {
	if len(df.Dates) != len(other.Dates) {
		return false
	}
	for idx, date := range df.Dates {
		if !date.Equal(other.Dates[idx]) {
			return false
		}
	}
	return true
}

// InnerJoin aligns the dataframes on their common dates and returns a new
// dataframe containing all columns from every input. Duplicate column names
// keep their first occurrence.
func InnerJoin(dfs ...*DataFrame) *DataFrame {
	if len(dfs) == 0 {
		return &DataFrame{}
	}

	// intersect date indexes
	dateCount := make(map[int64]int, len(dfs[0].Dates))
	for _, df := range dfs {
		for _, date := range df.Dates {
			dateCount[date.Unix()]++
		}
	}

	common := make([]time.Time, 0, len(dfs[0].Dates))
	for _, date := range dfs[0].Dates {
		if dateCount[date.Unix()] == len(dfs) {
			common = append(common, date)
		}
	}

	res := &DataFrame{
		Dates: common,
	}

	seen := make(map[string]bool)
	for _, df := range dfs {
		rowMap := make(map[int64]int, len(df.Dates))
		for rowIdx, date := range df.Dates {
			rowMap[date.Unix()] = rowIdx
		}

		for colIdx, colName := range df.ColNames {
			if seen[colName] {
				continue
			}
			seen[colName] = true

			vals := make([]float64, len(common))
			for ii, date := range common {
				vals[ii] = df.Vals[colIdx][rowMap[date.Unix()]]
			}

			res.ColNames = append(res.ColNames, colName)
			res.Vals = append(res.Vals, vals)
		}
	}

	return res
}

// OuterJoin aligns the dataframes on the union of their dates and returns
// a new dataframe containing all columns from every input. Missing
// observations are filled with NaN. Duplicate column names keep their
// first occurrence.
func OuterJoin(dfs ...*DataFrame) *DataFrame {
	if len(dfs) == 0 {
		return &DataFrame{}
	}

	// union of date indexes
	seenDates := make(map[int64]bool)
	union := make([]time.Time, 0, len(dfs[0].Dates))
	for _, df := range dfs {
		for _, date := range df.Dates {
			if !seenDates[date.Unix()] {
				seenDates[date.Unix()] = true
				union = append(union, date)
			}
		}
	}
	sort.Slice(union, func(i, j int) bool {
		return union[i].Before(union[j])
	})

	res := &DataFrame{
		Dates: union,
	}

	seen := make(map[string]bool)
	for _, df := range dfs {
		rowMap := make(map[int64]int, len(df.Dates))
		for rowIdx, date := range df.Dates {
			rowMap[date.Unix()] = rowIdx
		}

		for colIdx, colName := range df.ColNames {
			if seen[colName] {
				continue
			}
			seen[colName] = true

			vals := make([]float64, len(union))
			for ii, date := range union {
				if rowIdx, ok := rowMap[date.Unix()]; ok {
					vals[ii] = df.Vals[colIdx][rowIdx]
				} else {
					vals[ii] = math.NaN()
				}
			}

			res.ColNames = append(res.ColNames, colName)
			res.Vals = append(res.Vals, vals)
		}
	}

	return res
}

// Table returns a rendered table of the dataframe contents
func (df *DataFrame) Table() string {
	if df.Len() == 0 {
		return "<NO DATA>"
	}

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)

	header := append([]string{"Date"}, df.ColNames...)
	table.SetHeader(header)

	for rowIdx, date := range df.Dates {
		row := make([]string, 0, len(df.ColNames)+1)
		row = append(row, date.Format("2006-01-02"))
		for _, col := range df.Vals {
			row = append(row, strconv.FormatFloat(col[rowIdx], 'f', 4, 64))
		}
		table.Append(row)
	}

	table.Render()
	return s.String()
}
