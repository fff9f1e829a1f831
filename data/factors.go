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

package data

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io/ioutil"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/penny-vault/pv-rebalance/common"
	"github.com/penny-vault/pv-rebalance/dataframe"
	"github.com/penny-vault/pv-rebalance/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// ff5URL serves the monthly five-factor research series as CSV. Rows are
// keyed YYYYMM and values are expressed in percent.
var ff5URL = "https://mba.tuck.dartmouth.edu/pages/faculty/ken.french/ftp/F-F_Research_Data_5_Factors_2x3_CSV.zip"

type famaFrench struct {
	url string
}

// NewFamaFrench create a five-factor series provider. The source url may
// be overridden with the factors.url setting and may serve either plain
// CSV or a zip archive containing one CSV.
func NewFamaFrench() *famaFrench {
	url := viper.GetString("factors.url")
	if url == "" {
		url = ff5URL
	}
	return &famaFrench{
		url: url,
	}
}

// GetFactorsForPeriod downloads the monthly factor series and trims it to
// [begin, end]. Values are converted from percent to decimal returns.
func (f *famaFrench) GetFactorsForPeriod(ctx context.Context, begin time.Time, end time.Time) (*dataframe.DataFrame, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "famaFrench.GetFactorsForPeriod")
	defer span.End()

	subLog := log.With().Str("Url", f.url).Time("Begin", begin).Time("End", end).Logger()

	if !begin.Before(end) {
		return nil, ErrInvalidTimeRange
	}

	cacheKey := fmt.Sprintf("ff5:%s", f.url)
	body, err := common.CacheGet(cacheKey)
	if err != nil {
		body, err = fetchWithRetry(f.url)
		if err != nil {
			span.RecordError(err)
			msg := "factor download failed"
			span.SetStatus(codes.Error, msg)
			subLog.Error().Err(err).Msg(msg)
			return nil, err
		}
		if err := common.CacheSet(cacheKey, body); err != nil {
			subLog.Warn().Err(err).Msg("could not cache factor response")
		}
	}

	body, err = maybeUnzip(body)
	if err != nil {
		span.RecordError(err)
		subLog.Error().Err(err).Msg("could not extract factor archive")
		return nil, err
	}

	df, err := parseFactorCSV(string(body))
	if err != nil {
		span.RecordError(err)
		subLog.Error().Err(err).Msg("could not parse factor csv")
		return nil, err
	}

	df = df.Trim(begin, end.AddDate(0, 0, 1))
	if df.Len() == 0 {
		return nil, ErrDataUnavailable
	}

	return df, nil
}

// maybeUnzip returns the first csv member when body is a zip archive,
// otherwise body unchanged
func maybeUnzip(body []byte) ([]byte, error) {
	if !bytes.HasPrefix(body, []byte("PK")) {
		return body, nil
	}

	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, err
	}
	for _, member := range archive.File {
		if !strings.EqualFold(filepath.Ext(member.Name), ".csv") {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return ioutil.ReadAll(rc)
	}

	return nil, fmt.Errorf("no csv member in factor archive")
}

// parseFactorCSV reads the research csv layout: a preamble of descriptive
// text, a header row naming the factors, then YYYYMM rows until the first
// blank or non-numeric row (annual tables follow the monthly table in the
// same file).
func parseFactorCSV(body string) (*dataframe.DataFrame, error) {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")

	headerIdx := -1
	var header []string
	for idx, line := range lines {
		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			continue
		}
		if strings.TrimSpace(fields[1]) == FactorMktRF {
			headerIdx = idx
			header = fields
			break
		}
	}
	if headerIdx == -1 {
		return nil, fmt.Errorf("factor header row not found")
	}

	colNames := make([]string, 0, len(header)-1)
	for _, name := range header[1:] {
		colNames = append(colNames, strings.TrimSpace(name))
	}

	df := &dataframe.DataFrame{
		ColNames: colNames,
		Vals:     make([][]float64, len(colNames)),
	}

	tz := common.GetTimezone()
	reader := csv.NewReader(strings.NewReader(strings.Join(lines[headerIdx+1:], "\n")))
	reader.FieldsPerRecord = -1
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		if len(record) != len(colNames)+1 {
			break
		}

		dateStr := strings.TrimSpace(record[0])
		if len(dateStr) != 6 {
			break
		}
		dt, err := time.ParseInLocation("200601", dateStr, tz)
		if err != nil {
			break
		}
		// index by month end to line up with resampled prices
		dt = dt.AddDate(0, 1, -1)

		df.Dates = append(df.Dates, dt)
		for colIdx, field := range record[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				v = math.NaN()
			} else {
				v /= 100.0
			}
			df.Vals[colIdx] = append(df.Vals[colIdx], v)
		}
	}

	if df.Len() == 0 {
		return nil, ErrDataUnavailable
	}

	for _, want := range append([]string{FactorRF}, FactorColumns...) {
		if df.ColIndex(want) == -1 {
			return nil, fmt.Errorf("%w: %s", ErrMissingFactor, want)
		}
	}

	return df, nil
}
