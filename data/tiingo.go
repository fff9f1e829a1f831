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
	"context"
	"fmt"
	"io/ioutil"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-rebalance/common"
	"github.com/penny-vault/pv-rebalance/dataframe"
	"github.com/penny-vault/pv-rebalance/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tiingoAPI = "https://api.tiingo.com"

const tiingoChunkSize = 10

type tiingo struct {
	apikey string
}

type tiingoJSONResponse struct {
	Date        string  `json:"date"`
	Close       float64 `json:"close"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Open        float64 `json:"open"`
	Volume      int64   `json:"volume"`
	AdjClose    float64 `json:"adjClose"`
	AdjHigh     float64 `json:"adjHigh"`
	AdjLow      float64 `json:"adjLow"`
	AdjOpen     float64 `json:"adjOpen"`
	AdjVolume   int64   `json:"adjVolume"`
	DivCash     float64 `json:"divCash"`
	SplitFactor float64 `json:"splitFactor"`
}

// NewTiingo create a new tiingo price provider
func NewTiingo(key string) *tiingo {
	return &tiingo{
		apikey: key,
	}
}

func (t *tiingo) DataType() string {
	return "security"
}

// GetDataForPeriod downloads the requested metric for each symbol and
// outer-joins the per-symbol series into a single frame. Symbols that
// list after `begin` are NaN-filled prior to their first observation.
func (t *tiingo) GetDataForPeriod(ctx context.Context, symbols []string, metric string, frequency string, begin time.Time, end time.Time) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.GetDataForPeriod")
	defer span.End()

	subLog := log.With().Str("Metric", metric).Str("Frequency", frequency).Time("Begin", begin).Time("End", end).Logger()

	if !begin.Before(end) {
		return nil, ErrInvalidTimeRange
	}
	if metric != MetricClose && metric != MetricAdjustedClose {
		return nil, ErrUnsupportedMetric
	}

	res := make([]*dataframe.DataFrame, 0, len(symbols))
	failed := []string{}
	ch := make(chan quoteResult)

	for idx, chunk := range partitionArray(symbols, tiingoChunkSize) {
		subLog.Debug().Int("Chunk", idx).Int("NumSymbols", len(chunk)).Msg("download price chunk")
		for ii := range chunk {
			go tiingoDownloadWorker(ctx, ch, strings.ToUpper(chunk[ii]), metric, frequency, begin, end, t)
		}

		for range chunk {
			v := <-ch
			if v.Err == nil {
				res = append(res, v.Data)
			} else {
				// a dead symbol becomes an all-NaN column so the
				// insufficient-history policy can record the exclusion
				subLog.Warn().Err(v.Err).Str("Ticker", v.Ticker).Msg("cannot download ticker data")
				failed = append(failed, v.Ticker)
			}
		}
	}

	if len(res) == 0 {
		span.SetStatus(codes.Error, "all downloads failed")
		return nil, ErrDataUnavailable
	}

	joined := dataframe.OuterJoin(res...)
	if joined.Len() == 0 {
		return nil, ErrDataUnavailable
	}

	for _, ticker := range failed {
		nan := make([]float64, len(joined.Dates))
		for ii := range nan {
			nan[ii] = math.NaN()
		}
		joined.ColNames = append(joined.ColNames, ticker)
		joined.Vals = append(joined.Vals, nan)
	}

	// restore the requested column order; workers complete out of order
	cols := make([]string, len(symbols))
	copy(cols, symbols)
	common.ArrToUpper(cols)
	return joined.Select(cols...), nil
}

func tiingoDownloadWorker(ctx context.Context, result chan<- quoteResult, symbol string, metric string, frequency string, begin time.Time, end time.Time, t *tiingo) {
	df, err := t.loadDataForPeriod(ctx, symbol, metric, frequency, begin, end)
	result <- quoteResult{
		Ticker: symbol,
		Data:   df,
		Err:    err,
	}
}

func (t *tiingo) loadDataForPeriod(ctx context.Context, symbol string, metric string, frequency string, begin time.Time, end time.Time) (*dataframe.DataFrame, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.loadDataForPeriod")
	defer span.End()

	span.SetAttributes(attribute.KeyValue{
		Key:   "Symbol",
		Value: attribute.StringValue(symbol),
	})

	subLog := log.With().Str("Symbol", symbol).Str("Metric", metric).Str("Frequency", frequency).Logger()

	url := fmt.Sprintf("%s/tiingo/daily/%s/prices?startDate=%s&endDate=%s&resampleFreq=%s&token=%s", tiingoAPI, symbol, begin.Format("2006-01-02"), end.Format("2006-01-02"), frequency, t.apikey)
	cacheKey := fmt.Sprintf("tiingo:%s:%s:%s:%s", symbol, frequency, begin.Format("2006-01-02"), end.Format("2006-01-02"))

	body, err := common.CacheGet(cacheKey)
	if err != nil {
		body, err = fetchWithRetry(url)
		if err != nil {
			span.RecordError(err)
			msg := "tiingo http request failed"
			span.SetStatus(codes.Error, msg)
			subLog.Error().Err(err).Msg(msg)
			return nil, err
		}
		if err := common.CacheSet(cacheKey, body); err != nil {
			subLog.Warn().Err(err).Msg("could not cache tiingo response")
		}
	}

	jsonResp := []tiingoJSONResponse{}
	if err := json.Unmarshal(body, &jsonResp); err != nil {
		span.RecordError(err)
		msg := "could not unmarshal json"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Bytes("Body", body).Msg(msg)
		return nil, err
	}

	if len(jsonResp) == 0 {
		span.SetStatus(codes.Error, "no data returned")
		return nil, ErrDataUnavailable
	}

	tz := common.GetTimezone()
	dates := make([]time.Time, 0, len(jsonResp))
	vals := make([]float64, 0, len(jsonResp))
	for _, row := range jsonResp {
		dtParts := strings.Split(row.Date, "T")
		dt, err := time.ParseInLocation("2006-01-02", dtParts[0], tz)
		if err != nil {
			span.RecordError(err)
			subLog.Error().Err(err).Str("DateStr", row.Date).Msg("cannot parse date string")
			return nil, err
		}
		dates = append(dates, dt)
		switch metric {
		case MetricClose:
			vals = append(vals, row.Close)
		case MetricAdjustedClose:
			vals = append(vals, row.AdjClose)
		}
	}

	return &dataframe.DataFrame{
		Dates:    dates,
		ColNames: []string{symbol},
		Vals:     [][]float64{vals},
	}, nil
}

// fetchWithRetry GETs the url, retrying transient failures with
// exponential back-off for up to 30 seconds
func fetchWithRetry(url string) ([]byte, error) {
	var body []byte
	operation := func() error {
		resp, err := http.Get(url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("HTTP request returned invalid status code: %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			// client errors do not recover on retry
			return backoff.Permanent(fmt.Errorf("HTTP request returned invalid status code: %d", resp.StatusCode))
		}
		body, err = ioutil.ReadAll(resp.Body)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}
