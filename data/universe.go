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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/penny-vault/pv-rebalance/database"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

// Universe is the candidate set of tickers the optimizer may allocate to
type Universe struct {
	Tickers []string
}

// LoadUniverse reads the candidate ticker list from a csv file. The first
// field of each row is the ticker; remaining fields are ignored. Tickers
// are upper-cased, duplicates keep their first occurrence, and input
// order is preserved.
func LoadUniverse(fn string) (*Universe, error) {
	subLog := log.With().Str("FileName", fn).Logger()

	fh, err := os.Open(fn)
	if err != nil {
		subLog.Error().Err(err).Msg("could not open universe file")
		return nil, err
	}
	defer fh.Close()

	return ReadUniverse(fh)
}

// ReadUniverse parses a universe csv from r
func ReadUniverse(r io.Reader) (*Universe, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	u := &Universe{}
	seen := make(map[string]bool)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 0 {
			continue
		}

		ticker := strings.ToUpper(strings.TrimSpace(record[0]))
		if ticker == "" || ticker == "TICKER" {
			continue
		}
		if seen[ticker] {
			continue
		}
		seen[ticker] = true
		u.Tickers = append(u.Tickers, ticker)
	}

	if len(u.Tickers) == 0 {
		return nil, ErrEmptyUniverse
	}

	return u, nil
}

// LoadUniverseFromDB reads the candidate ticker list from the securities
// table, most liquid first
func LoadUniverseFromDB(ctx context.Context, limit int) (*Universe, error) {
	rows, err := database.Query(ctx, "SELECT ticker FROM securities WHERE active='t' ORDER BY avg_dollar_volume DESC LIMIT $1", limit)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not query securities for universe")
		return nil, err
	}

	u := &Universe{}
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			log.Error().Err(err).Msg("could not scan universe query results")
			return nil, err
		}
		u.Tickers = append(u.Tickers, strings.ToUpper(ticker))
	}

	if len(u.Tickers) == 0 {
		return nil, ErrEmptyUniverse
	}

	return u, nil
}

// Digest returns a stable hash of the universe contents, used to record
// which candidate list produced a set of portfolio weights
func (u *Universe) Digest() string {
	hasher := blake3.New()
	for _, ticker := range u.Tickers {
		hasher.WriteString(ticker)
		hasher.WriteString("\n")
	}
	return fmt.Sprintf("%x", hasher.Sum(nil))
}
