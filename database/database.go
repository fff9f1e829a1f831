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

package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/viper"
)

// PgxIface is the subset of the pgx connection interface used by the
// application; pgxmock satisfies it in tests
type PgxIface interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

var ErrNotConnected = errors.New("database not connected")

var pool PgxIface

// SetPool replaces the connection pool; used by tests to inject a mock
func SetPool(myPool PgxIface) {
	pool = myPool
}

// Connect to the database configured by the database.url setting
func Connect(ctx context.Context) error {
	dbPool, err := pgxpool.Connect(ctx, viper.GetString("database.url"))
	if err != nil {
		return err
	}
	if err := dbPool.Ping(ctx); err != nil {
		return err
	}
	pool = dbPool
	return nil
}

// Query runs the given sql against the connection pool
func Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	if pool == nil {
		return nil, ErrNotConnected
	}
	return pool.Query(ctx, sql, args...)
}
