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

package handler

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// quarterRe constrains the :quarter route parameter; anything else is
// rejected before it can touch the filesystem.
var quarterRe = regexp.MustCompile(`^\d{4}Q[1-4]$`)

func outputDir() string {
	return viper.GetString("output.dir")
}

// ListQuarters returns the quarters that have artifacts on disk,
// oldest first.
func ListQuarters(c *fiber.Ctx) error {
	entries, err := os.ReadDir(outputDir())
	if err != nil {
		if os.IsNotExist(err) {
			return c.JSON([]string{})
		}
		log.Error().Err(err).Str("Dir", outputDir()).Msg("could not list output directory")
		return fiber.ErrInternalServerError
	}

	quarters := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "manifest_") && strings.HasSuffix(name, ".toml") {
			quarter := strings.TrimSuffix(strings.TrimPrefix(name, "manifest_"), ".toml")
			if quarterRe.MatchString(quarter) {
				quarters = append(quarters, quarter)
			}
		}
	}
	sort.Strings(quarters)
	return c.JSON(quarters)
}

// GetWeights serves the target weights for a quarter. The response is
// JSON unless format=csv is requested.
func GetWeights(c *fiber.Ctx) error {
	quarter := c.Params("quarter")
	if !quarterRe.MatchString(quarter) {
		return fiber.ErrNotAcceptable
	}

	ext := "json"
	contentType := fiber.MIMEApplicationJSON
	if c.Query("format") == "csv" {
		ext = "csv"
		contentType = "text/csv"
	}

	body, err := os.ReadFile(filepath.Join(outputDir(), fmt.Sprintf("weights_%s.%s", quarter, ext)))
	if err != nil {
		if os.IsNotExist(err) {
			return fiber.ErrNotFound
		}
		log.Error().Err(err).Str("Quarter", quarter).Msg("could not read weights artifact")
		return fiber.ErrInternalServerError
	}

	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(body)
}

// GetReport serves the markdown report for a quarter.
func GetReport(c *fiber.Ctx) error {
	quarter := c.Params("quarter")
	if !quarterRe.MatchString(quarter) {
		return fiber.ErrNotAcceptable
	}

	body, err := os.ReadFile(filepath.Join(outputDir(), fmt.Sprintf("report_%s.md", quarter)))
	if err != nil {
		if os.IsNotExist(err) {
			return fiber.ErrNotFound
		}
		log.Error().Err(err).Str("Quarter", quarter).Msg("could not read report artifact")
		return fiber.ErrInternalServerError
	}

	c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
	return c.Send(body)
}

// GetManifest serves the artifact manifest for a quarter.
func GetManifest(c *fiber.Ctx) error {
	quarter := c.Params("quarter")
	if !quarterRe.MatchString(quarter) {
		return fiber.ErrNotAcceptable
	}

	body, err := os.ReadFile(filepath.Join(outputDir(), fmt.Sprintf("manifest_%s.toml", quarter)))
	if err != nil {
		if os.IsNotExist(err) {
			return fiber.ErrNotFound
		}
		log.Error().Err(err).Str("Quarter", quarter).Msg("could not read manifest artifact")
		return fiber.ErrInternalServerError
	}

	c.Set(fiber.HeaderContentType, "application/toml")
	return c.Send(body)
}
