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

package report

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/penny-vault/pv-rebalance/common"
	"github.com/penny-vault/pv-rebalance/portfolio"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

// Writer persists rebalance artifacts under OutputDir
type Writer struct {
	OutputDir string
}

// NewWriter create an artifact writer rooted at dir
func NewWriter(dir string) *Writer {
	return &Writer{
		OutputDir: dir,
	}
}

// WeightsCSVPath returns the weights artifact path for a quarter label
func (w *Writer) WeightsCSVPath(quarter string) string {
	return filepath.Join(w.OutputDir, fmt.Sprintf("weights_%s.csv", quarter))
}

// Exists reports whether the weights artifact for the quarter is already
// present, used by the scheduler to keep runs idempotent
func (w *Writer) Exists(quarter string) bool {
	_, err := os.Stat(w.WeightsCSVPath(quarter))
	return err == nil
}

// Write persists all artifacts for the run. Every file is staged to a
// temporary name first; only after each artifact renders successfully are
// they renamed into place. Returns the final artifact paths.
func (w *Writer) Write(r *Rebalance) ([]string, error) {
	subLog := log.With().Str("Quarter", r.Quarter).Str("OutputDir", w.OutputDir).Logger()

	if err := os.MkdirAll(w.OutputDir, 0o755); err != nil {
		return nil, err
	}

	artifacts := []struct {
		name   string
		render func(*Rebalance) ([]byte, error)
	}{
		{fmt.Sprintf("weights_%s.csv", r.Quarter), renderWeightsCSV},
		{fmt.Sprintf("weights_%s.json", r.Quarter), renderWeightsJSON},
		{fmt.Sprintf("report_%s.md", r.Quarter), renderMarkdown},
	}

	manifest := newManifest(r)

	staged := make([]string, 0, len(artifacts)+1)
	finals := make([]string, 0, len(artifacts)+1)
	cleanup := func() {
		for _, fn := range staged {
			if err := os.Remove(fn); err != nil {
				subLog.Warn().Err(err).Str("FileName", fn).Msg("could not remove staged artifact")
			}
		}
	}

	for _, artifact := range artifacts {
		body, err := artifact.render(r)
		if err != nil {
			cleanup()
			subLog.Error().Err(err).Str("FileName", artifact.name).Msg("could not render artifact")
			return nil, err
		}

		final := filepath.Join(w.OutputDir, artifact.name)
		tmp := final + ".tmp"
		if err := ioutil.WriteFile(tmp, body, 0o644); err != nil {
			cleanup()
			subLog.Error().Err(err).Str("FileName", tmp).Msg("could not stage artifact")
			return nil, err
		}

		staged = append(staged, tmp)
		finals = append(finals, final)
		manifest.addArtifact(artifact.name, body)
	}

	manifestBody, err := toml.Marshal(manifest)
	if err != nil {
		cleanup()
		return nil, err
	}
	manifestFinal := filepath.Join(w.OutputDir, fmt.Sprintf("manifest_%s.toml", r.Quarter))
	manifestTmp := manifestFinal + ".tmp"
	if err := ioutil.WriteFile(manifestTmp, manifestBody, 0o644); err != nil {
		cleanup()
		return nil, err
	}
	staged = append(staged, manifestTmp)
	finals = append(finals, manifestFinal)

	// all artifacts rendered; move them into place
	for idx, tmp := range staged {
		if err := os.Rename(tmp, finals[idx]); err != nil {
			cleanup()
			subLog.Error().Err(err).Str("FileName", finals[idx]).Msg("could not publish artifact")
			return nil, err
		}
	}

	subLog.Info().Strs("Artifacts", finals).Msg("wrote rebalance artifacts")
	return finals, nil
}

func renderWeightsCSV(r *Rebalance) ([]byte, error) {
	s := &strings.Builder{}
	s.WriteString("ticker,weight\n")
	for _, alloc := range r.Weights.Allocations {
		fmt.Fprintf(s, "%s,%.6f\n", alloc.Ticker, alloc.Weight)
	}
	return []byte(s.String()), nil
}

func renderWeightsJSON(r *Rebalance) ([]byte, error) {
	doc := struct {
		Quarter       string                 `json:"quarter"`
		RebalanceDate string                 `json:"rebalanceDate"`
		Allocations   []portfolio.Allocation `json:"allocations"`
	}{
		Quarter:       r.Quarter,
		RebalanceDate: r.RebalanceDate.Format("2006-01-02"),
		Allocations:   r.Weights.Allocations,
	}
	return json.MarshalIndent(doc, "", "  ")
}

type manifestArtifact struct {
	Name   string `toml:"name"`
	Digest string `toml:"digest"`
	Size   int    `toml:"size"`
}

type manifest struct {
	RunID          string             `toml:"run_id"`
	Quarter        string             `toml:"quarter"`
	Created        string             `toml:"created"`
	Version        string             `toml:"version"`
	AsOf           string             `toml:"as_of"`
	RebalanceDate  string             `toml:"rebalance_date"`
	WindowBegin    string             `toml:"window_begin"`
	WindowEnd      string             `toml:"window_end"`
	UniverseSize   int                `toml:"universe_size"`
	UniverseDigest string             `toml:"universe_digest"`
	EligibleSize   int                `toml:"eligible_size"`
	Artifacts      []manifestArtifact `toml:"artifacts"`
}

func newManifest(r *Rebalance) *manifest {
	return &manifest{
		RunID:          r.RunID,
		Quarter:        r.Quarter,
		Created:        r.CreatedAt.Format(time.RFC3339),
		Version:        common.CurrentVersion.String(),
		AsOf:           r.AsOf.Format("2006-01-02"),
		RebalanceDate:  r.RebalanceDate.Format("2006-01-02"),
		WindowBegin:    r.WindowBegin.Format("2006-01-02"),
		WindowEnd:      r.WindowEnd.Format("2006-01-02"),
		UniverseSize:   r.UniverseSize,
		UniverseDigest: r.UniverseDigest,
		EligibleSize:   r.EligibleSize,
	}
}

func (m *manifest) addArtifact(name string, body []byte) {
	digest := blake3.Sum256(body)
	m.Artifacts = append(m.Artifacts, manifestArtifact{
		Name:   name,
		Digest: fmt.Sprintf("%x", digest),
		Size:   len(body),
	})
}
