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

package report_test

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/penny-vault/pv-rebalance/common"
	"github.com/penny-vault/pv-rebalance/factor"
	"github.com/penny-vault/pv-rebalance/portfolio"
	"github.com/penny-vault/pv-rebalance/report"
	"github.com/zeebo/blake3"
)

func sampleRebalance() *report.Rebalance {
	tz := common.GetTimezone()
	return &report.Rebalance{
		RunID:          "f2f8d4ea-7f6a-4f8e-9d55-27e1c224f3a1",
		Quarter:        "2023Q1",
		AsOf:           time.Date(2023, 2, 15, 0, 0, 0, 0, tz),
		RebalanceDate:  time.Date(2023, 1, 3, 0, 0, 0, 0, tz),
		WindowBegin:    time.Date(2018, 1, 3, 0, 0, 0, 0, tz),
		WindowEnd:      time.Date(2023, 1, 2, 0, 0, 0, 0, tz),
		UniverseSize:   3,
		UniverseDigest: "abc123",
		EligibleSize:   3,
		Candidates:     []string{"AGG", "QQQ", "SPY"},
		Weights:        portfolio.NewWeightVector([]string{"AGG", "QQQ", "SPY"}, []float64{0.2, 0.35, 0.45}),
		Metrics: &portfolio.Metrics{
			MeanMonthly:      0.008,
			MeanAnnualized:   0.1003,
			VolMonthly:       0.03,
			VolAnnualized:    0.1039,
			SharpeAnnualized: 0.85,
		},
		Exposure: &factor.Exposure{
			Alpha:            0.001,
			AlphaAnnualized:  0.0121,
			AlphaTStat:       1.4,
			Betas:            []float64{0.9, 0.1, -0.05, 0.02, 0.0},
			FactorNames:      []string{"Mkt-RF", "SMB", "HML", "RMW", "CMA"},
			RSquared:         0.91,
			ResidualVariance: 1e-5,
			NObs:             60,
		},
		CreatedAt: time.Date(2023, 2, 15, 12, 0, 0, 0, tz),
	}
}

var _ = Describe("Writer", func() {
	var (
		outDir string
		writer *report.Writer
	)

	BeforeEach(func() {
		var err error
		outDir, err = ioutil.TempDir("", "pvrebalance")
		Expect(err).To(BeNil())
		writer = report.NewWriter(outDir)
	})

	AfterEach(func() {
		os.RemoveAll(outDir)
	})

	It("writes all four artifacts", func() {
		finals, err := writer.Write(sampleRebalance())
		Expect(err).To(BeNil())
		Expect(finals).To(HaveLen(4))

		for _, fn := range []string{"weights_2023Q1.csv", "weights_2023Q1.json", "report_2023Q1.md", "manifest_2023Q1.toml"} {
			_, err := os.Stat(filepath.Join(outDir, fn))
			Expect(err).To(BeNil())
		}

		Expect(writer.Exists("2023Q1")).To(BeTrue())
		Expect(writer.Exists("2023Q2")).To(BeFalse())
	})

	It("leaves no staging files behind", func() {
		_, err := writer.Write(sampleRebalance())
		Expect(err).To(BeNil())

		entries, err := ioutil.ReadDir(outDir)
		Expect(err).To(BeNil())
		for _, entry := range entries {
			Expect(strings.HasSuffix(entry.Name(), ".tmp")).To(BeFalse())
		}
	})

	It("renders the weights csv sorted by weight", func() {
		_, err := writer.Write(sampleRebalance())
		Expect(err).To(BeNil())

		body, err := ioutil.ReadFile(filepath.Join(outDir, "weights_2023Q1.csv"))
		Expect(err).To(BeNil())
		Expect(string(body)).To(Equal("ticker,weight\nSPY,0.450000\nQQQ,0.350000\nAGG,0.200000\n"))
	})

	It("renders the weights json with typed allocations", func() {
		_, err := writer.Write(sampleRebalance())
		Expect(err).To(BeNil())

		body, err := ioutil.ReadFile(filepath.Join(outDir, "weights_2023Q1.json"))
		Expect(err).To(BeNil())

		var doc struct {
			Quarter       string                 `json:"quarter"`
			RebalanceDate string                 `json:"rebalanceDate"`
			Allocations   []portfolio.Allocation `json:"allocations"`
		}
		Expect(json.Unmarshal(body, &doc)).To(Succeed())
		Expect(doc.Quarter).To(Equal("2023Q1"))
		Expect(doc.Allocations).To(HaveLen(3))
		Expect(doc.Allocations[0]).To(Equal(portfolio.Allocation{Ticker: "SPY", Weight: 0.45}))
	})

	It("records artifact digests in the manifest", func() {
		_, err := writer.Write(sampleRebalance())
		Expect(err).To(BeNil())

		body, err := ioutil.ReadFile(filepath.Join(outDir, "manifest_2023Q1.toml"))
		Expect(err).To(BeNil())

		var m struct {
			RunID     string `toml:"run_id"`
			Quarter   string `toml:"quarter"`
			Artifacts []struct {
				Name   string `toml:"name"`
				Digest string `toml:"digest"`
				Size   int    `toml:"size"`
			} `toml:"artifacts"`
		}
		Expect(toml.Unmarshal(body, &m)).To(BeNil())
		Expect(m.Quarter).To(Equal("2023Q1"))
		Expect(m.Artifacts).To(HaveLen(3))

		for _, artifact := range m.Artifacts {
			content, err := ioutil.ReadFile(filepath.Join(outDir, artifact.Name))
			Expect(err).To(BeNil())
			digest := blake3.Sum256(content)
			Expect(artifact.Digest).To(Equal(fmt.Sprintf("%x", digest)))
			Expect(artifact.Size).To(Equal(len(content)))
		}
	})

	It("includes the factor exposure in the markdown report", func() {
		_, err := writer.Write(sampleRebalance())
		Expect(err).To(BeNil())

		body, err := ioutil.ReadFile(filepath.Join(outDir, "report_2023Q1.md"))
		Expect(err).To(BeNil())
		md := string(body)
		Expect(md).To(ContainSubstring("# Rebalance 2023Q1"))
		Expect(md).To(ContainSubstring("Rebalance date: 2023-01-03"))
		Expect(md).To(ContainSubstring("| Mkt-RF | 0.9000 |"))
		Expect(md).To(ContainSubstring("Sharpe ratio"))
	})

	It("notes a degraded factor regression instead of failing", func() {
		r := sampleRebalance()
		r.Exposure = nil
		r.ExposureWarning = "factor design matrix is rank deficient"

		_, err := writer.Write(r)
		Expect(err).To(BeNil())

		body, err := ioutil.ReadFile(filepath.Join(outDir, "report_2023Q1.md"))
		Expect(err).To(BeNil())
		Expect(string(body)).To(ContainSubstring("Factor regression unavailable: factor design matrix is rank deficient"))
	})

	It("writes nothing when the output directory cannot be created", func() {
		blocked := filepath.Join(outDir, "blocked")
		Expect(ioutil.WriteFile(blocked, []byte("x"), 0o644)).To(BeNil())

		w := report.NewWriter(blocked)
		_, err := w.Write(sampleRebalance())
		Expect(err).ToNot(BeNil())
	})
})
