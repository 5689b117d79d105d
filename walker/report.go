// Copyright (C) 2026 l3montree GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package walker

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type Phase int

const (
	PhaseRetrieval Phase = iota
	PhaseValidation
	PhaseUpload
)

var phaseNames = map[Phase]string{
	PhaseRetrieval:  "retrieval",
	PhaseValidation: "validation",
	PhaseUpload:     "upload",
}

func (p Phase) String() string {
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	name, ok := phaseNames[p]
	if !ok {
		return nil, errors.Errorf("unknown phase %d", p)
	}
	return []byte(name), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for phase, name := range phaseNames {
		if name == string(text) {
			*p = phase
			return nil
		}
	}
	return errors.Errorf("unknown phase %q", text)
}

// Report summarizes one run. Messages are keyed by phase and then by file.
type Report struct {
	Started    time.Time                     `json:"started"`
	Finished   time.Time                     `json:"finished"`
	Discovered int                           `json:"discovered"`
	Processed  int                           `json:"processed"`
	Skipped    int                           `json:"skipped"`
	Messages   map[Phase]map[string][]string `json:"messages"`
}

func (r Report) HasMessages() bool {
	return len(r.Messages) > 0
}

// Marshal renders the report for persistence.
func (r Report) Marshal() json.RawMessage {
	data, err := json.Marshal(r)
	if err != nil {
		// a report only holds strings, times and counters
		panic(err)
	}
	return data
}

// reportBuilder collects outcomes from concurrent workers.
type reportBuilder struct {
	mu     sync.Mutex
	report Report
}

func newReportBuilder(now time.Time) *reportBuilder {
	return &reportBuilder{report: Report{
		Started:  now,
		Messages: map[Phase]map[string][]string{},
	}}
}

func (b *reportBuilder) discovered(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Discovered = n
}

func (b *reportBuilder) processed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Processed++
}

func (b *reportBuilder) skip(phase Phase, file string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Skipped++
	b.add(phase, file, err.Error())
}

// warn records a message for a file which was processed anyway.
func (b *reportBuilder) warn(phase Phase, file string, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(phase, file, msg)
}

func (b *reportBuilder) add(phase Phase, file string, msg string) {
	files, ok := b.report.Messages[phase]
	if !ok {
		files = map[string][]string{}
		b.report.Messages[phase] = files
	}
	files[file] = append(files[file], msg)
}

func (b *reportBuilder) finish(now time.Time) Report {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Finished = now
	return b.report
}
