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

// Package advisory parses CSAF, OSV, CVE and OpenVEX documents into the
// vulnerabilities they describe and the package and product statuses they
// assert.
package advisory

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/shared"
)

type Format int

const (
	FormatCSAF Format = iota
	FormatOSV
	FormatCVE
	FormatOpenVEX
)

var formatNames = map[Format]string{
	FormatCSAF: "csaf",
	FormatOSV:  "osv",
	FormatCVE:  "cve",

	FormatOpenVEX: "openvex",
}

func (f Format) String() string {
	return formatNames[f]
}

// PackageStatus asserts a status for every version of a package inside
// Range. Purl only contributes its base identity.
type PackageStatus struct {
	Status  string
	Purl    normalize.Purl
	Range   normalize.VersionRange
	Context *normalize.Cpe
}

// ProductStatus is the analog of PackageStatus for products named by a
// product tree rather than a purl.
type ProductStatus struct {
	Status  string
	Vendor  *string
	Product string
	Cpe     *normalize.Cpe
	Range   normalize.VersionRange
	Package *string
}

type Vulnerability struct {
	ID      string
	Title   *string
	Summary *string
	// Descriptions are keyed by language.
	Descriptions  map[string]string
	CWEs          []string
	Published     *time.Time
	Modified      *time.Time
	Withdrawn     *time.Time
	Reserved      *time.Time
	DiscoveryDate *time.Time
	ReleaseDate   *time.Time
	Scores        []Score
	Packages      []PackageStatus
	Products      []ProductStatus
}

type Document struct {
	Format     Format
	Identifier string
	Title      *string
	Version    *string
	Issuer     *string
	Published  *time.Time
	Modified   *time.Time
	Withdrawn  *time.Time

	Vulnerabilities []Vulnerability
	Warnings        []string
}

func (d *Document) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Debug("advisory warning", "format", d.Format, "identifier", d.Identifier, "msg", msg)
	d.Warnings = append(d.Warnings, msg)
}

// Options tune parsing. The zero value is ready to use.
type Options struct {
	// ValidateCSAF runs the CSAF JSON schema validation before parsing.
	ValidateCSAF bool
}

// Parse dispatches to the adapter of format.
func Parse(format Format, data []byte, opts Options) (*Document, error) {
	switch format {
	case FormatCSAF:
		return ParseCSAF(data, opts.ValidateCSAF)
	case FormatOSV:
		return ParseOSV(data)
	case FormatCVE:
		return ParseCVE(data)
	case FormatOpenVEX:
		return ParseOpenVEX(data)
	}
	return nil, shared.ParseErrorf("unknown advisory format %d", format)
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func parseTimePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	return parseTime(*s)
}
