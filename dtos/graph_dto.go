// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package dtos

import (
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/normalize"
)

// Which selects the side of an edge the queried node is on.
type Which int

const (
	// WhichLeft matches edges where the queried node is the left node and
	// returns the right nodes.
	WhichLeft Which = iota
	// WhichRight matches edges where the queried node is the right node and
	// returns the left nodes.
	WhichRight
	WhichEither
)

var whichNames = map[Which]string{
	WhichLeft:   "left",
	WhichRight:  "right",
	WhichEither: "either",
}

func (w Which) String() string {
	return whichNames[w]
}

func ParseWhich(s string) (Which, bool) {
	for w, name := range whichNames {
		if name == s {
			return w, true
		}
	}
	return WhichEither, false
}

// Deprecation controls whether statuses of deprecated advisories are
// returned.
type Deprecation int

const (
	DeprecationIgnore Deprecation = iota
	DeprecationConsider
)

type PackageNode struct {
	NodeID  string   `json:"nodeId"`
	Name    string   `json:"name"`
	Version *string  `json:"version,omitempty"`
	Purls   []string `json:"purls"`
	Cpes    []string `json:"cpes"`
}

type RelatedNode struct {
	Relationship normalize.Relationship `json:"relationship"`
	// Left is true when the returned node is the left node of the edge.
	Left   bool   `json:"left"`
	NodeID string `json:"nodeId"`
	Name   string `json:"name"`
}

type StatusQuery struct {
	Deprecation     Deprecation
	VulnerabilityID *string
	// Context restricts statuses carrying a context CPE to those compatible
	// with it.
	Context *normalize.Cpe
}

type PurlStatusMatch struct {
	AdvisoryID         uuid.UUID              `json:"advisoryId"`
	AdvisoryIdentifier string                 `json:"advisoryIdentifier"`
	Deprecated         bool                   `json:"deprecated"`
	VulnerabilityID    string                 `json:"vulnerabilityId"`
	Status             string                 `json:"status"`
	Range              normalize.VersionRange `json:"-"`
	RangeText          string                 `json:"range"`
	ContextCpe         *string                `json:"contextCpe,omitempty"`
}

type ProductStatusMatch struct {
	AdvisoryID         uuid.UUID              `json:"advisoryId"`
	AdvisoryIdentifier string                 `json:"advisoryIdentifier"`
	Deprecated         bool                   `json:"deprecated"`
	VulnerabilityID    string                 `json:"vulnerabilityId"`
	Status             string                 `json:"status"`
	ProductName        string                 `json:"productName"`
	Package            *string                `json:"package,omitempty"`
	Range              normalize.VersionRange `json:"-"`
	RangeText          string                 `json:"range"`
	ContextCpe         *string                `json:"contextCpe,omitempty"`
}

type AdvisorySummary struct {
	ID         uuid.UUID  `json:"id"`
	Identifier string     `json:"identifier"`
	Format     string     `json:"format"`
	Title      *string    `json:"title,omitempty"`
	Modified   *time.Time `json:"modified,omitempty"`
	Deprecated bool       `json:"deprecated"`
}

type VulnerabilityDetails struct {
	ID           string            `json:"id"`
	Title        *string           `json:"title,omitempty"`
	Descriptions map[string]string `json:"descriptions"`
	CWEs         []string          `json:"cwes"`
	Advisories   []AdvisorySummary `json:"advisories"`
	Scores       []ScoreDTO        `json:"scores"`
}

type ScoreDTO struct {
	Type     string  `json:"type"`
	Vector   string  `json:"vector"`
	Score    float64 `json:"score"`
	Severity string  `json:"severity"`
}
