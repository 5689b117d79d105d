package dtos

import (
	"slices"
	"strings"
	"time"
)

type Package struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
	Purl      string `json:"purl"`
}

type SemverEvent struct {
	Introduced   string `json:"introduced,omitempty"`
	Fixed        string `json:"fixed,omitempty"`
	LastAffected string `json:"last_affected,omitempty"`
	Limit        string `json:"limit,omitempty"`
}

type Range struct {
	Type   string        `json:"type"`
	Repo   string        `json:"repo"`
	Events []SemverEvent `json:"events"`
}

type Severity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

type Affected struct {
	Package           Package        `json:"package"`
	Severity          []Severity     `json:"severity"`
	Ranges            []Range        `json:"ranges"`
	Versions          []string       `json:"versions"`
	DatabaseSpecific  map[string]any `json:"database_specific"`
	EcosystemSpecific map[string]any `json:"ecosystem_specific"`
}

type Reference struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type OSV struct {
	ID            string      `json:"id"`
	Summary       string      `json:"summary"`
	Details       string      `json:"details"`
	Modified      time.Time   `json:"modified"`
	Published     *time.Time  `json:"published"`
	Withdrawn     *time.Time  `json:"withdrawn"`
	Related       []string    `json:"related"`
	Aliases       []string    `json:"aliases"`
	Upstream      []string    `json:"upstream"`
	Affected      []Affected  `json:"affected"`
	SchemaVersion string      `json:"schema_version"`
	Severity      []Severity  `json:"severity"`
	References    []Reference `json:"references"`
	// CWEs are only present in the database_specific block of some
	// databases, e.g. GitHub.
	DatabaseSpecific struct {
		CWEIDs []string `json:"cwe_ids"`
	} `json:"database_specific"`
}

// GetAssociatedCVEs returns the CVE ids the record is an alias of.
// Related records are not aliases and are ignored.
func (osv OSV) GetAssociatedCVEs() []string {
	cves := make([]string, 0)
	for _, alias := range osv.Aliases {
		if strings.HasPrefix(alias, "CVE-") {
			cves = append(cves, alias)
		}
	}

	for _, upstream := range osv.Upstream {
		if strings.HasPrefix(upstream, "CVE-") {
			cves = append(cves, upstream)
		}
	}

	// check if the osv itself is a cve
	if strings.HasPrefix(osv.ID, "CVE-") {
		cves = append(cves, osv.ID)
	}

	slices.Sort(cves)
	return slices.Compact(cves)
}

func (osv OSV) IsCVE() bool {
	return len(osv.GetAssociatedCVEs()) > 0
}
