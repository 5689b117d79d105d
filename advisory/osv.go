// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package advisory

import (
	"encoding/json"
	"strings"

	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/dtos"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/l3montree-dev/trustgraph/utils"
	"github.com/package-url/packageurl-go"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// osvEcosystems maps OSV ecosystem names to purl types. Ecosystems of Linux
// distributions carry a release suffix like "Debian:12" which is cut off
// before the lookup.
var osvEcosystems = map[string]string{
	"npm":         packageurl.TypeNPM,
	"PyPI":        packageurl.TypePyPi,
	"Maven":       packageurl.TypeMaven,
	"Go":          packageurl.TypeGolang,
	"crates.io":   packageurl.TypeCargo,
	"NuGet":       packageurl.TypeNuget,
	"RubyGems":    packageurl.TypeGem,
	"Packagist":   packageurl.TypeComposer,
	"Pub":         packageurl.TypePub,
	"Hex":         packageurl.TypeHex,
	"Debian":      packageurl.TypeDebian,
	"Ubuntu":      packageurl.TypeDebian,
	"Alpine":      packageurl.TypeApk,
	"Red Hat":     packageurl.TypeRPM,
	"AlmaLinux":   packageurl.TypeRPM,
	"Rocky Linux": packageurl.TypeRPM,
}

var osvDistributionNamespaces = map[string]string{
	"Debian":      "debian",
	"Ubuntu":      "ubuntu",
	"Alpine":      "alpine",
	"Red Hat":     "redhat",
	"AlmaLinux":   "almalinux",
	"Rocky Linux": "rocky-linux",
}

func decodeOSV(data []byte) (dtos.OSV, error) {
	var osv dtos.OSV
	jsonErr := json.Unmarshal(data, &osv)
	if jsonErr == nil {
		return osv, nil
	}
	// YAML records are bridged through JSON so the dto keeps a single set of
	// field tags.
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return osv, errors.Wrap(jsonErr, "neither json nor yaml")
	}
	bridged, err := json.Marshal(raw)
	if err != nil {
		return osv, errors.Wrap(err, "could not convert yaml")
	}
	err = json.Unmarshal(bridged, &osv)
	return osv, err
}

func osvPurl(pkg dtos.Package) (normalize.Purl, error) {
	if pkg.Purl != "" {
		p, err := normalize.ParsePurl(pkg.Purl)
		if err != nil {
			return normalize.Purl{}, err
		}
		return p.Base(), nil
	}
	ecosystem, _, _ := strings.Cut(pkg.Ecosystem, ":")
	purlType, ok := osvEcosystems[ecosystem]
	if !ok {
		return normalize.Purl{}, errors.Errorf("unsupported ecosystem %q", pkg.Ecosystem)
	}
	namespace, name := osvDistributionNamespaces[ecosystem], pkg.Name
	switch purlType {
	case packageurl.TypeMaven:
		if group, artifact, ok := strings.Cut(pkg.Name, ":"); ok {
			namespace, name = group, artifact
		}
	case packageurl.TypeNPM:
		if strings.HasPrefix(pkg.Name, "@") {
			if scope, n, ok := strings.Cut(pkg.Name, "/"); ok {
				namespace, name = scope, n
			}
		}
	case packageurl.TypeGolang, packageurl.TypeComposer:
		if i := strings.LastIndex(pkg.Name, "/"); i > 0 {
			namespace, name = pkg.Name[:i], pkg.Name[i+1:]
		}
	}
	return normalize.FromPackageURL(*packageurl.NewPackageURL(purlType, namespace, name, "", nil, "")), nil
}

// osvRanges turns the events of one range into intervals. Events are read
// in order: an introduced event opens an interval which the next fixed,
// last_affected or limit event closes. A fixed event also yields an exact
// fixed status for that version.
func osvRanges(scheme normalize.VersionScheme, events []dtos.SemverEvent) (affected []normalize.VersionRange, fixed []string) {
	var open *normalize.VersionRange
	closeWith := func(high string, inclusive bool) {
		if open == nil {
			open = &normalize.VersionRange{Scheme: scheme}
		}
		open.High = utils.Ptr(high)
		open.HighInclusive = inclusive
		affected = append(affected, *open)
		open = nil
	}
	for _, event := range events {
		switch {
		case event.Introduced != "":
			if open != nil {
				affected = append(affected, *open)
			}
			open = &normalize.VersionRange{Scheme: scheme}
			if event.Introduced != "0" {
				open.Low = utils.Ptr(event.Introduced)
				open.LowInclusive = true
			}
		case event.Fixed != "":
			closeWith(event.Fixed, false)
			fixed = append(fixed, event.Fixed)
		case event.LastAffected != "":
			closeWith(event.LastAffected, true)
		case event.Limit != "" && event.Limit != "*":
			closeWith(event.Limit, false)
		}
	}
	if open != nil {
		affected = append(affected, *open)
	}
	return affected, fixed
}

// ParseOSV reads an OSV record in JSON or YAML. The record contributes one
// vulnerability per CVE it aliases, or one under its own id if it aliases
// none.
func ParseOSV(data []byte) (*Document, error) {
	osv, err := decodeOSV(data)
	if err != nil {
		return nil, shared.ParseError(errors.Wrap(err, "could not decode osv record"))
	}
	if osv.ID == "" {
		return nil, shared.ParseErrorf("osv record without id")
	}

	d := &Document{
		Format:     FormatOSV,
		Identifier: osv.ID,
		Title:      utils.EmptyThenNil(osv.Summary),
		Published:  osv.Published,
		Withdrawn:  osv.Withdrawn,
	}
	if !osv.Modified.IsZero() {
		modified := osv.Modified.UTC()
		d.Modified = &modified
	}

	scores := newScoreCollector(d)
	for _, severity := range osv.Severity {
		scores.add(severity.Score)
	}

	var packages []PackageStatus
	for _, affected := range osv.Affected {
		for _, severity := range affected.Severity {
			scores.add(severity.Score)
		}
		purl, err := osvPurl(affected.Package)
		if err != nil {
			d.Warn("package %s: %v", affected.Package.Name, err)
			continue
		}
		packages = append(packages, osvStatuses(d, purl, affected)...)
	}

	ids := osv.GetAssociatedCVEs()
	if len(ids) == 0 {
		ids = []string{osv.ID}
	}
	for _, id := range ids {
		v := Vulnerability{
			ID:        id,
			Title:     utils.EmptyThenNil(osv.Summary),
			Published: d.Published,
			Modified:  d.Modified,
			Withdrawn: d.Withdrawn,
			CWEs:      osv.DatabaseSpecific.CWEIDs,
			Scores:    scores.scores,
			Packages:  packages,
		}
		if osv.Details != "" {
			v.Descriptions = map[string]string{"en": osv.Details}
		}
		d.Vulnerabilities = append(d.Vulnerabilities, v)
	}
	return d, nil
}

func osvStatuses(d *Document, purl normalize.Purl, affected dtos.Affected) []PackageStatus {
	var statuses []PackageStatus
	hasRanges := false
	for _, r := range affected.Ranges {
		var scheme normalize.VersionScheme
		switch r.Type {
		case "SEMVER":
			scheme = normalize.SchemeSemver
		case "ECOSYSTEM":
			scheme = purl.VersionScheme()
		default:
			// GIT ranges name commits, not versions
			continue
		}
		hasRanges = true
		ranges, fixed := osvRanges(scheme, r.Events)
		for _, vr := range ranges {
			statuses = append(statuses, PackageStatus{Status: models.StatusAffected, Purl: purl, Range: vr})
		}
		for _, version := range fixed {
			statuses = append(statuses, PackageStatus{Status: models.StatusFixed, Purl: purl, Range: normalize.ExactRange(scheme, version)})
		}
	}
	if hasRanges {
		return statuses
	}
	if len(affected.Versions) == 0 {
		d.Warn("package %s has neither ranges nor versions", purl)
		return nil
	}
	for _, version := range affected.Versions {
		statuses = append(statuses, PackageStatus{Status: models.StatusAffected, Purl: purl, Range: normalize.ExactRange(purl.VersionScheme(), version)})
	}
	return statuses
}
