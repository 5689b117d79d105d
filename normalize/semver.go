// Copyright (C) 2024 Tim Bastin, l3montree GmbH
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

package normalize

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/mod/semver"
)

// Regex for validating a correct semver.
var ValidSemverRegex = regexp.MustCompile(`^(?P<major>0|[1-9]\d*)\.(?P<minor>0|[1-9]\d*)\.(?P<patch>0|[1-9]\d*)(?:-(?P<prerelease>(?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*)(?:\.(?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*))*))?(?:\+(?P<buildmetadata>[0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?$`)

var versionInvalidCharsRe = regexp.MustCompile(`[^0-9.]`)

// ConvertToSemver coerces the loose version strings found in advisories into
// semantic versions:
//   - epoch prefixes are dropped ("2:1.2.3" -> "1.2.3")
//   - a "v" prefix is dropped
//   - "~" starts a pre-release like "-" does
//   - missing segments are padded ("1.2" -> "1.2.0")
//
// It fails for more than three numeric segments or anything but digits and
// dots in the version core.
func ConvertToSemver(originalVersion string) (string, error) {
	if originalVersion == "" {
		return "", errors.Errorf("empty version")
	}

	version := originalVersion
	if idx := strings.Index(version, ":"); idx != -1 {
		version = version[idx+1:]
	}
	version = strings.TrimPrefix(version, "v")

	var buildMetadata, preRelease string
	if idx := strings.Index(version, "+"); idx != -1 {
		buildMetadata = version[idx+1:]
		version = version[:idx]
	}
	if idx := strings.Index(version, "~"); idx != -1 {
		preRelease = version[idx+1:]
		version = version[:idx]
	}
	if idx := strings.Index(version, "-"); idx != -1 {
		if preRelease != "" {
			preRelease = version[idx+1:] + "-" + preRelease
		} else {
			preRelease = version[idx+1:]
		}
		version = version[:idx]
	}
	// redhat style releases like "31.4.0-1.el5_11"
	preRelease = strings.ReplaceAll(preRelease, "_", ".")

	if versionInvalidCharsRe.MatchString(version) {
		return "", errors.Errorf("version contains invalid characters (only 0-9 and . allowed): %s", version)
	}

	segments := strings.Split(version, ".")
	if len(segments) > 3 {
		return "", errors.Errorf("version has more than 3 segments (expected major.minor.patch): %s", version)
	}
	for i, segment := range segments {
		trimmed := strings.TrimLeft(segment, "0")
		if trimmed == "" && segment != "" {
			trimmed = "0"
		}
		segments[i] = trimmed
	}
	for len(segments) < 3 {
		segments = append(segments, "0")
	}

	result := strings.Join(segments, ".")
	if preRelease != "" {
		result += "-" + preRelease
	}
	if buildMetadata != "" {
		result += "+" + buildMetadata
	}

	if !ValidSemverRegex.MatchString(result) {
		return "", errors.Errorf("resulting semver is invalid: %s", result)
	}
	return result, nil
}

// SemverCompare compares two valid semantic versions with or without "v".
func SemverCompare(v1, v2 string) int {
	if !strings.HasPrefix(v1, "v") {
		v1 = "v" + v1
	}
	if !strings.HasPrefix(v2, "v") {
		v2 = "v" + v2
	}
	return semver.Compare(v1, v2)
}

func compareSemver(a, b string) int {
	sa, errA := ConvertToSemver(a)
	sb, errB := ConvertToSemver(b)
	if errA != nil || errB != nil || !semver.IsValid("v"+sa) || !semver.IsValid("v"+sb) {
		return compareGeneric(a, b)
	}
	return SemverCompare(sa, sb)
}
