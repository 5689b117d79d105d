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

package normalize

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type VersionScheme int

const (
	SchemeGeneric VersionScheme = iota
	SchemeSemver
	SchemeMaven
	SchemePython
	SchemeRpm
	SchemeDeb
	SchemeApk
)

var versionSchemeNames = map[VersionScheme]string{
	SchemeGeneric: "generic",
	SchemeSemver:  "semver",
	SchemeMaven:   "maven",
	SchemePython:  "python",
	SchemeRpm:     "rpm",
	SchemeDeb:     "deb",
	SchemeApk:     "apk",
}

var versionSchemesByName = func() map[string]VersionScheme {
	m := make(map[string]VersionScheme, len(versionSchemeNames))
	for k, v := range versionSchemeNames {
		m[v] = k
	}
	return m
}()

func (s VersionScheme) String() string {
	if name, ok := versionSchemeNames[s]; ok {
		return name
	}
	return "generic"
}

func ParseVersionScheme(s string) (VersionScheme, error) {
	if scheme, ok := versionSchemesByName[strings.ToLower(s)]; ok {
		return scheme, nil
	}
	return SchemeGeneric, errors.Errorf("unknown version scheme: %s", s)
}

// SchemeForPurlType maps a purl (or vers) type to its comparator family.
func SchemeForPurlType(purlType string) VersionScheme {
	switch strings.ToLower(purlType) {
	case "pypi", "python":
		return SchemePython
	case "maven":
		return SchemeMaven
	case "rpm":
		return SchemeRpm
	case "deb", "debian":
		return SchemeDeb
	case "apk", "alpine":
		return SchemeApk
	case "npm", "cargo", "golang", "nuget", "gem", "composer", "hex", "pub", "swift", "cocoapods", "semver":
		return SchemeSemver
	default:
		return SchemeGeneric
	}
}

var comparators = map[VersionScheme]func(a, b string) int{
	SchemeGeneric: compareGeneric,
	SchemeSemver:  compareSemver,
	SchemeMaven:   compareMaven,
	SchemePython:  comparePython,
	SchemeRpm:     compareRpm,
	SchemeDeb:     compareDeb,
	SchemeApk:     compareApk,
}

// Compare orders two versions of the given scheme and returns -1, 0 or 1.
// Versions the scheme cannot parse are compared with the generic scheme.
func Compare(scheme VersionScheme, a, b string) (result int) {
	if a == b {
		return 0
	}
	cmp, ok := comparators[scheme]
	if !ok {
		cmp = compareGeneric
	}
	// comparators must not panic on malformed input
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("version comparator panicked, falling back to generic", "scheme", scheme, "a", a, "b", b, "panic", r)
			result = compareGeneric(a, b)
		}
	}()
	return sign(cmp(a, b))
}

func sign(i int) int {
	switch {
	case i < 0:
		return -1
	case i > 0:
		return 1
	}
	return 0
}

// compareWithLibrary adapts the Equal/LessThan style of the ecosystem
// version libraries to a three-way comparison.
func compareWithLibrary[V any](
	a, b string,
	newVersion func(string) (V, error),
	equal func(a, b V) bool,
	lessThan func(a, b V) bool,
) int {
	va, errA := newVersion(a)
	vb, errB := newVersion(b)
	if errA != nil || errB != nil {
		return compareGeneric(a, b)
	}
	if equal(va, vb) {
		return 0
	}
	if lessThan(va, vb) {
		return -1
	}
	return 1
}

// VersionRange is an interval of versions under one scheme. A nil bound is
// unbounded on that side.
type VersionRange struct {
	Scheme        VersionScheme
	Low           *string
	LowInclusive  bool
	High          *string
	HighInclusive bool
}

func ExactRange(scheme VersionScheme, version string) VersionRange {
	return VersionRange{Scheme: scheme, Low: &version, LowInclusive: true, High: &version, HighInclusive: true}
}

func FullRange(scheme VersionScheme) VersionRange {
	return VersionRange{Scheme: scheme}
}

func (r VersionRange) IsExact() bool {
	return r.Low != nil && r.High != nil && *r.Low == *r.High && r.LowInclusive && r.HighInclusive
}

// Contains reports whether version lies inside the range.
func (r VersionRange) Contains(version string) bool {
	if r.Low != nil {
		c := Compare(r.Scheme, version, *r.Low)
		if c < 0 || (c == 0 && !r.LowInclusive) {
			return false
		}
	}
	if r.High != nil {
		c := Compare(r.Scheme, version, *r.High)
		if c > 0 || (c == 0 && !r.HighInclusive) {
			return false
		}
	}
	return true
}

// Matches is Contains with the version first.
func Matches(version string, r VersionRange) bool {
	return r.Contains(version)
}

func (r VersionRange) ID() uuid.UUID {
	return DeriveUUID(
		Str("version_range"),
		Str(r.Scheme.String()),
		Opt(r.Low),
		Str(fmt.Sprint(r.LowInclusive)),
		Opt(r.High),
		Str(fmt.Sprint(r.HighInclusive)),
	)
}

func (r VersionRange) String() string {
	if r.IsExact() {
		return "=" + *r.Low
	}
	var b strings.Builder
	if r.Low == nil {
		b.WriteString("(*")
	} else {
		if r.LowInclusive {
			b.WriteByte('[')
		} else {
			b.WriteByte('(')
		}
		b.WriteString(*r.Low)
	}
	b.WriteString(", ")
	if r.High == nil {
		b.WriteString("*)")
	} else {
		b.WriteString(*r.High)
		if r.HighInclusive {
			b.WriteByte(']')
		} else {
			b.WriteByte(')')
		}
	}
	return b.String()
}
