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
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/package-url/packageurl-go"
	"github.com/pkg/errors"
)

// Purl is the canonical form of a package url. Namespace and Version are
// optional and nil is distinct from the empty string.
type Purl struct {
	Type       string
	Namespace  *string
	Name       string
	Version    *string
	Qualifiers map[string]string
}

func ParsePurl(s string) (Purl, error) {
	p, err := packageurl.FromString(s)
	if err != nil {
		return Purl{}, errors.Wrapf(err, "could not parse purl %q", s)
	}
	if p.Type == "" || p.Name == "" {
		return Purl{}, errors.Errorf("purl %q is missing type or name", s)
	}
	return FromPackageURL(p), nil
}

func MustParsePurl(s string) Purl {
	p, err := ParsePurl(s)
	if err != nil {
		panic(err)
	}
	return p
}

func FromPackageURL(p packageurl.PackageURL) Purl {
	purl := Purl{
		Type:       strings.ToLower(p.Type),
		Name:       p.Name,
		Qualifiers: map[string]string{},
	}
	if p.Namespace != "" {
		ns := p.Namespace
		purl.Namespace = &ns
	}
	if p.Version != "" {
		v := p.Version
		purl.Version = &v
	}
	for _, q := range p.Qualifiers {
		if q.Value == "" {
			continue
		}
		purl.Qualifiers[strings.ToLower(q.Key)] = q.Value
	}
	purl.canonicalize()
	return purl
}

// canonicalize applies the type specific case and separator rules of the
// purl type definitions.
func (p *Purl) canonicalize() {
	switch p.Type {
	case "pypi":
		p.Name = strings.ReplaceAll(strings.ToLower(p.Name), "_", "-")
	case "github", "bitbucket", "composer", "huggingface":
		p.Name = strings.ToLower(p.Name)
		if p.Namespace != nil {
			ns := strings.ToLower(*p.Namespace)
			p.Namespace = &ns
		}
	case "npm":
		if p.Namespace != nil {
			ns := strings.ToLower(*p.Namespace)
			p.Namespace = &ns
		}
	}
}

func (p Purl) PackageURL() packageurl.PackageURL {
	var ns, version string
	if p.Namespace != nil {
		ns = *p.Namespace
	}
	if p.Version != nil {
		version = *p.Version
	}
	return *packageurl.NewPackageURL(p.Type, ns, p.Name, version, packageurl.QualifiersFromMap(p.Qualifiers), "")
}

// String renders the purl with qualifiers sorted by key.
func (p Purl) String() string {
	u := p.PackageURL()
	return u.ToString()
}

// Base returns the purl without version and qualifiers.
func (p Purl) Base() Purl {
	return Purl{Type: p.Type, Namespace: p.Namespace, Name: p.Name, Qualifiers: map[string]string{}}
}

// Versioned returns the purl without qualifiers.
func (p Purl) Versioned() Purl {
	b := p.Base()
	b.Version = p.Version
	return b
}

func (p Purl) WithVersion(version string) Purl {
	c := p
	c.Version = &version
	c.Qualifiers = maps.Clone(p.Qualifiers)
	return c
}

func (p Purl) BaseID() uuid.UUID {
	return DeriveUUID(Str("purl"), Str(p.Type), Opt(p.Namespace), Str(p.Name))
}

// VersionedID nests the base id so that the versioned identity can be
// derived without re-reading the base fields.
func (p Purl) VersionedID() uuid.UUID {
	return DeriveUUID(Str("versioned_purl"), Str(p.BaseID().String()), Opt(p.Version))
}

func (p Purl) QualifiedID() uuid.UUID {
	fields := []Field{Str("qualified_purl"), Str(p.VersionedID().String())}
	return DeriveUUID(append(fields, MapFields(p.Qualifiers)...)...)
}

// VersionScheme selects the comparator family for versions of this package.
func (p Purl) VersionScheme() VersionScheme {
	return SchemeForPurlType(p.Type)
}

// QualifiersMapToString renders qualifiers as a stable "k=v&k=v" string.
func QualifiersMapToString(qualifiers map[string]string) string {
	keys := slices.Sorted(maps.Keys(qualifiers))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+qualifiers[k])
	}
	return strings.Join(parts, "&")
}
