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
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type CpeValueKind int

const (
	CpeAny CpeValueKind = iota
	CpeNotApplicable
	CpeLiteral
)

type CpeValue struct {
	Kind  CpeValueKind
	Value string
}

func (v CpeValue) String() string {
	switch v.Kind {
	case CpeNotApplicable:
		return "-"
	case CpeLiteral:
		return v.Value
	default:
		return "*"
	}
}

// Ptr returns nil for ANY so the component can be stored in a nullable column.
func (v CpeValue) Ptr() *string {
	if v.Kind == CpeAny {
		return nil
	}
	s := v.String()
	return &s
}

func (v CpeValue) field() Field {
	if v.Kind == CpeAny {
		return Absent()
	}
	return Str(v.String())
}

func cpeValue(raw string) CpeValue {
	switch raw {
	case "", "*":
		return CpeValue{Kind: CpeAny}
	case "-":
		return CpeValue{Kind: CpeNotApplicable}
	}
	return CpeValue{Kind: CpeLiteral, Value: strings.ToLower(raw)}
}

// CpeValueFromPtr is the inverse of CpeValue.Ptr.
func CpeValueFromPtr(s *string) CpeValue {
	if s == nil {
		return CpeValue{Kind: CpeAny}
	}
	return cpeValue(*s)
}

// Cpe holds the seven components shared by CPE 2.2 URIs and CPE 2.3
// formatted strings.
type Cpe struct {
	Part     CpeValue
	Vendor   CpeValue
	Product  CpeValue
	Version  CpeValue
	Update   CpeValue
	Edition  CpeValue
	Language CpeValue
}

func (c Cpe) components() []CpeValue {
	return []CpeValue{c.Part, c.Vendor, c.Product, c.Version, c.Update, c.Edition, c.Language}
}

func ParseCpe(s string) (Cpe, error) {
	switch {
	case strings.HasPrefix(s, "cpe:2.3:"):
		return parseCpe23(s)
	case strings.HasPrefix(s, "cpe:/"):
		return parseCpe22(s)
	default:
		return Cpe{}, errors.Errorf("unsupported cpe format: %q", s)
	}
}

func MustParseCpe(s string) Cpe {
	c, err := ParseCpe(s)
	if err != nil {
		panic(err)
	}
	return c
}

func parseCpe22(s string) (Cpe, error) {
	parts := strings.Split(strings.TrimPrefix(s, "cpe:/"), ":")
	if len(parts) > 7 {
		return Cpe{}, errors.Errorf("cpe 2.2 uri %q has too many components", s)
	}
	values := make([]string, 7)
	for i, p := range parts {
		unescaped, err := url.PathUnescape(p)
		if err != nil {
			unescaped = p
		}
		values[i] = unescaped
	}
	return cpeFromValues(s, values)
}

func parseCpe23(s string) (Cpe, error) {
	parts := splitEscaped(strings.TrimPrefix(s, "cpe:2.3:"), ':')
	if len(parts) < 3 || len(parts) > 11 {
		return Cpe{}, errors.Errorf("cpe 2.3 string %q has %d components", s, len(parts))
	}
	values := make([]string, 7)
	for i := 0; i < 7 && i < len(parts); i++ {
		values[i] = parts[i]
	}
	return cpeFromValues(s, values)
}

func cpeFromValues(raw string, values []string) (Cpe, error) {
	c := Cpe{
		Part:     cpeValue(values[0]),
		Vendor:   cpeValue(values[1]),
		Product:  cpeValue(values[2]),
		Version:  cpeValue(values[3]),
		Update:   cpeValue(values[4]),
		Edition:  cpeValue(values[5]),
		Language: cpeValue(values[6]),
	}
	if c.Part.Kind == CpeLiteral && c.Part.Value != "a" && c.Part.Value != "o" && c.Part.Value != "h" {
		return Cpe{}, errors.Errorf("cpe %q has invalid part %q", raw, c.Part.Value)
	}
	return c, nil
}

// splitEscaped splits on sep unless it is preceded by a backslash and drops
// the escaping backslashes.
func splitEscaped(s string, sep byte) []string {
	var parts []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s):
			i++
			cur.WriteByte(s[i])
		case s[i] == sep:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(s[i])
		}
	}
	return append(parts, cur.String())
}

// String renders the CPE as a 2.3 formatted string.
func (c Cpe) String() string {
	var b strings.Builder
	b.WriteString("cpe:2.3")
	for _, v := range c.components() {
		b.WriteByte(':')
		b.WriteString(strings.ReplaceAll(v.String(), ":", `\:`))
	}
	b.WriteString(":*:*:*:*")
	return b.String()
}

// ID hashes the components in their fixed order.
func (c Cpe) ID() uuid.UUID {
	fields := []Field{Str("cpe")}
	for _, v := range c.components() {
		fields = append(fields, v.field())
	}
	return DeriveUUID(fields...)
}

// Matches reports whether target is compatible with c used as a pattern:
// every component of c is ANY or equal to the component of target.
func (c Cpe) Matches(target Cpe) bool {
	pattern, actual := c.components(), target.components()
	for i := range pattern {
		if pattern[i].Kind == CpeAny {
			continue
		}
		if pattern[i] != actual[i] {
			return false
		}
	}
	return true
}
