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
	"encoding/binary"
	"slices"
	"strconv"

	"github.com/google/uuid"
)

// Namespace seeds every content-addressed identity of the knowledge graph.
// Changing it changes every id in every database.
var Namespace = uuid.MustParse("7b1e4d0a-3f1c-5c55-9d0e-6f3a1b2c4d5e")

const (
	absentMarker  byte = 0x00
	presentMarker byte = 0x01
)

// Field is one input of DeriveUUID. Use Str or Opt to build it.
type Field struct {
	value   string
	present bool
}

func Str(s string) Field {
	return Field{value: s, present: true}
}

// Opt keeps nil and "" apart: nil hashes as a sentinel.
func Opt(s *string) Field {
	if s == nil {
		return Field{}
	}
	return Field{value: *s, present: true}
}

func Absent() Field {
	return Field{}
}

// DeriveUUID is a pure function of the ordered fields.
func DeriveUUID(fields ...Field) uuid.UUID {
	buf := make([]byte, 0, 64)
	var lenBuf [binary.MaxVarintLen64]byte
	for _, f := range fields {
		if !f.present {
			buf = append(buf, absentMarker)
			continue
		}
		buf = append(buf, presentMarker)
		n := binary.PutUvarint(lenBuf[:], uint64(len(f.value)))
		buf = append(buf, lenBuf[:n]...)
		buf = append(buf, f.value...)
	}
	return uuid.NewSHA1(Namespace, buf)
}

// MapFields flattens a map into its pair count followed by key/value fields
// sorted by key.
func MapFields(m map[string]string) []Field {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	fields := make([]Field, 0, len(keys)*2+1)
	fields = append(fields, Str(strconv.Itoa(len(keys))))
	for _, k := range keys {
		fields = append(fields, Str(k), Str(m[k]))
	}
	return fields
}

func CompareUUID(a, b uuid.UUID) int {
	return slices.Compare(a[:], b[:])
}
