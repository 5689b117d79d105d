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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToSemver(t *testing.T) {
	t.Run("empty string", func(t *testing.T) {
		_, err := ConvertToSemver("")
		assert.Error(t, err)
	})

	t.Run("coercible versions", func(t *testing.T) {
		tests := []struct {
			input    string
			expected string
		}{
			{"1.14.14", "1.14.14"},
			{"v1.14.14", "1.14.14"},
			{"1.14", "1.14.0"},
			{"1", "1.0.0"},
			{"19.03.9", "19.3.9"},
			{"3.0-beta1", "3.0.0-beta1"},
			{"2:1.2.3", "1.2.3"},
			{"1.2.3~rc1", "1.2.3-rc1"},
			{"1.2.3+build.5", "1.2.3+build.5"},
			{"31.4.0-1.el5_11", "31.4.0-1.el5.11"},
			{"2.4.27-10.sarge1.040815-1", "2.4.27-10.sarge1.040815-1"},
		}
		for _, tt := range tests {
			t.Run(tt.input, func(t *testing.T) {
				semver, err := ConvertToSemver(tt.input)
				require.NoError(t, err)
				assert.Equal(t, tt.expected, semver)
			})
		}
	})

	t.Run("versions which are not semver", func(t *testing.T) {
		for _, input := range []string{"1.2.3.4", "1.2a", "latest"} {
			_, err := ConvertToSemver(input)
			assert.Error(t, err, input)
		}
	})
}

func TestCompareSemver(t *testing.T) {
	assert.Negative(t, compareSemver("1.2.3-rc1", "1.2.3"))
	assert.Positive(t, compareSemver("1.10", "1.9"))
	assert.Zero(t, compareSemver("v2.0.0", "2.0"))
	assert.Negative(t, SemverCompare("1.2.3", "v1.2.4"))
}
