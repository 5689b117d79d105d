package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

var schemeSamples = map[VersionScheme][]string{
	SchemeGeneric: {"1.0", "1.0.0", "1.2", "2.0rc1", "2.0", "10.1", "abc", "", "1..2", "1.0-final"},
	SchemeSemver:  {"1.0.0", "1.0.0-alpha", "1.0.0-alpha.1", "v1.2.3", "1.8", "1.8.0", "2.0.0+build.1", "not-a-version", "1.2.3.4"},
	SchemeMaven:   {"1.0", "1.0-SNAPSHOT", "1.0.1", "2.0-alpha-1", "2.0", "1.0-sp1", "%%%"},
	SchemePython:  {"1.0.2", "1.0.2b2", "1.0.2.post1", "1.0.2.dev1", "2!1.0", "1.0rc1", "weird version"},
	SchemeRpm:     {"1.0-1", "1.0-2", "1:1.0-1", "1.0~rc1-1", "1.0a-1", "2.0"},
	SchemeDeb:     {"1.0", "1.0~rc1", "1:0.9", "1.0-1ubuntu1", "2.0+dfsg-1", "???"},
	SchemeApk:     {"1.0-r0", "1.0-r1", "1.0_rc1-r0", "1.2.3", "nope"},
}

func TestCompareLaws(t *testing.T) {
	for scheme, samples := range schemeSamples {
		t.Run(scheme.String(), func(t *testing.T) {
			for _, a := range samples {
				assert.Equal(t, 0, Compare(scheme, a, a), "cmp(%q,%q)", a, a)
				for _, b := range samples {
					assert.NotPanics(t, func() { Compare(scheme, a, b) })
					assert.Equal(t, -Compare(scheme, b, a), Compare(scheme, a, b), "antisymmetry for %q and %q", a, b)
				}
			}
		})
	}
}

func TestRangeLaws(t *testing.T) {
	for scheme, samples := range schemeSamples {
		t.Run(scheme.String(), func(t *testing.T) {
			for _, v := range samples {
				assert.True(t, Matches(v, ExactRange(scheme, v)), "exact range must contain %q", v)
				assert.False(t, Matches(v, VersionRange{Scheme: scheme, High: strPtr(v), HighInclusive: false}), "exclusive high must not contain %q", v)
				assert.True(t, Matches(v, FullRange(scheme)))
			}
		})
	}
}

func TestCompare(t *testing.T) {
	cases := []struct {
		scheme   VersionScheme
		a, b     string
		expected int
	}{
		{SchemeSemver, "1.0.0-alpha", "1.0.0", -1},
		{SchemeSemver, "1.8", "1.8.0", 0},
		{SchemeSemver, "v1.2.3", "1.2.3", 0},
		{SchemeSemver, "1.10.0", "1.9.0", 1},
		{SchemeSemver, "2.0.0+build.1", "2.0.0", 0},
		{SchemePython, "1.0.2b2", "1.0.2", -1},
		{SchemePython, "1.0.2.dev1", "1.0.2b2", -1},
		{SchemePython, "1.0.2.post1", "1.0.2", 1},
		{SchemePython, "1.8", "1.8.0", 0},
		{SchemeMaven, "1.0-SNAPSHOT", "1.0", -1},
		{SchemeMaven, "1.0.1", "1.0", 1},
		{SchemeRpm, "1.0-1", "1.0-2", -1},
		{SchemeRpm, "1:1.0-1", "2.0-1", 1},
		{SchemeDeb, "1.0~rc1", "1.0", -1},
		{SchemeDeb, "1:0.9", "2.0", 1},
		{SchemeApk, "1.0-r0", "1.0-r1", -1},
		{SchemeGeneric, "1.8", "1.8.0", 0},
		{SchemeGeneric, "1.10", "1.9", 1},
		{SchemeGeneric, "2.0rc1", "2.0", -1},
		{SchemeGeneric, "1.0.1", "1.0", 1},
	}
	for _, tt := range cases {
		t.Run(tt.scheme.String()+" "+tt.a+" vs "+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, Compare(tt.scheme, tt.a, tt.b))
		})
	}
}

func TestPythonRangeBoundary(t *testing.T) {
	inclusive := VersionRange{Scheme: SchemePython, High: strPtr("1.0.2"), HighInclusive: true}
	exclusive := VersionRange{Scheme: SchemePython, High: strPtr("1.0.2"), HighInclusive: false}

	assert.True(t, Matches("1.0.2", inclusive))
	assert.False(t, Matches("1.0.2", exclusive))
	assert.True(t, Matches("1.0.2b2", exclusive))
}

func TestVersionRange(t *testing.T) {
	r := VersionRange{Scheme: SchemeSemver, Low: strPtr("1.0.2"), LowInclusive: true, High: strPtr("1.2.0")}

	assert.False(t, r.Contains("1.0.1"))
	assert.True(t, r.Contains("1.0.2"))
	assert.True(t, r.Contains("1.1.9"))
	assert.False(t, r.Contains("1.2.0"))
	assert.Equal(t, "[1.0.2, 1.2.0)", r.String())
	assert.Equal(t, "=1.0.2", ExactRange(SchemeSemver, "1.0.2").String())
	assert.Equal(t, r.ID(), VersionRange{Scheme: SchemeSemver, Low: strPtr("1.0.2"), LowInclusive: true, High: strPtr("1.2.0")}.ID())
	assert.NotEqual(t, r.ID(), FullRange(SchemeSemver).ID())
}

func TestParseVersionScheme(t *testing.T) {
	for scheme, name := range versionSchemeNames {
		parsed, err := ParseVersionScheme(name)
		require.NoError(t, err)
		assert.Equal(t, scheme, parsed)
	}
	_, err := ParseVersionScheme("cobol")
	assert.Error(t, err)
}

func TestParseVers(t *testing.T) {
	t.Run("bounded range", func(t *testing.T) {
		ranges, err := ParseVers("vers:pypi/>=1.0.2|<1.2.0")
		require.NoError(t, err)
		require.Len(t, ranges, 1)
		assert.Equal(t, SchemePython, ranges[0].Scheme)
		assert.Equal(t, "[1.0.2, 1.2.0)", ranges[0].String())
	})

	t.Run("several ranges and pinned versions", func(t *testing.T) {
		ranges, err := ParseVers("vers:npm/1.0.0|>=2.0.0|<=2.5.0|>3.0.0")
		require.NoError(t, err)
		require.Len(t, ranges, 3)
		assert.True(t, ranges[0].IsExact())
		assert.Equal(t, "[2.0.0, 2.5.0]", ranges[1].String())
		assert.Equal(t, "(3.0.0, *)", ranges[2].String())
	})

	t.Run("star", func(t *testing.T) {
		ranges, err := ParseVers("vers:maven/*")
		require.NoError(t, err)
		require.Len(t, ranges, 1)
		assert.Nil(t, ranges[0].Low)
		assert.Nil(t, ranges[0].High)
	})

	t.Run("upper bound only", func(t *testing.T) {
		ranges, err := ParseVers("vers:generic/<5")
		require.NoError(t, err)
		require.Len(t, ranges, 1)
		assert.Equal(t, "(*, 5)", ranges[0].String())
	})

	t.Run("errors", func(t *testing.T) {
		_, err := ParseVers(">=1.0")
		assert.Error(t, err)
		_, err = ParseVers("vers:npm/!=1.0.0")
		assert.Error(t, err)
	})
}
