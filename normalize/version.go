package normalize

import (
	"strings"
	"unicode"

	pep440 "github.com/aquasecurity/go-pep440-version"
	apk "github.com/knqyf263/go-apk-version"
	deb "github.com/knqyf263/go-deb-version"
	rpm "github.com/knqyf263/go-rpm-version"
	mvn "github.com/masahiro331/go-mvn-version"
)

func compareRpm(a, b string) int {
	return compareWithLibrary(
		a, b,
		func(v string) (rpm.Version, error) { return rpm.NewVersion(v), nil },
		func(a, b rpm.Version) bool { return a.Equal(b) },
		func(a, b rpm.Version) bool { return a.LessThan(b) },
	)
}

func compareDeb(a, b string) int {
	return compareWithLibrary(
		a, b,
		deb.NewVersion,
		func(a, b deb.Version) bool { return a.Equal(b) },
		func(a, b deb.Version) bool { return a.LessThan(b) },
	)
}

func compareApk(a, b string) int {
	return compareWithLibrary(
		a, b,
		apk.NewVersion,
		func(a, b apk.Version) bool { return a.Equal(b) },
		func(a, b apk.Version) bool { return a.LessThan(b) },
	)
}

// comparePython orders versions by PEP 440, so 1.0.2b2 < 1.0.2 < 1.0.2.post1.
func comparePython(a, b string) int {
	return compareWithLibrary(
		a, b,
		pep440.Parse,
		func(a, b pep440.Version) bool { return a.Equal(b) },
		func(a, b pep440.Version) bool { return a.LessThan(b) },
	)
}

func compareMaven(a, b string) int {
	return compareWithLibrary(
		a, b,
		mvn.NewVersion,
		func(a, b mvn.Version) bool { return a.Equal(b) },
		func(a, b mvn.Version) bool { return a.LessThan(b) },
	)
}

type versionToken struct {
	numeric bool
	value   string
}

// tokenizeVersion splits a version into maximal digit and letter runs.
// Everything else separates tokens.
func tokenizeVersion(v string) []versionToken {
	var tokens []versionToken
	var cur strings.Builder
	curNumeric := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, versionToken{numeric: curNumeric, value: cur.String()})
			cur.Reset()
		}
	}
	for _, r := range v {
		isDigit := unicode.IsDigit(r)
		isLetter := unicode.IsLetter(r)
		if !isDigit && !isLetter {
			flush()
			continue
		}
		if cur.Len() > 0 && isDigit != curNumeric {
			flush()
		}
		curNumeric = isDigit
		cur.WriteRune(unicode.ToLower(r))
	}
	flush()
	return tokens
}

func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func isZero(t versionToken) bool {
	return t.numeric && strings.TrimLeft(t.value, "0") == ""
}

// compareGeneric is the fallback for every scheme. Numeric runs compare as
// numbers, letter runs lexically, and a number sorts after letters. Trailing
// zero runs are insignificant, and a trailing letter run marks a pre-release.
func compareGeneric(a, b string) int {
	ta, tb := tokenizeVersion(a), tokenizeVersion(b)
	n := min(len(ta), len(tb))
	for i := 0; i < n; i++ {
		x, y := ta[i], tb[i]
		switch {
		case x.numeric && y.numeric:
			if c := compareNumeric(x.value, y.value); c != 0 {
				return c
			}
		case !x.numeric && !y.numeric:
			if c := strings.Compare(x.value, y.value); c != 0 {
				return c
			}
		case x.numeric:
			return 1
		default:
			return -1
		}
	}
	if c := compareRemainder(ta[n:]); c != 0 {
		return c
	}
	return -compareRemainder(tb[n:])
}

// compareRemainder reports how a version with the given extra tokens compares
// to the same version without them.
func compareRemainder(rest []versionToken) int {
	for _, t := range rest {
		if isZero(t) {
			continue
		}
		if t.numeric {
			return 1
		}
		return -1
	}
	return 0
}
