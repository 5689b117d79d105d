package normalize

import (
	"slices"
	"strings"
)

// SpdxExpression is a license expression split into the license ids and
// exceptions it references.
type SpdxExpression struct {
	Text       string
	Licenses   []string
	Exceptions []string
}

// ParseSpdxExpression extracts identifiers from an SPDX license expression.
// It never fails: anything that is not an operator or a parenthesis is an
// identifier.
func ParseSpdxExpression(text string) SpdxExpression {
	expr := SpdxExpression{Text: strings.TrimSpace(text), Licenses: []string{}, Exceptions: []string{}}

	tokens := strings.Fields(strings.NewReplacer("(", " ( ", ")", " ) ").Replace(expr.Text))
	afterWith := false
	for _, token := range tokens {
		switch strings.ToUpper(token) {
		case "(", ")", "AND", "OR":
			afterWith = false
			continue
		case "WITH":
			afterWith = true
			continue
		}
		if afterWith {
			if !slices.Contains(expr.Exceptions, token) {
				expr.Exceptions = append(expr.Exceptions, token)
			}
			afterWith = false
			continue
		}
		if !slices.Contains(expr.Licenses, token) {
			expr.Licenses = append(expr.Licenses, token)
		}
	}
	return expr
}

// IsLicenseAbsent reports the SPDX placeholders that carry no license.
func IsLicenseAbsent(text string) bool {
	switch strings.ToUpper(strings.TrimSpace(text)) {
	case "", "NOASSERTION", "NONE":
		return true
	}
	return false
}
