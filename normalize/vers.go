package normalize

import (
	"strings"

	"github.com/pkg/errors"
)

// ParseVers parses a "vers:<type>/<constraints>" range specifier into
// version ranges. Constraints are expected in ascending version order, as
// vers requires. "!=" constraints cannot be expressed as an
// interval and are ignored.
func ParseVers(s string) ([]VersionRange, error) {
	rest, ok := strings.CutPrefix(s, "vers:")
	if !ok {
		return nil, errors.Errorf("not a vers range: %q", s)
	}
	versType, constraints, ok := strings.Cut(rest, "/")
	if !ok || versType == "" {
		return nil, errors.Errorf("vers range %q has no type", s)
	}
	scheme := SchemeForPurlType(versType)

	constraints = strings.TrimSpace(constraints)
	if constraints == "*" {
		return []VersionRange{FullRange(scheme)}, nil
	}

	var ranges []VersionRange
	var open *VersionRange
	for raw := range strings.SplitSeq(constraints, "|") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		op, version := splitComparator(raw)
		if version == "" {
			return nil, errors.Errorf("vers range %q has an empty constraint", s)
		}
		switch op {
		case "=":
			ranges = append(ranges, ExactRange(scheme, version))
		case ">=", ">":
			if open != nil {
				ranges = append(ranges, *open)
			}
			open = &VersionRange{Scheme: scheme, Low: &version, LowInclusive: op == ">="}
		case "<", "<=":
			if open == nil {
				open = &VersionRange{Scheme: scheme}
			}
			open.High = &version
			open.HighInclusive = op == "<="
			ranges = append(ranges, *open)
			open = nil
		}
	}
	if open != nil {
		ranges = append(ranges, *open)
	}
	if len(ranges) == 0 {
		return nil, errors.Errorf("vers range %q has no usable constraint", s)
	}
	return ranges, nil
}

func splitComparator(c string) (string, string) {
	for _, op := range []string{">=", "<=", "!=", ">", "<", "="} {
		if v, ok := strings.CutPrefix(c, op); ok {
			return op, strings.TrimSpace(v)
		}
	}
	return "=", c
}
