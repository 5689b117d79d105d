package normalize

import (
	"strings"

	"github.com/pkg/errors"
)

// Relationship labels a directed SBOM edge "left <relationship> right".
type Relationship int

const (
	RelOther Relationship = iota
	RelDescribes
	RelDescribedBy
	RelContains
	RelContainedBy
	RelDependsOn
	RelDependencyOf
	RelDevDependencyOf
	RelOptionalDependencyOf
	RelProvidedDependencyOf
	RelTestDependencyOf
	RelRuntimeDependencyOf
	RelBuildDependencyOf
	RelBuildToolOf
	RelDevToolOf
	RelExampleOf
	RelGeneratedFrom
	RelAncestorOf
	RelDescendantOf
	RelVariantOf
	RelPackageOf
)

var relationshipNames = map[Relationship]string{
	RelOther:                "other",
	RelDescribes:            "describes",
	RelDescribedBy:          "described_by",
	RelContains:             "contains",
	RelContainedBy:          "contained_by",
	RelDependsOn:            "depends_on",
	RelDependencyOf:         "dependency_of",
	RelDevDependencyOf:      "dev_dependency_of",
	RelOptionalDependencyOf: "optional_dependency_of",
	RelProvidedDependencyOf: "provided_dependency_of",
	RelTestDependencyOf:     "test_dependency_of",
	RelRuntimeDependencyOf:  "runtime_dependency_of",
	RelBuildDependencyOf:    "build_dependency_of",
	RelBuildToolOf:          "build_tool_of",
	RelDevToolOf:            "dev_tool_of",
	RelExampleOf:            "example_of",
	RelGeneratedFrom:        "generated_from",
	RelAncestorOf:           "ancestor_of",
	RelDescendantOf:         "descendant_of",
	RelVariantOf:            "variant_of",
	RelPackageOf:            "package_of",
}

var relationshipsByName = func() map[string]Relationship {
	m := make(map[string]Relationship, len(relationshipNames))
	for k, v := range relationshipNames {
		m[v] = k
	}
	return m
}()

func (r Relationship) String() string {
	if s, ok := relationshipNames[r]; ok {
		return s
	}
	return "other"
}

func (r Relationship) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Relationship) UnmarshalText(b []byte) error {
	parsed, err := ParseRelationship(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func ParseRelationship(s string) (Relationship, error) {
	if r, ok := relationshipsByName[strings.ToLower(s)]; ok {
		return r, nil
	}
	return RelOther, errors.Errorf("unknown relationship: %s", s)
}

// RelationshipFromSPDX maps SPDX relationship types. Unmapped types become
// RelOther.
func RelationshipFromSPDX(t string) Relationship {
	switch strings.ToUpper(t) {
	case "DESCRIBES":
		return RelDescribes
	case "DESCRIBED_BY":
		return RelDescribedBy
	case "CONTAINS":
		return RelContains
	case "CONTAINED_BY":
		return RelContainedBy
	case "DEPENDS_ON":
		return RelDependsOn
	case "DEPENDENCY_OF":
		return RelDependencyOf
	case "DEV_DEPENDENCY_OF":
		return RelDevDependencyOf
	case "OPTIONAL_DEPENDENCY_OF":
		return RelOptionalDependencyOf
	case "PROVIDED_DEPENDENCY_OF":
		return RelProvidedDependencyOf
	case "TEST_DEPENDENCY_OF":
		return RelTestDependencyOf
	case "RUNTIME_DEPENDENCY_OF":
		return RelRuntimeDependencyOf
	case "BUILD_DEPENDENCY_OF":
		return RelBuildDependencyOf
	case "BUILD_TOOL_OF":
		return RelBuildToolOf
	case "DEV_TOOL_OF":
		return RelDevToolOf
	case "EXAMPLE_OF":
		return RelExampleOf
	case "GENERATED_FROM":
		return RelGeneratedFrom
	case "ANCESTOR_OF":
		return RelAncestorOf
	case "DESCENDANT_OF":
		return RelDescendantOf
	case "VARIANT_OF":
		return RelVariantOf
	case "PACKAGE_OF":
		return RelPackageOf
	}
	return RelOther
}

// ParentToChild lists labels where the left node is the parent.
var ParentToChild = []Relationship{RelDescribes, RelContains, RelDependsOn}

// ChildToParent lists labels where the right node is the parent.
var ChildToParent = []Relationship{
	RelDescribedBy,
	RelContainedBy,
	RelDependencyOf,
	RelDevDependencyOf,
	RelOptionalDependencyOf,
	RelProvidedDependencyOf,
	RelTestDependencyOf,
	RelRuntimeDependencyOf,
	RelBuildDependencyOf,
	RelPackageOf,
}

func RelationshipNames(rels []Relationship) []string {
	names := make([]string, 0, len(rels))
	for _, r := range rels {
		names = append(names, r.String())
	}
	return names
}
