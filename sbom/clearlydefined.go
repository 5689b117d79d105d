package sbom

import (
	"slices"
	"strings"

	"github.com/l3montree-dev/trustgraph/dtos"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/l3montree-dev/trustgraph/utils"
	"github.com/package-url/packageurl-go"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// clearlyDefinedTypes maps ClearlyDefined coordinate types to purl types.
var clearlyDefinedTypes = map[string]string{
	"npm":      packageurl.TypeNPM,
	"maven":    packageurl.TypeMaven,
	"pypi":     packageurl.TypePyPi,
	"gem":      packageurl.TypeGem,
	"crate":    packageurl.TypeCargo,
	"nuget":    packageurl.TypeNuget,
	"go":       packageurl.TypeGolang,
	"composer": packageurl.TypeComposer,
	"pod":      packageurl.TypeCocoapods,
	"deb":      packageurl.TypeDebian,
	"git":      packageurl.TypeGithub,
}

// ParseClearlyDefined reads a curation in YAML or JSON. Every curated
// revision becomes a package carrying the declared license.
func ParseClearlyDefined(data []byte) (*Document, error) {
	var curation dtos.ClearlyDefinedCuration
	if err := yaml.Unmarshal(data, &curation); err != nil {
		return nil, shared.ParseError(errors.Wrap(err, "could not decode clearlydefined curation"))
	}
	coords := curation.Coordinates
	if coords.Type == "" || coords.Name == "" {
		return nil, shared.ParseErrorf("clearlydefined curation without coordinates")
	}
	purlType, ok := clearlyDefinedTypes[coords.Type]
	if !ok {
		purlType = coords.Type
	}
	namespace := coords.Namespace
	if namespace == "-" {
		namespace = ""
	}

	documentID := strings.Join([]string{"clearlydefined", coords.Type, coords.Provider, utils.FirstNonEmpty(coords.Namespace, "-"), coords.Name}, "/")
	d := NewDocument(FormatClearlyDefined, "ClearlyDefined-"+coords.Name, coords.Name)
	d.DocumentID = &documentID

	for _, revision := range utils.SortedKeys(curation.Revisions) {
		curated := curation.Revisions[revision]
		p := normalize.FromPackageURL(*packageurl.NewPackageURL(purlType, namespace, coords.Name, revision, nil, ""))
		n := Node{
			ID:      p.String(),
			Name:    coords.Name,
			Kind:    KindPackage,
			Version: utils.Ptr(revision),
			Purls:   []normalize.Purl{p},
		}
		if !normalize.IsLicenseAbsent(curated.Licensed.Declared) {
			n.Licenses = []string{curated.Licensed.Declared}
		}
		d.AddNode(n)
		d.Relate(d.RootID, normalize.RelDescribes, n.ID)

		files := slices.Clone(curated.Files)
		slices.SortFunc(files, func(a, b dtos.ClearlyDefinedFile) int {
			return strings.Compare(a.Path, b.Path)
		})
		for _, file := range files {
			fileID := n.ID + "#" + file.Path
			d.AddNode(Node{ID: fileID, Name: file.Path, Kind: KindFile})
			d.Relate(fileID, normalize.RelContainedBy, n.ID)
		}
	}
	return d.finish(), nil
}
