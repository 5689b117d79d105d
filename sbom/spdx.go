// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package sbom

import (
	"encoding/json"
	"strings"

	"github.com/google/licensecheck"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/dtos"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/l3montree-dev/trustgraph/utils"
	"github.com/pkg/errors"
)

const spdxDocumentRefPrefix = "DocumentRef-"

// ParseSPDX reads an SPDX 2.x JSON document.
func ParseSPDX(data []byte) (*Document, error) {
	var doc dtos.SpdxDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, shared.ParseError(errors.Wrap(err, "could not decode spdx document"))
	}
	if !strings.HasPrefix(doc.SpdxVersion, "SPDX-2.") {
		return nil, shared.ParseErrorf("unsupported spdx version %q", doc.SpdxVersion)
	}
	if doc.SPDXID == "" {
		return nil, shared.ParseErrorf("spdx document has no SPDXID")
	}

	d := NewDocument(FormatSPDX, doc.SPDXID, doc.Name)
	d.DocumentID = utils.EmptyThenNil(doc.DocumentNamespace)
	d.Published = parseTime(doc.CreationInfo.Created)
	d.Authors = doc.CreationInfo.Creators
	if doc.DataLicense != "" {
		d.DataLicenses = []string{doc.DataLicense}
	}

	externalDocs := make(map[string]string, len(doc.ExternalDocumentRefs))
	for _, ref := range doc.ExternalDocumentRefs {
		externalDocs[ref.ExternalDocumentID] = ref.SpdxDocument
	}

	for _, pkg := range doc.Packages {
		d.AddNode(spdxPackageNode(d, pkg))
	}
	for _, file := range doc.Files {
		n := Node{ID: file.SPDXID, Name: file.FileName, Kind: KindFile}
		if !normalize.IsLicenseAbsent(file.LicenseConcluded) {
			n.Licenses = append(n.Licenses, file.LicenseConcluded)
		}
		d.AddNode(n)
	}

	for _, described := range doc.DocumentDescribes {
		d.Relate(doc.SPDXID, normalize.RelDescribes, described)
	}
	for _, rel := range doc.Relationships {
		if isSpdxNone(rel.SpdxElementID) || isSpdxNone(rel.RelatedSpdxElement) {
			continue
		}
		label := normalize.RelationshipFromSPDX(rel.RelationshipType)
		if label == normalize.RelOther && !strings.EqualFold(rel.RelationshipType, "OTHER") {
			d.Warn("unmapped relationship type %s", rel.RelationshipType)
		}
		d.Relate(
			spdxElement(d, externalDocs, rel.SpdxElementID),
			label,
			spdxElement(d, externalDocs, rel.RelatedSpdxElement),
		)
	}

	for _, info := range doc.HasExtractedLicensingInfos {
		d.Extracted = append(d.Extracted, ExtractedLicense{
			LicenseID: info.LicenseID,
			Name:      info.Name,
			Text:      info.ExtractedText,
			Comment:   utils.EmptyThenNil(info.Comment),
			Detected:  detectLicenses(info.ExtractedText),
		})
	}
	return d.finish(), nil
}

func spdxPackageNode(d *Document, pkg dtos.SpdxPackage) Node {
	n := Node{
		ID:      pkg.SPDXID,
		Name:    pkg.Name,
		Kind:    KindPackage,
		Version: utils.EmptyThenNil(pkg.VersionInfo),
	}
	for _, ref := range pkg.ExternalRefs {
		switch strings.ToLower(ref.ReferenceType) {
		case "purl":
			p, err := normalize.ParsePurl(ref.ReferenceLocator)
			if err != nil {
				d.Warn("package %s: %v", pkg.SPDXID, err)
				continue
			}
			n.Purls = append(n.Purls, p)
		case "cpe22type", "cpe23type":
			c, err := normalize.ParseCpe(ref.ReferenceLocator)
			if err != nil {
				d.Warn("package %s: %v", pkg.SPDXID, err)
				continue
			}
			n.Cpes = append(n.Cpes, c)
		}
	}
	for _, license := range []string{pkg.LicenseDeclared, pkg.LicenseConcluded} {
		if normalize.IsLicenseAbsent(license) {
			continue
		}
		n.Licenses = append(n.Licenses, license)
	}
	return n
}

// spdxElement resolves an element reference. References of the form
// DocumentRef-X:SPDXRef-Y become external nodes pointing at the namespace
// of document X.
func spdxElement(d *Document, externalDocs map[string]string, ref string) string {
	if !strings.HasPrefix(ref, spdxDocumentRefPrefix) {
		return ref
	}
	docRef, nodeRef, ok := strings.Cut(ref, ":")
	if !ok {
		return ref
	}
	if _, exists := d.Node(ref); exists {
		return ref
	}
	namespace, known := externalDocs[docRef]
	if !known {
		d.Warn("unknown external document %s", docRef)
		namespace = docRef
	}
	d.AddNode(Node{
		ID:   ref,
		Name: ref,
		Kind: KindExternal,
		External: &ExternalRef{
			DocumentRef: namespace,
			NodeRef:     nodeRef,
			Type:        models.ExternalTypeSPDX,
		},
	})
	return ref
}

func isSpdxNone(ref string) bool {
	return ref == "" || ref == "NONE" || ref == "NOASSERTION"
}

func detectLicenses(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	coverage := licensecheck.Scan([]byte(text))
	ids := make([]string, 0, len(coverage.Match))
	for _, m := range coverage.Match {
		if m.IsURL {
			continue
		}
		ids = append(ids, m.ID)
	}
	return utils.UniqBy(ids, func(s string) string { return s })
}
