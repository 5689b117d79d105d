// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package sbom

import (
	"bytes"
	"fmt"
	"strings"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/l3montree-dev/trustgraph/utils"
	"github.com/pkg/errors"
)

// CycloneDXDocumentNode is the synthetic document node of every CycloneDX
// SBOM. It describes the metadata component or, without one, every top
// level component.
const CycloneDXDocumentNode = "CycloneDX-doc-ref"

const bomLinkPrefix = "urn:cdx:"

// BomLink renders the BOM-Link of a document, urn:cdx:<serial>/<version>.
func BomLink(serialNumber string, version int) string {
	return fmt.Sprintf("%s%s/%d", bomLinkPrefix, strings.TrimPrefix(serialNumber, "urn:uuid:"), version)
}

// ParseCycloneDX reads a CycloneDX 1.2 to 1.6 JSON document.
func ParseCycloneDX(data []byte) (*Document, error) {
	var bom cdx.BOM
	if err := cdx.NewBOMDecoder(bytes.NewReader(data), cdx.BOMFileFormatJSON).Decode(&bom); err != nil {
		return nil, shared.ParseError(errors.Wrap(err, "could not decode cyclonedx document"))
	}
	if bom.BOMFormat != cdx.BOMFormat {
		return nil, shared.ParseErrorf("unexpected bomFormat %q", bom.BOMFormat)
	}
	if bom.SpecVersion < cdx.SpecVersion1_2 {
		return nil, shared.ParseErrorf("unsupported cyclonedx version %s", bom.SpecVersion)
	}

	name := ""
	if bom.Metadata != nil && bom.Metadata.Component != nil {
		name = bom.Metadata.Component.Name
	}
	d := NewDocument(FormatCycloneDX, CycloneDXDocumentNode, name)
	if bom.SerialNumber != "" {
		d.DocumentID = utils.Ptr(BomLink(bom.SerialNumber, bom.Version))
	}

	if bom.Metadata != nil {
		d.Published = parseTime(bom.Metadata.Timestamp)
		if bom.Metadata.Authors != nil {
			for _, author := range *bom.Metadata.Authors {
				if author.Name != "" {
					d.Authors = append(d.Authors, author.Name)
				}
			}
		}
		if bom.Metadata.Licenses != nil {
			d.DataLicenses = cdxLicenses(*bom.Metadata.Licenses)
		}
		if bom.Metadata.Component != nil {
			root := cdxComponent(d, *bom.Metadata.Component)
			d.Relate(CycloneDXDocumentNode, normalize.RelDescribes, root)
		}
	}

	if bom.Components != nil {
		for _, c := range *bom.Components {
			id := cdxComponent(d, c)
			if bom.Metadata == nil || bom.Metadata.Component == nil {
				d.Relate(CycloneDXDocumentNode, normalize.RelDescribes, id)
			}
		}
	}

	if bom.Dependencies != nil {
		for _, dep := range *bom.Dependencies {
			if dep.Dependencies == nil {
				continue
			}
			left := cdxRef(d, dep.Ref)
			for _, right := range *dep.Dependencies {
				d.Relate(left, normalize.RelDependsOn, cdxRef(d, right))
			}
		}
	}
	return d.finish(), nil
}

// cdxComponent adds the component and its nested components and returns
// its node id.
func cdxComponent(d *Document, c cdx.Component) string {
	id := c.BOMRef
	if id == "" {
		id = utils.FirstNonEmpty(c.PackageURL, c.Name+"@"+c.Version)
	}
	n := Node{
		ID:      id,
		Name:    c.Name,
		Kind:    KindPackage,
		Version: utils.EmptyThenNil(c.Version),
	}
	if c.Group != "" {
		n.Name = c.Group + "/" + c.Name
	}
	if c.Type == cdx.ComponentTypeFile {
		n.Kind = KindFile
	}
	if c.PackageURL != "" {
		p, err := normalize.ParsePurl(c.PackageURL)
		if err != nil {
			d.Warn("component %s: %v", id, err)
		} else {
			n.Purls = append(n.Purls, p)
		}
	}
	if c.CPE != "" {
		cpe, err := normalize.ParseCpe(c.CPE)
		if err != nil {
			d.Warn("component %s: %v", id, err)
		} else {
			n.Cpes = append(n.Cpes, cpe)
		}
	}
	if c.Licenses != nil {
		n.Licenses = cdxLicenses(*c.Licenses)
	}
	d.AddNode(n)

	if c.Components != nil {
		for _, child := range *c.Components {
			d.Relate(id, normalize.RelContains, cdxComponent(d, child))
		}
	}
	return id
}

func cdxLicenses(licenses cdx.Licenses) []string {
	res := make([]string, 0, len(licenses))
	for _, choice := range licenses {
		switch {
		case choice.Expression != "":
			res = append(res, choice.Expression)
		case choice.License != nil && choice.License.ID != "":
			res = append(res, choice.License.ID)
		case choice.License != nil && choice.License.Name != "":
			res = append(res, choice.License.Name)
		}
	}
	return res
}

// cdxRef resolves a dependency reference. BOM-Links to other documents
// become external nodes.
func cdxRef(d *Document, ref string) string {
	if !strings.HasPrefix(ref, bomLinkPrefix) {
		return ref
	}
	if _, exists := d.Node(ref); exists {
		return ref
	}
	docRef, nodeRef, _ := strings.Cut(ref, "#")
	d.AddNode(Node{
		ID:   ref,
		Name: ref,
		Kind: KindExternal,
		External: &ExternalRef{
			DocumentRef: docRef,
			NodeRef:     nodeRef,
			Type:        models.ExternalTypeCycloneDX,
		},
	})
	return ref
}
