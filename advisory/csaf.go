// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package advisory

import (
	"encoding/json"
	"strings"

	gocsaf "github.com/gocsaf/csaf/v3/csaf"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/l3montree-dev/trustgraph/utils"
	"github.com/pkg/errors"
)

// csafVexCategory is the only document category whose product statuses are
// ingested. Other categories still link their vulnerabilities.
const csafVexCategory = "csaf_vex"

// csafProduct is everything the product tree says about one product id.
type csafProduct struct {
	name         string
	vendor       *string
	product      *string
	version      *string
	versionRange *string
	purl         *normalize.Purl
	cpe          *normalize.Cpe
	// context is set for products composed by a relationship and names the
	// product the component is part of.
	context *csafProduct
}

type csafProductTree struct {
	doc      *Document
	products map[string]*csafProduct
}

func (t *csafProductTree) register(id string, full *gocsaf.FullProductName, base csafProduct) {
	p := base
	// a relationship keeps the name of its component, its own full name
	// describes the composition
	if full.Name != nil && p.name == "" {
		p.name = *full.Name
	}
	if helper := full.ProductIdentificationHelper; helper != nil {
		if helper.PURL != nil {
			purl, err := normalize.ParsePurl(string(*helper.PURL))
			if err != nil {
				t.doc.Warn("product %s: %v", id, err)
			} else {
				p.purl = &purl
			}
		}
		if helper.CPE != nil {
			cpe, err := normalize.ParseCpe(string(*helper.CPE))
			if err != nil {
				t.doc.Warn("product %s: %v", id, err)
			} else {
				p.cpe = &cpe
			}
		}
	}
	if _, ok := t.products[id]; ok {
		t.doc.Warn("product %s is declared more than once", id)
		return
	}
	t.products[id] = &p
}

func (t *csafProductTree) walk(branches gocsaf.Branches, ctx csafProduct) {
	for _, branch := range branches {
		if branch == nil {
			continue
		}
		next := ctx
		name := utils.SafeDereference(branch.Name)
		if branch.Category != nil {
			switch string(*branch.Category) {
			case "vendor":
				next.vendor = utils.Ptr(name)
			case "product_name", "product_family":
				next.product = utils.Ptr(name)
			case "product_version":
				next.version = utils.Ptr(name)
			case "product_version_range":
				next.versionRange = utils.Ptr(name)
			}
		}
		if branch.Product != nil && branch.Product.ProductID != nil {
			t.register(string(*branch.Product.ProductID), branch.Product, next)
		}
		t.walk(branch.Branches, next)
	}
}

func newCsafProductTree(doc *Document, tree *gocsaf.ProductTree) *csafProductTree {
	t := &csafProductTree{doc: doc, products: make(map[string]*csafProduct)}
	if tree == nil {
		return t
	}
	t.walk(tree.Branches, csafProduct{})
	if tree.FullProductNames != nil {
		for _, full := range *tree.FullProductNames {
			if full == nil || full.ProductID == nil {
				continue
			}
			t.register(string(*full.ProductID), full, csafProduct{})
		}
	}
	if tree.RelationShips != nil {
		for _, rel := range *tree.RelationShips {
			if rel == nil || rel.FullProductName == nil || rel.FullProductName.ProductID == nil ||
				rel.ProductReference == nil || rel.RelatesToProductReference == nil {
				continue
			}
			id := string(*rel.FullProductName.ProductID)
			component, ok := t.products[string(*rel.ProductReference)]
			if !ok {
				doc.Warn("relationship %s references unknown product %s", id, *rel.ProductReference)
				continue
			}
			context, ok := t.products[string(*rel.RelatesToProductReference)]
			if !ok {
				doc.Warn("relationship %s references unknown product %s", id, *rel.RelatesToProductReference)
				continue
			}
			composite := *component
			composite.context = context
			t.register(id, rel.FullProductName, composite)
		}
	}
	return t
}

// rangeOf derives the range a product stands for. A purl version or a
// product_version branch is exact, a product_version_range branch is parsed
// as vers and anything else covers every version.
func (p *csafProduct) rangeOf(doc *Document, scheme normalize.VersionScheme) normalize.VersionRange {
	switch {
	case p.purl != nil && p.purl.Version != nil:
		return normalize.ExactRange(scheme, *p.purl.Version)
	case p.version != nil:
		return normalize.ExactRange(scheme, *p.version)
	case p.versionRange != nil:
		ranges, err := normalize.ParseVers(*p.versionRange)
		if err != nil || len(ranges) != 1 {
			doc.Warn("unsupported version range %q", *p.versionRange)
			return normalize.FullRange(scheme)
		}
		return ranges[0]
	}
	return normalize.FullRange(scheme)
}

func (t *csafProductTree) statuses(id, status string) ([]PackageStatus, []ProductStatus) {
	p, ok := t.products[id]
	if !ok {
		t.doc.Warn("status references unknown product %s", id)
		return nil, nil
	}

	var contextCpe *normalize.Cpe
	if p.context != nil {
		contextCpe = p.context.cpe
	}

	if p.purl != nil {
		return []PackageStatus{{
			Status:  status,
			Purl:    p.purl.Base(),
			Range:   p.rangeOf(t.doc, p.purl.VersionScheme()),
			Context: contextCpe,
		}}, nil
	}

	// without a purl the status is about the product itself, or about a
	// named component inside its context product
	owner, pkg := p, (*string)(nil)
	if p.context != nil {
		owner, pkg = p.context, utils.Ptr(p.name)
	}
	product := utils.FirstNonEmpty(utils.SafeDereference(owner.product), owner.name)
	if product == "" {
		t.doc.Warn("product %s has no name", id)
		return nil, nil
	}
	return nil, []ProductStatus{{
		Status:  status,
		Vendor:  owner.vendor,
		Product: product,
		Cpe:     owner.cpe,
		Range:   owner.rangeOf(t.doc, normalize.SchemeGeneric),
		Package: pkg,
	}}
}

func csafProducts(products *gocsaf.Products) []string {
	if products == nil {
		return nil
	}
	ids := make([]string, 0, len(*products))
	for _, id := range *products {
		if id != nil {
			ids = append(ids, string(*id))
		}
	}
	return ids
}

type csafStatusList struct {
	status string
	ids    []string
}

func csafStatusLists(ps *gocsaf.ProductStatus) []csafStatusList {
	if ps == nil {
		return nil
	}
	return []csafStatusList{
		{models.StatusAffected, csafProducts(ps.FirstAffected)},
		{models.StatusAffected, csafProducts(ps.KnownAffected)},
		{models.StatusAffected, csafProducts(ps.LastAffected)},
		{models.StatusFixed, csafProducts(ps.FirstFixed)},
		{models.StatusFixed, csafProducts(ps.Fixed)},
		{models.StatusNotAffected, csafProducts(ps.KnownNotAffected)},
		{models.StatusUnderInvestigation, csafProducts(ps.UnderInvestigation)},
		{models.StatusRecommended, csafProducts(ps.Recommended)},
	}
}

// ParseCSAF reads a CSAF 2.0 JSON document. With validate set the document
// is checked against the CSAF schema first.
func ParseCSAF(data []byte, validate bool) (*Document, error) {
	if validate {
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, shared.ParseError(errors.Wrap(err, "could not decode csaf document"))
		}
		messages, err := gocsaf.ValidateCSAF(raw)
		if err != nil {
			return nil, shared.ValidationError(errors.Wrap(err, "could not validate csaf document"))
		}
		if len(messages) > 0 {
			return nil, shared.ValidationErrorf("csaf schema validation failed: %s", strings.Join(messages, "; "))
		}
	}

	var adv gocsaf.Advisory
	if err := json.Unmarshal(data, &adv); err != nil {
		return nil, shared.ParseError(errors.Wrap(err, "could not decode csaf document"))
	}
	if adv.Document == nil || adv.Document.Tracking == nil || adv.Document.Tracking.ID == nil {
		return nil, shared.ParseErrorf("csaf document without tracking id")
	}

	meta := adv.Document
	d := &Document{
		Format:     FormatCSAF,
		Identifier: string(*meta.Tracking.ID),
		Title:      meta.Title,
		Published:  parseTimePtr(meta.Tracking.InitialReleaseDate),
		Modified:   parseTimePtr(meta.Tracking.CurrentReleaseDate),
	}
	if meta.Tracking.Version != nil {
		d.Version = utils.Ptr(string(*meta.Tracking.Version))
	}
	if meta.Publisher != nil {
		d.Issuer = meta.Publisher.Name
	}
	lang := "en"
	if meta.Lang != nil && *meta.Lang != "" {
		lang = string(*meta.Lang)
	}

	category := ""
	if meta.Category != nil {
		category = string(*meta.Category)
	}
	tree := newCsafProductTree(d, adv.ProductTree)

	for _, vuln := range adv.Vulnerabilities {
		if vuln == nil {
			continue
		}
		if vuln.CVE == nil {
			d.Warn("skipping vulnerability without cve id")
			continue
		}
		v := Vulnerability{
			ID:            string(*vuln.CVE),
			Title:         vuln.Title,
			Descriptions:  make(map[string]string),
			DiscoveryDate: parseTimePtr(vuln.DiscoveryDate),
			ReleaseDate:   parseTimePtr(vuln.ReleaseDate),
			Published:     parseTimePtr(vuln.ReleaseDate),
		}
		if vuln.CWE != nil && vuln.CWE.ID != nil {
			v.CWEs = []string{string(*vuln.CWE.ID)}
		}
		for _, note := range vuln.Notes {
			if note == nil || note.NoteCategory == nil || note.Text == nil {
				continue
			}
			switch string(*note.NoteCategory) {
			case string(gocsaf.CSAFNoteCategoryDescription):
				v.Descriptions[lang] = *note.Text
			case "summary":
				v.Summary = note.Text
			}
		}

		scores := newScoreCollector(d)
		for _, score := range vuln.Scores {
			if score != nil && score.CVSS3 != nil && score.CVSS3.VectorString != nil {
				scores.add(string(*score.CVSS3.VectorString))
			}
		}
		v.Scores = scores.scores

		lists := csafStatusLists(vuln.ProductStatus)
		if category != csafVexCategory && len(lists) > 0 {
			d.Warn("ignoring product status of %s in a document of category %s", v.ID, category)
			lists = nil
		}
		for _, list := range lists {
			for _, id := range list.ids {
				packages, products := tree.statuses(id, list.status)
				v.Packages = append(v.Packages, packages...)
				v.Products = append(v.Products, products...)
			}
		}
		d.Vulnerabilities = append(d.Vulnerabilities, v)
	}
	return d, nil
}
