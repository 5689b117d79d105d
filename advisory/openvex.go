package advisory

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/l3montree-dev/trustgraph/utils"
	"github.com/openvex/go-vex/pkg/vex"
	"github.com/pkg/errors"
)

var openVexStatuses = map[vex.Status]string{
	vex.StatusAffected:           models.StatusAffected,
	vex.StatusFixed:              models.StatusFixed,
	vex.StatusNotAffected:        models.StatusNotAffected,
	vex.StatusUnderInvestigation: models.StatusUnderInvestigation,
}

// openVexComponents returns the components a statement speaks about. If a
// product names subcomponents only those are meant.
func openVexComponents(p vex.Product) []vex.Component {
	if len(p.Subcomponents) == 0 {
		return []vex.Component{p.Component}
	}
	components := make([]vex.Component, 0, len(p.Subcomponents))
	for _, s := range p.Subcomponents {
		components = append(components, s.Component)
	}
	return components
}

func openVexComponentStatuses(d *Document, status string, c vex.Component) ([]PackageStatus, []ProductStatus) {
	purl := c.Identifiers[vex.PURL]
	if purl == "" && strings.HasPrefix(c.ID, "pkg:") {
		purl = c.ID
	}
	if purl != "" {
		p, err := normalize.ParsePurl(purl)
		if err != nil {
			d.Warn("component %s: %v", purl, err)
			return nil, nil
		}
		r := normalize.FullRange(p.VersionScheme())
		if p.Version != nil {
			r = normalize.ExactRange(p.VersionScheme(), *p.Version)
		}
		return []PackageStatus{{Status: status, Purl: p.Base(), Range: r}}, nil
	}

	cpe := utils.FirstNonEmpty(c.Identifiers[vex.CPE23], c.Identifiers[vex.CPE22])
	if cpe == "" && strings.HasPrefix(c.ID, "cpe:") {
		cpe = c.ID
	}
	if cpe == "" {
		d.Warn("component %s has neither a purl nor a cpe", c.ID)
		return nil, nil
	}
	parsed, err := normalize.ParseCpe(cpe)
	if err != nil {
		d.Warn("component %s: %v", cpe, err)
		return nil, nil
	}
	if parsed.Product.Kind != normalize.CpeLiteral {
		d.Warn("component %s names no product", cpe)
		return nil, nil
	}
	r := normalize.FullRange(normalize.SchemeGeneric)
	if parsed.Version.Kind == normalize.CpeLiteral {
		r = normalize.ExactRange(normalize.SchemeGeneric, parsed.Version.Value)
	}
	return nil, []ProductStatus{{
		Status:  status,
		Vendor:  parsed.Vendor.Ptr(),
		Product: parsed.Product.Value,
		Cpe:     &parsed,
		Range:   r,
	}}
}

// ParseOpenVEX reads an OpenVEX document. Statements are grouped by the
// vulnerability they name. Later statements do not replace earlier ones,
// both are kept.
func ParseOpenVEX(data []byte) (*Document, error) {
	var doc vex.VEX
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, shared.ParseError(errors.Wrap(err, "could not decode openvex document"))
	}
	if doc.ID == "" || !strings.Contains(doc.Context, "openvex") {
		return nil, shared.ParseErrorf("not an openvex document")
	}

	d := &Document{
		Format:     FormatOpenVEX,
		Identifier: doc.ID,
		Issuer:     utils.EmptyThenNil(doc.Author),
		Published:  doc.Timestamp,
		Modified:   doc.LastUpdated,
	}
	if d.Modified == nil {
		d.Modified = doc.Timestamp
	}
	if doc.Version > 0 {
		d.Version = utils.Ptr(strconv.Itoa(doc.Version))
	}

	index := make(map[string]int)
	for _, stmt := range doc.Statements {
		id := utils.FirstNonEmpty(string(stmt.Vulnerability.Name), stmt.Vulnerability.ID)
		if id == "" {
			d.Warn("statement %s names no vulnerability", stmt.ID)
			continue
		}
		status, ok := openVexStatuses[stmt.Status]
		if !ok {
			d.Warn("statement about %s has unknown status %q", id, stmt.Status)
			continue
		}

		i, ok := index[id]
		if !ok {
			i = len(d.Vulnerabilities)
			index[id] = i
			d.Vulnerabilities = append(d.Vulnerabilities, Vulnerability{ID: id, Descriptions: map[string]string{}})
		}
		v := &d.Vulnerabilities[i]
		if stmt.Vulnerability.Description != "" {
			v.Descriptions["en"] = stmt.Vulnerability.Description
		}
		for _, product := range stmt.Products {
			for _, c := range openVexComponents(product) {
				packages, products := openVexComponentStatuses(d, status, c)
				v.Packages = append(v.Packages, packages...)
				v.Products = append(v.Products, products...)
			}
		}
	}
	return d, nil
}
