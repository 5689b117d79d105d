package advisory

import (
	"encoding/json"
	"strings"

	"github.com/l3montree-dev/trustgraph/dtos"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/l3montree-dev/trustgraph/utils"
	"github.com/pkg/errors"
)

const cveRecordDataType = "CVE_RECORD"

// ParseCVE reads a CVE record in the JSON 5 format. CVE records carry no
// machine readable product status, they only establish the vulnerability
// and link it to the advisory.
func ParseCVE(data []byte) (*Document, error) {
	var record dtos.CveRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, shared.ParseError(errors.Wrap(err, "could not decode cve record"))
	}
	if record.DataType != cveRecordDataType {
		return nil, shared.ParseErrorf("unexpected data type %q", record.DataType)
	}
	meta := record.CveMetadata
	if meta.CveID == "" {
		return nil, shared.ParseErrorf("cve record without id")
	}

	d := &Document{
		Format:     FormatCVE,
		Identifier: meta.CveID,
		Issuer:     utils.EmptyThenNil(meta.AssignerShortName),
		Published:  parseTime(meta.DatePublished),
		Modified:   parseTime(meta.DateUpdated),
	}
	if record.IsRejected() {
		d.Withdrawn = parseTime(utils.FirstNonEmpty(meta.DateRejected, meta.DateUpdated))
	}

	cna := record.Containers.Cna
	v := Vulnerability{
		ID:           meta.CveID,
		Title:        utils.EmptyThenNil(cna.Title),
		Descriptions: make(map[string]string),
		Published:    d.Published,
		Modified:     d.Modified,
		Withdrawn:    d.Withdrawn,
		Reserved:     parseTime(meta.DateReserved),
	}

	descriptions := cna.Descriptions
	if record.IsRejected() {
		descriptions = cna.RejectedReasons
	}
	for _, desc := range descriptions {
		lang := strings.ToLower(utils.FirstNonEmpty(desc.Lang, "en"))
		// the first description of a language wins
		if _, ok := v.Descriptions[lang]; !ok {
			v.Descriptions[lang] = desc.Value
		}
	}

	for _, problem := range cna.ProblemTypes {
		for _, desc := range problem.Descriptions {
			if desc.CweID != "" {
				v.CWEs = append(v.CWEs, desc.CweID)
			}
		}
	}
	v.CWEs = utils.UniqBy(v.CWEs, func(s string) string { return s })

	scores := newScoreCollector(d)
	containers := append([]dtos.CveContainer{cna}, record.Containers.Adp...)
	for _, container := range containers {
		for _, metric := range container.Metrics {
			for _, cvss := range []*dtos.CveCvss{metric.CvssV3_0, metric.CvssV3_1, metric.CvssV4_0} {
				if cvss != nil {
					scores.add(cvss.VectorString)
				}
			}
		}
	}
	v.Scores = scores.scores

	d.Vulnerabilities = []Vulnerability{v}
	return d, nil
}
