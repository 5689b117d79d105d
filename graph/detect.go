package graph

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/l3montree-dev/trustgraph/advisory"
	"github.com/l3montree-dev/trustgraph/sbom"
	"github.com/l3montree-dev/trustgraph/shared"
	"gopkg.in/yaml.v3"
)

type DocumentFormat string

const (
	FormatAuto           DocumentFormat = ""
	FormatSPDX           DocumentFormat = "spdx"
	FormatCycloneDX      DocumentFormat = "cyclonedx"
	FormatClearlyDefined DocumentFormat = "clearlydefined"
	FormatCSAF           DocumentFormat = "csaf"
	FormatOSV            DocumentFormat = "osv"
	FormatCVE            DocumentFormat = "cve"
	FormatOpenVEX        DocumentFormat = "openvex"
)

var sbomFormats = map[DocumentFormat]sbom.Format{
	FormatSPDX:           sbom.FormatSPDX,
	FormatCycloneDX:      sbom.FormatCycloneDX,
	FormatClearlyDefined: sbom.FormatClearlyDefined,
}

var advisoryFormats = map[DocumentFormat]advisory.Format{
	FormatCSAF: advisory.FormatCSAF,
	FormatOSV:  advisory.FormatOSV,
	FormatCVE:  advisory.FormatCVE,

	FormatOpenVEX: advisory.FormatOpenVEX,
}

func ParseDocumentFormat(s string) (DocumentFormat, error) {
	f := DocumentFormat(strings.ToLower(s))
	if f == FormatAuto {
		return f, nil
	}
	if _, ok := sbomFormats[f]; ok {
		return f, nil
	}
	if _, ok := advisoryFormats[f]; ok {
		return f, nil
	}
	return FormatAuto, shared.ParseErrorf("unknown document format %q", s)
}

// Kind is the entity a document of the format becomes. It is empty for
// FormatAuto.
func (f DocumentFormat) Kind() Kind {
	if _, ok := sbomFormats[f]; ok {
		return KindSbom
	}
	if _, ok := advisoryFormats[f]; ok {
		return KindAdvisory
	}
	return ""
}

// DetectFormat looks at the top level discriminator fields only, so the
// document is parsed once more by the matching adapter.
func DetectFormat(data []byte) (DocumentFormat, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err == nil {
		return detectJSON(top)
	}

	var yamlTop map[string]any
	if err := yaml.Unmarshal(data, &yamlTop); err != nil || yamlTop == nil {
		return FormatAuto, shared.ParseErrorf("document is neither json nor yaml")
	}
	switch {
	case yamlTop["coordinates"] != nil:
		return FormatClearlyDefined, nil
	case yamlTop["id"] != nil && (yamlTop["modified"] != nil || yamlTop["affected"] != nil):
		return FormatOSV, nil
	}
	return FormatAuto, shared.ParseErrorf("unrecognized yaml document")
}

func detectJSON(top map[string]json.RawMessage) (DocumentFormat, error) {
	has := func(key string) bool {
		_, ok := top[key]
		return ok
	}
	switch {
	case has("spdxVersion"):
		return FormatSPDX, nil
	case has("bomFormat") || (has("specVersion") && has("components")):
		return FormatCycloneDX, nil
	case has("dataType"):
		var dataType string
		if err := json.Unmarshal(top["dataType"], &dataType); err == nil && dataType == "CVE_RECORD" {
			return FormatCVE, nil
		}
	case has("document"):
		var document struct {
			CSAFVersion string `json:"csaf_version"`
		}
		if err := json.Unmarshal(top["document"], &document); err == nil && document.CSAFVersion != "" {
			return FormatCSAF, nil
		}
	case has("@context") && has("statements"):
		var context string
		if err := json.Unmarshal(top["@context"], &context); err == nil && strings.Contains(context, "openvex") {
			return FormatOpenVEX, nil
		}
	case has("coordinates"):
		return FormatClearlyDefined, nil
	case has("id") && (has("modified") || has("affected")):
		return FormatOSV, nil
	}
	return FormatAuto, shared.ParseErrorf("unrecognized json document")
}

// Ingest stores a document of the given format. FormatAuto detects it.
func (g *Graph) Ingest(ctx context.Context, format DocumentFormat, data []byte, labels map[string]string) (*IngestResult, error) {
	if format == FormatAuto {
		detected, err := DetectFormat(data)
		if err != nil {
			return nil, err
		}
		format = detected
	}
	if f, ok := sbomFormats[format]; ok {
		return g.IngestSbom(ctx, f, data, labels)
	}
	if f, ok := advisoryFormats[format]; ok {
		return g.IngestAdvisory(ctx, f, data, labels)
	}
	return nil, shared.ParseErrorf("unknown document format %q", format)
}
