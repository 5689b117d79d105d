package advisory

import (
	"os"
	"testing"

	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return data
}

func TestParseScore(t *testing.T) {
	t.Run("cvss 3.1", func(t *testing.T) {
		score, err := ParseScore("CVSS:3.1/AV:N/AC:H/PR:N/UI:N/S:U/C:H/I:N/A:H")
		require.NoError(t, err)
		assert.Equal(t, "3.1", score.Type)
		assert.InDelta(t, 7.4, score.Score, 0.001)
		assert.Equal(t, "high", score.Severity)
	})

	t.Run("cvss 4.0", func(t *testing.T) {
		score, err := ParseScore("CVSS:4.0/AV:N/AC:L/AT:N/PR:N/UI:N/VC:H/VI:H/VA:H/SC:N/SI:N/SA:N")
		require.NoError(t, err)
		assert.Equal(t, "4.0", score.Type)
		assert.InDelta(t, 9.3, score.Score, 0.001)
		assert.Equal(t, "critical", score.Severity)
	})

	t.Run("cvss 2 is not supported", func(t *testing.T) {
		_, err := ParseScore("AV:N/AC:L/Au:N/C:P/I:P/A:P")
		assert.Error(t, err)
	})
}

func TestParseCSAF(t *testing.T) {
	d, err := ParseCSAF(readTestdata(t, "csaf-vex.json"), false)
	require.NoError(t, err)

	assert.Equal(t, FormatCSAF, d.Format)
	assert.Equal(t, "CVE-2023-0286", d.Identifier)
	assert.Equal(t, "3", *d.Version)
	assert.Equal(t, "Red Hat Product Security", *d.Issuer)
	assert.Equal(t, 2024, d.Modified.Year())
	assert.Equal(t, 2023, d.Published.Year())

	require.Len(t, d.Vulnerabilities, 1)
	assert.Contains(t, d.Warnings, "skipping vulnerability without cve id")
	assert.Contains(t, d.Warnings, "status references unknown product unknown-product")

	v := d.Vulnerabilities[0]
	assert.Equal(t, "CVE-2023-0286", v.ID)
	assert.Equal(t, []string{"CWE-843"}, v.CWEs)
	assert.Equal(t, "A type confusion vulnerability was found in OpenSSL.", v.Descriptions["en"])
	assert.Equal(t, "openssl: X.400 address type confusion in X.509 GeneralName", *v.Summary)
	assert.Equal(t, 2023, v.DiscoveryDate.Year())
	require.Len(t, v.Scores, 1)
	assert.InDelta(t, 7.4, v.Scores[0].Score, 0.001)

	t.Run("components with a purl become package statuses", func(t *testing.T) {
		require.Len(t, v.Packages, 1)
		p := v.Packages[0]
		assert.Equal(t, models.StatusFixed, p.Status)
		assert.Equal(t, "pkg:rpm/redhat/openssl", p.Purl.String())
		assert.Equal(t, normalize.ExactRange(normalize.SchemeRpm, "3.0.7-6.el9_2"), p.Range)
		require.NotNil(t, p.Context)
		assert.Equal(t, "enterprise_linux", p.Context.Product.String())
	})

	t.Run("components without a purl become product statuses", func(t *testing.T) {
		require.Len(t, v.Products, 1)
		p := v.Products[0]
		assert.Equal(t, models.StatusAffected, p.Status)
		assert.Equal(t, "Red Hat", *p.Vendor)
		assert.Equal(t, "OpenShift Container Platform 4", p.Product)
		assert.Equal(t, "kernel-rt", *p.Package)
		assert.Equal(t, "openshift", p.Cpe.Product.String())
		assert.Equal(t, normalize.SchemeRpm, p.Range.Scheme)
		assert.True(t, p.Range.Contains("4.12"))
		assert.False(t, p.Range.Contains("4.14"))
	})
}

func TestParseCSAFIgnoresStatusOutsideVex(t *testing.T) {
	data := []byte(`{
		"document": {
			"category": "csaf_security_advisory",
			"csaf_version": "2.0",
			"title": "advisory",
			"publisher": {"category": "vendor", "name": "ACME", "namespace": "https://acme.example"},
			"tracking": {"id": "ACME-2024-1", "version": "1", "status": "final",
				"initial_release_date": "2024-01-01T00:00:00Z", "current_release_date": "2024-01-01T00:00:00Z",
				"revision_history": [{"date": "2024-01-01T00:00:00Z", "number": "1", "summary": "initial"}]}
		},
		"product_tree": {"full_product_names": [{"name": "widget", "product_id": "widget",
			"product_identification_helper": {"purl": "pkg:npm/widget@1.0.0"}}]},
		"vulnerabilities": [{"cve": "CVE-2024-0001", "product_status": {"known_affected": ["widget"]}}]
	}`)
	d, err := ParseCSAF(data, false)
	require.NoError(t, err)
	require.Len(t, d.Vulnerabilities, 1)
	assert.Empty(t, d.Vulnerabilities[0].Packages)
	assert.Contains(t, d.Warnings, "ignoring product status of CVE-2024-0001 in a document of category csaf_security_advisory")
}

func TestParseCSAFValidation(t *testing.T) {
	_, err := ParseCSAF([]byte(`{"document": {"category": "csaf_vex"}}`), true)
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))

	_, err = ParseCSAF([]byte(`{"vulnerabilities": []}`), false)
	assert.Equal(t, shared.KindParse, shared.KindOf(err))
}

func TestParseOSV(t *testing.T) {
	d, err := ParseOSV(readTestdata(t, "osv-ghsa.json"))
	require.NoError(t, err)

	assert.Equal(t, "GHSA-35jh-r3h4-6jhm", d.Identifier)
	assert.Equal(t, "Command Injection in lodash", *d.Title)
	assert.Equal(t, 2024, d.Modified.Year())
	assert.Contains(t, d.Warnings, `package something: unsupported ecosystem "Unknown"`)

	require.Len(t, d.Vulnerabilities, 1)
	v := d.Vulnerabilities[0]
	assert.Equal(t, "CVE-2021-23337", v.ID)
	assert.Equal(t, []string{"CWE-77", "CWE-94"}, v.CWEs)
	assert.Contains(t, v.Descriptions["en"], "prior to 4.17.21")
	require.Len(t, v.Scores, 1)
	assert.InDelta(t, 7.2, v.Scores[0].Score, 0.001)

	type row struct{ status, purl, rng string }
	rows := make([]row, 0, len(v.Packages))
	for _, p := range v.Packages {
		rows = append(rows, row{p.Status, p.Purl.String(), p.Range.String()})
	}
	assert.Equal(t, []row{
		{models.StatusAffected, "pkg:npm/lodash", "(*, 4.17.21)"},
		{models.StatusFixed, "pkg:npm/lodash", "=4.17.21"},
		{models.StatusAffected, "pkg:npm/lodash-es", "[4.0.0, 4.17.20]"},
	}, rows)
}

func TestParseOSVYAML(t *testing.T) {
	d, err := ParseOSV(readTestdata(t, "osv-pysec.yaml"))
	require.NoError(t, err)

	require.Len(t, d.Vulnerabilities, 1)
	v := d.Vulnerabilities[0]
	assert.Equal(t, "PYSEC-2023-62", v.ID)

	var flask, jackson []PackageStatus
	for _, p := range v.Packages {
		switch p.Purl.Name {
		case "flask":
			flask = append(flask, p)
		case "jackson-databind":
			jackson = append(jackson, p)
		}
	}

	t.Run("multiple introduced events yield one interval each", func(t *testing.T) {
		require.Len(t, flask, 4)
		assert.Equal(t, "(*, 2.2.5)", flask[0].Range.String())
		assert.Equal(t, "[2.3.0, 2.3.2)", flask[1].Range.String())
		assert.Equal(t, normalize.SchemePython, flask[0].Range.Scheme)
		assert.True(t, flask[1].Range.Contains("2.3.1"))
		assert.False(t, flask[1].Range.Contains("2.3.2"))
	})

	t.Run("explicit versions are used without ranges", func(t *testing.T) {
		require.Len(t, jackson, 2)
		assert.Equal(t, "com.fasterxml.jackson.core", *jackson[0].Purl.Namespace)
		assert.True(t, jackson[0].Range.IsExact())
		assert.Equal(t, "2.15.0", *jackson[0].Range.Low)
	})
}

func TestParseOSVRequiresID(t *testing.T) {
	_, err := ParseOSV([]byte(`{"summary": "no id"}`))
	assert.Equal(t, shared.KindParse, shared.KindOf(err))
}

func TestParseCVE(t *testing.T) {
	d, err := ParseCVE(readTestdata(t, "cve-record.json"))
	require.NoError(t, err)

	assert.Equal(t, "CVE-2021-44228", d.Identifier)
	assert.Equal(t, "apache", *d.Issuer)
	assert.Nil(t, d.Withdrawn)

	require.Len(t, d.Vulnerabilities, 1)
	v := d.Vulnerabilities[0]
	assert.Empty(t, v.Packages)
	assert.Empty(t, v.Products)
	assert.Equal(t, []string{"CWE-502", "CWE-400"}, v.CWEs)
	assert.Equal(t, "Apache Log4j2 JNDI features do not protect against attacker controlled endpoints.", v.Descriptions["en"])
	assert.Contains(t, v.Descriptions, "de")
	assert.Equal(t, 2021, v.Reserved.Year())

	require.Len(t, v.Scores, 2)
	assert.Equal(t, "3.1", v.Scores[0].Type)
	assert.Equal(t, "critical", v.Scores[0].Severity)
	assert.Equal(t, "4.0", v.Scores[1].Type)
	assert.Len(t, d.Warnings, 1)
}

func TestParseCVERejected(t *testing.T) {
	d, err := ParseCVE(readTestdata(t, "cve-rejected.json"))
	require.NoError(t, err)
	require.NotNil(t, d.Withdrawn)
	assert.Equal(t, 6, int(d.Withdrawn.Month()))
	assert.Equal(t, 1, d.Withdrawn.Day())
	assert.Equal(t, "DO NOT USE THIS CANDIDATE NUMBER.", d.Vulnerabilities[0].Descriptions["en"])
}

func TestParseCVERejectsOtherDocuments(t *testing.T) {
	_, err := ParseCVE(readTestdata(t, "osv-ghsa.json"))
	assert.Equal(t, shared.KindParse, shared.KindOf(err))
}

func TestParseOpenVEX(t *testing.T) {
	doc, err := ParseOpenVEX(readTestdata(t, "openvex.json"))
	require.NoError(t, err)

	assert.Equal(t, FormatOpenVEX, doc.Format)
	assert.Equal(t, "https://openvex.dev/docs/example/vex-9fb3463de1b57", doc.Identifier)
	require.NotNil(t, doc.Issuer)
	assert.Equal(t, "Wolfi J Inkinson", *doc.Issuer)
	require.NotNil(t, doc.Version)
	assert.Equal(t, "2", *doc.Version)
	require.NotNil(t, doc.Modified)
	assert.Equal(t, 2023, doc.Modified.Year())
	assert.Equal(t, 9, doc.Modified.Day())

	require.Len(t, doc.Vulnerabilities, 2)
	first := doc.Vulnerabilities[0]
	assert.Equal(t, "CVE-2014-123456", first.ID)
	assert.Equal(t, "Buffer overflow in the image decoder", first.Descriptions["en"])

	t.Run("subcomponents replace their product", func(t *testing.T) {
		require.Len(t, first.Packages, 2)
		zlib := first.Packages[0]
		assert.Equal(t, models.StatusNotAffected, zlib.Status)
		assert.Equal(t, "zlib", zlib.Purl.Name)
		assert.Nil(t, zlib.Purl.Version)
		assert.True(t, zlib.Range.IsExact())
		assert.True(t, zlib.Range.Contains("1.2.13-r0"))

		curl := first.Packages[1]
		assert.Equal(t, models.StatusAffected, curl.Status)
		assert.Equal(t, "curl", curl.Purl.Name)
	})

	t.Run("cpe identifiers become product statuses", func(t *testing.T) {
		require.Len(t, first.Products, 1)
		p := first.Products[0]
		assert.Equal(t, models.StatusAffected, p.Status)
		require.NotNil(t, p.Vendor)
		assert.Equal(t, "acme", *p.Vendor)
		assert.Equal(t, "gateway", p.Product)
		assert.True(t, p.Range.Contains("2.1"))
		assert.False(t, p.Range.Contains("2.2"))
	})

	t.Run("a purl without version covers every version", func(t *testing.T) {
		second := doc.Vulnerabilities[1]
		assert.Equal(t, "CVE-2023-0001", second.ID)
		require.Len(t, second.Packages, 1)
		assert.Equal(t, models.StatusFixed, second.Packages[0].Status)
		assert.True(t, second.Packages[0].Range.Contains("0.0.1"))
		assert.True(t, second.Packages[0].Range.Contains("99.0.0"))
	})

	// the urn component and the unknown status
	assert.Len(t, doc.Warnings, 2)
}

func TestParseOpenVEXRejectsOtherDocuments(t *testing.T) {
	_, err := ParseOpenVEX([]byte(`{"@id": "x", "statements": []}`))
	assert.Equal(t, shared.KindParse, shared.KindOf(err))

	_, err = ParseOpenVEX([]byte(`[]`))
	assert.Equal(t, shared.KindParse, shared.KindOf(err))
}

func TestParseDispatch(t *testing.T) {
	d, err := Parse(FormatOSV, readTestdata(t, "osv-pysec.yaml"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "osv", d.Format.String())
}
