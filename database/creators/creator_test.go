package creators

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/integrationtestutil"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func count[T any](t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(new(T)).Count(&n).Error)
	return n
}

func TestRowSetSortedIsIndependentOfInsertionOrder(t *testing.T) {
	a := newRowSet[string, string](strings.Compare)
	b := newRowSet[string, string](strings.Compare)
	for _, k := range []string{"c", "a", "b"} {
		a.add(k, k)
	}
	for _, k := range []string{"b", "c", "a"} {
		b.add(k, k)
	}
	assert.Equal(t, []string{"a", "b", "c"}, a.sorted())
	assert.Equal(t, a.sorted(), b.sorted())
}

func TestRowSetFirstAddWins(t *testing.T) {
	s := newRowSet[string, string](strings.Compare)
	assert.True(t, s.add("k", "first"))
	assert.False(t, s.add("k", "second"))
	assert.Equal(t, []string{"first"}, s.sorted())
}

func TestPurlCreator(t *testing.T) {
	db := integrationtestutil.InitSQLiteDatabase(t)
	ctx := context.Background()

	t.Run("should write one row per identity", func(t *testing.T) {
		c := NewPurlCreator()
		c.Add(normalize.MustParsePurl("pkg:npm/left-pad@1.3.0"))
		c.Add(normalize.MustParsePurl("pkg:npm/left-pad@1.3.0"))
		c.Add(normalize.MustParsePurl("pkg:npm/left-pad@1.2.0"))
		c.Add(normalize.MustParsePurl("pkg:npm/left-pad@1.2.0?arch=x86"))
		require.NoError(t, c.Create(ctx, db))

		assert.Equal(t, int64(1), count[models.BasePurl](t, db))
		assert.Equal(t, int64(2), count[models.VersionedPurl](t, db))
		assert.Equal(t, int64(3), count[models.QualifiedPurl](t, db))
	})

	t.Run("should be a no-op when the rows already exist", func(t *testing.T) {
		c := NewPurlCreator()
		c.Add(normalize.MustParsePurl("pkg:npm/left-pad@1.3.0"))
		require.NoError(t, c.Create(ctx, db))
		assert.Equal(t, int64(3), count[models.QualifiedPurl](t, db))
	})

	t.Run("should split large sets into batches", func(t *testing.T) {
		c := NewPurlCreator().WithBatchSize(2)
		for _, v := range []string{"1", "2", "3", "4", "5"} {
			c.Add(normalize.MustParsePurl("pkg:pypi/requests@" + v))
		}
		require.NoError(t, c.Create(ctx, db))
		assert.Equal(t, int64(2), count[models.BasePurl](t, db))
		assert.Equal(t, int64(8), count[models.QualifiedPurl](t, db))
	})

	t.Run("should stop when the context is canceled", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		c := NewPurlCreator()
		c.Add(normalize.MustParsePurl("pkg:cargo/serde@1.0.0"))
		assert.ErrorIs(t, c.Create(canceled, db), context.Canceled)
	})
}

func TestNodeCreator(t *testing.T) {
	db := integrationtestutil.InitSQLiteDatabase(t)
	ctx := context.Background()
	sbomID := uuid.New()

	purl := normalize.MustParsePurl("pkg:maven/org.apache/commons-lang3@3.12.0")
	cpe := normalize.MustParseCpe("cpe:2.3:a:apache:commons_lang:3.12.0:*:*:*:*:*:*:*")

	purls := NewPurlCreator()
	purls.Add(purl)
	cpes := NewCpeCreator()
	cpes.Add(cpe)

	nodes := NewNodeCreator(sbomID)
	nodes.AddNode("SPDXRef-DOCUMENT", "doc")
	nodes.AddPackage("SPDXRef-commons", "commons-lang3", utils.Ptr("3.12.0"), []normalize.Purl{purl, purl}, []normalize.Cpe{cpe})
	nodes.AddFile("SPDXRef-file", "pom.xml")
	// redeclaring a node keeps the first row
	nodes.AddNode("SPDXRef-file", "other")

	rels := NewRelationshipCreator(sbomID)
	rels.Add("SPDXRef-DOCUMENT", normalize.RelDescribes, "SPDXRef-commons")
	rels.Add("SPDXRef-DOCUMENT", normalize.RelDescribes, "SPDXRef-commons")
	rels.Add("SPDXRef-file", normalize.RelContainedBy, "SPDXRef-commons")

	require.NoError(t, purls.Create(ctx, db))
	require.NoError(t, cpes.Create(ctx, db))
	require.NoError(t, nodes.Create(ctx, db))
	require.NoError(t, rels.Create(ctx, db))

	assert.Equal(t, 3, nodes.Len())
	assert.Equal(t, int64(3), count[models.SbomNode](t, db))
	assert.Equal(t, int64(1), count[models.SbomPackage](t, db))
	assert.Equal(t, int64(1), count[models.SbomFile](t, db))
	assert.Equal(t, int64(1), count[models.SbomPackagePurlRef](t, db))
	assert.Equal(t, int64(1), count[models.SbomPackageCpeRef](t, db))
	assert.Equal(t, int64(2), count[models.PackageRelatesToPackage](t, db))

	var file models.SbomNode
	require.NoError(t, db.Where("sbom_id = ? AND node_id = ?", sbomID, "SPDXRef-file").First(&file).Error)
	assert.Equal(t, "pom.xml", file.Name)
}

func TestLicenseCreator(t *testing.T) {
	db := integrationtestutil.InitSQLiteDatabase(t)
	ctx := context.Background()
	sbomID := uuid.New()
	purl := normalize.MustParsePurl("pkg:npm/react@18.0.0")

	purls := NewPurlCreator()
	purls.Add(purl)

	licenses := NewLicenseCreator(sbomID)
	mit := licenses.Add("MIT")
	assert.Equal(t, mit, licenses.Add(" MIT "))
	gpl := licenses.Add("GPL-2.0-only WITH Classpath-exception-2.0")
	licenses.AddPurlAssertion(mit, purl)
	licenses.AddPurlAssertion(mit, purl)
	licenses.AddPurlAssertion(gpl, purl)

	require.NoError(t, purls.Create(ctx, db))
	require.NoError(t, licenses.Create(ctx, db))

	assert.Equal(t, int64(2), count[models.License](t, db))
	assert.Equal(t, int64(2), count[models.PurlLicenseAssertion](t, db))

	var license models.License
	require.NoError(t, db.First(&license, "id = ?", gpl).Error)
	assert.Equal(t, []string{"GPL-2.0-only"}, []string(license.SpdxLicenses))
	assert.Equal(t, []string{"Classpath-exception-2.0"}, []string(license.SpdxLicenseExceptions))
}

func TestStatusCreator(t *testing.T) {
	db := integrationtestutil.InitSQLiteDatabase(t)
	ctx := context.Background()
	advisoryID := uuid.New()
	purl := normalize.MustParsePurl("pkg:pypi/django@4.2.0")
	affected := normalize.VersionRange{Scheme: normalize.SchemePython, Low: utils.Ptr("4.0"), LowInclusive: true, High: utils.Ptr("4.2.1")}

	c := NewStatusCreator(advisoryID)
	first := c.AddPurlStatus("CVE-2024-0001", models.StatusAffected, purl, affected, nil)
	second := c.AddPurlStatus("CVE-2024-0001", models.StatusAffected, purl.WithVersion("4.1.0"), affected, nil)
	c.AddPurlStatus("CVE-2024-0001", models.StatusFixed, purl, normalize.ExactRange(normalize.SchemePython, "4.2.1"), nil)

	cpe := normalize.MustParseCpe("cpe:/a:redhat:enterprise_linux:9")
	product := c.AddProduct(utils.Ptr("Red Hat"), "Red Hat Enterprise Linux 9", &cpe)
	c.AddProductStatus("CVE-2024-0001", models.StatusAffected, product, normalize.FullRange(normalize.SchemeRpm), &cpe, utils.Ptr("python3-django"))
	require.NoError(t, c.Create(ctx, db))

	assert.Equal(t, first, second, "the version of the purl must not influence the status identity")
	assert.Equal(t, int64(2), count[models.PurlStatus](t, db))
	assert.Equal(t, int64(3), count[models.VersionRange](t, db))
	assert.Equal(t, int64(1), count[models.ProductStatus](t, db))
	assert.Equal(t, int64(1), count[models.Organization](t, db))

	// same statuses again
	again := NewStatusCreator(advisoryID)
	again.AddPurlStatus("CVE-2024-0001", models.StatusAffected, purl, affected, nil)
	require.NoError(t, again.Create(ctx, db))
	assert.Equal(t, int64(2), count[models.PurlStatus](t, db))
}

func TestAdvisoryVulnerabilityCreator(t *testing.T) {
	db := integrationtestutil.InitSQLiteDatabase(t)
	ctx := context.Background()
	advisoryID := uuid.New()

	c := NewAdvisoryVulnerabilityCreator(advisoryID).WithBatchSize(1)
	c.AddLink(models.AdvisoryVulnerability{VulnerabilityID: "CVE-2024-0002"})
	c.AddLink(models.AdvisoryVulnerability{VulnerabilityID: "CVE-2024-0001", Title: utils.Ptr("first")})
	c.AddLink(models.AdvisoryVulnerability{VulnerabilityID: "CVE-2024-0001", Title: utils.Ptr("second")})
	c.AddDescription("CVE-2024-0001", "en", "description")
	c.AddDescription("CVE-2024-0001", "en", "ignored")
	c.AddScore("CVE-2024-0001", "3.1", "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H", 9.8, "critical")
	require.NoError(t, c.Create(ctx, db))
	require.NoError(t, c.Create(ctx, db))

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(2), count[models.AdvisoryVulnerability](t, db))
	assert.Equal(t, int64(1), count[models.VulnerabilityDescription](t, db))
	assert.Equal(t, int64(1), count[models.VulnerabilityScore](t, db))

	var link models.AdvisoryVulnerability
	require.NoError(t, db.Where("vulnerability_id = ?", "CVE-2024-0001").First(&link).Error)
	assert.Equal(t, "first", *link.Title)
	assert.Equal(t, advisoryID, link.AdvisoryID)
}
