package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/database/creators"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/dtos"
	"github.com/l3montree-dev/trustgraph/integrationtestutil"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// seedSbom writes a small graph:
//
//	DOC describes A, A depends_on B, C dependency_of B, B depends_on A (cycle)
//	D is not connected
func seedSbom(t *testing.T, db *gorm.DB, documentID string) models.Sbom {
	t.Helper()
	ctx := context.Background()
	sbom := models.Sbom{
		SbomID:     uuid.New(),
		NodeID:     "DOC",
		DocumentID: utils.Ptr(documentID),
		Format:     "spdx",
		IngestedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(&sbom).Error)

	purls := creators.NewPurlCreator()
	nodes := creators.NewNodeCreator(sbom.SbomID)
	rels := creators.NewRelationshipCreator(sbom.SbomID)
	a := normalize.MustParsePurl("pkg:npm/a@1.0.0")
	purls.Add(a)
	nodes.AddNode("DOC", "document")
	nodes.AddPackage("A", "a", utils.Ptr("1.0.0"), []normalize.Purl{a}, nil)
	nodes.AddPackage("B", "b", nil, nil, nil)
	nodes.AddPackage("C", "c", nil, nil, nil)
	nodes.AddPackage("D", "d", nil, nil, nil)
	rels.Add("DOC", normalize.RelDescribes, "A")
	rels.Add("A", normalize.RelDependsOn, "B")
	rels.Add("C", normalize.RelDependencyOf, "B")
	rels.Add("B", normalize.RelDependsOn, "A")

	require.NoError(t, purls.Create(ctx, db))
	require.NoError(t, nodes.Create(ctx, db))
	require.NoError(t, rels.Create(ctx, db))
	return sbom
}

func nodeIDs(nodes []dtos.PackageNode) []string {
	return utils.Map(nodes, func(n dtos.PackageNode) string { return n.NodeID })
}

func TestDescribedPackages(t *testing.T) {
	db := integrationtestutil.InitSQLiteDatabase(t)
	repo := NewSbomRepository(db)
	sbom := seedSbom(t, db, "https://example.com/doc")

	t.Run("should follow edges in both directions and stop on cycles", func(t *testing.T) {
		nodes, err := repo.DescribedPackages(context.Background(), nil, sbom, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, nodeIDs(nodes))
		assert.Equal(t, []string{"pkg:npm/a@1.0.0"}, nodes[0].Purls)
		assert.Equal(t, "1.0.0", *nodes[0].Version)
	})

	t.Run("should respect the depth bound", func(t *testing.T) {
		nodes, err := repo.DescribedPackages(context.Background(), nil, sbom, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, nodeIDs(nodes))
	})
}

func TestRelatedPackages(t *testing.T) {
	db := integrationtestutil.InitSQLiteDatabase(t)
	repo := NewSbomRepository(db)
	sbom := seedSbom(t, db, "https://example.com/doc")
	ctx := context.Background()

	t.Run("left", func(t *testing.T) {
		related, err := repo.RelatedPackages(ctx, nil, sbom.SbomID, "A", nil, dtos.WhichLeft)
		require.NoError(t, err)
		require.Len(t, related, 1)
		assert.Equal(t, "B", related[0].NodeID)
		assert.False(t, related[0].Left)
	})

	t.Run("right", func(t *testing.T) {
		related, err := repo.RelatedPackages(ctx, nil, sbom.SbomID, "B", nil, dtos.WhichRight)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"A", "C"}, []string{related[0].NodeID, related[1].NodeID})
	})

	t.Run("either with relationship filter", func(t *testing.T) {
		rel := normalize.RelDependsOn
		related, err := repo.RelatedPackages(ctx, nil, sbom.SbomID, "B", &rel, dtos.WhichEither)
		require.NoError(t, err)
		require.Len(t, related, 2)
		for _, r := range related {
			assert.Equal(t, "A", r.NodeID)
			assert.Equal(t, normalize.RelDependsOn, r.Relationship)
		}
	})
}

func TestDeleteSbom(t *testing.T) {
	db := integrationtestutil.InitSQLiteDatabase(t)
	repo := NewSbomRepository(db)
	ctx := context.Background()
	target := seedSbom(t, db, "https://example.com/target")
	other := seedSbom(t, db, "https://example.com/other")

	external := creators.NewExternalNodeCreator(other.SbomID)
	external.Add("DocumentRef-target:SPDXRef-A", "https://example.com/target", "SPDXRef-A", models.ExternalTypeSPDX, nil)
	require.NoError(t, external.Create(ctx, db))

	n, err := repo.BackfillExternalTargets(ctx, nil, "https://example.com/target", target.SbomID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, repo.Delete(ctx, nil, target.SbomID))

	deleted, err := repo.FindByID(ctx, nil, target.SbomID)
	require.NoError(t, err)
	assert.Nil(t, deleted)

	count, err := repo.CountNodes(ctx, nil, target.SbomID)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = repo.CountNodes(ctx, nil, other.SbomID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	var purls int64
	require.NoError(t, db.Model(&models.BasePurl{}).Count(&purls).Error)
	assert.Equal(t, int64(1), purls, "shared purls must survive")

	nodes, err := repo.ExternalNodes(ctx, nil, other.SbomID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Nil(t, nodes[0].TargetSbomID)
}
