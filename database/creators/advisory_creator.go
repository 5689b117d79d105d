package creators

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/normalize"
	"gorm.io/gorm"
)

// AdvisoryVulnerabilityCreator writes what one advisory says about its
// vulnerabilities apart from statuses: the link rows, descriptions and
// scores.
type AdvisoryVulnerabilityCreator struct {
	batch
	advisoryID   uuid.UUID
	links        *rowSet[string, models.AdvisoryVulnerability]
	descriptions *rowSet[uuid.UUID, models.VulnerabilityDescription]
	scores       *rowSet[uuid.UUID, models.VulnerabilityScore]
}

func NewAdvisoryVulnerabilityCreator(advisoryID uuid.UUID) *AdvisoryVulnerabilityCreator {
	return &AdvisoryVulnerabilityCreator{
		batch:        newBatch(),
		advisoryID:   advisoryID,
		links:        newRowSet[string, models.AdvisoryVulnerability](strings.Compare),
		descriptions: newUUIDRowSet[models.VulnerabilityDescription](),
		scores:       newUUIDRowSet[models.VulnerabilityScore](),
	}
}

func (c *AdvisoryVulnerabilityCreator) WithBatchSize(size int) *AdvisoryVulnerabilityCreator {
	c.setSize(size)
	return c
}

func (c *AdvisoryVulnerabilityCreator) AddLink(link models.AdvisoryVulnerability) {
	link.AdvisoryID = c.advisoryID
	c.links.add(link.VulnerabilityID, link)
}

func (c *AdvisoryVulnerabilityCreator) AddDescription(vulnerabilityID, lang, description string) {
	id := normalize.DeriveUUID(normalize.Str("vulnerability_description"), normalize.Str(c.advisoryID.String()), normalize.Str(vulnerabilityID), normalize.Str(lang))
	c.descriptions.add(id, models.VulnerabilityDescription{
		ID:              id,
		VulnerabilityID: vulnerabilityID,
		AdvisoryID:      c.advisoryID,
		Lang:            lang,
		Description:     description,
	})
}

func (c *AdvisoryVulnerabilityCreator) AddScore(vulnerabilityID, scoreType, vector string, score float64, severity string) {
	id := normalize.DeriveUUID(normalize.Str("vulnerability_score"), normalize.Str(c.advisoryID.String()), normalize.Str(vulnerabilityID), normalize.Str(vector))
	c.scores.add(id, models.VulnerabilityScore{
		ID:              id,
		AdvisoryID:      c.advisoryID,
		VulnerabilityID: vulnerabilityID,
		Type:            scoreType,
		Vector:          vector,
		Score:           score,
		Severity:        severity,
	})
}

func (c *AdvisoryVulnerabilityCreator) Len() int {
	return c.links.len()
}

func (c *AdvisoryVulnerabilityCreator) Create(ctx context.Context, tx *gorm.DB) error {
	for _, create := range []func(context.Context, *gorm.DB, batch) error{
		c.links.create,
		c.descriptions.create,
		c.scores.create,
	} {
		if err := create(ctx, tx, c.batch); err != nil {
			return err
		}
	}
	return nil
}
