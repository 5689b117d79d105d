package advisory

import (
	"strings"

	gocvss30 "github.com/pandatix/go-cvss/30"
	gocvss31 "github.com/pandatix/go-cvss/31"
	gocvss40 "github.com/pandatix/go-cvss/40"
	"github.com/pkg/errors"
)

type Score struct {
	Type     string
	Vector   string
	Score    float64
	Severity string
}

// ParseScore computes the base score and rating of a CVSS v3.0, v3.1 or
// v4.0 vector.
func ParseScore(vector string) (Score, error) {
	vector = strings.TrimSpace(vector)
	switch {
	case strings.HasPrefix(vector, "CVSS:3.0/"):
		cvss, err := gocvss30.ParseVector(vector)
		if err != nil {
			return Score{}, errors.Wrapf(err, "invalid cvss vector %s", vector)
		}
		score := cvss.BaseScore()
		rating, err := gocvss30.Rating(score)
		return Score{Type: "3.0", Vector: cvss.Vector(), Score: score, Severity: strings.ToLower(rating)}, err
	case strings.HasPrefix(vector, "CVSS:3.1/"):
		cvss, err := gocvss31.ParseVector(vector)
		if err != nil {
			return Score{}, errors.Wrapf(err, "invalid cvss vector %s", vector)
		}
		score := cvss.BaseScore()
		rating, err := gocvss31.Rating(score)
		return Score{Type: "3.1", Vector: cvss.Vector(), Score: score, Severity: strings.ToLower(rating)}, err
	case strings.HasPrefix(vector, "CVSS:4.0/"):
		cvss, err := gocvss40.ParseVector(vector)
		if err != nil {
			return Score{}, errors.Wrapf(err, "invalid cvss vector %s", vector)
		}
		score := cvss.Score()
		rating, err := gocvss40.Rating(score)
		return Score{Type: "4.0", Vector: cvss.Vector(), Score: score, Severity: strings.ToLower(rating)}, err
	}
	return Score{}, errors.Errorf("unsupported cvss vector %s", vector)
}

// scoreCollector parses vectors once and records unparsable ones as
// warnings on the document.
type scoreCollector struct {
	doc    *Document
	seen   map[string]struct{}
	scores []Score
}

func newScoreCollector(doc *Document) *scoreCollector {
	return &scoreCollector{doc: doc, seen: make(map[string]struct{})}
}

func (c *scoreCollector) add(vector string) {
	if vector == "" {
		return
	}
	if _, ok := c.seen[vector]; ok {
		return
	}
	c.seen[vector] = struct{}{}
	score, err := ParseScore(vector)
	if err != nil {
		c.doc.Warn("%v", err)
		return
	}
	c.scores = append(c.scores, score)
}
