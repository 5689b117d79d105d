// Copyright (C) 2026 l3montree GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package sbom parses SBOM documents into an in-memory graph. Nodes live in
// an arena indexed by position and edges are index pairs into it, so cyclic
// documents and edges to undeclared nodes need no special handling.
package sbom

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/normalize"
	"github.com/l3montree-dev/trustgraph/shared"
)

type Format int

const (
	FormatSPDX Format = iota
	FormatCycloneDX
	FormatClearlyDefined
)

var formatNames = map[Format]string{
	FormatSPDX:           "spdx",
	FormatCycloneDX:      "cyclonedx",
	FormatClearlyDefined: "clearlydefined",
}

func (f Format) String() string {
	return formatNames[f]
}

type NodeKind int

const (
	// KindUnknown marks a placeholder for a node that edges reference but
	// the document never declares.
	KindUnknown NodeKind = iota
	KindDocument
	KindPackage
	KindFile
	KindExternal
)

type ExternalRef struct {
	DocumentRef string
	NodeRef     string
	Type        models.ExternalType
}

type Node struct {
	ID       string
	Name     string
	Kind     NodeKind
	Version  *string
	Purls    []normalize.Purl
	Cpes     []normalize.Cpe
	Licenses []string
	External *ExternalRef
}

type Edge struct {
	Left         int
	Relationship normalize.Relationship
	Right        int
}

type ExtractedLicense struct {
	LicenseID string
	Name      string
	Text      string
	Comment   *string
	// Detected holds the SPDX ids recognized inside Text.
	Detected []string
}

type Document struct {
	Format       Format
	DocumentID   *string
	Name         string
	RootID       string
	Published    *time.Time
	Authors      []string
	DataLicenses []string

	Nodes     []Node
	Edges     []Edge
	Extracted []ExtractedLicense
	Warnings  []string

	index map[string]int
}

func NewDocument(format Format, rootID, name string) *Document {
	d := &Document{
		Format: format,
		RootID: rootID,
		Name:   name,
		index:  make(map[string]int),
	}
	d.AddNode(Node{ID: rootID, Name: name, Kind: KindDocument})
	return d
}

// AddNode declares a node. Declaring a node that only exists as a
// placeholder fills the placeholder in. A second declaration of the same id
// is ignored with a warning.
func (d *Document) AddNode(n Node) int {
	if i, ok := d.index[n.ID]; ok {
		if d.Nodes[i].Kind == KindUnknown {
			d.Nodes[i] = n
		} else {
			d.Warn("node %s is declared more than once", n.ID)
		}
		return i
	}
	d.Nodes = append(d.Nodes, n)
	d.index[n.ID] = len(d.Nodes) - 1
	return len(d.Nodes) - 1
}

// EnsureNode returns the index of id, adding a placeholder if needed.
func (d *Document) EnsureNode(id string) int {
	if i, ok := d.index[id]; ok {
		return i
	}
	d.Nodes = append(d.Nodes, Node{ID: id, Name: id, Kind: KindUnknown})
	d.index[id] = len(d.Nodes) - 1
	return len(d.Nodes) - 1
}

func (d *Document) Node(id string) (*Node, bool) {
	i, ok := d.index[id]
	if !ok {
		return nil, false
	}
	return &d.Nodes[i], true
}

func (d *Document) Relate(left string, rel normalize.Relationship, right string) {
	d.Edges = append(d.Edges, Edge{Left: d.EnsureNode(left), Relationship: rel, Right: d.EnsureNode(right)})
}

func (d *Document) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Debug("sbom warning", "format", d.Format, "msg", msg)
	d.Warnings = append(d.Warnings, msg)
}

// Placeholders lists the ids edges reference without a declaration.
func (d *Document) Placeholders() []string {
	var ids []string
	for _, n := range d.Nodes {
		if n.Kind == KindUnknown {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// finish records a warning per remaining placeholder. Adapters call it once
// the whole document has been read.
func (d *Document) finish() *Document {
	for _, id := range d.Placeholders() {
		d.Warn("relationship references undeclared node %s", id)
	}
	return d
}

func (d *Document) Purls() []normalize.Purl {
	var purls []normalize.Purl
	for _, n := range d.Nodes {
		purls = append(purls, n.Purls...)
	}
	return purls
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// Parse dispatches to the adapter of format.
func Parse(format Format, data []byte) (*Document, error) {
	switch format {
	case FormatSPDX:
		return ParseSPDX(data)
	case FormatCycloneDX:
		return ParseCycloneDX(data)
	case FormatClearlyDefined:
		return ParseClearlyDefined(data)
	}
	return nil, shared.ParseErrorf("unknown sbom format %d", format)
}
