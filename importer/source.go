// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package importer

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/l3montree-dev/trustgraph/graph"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/l3montree-dev/trustgraph/walker"
	"github.com/pkg/errors"
)

type SourceType string

const (
	SourceGit        SourceType = "git"
	SourceHTTP       SourceType = "http"
	SourceFileSystem SourceType = "filesystem"
)

func ParseSourceType(s string) (SourceType, error) {
	switch t := SourceType(s); t {
	case SourceGit, SourceHTTP, SourceFileSystem:
		return t, nil
	}
	return "", shared.ValidationErrorf("unknown source %q, expected git, http or filesystem", s)
}

func ParseDocumentKind(s string) (graph.Kind, error) {
	switch k := graph.Kind(s); k {
	case graph.KindSbom, graph.KindAdvisory:
		return k, nil
	}
	return "", shared.ValidationErrorf("unknown document kind %q, expected sbom or advisory", s)
}

// Configuration holds the source specific settings of an importer. Only the
// fields of its source type are used.
type Configuration struct {
	// git
	URL    string `json:"url,omitempty"`
	Branch string `json:"branch,omitempty"`
	Dir    string `json:"dir,omitempty"`
	// http
	BaseURL string `json:"baseUrl,omitempty"`
	// filesystem
	Root string `json:"root,omitempty"`

	Globs  []string          `json:"globs,omitempty"`
	Token  string            `json:"token,omitempty"`
	Format string            `json:"format,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

func (c Configuration) validate(source SourceType) error {
	switch source {
	case SourceGit:
		if c.URL == "" && c.Dir == "" {
			return shared.ValidationErrorf("a git importer needs a url or a dir")
		}
	case SourceHTTP:
		if c.BaseURL == "" {
			return shared.ValidationErrorf("an http importer needs a baseUrl")
		}
	case SourceFileSystem:
		if c.Root == "" {
			return shared.ValidationErrorf("a filesystem importer needs a root")
		}
	}
	if _, err := graph.ParseDocumentFormat(c.Format); err != nil {
		return shared.ValidationErrorf("unknown document format %q", c.Format)
	}
	return nil
}

func decodeConfiguration(data []byte) (Configuration, error) {
	var c Configuration
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, shared.ValidationError(errors.Wrap(err, "invalid importer configuration"))
	}
	return c, nil
}

// newSource builds the walker source of an importer. Git checkouts without
// a configured dir live below workDir.
func newSource(name string, source SourceType, c Configuration, workDir string, timeout time.Duration) walker.Source {
	switch source {
	case SourceGit:
		dir := c.Dir
		if dir == "" {
			dir = filepath.Join(workDir, name)
		}
		return &walker.GitSource{URL: c.URL, Branch: c.Branch, Dir: dir, Globs: c.Globs, Token: c.Token}
	case SourceHTTP:
		return walker.NewHTTPSource(c.BaseURL, c.Token, timeout)
	default:
		return &walker.FileSystemSource{Root: c.Root, Globs: c.Globs}
	}
}
