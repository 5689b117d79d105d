// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package walker

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/l3montree-dev/trustgraph/common"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/pkg/errors"
)

const (
	ChangesFile = "changes.csv"
	userAgent   = "trustgraph-walker"
)

type httpContinuation struct {
	LastModified *time.Time `json:"last_modified,omitempty"`
	ETag         string     `json:"etag,omitempty"`
}

// HTTPSource walks a directory published over HTTP. The directory lists
// its files in changes.csv as "path,timestamp" rows, the layout CSAF
// providers and the OSV buckets use.
type HTTPSource struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPSource(baseURL, token string, timeout time.Duration) *HTTPSource {
	client := &http.Client{Timeout: timeout}
	common.WrapHTTPClient(client, common.UserAgent(userAgent, token))
	return &HTTPSource{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Token:   token,
		Client:  client,
	}
}

func (s *HTTPSource) client() *http.Client {
	if s.Client == nil {
		return http.DefaultClient
	}
	return s.Client
}

// statusError classifies a response status. Server errors and rate limits
// are worth a retry.
func statusError(resp *http.Response) error {
	err := errors.Errorf("unexpected status %s from %s", resp.Status, resp.Request.URL)
	retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
	return shared.StorageError(err, retryable)
}

func (s *HTTPSource) get(ctx context.Context, target string, etag string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := s.client().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, shared.StorageError(errors.Wrapf(err, "could not get %s", target), true)
	}
	return resp, nil
}

// Discover reads changes.csv and returns the files with a timestamp after
// the one of the continuation. An unchanged listing is detected by its
// ETag.
func (s *HTTPSource) Discover(ctx context.Context, continuation json.RawMessage) ([]Entry, json.RawMessage, error) {
	var last httpContinuation
	if len(continuation) > 0 {
		if err := json.Unmarshal(continuation, &last); err != nil {
			return nil, nil, errors.Wrap(err, "could not read http continuation")
		}
	}

	resp, err := s.get(ctx, s.BaseURL+"/"+ChangesFile, last.ETag)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotModified {
		return nil, continuation, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, statusError(resp)
	}

	rows, err := readChanges(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	next := httpContinuation{LastModified: last.LastModified, ETag: resp.Header.Get("ETag")}
	var entries []Entry
	for _, row := range rows {
		if last.LastModified != nil && !row.Modified.After(*last.LastModified) {
			continue
		}
		entries = append(entries, row)
		if next.LastModified == nil || row.Modified.After(*next.LastModified) {
			next.LastModified = row.Modified
		}
	}
	data, err := json.Marshal(next)
	return entries, data, err
}

func readChanges(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	records, err := reader.ReadAll()
	if err != nil {
		return nil, shared.ParseError(errors.Wrap(err, "could not read "+ChangesFile))
	}
	entries := make([]Entry, 0, len(records))
	for i, record := range records {
		modified, err := time.Parse(time.RFC3339, strings.TrimSpace(record[1]))
		if err != nil {
			return nil, shared.ParseErrorf("%s line %d: invalid timestamp %q", ChangesFile, i+1, record[1])
		}
		modified = modified.UTC()
		entries = append(entries, Entry{Path: strings.TrimSpace(record[0]), Modified: &modified})
	}
	return entries, nil
}

func (s *HTTPSource) Fetch(ctx context.Context, entry Entry) ([]byte, error) {
	target, err := url.JoinPath(s.BaseURL, entry.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid path %s", entry.Path)
	}
	resp, err := s.get(ctx, target, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, shared.StorageError(errors.Wrapf(err, "could not read %s", target), true)
	}
	return data, nil
}
