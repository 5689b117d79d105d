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

// Package walker retrieves the documents of an external source
// incrementally. A run discovers what changed since the stored
// continuation, hands every file to a callback and yields the continuation
// for the next run only if no fatal error occurred.
package walker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/l3montree-dev/trustgraph/monitoring"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Entry is a file a source discovered. Revision pins the state the file is
// read from, where the source has such a notion.
type Entry struct {
	Path     string
	Modified *time.Time
	Revision string
}

// Source is a place documents are retrieved from.
type Source interface {
	// Discover lists the entries changed since continuation together with
	// the continuation to store once they are all handled. A nil
	// continuation asks for everything.
	Discover(ctx context.Context, continuation json.RawMessage) ([]Entry, json.RawMessage, error)
	// Fetch reads an entry. Errors classified as retryable storage errors
	// are retried.
	Fetch(ctx context.Context, entry Entry) ([]byte, error)
}

type File struct {
	Path     string
	Modified *time.Time
	Data     []byte
}

// ProcessFunc handles one file. Returning an error built by Skip records
// it and continues with the next file, any other error ends the run.
type ProcessFunc func(ctx context.Context, file File) error

// SkipError marks a failure limited to one file.
type SkipError struct {
	Phase Phase
	Err   error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *SkipError) Unwrap() error {
	return e.Err
}

// Skip marks err as a failure of one file in phase.
func Skip(phase Phase, err error) error {
	return &SkipError{Phase: phase, Err: err}
}

// FatalError ends the run.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func Fatal(err error) error {
	return &FatalError{Err: err}
}

// Warning is returned next to a successfully handled file by wrapping it
// with Warn. The file counts as processed.
type Warning struct {
	Phase    Phase
	Messages []string
}

func (w *Warning) Error() string {
	return fmt.Sprintf("%s: %d warnings", w.Phase, len(w.Messages))
}

func Warn(phase Phase, messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	return &Warning{Phase: phase, Messages: messages}
}

type BackoffConfig struct {
	Initial time.Duration
	Max     time.Duration
}

var DefaultBackoff = BackoffConfig{Initial: 500 * time.Millisecond, Max: 30 * time.Second}

type Walker struct {
	Source  Source
	Workers int
	// Retries bounds the retries of a failing fetch. Exhausting them skips
	// the file.
	Retries int
	Backoff BackoffConfig
}

type Result struct {
	// Continuation is the token to store. After a failed run it is the
	// continuation the run started from.
	Continuation json.RawMessage
	Report       Report
}

// Run walks the source. The report is returned in every case, even when the
// run ends with an error.
func (w *Walker) Run(ctx context.Context, continuation json.RawMessage, process ProcessFunc) (Result, error) {
	report := newReportBuilder(time.Now())
	result := Result{Continuation: continuation}

	entries, next, err := w.Source.Discover(ctx, continuation)
	if err != nil {
		result.Report = report.finish(time.Now())
		if shared.IsCanceled(err) {
			return result, err
		}
		return result, Fatal(errors.Wrap(err, "could not discover changes"))
	}
	report.discovered(len(entries))
	slog.Info("walker discovered files", "count", len(entries))

	workers := max(w.Workers, 1)
	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan Entry)
	g.Go(func() error {
		defer close(queue)
		for _, entry := range entries {
			select {
			case queue <- entry:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range workers {
		g.Go(func() error {
			for entry := range queue {
				if err := w.handle(gctx, entry, process, report); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err = g.Wait()
	result.Report = report.finish(time.Now())
	if err != nil {
		// a worker failing cancels gctx, prefer its error over the
		// cancellation it caused
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, err
	}
	result.Continuation = next
	return result, nil
}

func (w *Walker) handle(ctx context.Context, entry Entry, process ProcessFunc, report *reportBuilder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := w.fetch(ctx, entry)
	if err != nil {
		if shared.IsCanceled(err) {
			return err
		}
		slog.Warn("could not retrieve file", "file", entry.Path, "err", err)
		report.skip(PhaseRetrieval, entry.Path, err)
		monitoring.WalkerFiles.WithLabelValues("skipped", PhaseRetrieval.String()).Inc()
		return nil
	}

	err = process(ctx, File{Path: entry.Path, Modified: entry.Modified, Data: data})
	var skip *SkipError
	var warning *Warning
	var fatal *FatalError
	switch {
	case err == nil:
		report.processed()
		monitoring.WalkerFiles.WithLabelValues("processed", "").Inc()
	case shared.IsCanceled(err):
		return err
	case errors.As(err, &warning):
		report.processed()
		for _, msg := range warning.Messages {
			report.warn(warning.Phase, entry.Path, msg)
		}
		monitoring.WalkerFiles.WithLabelValues("processed", warning.Phase.String()).Inc()
	case errors.As(err, &skip):
		slog.Warn("skipping file", "file", entry.Path, "phase", skip.Phase, "err", skip.Err)
		report.skip(skip.Phase, entry.Path, skip.Err)
		monitoring.WalkerFiles.WithLabelValues("skipped", skip.Phase.String()).Inc()
	case errors.As(err, &fatal):
		monitoring.WalkerFiles.WithLabelValues("fatal", "").Inc()
		return errors.Wrapf(err, "file %s", entry.Path)
	default:
		monitoring.WalkerFiles.WithLabelValues("fatal", "").Inc()
		return Fatal(errors.Wrapf(err, "file %s", entry.Path))
	}
	return nil
}

func isRetryable(err error) bool {
	var e *shared.Error
	return errors.As(err, &e) && e.Kind == shared.KindStorage && e.Retryable
}

// fetch reads the entry, retrying retryable failures with exponential
// backoff.
func (w *Walker) fetch(ctx context.Context, entry Entry) ([]byte, error) {
	if w.Retries <= 0 {
		// WithMaxRetries treats zero as unbounded
		return w.Source.Fetch(ctx, entry)
	}
	cfg := w.Backoff
	if cfg.Initial <= 0 {
		cfg = DefaultBackoff
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.Initial
	bo.MaxInterval = cfg.Max
	bo.MaxElapsedTime = 0

	var data []byte
	operation := func() error {
		d, err := w.Source.Fetch(ctx, entry)
		if err != nil {
			if shared.IsCanceled(err) || !isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		data = d
		return nil
	}
	notify := func(err error, wait time.Duration) {
		slog.Debug("retrying fetch", "file", entry.Path, "wait", wait, "err", err)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(w.Retries)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return data, nil
}
