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

// Package importer keeps importer definitions and runs them. A run walks
// the importer's source from its stored continuation and ingests every
// file into the graph.
package importer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/trustgraph/database/models"
	"github.com/l3montree-dev/trustgraph/database/repositories"
	"github.com/l3montree-dev/trustgraph/graph"
	"github.com/l3montree-dev/trustgraph/monitoring"
	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/l3montree-dev/trustgraph/utils"
	"github.com/l3montree-dev/trustgraph/walker"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("importer not found")
	ErrAlreadyRunning = errors.New("importer is already running")
)

// Ingester stores a single document. *graph.Graph implements it.
type Ingester interface {
	Ingest(ctx context.Context, format graph.DocumentFormat, data []byte, labels map[string]string) (*graph.IngestResult, error)
}

type Definition struct {
	Name          string
	Source        SourceType
	Kind          graph.Kind
	Configuration Configuration
	Period        time.Duration
	Disabled      bool
}

type WalkerSettings struct {
	Workers      int
	Retries      int
	Backoff      walker.BackoffConfig
	FetchTimeout time.Duration
}

var DefaultWalkerSettings = WalkerSettings{
	Workers:      4,
	Retries:      3,
	Backoff:      walker.DefaultBackoff,
	FetchTimeout: time.Minute,
}

type Service struct {
	repository shared.ImporterRepository
	ingester   Ingester
	walker     WalkerSettings
	workDir    string
	staleAfter time.Duration
	now        func() time.Time
}

type Option func(*Service)

func WithWalkerSettings(settings WalkerSettings) Option {
	return func(s *Service) {
		s.walker = settings
	}
}

// WithWorkDir sets the directory git checkouts are kept in.
func WithWorkDir(dir string) Option {
	return func(s *Service) {
		s.workDir = dir
	}
}

// WithStaleAfter sets how long a run may take before the scheduler assumes
// its process died.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Service) {
		s.staleAfter = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repository shared.ImporterRepository, ingester Ingester, opts ...Option) *Service {
	s := &Service{
		repository: repository,
		ingester:   ingester,
		walker:     DefaultWalkerSettings,
		workDir:    "importers",
		staleAfter: 6 * time.Hour,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (d Definition) validate() error {
	if d.Name == "" {
		return shared.ValidationErrorf("an importer needs a name")
	}
	if _, err := ParseSourceType(string(d.Source)); err != nil {
		return err
	}
	if _, err := ParseDocumentKind(string(d.Kind)); err != nil {
		return err
	}
	if d.Period < 0 {
		return shared.ValidationErrorf("the period must not be negative")
	}
	return d.Configuration.validate(d.Source)
}

func (s *Service) Create(ctx context.Context, d Definition) (*models.Importer, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	existing, err := s.repository.FindByName(ctx, nil, d.Name)
	if err != nil {
		return nil, shared.PersistenceError(err)
	}
	if existing != nil {
		return nil, shared.ValidationErrorf("importer %s already exists", d.Name)
	}
	configuration, err := json.Marshal(d.Configuration)
	if err != nil {
		return nil, err
	}

	importer := &models.Importer{
		Name:          d.Name,
		Source:        string(d.Source),
		Kind:          string(d.Kind),
		Configuration: datatypes.JSON(configuration),
		Disabled:      d.Disabled,
		Period:        d.Period,
		State:         models.ImporterStateWaiting,
		LastChange:    s.now(),
		Revision:      uuid.New(),
	}
	if err := s.repository.Create(ctx, nil, importer); err != nil {
		return nil, shared.PersistenceError(errors.Wrap(err, "could not create importer"))
	}
	slog.Info("importer created", "importer", d.Name, "source", d.Source, "kind", d.Kind)
	return importer, nil
}

// Update replaces the definition of an existing importer. Its continuation
// is dropped, so the next run walks the source from the start.
func (s *Service) Update(ctx context.Context, d Definition) error {
	if err := d.validate(); err != nil {
		return err
	}
	configuration, err := json.Marshal(d.Configuration)
	if err != nil {
		return err
	}
	err = s.repository.UpdateConfiguration(ctx, nil, d.Name, configuration, d.Period, d.Disabled)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(ErrNotFound, d.Name)
	}
	if err != nil {
		return shared.PersistenceError(err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, name string) (*models.Importer, error) {
	importer, err := s.repository.FindByName(ctx, nil, name)
	if err != nil {
		return nil, shared.PersistenceError(err)
	}
	if importer == nil {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	return importer, nil
}

func (s *Service) List(ctx context.Context) ([]models.Importer, error) {
	return s.repository.List(ctx)
}

func (s *Service) Delete(ctx context.Context, name string) error {
	if _, err := s.Get(ctx, name); err != nil {
		return err
	}
	return s.repository.Delete(ctx, nil, name)
}

func (s *Service) Reports(ctx context.Context, name string, limit int) ([]models.ImporterReport, error) {
	return s.repository.Reports(ctx, name, limit)
}

// Run walks the importer once. The report is returned even when the run
// fails, the continuation is only advanced when it succeeds.
func (s *Service) Run(ctx context.Context, name string) (walker.Report, error) {
	importer, err := s.Get(ctx, name)
	if err != nil {
		return walker.Report{}, err
	}
	configuration, err := decodeConfiguration(importer.Configuration)
	if err != nil {
		return walker.Report{}, err
	}
	source, err := ParseSourceType(importer.Source)
	if err != nil {
		return walker.Report{}, err
	}
	kind, err := ParseDocumentKind(importer.Kind)
	if err != nil {
		return walker.Report{}, err
	}
	format, err := graph.ParseDocumentFormat(configuration.Format)
	if err != nil {
		return walker.Report{}, shared.ValidationError(err)
	}

	start := s.now()
	revision, err := s.repository.Start(ctx, nil, name, importer.Revision, start)
	if errors.Is(err, repositories.ErrConcurrentModification) {
		return walker.Report{}, errors.Wrap(ErrAlreadyRunning, name)
	}
	if err != nil {
		return walker.Report{}, shared.PersistenceError(err)
	}
	slog.Info("importer run started", "importer", name, "source", source)

	w := walker.Walker{
		Source:  newSource(name, source, configuration, s.workDir, s.walker.FetchTimeout),
		Workers: s.walker.Workers,
		Retries: s.walker.Retries,
		Backoff: s.walker.Backoff,
	}
	var continuation json.RawMessage
	if len(importer.Continuation) > 0 {
		continuation = json.RawMessage(importer.Continuation)
	}
	process := s.processor(name, kind, format, configuration.Labels)
	result, runErr := w.Run(ctx, continuation, process)

	// the run may have been canceled, its outcome must be recorded anyway
	finishCtx := context.WithoutCancel(ctx)
	var next json.RawMessage
	if runErr == nil {
		next = result.Continuation
	}
	if err := s.finish(finishCtx, name, revision, result.Report, next, runErr); err != nil {
		return result.Report, err
	}

	outcome := "success"
	switch {
	case runErr == nil && result.Report.Skipped > 0:
		outcome = "partial"
	case shared.IsCanceled(runErr):
		outcome = "canceled"
	case runErr != nil:
		outcome = "failed"
		monitoring.Alert("importer run failed", errors.Wrap(runErr, name))
	}
	monitoring.ImporterRunDuration.WithLabelValues(name, outcome).Observe(s.now().Sub(start).Minutes())
	slog.Info("importer run finished", "importer", name, "outcome", outcome, "processed", result.Report.Processed, "skipped", result.Report.Skipped)
	return result.Report, runErr
}

func (s *Service) finish(ctx context.Context, name string, revision uuid.UUID, report walker.Report, next json.RawMessage, runErr error) error {
	if err := s.repository.Finish(ctx, nil, name, revision, s.now(), next, runErr); err != nil {
		return shared.PersistenceError(errors.Wrap(err, "could not finish importer run"))
	}
	row := &models.ImporterReport{
		ID:           uuid.New(),
		ImporterName: name,
		CreatedAt:    s.now(),
		Report:       datatypes.JSON(report.Marshal()),
	}
	if runErr != nil {
		row.Error = utils.Ptr(runErr.Error())
	}
	if err := s.repository.AddReport(ctx, nil, row); err != nil {
		return shared.PersistenceError(errors.Wrap(err, "could not store importer report"))
	}
	return nil
}

// processor ingests a single walked file. Documents that cannot be parsed
// or are of the wrong kind are skipped, storage and persistence failures
// end the run.
func (s *Service) processor(name string, kind graph.Kind, format graph.DocumentFormat, labels map[string]string) walker.ProcessFunc {
	return func(ctx context.Context, file walker.File) error {
		f := format
		if f == graph.FormatAuto {
			detected, err := graph.DetectFormat(file.Data)
			if err != nil {
				return walker.Skip(walker.PhaseValidation, err)
			}
			f = detected
		}
		if f.Kind() != kind {
			return walker.Skip(walker.PhaseValidation, shared.ValidationErrorf("%s document in a %s importer", f, kind))
		}

		fileLabels := make(map[string]string, len(labels)+2)
		for k, v := range labels {
			fileLabels[k] = v
		}
		fileLabels["importer"] = name
		fileLabels["file"] = file.Path

		result, err := s.ingester.Ingest(ctx, f, file.Data, fileLabels)
		if err != nil {
			switch shared.KindOf(err) {
			case shared.KindParse, shared.KindValidation:
				return walker.Skip(walker.PhaseValidation, err)
			}
			if shared.IsCanceled(err) {
				return err
			}
			return walker.Fatal(err)
		}
		return walker.Warn(walker.PhaseUpload, result.Warnings)
	}
}
