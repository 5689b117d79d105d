// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var WalkerFiles = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trustgraph_walker_files_total",
	Help: "Files handled by walker runs by outcome and phase",
}, []string{"outcome", "phase"})

var ImporterRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "trustgraph_importer_run_duration_minutes",
	Help:    "Duration of importer runs in minutes",
	Buckets: prometheus.DefBuckets,
}, []string{"importer", "outcome"})
