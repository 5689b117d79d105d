// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var DocumentsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trustgraph_documents_ingested_total",
	Help: "Number of ingested documents by format and outcome",
}, []string{"format", "outcome"})

var IngestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "trustgraph_ingest_duration_seconds",
	Help:    "Duration of a single document ingestion in seconds",
	Buckets: prometheus.DefBuckets,
}, []string{"format"})

var TransactionRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "trustgraph_transaction_retries_total",
	Help: "Number of document transactions retried after a deadlock or serialization failure",
})
