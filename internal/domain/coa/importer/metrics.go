package importer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rowsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coa",
		Subsystem: "import",
		Name:      "rows_processed_total",
		Help:      "Rows that passed validation and entered classification.",
	})
	rowsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coa",
		Subsystem: "import",
		Name:      "rows_skipped_total",
		Help:      "Rows dropped by validation (bad code or empty name).",
	})
	duplicateCodes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coa",
		Subsystem: "import",
		Name:      "duplicate_codes_total",
		Help:      "Occurrences of repeated account codes, flagged but kept.",
	})
	chunksCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coa",
		Subsystem: "import",
		Name:      "chunks_committed_total",
		Help:      "Commit chunks persisted successfully.",
	})
	chunkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coa",
		Subsystem: "import",
		Name:      "chunk_failures_total",
		Help:      "Commit chunks that failed and aborted their job.",
	})
)
