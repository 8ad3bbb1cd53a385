// Package metrics exposes Prometheus collectors for the API and the
// statement import pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration times every request by route so slow imports show
	// up separately from dashboard reads.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "umhc",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// ImportJobsTotal counts finished import jobs by file type and outcome.
	ImportJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "umhc",
		Subsystem: "import",
		Name:      "jobs_total",
		Help:      "Import jobs by file type and final status.",
	}, []string{"file_type", "status"})

	// ImportDuration measures wall time per statement import.
	ImportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "umhc",
		Subsystem: "import",
		Name:      "duration_seconds",
		Help:      "Wall time spent processing one statement import.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"file_type"})

	// PagesProcessed counts statement pages run through the extractor.
	PagesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "umhc",
		Subsystem: "extraction",
		Name:      "pages_processed_total",
		Help:      "Statement pages run through the spatial extractor.",
	})

	// TransactionsExtracted counts extracted transactions by parse path,
	// either "spatial" or "fallback".
	TransactionsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "umhc",
		Subsystem: "extraction",
		Name:      "transactions_total",
		Help:      "Extracted transactions by parse path.",
	}, []string{"path"})

	// DuplicatesSkipped counts rows dropped by the dedupe key.
	DuplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "umhc",
		Subsystem: "import",
		Name:      "duplicates_skipped_total",
		Help:      "Transactions dropped because an identical one already exists.",
	})
)

// Middleware records request latency for every route gin knows about.
// Unmatched paths are labelled "unmatched" to keep cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}
