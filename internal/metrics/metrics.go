// Package metrics provides Prometheus collectors for the ctrlcv proxy and
// the repository provider.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	// OperationTreeListing labels tree listing fetches.
	OperationTreeListing = "tree_listing"
	// OperationFileContent labels file content fetches.
	OperationFileContent = "file_content"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctrlcv_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ctrlcv_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	providerFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctrlcv_provider_fetches_total",
			Help: "Total repository provider fetches",
		},
		[]string{"operation", "status"},
	)

	providerFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ctrlcv_provider_fetch_duration_seconds",
			Help:    "Repository provider fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctrlcv_cache_lookups_total",
			Help: "Total provider cache lookups",
		},
		[]string{"result"},
	)

	treeNodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ctrlcv_tree_nodes",
			Help:    "Number of nodes in built repository trees",
			Buckets: prometheus.ExponentialBuckets(8, 4, 8),
		},
	)

	skippedFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctrlcv_skipped_files_total",
			Help: "Total selected files skipped during aggregation",
		},
		[]string{"reason"},
	)

	aggregatedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ctrlcv_aggregated_bytes_total",
			Help: "Total bytes of aggregated documents produced",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordProviderFetch records a provider fetch and its outcome.
func RecordProviderFetch(operation string, duration time.Duration, success bool) {
	providerFetchDuration.WithLabelValues(operation).Observe(duration.Seconds())
	providerFetchesTotal.WithLabelValues(operation, outcome(success)).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordTreeBuilt records the node count of a freshly built tree.
func RecordTreeBuilt(nodeCount int) {
	treeNodes.Observe(float64(nodeCount))
}

// RecordSkippedFile records a selected file that was left out of the output.
func RecordSkippedFile(reason string) {
	skippedFilesTotal.WithLabelValues(reason).Inc()
}

// RecordAggregatedBytes records the size of an aggregated document.
func RecordAggregatedBytes(size int) {
	aggregatedBytesTotal.Add(float64(size))
}

func outcome(success bool) string {
	if success {
		return statusSuccess
	}
	return statusError
}
