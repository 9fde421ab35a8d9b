package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricHTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitekeeper",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests by method and status.",
	}, []string{"method", "status"})
	metricHTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sitekeeper",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
	metricGitOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitekeeper",
		Name:      "git_operations_total",
		Help:      "Git operations by kind and outcome.",
	}, []string{"operation", "result"})
	metricFileOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitekeeper",
		Name:      "file_operations_total",
		Help:      "File operations by kind.",
	}, []string{"operation"})
	metricUploadedFiles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sitekeeper",
		Name:      "uploaded_files_total",
		Help:      "Files persisted through bulk upload.",
	})
)

func observeGitResult(operation string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	metricGitOperations.WithLabelValues(operation, result).Inc()
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
