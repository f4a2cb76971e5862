package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nimbus_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nimbus_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nimbus_http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	// File operation metrics
	FilesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nimbus_files_uploaded_total",
			Help: "Total number of files uploaded to the blob store",
		},
	)

	UploadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nimbus_uploaded_bytes_total",
			Help: "Total bytes uploaded to the blob store",
		},
	)

	FilesTrashed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nimbus_files_trashed_total",
			Help: "Files moved to the trash, by outcome",
		},
		[]string{"outcome"},
	)

	FilesMoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nimbus_files_moved_total",
			Help: "Files moved between folders",
		},
	)

	FoldersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nimbus_folders_created_total",
			Help: "Total number of folders created",
		},
	)

	FoldersDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nimbus_folders_deleted_total",
			Help: "Total number of folders deleted with their contents",
		},
	)

	// Authentication metrics
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nimbus_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"status"},
	)

	RegisterAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nimbus_register_attempts_total",
			Help: "Total number of registration attempts",
		},
		[]string{"status"},
	)

	OAuthLogins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nimbus_oauth_logins_total",
			Help: "Total number of OAuth logins",
		},
		[]string{"status"},
	)
)

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := httpStatusToString(status)
	HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

func httpStatusToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	}
	return "unknown"
}

// RecordTrash increments the trash counter for a single batch item
func RecordTrash(moved bool) {
	outcome := "failed"
	if moved {
		outcome = "moved"
	}
	FilesTrashed.WithLabelValues(outcome).Inc()
}

// RecordLogin increments login attempt counter
func RecordLogin(success bool) {
	LoginAttempts.WithLabelValues(statusLabel(success)).Inc()
}

// RecordRegistration increments registration attempt counter
func RecordRegistration(success bool) {
	RegisterAttempts.WithLabelValues(statusLabel(success)).Inc()
}

// RecordOAuthLogin increments the OAuth login counter
func RecordOAuthLogin(success bool) {
	OAuthLogins.WithLabelValues(statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
