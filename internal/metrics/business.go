// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidref_validations_total",
		Help: "Video file validations by outcome",
	}, []string{"outcome"}) // outcome=valid|invalid_type|undetermined

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidref_uploads_total",
		Help: "Upload resolutions by platform and outcome",
	}, []string{"platform", "outcome"}) // outcome=success|validation_failed|storage_failed|error

	playbackResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidref_playback_resolutions_total",
		Help: "Playback resolutions by resulting state",
	}, []string{"platform", "state"})

	permissionRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidref_permission_requests_total",
		Help: "Explicit permission requests by result",
	}, []string{"result"}) // result=granted|prompt|denied|not_found|no_activation

	blobURLsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidref_blob_urls_active",
		Help: "Blob URLs currently registered",
	})
	blobURLsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidref_blob_urls_created_total",
		Help: "Blob URLs created",
	})
	blobURLsRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidref_blob_urls_revoked_total",
		Help: "Blob URLs revoked",
	})
	blobCreateErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidref_blob_create_errors_total",
		Help: "Failed blob URL creations",
	})

	thumbnailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidref_thumbnails_total",
		Help: "Thumbnail generations by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	thumbnailDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vidref_thumbnail_duration_seconds",
		Help:    "Time spent extracting and persisting one thumbnail",
		Buckets: prometheus.DefBuckets,
	})

	storeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidref_store_errors_total",
		Help: "Reference store failures by operation",
	}, []string{"op"})

	playerSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidref_player_sessions_active",
		Help: "Mounted player sessions",
	})

	configValidationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidref_config_validation_errors_total",
		Help: "Total number of configuration validation errors",
	})

	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidref_config_reloads_total",
		Help: "Configuration reloads by result",
	}, []string{"result"}) // result=success|failure
)

func IncValidation(outcome string) { validationsTotal.WithLabelValues(outcome).Inc() }

func IncUpload(platform, outcome string) { uploadsTotal.WithLabelValues(platform, outcome).Inc() }

func IncPlaybackResolution(platform, state string) {
	playbackResolutionsTotal.WithLabelValues(platform, state).Inc()
}

func IncPermissionRequest(result string) { permissionRequestsTotal.WithLabelValues(result).Inc() }

// RecordBlobCreated counts a new registration and raises the active gauge.
func RecordBlobCreated() {
	blobURLsCreated.Inc()
	blobURLsActive.Inc()
}

// RecordBlobRevoked counts a revocation and lowers the active gauge.
func RecordBlobRevoked() {
	blobURLsRevoked.Inc()
	blobURLsActive.Dec()
}

func IncBlobCreateError() { blobCreateErrors.Inc() }

func RecordThumbnail(success bool, seconds float64) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	thumbnailsTotal.WithLabelValues(outcome).Inc()
	thumbnailDurationSeconds.Observe(seconds)
}

func IncStoreError(op string) { storeErrorsTotal.WithLabelValues(op).Inc() }

func SetPlayerSessions(n int) { playerSessionsActive.Set(float64(n)) }

func IncConfigValidationError() { configValidationErrors.Inc() }

func IncConfigReload(result string) { configReloadsTotal.WithLabelValues(result).Inc() }
