// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromhttpExposure(t *testing.T) {
	IncValidation("valid")

	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "vidref_validations_total"))
}

func TestBlobGaugeTracksCreateAndRevoke(t *testing.T) {
	before := testutil.ToFloat64(blobURLsActive)
	created := testutil.ToFloat64(blobURLsCreated)

	RecordBlobCreated()
	RecordBlobCreated()
	RecordBlobRevoked()

	assert.Equal(t, before+1, testutil.ToFloat64(blobURLsActive))
	assert.Equal(t, created+2, testutil.ToFloat64(blobURLsCreated))
}

// histogramCount returns the number of observations recorded by h.
func histogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, h.Write(metric))
	return metric.GetHistogram().GetSampleCount()
}

func TestRecordThumbnail(t *testing.T) {
	observed := histogramCount(t, thumbnailDurationSeconds)
	ok := testutil.ToFloat64(thumbnailsTotal.WithLabelValues("success"))
	failed := testutil.ToFloat64(thumbnailsTotal.WithLabelValues("failure"))

	RecordThumbnail(true, 0.2)
	RecordThumbnail(false, 0.1)

	assert.Equal(t, ok+1, testutil.ToFloat64(thumbnailsTotal.WithLabelValues("success")))
	assert.Equal(t, failed+1, testutil.ToFloat64(thumbnailsTotal.WithLabelValues("failure")))
	assert.Equal(t, observed+2, histogramCount(t, thumbnailDurationSeconds))
}

func TestLabelledCounters(t *testing.T) {
	tests := []struct {
		name string
		inc  func()
		read func() float64
	}{
		{"upload", func() { IncUpload("web", "success") }, func() float64 {
			return testutil.ToFloat64(uploadsTotal.WithLabelValues("web", "success"))
		}},
		{"playback", func() { IncPlaybackResolution("native", "playable") }, func() float64 {
			return testutil.ToFloat64(playbackResolutionsTotal.WithLabelValues("native", "playable"))
		}},
		{"permission", func() { IncPermissionRequest("no_activation") }, func() float64 {
			return testutil.ToFloat64(permissionRequestsTotal.WithLabelValues("no_activation"))
		}},
		{"store", func() { IncStoreError("get") }, func() float64 {
			return testutil.ToFloat64(storeErrorsTotal.WithLabelValues("get"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.read()
			tt.inc()
			assert.Equal(t, before+1, tt.read())
		})
	}
}
