package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewbook/pkg/types"
)

func TestObservers(t *testing.T) {
	m := New()

	m.ObserveScrape(types.CategoryBlog, "success", 120*time.Millisecond)
	m.ObserveScrape(types.CategoryBlog, "success", time.Second)
	m.ObserveScrape("", "failure", 0)
	m.ObserveRobotsDenied(true)
	m.ObserveGeneration("generate", nil, 150)
	m.ObserveGeneration("remix", errors.New("parse"), 0)
	m.ObserveImage(nil)
	m.ObserveDrinkOfDay("cache")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScrapesTotal.WithLabelValues("blog", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScrapesTotal.WithLabelValues("unknown", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RobotsDeniedTotal.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("remix", "failure")))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.GenerationTokens))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImagesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DrinkOfDayTotal.WithLabelValues("cache")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodGet, "/health", http.StatusOK, 5*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `brewbook_http_request_duration_seconds_count{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
