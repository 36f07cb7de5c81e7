package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPush(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ReportDomains.Set(3)
	require.NoError(t, Push(context.Background(), srv.URL, "quad9_domains"))

	assert.Equal(t, "/metrics/job/quad9_domains", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestPush_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	assert.Error(t, Push(context.Background(), srv.URL, "quad9_domains"))
}

func TestCollectorsRegistered(t *testing.T) {
	SourceDomains.WithLabelValues("cti").Add(2)
	EndpointFetch.WithLabelValues(StatusOK).Inc()

	n, err := testutil.GatherAndCount(Registry, "quad9_source_domains_total", "quad9_endpoint_fetch_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2)
}
