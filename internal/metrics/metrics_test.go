package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emargement/internal/events"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/eleves/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/eleves/1", "/eleves/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/eleves/:id", "GET", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("unmatched", "GET", "404")))
}

func TestEventCounterAndEntries(t *testing.T) {
	m := New(prometheus.NewRegistry())
	sink := m.EventCounter()
	require.NoError(t, sink.Handle(context.Background(), events.New(events.SheetCreated, 1)))
	require.NoError(t, sink.Handle(context.Background(), events.New(events.SheetCreated, 2)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("sheet.created")))

	m.SetEntries(3, 1, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entries.WithLabelValues("late")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetEntries(1, 0, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `emargement_presence_entries{status="present"} 1`))
}
