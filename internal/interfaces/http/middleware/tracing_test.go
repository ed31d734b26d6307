package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracing(t *testing.T) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	router := gin.New()
	router.Use(RequestID(), Tracing(TracingConfig{ServiceName: "sourcing-dispatch", Enabled: true}), SpanEnricher(), Actor())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/dispatch/batches/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/dispatch/:direction/create", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	return router, sr
}

func TestTracing_NamesSpanAfterRoute(t *testing.T) {
	router, sr := setupTracing(t)
	actor := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/dispatch/batches/"+uuid.NewString(), nil)
	req.Header.Set(RequestIDHeader, "req-123")
	req.Header.Set(ActorHeader, actor.String())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /dispatch/batches/:id", spans[0].Name())

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "req-123", attrs["request_id"])
	assert.Equal(t, actor.String(), attrs["actor_id"])
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
}

func TestTracing_MarksClientErrors(t *testing.T) {
	router, sr := setupTracing(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dispatch/TO_SUPPLIER/create", nil))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "Bad Request", spans[0].Status().Description)
}

func TestTracing_SkipsHealth(t *testing.T) {
	router, sr := setupTracing(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracing_Disabled(t *testing.T) {
	router := gin.New()
	router.Use(Tracing(TracingConfig{Enabled: false}), SpanEnricher())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, "pong", w.Body.String())
}
