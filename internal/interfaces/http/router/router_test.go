package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/erp/sourcing/docs"
	"github.com/erp/sourcing/internal/application/dispatch"
	"github.com/erp/sourcing/internal/domain/sourcing"
	"github.com/erp/sourcing/internal/interfaces/http/handler"
	"github.com/erp/sourcing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubDispatch records which operation each route reached
type stubDispatch struct {
	called    string
	direction sourcing.Direction
	actor     uuid.UUID
}

func (s *stubDispatch) CreateDispatch(_ context.Context, d sourcing.Direction, _ *dispatch.CreateDispatchRequest, actor uuid.UUID) (*dispatch.DispatchResult, error) {
	s.called, s.direction, s.actor = "create", d, actor
	return &dispatch.DispatchResult{Success: true}, nil
}

func (s *stubDispatch) ResendDispatch(_ context.Context, _ uuid.UUID, _ *dispatch.ResendDispatchRequest, actor uuid.UUID) (*dispatch.DispatchResult, error) {
	s.called, s.actor = "resend", actor
	return &dispatch.DispatchResult{Success: true}, nil
}

func (s *stubDispatch) GetBatch(_ context.Context, id uuid.UUID) (*dispatch.BatchResponse, error) {
	s.called = "batch"
	return &dispatch.BatchResponse{ID: id}, nil
}

func (s *stubDispatch) ListEligible(_ context.Context, d sourcing.Direction, _ uuid.UUID) ([]dispatch.EligibleInquiryResponse, error) {
	s.called, s.direction = "eligible", d
	return []dispatch.EligibleInquiryResponse{}, nil
}

func (s *stubDispatch) Worklist(_ context.Context, d sourcing.Direction) ([]dispatch.WorklistItemResponse, error) {
	s.called, s.direction = "worklist", d
	return []dispatch.WorklistItemResponse{}, nil
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))

	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(group).Setup()

	req := httptest.NewRequest(http.MethodGet, "/api/v2/test/ping", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDomainGroup_Middleware(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("test", "/test").Use(func(c *gin.Context) {
		c.Header("X-Group", "yes")
		c.Next()
	})
	g.POST("/items", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	g.RegisterRoutes(engine.Group("/api/v1"))

	assert.Equal(t, "test", g.Name())
	assert.Equal(t, "/test", g.Prefix())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/test/items", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "yes", w.Header().Get("X-Group"))
}

func newTestEngine(t *testing.T, svc handler.DispatchService) *gin.Engine {
	t.Helper()
	engine, err := NewEngine(EngineConfig{
		CORS:        middleware.DefaultCORSConfig(),
		MaxBodySize: 1 << 20,
	})
	require.NoError(t, err)
	health := handler.NewHealthHandler(map[string]handler.HealthCheck{
		"database": func(context.Context) error { return nil },
	})
	Setup(engine, health, handler.NewDispatchHandler(svc))
	return engine
}

func TestSetup_DispatchRoutes(t *testing.T) {
	batchID := uuid.New().String()
	counterparty := uuid.New().String()
	body := `{"counterpartyId":"` + counterparty + `","inquiryIds":["` + uuid.New().String() + `"]}`

	tests := []struct {
		name      string
		method    string
		path      string
		body      string
		called    string
		direction sourcing.Direction
	}{
		{"create", http.MethodPost, "/api/v1/dispatch/to-supplier/create", body, "create", sourcing.DirectionToSupplier},
		{"worklist", http.MethodGet, "/api/v1/dispatch/to-customer/worklist", "", "worklist", sourcing.DirectionToCustomer},
		{"eligible", http.MethodGet, "/api/v1/dispatch/supplier/eligible/" + counterparty, "", "eligible", sourcing.DirectionToSupplier},
		{"batch", http.MethodGet, "/api/v1/dispatch/batches/" + batchID, "", "batch", ""},
		{"resend", http.MethodPost, "/api/v1/dispatch/batches/" + batchID + "/resend", `{"email":true}`, "resend", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubDispatch{}
			engine := newTestEngine(t, svc)

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, tt.called, svc.called)
			assert.Equal(t, tt.direction, svc.direction)
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestSetup_ActorHeader(t *testing.T) {
	svc := &stubDispatch{}
	engine := newTestEngine(t, svc)
	actor := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch/batches/"+uuid.New().String()+"/resend", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ActorHeader, actor.String())
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, actor, svc.actor)
}

func TestSetup_Health(t *testing.T) {
	engine := newTestEngine(t, &stubDispatch{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
}

func TestSetup_BodyLimit(t *testing.T) {
	engine, err := NewEngine(EngineConfig{CORS: middleware.DefaultCORSConfig(), MaxBodySize: 16})
	require.NoError(t, err)
	Setup(engine, handler.NewHealthHandler(nil), handler.NewDispatchHandler(&stubDispatch{}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch/supplier/create", strings.NewReader(strings.Repeat("x", 64)))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = 64
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSetupDocs(t *testing.T) {
	t.Run("disabled answers 404", func(t *testing.T) {
		engine := gin.New()
		SetupDocs(engine, middleware.SwaggerConfig{Enabled: false})

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("enabled serves UI and document", func(t *testing.T) {
		engine := gin.New()
		SetupDocs(engine, middleware.SwaggerConfig{Enabled: true})

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"/dispatch/{direction}/create"`)
		assert.Contains(t, w.Body.String(), `"/dispatch/batches/{id}/resend"`)
	})
}
