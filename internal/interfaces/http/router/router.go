package router

import (
	"github.com/erp/sourcing/internal/interfaces/http/handler"
	"github.com/erp/sourcing/internal/interfaces/http/middleware"
	"github.com/erp/sourcing/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		registrars: make([]RouteRegistrar, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes under /api/<version>
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// DomainGroup is a named route group with its own middleware
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a new domain-specific route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: "GET", path: path, handlers: handlers})
	return dg
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: "POST", path: path, handlers: handlers})
	return dg
}

// RegisterRoutes implements RouteRegistrar interface
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

// DispatchRoutes builds the /dispatch route group.
// Batch routes are static segments and take priority over :direction.
func DispatchRoutes(h *handler.DispatchHandler) *DomainGroup {
	g := NewDomainGroup("dispatch", "/dispatch")
	g.GET("/batches/:id", h.GetBatch)
	g.POST("/batches/:id/resend", h.Resend)
	g.POST("/:direction/create", h.Create)
	g.GET("/:direction/worklist", h.Worklist)
	g.GET("/:direction/eligible/:counterpartyId", h.ListEligible)
	return g
}

// EngineConfig carries the settings NewEngine needs
type EngineConfig struct {
	Logger         *zap.Logger
	CORS           middleware.CORSConfig
	MaxBodySize    int64
	TrustedProxies []string
	Tracing        middleware.TracingConfig
}

// NewEngine creates a gin engine with the standard middleware chain
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(
		middleware.RequestID(),
		middleware.Tracing(cfg.Tracing),
		middleware.SpanEnricher(),
		logger.GinMiddleware(cfg.Logger),
		logger.Recovery(cfg.Logger),
		middleware.Secure(),
		middleware.CORSWithConfig(cfg.CORS),
		middleware.BodyLimit(cfg.MaxBodySize),
		middleware.Actor(),
	)
	return engine, nil
}

// Setup wires the health endpoint and the versioned API onto engine
func Setup(engine *gin.Engine, health *handler.HealthHandler, dispatch *handler.DispatchHandler) {
	engine.GET("/health", health.Health)
	NewRouter(engine).Register(DispatchRoutes(dispatch)).Setup()
}

// SetupDocs serves the Swagger UI and doc.json under /swagger.
// The document itself is registered by importing the docs package.
func SetupDocs(engine *gin.Engine, cfg middleware.SwaggerConfig) {
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(cfg),
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.DocExpansion("none")),
	)
}
