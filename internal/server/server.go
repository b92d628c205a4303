package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/shopdesk/internal/audit"
	auditdomain "github.com/smallbiznis/shopdesk/internal/audit/domain"
	"github.com/smallbiznis/shopdesk/internal/authorization"
	"github.com/smallbiznis/shopdesk/internal/config"
	"github.com/smallbiznis/shopdesk/internal/customer"
	customerdomain "github.com/smallbiznis/shopdesk/internal/customer/domain"
	"github.com/smallbiznis/shopdesk/internal/events"
	"github.com/smallbiznis/shopdesk/internal/observability"
	obsmiddleware "github.com/smallbiznis/shopdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/shopdesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/shopdesk/internal/observability/tracing"
	"github.com/smallbiznis/shopdesk/internal/ratelimit"
	"github.com/smallbiznis/shopdesk/internal/tax"
	"github.com/smallbiznis/shopdesk/internal/tax/calculator"
	taxdomain "github.com/smallbiznis/shopdesk/internal/tax/domain"
	"github.com/smallbiznis/shopdesk/internal/workorder"
	workorderdomain "github.com/smallbiznis/shopdesk/internal/workorder/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	ratelimit.Module,
	events.Module,
	tax.Module,
	customer.Module,
	workorder.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	authzSvc     authorization.Service
	taxSettings  taxdomain.Provider
	customerSvc  customerdomain.Service
	workOrderSvc workorderdomain.Service
	auditSvc     auditdomain.Service
	limiter      calculateLimiter
	obsMetrics   *obsmetrics.Metrics
	policy       calculator.ExemptionPolicy
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	AuthzSvc     authorization.Service
	TaxSettings  taxdomain.Provider
	CustomerSvc  customerdomain.Service
	WorkOrderSvc workorderdomain.Service
	AuditSvc     auditdomain.Service         `optional:"true"`
	RateLimiter  *ratelimit.CalculateLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics         `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		authzSvc:     p.AuthzSvc,
		taxSettings:  p.TaxSettings,
		customerSvc:  p.CustomerSvc,
		workOrderSvc: p.WorkOrderSvc,
		auditSvc:     p.AuditSvc,
		obsMetrics:   p.ObsMetrics,
		policy:       calculator.ExemptionPolicy(p.Cfg.Tax.ExemptionPolicy),
	}

	if p.RateLimiter.Enabled() {
		svc.limiter = p.RateLimiter
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(ShopContext())

	// -------- Tax --------
	api.GET("/tax/settings", s.authorizeShopAction(authorization.ObjectTaxSettings, authorization.ActionTaxSettingsView), s.GetTaxSettings)
	api.PATCH("/tax/settings", s.authorizeShopAction(authorization.ObjectTaxSettings, authorization.ActionTaxSettingsUpdate), s.UpdateTaxSettings)
	api.POST("/tax/settings/refresh", s.authorizeShopAction(authorization.ObjectTaxSettings, authorization.ActionTaxSettingsView), s.RefreshTaxSettings)
	api.POST("/tax/calculate", s.authorizeShopAction(authorization.ObjectTax, authorization.ActionTaxCalculate), s.rateLimitCalculate(), s.CalculateTax)

	// -------- Customers --------
	api.GET("/customers", s.authorizeShopAction(authorization.ObjectCustomer, authorization.ActionCustomerView), s.ListCustomers)
	api.POST("/customers", s.authorizeShopAction(authorization.ObjectCustomer, authorization.ActionCustomerCreate), s.CreateCustomer)
	api.GET("/customers/:id", s.authorizeShopAction(authorization.ObjectCustomer, authorization.ActionCustomerView), s.GetCustomerByID)
	api.PATCH("/customers/:id/tax-exemption", s.authorizeShopAction(authorization.ObjectCustomer, authorization.ActionCustomerUpdate), s.UpdateCustomerTaxExemption)

	// -------- Work orders --------
	view := s.authorizeShopAction(authorization.ObjectWorkOrder, authorization.ActionWorkOrderView)
	update := s.authorizeShopAction(authorization.ObjectWorkOrder, authorization.ActionWorkOrderUpdate)

	api.GET("/work-orders", view, s.ListWorkOrders)
	api.POST("/work-orders", s.authorizeShopAction(authorization.ObjectWorkOrder, authorization.ActionWorkOrderCreate), s.CreateWorkOrder)
	api.GET("/work-orders/:id", view, s.GetWorkOrder)
	api.POST("/work-orders/:id/status", update, s.UpdateWorkOrderStatus)
	api.GET("/work-orders/:id/totals", view, s.GetWorkOrderTotals)
	api.POST("/work-orders/:id/job-lines", update, s.AddJobLine)
	api.PATCH("/work-orders/:id/job-lines/:lineId", update, s.UpdateJobLine)
	api.DELETE("/work-orders/:id/job-lines/:lineId", update, s.RemoveJobLine)
	api.POST("/work-orders/:id/parts", update, s.AddPart)
	api.PATCH("/work-orders/:id/parts/:partId", update, s.UpdatePart)
	api.DELETE("/work-orders/:id/parts/:partId", update, s.RemovePart)

	// -------- Audit --------
	api.GET("/audit-logs", s.authorizeShopAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
