package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	catalogdomain "github.com/smallbiznis/karat/internal/catalog/domain"
	"github.com/smallbiznis/karat/internal/config"
	goldratedomain "github.com/smallbiznis/karat/internal/goldrate/domain"
	"github.com/smallbiznis/karat/internal/liveevents"
	makingchargedomain "github.com/smallbiznis/karat/internal/makingcharge/domain"
	"github.com/smallbiznis/karat/internal/observability"
	obsmiddleware "github.com/smallbiznis/karat/internal/observability/logger"
	obstracing "github.com/smallbiznis/karat/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/karat/internal/order/domain"
	"github.com/smallbiznis/karat/internal/pricing"
	"github.com/smallbiznis/karat/internal/ratelimit"
	"github.com/smallbiznis/karat/internal/variation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg)
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
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

// quoter is the display-price entry point; *pricing.Quoter satisfies it.
type quoter interface {
	Quote(ctx context.Context, productID snowflake.ID, selections variation.Selections) (*pricing.Quote, error)
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	rateSvc     goldratedomain.Service
	catalogSvc  catalogdomain.Service
	policySvc   makingchargedomain.Service
	quoter      quoter
	orderSvc    orderdomain.Service
	rateEvents  *liveevents.Hub
	limiter     rateLimiter
	streamPulse time.Duration
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	RateSvc    goldratedomain.Service
	CatalogSvc catalogdomain.Service
	PolicySvc  makingchargedomain.Service
	Quoter     *pricing.Quoter
	OrderSvc   orderdomain.Service
	RateEvents *liveevents.Hub    `optional:"true"`
	Limiter    *ratelimit.Limiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		rateSvc:     p.RateSvc,
		catalogSvc:  p.CatalogSvc,
		policySvc:   p.PolicySvc,
		quoter:      p.Quoter,
		orderSvc:    p.OrderSvc,
		rateEvents:  p.RateEvents,
		streamPulse: 15 * time.Second,
	}

	if p.Limiter != nil {
		svc.limiter = p.Limiter
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Gold rates --------
	api.GET("/rates", s.ListRates)
	api.GET("/rates/current", s.GetCurrentRate)
	api.GET("/rates/stream", s.StreamRateEvents)
	api.GET("/rates/:id", s.GetRateByID)

	// -------- Quotes --------
	api.POST("/products/:id/quote", s.RateLimit(ratelimit.ScopeQuote), s.QuoteProduct)

	// -------- Orders --------
	api.POST("/checkout", s.RateLimit(ratelimit.ScopeCheckout), s.Checkout)
	api.GET("/orders/:id", s.GetOrderByID)
	api.GET("/orders/:id/rate", s.GetOrderRate)
	api.GET("/orders/:id/receipt", s.GetOrderReceipt)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.POST("/rates", s.SetRate)
	admin.GET("/making-charges", s.ListMakingCharges)
	admin.PUT("/making-charges/:category", s.UpsertMakingCharge)
	admin.PATCH("/variations/:id", s.UpdateVariation)
}
