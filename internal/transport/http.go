package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shopbridge/order-service/internal/config"
	"github.com/shopbridge/order-service/internal/handler"
	"github.com/shopbridge/order-service/internal/telemetry"
)

// Routes groups the handlers mounted by NewRouter.
type Routes struct {
	Orders    *handler.OrderHandler
	Customers *handler.CustomerHandler
}

func NewRouter(cfg *config.Config, metrics *telemetry.ServerMetrics, routes Routes) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(traceRequests(cfg.App.Name))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}).Handler)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if routes.Orders != nil {
		routes.Orders.RegisterRoutes(r)
	}
	if routes.Customers != nil {
		routes.Customers.RegisterRoutes(r)
	}

	return r
}

func NewServer(cfg config.AppConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
