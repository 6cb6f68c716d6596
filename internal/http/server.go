// README: API gateway; builds the gin engine and registers the routes.
package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shuttle/internal/http/handlers"
	"shuttle/internal/http/middleware"
	"shuttle/internal/infra"
)

type ServerDeps struct {
	Pricing    handlers.Quoter
	Orders     handlers.Orders
	Allocation handlers.Manifests
	Horizon    handlers.Horizons
	Crew       handlers.Crews
	// One verifier per caller: operators, the payment processor, crew leads and order holders.
	OperatorVerifier infra.TokenVerifier
	PaymentVerifier  infra.TokenVerifier
	StaffVerifier    infra.TokenVerifier
	OrderVerifier    infra.TokenVerifier
	OrderTokens      handlers.OrderTokens
	// AllowedOrigins feeds CORS for the booking wizard; empty allows any origin.
	AllowedOrigins []string
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	return &Server{deps: deps}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery(), cors.New(s.corsConfig()))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	quotes := handlers.NewQuoteHandler(s.deps.Pricing)
	orders := handlers.NewOrderHandler(s.deps.Orders, s.deps.OrderTokens)
	journeys := handlers.NewJourneyHandler(s.deps.Allocation, s.deps.Horizon)
	operator := handlers.NewOperatorHandler(s.deps.Horizon)
	crew := handlers.NewCrewHandler(s.deps.Crew)

	api := r.Group("/api")
	api.GET("/quotes", quotes.Quote)
	api.POST("/quotes", quotes.Quote)
	api.POST("/checkout", orders.Checkout)
	api.GET("/journeys/:id/horizon", journeys.Horizon)

	holder := api.Group("/", middleware.Auth(s.deps.OrderVerifier))
	holder.GET("/orders/:id", orders.Get)
	holder.POST("/orders/:id/cancel", orders.Cancel)

	payments := api.Group("/", middleware.Auth(s.deps.PaymentVerifier))
	payments.POST("/orders/:id/paid", orders.MarkPaid)
	payments.POST("/orders/:id/refund", orders.Refund)

	staff := api.Group("/", middleware.Auth(s.deps.StaffVerifier))
	staff.POST("/crew/assignments/:id/:action", crew.Act)

	op := api.Group("/", middleware.Auth(s.deps.OperatorVerifier))
	op.GET("/journeys/:id/manifest", journeys.Manifest)
	op.GET("/journeys/:id/manifest.pdf", journeys.ManifestPDF)
	op.POST("/journeys/:id/vehicles/:vehicle_id/commit", journeys.Commit)
	op.POST("/journeys/:id/crew/rotate", crew.Rotate)
	op.DELETE("/operator/journeys/:id/vehicles/:vehicle_id", operator.RemoveVehicle)
	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(s.deps.AllowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.deps.AllowedOrigins
	}
	return cfg
}
