// README: Entry point; loads config, wires services and serves the HTTP API.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shuttle/internal/config"
	"shuttle/internal/events"
	httptransport "shuttle/internal/http"
	"shuttle/internal/infra"
	"shuttle/internal/logger"
	"shuttle/internal/modules/allocation"
	"shuttle/internal/modules/crew"
	"shuttle/internal/modules/horizon"
	"shuttle/internal/modules/journey"
	"shuttle/internal/modules/order"
	"shuttle/internal/modules/pricing"
	"shuttle/internal/modules/quote"
	"shuttle/internal/modules/rates"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	zl, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	logger.Init(zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifiers := map[infra.Scope]infra.TokenVerifier{}
	for scope, secret := range map[infra.Scope]string{
		infra.ScopeOperator: cfg.Operator.Secret,
		infra.ScopePayment:  cfg.Payment.Secret,
		infra.ScopeStaff:    cfg.Staff.Secret,
		infra.ScopeOrder:    cfg.Order.TokenSecret,
	} {
		v, err := infra.NewVerifier(secret, scope)
		if err != nil {
			zl.Fatal("token verifier", zap.String("scope", string(scope)), zap.Error(err))
		}
		verifiers[scope] = v
	}
	orderTokens, err := infra.NewOrderTokenIssuer(cfg.Order.TokenSecret, cfg.Order.TokenTTL)
	if err != nil {
		zl.Fatal("order token issuer", zap.Error(err))
	}
	authority, err := quote.NewAuthority(cfg.Quote.Secret, cfg.Quote.TTL, cfg.Quote.ToleranceCents)
	if err != nil {
		zl.Fatal("quote authority", zap.Error(err))
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}
	defer dbPool.Close()

	var rateCache rates.Cache
	if redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr); err != nil {
		zl.Warn("redis unavailable, rate cache disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		rateCache = rates.NewRedisCache(redisClient, cfg.Pricing.RateCacheTTL)
	}

	var pub events.Publisher
	if nc, err := infra.NewNATS(cfg.NATS.URL, "shuttle-api"); err != nil {
		zl.Warn("nats unavailable, events disabled", zap.Error(err))
	} else {
		defer nc.Close()
		pub = events.NewNATSPublisher(nc)
	}

	journeySvc := journey.NewService(journey.NewStore(dbPool),
		journey.NewProcedureEnsurer(dbPool), journey.NewQueryEnsurer(dbPool))
	rateSvc := rates.NewService(rates.NewStore(dbPool), rateCache)
	if cfg.Pricing.DefaultRateSet {
		rateSvc.WithDefault(rates.Rate{Tax: cfg.Pricing.DefaultTaxRate, Fees: cfg.Pricing.DefaultFeesRate})
	}

	horizonSvc := horizon.NewService(journeySvc, horizon.NewStore(dbPool), pub)
	pricingSvc := pricing.NewService(journeySvc, pricing.NewStore(dbPool), rateSvc, authority, cfg.Pricing).
		WithEvaluator(horizonSvc)
	orderSvc := order.NewService(order.NewStore(dbPool), authority, pub, cfg.Order.PaymentWindow)
	allocationSvc := allocation.NewService(allocation.NewStore(dbPool))
	crewSvc := crew.NewService(journeySvc, crew.NewStore(dbPool), pub, cfg.Crew)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Pricing:          pricingSvc,
		Orders:           orderSvc,
		Allocation:       allocationSvc,
		Horizon:          horizonSvc,
		Crew:             crewSvc,
		OperatorVerifier: verifiers[infra.ScopeOperator],
		PaymentVerifier:  verifiers[infra.ScopePayment],
		StaffVerifier:    verifiers[infra.ScopeStaff],
		OrderVerifier:    verifiers[infra.ScopeOrder],
		OrderTokens:      orderTokens,
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zl.Error("shutdown", zap.Error(err))
		}
	}()

	zl.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zl.Fatal("serve", zap.Error(err))
	}
}
