// README: One-shot horizon sweep meant for cron: T-72 adjustments, crew rotation, completion and unpaid expiry.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"shuttle/internal/config"
	"shuttle/internal/events"
	"shuttle/internal/infra"
	"shuttle/internal/logger"
	"shuttle/internal/modules/crew"
	"shuttle/internal/modules/horizon"
	"shuttle/internal/modules/journey"
	"shuttle/internal/modules/order"
	"shuttle/internal/modules/quote"
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

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}
	defer dbPool.Close()

	var pub events.Publisher
	if nc, err := infra.NewNATS(cfg.NATS.URL, "shuttle-sweep"); err != nil {
		zl.Warn("nats unavailable, events disabled", zap.Error(err))
	} else {
		defer nc.Close()
		pub = events.NewNATSPublisher(nc)
	}
	authority, err := quote.NewAuthority(cfg.Quote.Secret, cfg.Quote.TTL, cfg.Quote.ToleranceCents)
	if err != nil {
		zl.Fatal("quote authority", zap.Error(err))
	}

	journeySvc := journey.NewService(journey.NewStore(dbPool))
	horizonSvc := horizon.NewService(journeySvc, horizon.NewStore(dbPool), pub)
	crewSvc := crew.NewService(journeySvc, crew.NewStore(dbPool), pub, cfg.Crew)
	orderSvc := order.NewService(order.NewStore(dbPool), authority, pub, cfg.Order.PaymentWindow)

	if err := run(ctx, horizonSvc, crewSvc, orderSvc, cfg); err != nil {
		zl.Error("sweep finished with errors", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, hz *horizon.Service, cr *crew.Service, orders *order.Service, cfg config.Config) error {
	zl := logger.FromContext(ctx)
	var errs []error

	expired, err := orders.ExpireUnpaid(ctx)
	errs = append(errs, err)
	zl.Info("unpaid orders expired", zap.Int("count", expired))

	reports, err := hz.EvaluateConfirming(ctx)
	errs = append(errs, err)
	for _, r := range reports {
		zl.Info("horizon evaluated",
			zap.String("journey_id", string(r.JourneyID)),
			zap.Int("paid_demand", r.Demand),
			zap.Int("deactivated", len(r.Deactivated)),
			zap.String("relaxed", string(r.Relaxed)),
			zap.Bool("discount_eligible", r.DiscountEligible))
	}

	picks, err := cr.RotateUpcoming(ctx, cfg.Sweep.Lookahead)
	errs = append(errs, err)
	assigned := 0
	for _, p := range picks {
		if p.Outcome == crew.OutcomeAssigned {
			assigned++
		}
	}
	zl.Info("crew rotated", zap.Int("slots", len(picks)), zap.Int("assigned", assigned))

	completed, err := cr.CompleteDeparted(ctx)
	errs = append(errs, err)
	zl.Info("crew assignments completed", zap.Int("count", completed))

	return errors.Join(errs...)
}
