// README: Notifier worker; consumes outbound events from NATS and hands e-mails to the mailer.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"shuttle/internal/config"
	"shuttle/internal/events"
	"shuttle/internal/infra"
	"shuttle/internal/logger"
	"shuttle/internal/notify"
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

	nc, err := infra.NewNATS(cfg.NATS.URL, "shuttle-notifier")
	if err != nil {
		zl.Fatal("nats", zap.Error(err))
	}
	defer nc.Close()

	handler := notify.NewHandler(notify.NewLogMailer(zl), cfg.Operator.Inbox)
	consumer := events.NewConsumer(nc, cfg.NATS.Queue, handler.Handle)
	if err := consumer.Run(ctx); err != nil {
		zl.Fatal("consumer", zap.Error(err))
	}
}
