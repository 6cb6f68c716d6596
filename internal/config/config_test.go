package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("SHUTTLE_QUOTE_SECRET", "")
	if _, err := Load(); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SHUTTLE_QUOTE_SECRET", "s3cret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Quote.TTL != 15*time.Minute {
		t.Errorf("quote ttl = %v, want 15m", cfg.Quote.TTL)
	}
	if cfg.Quote.ToleranceCents != 100 {
		t.Errorf("tolerance = %d, want 100", cfg.Quote.ToleranceCents)
	}
	if cfg.Crew.ConflictWindow != 90*time.Minute {
		t.Errorf("conflict window = %v, want 90m", cfg.Crew.ConflictWindow)
	}
	if cfg.Crew.HistoryWindow != 90*24*time.Hour {
		t.Errorf("history window = %v, want 90 days", cfg.Crew.HistoryWindow)
	}
	if cfg.Operator.Secret != "s3cret" {
		t.Errorf("operator secret should fall back to quote secret")
	}
}

func TestLoad_Override(t *testing.T) {
	t.Setenv("SHUTTLE_QUOTE_SECRET", "s3cret")
	t.Setenv("SHUTTLE_QUOTE_TTL", "5m")
	t.Setenv("SHUTTLE_CURRENCY", "CHF")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Quote.TTL != 5*time.Minute {
		t.Errorf("quote ttl = %v, want 5m", cfg.Quote.TTL)
	}
	if cfg.Pricing.Currency != "CHF" {
		t.Errorf("currency = %q, want CHF", cfg.Pricing.Currency)
	}
}

func TestLoad_CORSOrigins(t *testing.T) {
	t.Setenv("SHUTTLE_QUOTE_SECRET", "s3cret")
	t.Setenv("SHUTTLE_CORS_ORIGINS", "https://a.example.com, https://b.example.com,")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 || cfg.HTTP.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("origins = %v", cfg.HTTP.AllowedOrigins)
	}
	if cfg.Order.PaymentWindow != 30*time.Minute {
		t.Errorf("payment window = %v, want 30m", cfg.Order.PaymentWindow)
	}
}

func TestLoad_TokenSecretsFallBack(t *testing.T) {
	t.Setenv("SHUTTLE_QUOTE_SECRET", "s3cret")
	t.Setenv("SHUTTLE_PAYMENT_SECRET", "psp")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Payment.Secret != "psp" {
		t.Errorf("payment secret = %q", cfg.Payment.Secret)
	}
	if cfg.Staff.Secret != "s3cret" || cfg.Order.TokenSecret != "s3cret" {
		t.Errorf("staff and order secrets should fall back to the quote secret")
	}
	if cfg.Order.TokenTTL != 30*24*time.Hour {
		t.Errorf("order token ttl = %v", cfg.Order.TokenTTL)
	}
}

func TestLoad_DefaultRate(t *testing.T) {
	t.Setenv("SHUTTLE_QUOTE_SECRET", "s3cret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pricing.DefaultRateSet {
		t.Fatal("no default rate unless configured")
	}

	t.Setenv("SHUTTLE_DEFAULT_TAX_RATE", "0.13")
	t.Setenv("SHUTTLE_DEFAULT_FEES_RATE", "0.05")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Pricing.DefaultRateSet || cfg.Pricing.DefaultTaxRate != 0.13 || cfg.Pricing.DefaultFeesRate != 0.05 {
		t.Errorf("default rate = %+v", cfg.Pricing)
	}

	t.Setenv("SHUTTLE_DEFAULT_FEES_RATE", "-0.1")
	if _, err := Load(); !errors.Is(err, ErrNegativeRate) {
		t.Fatalf("expected ErrNegativeRate, got %v", err)
	}
}
