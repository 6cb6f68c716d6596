// README: Outbound event abstraction; components publish, the notifier worker consumes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shuttle/internal/logger"
	"shuttle/internal/metrics"
)

const (
	SubjectOrderCreated     = "shuttle.order.created"
	SubjectCrewAssigned     = "shuttle.crew.assigned"
	SubjectCrewDeclined     = "shuttle.crew.declined"
	SubjectDiscountEligible = "shuttle.journey.discount_eligible"
	SubjectVehicleRemoved   = "shuttle.vehicle.removed"
	SubjectAll              = "shuttle.>"
)

// Envelope is the wire format on every subject.
type Envelope struct {
	ID         string          `json:"id"`
	Subject    string          `json:"subject"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

func NewEnvelope(subject string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", subject, err)
	}
	return Envelope{
		ID:         uuid.NewString(),
		Subject:    subject,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Fire publishes without letting a failure reach the caller. The failure is logged and counted.
func Fire(ctx context.Context, pub Publisher, subject string, payload any) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, subject, payload); err != nil {
		metrics.EventsPublished.WithLabelValues(subject, "error").Inc()
		logger.FromContext(ctx).Warn("event publish failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	metrics.EventsPublished.WithLabelValues(subject, "ok").Inc()
}

// Recorder keeps published envelopes in memory.
type Recorder struct {
	mu   sync.Mutex
	Err  error
	sent []Envelope
}

func (r *Recorder) Publish(_ context.Context, subject string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	env, err := NewEnvelope(subject, payload)
	if err != nil {
		return err
	}
	r.sent = append(r.sent, env)
	return nil
}

func (r *Recorder) Sent(subject string) []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Envelope
	for _, e := range r.sent {
		if subject == "" || e.Subject == subject {
			out = append(out, e)
		}
	}
	return out
}
