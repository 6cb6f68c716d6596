// README: Turns outbound events into e-mails for the mailer collaborator.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shuttle/internal/events"
	"shuttle/internal/logger"
	"shuttle/internal/modules/crew"
	"shuttle/internal/modules/horizon"
	"shuttle/internal/modules/order"
	"shuttle/internal/types"
)

var ErrNoRecipient = errors.New("event has no recipient")

type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers one message. Delivery itself lives outside this service.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(l *zap.Logger) *LogMailer {
	return &LogMailer{log: l}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.log.Info("mail", zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.Int("body_len", len(msg.Body)))
	return nil
}

// Handler maps event subjects onto messages. Operator is the inbox for operator-facing notices.
type Handler struct {
	mailer   Mailer
	operator string
}

func NewHandler(mailer Mailer, operatorInbox string) *Handler {
	return &Handler{mailer: mailer, operator: operatorInbox}
}

// Handle has the events.Handler signature. Subjects without a template are ignored.
func (h *Handler) Handle(ctx context.Context, env events.Envelope) error {
	msg, ok, err := h.render(env)
	if err != nil {
		return fmt.Errorf("render %s: %w", env.Subject, err)
	}
	if !ok {
		logger.FromContext(ctx).Debug("no template for event", zap.String("subject", env.Subject))
		return nil
	}
	if msg.To == "" {
		return ErrNoRecipient
	}
	return h.mailer.Send(ctx, msg)
}

func (h *Handler) render(env events.Envelope) (Message, bool, error) {
	switch env.Subject {
	case events.SubjectOrderCreated:
		var p order.CreatedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Message{}, false, err
		}
		return Message{
			To:      p.LeadEmail,
			Subject: "Save the date: " + p.JourneyDate,
			Body: fmt.Sprintf("Hi %s,\n\nWe are holding %d seat(s) for you on %s (booking %s).\nAmount due: %s.\n",
				p.LeadName, p.Qty, p.JourneyDate, p.OrderID, formatMoney(types.Money{Amount: p.AmountCents, Currency: p.Currency})),
		}, true, nil
	case events.SubjectCrewAssigned:
		var p crew.InvitePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Message{}, false, err
		}
		return Message{
			To:      p.StaffEmail,
			Subject: "Crew lead invitation for " + p.Departure.Format(time.RFC1123),
			Body: fmt.Sprintf("Hi %s,\n\nYou have been picked as crew lead for vehicle %s departing %s.\nPlease confirm or decline assignment %s.\n",
				p.StaffName, p.VehicleID, p.Departure.Format(time.RFC1123), p.AssignmentID),
		}, true, nil
	case events.SubjectCrewDeclined:
		var p crew.InvitePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Message{}, false, err
		}
		return Message{
			To:      h.operator,
			Subject: "Crew lead declined",
			Body: fmt.Sprintf("Staff %s declined vehicle %s on journey %s. The slot is open for the next rotation.\n",
				p.StaffID, p.VehicleID, p.JourneyID),
		}, true, nil
	case events.SubjectVehicleRemoved:
		var p horizon.RemovedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Message{}, false, err
		}
		return Message{
			To:      h.operator,
			Subject: "Vehicle removed from journey",
			Body: fmt.Sprintf("Operator %s removed vehicle %s from journey %s (%d seats moved).\n",
				p.OperatorID, p.VehicleID, p.JourneyID, p.Seats),
		}, true, nil
	}
	return Message{}, false, nil
}

func formatMoney(m types.Money) string {
	return fmt.Sprintf("%d.%02d %s", m.Amount/100, m.Amount%100, m.Currency)
}
