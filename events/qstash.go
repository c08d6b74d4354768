package events

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/foodiespot-agent/booking"
	qstashx "github.com/tanpawarit/foodiespot-agent/pkg/qstash"
)

// Publisher is the part of the QStash client the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, destination string, body any, headers map[string]string) (*qstashx.PublishResponse, error)
}

// QStashNotifier forwards committed ledger events to a QStash destination.
type QStashNotifier struct {
	publisher   Publisher
	destination string
}

var _ booking.Notifier = (*QStashNotifier)(nil)

func NewQStashNotifier(publisher Publisher, destination string) (*QStashNotifier, error) {
	if publisher == nil {
		return nil, errors.New("qstash publisher is required")
	}
	if destination == "" {
		return nil, errors.New("qstash destination is required")
	}
	return &QStashNotifier{publisher: publisher, destination: destination}, nil
}

func (n *QStashNotifier) Notify(ctx context.Context, ev booking.Event) error {
	headers := map[string]string{
		"X-Event-Type":     string(ev.Type),
		"X-Reservation-Id": strconv.FormatInt(ev.Booking.ReservationID, 10),
	}
	resp, err := n.publisher.Publish(ctx, n.destination, ev, headers)
	if err != nil {
		return err
	}
	log.Debug().
		Str("event", string(ev.Type)).
		Int64("reservation_id", ev.Booking.ReservationID).
		Str("message_id", resp.MessageID).
		Msg("reservation event published")
	return nil
}
