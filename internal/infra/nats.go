// README: NATS connection used by the outbound event publisher and the notifier worker.
package infra

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

func NewNATS(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}
