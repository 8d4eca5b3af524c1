package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hamed0406/netdetective/internal/domain"
)

// publisher is the slice of *nats.Conn the sink needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes every alert as JSON on a single subject.
type NATS struct {
	conn    *nats.Conn
	pub     publisher
	subject string
}

func NewNATS(url, subject string) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("netdetective"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATS{conn: conn, pub: conn, subject: subject}, nil
}

type alertMessage struct {
	AlertID    int64            `json:"alert_id"`
	TargetID   domain.TargetID  `json:"target_id"`
	TargetName string           `json:"target_name"`
	URL        string           `json:"url"`
	Kind       domain.AlertKind `json:"kind"`
	Message    string           `json:"message"`
	Timestamp  time.Time        `json:"ts"`
}

func (n *NATS) Send(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(alertMessage{
		AlertID:    ev.Alert.ID,
		TargetID:   ev.Target.ID,
		TargetName: ev.Target.Name,
		URL:        ev.Target.URL,
		Kind:       ev.Alert.Kind,
		Message:    ev.Alert.Message,
		Timestamp:  ev.Alert.Timestamp.UTC(),
	})
	if err != nil {
		return fmt.Errorf("nats payload: %w", err)
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Close flushes pending messages before closing the connection.
func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}
	err := n.conn.Drain()
	n.conn.Close()
	return err
}
