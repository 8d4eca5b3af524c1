package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/netdetective/internal/domain"
)

// Event is one fired alert together with the target it belongs to.
type Event struct {
	Target domain.Target
	Alert  domain.Alert
}

// Title is a one-line summary used by chat sinks.
func (e Event) Title() string {
	icon := "🔴"
	if e.Alert.Kind == domain.AlertLatencyThreshold {
		icon = "🟠"
	}
	return fmt.Sprintf("%s %s: %s", icon, e.Alert.Kind, e.Target.Name)
}

// Text is the multi-line body used by chat sinks.
func (e Event) Text() string {
	return fmt.Sprintf("URL: %s\n%s\nAt: %s",
		e.Target.URL, e.Alert.Message, e.Alert.Timestamp.UTC().Format(time.RFC3339))
}

type Notifier interface {
	Send(ctx context.Context, ev Event) error
}

// Multi fans out to every notifier and reports all failures.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, ev Event) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, ev))
	}
	return err
}

// Nop discards every event.
type Nop struct{}

func (Nop) Send(context.Context, Event) error { return nil }
