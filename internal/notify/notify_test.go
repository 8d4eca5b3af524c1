package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/multierr"

	"github.com/hamed0406/netdetective/internal/domain"
)

type countingNotifier struct {
	n   int
	err error
}

func (c *countingNotifier) Send(ctx context.Context, ev Event) error {
	c.n++
	return c.err
}

func TestMulti_SendsToAllAndCombinesErrors(t *testing.T) {
	a := &countingNotifier{err: errors.New("a down")}
	b := &countingNotifier{}
	c := &countingNotifier{err: errors.New("c down")}

	err := Multi{a, nil, b, c}.Send(context.Background(), sampleEvent())
	if a.n != 1 || b.n != 1 || c.n != 1 {
		t.Fatalf("every notifier should be called once: %d %d %d", a.n, b.n, c.n)
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("want 2 combined errors, got %d (%v)", got, err)
	}
}

func TestMulti_EmptyIsNil(t *testing.T) {
	if err := (Multi{}).Send(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.err
}

func TestNATS_PublishesJSON(t *testing.T) {
	fp := &fakePublisher{}
	n := &NATS{pub: fp, subject: "net_detective.alerts"}

	if err := n.Send(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if fp.subject != "net_detective.alerts" {
		t.Fatalf("subject = %q", fp.subject)
	}
	var msg alertMessage
	if err := json.Unmarshal(fp.data, &msg); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if msg.TargetID != 3 || msg.TargetName != "api" || msg.Kind != domain.AlertFailureStreak || msg.AlertID != 9 {
		t.Fatalf("payload wrong: %+v", msg)
	}
}

func TestNATS_PublishError(t *testing.T) {
	n := &NATS{pub: &fakePublisher{err: errors.New("no responders")}, subject: "x"}
	if err := n.Send(context.Background(), sampleEvent()); err == nil {
		t.Fatalf("expected publish error")
	}
	if err := (&NATS{}).Close(); err != nil {
		t.Fatalf("Close without conn: %v", err)
	}
}
