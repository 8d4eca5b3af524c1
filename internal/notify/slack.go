package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hamed0406/netdetective/internal/domain"
)

// Slack posts alerts to an incoming webhook as a colored attachment.
type Slack struct {
	webhook string
	client  *http.Client
}

// NewSlack returns nil when no webhook is configured.
func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{webhook: webhook, client: &http.Client{Timeout: 10 * time.Second}}
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short,omitempty"`
}

type slackAttachment struct {
	Color    string       `json:"color"`
	Fallback string       `json:"fallback"`
	Fields   []slackField `json:"fields"`
	Ts       int64        `json:"ts"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

func slackColor(k domain.AlertKind) string {
	if k == domain.AlertLatencyThreshold {
		return "warning"
	}
	return "danger"
}

func newSlackMessage(ev Event) slackMessage {
	return slackMessage{
		Text: "*" + ev.Title() + "*\n" + ev.Text(),
		Attachments: []slackAttachment{{
			Color:    slackColor(ev.Alert.Kind),
			Fallback: ev.Title(),
			Fields: []slackField{
				{Title: "Target", Value: ev.Target.Name, Short: true},
				{Title: "Kind", Value: string(ev.Alert.Kind), Short: true},
				{Title: "URL", Value: ev.Target.URL},
				{Title: "Message", Value: ev.Alert.Message},
			},
			Ts: ev.Alert.Timestamp.Unix(),
		}},
	}
}

func (s *Slack) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(newSlackMessage(ev))
	if err != nil {
		return fmt.Errorf("slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
