package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Discord posts events to a Discord webhook as embeds.
type Discord struct {
	webhookURL string
	httpClient *http.Client
	log        *slog.Logger
}

var _ Notifier = (*Discord)(nil)

// NewDiscord creates a Discord notifier for the given webhook URL.
func NewDiscord(webhookURL string, log *slog.Logger) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log.With("module", "notify"),
	}
}

type discordEmbed struct {
	Title       string  `json:"title"`
	Color       int     `json:"color"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields"`
	Timestamp   string  `json:"timestamp"`
	Footer      struct {
		Text string `json:"text"`
	} `json:"footer"`
}

type discordMessage struct {
	Embeds []discordEmbed `json:"embeds"`
}

// Send posts one event. A delivery failure is returned for the caller to
// log; it must never abort the operation that produced the event.
func (d *Discord) Send(ctx context.Context, ev Event) error {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if ev.Color == 0 {
		ev.Color = ColorInfo
	}
	if ev.Footer == "" {
		ev.Footer = footerDefault
	}
	if ev.Fields == nil {
		ev.Fields = []Field{}
	}

	embed := discordEmbed{
		Title:       ev.Title,
		Color:       ev.Color,
		Description: ev.Description,
		Fields:      ev.Fields,
		Timestamp:   ts.UTC().Format(time.RFC3339),
	}
	embed.Footer.Text = ev.Footer

	payload, err := json.Marshal(discordMessage{Embeds: []discordEmbed{embed}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	d.log.Debug("notification sent", "title", ev.Title)
	return nil
}
