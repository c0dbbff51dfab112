// Package notify delivers progress messages to the operator. Delivery is
// best effort: a sink failure is logged locally, never retried and never
// surfaced to the booking loop.
package notify

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"
)

type Notifier interface {
	Publish(text string)
}

// Discard swallows every message; useful when no sink is configured.
type Discard struct{}

func (Discard) Publish(string) {}

// Multi fans one message out to every sink.
type Multi []Notifier

func (m Multi) Publish(text string) {
	for _, n := range m {
		n.Publish(text)
	}
}

// Webhook posts messages to a Discord-compatible webhook endpoint: a
// form-encoded content field carrying a local timestamp prefix.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook returns a webhook sink. The timeout bounds the whole POST so a
// slow endpoint can never stall a scan pass; zero means 10s.
func NewWebhook(webhookURL string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		url:    webhookURL,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *Webhook) Publish(text string) {
	msg := Stamp(text)
	log.Printf("[Notify] %s", msg)
	if w.url == "" {
		return
	}

	resp, err := w.client.PostForm(w.url, url.Values{"content": {msg}})
	if err != nil {
		log.Printf("[Notify] webhook post failed: %v", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("[Notify] webhook returned %s", resp.Status)
	}
}

// Stamp prefixes text with the local timestamp the wire format requires.
func Stamp(text string) string {
	return fmt.Sprintf("[%s] %s", time.Now().Format("2006-01-02 15:04:05"), text)
}
