package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	xerrors "DustMite-Agent/internal/errors"
)

func TestWebhookNotifier(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := &WebhookNotifier{URL: srv.URL, HTTPClient: srv.Client()}
	event := Event{
		Code:       xerrors.CodeExecutionFailure,
		Message:    "transfer failed",
		Severity:   xerrors.SeverityCritical,
		CycleID:    "cycle-7",
		OccurredAt: time.Unix(1700000000, 0).UTC(),
	}
	if err := notifier.Notify(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured["code"] != string(xerrors.CodeExecutionFailure) {
		t.Fatalf("unexpected code: %v", captured["code"])
	}
	if captured["cycle_id"] != "cycle-7" {
		t.Fatalf("unexpected cycle id: %v", captured["cycle_id"])
	}
}

func TestWebhookNotifierBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := &WebhookNotifier{URL: srv.URL, HTTPClient: srv.Client()}
	if err := notifier.Notify(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error for failing webhook")
	}
}

func TestFanoutDispatcher(t *testing.T) {
	var logged, hooked bool

	log := notifierFunc{channel: ChannelLog, fn: func(Event) error { logged = true; return nil }}
	hook := notifierFunc{channel: ChannelWebhook, fn: func(Event) error { hooked = true; return nil }}

	dispatcher := NewFanout(log, hook)
	if err := dispatcher.Notify(context.Background(), Event{Message: "m"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !logged || !hooked {
		t.Fatalf("expected both channels notified: log=%v webhook=%v", logged, hooked)
	}
}

type notifierFunc struct {
	channel Channel
	fn      func(Event) error
}

func (n notifierFunc) Channel() Channel                      { return n.channel }
func (n notifierFunc) Notify(_ context.Context, e Event) error { return n.fn(e) }
