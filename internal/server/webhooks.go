package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"commline/internal/config"
	"commline/internal/engine"
	"commline/internal/events"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// webhookDispatcher feeds event-log entries to config-declared URLs. This is
// how an external screen subscribes to state changes instead of polling the
// collection.
type webhookDispatcher struct {
	engine   engine.Engine
	webhooks []config.WebhookConfig
	client   *http.Client
	mu       sync.Mutex
	cursors  map[int]int64
}

// StartWebhookDispatcher begins delivering events in the background. It is a
// no-op without configured webhooks.
func StartWebhookDispatcher(ctx context.Context, e engine.Engine) {
	if e.Config == nil || len(e.Config.Webhooks) == 0 {
		return
	}
	d := &webhookDispatcher{
		engine:   e,
		webhooks: e.Config.Webhooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		cursors:  map[int]int64{},
	}
	go d.run(ctx)
}

func (d *webhookDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.dispatchOnce(ctx)
		}
	}
}

func (d *webhookDispatcher) dispatchOnce(ctx context.Context) {
	for i, hook := range d.webhooks {
		d.mu.Lock()
		cursor := d.cursors[i]
		d.mu.Unlock()
		evts, err := d.engine.Events.Since(ctx, cursor, defaultWebhookBatch)
		if err != nil {
			log.Printf("webhook: read events: %v", err)
			continue
		}
		batch := filterEvents(evts, hook.Events)
		if len(batch) > 0 {
			if err := d.post(ctx, hook.URL, batch); err != nil {
				// Leave the cursor so delivery retries next tick.
				log.Printf("webhook: post %s: %v", hook.URL, err)
				continue
			}
		}
		if len(evts) > 0 {
			d.mu.Lock()
			d.cursors[i] = evts[len(evts)-1].ID
			d.mu.Unlock()
		}
	}
}

func filterEvents(evts []events.Event, types []string) []events.Event {
	if len(types) == 0 {
		return evts
	}
	var out []events.Event
	for _, e := range evts {
		for _, t := range types {
			if e.Type == t {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func (d *webhookDispatcher) post(ctx context.Context, url string, batch []events.Event) error {
	payload, err := json.Marshal(map[string]any{"events": batch})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return &webhookStatusError{status: res.StatusCode}
	}
	return nil
}

type webhookStatusError struct {
	status int
}

func (e *webhookStatusError) Error() string {
	return http.StatusText(e.status)
}
