// Package publisher implements the agency-side inventory push: on a
// fixed interval the current ledger is snapshotted, tagged with the
// agency name and POSTed to the collector. Delivery is fire and
// forget: a failed cycle is simply replaced by the next one.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/config"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/ledger"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/metrics"
)

// Snapshot obtains the inventory records to publish
type Snapshot func(ctx context.Context) ([]ledger.Item, error)

// TaggedItem is the wire shape of one published record
type TaggedItem struct {
	ledger.Item
	Agency string `json:"agencia"`
}

// Publisher pushes inventory snapshots to the collector endpoint
type Publisher struct {
	agency   string
	endpoint string
	interval time.Duration
	snapshot Snapshot
	client   *http.Client
	stats    *metrics.Registry
}

// New builds a publisher from the agency configuration
func New(cfg config.AgencyConfig, snapshot Snapshot) *Publisher {
	interval := cfg.SyncInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{
		agency:   cfg.Name,
		endpoint: cfg.CollectorURL,
		interval: interval,
		snapshot: snapshot,
		client:   &http.Client{Timeout: timeout},
		stats:    metrics.NewRegistry(),
	}
}

// Stats exposes the push counters for the metrics endpoint
func (p *Publisher) Stats() *metrics.Registry {
	if p == nil {
		return nil
	}
	return p.stats
}

// Run schedules the periodic push until ctx is done, then shuts the
// scheduler down. The first push fires immediately.
func (p *Publisher) Run(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return errors.Wrap(err, "failed to create scheduler")
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(p.interval),
		gocron.NewTask(func() {
			// Detached from the run context: Shutdown waits for a
			// running job, so an in-flight push finishes instead of
			// being cancelled. The client timeout still bounds it.
			p.Publish(context.Background())
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return errors.Wrap(err, "failed to schedule inventory push")
	}

	log.Info().
		Str("agency", p.agency).
		Str("endpoint", p.endpoint).
		Dur("interval", p.interval).
		Msg("Starting inventory sync publisher")
	scheduler.Start()

	<-ctx.Done()
	return scheduler.Shutdown()
}

// Publish performs one push cycle. Every failure is swallowed: the
// next tick resends a fresh snapshot, so losing one cycle is fine.
func (p *Publisher) Publish(ctx context.Context) {
	p.stats.Inc(metrics.PublishCycles, 1)

	items, err := p.snapshot(ctx)
	if err != nil {
		p.stats.Inc(metrics.PublishFailures, 1)
		log.Debug().Err(err).Msg("inventory snapshot failed, skipping push cycle")
		return
	}

	tagged := make([]TaggedItem, 0, len(items))
	for _, item := range items {
		tagged = append(tagged, TaggedItem{Item: item, Agency: p.agency})
	}

	if err := p.post(ctx, tagged); err != nil {
		p.stats.Inc(metrics.PublishFailures, 1)
		log.Debug().Err(err).Msg("inventory push failed, retrying next cycle")
		return
	}
	p.stats.Inc(metrics.RecordsPublished, int64(len(tagged)))
	log.Debug().Int("items", len(tagged)).Msg("inventory snapshot pushed")
}

// PublishOne pushes a single mutated record, the per-change wire
// variant used by the matriz instance. Best effort like Publish.
func (p *Publisher) PublishOne(ctx context.Context, item ledger.Item) {
	if err := p.post(ctx, TaggedItem{Item: item, Agency: p.agency}); err != nil {
		p.stats.Inc(metrics.PublishFailures, 1)
		log.Debug().Err(err).Str("codigo", item.Code).Msg("single-record push failed")
		return
	}
	p.stats.Inc(metrics.RecordsPublished, 1)
}

func (p *Publisher) post(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal snapshot")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build push request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "push request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("collector responded %d", resp.StatusCode)
	}
	return nil
}
