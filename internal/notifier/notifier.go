// Package notifier delivers structured notification events to the outbound
// mail function. Delivery is fire-and-forget: enqueueing never blocks the
// caller, and a failed delivery is logged, not surfaced.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/halcyon-intra/portal-events-api/pkg/config"
)

// Message kinds understood by the sink.
const (
	KindRegistrationConfirmation = "registration_confirmation"
	KindEventReminder            = "event_reminder"
)

// OccurrencePayload is the slice of an occurrence the sink needs to compose
// a message.
type OccurrencePayload struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ResourceName string    `json:"resource_name"`
	StartAt      time.Time `json:"start_at"`
	EndAt        time.Time `json:"end_at"`
	DetailHTML   string    `json:"detail_html,omitempty"`
}

// AttendeePayload identifies the recipient.
type AttendeePayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Message is one structured notification event.
type Message struct {
	Kind       string            `json:"kind"`
	Occurrence OccurrencePayload `json:"occurrence"`
	Attendee   AttendeePayload   `json:"attendee"`
}

type job struct {
	msg     Message
	attempt int
}

// Dispatcher posts messages to the sink URL from a small worker pool with
// bounded buffering and per-message retries.
type Dispatcher struct {
	sinkURL    string
	client     *http.Client
	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	jobs    chan job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewDispatcher builds a dispatcher from config.
func NewDispatcher(cfg config.NotifierConfig, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = workers * 8
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Dispatcher{
		sinkURL:    cfg.SinkURL,
		client:     &http.Client{Timeout: timeout},
		workers:    workers,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
		jobs:       make(chan job, buffer),
	}
}

// Start begins worker consumption. Safe to call once.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.started = true
	d.logger.Sugar().Infow("notifier started", "workers", d.workers, "sink", d.sinkURL)
}

// Stop cancels workers and waits for them to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.cancel()
	d.mu.Unlock()
	d.wg.Wait()
	d.logger.Sugar().Infow("notifier stopped")
}

// Enqueue hands a message to the workers without blocking. When the buffer
// is saturated the message is dropped with a log line; the caller's work
// (e.g. a committed registration) is never held up or rolled back.
func (d *Dispatcher) Enqueue(msg Message) error {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()
	if !started {
		return fmt.Errorf("notifier not started")
	}

	select {
	case d.jobs <- job{msg: msg}:
		return nil
	default:
		d.logger.Warn("notifier buffer full, dropping message",
			zap.String("kind", msg.Kind),
			zap.String("occurrence_id", msg.Occurrence.ID),
		)
		return fmt.Errorf("notifier buffer full")
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case j := <-d.jobs:
			if err := d.deliver(j.msg); err != nil {
				d.handleFailure(j, err)
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(d.ctx, http.MethodPost, d.sinkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification sink returned %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) handleFailure(j job, err error) {
	j.attempt++
	if j.attempt > d.maxRetries {
		d.logger.Sugar().Errorw("notification exceeded retries",
			"kind", j.msg.Kind, "occurrence_id", j.msg.Occurrence.ID, "error", err)
		return
	}
	d.logger.Sugar().Warnw("notification failed, retrying",
		"kind", j.msg.Kind, "occurrence_id", j.msg.Occurrence.ID, "attempt", j.attempt, "error", err)

	go func(j job) {
		timer := time.NewTimer(d.retryDelay)
		defer timer.Stop()
		select {
		case <-d.ctx.Done():
			return
		case <-timer.C:
			select {
			case d.jobs <- j:
			default:
				d.logger.Warn("notifier buffer full, dropping retry", zap.String("kind", j.msg.Kind))
			}
		}
	}(j)
}
