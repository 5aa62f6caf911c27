package langfuse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultHost          = "https://cloud.langfuse.com"
	defaultFlushInterval = 5 * time.Second
	defaultQueueSize     = 512
	defaultBatchSize     = 64

	ingestionPath      = "/api/public/ingestion"
	ingestTimeout      = 10 * time.Second
	defaultTimeout     = 15 * time.Second
	deliveryRetryDelay = 250 * time.Millisecond
)

// Config holds the connection settings for the ingestion API
type Config struct {
	PublicKey     string
	SecretKey     string
	Host          string
	Enabled       bool
	FlushInterval time.Duration
	QueueSize     int
	BatchSize     int
}

// Client ships traces, generations and scores to the ingestion API.
// Events are queued without blocking the caller and delivered in batches
// by a background worker; when the queue is full events are dropped and
// counted rather than slowing the request path.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger

	events   chan ingestionEvent
	flushReq chan chan struct{}
	wg       sync.WaitGroup
	dropped  atomic.Int64

	enabled bool
	started bool
	mu      sync.Mutex
}

// NewClient creates a trace client. Missing keys or a disabled config
// produce an inert client whose record methods are no-ops.
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Host == "" {
		config.Host = defaultHost
	}
	config.Host = strings.TrimSuffix(config.Host, "/")
	if config.FlushInterval <= 0 {
		config.FlushInterval = defaultFlushInterval
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaultQueueSize
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}

	enabled := config.Enabled && config.PublicKey != "" && config.SecretKey != ""

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
		events:     make(chan ingestionEvent, config.QueueSize),
		flushReq:   make(chan chan struct{}),
		enabled:    enabled,
	}
}

// Enabled reports whether events will actually be delivered
func (c *Client) Enabled() bool {
	return c.enabled
}

// Dropped returns the number of events discarded because the queue was
// full or delivery failed
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

// Start launches the background delivery worker
func (c *Client) Start() error {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return fmt.Errorf("langfuse client already started")
	}

	c.wg.Add(1)
	go c.worker()
	c.started = true

	c.logger.Info("started trace client",
		zap.String("host", c.config.Host),
		zap.Duration("flush_interval", c.config.FlushInterval),
		zap.Int("queue_size", c.config.QueueSize),
		zap.Int("batch_size", c.config.BatchSize))

	return nil
}

// RecordTrace queues a trace event. A zero ID or timestamp is filled in.
func (c *Client) RecordTrace(trace Trace) {
	if !c.enabled {
		return
	}
	if trace.ID == "" {
		trace.ID = uuid.NewString()
	}
	if trace.Timestamp.IsZero() {
		trace.Timestamp = time.Now().UTC()
	}
	c.enqueue(eventTypeTrace, trace)
}

// RecordGeneration queues a generation event
func (c *Client) RecordGeneration(gen Generation) {
	if !c.enabled {
		return
	}
	if gen.ID == "" {
		gen.ID = uuid.NewString()
	}
	c.enqueue(eventTypeGeneration, gen)
}

// RecordScore queues a score event
func (c *Client) RecordScore(score Score) {
	if !c.enabled {
		return
	}
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	c.enqueue(eventTypeScore, score)
}

func (c *Client) enqueue(eventType string, body any) {
	event := ingestionEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Body:      body,
	}

	select {
	case c.events <- event:
	default:
		c.dropped.Add(1)
		c.logger.Warn("trace event queue full, dropping event",
			zap.String("type", eventType))
	}
}

// Flush delivers everything queued so far and waits for the delivery to
// complete or the context to expire
func (c *Client) Flush(ctx context.Context) error {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return fmt.Errorf("langfuse client not started")
	}

	ack := make(chan struct{})
	select {
	case c.flushReq <- ack:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker after delivering any remaining events. It waits
// until the worker exits or the context expires.
func (c *Client) Close(ctx context.Context) error {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.mu.Unlock()

	c.logger.Info("stopping trace client", zap.Int("pending_events", len(c.events)))

	close(c.events)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("trace client close timed out: %w", ctx.Err())
	}
}

// worker accumulates events and flushes them on batch size, interval, an
// explicit flush request, or shutdown.
func (c *Client) worker() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]ingestionEvent, 0, c.config.BatchSize)

	for {
		select {
		case event, ok := <-c.events:
			if !ok {
				c.deliver(batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= c.config.BatchSize {
				c.deliver(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				c.deliver(batch)
				batch = batch[:0]
			}

		case ack := <-c.flushReq:
		drain:
			for {
				select {
				case event, ok := <-c.events:
					if !ok {
						c.deliver(batch)
						close(ack)
						return
					}
					batch = append(batch, event)
				default:
					break drain
				}
			}
			c.deliver(batch)
			batch = batch[:0]
			close(ack)
		}
	}
}

// deliver posts one batch, retrying once before dropping it. Failures are
// counted and logged, never surfaced to the request path.
func (c *Client) deliver(batch []ingestionEvent) {
	if len(batch) == 0 {
		return
	}

	err := c.post(batch)
	if err != nil {
		time.Sleep(deliveryRetryDelay)
		err = c.post(batch)
	}
	if err != nil {
		c.dropped.Add(int64(len(batch)))
		c.logger.Warn("failed to deliver trace batch",
			zap.Int("events", len(batch)),
			zap.Error(err))
		return
	}

	c.logger.Debug("delivered trace batch", zap.Int("events", len(batch)))
}

func (c *Client) post(batch []ingestionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()
	return c.send(ctx, batch)
}

func (c *Client) send(ctx context.Context, batch []ingestionEvent) error {
	payload, err := json.Marshal(ingestionRequest{Batch: batch})
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.Host+ingestionPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.config.PublicKey, c.config.SecretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// The ingestion endpoint reports partial failures as 207.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ingestion returned status %d: %s", resp.StatusCode, body)
	}

	return nil
}
