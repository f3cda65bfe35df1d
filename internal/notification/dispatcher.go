package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"boxinator/pkg/platform/circuit"
)

const (
	defaultBufferSize    = 1024
	defaultBatchSize     = 50
	defaultFlushInterval = 500 * time.Millisecond
	shutdownFlushTimeout = 5 * time.Second
)

// Dispatcher queues messages in a bounded ring buffer and delivers them in
// batches from Run. Notify never blocks and never fails; when the buffer is
// full the oldest pending message is discarded.
type Dispatcher struct {
	mu    sync.Mutex
	buf   []Message
	head  int
	count int

	wake     chan struct{}
	primary  Sender
	fallback Sender
	breaker  *circuit.Breaker

	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	metrics       *Metrics
}

type Option func(*Dispatcher)

func WithBufferSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.buf = make([]Message, n)
		}
	}
}

func WithBatchSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

func WithFlushInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.flushInterval = interval
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithFallback replaces the LogSender used while the breaker is open.
func WithFallback(s Sender) Option {
	return func(d *Dispatcher) {
		d.fallback = s
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(d *Dispatcher) {
		d.breaker = b
	}
}

// NewDispatcher creates a dispatcher delivering to primary.
func NewDispatcher(primary Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		buf:           make([]Message, defaultBufferSize),
		wake:          make(chan struct{}, 1),
		primary:       primary,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.fallback == nil {
		d.fallback = NewLogSender(d.logger)
	}
	if d.breaker == nil {
		d.breaker = circuit.New("notification-sender",
			circuit.WithFailureThreshold(5),
			circuit.WithSuccessThreshold(2),
			circuit.WithProbeInterval(10*time.Second),
		)
	}
	return d
}

// Notify enqueues msg and returns immediately.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	d.mu.Lock()
	dropped := false
	if d.count == len(d.buf) {
		d.buf[d.head] = Message{}
		d.head = (d.head + 1) % len(d.buf)
		d.count--
		dropped = true
	}
	d.buf[(d.head+d.count)%len(d.buf)] = msg
	d.count++
	full := d.count >= d.batchSize
	d.mu.Unlock()

	d.metrics.incEnqueued()
	if dropped {
		d.metrics.incDropped()
		d.logger.WarnContext(ctx, "notification buffer full, dropped oldest message")
	}
	if full {
		select {
		case d.wake <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of buffered messages.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// Run delivers buffered messages until ctx is done, then flushes what is left.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
			d.Flush(flushCtx)
			cancel()
			return nil
		case <-ticker.C:
			d.Flush(ctx)
		case <-d.wake:
			d.Flush(ctx)
		}
	}
}

// Flush delivers everything currently buffered, one batch at a time. When ctx
// ends mid-batch the undelivered rest goes back to the front of the buffer.
func (d *Dispatcher) Flush(ctx context.Context) {
	for {
		batch := d.take(d.batchSize)
		if len(batch) == 0 {
			return
		}
		for i, msg := range batch {
			if ctx.Err() != nil {
				rest := batch[i:]
				dropped := d.requeue(rest)
				for range dropped {
					d.metrics.incDropped()
				}
				d.logger.WarnContext(ctx, "notification flush interrupted",
					"requeued", len(rest)-dropped,
					"dropped", dropped,
					"error", ctx.Err(),
				)
				return
			}
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) take(n int) []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n > d.count {
		n = d.count
	}
	batch := make([]Message, 0, n)
	for range n {
		batch = append(batch, d.buf[d.head])
		d.buf[d.head] = Message{}
		d.head = (d.head + 1) % len(d.buf)
		d.count--
	}
	return batch
}

// requeue puts msgs back ahead of everything buffered, keeping their order.
// Messages that no longer fit are the oldest and are discarded; the number
// discarded is returned.
func (d *Dispatcher) requeue(msgs []Message) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	dropped := 0
	if room := len(d.buf) - d.count; len(msgs) > room {
		dropped = len(msgs) - room
		msgs = msgs[dropped:]
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		d.head = (d.head - 1 + len(d.buf)) % len(d.buf)
		d.buf[d.head] = msgs[i]
		d.count++
	}
	return dropped
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	if d.primary != nil && d.breaker.Allow() {
		err := d.primary.Send(ctx, msg)
		if err == nil {
			_, change := d.breaker.RecordSuccess()
			if change.Closed {
				d.metrics.setBreakerOpen(false)
				d.logger.InfoContext(ctx, "notification sender recovered")
			}
			d.metrics.incDelivered("primary")
			return
		}
		d.metrics.incFailed("primary")
		_, change := d.breaker.RecordFailure()
		if change.Opened {
			d.metrics.setBreakerOpen(true)
			d.logger.WarnContext(ctx, "notification sender circuit opened")
		}
		d.logger.WarnContext(ctx, "notification send failed, using fallback",
			"template", msg.Template,
			"error", err,
		)
	}

	if err := d.fallback.Send(ctx, msg); err != nil {
		d.metrics.incFailed("fallback")
		d.logger.WarnContext(ctx, "notification fallback send failed",
			"template", msg.Template,
			"error", err,
		)
		return
	}
	d.metrics.incDelivered("fallback")
}
