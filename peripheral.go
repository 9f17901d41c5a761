package peripheral

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Defaults applied to zero Config fields.
const (
	DefaultMaxStringLen = 64
	DefaultRxBufSize    = 64
)

var errRunning = errors.New("device already running")

// Config holds the sizes fixed at construction.
type Config struct {
	MaxStringLen  int    // longest accepted transmit string, excluding terminator
	RxBufSize     int    // receive buffer capacity
	InitialString string // transmitted until SetString is called
}

func (c *Config) applyDefaults() {
	if c.MaxStringLen == 0 {
		c.MaxStringLen = DefaultMaxStringLen
	}
	if c.RxBufSize == 0 {
		c.RxBufSize = DefaultRxBufSize
	}
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Device) {
		d.log = log
	}
}

// WithHandler registers a record handler at construction.
func WithHandler(h RecordHandler) Option {
	return func(d *Device) {
		d.initial = h
	}
}

// Stats combines receive and transmit counters.
type Stats struct {
	RxStats
	TxStats
}

// Device binds a Framer to a byte source and a Transmitter to a byte sink
// triggered by an edge source.
type Device struct {
	src  ByteSource
	sink ByteSink
	edge EdgeSource

	framer *Framer
	tx     *Transmitter

	log     zerolog.Logger
	initial RecordHandler
	running atomic.Bool
}

// New builds a Device. It fails with ErrNotReady if any transport is nil,
// and with ErrOutOfRange if cfg.InitialString is too long.
func New(src ByteSource, sink ByteSink, edge EdgeSource, cfg Config, opts ...Option) (*Device, error) {
	switch {
	case src == nil:
		return nil, fmt.Errorf("byte source: %w", ErrNotReady)
	case sink == nil:
		return nil, fmt.Errorf("byte sink: %w", ErrNotReady)
	case edge == nil:
		return nil, fmt.Errorf("edge source: %w", ErrNotReady)
	}
	cfg.applyDefaults()

	framer, err := NewFramer(cfg.RxBufSize)
	if err != nil {
		return nil, err
	}
	tx, err := NewTransmitter(cfg.MaxStringLen, cfg.InitialString)
	if err != nil {
		return nil, err
	}

	d := &Device{
		src:    src,
		sink:   sink,
		edge:   edge,
		framer: framer,
		tx:     tx,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.Configure(d.initial)

	d.log.Debug().
		Int("rx_buf_size", cfg.RxBufSize).
		Int("max_string_len", cfg.MaxStringLen).
		Msg("peripheral initialized")
	return d, nil
}

// Configure replaces the record handler. nil disables delivery.
func (d *Device) Configure(h RecordHandler) {
	if h == nil {
		d.framer.SetHandler(nil)
		return
	}
	d.framer.SetHandler(loggedHandler{h: h, log: d.log})
}

// SetString sets the string sent on the next trigger edge.
func (d *Device) SetString(text string) error {
	return d.tx.SetString(text)
}

// Stats returns the current counters.
func (d *Device) Stats() Stats {
	return Stats{RxStats: d.framer.Stats(), TxStats: d.tx.Stats()}
}

// Run serves the receive and trigger paths on two goroutines until ctx is
// cancelled or either path fails. It returns nil after cancellation of ctx.
func (d *Device) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errRunning
	}
	defer d.running.Store(false)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)
	go func() { errs <- d.receiveLoop(loopCtx) }()
	go func() { errs <- d.triggerLoop(loopCtx) }()

	err := <-errs
	cancel()
	<-errs

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

func (d *Device) receiveLoop(ctx context.Context) error {
	for {
		if err := d.src.WaitReadable(ctx); err != nil {
			return err
		}
		if _, err := d.framer.Drain(d.src); err != nil {
			return fmt.Errorf("receive: %w", err)
		}
	}
}

func (d *Device) triggerLoop(ctx context.Context) error {
	for {
		if err := d.edge.WaitEdge(ctx); err != nil {
			return err
		}
		d.log.Debug().Msg("transmitting string")
		if err := d.tx.Send(d.sink); err != nil {
			d.log.Error().Err(err).Msg("transmit failed")
			if errors.Is(err, ErrClosed) {
				return err
			}
		}
	}
}

type loggedHandler struct {
	h   RecordHandler
	log zerolog.Logger
}

func (l loggedHandler) HandleRecord(data []byte, complete bool) {
	if complete {
		l.log.Debug().Int("length", len(data)).Msg("record received")
	} else {
		l.log.Warn().Int("length", len(data)).Msg("receive buffer full, record truncated")
	}
	l.h.HandleRecord(data, complete)
}
