package peripheral

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/atomic"
)

const defaultStreamBufSize = 1024

// StreamConfig tunes a StreamPort.
type StreamConfig struct {
	BufSize int // receive FIFO capacity, default 1024

	// IdleOnEOF treats a zero-length read returning io.EOF as a read
	// timeout rather than end of stream.
	IdleOnEOF bool
}

// StreamPort turns a blocking io.ReadWriteCloser into a Port. A background
// goroutine reads into a bounded FIFO; when the FIFO is full it stops
// reading until bytes are consumed.
type StreamPort struct {
	rw  io.ReadWriteCloser
	cfg StreamConfig

	mu   sync.Mutex
	fifo []byte
	head int
	size int
	err  error // terminal read error, set once

	readable chan struct{}
	space    chan struct{}
	failed   chan struct{}
	done     chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once

	writeMu sync.Mutex
	wbuf    [1]byte
}

// NewStreamPort wraps rw and starts reading from it.
func NewStreamPort(rw io.ReadWriteCloser, cfg StreamConfig) *StreamPort {
	if cfg.BufSize <= 0 {
		cfg.BufSize = defaultStreamBufSize
	}
	p := &StreamPort{
		rw:       rw,
		cfg:      cfg,
		fifo:     make([]byte, cfg.BufSize),
		readable: make(chan struct{}, 1),
		space:    make(chan struct{}, 1),
		failed:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.readLoop()
	return p
}

func (p *StreamPort) readLoop() {
	chunk := make([]byte, 256)
	for {
		n, err := p.rw.Read(chunk)
		if n > 0 && !p.push(chunk[:n]) {
			return
		}
		if err == nil || (n == 0 && p.cfg.IdleOnEOF && errors.Is(err, io.EOF)) {
			if p.closed.Load() {
				return
			}
			continue
		}
		if p.closed.Load() {
			err = ErrClosed
		}
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.failed)
		return
	}
}

// push appends data to the FIFO, waiting for space as needed. It returns
// false if the port was closed while waiting.
func (p *StreamPort) push(data []byte) bool {
	for len(data) > 0 {
		p.mu.Lock()
		for len(data) > 0 && p.size < len(p.fifo) {
			p.fifo[(p.head+p.size)%len(p.fifo)] = data[0]
			p.size++
			data = data[1:]
		}
		p.mu.Unlock()
		signal(p.readable)

		if len(data) == 0 {
			break
		}
		select {
		case <-p.space:
		case <-p.done:
			return false
		}
	}
	return true
}

// ReadByte pops one byte from the FIFO, or returns ErrNoData.
func (p *StreamPort) ReadByte() (byte, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	p.mu.Lock()
	if p.size == 0 {
		p.mu.Unlock()
		return 0, ErrNoData
	}
	b := p.fifo[p.head]
	p.head = (p.head + 1) % len(p.fifo)
	p.size--
	p.mu.Unlock()
	signal(p.space)
	return b, nil
}

// Buffered returns the number of bytes waiting in the FIFO.
func (p *StreamPort) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// WaitReadable blocks until the FIFO holds data, the stream fails, the port
// is closed or ctx is done. Bytes buffered before a failure are still
// reported readable.
func (p *StreamPort) WaitReadable(ctx context.Context) error {
	for {
		if p.closed.Load() {
			return ErrClosed
		}
		if p.Buffered() > 0 {
			return nil
		}
		select {
		case <-p.readable:
		case <-p.failed:
			if p.Buffered() > 0 {
				return nil
			}
			p.mu.Lock()
			defer p.mu.Unlock()
			return p.err
		case <-p.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WriteByte writes c to the underlying stream.
func (p *StreamPort) WriteByte(c byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.closed.Load() {
		return ErrClosed
	}
	p.wbuf[0] = c
	for {
		n, err := p.rw.Write(p.wbuf[:])
		if err != nil {
			return err
		}
		if n == 1 {
			return nil
		}
	}
}

// Close closes the underlying stream. Safe to call multiple times.
func (p *StreamPort) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.done)
		err = p.rw.Close()
	})
	return err
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
