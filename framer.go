package peripheral

import (
	"errors"
	"fmt"

	"go.uber.org/atomic"
)

// Sentinel terminates a record on the wire.
const Sentinel byte = 0x00

// RecordHandler consumes records assembled by a Framer.
//
// HandleRecord runs on the receive goroutine. data includes the trailing
// Sentinel when complete is true, and is only valid until HandleRecord
// returns. Implementations must not block.
type RecordHandler interface {
	HandleRecord(data []byte, complete bool)
}

// RecordHandlerFunc adapts a function to RecordHandler.
type RecordHandlerFunc func(data []byte, complete bool)

// HandleRecord calls f(data, complete).
func (f RecordHandlerFunc) HandleRecord(data []byte, complete bool) { f(data, complete) }

// RxStats counts receive side events.
type RxStats struct {
	Bytes     uint64 // bytes fed
	Complete  uint64 // records ended by Sentinel
	Truncated uint64 // records ended by a full buffer
	Discarded uint64 // records dropped because no handler was set
}

type handlerBox struct {
	h RecordHandler
}

// Framer accumulates bytes into a fixed buffer and cuts records on Sentinel
// or when the buffer fills up.
//
// Feed and Drain must be called from a single goroutine. SetHandler and
// Stats are safe to call concurrently with them.
type Framer struct {
	buf []byte
	n   int

	handler atomic.Pointer[handlerBox]

	bytes     atomic.Uint64
	complete  atomic.Uint64
	truncated atomic.Uint64
	discarded atomic.Uint64
}

// NewFramer returns a Framer with a receive buffer of size bytes.
func NewFramer(size int) (*Framer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("rx buffer size must be positive, got %d", size)
	}
	return &Framer{buf: make([]byte, size)}, nil
}

// SetHandler replaces the record handler. A nil handler disables delivery;
// records are still cut and the buffer is still reset.
func (f *Framer) SetHandler(h RecordHandler) {
	if h == nil {
		f.handler.Store(nil)
		return
	}
	f.handler.Store(&handlerBox{h: h})
}

// Feed appends one byte and delivers the record if it is now complete or
// the buffer is full.
func (f *Framer) Feed(b byte) {
	f.buf[f.n] = b
	f.n++
	f.bytes.Inc()

	switch {
	case b == Sentinel:
		f.complete.Inc()
		f.deliver(true)
	case f.n == len(f.buf):
		f.truncated.Inc()
		f.deliver(false)
	}
}

// Drain feeds every byte src has immediately available and returns how many
// were consumed.
func (f *Framer) Drain(src ByteSource) (int, error) {
	count := 0
	for {
		b, err := src.ReadByte()
		if errors.Is(err, ErrNoData) {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		f.Feed(b)
		count++
	}
}

// deliver hands the current record to the handler, then clears the buffer.
// The reset runs even if the handler panics.
func (f *Framer) deliver(complete bool) {
	defer f.reset()

	box := f.handler.Load()
	if box == nil {
		f.discarded.Inc()
		return
	}
	box.h.HandleRecord(f.buf[:f.n:f.n], complete)
}

func (f *Framer) reset() {
	clear(f.buf)
	f.n = 0
}

// Len returns the number of bytes buffered for the record in progress.
func (f *Framer) Len() int { return f.n }

// Cap returns the receive buffer size.
func (f *Framer) Cap() int { return len(f.buf) }

// Snapshot copies the whole receive buffer, including unused bytes.
func (f *Framer) Snapshot() []byte {
	return append([]byte(nil), f.buf...)
}

// Stats returns the receive counters.
func (f *Framer) Stats() RxStats {
	return RxStats{
		Bytes:     f.bytes.Load(),
		Complete:  f.complete.Load(),
		Truncated: f.truncated.Load(),
		Discarded: f.discarded.Load(),
	}
}
