package peripheral

import (
	"bytes"
	"fmt"
	"sync"

	"go.uber.org/atomic"
)

// TxStats counts transmissions.
type TxStats struct {
	Sent   uint64
	Failed uint64
}

// Transmitter holds the string sent on each trigger edge.
//
// The string lives in fixed storage of maxLen+1 bytes, NUL terminated.
// Send copies it into a second fixed buffer under mu, so a concurrent
// SetString is never observed half written and the byte writes themselves
// run without holding mu.
type Transmitter struct {
	maxLen int

	mu  sync.Mutex
	str []byte

	sendMu sync.Mutex
	snap   []byte

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewTransmitter returns a Transmitter for strings of at most maxLen bytes,
// primed with initial.
func NewTransmitter(maxLen int, initial string) (*Transmitter, error) {
	if maxLen < 0 {
		return nil, fmt.Errorf("max string length must not be negative, got %d", maxLen)
	}
	t := &Transmitter{
		maxLen: maxLen,
		str:    make([]byte, maxLen+1),
		snap:   make([]byte, maxLen+1),
	}
	if err := t.SetString(initial); err != nil {
		return nil, fmt.Errorf("initial string: %w", err)
	}
	return t, nil
}

// SetString replaces the string to transmit. It fails with an error
// matching ErrOutOfRange if text is longer than the configured maximum,
// leaving the previous string in place.
func (t *Transmitter) SetString(text string) error {
	if len(text) > t.maxLen {
		return &OutOfRangeError{Length: len(text), Max: t.maxLen}
	}
	t.mu.Lock()
	n := copy(t.str, text)
	t.str[n] = Sentinel
	t.mu.Unlock()
	return nil
}

// String returns the current string up to its terminator.
func (t *Transmitter) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.str[:bytes.IndexByte(t.str, Sentinel)])
}

// MaxLen returns the longest string SetString accepts.
func (t *Transmitter) MaxLen() int { return t.maxLen }

// Send writes the current string up to its first NUL, then Sentinel, to
// sink one byte at a time. Concurrent calls are serialized. The first sink
// error ends the transmission.
func (t *Transmitter) Send(sink ByteSink) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	copy(t.snap, t.str)
	t.mu.Unlock()

	n := bytes.IndexByte(t.snap, Sentinel)
	for _, c := range t.snap[:n] {
		if err := sink.WriteByte(c); err != nil {
			t.failed.Inc()
			return fmt.Errorf("write byte: %w", err)
		}
	}
	if err := sink.WriteByte(Sentinel); err != nil {
		t.failed.Inc()
		return fmt.Errorf("write sentinel: %w", err)
	}
	t.sent.Inc()
	return nil
}

// Stats returns the transmit counters.
func (t *Transmitter) Stats() TxStats {
	return TxStats{Sent: t.sent.Load(), Failed: t.failed.Load()}
}
