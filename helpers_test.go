package peripheral

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

type record struct {
	data     []byte
	complete bool
}

// recorder collects copies of delivered records.
type recorder struct {
	mu      sync.Mutex
	records []record
}

func (r *recorder) HandleRecord(data []byte, complete bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record{data: append([]byte(nil), data...), complete: complete})
}

func (r *recorder) all() []record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]record(nil), r.records...)
}

// sliceSource serves bytes from a slice, then ErrNoData.
type sliceSource struct {
	data []byte
	err  error
}

func (s *sliceSource) ReadByte() (byte, error) {
	if len(s.data) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		return 0, ErrNoData
	}
	b := s.data[0]
	s.data = s.data[1:]
	return b, nil
}

func (s *sliceSource) WaitReadable(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// bufSink collects written bytes.
type bufSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *bufSink) WriteByte(c byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.WriteByte(c)
}

func (s *bufSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *bufSink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf.Bytes()...)
}

var errSinkBroken = errors.New("sink broken")

// failSink accepts limit bytes, then fails.
type failSink struct {
	limit int
	got   []byte
}

func (s *failSink) WriteByte(c byte) error {
	if len(s.got) >= s.limit {
		return errSinkBroken
	}
	s.got = append(s.got, c)
	return nil
}

// pipeRW is an in-memory serial line: reads come from an io.Pipe fed by the
// test, writes land in a bufSink.
type pipeRW struct {
	r   *io.PipeReader
	out *bufSink
}

func (p *pipeRW) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeRW) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *pipeRW) Close() error                { return p.r.Close() }

func newPipePort(cfg StreamConfig) (*StreamPort, *io.PipeWriter, *bufSink) {
	r, w := io.Pipe()
	out := &bufSink{}
	return NewStreamPort(&pipeRW{r: r, out: out}, cfg), w, out
}
