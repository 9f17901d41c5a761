package peripheral

import "context"

// ByteSource delivers received bytes one at a time.
//
// WaitReadable blocks until at least one byte can be read, the source is
// closed (ErrClosed) or ctx is done. ReadByte returns ErrNoData when nothing
// is immediately available.
type ByteSource interface {
	ReadByte() (byte, error)
	WaitReadable(ctx context.Context) error
}

// ByteSink accepts bytes one at a time. WriteByte blocks until the byte is
// accepted.
type ByteSink interface {
	WriteByte(c byte) error
}

// Port is a full-duplex serial transport.
type Port interface {
	ByteSource
	ByteSink
	Close() error
}

// EdgeSource reports qualifying edges of an external trigger input.
// Debouncing is the source's job. WaitEdge returns nil once per edge.
type EdgeSource interface {
	WaitEdge(ctx context.Context) error
}
