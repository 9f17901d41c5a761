package peripheral

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/sigurn/crc16"
)

// TallyCounts is a snapshot of a Tally.
type TallyCounts struct {
	Strings   int    // complete records
	Overflows int    // truncated records
	LastCRC   uint16 // CRC-16/MODBUS of the last record, sentinel included
}

// Tally is a RecordHandler that counts records and logs each one.
type Tally struct {
	log   zerolog.Logger
	table *crc16.Table

	mu     sync.Mutex
	counts TallyCounts
}

// NewTally returns a Tally logging to log.
func NewTally(log zerolog.Logger) *Tally {
	return &Tally{
		log:   log,
		table: crc16.MakeTable(crc16.CRC16_MODBUS),
	}
}

// HandleRecord implements RecordHandler.
func (t *Tally) HandleRecord(data []byte, complete bool) {
	crc := crc16.Checksum(data, t.table)

	t.mu.Lock()
	if complete {
		t.counts.Strings++
	} else {
		t.counts.Overflows++
	}
	t.counts.LastCRC = crc
	c := t.counts
	t.mu.Unlock()

	if complete {
		t.log.Info().
			Bytes("string", data[:len(data)-1]).
			Uint16("crc", crc).
			Int("strings", c.Strings).
			Int("overflows", c.Overflows).
			Msg("received string")
		return
	}
	t.log.Warn().
		Bytes("fragment", data).
		Uint16("crc", crc).
		Int("strings", c.Strings).
		Int("overflows", c.Overflows).
		Msg("buffer full, received fragment")
}

// Counts returns the current counts.
func (t *Tally) Counts() TallyCounts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts
}
