// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package measure

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is the on-disk form of a measurement
type Record struct {
	Timestamp int64   `cbor:"0,keyasint"` // unix nanoseconds
	Distance  float64 `cbor:"1,keyasint"`
	Quality   int     `cbor:"2,keyasint"`
	Session   string  `cbor:"3,keyasint,omitempty"`
}

// Measurement converts the record back to a Measurement
func (r Record) Measurement() Measurement {
	return Measurement{
		Timestamp: time.Unix(0, r.Timestamp),
		Distance:  r.Distance,
		Quality:   r.Quality,
	}
}

// Recorder appends measurements to w as a stream of CBOR records
type Recorder struct {
	mu      sync.Mutex
	enc     *cbor.Encoder
	session string
	count   int
}

// NewRecorder creates a recorder tagging every record with session
func NewRecorder(w io.Writer, session string) *Recorder {
	return &Recorder{enc: cbor.NewEncoder(w), session: session}
}

// Write appends one measurement
func (r *Recorder) Write(m Measurement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := Record{
		Timestamp: m.Timestamp.UnixNano(),
		Distance:  m.Distance,
		Quality:   m.Quality,
		Session:   r.session,
	}
	if err := r.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode measurement record: %w", err)
	}
	r.count++
	return nil
}

// Count returns how many records were written
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// ReadRecords decodes every record from r
func ReadRecords(r io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(r)
	var records []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("failed to decode record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
}
