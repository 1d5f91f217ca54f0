// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records raw frames to a file and plays them back.
//
// A capture file is a sequence of CBOR maps, one per frame, so it can be
// appended to and read back without an index.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Direction tells whether a frame was received or sent
type Direction uint8

const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "out"
	}
	return "in"
}

// Entry is one captured frame
type Entry struct {
	Time      time.Time `cbor:"1,keyasint"`
	Session   uuid.UUID `cbor:"2,keyasint"`
	Direction Direction `cbor:"3,keyasint"`
	Data      []byte    `cbor:"4,keyasint"`
}

var encMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Writer appends entries to a capture stream. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	enc     *cbor.Encoder
	closer  io.Closer
	session uuid.UUID
	count   int
}

// NewWriter starts a new capture session on w
func NewWriter(w io.Writer) *Writer {
	writer := &Writer{
		enc:     encMode.NewEncoder(w),
		session: uuid.New(),
	}
	if c, ok := w.(io.Closer); ok {
		writer.closer = c
	}
	return writer
}

// Create opens path for appending and starts a new capture session
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	return NewWriter(f), nil
}

// Session returns the id stamped on every entry of this writer
func (w *Writer) Session() uuid.UUID { return w.session }

// Count returns the number of entries written
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Write records one frame
func (w *Writer) Write(dir Direction, data []byte) error {
	return w.WriteAt(time.Now(), dir, data)
}

// WriteAt records one frame with an explicit timestamp
func (w *Writer) WriteAt(t time.Time, dir Direction, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.enc.Encode(Entry{
		Time:      t,
		Session:   w.session,
		Direction: dir,
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("failed to write capture entry: %w", err)
	}
	w.count++
	return nil
}

// Close closes the underlying file, if any
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// Reader iterates over the entries of a capture stream
type Reader struct {
	dec    *cbor.Decoder
	closer io.Closer
}

// NewReader reads entries from r
func NewReader(r io.Reader) *Reader {
	reader := &Reader{dec: cbor.NewDecoder(r)}
	if c, ok := r.(io.Closer); ok {
		reader.closer = c
	}
	return reader
}

// Open opens a capture file
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	return NewReader(f), nil
}

// Next returns the next entry, or io.EOF at the end of the stream
func (r *Reader) Next() (Entry, error) {
	var e Entry
	if err := r.dec.Decode(&e); err != nil {
		if errors.Is(err, io.EOF) {
			return Entry{}, io.EOF
		}
		return Entry{}, fmt.Errorf("failed to read capture entry: %w", err)
	}
	return e, nil
}

// Close closes the underlying file, if any
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// ReadAll reads every entry from r
func ReadAll(r io.Reader) ([]Entry, error) {
	reader := NewReader(r)
	var entries []Entry
	for {
		e, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
}
