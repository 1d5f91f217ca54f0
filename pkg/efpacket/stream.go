// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package efpacket

import (
	"bytes"
	"encoding/binary"
)

// StreamDecoder reassembles frames from a byte stream, such as a serial or
// WebSocket bridge that forwards BLE notifications without boundaries.
type StreamDecoder struct {
	xor     bool
	buf     []byte
	skipped int

	// CRC16 that may follow a frame whose version carries none.
	// trailerPos == CRC16Size when nothing is pending.
	trailer    [CRC16Size]byte
	trailerPos int
}

// NewStreamDecoder creates a stream decoder. xor is passed to Decode.
func NewStreamDecoder(xor bool) *StreamDecoder {
	return &StreamDecoder{
		xor:        xor,
		buf:        make([]byte, 0, MaxFrameSize),
		trailerPos: CRC16Size,
	}
}

// Reset drops any buffered bytes and clears the skip counter
func (d *StreamDecoder) Reset() {
	d.buf = d.buf[:0]
	d.skipped = 0
	d.trailerPos = CRC16Size
}

// Skipped returns the number of bytes discarded while resynchronising
func (d *StreamDecoder) Skipped() int {
	return d.skipped
}

// Buffered returns the number of bytes waiting for the rest of a frame
func (d *StreamDecoder) Buffered() int {
	return len(d.buf)
}

// frameSize returns the full wire size announced by a frame header
func frameSize(header []byte) int {
	version := header[offsetVersion]
	size := payloadStart(version) + int(binary.LittleEndian.Uint16(header[offsetLength:]))
	if hasCRC16(version) {
		size += CRC16Size
	}
	return size
}

// Feed appends data to the stream and returns every frame it completes.
// Frames that fail validation are reported in errs and the decoder resyncs
// one byte past the failed frame start.
func (d *StreamDecoder) Feed(data []byte) (packets []*Packet, errs []error) {
	d.buf = append(d.buf, data...)
	pos := 0

	for pos < len(d.buf) {
		// Encode appends a CRC16 to every frame, including versions whose
		// length field does not cover it. Swallow it if it is there.
		for d.trailerPos < CRC16Size && pos < len(d.buf) {
			if d.buf[pos] != d.trailer[d.trailerPos] {
				d.trailerPos = CRC16Size
				break
			}
			pos++
			d.trailerPos++
		}
		if pos >= len(d.buf) {
			break
		}

		// Hunt for the next prefix
		i := bytes.IndexByte(d.buf[pos:], Prefix)
		if i < 0 {
			d.skipped += len(d.buf) - pos
			pos = len(d.buf)
			break
		}
		d.skipped += i
		pos += i

		rest := d.buf[pos:]
		if len(rest) <= offsetHeaderCRC {
			break
		}

		// A stray 0xAA inside a payload rarely carries a valid header CRC
		if CRC8(rest[:headerCRCSpan]) != rest[offsetHeaderCRC] {
			d.skipped++
			pos++
			continue
		}

		size := frameSize(rest)
		if size > MaxFrameSize {
			errs = append(errs, newDecodeError(CheckLength, MaxFrameSize, size, rest[:offsetHeaderCRC+1]))
			d.skipped++
			pos++
			continue
		}
		if len(rest) < size {
			break
		}

		p, err := Decode(rest[:size], d.xor)
		if err != nil {
			errs = append(errs, err)
			d.skipped++
			pos++
			continue
		}
		packets = append(packets, p)
		if !hasCRC16(p.version) {
			binary.LittleEndian.PutUint16(d.trailer[:], CRC16(rest[:size]))
			d.trailerPos = 0
		}
		pos += size
	}

	// Compact the buffer so it never grows past one partial frame
	n := copy(d.buf, d.buf[pos:])
	d.buf = d.buf[:n]
	if len(d.buf) > MaxFrameSize {
		d.skipped += len(d.buf)
		d.buf = d.buf[:0]
	}

	return packets, errs
}
