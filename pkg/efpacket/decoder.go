// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package efpacket

import (
	"encoding/binary"
	"time"
)

// Decode parses one complete frame.
//
// When xor is set and the first sequence byte is non-zero, every payload byte
// is XORed with that byte to undo the device-side obfuscation. A rejected
// frame yields a *DecodeError wrapping one of the package sentinels.
func Decode(data []byte, xor bool) (*Packet, error) {
	if len(data) == 0 {
		return nil, newDecodeError(CheckSize, 1, 0, data)
	}
	if data[0] != Prefix {
		return nil, newDecodeError(CheckPrefix, Prefix, int(data[0]), data)
	}
	if len(data) < offsetVersion+1 {
		return nil, newDecodeError(CheckSize, offsetVersion+1, len(data), data)
	}

	version := data[offsetVersion]
	if need := minSize(version); len(data) < need {
		return nil, newDecodeError(CheckSize, need, len(data), data)
	}

	payloadLen := int(binary.LittleEndian.Uint16(data[offsetLength:]))
	start := payloadStart(version)

	// The declared length must match what is actually there before any
	// checksum is trusted.
	available := len(data) - start
	if hasCRC16(version) {
		available -= CRC16Size
		if available != payloadLen {
			return nil, newDecodeError(CheckLength, payloadLen, available, data)
		}
	} else if available < payloadLen {
		return nil, newDecodeError(CheckLength, payloadLen, available, data)
	}

	if hasCRC16(version) {
		body := data[:len(data)-CRC16Size]
		want := binary.LittleEndian.Uint16(data[len(data)-CRC16Size:])
		if got := CRC16(body); got != want {
			return nil, newDecodeError(CheckCRC16, int(want), int(got), data)
		}
	}

	if got := CRC8(data[:headerCRCSpan]); got != data[offsetHeaderCRC] {
		return nil, newDecodeError(CheckCRC8, int(data[offsetHeaderCRC]), int(got), data)
	}

	p := &Packet{
		version:   version,
		src:       data[offsetSrc],
		dst:       data[offsetDst],
		timestamp: time.Now(),
	}
	copy(p.seq[:], data[offsetSeq:offsetSeq+SeqSize])
	if data[offsetProduct] == ProductMarkerNegative {
		p.productID = -1
	}

	if version == Version2 {
		p.cmdSet = data[offsetRoute]
		p.cmdID = data[offsetRoute+1]
	} else {
		p.dsrc = data[offsetRoute]
		p.ddst = data[offsetRoute+1]
		p.cmdSet = data[offsetRoute+2]
		p.cmdID = data[offsetRoute+3]
	}

	payload := make([]byte, payloadLen)
	copy(payload, data[start:start+payloadLen])

	if xor && p.seq[0] != 0 {
		key := p.seq[0]
		for i := range payload {
			payload[i] ^= key
		}
	}

	if version == Version19 && len(payload) >= len(v19Trailer) &&
		payload[len(payload)-2] == v19Trailer[0] && payload[len(payload)-1] == v19Trailer[1] {
		payload = payload[:len(payload)-2]
	}

	p.payload = payload
	return p, nil
}
