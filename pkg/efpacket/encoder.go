// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package efpacket

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes a packet to wire format.
// The payload is written as-is; outbound frames are never obfuscated.
func Encode(p *Packet) []byte {
	data := make([]byte, 0, payloadStart(p.version)+len(p.payload)+CRC16Size)

	// Header
	data = append(data, Prefix, p.version)
	data = binary.LittleEndian.AppendUint16(data, uint16(len(p.payload)))
	data = append(data, CRC8(data[:headerCRCSpan]))

	data = append(data, p.ProductByte())
	data = append(data, p.seq[:]...)
	data = append(data, 0x00, 0x00)
	data = append(data, p.src, p.dst)

	// Version 3+ frames carry dsrc/ddst, version 2 frames do not
	if p.version >= Version3 {
		data = append(data, p.dsrc, p.ddst)
	}
	data = append(data, p.cmdSet, p.cmdID)

	data = append(data, p.payload...)
	data = binary.LittleEndian.AppendUint16(data, CRC16(data))

	return data
}

// Bytes returns the wire encoding of the packet
func (p *Packet) Bytes() []byte {
	return Encode(p)
}

// EncodeChecked encodes a packet after checking that it survives a decode
// unchanged: the payload fits the 16-bit length field, version 2 frames carry
// no dsrc/ddst and the product id is 0 or -1.
func EncodeChecked(p *Packet) ([]byte, error) {
	if len(p.payload) > 0xFFFF {
		return nil, fmt.Errorf("efpacket: payload too large: %d bytes (max %d)", len(p.payload), 0xFFFF)
	}
	if p.version < Version2 {
		return nil, fmt.Errorf("efpacket: cannot encode version %d frames", p.version)
	}
	if p.version == Version2 && (p.dsrc != 0 || p.ddst != 0) {
		return nil, fmt.Errorf("efpacket: version 2 frames have no dsrc/ddst (got %d/%d)", p.dsrc, p.ddst)
	}
	if p.productID != 0 && p.productID != -1 {
		return nil, fmt.Errorf("efpacket: product id %d does not fit the marker byte (use 0 or -1)", p.productID)
	}
	return Encode(p), nil
}
