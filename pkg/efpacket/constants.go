// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package efpacket implements the framed binary protocol spoken by portable
// power stations over their BLE link.
//
// A frame carries a small routing header (source, destination, command set,
// command id), a payload that may be XOR-obfuscated with the first sequence
// byte, a CRC8 over the first four header bytes and, for protocol versions 2
// and 3, a trailing CRC16 over the whole frame.
package efpacket

// Framing bytes
const (
	Prefix = 0xAA

	// ProductMarker is written at offset 5 for non-negative product ids,
	// ProductMarkerNegative for negative ones.
	ProductMarker         = 0x0D
	ProductMarkerNegative = 0x0C
)

// Protocol versions observed on the wire
const (
	Version2  = 0x02
	Version3  = 0x03
	Version19 = 0x13
)

// Header layout
const (
	offsetVersion   = 1
	offsetLength    = 2
	offsetHeaderCRC = 4
	offsetProduct   = 5
	offsetSeq       = 6
	offsetReserved  = 10
	offsetSrc       = 12
	offsetDst       = 13
	offsetRoute     = 14

	headerCRCSpan = 4
	SeqSize       = 4
	CRC16Size     = 2

	// PayloadStartV2 is where the payload begins for version 2 frames,
	// which carry no dsrc/ddst bytes.
	PayloadStartV2 = 16
	// PayloadStartV3 is where the payload begins for version 3 and later.
	PayloadStartV3 = 18
)

// Minimum frame sizes (header + CRC16, empty payload)
const (
	MinSizeV2 = PayloadStartV2 + CRC16Size
	MinSizeV3 = PayloadStartV3 + CRC16Size
	// MinSizeOther applies to versions without a trailing CRC16.
	MinSizeOther = PayloadStartV3
)

// MaxFrameSize bounds the stream decoder buffer. The length field is 16 bits
// wide, but devices never send payloads anywhere near that.
const MaxFrameSize = 4096

// v19Trailer is appended to version 19 payloads and stripped on decode.
var v19Trailer = [2]byte{0xBB, 0xBB}

// Default routing values used when building outbound frames
const (
	DefaultDsrc    = 0x01
	DefaultDdst    = 0x01
	DefaultVersion = Version3
)

// hasCRC16 reports whether frames of the given version end with a CRC16.
func hasCRC16(version byte) bool {
	return version == Version2 || version == Version3
}

// payloadStart returns the payload offset for the given version.
func payloadStart(version byte) int {
	if version == Version2 {
		return PayloadStartV2
	}
	return PayloadStartV3
}

// minSize returns the smallest acceptable frame for the given version.
func minSize(version byte) int {
	switch version {
	case Version2:
		return MinSizeV2
	case Version3:
		return MinSizeV3
	default:
		return MinSizeOther
	}
}
