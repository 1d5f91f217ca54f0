// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package efpacket

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// ============================================================
// CRC Tests
// ============================================================

func TestCRC8_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint8
	}{
		{"empty", []byte{}, 0x00},
		{"ASCII '123456789'", []byte("123456789"), 0xF4}, // CRC-8/SMBUS check value
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if crc := CRC8(tt.data); crc != tt.expected {
				t.Errorf("CRC8 mismatch: expected 0x%02X, got 0x%02X", tt.expected, crc)
			}
		})
	}
}

func TestCRC16_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{"empty", []byte{}, 0x0000},
		{"ASCII '123456789'", []byte("123456789"), 0xBB3D}, // CRC-16/ARC check value
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if crc := CRC16(tt.data); crc != tt.expected {
				t.Errorf("CRC16 mismatch: expected 0x%04X, got 0x%04X", tt.expected, crc)
			}
		})
	}
}

// ============================================================
// Encode Tests
// ============================================================

func TestEncode_HeaderLayout(t *testing.T) {
	p := NewPacket(0x21, 0x03, 0x20, 0x31, []byte{0x50},
		WithSeq([4]byte{0x11, 0x22, 0x33, 0x44}))
	data := Encode(p)

	if len(data) != PayloadStartV3+1+CRC16Size {
		t.Fatalf("Expected %d bytes, got %d", PayloadStartV3+1+CRC16Size, len(data))
	}
	if data[0] != Prefix {
		t.Errorf("Expected prefix 0xAA, got 0x%02X", data[0])
	}
	if data[1] != Version3 {
		t.Errorf("Expected version 3, got %d", data[1])
	}
	if data[2] != 0x01 || data[3] != 0x00 {
		t.Errorf("Expected little-endian length 1, got %02X %02X", data[2], data[3])
	}
	if data[4] != CRC8(data[:4]) {
		t.Errorf("Header CRC8 mismatch")
	}
	if data[5] != ProductMarker {
		t.Errorf("Expected product marker 0x0D, got 0x%02X", data[5])
	}
	if !bytes.Equal(data[6:10], []byte{0x11, 0x22, 0x33, 0x44}) {
		t.Errorf("Sequence mismatch: %X", data[6:10])
	}
	if data[10] != 0 || data[11] != 0 {
		t.Errorf("Reserved bytes must be zero")
	}
	want := []byte{0x21, 0x03, DefaultDsrc, DefaultDdst, 0x20, 0x31, 0x50}
	if !bytes.Equal(data[12:19], want) {
		t.Errorf("Routing mismatch: expected %X, got %X", want, data[12:19])
	}
	crc := uint16(data[len(data)-2]) | uint16(data[len(data)-1])<<8
	if crc != CRC16(data[:len(data)-2]) {
		t.Errorf("Trailing CRC16 mismatch")
	}
}

func TestEncode_Version2OmitsDeviceRoute(t *testing.T) {
	p := NewPacket(0x21, 0x05, 0x20, 0x42, []byte{0x01}, WithVersion(Version2))
	data := Encode(p)

	if len(data) != PayloadStartV2+1+CRC16Size {
		t.Fatalf("Expected %d bytes, got %d", PayloadStartV2+1+CRC16Size, len(data))
	}
	if data[14] != 0x20 || data[15] != 0x42 {
		t.Errorf("Expected cmdSet/cmdId at 14-15, got %02X %02X", data[14], data[15])
	}
	if data[16] != 0x01 {
		t.Errorf("Expected payload at 16, got %02X", data[16])
	}
}

func TestEncode_NegativeProductID(t *testing.T) {
	p := NewPacket(0x21, 0x03, 0x20, 0x31, nil, WithProductID(-7))
	data := Encode(p)
	if data[5] != ProductMarkerNegative {
		t.Errorf("Expected product marker 0x0C, got 0x%02X", data[5])
	}
}

func TestEncodeChecked_RejectsLossyPackets(t *testing.T) {
	tests := []struct {
		name string
		p    *Packet
	}{
		{"v2 device route", NewPacket(0x21, 0x05, 0x20, 0x51, nil,
			WithVersion(Version2), WithDeviceRoute(0x05, 0x01))},
		{"product id 7", NewPacket(0x21, 0x03, 0x20, 0x31, nil, WithProductID(7))},
		{"product id -7", NewPacket(0x21, 0x03, 0x20, 0x31, nil, WithProductID(-7))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeChecked(tt.p); err == nil {
				t.Error("Expected error")
			}
		})
	}

	// Zero device route on a v2 packet is what Decode produces
	p := NewPacket(0x21, 0x05, 0x20, 0x51, []byte{1}, WithVersion(Version2), WithDeviceRoute(0, 0))
	if _, err := EncodeChecked(p); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestEncodeChecked_RejectsOldVersion(t *testing.T) {
	p := NewPacket(0x21, 0x03, 0x20, 0x31, nil, WithVersion(1))
	if _, err := EncodeChecked(p); err == nil {
		t.Error("Expected error for version 1")
	}
}

// ============================================================
// Round Trip Tests
// ============================================================

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		p    *Packet
	}{
		{"v3 empty", NewPacket(0x02, 0x21, 0x20, 0x02, nil)},
		{"v3 payload", NewPacket(0x03, 0x21, 0x20, 0x32, []byte{1, 2, 3, 4, 5},
			WithSeq([4]byte{0, 9, 8, 7}))},
		{"v3 device route", NewPacket(0x35, 0x21, 0xFE, 0x15, []byte{0xAA, 0xBB},
			WithDeviceRoute(0x01, 0x01))},
		{"v2", NewPacket(0x21, 0x05, 0x20, 0x51, []byte{0x01}, WithVersion(Version2))},
		{"negative product", NewPacket(0x21, 0x03, 0x20, 0x33, []byte{0x0A},
			WithProductID(-1))},
		{"v19", NewPacket(0x02, 0x21, 0xFE, 0x11, []byte{0x10, 0x20}, WithVersion(Version19))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := Decode(Encode(tt.p), false)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !decoded.Equal(tt.p) {
				t.Errorf("Round trip mismatch:\nwant %s\ngot  %s", FormatPacket(tt.p), FormatPacket(decoded))
			}
		})
	}
}

// TestWireFrames decodes frames captured byte for byte and re-encodes them
func TestWireFrames(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		version   uint8
		src, dst  uint8
		dsrc      uint8
		ddst      uint8
		cmdSet    uint8
		cmdID     uint8
		seq       [SeqSize]byte
		productID int
		payload   []byte
	}{
		{
			name: "v2 pd heartbeat",
			data: []byte{
				0xAA, 0x02, 0x03, 0x00, 0x8A, 0x0D, 0x05, 0x00, 0x00, 0x01, 0x00, 0x00,
				0x02, 0x21, 0x20, 0x02, 0x01, 0x02, 0x03, 0x86, 0x4D,
			},
			version: Version2, src: 0x02, dst: 0x21, cmdSet: 0x20, cmdID: 0x02,
			seq: [SeqSize]byte{0x05, 0x00, 0x00, 0x01}, productID: 0,
			payload: []byte{0x01, 0x02, 0x03},
		},
		{
			name: "v3 bms heartbeat",
			data: []byte{
				0xAA, 0x03, 0x02, 0x00, 0xF4, 0x0C, 0x00, 0x00, 0x00, 0x2A, 0x00, 0x00,
				0x03, 0x21, 0x01, 0x01, 0x20, 0x32, 0x64, 0x00, 0xE8, 0xBD,
			},
			version: Version3, src: 0x03, dst: 0x21, dsrc: 0x01, ddst: 0x01, cmdSet: 0x20, cmdID: 0x32,
			seq: [SeqSize]byte{0x00, 0x00, 0x00, 0x2A}, productID: -1,
			payload: []byte{0x64, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode(tt.data, false)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if p.Version() != tt.version || p.Src() != tt.src || p.Dst() != tt.dst {
				t.Errorf("Header mismatch: v%d 0x%02X->0x%02X", p.Version(), p.Src(), p.Dst())
			}
			if p.Dsrc() != tt.dsrc || p.Ddst() != tt.ddst {
				t.Errorf("Device route mismatch: %d/%d", p.Dsrc(), p.Ddst())
			}
			if p.CmdSet() != tt.cmdSet || p.CmdID() != tt.cmdID {
				t.Errorf("Route mismatch: %s", FormatRoute(p.CmdSet(), p.CmdID()))
			}
			if p.Seq() != tt.seq {
				t.Errorf("Seq mismatch: % X", p.Seq())
			}
			if p.ProductID() != tt.productID {
				t.Errorf("Expected product id %d, got %d", tt.productID, p.ProductID())
			}
			if !bytes.Equal(p.Payload(), tt.payload) {
				t.Errorf("Payload mismatch: % X", p.Payload())
			}

			encoded, err := EncodeChecked(p)
			if err != nil {
				t.Fatalf("EncodeChecked failed: %v", err)
			}
			if !bytes.Equal(encoded, tt.data) {
				t.Errorf("Re-encoded frame differs:\nwant % X\ngot  % X", tt.data, encoded)
			}
		})
	}
}

// ============================================================
// Decode Error Tests
// ============================================================

func TestDecode_Errors(t *testing.T) {
	valid := Encode(NewPacket(0x02, 0x21, 0x20, 0x02, []byte{1, 2, 3}))

	badPrefix := bytes.Clone(valid)
	badPrefix[0] = 0xAB

	tooLong := append(bytes.Clone(valid), 0x00)

	badCRC16 := bytes.Clone(valid)
	badCRC16[len(badCRC16)-1] ^= 0xFF

	tests := []struct {
		name     string
		data     []byte
		sentinel error
		check    Check
	}{
		{"empty", nil, ErrTooShort, CheckSize},
		{"bad prefix", badPrefix, ErrBadPrefix, CheckPrefix},
		{"undersized v3", valid[:MinSizeV3-1], ErrTooShort, CheckSize},
		{"length mismatch", tooLong, ErrLengthMismatch, CheckLength},
		{"truncated payload", valid[:len(valid)-1], ErrLengthMismatch, CheckLength},
		{"crc16", badCRC16, ErrCRC16, CheckCRC16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode(tt.data, false)
			if err == nil {
				t.Fatalf("Expected error, got packet %v", p)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("Expected %v, got %v", tt.sentinel, err)
			}
			check, ok := CheckOf(err)
			if !ok || check != tt.check {
				t.Errorf("Expected check %v, got %v (ok=%v)", tt.check, check, ok)
			}
		})
	}
}

// A bad header CRC8 with an intact CRC16 isolates the CRC8 check.
func TestDecode_CRC8Mismatch(t *testing.T) {
	data := Encode(NewPacket(0x02, 0x21, 0x20, 0x02, []byte{1, 2, 3}))
	data[4] ^= 0x01
	body := data[:len(data)-2]
	crc := CRC16(body)
	data[len(data)-2] = byte(crc)
	data[len(data)-1] = byte(crc >> 8)

	_, err := Decode(data, false)
	if !errors.Is(err, ErrCRC8) {
		t.Fatalf("Expected ErrCRC8, got %v", err)
	}
}

func TestDecode_ErrorCarriesBytes(t *testing.T) {
	data := []byte{0x55, 0x01, 0x02}
	_, err := Decode(data, false)

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Expected *DecodeError, got %T", err)
	}
	if de.Hex() != "550102" {
		t.Errorf("Expected hex 550102, got %s", de.Hex())
	}
	if !strings.Contains(err.Error(), "550102") {
		t.Errorf("Error message should include offending bytes: %s", err.Error())
	}
}

func TestDecode_UnknownVersionMinimum(t *testing.T) {
	// Versions without CRC16 only need the header
	data := Encode(NewPacket(0x02, 0x21, 0xFE, 0x11, nil, WithVersion(Version19)))
	if _, err := Decode(data[:MinSizeOther], false); err != nil {
		t.Errorf("Expected %d-byte v19 frame to decode, got %v", MinSizeOther, err)
	}
	if _, err := Decode(data[:MinSizeOther-1], false); !errors.Is(err, ErrTooShort) {
		t.Errorf("Expected ErrTooShort, got %v", err)
	}
}

// ============================================================
// Checksum Sensitivity Tests
// ============================================================

func TestChecksumSensitivity_HeaderBits(t *testing.T) {
	data := Encode(NewPacket(0x02, 0x21, 0x20, 0x02, []byte{1, 2, 3, 4}))
	want := CRC8(data[:4])

	for i := 0; i < 4; i++ {
		for bit := 0; bit < 8; bit++ {
			mutated := bytes.Clone(data)
			mutated[i] ^= 1 << bit
			if CRC8(mutated[:4]) == want {
				t.Errorf("CRC8 unchanged after flipping byte %d bit %d", i, bit)
			}
			if _, err := Decode(mutated, false); err == nil {
				t.Errorf("Decode accepted frame with byte %d bit %d flipped", i, bit)
			}
		}
	}
}

func TestChecksumSensitivity_FrameBits(t *testing.T) {
	for _, version := range []uint8{Version2, Version3} {
		data := Encode(NewPacket(0x02, 0x21, 0x20, 0x02, []byte{1, 2, 3, 4}, WithVersion(version)))
		body := len(data) - CRC16Size
		want := CRC16(data[:body])

		for i := 0; i < body; i++ {
			for bit := 0; bit < 8; bit++ {
				mutated := bytes.Clone(data)
				mutated[i] ^= 1 << bit
				if CRC16(mutated[:body]) == want {
					t.Errorf("v%d: CRC16 unchanged after flipping byte %d bit %d", version, i, bit)
				}
				if _, err := Decode(mutated, false); err == nil {
					t.Errorf("v%d: Decode accepted frame with byte %d bit %d flipped", version, i, bit)
				}
			}
		}
	}
}

// ============================================================
// Payload Transform Tests
// ============================================================

func TestDecode_XOR(t *testing.T) {
	plain := []byte{0x00, 0x01, 0x7F, 0xFF}
	key := byte(0x05)
	obfuscated := make([]byte, len(plain))
	for i, b := range plain {
		obfuscated[i] = b ^ key
	}
	data := Encode(NewPacket(0x02, 0x21, 0x20, 0x02, obfuscated, WithSeq([4]byte{key, 1, 2, 3})))

	p, err := Decode(data, true)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(p.Payload(), plain) {
		t.Errorf("Expected %X, got %X", plain, p.Payload())
	}

	// Without the flag the payload is untouched
	p, err = Decode(data, false)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(p.Payload(), obfuscated) {
		t.Errorf("Expected %X, got %X", obfuscated, p.Payload())
	}
}

func TestDecode_XORZeroKey(t *testing.T) {
	payload := []byte{0x10, 0x20}
	data := Encode(NewPacket(0x02, 0x21, 0x20, 0x02, payload))
	p, err := Decode(data, true)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(p.Payload(), payload) {
		t.Errorf("Zero key must leave payload unchanged, got %X", p.Payload())
	}
}

func TestDecode_V19TrailerStripped(t *testing.T) {
	data := Encode(NewPacket(0x02, 0x21, 0xFE, 0x11, []byte{0x01, 0x02, 0xBB, 0xBB}, WithVersion(Version19)))
	p, err := Decode(data, false)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(p.Payload(), []byte{0x01, 0x02}) {
		t.Errorf("Expected trailer stripped, got %X", p.Payload())
	}
}

func TestDecode_V3KeepsBBTail(t *testing.T) {
	payload := []byte{0x01, 0xBB, 0xBB}
	p, err := Decode(Encode(NewPacket(0x02, 0x21, 0x20, 0x02, payload)), false)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(p.Payload(), payload) {
		t.Errorf("Only v19 strips the trailer, got %X", p.Payload())
	}
}

func TestPacket_PayloadIsCopied(t *testing.T) {
	payload := []byte{1, 2, 3}
	p := NewPacket(0x02, 0x21, 0x20, 0x02, payload)
	payload[0] = 9
	got := p.Payload()
	got[1] = 9
	if !bytes.Equal(p.Payload(), []byte{1, 2, 3}) {
		t.Errorf("Packet payload was mutated: %X", p.Payload())
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatPacket(t *testing.T) {
	p := NewPacket(0x02, 0x21, 0x20, 0x02, []byte{0xDE, 0xAD})
	out := FormatPacket(p)
	for _, want := range []string{"CMD(0x20,0x02)", "src=0x02", "dst=0x21", "len=2", "DE AD"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in %q", want, out)
		}
	}
}

func TestFormatCheck(t *testing.T) {
	for _, c := range Checks {
		if FormatCheck(c) == "UNKNOWN" {
			t.Errorf("Check %d has no name", c)
		}
	}
	if Check(99).String() != "UNKNOWN" {
		t.Error("Expected UNKNOWN for invalid check")
	}
}
