// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package efpacket

import (
	"bytes"
	"errors"
	"testing"
)

func streamFrames() []*Packet {
	return []*Packet{
		NewPacket(0x02, 0x21, 0x20, 0x02, []byte{1, 2, 3}),
		NewPacket(0x03, 0x21, 0x20, 0x32, []byte{0xAA, 0xAA, 0xAA}),
		NewPacket(0x05, 0x21, 0x20, 0x02, nil, WithVersion(Version2)),
	}
}

func TestStreamDecoder_WholeFrames(t *testing.T) {
	var stream []byte
	frames := streamFrames()
	for _, p := range frames {
		stream = append(stream, Encode(p)...)
	}

	d := NewStreamDecoder(false)
	packets, errs := d.Feed(stream)
	if len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}
	if len(packets) != len(frames) {
		t.Fatalf("Expected %d packets, got %d", len(frames), len(packets))
	}
	for i := range frames {
		if !packets[i].Equal(frames[i]) {
			t.Errorf("Packet %d mismatch", i)
		}
	}
	if d.Buffered() != 0 {
		t.Errorf("Expected empty buffer, got %d bytes", d.Buffered())
	}
}

func TestStreamDecoder_ByteAtATime(t *testing.T) {
	var stream []byte
	frames := streamFrames()
	for _, p := range frames {
		stream = append(stream, Encode(p)...)
	}

	d := NewStreamDecoder(false)
	var packets []*Packet
	for _, b := range stream {
		got, errs := d.Feed([]byte{b})
		if len(errs) != 0 {
			t.Fatalf("Unexpected errors: %v", errs)
		}
		packets = append(packets, got...)
	}
	if len(packets) != len(frames) {
		t.Fatalf("Expected %d packets, got %d", len(frames), len(packets))
	}
}

func TestStreamDecoder_Version19Trailer(t *testing.T) {
	frames := []*Packet{
		NewPacket(0x02, 0x21, 0x20, 0x02, []byte{1, 2, 3}, WithVersion(Version19)),
		NewPacket(0x03, 0x21, 0x20, 0x32, []byte{0xAA, 0x00}, WithVersion(Version19)),
		NewPacket(0x02, 0x21, 0x20, 0x02, []byte{4}, WithVersion(Version19)),
	}
	var stream []byte
	for _, p := range frames {
		stream = append(stream, Encode(p)...)
	}

	whole := NewStreamDecoder(false)
	packets, errs := whole.Feed(stream)
	if len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}
	if len(packets) != len(frames) {
		t.Fatalf("Expected %d packets, got %d", len(frames), len(packets))
	}
	for i := range frames {
		if !packets[i].Equal(frames[i]) {
			t.Errorf("Packet %d mismatch", i)
		}
	}
	if whole.Skipped() != 0 {
		t.Errorf("Expected 0 skipped bytes, got %d", whole.Skipped())
	}

	split := NewStreamDecoder(false)
	packets = packets[:0]
	for _, b := range stream {
		got, errs := split.Feed([]byte{b})
		if len(errs) != 0 {
			t.Fatalf("Unexpected errors: %v", errs)
		}
		packets = append(packets, got...)
	}
	if len(packets) != len(frames) {
		t.Fatalf("Expected %d packets byte at a time, got %d", len(frames), len(packets))
	}
	if split.Skipped() != 0 {
		t.Errorf("Expected 0 skipped bytes byte at a time, got %d", split.Skipped())
	}

	// Without the trailer the next frame follows directly
	bare := NewStreamDecoder(false)
	first := Encode(frames[0])
	stream = append(first[:len(first)-CRC16Size:len(first)-CRC16Size], Encode(frames[1])...)
	packets, _ = bare.Feed(stream)
	if len(packets) != 2 {
		t.Fatalf("Expected 2 packets without trailer, got %d", len(packets))
	}
	if bare.Skipped() != 0 {
		t.Errorf("Expected 0 skipped bytes without trailer, got %d", bare.Skipped())
	}
}

func TestStreamDecoder_SkipsGarbage(t *testing.T) {
	frame := Encode(NewPacket(0x02, 0x21, 0x20, 0x02, []byte{1}))
	stream := append([]byte{0x00, 0x13, 0x37}, frame...)

	d := NewStreamDecoder(false)
	packets, errs := d.Feed(stream)
	if len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}
	if len(packets) != 1 {
		t.Fatalf("Expected 1 packet, got %d", len(packets))
	}
	if d.Skipped() != 3 {
		t.Errorf("Expected 3 skipped bytes, got %d", d.Skipped())
	}
}

func TestStreamDecoder_RecoversAfterCorruptFrame(t *testing.T) {
	bad := Encode(NewPacket(0x02, 0x21, 0x20, 0x02, []byte{1, 2, 3}))
	bad[len(bad)-1] ^= 0xFF
	good := Encode(NewPacket(0x03, 0x21, 0x20, 0x32, []byte{4, 5}))

	d := NewStreamDecoder(false)
	packets, errs := d.Feed(append(bad, good...))
	if len(errs) != 1 {
		t.Fatalf("Expected 1 error, got %d: %v", len(errs), errs)
	}
	if !errors.Is(errs[0], ErrCRC16) {
		t.Errorf("Expected ErrCRC16, got %v", errs[0])
	}
	if len(packets) != 1 || !bytes.Equal(packets[0].Payload(), []byte{4, 5}) {
		t.Fatalf("Expected the good frame after the corrupt one, got %d packets", len(packets))
	}
}

func TestStreamDecoder_XOR(t *testing.T) {
	frame := Encode(NewPacket(0x02, 0x21, 0x20, 0x02, []byte{0x0F ^ 0x33}, WithSeq([4]byte{0x33})))

	d := NewStreamDecoder(true)
	packets, _ := d.Feed(frame)
	if len(packets) != 1 {
		t.Fatalf("Expected 1 packet, got %d", len(packets))
	}
	if packets[0].Payload()[0] != 0x0F {
		t.Errorf("Expected XOR-decoded payload 0x0F, got 0x%02X", packets[0].Payload()[0])
	}
}

func TestStreamDecoder_Reset(t *testing.T) {
	frame := Encode(NewPacket(0x02, 0x21, 0x20, 0x02, []byte{1, 2, 3}))

	d := NewStreamDecoder(false)
	d.Feed(frame[:10])
	if d.Buffered() != 10 {
		t.Fatalf("Expected 10 buffered bytes, got %d", d.Buffered())
	}
	d.Reset()
	if d.Buffered() != 0 || d.Skipped() != 0 {
		t.Errorf("Reset should clear buffer and counters")
	}
}
