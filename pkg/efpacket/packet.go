// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package efpacket

import (
	"bytes"
	"time"
)

// Packet represents one protocol frame. Packets are immutable once built;
// accessors that return slices return copies.
type Packet struct {
	src       uint8
	dst       uint8
	cmdSet    uint8
	cmdID     uint8
	payload   []byte
	dsrc      uint8
	ddst      uint8
	version   uint8
	seq       [SeqSize]byte
	productID int
	timestamp time.Time
}

// PacketOption customises a Packet built with NewPacket.
type PacketOption func(*packetConfig)

type packetConfig struct {
	version   uint8
	dsrc      uint8
	ddst      uint8
	routeSet  bool
	seq       [SeqSize]byte
	productID int
}

// WithVersion sets the protocol version (default 3).
func WithVersion(version uint8) PacketOption {
	return func(c *packetConfig) {
		c.version = version
	}
}

// WithDeviceRoute sets the dsrc/ddst bytes carried by version 3+ frames.
// Version 2 frames have no room for them; EncodeChecked rejects a version 2
// packet with a device route and Encode drops it.
func WithDeviceRoute(dsrc, ddst uint8) PacketOption {
	return func(c *packetConfig) {
		c.dsrc = dsrc
		c.ddst = ddst
		c.routeSet = true
	}
}

// WithSeq sets the 4 sequence bytes. The first byte doubles as the payload
// XOR key on inbound frames.
func WithSeq(seq [SeqSize]byte) PacketOption {
	return func(c *packetConfig) {
		c.seq = seq
	}
}

// WithProductID sets the product id. Only the marker byte reaches the wire,
// so decoded frames carry 0 or -1; EncodeChecked rejects any other id.
func WithProductID(id int) PacketOption {
	return func(c *packetConfig) {
		c.productID = id
	}
}

// NewPacket creates a packet ready for encoding.
//
// Version 3+ frames default to dsrc=ddst=1. Version 2 frames have no room for
// those bytes and default to zero so that a decoded frame compares equal to the
// one that was encoded.
func NewPacket(src, dst, cmdSet, cmdID uint8, payload []byte, opts ...PacketOption) *Packet {
	cfg := packetConfig{version: DefaultVersion}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.routeSet && cfg.version >= Version3 {
		cfg.dsrc = DefaultDsrc
		cfg.ddst = DefaultDdst
	}

	return &Packet{
		src:       src,
		dst:       dst,
		cmdSet:    cmdSet,
		cmdID:     cmdID,
		payload:   bytes.Clone(payload),
		dsrc:      cfg.dsrc,
		ddst:      cfg.ddst,
		version:   cfg.version,
		seq:       cfg.seq,
		productID: cfg.productID,
		timestamp: time.Now(),
	}
}

// Src returns the source module address
func (p *Packet) Src() uint8 { return p.src }

// Dst returns the destination module address
func (p *Packet) Dst() uint8 { return p.dst }

// CmdSet returns the command set
func (p *Packet) CmdSet() uint8 { return p.cmdSet }

// CmdID returns the command id within the command set
func (p *Packet) CmdID() uint8 { return p.cmdID }

// Dsrc returns the device-level source (zero for version 2 frames)
func (p *Packet) Dsrc() uint8 { return p.dsrc }

// Ddst returns the device-level destination (zero for version 2 frames)
func (p *Packet) Ddst() uint8 { return p.ddst }

// Version returns the protocol version
func (p *Packet) Version() uint8 { return p.version }

// Seq returns the 4 sequence bytes
func (p *Packet) Seq() [SeqSize]byte { return p.seq }

// ProductID returns the product id. Decoded frames only carry its sign.
func (p *Packet) ProductID() int { return p.productID }

// Payload returns a copy of the (de-obfuscated) payload
func (p *Packet) Payload() []byte { return bytes.Clone(p.payload) }

// PayloadLen returns the payload length without copying it
func (p *Packet) PayloadLen() int { return len(p.payload) }

// Timestamp returns when the packet was decoded or built
func (p *Packet) Timestamp() time.Time { return p.timestamp }

// Route returns the routing key used to pick payload decoders
func (p *Packet) Route() (src, cmdSet, cmdID uint8) {
	return p.src, p.cmdSet, p.cmdID
}

// ProductByte returns the marker written at offset 5 for this packet
func (p *Packet) ProductByte() byte {
	if p.productID >= 0 {
		return ProductMarker
	}
	return ProductMarkerNegative
}

// Equal reports whether both packets carry the same wire fields.
// Timestamps are ignored.
func (p *Packet) Equal(o *Packet) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.src == o.src &&
		p.dst == o.dst &&
		p.cmdSet == o.cmdSet &&
		p.cmdID == o.cmdID &&
		p.dsrc == o.dsrc &&
		p.ddst == o.ddst &&
		p.version == o.version &&
		p.seq == o.seq &&
		p.productID == o.productID &&
		bytes.Equal(p.payload, o.payload)
}
