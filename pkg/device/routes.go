// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"fmt"

	"github.com/Thermoquad/powerstat/pkg/efpacket"
	"github.com/Thermoquad/powerstat/pkg/props"
	"github.com/Thermoquad/powerstat/pkg/rawdata"
)

// RouteKey selects payload decoders for an inbound frame
type RouteKey struct {
	Src    uint8
	CmdSet uint8
	CmdID  uint8
}

// KeyOf returns the routing key of a packet
func KeyOf(p *efpacket.Packet) RouteKey {
	src, cmdSet, cmdID := p.Route()
	return RouteKey{Src: src, CmdSet: cmdSet, CmdID: cmdID}
}

func (k RouteKey) String() string {
	return fmt.Sprintf("(0x%02X,0x%02X,0x%02X)", k.Src, k.CmdSet, k.CmdID)
}

// Routes maps routing keys to the decoders applied to matching payloads
type Routes map[RouteKey][]Decoder

// Decoder turns a payload into zero or more messages
type Decoder interface {
	Name() string
	Decode(payload []byte) ([]props.Message, error)
}

type recordDecoder struct{ schema *rawdata.Schema }

// Record decodes one record of schema
func Record(schema *rawdata.Schema) Decoder { return recordDecoder{schema} }

func (r recordDecoder) Name() string { return r.schema.Name() }

func (r recordDecoder) Decode(payload []byte) ([]props.Message, error) {
	rec, err := r.schema.Decode(payload)
	if err != nil {
		return nil, err
	}
	return []props.Message{rec}, nil
}

type listDecoder struct{ schema *rawdata.Schema }

// RecordList decodes up to two back-to-back records of schema
func RecordList(schema *rawdata.Schema) Decoder { return listDecoder{schema} }

func (l listDecoder) Name() string { return l.schema.Name() + "[]" }

func (l listDecoder) Decode(payload []byte) ([]props.Message, error) {
	recs, err := l.schema.DecodeList(payload)
	msgs := make([]props.Message, len(recs))
	for i, rec := range recs {
		msgs[i] = rec
	}
	return msgs, err
}

type compositeDecoder struct{ schema *rawdata.CompositeSchema }

// Composite decodes a header record with its repeated items
func Composite(schema *rawdata.CompositeSchema) Decoder { return compositeDecoder{schema} }

func (c compositeDecoder) Name() string { return c.schema.Name() }

func (c compositeDecoder) Decode(payload []byte) ([]props.Message, error) {
	rec, err := c.schema.Decode(payload)
	if err != nil {
		return nil, err
	}
	return []props.Message{rec}, nil
}

type funcDecoder struct {
	name string
	fn   func([]byte) ([]props.Message, error)
}

// DecoderFunc adapts a function, typically one that unpacks an externally
// defined message, to a Decoder
func DecoderFunc(name string, fn func([]byte) ([]props.Message, error)) Decoder {
	return funcDecoder{name: name, fn: fn}
}

func (f funcDecoder) Name() string { return f.name }

func (f funcDecoder) Decode(payload []byte) ([]props.Message, error) { return f.fn(payload) }
