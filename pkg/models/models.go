// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package models declares the record layouts and device models of
// supported power stations.
package models

import (
	"fmt"
	"sort"

	"github.com/Thermoquad/powerstat/pkg/device"
	"github.com/Thermoquad/powerstat/pkg/props"
	"github.com/Thermoquad/powerstat/pkg/rawdata"
)

var all = []*device.Model{Delta2, Delta3Classic}

// All returns every known model
func All() []*device.Model {
	return append([]*device.Model(nil), all...)
}

// Lookup finds a model by name
func Lookup(name string) (*device.Model, error) {
	for _, m := range all {
		if m.Name == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("unknown model %q (known: %v)", name, Names())
}

// ForSerial finds the model a serial number belongs to
func ForSerial(sn string) (*device.Model, bool) {
	for _, m := range all {
		if m.Matches(sn) {
			return m, true
		}
	}
	return nil, false
}

// Names returns every model name
func Names() []string {
	names := make([]string, len(all))
	for i, m := range all {
		names[i] = m.Name
	}
	return names
}

// Setters returns the write commands of a model by name
func Setters(m *device.Model) map[string]device.Command {
	out := make(map[string]device.Command, len(m.Commands))
	for _, c := range m.Commands {
		out[c.Name] = c
	}
	return out
}

var decoders = map[string]device.Decoder{
	BasePdHeart.Name():                  device.Record(BasePdHeart),
	Mr330PdHeart.Name():                 device.Record(Mr330PdHeart),
	DirectEmsDeltaHeartbeatPack.Name():  device.Record(DirectEmsDeltaHeartbeatPack),
	DirectBmsMDeltaHeartbeatPack.Name(): device.Record(DirectBmsMDeltaHeartbeatPack),
	BaseMpptHeart.Name():                device.Record(BaseMpptHeart),
	Mr330MpptHeart.Name():               device.Record(Mr330MpptHeart),
	KitBaseInfo.Name():                  device.Record(KitBaseInfo),
	AllKitDetailData.Name():             device.Composite(AllKitDetailData),
}

var records = map[string]*rawdata.Schema{
	BasePdHeart.Name():                  BasePdHeart,
	Mr330PdHeart.Name():                 Mr330PdHeart,
	DirectEmsDeltaHeartbeatPack.Name():  DirectEmsDeltaHeartbeatPack,
	DirectBmsMDeltaHeartbeatPack.Name(): DirectBmsMDeltaHeartbeatPack,
	BaseMpptHeart.Name():                BaseMpptHeart,
	Mr330MpptHeart.Name():               Mr330MpptHeart,
	KitBaseInfo.Name():                  KitBaseInfo,
}

// RecordSchema returns a fixed-layout record schema by name. Composite
// layouts are not included.
func RecordSchema(name string) (*rawdata.Schema, bool) {
	s, ok := records[name]
	return s, ok
}

// Decoder returns the payload decoder for a schema name
func Decoder(schema string) (device.Decoder, bool) {
	d, ok := decoders[schema]
	return d, ok
}

// SchemaNames returns every schema name accepted by Decoder
func SchemaNames() []string {
	names := make([]string, 0, len(decoders))
	for name := range decoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodeRoute decodes a payload with every decoder routed to key
func DecodeRoute(m *device.Model, key device.RouteKey, payload []byte) ([]props.Message, error) {
	var msgs []props.Message
	for _, dec := range m.Routes[key] {
		out, err := dec.Decode(payload)
		msgs = append(msgs, out...)
		if err != nil {
			return msgs, fmt.Errorf("%s: %w", dec.Name(), err)
		}
	}
	return msgs, nil
}

// Fields flattens a decoded message into name/value pairs. Composite items
// are prefixed with their index.
func Fields(msg props.Message) []Field {
	switch m := msg.(type) {
	case *rawdata.Record:
		return recordFields("", m)
	case *rawdata.CompositeRecord:
		out := recordFields("", m.Header())
		for i, item := range m.Items() {
			out = append(out, recordFields(fmt.Sprintf("%s[%d].", item.Schema().Name(), i), item)...)
		}
		return out
	}
	return nil
}

// Field is one named value of a decoded message
type Field struct {
	Name    string `json:"name" yaml:"name"`
	Kind    string `json:"kind" yaml:"kind"`
	Value   any    `json:"value" yaml:"value"`
	Present bool   `json:"present" yaml:"present"`
}

func recordFields(prefix string, r *rawdata.Record) []Field {
	fields := r.Schema().Fields()
	out := make([]Field, len(fields))
	for i, f := range fields {
		v := r.Value(f.Name)
		out[i] = Field{Name: prefix + f.Name, Kind: f.Kind.String(), Value: v.Any(), Present: v.Present()}
		if f.Kind == rawdata.Bytes && v.Present() {
			out[i].Value = v.String()
		}
	}
	return out
}
