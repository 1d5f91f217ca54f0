// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package props binds device properties to fields of decoded messages and
// tracks which properties changed during one processing cycle.
//
// A device model declares its bindings once, in a Registry, and owns a Props
// container built from it. Each incoming frame runs one cycle:
//
//	p.ResetUpdated()
//	p.UpdateFromData(msg) // once per decoded message
//	for _, name := range p.UpdatedFields() { ... }
package props

import (
	"fmt"
	"slices"
)

// Source is a message type that properties can bind to. Record schemas and
// MessageType both implement it.
type Source interface {
	Name() string
	HasField(name string) bool
}

// Message is one decoded instance of a Source
type Message interface {
	Source() Source
	// Field returns the named value and whether it is present
	Field(name string) (any, bool)
}

// MessageType declares the field set of messages decoded outside this
// module, such as protobuf heartbeats.
type MessageType struct {
	name   string
	fields []string
}

// NewMessageType declares a structured message type
func NewMessageType(name string, fields ...string) *MessageType {
	return &MessageType{name: name, fields: slices.Clone(fields)}
}

func (m *MessageType) Name() string { return m.name }

func (m *MessageType) HasField(name string) bool {
	return slices.Contains(m.fields, name)
}

// Fields returns the declared field names
func (m *MessageType) Fields() []string { return slices.Clone(m.fields) }

// Message wraps values as a message of this type
func (m *MessageType) Message(values map[string]any) StructMessage {
	return StructMessage{Type: m, Values: values}
}

// StructMessage is a message given as a name to value map. Missing or nil
// entries are absent.
type StructMessage struct {
	Type   *MessageType
	Values map[string]any
}

func (m StructMessage) Source() Source { return m.Type }

func (m StructMessage) Field(name string) (any, bool) {
	v, ok := m.Values[name]
	return v, ok && v != nil
}

type placeholder struct {
	source Source
	value  any
}

// Placeholder returns a message that is not a decoded record: every bound
// field of source receives value unchanged. A nil value clears them.
func Placeholder(source Source, value any) Message {
	return placeholder{source: source, value: value}
}

func (p placeholder) Source() Source { return p.source }

func (p placeholder) Field(string) (any, bool) { return p.value, p.value != nil }

func (p placeholder) String() string {
	return fmt.Sprintf("placeholder(%s=%v)", p.source.Name(), p.value)
}
