// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rawdata

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/powerstat/pkg/props"
)

var (
	_ props.Source  = (*Schema)(nil)
	_ props.Message = (*Record)(nil)
)

// Record is one decoded instance of a schema. Every schema field has a
// Value; fields the payload did not carry are absent.
type Record struct {
	schema *Schema
	values []Value
	size   int
}

// Decode unpacks data against the schema. Payloads shorter than the full
// width lose fields from the tail; bytes past the full width are ignored.
func (s *Schema) Decode(data []byte) (*Record, error) {
	kept, width := s.fit(len(data))
	if kept == 0 {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrTooShort, s.name, s.fields[0].Width, len(data))
	}

	r := &Record{
		schema: s,
		values: make([]Value, len(s.fields)),
		size:   width,
	}
	for i, f := range s.fields {
		if i < kept {
			r.values[i] = unpack(f, data[s.offsets[i]:])
		} else {
			r.values[i] = Absent(f.Kind)
		}
	}
	return r, nil
}

// DecodeList decodes back-to-back records. The first record starts at 0;
// a second one is decoded at the full width when more than one full record
// remains. No more than two records are returned.
func (s *Schema) DecodeList(data []byte) ([]*Record, error) {
	first, err := s.Decode(data)
	if err != nil {
		return nil, err
	}
	records := []*Record{first}

	if len(data)-s.width > s.width {
		second, err := s.Decode(data[s.width:])
		if err != nil {
			return records, err
		}
		records = append(records, second)
	}
	return records, nil
}

// Schema returns the schema the record was decoded with
func (r *Record) Schema() *Schema { return r.schema }

// Source returns the schema as a property source
func (r *Record) Source() props.Source { return r.schema }

// Size returns the number of payload bytes consumed
func (r *Record) Size() int { return r.size }

// Truncated reports whether any field was dropped
func (r *Record) Truncated() bool { return r.size < r.schema.width }

// Value returns the named value; unknown names yield an absent value
func (r *Record) Value(name string) Value {
	i, ok := r.schema.index[name]
	if !ok {
		return Value{}
	}
	return r.values[i]
}

// Field returns the named value as a Go value and whether it is present
func (r *Record) Field(name string) (any, bool) {
	v := r.Value(name)
	return v.Any(), v.Present()
}

// Present reports whether the payload carried the named field
func (r *Record) Present(name string) bool {
	return r.Value(name).Present()
}

// Map returns every present field as a Go value
func (r *Record) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for i, f := range r.schema.fields {
		if r.values[i].Present() {
			m[f.Name] = r.values[i].Any()
		}
	}
	return m
}

func (r *Record) String() string {
	var sb strings.Builder
	sb.WriteString(r.schema.name)
	sb.WriteString("(")
	for i, f := range r.schema.fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Name)
		sb.WriteString("=")
		sb.WriteString(r.values[i].String())
	}
	sb.WriteString(")")
	return sb.String()
}
