// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rawdata

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var schemaIDs atomic.Uint64

// Schema is an ordered list of fixed-width fields
type Schema struct {
	id      uint64
	name    string
	fields  []Field
	offsets []int
	index   map[string]int
	width   int
	parent  *Schema
}

// NewSchema declares a record layout. It panics on an empty field list,
// duplicate names, non-positive widths or a width that does not match a
// fixed-size kind, since schemas are declared at package init.
func NewSchema(name string, fields ...Field) *Schema {
	if len(fields) == 0 {
		panic(fmt.Sprintf("rawdata: schema %s has no fields", name))
	}

	s := &Schema{
		id:      schemaIDs.Add(1),
		name:    name,
		fields:  append([]Field(nil), fields...),
		offsets: make([]int, len(fields)),
		index:   make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Name == "" {
			panic(fmt.Sprintf("rawdata: schema %s field %d has no name", name, i))
		}
		if f.Width <= 0 {
			panic(fmt.Sprintf("rawdata: schema %s field %s has width %d", name, f.Name, f.Width))
		}
		if f.Kind != Bytes && f.Width != f.Kind.Size() {
			panic(fmt.Sprintf("rawdata: schema %s field %s is %s but %d bytes wide", name, f.Name, f.Kind, f.Width))
		}
		if _, dup := s.index[f.Name]; dup {
			panic(fmt.Sprintf("rawdata: schema %s declares %s twice", name, f.Name))
		}
		s.index[f.Name] = i
		s.offsets[i] = s.width
		s.width += f.Width
	}
	return s
}

// Extend declares a schema that carries every field of s followed by fields
func (s *Schema) Extend(name string, fields ...Field) *Schema {
	all := make([]Field, 0, len(s.fields)+len(fields))
	all = append(all, s.fields...)
	all = append(all, fields...)
	child := NewSchema(name, all...)
	child.parent = s
	return child
}

// Name returns the schema name
func (s *Schema) Name() string { return s.name }

// Width returns the full encoded width
func (s *Schema) Width() int { return s.width }

// Parent returns the schema this one extends, or nil
func (s *Schema) Parent() *Schema { return s.parent }

// Fields returns a copy of the field list
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// HasField reports whether the schema declares name
func (s *Schema) HasField(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Field returns the named field
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Offset returns the byte offset of the named field
func (s *Schema) Offset(name string) (int, bool) {
	i, ok := s.index[name]
	if !ok {
		return 0, false
	}
	return s.offsets[i], true
}

// IsA reports whether s is other or extends it
func (s *Schema) IsA(other *Schema) bool {
	for c := s; c != nil; c = c.parent {
		if c == other {
			return true
		}
	}
	return false
}

func (s *Schema) String() string {
	return fmt.Sprintf("%s(%d fields, %d bytes)", s.name, len(s.fields), s.width)
}

// ============================================================
// Truncation
// ============================================================

type fitKey struct {
	schema uint64
	length int
}

type fit struct {
	kept  int
	width int
}

// fitMemo caches the reduced layout for each short payload length seen
var fitMemo = struct {
	sync.Mutex
	m map[fitKey]fit
}{m: make(map[fitKey]fit)}

// fit returns how many leading fields fit in n bytes and their total width.
// kept is 0 when not even the first field fits.
func (s *Schema) fit(n int) (kept, width int) {
	if n >= s.width {
		return len(s.fields), s.width
	}

	key := fitKey{schema: s.id, length: n}
	fitMemo.Lock()
	defer fitMemo.Unlock()

	if f, ok := fitMemo.m[key]; ok {
		return f.kept, f.width
	}

	kept, width = len(s.fields), s.width
	for kept > 0 && width > n {
		kept--
		width -= s.fields[kept].Width
	}
	fitMemo.m[key] = fit{kept: kept, width: width}
	return kept, width
}

// Fit returns the fields that a payload of n bytes carries and their width
func (s *Schema) Fit(n int) ([]Field, int) {
	kept, width := s.fit(n)
	return append([]Field(nil), s.fields[:kept]...), width
}
