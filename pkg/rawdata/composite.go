// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rawdata

import (
	"fmt"

	"github.com/Thermoquad/powerstat/pkg/props"
)

var (
	_ props.Source  = (*CompositeSchema)(nil)
	_ props.Message = (*CompositeRecord)(nil)
)

// CompositeSchema is a header record followed by a repeated item record.
// The item count is read from an unsigned header field.
type CompositeSchema struct {
	name       string
	header     *Schema
	countField string
	item       *Schema
}

// NewComposite declares a composite layout. It panics when countField is not
// an unsigned integer field of header.
func NewComposite(name string, header *Schema, countField string, item *Schema) *CompositeSchema {
	f, ok := header.Field(countField)
	if !ok {
		panic(fmt.Sprintf("rawdata: composite %s: header %s has no field %s", name, header.name, countField))
	}
	if !f.Kind.Unsigned() {
		panic(fmt.Sprintf("rawdata: composite %s: count field %s is %s", name, countField, f.Kind))
	}
	return &CompositeSchema{
		name:       name,
		header:     header,
		countField: countField,
		item:       item,
	}
}

func (c *CompositeSchema) Name() string { return c.name }

// HasField reports whether the header declares name
func (c *CompositeSchema) HasField(name string) bool { return c.header.HasField(name) }

func (c *CompositeSchema) Header() *Schema { return c.header }

func (c *CompositeSchema) Item() *Schema { return c.item }

// CountField returns the name of the header field holding the item count
func (c *CompositeSchema) CountField() string { return c.countField }

// CompositeRecord is a decoded header with its items
type CompositeRecord struct {
	schema   *CompositeSchema
	header   *Record
	items    []*Record
	declared int
}

// Decode unpacks the header, then as many items as the header declares.
// Items start right after the header's full width. Decoding stops early when
// the remaining bytes cannot hold an item's first field; extra bytes after
// the last item are ignored.
func (c *CompositeSchema) Decode(data []byte) (*CompositeRecord, error) {
	header, err := c.header.Decode(data)
	if err != nil {
		return nil, err
	}

	rec := &CompositeRecord{
		schema:   c,
		header:   header,
		declared: int(header.Value(c.countField).Uint()),
	}

	offset := c.header.width
	for i := 0; i < rec.declared && offset < len(data); i++ {
		item, err := c.item.Decode(data[offset:])
		if err != nil {
			break
		}
		rec.items = append(rec.items, item)
		offset += c.item.width
	}
	return rec, nil
}

// Source returns the composite schema as a property source
func (r *CompositeRecord) Source() props.Source { return r.schema }

// Field returns a header field
func (r *CompositeRecord) Field(name string) (any, bool) { return r.header.Field(name) }

func (r *CompositeRecord) Header() *Record { return r.header }

// Items returns the decoded items in wire order
func (r *CompositeRecord) Items() []*Record {
	return append([]*Record(nil), r.items...)
}

// Declared returns the item count announced by the header
func (r *CompositeRecord) Declared() int { return r.declared }

func (r *CompositeRecord) String() string {
	s := fmt.Sprintf("%s{%s", r.schema.name, r.header)
	for _, item := range r.items {
		s += ", " + item.String()
	}
	return s + "}"
}
