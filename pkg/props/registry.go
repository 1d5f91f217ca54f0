// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package props

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownField      = errors.New("props: unknown field")
	ErrDuplicateProperty = errors.New("props: duplicate property")
	ErrNilSource         = errors.New("props: nil source")
)

// Descriptor binds one property to one field of a source
type Descriptor struct {
	Property  string
	Source    Source
	Field     string
	Transform Transform
}

// Bind declares a descriptor. Several transforms are applied in order.
func Bind(property string, source Source, field string, transforms ...Transform) Descriptor {
	d := Descriptor{Property: property, Source: source, Field: field}
	switch len(transforms) {
	case 0:
	case 1:
		d.Transform = transforms[0]
	default:
		d.Transform = Chain(transforms...)
	}
	return d
}

// Registry is a validated set of descriptors indexed by source
type Registry struct {
	descs    []Descriptor
	bySource map[Source][]Descriptor
	names    []string
}

// NewRegistry validates descs against their sources
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		descs:    make([]Descriptor, 0, len(descs)),
		bySource: make(map[Source][]Descriptor),
	}
	seen := make(map[string]bool, len(descs))

	for _, d := range descs {
		if d.Source == nil {
			return nil, fmt.Errorf("%w: property %s", ErrNilSource, d.Property)
		}
		if !d.Source.HasField(d.Field) {
			return nil, fmt.Errorf("%w: %s.%s (property %s)", ErrUnknownField, d.Source.Name(), d.Field, d.Property)
		}
		if seen[d.Property] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProperty, d.Property)
		}
		seen[d.Property] = true

		r.descs = append(r.descs, d)
		r.bySource[d.Source] = append(r.bySource[d.Source], d)
		r.names = append(r.names, d.Property)
	}
	return r, nil
}

// MustRegistry is NewRegistry for package-level declarations. It panics on
// an invalid descriptor so a broken model fails at startup.
func MustRegistry(descs ...Descriptor) *Registry {
	r, err := NewRegistry(descs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Descriptors returns the descriptors bound to source
func (r *Registry) Descriptors(source Source) []Descriptor {
	return append([]Descriptor(nil), r.bySource[source]...)
}

// Names returns every bound property in declaration order
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Sources returns the number of distinct sources with bindings
func (r *Registry) Sources() int {
	return len(r.bySource)
}

// Has reports whether property is bound
func (r *Registry) Has(property string) bool {
	for _, name := range r.names {
		if name == property {
			return true
		}
	}
	return false
}
