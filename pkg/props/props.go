// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package props

import (
	"maps"
	"reflect"
	"slices"
)

// Props holds the current property values of one device and the names that
// changed in the current cycle. It is owned by a single device and is not
// safe for concurrent use.
type Props struct {
	reg     *Registry
	values  map[string]any
	extra   []string
	updated []string
	changed map[string]struct{}
}

// New creates an empty container for the registry's properties
func New(reg *Registry) *Props {
	return &Props{
		reg:     reg,
		values:  make(map[string]any),
		changed: make(map[string]struct{}),
	}
}

// Registry returns the bindings backing the container
func (p *Props) Registry() *Registry { return p.reg }

// UpdateFromData assigns every property bound to msg's source and returns
// how many descriptors were applied
func (p *Props) UpdateFromData(msg Message) int {
	descs := p.reg.bySource[msg.Source()]
	for _, d := range descs {
		v, present := msg.Field(d.Field)
		if !present {
			v = nil
		} else if d.Transform != nil {
			v = d.Transform(v)
		}
		p.assign(d.Property, v)
	}
	return len(descs)
}

// Set assigns a property directly. Names outside the registry are accepted
// for values a model computes itself.
func (p *Props) Set(name string, value any) {
	if !p.reg.Has(name) && !slices.Contains(p.extra, name) {
		p.extra = append(p.extra, name)
	}
	p.assign(name, value)
}

func (p *Props) assign(name string, value any) {
	old := p.values[name]
	if reflect.DeepEqual(old, value) {
		return
	}
	if value == nil {
		delete(p.values, name)
	} else {
		p.values[name] = value
	}
	if _, seen := p.changed[name]; !seen {
		p.changed[name] = struct{}{}
		p.updated = append(p.updated, name)
	}
}

// Get returns a property value and whether it is present
func (p *Props) Get(name string) (any, bool) {
	v, ok := p.values[name]
	return v, ok
}

// ResetUpdated clears the changed set
func (p *Props) ResetUpdated() {
	p.updated = p.updated[:0]
	clear(p.changed)
}

// UpdatedFields returns the properties changed since the last reset, in the
// order they first changed
func (p *Props) UpdatedFields() []string {
	return slices.Clone(p.updated)
}

// IsUpdated reports whether name changed since the last reset
func (p *Props) IsUpdated(name string) bool {
	_, ok := p.changed[name]
	return ok
}

// Names returns bound properties followed by directly set ones
func (p *Props) Names() []string {
	return append(p.reg.Names(), p.extra...)
}

// Snapshot returns a copy of every present value
func (p *Props) Snapshot() map[string]any {
	return maps.Clone(p.values)
}
