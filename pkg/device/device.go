// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package device runs the per-frame processing cycle of a device model:
// reset the changed set, route the frame, decode its payload, update the
// bound properties and notify listeners.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Thermoquad/powerstat/pkg/efpacket"
	"github.com/Thermoquad/powerstat/pkg/props"
)

// Sender transmits outbound frames
type Sender interface {
	SendPacket(ctx context.Context, p *efpacket.Packet) error
}

// Device is one connected device. It is driven from a single goroutine.
type Device struct {
	model     *Model
	props     *props.Props
	logger    *slog.Logger
	sender    Sender
	observers []Observer
	onUpdate  func(name string)
	onState   func(name string, value any)
	xor       bool
}

// Option configures a Device
type Option func(*Device)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(d *Device) {
		d.logger = logger
	}
}

// WithSender sets the transport used by Send
func WithSender(s Sender) Option {
	return func(d *Device) {
		d.sender = s
	}
}

// WithObserver adds a diagnostics observer
func WithObserver(o Observer) Option {
	return func(d *Device) {
		d.observers = append(d.observers, o)
	}
}

// WithUpdateCallback is called with each changed property name
func WithUpdateCallback(fn func(name string)) Option {
	return func(d *Device) {
		d.onUpdate = fn
	}
}

// WithStateCallback is called with each changed property and its new value
func WithStateCallback(fn func(name string, value any)) Option {
	return func(d *Device) {
		d.onState = fn
	}
}

// WithXOR overrides the model's payload XOR setting
func WithXOR(enabled bool) Option {
	return func(d *Device) {
		d.xor = enabled
	}
}

// New creates a device for model
func New(model *Model, opts ...Option) *Device {
	d := &Device{
		model:  model,
		props:  props.New(model.Registry),
		logger: slog.Default(),
		xor:    model.XOR,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("device", model.Name)
	return d
}

// Model returns the device model
func (d *Device) Model() *Model { return d.model }

// Props returns the property container
func (d *Device) Props() *props.Props { return d.props }

// Get returns the current value of a property
func (d *Device) Get(name string) (any, bool) { return d.props.Get(name) }

// ParsePacket decodes one raw frame with the device's XOR setting.
// Failures are logged with the offending bytes.
func (d *Device) ParsePacket(data []byte) (*efpacket.Packet, error) {
	p, err := efpacket.Decode(data, d.xor)
	d.frameDecoded(p, err)
	return p, err
}

// Observe reports a frame decoded elsewhere, such as by a stream decoder
func (d *Device) Observe(p *efpacket.Packet, err error) {
	d.frameDecoded(p, err)
}

func (d *Device) frameDecoded(p *efpacket.Packet, err error) {
	if err != nil {
		attrs := []any{"error", err}
		var de *efpacket.DecodeError
		if errors.As(err, &de) {
			attrs = append(attrs, "check", de.Check.String(), "data", de.Hex())
		}
		d.logger.Warn("frame rejected", attrs...)
	}
	for _, o := range d.observers {
		o.FrameDecoded(p, err)
	}
}

// HandlePacket runs one processing cycle and reports whether any route
// matched the frame
func (d *Device) HandlePacket(p *efpacket.Packet) bool {
	d.props.ResetUpdated()

	key := KeyOf(p)
	decoders := d.model.Routes[key]
	payload := p.Payload()

	debug := d.logger.Enabled(context.Background(), slog.LevelDebug)

	for _, dec := range decoders {
		msgs, err := dec.Decode(payload)
		for _, msg := range msgs {
			d.props.UpdateFromData(msg)
			if debug {
				d.logger.Debug("message", "type", dec.Name(), "route", key.String(), "record", fmt.Sprint(msg))
			}
		}
		if err != nil {
			d.logger.Warn("payload decode failed",
				"type", dec.Name(), "route", key.String(), "error", err,
				"payload", efpacket.FormatHex(payload))
		}
	}

	for _, name := range d.props.UpdatedFields() {
		value, _ := d.props.Get(name)
		if d.onUpdate != nil {
			d.onUpdate(name)
		}
		if d.onState != nil {
			d.onState(name, value)
		}
		for _, o := range d.observers {
			o.PropertyChanged(name, value)
		}
	}

	matched := len(decoders) > 0
	if !matched {
		d.logger.Debug("unrecognized frame", "route", key.String(), "len", p.PayloadLen())
	}
	for _, o := range d.observers {
		o.FrameProcessed(p, matched)
	}
	return matched
}

// HandleBytes parses a raw frame and processes it
func (d *Device) HandleBytes(data []byte) (bool, error) {
	p, err := d.ParsePacket(data)
	if err != nil {
		return false, err
	}
	return d.HandlePacket(p), nil
}

// Send hands an outbound frame to the transport
func (d *Device) Send(ctx context.Context, p *efpacket.Packet) error {
	if d.sender == nil {
		return ErrNoSender
	}
	d.logger.Debug("send", "route", FormatKey(p), "payload", efpacket.FormatHex(p.Payload()))
	return d.sender.SendPacket(ctx, p)
}

// Execute validates arg and sends the named command
func (d *Device) Execute(ctx context.Context, name string, arg int64) error {
	cmd, ok := d.model.Command(name)
	if !ok {
		return fmt.Errorf("%w: %s has no command %s", ErrUnknownCommand, d.model.Name, name)
	}
	if err := cmd.Check(arg); err != nil {
		return err
	}
	return d.Send(ctx, cmd.Build(arg))
}

// FormatKey renders the full outbound route of a packet
func FormatKey(p *efpacket.Packet) string {
	return fmt.Sprintf("0x%02X->0x%02X %s", p.Src(), p.Dst(), efpacket.FormatRoute(p.CmdSet(), p.CmdID()))
}
