// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Thermoquad/powerstat/pkg/efpacket"
	"github.com/Thermoquad/powerstat/pkg/props"
)

var (
	ErrUnknownCommand = errors.New("device: unknown command")
	ErrBadArgument    = errors.New("device: bad command argument")
	ErrNoSender       = errors.New("device: no sender configured")
)

// Model describes a family of devices: how to decode what they send and how
// to build what they accept
type Model struct {
	Name        string
	Description string
	// SNPrefixes match the first characters of a serial number
	SNPrefixes []string
	Registry   *props.Registry
	Routes     Routes
	// XOR undoes the payload obfuscation on inbound frames
	XOR      bool
	Commands []Command
}

// Matches reports whether a serial number belongs to this model
func (m *Model) Matches(sn string) bool {
	for _, prefix := range m.SNPrefixes {
		if strings.HasPrefix(sn, prefix) {
			return true
		}
	}
	return false
}

// Command looks up a write command by name
func (m *Model) Command(name string) (Command, bool) {
	i := slices.IndexFunc(m.Commands, func(c Command) bool { return c.Name == name })
	if i < 0 {
		return Command{}, false
	}
	return m.Commands[i], true
}

// ArgKind is the argument type of a write command
type ArgKind int

const (
	ArgInt ArgKind = iota
	ArgBool
)

// Command builds one outbound frame from a single argument
type Command struct {
	Name        string
	Description string
	Arg         ArgKind
	Min, Max    int64
	Build       func(arg int64) *efpacket.Packet
}

// Parse converts a textual argument, validating it against the command range
func (c Command) Parse(s string) (int64, error) {
	if c.Arg == ArgBool {
		switch strings.ToLower(s) {
		case "1", "on", "true", "enable", "enabled":
			return 1, nil
		case "0", "off", "false", "disable", "disabled":
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %s expects on/off, got %q", ErrBadArgument, c.Name, s)
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrBadArgument, c.Name, err)
	}
	return v, c.Check(v)
}

// Check validates a numeric argument
func (c Command) Check(v int64) error {
	if c.Arg == ArgBool {
		if v != 0 && v != 1 {
			return fmt.Errorf("%w: %s expects 0 or 1, got %d", ErrBadArgument, c.Name, v)
		}
		return nil
	}
	if v < c.Min || v > c.Max {
		return fmt.Errorf("%w: %s expects %d..%d, got %d", ErrBadArgument, c.Name, c.Min, c.Max, v)
	}
	return nil
}

// Usage returns a short argument description
func (c Command) Usage() string {
	if c.Arg == ArgBool {
		return "on|off"
	}
	return fmt.Sprintf("%d..%d", c.Min, c.Max)
}
