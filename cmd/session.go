// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/Thermoquad/powerstat/pkg/device"
	"github.com/Thermoquad/powerstat/pkg/models"
)

// selectModel resolves the --model setting
func selectModel() (*device.Model, error) {
	return models.Lookup(modelName)
}

// newDevice creates a device for m with the CLI logger and XOR setting
func newDevice(m *device.Model, opts ...device.Option) *device.Device {
	base := []device.Option{
		device.WithLogger(logger),
		device.WithXOR(useXOR),
	}
	return device.New(m, append(base, opts...)...)
}
