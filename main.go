// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Powerstat - Portable Power Station Protocol Analyzer
//
// A CLI tool for monitoring, decoding and commanding portable power
// stations over their BLE frame protocol.

package main

import (
	"os"

	"github.com/Thermoquad/powerstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
