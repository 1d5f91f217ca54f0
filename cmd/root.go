// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var (
	cfgFile string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Protocol flags
	modelName string
	useXOR    bool

	// Logging flags
	logLevel  string
	logFormat string

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "powerstat",
	Short: "Portable power station BLE protocol analyzer",
	Long: `Powerstat - A CLI tool for monitoring and commanding portable power stations
over their BLE frame protocol.

A bridge forwards the raw GATT notification bytes of the station over a serial
port or a WebSocket. Powerstat decodes the frames, routes their payloads to the
record layouts of the selected device model and tracks the resulting
properties.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the POWERSTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Settings may also come from $HOME/.powerstat.yaml (or --config) and from
POWERSTAT_* environment variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loadSettings()
		l, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.powerstat.yaml)")

	// Serial connection flags
	flags.StringVarP(&portName, "port", "p", "", "Serial port device")
	flags.IntVarP(&baudRate, "baud", "b", defaultBaud, "Baud rate (serial only)")

	// WebSocket connection flags
	flags.StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	flags.BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Protocol flags
	flags.StringVarP(&modelName, "model", "m", defaultModel, "Device model")
	flags.BoolVar(&useXOR, "xor", true, "Undo the payload XOR of inbound frames")

	// Logging flags
	flags.StringVar(&logLevel, "log-level", defaultLogLevel, "Log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", defaultLogFormat, "Log format (text, json)")

	bindFlags(flags)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
