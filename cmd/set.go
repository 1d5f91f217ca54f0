// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Thermoquad/powerstat/pkg/device"
	"github.com/Thermoquad/powerstat/pkg/efpacket"
	"github.com/Thermoquad/powerstat/pkg/models"
	"github.com/spf13/cobra"
)

var (
	setDryRun  bool
	setTimeout time.Duration
)

var setCmd = &cobra.Command{
	Use:   "set [command] [value]",
	Short: "Send a write command to the device",
	Long: `Send one of the selected model's write commands.

Without arguments the available commands are listed. Boolean commands take
on/off, numeric commands take a value within their range.

Examples:
  powerstat set
  powerstat set ac_ports on --port /dev/ttyUSB0
  powerstat set battery_charge_limit_max 90 --dry-run`,
	Args: cobra.RangeArgs(0, 2),
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
	setCmd.Flags().BoolVar(&setDryRun, "dry-run", false, "Print the frame instead of sending it")
	setCmd.Flags().DurationVar(&setTimeout, "timeout", 5*time.Second, "Send timeout")
}

// printCommands lists the write commands of a model
func printCommands(w io.Writer, model *device.Model) {
	setters := models.Setters(model)
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "Commands for %s:\n", model.Name)
	for _, name := range names {
		c := setters[name]
		fmt.Fprintf(w, "  %-28s %-10s %s\n", name, c.Usage(), c.Description)
	}
}

func runSet(cmd *cobra.Command, args []string) error {
	model, err := selectModel()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		printCommands(out, model)
		return nil
	}
	if len(args) != 2 {
		return fmt.Errorf("set needs a command and a value")
	}

	c, ok := model.Command(args[0])
	if !ok {
		printCommands(cmd.ErrOrStderr(), model)
		return fmt.Errorf("%w: %s", device.ErrUnknownCommand, args[0])
	}
	arg, err := c.Parse(args[1])
	if err != nil {
		return err
	}

	if setDryRun {
		packet := c.Build(arg)
		fmt.Fprintf(out, "%s\n%s\n", device.FormatKey(packet), efpacket.FormatHex(packet.Bytes()))
		return nil
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	dev := newDevice(model, device.WithSender(newConnSender(conn, nil)))

	ctx, cancel := context.WithTimeout(cmd.Context(), setTimeout)
	defer cancel()
	if err := dev.Execute(ctx, c.Name, arg); err != nil {
		return fmt.Errorf("send %s: %w", c.Name, err)
	}

	logger.Info("command sent", "command", c.Name, "value", arg, "connection", connInfo)
	return nil
}
