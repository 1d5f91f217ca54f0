// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Thermoquad/powerstat/pkg/device"
	"github.com/Thermoquad/powerstat/pkg/efpacket"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Start an interactive session with a device",
	Long: `Interactive mode provides a REPL on top of a live connection.

Frames are processed in the background while commands are typed.

Commands:
  props [filter]          - List property values
  get <property>          - Show one property
  watch on|off            - Print property changes as they happen
  commands                - List write commands
  set <command> <value>   - Send a write command
  stats                   - Show frame statistics
  help                    - Show help
  exit                    - Exit interactive mode`,
	RunE: runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

// session is an interactive device session. The reader goroutine and the
// prompt share the device under mu.
type session struct {
	mu    sync.Mutex
	dev   *device.Device
	stats *efpacket.Statistics
	watch bool
	out   io.Writer
}

func (s *session) handleChunk(scanner *frameScanner, data []byte) {
	res := scanner.scan(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, err := range res.errs {
		s.dev.Observe(nil, err)
	}
	for _, packet := range res.packets {
		s.dev.Observe(packet, nil)
		s.dev.HandlePacket(packet)
	}
}

// stateChanged runs inside HandlePacket, with mu held
func (s *session) stateChanged(name string, value any) {
	if s.watch {
		fmt.Fprintf(s.out, "[%s] %s = %s\n", time.Now().Format("15:04:05.000"), name, formatValue(value))
	}
}

func runInteractive(cmd *cobra.Command, args []string) error {
	model, err := selectModel()
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          model.Name + "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(model),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()
	closeOnCancel(ctx, conn)

	// Keep log lines from tearing the prompt
	l, err := newLogger(rl.Stderr(), logLevel, logFormat)
	if err != nil {
		return err
	}
	logger = l

	s := &session{stats: efpacket.NewStatistics(), out: rl.Stdout()}
	s.dev = newDevice(model,
		device.WithLogger(l),
		device.WithSender(newConnSender(conn, nil)),
		device.WithObserver(device.StatisticsObserver{Stats: s.stats}),
		device.WithStateCallback(s.stateChanged),
	)

	go func() {
		scanner := newFrameScanner()
		err := readChunks(ctx, conn, func(data []byte) { s.handleChunk(scanner, data) })
		if err != nil && ctx.Err() == nil {
			fmt.Fprintf(rl.Stderr(), "connection lost: %v\n", err)
		}
	}()

	fmt.Fprintf(rl.Stdout(), "Powerstat Interactive Shell\n")
	fmt.Fprintf(rl.Stdout(), "Connection: %s\n", connInfo)
	fmt.Fprintf(rl.Stdout(), "Type 'help' for available commands, 'exit' to quit\n\n")

	for {
		line, err := rl.Readline()
		if err != nil {
			// EOF or interrupt
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			return nil
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		parts := strings.Fields(input)
		if s.exec(ctx, strings.ToLower(parts[0]), parts[1:]) {
			return nil
		}
	}
}

// exec runs one REPL command and reports whether the session should end
func (s *session) exec(ctx context.Context, name string, args []string) bool {
	out := s.out
	switch name {
	case "help", "?":
		printInteractiveHelp(out)

	case "props", "p":
		s.mu.Lock()
		snapshot := s.dev.Props().Snapshot()
		names := s.dev.Props().Names()
		s.mu.Unlock()
		filter := ""
		if len(args) > 0 {
			filter = args[0]
		}
		for _, n := range names {
			if filter != "" && !strings.Contains(n, filter) {
				continue
			}
			fmt.Fprintf(out, "  %-32s %s\n", n, formatValue(snapshot[n]))
		}

	case "get", "g":
		if len(args) != 1 {
			fmt.Fprintln(out, "Usage: get <property>")
			break
		}
		s.mu.Lock()
		v, ok := s.dev.Get(args[0])
		s.mu.Unlock()
		if !ok {
			fmt.Fprintf(out, "%s: no value\n", args[0])
			break
		}
		fmt.Fprintf(out, "%s = %s\n", args[0], formatValue(v))

	case "watch", "w":
		s.mu.Lock()
		switch {
		case len(args) == 0:
			s.watch = !s.watch
		default:
			s.watch = args[0] == "on"
		}
		state := s.watch
		s.mu.Unlock()
		fmt.Fprintf(out, "watch %v\n", state)

	case "commands", "c":
		printCommands(out, s.dev.Model())

	case "set", "s":
		if len(args) != 2 {
			fmt.Fprintln(out, "Usage: set <command> <value>")
			break
		}
		c, ok := s.dev.Model().Command(args[0])
		if !ok {
			fmt.Fprintf(out, "Unknown command: %s (type 'commands' to list)\n", args[0])
			break
		}
		arg, err := c.Parse(args[1])
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			break
		}
		sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = s.dev.Execute(sendCtx, c.Name, arg)
		cancel()
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			break
		}
		fmt.Fprintf(out, "Sent %s %d\n", c.Name, arg)

	case "stats":
		s.mu.Lock()
		summary := s.stats.String()
		s.mu.Unlock()
		fmt.Fprint(out, summary)

	case "quit", "exit", "q":
		fmt.Fprintln(out, "Exiting...")
		return true

	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", name)
	}
	return false
}

func printInteractiveHelp(w io.Writer) {
	fmt.Fprintln(w, `
Commands:
  props [filter]          - List property values
  get <property>          - Show one property
  watch [on|off]          - Print property changes as they happen
  commands                - List write commands
  set <command> <value>   - Send a write command
  stats                   - Show frame statistics
  help                    - Show this help
  exit                    - Exit interactive mode`)
}

// completer offers REPL commands, property names and write commands
func completer(model *device.Model) readline.AutoCompleter {
	props := make([]readline.PrefixCompleterInterface, 0)
	names := model.Registry.Names()
	sort.Strings(names)
	for _, n := range names {
		props = append(props, readline.PcItem(n))
	}

	commands := make([]readline.PrefixCompleterInterface, 0, len(model.Commands))
	for _, c := range model.Commands {
		commands = append(commands, readline.PcItem(c.Name))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("props"),
		readline.PcItem("get", props...),
		readline.PcItem("watch", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem("commands"),
		readline.PcItem("set", commands...),
		readline.PcItem("stats"),
		readline.PcItem("exit"),
	)
}
