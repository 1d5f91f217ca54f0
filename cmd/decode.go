// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Thermoquad/powerstat/pkg/device"
	"github.com/Thermoquad/powerstat/pkg/efpacket"
	"github.com/Thermoquad/powerstat/pkg/models"
	"github.com/Thermoquad/powerstat/pkg/props"
	"github.com/Thermoquad/powerstat/pkg/rawdata"
	"github.com/spf13/cobra"
)

var (
	decodeSchema string
	decodeOutput string
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode a frame or payload given as hex",
	Long: `Decode a single frame and the records its payload is routed to.

The input is hex, optionally separated by spaces or colons. By default it is
a complete frame: it is checked, un-XORed (see --xor) and its payload routed
by the selected model. With --schema the input is a bare payload decoded
with the named record layout.

Examples:
  powerstat decode "AA 02 05 00 ..."
  powerstat decode --schema KitBaseInfo 0101... -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVar(&decodeSchema, "schema", "", fmt.Sprintf("Decode a bare payload with this layout (%s)", strings.Join(models.SchemaNames(), ", ")))
	decodeCmd.Flags().StringVarP(&decodeOutput, "output", "o", formatTable, "Output format (table, json, yaml)")
}

// parseHex accepts hex with optional separators and 0x prefix
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.NewReplacer(" ", "", ":", "", "-", "", "\n", "", "\t", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}

// frameInfo is the header of a decoded frame
type frameInfo struct {
	Version uint8  `json:"version" yaml:"version"`
	Src     uint8  `json:"src" yaml:"src"`
	Dst     uint8  `json:"dst" yaml:"dst"`
	Dsrc    uint8  `json:"dsrc,omitempty" yaml:"dsrc,omitempty"`
	Ddst    uint8  `json:"ddst,omitempty" yaml:"ddst,omitempty"`
	CmdSet  uint8  `json:"cmd_set" yaml:"cmd_set"`
	CmdID   uint8  `json:"cmd_id" yaml:"cmd_id"`
	Seq     string `json:"seq" yaml:"seq"`
	Payload string `json:"payload" yaml:"payload"`
}

func newFrameInfo(p *efpacket.Packet) *frameInfo {
	seq := p.Seq()
	return &frameInfo{
		Version: p.Version(),
		Src:     p.Src(),
		Dst:     p.Dst(),
		Dsrc:    p.Dsrc(),
		Ddst:    p.Ddst(),
		CmdSet:  p.CmdSet(),
		CmdID:   p.CmdID(),
		Seq:     hex.EncodeToString(seq[:]),
		Payload: hex.EncodeToString(p.Payload()),
	}
}

// messageInfo is one decoded record
type messageInfo struct {
	Type      string         `json:"type" yaml:"type"`
	Size      int            `json:"size" yaml:"size"`
	Width     int            `json:"width" yaml:"width"`
	Truncated bool           `json:"truncated" yaml:"truncated"`
	Fields    []models.Field `json:"fields" yaml:"fields"`
}

func newMessageInfo(msg props.Message) messageInfo {
	info := messageInfo{Type: msg.Source().Name(), Fields: models.Fields(msg)}
	switch m := msg.(type) {
	case *rawdata.Record:
		info.Size, info.Width, info.Truncated = m.Size(), m.Schema().Width(), m.Truncated()
	case *rawdata.CompositeRecord:
		h := m.Header()
		info.Size, info.Width, info.Truncated = h.Size(), h.Schema().Width(), h.Truncated()
	}
	return info
}

// decodeResult is the output of the decode command
type decodeResult struct {
	Frame    *frameInfo    `json:"frame,omitempty" yaml:"frame,omitempty"`
	Route    string        `json:"route,omitempty" yaml:"route,omitempty"`
	Messages []messageInfo `json:"messages" yaml:"messages"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
}

func (r decodeResult) headers() []string {
	return []string{"MESSAGE", "FIELD", "KIND", "VALUE"}
}

func (r decodeResult) rows() [][]string {
	var out [][]string
	for _, msg := range r.Messages {
		for _, f := range msg.Fields {
			value := "<absent>"
			if f.Present {
				value = formatValue(f.Value)
			}
			out = append(out, []string{msg.Type, f.Name, f.Kind, value})
		}
	}
	return out
}

func runDecode(cmd *cobra.Command, args []string) error {
	if err := checkFormat(decodeOutput); err != nil {
		return err
	}
	data, err := parseHex(args[0])
	if err != nil {
		return err
	}

	var (
		result decodeResult
		msgs   []props.Message
		decErr error
	)

	if decodeSchema != "" {
		dec, ok := models.Decoder(decodeSchema)
		if !ok {
			return fmt.Errorf("unknown schema %q (known: %s)", decodeSchema, strings.Join(models.SchemaNames(), ", "))
		}
		msgs, decErr = dec.Decode(data)
	} else {
		model, err := selectModel()
		if err != nil {
			return err
		}
		packet, err := efpacket.Decode(data, useXOR)
		if err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}
		key := device.KeyOf(packet)
		result.Frame = newFrameInfo(packet)
		result.Route = key.String()
		if len(model.Routes[key]) == 0 {
			logger.Warn("no route for frame", "model", model.Name, "route", key.String())
		}
		msgs, decErr = models.DecodeRoute(model, key, packet.Payload())
	}

	for _, msg := range msgs {
		result.Messages = append(result.Messages, newMessageInfo(msg))
	}
	if decErr != nil {
		result.Error = decErr.Error()
	}

	out := cmd.OutOrStdout()
	if decodeOutput == formatTable && result.Frame != nil {
		f := result.Frame
		fmt.Fprintf(out, "Frame: v%d 0x%02X->0x%02X %s seq=%s len=%d\n",
			f.Version, f.Src, f.Dst, efpacket.FormatRoute(f.CmdSet, f.CmdID), f.Seq, len(f.Payload)/2)
	}
	if decodeOutput == formatTable {
		for _, msg := range result.Messages {
			status := "complete"
			if msg.Truncated {
				status = "truncated"
			}
			fmt.Fprintf(out, "%s: %d of %d bytes (%s)\n", msg.Type, msg.Size, msg.Width, status)
		}
	}
	if err := writeOutput(out, decodeOutput, result, result); err != nil {
		return err
	}
	return decErr
}
