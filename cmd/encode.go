// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/powerstat/pkg/efpacket"
	"github.com/Thermoquad/powerstat/pkg/models"
	"github.com/Thermoquad/powerstat/pkg/rawdata"
	"github.com/spf13/cobra"
)

var (
	encSrc       uint8
	encDst       uint8
	encDsrc      uint8
	encDdst      uint8
	encCmdSet    uint8
	encCmdID     uint8
	encVersion   uint8
	encProductID int
	encSeq       string
	encPayload   string
	encSchema    string
	encFields    []string
	encDump      bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Build a frame and print it as hex",
	Long: `Build a single frame from its header fields and payload.

The payload is given as hex (--payload) or packed from a record layout
(--schema) with field values set by --field name=value. Fields not set are
zero. Byte fields take hex values.

Examples:
  powerstat encode --src 0x21 --dst 0x02 --cmd-set 0x20 --cmd-id 0x34 --payload 01
  powerstat encode --schema KitBaseInfo --field avai_flag=1 --field sn=5233`,
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	f := encodeCmd.Flags()
	f.Uint8Var(&encSrc, "src", models.AddrApp, "Source address")
	f.Uint8Var(&encDst, "dst", models.AddrPD, "Destination address")
	f.Uint8Var(&encDsrc, "dsrc", 1, "Device source (version 3 and later)")
	f.Uint8Var(&encDdst, "ddst", 1, "Device destination (version 3 and later)")
	f.Uint8Var(&encCmdSet, "cmd-set", 0x20, "Command set")
	f.Uint8Var(&encCmdID, "cmd-id", 0x02, "Command id")
	f.Uint8Var(&encVersion, "version", efpacket.Version2, "Frame version (2, 3 or 19)")
	f.IntVar(&encProductID, "product-id", 0, "Product id (0, or -1 for the alternate marker)")
	f.StringVar(&encSeq, "seq", "", "Sequence bytes as hex (4 bytes)")
	f.StringVar(&encPayload, "payload", "", "Payload as hex")
	f.StringVar(&encSchema, "schema", "", "Pack the payload with this record layout")
	f.StringArrayVar(&encFields, "field", nil, "Field value for --schema (name=value, repeatable)")
	f.BoolVar(&encDump, "dump", false, "Also print the decoded frame")
}

// parseFieldValue converts a textual field value into what Pack expects
func parseFieldValue(kind rawdata.Kind, s string) (any, error) {
	switch {
	case kind == rawdata.Bytes:
		return parseHex(s)
	case kind.Float():
		return strconv.ParseFloat(s, 64)
	case kind == rawdata.Uint64:
		return strconv.ParseUint(s, 0, 64)
	}
	return strconv.ParseInt(s, 0, 64)
}

func packFields(schemaName string, assignments []string) ([]byte, error) {
	schema, ok := models.RecordSchema(schemaName)
	if !ok {
		if _, known := models.Decoder(schemaName); known {
			return nil, fmt.Errorf("schema %s cannot be packed", schemaName)
		}
		return nil, fmt.Errorf("unknown schema %q (known: %s)", schemaName, strings.Join(models.SchemaNames(), ", "))
	}

	values := make(map[string]any, len(assignments))
	for _, a := range assignments {
		name, raw, found := strings.Cut(a, "=")
		if !found {
			return nil, fmt.Errorf("invalid field %q (want name=value)", a)
		}
		field, ok := schema.Field(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no field %s", rawdata.ErrUnknownField, schemaName, name)
		}
		v, err := parseFieldValue(field.Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		values[name] = v
	}
	return schema.Pack(values)
}

func runEncode(cmd *cobra.Command, args []string) error {
	var (
		payload []byte
		err     error
	)
	switch {
	case encSchema != "" && encPayload != "":
		return fmt.Errorf("--schema and --payload are mutually exclusive")
	case encSchema != "":
		payload, err = packFields(encSchema, encFields)
	case encPayload != "":
		payload, err = parseHex(encPayload)
	}
	if err != nil {
		return err
	}

	opts := []efpacket.PacketOption{
		efpacket.WithVersion(encVersion),
		efpacket.WithProductID(encProductID),
	}
	if cmd.Flags().Changed("dsrc") || cmd.Flags().Changed("ddst") {
		opts = append(opts, efpacket.WithDeviceRoute(encDsrc, encDdst))
	}
	if encSeq != "" {
		raw, err := parseHex(encSeq)
		if err != nil {
			return err
		}
		if len(raw) != efpacket.SeqSize {
			return fmt.Errorf("seq must be %d bytes, got %d", efpacket.SeqSize, len(raw))
		}
		var seq [efpacket.SeqSize]byte
		copy(seq[:], raw)
		opts = append(opts, efpacket.WithSeq(seq))
	}

	packet := efpacket.NewPacket(encSrc, encDst, encCmdSet, encCmdID, payload, opts...)
	data, err := efpacket.EncodeChecked(packet)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, efpacket.FormatHex(data))
	if encDump {
		decoded, err := efpacket.Decode(data, false)
		if err != nil {
			return fmt.Errorf("re-decode: %w", err)
		}
		fmt.Fprint(out, efpacket.FormatPacket(decoded))
	}
	return nil
}
