// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package efpacket

import (
	"fmt"
	"strings"
)

// FormatPacket formats a packet into a human-readable string
func FormatPacket(p *Packet) string {
	timestamp := p.timestamp.Format("15:04:05.000")

	result := fmt.Sprintf("[%s] %s v%d src=0x%02X dst=0x%02X", timestamp, FormatRoute(p.cmdSet, p.cmdID), p.version, p.src, p.dst)
	if p.version >= Version3 {
		result += fmt.Sprintf(" dsrc=0x%02X ddst=0x%02X", p.dsrc, p.ddst)
	}
	result += fmt.Sprintf(" seq=%s len=%d\n", FormatHex(p.seq[:]), len(p.payload))

	if len(p.payload) > 0 {
		result += FormatHexDump(p.payload, "  ")
	}

	return result
}

// FormatRoute renders a command set / command id pair
func FormatRoute(cmdSet, cmdID uint8) string {
	return fmt.Sprintf("CMD(0x%02X,0x%02X)", cmdSet, cmdID)
}

// FormatCheck returns the human-readable name for a validation check
func FormatCheck(c Check) string {
	switch c {
	case CheckPrefix:
		return "PREFIX"
	case CheckSize:
		return "SIZE"
	case CheckLength:
		return "LENGTH"
	case CheckCRC16:
		return "CRC16"
	case CheckCRC8:
		return "CRC8"
	default:
		return "UNKNOWN"
	}
}

// FormatHex renders bytes as space separated upper-case hex
func FormatHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// FormatHexDump renders bytes as 16-byte rows with offsets
func FormatHexDump(data []byte, indent string) string {
	var sb strings.Builder
	for off := 0; off < len(data); off += 16 {
		end := min(off+16, len(data))
		fmt.Fprintf(&sb, "%s%04X  %s\n", indent, off, FormatHex(data[off:end]))
	}
	return sb.String()
}
