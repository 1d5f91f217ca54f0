// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/powerstat/pkg/capture"
	"github.com/Thermoquad/powerstat/pkg/device"
	"github.com/Thermoquad/powerstat/pkg/efpacket"
	"github.com/Thermoquad/powerstat/pkg/models"
)

// testFrame builds an obfuscated version 2 frame as a Delta 2 sends it
func testFrame(t *testing.T, key device.RouteKey, payload []byte) []byte {
	t.Helper()
	const xorKey = 0x3A
	obf := make([]byte, len(payload))
	for i, b := range payload {
		obf[i] = b ^ xorKey
	}
	return efpacket.Encode(efpacket.NewPacket(key.Src, models.AddrApp, key.CmdSet, key.CmdID, obf,
		efpacket.WithVersion(efpacket.Version2), efpacket.WithSeq([4]byte{xorKey, 0, 0, 7})))
}

func pdHeart(t *testing.T, wattsIn int) []byte {
	t.Helper()
	payload, err := models.Mr330PdHeart.Pack(map[string]any{"watts_in_sum": wattsIn, "ac_charge_flag": 1})
	require.NoError(t, err)
	return payload
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
	}{
		{"aa02", []byte{0xAA, 0x02}},
		{"0xAA BB", []byte{0xAA, 0xBB}},
		{"de:ad-be ef", []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		{" 01\n02\t03 ", []byte{0x01, 0x02, 0x03}},
	}
	for _, tt := range tests {
		got, err := parseHex(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseHex("abc")
	assert.Error(t, err)
	_, err = parseHex("zz")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	lvl, err := parseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	lvl, err = parseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)

	lvl, err = parseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = parseLevel("loud")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&buf, "warn", "json")
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown", "route", "0x02/0x20:0x02")
	assert.NotContains(t, buf.String(), "hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "shown", entry["msg"])

	_, err = newLogger(&buf, "info", "xml")
	assert.Error(t, err)
}

func TestWriteOutput(t *testing.T) {
	snapshot := propertyTable{"output_power": int64(80), "input_power": int64(230), "plugged_in_ac": true}

	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, formatTable, snapshot, map[string]any(snapshot)))
	out := buf.String()
	assert.Contains(t, out, "PROPERTY")
	assert.Less(t, strings.Index(out, "input_power"), strings.Index(out, "output_power"))

	buf.Reset()
	require.NoError(t, writeOutput(&buf, formatJSON, snapshot, map[string]any(snapshot)))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(230), decoded["input_power"])

	buf.Reset()
	require.NoError(t, writeOutput(&buf, formatYAML, snapshot, map[string]any(snapshot)))
	assert.Contains(t, buf.String(), "plugged_in_ac: true")

	assert.Error(t, writeOutput(&buf, "csv", snapshot, nil))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "-", formatValue(nil))
	assert.Equal(t, "12.5", formatValue(12.5))
	assert.Equal(t, "DE AD", formatValue([]byte{0xDE, 0xAD}))
	assert.Equal(t, "true", formatValue(true))
}

func TestFrameScanner(t *testing.T) {
	useXOR = true
	s := newFrameScanner()

	// Noise before the first frame is counted, not reported
	res := s.scan([]byte{0x01, 0x02, 0x03})
	assert.False(t, res.synced)
	assert.Empty(t, res.packets)

	data := testFrame(t, models.RoutePdHeart, pdHeart(t, 100))
	res = s.scan(data[:10])
	assert.False(t, res.synced)

	res = s.scan(data[10:])
	require.True(t, res.synced)
	require.Len(t, res.packets, 1)
	assert.Equal(t, 3, s.invalidBytes)

	// Once synchronized, corrupted frames are reported
	bad := testFrame(t, models.RoutePdHeart, pdHeart(t, 100))
	bad[len(bad)-1] ^= 0xFF
	res = s.scan(bad)
	assert.False(t, res.synced)
	assert.Empty(t, res.packets)
	require.NotEmpty(t, res.errs)
	check, ok := efpacket.CheckOf(res.errs[0])
	require.True(t, ok)
	assert.Equal(t, efpacket.CheckCRC16, check)
}

func TestInspectFrame(t *testing.T) {
	decode := func(t *testing.T, data []byte) *efpacket.Packet {
		t.Helper()
		p, err := efpacket.Decode(data, true)
		require.NoError(t, err)
		return p
	}

	p := decode(t, testFrame(t, models.RoutePdHeart, pdHeart(t, 50)))
	assert.Empty(t, inspectFrame(models.Delta2, p))

	short, err := models.BasePdHeart.Pack(map[string]any{"watts_in_sum": 50})
	require.NoError(t, err)
	p = decode(t, testFrame(t, models.RoutePdHeart, short))
	issues := inspectFrame(models.Delta2, p)
	require.Len(t, issues, 1)
	assert.Equal(t, issueTruncated, issues[0].kind)
	assert.Contains(t, issues[0].message, models.Mr330PdHeart.Name())

	p = decode(t, testFrame(t, device.RouteKey{Src: 0x0B, CmdSet: 0x01, CmdID: 0x01}, []byte{1, 2}))
	issues = inspectFrame(models.Delta2, p)
	require.Len(t, issues, 1)
	assert.Equal(t, issueUnrouted, issues[0].kind)
}

func TestPackFields(t *testing.T) {
	got, err := packFields("KitBaseInfo", []string{"avai_flag=1", "soc=0x28"})
	require.NoError(t, err)
	want, err := models.KitBaseInfo.Pack(map[string]any{"avai_flag": 1, "soc": 40})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = packFields("KitBaseInfo", []string{"avai_flag"})
	assert.Error(t, err)
	_, err = packFields("KitBaseInfo", []string{"nope=1"})
	assert.Error(t, err)
	_, err = packFields("NoSuchLayout", nil)
	assert.Error(t, err)
}

func TestReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cap")
	rec, err := capture.Create(path)
	require.NoError(t, err)

	first := testFrame(t, models.RoutePdHeart, pdHeart(t, 120))
	second := testFrame(t, models.RoutePdHeart, pdHeart(t, 230))
	// Split across chunks the way a bridge delivers notifications
	require.NoError(t, rec.Write(capture.Inbound, append([]byte{0xFF}, first[:7]...)))
	require.NoError(t, rec.Write(capture.Inbound, append(first[7:], second...)))
	require.NoError(t, rec.Close())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"replay", path, "--model", "delta2", "-o", "json"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())

	var snapshot map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &snapshot))
	assert.Equal(t, float64(230), snapshot["input_power"])
	assert.Equal(t, true, snapshot["plugged_in_ac"])
}
