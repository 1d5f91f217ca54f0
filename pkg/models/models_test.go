// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package models_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/powerstat/pkg/device"
	"github.com/Thermoquad/powerstat/pkg/efpacket"
	"github.com/Thermoquad/powerstat/pkg/models"
	"github.com/Thermoquad/powerstat/pkg/rawdata"
)

type captureSender struct {
	sent []*efpacket.Packet
}

func (s *captureSender) SendPacket(_ context.Context, p *efpacket.Packet) error {
	s.sent = append(s.sent, p)
	return nil
}

func newDelta2(t *testing.T, opts ...device.Option) *device.Device {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return device.New(models.Delta2, append([]device.Option{device.WithLogger(logger)}, opts...)...)
}

func pack(t *testing.T, s *rawdata.Schema, values map[string]any) []byte {
	t.Helper()
	data, err := s.Pack(values)
	require.NoError(t, err)
	return data
}

// frame builds an obfuscated version 2 frame as the device sends it
func frame(key device.RouteKey, payload []byte) []byte {
	const xorKey = 0x5C
	obf := make([]byte, len(payload))
	for i, b := range payload {
		obf[i] = b ^ xorKey
	}
	return efpacket.Encode(efpacket.NewPacket(key.Src, models.AddrApp, key.CmdSet, key.CmdID, obf,
		efpacket.WithVersion(efpacket.Version2), efpacket.WithSeq([4]byte{xorKey, 0, 0, 1})))
}

func TestSchemas_Widths(t *testing.T) {
	assert.Equal(t, 46, models.DirectEmsDeltaHeartbeatPack.Width())
	assert.Equal(t, 39, models.KitBaseInfo.Width())
	assert.True(t, models.Mr330PdHeart.IsA(models.BasePdHeart))
	assert.True(t, models.Mr330MpptHeart.IsA(models.BaseMpptHeart))
	assert.Equal(t, models.BaseMpptHeart.Width()+29, models.Mr330MpptHeart.Width())
}

func TestDelta2_PdHeart(t *testing.T) {
	var changed []string
	d := newDelta2(t, device.WithUpdateCallback(func(name string) { changed = append(changed, name) }))

	payload := pack(t, models.Mr330PdHeart, map[string]any{
		"watts_in_sum":       230,
		"watts_out_sum":      80,
		"typec1_watts":       20,
		"usb1_watt":          5,
		"dc_out_state":       1,
		"car_temp":           31,
		"ac_charge_flag":     1,
		"ac_dsg_power":       55,
		"ac_input_watts":     230,
		"dc_pv_output_watts": 0,
	})

	matched, err := d.HandleBytes(frame(models.RoutePdHeart, payload))
	require.NoError(t, err)
	require.True(t, matched)

	expect := map[string]any{
		"input_power":       int64(230),
		"output_power":      int64(80),
		"usbc_output_power": int64(20),
		"usba_output_power": int64(5),
		"usb_ports":         true,
		"cell_temperature":  int64(31),
		"plugged_in_ac":     true,
		"ac_output_power":   int64(55),
		"ac_input_power":    int64(230),
		"dc_output_power":   int64(0),
	}
	for name, want := range expect {
		got, ok := d.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	assert.Len(t, changed, len(expect))
}

func TestDelta2_OlderFirmwarePdHeart(t *testing.T) {
	d := newDelta2(t)

	// A base-width heartbeat carries none of the Delta 2 extension
	payload := pack(t, models.BasePdHeart, map[string]any{"watts_in_sum": 12})
	_, err := d.HandleBytes(frame(models.RoutePdHeart, payload))
	require.NoError(t, err)

	v, _ := d.Get("input_power")
	assert.Equal(t, int64(12), v)
	_, ok := d.Get("plugged_in_ac")
	assert.False(t, ok)
}

func TestDelta2_BmsAndEms(t *testing.T) {
	d := newDelta2(t)

	_, err := d.HandleBytes(frame(models.RouteBmsHeart, pack(t, models.DirectBmsMDeltaHeartbeatPack, map[string]any{
		"f32_show_soc": 87.456,
	})))
	require.NoError(t, err)
	v, _ := d.Get("battery_level")
	assert.InDelta(t, 87.46, v, 1e-9)

	_, err = d.HandleBytes(frame(models.RouteEmsHeart, pack(t, models.DirectEmsDeltaHeartbeatPack, map[string]any{
		"max_charge_soc": 90,
		"min_dsg_soc":    10,
	})))
	require.NoError(t, err)
	v, _ = d.Get("battery_charge_limit_max")
	assert.Equal(t, int64(90), v)
	v, _ = d.Get("battery_charge_limit_min")
	assert.Equal(t, int64(10), v)
}

func TestDelta2_MpptHeart(t *testing.T) {
	d := newDelta2(t)

	_, err := d.HandleBytes(frame(models.RouteMpptHeart, pack(t, models.Mr330MpptHeart, map[string]any{
		"car_state":   1,
		"car_out_vol": 12634,
		"car_out_amp": 1500,
	})))
	require.NoError(t, err)

	v, _ := d.Get("dc_12v_port")
	assert.Equal(t, true, v)
	v, _ = d.Get("dc12v_output_voltage")
	assert.InDelta(t, 12.63, v, 1e-9)
	v, _ = d.Get("dc12v_output_current")
	assert.InDelta(t, 1.5, v, 1e-9)
}

func TestDelta2_KitInfo(t *testing.T) {
	d := newDelta2(t)

	payload := pack(t, models.AllKitDetailData.Header(), map[string]any{"support_kit_max_num": 2})
	payload = append(payload, pack(t, models.KitBaseInfo, map[string]any{"avai_flag": 1, "soc": 40})...)
	payload = append(payload, pack(t, models.KitBaseInfo, map[string]any{"avai_flag": 0})...)

	_, err := d.HandleBytes(frame(models.RouteKitInfo, payload))
	require.NoError(t, err)
	v, _ := d.Get("extra_battery_slots")
	assert.Equal(t, int64(2), v)

	msgs, err := models.DecodeRoute(models.Delta2, models.RouteKitInfo, payload)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	rec := msgs[0].(*rawdata.CompositeRecord)
	require.Len(t, rec.Items(), 2)
	assert.Equal(t, uint64(40), rec.Items()[0].Value("soc").Uint())
}

func TestDelta2_Commands(t *testing.T) {
	sender := &captureSender{}
	d := newDelta2(t, device.WithSender(sender))
	ctx := context.Background()

	tests := []struct {
		command string
		arg     int64
		dst     uint8
		cmdID   uint8
		payload []byte
	}{
		{"battery_charge_limit_max", 80, models.AddrBMS, 0x31, []byte{80}},
		{"battery_charge_limit_min", 10, models.AddrBMS, 0x33, []byte{10}},
		{"usb_ports", 1, models.AddrPD, 0x22, []byte{1}},
		{"dc_12v_port", 0, models.AddrMPPT, 0x51, []byte{0}},
		{"ac_ports", 1, models.AddrMPPT, 0x42, []byte{1, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sender.sent = nil
			require.NoError(t, d.Execute(ctx, tt.command, tt.arg))
			require.Len(t, sender.sent, 1)
			p := sender.sent[0]
			assert.Equal(t, uint8(models.AddrApp), p.Src())
			assert.Equal(t, tt.dst, p.Dst())
			assert.Equal(t, uint8(0x20), p.CmdSet())
			assert.Equal(t, tt.cmdID, p.CmdID())
			assert.Equal(t, uint8(efpacket.Version2), p.Version())
			assert.Equal(t, tt.payload, p.Payload())
		})
	}

	assert.ErrorIs(t, d.Execute(ctx, "battery_charge_limit_max", 20), device.ErrBadArgument)
}

func TestLookup(t *testing.T) {
	m, err := models.Lookup("delta2")
	require.NoError(t, err)
	assert.Same(t, models.Delta2, m)

	_, err = models.Lookup("wave9")
	assert.Error(t, err)

	m, ok := models.ForSerial("D3611234567")
	require.True(t, ok)
	assert.Same(t, models.Delta3Classic, m)

	assert.Contains(t, models.Setters(models.Delta2), "ac_ports")
}

func TestDecoderAndFields(t *testing.T) {
	dec, ok := models.Decoder("DirectEmsDeltaHeartbeatPack")
	require.True(t, ok)

	msgs, err := dec.Decode([]byte{1, 2, 3})
	require.NoError(t, err)
	fields := models.Fields(msgs[0])
	require.Len(t, fields, len(models.DirectEmsDeltaHeartbeatPack.Fields()))
	assert.Equal(t, models.Field{Name: "chg_state", Kind: "u8", Value: int64(1), Present: true}, fields[0])
	assert.False(t, fields[3].Present)

	assert.Contains(t, models.SchemaNames(), "AllKitDetailData")
}
