// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package models

import (
	"github.com/Thermoquad/powerstat/pkg/device"
	"github.com/Thermoquad/powerstat/pkg/efpacket"
	"github.com/Thermoquad/powerstat/pkg/props"
)

// Module addresses on the Delta 2 bus
const (
	AddrApp  = 0x21
	AddrPD   = 0x02
	AddrBMS  = 0x03
	AddrMPPT = 0x05
)

// Delta 2 inbound routes
var (
	RoutePdHeart   = device.RouteKey{Src: AddrPD, CmdSet: 0x20, CmdID: 0x02}
	RouteKitInfo   = device.RouteKey{Src: AddrBMS, CmdSet: 0x03, CmdID: 0x0E}
	RouteEmsHeart  = device.RouteKey{Src: AddrBMS, CmdSet: 0x20, CmdID: 0x02}
	RouteBmsHeart  = device.RouteKey{Src: AddrBMS, CmdSet: 0x20, CmdID: 0x32}
	RouteMpptHeart = device.RouteKey{Src: AddrMPPT, CmdSet: 0x20, CmdID: 0x02}
)

var delta2Props = props.MustRegistry(
	props.Bind("ac_output_power", Mr330PdHeart, "ac_dsg_power"),
	props.Bind("ac_input_power", Mr330PdHeart, "ac_input_watts"),
	props.Bind("plugged_in_ac", Mr330PdHeart, "ac_charge_flag", props.Equals(1)),

	props.Bind("battery_level", DirectBmsMDeltaHeartbeatPack, "f32_show_soc", props.Round(2)),
	props.Bind("input_power", Mr330PdHeart, "watts_in_sum"),
	props.Bind("output_power", Mr330PdHeart, "watts_out_sum"),

	props.Bind("usbc_output_power", Mr330PdHeart, "typec1_watts"),
	props.Bind("usba_output_power", Mr330PdHeart, "usb1_watt"),
	props.Bind("usb_ports", Mr330PdHeart, "dc_out_state", props.Equals(1)),

	props.Bind("battery_charge_limit_min", DirectEmsDeltaHeartbeatPack, "min_dsg_soc"),
	props.Bind("battery_charge_limit_max", DirectEmsDeltaHeartbeatPack, "max_charge_soc"),

	props.Bind("cell_temperature", Mr330PdHeart, "car_temp"),

	props.Bind("dc_12v_port", Mr330MpptHeart, "car_state", props.Equals(1)),
	props.Bind("dc_output_power", Mr330PdHeart, "dc_pv_output_watts"),
	props.Bind("dc12v_output_voltage", Mr330MpptHeart, "car_out_vol", props.Divide(1000, 2)),
	props.Bind("dc12v_output_current", Mr330MpptHeart, "car_out_amp", props.Divide(1000, 2)),

	props.Bind("extra_battery_slots", AllKitDetailData, "support_kit_max_num"),
)

var delta2Routes = device.Routes{
	RoutePdHeart:   {device.Record(Mr330PdHeart)},
	RouteKitInfo:   {device.Composite(AllKitDetailData)},
	RouteEmsHeart:  {device.Record(DirectEmsDeltaHeartbeatPack)},
	RouteBmsHeart:  {device.Record(DirectBmsMDeltaHeartbeatPack)},
	RouteMpptHeart: {device.Record(Mr330MpptHeart)},
}

// delta2Command builds a version 2 frame from the app address
func delta2Command(dst, cmdSet, cmdID uint8, payload []byte) *efpacket.Packet {
	return efpacket.NewPacket(AddrApp, dst, cmdSet, cmdID, payload, efpacket.WithVersion(efpacket.Version2))
}

var delta2Commands = []device.Command{
	{
		Name:        "battery_charge_limit_max",
		Description: "Maximum state of charge when charging",
		Arg:         device.ArgInt,
		Min:         50,
		Max:         100,
		Build: func(limit int64) *efpacket.Packet {
			return delta2Command(AddrBMS, 0x20, 0x31, []byte{byte(limit)})
		},
	},
	{
		Name:        "battery_charge_limit_min",
		Description: "Minimum state of charge when discharging",
		Arg:         device.ArgInt,
		Min:         0,
		Max:         30,
		Build: func(limit int64) *efpacket.Packet {
			return delta2Command(AddrBMS, 0x20, 0x33, []byte{byte(limit)})
		},
	},
	{
		Name:        "usb_ports",
		Description: "USB outputs",
		Arg:         device.ArgBool,
		Build: func(enabled int64) *efpacket.Packet {
			return delta2Command(AddrPD, 0x20, 0x22, []byte{byte(enabled)})
		},
	},
	{
		Name:        "dc_12v_port",
		Description: "12V car outlet",
		Arg:         device.ArgBool,
		Build: func(enabled int64) *efpacket.Packet {
			return delta2Command(AddrMPPT, 0x20, 0x51, []byte{byte(enabled)})
		},
	},
	{
		Name:        "ac_ports",
		Description: "AC outlets",
		Arg:         device.ArgBool,
		Build: func(enabled int64) *efpacket.Packet {
			// Remaining bytes leave X-Boost, voltage and frequency unchanged
			return delta2Command(AddrMPPT, 0x20, 0x42, []byte{byte(enabled), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
		},
	},
}

// Delta2 is the Delta 2 portable power station
var Delta2 = &device.Model{
	Name:        "delta2",
	Description: "Delta 2",
	SNPrefixes:  []string{"R331", "R335"},
	Registry:    delta2Props,
	Routes:      delta2Routes,
	XOR:         true,
	Commands:    delta2Commands,
}

// Delta3Classic is the Delta 3 1500, which speaks the Delta 2 protocol
var Delta3Classic = &device.Model{
	Name:        "delta3_1500",
	Description: "Delta 3 1500",
	SNPrefixes:  []string{"D361"},
	Registry:    delta2Props,
	Routes:      delta2Routes,
	XOR:         true,
	Commands:    delta2Commands,
}
