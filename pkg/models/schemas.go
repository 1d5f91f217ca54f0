// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package models

import "github.com/Thermoquad/powerstat/pkg/rawdata"

// Power delivery board heartbeat
var BasePdHeart = rawdata.NewSchema("BasePdHeart",
	rawdata.U8("model"),
	rawdata.Raw("error_code", 4),
	rawdata.Raw("sys_ver", 4),
	rawdata.Raw("wifi_ver", 4),
	rawdata.U8("wifi_auto_recovery"),
	rawdata.U8("soc"),
	rawdata.U16("watts_out_sum"),
	rawdata.U16("watts_in_sum"),
	rawdata.I32("remain_time"),
	rawdata.U8("quiet_mode"),
	rawdata.U8("dc_out_state"),
	rawdata.U8("usb1_watt"),
	rawdata.U8("usb2_watt"),
	rawdata.U8("qc_usb1_watt"),
	rawdata.U8("qc_usb2_watt"),
	rawdata.U8("typec1_watts"),
	rawdata.U8("typec2_watts"),
	rawdata.U8("typec1_temp"),
	rawdata.U8("typec2_temp"),
	rawdata.U8("car_state"),
	rawdata.U8("car_watts"),
	rawdata.U8("car_temp"),
	rawdata.U16("standby_min"),
	rawdata.U16("lcd_off_sec"),
	rawdata.U8("lcd_brightness"),
	rawdata.U32("chg_power_dc"),
	rawdata.U32("chg_sun_power"),
	rawdata.U32("chg_power_ac"),
	rawdata.U32("dsg_power_dc"),
	rawdata.U32("dsg_power_ac"),
	rawdata.U32("usb_used_time"),
	rawdata.U32("usb_qc_used_time"),
	rawdata.U32("type_c_used_time"),
	rawdata.U32("car_used_time"),
	rawdata.U32("inv_used_time"),
	rawdata.U32("dc_in_used_time"),
	rawdata.U32("mppt_used_time"),
)

// Mr330PdHeart is the Delta 2 generation of the PD heartbeat
var Mr330PdHeart = BasePdHeart.Extend("Mr330PdHeart",
	rawdata.U16("reserved"),
	rawdata.U8("screen_off_time"),
	rawdata.U8("ext3p8_port"),
	rawdata.U8("ext4p8_port"),
	rawdata.U8("sys_chg_dsg_state"),
	rawdata.U8("wifi_rssi"),
	rawdata.U8("wireless_watts"),
	rawdata.U8("ac_auto_on_cfg"),
	rawdata.U8("ac_charge_flag"),
	rawdata.U16("ac_dsg_power"),
	rawdata.U16("ac_input_watts"),
	rawdata.U16("dc_pv_output_watts"),
	rawdata.U8("pv_chg_prio_set"),
	rawdata.U8("ac_auto_out_config"),
	rawdata.U8("ac_auto_out_pause"),
	rawdata.U32("relay_switch_cnt"),
	rawdata.U8("bp_power_soc"),
	rawdata.U8("hysteresis_add"),
)

// DirectEmsDeltaHeartbeatPack is the energy management system heartbeat
var DirectEmsDeltaHeartbeatPack = rawdata.NewSchema("DirectEmsDeltaHeartbeatPack",
	rawdata.U8("chg_state"),
	rawdata.U8("chg_cmd"),
	rawdata.U8("dsg_cmd"),
	rawdata.U32("chg_vol"),
	rawdata.U32("chg_amp"),
	rawdata.U8("fan_level"),
	rawdata.U8("max_charge_soc"),
	rawdata.U8("bms_model"),
	rawdata.U8("lcd_show_soc"),
	rawdata.U8("open_ups_flag"),
	rawdata.U8("bms_warning_state"),
	rawdata.U32("chg_remain_time"),
	rawdata.U32("dsg_remain_time"),
	rawdata.U8("ems_is_normal_flag"),
	rawdata.F32("f32_lcd_show_soc"),
	rawdata.Raw("bms_is_connt", 3),
	rawdata.U8("max_available_num"),
	rawdata.U8("open_bms_idx"),
	rawdata.U32("para_vol_min"),
	rawdata.U32("para_vol_max"),
	rawdata.U8("min_dsg_soc"),
	rawdata.U8("open_oil_eb_soc"),
	rawdata.U8("close_oil_eb_soc"),
)

// DirectBmsMDeltaHeartbeatPack is the main battery management heartbeat
var DirectBmsMDeltaHeartbeatPack = rawdata.NewSchema("DirectBmsMDeltaHeartbeatPack",
	rawdata.U8("num"),
	rawdata.U8("type"),
	rawdata.U8("cell_id"),
	rawdata.U32("err_code"),
	rawdata.U32("sys_ver"),
	rawdata.U8("soc"),
	rawdata.U32("vol"),
	rawdata.U32("amp"),
	rawdata.U8("temp"),
	rawdata.U8("open_bms_idx"),
	rawdata.U32("design_cap"),
	rawdata.U32("remain_cap"),
	rawdata.U32("full_cap"),
	rawdata.U32("cycles"),
	rawdata.U8("soh"),
	rawdata.U16("max_cell_vol"),
	rawdata.U16("min_cell_vol"),
	rawdata.U8("max_cell_temp"),
	rawdata.U8("min_cell_temp"),
	rawdata.U8("max_mos_temp"),
	rawdata.U8("min_mos_temp"),
	rawdata.U8("bms_fault"),
	rawdata.U8("bq_sys_stat_reg"),
	rawdata.U32("tag_chg_amp"),
	rawdata.F32("f32_show_soc"),
	rawdata.U32("input_watts"),
	rawdata.U32("output_watts"),
	rawdata.U32("remain_time"),
)

// BaseMpptHeart is the solar charger and DC output heartbeat
var BaseMpptHeart = rawdata.NewSchema("BaseMpptHeart",
	rawdata.U32("fault_code"),
	rawdata.Raw("sw_ver", 4),
	rawdata.U32("in_vol"),
	rawdata.U32("in_amp"),
	rawdata.U16("in_watts"),
	rawdata.U32("out_val"),
	rawdata.U32("out_amp"),
	rawdata.U16("out_watts"),
	rawdata.I16("mppt_temp"),
	rawdata.U8("xt60_chg_type"),
	rawdata.U8("cfg_chg_type"),
	rawdata.U8("chg_type"),
	rawdata.U8("chg_state"),
	rawdata.U32("dcdc_12v_vol"),
	rawdata.U32("dcdc_12v_amp"),
	rawdata.U16("dcdc_12v_watts"),
	rawdata.U32("car_out_vol"),
	rawdata.U32("car_out_amp"),
	rawdata.U16("car_out_watts"),
	rawdata.I16("car_temp"),
	rawdata.U8("car_state"),
	rawdata.I16("dc24v_temp"),
	rawdata.U8("dc24v_state"),
	rawdata.U8("chg_pause_flag"),
	rawdata.U32("cfg_dc_chg_current"),
)

// Mr330MpptHeart is the Delta 2 generation of the MPPT heartbeat
var Mr330MpptHeart = BaseMpptHeart.Extend("Mr330MpptHeart",
	rawdata.U8("beep_state"),
	rawdata.U8("cfg_ac_enabled"),
	rawdata.U8("cfg_ac_xboost"),
	rawdata.U32("cfg_ac_out_voltage"),
	rawdata.U8("cfg_ac_out_freq"),
	rawdata.U16("cfg_chg_watts"),
	rawdata.U16("ac_standby_mins"),
	rawdata.U8("discharge_type"),
	rawdata.U16("car_standby_mins"),
	rawdata.U16("power_standby_mins"),
	rawdata.U16("screen_standby_mins"),
	rawdata.U16("pay_flag"),
	rawdata.Raw("reserved", 8),
)

// KitBaseInfo describes one attached extra battery
var KitBaseInfo = rawdata.NewSchema("KitBaseInfo",
	rawdata.U8("avai_flag"),
	rawdata.Raw("sn", 16),
	rawdata.U16("product_type"),
	rawdata.U16("product_detail"),
	rawdata.U8("procedure_state"),
	rawdata.U32("app_version"),
	rawdata.U32("loader_version"),
	rawdata.U32("cur_real_power"),
	rawdata.U32("f32_soc"),
	rawdata.U8("soc"),
)

var allKitHeader = rawdata.NewSchema("AllKitDetailData",
	rawdata.U8("protocol_version"),
	rawdata.U16("available_data_len"),
	rawdata.U16("support_kit_max_num"),
)

// AllKitDetailData lists every extra battery slot
var AllKitDetailData = rawdata.NewComposite("AllKitDetailData", allKitHeader, "support_kit_max_num", KitBaseInfo)
