// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import "github.com/Thermoquad/powerstat/pkg/efpacket"

// Observer receives diagnostics from the processing cycle
type Observer interface {
	// FrameDecoded is called for every parsed frame; p is nil when err is set
	FrameDecoded(p *efpacket.Packet, err error)
	// FrameProcessed is called after a frame went through the cycle
	FrameProcessed(p *efpacket.Packet, matched bool)
	// PropertyChanged is called for each changed property
	PropertyChanged(name string, value any)
}

// StatisticsObserver feeds frame statistics
type StatisticsObserver struct {
	Stats *efpacket.Statistics
}

func (o StatisticsObserver) FrameDecoded(p *efpacket.Packet, err error) {
	o.Stats.Update(p, err)
}

func (o StatisticsObserver) FrameProcessed(_ *efpacket.Packet, matched bool) {
	if !matched {
		o.Stats.MarkUnrecognized()
	}
}

func (o StatisticsObserver) PropertyChanged(string, any) {}
