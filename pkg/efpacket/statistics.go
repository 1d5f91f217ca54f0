// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package efpacket

import (
	"fmt"
	"time"
)

// Statistics tracks frame statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPackets  uint64
	ValidPackets  uint64
	DecodeErrors  uint64
	Unrecognized  uint64
	CheckFailures map[Check]uint64
	VersionCounts map[uint8]uint64
	PayloadBytes  uint64
	SkippedBytes  uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		CheckFailures:  make(map[Check]uint64),
		VersionCounts:  make(map[uint8]uint64),
	}
}

// Update updates statistics based on a decoded packet or its decode error
func (s *Statistics) Update(packet *Packet, decodeErr error) {
	s.TotalPackets++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		s.DecodeErrors++
		if check, ok := CheckOf(decodeErr); ok {
			s.CheckFailures[check]++
		}
		return
	}

	s.ValidPackets++
	if packet != nil {
		s.VersionCounts[packet.version]++
		s.PayloadBytes += uint64(len(packet.payload))
	}
}

// MarkUnrecognized counts a valid frame that no decoder route matched
func (s *Statistics) MarkUnrecognized() {
	s.Unrecognized++
}

// AddSkipped records bytes discarded while resynchronising a stream
func (s *Statistics) AddSkipped(n int) {
	if n > 0 {
		s.SkippedBytes += uint64(n)
	}
}

// CalculateRates calculates packet and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		s.ErrorRate = float64(s.DecodeErrors) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalPackets == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalPackets)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalPackets)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidPackets, percent(s.ValidPackets))

	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, percent(s.DecodeErrors))
		for _, check := range Checks {
			if n := s.CheckFailures[check]; n > 0 {
				result += fmt.Sprintf("  %-8s %14d\n", FormatCheck(check)+":", n)
			}
		}
	}
	if s.Unrecognized > 0 {
		result += fmt.Sprintf("Unrecognized:    %8d (%.1f%%)\n", s.Unrecognized, percent(s.Unrecognized))
	}
	for _, v := range []uint8{Version2, Version3, Version19} {
		if n := s.VersionCounts[v]; n > 0 {
			result += fmt.Sprintf("  Version %-3d %12d\n", v, n)
		}
	}
	if s.SkippedBytes > 0 {
		result += fmt.Sprintf("Skipped Bytes:   %8d\n", s.SkippedBytes)
	}

	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
