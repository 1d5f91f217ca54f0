// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exports frame and property metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Thermoquad/powerstat/pkg/efpacket"
)

const namespace = "powerstat"

// Collector implements device.Observer on a set of Prometheus metrics
type Collector struct {
	device string

	frames     *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	processed  *prometheus.CounterVec
	updates    *prometheus.CounterVec
	properties *prometheus.GaugeVec
	payload    prometheus.Histogram
}

// NewCollector creates the metrics for one device and registers them with reg
func NewCollector(device string, reg prometheus.Registerer) (*Collector, error) {
	labels := prometheus.Labels{"device": device}
	c := &Collector{
		device: device,
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "frames",
				Name:        "decoded_total",
				Help:        "Frames decoded, by protocol version.",
				ConstLabels: labels,
			},
			[]string{"version"},
		),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "frames",
				Name:        "rejected_total",
				Help:        "Frames rejected, by failed check.",
				ConstLabels: labels,
			},
			[]string{"check"},
		),
		processed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "frames",
				Name:        "processed_total",
				Help:        "Frames run through the device model, by whether a route matched.",
				ConstLabels: labels,
			},
			[]string{"matched"},
		),
		updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "properties",
				Name:        "changes_total",
				Help:        "Property value changes.",
				ConstLabels: labels,
			},
			[]string{"property"},
		),
		properties: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "properties",
				Name:        "value",
				Help:        "Current value of numeric and boolean properties.",
				ConstLabels: labels,
			},
			[]string{"property"},
		),
		payload: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "frames",
				Name:        "payload_bytes",
				Help:        "Payload size of decoded frames.",
				ConstLabels: labels,
				Buckets:     prometheus.ExponentialBuckets(8, 2, 8),
			},
		),
	}

	for _, col := range []prometheus.Collector{c.frames, c.rejected, c.processed, c.updates, c.properties, c.payload} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) FrameDecoded(p *efpacket.Packet, err error) {
	if err != nil {
		check := "unknown"
		if ch, ok := efpacket.CheckOf(err); ok {
			check = efpacket.FormatCheck(ch)
		}
		c.rejected.WithLabelValues(check).Inc()
		return
	}
	c.frames.WithLabelValues(strconv.Itoa(int(p.Version()))).Inc()
	c.payload.Observe(float64(p.PayloadLen()))
}

func (c *Collector) FrameProcessed(_ *efpacket.Packet, matched bool) {
	c.processed.WithLabelValues(strconv.FormatBool(matched)).Inc()
}

func (c *Collector) PropertyChanged(name string, value any) {
	c.updates.WithLabelValues(name).Inc()
	if f, ok := gaugeValue(value); ok {
		c.properties.WithLabelValues(name).Set(f)
	} else {
		c.properties.DeleteLabelValues(name)
	}
}

func gaugeValue(v any) (float64, bool) {
	switch n := v.(type) {
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
