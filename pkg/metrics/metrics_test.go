// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/powerstat/pkg/efpacket"
)

func TestCollector_Frames(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector("delta2", reg)
	require.NoError(t, err)

	c.FrameDecoded(efpacket.NewPacket(0x02, 0x21, 0x20, 0x02, []byte{1, 2}, efpacket.WithVersion(efpacket.Version2)), nil)
	_, decodeErr := efpacket.Decode([]byte{0x00}, false)
	c.FrameDecoded(nil, decodeErr)
	c.FrameProcessed(nil, true)
	c.FrameProcessed(nil, false)
	c.FrameProcessed(nil, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.frames.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejected.WithLabelValues("PREFIX")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.processed.WithLabelValues("false")))
}

func TestCollector_Properties(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector("delta2", reg)
	require.NoError(t, err)

	c.PropertyChanged("usb_ports", true)
	c.PropertyChanged("battery_level", 87.5)
	c.PropertyChanged("battery_level", 88.0)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.properties.WithLabelValues("usb_ports")))
	assert.Equal(t, 88.0, testutil.ToFloat64(c.properties.WithLabelValues("battery_level")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.updates.WithLabelValues("battery_level")))
}

func TestNewCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector("delta2", reg)
	require.NoError(t, err)
	_, err = NewCollector("delta2", reg)
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector("delta2", reg)
	require.NoError(t, err)
	c.PropertyChanged("input_power", int64(230))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), `powerstat_properties_value{device="delta2",property="input_power"} 230`), string(body))
}
