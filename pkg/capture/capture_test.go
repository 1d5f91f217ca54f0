// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture_test

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/powerstat/pkg/capture"
	"github.com/Thermoquad/powerstat/pkg/efpacket"
)

func TestWriterReader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := capture.NewWriter(&buf)
	require.NotEqual(t, uuid.Nil, w.Session())

	frame := efpacket.Encode(efpacket.NewPacket(0x02, 0x21, 0x20, 0x02, []byte{1, 2, 3}))
	cmd := efpacket.Encode(efpacket.NewPacket(0x21, 0x03, 0x20, 0x31, []byte{80}, efpacket.WithVersion(efpacket.Version2)))
	ts := time.Date(2025, 6, 1, 12, 30, 0, 123456789, time.UTC)

	require.NoError(t, w.WriteAt(ts, capture.Inbound, frame))
	require.NoError(t, w.WriteAt(ts.Add(time.Second), capture.Outbound, cmd))
	assert.Equal(t, 2, w.Count())

	entries, err := capture.ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.True(t, ts.Equal(entries[0].Time), "timestamp keeps nanoseconds")
	assert.Equal(t, w.Session(), entries[0].Session)
	assert.Equal(t, capture.Inbound, entries[0].Direction)
	assert.Equal(t, frame, entries[0].Data)
	assert.Equal(t, capture.Outbound, entries[1].Direction)
	assert.Equal(t, cmd, entries[1].Data)

	p, err := efpacket.Decode(entries[1].Data, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{80}, p.Payload())
}

func TestCreate_AppendsSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.cbor")

	first, err := capture.Create(path)
	require.NoError(t, err)
	require.NoError(t, first.Write(capture.Inbound, []byte{0xAA}))
	require.NoError(t, first.Close())

	second, err := capture.Create(path)
	require.NoError(t, err)
	require.NoError(t, second.Write(capture.Inbound, []byte{0xBB}))
	require.NoError(t, second.Close())
	assert.NotEqual(t, first.Session(), second.Session())

	r, err := capture.Open(path)
	require.NoError(t, err)
	defer r.Close()

	e, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, first.Session(), e.Session)
	e, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, second.Session(), e.Session)
	assert.Equal(t, []byte{0xBB}, e.Data)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_Garbage(t *testing.T) {
	_, err := capture.ReadAll(bytes.NewReader([]byte{0xFF, 0x00, 0x01}))
	assert.Error(t, err)
}

func TestOpen_Missing(t *testing.T) {
	_, err := capture.Open(filepath.Join(t.TempDir(), "missing.cbor"))
	assert.Error(t, err)
}

func TestDirection_String(t *testing.T) {
	assert.Equal(t, "in", capture.Inbound.String())
	assert.Equal(t, "out", capture.Outbound.String())
}
