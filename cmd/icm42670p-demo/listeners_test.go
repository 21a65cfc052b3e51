//go:build linux

package main

import (
	"net"
	"testing"
	"time"

	"github.com/BertoldVdb/go-icm42670p/config"
	"github.com/BertoldVdb/go-icm42670p/icm42670p"
	"github.com/BertoldVdb/go-icm42670p/icm42670p/i2ctest"
	"github.com/BertoldVdb/go-icm42670p/logrusconfig"
	"github.com/BertoldVdb/go-icm42670p/sampler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSampler(t *testing.T) *sampler.Sampler {
	bus := i2ctest.New(uint16(icm42670p.AddressAD0))
	d, err := icm42670p.New(bus, icm42670p.AddressAD0)
	require.NoError(t, err)
	return sampler.New(d, time.Hour, nil)
}

func freeUDPAddr(t *testing.T) string {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := conn.LocalAddr().String()
	require.NoError(t, conn.Close())
	return addr
}

func TestOpenListeners(t *testing.T) {
	cfg := config.Default()
	cfg.Stream.Listen = "127.0.0.1:0"
	cfg.DNS.Listen = "127.0.0.1:0"

	stream, responder, err := openListeners(cfg, newTestSampler(t), logrusconfig.Discard())
	require.NoError(t, err)
	require.NotNil(t, stream)
	require.NotNil(t, responder)
	assert.NotNil(t, stream.LocalAddr())
	assert.NotNil(t, responder.LocalAddr())

	assert.NoError(t, stream.Close())
	assert.NoError(t, responder.Close())
}

func TestOpenListenersDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Stream.Listen = ""
	cfg.DNS.Listen = ""

	stream, responder, err := openListeners(cfg, newTestSampler(t), logrusconfig.Discard())
	require.NoError(t, err)
	assert.Nil(t, stream)
	assert.Nil(t, responder)
}

func TestOpenListenersReleasesStream(t *testing.T) {
	busy, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := config.Default()
	cfg.Stream.Listen = freeUDPAddr(t)
	cfg.DNS.Listen = busy.LocalAddr().String()

	stream, responder, err := openListeners(cfg, newTestSampler(t), logrusconfig.Discard())
	require.Error(t, err)
	assert.Nil(t, stream)
	assert.Nil(t, responder)

	/* The stream port must be free again */
	conn, err := net.ListenPacket("udp", cfg.Stream.Listen)
	require.NoError(t, err)
	conn.Close()
}
