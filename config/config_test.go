package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BertoldVdb/go-icm42670p/icm42670p"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	addr, err := cfg.DeviceAddress()
	require.NoError(t, err)
	assert.Equal(t, icm42670p.AddressAD0, addr)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
i2c:
  bus: 3
  address: ad1
sampler:
  interval: 100ms
dns:
  listen: ":5353"
mdns:
  enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.I2C.Bus)
	assert.Equal(t, 100*time.Millisecond, cfg.Sampler.Interval)
	assert.Equal(t, ":5353", cfg.DNS.Listen)
	assert.False(t, cfg.MDNS.Enabled)

	/* Untouched keys keep their defaults */
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "accel.imu.local", cfg.DNS.Name)

	addr, err := cfg.DeviceAddress()
	require.NoError(t, err)
	assert.Equal(t, icm42670p.AddressAD1, addr)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "i2c: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "i2c:\n  address: 0x42\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "sampler:\n  interval: 0s\n"))
	assert.Error(t, err)
}

func TestParseDeviceAddress(t *testing.T) {
	tests := []struct {
		in   string
		want icm42670p.DeviceAddress
		ok   bool
	}{
		{"ad0", icm42670p.AddressAD0, true},
		{"AD1", icm42670p.AddressAD1, true},
		{"0x68", icm42670p.AddressAD0, true},
		{"0x69", icm42670p.AddressAD1, true},
		{"105", icm42670p.AddressAD1, true},
		{"", icm42670p.AddressAD0, true},
		{"0x70", 0, false},
		{"ad2", 0, false},
	}

	for _, tc := range tests {
		got, err := ParseDeviceAddress(tc.in)
		if tc.ok {
			assert.NoError(t, err, tc.in)
			assert.Equal(t, tc.want, got, tc.in)
		} else {
			assert.Error(t, err, tc.in)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.HTTP.Port = 70000
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.DNS.Listen = ":53"
	cfg.DNS.Name = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.MDNS.Instance = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.MDNS.Enabled = false
	cfg.MDNS.Instance = ""
	assert.NoError(t, cfg.Validate())
}
