// Package config holds the settings of the demo daemon. Values come from
// an optional YAML file and are then overridden by command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BertoldVdb/go-icm42670p/icm42670p"
	"gopkg.in/yaml.v3"
)

type I2COpt struct {
	Bus     int    `yaml:"bus"`
	Address string `yaml:"address"`
}

type SamplerOpt struct {
	Interval time.Duration `yaml:"interval"`
}

type HTTPOpt struct {
	Port int `yaml:"port"`
}

type StreamOpt struct {
	// Listen is the UDP address clients subscribe to. Empty disables the
	// stream.
	Listen          string        `yaml:"listen"`
	TimeoutInterval time.Duration `yaml:"timeout"`
}

type DNSOpt struct {
	Listen string `yaml:"listen"`
	Name   string `yaml:"name"`
}

type MDNSOpt struct {
	Enabled   bool   `yaml:"enabled"`
	Instance  string `yaml:"instance"`
	Interface string `yaml:"interface"`
}

type Config struct {
	I2C     I2COpt     `yaml:"i2c"`
	Sampler SamplerOpt `yaml:"sampler"`
	HTTP    HTTPOpt    `yaml:"http"`
	Stream  StreamOpt  `yaml:"stream"`
	DNS     DNSOpt     `yaml:"dns"`
	MDNS    MDNSOpt    `yaml:"mdns"`
}

func Default() Config {
	return Config{
		I2C: I2COpt{
			Bus:     1,
			Address: "ad0",
		},
		Sampler: SamplerOpt{
			Interval: 250 * time.Millisecond,
		},
		HTTP: HTTPOpt{
			Port: 8080,
		},
		Stream: StreamOpt{
			Listen:          ":5683",
			TimeoutInterval: 30 * time.Second,
		},
		DNS: DNSOpt{
			Name: "accel.imu.local",
		},
		MDNS: MDNSOpt{
			Enabled:  true,
			Instance: "icm42670p",
		},
	}
}

// Load reads path on top of the defaults. Keys missing from the file keep
// their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("Parsing %s failed: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// ParseDeviceAddress accepts "ad0", "ad1" or the numeric address.
func ParseDeviceAddress(s string) (icm42670p.DeviceAddress, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ad0", "":
		return icm42670p.AddressAD0, nil
	case "ad1":
		return icm42670p.AddressAD1, nil
	}

	v, err := strconv.ParseUint(s, 0, 16)
	if err == nil {
		switch icm42670p.DeviceAddress(v) {
		case icm42670p.AddressAD0, icm42670p.AddressAD1:
			return icm42670p.DeviceAddress(v), nil
		}
	}

	return 0, fmt.Errorf("Invalid device address %q: use ad0 (0x68) or ad1 (0x69)", s)
}

func (c *Config) DeviceAddress() (icm42670p.DeviceAddress, error) {
	return ParseDeviceAddress(c.I2C.Address)
}

func (c *Config) Validate() error {
	if c.I2C.Bus < 0 {
		return errors.New("I2C bus number must not be negative")
	}
	if _, err := c.DeviceAddress(); err != nil {
		return err
	}
	if c.Sampler.Interval <= 0 {
		return errors.New("Sample interval must be positive")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("Invalid HTTP port %d", c.HTTP.Port)
	}
	if c.Stream.Listen != "" && c.Stream.TimeoutInterval <= 0 {
		return errors.New("Stream client timeout must be positive")
	}
	if c.DNS.Listen != "" && c.DNS.Name == "" {
		return errors.New("DNS responder needs a name")
	}
	if c.MDNS.Enabled && c.MDNS.Instance == "" {
		return errors.New("mDNS advertisement needs an instance name")
	}
	return nil
}
