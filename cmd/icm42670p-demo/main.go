//go:build linux

// Command icm42670p-demo reads the accelerometer of an ICM-42670-P on a
// Linux I2C bus and publishes the raw counts over HTTP, websockets, UDP and
// DNS.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/BertoldVdb/go-icm42670p/advertise"
	"github.com/BertoldVdb/go-icm42670p/config"
	"github.com/BertoldVdb/go-icm42670p/httpapi"
	"github.com/BertoldVdb/go-icm42670p/icm42670p"
	"github.com/BertoldVdb/go-icm42670p/linux-pio/i2c"
	"github.com/BertoldVdb/go-icm42670p/logrusconfig"
	"github.com/BertoldVdb/go-icm42670p/multirun"
	"github.com/BertoldVdb/go-icm42670p/sampler"
	"github.com/sirupsen/logrus"
)

func main() {
	logrusconfig.InitParam()

	configFile := flag.String("config", "", "YAML configuration file")
	busID := flag.Int("bus", -1, "I2C bus number, /dev/i2c-N")
	address := flag.String("address", "", "Device address: ad0, ad1, 0x68 or 0x69")
	interval := flag.Duration("interval", 0, "Sample interval")
	httpPort := flag.Int("http", -1, "HTTP port")
	streamAddr := flag.String("stream", "", "UDP stream listen address")
	dnsAddr := flag.String("dns", "", "DNS TXT responder listen address")
	noMDNS := flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	flag.Parse()

	log := logrusconfig.GetLogger(logrus.InfoLevel)

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			log.WithError(err).Fatal("Loading configuration failed")
		}
	}

	if *busID >= 0 {
		cfg.I2C.Bus = *busID
	}
	if *address != "" {
		cfg.I2C.Address = *address
	}
	if *interval > 0 {
		cfg.Sampler.Interval = *interval
	}
	if *httpPort >= 0 {
		cfg.HTTP.Port = *httpPort
	}
	if *streamAddr != "" {
		cfg.Stream.Listen = *streamAddr
	}
	if *dnsAddr != "" {
		cfg.DNS.Listen = *dnsAddr
	}
	if *noMDNS {
		cfg.MDNS.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	if err := run(cfg, log); err != nil && !errors.Is(err, multirun.ErrorClosed) {
		log.WithError(err).Error("Stopped with error")
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logrus.Entry) error {
	addr, err := cfg.DeviceAddress()
	if err != nil {
		return err
	}

	bus, err := i2c.OpenBus(cfg.I2C.Bus)
	if err != nil {
		return err
	}
	defer bus.Close()

	imu, err := icm42670p.New(bus, addr)
	if err != nil {
		return err
	}

	id, err := imu.WhoAmI()
	if err != nil {
		return fmt.Errorf("Reading WHO_AM_I: %w", err)
	}
	if id != icm42670p.WhoAmIValue {
		log.Warnf("WHO_AM_I returned 0x%02X, expected 0x%02X", id, icm42670p.WhoAmIValue)
	}

	if err := imu.SetAccelLowNoiseMode(); err != nil {
		return fmt.Errorf("Enabling accelerometer: %w", err)
	}
	log.Infof("ICM42670P at %s on /dev/i2c-%d is sampling", addr, bus.ID())

	mr := multirun.New(logrusconfig.Component(log, "multirun"))

	samp := sampler.New(imu, cfg.Sampler.Interval, logrusconfig.Component(log, "sampler"))
	mr.RegisterRunnable("sampler", samp)

	web := httpapi.New(samp, cfg.HTTP.Port, logrusconfig.Component(log, "http"))
	web.Stats = samp.Stats
	mr.RegisterRunnable("http", web)

	stream, responder, err := openListeners(cfg, samp, log)
	if err != nil {
		return err
	}
	if stream != nil {
		mr.RegisterRunnable("stream", stream)
	}
	if responder != nil {
		mr.RegisterRunnableReady("dns", responder)
	}

	if cfg.MDNS.Enabled {
		adv := advertise.New(cfg.MDNS.Instance, cfg.HTTP.Port, addr, logrusconfig.Component(log, "mdns"))
		adv.Interface = cfg.MDNS.Interface
		mr.RegisterRunnableReady("mdns", adv)
	}

	mr.HandleSIGTERM()

	return mr.Run(func() {
		log.Info("All components started")
	})
}
