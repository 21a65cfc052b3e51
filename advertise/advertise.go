// Package advertise announces the HTTP sample server over mDNS.
package advertise

import (
	"fmt"
	"net"
	"sync"

	"github.com/BertoldVdb/go-icm42670p/icm42670p"
	"github.com/BertoldVdb/go-icm42670p/logrusconfig"
	"github.com/enbility/zeroconf/v3"
	"github.com/sirupsen/logrus"
)

const (
	ServiceType = "_icm42670p._tcp"
	Domain      = "local"
)

type Advertiser struct {
	Instance string
	Port     int
	// Address is published so clients can tell several sensors apart.
	Address icm42670p.DeviceAddress
	// Interface restricts announcements to one network interface. Empty
	// means all interfaces.
	Interface string
	Logger    *logrus.Entry

	mutex   sync.Mutex
	server  *zeroconf.Server
	done    chan (struct{})
	stopped bool
}

func New(instance string, port int, address icm42670p.DeviceAddress, logger *logrus.Entry) *Advertiser {
	if logger == nil {
		logger = logrusconfig.Discard()
	}

	return &Advertiser{
		Instance: instance,
		Port:     port,
		Address:  address,
		Logger:   logger,
		done:     make(chan (struct{})),
	}
}

// TXTRecords returns the TXT strings attached to the service.
func (a *Advertiser) TXTRecords() []string {
	return []string{
		"addr=" + a.Address.String(),
		"path=/accel",
		"ws=/ws",
	}
}

func (a *Advertiser) interfaces() ([]net.Interface, error) {
	if a.Interface == "" {
		return nil, nil
	}

	iface, err := net.InterfaceByName(a.Interface)
	if err != nil {
		return nil, err
	}
	return []net.Interface{*iface}, nil
}

// Run registers the service and keeps it announced until Close is called.
func (a *Advertiser) Run(ready func()) error {
	ifaces, err := a.interfaces()
	if err != nil {
		return fmt.Errorf("Interface %s: %w", a.Interface, err)
	}

	server, err := zeroconf.Register(a.Instance, ServiceType, Domain, a.Port, a.TXTRecords(), ifaces)
	if err != nil {
		return fmt.Errorf("Registering mDNS service failed: %w", err)
	}

	a.mutex.Lock()
	if a.stopped {
		a.mutex.Unlock()
		server.Shutdown()
		return nil
	}
	a.server = server
	a.mutex.Unlock()

	a.Logger.Infof("Advertising %s.%s.%s on port %d", a.Instance, ServiceType, Domain, a.Port)
	if ready != nil {
		ready()
	}

	<-a.done

	server.Shutdown()
	return nil
}

func (a *Advertiser) Close() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if !a.stopped {
		a.stopped = true
		close(a.done)
	}
	return nil
}
