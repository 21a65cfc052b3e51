// Package sampledns answers DNS TXT queries for a single name with the
// latest accelerometer sample, so a reading can be fetched with dig.
package sampledns

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/BertoldVdb/go-icm42670p/logrusconfig"
	"github.com/BertoldVdb/go-icm42670p/sampler"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// Source is implemented by sampler.Sampler and sampler.Feed.
type Source interface {
	Latest() (sampler.Sample, bool)
}

type Responder struct {
	name   string
	source Source
	Logger *logrus.Entry

	mutex   sync.Mutex
	conn    net.PacketConn
	server  *dns.Server
	started bool
}

// New creates a responder for name, for example "accel.imu.local".
func New(name string, source Source, logger *logrus.Entry) *Responder {
	if logger == nil {
		logger = logrusconfig.Discard()
	}

	return &Responder{
		name:   dns.Fqdn(strings.ToLower(name)),
		source: source,
		Logger: logger,
	}
}

func (h *Responder) Name() string {
	return h.name
}

// TXT formats a sample the way it is returned in the TXT record.
func TXT(s sampler.Sample) []string {
	return []string{
		fmt.Sprintf("x=%d", s.X),
		fmt.Sprintf("y=%d", s.Y),
		fmt.Sprintf("z=%d", s.Z),
		fmt.Sprintf("seq=%d", s.Seq),
	}
}

// ServeDNS is the function that serves the DNS requests.
func (h *Responder) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	msg := dns.Msg{}
	msg.SetReply(r)
	msg.Authoritative = true

	if len(r.Question) != 1 {
		msg.Rcode = dns.RcodeFormatError
		w.WriteMsg(&msg)
		return
	}

	q := &r.Question[0]
	if strings.ToLower(q.Name) != h.name {
		msg.Rcode = dns.RcodeNameError
		w.WriteMsg(&msg)
		return
	}

	switch q.Qtype {
	case dns.TypeTXT, dns.TypeANY:
		if sample, ok := h.source.Latest(); ok {
			msg.Answer = append(msg.Answer, &dns.TXT{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeTXT, Class: q.Qclass, Ttl: 0},
				Txt: TXT(sample),
			})
		}
	}

	h.Logger.Debugf("Serving %s->%s: %d answers", w.RemoteAddr(), w.LocalAddr(), len(msg.Answer))

	w.WriteMsg(&msg)
}

// Listen binds the UDP socket. It must be called before Run.
func (h *Responder) Listen(addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}

	h.mutex.Lock()
	h.conn = conn
	h.server = &dns.Server{PacketConn: conn, Net: "udp", UDPSize: 4096, Handler: h}
	h.mutex.Unlock()
	return nil
}

func (h *Responder) LocalAddr() net.Addr {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.conn == nil {
		return nil
	}
	return h.conn.LocalAddr()
}

// Run serves queries until Close is called. ready is called once the
// server accepts queries.
func (h *Responder) Run(ready func()) error {
	h.mutex.Lock()
	server := h.server
	if server == nil {
		h.mutex.Unlock()
		return fmt.Errorf("DNS responder for %s is not bound", h.name)
	}
	server.NotifyStartedFunc = func() {
		h.mutex.Lock()
		h.started = true
		h.mutex.Unlock()

		h.Logger.Infof("Answering TXT %s on %s", h.name, h.conn.LocalAddr())
		if ready != nil {
			ready()
		}
	}
	h.mutex.Unlock()

	return server.ActivateAndServe()
}

func (h *Responder) Close() error {
	h.mutex.Lock()
	server := h.server
	started := h.started
	conn := h.conn
	h.mutex.Unlock()

	if server == nil {
		return nil
	}
	if !started {
		return conn.Close()
	}
	return server.Shutdown()
}
