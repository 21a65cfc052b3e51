// Package samplestream sends every new sample as a UDP datagram to all
// clients that recently sent a datagram to the stream socket.
package samplestream

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/BertoldVdb/go-icm42670p/logrusconfig"
	"github.com/BertoldVdb/go-icm42670p/sampler"
	"github.com/sirupsen/logrus"
)

// Source is implemented by sampler.Sampler and sampler.Feed.
type Source interface {
	WaitNewer(ctx context.Context, seq uint64) (sampler.Sample, error)
}

type client struct {
	lastMessage time.Time
	addr        *net.UDPAddr
}

// DefaultTimeoutInterval is used when TimeoutInterval is not positive.
const DefaultTimeoutInterval = 30 * time.Second

type Stream struct {
	sync.RWMutex

	clients map[string]*client
	socket  *net.UDPConn
	source  Source

	// TimeoutInterval is how long a client stays subscribed after its last
	// datagram.
	TimeoutInterval time.Duration
	Logger          *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
}

func New(source Source, logger *logrus.Entry) *Stream {
	if logger == nil {
		logger = logrusconfig.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Stream{
		clients:         make(map[string]*client),
		source:          source,
		TimeoutInterval: DefaultTimeoutInterval,
		Logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Listen binds the stream socket. It must be called before Run.
func (s *Stream) Listen(addr string) error {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}

	socket, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return err
	}

	s.Lock()
	s.socket = socket
	s.Unlock()
	return nil
}

func (s *Stream) LocalAddr() net.Addr {
	s.RLock()
	defer s.RUnlock()
	if s.socket == nil {
		return nil
	}
	return s.socket.LocalAddr()
}

// NumClients returns the number of subscribed clients.
func (s *Stream) NumClients() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.clients)
}

func (s *Stream) timeoutHandler(timeout time.Duration) {
	tick := timeout / 2
	if tick <= 0 {
		tick = timeout
	}
	t := time.NewTicker(tick)
	defer t.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
		}

		s.Lock()
		for key, c := range s.clients {
			if time.Since(c.lastMessage) > timeout {
				delete(s.clients, key)
				s.Logger.Debugf("Client %s timed out", key)
			}
		}
		s.Unlock()
	}
}

func (s *Stream) readHandler() {
	var lbuf [64]byte

	for {
		_, addr, err := s.socket.ReadFromUDP(lbuf[:])
		if err != nil {
			return
		}

		key := addr.String()

		s.Lock()
		c, ok := s.clients[key]
		if !ok {
			c = &client{addr: addr}
			s.clients[key] = c
			s.Logger.Infof("Client %s subscribed", key)
		}
		c.lastMessage = time.Now()
		s.Unlock()
	}
}

func (s *Stream) send(frame []byte) {
	s.RLock()
	defer s.RUnlock()

	for key, c := range s.clients {
		if _, err := s.socket.WriteToUDP(frame, c.addr); err != nil {
			s.Logger.WithError(err).Debugf("Sending to %s failed", key)
		}
	}
}

// Run forwards samples until Close is called.
func (s *Stream) Run() error {
	if s.LocalAddr() == nil {
		return errors.New("Stream socket is not bound")
	}

	timeout := s.TimeoutInterval
	if timeout <= 0 {
		timeout = DefaultTimeoutInterval
	}

	go s.timeoutHandler(timeout)
	go s.readHandler()

	var seq uint64
	for {
		sample, err := s.source.WaitNewer(s.ctx, seq)
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, sampler.ErrorClosed) {
				return nil
			}
			return err
		}
		seq = sample.Seq

		frame, err := EncodeFrame(sample)
		if err != nil {
			s.Logger.WithError(err).Warn("Encoding sample failed")
			continue
		}
		s.send(frame)
	}
}

func (s *Stream) Close() error {
	s.cancel()

	s.RLock()
	socket := s.socket
	s.RUnlock()

	if socket != nil {
		return socket.Close()
	}
	return nil
}
