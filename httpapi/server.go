// Package httpapi serves the latest accelerometer sample over HTTP and
// streams new samples over a websocket.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/BertoldVdb/go-icm42670p/logrusconfig"
	"github.com/BertoldVdb/go-icm42670p/sampler"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Source is implemented by sampler.Sampler and sampler.Feed.
type Source interface {
	Latest() (sampler.Sample, bool)
	WaitNewer(ctx context.Context, seq uint64) (sampler.Sample, error)
}

const writeTimeout = 5 * time.Second

type Server struct {
	// Stats is optional and backs /stats.
	Stats      func() sampler.Stats
	Logger     *logrus.Entry
	ListenPort int

	source   Source
	upgrader websocket.Upgrader

	mutex  sync.Mutex
	server *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

func New(source Source, listenPort int, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logrusconfig.Discard()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		Logger:     logger,
		ListenPort: listenPort,
		source:     source,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Handler returns the routes wrapped in the request logger.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/accel", s.handleAccel)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/ws", s.handleWebsocket)
	return logRequests(s.Logger, mux)
}

func writeJSON(w http.ResponseWriter, code int, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(value)
}

func (s *Server) handleAccel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sample, ok := s.source.Latest()
	if !ok {
		http.Error(w, "No sample available yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.Stats == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.Stats())
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	log := loggerFromRequest(r, s.Logger)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	/* Detect the peer going away */
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	log.Info("Websocket client connected")
	defer log.Info("Websocket client disconnected")

	var seq uint64
	if sample, ok := s.source.Latest(); ok {
		if err := s.sendSample(conn, sample); err != nil {
			return
		}
		seq = sample.Seq
	}

	for {
		sample, err := s.source.WaitNewer(ctx, seq)
		if err != nil {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		}
		if err := s.sendSample(conn, sample); err != nil {
			return
		}
		seq = sample.Seq
	}
}

func (s *Server) sendSample(conn *websocket.Conn, sample sampler.Sample) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(sample)
}

// Run serves until Close is called.
func (s *Server) Run() error {
	s.mutex.Lock()
	if s.ctx.Err() != nil {
		s.mutex.Unlock()
		return nil
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.ListenPort),
		Handler: s.Handler(),
	}
	server := s.server
	s.mutex.Unlock()

	s.Logger.Infof("Serving samples on http://0.0.0.0:%d/accel", s.ListenPort)

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.cancel()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(context.Background())
}
