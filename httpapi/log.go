package httpapi

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type requestObserver struct {
	http.ResponseWriter

	bytes int
	code  int
}

func (s *requestObserver) WriteHeader(code int) {
	s.ResponseWriter.WriteHeader(code)
	s.code = code
}

func (s *requestObserver) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n

	if s.code == 0 {
		s.code = 200
	}

	return n, err
}

// Hijack lets the websocket upgrader take over the connection.
func (s *requestObserver) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("Connection does not support hijacking")
	}
	s.code = http.StatusSwitchingProtocols
	return h.Hijack()
}

type contextKey int

const contextLogger contextKey = 1

// CorrelationHeader carries the request ID in both directions.
const CorrelationHeader = "X-Request-ID"

// logRequests tags every request with a correlation ID and logs it when
// the handler returns.
func logRequests(logger *logrus.Entry, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		begin := time.Now()

		id := r.Header.Get(CorrelationHeader)
		if len(id) == 0 {
			id = uuid.New().String()
		} else if len(id) > 40 {
			id = id[0:40]
		}
		w.Header().Set(CorrelationHeader, id)

		reqLogger := logger.WithField("request", id)

		ro := requestObserver{
			ResponseWriter: w,
		}

		next.ServeHTTP(&ro, r.WithContext(context.WithValue(r.Context(), contextLogger, reqLogger)))

		reqLogger.Debugf("HandlerCompleted [%s \"%s %s\" %d(%s) %dbytes %s \"%s\"]", r.RemoteAddr, r.Method, r.URL.RequestURI(), ro.code, http.StatusText(ro.code), ro.bytes, time.Since(begin).String(), r.UserAgent())
	})
}

// loggerFromRequest returns the logger attached by logRequests, or the
// fallback.
func loggerFromRequest(r *http.Request, fallback *logrus.Entry) *logrus.Entry {
	if l, ok := r.Context().Value(contextLogger).(*logrus.Entry); ok {
		return l
	}
	return fallback
}
