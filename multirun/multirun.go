// Package multirun runs the components of the daemon side by side and
// stops all of them when one fails or a signal arrives.
package multirun

import (
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/BertoldVdb/go-icm42670p/logrusconfig"
	"github.com/sirupsen/logrus"
)

var (
	ErrorClosed = errors.New("The multirun was closed")
)

// Runnable specifies an object with a blocking Run method and a Close method that makes Run return.
type Runnable interface {
	Run() error
	Close() error
}

// RunnableReady is a Runnable that signals when it is up, so the next item
// is only started after it.
type RunnableReady interface {
	Run(ready func()) error
	Close() error
}

type wrapperRunnable struct {
	item Runnable
}

func (w *wrapperRunnable) Run(ready func()) error {
	ready()
	return w.item.Run()
}

func (w *wrapperRunnable) Close() error {
	return w.item.Close()
}

type entry struct {
	name    string
	item    RunnableReady
	running bool
}

// MultiRun runs multiple named items
type MultiRun struct {
	sync.Mutex

	Logger *logrus.Entry

	items   []*entry
	stopped chan (int)

	closeOnce sync.Once
	closed    chan (struct{})
	closeErr  error
}

func New(logger *logrus.Entry) *MultiRun {
	if logger == nil {
		logger = logrusconfig.Discard()
	}
	return &MultiRun{
		Logger: logger,
		closed: make(chan (struct{})),
	}
}

func (m *MultiRun) RegisterRunnableReady(name string, item RunnableReady) {
	m.Lock()
	m.items = append(m.items, &entry{name: name, item: item})
	m.Unlock()
}

func (m *MultiRun) RegisterRunnable(name string, item Runnable) {
	m.RegisterRunnableReady(name, &wrapperRunnable{item: item})
}

func (m *MultiRun) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// Run starts the items in registration order, each after the previous one
// reported ready, and waits for all of them. If one returns an error, the
// others are closed and that error is returned.
func (m *MultiRun) Run(ready func()) error {
	/* Don't do work if we are closed already */
	if m.isClosed() {
		return ErrorClosed
	}

	readyChan := make(chan (struct{}), 1)
	readyFunc := func() {
		select {
		case readyChan <- struct{}{}:
		default:
		}
	}

	var wg sync.WaitGroup
	var resultMutex sync.Mutex
	var result error

	m.Lock()
	items := m.items
	m.stopped = make(chan (int), len(items))
	m.Unlock()

loop:
	for i, e := range items {
		wg.Add(1)
		m.Lock()
		e.running = true
		m.Unlock()

		m.Logger.Debugf("Starting %s", e.name)

		go func(index int, e *entry) {
			defer wg.Done()

			err := e.item.Run(readyFunc)
			m.stopped <- index

			if err != nil {
				m.Logger.WithError(err).Errorf("%s stopped", e.name)

				resultMutex.Lock()
				if result == nil {
					result = err
				}
				resultMutex.Unlock()

				m.Close()
			} else {
				m.Logger.Debugf("%s stopped", e.name)
			}
		}(i, e)

		select {
		/* Handle closing */
		case <-m.closed:
			break loop

		/* Handle ready */
		case <-readyChan:
		}
	}

	if !m.isClosed() && ready != nil {
		ready()
	}

	wg.Wait()

	if m.isClosed() && result == nil {
		result = ErrorClosed
	}

	return result
}

// Close closes all items in reverse start order, waiting for each one's
// Run to return before closing the next. Only the first call does work.
func (m *MultiRun) Close() error {
	m.closeOnce.Do(func() {
		close(m.closed)

		m.Lock()
		items := m.items
		m.Unlock()

		for i := len(items) - 1; i >= 0; i-- {
			e := items[i]
			err := e.item.Close()
			if err != nil {
				m.Logger.WithError(err).Warnf("Closing %s failed", e.name)
				if m.closeErr == nil {
					m.closeErr = err
				}
			}

			m.Lock()
			for e.running {
				m.Unlock()
				index := <-m.stopped
				m.Lock()
				items[index].running = false
			}
			m.Unlock()
		}
	})

	return m.closeErr
}

// HandleSIGTERM closes m on SIGINT or SIGTERM. A second signal, or a
// shutdown taking over five seconds, exits the process.
func (m *MultiRun) HandleSIGTERM() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-c
		m.Logger.Infof("Received %s, shutting down", sig)
		go func() {
			select {
			case <-c:
				m.Logger.Error("Pressed ^C a second time, quitting right away.")
			case <-time.After(5 * time.Second):
				m.Logger.Error("Timeout during shutdown, quitting with dirty state.")
			}
			os.Exit(1)
		}()
		m.Close()
	}()
}
