// Package sampler polls the accelerometer at a fixed interval and publishes
// the readings to any number of consumers.
package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/BertoldVdb/go-icm42670p/icm42670p"
	"github.com/BertoldVdb/go-icm42670p/logrusconfig"
	"github.com/sirupsen/logrus"
)

// DefaultInterval is used when New is given no interval.
const DefaultInterval = 250 * time.Millisecond

// Reader is the part of icm42670p.Device the sampler uses.
type Reader interface {
	ReadAccel() (icm42670p.AccelReading, error)
}

// Stats counts the outcome of all reads.
type Stats struct {
	Samples   uint64 `json:"samples"`
	BusErrors uint64 `json:"busErrors"`
	LastError string `json:"lastError,omitempty"`
}

// Sampler is the only user of its Reader, so all bus access is serialized
// through it.
type Sampler struct {
	Interval time.Duration
	Logger   *logrus.Entry

	readMutex sync.Mutex
	device    Reader
	feed      Feed

	statsMutex sync.Mutex
	stats      Stats
	failing    bool

	ctx    context.Context
	cancel context.CancelFunc
}

func New(device Reader, interval time.Duration, logger *logrus.Entry) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = logrusconfig.Discard()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Sampler{
		Interval: interval,
		Logger:   logger,
		device:   device,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SampleOnce reads all three axes and publishes the result. Bus errors are
// counted and returned; nothing is published for a failed read. After
// Close it returns ErrorClosed.
func (s *Sampler) SampleOnce() (Sample, error) {
	s.readMutex.Lock()
	reading, err := s.device.ReadAccel()
	now := time.Now()
	s.readMutex.Unlock()

	s.statsMutex.Lock()
	defer s.statsMutex.Unlock()

	if err != nil {
		s.stats.BusErrors++
		s.stats.LastError = err.Error()
		if !s.failing {
			s.Logger.WithError(err).Warn("Reading accelerometer failed")
		}
		s.failing = true
		return Sample{}, err
	}

	if s.failing {
		s.Logger.Info("Accelerometer reads recovered")
	}
	s.failing = false

	sample, err := s.feed.Publish(Sample{
		Time: now,
		X:    reading.X,
		Y:    reading.Y,
		Z:    reading.Z,
	})
	if err != nil {
		return Sample{}, err
	}
	s.stats.Samples++

	s.Logger.Infof("Sample %d: X=%d Y=%d Z=%d", sample.Seq,
		icm42670p.Signed(sample.X), icm42670p.Signed(sample.Y), icm42670p.Signed(sample.Z))

	return sample, nil
}

// Run samples until Close is called.
func (s *Sampler) Run() error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	for {
		s.SampleOnce()

		select {
		case <-s.ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// Close stops Run and wakes all waiters.
func (s *Sampler) Close() error {
	s.cancel()
	s.feed.Close()
	return nil
}

func (s *Sampler) Latest() (Sample, bool) {
	return s.feed.Latest()
}

func (s *Sampler) WaitNewer(ctx context.Context, seq uint64) (Sample, error) {
	return s.feed.WaitNewer(ctx, seq)
}

func (s *Sampler) Stats() Stats {
	s.statsMutex.Lock()
	defer s.statsMutex.Unlock()
	return s.stats
}
