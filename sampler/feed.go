package sampler

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrorClosed = errors.New("Sample feed is closed")

// Sample is one accelerometer reading in raw counts. Seq starts at 1 and
// increases by one for every published sample.
type Sample struct {
	Seq  uint64    `json:"seq"`
	Time time.Time `json:"time"`
	X    uint16    `json:"x"`
	Y    uint16    `json:"y"`
	Z    uint16    `json:"z"`
}

// Feed holds the most recent Sample and lets readers wait for a newer one.
// The zero value is ready to use.
type Feed struct {
	sync.Mutex
	sample Sample

	updateChan chan (struct{})
	closed     bool
}

func (f *Feed) closeChan() {
	if f.updateChan != nil {
		close(f.updateChan)
		f.updateChan = nil
	}
}

// Publish stores s as the latest sample, assigning its sequence number.
// A closed feed rejects the sample with ErrorClosed.
func (f *Feed) Publish(s Sample) (Sample, error) {
	f.Lock()
	defer f.Unlock()

	if f.closed {
		return Sample{}, ErrorClosed
	}

	s.Seq = f.sample.Seq + 1
	f.sample = s
	f.closeChan()
	return s, nil
}

// Close wakes all waiters, which then return ErrorClosed.
func (f *Feed) Close() {
	f.Lock()
	defer f.Unlock()
	f.closed = true
	f.closeChan()
}

// Latest returns the most recent sample. ok is false if nothing was
// published yet.
func (f *Feed) Latest() (s Sample, ok bool) {
	f.Lock()
	defer f.Unlock()
	return f.sample, f.sample.Seq > 0
}

// WaitNewer blocks until a sample with a sequence number above seq is
// available.
func (f *Feed) WaitNewer(ctx context.Context, seq uint64) (Sample, error) {
	for {
		f.Lock()

		if f.closed {
			f.Unlock()
			return Sample{}, ErrorClosed
		}

		if f.sample.Seq > seq {
			s := f.sample
			f.Unlock()
			return s, nil
		}

		if f.updateChan == nil {
			f.updateChan = make(chan (struct{}))
		}
		c := f.updateChan
		f.Unlock()

		select {
		case <-ctx.Done():
			return Sample{}, ctx.Err()
		case <-c:
		}
	}
}
