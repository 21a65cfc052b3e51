package sampler

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BertoldVdb/go-icm42670p/icm42670p"
	"github.com/BertoldVdb/go-icm42670p/icm42670p/i2ctest"
	"github.com/BertoldVdb/go-icm42670p/logrusconfig"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSampler(t *testing.T, interval time.Duration) (*Sampler, *i2ctest.Bus) {
	bus := i2ctest.New(uint16(icm42670p.AddressAD0))
	d, err := icm42670p.New(bus, icm42670p.AddressAD0)
	require.NoError(t, err)
	require.NoError(t, d.SetAccelLowNoiseMode())

	return New(d, interval, logrusconfig.Component(nil, "sampler")), bus
}

func setAxes(bus *i2ctest.Bus, x, y, z uint16) {
	a := uint16(icm42670p.AddressAD0)
	bus.SetRegister(a, uint8(icm42670p.RegAccelDataX1), uint8(x>>8))
	bus.SetRegister(a, uint8(icm42670p.RegAccelDataX0), uint8(x))
	bus.SetRegister(a, uint8(icm42670p.RegAccelDataY1), uint8(y>>8))
	bus.SetRegister(a, uint8(icm42670p.RegAccelDataY0), uint8(y))
	bus.SetRegister(a, uint8(icm42670p.RegAccelDataZ1), uint8(z>>8))
	bus.SetRegister(a, uint8(icm42670p.RegAccelDataZ0), uint8(z))
}

func TestSampleOnce(t *testing.T) {
	s, bus := newTestSampler(t, time.Hour)
	setAxes(bus, 0x1234, 0xFFFF, 0x0800)

	sample, err := s.SampleOnce()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sample.Seq)
	assert.Equal(t, uint16(0x1234), sample.X)
	assert.Equal(t, uint16(0xFFFF), sample.Y)
	assert.Equal(t, uint16(0x0800), sample.Z)
	assert.False(t, sample.Time.IsZero())

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, sample, latest)
	assert.Equal(t, Stats{Samples: 1}, s.Stats())
}

func TestSampleOnceBusError(t *testing.T) {
	s, bus := newTestSampler(t, time.Hour)
	setAxes(bus, 1, 2, 3)
	bus.Fail(uint16(icm42670p.AddressAD0), uint8(icm42670p.RegAccelDataY0), i2ctest.ErrorNack)

	_, err := s.SampleOnce()
	require.Error(t, err)
	assert.True(t, errors.Is(err, i2ctest.ErrorNack))

	_, ok := s.Latest()
	assert.False(t, ok, "A failed read was published")

	stats := s.Stats()
	assert.Equal(t, uint64(0), stats.Samples)
	assert.Equal(t, uint64(1), stats.BusErrors)
	assert.Contains(t, stats.LastError, "ACCEL_DATA_Y0")

	bus.Fail(uint16(icm42670p.AddressAD0), uint8(icm42670p.RegAccelDataY0), nil)
	sample, err := s.SampleOnce()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sample.Seq)
	assert.Equal(t, uint16(2), sample.Y)
}

func TestSampleOnceAfterClose(t *testing.T) {
	s, bus := newTestSampler(t, time.Hour)
	setAxes(bus, 1, 2, 3)

	require.NoError(t, s.Close())

	sample, err := s.SampleOnce()
	assert.Equal(t, ErrorClosed, err)
	assert.Equal(t, Sample{}, sample)
	assert.Equal(t, Stats{}, s.Stats())
}

func TestSampleLoggedAtInfo(t *testing.T) {
	bus := i2ctest.New(uint16(icm42670p.AddressAD0))
	d, err := icm42670p.New(bus, icm42670p.AddressAD0)
	require.NoError(t, err)
	setAxes(bus, 0xFFFF, 2, 3)

	var buf bytes.Buffer
	logger := logrus.New()
	logger.Out = &buf
	logger.SetLevel(logrus.InfoLevel)

	s := New(d, time.Hour, logrus.NewEntry(logger))
	_, err = s.SampleOnce()
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "X=-1 Y=2 Z=3")
}

func TestRunAndClose(t *testing.T) {
	s, bus := newTestSampler(t, 10*time.Millisecond)
	setAxes(bus, 7, 8, 9)

	done := make(chan error)
	go func() {
		done <- s.Run()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sample, err := s.WaitNewer(ctx, 2)
	require.NoError(t, err)
	assert.True(t, sample.Seq > 2)
	assert.Equal(t, uint16(7), sample.X)

	require.NoError(t, s.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}

	_, err = s.WaitNewer(context.Background(), sample.Seq+1000)
	assert.Equal(t, ErrorClosed, err)
}

func TestDefaultInterval(t *testing.T) {
	s := New(nil, 0, nil)
	assert.Equal(t, DefaultInterval, s.Interval)
}
