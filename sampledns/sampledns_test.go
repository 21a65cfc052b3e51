package sampledns

import (
	"testing"
	"time"

	"github.com/BertoldVdb/go-icm42670p/sampler"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startResponder(t *testing.T, feed *sampler.Feed) *Responder {
	h := New("Accel.IMU.local", feed, nil)
	require.NoError(t, h.Listen("127.0.0.1:0"))

	ready := make(chan struct{})
	go h.Run(func() { close(ready) })

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("Responder did not start")
	}

	t.Cleanup(func() { h.Close() })
	return h
}

func query(t *testing.T, h *Responder, name string, qtype uint16) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(name, qtype)

	c := new(dns.Client)
	in, _, err := c.Exchange(m, h.LocalAddr().String())
	require.NoError(t, err)
	return in
}

func TestName(t *testing.T) {
	h := New("Accel.IMU.local", &sampler.Feed{}, nil)
	assert.Equal(t, "accel.imu.local.", h.Name())
}

func TestTXT(t *testing.T) {
	feed := &sampler.Feed{}
	h := startResponder(t, feed)

	in := query(t, h, "accel.imu.local.", dns.TypeTXT)
	assert.Equal(t, dns.RcodeSuccess, in.Rcode)
	assert.Empty(t, in.Answer)

	feed.Publish(sampler.Sample{X: 0x1234, Y: 1, Z: 65535})

	in = query(t, h, "ACCEL.imu.local.", dns.TypeTXT)
	require.Len(t, in.Answer, 1)
	txt, ok := in.Answer[0].(*dns.TXT)
	require.True(t, ok)
	assert.Equal(t, []string{"x=4660", "y=1", "z=65535", "seq=1"}, txt.Txt)
	assert.True(t, in.Authoritative)
}

func TestOtherName(t *testing.T) {
	h := startResponder(t, &sampler.Feed{})

	in := query(t, h, "example.com.", dns.TypeTXT)
	assert.Equal(t, dns.RcodeNameError, in.Rcode)
}

func TestOtherType(t *testing.T) {
	feed := &sampler.Feed{}
	feed.Publish(sampler.Sample{X: 1})
	h := startResponder(t, feed)

	in := query(t, h, "accel.imu.local.", dns.TypeA)
	assert.Equal(t, dns.RcodeSuccess, in.Rcode)
	assert.Empty(t, in.Answer)
}

func TestRunWithoutListen(t *testing.T) {
	h := New("a.b", &sampler.Feed{}, nil)
	assert.Error(t, h.Run(nil))
	assert.NoError(t, h.Close())
}
