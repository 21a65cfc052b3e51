//go:build linux

package main

import (
	"github.com/BertoldVdb/go-icm42670p/config"
	"github.com/BertoldVdb/go-icm42670p/logrusconfig"
	"github.com/BertoldVdb/go-icm42670p/sampledns"
	"github.com/BertoldVdb/go-icm42670p/sampler"
	"github.com/BertoldVdb/go-icm42670p/samplestream"
	"github.com/sirupsen/logrus"
)

// openListeners binds the UDP sockets of the enabled stream and DNS
// responder. A disabled component is returned as nil. On error nothing is
// left bound.
func openListeners(cfg config.Config, samp *sampler.Sampler, log *logrus.Entry) (*samplestream.Stream, *sampledns.Responder, error) {
	var stream *samplestream.Stream
	if cfg.Stream.Listen != "" {
		stream = samplestream.New(samp, logrusconfig.Component(log, "stream"))
		stream.TimeoutInterval = cfg.Stream.TimeoutInterval
		if err := stream.Listen(cfg.Stream.Listen); err != nil {
			return nil, nil, err
		}
	}

	var responder *sampledns.Responder
	if cfg.DNS.Listen != "" {
		responder = sampledns.New(cfg.DNS.Name, samp, logrusconfig.Component(log, "dns"))
		if err := responder.Listen(cfg.DNS.Listen); err != nil {
			if stream != nil {
				stream.Close()
			}
			return nil, nil, err
		}
	}

	return stream, responder, nil
}
