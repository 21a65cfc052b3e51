package samplestream

import (
	"errors"
	"fmt"
	"time"

	"github.com/BertoldVdb/go-icm42670p/sampler"
	"github.com/fxamacker/cbor/v2"
	"github.com/sigurn/crc8"
)

// FrameSync is the first byte of every frame.
const FrameSync = 0xA5

var (
	ErrorFrameSync   = errors.New("Frame does not start with sync byte")
	ErrorFrameLength = errors.New("Frame length is invalid")
	ErrorFrameCRC    = errors.New("Frame CRC mismatch")
)

var crcTable *crc8.Table

var frameEncMode cbor.EncMode

func init() {
	crcParam := crc8.Params{
		Poly: 0x9B,
		Init: 0x12,
		Name: "CRC-8/Sample",
	}
	crcTable = crc8.MakeTable(crcParam)

	var err error
	frameEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("Failed to create CBOR encoder mode: %v", err))
	}
}

type framePayload struct {
	Seq  uint64 `cbor:"1,keyasint"`
	Time int64  `cbor:"2,keyasint"`
	X    uint16 `cbor:"3,keyasint"`
	Y    uint16 `cbor:"4,keyasint"`
	Z    uint16 `cbor:"5,keyasint"`
}

// EncodeFrame serializes s as: sync, payload length, CBOR payload, CRC-8.
// The CRC covers the length byte and the payload.
func EncodeFrame(s sampler.Sample) ([]byte, error) {
	payload, err := frameEncMode.Marshal(framePayload{
		Seq:  s.Seq,
		Time: s.Time.UnixNano(),
		X:    s.X,
		Y:    s.Y,
		Z:    s.Z,
	})
	if err != nil {
		return nil, err
	}
	if len(payload) > 255 {
		return nil, ErrorFrameLength
	}

	frame := make([]byte, 0, len(payload)+3)
	frame = append(frame, FrameSync, byte(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, crc8.Checksum(frame[1:], crcTable))
	return frame, nil
}

// DecodeFrame is the inverse of EncodeFrame.
func DecodeFrame(frame []byte) (sampler.Sample, error) {
	if len(frame) < 3 {
		return sampler.Sample{}, ErrorFrameLength
	}
	if frame[0] != FrameSync {
		return sampler.Sample{}, ErrorFrameSync
	}
	if int(frame[1])+3 != len(frame) {
		return sampler.Sample{}, ErrorFrameLength
	}
	if crc8.Checksum(frame[1:len(frame)-1], crcTable) != frame[len(frame)-1] {
		return sampler.Sample{}, ErrorFrameCRC
	}

	var p framePayload
	if err := cbor.Unmarshal(frame[2:len(frame)-1], &p); err != nil {
		return sampler.Sample{}, err
	}

	return sampler.Sample{
		Seq:  p.Seq,
		Time: time.Unix(0, p.Time),
		X:    p.X,
		Y:    p.Y,
		Z:    p.Z,
	}, nil
}
