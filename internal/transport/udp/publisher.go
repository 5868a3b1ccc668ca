// SPDX-License-Identifier: MIT

// Package udp publishes classification results as binary datagrams.
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"meowsense/internal/classify"
	applog "meowsense/internal/log"
)

// PacketSender delivers one datagram.
type PacketSender interface {
	Send(data []byte) error
	Close() error
}

// Outcome codes carried in the packet header.
const (
	OutcomeClassified uint8 = iota
	OutcomeSilent
	OutcomeInvalidSpectrogram
	OutcomeInvalidData
)

var outcomeCodes = map[classify.Outcome]uint8{
	classify.OutcomeClassified:         OutcomeClassified,
	classify.OutcomeSilent:             OutcomeSilent,
	classify.OutcomeInvalidSpectrogram: OutcomeInvalidSpectrogram,
	classify.OutcomeInvalidData:        OutcomeInvalidData,
}

// HeaderSize is the packet length before the probabilities.
const HeaderSize = 4 + 8 + 2 + 1 + 1 + 2

/*
Packet layout, big-endian:

	| Field        | Type      | Bytes | Notes                       |
	|--------------|-----------|-------|-----------------------------|
	| Sequence     | uint32    | 4     | starts at 1 per publisher   |
	| Timestamp    | int64     | 8     | ns since epoch              |
	| Class index  | int16     | 2     | top class                   |
	| Confidence   | uint8     | 1     | percent, 0-100              |
	| Outcome      | uint8     | 1     | Outcome* code               |
	| Count        | uint16    | 2     | number of probabilities (N) |
	| Probabilities| []float32 | N*4   | in class order              |
*/

// PackResult writes one result into buf in the layout above.
func PackResult(buf *bytes.Buffer, seq uint32, timestamp int64, r classify.Result) error {
	if len(r.Probabilities) > 0xFFFF {
		return fmt.Errorf("too many probabilities for one packet: %d", len(r.Probabilities))
	}
	probs := make([]float32, len(r.Probabilities))
	for i, p := range r.Probabilities {
		probs[i] = float32(p)
	}

	header := struct {
		Seq        uint32
		Timestamp  int64
		Class      int16
		Confidence uint8
		Outcome    uint8
		Count      uint16
	}{
		Seq:        seq,
		Timestamp:  timestamp,
		Class:      int16(r.Index),
		Confidence: uint8(min(max(r.Confidence, 0), 100)),
		Outcome:    outcomeCodes[r.Outcome],
		Count:      uint16(len(probs)),
	}
	if err := binary.Write(buf, binary.BigEndian, header); err != nil {
		return err
	}
	return binary.Write(buf, binary.BigEndian, probs)
}

// ResultPublisher is a transport that sends each result as one packet.
type ResultPublisher struct {
	sender PacketSender

	mu           sync.Mutex
	sequenceNum  uint32
	packetBuffer *bytes.Buffer
}

// NewResultPublisher wraps sender.
func NewResultPublisher(sender PacketSender) (*ResultPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDP sender cannot be nil")
	}
	return &ResultPublisher{sender: sender, packetBuffer: new(bytes.Buffer)}, nil
}

// Send packs and sends data, which must be a classify.Result or a
// pointer to one.
func (p *ResultPublisher) Send(data any) error {
	var r classify.Result
	switch v := data.(type) {
	case classify.Result:
		r = v
	case *classify.Result:
		r = *v
	default:
		return fmt.Errorf("UDP publisher cannot send %T", data)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.sequenceNum++
	p.packetBuffer.Reset()
	if err := PackResult(p.packetBuffer, p.sequenceNum, time.Now().UnixNano(), r); err != nil {
		applog.Errorf("ResultPublisher: error packing result: %v", err)
		return err
	}
	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		return err
	}
	applog.Debugf("ResultPublisher: sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	return nil
}

// Close closes the sender.
func (p *ResultPublisher) Close() error {
	return p.sender.Close()
}
