package wire

import (
	"encoding/binary"

	"github.com/aethernet/aether/internal/aetherr"
)

// PType identifies the purpose of a Packet (spec §3, flags byte high
// nibble).
type PType uint8

const (
	PTypeData PType = iota
	PTypeAckOnly
	PTypeInitiation
	PTypeKeyExchange
	PTypeExtended
)

// PacketMeta is the in-memory-only bookkeeping a meta marker carries
// through the send loop's batch queue (spec §3). It is never
// serialized.
type PacketMeta struct {
	DelayMS    int64
	RetryCount int
}

// Packet is one framed unit exchanged over the wire (spec §3/§4.2).
type Packet struct {
	Type     PType
	HasAck   bool
	HasEnc   bool
	Sequence uint32
	Ack      Acknowledgment
	Payload  []byte

	// IsMeta and Meta are in-memory send-loop bookkeeping; Compile never
	// writes them to the wire and Parse never populates them.
	IsMeta bool
	Meta   PacketMeta
}

// NewPacket creates a Packet of the given type and sequence with an
// empty payload and no ack attached.
func NewPacket(t PType, seq uint32) *Packet {
	return &Packet{Type: t, Sequence: seq}
}

// NewMeta creates an in-memory meta marker packet; it is never compiled
// onto the wire (the send loop pops it by IsMeta before calling Compile).
func NewMeta(retryCount int, delayMS int64) *Packet {
	return &Packet{
		Type:   PTypeExtended,
		IsMeta: true,
		Meta:   PacketMeta{DelayMS: delayMS, RetryCount: retryCount},
	}
}

// AttachAck stamps an ack summary onto the packet, setting HasAck.
func (p *Packet) AttachAck(a Acknowledgment) {
	p.Ack = a
	p.HasAck = true
}

// SetEncrypted toggles the enc-present flag, used by the send loop once
// it has replaced Payload with AEAD ciphertext.
func (p *Packet) SetEncrypted(enc bool) {
	p.HasEnc = enc
}

const headerSize = 11 // sequence(4) + ack_begin(4) + ack_end(1) + flags(1) + miss_count(1)

// Compile produces the wire bytes for the packet (spec §4.2):
//
//	offset  size  field
//	0       4     sequence
//	4       4     ack.ack_begin
//	8       1     ack.ack_end
//	9       1     flags byte (p_type<<4 | ack<<3 | enc<<2)
//	10      1     miss_count
//	11      *     miss offsets (1 byte each)
//	...     *     payload
func (p *Packet) Compile() []byte {
	missCount := len(p.Ack.Miss)
	buf := make([]byte, headerSize+missCount+len(p.Payload))

	binary.BigEndian.PutUint32(buf[0:4], p.Sequence)
	binary.BigEndian.PutUint32(buf[4:8], p.Ack.AckBegin)
	buf[8] = p.Ack.AckEnd

	flags := byte(p.Type) << 4
	if p.HasAck {
		flags |= 1 << 3
	}
	if p.HasEnc {
		flags |= 1 << 2
	}
	buf[9] = flags
	buf[10] = byte(missCount)

	copy(buf[headerSize:headerSize+missCount], p.Ack.Miss)
	copy(buf[headerSize+missCount:], p.Payload)

	return buf
}

// Parse is the inverse of Compile. It validates length before indexing
// and returns a ParseError on any malformed input.
func Parse(data []byte) (*Packet, error) {
	if len(data) < headerSize {
		return nil, aetherr.New(aetherr.ParseError, "short header")
	}

	sequence := binary.BigEndian.Uint32(data[0:4])
	ackBegin := binary.BigEndian.Uint32(data[4:8])
	ackEnd := data[8]
	flags := data[9]
	missCount := int(data[10])

	if len(data) < headerSize+missCount {
		return nil, aetherr.New(aetherr.ParseError, "short miss list")
	}

	miss := make([]uint8, missCount)
	copy(miss, data[headerSize:headerSize+missCount])

	payload := make([]byte, len(data)-headerSize-missCount)
	copy(payload, data[headerSize+missCount:])

	p := &Packet{
		Type:     PType(flags >> 4),
		HasAck:   flags&(1<<3) != 0,
		HasEnc:   flags&(1<<2) != 0,
		Sequence: sequence,
		Ack: Acknowledgment{
			AckBegin: ackBegin,
			AckEnd:   ackEnd,
			Miss:     miss,
		},
		Payload: payload,
	}
	return p, nil
}

// NeedsAck reports whether a packet of this type must be retained in
// the send batch until the peer confirms it (spec §4.7).
func NeedsAck(p *Packet) bool {
	switch p.Type {
	case PTypeData, PTypeKeyExchange:
		return true
	default:
		return false
	}
}
