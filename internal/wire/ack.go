// Package wire implements the acknowledgment bookkeeping model and the
// packet codec from spec §4.1–§4.2. It has no concurrency of its own —
// every type here is owned and locked by exactly one caller (the Link's
// send/receive loops) per spec §5.
package wire

import (
	"github.com/aethernet/aether/internal/aetherr"
)

// MaxWindow bounds the size of a single acknowledgment window. The open
// question in spec §9 ("is MAX_WINDOW 65000 or 255?") is resolved in
// favor of the 8-bit wire encoding (spec §4.2's recommendation): each
// Acknowledgment's ack_end and miss offsets are single bytes, so a
// sender-side AckList can never need to represent more than 255 offsets
// above its ack_begin.
const MaxWindow = 255

// Acknowledgment is the compact, wire-shaped summary of one observation
// window (spec §3): everything below ack_begin is implicitly received,
// everything in (ack_begin, ack_begin+ack_end] is received unless its
// offset appears in Miss.
type Acknowledgment struct {
	AckBegin uint32
	AckEnd   uint8
	Miss     []uint8
}

// AckList is the receiver-side structure: the set of sequence numbers
// this peer has received from the other side, compacted so that a long
// run of received sequences collapses into an advancing AckBegin.
type AckList struct {
	ackBegin uint32
	// present maps an offset in (0, ackEnd] to "received". Offset 0 is
	// always implicitly received (it is ackBegin itself).
	present map[uint8]bool
	ackEnd  uint8
}

// NewAckList creates an AckList that treats begin and everything below
// it as already received, so its first expected sequence is begin+1.
func NewAckList(begin uint32) *AckList {
	return &AckList{
		ackBegin: begin,
		present:  make(map[uint8]bool),
	}
}

// Insert marks seq as received. Sequences at or below the current
// ackBegin are a no-op (already implied). A sequence further than
// MaxWindow above ackBegin is a WindowOverflow — the sender must not
// let its outstanding window grow that large.
func (a *AckList) Insert(seq uint32) error {
	if seq <= a.ackBegin {
		return nil
	}
	offset := seq - a.ackBegin
	if offset > MaxWindow {
		return aetherr.New(aetherr.WindowOverflow, "")
	}
	n := uint8(offset)
	if n > a.ackEnd {
		a.ackEnd = n
	}
	a.present[n] = true
	a.compact()
	return nil
}

// compact advances ackBegin over every contiguously-received offset
// starting at 1, shrinking the sparse map as it goes (spec §4.1).
func (a *AckList) compact() {
	for a.present[1] {
		delete(a.present, 1)
		a.ackBegin++
		a.ackEnd--
		shifted := make(map[uint8]bool, len(a.present))
		for off, v := range a.present {
			shifted[off-1] = v
		}
		a.present = shifted
	}
}

// Check reports whether seq has already been recorded as received.
func (a *AckList) Check(seq uint32) bool {
	if seq <= a.ackBegin {
		return true
	}
	offset := seq - a.ackBegin
	if offset > uint32(a.ackEnd) {
		return false
	}
	return a.present[uint8(offset)]
}

// Get enumerates the current window into an Acknowledgment, listing
// every offset in 1..=ackEnd that is not yet present as a miss.
func (a *AckList) Get() Acknowledgment {
	miss := make([]uint8, 0, a.ackEnd)
	for i := uint8(1); i <= a.ackEnd; i++ {
		if !a.present[i] {
			miss = append(miss, i)
		}
		if i == 255 {
			break // ackEnd is itself a uint8; guard the wraparound.
		}
	}
	return Acknowledgment{
		AckBegin: a.ackBegin,
		AckEnd:   a.ackEnd,
		Miss:     miss,
	}
}

// IsComplete reports whether the current window has no gaps.
func (a *AckList) IsComplete() bool {
	return len(a.Get().Miss) == 0
}

// AckCheck is the sender-side witness: which sequences has the peer
// confirmed it received? Unlike AckList it is not windowed — a sender
// must be able to track acknowledgment of its entire outstanding batch,
// and batches are bounded by window_size, not by the wire's 8-bit ack
// window, so the sparse set here keys on the full uint32 sequence.
type AckCheck struct {
	begin uint32
	seen  map[uint32]bool
}

// NewAckCheck creates an AckCheck that treats begin and everything below
// it as confirmed, so its first unacknowledged sequence is begin+1.
func NewAckCheck(begin uint32) *AckCheck {
	return &AckCheck{
		begin: begin,
		seen:  make(map[uint32]bool),
	}
}

// Insert records that seq has been confirmed received by the peer, then
// advances begin over any now-contiguous run.
func (c *AckCheck) Insert(seq uint32) {
	if seq > c.begin {
		c.seen[seq] = true
	}
	for c.Check(c.begin + 1) {
		delete(c.seen, c.begin+1)
		c.begin++
	}
}

// Check reports whether seq has been confirmed received.
func (c *AckCheck) Check(seq uint32) bool {
	if seq <= c.begin {
		return true
	}
	return c.seen[seq]
}

// Acknowledge merges an incoming Acknowledgment into the witness: every
// offset in the window not listed in Miss is marked received, and the
// catch-up range below AckBegin is marked received too (spec §4.1) —
// the peer's own AckBegin is itself a cumulative ack, so it advances
// this witness's begin directly instead of requiring per-sequence
// evidence for everything below it.
func (c *AckCheck) Acknowledge(a Acknowledgment) {
	if a.AckBegin > c.begin {
		c.begin = a.AckBegin
		for seq := range c.seen {
			if seq <= c.begin {
				delete(c.seen, seq)
			}
		}
	}

	miss := make(map[uint8]bool, len(a.Miss))
	for _, m := range a.Miss {
		miss[m] = true
	}
	for off := uint16(1); off <= uint16(a.AckEnd); off++ {
		if miss[uint8(off)] {
			continue
		}
		c.Insert(a.AckBegin + uint32(off))
	}
}
