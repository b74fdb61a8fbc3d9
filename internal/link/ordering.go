package link

import "github.com/aethernet/aether/internal/wire"

// orderingBuffer holds out-of-order packets until the gap preceding
// them closes, then releases a contiguous run in sequence order
// (spec §4.8). It is owned exclusively by the receive loop.
type orderingBuffer struct {
	nextExpected uint32
	pending      map[uint32]*wire.Packet
}

func newOrderingBuffer(nextExpected uint32) *orderingBuffer {
	return &orderingBuffer{
		nextExpected: nextExpected,
		pending:      make(map[uint32]*wire.Packet),
	}
}

// insert files p into the buffer and returns the run of packets that
// are now deliverable in order, starting at p if it closed the gap.
func (o *orderingBuffer) insert(p *wire.Packet) []*wire.Packet {
	if p.Sequence < o.nextExpected {
		return nil // duplicate, already covered by AckList dedup
	}
	if p.Sequence > o.nextExpected {
		o.pending[p.Sequence] = p
		return nil
	}

	ready := []*wire.Packet{p}
	o.nextExpected++
	for {
		next, ok := o.pending[o.nextExpected]
		if !ok {
			break
		}
		delete(o.pending, o.nextExpected)
		ready = append(ready, next)
		o.nextExpected++
	}
	return ready
}
