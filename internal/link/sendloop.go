package link

import (
	"sync/atomic"
	"time"

	"github.com/aethernet/aether/internal/aead"
	"github.com/aethernet/aether/internal/metrics"
	"github.com/aethernet/aether/internal/wire"
)

// sendLoop drains the primary queue into a window-sized batch and
// replays it until every ack-needing packet is confirmed, per spec
// §4.7. It is the sole owner of the batch slice and the sole writer to
// the socket.
func (l *Link) sendLoop() {
	defer l.workers.Done()

	batch := []*wire.Packet{wire.NewMeta(-1, 0)}
	retries := 0

	for {
		if l.isStopped() {
			l.teardownErrs <- nil
			return
		}

		p := batch[0]
		batch = batch[1:]

		if p.IsMeta {
			select {
			case <-time.After(time.Duration(p.Meta.DelayMS) * time.Millisecond):
			case <-l.stopCh:
				l.teardownErrs <- nil
				return
			}

			if len(batch) > 0 {
				retries++
				if retries >= l.cfg.Link.MaxRetries {
					l.log.Warn("window exhausted max_retries, tearing down link")
					l.teardownErrs <- nil
					go l.stopWithReason(linkStoppedRetries(l.id))
					return
				}
				batch = append(batch, wire.NewMeta(retries, l.cfg.Link.RetryDelay.Milliseconds()))
			} else {
				refilled := l.refillBatch()
				batch = refilled.packets
				retries = 0
				batch = append(batch, wire.NewMeta(-1, refilled.nextDelayMS))
			}
			continue
		}

		if wire.NeedsAck(p) && l.ackCheckConfirmed(p.Sequence) {
			metrics.WindowOutstanding.WithLabelValues(l.id).Set(float64(atomic.AddInt64(&l.outstanding, -1)))
			continue
		}

		l.stampAck(p)
		if _, err := l.conn.WriteToUDP(p.Compile(), l.peerAddr); err != nil {
			l.log.WithError(err).Debug("write failed, will retry")
		} else {
			metrics.PacketsSent.WithLabelValues(l.id, typeLabel(p.Type)).Inc()
			if p.Meta.RetryCount > 0 {
				metrics.PacketsRetransmitted.WithLabelValues(l.id).Inc()
			}
		}

		if wire.NeedsAck(p) {
			p.Meta.RetryCount++
			batch = append(batch, p)
		}

		if len(batch) == 0 {
			refilled := l.refillBatch()
			batch = refilled.packets
			retries = 0
			batch = append(batch, wire.NewMeta(-1, refilled.nextDelayMS))
		}
	}
}

type refillResult struct {
	packets     []*wire.Packet
	nextDelayMS int64
}

// refillBatch drains up to window_size entries from the primary queue
// into fresh, sequenced packets. If the primary queue is empty it emits
// a single keepalive AckOnly packet reusing send_seq (spec §9's adopted
// "latest" semantics: keepalives do not advance the sequence).
func (l *Link) refillBatch() refillResult {
	window := l.cfg.Link.WindowSize
	if window <= 0 {
		window = 1
	}

	var batch []*wire.Packet
drain:
	for len(batch) < window {
		select {
		case item := <-l.primaryQueue:
			batch = append(batch, l.newPacket(item))
		default:
			break drain
		}
	}

	atomic.StoreInt32(&l.batchEmpty, boolToInt32(len(batch) == 0))

	if len(batch) == 0 {
		l.mu.Lock()
		seq := l.sendSeq
		l.mu.Unlock()
		keepalive := wire.NewPacket(wire.PTypeAckOnly, seq)
		l.stampAck(keepalive)
		if _, err := l.conn.WriteToUDP(keepalive.Compile(), l.peerAddr); err == nil {
			metrics.PacketsSent.WithLabelValues(l.id, typeLabel(wire.PTypeAckOnly)).Inc()
		}
		return refillResult{nextDelayMS: l.cfg.Link.AckOnlyTime.Milliseconds()}
	}

	for _, p := range batch {
		if wire.NeedsAck(p) {
			metrics.WindowOutstanding.WithLabelValues(l.id).Set(float64(atomic.AddInt64(&l.outstanding, 1)))
		}
	}
	return refillResult{packets: batch, nextDelayMS: l.cfg.Link.RetryDelay.Milliseconds()}
}

// newPacket assigns the next sequence number to a queued payload and,
// if AEAD is active and the payload is user Data, encrypts it in place.
func (l *Link) newPacket(item sendItem) *wire.Packet {
	l.mu.Lock()
	seq := l.sendSeq
	l.sendSeq++
	cipher := l.cipher
	l.mu.Unlock()

	p := wire.NewPacket(item.pktType, seq)
	if cipher != nil && item.pktType == wire.PTypeData {
		enc, err := cipher.Encrypt(item.payload)
		if err != nil {
			// Never fall back to plaintext on an encrypt failure — drop the
			// payload instead of risking a confidentiality break. The
			// sequence is still consumed; the peer will simply see an
			// empty Data packet and the application-level retry (if any)
			// must resend.
			l.log.WithError(err).Error("encrypt failed, dropping payload")
			return p
		}
		p.Payload = aead.Encode(enc)
		p.SetEncrypted(true)
		return p
	}
	p.Payload = item.payload
	return p
}

func (l *Link) stampAck(p *wire.Packet) {
	l.mu.Lock()
	ack := l.ackList.Get()
	l.mu.Unlock()
	p.AttachAck(ack)
}

func (l *Link) ackCheckConfirmed(seq uint32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ackCheck.Check(seq)
}

func typeLabel(t wire.PType) string {
	switch t {
	case wire.PTypeData:
		return "data"
	case wire.PTypeAckOnly:
		return "ack_only"
	case wire.PTypeInitiation:
		return "initiation"
	case wire.PTypeKeyExchange:
		return "key_exchange"
	default:
		return "extended"
	}
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
