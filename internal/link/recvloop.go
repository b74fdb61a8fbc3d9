package link

import (
	"net"
	"time"

	"github.com/aethernet/aether/internal/metrics"
	"github.com/aethernet/aether/internal/wire"
)

const maxDatagramSize = 2048

// recvLoop reads datagrams off the socket, classifies them, updates the
// ack bookkeeping, and routes deliverable packets onward (spec §4.8).
// It is the sole reader of the socket and the sole owner of the
// ordering buffer.
func (l *Link) recvLoop() {
	defer l.workers.Done()

	buf := make([]byte, maxDatagramSize)
	ordering := newOrderingBuffer(l.initialRecvSeq)
	lastActivity := time.Now()

	for {
		if l.isStopped() {
			l.teardownErrs <- nil
			return
		}

		if err := l.conn.SetReadDeadline(time.Now().Add(receivePollInterval)); err != nil {
			l.log.WithError(err).Warn("failed to extend read deadline")
		}

		n, from, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				if time.Since(lastActivity) > l.cfg.Link.Timeout {
					l.log.Warn("link idle past timeout, tearing down")
					l.teardownErrs <- nil
					go l.stopWithReason(linkStoppedTimeout(l.id))
					return
				}
				continue
			}
			l.teardownErrs <- err
			return
		}
		if from.String() != l.peerAddr.String() {
			continue // stray datagram from an unrelated source
		}

		lastActivity = time.Now()

		p, err := wire.Parse(buf[:n])
		if err != nil {
			metrics.PacketsDropped.WithLabelValues(l.id, "malformed").Inc()
			continue
		}
		metrics.PacketsReceived.WithLabelValues(l.id, typeLabel(p.Type)).Inc()

		l.mu.Lock()
		duplicate := l.ackList.Check(p.Sequence)
		if p.HasAck {
			l.ackCheck.Acknowledge(p.Ack)
		}
		if wire.NeedsAck(p) {
			if err := l.ackList.Insert(p.Sequence); err != nil {
				l.log.WithError(err).Debug("ack insert rejected")
			}
		}
		l.mu.Unlock()

		if duplicate {
			metrics.PacketsDropped.WithLabelValues(l.id, "duplicate").Inc()
			continue
		}

		switch p.Type {
		case wire.PTypeAckOnly:
			// Consumed above; no payload to deliver.
		case wire.PTypeData, wire.PTypeKeyExchange, wire.PTypeInitiation:
			for _, ready := range ordering.insert(p) {
				l.dispatch(ready)
			}
		}
	}
}

// dispatch routes one in-order packet to the channel its type belongs
// on: KeyExchange payloads go to EnableEncryption, Data goes to the
// decrypt stage (or straight to the output channel when AEAD is not in
// use), and Initiation is a post-handshake straggler with nothing to
// deliver.
func (l *Link) dispatch(p *wire.Packet) {
	switch p.Type {
	case wire.PTypeKeyExchange:
		select {
		case l.keyExchangeCh <- p.Payload:
		case <-l.stopCh:
		}
	case wire.PTypeData:
		l.mu.Lock()
		encrypted := l.cipher != nil
		l.mu.Unlock()
		if !encrypted {
			select {
			case l.outputCh <- p.Payload:
			case <-l.stopCh:
			}
			return
		}
		select {
		case l.decryptCh <- p:
		case <-l.stopCh:
		}
	}
}
