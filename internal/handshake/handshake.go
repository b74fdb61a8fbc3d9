// Package handshake implements the 3-way SYN/SYN-ACK/ACK exchange that
// establishes a Link's initial sequence numbers and verifies peer
// identity before any application traffic flows (spec §4.5).
package handshake

import (
	"crypto/rand"
	"math/big"
	"net"
	"time"

	"github.com/aethernet/aether/internal/aetherr"
	"github.com/aethernet/aether/internal/config"
	"github.com/aethernet/aether/internal/metrics"
	"github.com/aethernet/aether/internal/wire"
	"github.com/aethernet/aether/pkg/alog"
)

var log = alog.For("handshake")

// Result carries the two sequence numbers a completed handshake agrees
// on — the seeds Link.New uses for send_seq/recv_seq.
//
// These are deliberately S_self+1 and S_peer+1, not the raw S_self/S_peer
// spec §4.5 names: the INIT packet itself already consumes the S_self/
// S_peer slot in each direction's sequence space, so a Link that started
// its own bookkeeping at the literal S_self/S_peer value would see its
// peer's first real packet as a duplicate of the already-handled INIT.
// Continuing from the next value is the only reading that doesn't
// collide with the handshake's own exchange.
type Result struct {
	SendSeq uint32
	RecvSeq uint32
}

// initialSeq chooses S_self uniformly from [0, 2^16), per spec §4.5.
func initialSeq() (uint32, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<16))
	if err != nil {
		return 0, aetherr.Wrap(aetherr.Crypto, "generate initial sequence", err)
	}
	return uint32(n.Uint64()), nil
}

// Run drives the handshake state machine over a raw socket against one
// peer address, verifying that the responder's payload matches
// expectedPeerUID. Both initiator and responder call Run — the state
// machine is symmetric, so there is no separate Accept path.
func Run(conn *net.UDPConn, peerAddr *net.UDPAddr, selfUID, expectedPeerUID string, cfg config.Handshake) (Result, error) {
	sSelf, err := initialSeq()
	if err != nil {
		return Result{}, err
	}

	deadline := time.Now().Add(cfg.HandshakeTimeout)
	buf := make([]byte, 2048)

	established := false
	var sPeer uint32
	ackBegin := false

	for !established {
		if time.Now().After(deadline) {
			metrics.HandshakeOutcomes.WithLabelValues("timeout").Inc()
			return Result{}, aetherr.New(aetherr.HandshakeTimeout, selfUID)
		}

		p := wire.NewPacket(wire.PTypeInitiation, sSelf)
		if ackBegin {
			p.AttachAck(wire.Acknowledgment{AckBegin: sPeer})
		}
		p.Payload = []byte(selfUID)

		if _, err := conn.WriteToUDP(p.Compile(), peerAddr); err != nil {
			return Result{}, aetherr.Wrap(aetherr.SocketConfig, "write init", err)
		}

		if err := conn.SetReadDeadline(time.Now().Add(cfg.PeerPollTime)); err != nil {
			return Result{}, aetherr.Wrap(aetherr.SocketConfig, "set read deadline", err)
		}

		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			// Poll timeout: resend INIT and try again.
			continue
		}
		if from.String() != peerAddr.String() {
			continue
		}

		recv, err := wire.Parse(buf[:n])
		if err != nil {
			log.WithError(err).Debug("discarding malformed handshake datagram")
			continue
		}
		if recv.Type != wire.PTypeInitiation {
			continue
		}
		if string(recv.Payload) != expectedPeerUID {
			log.Warn("discarding handshake packet with unexpected peer uid")
			continue
		}

		sPeer = recv.Sequence
		ackBegin = true

		if recv.HasAck && recv.Ack.AckBegin == sSelf {
			established = true
		}
	}

	metrics.HandshakeOutcomes.WithLabelValues("established").Inc()
	return Result{SendSeq: sSelf + 1, RecvSeq: sPeer + 1}, nil
}
