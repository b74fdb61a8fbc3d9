// Package link implements the Link subsystem (spec §3–§4.10): the
// ordered, optionally encrypted bytestream built on top of the packet
// codec, ack bookkeeping, and a three-worker concurrency model (send,
// receive, decrypt). It is the core of Aether — everything else in this
// module is a collaborator that a Link consumes at construction time.
package link

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/aethernet/aether/internal/aead"
	"github.com/aethernet/aether/internal/aetherr"
	"github.com/aethernet/aether/internal/config"
	"github.com/aethernet/aether/internal/identity"
	"github.com/aethernet/aether/internal/linkevents"
	"github.com/aethernet/aether/internal/metrics"
	"github.com/aethernet/aether/internal/wire"
	"github.com/aethernet/aether/pkg/alog"
)

// receivePollInterval bounds how long the receive loop blocks on a
// single socket read before re-checking the stop signal and the idle clock
// (spec §4.8: "short blocking timeout (≈1 s)").
const receivePollInterval = time.Second

// sendItem is a payload queued by Send or EnableEncryption, still
// awaiting a sequence number — assigned when the send loop pulls it
// out of the primary queue and into the batch.
type sendItem struct {
	pktType wire.PType
	payload []byte
}

// Link is a single reliable, optionally end-to-end-encrypted bytestream
// to one peer (spec §3's "Link state"). It owns its queues and
// counters exclusively; the send/receive/decrypt workers hold only the
// shared references they need to do their job.
type Link struct {
	id       string
	conn     *net.UDPConn
	peerAddr *net.UDPAddr
	peerUID  string
	self     *identity.Identity
	cfg      config.Config
	log      *logrus.Entry
	events   *linkevents.Bus

	// initialRecvSeq is the raw recv_seq handed to New, i.e. the first
	// sequence number the peer's Data stream will actually use. It seeds
	// the ordering buffer directly; ackList is seeded one below it (see
	// New) so that first packet is not mistaken for a duplicate of
	// whatever the handshake already consumed.
	initialRecvSeq uint32

	// mu guards every field below it that more than one worker touches.
	mu       sync.Mutex
	ackList  *wire.AckList
	ackCheck *wire.AckCheck
	sendSeq  uint32
	cipher   *aead.Cipher
	stopped  bool
	stopErr  error

	outstanding int64 // atomic: packets in the batch awaiting ack
	batchEmpty  int32 // atomic bool: batch had nothing to send on last pass

	primaryQueue   chan sendItem
	keyExchangeCh  chan []byte
	decryptCh      chan *wire.Packet
	outputCh       chan []byte
	stopCh         chan struct{}
	stopOnce       sync.Once
	workers        sync.WaitGroup
	teardownErrs   chan error
	decryptStarted bool
}

// New constructs a Link in the stopped (not-yet-started) state. send_seq
// and recv_seq are the sequence numbers the handshake agreed on (spec
// §4.5) — already advanced past the INIT exchange by handshake.Run, so
// the first packet either side actually sends or expects is exactly
// sendSeq/recvSeq. ackList and ackCheck are seeded one below those
// values: both treat "seq <= begin" as already-seen, and begin must
// land on the handshake's last consumed sequence, not the Link's first
// real one, or that first real packet would be dropped as a duplicate.
// This is safe from underflow only because handshake.Run never hands
// back a raw 0 — callers must not construct a Link from any other
// source of sequence numbers without the same +1 convention.
//
// self is the local identity, needed by EnableEncryption to decrypt the
// peer's contributed secret — the literal spec contract table omits it,
// since that document treats identity as ambient to the orchestrator,
// but the Link cannot perform key exchange without it.
func New(id string, conn *net.UDPConn, peerAddr *net.UDPAddr, peerUID string, self *identity.Identity, sendSeq, recvSeq uint32, cfg config.Config) (*Link, error) {
	if err := conn.SetReadDeadline(time.Now().Add(receivePollInterval)); err != nil {
		return nil, aetherr.Wrap(aetherr.SocketConfig, "set initial read deadline", err)
	}

	l := &Link{
		id:       id,
		conn:     conn,
		peerAddr: peerAddr,
		peerUID:  peerUID,
		self:     self,
		cfg:      cfg,
		log:      alog.For("link").WithField("link_id", id),

		initialRecvSeq: recvSeq,
		ackList:        wire.NewAckList(recvSeq - 1),
		ackCheck:       wire.NewAckCheck(sendSeq - 1),
		sendSeq:        sendSeq,

		primaryQueue:  make(chan sendItem, 4096),
		keyExchangeCh: make(chan []byte, 1),
		decryptCh:     make(chan *wire.Packet, 256),
		outputCh:      make(chan []byte, 256),
		stopCh:        make(chan struct{}),
		teardownErrs:  make(chan error, 3),
	}
	return l, nil
}

// AttachEvents wires a linkevents.Bus so this Link reports its
// lifecycle transitions (started, encrypted, stopped) to an
// orchestrator instead of requiring one to poll. Must be called before
// Start to avoid missing the LinkStarted event; nil is a valid no-op
// default left in place by New.
func (l *Link) AttachEvents(b *linkevents.Bus) {
	l.mu.Lock()
	l.events = b
	l.mu.Unlock()
}

func (l *Link) emit(kind linkevents.Kind, data interface{}) {
	l.mu.Lock()
	bus := l.events
	l.mu.Unlock()
	if bus == nil {
		return
	}
	bus.Trigger(linkevents.Event{Kind: kind, LinkID: l.id, Data: data})
}

// Start launches the send and receive workers. The decrypt worker is
// launched lazily by EnableEncryption, since it has nothing to do until
// AEAD state exists (spec §4.9).
func (l *Link) Start() {
	metrics.LinksActive.Inc()
	l.workers.Add(2)
	go l.sendLoop()
	go l.recvLoop()
	l.emit(linkevents.LinkStarted, nil)
}

// ID returns the identifier this Link was constructed with — the same
// value used for its log fields and metrics labels.
func (l *Link) ID() string {
	return l.id
}

// Send enqueues an application payload for delivery and returns without
// waiting for the peer to acknowledge it.
func (l *Link) Send(b []byte) error {
	return l.enqueue(wire.PTypeData, b)
}

func (l *Link) enqueue(t wire.PType, b []byte) error {
	select {
	case l.primaryQueue <- sendItem{pktType: t, payload: b}:
		return nil
	case <-l.stopCh:
		return l.stoppedErr()
	}
}

// Recv blocks until a payload is available or the link stops.
func (l *Link) Recv() ([]byte, error) {
	select {
	case b, ok := <-l.outputCh:
		if !ok {
			return nil, l.stoppedErr()
		}
		return b, nil
	case <-l.stopCh:
		return nil, l.stoppedErr()
	}
}

// RecvTimeout is Recv bounded by d, returning RecvTimeout if nothing
// arrives in time.
func (l *Link) RecvTimeout(d time.Duration) ([]byte, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case b, ok := <-l.outputCh:
		if !ok {
			return nil, l.stoppedErr()
		}
		return b, nil
	case <-l.stopCh:
		return nil, l.stoppedErr()
	case <-timer.C:
		return nil, aetherr.New(aetherr.RecvTimeout, "")
	}
}

// IsEmpty reports whether nothing is queued and nothing in the batch is
// still awaiting acknowledgment.
func (l *Link) IsEmpty() bool {
	return len(l.primaryQueue) == 0 && atomic.LoadInt64(&l.outstanding) == 0
}

// WaitEmpty blocks until the link is idle and stays idle through one
// extra ack_wait_time grace period, matching spec §4.10.
func (l *Link) WaitEmpty() error {
	poll := l.cfg.Link.PollTimeUS
	if poll <= 0 {
		poll = time.Millisecond
	}
	for !l.IsEmpty() {
		select {
		case <-l.stopCh:
			return l.stoppedErr()
		case <-time.After(poll):
		}
	}
	select {
	case <-l.stopCh:
		return l.stoppedErr()
	case <-time.After(l.cfg.Link.AckWaitTime):
	}
	return nil
}

// Stop signals every worker to exit, joins them, and is safe to call
// more than once.
func (l *Link) Stop() error {
	return l.stopWithReason(aetherr.New(aetherr.LinkStopped, l.id))
}

func (l *Link) stopWithReason(reason error) error {
	var result *multierror.Error
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.stopErr = reason
		l.mu.Unlock()

		close(l.stopCh)
		l.workers.Wait()
		close(l.outputCh)
		close(l.teardownErrs)
		for werr := range l.teardownErrs {
			if werr != nil {
				result = multierror.Append(result, werr)
			}
		}
		metrics.LinksActive.Dec()
	})
	l.emit(linkevents.LinkStopped, reason)
	return result.ErrorOrNil()
}

func (l *Link) stoppedErr() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopErr != nil {
		return l.stopErr
	}
	return aetherr.New(aetherr.LinkStopped, l.id)
}

func (l *Link) isStopped() bool {
	select {
	case <-l.stopCh:
		return true
	default:
		return false
	}
}
