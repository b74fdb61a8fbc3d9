package handshake

import (
	"net"
	"testing"
	"time"

	"github.com/aethernet/aether/internal/config"
)

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	return conn
}

func TestHandshakeEstablishesBothSides(t *testing.T) {
	a := listen(t)
	defer a.Close()
	b := listen(t)
	defer b.Close()

	cfg := config.Handshake{PeerPollTime: 50 * time.Millisecond, HandshakeTimeout: 3 * time.Second}

	type outcome struct {
		res Result
		err error
	}
	resA := make(chan outcome, 1)
	resB := make(chan outcome, 1)

	go func() {
		r, err := Run(a, b.LocalAddr().(*net.UDPAddr), "uid-a", "uid-b", cfg)
		resA <- outcome{r, err}
	}()
	go func() {
		r, err := Run(b, a.LocalAddr().(*net.UDPAddr), "uid-b", "uid-a", cfg)
		resB <- outcome{r, err}
	}()

	oa := <-resA
	ob := <-resB

	if oa.err != nil {
		t.Fatalf("peer A handshake: %v", oa.err)
	}
	if ob.err != nil {
		t.Fatalf("peer B handshake: %v", ob.err)
	}

	if oa.res.SendSeq != ob.res.RecvSeq {
		t.Errorf("A.SendSeq = %d, want B.RecvSeq = %d", oa.res.SendSeq, ob.res.RecvSeq)
	}
	if ob.res.SendSeq != oa.res.RecvSeq {
		t.Errorf("B.SendSeq = %d, want A.RecvSeq = %d", ob.res.SendSeq, oa.res.RecvSeq)
	}
}

func TestHandshakeTimesOutWithoutPeer(t *testing.T) {
	a := listen(t)
	defer a.Close()
	unreachable := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}

	cfg := config.Handshake{PeerPollTime: 20 * time.Millisecond, HandshakeTimeout: 100 * time.Millisecond}
	_, err := Run(a, unreachable, "uid-a", "uid-b", cfg)
	if err == nil {
		t.Fatalf("expected HandshakeTimeout, got nil")
	}
}
