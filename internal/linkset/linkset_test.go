package linkset

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/aethernet/aether/internal/config"
	"github.com/aethernet/aether/internal/handshake"
	"github.com/aethernet/aether/internal/identity"
	"github.com/aethernet/aether/internal/link"
)

func fastConfig() config.Config {
	cfg := config.Default()
	cfg.Handshake.PeerPollTime = 20 * time.Millisecond
	cfg.Handshake.HandshakeTimeout = 2 * time.Second
	cfg.Link.WindowSize = 4
	cfg.Link.RetryDelay = 30 * time.Millisecond
	cfg.Link.AckOnlyTime = 40 * time.Millisecond
	cfg.Link.AckWaitTime = 20 * time.Millisecond
	cfg.Link.PollTimeUS = time.Millisecond
	cfg.Link.Timeout = 2 * time.Second
	cfg.Link.MaxRetries = 5
	return cfg
}

func linkedPair(t *testing.T, cfg config.Config) (a, b *link.Link) {
	t.Helper()

	connA, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen a: %v", err)
	}
	connB, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen b: %v", err)
	}

	idA, err := identity.New()
	if err != nil {
		t.Fatalf("identity a: %v", err)
	}
	idB, err := identity.New()
	if err != nil {
		t.Fatalf("identity b: %v", err)
	}

	addrA := connA.LocalAddr().(*net.UDPAddr)
	addrB := connB.LocalAddr().(*net.UDPAddr)

	var resA, resB handshake.Result
	var errA, errB error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		resA, errA = handshake.Run(connA, addrB, idA.Uid(), idB.Uid(), cfg.Handshake)
	}()
	go func() {
		defer wg.Done()
		resB, errB = handshake.Run(connB, addrA, idB.Uid(), idA.Uid(), cfg.Handshake)
	}()
	wg.Wait()
	if errA != nil {
		t.Fatalf("handshake a: %v", errA)
	}
	if errB != nil {
		t.Fatalf("handshake b: %v", errB)
	}

	a, err = link.New("link-a", connA, addrB, idB.Uid(), idA, resA.SendSeq, resA.RecvSeq, cfg)
	if err != nil {
		t.Fatalf("new link a: %v", err)
	}
	b, err = link.New("link-b", connB, addrA, idA.Uid(), idB, resB.SendSeq, resB.RecvSeq, cfg)
	if err != nil {
		t.Fatalf("new link b: %v", err)
	}
	a.Start()
	b.Start()
	return a, b
}

func TestSetWaitAnyReturnsFirstReadyLink(t *testing.T) {
	cfg := fastConfig()
	a, b := linkedPair(t, cfg)
	defer a.Stop()
	defer b.Stop()

	set := New()
	id := set.Add(b)

	if err := a.Send([]byte("ping")); err != nil {
		t.Fatalf("send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	gotID, payload, err := set.WaitAny(ctx, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("wait any: %v", err)
	}
	if gotID != id {
		t.Fatalf("got id %v, want %v", gotID, id)
	}
	if string(payload) != "ping" {
		t.Fatalf("got payload %q", payload)
	}
}

func TestSetEvictsStoppedLinks(t *testing.T) {
	cfg := fastConfig()
	a, b := linkedPair(t, cfg)
	defer a.Stop()

	set := New()
	set.Add(b)
	if set.Len() != 1 {
		t.Fatalf("expected 1 tracked link, got %d", set.Len())
	}

	b.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	for set.Len() != 0 {
		select {
		case <-ctx.Done():
			t.Fatal("stopped link was never evicted from the set")
		default:
		}
		set.pollOnce(20 * time.Millisecond)
	}
}
