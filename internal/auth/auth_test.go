package auth

import (
	"testing"
	"time"

	"github.com/aethernet/aether/internal/aetherr"
	"github.com/aethernet/aether/internal/config"
	"github.com/aethernet/aether/internal/identity"
)

// pipeLink is a fake linkLike that connects two in-process Run calls
// through buffered channels, standing in for a real *link.Link.
type pipeLink struct {
	out chan<- []byte
	in  <-chan []byte
}

func (p *pipeLink) Send(b []byte) error {
	p.out <- append([]byte{}, b...)
	return nil
}

func (p *pipeLink) RecvTimeout(d time.Duration) ([]byte, error) {
	select {
	case b := <-p.in:
		return b, nil
	case <-time.After(d):
		return nil, aetherr.New(aetherr.RecvTimeout, "")
	}
}

func newPipe() (*pipeLink, *pipeLink) {
	ab := make(chan []byte, 4)
	ba := make(chan []byte, 4)
	return &pipeLink{out: ab, in: ba}, &pipeLink{out: ba, in: ab}
}

func TestAuthSucceedsBothSides(t *testing.T) {
	idA, err := identity.New()
	if err != nil {
		t.Fatalf("New idA: %v", err)
	}
	idB, err := identity.New()
	if err != nil {
		t.Fatalf("New idB: %v", err)
	}

	linkA, linkB := newPipe()
	cfg := config.Aether{HandshakeRetryDelay: time.Second, DeltaTime: 50 * time.Millisecond}

	errA := make(chan error, 1)
	errB := make(chan error, 1)
	go func() { errA <- Run(linkA, idA, idB.Uid(), cfg) }()
	go func() { errB <- Run(linkB, idB, idA.Uid(), cfg) }()

	if err := <-errA; err != nil {
		t.Errorf("peer A auth: %v", err)
	}
	if err := <-errB; err != nil {
		t.Errorf("peer B auth: %v", err)
	}
}

// Mirrors spec §8's "Auth mismatch" scenario: the initiator expects U2's
// key but the responder only holds U1's, so the responder cannot decrypt
// the challenge and its reply never matches the initiator's nonce.
func TestAuthMismatchYieldsInvalid(t *testing.T) {
	idInitiator, err := identity.New()
	if err != nil {
		t.Fatalf("New idInitiator: %v", err)
	}
	idClaimed, err := identity.New()
	if err != nil {
		t.Fatalf("New idClaimed: %v", err)
	}
	idActual, err := identity.New()
	if err != nil {
		t.Fatalf("New idActual: %v", err)
	}

	linkInitiator, linkResponder := newPipe()
	cfg := config.Aether{HandshakeRetryDelay: 80 * time.Millisecond, DeltaTime: 20 * time.Millisecond}

	errInitiator := make(chan error, 1)
	go func() { errInitiator <- Run(linkInitiator, idInitiator, idClaimed.Uid(), cfg) }()

	// The responder authenticates as idActual, not idClaimed: it cannot
	// decrypt challenges addressed to idClaimed's public key.
	go func() { Run(linkResponder, idActual, idInitiator.Uid(), cfg) }()

	err = <-errInitiator
	if err == nil {
		t.Fatalf("expected AuthInvalid or AuthUnreachable, got nil")
	}
	if !aetherr.IsKind(err, aetherr.AuthInvalid) && !aetherr.IsKind(err, aetherr.AuthUnreachable) {
		t.Errorf("err = %v, want AuthInvalid or AuthUnreachable", err)
	}
}
