// Package auth implements the post-handshake nonce challenge/response
// that proves each peer holds the private key matching its claimed uid
// (spec §4.6). The challenge travels over the reliable Link, so
// retransmission is handled by the Link itself; this package only
// manages nonce generation, comparison, and the per-step timeout.
package auth

import (
	"bytes"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/aethernet/aether/internal/aetherr"
	"github.com/aethernet/aether/internal/config"
	"github.com/aethernet/aether/internal/identity"
	"github.com/aethernet/aether/internal/metrics"
)

// NonceSize is the challenge length in bytes (256 bits), per spec §4.6.
const NonceSize = 32

// linkLike is the minimal surface auth needs from a Link: a reliable,
// ordered byte channel. The concrete *link.Link satisfies this without
// creating an import cycle between link and auth.
type linkLike interface {
	Send(b []byte) error
	RecvTimeout(d time.Duration) ([]byte, error)
}

func randomNonce() ([]byte, error) {
	n := make([]byte, NonceSize)
	if _, err := rand.Read(n); err != nil {
		return nil, aetherr.Wrap(aetherr.Crypto, "generate nonce", err)
	}
	return n, nil
}

func jitter(base, delta time.Duration) time.Duration {
	if delta <= 0 {
		return base
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(delta)))
	if err != nil {
		return base
	}
	return base + time.Duration(n.Int64())
}

// Run performs one mutual nonce challenge/response over l, verifying
// that the peer identified by peerUID holds the matching private key.
// Both sides call Run symmetrically.
func Run(l linkLike, self *identity.Identity, peerUID string, cfg config.Aether) error {
	peerPub, err := identity.PublicFromUid(peerUID)
	if err != nil {
		return err
	}

	n, err := randomNonce()
	if err != nil {
		return err
	}

	challenge, err := identity.Encrypt(peerPub, n)
	if err != nil {
		return err
	}
	if err := l.Send(challenge); err != nil {
		return aetherr.Wrap(aetherr.AuthUnreachable, peerUID, err)
	}

	timeout := jitter(cfg.HandshakeRetryDelay, cfg.DeltaTime)

	peerChallenge, err := l.RecvTimeout(timeout)
	if err != nil {
		metrics.AuthOutcomes.WithLabelValues("unreachable").Inc()
		return aetherr.Wrap(aetherr.AuthUnreachable, peerUID, err)
	}
	plainPeerChallenge, err := self.Decrypt(peerChallenge)
	if err != nil {
		metrics.AuthOutcomes.WithLabelValues("invalid").Inc()
		// Answer anyway with an all-zero reply so the peer sees a reply
		// that does not match its nonce (AuthInvalid) instead of waiting
		// out its timeout.
		_ = l.Send(make([]byte, NonceSize))
		return aetherr.Wrap(aetherr.AuthInvalid, peerUID, err)
	}
	if err := l.Send(plainPeerChallenge); err != nil {
		return aetherr.Wrap(aetherr.AuthUnreachable, peerUID, err)
	}

	reply, err := l.RecvTimeout(timeout)
	if err != nil {
		metrics.AuthOutcomes.WithLabelValues("unreachable").Inc()
		return aetherr.Wrap(aetherr.AuthUnreachable, peerUID, err)
	}
	if !bytes.Equal(reply, n) {
		metrics.AuthOutcomes.WithLabelValues("invalid").Inc()
		return aetherr.New(aetherr.AuthInvalid, peerUID)
	}

	metrics.AuthOutcomes.WithLabelValues("valid").Inc()
	return nil
}
