package link

import (
	"crypto/rand"

	"github.com/aethernet/aether/internal/aead"
	"github.com/aethernet/aether/internal/aetherr"
	"github.com/aethernet/aether/internal/identity"
	"github.com/aethernet/aether/internal/linkevents"
	"github.com/aethernet/aether/internal/wire"
)

// secretSize is the contributory secret length in bytes (256 bits),
// per spec §4.4.
const secretSize = 32

// EnableEncryption runs the contributory key exchange over the
// already-established Link, derives the shared AEAD key, and starts the
// decrypt worker. Both peers call it independently and symmetrically.
func (l *Link) EnableEncryption() error {
	if l.isStopped() {
		return l.stoppedErr()
	}

	peerPub, err := identity.PublicFromUid(l.peerUID)
	if err != nil {
		return err
	}

	selfSecret := make([]byte, secretSize)
	if _, err := rand.Read(selfSecret); err != nil {
		return aetherr.Wrap(aetherr.Crypto, "generate key exchange secret", err)
	}

	encSecret, err := identity.Encrypt(peerPub, selfSecret)
	if err != nil {
		return err
	}
	if err := l.enqueue(wire.PTypeKeyExchange, encSecret); err != nil {
		return err
	}

	var encPeerSecret []byte
	select {
	case encPeerSecret = <-l.keyExchangeCh:
	case <-l.stopCh:
		return l.stoppedErr()
	}

	peerSecret, err := l.self.Decrypt(encPeerSecret)
	if err != nil {
		return aetherr.Wrap(aetherr.Crypto, "decrypt peer key exchange secret", err)
	}
	if len(peerSecret) != secretSize {
		return aetherr.New(aetherr.Crypto, "peer secret has unexpected length")
	}

	shared := make([]byte, secretSize)
	for i := range shared {
		shared[i] = selfSecret[i] ^ peerSecret[i]
	}

	cipher, err := aead.New(aead.DeriveKey(shared))
	if err != nil {
		return err
	}

	// The mu-protected check-and-Add below is what actually makes this
	// race-free against Stop: stopWithReason also sets l.stopped under
	// mu before it ever closes stopCh and calls workers.Wait, so the two
	// critical sections can never interleave in a way that adds a new
	// worker after Wait has started.
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return l.stoppedErr()
	}
	if l.decryptStarted {
		l.mu.Unlock()
		return nil
	}
	l.cipher = cipher
	l.decryptStarted = true
	l.workers.Add(1)
	l.mu.Unlock()

	go l.decryptLoop()
	l.emit(linkevents.LinkEncrypted, nil)
	return nil
}
