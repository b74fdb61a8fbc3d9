package link

import (
	"github.com/aethernet/aether/internal/aead"
	"github.com/aethernet/aether/internal/metrics"
	"github.com/aethernet/aether/internal/wire"
)

// decryptLoop runs only once EnableEncryption has installed AEAD state.
// It is the sole consumer of decryptCh and the sole producer onto
// outputCh for Data packets once encryption is active (spec §4.9).
// Decryption failures drop the offending packet but never stop the
// link.
func (l *Link) decryptLoop() {
	defer l.workers.Done()

	for {
		select {
		case <-l.stopCh:
			l.teardownErrs <- nil
			return
		case p, ok := <-l.decryptCh:
			if !ok {
				l.teardownErrs <- nil
				return
			}
			l.decryptAndDeliver(p)
		}
	}
}

func (l *Link) decryptAndDeliver(p *wire.Packet) {
	if !p.HasEnc {
		select {
		case l.outputCh <- p.Payload:
		case <-l.stopCh:
		}
		return
	}

	l.mu.Lock()
	cipher := l.cipher
	l.mu.Unlock()
	if cipher == nil {
		metrics.PacketsDropped.WithLabelValues(l.id, "decrypt_failed").Inc()
		return
	}

	enc, err := aead.Decode(p.Payload)
	if err != nil {
		metrics.PacketsDropped.WithLabelValues(l.id, "decrypt_failed").Inc()
		l.log.WithError(err).Debug("dropping packet with malformed encrypted payload")
		return
	}
	plain, err := cipher.Decrypt(enc)
	if err != nil {
		metrics.PacketsDropped.WithLabelValues(l.id, "decrypt_failed").Inc()
		l.log.WithError(err).Debug("dropping packet that failed to decrypt")
		return
	}

	select {
	case l.outputCh <- plain:
	case <-l.stopCh:
	}
}
