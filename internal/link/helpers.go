package link

import (
	"github.com/aethernet/aether/internal/aetherr"
)

// linkStoppedRetries is the LinkStopped reason surfaced to callers when
// the send loop exhausts max_retries without the peer confirming a
// window (spec §4.7).
func linkStoppedRetries(id string) error {
	return aetherr.New(aetherr.LinkStopped, id+": max_retries exceeded")
}

// linkStoppedTimeout is the LinkStopped reason surfaced to callers when
// the receive loop has seen no datagram for longer than link_timeout
// (spec §4.8). Like linkStoppedRetries, the Kind callers see is the
// generic LinkStopped: the original's recv()/recv_timeout() don't
// distinguish why stop_flag was set, only that it was.
func linkStoppedTimeout(id string) error {
	return aetherr.New(aetherr.LinkStopped, id+": link_timeout exceeded")
}
