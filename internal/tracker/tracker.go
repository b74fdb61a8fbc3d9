// Package tracker carries the wire shape of the rendezvous server's
// protocol (spec §6 names the tracker's role; original_source's
// tracker.rs names the fields) and a minimal HTTP client for it. The
// tracker itself is out of core scope — Link never depends on this
// package — but an orchestrator needs some way to learn a peer's
// address before it can run handshake.Run against it, and the shape
// below is what the original implementation exchanged with it.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aethernet/aether/internal/aetherr"
)

// ConnectionRequest is one peer's advertised reachability, matching
// original_source's ConnectionRequest struct field-for-field.
type ConnectionRequest struct {
	IdentityNumber uint32 `json:"identity_number"`
	Username       string `json:"username"`
	Port           uint16 `json:"port"`
	IP             [4]byte `json:"ip"`
}

// TrackerPacket is the full request/response envelope exchanged with
// the tracker, matching original_source's TrackerPacket field-for-field
// (including the historical req/packet_type pair kept for wire
// compatibility rather than redesigned).
type TrackerPacket struct {
	IdentityNumber uint32              `json:"identity_number"`
	Username       string              `json:"username"`
	PeerUsername   string              `json:"peer_username"`
	Req            bool                `json:"req"`
	PacketType     uint8               `json:"packet_type"`
	Port           uint16              `json:"port"`
	IP             [4]byte             `json:"ip"`
	Connections    []ConnectionRequest `json:"connections"`
}

// Client polls a tracker server over HTTP. net/http is used directly
// rather than a pack dependency: the tracker exchange is a single
// request/response JSON round trip with no streaming, retry-policy, or
// connection-pooling need beyond what http.Client already does, so
// reaching for a heavier client would add a dependency with nothing
// left for it to do.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a tracker Client against baseURL (e.g.
// "http://localhost:8000").
func NewClient(baseURL string, pollTimeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: pollTimeout},
	}
}

// Register posts this peer's reachability to the tracker and returns
// whatever connection requests the tracker has queued for it.
func (c *Client) Register(ctx context.Context, req TrackerPacket) (TrackerPacket, error) {
	return c.roundTrip(ctx, "/register", req)
}

// Poll asks the tracker for the current connection requests queued
// against username, without re-registering reachability.
func (c *Client) Poll(ctx context.Context, username string) (TrackerPacket, error) {
	return c.roundTrip(ctx, "/poll", TrackerPacket{Username: username, Req: true})
}

func (c *Client) roundTrip(ctx context.Context, path string, req TrackerPacket) (TrackerPacket, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return TrackerPacket{}, aetherr.Wrap(aetherr.ParseError, "encode tracker packet", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return TrackerPacket{}, aetherr.Wrap(aetherr.SocketConfig, "build tracker request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return TrackerPacket{}, aetherr.Wrap(aetherr.SocketConfig, "tracker request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return TrackerPacket{}, aetherr.Wrap(aetherr.SocketConfig, "read tracker response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return TrackerPacket{}, aetherr.New(aetherr.SocketConfig, fmt.Sprintf("tracker returned %d", resp.StatusCode))
	}

	var out TrackerPacket
	if err := json.Unmarshal(respBody, &out); err != nil {
		return TrackerPacket{}, aetherr.Wrap(aetherr.ParseError, "decode tracker packet", err)
	}
	return out, nil
}
