package wire

import (
	"bytes"
	"testing"
)

// Mirrors spec §8's "Codec round trip" scenario literally.
func TestCodecRoundTrip(t *testing.T) {
	p := NewPacket(PTypeData, 32_850_943)
	p.AttachAck(Acknowledgment{AckBegin: 329_965, AckEnd: 5, Miss: []uint8{3}})
	p.Payload = []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	data := p.Compile()
	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if parsed.Sequence != p.Sequence {
		t.Errorf("sequence = %d, want %d", parsed.Sequence, p.Sequence)
	}
	if parsed.Type != p.Type {
		t.Errorf("type = %v, want %v", parsed.Type, p.Type)
	}
	if !parsed.HasAck {
		t.Errorf("has_ack = false, want true")
	}
	if parsed.Ack.AckBegin != p.Ack.AckBegin || parsed.Ack.AckEnd != p.Ack.AckEnd {
		t.Errorf("ack = %+v, want %+v", parsed.Ack, p.Ack)
	}
	if !bytes.Equal(parsed.Ack.Miss, p.Ack.Miss) {
		t.Errorf("miss = %v, want %v", parsed.Ack.Miss, p.Ack.Miss)
	}
	if !bytes.Equal(parsed.Payload, p.Payload) {
		t.Errorf("payload = %v, want %v", parsed.Payload, p.Payload)
	}
}

func TestParseRejectsShortHeader(t *testing.T) {
	if _, err := Parse([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected ParseError for short header, got nil")
	}
}

func TestParseRejectsShortMissList(t *testing.T) {
	p := NewPacket(PTypeData, 1)
	p.AttachAck(Acknowledgment{AckBegin: 0, AckEnd: 3, Miss: []uint8{1, 2}})
	data := p.Compile()
	truncated := data[:len(data)-1]
	if _, err := Parse(truncated); err == nil {
		t.Fatalf("expected ParseError for truncated miss list, got nil")
	}
}

func TestNeedsAck(t *testing.T) {
	cases := []struct {
		t    PType
		want bool
	}{
		{PTypeData, true},
		{PTypeKeyExchange, true},
		{PTypeAckOnly, false},
		{PTypeInitiation, false},
		{PTypeExtended, false},
	}
	for _, c := range cases {
		p := NewPacket(c.t, 0)
		if got := NeedsAck(p); got != c.want {
			t.Errorf("NeedsAck(%v) = %v, want %v", c.t, got, c.want)
		}
	}
}

func TestCompileEmptyPayload(t *testing.T) {
	p := NewPacket(PTypeAckOnly, 42)
	p.AttachAck(Acknowledgment{AckBegin: 10, AckEnd: 0})
	data := p.Compile()
	if len(data) != headerSize {
		t.Errorf("len = %d, want %d for empty payload/miss", len(data), headerSize)
	}
	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.Payload) != 0 {
		t.Errorf("payload = %v, want empty", parsed.Payload)
	}
}
