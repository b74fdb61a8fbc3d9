package wire

import "testing"

func TestAckListInsertIdempotent(t *testing.T) {
	a := NewAckList(0)
	if err := a.Insert(5); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := a.Insert(5); err != nil {
		t.Fatalf("second Insert: %v", err)
	}
	if !a.Check(5) {
		t.Errorf("Check(5) = false, want true")
	}
}

func TestAckListCheckAfterInsert(t *testing.T) {
	a := NewAckList(100)
	seqs := []uint32{101, 103, 104}
	for _, s := range seqs {
		if err := a.Insert(s); err != nil {
			t.Fatalf("Insert(%d): %v", s, err)
		}
	}
	for _, s := range seqs {
		if !a.Check(s) {
			t.Errorf("Check(%d) = false, want true", s)
		}
	}
	if a.Check(102) {
		t.Errorf("Check(102) = true, want false (never inserted)")
	}
}

func TestAckListWindowOverflow(t *testing.T) {
	a := NewAckList(0)
	if err := a.Insert(MaxWindow + 1); err == nil {
		t.Fatalf("expected WindowOverflow, got nil")
	}
}

// Mirrors spec §8's "AckList missing" scenario.
func TestAckListMissingOffsets(t *testing.T) {
	a := NewAckList(10)
	for _, s := range []uint32{10, 12, 13, 15, 16, 17, 18, 19, 20, 21, 23, 24, 25, 26, 27, 28, 29} {
		if err := a.Insert(s); err != nil {
			t.Fatalf("Insert(%d): %v", s, err)
		}
	}

	ack := a.Get()
	// 11, 14, 22 were never received and lie below the highest received
	// offset, so they must appear as misses relative to the (possibly
	// compacted) ack_begin.
	missing := map[uint32]bool{}
	for _, m := range ack.Miss {
		missing[ack.AckBegin+uint32(m)] = true
	}
	for _, want := range []uint32{11, 14, 22} {
		if !missing[want] {
			t.Errorf("expected %d to be listed as missing, miss=%v ack_begin=%d", want, ack.Miss, ack.AckBegin)
		}
	}
}

func TestAckListCompactionAdvancesBegin(t *testing.T) {
	a := NewAckList(0)
	for _, s := range []uint32{1, 2, 3, 4, 5} {
		if err := a.Insert(s); err != nil {
			t.Fatalf("Insert(%d): %v", s, err)
		}
	}
	got := a.Get()
	if got.AckBegin != 5 {
		t.Errorf("ack_begin = %d, want 5 after contiguous run compacts", got.AckBegin)
	}
	if len(got.Miss) != 0 {
		t.Errorf("miss = %v, want empty after full compaction", got.Miss)
	}
}

func TestAckCheckAcknowledgeFillsWindow(t *testing.T) {
	c := NewAckCheck(0)
	ack := Acknowledgment{AckBegin: 100, AckEnd: 5, Miss: []uint8{3}}
	c.Acknowledge(ack)

	for _, s := range []uint32{100, 101, 102, 104, 105} {
		if !c.Check(s) {
			t.Errorf("Check(%d) = false, want true after Acknowledge(%+v)", s, ack)
		}
	}
	if c.Check(103) {
		t.Errorf("Check(103) = true, want false (listed in miss)")
	}
}

func TestAckCheckCatchUpBelowAckBegin(t *testing.T) {
	c := NewAckCheck(0)
	c.Acknowledge(Acknowledgment{AckBegin: 50, AckEnd: 0})
	for s := uint32(0); s <= 50; s++ {
		if !c.Check(s) {
			t.Errorf("Check(%d) = false, want true (catch-up below ack_begin)", s)
		}
	}
}
