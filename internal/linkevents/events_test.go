package linkevents

import "testing"

func TestBusDispatchesOnlyRegisteredKind(t *testing.T) {
	b := NewBus()
	var started, stopped int

	b.Register(LinkStarted, func(Event) { started++ })
	b.Register(LinkStopped, func(Event) { stopped++ })

	b.Trigger(Event{Kind: LinkStarted, LinkID: "a"})
	b.Trigger(Event{Kind: LinkStarted, LinkID: "a"})
	b.Trigger(Event{Kind: LinkStopped, LinkID: "a"})

	if started != 2 {
		t.Fatalf("started = %d, want 2", started)
	}
	if stopped != 1 {
		t.Fatalf("stopped = %d, want 1", stopped)
	}
}

func TestBusSupportsMultipleHandlersPerKind(t *testing.T) {
	b := NewBus()
	var calls []string
	b.Register(LinkEncrypted, func(Event) { calls = append(calls, "first") })
	b.Register(LinkEncrypted, func(Event) { calls = append(calls, "second") })

	b.Trigger(Event{Kind: LinkEncrypted})

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("got %v, want [first second]", calls)
	}
}
