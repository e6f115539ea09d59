package bus

import "testing"

func TestPerSenderLimiterAllowsBurstUpToRPM(t *testing.T) {
	l := newPerSenderLimiter(5)
	for i := 0; i < 5; i++ {
		if !l.Allow("telegram", "room-1") {
			t.Fatalf("expected message %d within burst to be allowed", i)
		}
	}
	if l.Allow("telegram", "room-1") {
		t.Fatalf("expected message beyond burst to be rate-limited")
	}
}

func TestPerSenderLimiterKeysBySenderIndependently(t *testing.T) {
	l := newPerSenderLimiter(1)
	if !l.Allow("telegram", "room-1") {
		t.Fatalf("expected first message for room-1 to be allowed")
	}
	if !l.Allow("telegram", "room-2") {
		t.Fatalf("expected a different chat id to have its own bucket")
	}
	if !l.Allow("discord", "room-1") {
		t.Fatalf("expected a different channel to have its own bucket")
	}
}

func TestPerSenderLimiterZeroRPMStillConstructs(t *testing.T) {
	l := newPerSenderLimiter(0)
	// A zero-RPM limiter is degenerate but must not panic; it denies everything.
	if l.Allow("telegram", "room-1") {
		t.Fatalf("expected zero rpm to deny all messages")
	}
}
