package envelope

import "testing"

func TestSessionKeyFromRoomID(t *testing.T) {
	e := MessageEnvelope{RoomID: "  #My-Room "}
	if got, want := e.SessionKey(), "room:My-Room"; got != want {
		t.Fatalf("SessionKey() = %q, want %q", got, want)
	}
}

func TestSessionKeyFromChannelChat(t *testing.T) {
	e := MessageEnvelope{Channel: "telegram", ChatID: "12345"}
	if got, want := e.SessionKey(), "room:telegram_12345"; got != want {
		t.Fatalf("SessionKey() = %q, want %q", got, want)
	}
}

func TestSessionKeyRoomPrefixStripping(t *testing.T) {
	e := MessageEnvelope{RoomID: "room:ops"}
	if got, want := e.SessionKey(), "room:ops"; got != want {
		t.Fatalf("SessionKey() = %q, want %q", got, want)
	}
}

func TestDefaultPriority(t *testing.T) {
	cases := []struct {
		role SenderRole
		want int
	}{
		{SenderSystem, PrioritySystem},
		{SenderBot, PriorityBot},
		{SenderUser, PriorityUser},
	}
	for _, c := range cases {
		e := New("cli", "1", "hi", c.role)
		if e.Priority != c.want {
			t.Errorf("role %s: priority = %d, want %d", c.role, e.Priority, c.want)
		}
	}
}

func TestWithPriorityOverride(t *testing.T) {
	e := New("cli", "1", "hi", SenderUser)
	p := 0
	out := e.WithPriority(&p)
	if out.Priority != 0 {
		t.Fatalf("expected override priority 0, got %d", out.Priority)
	}
}

func TestEnsureTraceIDIsStable(t *testing.T) {
	e := MessageEnvelope{}
	id1 := e.EnsureTraceID()
	id2 := e.EnsureTraceID()
	if id1 != id2 {
		t.Fatalf("trace id changed across calls: %q != %q", id1, id2)
	}
}

func TestAmendPreservesTraceID(t *testing.T) {
	e := New("cli", "1", "hi", SenderUser)
	amended := e.Amend("hi there")
	if amended.TraceID != e.TraceID {
		t.Fatalf("amend changed trace id: %q != %q", amended.TraceID, e.TraceID)
	}
	if amended.Content != "hi there" {
		t.Fatalf("amend did not update content: %q", amended.Content)
	}
}
