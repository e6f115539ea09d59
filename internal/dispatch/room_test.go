package dispatch

import "testing"

func TestRoomAddParticipantIsIdempotent(t *testing.T) {
	r := &Room{Participants: []string{"leader"}}
	r.AddParticipant("coder")
	r.AddParticipant("coder")
	if len(r.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d: %v", len(r.Participants), r.Participants)
	}
}

func TestRoomRemoveParticipant(t *testing.T) {
	r := &Room{Participants: []string{"leader", "coder", "creative"}}
	r.RemoveParticipant("coder")
	if r.HasParticipant("coder") {
		t.Fatal("expected coder removed")
	}
	if len(r.Participants) != 2 {
		t.Fatalf("expected 2 remaining participants, got %d", len(r.Participants))
	}
}

func TestRoomOtherParticipantsExcludesGiven(t *testing.T) {
	r := &Room{Participants: []string{"leader", "coder", "creative"}}
	others := r.OtherParticipants("leader")
	if len(others) != 2 {
		t.Fatalf("expected 2 others, got %d", len(others))
	}
	for _, p := range others {
		if p == "leader" {
			t.Fatal("expected leader excluded from others")
		}
	}
}

func TestRoomOtherParticipantsEmptyWhenAlone(t *testing.T) {
	r := &Room{Participants: []string{"leader"}}
	if others := r.OtherParticipants("leader"); len(others) != 0 {
		t.Fatalf("expected no other participants, got %v", others)
	}
}
