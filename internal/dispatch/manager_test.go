package dispatch

import (
	"path/filepath"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), "leader")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestNewManagerCreatesDefaultRoom(t *testing.T) {
	m := newTestManager(t)
	general, ok := m.GetRoom(DefaultRoomID)
	if !ok {
		t.Fatal("expected default room to exist")
	}
	if !general.HasParticipant("leader") {
		t.Fatal("expected leader to be a participant of the default room")
	}
}

func TestNewManagerReloadsExistingRooms(t *testing.T) {
	dir := t.TempDir()
	m1, err := NewManager(dir, "leader")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m1.CreateRoom("Website Revamp", RoomTypeProject, []string{"leader", "coder"}); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	m2, err := NewManager(dir, "leader")
	if err != nil {
		t.Fatalf("NewManager reload: %v", err)
	}
	room, ok := m2.GetRoom("website-revamp")
	if !ok {
		t.Fatal("expected reloaded manager to find the persisted room")
	}
	if !room.HasParticipant("coder") {
		t.Fatal("expected coder to be a participant after reload")
	}
}

func TestCreateRoomRejectsDuplicateID(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.CreateRoom("Launch", RoomTypeProject, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.CreateRoom("Launch", RoomTypeProject, nil); err == nil {
		t.Fatal("expected error creating a room with a duplicate id")
	}
}

func TestCreateRoomDefaultsParticipantsToLeader(t *testing.T) {
	m := newTestManager(t)
	room, err := m.CreateRoom("Quiet Room", RoomTypeOpen, nil)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if len(room.Participants) != 1 || room.Participants[0] != "leader" {
		t.Fatalf("expected leader as sole default participant, got %v", room.Participants)
	}
}

func TestInviteBotAddsParticipantAndPersists(t *testing.T) {
	m := newTestManager(t)
	added, err := m.InviteBot(DefaultRoomID, "coder")
	if err != nil {
		t.Fatalf("InviteBot: %v", err)
	}
	if !added {
		t.Fatal("expected invite to report added=true")
	}
	if participants := m.GetRoomParticipants(DefaultRoomID); len(participants) != 2 {
		t.Fatalf("expected 2 participants after invite, got %v", participants)
	}
}

func TestInviteBotAlreadyPresentReportsFalse(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.InviteBot(DefaultRoomID, "leader"); err != nil {
		t.Fatalf("InviteBot: %v", err)
	}
	added, err := m.InviteBot(DefaultRoomID, "leader")
	if err != nil {
		t.Fatalf("InviteBot: %v", err)
	}
	if added {
		t.Fatal("expected re-inviting an existing participant to report added=false")
	}
}

func TestRemoveBotRefusesToEmptyRoom(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.RemoveBot(DefaultRoomID, "leader"); err == nil {
		t.Fatal("expected error removing the last participant from a room")
	}
}

func TestRemoveBotUnknownRoom(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.RemoveBot("does-not-exist", "leader"); err == nil {
		t.Fatal("expected error operating on an unknown room")
	}
}

func TestListRoomsIncludesDefault(t *testing.T) {
	m := newTestManager(t)
	summaries := m.ListRooms()
	found := false
	for _, s := range summaries {
		if s.ID == DefaultRoomID && s.IsDefault {
			found = true
		}
	}
	if !found {
		t.Fatal("expected ListRooms to include the default room marked IsDefault")
	}
}

func TestManagerSaveWritesReadableFile(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, "leader")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m.CreateRoom("Ops", RoomTypeCoordination, []string{"leader"}); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, err := loadRoom(filepath.Join(dir, "ops.json")); err != nil {
		t.Fatalf("expected room file to be readable back: %v", err)
	}
}
