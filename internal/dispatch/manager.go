package dispatch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultRoomID is the distinguished room that always exists, with the
// leader bot as its first participant.
const DefaultRoomID = "general"

// Manager owns room persistence: one JSON file per room under its
// directory, loaded eagerly at startup and written back on every mutation.
type Manager struct {
	mu          sync.RWMutex
	dir         string
	leaderBotID string
	rooms       map[string]*Room
}

// NewManager loads every room file under dir, creating the default room
// (with leaderBotID as its sole participant) if it doesn't already exist.
func NewManager(dir, leaderBotID string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dispatch: mkdir rooms dir: %w", err)
	}
	m := &Manager{dir: dir, leaderBotID: leaderBotID, rooms: make(map[string]*Room)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dispatch: read rooms dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		room, err := loadRoom(filepath.Join(dir, e.Name()))
		if err != nil {
			continue // a corrupt room file shouldn't take down the manager
		}
		m.rooms[room.ID] = room
	}

	if _, ok := m.rooms[DefaultRoomID]; !ok {
		general := &Room{
			ID:           DefaultRoomID,
			Type:         RoomTypeOpen,
			Participants: []string{leaderBotID},
			Owner:        "user",
			CreatedAt:    time.Now().UTC(),
		}
		if err := m.save(general); err != nil {
			return nil, err
		}
		m.rooms[DefaultRoomID] = general
	}

	return m, nil
}

func loadRoom(path string) (*Room, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var room Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (m *Manager) save(room *Room) error {
	data, err := json.MarshalIndent(room, "", "  ")
	if err != nil {
		return fmt.Errorf("dispatch: marshal room: %w", err)
	}
	path := filepath.Join(m.dir, room.ID+".json")

	tmp, err := os.CreateTemp(m.dir, "room-*.tmp")
	if err != nil {
		return fmt.Errorf("dispatch: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("dispatch: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("dispatch: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("dispatch: close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("dispatch: rename: %w", err)
	}
	cleanup = false
	return nil
}

// DefaultRoom returns the guaranteed "general" room.
func (m *Manager) DefaultRoom() *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[DefaultRoomID]
}

func (m *Manager) GetRoom(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	return r, ok
}

func sanitizeRoomID(name string) string {
	id := strings.ToLower(name)
	id = strings.ReplaceAll(id, " ", "-")
	id = strings.ReplaceAll(id, "_", "-")
	return id
}

// CreateRoom creates a new room, defaulting to [leaderBotID] if no
// participants are given. Returns an error if a room with the derived ID
// already exists.
func (m *Manager) CreateRoom(name string, roomType RoomType, participants []string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := sanitizeRoomID(name)
	if _, exists := m.rooms[id]; exists {
		return nil, fmt.Errorf("dispatch: room %q already exists", name)
	}
	if len(participants) == 0 {
		participants = []string{m.leaderBotID}
	}

	room := &Room{
		ID:           id,
		Type:         roomType,
		Participants: append([]string{}, participants...),
		Owner:        "user",
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.save(room); err != nil {
		return nil, err
	}
	m.rooms[id] = room
	return room, nil
}

// InviteBot adds bot to room. Returns false (not an error) if the bot is
// already a participant.
func (m *Manager) InviteBot(roomID, bot string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return false, fmt.Errorf("dispatch: room %q not found", roomID)
	}
	if room.HasParticipant(bot) {
		return false, nil
	}
	room.AddParticipant(bot)
	if err := m.save(room); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveBot removes bot from room, refusing to remove the last remaining
// participant so a room is never left with nobody in it.
func (m *Manager) RemoveBot(roomID, bot string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return false, fmt.Errorf("dispatch: room %q not found", roomID)
	}
	if !room.HasParticipant(bot) {
		return false, nil
	}
	if len(room.Participants) <= 1 {
		return false, fmt.Errorf("dispatch: cannot remove last participant from room %q", roomID)
	}
	room.RemoveParticipant(bot)
	if err := m.save(room); err != nil {
		return false, err
	}
	return true, nil
}

// RoomSummary is the lightweight view returned by ListRooms.
type RoomSummary struct {
	ID               string   `json:"id"`
	Type             RoomType `json:"type"`
	Participants     []string `json:"participants"`
	ParticipantCount int      `json:"participant_count"`
	IsDefault        bool     `json:"is_default"`
}

func (m *Manager) ListRooms() []RoomSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RoomSummary, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, RoomSummary{
			ID:               r.ID,
			Type:             r.Type,
			Participants:     append([]string{}, r.Participants...),
			ParticipantCount: len(r.Participants),
			IsDefault:        r.ID == DefaultRoomID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) GetRoomParticipants(roomID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil
	}
	return append([]string{}, room.Participants...)
}
