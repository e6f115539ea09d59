package dispatch

import "testing"

func sampleRoom() *Room {
	return &Room{
		ID:           "test-project",
		Type:         RoomTypeProject,
		Participants: []string{"leader", "coder", "creative"},
	}
}

func TestDispatchDefaultRoomMessageGoesToLeader(t *testing.T) {
	d := NewDispatcher("leader")
	result := d.Dispatch("Create a landing page", sampleRoom(), false, "")

	if result.Target != TargetLeaderFirst {
		t.Fatalf("expected leader_first target, got %s", result.Target)
	}
	if result.PrimaryBot != "leader" {
		t.Fatalf("expected leader as primary, got %s", result.PrimaryBot)
	}
	if !containsStr(result.SecondaryBots, "coder") || !containsStr(result.SecondaryBots, "creative") {
		t.Fatalf("expected coder and creative as secondary bots, got %v", result.SecondaryBots)
	}
	if result.RoomID != "test-project" {
		t.Fatalf("expected room id propagated, got %q", result.RoomID)
	}
}

func TestDispatchLeaderAloneHasNoSecondaries(t *testing.T) {
	d := NewDispatcher("leader")
	room := &Room{ID: "leader-only", Type: RoomTypeOpen, Participants: []string{"leader"}}

	result := d.Dispatch("Hello", room, false, "")
	if result.PrimaryBot != "leader" {
		t.Fatalf("expected leader as primary, got %s", result.PrimaryBot)
	}
	if len(result.SecondaryBots) != 0 {
		t.Fatalf("expected no secondary bots, got %v", result.SecondaryBots)
	}
}

func TestDispatchMentionBypassesLeader(t *testing.T) {
	d := NewDispatcher("leader")
	result := d.Dispatch("@Coder help me with this bug", sampleRoom(), false, "")

	if result.Target != TargetDirectBot {
		t.Fatalf("expected direct_bot target, got %s", result.Target)
	}
	if result.PrimaryBot != "coder" {
		t.Fatalf("expected coder as primary, got %s", result.PrimaryBot)
	}
	if len(result.SecondaryBots) != 0 {
		t.Fatalf("expected no secondary bots on direct mention, got %v", result.SecondaryBots)
	}
}

func TestDispatchMentionAllIncludesAllParticipants(t *testing.T) {
	d := NewDispatcher("leader")
	result := d.Dispatch("@all meeting in 5 minutes", sampleRoom(), false, "")

	if result.PrimaryBot != "leader" {
		t.Fatalf("expected leader to coordinate @all, got %s", result.PrimaryBot)
	}
	if !containsStr(result.SecondaryBots, "coder") || !containsStr(result.SecondaryBots, "creative") {
		t.Fatalf("expected all other participants as secondary, got %v", result.SecondaryBots)
	}
}

func TestDispatchMentionIsCaseInsensitive(t *testing.T) {
	d := NewDispatcher("leader")
	result := d.Dispatch("@CODER @coder @Coder", sampleRoom(), false, "")
	if result.PrimaryBot != "coder" {
		t.Fatalf("expected coder regardless of case, got %s", result.PrimaryBot)
	}
}

func TestDispatchDMBypassesLeaderAndHasNoRoom(t *testing.T) {
	d := NewDispatcher("leader")
	result := d.Dispatch("Help me code", nil, true, "coder")

	if result.Target != TargetDM {
		t.Fatalf("expected dm target, got %s", result.Target)
	}
	if result.PrimaryBot != "coder" {
		t.Fatalf("expected coder as primary, got %s", result.PrimaryBot)
	}
	if result.RoomID != "" {
		t.Fatalf("expected no room id for a dm, got %q", result.RoomID)
	}
}

func TestDispatchDMToLeaderStillWorks(t *testing.T) {
	d := NewDispatcher("leader")
	result := d.Dispatch("What's the plan?", nil, true, "leader")
	if result.Target != TargetDM || result.PrimaryBot != "leader" {
		t.Fatalf("expected dm to leader, got %+v", result)
	}
}

func TestExtractMentionFindsFirstMatch(t *testing.T) {
	d := NewDispatcher("leader")
	if got := d.extractMention("Hey @Coder help me"); got != "coder" {
		t.Fatalf("expected coder, got %q", got)
	}
}

func TestExtractMentionAll(t *testing.T) {
	d := NewDispatcher("leader")
	if got := d.extractMention("Hello @all"); got != "all" {
		t.Fatalf("expected all, got %q", got)
	}
}

func TestExtractMentionNoneReturnsEmpty(t *testing.T) {
	d := NewDispatcher("leader")
	if got := d.extractMention("Just a normal message"); got != "" {
		t.Fatalf("expected empty string for no mention, got %q", got)
	}
}

func TestShouldLeaderCreateRoomDetectsWorkspacePhrase(t *testing.T) {
	should, name, projectType := ShouldLeaderCreateRoom("Create a workspace for the website")
	if !should {
		t.Fatal("expected should=true")
	}
	if !containsSubstr(name, "website") {
		t.Fatalf("expected name to mention website, got %q", name)
	}
	if projectType != "web" {
		t.Fatalf("expected web project type, got %q", projectType)
	}
}

func TestShouldLeaderCreateRoomDetectsNewProjectPhrase(t *testing.T) {
	should, name, projectType := ShouldLeaderCreateRoom("New project: mobile app")
	if !should {
		t.Fatal("expected should=true")
	}
	if !containsSubstr(name, "mobile app") {
		t.Fatalf("expected name to mention mobile app, got %q", name)
	}
	if projectType != "mobile" {
		t.Fatalf("expected mobile project type, got %q", projectType)
	}
}

func TestShouldLeaderCreateRoomFalseForOrdinaryMessage(t *testing.T) {
	should, name, _ := ShouldLeaderCreateRoom("What's the weather today?")
	if should {
		t.Fatal("expected should=false for an ordinary message")
	}
	if name != "" {
		t.Fatalf("expected no name, got %q", name)
	}
}

func TestSuggestBotsForProjectWeb(t *testing.T) {
	bots := SuggestBotsForProject("leader", "web")
	if !containsStr(bots, "leader") || !containsStr(bots, "coder") || !containsStr(bots, "creative") {
		t.Fatalf("expected leader, coder, creative for web projects, got %v", bots)
	}
}

func TestSuggestBotsForProjectResearch(t *testing.T) {
	bots := SuggestBotsForProject("leader", "research")
	if !containsStr(bots, "leader") || !containsStr(bots, "researcher") {
		t.Fatalf("expected leader and researcher for research projects, got %v", bots)
	}
}

func TestSuggestBotsForProjectMarketing(t *testing.T) {
	bots := SuggestBotsForProject("leader", "marketing")
	if !containsStr(bots, "social") || !containsStr(bots, "creative") {
		t.Fatalf("expected social and creative for marketing projects, got %v", bots)
	}
}

func TestSuggestBotsForProjectAudit(t *testing.T) {
	bots := SuggestBotsForProject("leader", "audit")
	if !containsStr(bots, "auditor") {
		t.Fatalf("expected auditor for audit projects, got %v", bots)
	}
}

func containsStr(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}

func containsSubstr(s, sub string) bool {
	return len(s) >= len(sub) && (s == sub || indexOf(s, sub) >= 0)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
