package dispatch

import (
	"regexp"
	"strings"
)

// Target names the precedence rule that decided a dispatch.
type Target string

const (
	TargetDM          Target = "dm"           // direct message, room is irrelevant
	TargetDirectBot   Target = "direct_bot"   // "@botname" bypasses the leader entirely
	TargetLeaderFirst Target = "leader_first" // leader triages; covers both the default case and "@all"
)

// Result is the outcome of dispatching one incoming message.
type Result struct {
	Target        Target
	PrimaryBot    string
	SecondaryBots []string
	RoomID        string // empty for DMs, which have no room
}

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// Dispatcher decides which bot(s) should see an incoming message, given
// the precedence: direct message > "@all" > "@specific-bot" > leader-first
// default.
type Dispatcher struct {
	leaderBotID string
}

func NewDispatcher(leaderBotID string) *Dispatcher {
	return &Dispatcher{leaderBotID: leaderBotID}
}

// Dispatch resolves a single incoming message to its recipient(s). room may
// be nil when isDM is true.
func (d *Dispatcher) Dispatch(content string, room *Room, isDM bool, dmTarget string) Result {
	if isDM {
		return Result{
			Target:        TargetDM,
			PrimaryBot:    dmTarget,
			SecondaryBots: nil,
		}
	}

	roomID := ""
	if room != nil {
		roomID = room.ID
	}

	mention := d.extractMention(content)
	switch {
	case mention == "all":
		var secondary []string
		if room != nil {
			secondary = room.OtherParticipants(d.leaderBotID)
		}
		return Result{
			Target:        TargetLeaderFirst,
			PrimaryBot:    d.leaderBotID,
			SecondaryBots: secondary,
			RoomID:        roomID,
		}
	case mention != "":
		return Result{
			Target:        TargetDirectBot,
			PrimaryBot:    mention,
			SecondaryBots: nil,
			RoomID:        roomID,
		}
	default:
		var secondary []string
		if room != nil {
			secondary = room.OtherParticipants(d.leaderBotID)
		}
		return Result{
			Target:        TargetLeaderFirst,
			PrimaryBot:    d.leaderBotID,
			SecondaryBots: secondary,
			RoomID:        roomID,
		}
	}
}

// extractMention returns the lowercased first "@name" token in content, or
// "" if there isn't one.
func (d *Dispatcher) extractMention(content string) string {
	m := mentionPattern.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

type workspaceTrigger struct {
	pattern *regexp.Regexp
	nameIdx int
}

var workspaceTriggers = []workspaceTrigger{
	{regexp.MustCompile(`(?i)create\s+(?:a\s+)?(?:workspace|room|project)\s+for\s+(?:the\s+)?(.+)`), 1},
	{regexp.MustCompile(`(?i)new\s+project:\s*(.+)`), 1},
	{regexp.MustCompile(`(?i)start\s+(?:a\s+)?(?:new\s+)?(?:workspace|project)\s+for\s+(?:the\s+)?(.+)`), 1},
}

type projectKeyword struct {
	keywords    []string
	projectType string
}

var projectKeywords = []projectKeyword{
	{[]string{"website", "web", "site", "landing page", "frontend"}, "web"},
	{[]string{"mobile", "app", "ios", "android"}, "mobile"},
	{[]string{"research", "study", "analyze", "analysis"}, "research"},
	{[]string{"marketing", "campaign", "social"}, "marketing"},
	{[]string{"audit", "security", "compliance"}, "audit"},
}

// ShouldLeaderCreateRoom heuristically detects a user asking the leader to
// spin up a new room for a project, returning the inferred room name and
// project type. should is false (with name/projectType empty) when content
// doesn't match any known trigger phrase.
func ShouldLeaderCreateRoom(content string) (should bool, name string, projectType string) {
	for _, trig := range workspaceTriggers {
		m := trig.pattern.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		name = strings.TrimSpace(strings.TrimSuffix(m[trig.nameIdx], "."))
		return true, name, inferProjectType(name)
	}
	return false, "", ""
}

func inferProjectType(name string) string {
	lower := strings.ToLower(name)
	for _, pk := range projectKeywords {
		for _, kw := range pk.keywords {
			if strings.Contains(lower, kw) {
				return pk.projectType
			}
		}
	}
	return "general"
}

// SuggestBotsForProject maps a project type to the set of bots that should
// staff a room created for it. leaderBotID is always included first since
// the leader coordinates every room it creates.
func SuggestBotsForProject(leaderBotID, projectType string) []string {
	bots := []string{leaderBotID}
	switch projectType {
	case "web":
		bots = append(bots, "coder", "creative")
	case "mobile":
		bots = append(bots, "coder")
	case "research":
		bots = append(bots, "researcher")
	case "marketing":
		bots = append(bots, "social", "creative")
	case "audit":
		bots = append(bots, "auditor")
	default:
		bots = append(bots, "coder")
	}
	return bots
}
