package intent

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/zhouzirui/z-admin/assistant/internal/model/chat"
)

// Intent is what the user asked the console to do.
type Intent string

const (
	Unknown  Intent = "unknown"
	List     Intent = "list"
	Create   Intent = "create"
	Refresh  Intent = "refresh"
	Greeting Intent = "greeting"
)

// Entity is an admin console section.
type Entity string

const (
	NoEntity  Entity = ""
	Projects  Entity = "projects"
	Tasks     Entity = "tasks"
	Users     Entity = "users"
	Reports   Entity = "reports"
	Settings  Entity = "settings"
	Dashboard Entity = "dashboard"
)

// Decision is the analyzer's reading of one utterance.
type Decision struct {
	Intent  Intent
	Entity  Entity
	Status  string
	Score   int
	Reply   string
	Actions []chat.Action
}

type entityInfo struct {
	path      string
	singular  string
	creatable bool
}

var entities = map[Entity]entityInfo{
	Projects:  {path: "/projects", singular: "project", creatable: true},
	Tasks:     {path: "/tasks", singular: "task", creatable: true},
	Users:     {path: "/users", singular: "user", creatable: true},
	Reports:   {path: "/reports", singular: "report"},
	Settings:  {path: "/settings", singular: "settings"},
	Dashboard: {path: "/dashboard", singular: "dashboard"},
}

var entityKeywords = map[Entity][]string{
	Projects:  {"project", "projects", "initiative", "initiatives"},
	Tasks:     {"task", "tasks", "todo", "todos", "ticket", "tickets", "issue", "issues"},
	Users:     {"user", "users", "member", "members", "team", "people", "account", "accounts"},
	Reports:   {"report", "reports", "analytics", "metrics", "stats", "statistics"},
	Settings:  {"setting", "settings", "preferences", "configuration", "config"},
	Dashboard: {"dashboard", "home", "overview", "summary"},
}

var intentKeywords = map[Intent][]string{
	List: {
		"show", "list", "view", "open", "go to", "take me", "find", "display", "see", "navigate", "browse", "where",
	},
	Create: {
		"create", "add", "new", "make", "register", "invite", "start a",
	},
	Refresh: {
		"refresh", "reload", "update the view", "sync",
	},
	Greeting: {
		"hello", "hi", "hey", "good morning", "good afternoon", "thanks", "thank you",
	},
}

var statusKeywords = map[string][]string{
	"active":    {"active", "ongoing", "current"},
	"archived":  {"archived", "closed", "old"},
	"completed": {"completed", "done", "finished"},
	"overdue":   {"overdue", "late"},
}

const helpReply = "I can open sections like projects, tasks, users, reports or settings, start new records, and refresh the current view. What would you like to do?"

// Analyze derives an intent and the actions that fulfil it.
func Analyze(text string) Decision {
	normalized := normalize(text)
	if strings.TrimSpace(normalized) == "" {
		return Decision{Intent: Unknown, Reply: helpReply}
	}

	entity, entityScore := best(normalized, entityKeywords)
	intent, intentScore := best(normalized, intentKeywords)
	if intentScore == 0 {
		intent = Unknown
	}

	if (intent == Unknown || intent == Greeting) && entity != NoEntity {
		// A bare section name reads as a request to open it.
		intent = List
	}

	decision := Decision{Intent: intent, Entity: entity, Score: entityScore + intentScore}

	switch intent {
	case Refresh:
		decision.Reply = "Refreshing the current view."
		decision.Actions = []chat.Action{chat.RefreshAction{}}
	case Create:
		info, ok := entities[entity]
		if !ok {
			decision.Reply = "What would you like to create? I can start a new project, task or user."
			return decision
		}
		if !info.creatable {
			decision.Intent = List
			return listDecision(decision, info, normalized)
		}
		decision.Reply = fmt.Sprintf("Opening the new %s form.", info.singular)
		decision.Actions = []chat.Action{chat.OpenModalAction{
			Modal: "create" + title(info.singular),
			Data:  map[string]any{"entity": string(entity)},
		}}
	case List:
		info, ok := entities[entity]
		if !ok {
			decision.Intent = Unknown
			decision.Reply = helpReply
			return decision
		}
		return listDecision(decision, info, normalized)
	case Greeting:
		decision.Reply = "Hi! " + helpReply
	default:
		decision.Intent = Unknown
		decision.Reply = helpReply
	}
	return decision
}

func listDecision(decision Decision, info entityInfo, normalized string) Decision {
	path := info.path
	label := string(decision.Entity)
	if status, _ := best(normalized, statusKeywords); status != "" && info.creatable {
		decision.Status = status
		path += "?status=" + status
		label = status + " " + label
	}
	decision.Reply = fmt.Sprintf("Here are your %s.", label)
	if !info.creatable {
		decision.Reply = fmt.Sprintf("Opening %s.", label)
	}
	decision.Actions = []chat.Action{chat.NavigateAction{Path: path}}
	return decision
}

// normalize lowercases text and collapses it into space separated words
// surrounded by single spaces, so keywords match on word boundaries.
func normalize(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	return " " + strings.Join(words, " ") + " "
}

func matches(normalized, keyword string) bool {
	return strings.Contains(normalized, " "+keyword+" ")
}

// best returns the bucket with the most keyword hits. Ties go to the
// lexically smaller key so results are stable across map iteration order.
func best[K ~string](normalized string, buckets map[K][]string) (K, int) {
	var bestKey K
	bestScore := 0
	for key, keywords := range buckets {
		score := 0
		for _, word := range keywords {
			if matches(normalized, word) {
				score += 3
			}
		}
		if score > bestScore || (score == bestScore && score > 0 && key < bestKey) {
			bestScore = score
			bestKey = key
		}
	}
	return bestKey, bestScore
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
