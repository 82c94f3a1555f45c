package commands

import (
	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/core/timeline"
	"github.com/spf13/pflag"
)

// Filter flags shared by the live viewer and replay
var (
	filterSession  string
	filterCategory string
	filterActor    string
	filterTool     string
	filterSearch   string
)

func addFilterFlags(flags *pflag.FlagSet) {
	flags.StringVar(&filterSession, "session", "",
		"Only show entries of this session ID")
	flags.StringVar(&filterCategory, "category", "",
		"Only show one category (message, tool, token, control, error, permission)")
	flags.StringVar(&filterActor, "actor", "",
		"Only show entries from or to an actor (user, system, agent, llm, tool)")
	flags.StringVar(&filterTool, "tool", "",
		"Only show calls of this tool")
	flags.StringVar(&filterSearch, "search", "",
		"Only show entries whose label, tool or error contains this text (case-insensitive)")
}

func filterFromFlags() timeline.Filter {
	return timeline.Filter{
		SessionID: filterSession,
		Category:  model.Category(filterCategory),
		Actor:     model.Actor(filterActor),
		ToolName:  filterTool,
		Search:    filterSearch,
	}
}
